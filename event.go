package drmoutput

import "github.com/tmarsh-oss/go-drmoutput/internal/eventpump"

// EventKind discriminates the events a Device surfaces through NextEvent.
type EventKind = eventpump.EventKind

// Event kinds, ordered by the priority NextEvent drains them in: a
// display-removed event outranks a display-added event from the same
// rescan, which in turn outranks a render event (spec §4.9's "none <
// render < displayAdded < displayRemoved" decision, see DESIGN.md).
const (
	EventNone            = eventpump.KindNone
	EventRender          = eventpump.KindRender
	EventDisplayAdded    = eventpump.KindDisplayAdded
	EventDisplayRemoved  = eventpump.KindDisplayRemoved
)

// Event is one queued notification: a connector needs a frame, or a
// connector was hotplugged in or out.
type Event = eventpump.Event

// NextEvent pops the highest-priority queued event, non-blocking. The
// pump's own fds are not exposed; callers typically drain it in a loop on
// a timer of their own, or simply call it once per frame tick.
func (d *Device) NextEvent() (Event, bool) {
	if d.pump == nil {
		return Event{Kind: EventNone}, false
	}
	return d.pump.GetEvent()
}

// PendingEvents reports how many events are currently queued.
func (d *Device) PendingEvents() int {
	if d.pump == nil {
		return 0
	}
	return d.pump.Pending()
}

package eventpump

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestEventPriorityOrdering(t *testing.T) {
	if KindNone.String() != "none" || KindRender.String() != "render" ||
		KindDisplayAdded.String() != "display-added" || KindDisplayRemoved.String() != "display-removed" {
		t.Fatalf("unexpected EventKind.String() mapping")
	}
	if !(Event{Kind: KindDisplayRemoved}.Priority() > Event{Kind: KindDisplayAdded}.Priority() &&
		Event{Kind: KindDisplayAdded}.Priority() > Event{Kind: KindRender}.Priority() &&
		Event{Kind: KindRender}.Priority() > Event{Kind: KindNone}.Priority()) {
		t.Fatalf("expected none < render < displayAdded < displayRemoved")
	}
}

func newTestPump(t *testing.T, drmFD int, onFlip PageFlipFunc, onRescan RescanFunc) *Pump {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, drmFD, -1, nil, onFlip, onRescan)
}

func TestPumpGetEventDrainsHighestPriorityFirst(t *testing.T) {
	p := newTestPump(t, -1, nil, nil)
	if _, ok := p.GetEvent(); ok {
		t.Fatalf("expected empty heap initially")
	}
	for _, ev := range []Event{
		{Kind: KindRender, ConnectorID: 1},
		{Kind: KindDisplayRemoved, ConnectorID: 2},
		{Kind: KindDisplayAdded, ConnectorID: 3},
	} {
		if err := p.pushEvent(ev); err != nil {
			t.Fatalf("pushEvent: %v", err)
		}
	}
	if p.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", p.Pending())
	}

	first, ok := p.GetEvent()
	if !ok || first.Kind != KindDisplayRemoved || first.ConnectorID != 2 {
		t.Fatalf("first event = %+v, want display-removed/2", first)
	}
	second, ok := p.GetEvent()
	if !ok || second.Kind != KindDisplayAdded || second.ConnectorID != 3 {
		t.Fatalf("second event = %+v, want display-added/3", second)
	}
	third, ok := p.GetEvent()
	if !ok || third.Kind != KindRender || third.ConnectorID != 1 {
		t.Fatalf("third event = %+v, want render/1", third)
	}
	if _, ok := p.GetEvent(); ok {
		t.Fatalf("expected heap empty after draining all three")
	}
}

func TestPumpPushEventIgnoresKindNone(t *testing.T) {
	p := newTestPump(t, -1, nil, nil)
	if err := p.pushEvent(Event{Kind: KindNone}); err != nil {
		t.Fatalf("pushEvent(none): %v", err)
	}
	if p.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0 after pushing a none event", p.Pending())
	}
}

func encodeFlipComplete(crtcID uint32) []byte {
	buf := make([]byte, 32)
	byteOrder.PutUint32(buf[0:4], uint32(2)) // EventFlipComplete
	byteOrder.PutUint32(buf[4:8], 32)        // Length
	// UserData (8 bytes) left zero, TvSec/TvUsec/Sequence left zero.
	byteOrder.PutUint32(buf[28:32], crtcID)
	return buf
}

func TestPumpDecodesFlipCompleteAndEmitsRender(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var flipped uint32
	p := newTestPump(t, fds[0], func(connectorID uint32) {
		flipped = connectorID
	}, nil)
	p.RegisterCRTC(7, 42)

	if _, err := unix.Write(fds[1], encodeFlipComplete(7)); err != nil {
		t.Fatalf("write: %v", err)
	}

	p.handleDRMEvents()

	if flipped != 42 {
		t.Fatalf("onPageFlip connector = %d, want 42", flipped)
	}
	ev, ok := p.GetEvent()
	if !ok || ev.Kind != KindRender || ev.ConnectorID != 42 {
		t.Fatalf("expected render event for connector 42, got %+v ok=%v", ev, ok)
	}
}

func TestPumpIgnoresFlipCompleteForUnregisteredCRTC(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	called := false
	p := newTestPump(t, fds[0], func(uint32) { called = true }, nil)

	if _, err := unix.Write(fds[1], encodeFlipComplete(99)); err != nil {
		t.Fatalf("write: %v", err)
	}
	p.handleDRMEvents()

	if called {
		t.Fatalf("onPageFlip should not fire for an unregistered crtc")
	}
	if p.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", p.Pending())
	}
}

func TestPumpUnregisterCRTCStopsTranslating(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	called := false
	p := newTestPump(t, fds[0], func(uint32) { called = true }, nil)
	p.RegisterCRTC(7, 42)
	p.UnregisterCRTC(7)

	if _, err := unix.Write(fds[1], encodeFlipComplete(7)); err != nil {
		t.Fatalf("write: %v", err)
	}
	p.handleDRMEvents()

	if called {
		t.Fatalf("onPageFlip should not fire once the crtc mapping is removed")
	}
}

func TestPumpDrainViaPollReadsQueuedFlip(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p := newTestPump(t, fds[0], nil, nil)
	p.RegisterCRTC(3, 9)

	if _, err := unix.Write(fds[1], encodeFlipComplete(3)); err != nil {
		t.Fatalf("write: %v", err)
	}

	p.Drain()

	ev, ok := p.GetEvent()
	if !ok || ev.Kind != KindRender || ev.ConnectorID != 9 {
		t.Fatalf("Drain() did not surface the queued render event, got %+v ok=%v", ev, ok)
	}
}

func TestPumpScheduleRescanDebouncesBursts(t *testing.T) {
	calls := 0
	p := newTestPump(t, -1, nil, func() (added, removed []uint32) {
		calls++
		return []uint32{5}, nil
	})
	p.debounce = 10 * time.Millisecond

	p.scheduleRescan()
	p.scheduleRescan()
	p.scheduleRescan()

	time.Sleep(50 * time.Millisecond)

	if calls != 1 {
		t.Fatalf("onRescan called %d times, want exactly 1 after debounced bursts", calls)
	}
	ev, ok := p.GetEvent()
	if !ok || ev.Kind != KindDisplayAdded || ev.ConnectorID != 5 {
		t.Fatalf("expected display-added/5 after rescan, got %+v ok=%v", ev, ok)
	}
}

func TestPumpStartStop(t *testing.T) {
	p := newTestPump(t, -1, nil, nil)
	p.Start()
	p.Stop()
}

func TestReadUdevEventParsesActionAndDevpath(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	msg := "change@/devices/pci0000:00/0000:00:02.0/drm/card0\x00" +
		"ACTION=change\x00DEVPATH=/devices/pci0000:00/0000:00:02.0/drm/card0\x00" +
		"SUBSYSTEM=drm\x00SEQNUM=123\x00"
	if _, err := unix.Write(fds[1], []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}

	action, devpath, err := readUdevEvent(fds[0])
	if err != nil {
		t.Fatalf("readUdevEvent: %v", err)
	}
	if action != "change" {
		t.Fatalf("action = %q, want change", action)
	}
	if devpath == "" {
		t.Fatalf("expected non-empty devpath")
	}
}

func TestReadUdevEventFiltersNonDRMSubsystem(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	msg := "add@/devices/virtual/net/eth0\x00ACTION=add\x00DEVPATH=/devices/virtual/net/eth0\x00SUBSYSTEM=net\x00"
	if _, err := unix.Write(fds[1], []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}

	action, devpath, err := readUdevEvent(fds[0])
	if err != nil {
		t.Fatalf("readUdevEvent: %v", err)
	}
	if action != "" || devpath != "" {
		t.Fatalf("expected a non-drm uevent to be filtered out, got action=%q devpath=%q", action, devpath)
	}
}

package eventpump

import "container/heap"

// EventKind is the tagged union discriminant for Event. The ordering below
// is the decided priority (spec open question: none < render < displayAdded
// < displayRemoved), not the original header's raw declaration order.
type EventKind int

const (
	KindNone EventKind = iota
	KindRender
	KindDisplayAdded
	KindDisplayRemoved
)

func (k EventKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRender:
		return "render"
	case KindDisplayAdded:
		return "display-added"
	case KindDisplayRemoved:
		return "display-removed"
	default:
		return "unknown"
	}
}

// Event is the tagged union drained by consumers. ConnectorID identifies
// the affected output by connector id rather than a pointer, so this
// package never needs to import the root package.
type Event struct {
	Kind        EventKind
	ConnectorID uint32
}

// Priority orders events for the max-heap: higher values drain first.
func (e Event) Priority() int { return int(e.Kind) }

// eventHeap is a container/heap max-heap ordered by Event.Priority.
type eventHeap []Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].Priority() > h[j].Priority() }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)         { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*eventHeap)(nil)

package drmoutput

import "sync"

// Signal is a minimal multi-subscriber event signal: each Output holds one
// per kind (frame, mode, commit, needs_frame, destroy, precommit) rather
// than a single dispatcher keyed by event name, so each carries its own
// payload type and subscribers never need a type switch.
type Signal[T any] struct {
	mu        sync.Mutex
	listeners []*signalEntry[T]
}

type signalEntry[T any] struct {
	fn func(T)
}

// Listener is an opaque subscription handle. Remove is idempotent.
type Listener struct {
	remove func()
}

// Remove cancels the subscription. Safe to call on a nil Listener or more
// than once.
func (l *Listener) Remove() {
	if l == nil || l.remove == nil {
		return
	}
	l.remove()
	l.remove = nil
}

// Add subscribes fn to every future Emit, returning a handle to unsubscribe.
func (s *Signal[T]) Add(fn func(T)) *Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &signalEntry[T]{fn: fn}
	s.listeners = append(s.listeners, entry)
	return &Listener{remove: func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l == entry {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}}
}

// Emit calls every current subscriber with val, in subscription order.
// Listeners added or removed during Emit do not affect this pass.
func (s *Signal[T]) Emit(val T) {
	s.mu.Lock()
	snapshot := make([]*signalEntry[T], len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for _, l := range snapshot {
		l.fn(val)
	}
}

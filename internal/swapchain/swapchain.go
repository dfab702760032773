// Package swapchain implements the fixed-capacity buffer pool an Output
// acquires back-buffers from (spec §4.6). It is allocator- and
// buffer-type-agnostic: callers supply an AllocFunc closure and a Handle
// implementation (the root package's *Buffer satisfies Handle without
// either package importing the other, avoiding a dependency cycle
// between the output core and its buffer model).
package swapchain

import (
	"fmt"
	"sync"

	"github.com/tmarsh-oss/go-drmoutput/internal/constants"
)

// Handle is the subset of Buffer behaviour the swapchain depends on.
type Handle interface {
	Lock() int32
	Unlock()
	Subscribe(fn func()) (unsubscribe func())
}

// AllocFunc creates one buffer of the swapchain's configured
// width/height/format. It returns a Handle already holding its own
// creator lock, mirroring drmoutput.NewBuffer's contract.
type AllocFunc func() (Handle, error)

type slot struct {
	handle      Handle
	acquired    bool
	unsubscribe func()
	lastSeq     uint64
}

// Swapchain is a pool of up to constants.MaxSwapchainSlots buffers for
// one output. It holds one permanent lock per slot's buffer (on top of
// whatever lock a caller takes during an Acquire cycle) so the buffer
// survives being handed back for reuse between frames.
type Swapchain struct {
	mu sync.Mutex

	width, height, format uint32
	alloc                 AllocFunc

	slots [constants.MaxSwapchainSlots]*slot
	clock uint64
}

// New constructs a swapchain targeting width x height x format, sourcing
// new buffers from alloc when every tracked slot is either acquired or
// not yet allocated.
func New(width, height, format uint32, alloc AllocFunc) *Swapchain {
	return &Swapchain{width: width, height: height, format: format, alloc: alloc}
}

// InvalidateAllocator nulls the swapchain's allocator reference. Existing
// slots remain usable for reacquisition; growing into a new slot fails
// cleanly afterward instead of calling into a destroyed allocator.
func (s *Swapchain) InvalidateAllocator() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alloc = nil
}

// Acquire returns a locked handle to a back-buffer, along with its
// buffer age: the number of releases since this slot was last released,
// counting that release itself (so a slot reacquired right after its own
// release reports 1), or 0 for a freshly allocated slot. Fails if every
// slot is already acquired.
func (s *Swapchain) Acquire() (Handle, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sl := range s.slots {
		if sl != nil && !sl.acquired {
			sl.acquired = true
			sl.handle.Lock()
			age := uint32(s.clock - sl.lastSeq + 1)
			return sl.handle, age, nil
		}
	}

	for i, sl := range s.slots {
		if sl != nil {
			continue
		}
		if s.alloc == nil {
			return nil, 0, fmt.Errorf("swapchain: allocator has been destroyed")
		}
		handle, err := s.alloc()
		if err != nil {
			return nil, 0, fmt.Errorf("swapchain: allocate slot %d: %w", i, err)
		}
		handle.Lock()

		newSlot := &slot{handle: handle, acquired: true}
		s.slots[i] = newSlot
		newSlot.unsubscribe = handle.Subscribe(func() {
			s.release(newSlot)
		})
		return handle, 0, nil
	}

	return nil, 0, fmt.Errorf("swapchain: all %d slots acquired", len(s.slots))
}

// release runs whenever a slot's handle is unlocked (by whichever caller
// currently holds the active-use lock); it frees the slot for reuse and
// advances the presentation clock so the next Acquire's age reflects how
// long the slot sat idle.
func (s *Swapchain) release(sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock++
	sl.lastSeq = s.clock
	sl.acquired = false
}

// NumSlots reports how many slots currently hold an allocated buffer
// (0..constants.MaxSwapchainSlots).
func (s *Swapchain) NumSlots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sl := range s.slots {
		if sl != nil {
			n++
		}
	}
	return n
}

// NumAcquired reports how many slots are currently acquired.
func (s *Swapchain) NumAcquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sl := range s.slots {
		if sl != nil && sl.acquired {
			n++
		}
	}
	return n
}

// Destroy unsubscribes from and releases the swapchain's permanent hold
// on every slot's buffer. Callers must not Acquire afterward.
func (s *Swapchain) Destroy() {
	s.mu.Lock()
	slots := s.slots
	s.slots = [constants.MaxSwapchainSlots]*slot{}
	s.mu.Unlock()

	for _, sl := range slots {
		if sl == nil {
			continue
		}
		if sl.unsubscribe != nil {
			sl.unsubscribe()
		}
		sl.handle.Unlock()
	}
}

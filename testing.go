package drmoutput

import (
	"errors"
	"sync"
	"syscall"

	"github.com/tmarsh-oss/go-drmoutput/internal/allocator"
	"github.com/tmarsh-oss/go-drmoutput/internal/kms"
	"github.com/tmarsh-oss/go-drmoutput/internal/swapchain"
	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// FakeBackend is a commitBackend that never touches the kernel. It lets a
// caller build and drive an Output (via NewOutput) in a unit test with no
// real DRM fd, tracking every call under a mutex for later verification.
type FakeBackend struct {
	mu sync.Mutex

	commits       []*kms.CommitRequest
	connEnables   []*kms.ConnEnableRequest
	cursorSets    []*kms.CursorRequest
	cursorMoves   []*kms.CursorMoveRequest
	restoredCRTCs []*uapi.ModeGetCrtc

	// FailUntil forces the first FailUntil calls to Commit to fail with
	// syscall.EINVAL, then succeed from then on, for exercising
	// attemptWithRetry's modifier-strip-and-retry path.
	FailUntil int

	commitCalls int
}

// NewFakeBackend returns a FakeBackend that accepts every commit.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

func (f *FakeBackend) Commit(req *kms.CommitRequest, testOnly bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls++
	f.commits = append(f.commits, req)
	if f.commitCalls <= f.FailUntil {
		return syscall.EINVAL
	}
	return nil
}

func (f *FakeBackend) ConnEnable(req *kms.ConnEnableRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connEnables = append(f.connEnables, req)
	return nil
}

func (f *FakeBackend) SetCursor(req *kms.CursorRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorSets = append(f.cursorSets, req)
	return nil
}

func (f *FakeBackend) MoveCursor(req *kms.CursorMoveRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorMoves = append(f.cursorMoves, req)
	return nil
}

func (f *FakeBackend) RestoreCRTC(req *uapi.ModeGetCrtc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restoredCRTCs = append(f.restoredCRTCs, req)
	return nil
}

// Commits returns every CommitRequest seen so far, in order.
func (f *FakeBackend) Commits() []*kms.CommitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*kms.CommitRequest, len(f.commits))
	copy(out, f.commits)
	return out
}

// CommitCount returns how many times Commit has been called.
func (f *FakeBackend) CommitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitCalls
}

// CursorSets returns every SetCursor request seen so far, in order.
func (f *FakeBackend) CursorSets() []*kms.CursorRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*kms.CursorRequest, len(f.cursorSets))
	copy(out, f.cursorSets)
	return out
}

// RestoredCRTCs returns every RestoreCRTC request seen so far.
func (f *FakeBackend) RestoredCRTCs() []*uapi.ModeGetCrtc {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*uapi.ModeGetCrtc, len(f.restoredCRTCs))
	copy(out, f.restoredCRTCs)
	return out
}

// Reset clears every tracked call and failure state.
func (f *FakeBackend) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = nil
	f.connEnables = nil
	f.cursorSets = nil
	f.cursorMoves = nil
	f.restoredCRTCs = nil
	f.commitCalls = 0
	f.FailUntil = 0
}

// FakeAllocator is an allocator.Allocator that hands out memory-backed
// Backings with no dmabuf/SHM fd at all — good enough to drive a
// swapchain in a test without a real GEM/memfd allocation underneath.
type FakeAllocator struct {
	mu        sync.Mutex
	caps      allocator.Capabilities
	created   int
	destroyed bool

	// FailNext forces the next CreateBuffer call to fail.
	FailNext bool
}

// NewFakeAllocator returns a FakeAllocator reporting the given capabilities.
func NewFakeAllocator(caps allocator.Capabilities) *FakeAllocator {
	return &FakeAllocator{caps: caps}
}

func (a *FakeAllocator) CreateBuffer(width, height, format uint32, modifiers []uint64) (*allocator.Backing, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailNext {
		a.FailNext = false
		return nil, errFakeAllocFailed
	}
	a.created++
	data := make([]byte, int(width)*int(height)*4)
	return &allocator.Backing{
		Width:    width,
		Height:   height,
		Format:   format,
		Modifier: ModLinear,
		HasSHM:   true,
		DataPtr:  data,
		Release:  func() {},
	}, nil
}

func (a *FakeAllocator) Destroy() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyed = true
	return nil
}

func (a *FakeAllocator) Capabilities() allocator.Capabilities {
	return a.caps
}

// Created returns how many Backings this allocator has handed out.
func (a *FakeAllocator) Created() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.created
}

// Destroyed reports whether Destroy has been called.
func (a *FakeAllocator) Destroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}

var errFakeAllocFailed = errors.New("fake allocator: forced failure")

// NewTestSwapchainFactory builds a swapchain factory that allocates through
// alloc and adapts each Backing into a Buffer, for driving an Output in a
// test with no real DRM fd. Mirrors output_test.go's private
// newFakeSwapchainFactory, exported so callers outside this module can wire
// an Output the same way.
func NewTestSwapchainFactory(alloc *FakeAllocator) func(width, height, format uint32, modifiers []uint64) *swapchain.Swapchain {
	return func(width, height, format uint32, modifiers []uint64) *swapchain.Swapchain {
		return swapchain.New(width, height, format, func() (swapchain.Handle, error) {
			backing, err := alloc.CreateBuffer(width, height, format, modifiers)
			if err != nil {
				return nil, err
			}
			buf := NewBuffer(width, height, format, backing.Modifier, nil)
			return buf, nil
		})
	}
}

var (
	_ allocator.Allocator = (*FakeAllocator)(nil)
	_ commitBackend       = (*FakeBackend)(nil)
)

package drmoutput

import (
	"sync"
	"syscall"
	"testing"

	"github.com/tmarsh-oss/go-drmoutput/internal/kms"
	"github.com/tmarsh-oss/go-drmoutput/internal/swapchain"
	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// fakeBackend is a commitBackend that never touches the kernel. failUntil
// lets a test force N consecutive Commit failures before succeeding.
type fakeBackend struct {
	mu            sync.Mutex
	commits       []*kms.CommitRequest
	failUntil     int
	restoredCRTCs []*uapi.ModeGetCrtc
	cursorSets    []*kms.CursorRequest
}

func (f *fakeBackend) Commit(req *kms.CommitRequest, testOnly bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, req)
	if len(f.commits) <= f.failUntil {
		return syscall.EINVAL
	}
	return nil
}

func (f *fakeBackend) ConnEnable(req *kms.ConnEnableRequest) error { return nil }

func (f *fakeBackend) SetCursor(req *kms.CursorRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorSets = append(f.cursorSets, req)
	return nil
}

func (f *fakeBackend) MoveCursor(req *kms.CursorMoveRequest) error { return nil }

func (f *fakeBackend) RestoreCRTC(req *uapi.ModeGetCrtc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restoredCRTCs = append(f.restoredCRTCs, req)
	return nil
}

func newFakeSwapchainFactory() (swapchainFactoryFunc, *int) {
	count := 0
	return func(width, height, format uint32, modifiers []uint64) *swapchain.Swapchain {
		mod := ModLinear
		if len(modifiers) > 0 {
			mod = modifiers[0]
		}
		return swapchain.New(width, height, format, func() (swapchain.Handle, error) {
			count++
			buf := NewBuffer(width, height, format, mod, nil)
			buf.SetFBID(uint32(count))
			return buf, nil
		})
	}, &count
}

func testOutput(t *testing.T, backend commitBackend) *Output {
	t.Helper()
	o := NewOutput("test-1", 10, backend, nil)
	factory, _ := newFakeSwapchainFactory()
	o.SetSwapchainFactory(factory)
	o.ConfigureCRTC(20, 1, kms.ConnectorPropIDs{}, kms.CRTCPropIDs{}, 30, kms.PlanePropIDs{}, 0, kms.PlanePropIDs{}, false)
	return o
}

func TestOutputNeedsModesetAfterConfigureCRTC(t *testing.T) {
	o := testOutput(t, &fakeBackend{})
	if o.State() != StateNeedsModeset {
		t.Fatalf("expected needs-modeset after ConfigureCRTC, got %v", o.State())
	}
}

func TestOutputCommitRequiresModeBeforeEnabling(t *testing.T) {
	o := testOutput(t, &fakeBackend{})
	o.Enable(true)
	if err := o.Commit(); err == nil {
		t.Fatal("expected an error enabling an output with no mode staged")
	}
}

func TestOutputModesetCommitTransitionsToConnected(t *testing.T) {
	o := testOutput(t, &fakeBackend{})
	o.SetMode(Mode{Width: 1920, Height: 1080, RefreshHz: 60})
	o.Enable(true)

	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected commit error: %v", err)
	}
	if o.State() != StateConnected {
		t.Fatalf("expected connected after a successful enabling modeset, got %v", o.State())
	}
	if !o.PageflipPending() {
		t.Fatal("a successful non-test commit should arm pageflip-pending")
	}
	mode, has := o.CurrentMode()
	if !has || mode.Width != 1920 {
		t.Fatalf("expected current mode to be staged mode, got %+v has=%v", mode, has)
	}
}

func TestOutputCommitEnsuresBufferWhenModesetWithoutExplicitBuffer(t *testing.T) {
	backend := &fakeBackend{}
	o := testOutput(t, backend)
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)

	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.commits) != 1 {
		t.Fatalf("expected exactly one commit request, got %d", len(backend.commits))
	}
	if backend.commits[0].Primary == nil {
		t.Fatal("ensure_buffer should have staged a primary plane framebuffer")
	}
}

func TestOutputCannotCommitWhilePageflipPending(t *testing.T) {
	o := testOutput(t, &fakeBackend{})
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)
	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o.SetMode(Mode{Width: 800, Height: 600})
	if err := o.Commit(); err == nil {
		t.Fatal("expected an error committing while a flip is still outstanding")
	}
}

func TestOutputRollbackClearsPendingWithoutTouchingKernel(t *testing.T) {
	backend := &fakeBackend{}
	o := testOutput(t, backend)
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)
	if _, err := o.AttachRender(); err != nil {
		t.Fatalf("unexpected attach_render error: %v", err)
	}

	o.Rollback()

	if len(backend.commits) != 0 {
		t.Fatal("rollback must never reach the backend")
	}
	if o.pending.flags != 0 {
		t.Fatal("rollback should clear every pending flag")
	}
}

func TestOutputAttachRenderRejectsDoubleStage(t *testing.T) {
	o := testOutput(t, &fakeBackend{})
	o.SetMode(Mode{Width: 640, Height: 480})
	if _, err := o.AttachRender(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.AttachRender(); err == nil {
		t.Fatal("expected an error staging a second buffer before commit/rollback")
	}
}

func TestOutputHandlePageFlipIsMonotonicAndTrailsSignalEmission(t *testing.T) {
	o := testOutput(t, &fakeBackend{})
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)
	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var seenSeq uint64
	var frontDuringCallback *Buffer
	o.OnFrame.Add(func(data FrameSignalData) {
		seenSeq = data.Seq
		o.mu.Lock()
		frontDuringCallback = o.frontBuffer
		o.mu.Unlock()
	})

	o.HandlePageFlip(true)

	if seenSeq != 1 {
		t.Fatalf("expected first flip to report seq 1, got %d", seenSeq)
	}
	if o.PageflipPending() {
		t.Fatal("HandlePageFlip should clear pageflip-pending")
	}
	if frontDuringCallback == nil {
		t.Fatal("frame signal should observe the promoted front buffer, not a half-updated state")
	}

	// Commit again and flip again: sequence must strictly increase.
	o.SetMode(o.currentMode)
	o.Enable(true)
	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected error on second commit: %v", err)
	}
	o.HandlePageFlip(true)
	if seenSeq != 2 {
		t.Fatalf("expected second flip to report seq 2, got %d", seenSeq)
	}
}

func TestOutputNoFrameSignalWhenSessionInactive(t *testing.T) {
	o := testOutput(t, &fakeBackend{})
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)
	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	called := false
	o.OnFrame.Add(func(FrameSignalData) { called = true })
	o.HandlePageFlip(false)

	if called {
		t.Fatal("frame signal must not fire while the session is paused")
	}
}

func TestOutputModifierRetryFallsBackToLinearOnce(t *testing.T) {
	backend := &fakeBackend{failUntil: 1}
	o := testOutput(t, backend)
	o.SetFormat(fourccXRGB8888(), []uint64{0x0100000000000001})
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)

	if err := o.Commit(); err != nil {
		t.Fatalf("expected the modifier-less retry to succeed, got: %v", err)
	}
	if len(backend.commits) != 2 {
		t.Fatalf("expected exactly one retry (2 total attempts), got %d", len(backend.commits))
	}
	if !o.modifiersStripped {
		t.Fatal("expected modifiersStripped to be recorded after the retry")
	}
}

func TestOutputModifierRetryGivesUpAfterOneAttempt(t *testing.T) {
	backend := &fakeBackend{failUntil: 100}
	o := testOutput(t, backend)
	o.SetFormat(fourccXRGB8888(), []uint64{0x0100000000000001})
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)

	if err := o.Commit(); err == nil {
		t.Fatal("expected commit to fail when even the modifier-less retry fails")
	}
	if len(backend.commits) != 2 {
		t.Fatalf("expected exactly 2 attempts (original + one retry), got %d", len(backend.commits))
	}
}

func TestOutputCommitDispatchesFakeCursorPlaneImmediately(t *testing.T) {
	backend := &fakeBackend{}
	o := testOutput(t, backend) // testOutput configures cursorPlaneID 0 (fake)
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)

	cursorBuf := NewBuffer(32, 32, fourccXRGB8888(), ModLinear, nil)
	cursorBuf.SetGEMHandle(42)
	o.SetCursor(cursorBuf, 32, 32)

	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.cursorSets) != 1 {
		t.Fatalf("expected exactly one SetCursor dispatch for a fake cursor plane, got %d", len(backend.cursorSets))
	}
	got := backend.cursorSets[0]
	if got.Clear {
		t.Fatal("a visible cursor must not be dispatched as a clear")
	}
	if got.Handle != 42 {
		t.Fatalf("expected the staged buffer's GEM handle to be forwarded, got %d", got.Handle)
	}
	if len(backend.commits) != 1 || backend.commits[0].Cursor != nil {
		t.Fatal("a fake cursor plane must never be bundled into the atomic commit request")
	}
	o.HandlePageFlip(true)

	o.SetCursor(nil, 0, 0)
	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected error on the clearing commit: %v", err)
	}
	if len(backend.cursorSets) != 2 || !backend.cursorSets[1].Clear {
		t.Fatalf("expected a second dispatch clearing the cursor, got %+v", backend.cursorSets)
	}
}

func TestOutputCleanupEmitsDestroyOnlyIfEverConnected(t *testing.T) {
	backend := &fakeBackend{}
	o := testOutput(t, backend)

	destroyed := false
	o.OnDestroy.Add(func(DestroySignalData) { destroyed = true })
	o.Cleanup(false, nil)

	if destroyed {
		t.Fatal("an output that never reached connected must not emit destroy")
	}
}

func TestOutputCleanupRestoresSavedCRTCAndEmitsDestroy(t *testing.T) {
	backend := &fakeBackend{}
	o := testOutput(t, backend)
	o.SetOldCRTC(&uapi.ModeGetCrtc{CrtcID: 99})
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)
	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.HandlePageFlip(true)

	destroyed := false
	o.OnDestroy.Add(func(DestroySignalData) { destroyed = true })
	o.Cleanup(true, nil)

	if !destroyed {
		t.Fatal("expected destroy to fire for an output that reached connected")
	}
	if len(backend.restoredCRTCs) != 1 || backend.restoredCRTCs[0].CrtcID != 99 {
		t.Fatalf("expected the saved CRTC config to be restored, got %+v", backend.restoredCRTCs)
	}
	if o.State() != StateDisconnected {
		t.Fatalf("expected disconnected after cleanup, got %v", o.State())
	}
}

func TestOutputCleanupDrainsOutstandingPageFlip(t *testing.T) {
	o := testOutput(t, &fakeBackend{})
	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)
	if err := o.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	drainCalls := 0
	o.Cleanup(false, func() bool {
		drainCalls++
		if drainCalls >= 3 {
			o.mu.Lock()
			o.pageflipPending = false
			o.mu.Unlock()
			return false
		}
		return true
	})

	if drainCalls != 3 {
		t.Fatalf("expected Cleanup to poll drainPageFlip until it reports done, got %d calls", drainCalls)
	}
}

func fourccXRGB8888() uint32 {
	return uint32('X') | uint32('R')<<8 | uint32('2')<<16 | uint32('4')<<24
}

package drmoutput

import (
	"testing"

	"github.com/tmarsh-oss/go-drmoutput/internal/allocator"
	"github.com/tmarsh-oss/go-drmoutput/internal/kms"
)

func TestFakeBackendTracksCommits(t *testing.T) {
	fb := NewFakeBackend()
	req := &kms.CommitRequest{ConnectorID: 1}
	if err := fb.Commit(req, false); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fb.CommitCount() != 1 {
		t.Fatalf("CommitCount = %d, want 1", fb.CommitCount())
	}
	if len(fb.Commits()) != 1 || fb.Commits()[0] != req {
		t.Fatalf("Commits() did not record the request")
	}
}

func TestFakeBackendFailUntil(t *testing.T) {
	fb := NewFakeBackend()
	fb.FailUntil = 2
	for i := 0; i < 2; i++ {
		if err := fb.Commit(&kms.CommitRequest{}, false); err == nil {
			t.Fatalf("commit %d: want failure, got nil", i)
		}
	}
	if err := fb.Commit(&kms.CommitRequest{}, false); err != nil {
		t.Fatalf("commit 3: want success, got %v", err)
	}
}

func TestFakeBackendReset(t *testing.T) {
	fb := NewFakeBackend()
	fb.Commit(&kms.CommitRequest{}, false)
	fb.Reset()
	if fb.CommitCount() != 0 || len(fb.Commits()) != 0 {
		t.Fatalf("Reset did not clear tracked state")
	}
}

func TestFakeBackendReceivesFakeCursorPlaneDispatch(t *testing.T) {
	backend := NewFakeBackend()
	o := NewOutput("cursor-test", 1, backend, nil)
	alloc := NewFakeAllocator(allocator.Capabilities{SHM: true, DataPtr: true})
	o.SetSwapchainFactory(NewTestSwapchainFactory(alloc))
	o.ConfigureCRTC(10, 1, kms.ConnectorPropIDs{}, kms.CRTCPropIDs{}, 20, kms.PlanePropIDs{}, 0, kms.PlanePropIDs{}, false)

	o.SetMode(Mode{Width: 640, Height: 480})
	o.Enable(true)

	cursorBacking, err := alloc.CreateBuffer(16, 16, FormatXRGB8888, nil)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	cursorBuf := NewBuffer(16, 16, FormatXRGB8888, cursorBacking.Modifier, nil)
	o.SetCursor(cursorBuf, 16, 16)

	if err := o.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(backend.CursorSets()) != 1 {
		t.Fatalf("expected one SetCursor call against the fake backend, got %d", len(backend.CursorSets()))
	}
}

func TestFakeAllocatorCreateBuffer(t *testing.T) {
	a := NewFakeAllocator(allocator.Capabilities{SHM: true, DataPtr: true})
	b, err := a.CreateBuffer(4, 4, FormatXRGB8888, nil)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if !b.HasSHM || len(b.DataPtr) != 4*4*4 {
		t.Fatalf("unexpected backing: %+v", b)
	}
	if a.Created() != 1 {
		t.Fatalf("Created() = %d, want 1", a.Created())
	}
}

func TestFakeAllocatorFailNext(t *testing.T) {
	a := NewFakeAllocator(allocator.Capabilities{})
	a.FailNext = true
	if _, err := a.CreateBuffer(4, 4, FormatXRGB8888, nil); err == nil {
		t.Fatalf("expected forced failure")
	}
	if _, err := a.CreateBuffer(4, 4, FormatXRGB8888, nil); err != nil {
		t.Fatalf("second call should succeed, got %v", err)
	}
}

func TestFakeAllocatorDestroy(t *testing.T) {
	a := NewFakeAllocator(allocator.Capabilities{})
	if a.Destroyed() {
		t.Fatalf("Destroyed() true before Destroy()")
	}
	if err := a.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if !a.Destroyed() {
		t.Fatalf("Destroyed() false after Destroy()")
	}
}

// Package allocator provides the three interchangeable buffer-creation
// backends named in spec §4.5: GBM dmabuf, DRM dumb, and shared memory.
// Allocators return a Backing descriptor rather than a root-package
// Buffer directly, so this package never has to import the root package
// (which in turn imports allocator implementations indirectly through
// device wiring) — the caller adapts a Backing into a drmoutput.Buffer.
package allocator

import "fmt"

// Capabilities describes what an allocator (or renderer) can produce or
// accept. Auto-selection (spec §4.5) compares a backend's and a
// renderer's Capabilities before picking an allocator.
type Capabilities struct {
	Dmabuf  bool
	SHM     bool
	DataPtr bool
	// DRMFD is true when a DRM device fd is available for dumb/GBM
	// allocation; it is not a "capability" of a renderer, only a backend.
	DRMFD bool
}

// Backing is the raw result of a successful CreateBuffer call: enough
// information for the caller to build a drmoutput.Buffer around it.
// Each allocator populates either the dmabuf fields or the SHM fields;
// DataPtr is set in addition when the allocator maps the memory (dumb and
// SHM do, GBM does not).
type Backing struct {
	Width, Height uint32
	Format        uint32
	Modifier      uint64

	DmabufFD     uintptr
	DmabufStride uint32
	DmabufOffset uint32
	HasDmabuf    bool

	SHMFD     uintptr
	SHMOffset int64
	SHMStride uint32
	HasSHM    bool

	DataPtr []byte

	// Release tears down every OS resource this Backing holds (unmap,
	// close fds, destroy the dumb handle or GBM bo). It does not remove a
	// KMS framebuffer: a caller that registered one removes it itself and
	// then calls Release from the drmoutput.Buffer's onRelease hook
	// (spec §8 property 1).
	Release func()
}

// Allocator is the contract every backend (GBM, dumb, SHM) implements.
type Allocator interface {
	// CreateBuffer must succeed only if Capabilities() is a superset of
	// what the caller needs for width/height/format/modifiers.
	CreateBuffer(width, height, format uint32, modifiers []uint64) (*Backing, error)

	// Destroy releases the allocator's own fd/device. The caller must
	// ensure every Backing it issued has already had its buffer dropped.
	Destroy() error

	Capabilities() Capabilities
}

// Importer is an optional capability: zero-copy re-use of a dmabuf the
// caller already owns (spec §4.5's optional import_buffer).
type Importer interface {
	ImportBuffer(fd uintptr, width, height, format uint32, stride uint32, modifier uint64) (*Backing, error)
}

// Kind identifies which concrete allocator auto-selection picked.
type Kind int

const (
	KindNone Kind = iota
	KindGBM
	KindDumb
	KindSHM
)

func (k Kind) String() string {
	switch k {
	case KindGBM:
		return "gbm"
	case KindDumb:
		return "dumb"
	case KindSHM:
		return "shm"
	default:
		return "none"
	}
}

// SelectKind implements the auto-create order from spec §4.5: GBM needs
// dmabuf capability on both sides plus a DRM fd; SHM needs SHM+DataPtr on
// both sides; dumb needs dmabuf+DataPtr on both sides plus a DRM fd.
func SelectKind(backend, renderer Capabilities) (Kind, error) {
	switch {
	case backend.Dmabuf && renderer.Dmabuf && backend.DRMFD:
		return KindGBM, nil
	case backend.SHM && renderer.SHM && backend.DataPtr && renderer.DataPtr:
		return KindSHM, nil
	case backend.Dmabuf && renderer.Dmabuf && backend.DataPtr && renderer.DataPtr && backend.DRMFD:
		return KindDumb, nil
	default:
		return KindNone, fmt.Errorf("allocator: no compatible allocator for backend capabilities %+v and renderer capabilities %+v", backend, renderer)
	}
}

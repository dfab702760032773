package drmoutput

import (
	"fmt"
	"sync"
)

// BackingKind distinguishes how a Buffer's pixel storage is reachable.
type BackingKind int

const (
	BackingNone BackingKind = iota
	BackingDmabuf
	BackingSHM
	BackingDataPtr
)

// DmabufAttribs describes a buffer exported as a Linux dmabuf: one fd per
// plane is not modeled here since every allocator in this module produces
// single-plane formats; multi-plane YUV formats would need a slice.
type DmabufAttribs struct {
	FD       uintptr
	Stride   uint32
	Offset   uint32
	Modifier uint64
}

// SHMAttribs describes a buffer backed by anonymous shared memory.
type SHMAttribs struct {
	FD     uintptr
	Offset int64
	Stride uint32
}

// onReleaseFunc is invoked exactly once, when a Buffer's lock count drops
// to zero, so the allocator that created it can release dmabuf fds, mmaps,
// GEM handles, and any registered KMS framebuffer id (spec §8 property 1).
type onReleaseFunc func(*Buffer)

// Buffer is a reference-counted handle over one allocator-owned pixel
// surface. Width, height, format and modifier are fixed at creation time;
// only the backing's contents may change, and only while unlocked for
// scan-out (spec §3 Buffer invariant).
type Buffer struct {
	mu sync.Mutex

	width, height uint32
	format        uint32
	modifier      uint64

	locks     int32
	released  bool
	listeners []func()

	backingKind BackingKind
	dmabuf      *DmabufAttribs
	shm         *SHMAttribs
	dataPtr     []byte

	// fbID is the KMS framebuffer id registered for this buffer by an
	// allocator or the output commit path, or 0 if none is registered.
	fbID uint32

	// gemHandle is the GEM handle backing this buffer, if one was
	// imported. The legacy SETCURSOR ioctl addresses a buffer by this
	// handle, not by fbID.
	gemHandle uint32

	onRelease onReleaseFunc
}

// NewBuffer constructs a Buffer with one creator lock already held. The
// caller (normally an Allocator) must arrange for Drop to be called
// exactly once to relinquish that initial lock.
func NewBuffer(width, height, format uint32, modifier uint64, onRelease onReleaseFunc) *Buffer {
	return &Buffer{
		width:     width,
		height:    height,
		format:    format,
		modifier:  modifier,
		locks:     1,
		onRelease: onRelease,
	}
}

// Width, Height, Format and Modifier report the buffer's immutable
// geometry and pixel layout.
func (b *Buffer) Width() uint32    { return b.width }
func (b *Buffer) Height() uint32   { return b.height }
func (b *Buffer) Format() uint32   { return b.format }
func (b *Buffer) Modifier() uint64 { return b.modifier }

// SetDmabuf, SetSHM and SetDataPtr attach a polymorphic backing. An
// allocator calls exactly one of these once, right after NewBuffer.
func (b *Buffer) SetDmabuf(attrs DmabufAttribs) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backingKind = BackingDmabuf
	b.dmabuf = &attrs
}

func (b *Buffer) SetSHM(attrs SHMAttribs) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backingKind = BackingSHM
	b.shm = &attrs
}

func (b *Buffer) SetDataPtr(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backingKind = BackingDataPtr
	b.dataPtr = data
}

// SetFBID records the KMS framebuffer id a commit registered for this
// buffer, so it can be torn down via drmModeRmFB exactly once on release.
func (b *Buffer) SetFBID(fbID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fbID = fbID
}

// FBID returns the currently registered KMS framebuffer id, or 0.
func (b *Buffer) FBID() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fbID
}

// SetGEMHandle records the GEM handle this buffer was imported under, for
// backends that address a buffer by handle rather than framebuffer id
// (the legacy SETCURSOR ioctl).
func (b *Buffer) SetGEMHandle(handle uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gemHandle = handle
}

// GEMHandle returns the buffer's GEM handle, or 0 if none was imported.
func (b *Buffer) GEMHandle() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gemHandle
}

// GetDmabuf returns the buffer's dmabuf attributes, if it has one.
func (b *Buffer) GetDmabuf() (DmabufAttribs, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dmabuf == nil {
		return DmabufAttribs{}, false
	}
	return *b.dmabuf, true
}

// GetSHM returns the buffer's shared-memory attributes, if it has one.
func (b *Buffer) GetSHM() (SHMAttribs, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shm == nil {
		return SHMAttribs{}, false
	}
	return *b.shm, true
}

// GetDataPtr returns a direct mapped-memory view of the buffer, if one
// is available (SHM and dumb allocators both expose this; GBM does not
// without an extra map step, which is a renderer concern, out of scope).
func (b *Buffer) GetDataPtr() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dataPtr == nil {
		return nil, false
	}
	return b.dataPtr, true
}

// Lock adds a reference, returning the new lock count. Called by every
// holder that needs the buffer to outlive its own scope: the swapchain
// slot, the renderer, and the KMS commit path all hold independent locks
// on the buffer currently scanned out.
func (b *Buffer) Lock() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locks++
	return b.locks
}

// Unlock releases one reference. Every Unlock call fires the buffer's
// release listeners (the mechanism a swapchain slot uses to learn its
// buffer came back, spec §4.6); when the count reaches zero the
// allocator's onRelease hook additionally runs, exactly once.
func (b *Buffer) Unlock() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.locks--
	release := b.locks <= 0
	if release {
		b.released = true
	}
	listeners := append([]func(){}, b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		if fn != nil {
			fn()
		}
	}
	if release && b.onRelease != nil {
		b.onRelease(b)
	}
}

// Subscribe registers fn to run on every Unlock call (not just the
// final one that triggers onRelease). It returns an unsubscribe func.
func (b *Buffer) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
	idx := len(b.listeners) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.listeners) {
			b.listeners[idx] = nil
		}
	}
}

// Drop relinquishes the initial creator lock from NewBuffer. It is
// equivalent to one Unlock call; allocators call this right after handing
// the buffer to its first real holder (the swapchain slot).
func (b *Buffer) Drop() {
	b.Unlock()
}

// Caps reports which accessors this buffer's backing supports.
type Caps struct {
	Dmabuf  bool
	SHM     bool
	DataPtr bool
}

// Capabilities reports which of GetDmabuf/GetSHM/GetDataPtr will succeed.
func (b *Buffer) Capabilities() Caps {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Caps{
		Dmabuf:  b.dmabuf != nil,
		SHM:     b.shm != nil,
		DataPtr: b.dataPtr != nil,
	}
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer{%dx%d fmt=0x%x mod=0x%x locks=%d}", b.width, b.height, b.format, b.modifier, b.locks)
}

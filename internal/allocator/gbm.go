//go:build cgo

// Package allocator's GBM backend: the GPU-allocated, dmabuf-exportable
// path (spec §4.5). No pure-Go GBM binding exists anywhere in this
// module's dependency set, so this wraps libgbm directly via cgo, the
// same way other cgo-dependent integrations in this codebase's lineage
// pair a `//go:build cgo` implementation with a `_nocgo.go` stub.
package allocator

/*
#cgo pkg-config: gbm
#include <gbm.h>
#include <stdlib.h>

static struct gbm_bo *create_bo_with_modifiers(struct gbm_device *gbm,
		uint32_t width, uint32_t height, uint32_t format,
		const uint64_t *modifiers, unsigned count) {
	return gbm_bo_create_with_modifiers(gbm, width, height, format, modifiers, count);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tmarsh-oss/go-drmoutput/internal/logging"
)

// GBM allocates GPU buffers through libgbm, the path used whenever a
// renderer and the backend both report dmabuf capability over a real
// DRM fd (spec §4.5's auto-create first choice).
type GBM struct {
	dev    *C.struct_gbm_device
	logger *logging.Logger
}

// NewGBM opens a GBM device over an already-open DRM fd. The fd is
// borrowed, not duplicated; the caller retains ownership.
func NewGBM(drmFD int, logger *logging.Logger) (*GBM, error) {
	if logger == nil {
		logger = logging.Default()
	}
	dev := C.gbm_create_device(C.int(drmFD))
	if dev == nil {
		return nil, fmt.Errorf("allocator(gbm): gbm_create_device failed")
	}
	return &GBM{dev: dev, logger: logger}, nil
}

func (g *GBM) Capabilities() Capabilities {
	return Capabilities{Dmabuf: true, DRMFD: true}
}

// CreateBuffer attempts gbm_bo_create_with_modifiers first; if the
// requested set is empty or contains only ModLinear, it falls back to
// modifier-less gbm_bo_create (spec §4.5's GBM fallback rule).
func (g *GBM) CreateBuffer(width, height, format uint32, modifiers []uint64) (*Backing, error) {
	var bo *C.struct_gbm_bo
	explicitModifiers := len(modifiers) > 0 && !(len(modifiers) == 1 && modifiers[0] == ModLinear)

	if explicitModifiers {
		cMods := make([]C.uint64_t, len(modifiers))
		for i, m := range modifiers {
			cMods[i] = C.uint64_t(m)
		}
		bo = C.create_bo_with_modifiers(g.dev, C.uint32_t(width), C.uint32_t(height), C.uint32_t(format),
			(*C.uint64_t)(unsafe.Pointer(&cMods[0])), C.uint(len(cMods)))
	}
	if bo == nil {
		bo = C.gbm_bo_create(g.dev, C.uint32_t(width), C.uint32_t(height), C.uint32_t(format),
			C.GBM_BO_USE_SCANOUT|C.GBM_BO_USE_RENDERING)
		explicitModifiers = false
	}
	if bo == nil {
		return nil, fmt.Errorf("allocator(gbm): gbm_bo_create failed for %dx%d format 0x%x", width, height, format)
	}

	fd := C.gbm_bo_get_fd(bo)
	if fd < 0 {
		C.gbm_bo_destroy(bo)
		return nil, fmt.Errorf("allocator(gbm): gbm_bo_get_fd failed")
	}

	stride := uint32(C.gbm_bo_get_stride(bo))
	modifier := ModLinear
	if explicitModifiers {
		modifier = uint64(C.gbm_bo_get_modifier(bo))
	}

	logger := g.logger
	dmabufFD := int(fd)
	back := &Backing{
		Width: width, Height: height, Format: format, Modifier: modifier,
		HasDmabuf: true, DmabufFD: uintptr(dmabufFD), DmabufStride: stride,
		Release: func() {
			if err := unix.Close(dmabufFD); err != nil {
				logger.Warnf("allocator(gbm): close dmabuf fd failed: %v", err)
			}
			C.gbm_bo_destroy(bo)
		},
	}
	return back, nil
}

func (g *GBM) Destroy() error {
	C.gbm_device_destroy(g.dev)
	return nil
}

// IsGBMAvailable reports whether this build can construct a working GBM
// allocator.
func IsGBMAvailable() bool {
	return true
}

package allocator

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tmarsh-oss/go-drmoutput/internal/constants"
	"github.com/tmarsh-oss/go-drmoutput/internal/logging"
)

// SHM allocates anonymous shared-memory buffers via memfd_create. No
// dmabuf export: SHM buffers are for compositors without GPU scan-out
// (spec §4.5, scenario S3).
type SHM struct {
	logger *logging.Logger
}

// NewSHM constructs a shared-memory allocator. It owns no fd/device of
// its own (each buffer gets its own memfd), so Destroy is a no-op.
func NewSHM(logger *logging.Logger) *SHM {
	if logger == nil {
		logger = logging.Default()
	}
	return &SHM{logger: logger}
}

func (s *SHM) Capabilities() Capabilities {
	return Capabilities{SHM: true, DataPtr: true}
}

// CreateBuffer opens a memfd, sizes it to stride×height, and mmaps it.
// Stride is width×bpp/8 rounded up to constants.DefaultStrideAlignment.
func (s *SHM) CreateBuffer(width, height, format uint32, modifiers []uint64) (*Backing, error) {
	if !modifiersAllowLinear(modifiers) {
		return nil, fmt.Errorf("allocator(shm): requested modifiers %v exclude implicit-linear, unsupported", modifiers)
	}
	bpp, ok := formatBPP[format]
	if !ok {
		return nil, fmt.Errorf("allocator(shm): unsupported format 0x%x", format)
	}

	stride := alignUp(width*uint32(bpp)/8, constants.DefaultStrideAlignment)
	size := int64(stride) * int64(height)

	fd, err := unix.MemfdCreate("drmoutput-shm-buffer", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("allocator(shm): memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("allocator(shm): ftruncate: %w", err)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("allocator(shm): mmap: %w", err)
	}

	logger := s.logger
	back := &Backing{
		Width: width, Height: height, Format: format, Modifier: ModLinear,
		HasSHM: true, SHMFD: uintptr(fd), SHMStride: stride, SHMOffset: 0,
		DataPtr: data,
		Release: func() {
			if err := unix.Munmap(data); err != nil {
				logger.Warnf("allocator(shm): munmap failed: %v", err)
			}
			if err := unix.Close(fd); err != nil {
				logger.Warnf("allocator(shm): close memfd failed: %v", err)
			}
		},
	}
	return back, nil
}

func (s *SHM) Destroy() error {
	return nil
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

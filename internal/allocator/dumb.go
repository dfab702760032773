package allocator

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tmarsh-oss/go-drmoutput/internal/logging"
	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// Dumb allocates KMS "dumb" buffers: CPU-mappable, CPU-filled, and
// exportable as a dmabuf for scan-out. No modifier support — dumb
// buffers are always implicitly linear (spec §4.5).
type Dumb struct {
	fd     int
	logger *logging.Logger
}

// NewDumb constructs a dumb allocator over an already-open DRM fd.
func NewDumb(fd int, logger *logging.Logger) *Dumb {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dumb{fd: fd, logger: logger}
}

func (d *Dumb) Capabilities() Capabilities {
	return Capabilities{Dmabuf: true, DataPtr: true, DRMFD: true}
}

// CreateBuffer issues DRM_IOCTL_MODE_CREATE_DUMB, maps the result, and
// exports it as a dmabuf fd via drmPrimeHandleToFD. Dumb buffers carry
// no modifier; a non-empty modifiers request that does not include
// ModLinear is rejected since the allocator's capability set cannot
// satisfy it.
func (d *Dumb) CreateBuffer(width, height, format uint32, modifiers []uint64) (*Backing, error) {
	info, ok := formatBPP[format]
	if !ok {
		return nil, fmt.Errorf("allocator(dumb): unsupported format 0x%x", format)
	}
	if !modifiersAllowLinear(modifiers) {
		return nil, fmt.Errorf("allocator(dumb): requested modifiers %v exclude implicit-linear, unsupported", modifiers)
	}

	create := uapi.ModeCreateDumb{
		Height: height,
		Width:  width,
		BPP:    uint32(info),
	}
	if err := uapi.CreateDumb(d.fd, &create); err != nil {
		return nil, fmt.Errorf("allocator(dumb): create dumb buffer: %w", err)
	}

	mapReq := uapi.ModeMapDumb{Handle: create.Handle}
	if err := uapi.MapDumb(d.fd, &mapReq); err != nil {
		uapi.DestroyDumb(d.fd, create.Handle)
		return nil, fmt.Errorf("allocator(dumb): map dumb buffer: %w", err)
	}

	data, err := unix.Mmap(d.fd, int64(mapReq.Offset), int(create.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		uapi.DestroyDumb(d.fd, create.Handle)
		return nil, fmt.Errorf("allocator(dumb): mmap dumb buffer: %w", err)
	}

	dmabufFD, err := uapi.PrimeHandleToFD(d.fd, create.Handle, 0)
	if err != nil {
		unix.Munmap(data)
		uapi.DestroyDumb(d.fd, create.Handle)
		return nil, fmt.Errorf("allocator(dumb): export dmabuf: %w", err)
	}

	handle := create.Handle
	logger := d.logger
	fd := d.fd
	size := create.Size
	back := &Backing{
		Width: width, Height: height, Format: format, Modifier: ModLinear,
		HasDmabuf: true, DmabufFD: uintptr(dmabufFD), DmabufStride: create.Pitch,
		DataPtr: data,
		Release: func() {
			if err := unix.Munmap(data[:size]); err != nil {
				logger.Warnf("allocator(dumb): munmap failed: %v", err)
			}
			if err := unix.Close(dmabufFD); err != nil {
				logger.Warnf("allocator(dumb): close dmabuf fd failed: %v", err)
			}
			if err := uapi.DestroyDumb(fd, handle); err != nil {
				logger.Warnf("allocator(dumb): destroy dumb handle failed: %v", err)
			}
		},
	}
	return back, nil
}

func (d *Dumb) Destroy() error {
	return nil
}

// ModLinear mirrors the root package's modifier sentinel without
// importing it (see package doc: allocator never imports the root
// package to avoid an import cycle).
const ModLinear uint64 = 0

func modifiersAllowLinear(modifiers []uint64) bool {
	if len(modifiers) == 0 {
		return true
	}
	for _, m := range modifiers {
		if m == ModLinear {
			return true
		}
	}
	return false
}

// formatBPP gives the dumb allocator's bits-per-pixel for the formats it
// knows how to create; this mirrors (but does not import) the root
// package's format catalogue.
var formatBPP = map[uint32]int{
	fourccXR24: 32,
	fourccAR24: 32,
	fourccRG16: 16,
}

func fourcc(a, b, c, e byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(e)<<24
}

var (
	fourccXR24 = fourcc('X', 'R', '2', '4')
	fourccAR24 = fourcc('A', 'R', '2', '4')
	fourccRG16 = fourcc('R', 'G', '1', '6')
)

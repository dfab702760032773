package uapi

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ioctl issues a DRM ioctl carrying a pointer to a request struct, the way
// libdrm's drmIoctl wraps every mode-setting call. Retries on EINTR the
// same way the kernel documents for long-running DRM ioctls.
func Ioctl(fd int, nr uint32, argp unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(nr), uintptr(argp))
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR {
			continue
		}
		return errno
	}
}

// GetCapability issues DRM_IOCTL_GET_CAP and returns the reported value.
func GetCapability(fd int, capability uint64) (uint64, error) {
	req := GetCap{Capability: capability}
	if err := Ioctl(fd, iowr(cmdGetCap, unsafe.Sizeof(req)), unsafe.Pointer(&req)); err != nil {
		return 0, err
	}
	return req.Value, nil
}

// GetResources issues DRM_IOCTL_MODE_GETRESOURCES.
func GetResources(fd int, req *ModeCardRes) error {
	return Ioctl(fd, iowr(cmdModeGetResources, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// GetPlaneResources issues DRM_IOCTL_MODE_GETPLANERESOURCES.
func GetPlaneResources(fd int, req *ModeGetPlaneRes) error {
	return Ioctl(fd, iowr(cmdModeGetPlaneResources, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// GetPlane issues DRM_IOCTL_MODE_GETPLANE.
func GetPlane(fd int, req *ModeGetPlane) error {
	return Ioctl(fd, iowr(cmdModeGetPlane, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// GetConnector issues DRM_IOCTL_MODE_GETCONNECTOR.
func GetConnector(fd int, req *ModeGetConnector) error {
	return Ioctl(fd, iowr(cmdModeGetConnector, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// GetCrtc issues DRM_IOCTL_MODE_GETCRTC.
func GetCrtc(fd int, req *ModeGetCrtc) error {
	return Ioctl(fd, iowr(cmdModeGetCRTC, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// SetCrtc issues DRM_IOCTL_MODE_SETCRTC.
func SetCrtc(fd int, req *ModeGetCrtc) error {
	return Ioctl(fd, iowr(cmdModeSetCRTC, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// GetEncoder issues DRM_IOCTL_MODE_GETENCODER.
func GetEncoder(fd int, req *ModeGetEncoder) error {
	return Ioctl(fd, iowr(cmdModeGetEncoder, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// ObjGetProperties issues DRM_IOCTL_MODE_OBJ_GETPROPERTIES.
func ObjGetProperties(fd int, req *ModeObjGetProperties) error {
	return Ioctl(fd, iowr(cmdModeObjGetProperties, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// ObjSetProperty issues DRM_IOCTL_MODE_OBJ_SETPROPERTY (used by the
// legacy DPMS path; atomic commits go through Atomic below).
func ObjSetProperty(fd int, objID, objType, propID uint32, value uint64) error {
	type objSetProperty struct {
		Value   uint64
		PropID  uint32
		ObjID   uint32
		ObjType uint32
		_       uint32
	}
	req := objSetProperty{Value: value, PropID: propID, ObjID: objID, ObjType: objType}
	return Ioctl(fd, iowr(cmdModeObjSetProperty, unsafe.Sizeof(req)), unsafe.Pointer(&req))
}

// GetProperty issues DRM_IOCTL_MODE_GETPROPERTY, resolving a property id
// to its human-readable name.
func GetProperty(fd int, req *ModeGetProperty) error {
	return Ioctl(fd, iowr(cmdModeGetProperty, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// GetBlob issues DRM_IOCTL_MODE_GETPROPBLOB.
func GetBlob(fd int, req *ModeGetBlob) error {
	return Ioctl(fd, iowr(cmdModeGetPropBlob, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// CreateBlob issues DRM_IOCTL_MODE_CREATEPROPBLOB.
func CreateBlob(fd int, req *ModeCreateBlob) error {
	return Ioctl(fd, iowr(cmdModeCreatePropBlob, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// DestroyBlob issues DRM_IOCTL_MODE_DESTROYPROPBLOB.
func DestroyBlob(fd int, blobID uint32) error {
	req := ModeDestroyBlob{BlobID: blobID}
	return Ioctl(fd, iowr(cmdModeDestroyPropBlob, unsafe.Sizeof(req)), unsafe.Pointer(&req))
}

// CreateDumb issues DRM_IOCTL_MODE_CREATE_DUMB.
func CreateDumb(fd int, req *ModeCreateDumb) error {
	return Ioctl(fd, iowr(cmdModeCreateDumb, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// MapDumb issues DRM_IOCTL_MODE_MAP_DUMB.
func MapDumb(fd int, req *ModeMapDumb) error {
	return Ioctl(fd, iowr(cmdModeMapDumb, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// DestroyDumb issues DRM_IOCTL_MODE_DESTROY_DUMB.
func DestroyDumb(fd int, handle uint32) error {
	req := ModeDestroyDumb{Handle: handle}
	return Ioctl(fd, iowr(cmdModeDestroyDumb, unsafe.Sizeof(req)), unsafe.Pointer(&req))
}

// AddFB2 issues DRM_IOCTL_MODE_ADDFB2 (with or without modifiers depending
// on whether the caller set the DRM_MODE_FB_MODIFIERS flag).
func AddFB2(fd int, req *ModeFBCmd2) error {
	return Ioctl(fd, iowr(cmdModeAddFB2, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// AddFB issues the legacy DRM_IOCTL_MODE_ADDFB (ARGB8888 only fallback).
func AddFB(fd int, req *ModeFBCmd) error {
	return Ioctl(fd, iowr(cmdModeAddFB, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// RmFB issues DRM_IOCTL_MODE_RMFB.
func RmFB(fd int, fbID uint32) error {
	req := ModeRmFB{FbID: fbID}
	return Ioctl(fd, iowr(cmdModeRmFB, unsafe.Sizeof(req)), unsafe.Pointer(&req))
}

// PrimeHandleToFD issues DRM_IOCTL_PRIME_HANDLE_TO_FD, exporting a GEM
// handle as a dmabuf fd.
func PrimeHandleToFD(fd int, handle uint32, flags uint32) (int, error) {
	req := PrimeHandle{Handle: handle, Flags: flags}
	if err := Ioctl(fd, iowr(cmdPrimeHandleToFD, unsafe.Sizeof(req)), unsafe.Pointer(&req)); err != nil {
		return -1, err
	}
	return int(req.FD), nil
}

// PrimeFDToHandle issues DRM_IOCTL_PRIME_FD_TO_HANDLE, importing a dmabuf fd
// as a GEM handle local to fd. Used to turn a GBM/dumb buffer's exported
// dmabuf (possibly allocated against a different fd, e.g. a render node)
// into a handle AddFB2 can reference on the scanout fd.
func PrimeFDToHandle(fd int, dmabufFD int) (uint32, error) {
	req := PrimeHandle{FD: int32(dmabufFD)}
	if err := Ioctl(fd, iowr(cmdPrimeFDToHandle, unsafe.Sizeof(req)), unsafe.Pointer(&req)); err != nil {
		return 0, err
	}
	return req.Handle, nil
}

// PageFlip issues DRM_IOCTL_MODE_PAGE_FLIP (legacy backend).
func PageFlip(fd int, req *ModeCrtcPageFlip) error {
	return Ioctl(fd, iowr(cmdModePageFlip, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// SetCursor issues DRM_IOCTL_MODE_CURSOR (legacy backend).
func SetCursor(fd int, req *ModeCursor) error {
	req.Flags = cursorFlagBO
	return Ioctl(fd, iowr(cmdModeCursor, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// MoveCursor issues DRM_IOCTL_MODE_CURSOR with the move-only flag set.
func MoveCursor(fd int, crtcID uint32, x, y int32) error {
	req := ModeCursor{Flags: cursorFlagMove, CrtcID: crtcID, X: x, Y: y}
	return Ioctl(fd, iowr(cmdModeCursor, unsafe.Sizeof(req)), unsafe.Pointer(&req))
}

// Atomic issues DRM_IOCTL_MODE_ATOMIC.
func Atomic(fd int, req *ModeAtomic) error {
	return Ioctl(fd, iowr(cmdModeAtomic, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// CreateLease issues DRM_IOCTL_MODE_CREATE_LEASE.
func CreateLease(fd int, req *ModeCreateLease) error {
	return Ioctl(fd, iowr(cmdModeCreateLease, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

// RevokeLease issues DRM_IOCTL_MODE_REVOKE_LEASE.
func RevokeLease(fd int, lesseeID uint32) error {
	req := ModeRevokeLease{LesseeID: lesseeID}
	return Ioctl(fd, iowr(cmdModeRevokeLease, unsafe.Sizeof(req)), unsafe.Pointer(&req))
}

// ListLessees issues DRM_IOCTL_MODE_LIST_LESSEES.
func ListLessees(fd int, req *ModeListLessees) error {
	return Ioctl(fd, iowr(cmdModeListLessees, unsafe.Sizeof(*req)), unsafe.Pointer(req))
}

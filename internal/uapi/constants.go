// Package uapi provides Linux kernel DRM/KMS UAPI definitions for
// go-drmoutput: ioctl numbers, flags, and wire structs, hand-ported from
// the kernel's <drm/drm.h> and <drm/drm_mode.h>.
package uapi

// DRM ioctl base and direction bits, matching asm-generic/ioctl.h.
const (
	drmIoctlBase = 'd'

	iocWrite     = 1
	iocRead      = 2
	iocSizeBits  = 14
	iocDirBits   = 2
	iocTypeBits  = 8
	iocNrBits    = 8
	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// ioctlEncode builds an ioctl request number the same way _IOWR does in C.
func ioctlEncode(dir, typ, nr, size uint32) uint32 {
	return (dir << iocDirShift) | (size << iocSizeShift) | (typ << iocTypeShift) | (nr << iocNrShift)
}

// iowr encodes a bidirectional DRM ioctl of the given command number and
// payload size.
func iowr(nr uint32, size uintptr) uint32 {
	return ioctlEncode(iocRead|iocWrite, drmIoctlBase, nr, uint32(size))
}

// DRM command numbers (drm.h DRM_IOCTL_* family, mode-setting subset).
const (
	cmdGetCap              = 0x0c
	cmdPrimeHandleToFD     = 0x2d
	cmdPrimeFDToHandle     = 0x2e
	cmdModeGetResources    = 0xA0
	cmdModeGetCRTC         = 0xA1
	cmdModeSetCRTC         = 0xA2
	cmdModeCursor          = 0xA3
	cmdModeGetEncoder      = 0xA6
	cmdModeGetConnector    = 0xA7
	cmdModeGetProperty     = 0xAA
	cmdModeGetPropBlob     = 0xAC
	cmdModeAddFB           = 0xAE
	cmdModeRmFB            = 0xAF
	cmdModePageFlip        = 0xB0
	cmdModeCreateDumb      = 0xB2
	cmdModeMapDumb         = 0xB3
	cmdModeDestroyDumb     = 0xB4
	cmdModeGetPlaneResources = 0xB5
	cmdModeGetPlane        = 0xB6
	cmdModeAddFB2          = 0xB8
	cmdModeObjGetProperties = 0xB9
	cmdModeObjSetProperty  = 0xBA
	cmdModeCursor2         = 0xBB
	cmdModeAtomic          = 0xBC
	cmdModeCreatePropBlob  = 0xBD
	cmdModeDestroyPropBlob = 0xBE
	cmdModeCreateLease     = 0xC6
	cmdModeListLessees     = 0xC7
	cmdModeGetLease        = 0xC8
	cmdModeRevokeLease     = 0xC9
)

// Capability tokens for DRM_IOCTL_GET_CAP.
const (
	CapDumbBuffer   = 0x1
	CapPrime        = 0x5
	CapPrimeImport  = 0x1
	CapPrimeExport  = 0x2
	CapCursorWidth  = 0x8
	CapCursorHeight = 0x9
	CapAddFB2Modifiers = 0x10
	CapAtomic       = 0x15
)

// Plane type enum values (DRM_PLANE_TYPE_*).
const (
	PlaneTypeOverlay = 0
	PlaneTypePrimary = 1
	PlaneTypeCursor  = 2
)

// DRM_MODE_OBJECT_* type tokens, used by ModeObjGetProperties/GetProperty
// to disambiguate which object a given id belongs to.
const (
	ObjectCRTC      = 0xcccccccc
	ObjectConnector = 0xc0c0c0c0
	ObjectPlane     = 0xeeeeeeee
	ObjectProperty  = 0xb0b0b0b0
	ObjectBlob      = 0xbbbbbbbb
)

// Connector status values (drm_mode_connector status field).
const (
	ConnectorStatusConnected    = 1
	ConnectorStatusDisconnected = 2
	ConnectorStatusUnknown      = 3
)

// Atomic commit flags (DRM_MODE_ATOMIC_* / DRM_MODE_PAGE_FLIP_EVENT).
const (
	FlagPageFlipEvent = 0x01
	FlagAllowModeset  = 0x0400
	FlagAtomicNonblock = 0x0200
	FlagAtomicTestOnly = 0x0100
)

// ModeConnectorProperty values used by the legacy DPMS path.
const (
	DPMSOn      = 0
	DPMSStandby = 1
	DPMSSuspend = 2
	DPMSOff     = 3
)

// drm_event.type values (drm.h), read back off the DRM fd after a
// PAGE_FLIP_EVENT-flagged commit.
const (
	EventVblank       = 0x01
	EventFlipComplete = 0x02
	EventCrtcSequence = 0x03
)

// FixedPoint16_16 converts an integer coordinate to the 16.16 fixed-point
// format the atomic API expects for plane SRC_* properties.
func FixedPoint16_16(v int) uint64 {
	return uint64(v) << 16
}

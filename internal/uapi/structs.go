package uapi

import "unsafe"

// GetCap mirrors struct drm_get_cap.
type GetCap struct {
	Capability uint64
	Value      uint64
}

var _ [16]byte = [unsafe.Sizeof(GetCap{})]byte{}

// ModeCardRes mirrors struct drm_mode_card_res: the top-level resource
// enumeration call. The *_ptr fields are userspace buffer addresses the
// kernel writes ids into; callers set count_* to the buffer capacity
// first, then re-issue with the returned counts.
type ModeCardRes struct {
	FbIDPtr        uint64
	CrtcIDPtr      uint64
	ConnectorIDPtr uint64
	EncoderIDPtr   uint64
	CountFbs       uint32
	CountCrtcs     uint32
	CountConnectors uint32
	CountEncoders  uint32
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
}

// ModeGetPlaneRes mirrors struct drm_mode_get_plane_res.
type ModeGetPlaneRes struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
	_           uint32 // kernel-side padding
}

// ModeGetPlane mirrors struct drm_mode_get_plane.
type ModeGetPlane struct {
	PlaneID          uint32
	CrtcID           uint32
	FbID             uint32
	PossibleCrtcs    uint32
	GammaSize        uint32
	CountFormatTypes uint32
	FormatTypePtr    uint64
}

// ModeGetConnector mirrors struct drm_mode_get_connector.
type ModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

// ModeGetEncoder mirrors struct drm_mode_get_encoder. Resolving a
// connector's possible CRTCs means walking its encoder ids through this
// call and OR-ing each one's PossibleCrtcs mask together.
type ModeGetEncoder struct {
	EncoderID     uint32
	EncoderType   uint32
	CrtcID        uint32
	PossibleCrtcs uint32
	PossibleClones uint32
}

// ModeGetCrtc mirrors struct drm_mode_crtc (used for both GETCRTC and
// SETCRTC; the FbID/mode fields are populated on GET, consumed on SET).
type ModeGetCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X, Y             uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             ModeInfo
}

// ModeInfo mirrors struct drm_mode_modeinfo.
type ModeInfo struct {
	Clock      uint32
	HDisplay   uint16
	HSyncStart uint16
	HSyncEnd   uint16
	HTotal     uint16
	HSkew      uint16
	VDisplay   uint16
	VSyncStart uint16
	VSyncEnd   uint16
	VTotal     uint16
	VScan      uint16
	VRefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

// ModeObjGetProperties mirrors struct drm_mode_obj_get_properties.
type ModeObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
}

// ModeGetProperty mirrors struct drm_mode_get_property: resolves a
// property id (as returned by ModeObjGetProperties) to its name and enum
// metadata.
type ModeGetProperty struct {
	ValuesPtr     uint64
	EnumBlobPtr   uint64
	PropID        uint32
	Flags         uint32
	Name          [32]byte
	CountValues   uint32
	CountEnumBlobs uint32
}

// ModeGetBlob mirrors struct drm_mode_get_blob.
type ModeGetBlob struct {
	BlobID uint32
	Length uint32
	Data   uint64
}

// ModeCreateBlob mirrors struct drm_mode_create_blob.
type ModeCreateBlob struct {
	Data   uint64
	Length uint32
	BlobID uint32
}

// ModeDestroyBlob mirrors struct drm_mode_destroy_blob.
type ModeDestroyBlob struct {
	BlobID uint32
}

// ModeCreateDumb mirrors struct drm_mode_create_dumb.
type ModeCreateDumb struct {
	Height uint32
	Width  uint32
	BPP    uint32
	Flags  uint32
	// Returned by the kernel:
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// ModeMapDumb mirrors struct drm_mode_map_dumb.
type ModeMapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

// ModeDestroyDumb mirrors struct drm_mode_destroy_dumb.
type ModeDestroyDumb struct {
	Handle uint32
}

// ModeFBCmd2 mirrors struct drm_mode_fb_cmd2 (ADDFB2/ADDFB2_WITH_MODIFIERS).
type ModeFBCmd2 struct {
	FbID      uint32
	Width     uint32
	Height    uint32
	PixelFormat uint32
	Flags     uint32
	Handles   [4]uint32
	Pitches   [4]uint32
	Offsets   [4]uint32
	Modifier  [4]uint64
}

// ModeFBCmd mirrors struct drm_mode_fb_cmd (legacy ADDFB, ARGB8888 only).
type ModeFBCmd struct {
	FbID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	BPP    uint32
	Depth  uint32
	Handle uint32
}

// ModeRmFB mirrors the __u32 fb_id payload DRM_IOCTL_MODE_RMFB expects.
type ModeRmFB struct {
	FbID uint32
}

// PrimeHandle mirrors struct drm_prime_handle (used for both
// PRIME_HANDLE_TO_FD and PRIME_FD_TO_HANDLE).
type PrimeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
	Pad    uint32
}

// ModeCrtcPageFlip mirrors struct drm_mode_crtc_page_flip.
type ModeCrtcPageFlip struct {
	CrtcID   uint32
	FbID     uint32
	Flags    uint32
	Reserved uint32
	UserData uint64
}

// ModeCursor mirrors struct drm_mode_cursor (legacy SETCURSOR/MOVECURSOR).
type ModeCursor struct {
	Flags  uint32
	CrtcID uint32
	X, Y   int32
	Width  uint32
	Height uint32
	Handle uint32
}

const (
	cursorFlagBO   = 1 << 0
	cursorFlagMove = 1 << 1
)

// ModeAtomic mirrors struct drm_mode_atomic: the batched property-set
// request at the heart of the atomic commit path.
type ModeAtomic struct {
	Flags         uint32
	CountObjs     uint32
	ObjsPtr       uint64
	CountPropsPtr uint64
	PropsPtr      uint64
	PropValuesPtr uint64
	Reserved      uint64
	UserData      uint64
}

// ModeCreateLease mirrors struct drm_mode_create_lease.
type ModeCreateLease struct {
	ObjectIDsPtr uint64
	ObjectCount  uint32
	Flags        uint32
	LesseeID     uint32
	FD           uint32
}

// ModeListLessees mirrors struct drm_mode_list_lessees.
type ModeListLessees struct {
	CountLessees uint32
	Pad          uint32
	LesseesPtr   uint64
}

// ModeRevokeLease mirrors struct drm_mode_revoke_lease.
type ModeRevokeLease struct {
	LesseeID uint32
}

// DrmEvent mirrors struct drm_event: the common header prefixing every
// record read back off the DRM fd (vblank, page-flip, sequence). Length
// includes this header, so a following read of Length-8 bytes yields the
// type-specific payload.
type DrmEvent struct {
	Type   uint32
	Length uint32
}

// DrmEventVblank mirrors struct drm_event_vblank, the payload for both
// EventVblank and EventFlipComplete. Sequence/CrtcID are only valid when
// the kernel reports DRM_CAP_CRTC_IN_VBLANK_EVENT support; UserData carries
// back whatever PageFlip/AtomicCommit staged via its UserData field.
type DrmEventVblank struct {
	Base       DrmEvent
	UserData   uint64
	TvSec      uint32
	TvUsec     uint32
	Sequence   uint32
	CrtcID     uint32
}

// Package inventory enumerates a DRM device's CRTCs, planes, and
// connectors into an immutable snapshot. Planes are sorted by type
// (overlay < primary < cursor) and split into three contiguous ranges so
// Device's pickPlane/pickCursorPlane can address each type's candidates by
// a plain index range instead of filtering on every lookup.
package inventory

import (
	"fmt"
	"sort"
	"unsafe"

	"github.com/tmarsh-oss/go-drmoutput/internal/propcache"
	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// CRTC is one kernel CRTC object with its resolved property ids.
type CRTC struct {
	ID    uint32
	Props propcache.IDs
}

// Plane is one kernel plane object: its kernel id, the bitmask of CRTC
// indices it may be attached to, its classified type, and resolved
// property ids.
type Plane struct {
	ID            uint32
	PossibleCRTCs uint32
	Type          uint32 // uapi.PlaneType{Overlay,Primary,Cursor}
	Props         propcache.IDs
}

// Connector is one kernel connector object. EncoderIDs are re-read fresh
// on every Enumerate call; Props are cached and compared
// against the required set from spec §4.1.
type Connector struct {
	ID           uint32
	EncoderIDs   []uint32
	Type         uint32
	TypeID       uint32
	Connected    bool
	MmWidth      uint32
	MmHeight     uint32
	Props        propcache.IDs
	PropValues   propcache.Values
}

// Inventory is the immutable snapshot produced by Enumerate. PrimaryPlanes,
// OverlayPlanes, and CursorPlanes are subslices of Planes; they share
// backing storage and must not be mutated independently.
type Inventory struct {
	CRTCs      []CRTC
	Planes     []Plane
	Connectors []Connector

	OverlayPlanes []Plane
	PrimaryPlanes []Plane
	CursorPlanes  []Plane
}

// requiredConnectorProps mirrors spec §4.1: device init fails if any
// connector is missing these.
var requiredConnectorProps = []string{"CRTC_ID"}
var requiredCRTCProps = []string{"MODE_ID", "ACTIVE"}
var requiredPlaneProps = []string{"FB_ID", "CRTC_ID", "SRC_X", "SRC_Y", "SRC_W", "SRC_H", "CRTC_X", "CRTC_Y", "CRTC_W", "CRTC_H"}

// Enumerate runs a full inventory pass: CRTCs, then planes (classified
// and sorted), then connectors. Re-run wholesale on every udev "change"
// event rather than patched incrementally (spec §4.2).
func Enumerate(fd int) (*Inventory, error) {
	crtcIDs, connectorIDs, err := getCardResources(fd)
	if err != nil {
		return nil, fmt.Errorf("inventory: get card resources: %w", err)
	}

	crtcs := make([]CRTC, 0, len(crtcIDs))
	for _, id := range crtcIDs {
		resolved, err := propcache.Query(fd, id, uapi.ObjectCRTC)
		if err != nil {
			return nil, fmt.Errorf("inventory: query crtc %d properties: %w", id, err)
		}
		if err := propcache.RequireAll(resolved.IDs, requiredCRTCProps); err != nil {
			return nil, fmt.Errorf("inventory: crtc %d: %w", id, err)
		}
		crtcs = append(crtcs, CRTC{ID: id, Props: resolved.IDs})
	}

	planes, err := enumeratePlanes(fd)
	if err != nil {
		return nil, err
	}

	connectors := make([]Connector, 0, len(connectorIDs))
	for _, id := range connectorIDs {
		conn, err := getConnector(fd, id)
		if err != nil {
			return nil, fmt.Errorf("inventory: get connector %d: %w", id, err)
		}
		resolved, err := propcache.Query(fd, id, uapi.ObjectConnector)
		if err != nil {
			return nil, fmt.Errorf("inventory: query connector %d properties: %w", id, err)
		}
		if err := propcache.RequireAll(resolved.IDs, requiredConnectorProps); err != nil {
			return nil, fmt.Errorf("inventory: connector %d: %w", id, err)
		}
		conn.Props = resolved.IDs
		conn.PropValues = resolved.Values
		connectors = append(connectors, *conn)
	}

	numOverlay, numPrimary := 0, 0
	for _, p := range planes {
		switch p.Type {
		case uapi.PlaneTypeOverlay:
			numOverlay++
		case uapi.PlaneTypePrimary:
			numPrimary++
		}
	}

	return &Inventory{
		CRTCs:         crtcs,
		Planes:        planes,
		Connectors:    connectors,
		OverlayPlanes: planes[:numOverlay],
		PrimaryPlanes: planes[numOverlay : numOverlay+numPrimary],
		CursorPlanes:  planes[numOverlay+numPrimary:],
	}, nil
}

// getCardResources issues DRM_IOCTL_MODE_GETRESOURCES twice: once to
// learn the counts, once with buffers sized to match.
func getCardResources(fd int) (crtcIDs, connectorIDs []uint32, err error) {
	var probe uapi.ModeCardRes
	if err := uapi.GetResources(fd, &probe); err != nil {
		return nil, nil, err
	}

	crtcIDs = make([]uint32, probe.CountCrtcs)
	connectorIDs = make([]uint32, probe.CountConnectors)
	req := uapi.ModeCardRes{
		CountCrtcs:      probe.CountCrtcs,
		CountConnectors: probe.CountConnectors,
	}
	if len(crtcIDs) > 0 {
		req.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcIDs[0])))
	}
	if len(connectorIDs) > 0 {
		req.ConnectorIDPtr = uint64(uintptr(unsafe.Pointer(&connectorIDs[0])))
	}
	if err := uapi.GetResources(fd, &req); err != nil {
		return nil, nil, err
	}
	return crtcIDs[:req.CountCrtcs], connectorIDs[:req.CountConnectors], nil
}

// enumeratePlanes lists every plane, classifies it via its "type"
// property, and sorts the result overlay < primary < cursor so callers
// can split it into three contiguous ranges.
func enumeratePlanes(fd int) ([]Plane, error) {
	var probeRes uapi.ModeGetPlaneRes
	if err := uapi.GetPlaneResources(fd, &probeRes); err != nil {
		return nil, fmt.Errorf("inventory: get plane resources: %w", err)
	}

	planeIDs := make([]uint32, probeRes.CountPlanes)
	req := uapi.ModeGetPlaneRes{CountPlanes: probeRes.CountPlanes}
	if len(planeIDs) > 0 {
		req.PlaneIDPtr = uint64(uintptr(unsafe.Pointer(&planeIDs[0])))
	}
	if err := uapi.GetPlaneResources(fd, &req); err != nil {
		return nil, fmt.Errorf("inventory: get plane resources: %w", err)
	}
	planeIDs = planeIDs[:req.CountPlanes]

	planes := make([]Plane, 0, len(planeIDs))
	for _, id := range planeIDs {
		var p uapi.ModeGetPlane
		p.PlaneID = id
		if err := uapi.GetPlane(fd, &p); err != nil {
			return nil, fmt.Errorf("inventory: get plane %d: %w", id, err)
		}

		resolved, err := propcache.Query(fd, id, uapi.ObjectPlane)
		if err != nil {
			return nil, fmt.Errorf("inventory: query plane %d properties: %w", id, err)
		}
		if err := propcache.RequireAll(resolved.IDs, requiredPlaneProps); err != nil {
			return nil, fmt.Errorf("inventory: plane %d: %w", id, err)
		}

		planes = append(planes, Plane{
			ID:            id,
			PossibleCRTCs: p.PossibleCrtcs,
			Type:          uint32(resolved.Values["type"]),
			Props:         resolved.IDs,
		})
	}

	sort.SliceStable(planes, func(i, j int) bool {
		return planes[i].Type < planes[j].Type
	})
	return planes, nil
}

// getConnector issues DRM_IOCTL_MODE_GETCONNECTOR twice, the second time
// with an encoder-id buffer sized to the first call's reported count.
// Modes are intentionally not read here: mode enumeration is driven by
// the output state machine at set_mode time, not at inventory time.
func getConnector(fd int, id uint32) (*Connector, error) {
	probe := uapi.ModeGetConnector{ConnectorID: id}
	if err := uapi.GetConnector(fd, &probe); err != nil {
		return nil, err
	}

	encoderIDs := make([]uint32, probe.CountEncoders)
	req := uapi.ModeGetConnector{
		ConnectorID:   id,
		CountEncoders: probe.CountEncoders,
	}
	if len(encoderIDs) > 0 {
		req.EncodersPtr = uint64(uintptr(unsafe.Pointer(&encoderIDs[0])))
	}
	if err := uapi.GetConnector(fd, &req); err != nil {
		return nil, err
	}

	return &Connector{
		ID:         id,
		EncoderIDs: encoderIDs[:req.CountEncoders],
		Type:       req.ConnectorType,
		TypeID:     req.ConnectorTypeID,
		Connected:  req.Connection == uapi.ConnectorStatusConnected,
		MmWidth:    req.MmWidth,
		MmHeight:   req.MmHeight,
	}, nil
}

// PossibleCRTCs resolves a connector's encoder ids to the bitmask of CRTC
// indices it may attach to, the same walk drm.c's scan_connectors performs
// (drmModeGetEncoder per encoder id, OR-ing each PossibleCrtcs together).
func PossibleCRTCs(fd int, encoderIDs []uint32) (uint32, error) {
	var mask uint32
	for _, id := range encoderIDs {
		req := uapi.ModeGetEncoder{EncoderID: id}
		if err := uapi.GetEncoder(fd, &req); err != nil {
			return 0, fmt.Errorf("inventory: get encoder %d: %w", id, err)
		}
		mask |= req.PossibleCrtcs
	}
	return mask, nil
}

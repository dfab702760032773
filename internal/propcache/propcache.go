// Package propcache resolves DRM property names to their per-object
// numeric ids and reads blob-valued properties (EDID, mode blobs). Every
// object (CRTC, connector, plane) in the inventory queries the kernel
// exactly once at discovery time; the resolved ids are cached on the
// owning object for the rest of its lifetime.
package propcache

import (
	"fmt"
	"unsafe"

	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// IDs maps a resolved property name to its kernel id for one object.
type IDs map[string]uint32

// Values maps a resolved property name to the value the kernel reported
// for it at query time (enum/range properties only; blob properties
// report the blob id here, not its contents).
type Values map[string]uint64

// Resolved holds both the id and value maps produced by Query.
type Resolved struct {
	IDs    IDs
	Values Values
}

// Query issues DRM_IOCTL_MODE_OBJ_GETPROPERTIES followed by one
// DRM_IOCTL_MODE_GETPROPERTY per returned id, building a name-indexed
// view of an object's properties. objType is one of uapi.Object*.
func Query(fd int, objID uint32, objType uint32) (*Resolved, error) {
	var count uint32
	req := uapi.ModeObjGetProperties{ObjID: objID, ObjType: objType}
	if err := uapi.ObjGetProperties(fd, &req); err != nil {
		return nil, fmt.Errorf("propcache: get properties for object %d: %w", objID, err)
	}
	count = req.CountProps
	if count == 0 {
		return &Resolved{IDs: IDs{}, Values: Values{}}, nil
	}

	propIDs := make([]uint32, count)
	propValues := make([]uint64, count)
	req = uapi.ModeObjGetProperties{
		ObjID:         objID,
		ObjType:       objType,
		CountProps:    count,
		PropsPtr:      uint64(uintptr(unsafe.Pointer(&propIDs[0]))),
		PropValuesPtr: uint64(uintptr(unsafe.Pointer(&propValues[0]))),
	}
	if err := uapi.ObjGetProperties(fd, &req); err != nil {
		return nil, fmt.Errorf("propcache: get properties for object %d: %w", objID, err)
	}

	ids := make(IDs, count)
	values := make(Values, count)
	for i := uint32(0); i < req.CountProps && i < count; i++ {
		name, err := propertyName(fd, propIDs[i])
		if err != nil {
			return nil, fmt.Errorf("propcache: resolve name for property %d on object %d: %w", propIDs[i], objID, err)
		}
		ids[name] = propIDs[i]
		values[name] = propValues[i]
	}
	return &Resolved{IDs: ids, Values: values}, nil
}

// propertyName issues DRM_IOCTL_MODE_GETPROPERTY and returns the
// NUL-terminated name field as a Go string.
func propertyName(fd int, propID uint32) (string, error) {
	req := uapi.ModeGetProperty{PropID: propID}
	if err := uapi.GetProperty(fd, &req); err != nil {
		return "", err
	}
	return cString(req.Name[:]), nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// RequireAll checks that every name in required resolved to an id,
// returning the first missing name as an error. Device initialisation
// aborts when a required property is absent (spec §4.1).
func RequireAll(ids IDs, required []string) error {
	for _, name := range required {
		if _, ok := ids[name]; !ok {
			return fmt.Errorf("propcache: missing required property %q", name)
		}
	}
	return nil
}

// ReadBlob issues DRM_IOCTL_MODE_GETPROPBLOB twice: once to learn the
// blob's length, once to read its contents into a freshly sized buffer.
func ReadBlob(fd int, blobID uint32) ([]byte, error) {
	if blobID == 0 {
		return nil, nil
	}

	size := uapi.ModeGetBlob{BlobID: blobID}
	if err := uapi.GetBlob(fd, &size); err != nil {
		return nil, fmt.Errorf("propcache: size blob %d: %w", blobID, err)
	}
	if size.Length == 0 {
		return nil, nil
	}

	data := make([]byte, size.Length)
	req := uapi.ModeGetBlob{
		BlobID: blobID,
		Length: size.Length,
		Data:   uint64(uintptr(unsafe.Pointer(&data[0]))),
	}
	if err := uapi.GetBlob(fd, &req); err != nil {
		return nil, fmt.Errorf("propcache: read blob %d: %w", blobID, err)
	}
	return data, nil
}

package kms

import (
	"unsafe"

	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// linkStatusGood is DRM_MODE_LINK_STATUS_GOOD.
const linkStatusGood = 0

// atomicBuilder batches properties for one DRM_IOCTL_MODE_ATOMIC call,
// grouping them by object the way drmModeAtomicReq does internally.
type atomicBuilder struct {
	objs       []uint32
	countProps []uint32
	props      []uint32
	values     []uint64
}

func (a *atomicBuilder) add(objID, propID uint32, value uint64) {
	for i, id := range a.objs {
		if id == objID {
			a.countProps[i]++
			a.props = append(a.props, propID)
			a.values = append(a.values, value)
			return
		}
	}
	a.objs = append(a.objs, objID)
	a.countProps = append(a.countProps, 1)
	a.props = append(a.props, propID)
	a.values = append(a.values, value)
}

func (a *atomicBuilder) commit(fd int, flags uint32) error {
	if len(a.objs) == 0 {
		return nil
	}
	req := uapi.ModeAtomic{
		Flags:         flags,
		CountObjs:     uint32(len(a.objs)),
		ObjsPtr:       uint64(uintptr(unsafe.Pointer(&a.objs[0]))),
		CountPropsPtr: uint64(uintptr(unsafe.Pointer(&a.countProps[0]))),
		PropsPtr:      uint64(uintptr(unsafe.Pointer(&a.props[0]))),
		PropValuesPtr: uint64(uintptr(unsafe.Pointer(&a.values[0]))),
	}
	return uapi.Atomic(fd, &req)
}

// addPlaneProps stages a plane's full geometry, mirroring atomic.c's
// set_plane_props: src_* are 16.16 fixed point, crtc_x/y default to 0
// unless the caller overrides them (the cursor path does).
func addPlaneProps(a *atomicBuilder, crtcID uint32, p *PlaneCommit, props PlanePropIDs, setCrtcXY bool) {
	a.add(p.PlaneID, props.SrcX, 0)
	a.add(p.PlaneID, props.SrcY, 0)
	a.add(p.PlaneID, props.SrcW, uapi.FixedPoint16_16(int(p.SrcW)))
	a.add(p.PlaneID, props.SrcH, uapi.FixedPoint16_16(int(p.SrcH)))
	a.add(p.PlaneID, props.CrtcW, uint64(p.CrtcW))
	a.add(p.PlaneID, props.CrtcH, uint64(p.CrtcH))
	a.add(p.PlaneID, props.FBID, uint64(p.FBID))
	a.add(p.PlaneID, props.CRTCID, uint64(crtcID))
	if setCrtcXY {
		a.add(p.PlaneID, props.CrtcX, uint64(uint32(p.CrtcX)))
		a.add(p.PlaneID, props.CrtcY, uint64(uint32(p.CrtcY)))
	}
}

func disablePlane(a *atomicBuilder, planeID uint32, props PlanePropIDs) {
	a.add(planeID, props.FBID, 0)
	a.add(planeID, props.CRTCID, 0)
}

func createModeBlob(fd int, mode *uapi.ModeInfo) (uint32, error) {
	req := uapi.ModeCreateBlob{
		Data:   uint64(uintptr(unsafe.Pointer(mode))),
		Length: uint32(unsafe.Sizeof(*mode)),
	}
	if err := uapi.CreateBlob(fd, &req); err != nil {
		return 0, err
	}
	return req.BlobID, nil
}

// commitBlob and rollbackBlob apply libliftoff.c's mode-blob recycling
// policy uniformly (spec.md §9's third Open Question): on success, the
// previously-committed blob is destroyed and next becomes current; on
// failure, only a newly-allocated next is destroyed and current is left
// untouched.
func commitBlob(fd int, current *uint32, next uint32) {
	if *current == next {
		return
	}
	if *current != 0 {
		_ = uapi.DestroyBlob(fd, *current)
	}
	*current = next
}

func rollbackBlob(fd int, current uint32, next uint32) {
	if current == next {
		return
	}
	if next != 0 {
		_ = uapi.DestroyBlob(fd, next)
	}
}

func (b *Backend) commitAtomic(req *CommitRequest, testOnly bool) error {
	flags := uint32(0)
	if testOnly {
		flags |= uapi.FlagAtomicTestOnly
	}
	if req.Modeset {
		flags |= uapi.FlagAllowModeset
	} else if !testOnly {
		flags |= uapi.FlagAtomicNonblock
	}
	if !testOnly {
		flags |= uapi.FlagPageFlipEvent
	}

	current := b.modeBlob[req.CRTCID]
	next := current
	if req.Modeset {
		if req.Active {
			blobID, err := createModeBlob(b.fd, &req.Mode)
			if err != nil {
				return err
			}
			next = blobID
		} else {
			next = 0
		}
	}

	a := &atomicBuilder{}

	crtcIDIfActive := uint32(0)
	if req.Active {
		crtcIDIfActive = req.CRTCID
	}
	a.add(req.ConnectorID, req.ConnProps.CRTCID, uint64(crtcIDIfActive))
	if req.Modeset && req.ConnProps.LinkStatus != 0 {
		a.add(req.ConnectorID, req.ConnProps.LinkStatus, linkStatusGood)
	}
	a.add(req.CRTCID, req.CRTCProps.ModeID, uint64(next))
	activeVal := uint64(0)
	if req.Active {
		activeVal = 1
	}
	a.add(req.CRTCID, req.CRTCProps.Active, activeVal)

	if req.Active {
		if req.Primary != nil {
			addPlaneProps(a, req.CRTCID, req.Primary, req.PrimaryProps, true)
		}
		if req.Cursor != nil && !req.CursorIsFake {
			addPlaneProps(a, req.CRTCID, req.Cursor, req.CursorProps, true)
		}
	} else {
		if req.Primary != nil {
			disablePlane(a, req.Primary.PlaneID, req.PrimaryProps)
		}
		if req.Cursor != nil && !req.CursorIsFake {
			disablePlane(a, req.Cursor.PlaneID, req.CursorProps)
		}
	}

	err := a.commit(b.fd, flags)
	if err == nil && !testOnly {
		commitBlob(b.fd, &current, next)
		b.modeBlob[req.CRTCID] = current
	} else if req.Modeset {
		rollbackBlob(b.fd, current, next)
	}
	return err
}

func (b *Backend) connEnableAtomic(req *ConnEnableRequest) error {
	a := &atomicBuilder{}
	activeVal := uint64(0)
	if req.Enable {
		activeVal = 1
	}
	a.add(req.CRTCID, req.CRTCProps.Active, activeVal)
	if req.Enable {
		a.add(req.ConnectorID, req.ConnProps.CRTCID, uint64(req.CRTCID))
		a.add(req.CRTCID, req.CRTCProps.ModeID, uint64(b.modeBlob[req.CRTCID]))
	} else {
		a.add(req.ConnectorID, req.ConnProps.CRTCID, 0)
		a.add(req.CRTCID, req.CRTCProps.ModeID, 0)
	}
	return a.commit(b.fd, uapi.FlagAllowModeset)
}

func (b *Backend) setCursorAtomic(req *CursorRequest) error {
	a := &atomicBuilder{}
	if req.Clear {
		disablePlane(a, req.PlaneID, req.Props)
	} else {
		plane := &PlaneCommit{
			PlaneID: req.PlaneID,
			FBID:    req.FBID,
			SrcW:    req.Width,
			SrcH:    req.Height,
			CrtcW:   req.Width,
			CrtcH:   req.Height,
		}
		addPlaneProps(a, req.CRTCID, plane, req.Props, false)
	}
	return a.commit(b.fd, 0)
}

func (b *Backend) moveCursorAtomic(req *CursorMoveRequest) error {
	a := &atomicBuilder{}
	a.add(req.PlaneID, req.Props.CrtcX, uint64(uint32(req.X)))
	a.add(req.PlaneID, req.Props.CrtcY, uint64(uint32(req.Y)))
	return a.commit(b.fd, 0)
}

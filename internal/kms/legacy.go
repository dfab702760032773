package kms

import (
	"unsafe"

	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// commitLegacy applies a staged configuration via SETCRTC + PAGE_FLIP.
// Legacy KMS has no kernel-side validation step equivalent to an atomic
// TEST_ONLY commit, so a test here is optimistic: it always succeeds and
// lets the real commit surface any failure.
func (b *Backend) commitLegacy(req *CommitRequest, testOnly bool) error {
	if testOnly {
		return nil
	}

	if req.Modeset {
		setReq := uapi.ModeGetCrtc{CrtcID: req.CRTCID}
		if req.Active {
			setReq.ModeValid = 1
			setReq.Mode = req.Mode
			connectorID := req.ConnectorID
			setReq.SetConnectorsPtr = uint64(uintptr(unsafe.Pointer(&connectorID)))
			setReq.CountConnectors = 1
			if req.Primary != nil {
				setReq.FbID = req.Primary.FBID
			}
		}
		if err := uapi.SetCrtc(b.fd, &setReq); err != nil {
			return err
		}
	}

	if req.Active && req.Primary != nil {
		pf := uapi.ModeCrtcPageFlip{
			CrtcID: req.CRTCID,
			FbID:   req.Primary.FBID,
			Flags:  uapi.FlagPageFlipEvent,
		}
		if err := uapi.PageFlip(b.fd, &pf); err != nil {
			return err
		}
	}

	return nil
}

// connEnableLegacy sets DPMS on the connector and, on disable, clears the
// CRTC with a NULL buffer (legacy.c: legacy_conn_enable).
func (b *Backend) connEnableLegacy(req *ConnEnableRequest) error {
	dpms := uint64(uapi.DPMSOn)
	if !req.Enable {
		dpms = uapi.DPMSOff
	}
	err := uapi.ObjSetProperty(b.fd, req.ConnectorID, uapi.ObjectConnector, req.ConnProps.DPMS, dpms)

	if !req.Enable {
		_ = uapi.SetCrtc(b.fd, &uapi.ModeGetCrtc{CrtcID: req.CRTCID})
	}
	return err
}

// setCursorLegacy handles both genuinely-legacy backends and atomic
// backends whose cursor plane is a fake (id 0) plane routed through the
// legacy cursor ioctls (atomic.c's fallback for fake planes).
func (b *Backend) setCursorLegacy(req *CursorRequest) error {
	if req.Clear {
		return uapi.SetCursor(b.fd, &uapi.ModeCursor{CrtcID: req.CRTCID, Width: 0, Height: 0})
	}
	return uapi.SetCursor(b.fd, &uapi.ModeCursor{
		CrtcID: req.CRTCID,
		Handle: req.Handle,
		Width:  req.Width,
		Height: req.Height,
	})
}

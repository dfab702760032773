package drmoutput

import (
	"testing"

	"github.com/tmarsh-oss/go-drmoutput/internal/inventory"
	"github.com/tmarsh-oss/go-drmoutput/internal/propcache"
)

// Open/Close and reconcile are not exercised here: both require a real DRM
// fd (GETRESOURCES, GETENCODER, AddFB2 and friends), the same boundary
// session_test.go draws around the logind handshake. What's covered is the
// pure bookkeeping: plane selection and property-id extraction from an
// inventory snapshot.

func TestPickPlaneReturnsFirstPlaneMatchingCRTCIndex(t *testing.T) {
	d := &Device{}
	planes := []inventory.Plane{
		{ID: 10, PossibleCRTCs: 0b0001, Type: 0},
		{ID: 11, PossibleCRTCs: 0b0010, Type: 0},
	}

	id, _ := d.pickPlane(planes, 0, 1)
	if id != 11 {
		t.Fatalf("pickPlane crtcIdx=1 = %d, want 11", id)
	}

	id, _ = d.pickPlane(planes, 0, 0)
	if id != 10 {
		t.Fatalf("pickPlane crtcIdx=0 = %d, want 10", id)
	}
}

func TestPickPlaneReturnsZeroWhenNoneMatch(t *testing.T) {
	d := &Device{}
	planes := []inventory.Plane{{ID: 10, PossibleCRTCs: 0b0001}}

	id, props := d.pickPlane(planes, 0, 2)
	if id != 0 {
		t.Fatalf("pickPlane = %d, want 0", id)
	}
	if props.FBID != 0 {
		t.Fatalf("expected zero-value PlanePropIDs, got %+v", props)
	}
}

func TestPickCursorPlaneFakesWhenNoDedicatedPlane(t *testing.T) {
	d := &Device{}
	id, _, isFake := d.pickCursorPlane(nil, 0, 0)
	if id != 0 || !isFake {
		t.Fatalf("pickCursorPlane with no planes = (%d, fake=%v), want (0, true)", id, isFake)
	}
}

func TestPickCursorPlaneUsesDedicatedPlaneWhenAvailable(t *testing.T) {
	d := &Device{}
	planes := []inventory.Plane{{ID: 22, PossibleCRTCs: 0b0001}}
	id, _, isFake := d.pickCursorPlane(planes, 0, 0)
	if id != 22 || isFake {
		t.Fatalf("pickCursorPlane = (%d, fake=%v), want (22, false)", id, isFake)
	}
}

func TestPlanePropIDsExtractsEveryField(t *testing.T) {
	p := inventory.Plane{
		Props: propcache.IDs{
			"FB_ID": 1, "CRTC_ID": 2,
			"SRC_X": 3, "SRC_Y": 4, "SRC_W": 5, "SRC_H": 6,
			"CRTC_X": 7, "CRTC_Y": 8, "CRTC_W": 9, "CRTC_H": 10,
		},
	}
	props := planePropIDs(p)
	if props.FBID != 1 || props.CRTCID != 2 || props.SrcX != 3 || props.SrcY != 4 ||
		props.SrcW != 5 || props.SrcH != 6 || props.CrtcX != 7 || props.CrtcY != 8 ||
		props.CrtcW != 9 || props.CrtcH != 10 {
		t.Fatalf("planePropIDs = %+v, want all fields populated 1..10", props)
	}
}

func TestConnectorNameIncludesTypeAndTypeID(t *testing.T) {
	name := connectorName(inventory.Connector{Type: 11, TypeID: 1})
	if name == "" {
		t.Fatalf("connectorName returned empty string")
	}
}

package inventory

import (
	"sort"
	"testing"

	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

func TestPlaneSortOrdering(t *testing.T) {
	planes := []Plane{
		{ID: 3, Type: uapi.PlaneTypeCursor},
		{ID: 1, Type: uapi.PlaneTypeOverlay},
		{ID: 2, Type: uapi.PlaneTypePrimary},
		{ID: 4, Type: uapi.PlaneTypeOverlay},
	}

	sort.SliceStable(planes, func(i, j int) bool {
		return planes[i].Type < planes[j].Type
	})

	want := []uint32{1, 4, 2, 3}
	for i, id := range want {
		if planes[i].ID != id {
			t.Fatalf("plane[%d].ID = %d, want %d (got order %v)", i, planes[i].ID, id, planes)
		}
	}
}

func TestPlaneSortIsStableWithinType(t *testing.T) {
	planes := []Plane{
		{ID: 10, Type: uapi.PlaneTypeOverlay},
		{ID: 11, Type: uapi.PlaneTypeOverlay},
		{ID: 12, Type: uapi.PlaneTypeOverlay},
	}
	sort.SliceStable(planes, func(i, j int) bool {
		return planes[i].Type < planes[j].Type
	})
	if planes[0].ID != 10 || planes[1].ID != 11 || planes[2].ID != 12 {
		t.Errorf("stable sort reordered same-type planes: %v", planes)
	}
}

func TestContiguousSplitByType(t *testing.T) {
	planes := []Plane{
		{ID: 1, Type: uapi.PlaneTypeOverlay},
		{ID: 2, Type: uapi.PlaneTypeOverlay},
		{ID: 3, Type: uapi.PlaneTypePrimary},
		{ID: 4, Type: uapi.PlaneTypeCursor},
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

	inv := &Inventory{
		Planes:        planes,
		OverlayPlanes: planes[:numOverlay],
		PrimaryPlanes: planes[numOverlay : numOverlay+numPrimary],
		CursorPlanes:  planes[numOverlay+numPrimary:],
	}

	if len(inv.OverlayPlanes) != 2 || inv.OverlayPlanes[0].ID != 1 || inv.OverlayPlanes[1].ID != 2 {
		t.Errorf("unexpected overlay planes: %v", inv.OverlayPlanes)
	}
	if len(inv.PrimaryPlanes) != 1 || inv.PrimaryPlanes[0].ID != 3 {
		t.Errorf("unexpected primary planes: %v", inv.PrimaryPlanes)
	}
	if len(inv.CursorPlanes) != 1 || inv.CursorPlanes[0].ID != 4 {
		t.Errorf("unexpected cursor planes: %v", inv.CursorPlanes)
	}
}

func TestConnectorConnectedFlag(t *testing.T) {
	tests := []struct {
		status uint32
		want   bool
	}{
		{uapi.ConnectorStatusConnected, true},
		{uapi.ConnectorStatusDisconnected, false},
		{uapi.ConnectorStatusUnknown, false},
	}
	for _, tt := range tests {
		got := tt.status == uapi.ConnectorStatusConnected
		if got != tt.want {
			t.Errorf("status %d: connected = %v, want %v", tt.status, got, tt.want)
		}
	}
}

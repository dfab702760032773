package session

import "testing"

func TestLeaseDeviceGrantWithdrawsAdvertisedConnectors(t *testing.T) {
	d := NewLeaseDevice(-1, []uint32{10, 11, 12})

	advertised := d.Advertised()
	if len(advertised) != 3 {
		t.Fatalf("Advertised() = %v, want 3 entries", advertised)
	}

	// Grant will fail the CreateLease ioctl against fd -1, but bookkeeping
	// (advertised-set validation) runs before the ioctl.
	if _, err := d.Grant([]uint32{99}, nil); err == nil {
		t.Fatalf("expected Grant to fail for an unadvertised connector")
	}
}

func TestLeaseDeviceWithdrawAndReadvertise(t *testing.T) {
	d := NewLeaseDevice(-1, []uint32{1, 2})
	d.Withdraw(1)

	advertised := d.Advertised()
	if len(advertised) != 1 || advertised[0] != 2 {
		t.Fatalf("Advertised() = %v, want only [2]", advertised)
	}

	d.Readvertise(1)
	advertised = d.Advertised()
	if len(advertised) != 2 {
		t.Fatalf("Advertised() = %v, want 2 entries after Readvertise", advertised)
	}
}

func TestLeaseDeviceGrantRejectsEmptyObjectSet(t *testing.T) {
	d := NewLeaseDevice(-1, nil)
	if _, err := d.Grant(nil, nil); err == nil {
		t.Fatalf("expected Grant with no objects to fail")
	}
}

func TestLeaseDeviceRevokeUnknownLesseeFails(t *testing.T) {
	d := NewLeaseDevice(-1, []uint32{1})
	if err := d.Revoke(999); err == nil {
		t.Fatalf("expected Revoke of an unknown lessee id to fail")
	}
}

func TestLeaseDeviceRevokedByKernelReadvertisesConnectors(t *testing.T) {
	d := NewLeaseDevice(-1, []uint32{5})
	d.leases[42] = &Lease{FD: -1, LesseeID: 42, ConnectorIDs: []uint32{5}}
	d.advertised = map[uint32]bool{}

	d.RevokedByKernel(42)

	advertised := d.Advertised()
	if len(advertised) != 1 || advertised[0] != 5 {
		t.Fatalf("Advertised() = %v, want [5] after RevokedByKernel", advertised)
	}
	if _, ok := d.leases[42]; ok {
		t.Fatalf("lease 42 should be removed from bookkeeping")
	}
}

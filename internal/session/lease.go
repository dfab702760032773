package session

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// Lease is an active DRM lease: a sub-fd carved out of the primary device
// via drmModeCreateLease, exposing only the leased connectors/CRTCs/planes
// to whatever holds the fd. Grounded on spec §4.10's lease sub-protocol,
// which has no original_source analogue (wlroots predates drm leasing).
type Lease struct {
	FD          int
	LesseeID    uint32
	ConnectorIDs []uint32
}

// LeaseDevice tracks which connectors are currently withdrawn from normal
// use because a lease holds them, the advertise/withdraw bookkeeping spec
// §4.10 describes for a zwp_drm_lease_device_v1-shaped contract.
type LeaseDevice struct {
	mu         sync.Mutex
	parentFD   int
	advertised map[uint32]bool
	leases     map[uint32]*Lease // keyed by LesseeID
}

// NewLeaseDevice creates a lease device over parentFD, initially advertising
// every connector in connectorIDs.
func NewLeaseDevice(parentFD int, connectorIDs []uint32) *LeaseDevice {
	d := &LeaseDevice{
		parentFD:   parentFD,
		advertised: make(map[uint32]bool, len(connectorIDs)),
		leases:     make(map[uint32]*Lease),
	}
	for _, id := range connectorIDs {
		d.advertised[id] = true
	}
	return d
}

// Advertised returns the connector ids currently available for lease.
func (d *LeaseDevice) Advertised() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uint32, 0, len(d.advertised))
	for id, ok := range d.advertised {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Withdraw removes a connector from the advertised set, e.g. because
// normal output matching (C3) wants to use it again.
func (d *LeaseDevice) Withdraw(connectorID uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.advertised, connectorID)
}

// Readvertise adds a connector back to the advertised set, e.g. after a
// lease referencing it is revoked.
func (d *LeaseDevice) Readvertise(connectorID uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advertised[connectorID] = true
}

// Grant carves a lease out of the parent fd covering connectorIDs and
// crtcIDs, withdrawing the connectors from normal use. On success the
// returned Lease owns a new fd the caller hands to the external client.
func (d *LeaseDevice) Grant(connectorIDs, crtcIDs []uint32) (*Lease, error) {
	d.mu.Lock()
	for _, id := range connectorIDs {
		if !d.advertised[id] {
			d.mu.Unlock()
			return nil, fmt.Errorf("session: connector %d is not advertised for lease", id)
		}
	}
	d.mu.Unlock()

	objs := make([]uint32, 0, len(connectorIDs)+len(crtcIDs))
	objs = append(objs, connectorIDs...)
	objs = append(objs, crtcIDs...)
	if len(objs) == 0 {
		return nil, fmt.Errorf("session: lease requires at least one object")
	}

	req := uapi.ModeCreateLease{
		ObjectIDsPtr: uint64(uintptr(unsafe.Pointer(&objs[0]))),
		ObjectCount:  uint32(len(objs)),
	}
	if err := uapi.CreateLease(d.parentFD, &req); err != nil {
		return nil, fmt.Errorf("session: CreateLease: %w", err)
	}

	lease := &Lease{
		FD:          int(req.FD),
		LesseeID:    req.LesseeID,
		ConnectorIDs: append([]uint32(nil), connectorIDs...),
	}

	d.mu.Lock()
	for _, id := range connectorIDs {
		delete(d.advertised, id)
	}
	d.leases[lease.LesseeID] = lease
	d.mu.Unlock()

	return lease, nil
}

// Revoke tears a lease down: closes its fd, asks the kernel to revoke the
// lessee, and re-advertises its connectors for normal use.
func (d *LeaseDevice) Revoke(lesseeID uint32) error {
	d.mu.Lock()
	lease, ok := d.leases[lesseeID]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("session: no active lease %d", lesseeID)
	}
	delete(d.leases, lesseeID)
	d.mu.Unlock()

	err := uapi.RevokeLease(d.parentFD, lesseeID)
	_ = unix.Close(lease.FD)

	d.mu.Lock()
	for _, id := range lease.ConnectorIDs {
		d.advertised[id] = true
	}
	d.mu.Unlock()

	if err != nil {
		return fmt.Errorf("session: RevokeLease: %w", err)
	}
	return nil
}

// RevokedByKernel tears down bookkeeping for a lease the kernel has already
// revoked out-of-band (e.g. a lessee crashed), invoked from the event pump
// per spec §4.10 ("a revoked-by-kernel callback from C9 also tears the
// lease down"). Unlike Revoke it does not re-issue DRM_IOCTL_MODE_REVOKE_LEASE,
// since the kernel has already done so.
func (d *LeaseDevice) RevokedByKernel(lesseeID uint32) {
	d.mu.Lock()
	lease, ok := d.leases[lesseeID]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.leases, lesseeID)
	for _, id := range lease.ConnectorIDs {
		d.advertised[id] = true
	}
	d.mu.Unlock()

	_ = unix.Close(lease.FD)
}

// ListLessees returns the kernel's current view of active lessee ids for
// the parent fd, used to reconcile local bookkeeping after a reconnect.
func (d *LeaseDevice) ListLessees() ([]uint32, error) {
	var probe uapi.ModeListLessees
	if err := uapi.ListLessees(d.parentFD, &probe); err != nil {
		return nil, fmt.Errorf("session: ListLessees (probe): %w", err)
	}
	if probe.CountLessees == 0 {
		return nil, nil
	}
	ids := make([]uint32, probe.CountLessees)
	req := uapi.ModeListLessees{
		CountLessees: probe.CountLessees,
		LesseesPtr:   uint64(uintptr(unsafe.Pointer(&ids[0]))),
	}
	if err := uapi.ListLessees(d.parentFD, &req); err != nil {
		return nil, fmt.Errorf("session: ListLessees: %w", err)
	}
	return ids[:req.CountLessees], nil
}

package drmoutput

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tmarsh-oss/go-drmoutput/internal/allocator"
	"github.com/tmarsh-oss/go-drmoutput/internal/constants"
	"github.com/tmarsh-oss/go-drmoutput/internal/eventpump"
	"github.com/tmarsh-oss/go-drmoutput/internal/inventory"
	"github.com/tmarsh-oss/go-drmoutput/internal/kms"
	"github.com/tmarsh-oss/go-drmoutput/internal/logging"
	"github.com/tmarsh-oss/go-drmoutput/internal/matcher"
	"github.com/tmarsh-oss/go-drmoutput/internal/session"
	"github.com/tmarsh-oss/go-drmoutput/internal/swapchain"
	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// DeviceParams configures Open. Backend and renderer capabilities feed
// allocator.SelectKind (spec §4.5); a caller with its own GPU renderer
// should set RendererCapabilities to what that renderer can actually
// consume. Left nil, Open assumes the renderer accepts exactly the
// capabilities the backend reports.
type DeviceParams struct {
	// DevicePath is the /dev/dri/cardN node to open. Empty means resolve
	// the seat's boot-VGA GPU via eventpump.FindPrimaryGPU.
	DevicePath string

	// Seat scopes device discovery when DevicePath is empty.
	Seat string

	// UseSession routes fd acquisition through logind (TakeDevice) and
	// wires pause/resume notifications; false opens DevicePath directly,
	// appropriate for a compositor already running under its own VT with
	// no session manager (spec §4.10 is then simply not exercised).
	UseSession bool

	Format    uint32
	Modifiers []uint64

	RendererCapabilities *allocator.Capabilities
}

// Options holds cross-cutting dependencies for Open.
type Options struct {
	Context context.Context
	Logger  *logging.Logger

	// Observer receives every commit/page-flip/allocation as it happens,
	// in addition to the built-in Metrics counters Device always keeps.
	// Nil is equivalent to NoOpObserver{}.
	Observer Observer
}

// ConnectorSignalData is emitted on Device.OnConnectorAdded/OnConnectorRemoved.
type ConnectorSignalData struct {
	ConnectorID uint32
}

// Device owns one GPU's worth of output state: the session/fd, the chosen
// KMS wire strategy and allocator, the current inventory, and one Output
// per connected connector that currently holds a CRTC (spec §2's data
// flow: "session opens the GPU device file; inventory its KMS objects;
// hotplug updates the inventory; the matcher reassigns CRTCs/planes").
// An Output is cleaned up and removed as soon as a rescan reports its
// connector disconnected; it is not kept as a disabled stub.
type Device struct {
	mu sync.Mutex

	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc

	fd      int
	ownsFD  bool
	devPath string

	sess        *session.Session
	leaseDevice *session.LeaseDevice

	kmsBackend *kms.Backend
	kmsKind    kms.Kind

	alloc     allocator.Allocator
	allocKind allocator.Kind

	format    uint32
	modifiers []uint64

	pump *eventpump.Pump

	outputs    map[uint32]*Output // connector id -> Output
	crtcOfConn map[uint32]uint32  // connector id -> assigned crtc id, absent if unassigned

	sessionActive bool

	metrics  *Metrics
	observer Observer

	commitMu    sync.Mutex
	commitStart map[uint32]time.Time // connector id -> time OnPrecommit fired

	OnConnectorAdded   Signal[ConnectorSignalData]
	OnConnectorRemoved Signal[ConnectorSignalData]
}

// Open resolves a GPU device, probes its capabilities, selects a KMS wire
// strategy and buffer allocator, enumerates its resources, and builds one
// Output per connected connector the matcher assigns a CRTC to. Mirrors backend.go's CreateAndServe
// shape (resolve resource, probe/configure, build the runtime, return it)
// adapted from a ublk queue-runner set-up to a KMS device set-up.
func Open(params DeviceParams, options *Options) (*Device, error) {
	if options == nil {
		options = &Options{}
	}
	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	if params.Format == 0 {
		params.Format = FormatXRGB8888
	}

	devPath := params.DevicePath
	if devPath == "" {
		found, err := eventpump.FindPrimaryGPU(params.Seat)
		if err != nil {
			return nil, fmt.Errorf("drmoutput: resolve primary GPU: %w", err)
		}
		devPath = found
	}

	observer := options.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}

	d := &Device{
		logger:        logger,
		devPath:       devPath,
		format:        params.Format,
		modifiers:     params.Modifiers,
		outputs:       make(map[uint32]*Output),
		crtcOfConn:    make(map[uint32]uint32),
		sessionActive: true,
		metrics:       NewMetrics(),
		observer:      observer,
		commitStart:   make(map[uint32]time.Time),
	}
	d.ctx, d.cancel = context.WithCancel(ctx)

	fd, err := d.acquireFD(params, devPath)
	if err != nil {
		d.cancel()
		return nil, err
	}
	d.fd = fd

	if err := d.setup(params); err != nil {
		d.teardownFD()
		d.cancel()
		return nil, err
	}

	d.startPump()
	return d, nil
}

// acquireFD opens the device fd either through logind (so pause/resume and
// device-lease handshakes are available) or directly, per
// DeviceParams.UseSession.
func (d *Device) acquireFD(params DeviceParams, devPath string) (int, error) {
	if params.UseSession {
		sess, err := session.Open(d.logger)
		if err != nil {
			return -1, fmt.Errorf("drmoutput: open session: %w", err)
		}
		fd, _, err := sess.TakeDevice(devPath)
		if err != nil {
			sess.Close()
			return -1, fmt.Errorf("drmoutput: take device %s: %w", devPath, err)
		}
		d.sess = sess
		d.ownsFD = true
		sess.OnPause(d.handleSessionPause)
		sess.OnResume(d.handleSessionResume)
		return fd, nil
	}

	fd, err := unix.Open(devPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("drmoutput: open %s: %w", devPath, err)
	}
	d.ownsFD = true
	return fd, nil
}

func (d *Device) teardownFD() {
	if d.sess != nil {
		d.sess.ReleaseDevice(d.fd)
		unix.Close(d.fd)
		d.sess.Close()
		return
	}
	if d.ownsFD && d.fd >= 0 {
		unix.Close(d.fd)
	}
}

// setup probes capabilities, picks the KMS and allocator strategies, and
// runs the first inventory + matcher pass (spec §4.1-§4.3).
func (d *Device) setup(params DeviceParams) error {
	atomicOK, _ := uapi.GetCapability(d.fd, uapi.CapAtomic)
	dumbOK, _ := uapi.GetCapability(d.fd, uapi.CapDumbBuffer)
	primeCap, _ := uapi.GetCapability(d.fd, uapi.CapPrime)

	d.kmsKind = kms.KindLegacy
	if atomicOK != 0 {
		d.kmsKind = kms.KindAtomic
	}
	d.kmsBackend = kms.New(d.fd, d.kmsKind, d.logger)

	backendCaps := allocator.Capabilities{
		SHM:     true,
		DataPtr: dumbOK != 0,
		Dmabuf:  primeCap&uapi.CapPrimeImport != 0 && primeCap&uapi.CapPrimeExport != 0,
		DRMFD:   true,
	}
	rendererCaps := backendCaps
	if params.RendererCapabilities != nil {
		rendererCaps = *params.RendererCapabilities
	}

	kind, err := allocator.SelectKind(backendCaps, rendererCaps)
	if err != nil {
		return fmt.Errorf("drmoutput: select allocator: %w", err)
	}
	alloc, err := d.buildAllocator(kind)
	if err != nil {
		return err
	}
	d.alloc = alloc
	d.allocKind = kind

	inv, err := inventory.Enumerate(d.fd)
	if err != nil {
		d.alloc.Destroy()
		return fmt.Errorf("drmoutput: enumerate: %w", err)
	}

	added, _ := d.reconcile(inv)
	d.leaseDevice = session.NewLeaseDevice(d.fd, added)
	return nil
}

func (d *Device) buildAllocator(kind allocator.Kind) (allocator.Allocator, error) {
	switch kind {
	case allocator.KindGBM:
		return allocator.NewGBM(d.fd, d.logger)
	case allocator.KindDumb:
		return allocator.NewDumb(d.fd, d.logger), nil
	case allocator.KindSHM:
		return allocator.NewSHM(d.logger), nil
	default:
		return nil, fmt.Errorf("drmoutput: no allocator kind selected")
	}
}

// reconcile runs the bipartite matcher (C3) against a fresh inventory
// snapshot to assign connectors to CRTCs, then gives each matched
// connector the first primary and cursor plane whose possible-CRTC mask
// includes its CRTC (pickPlane/pickCursorPlane); planes are not run
// through the matcher. Returns the connector ids
// newly connected and newly removed since the previous pass.
func (d *Device) reconcile(inv *inventory.Inventory) (added, removed []uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	numCRTCs := len(inv.CRTCs)
	crtcIndex := make(map[uint32]int, numCRTCs)
	for i, c := range inv.CRTCs {
		crtcIndex[c.ID] = i
	}

	seen := make(map[uint32]bool, len(inv.Connectors))
	possible := make([]uint32, 0, len(inv.Connectors))
	prev := make([]int, 0, len(inv.Connectors))
	connectors := make([]inventory.Connector, 0, len(inv.Connectors))

	for _, conn := range inv.Connectors {
		if !conn.Connected {
			continue
		}
		seen[conn.ID] = true
		mask, err := inventory.PossibleCRTCs(d.fd, conn.EncoderIDs)
		if err != nil {
			d.logger.Warnf("drmoutput: connector %d possible crtcs: %v", conn.ID, err)
			mask = 0
		}
		p := matcher.Unmatched
		if crtcID, ok := d.crtcOfConn[conn.ID]; ok {
			if idx, ok := crtcIndex[crtcID]; ok {
				p = idx
			}
		}
		possible = append(possible, mask)
		prev = append(prev, p)
		connectors = append(connectors, conn)
	}

	assignment := matcher.Match(possible, prev, numCRTCs)

	newCrtcOfConn := make(map[uint32]uint32, len(connectors))
	for i, conn := range connectors {
		idx := assignment[i]
		if idx == matcher.Unmatched {
			if out, ok := d.outputs[conn.ID]; ok {
				out.ReleaseCRTC()
			}
			continue
		}
		crtc := inv.CRTCs[idx]
		newCrtcOfConn[conn.ID] = crtc.ID

		out, ok := d.outputs[conn.ID]
		if !ok {
			out = NewOutput(connectorName(conn), conn.ID, d.kmsBackend, d.logger)
			out.SetFormat(d.format, d.modifiers)
			out.SetSwapchainFactory(d.swapchainFactory())
			d.wireMetrics(out, conn.ID)
			d.outputs[conn.ID] = out
			added = append(added, conn.ID)
		}

		primaryID, primaryProps := d.pickPlane(inv.PrimaryPlanes, crtc.ID, idx)
		cursorID, cursorProps, cursorIsFake := d.pickCursorPlane(inv.CursorPlanes, crtc.ID, idx)

		connProps := kms.ConnectorPropIDs{
			CRTCID:     conn.Props[constants.PropConnectorCRTCID],
			LinkStatus: conn.Props[constants.PropConnectorLinkStatus],
			DPMS:       conn.Props[constants.PropConnectorDPMS],
		}
		crtcProps := kms.CRTCPropIDs{
			ModeID: crtc.Props[constants.PropCRTCModeID],
			Active: crtc.Props[constants.PropCRTCActive],
		}
		out.ConfigureCRTC(crtc.ID, possible[i], connProps, crtcProps, primaryID, primaryProps, cursorID, cursorProps, cursorIsFake)

		if d.pump != nil {
			d.pump.RegisterCRTC(crtc.ID, conn.ID)
		}
	}

	for connID, out := range d.outputs {
		if !seen[connID] {
			if d.pump != nil {
				if crtcID, ok := d.crtcOfConn[connID]; ok {
					d.pump.UnregisterCRTC(crtcID)
				}
			}
			out.Cleanup(true, nil)
			delete(d.outputs, connID)
			removed = append(removed, connID)
		}
	}

	d.crtcOfConn = newCrtcOfConn
	return added, removed
}

func connectorName(c inventory.Connector) string {
	return fmt.Sprintf("connector-%d-%d", c.Type, c.TypeID)
}

func planePropIDs(p inventory.Plane) kms.PlanePropIDs {
	return kms.PlanePropIDs{
		FBID:   p.Props[constants.PropPlaneFBID],
		CRTCID: p.Props[constants.PropPlaneCRTCID],
		SrcX:   p.Props[constants.PropPlaneSrcX],
		SrcY:   p.Props[constants.PropPlaneSrcY],
		SrcW:   p.Props[constants.PropPlaneSrcW],
		SrcH:   p.Props[constants.PropPlaneSrcH],
		CrtcX:  p.Props[constants.PropPlaneCrtcX],
		CrtcY:  p.Props[constants.PropPlaneCrtcY],
		CrtcW:  p.Props[constants.PropPlaneCrtcW],
		CrtcH:  p.Props[constants.PropPlaneCrtcH],
	}
}

// pickPlane finds the first plane of a type whose possible-CRTC mask
// includes crtcIdx. Good enough for the common one-plane-per-type-per-CRTC
// hardware this core targets; a compositor needing overlay planes drives
// those directly through the inventory, out of Output's scope.
func (d *Device) pickPlane(planes []inventory.Plane, crtcID uint32, crtcIdx int) (uint32, kms.PlanePropIDs) {
	for _, p := range planes {
		if p.PossibleCRTCs&(1<<uint(crtcIdx)) != 0 {
			return p.ID, planePropIDs(p)
		}
	}
	return 0, kms.PlanePropIDs{}
}

// pickCursorPlane is like pickPlane but reports cursorIsFake when no
// dedicated cursor plane exists, so Output routes cursor requests through
// the legacy SETCURSOR ioctl instead (spec §4.9's fake-cursor-plane rule).
func (d *Device) pickCursorPlane(planes []inventory.Plane, crtcID uint32, crtcIdx int) (uint32, kms.PlanePropIDs, bool) {
	id, props := d.pickPlane(planes, crtcID, crtcIdx)
	if id == 0 {
		return 0, kms.PlanePropIDs{}, true
	}
	return id, props, false
}

// startPump wires the event pump once the first inventory pass is done:
// udev hotplug triggers a full reconcile, and DRM flip-complete events are
// routed to the owning Output.
func (d *Device) startPump() {
	udevFD, err := eventpump.OpenUdevMonitor()
	if err != nil {
		d.logger.Warnf("drmoutput: udev monitor unavailable, hotplug disabled: %v", err)
		udevFD = -1
	}

	d.pump = eventpump.New(d.ctx, d.fd, udevFD, d.logger, d.handlePageFlip, d.handleRescan)

	d.mu.Lock()
	for connID, crtcID := range d.crtcOfConn {
		d.pump.RegisterCRTC(crtcID, connID)
	}
	d.mu.Unlock()

	d.pump.Start()
}

func (d *Device) handlePageFlip(connectorID uint32) {
	d.mu.Lock()
	out, ok := d.outputs[connectorID]
	sessionActive := d.sessionActive
	d.mu.Unlock()
	if ok {
		out.HandlePageFlip(sessionActive)
	}
}

func (d *Device) handleRescan() (added, removed []uint32) {
	inv, err := inventory.Enumerate(d.fd)
	if err != nil {
		d.logger.Warnf("drmoutput: rescan enumerate failed: %v", err)
		return nil, nil
	}
	added, removed = d.reconcile(inv)
	for _, id := range added {
		d.OnConnectorAdded.Emit(ConnectorSignalData{ConnectorID: id})
	}
	for _, id := range removed {
		d.OnConnectorRemoved.Emit(ConnectorSignalData{ConnectorID: id})
	}
	return added, removed
}

// handleSessionPause records the paused state until resume: frame signals
// from HandlePageFlip are suppressed and SessionActive reports false.
// Output.Commit does not consult it, so commits made during a pause still
// reach the kernel. No kernel call is made here, matching session.c's
// observation that the fd is still valid during a pause.
func (d *Device) handleSessionPause(major, minor uint32, pauseType string) {
	d.mu.Lock()
	d.sessionActive = false
	d.mu.Unlock()
	d.logger.Infof("drmoutput: session paused (%s)", pauseType)
}

// handleSessionResume substitutes the replacement fd logind handed back
// for the one every open Output/allocator reference, via dup2 onto the
// original fd number so no caller-held integer needs updating (spec §4.10,
// §5's dup2-substitution rule).
func (d *Device) handleSessionResume(major, minor uint32, fd int) {
	defer unix.Close(fd)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := unix.Dup2(fd, d.fd); err != nil {
		d.logger.Warnf("drmoutput: dup2 resumed fd onto %d failed: %v", d.fd, err)
		return
	}
	d.sessionActive = true
	d.logger.Infof("drmoutput: session resumed")
}

// wireMetrics subscribes an output's precommit/commit/frame signals to the
// device's Metrics/Observer. Latency is timed between OnPrecommit (fired
// just before attemptWithRetry) and OnCommit (fired once the attempt,
// including any modifier-retry, finishes) rather than wrapping Commit
// itself, since the compositor calls Output.Commit directly and Device
// has no other seam to measure around it.
func (d *Device) wireMetrics(out *Output, connectorID uint32) {
	out.OnPrecommit.Add(func(struct{}) {
		d.commitMu.Lock()
		d.commitStart[connectorID] = time.Now()
		d.commitMu.Unlock()
	})
	out.OnCommit.Add(func(data CommitSignalData) {
		d.commitMu.Lock()
		start, ok := d.commitStart[connectorID]
		delete(d.commitStart, connectorID)
		d.commitMu.Unlock()

		var latencyNs uint64
		if ok {
			latencyNs = uint64(time.Since(start).Nanoseconds())
		}
		kind := kmsKindAtomicMetric
		if d.kmsKind == kms.KindLegacy {
			kind = kmsKindLegacyMetric
		}
		d.metrics.RecordCommit(kind, false, latencyNs, !data.Failed)
		d.observer.ObserveCommit(kind, false, latencyNs, !data.Failed)
	})
	out.OnFrame.Add(func(FrameSignalData) {
		d.metrics.RecordPageFlip()
		d.observer.ObservePageFlip()
	})
}

// swapchainFactory returns the closure Output uses to build a fresh
// swapchain: every buffer it allocates is registered as a KMS framebuffer
// id (when the backing supports scan-out) up front, so Commit never has
// to do that work on the hot path.
func (d *Device) swapchainFactory() swapchainFactoryFunc {
	return func(width, height, format uint32, modifiers []uint64) *swapchain.Swapchain {
		alloc := func() (swapchain.Handle, error) {
			backing, err := d.alloc.CreateBuffer(width, height, format, modifiers)
			if err != nil {
				d.metrics.RecordAlloc(0, false)
				d.observer.ObserveAlloc(0, false)
				return nil, err
			}
			buf, err := d.newBufferFromBacking(format, backing)
			if err != nil {
				backing.Release()
				d.metrics.RecordAlloc(0, false)
				d.observer.ObserveAlloc(0, false)
				return nil, err
			}
			bytes := allocatedBytes(width, height, format)
			d.metrics.RecordAlloc(bytes, true)
			d.observer.ObserveAlloc(bytes, true)
			return buf, nil
		}
		return swapchain.New(width, height, format, alloc)
	}
}

// allocatedBytes estimates a buffer's footprint from its declared format,
// falling back to a 32bpp assumption for formats LookupFormat doesn't know
// about (metrics-only figure; never used to size an actual allocation).
func allocatedBytes(width, height, format uint32) uint64 {
	bpp := uint64(32)
	if info, ok := LookupFormat(format); ok {
		bpp = uint64(info.BitsPerPixel)
	}
	return uint64(width) * uint64(height) * bpp / 8
}

// newBufferFromBacking adapts an allocator.Backing into a *Buffer,
// registering it as a KMS framebuffer id via AddFB2 when the backing is
// scan-out capable (dmabuf-backed: GBM or dumb). A pure-SHM backing has no
// framebuffer id; it is a software-composition-only surface, never staged
// directly onto a plane (spec §4.5's SHM path is for backends without GPU
// scan-out, scenario S3).
func (d *Device) newBufferFromBacking(format uint32, backing *allocator.Backing) (*Buffer, error) {
	var fbID, gemHandle uint32
	if backing.HasDmabuf {
		handle, err := uapi.PrimeFDToHandle(d.fd, int(backing.DmabufFD))
		if err != nil {
			return nil, fmt.Errorf("drmoutput: import dmabuf as gem handle: %w", err)
		}
		gemHandle = handle
		req := uapi.ModeFBCmd2{
			Width:       backing.Width,
			Height:      backing.Height,
			PixelFormat: format,
		}
		req.Handles[0] = handle
		req.Pitches[0] = backing.DmabufStride
		req.Offsets[0] = backing.DmabufOffset
		if backing.Modifier != ModLinear {
			req.Flags = fbFlagModifiers
			req.Modifier[0] = backing.Modifier
		}
		if err := uapi.AddFB2(d.fd, &req); err != nil {
			return nil, fmt.Errorf("drmoutput: add framebuffer: %w", err)
		}
		fbID = req.FbID
	}

	fd := d.fd
	release := backing.Release
	onRelease := func(*Buffer) {
		if fbID != 0 {
			if err := uapi.RmFB(fd, fbID); err != nil {
				d.logger.Warnf("drmoutput: remove framebuffer %d: %v", fbID, err)
			}
		}
		if release != nil {
			release()
		}
	}

	buf := NewBuffer(backing.Width, backing.Height, format, backing.Modifier, onRelease)
	switch {
	case backing.HasDmabuf:
		buf.SetDmabuf(DmabufAttribs{FD: backing.DmabufFD, Stride: backing.DmabufStride, Offset: backing.DmabufOffset, Modifier: backing.Modifier})
	case backing.HasSHM:
		buf.SetSHM(SHMAttribs{FD: backing.SHMFD, Offset: backing.SHMOffset, Stride: backing.SHMStride})
	}
	if backing.DataPtr != nil {
		buf.SetDataPtr(backing.DataPtr)
	}
	if fbID != 0 {
		buf.SetFBID(fbID)
	}
	if gemHandle != 0 {
		buf.SetGEMHandle(gemHandle)
	}
	return buf, nil
}

// fbFlagModifiers mirrors DRM_MODE_FB_MODIFIERS, the drm_mode_fb_cmd2
// flag that tells the kernel Modifier[] is populated.
const fbFlagModifiers = 1 << 1

// Output returns the Output for a connector id, if one currently exists.
func (d *Device) Output(connectorID uint32) (*Output, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, ok := d.outputs[connectorID]
	return out, ok
}

// Outputs returns every currently-known Output, keyed by connector id.
func (d *Device) Outputs() map[uint32]*Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]*Output, len(d.outputs))
	for k, v := range d.outputs {
		out[k] = v
	}
	return out
}

// LeaseDevice exposes the DRM-lease sub-protocol (spec §4.10, S5) over the
// connectors that were connected and matched to a CRTC when the Device was
// opened.
func (d *Device) LeaseDevice() *session.LeaseDevice {
	return d.leaseDevice
}

// GrantLease is LeaseDevice().Grant plus metrics bookkeeping.
func (d *Device) GrantLease(connectorIDs, crtcIDs []uint32) (*session.Lease, error) {
	lease, err := d.leaseDevice.Grant(connectorIDs, crtcIDs)
	if err != nil {
		return nil, err
	}
	d.metrics.RecordLeaseGrant()
	return lease, nil
}

// RevokeLease is LeaseDevice().Revoke plus metrics bookkeeping.
func (d *Device) RevokeLease(lesseeID uint32) error {
	if err := d.leaseDevice.Revoke(lesseeID); err != nil {
		return err
	}
	d.metrics.RecordLeaseRevoke()
	return nil
}

// Metrics returns the device's built-in counters.
func (d *Device) Metrics() *Metrics {
	return d.metrics
}

// MetricsSnapshot is a convenience for Metrics().Snapshot().
func (d *Device) MetricsSnapshot() MetricsSnapshot {
	return d.metrics.Snapshot()
}

// SessionActive reports whether the session currently has device access.
func (d *Device) SessionActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionActive
}

// Close tears every output down, destroys the allocator, stops the event
// pump, and releases the device fd (and the logind session, if one was
// used), mirroring backend.go's StopAndDelete teardown order: stop
// background work first, then release resources bottom-up.
func (d *Device) Close() error {
	if d.pump != nil {
		d.pump.Stop()
	}
	d.cancel()

	d.mu.Lock()
	outputs := make([]*Output, 0, len(d.outputs))
	for _, out := range d.outputs {
		outputs = append(outputs, out)
	}
	d.mu.Unlock()

	for _, out := range outputs {
		out.Cleanup(true, func() bool {
			d.pump.Drain()
			return out.PageflipPending()
		})
	}

	if d.alloc != nil {
		if err := d.alloc.Destroy(); err != nil {
			d.logger.Warnf("drmoutput: allocator destroy: %v", err)
		}
	}

	d.teardownFD()
	d.metrics.Stop()
	return nil
}

package drmoutput

import (
	"sync"
	"syscall"

	"github.com/tmarsh-oss/go-drmoutput/internal/kms"
	"github.com/tmarsh-oss/go-drmoutput/internal/logging"
	"github.com/tmarsh-oss/go-drmoutput/internal/swapchain"
	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// ConnState is an Output's connector lifecycle state (spec §4.7):
// disconnected -> needs-modeset -> connected, plus the transient
// pageflip-pending sub-state tracked separately on Output.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateNeedsModeset
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateNeedsModeset:
		return "needs-modeset"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Mode is one display timing an Output can be driven at.
type Mode struct {
	Width, Height uint32
	RefreshHz     uint32
	Info          uapi.ModeInfo
}

// Rect is an opaque damage hint passed through to the backend. The output
// core never computes or merges damage regions itself; that is a renderer
// concern and out of scope.
type Rect struct {
	X, Y, W, H int32
}

// pendingFlags names which pendingState fields are staged.
type pendingFlags uint32

const (
	pendingEnabled pendingFlags = 1 << iota
	pendingMode
	pendingBuffer
	pendingDamage
	pendingCursor
)

func (f pendingFlags) has(bit pendingFlags) bool { return f&bit != 0 }

// pendingState is the staged configuration awaiting test/commit (spec data
// model "OutputState (pending)"). Cleared after every commit or rollback.
type pendingState struct {
	flags pendingFlags

	enabled bool

	mode       Mode
	customMode bool

	buffer              *Buffer
	bufferFromSwapchain bool

	damage []Rect

	cursorBuffer  *Buffer
	cursorVisible bool
	cursorW       uint32
	cursorH       uint32
}

func (p *pendingState) clear() { *p = pendingState{} }

// FrameSignalData is emitted on Output.OnFrame after a page flip completes.
type FrameSignalData struct {
	Output *Output
	Seq    uint64
}

// ModeSignalData is emitted on Output.OnMode when a modeset commits.
type ModeSignalData struct {
	Output *Output
	Mode   Mode
}

// CommitSignalData is emitted on Output.OnCommit after every commit
// attempt, success or failure.
type CommitSignalData struct {
	Output *Output
	Failed bool
	Kind   ErrorKind
}

// DestroySignalData is emitted on Output.OnDestroy exactly once, when an
// output that reached StateConnected at least once is torn down.
type DestroySignalData struct {
	Output *Output
}

// commitBackend is the subset of *kms.Backend Output depends on, kept as a
// narrow interface so tests can substitute a fake without a real DRM fd
// (*kms.Backend satisfies it structurally).
type commitBackend interface {
	Commit(req *kms.CommitRequest, testOnly bool) error
	ConnEnable(req *kms.ConnEnableRequest) error
	SetCursor(req *kms.CursorRequest) error
	MoveCursor(req *kms.CursorMoveRequest) error
	RestoreCRTC(req *uapi.ModeGetCrtc) error
}

// swapchainFactoryFunc builds a fresh swapchain for a given size/format/modifier
// set; Output calls it lazily on first render-attach or when the pending
// mode's size differs from the current swapchain's, and again after an
// atomic commit rejects the current modifiers. A format change alone does
// not rebuild the swapchain.
type swapchainFactoryFunc func(width, height, format uint32, modifiers []uint64) *swapchain.Swapchain

// Output owns one connector's role in the pipeline: its current mode,
// pending configuration, swapchain, and cursor state (spec data model
// "Output"). Lifecycle: Device creates it when its connector is connected
// and matched to a CRTC, and cleans it up and removes it when the
// connector disconnects; no disabled stub is kept.
type Output struct {
	mu sync.Mutex

	logger *logging.Logger

	name        string
	connectorID uint32

	state           ConnState
	pageflipPending bool
	seq             uint64

	crtcID       uint32
	possibleCRTC uint32
	connProps    kms.ConnectorPropIDs
	crtcProps    kms.CRTCPropIDs

	primaryPlaneID uint32
	primaryProps   kms.PlanePropIDs

	cursorPlaneID uint32
	cursorProps   kms.PlanePropIDs
	cursorIsFake  bool

	backend commitBackend

	format             uint32
	modifiers          []uint64
	modifiersStripped  bool
	swap               *swapchain.Swapchain
	swapWidth          uint32
	swapHeight         uint32
	swapchainFactory   swapchainFactoryFunc

	currentMode Mode
	hasMode     bool
	enabled     bool

	pending pendingState

	// frontBuffer is currently scanned out; backBuffer is the buffer a
	// submitted-but-unflipped commit will promote to front once the page
	// flip lands.
	frontBuffer *Buffer
	backBuffer  *Buffer

	cursorBuffer     *Buffer
	cursorVisible    bool
	cursorX, cursorY int32

	oldCRTC *uapi.ModeGetCrtc // saved pre-takeover CRTC config, for restore

	OnFrame      Signal[FrameSignalData]
	OnMode       Signal[ModeSignalData]
	OnCommit     Signal[CommitSignalData]
	OnNeedsFrame Signal[struct{}]
	OnDestroy    Signal[DestroySignalData]
	OnPrecommit  Signal[struct{}]
}

// NewOutput constructs a disconnected Output stub for one connector.
func NewOutput(name string, connectorID uint32, backend commitBackend, logger *logging.Logger) *Output {
	if logger == nil {
		logger = logging.Default()
	}
	return &Output{
		name:        name,
		connectorID: connectorID,
		backend:     backend,
		logger:      logger,
		state:       StateDisconnected,
	}
}

func (o *Output) Name() string        { return o.name }
func (o *Output) ConnectorID() uint32 { return o.connectorID }

func (o *Output) State() ConnState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Output) PageflipPending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pageflipPending
}

func (o *Output) CurrentMode() (Mode, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentMode, o.hasMode
}

// SetFormat records the pixel format and modifier list new swapchains
// should be allocated with. Call whenever the allocator's capability set or
// the compositor's desired format changes.
func (o *Output) SetFormat(format uint32, modifiers []uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.format = format
	o.modifiers = modifiers
	o.modifiersStripped = false
}

// SetSwapchainFactory injects the constructor Output uses to build (or
// rebuild) its swapchain. Device wires this to internal/allocator via
// NewBuffer/SetDmabuf/SetSHM/SetDataPtr.
func (o *Output) SetSwapchainFactory(factory swapchainFactoryFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.swapchainFactory = factory
}

// SetOldCRTC records the CRTC configuration found in place before this
// output was taken over, so Cleanup can restore it (spec §4.7
// restore_output, SUPPLEMENTED FEATURE 3's sibling for the CRTC side).
func (o *Output) SetOldCRTC(crtc *uapi.ModeGetCrtc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.oldCRTC = crtc
}

// ConfigureCRTC binds this output to a CRTC and its plane set, called by the
// device after the matcher (C3) assigns or reassigns a CRTC.
func (o *Output) ConfigureCRTC(
	crtcID, possibleCRTC uint32,
	connProps kms.ConnectorPropIDs,
	crtcProps kms.CRTCPropIDs,
	primaryPlaneID uint32,
	primaryProps kms.PlanePropIDs,
	cursorPlaneID uint32,
	cursorProps kms.PlanePropIDs,
	cursorIsFake bool,
) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.crtcID = crtcID
	o.possibleCRTC = possibleCRTC
	o.connProps = connProps
	o.crtcProps = crtcProps
	o.primaryPlaneID = primaryPlaneID
	o.primaryProps = primaryProps
	o.cursorPlaneID = cursorPlaneID
	o.cursorProps = cursorProps
	o.cursorIsFake = cursorIsFake
	if o.state == StateDisconnected {
		o.state = StateNeedsModeset
	}
}

// ReleaseCRTC drops this output's CRTC binding after a failed match (spec
// §4.3: "its previous CRTC is released").
func (o *Output) ReleaseCRTC() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.crtcID = 0
	o.state = StateDisconnected
}

// AttachRender acquires a back-buffer from the swapchain and stages it,
// returning the buffer's age (frames since last use, 0 if freshly
// allocated). Fails if a buffer is already staged or the swapchain is
// exhausted.
func (o *Output) AttachRender() (uint32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attachRenderLocked()
}

func (o *Output) attachRenderLocked() (uint32, error) {
	if o.pending.buffer != nil {
		return 0, NewInvalidStateError("attach_render", "a buffer is already staged")
	}
	width, height := o.pendingDims()
	if width == 0 || height == 0 {
		return 0, NewInvalidStateError("attach_render", "no mode to size the swapchain from")
	}
	if o.swap == nil || o.swapWidth != width || o.swapHeight != height {
		if o.swapchainFactory == nil {
			return 0, NewAllocError("attach_render", "no swapchain factory configured")
		}
		if o.swap != nil {
			o.swap.Destroy()
		}
		o.swap = o.swapchainFactory(width, height, o.format, o.modifiers)
		o.swapWidth, o.swapHeight = width, height
	}

	handle, age, err := o.swap.Acquire()
	if err != nil {
		return 0, WrapError("attach_render", err)
	}
	buf, ok := handle.(*Buffer)
	if !ok {
		return 0, NewInvalidStateError("attach_render", "swapchain handle is not a *Buffer")
	}

	o.pending.buffer = buf
	o.pending.bufferFromSwapchain = true
	o.pending.flags |= pendingBuffer
	return age, nil
}

// AttachBuffer stages an externally provided buffer as a direct scan-out
// candidate. Mutually exclusive with AttachRender until the next
// commit/rollback clears the pending buffer.
func (o *Output) AttachBuffer(buf *Buffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending.buffer != nil {
		return NewInvalidStateError("attach_buffer", "a buffer is already staged")
	}
	buf.Lock()
	o.pending.buffer = buf
	o.pending.bufferFromSwapchain = false
	o.pending.flags |= pendingBuffer
	return nil
}

// SetMode stages a mode change to a known, connector-advertised mode.
func (o *Output) SetMode(mode Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.mode = mode
	o.pending.customMode = false
	o.pending.flags |= pendingMode
}

// SetCustomMode stages a synthesized mode outside the connector's
// advertised list (e.g. for a headless or virtual output).
func (o *Output) SetCustomMode(width, height, refreshHz uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.mode = Mode{Width: width, Height: height, RefreshHz: refreshHz}
	o.pending.customMode = true
	o.pending.flags |= pendingMode
}

// Enable stages whether the output should be driven at all.
func (o *Output) Enable(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.enabled = enabled
	o.pending.flags |= pendingEnabled
}

// SetDamage stages an opaque damage hint for the next commit.
func (o *Output) SetDamage(rects []Rect) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.damage = rects
	o.pending.flags |= pendingDamage
}

// SetCursor stages a hardware cursor image, or clears it when buf is nil.
func (o *Output) SetCursor(buf *Buffer, width, height uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if buf != nil {
		buf.Lock()
	}
	o.pending.cursorBuffer = buf
	o.pending.cursorVisible = buf != nil
	o.pending.cursorW, o.pending.cursorH = width, height
	o.pending.flags |= pendingCursor
}

// MoveCursor repositions an already-visible hardware cursor immediately;
// unlike the other staged operations, cursor motion is not gated behind
// commit, matching the low-latency pointer-tracking the backend expects.
func (o *Output) MoveCursor(x, y int32) error {
	o.mu.Lock()
	crtcID := o.crtcID
	planeID := o.cursorPlaneID
	props := o.cursorProps
	isFake := o.cursorIsFake
	connected := o.state == StateConnected
	o.cursorX, o.cursorY = x, y
	o.mu.Unlock()

	if !connected {
		return nil
	}
	if err := o.backend.MoveCursor(&kms.CursorMoveRequest{
		CRTCID: crtcID, PlaneID: planeID, Props: props, CursorIsFake: isFake, X: x, Y: y,
	}); err != nil {
		return WrapError("move_cursor", err)
	}
	return nil
}

func (o *Output) pendingDims() (uint32, uint32) {
	if o.pending.flags.has(pendingMode) {
		return o.pending.mode.Width, o.pending.mode.Height
	}
	return o.currentMode.Width, o.currentMode.Height
}

// ensureBufferLocked implements "ensure_buffer": if a modeset is staged
// without an explicit buffer, acquire one from the swapchain and clear it
// (best-effort; a GPU-only backing without a CPU mapping cannot be cleared
// here, that requires a renderer and is out of scope).
func (o *Output) ensureBufferLocked() error {
	if o.pending.buffer != nil {
		return nil
	}
	if _, err := o.attachRenderLocked(); err != nil {
		return err
	}
	if data, ok := o.pending.buffer.GetDataPtr(); ok {
		for i := range data {
			data[i] = 0
		}
	}
	return nil
}

func (o *Output) buildCommitRequest(testOnly bool) (*kms.CommitRequest, error) {
	enabled := o.enabled
	if o.pending.flags.has(pendingEnabled) {
		enabled = o.pending.enabled
	}
	modeset := o.pending.flags.has(pendingMode)
	mode := o.currentMode
	if modeset {
		mode = o.pending.mode
	}

	if enabled && !modeset && !o.hasMode {
		return nil, NewInvalidStateError("commit", "cannot enable an output with no mode set")
	}

	if enabled && modeset && o.pending.buffer == nil {
		if err := o.ensureBufferLocked(); err != nil {
			return nil, err
		}
	}
	if enabled && o.pending.buffer == nil && o.backBuffer == nil && o.frontBuffer == nil {
		return nil, NewInvalidStateError("commit", "enabling requires a staged buffer")
	}

	req := &kms.CommitRequest{
		ConnectorID: o.connectorID,
		ConnProps:   o.connProps,
		CRTCID:      o.crtcID,
		CRTCProps:   o.crtcProps,
		Active:      enabled,
		Modeset:     modeset,
	}
	if modeset {
		req.Mode = mode.Info
	}

	fbBuffer := o.pending.buffer
	if fbBuffer == nil {
		fbBuffer = o.backBuffer
	}
	if fbBuffer == nil {
		fbBuffer = o.frontBuffer
	}
	if enabled && fbBuffer != nil {
		req.Primary = &kms.PlaneCommit{
			PlaneID: o.primaryPlaneID,
			FBID:    fbBuffer.FBID(),
			SrcW:    mode.Width,
			SrcH:    mode.Height,
			CrtcW:   mode.Width,
			CrtcH:   mode.Height,
		}
		req.PrimaryProps = o.primaryProps
	}

	cursorVisible := o.cursorVisible
	cursorBuffer := o.cursorBuffer
	cursorW, cursorH := uint32(0), uint32(0)
	if o.pending.flags.has(pendingCursor) {
		cursorVisible = o.pending.cursorVisible
		cursorBuffer = o.pending.cursorBuffer
		cursorW, cursorH = o.pending.cursorW, o.pending.cursorH
	}
	if enabled && cursorVisible && cursorBuffer != nil && o.cursorPlaneID != 0 {
		req.Cursor = &kms.PlaneCommit{
			PlaneID: o.cursorPlaneID,
			FBID:    cursorBuffer.FBID(),
			SrcW:    cursorW,
			SrcH:    cursorH,
			CrtcX:   o.cursorX,
			CrtcY:   o.cursorY,
			CrtcW:   cursorW,
			CrtcH:   cursorH,
		}
		req.CursorProps = o.cursorProps
		req.CursorIsFake = o.cursorIsFake
	}

	// A fake cursor plane (id 0) has no atomic plane object to bundle into
	// req: dispatch it through the legacy SETCURSOR ioctl directly, the
	// same way MoveCursor bypasses commit entirely (spec §4.8).
	if enabled && o.cursorPlaneID == 0 && o.pending.flags.has(pendingCursor) && !testOnly {
		cursorReq := &kms.CursorRequest{
			CRTCID:       o.crtcID,
			PlaneID:      o.cursorPlaneID,
			Props:        o.cursorProps,
			CursorIsFake: o.cursorIsFake,
		}
		if cursorVisible && cursorBuffer != nil {
			cursorReq.Handle = cursorBuffer.GEMHandle()
			cursorReq.Width = cursorW
			cursorReq.Height = cursorH
		} else {
			cursorReq.Clear = true
		}
		if err := o.backend.SetCursor(cursorReq); err != nil {
			return nil, WrapError("set_cursor", err)
		}
	}

	return req, nil
}

func commitLabel(testOnly bool) string {
	if testOnly {
		return "test"
	}
	return "commit"
}

func errnoFrom(err error) syscall.Errno {
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	return 0
}

// attemptWithRetry runs one test or commit attempt against the backend, and
// if it fails on a swapchain-sourced buffer using a non-trivial modifier
// set, strips the swapchain down to ModLinear and retries exactly once
// (spec §4.7's modifier-retry rule, scenario S4).
func (o *Output) attemptWithRetry(testOnly bool) (*kms.CommitRequest, error) {
	req, err := o.buildCommitRequest(testOnly)
	if err != nil {
		return nil, err
	}

	kmsErr := o.backend.Commit(req, testOnly)
	if kmsErr != nil && !o.modifiersStripped && len(o.modifiers) > 0 && o.pending.bufferFromSwapchain {
		o.logger.Warnf("%s: %s failed with a modifier-bearing format, retrying modifier-less", o.name, commitLabel(testOnly))
		o.modifiersStripped = true
		o.modifiers = []uint64{ModLinear}
		if o.swap != nil {
			// Drop the Acquire lock first so Destroy's release of the
			// permanent hold frees the staged buffer too.
			if o.pending.buffer != nil {
				o.pending.buffer.Unlock()
			}
			o.swap.Destroy()
			o.swap = nil
		}
		o.pending.buffer = nil
		if reErr := o.ensureBufferLocked(); reErr == nil {
			if req2, bErr := o.buildCommitRequest(testOnly); bErr == nil {
				req = req2
				kmsErr = o.backend.Commit(req, testOnly)
			}
		}
	}

	if kmsErr != nil {
		reason := ReasonPageFlip
		if req.Modeset {
			reason = ReasonModeset
		}
		return req, NewAtomicError(commitLabel(testOnly), o.crtcID, reason, errnoFrom(kmsErr))
	}
	return req, nil
}

// Test asks the backend to validate the pending configuration against the
// kernel without blitting.
func (o *Output) Test() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.attemptWithRetry(true)
	return err
}

// Commit asks the backend to apply the pending configuration. On success it
// consumes the staged back-buffer lock and arms pageflip-pending; on
// failure it returns an error and clears pending state (spec §8 "atomic
// rollback idempotence"). A cursor on a fake (id 0) cursor plane is sent
// through SetCursor before the commit and is not undone if the commit
// fails.
func (o *Output) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pageflipPending {
		return NewInvalidStateError("commit", "a commit is already outstanding on this output")
	}

	o.OnPrecommit.Emit(struct{}{})

	req, err := o.attemptWithRetry(false)
	if err != nil {
		o.pending.clear()
		kind := KindKmsAtomicFailure
		if de, ok := err.(*Error); ok {
			kind = de.Kind
		}
		o.OnCommit.Emit(CommitSignalData{Output: o, Failed: true, Kind: kind})
		return err
	}

	o.applyCommittedState(req)
	o.OnCommit.Emit(CommitSignalData{Output: o, Failed: false})
	return nil
}

func (o *Output) applyCommittedState(req *kms.CommitRequest) {
	if req.Modeset {
		o.hasMode = req.Active
		if req.Active {
			o.currentMode = o.pending.mode
		}
		o.OnMode.Emit(ModeSignalData{Output: o, Mode: o.currentMode})
	}
	o.enabled = req.Active

	if o.pending.buffer != nil {
		o.backBuffer = o.pending.buffer
	}

	if o.pending.flags.has(pendingCursor) {
		if o.cursorBuffer != nil && o.cursorBuffer != o.pending.cursorBuffer {
			o.cursorBuffer.Unlock()
		}
		o.cursorBuffer = o.pending.cursorBuffer
		o.cursorVisible = o.pending.cursorVisible
	}

	if req.Active && o.state != StateConnected {
		o.state = StateConnected
	}

	o.pageflipPending = true
	o.pending.clear()
}

// Rollback drops any staged buffer (unlocking it) and clears pending state
// without touching the kernel.
func (o *Output) Rollback() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending.buffer != nil {
		o.pending.buffer.Unlock()
	}
	if o.pending.cursorBuffer != nil {
		o.pending.cursorBuffer.Unlock()
	}
	o.pending.clear()
}

// HandlePageFlip processes a completed page flip: it promotes the back
// buffer to front, releases the previous front buffer, clears
// pageflip-pending, and — as a trailing step performed only after all
// state mutation is done — emits a frame signal if the output is still
// connected and the session is active. Emitting last means a subscriber
// that calls back into this output (e.g. to request another commit) never
// observes a half-updated state (spec REDESIGN FLAGS "callback
// re-entrancy", option (i)).
func (o *Output) HandlePageFlip(sessionActive bool) {
	o.mu.Lock()

	prevFront := o.frontBuffer
	if o.backBuffer != nil {
		o.frontBuffer = o.backBuffer
		o.backBuffer = nil
	}
	o.pageflipPending = false
	o.seq++
	seq := o.seq
	connected := o.state == StateConnected
	newFront := o.frontBuffer

	o.mu.Unlock()

	if prevFront != nil && prevFront != newFront {
		prevFront.Unlock()
	}

	if connected && sessionActive {
		o.OnFrame.Emit(FrameSignalData{Output: o, Seq: seq})
	}
}

// Cleanup tears an output down: if a page flip is outstanding it drains the
// event pump (via drainPageFlip, supplied by the caller so this package
// never polls a file descriptor itself) until none remains, optionally
// restores the saved pre-takeover CRTC configuration, releases every held
// buffer, and finally emits destroy — but only if the output ever reached
// StateConnected (spec §4.7: "No signals fire on an output that never
// reached connected").
func (o *Output) Cleanup(restore bool, drainPageFlip func() bool) {
	o.mu.Lock()
	reachedConnected := o.hasMode
	wasPending := o.pageflipPending
	o.mu.Unlock()

	if wasPending && drainPageFlip != nil {
		for drainPageFlip() {
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if restore && o.oldCRTC != nil && o.backend != nil {
		if err := o.backend.RestoreCRTC(o.oldCRTC); err != nil {
			o.logger.Warnf("%s: failed to restore previous CRTC: %v", o.name, err)
		}
	}

	if o.pending.buffer != nil {
		o.pending.buffer.Unlock()
	}
	if o.pending.cursorBuffer != nil {
		o.pending.cursorBuffer.Unlock()
	}
	o.pending.clear()

	if o.frontBuffer != nil {
		o.frontBuffer.Unlock()
		o.frontBuffer = nil
	}
	if o.backBuffer != nil {
		o.backBuffer.Unlock()
		o.backBuffer = nil
	}
	if o.cursorBuffer != nil {
		o.cursorBuffer.Unlock()
		o.cursorBuffer = nil
	}
	if o.swap != nil {
		o.swap.Destroy()
		o.swap = nil
	}

	o.state = StateDisconnected

	if reachedConnected {
		o.OnDestroy.Emit(DestroySignalData{Output: o})
	}
}

// RequestFrame notifies subscribers that this output would like a new
// frame rendered (e.g. in response to an idle-render timer upstream).
func (o *Output) RequestFrame() {
	o.OnNeedsFrame.Emit(struct{}{})
}

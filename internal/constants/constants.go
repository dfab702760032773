// Package constants holds default tunables shared across the output core.
package constants

import "time"

// Swapchain and buffer defaults.
const (
	// MaxSwapchainSlots is the fixed capacity of a swapchain (spec §4.6).
	MaxSwapchainSlots = 3

	// DefaultStrideAlignment is used by the SHM allocator when rounding a
	// computed stride up to a sensible value; the dumb allocator uses the
	// pitch the kernel returns instead.
	DefaultStrideAlignment = 64

	// AutoAssignDeviceID indicates the kernel should pick CRTC/plane ids.
	AutoAssignDeviceID = -1
)

// Timing constants for hotplug and page-flip handling.
//
// These delays account for kernel and udev processing latency the same way
// a device's startup needs delays: a connector or CRTC object exists in the
// kernel slightly before udev announces it to userspace, and a page flip
// event can trail its commit by more than one vblank under load.
const (
	// HotplugDebounce is how long the event pump waits after a udev
	// "change" event before re-running a full inventory, to coalesce
	// bursts of notifications from a single physical (un)plug.
	HotplugDebounce = 50 * time.Millisecond

	// PageFlipTimeout is a bound for waiting on a pending page flip. Output
	// cleanup does not read it: its drain loop spins until the flip clears,
	// with no time bound (spec §4.7).
	PageFlipTimeout = 2 * time.Second

	// PollIdleInterval is the period of the event pump's outer tick. Each
	// tick drains both fds with a zero-timeout poll(), so poll() itself
	// never blocks.
	PollIdleInterval = 16 * time.Millisecond
)

// Property names resolved once per object by the property cache (C1).
const (
	PropConnectorCRTCID     = "CRTC_ID"
	PropConnectorDPMS       = "DPMS"
	PropConnectorLinkStatus = "link-status"
	PropConnectorEDID       = "EDID"
	PropConnectorPath       = "PATH"

	PropCRTCModeID = "MODE_ID"
	PropCRTCActive = "ACTIVE"
	PropCRTCGamma  = "GAMMA_LUT"

	PropPlaneType   = "type"
	PropPlaneFBID   = "FB_ID"
	PropPlaneCRTCID = "CRTC_ID"
	PropPlaneSrcX   = "SRC_X"
	PropPlaneSrcY   = "SRC_Y"
	PropPlaneSrcW   = "SRC_W"
	PropPlaneSrcH   = "SRC_H"
	PropPlaneCrtcX  = "CRTC_X"
	PropPlaneCrtcY  = "CRTC_Y"
	PropPlaneCrtcW  = "CRTC_W"
	PropPlaneCrtcH  = "CRTC_H"
)

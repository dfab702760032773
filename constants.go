package drmoutput

import "github.com/tmarsh-oss/go-drmoutput/internal/constants"

// Re-export constants for public API.
const (
	MaxSwapchainSlots      = constants.MaxSwapchainSlots
	DefaultStrideAlignment = constants.DefaultStrideAlignment
	AutoAssignDeviceID     = constants.AutoAssignDeviceID
	HotplugDebounce        = constants.HotplugDebounce
	PageFlipTimeout        = constants.PageFlipTimeout
	PollIdleInterval       = constants.PollIdleInterval
)

package vkr

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ErrSurfaceStale means the surface no longer matches the swapchain,
// typically because the window was resized or the compositor changed
// the surface format. It is expected and recoverable: skip the frame
// and recreate the swapchain on the next cycle.
var ErrSurfaceStale = errors.New("vkr: surface stale, swapchain must be recreated")

// ErrZeroAreaSurface means the surface currently has a zero width or
// height (e.g. a minimized window). Recreation should simply be retried
// on a later resize event.
var ErrZeroAreaSurface = errors.New("vkr: surface has zero area")

// ErrOutOfDeviceMemory is returned when the driver reports device
// memory exhaustion. The frame in progress is aborted but the caller
// may free resources and retry.
var ErrOutOfDeviceMemory = errors.New("vkr: out of device memory")

// ErrOutOfHostMemory is the host-side counterpart of ErrOutOfDeviceMemory.
var ErrOutOfHostMemory = errors.New("vkr: out of host memory")

// ErrPoolExhausted is returned when a resource pool cannot fit an
// allocation. Unlike ErrOutOfDeviceMemory this is an application-level
// condition: the pool was simply sized too small.
var ErrPoolExhausted = errors.New("vkr: insufficient space in resource pool")

// ErrDeviceLost means the logical device is gone. There is no partial
// recovery; every GPU object must be torn down in reverse creation
// order and the device reinitialized from scratch.
var ErrDeviceLost = errors.New("vkr: device lost")

// resultErr maps a vulkan result code onto the package error taxonomy.
// Success codes map to nil. Staleness is deliberately not mapped here
// because acquire/present report it out of band, see Swapchain.Acquire.
func resultErr(res vk.Result) error {
	switch res {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDeviceMemory:
		return ErrOutOfDeviceMemory
	case vk.ErrorOutOfHostMemory:
		return ErrOutOfHostMemory
	case vk.ErrorDeviceLost:
		return ErrDeviceLost
	case vk.ErrorOutOfDate, vk.ErrorSurfaceLost:
		return ErrSurfaceStale
	default:
		return fmt.Errorf("vkr: vulkan error: %w", vk.Error(res))
	}
}

// IsFatal reports whether err allows no recovery short of a full
// teardown and reinitialization.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDeviceLost)
}

// IsTransient reports whether err is part of the normal resize /
// format-change flow and should never be surfaced to the end user.
func IsTransient(err error) bool {
	return errors.Is(err, ErrSurfaceStale) || errors.Is(err, ErrZeroAreaSurface)
}

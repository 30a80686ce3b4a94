package vkr

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestChooseSurfaceFormat(t *testing.T) {
	rgba := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	bgraSrgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	// no formats at all: fall back to the package default
	if got := chooseSurfaceFormat(nil, &rgba); got != defaultSurfaceFormat {
		t.Errorf("empty list: got %v, want default", got)
	}

	// the preferred format wins when the surface offers it
	available := []vk.SurfaceFormat{bgraSrgb, defaultSurfaceFormat, rgba}
	if got := chooseSurfaceFormat(available, &rgba); got != rgba {
		t.Errorf("preferred available: got %v, want %v", got, rgba)
	}

	// unsupported preference falls back to the default when present
	missing := vk.SurfaceFormat{Format: vk.FormatR8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	if got := chooseSurfaceFormat(available, &missing); got != defaultSurfaceFormat {
		t.Errorf("preferred missing: got %v, want default", got)
	}

	// no preference behaves the same
	if got := chooseSurfaceFormat(available, nil); got != defaultSurfaceFormat {
		t.Errorf("no preference: got %v, want default", got)
	}

	// neither preferred nor default offered: take what the surface has
	odd := []vk.SurfaceFormat{bgraSrgb, rgba}
	if got := chooseSurfaceFormat(odd, &missing); got != bgraSrgb {
		t.Errorf("nothing matches: got %v, want first offered", got)
	}
}

func TestChoosePresentMode(t *testing.T) {
	withMailbox := VKPresentModes{vk.PresentModeFifo, vk.PresentModeMailbox}
	if got := choosePresentMode(withMailbox); got != vk.PresentModeMailbox {
		t.Errorf("got %v, want mailbox", got)
	}

	fifoOnly := VKPresentModes{vk.PresentModeFifo, vk.PresentModeImmediate}
	if got := choosePresentMode(fifoOnly); got != vk.PresentModeFifo {
		t.Errorf("got %v, want fifo", got)
	}
}

func TestClampImageCount(t *testing.T) {
	cases := []struct {
		desired, min, max, want int
	}{
		{3, 2, 8, 3},   // in range
		{1, 1, 8, 2},   // never below the double-buffering floor
		{10, 2, 3, 3},  // capped by the surface maximum
		{1, 3, 8, 3},   // raised to the surface minimum
		{10, 2, 0, 10}, // max 0 means unbounded
	}
	for _, c := range cases {
		if got := clampImageCount(c.desired, c.min, c.max); got != c.want {
			t.Errorf("clampImageCount(%d, %d, %d) = %d, want %d",
				c.desired, c.min, c.max, got, c.want)
		}
	}
}

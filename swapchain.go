package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// defaultSurfaceFormat is used when the caller states no preference or
// the preferred format is not supported by the surface.
var defaultSurfaceFormat = vk.SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Unorm,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

// Swapchain owns the presentable images, their views and the
// negotiated surface format. Image count and format are fixed between
// recreation events; Recreate replaces the whole set atomically.
// Callers must guarantee no in-flight GPU work references the old
// images when Recreate runs.
type Swapchain struct {
	Device      *Device
	VKSwapchain vk.Swapchain

	surface      vk.Surface
	graphicsQF   *QueueFamily
	presentQueue *Queue

	preferred *vk.SurfaceFormat

	extent vk.Extent2D
	format vk.SurfaceFormat
	images []*Image
	views  []*ImageView
}

// CreateSwapchainOptions configures swapchain negotiation.
type CreateSwapchainOptions struct {
	// Extent is the requested size, consulted only when the surface
	// does not dictate one.
	Extent vk.Extent2D
	// PreferredFormat is tried first; when the surface does not
	// support it the default format is used instead.
	PreferredFormat *vk.SurfaceFormat
	// DesiredImageCount requests a number of presentable images. Zero
	// means driver minimum + 1. The result is never below 2.
	DesiredImageCount int
}

// chooseSurfaceFormat picks the surface format to use: the preferred
// one when the surface supports it, otherwise the package default,
// otherwise the first format the surface offers.
func chooseSurfaceFormat(available []vk.SurfaceFormat, preferred *vk.SurfaceFormat) vk.SurfaceFormat {
	if len(available) == 0 {
		return defaultSurfaceFormat
	}
	if preferred != nil {
		for _, f := range available {
			if f.Format == preferred.Format && f.ColorSpace == preferred.ColorSpace {
				return f
			}
		}
	}
	for _, f := range available {
		if f.Format == defaultSurfaceFormat.Format && f.ColorSpace == defaultSurfaceFormat.ColorSpace {
			return f
		}
	}
	return available[0]
}

// choosePresentMode prefers mailbox and falls back to fifo, which
// every conforming driver provides.
func choosePresentMode(available VKPresentModes) vk.PresentMode {
	if available.Contains(vk.PresentModeMailbox) {
		return vk.PresentModeMailbox
	}
	return vk.PresentModeFifo
}

// clampImageCount bounds a desired image count by the surface
// capabilities and enforces the no-single-buffering floor.
func clampImageCount(desired int, minCount, maxCount int) int {
	if desired < minCount {
		desired = minCount
	}
	if maxCount > 0 && desired > maxCount {
		desired = maxCount
	}
	if desired < 2 {
		desired = 2
	}
	return desired
}

// DefaultNumSwapchainImages is the driver minimum plus one, which
// avoids stalling on the compositor in fifo mode.
func (d *Device) DefaultNumSwapchainImages(surface vk.Surface) (int, error) {
	caps, err := d.PhysicalDevice.GetSurfaceCapabilities(surface)
	if err != nil {
		return 0, err
	}
	caps.Deref()
	return int(caps.MinImageCount) + 1, nil
}

// CreateSwapchain creates a swapchain for the surface, negotiating
// present mode, format and image count. A zero-area extent yields
// ErrZeroAreaSurface so callers can simply retry on the next resize.
func (d *Device) CreateSwapchain(surface vk.Surface, graphicsQueue, presentQueue *Queue, options *CreateSwapchainOptions) (*Swapchain, error) {
	s := &Swapchain{
		Device:       d,
		surface:      surface,
		graphicsQF:   graphicsQueue.QueueFamily,
		presentQueue: presentQueue,
	}

	var extent vk.Extent2D
	var desired int
	if options != nil {
		extent = options.Extent
		desired = options.DesiredImageCount
		s.preferred = options.PreferredFormat
	}

	if err := s.create(extent, s.preferred, desired, vk.NullSwapchain); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) create(extent vk.Extent2D, preferred *vk.SurfaceFormat, desiredImages int, old vk.Swapchain) error {
	pdev := s.Device.PhysicalDevice

	caps, err := pdev.GetSurfaceCapabilities(s.surface)
	if err != nil {
		return fmt.Errorf("querying surface capabilities: %w", err)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()

	// a surface with a fixed extent wins over the caller's request
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		extent = vk.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}
	}
	if extent.Width == 0 || extent.Height == 0 {
		return ErrZeroAreaSurface
	}

	modes, err := pdev.GetSurfacePresentModes(s.surface)
	if err != nil {
		return fmt.Errorf("querying present modes: %w", err)
	}

	formats, err := pdev.GetSurfaceFormats(s.surface)
	if err != nil {
		return fmt.Errorf("querying surface formats: %w", err)
	}
	for i := range formats {
		formats[i].Deref()
	}
	format := chooseSurfaceFormat(formats, preferred)

	if desiredImages == 0 {
		desiredImages = int(caps.MinImageCount) + 1
	}
	imageCount := clampImageCount(desiredImages, int(caps.MinImageCount), int(caps.MaxImageCount))

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    uint32(imageCount),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PresentMode:      choosePresentMode(modes),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}

	if s.graphicsQF.Index != s.presentQueue.QueueFamily.Index {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{uint32(s.graphicsQF.Index), uint32(s.presentQueue.QueueFamily.Index)}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var chain vk.Swapchain
	if err := resultErr(vk.CreateSwapchain(s.Device.VKDevice, &createInfo, nil, &chain)); err != nil {
		return fmt.Errorf("creating swapchain: %w", err)
	}

	s.VKSwapchain = chain
	s.extent = extent
	s.format = format

	if err := s.fetchImages(); err != nil {
		vk.DestroySwapchain(s.Device.VKDevice, chain, nil)
		s.VKSwapchain = vk.NullSwapchain
		return err
	}
	return nil
}

func (s *Swapchain) fetchImages() error {
	var count uint32
	if err := resultErr(vk.GetSwapchainImages(s.Device.VKDevice, s.VKSwapchain, &count, nil)); err != nil {
		return fmt.Errorf("counting swapchain images: %w", err)
	}

	raw := make([]vk.Image, count)
	if err := resultErr(vk.GetSwapchainImages(s.Device.VKDevice, s.VKSwapchain, &count, raw)); err != nil {
		return fmt.Errorf("getting swapchain images: %w", err)
	}
	if count < 2 {
		return fmt.Errorf("driver returned %d presentable images, need at least 2", count)
	}

	s.images = make([]*Image, count)
	s.views = make([]*ImageView, count)
	for i, img := range raw {
		s.images[i] = &Image{Device: s.Device, VKImage: img, VKFormat: s.format.Format}
		view, err := s.images[i].CreateImageView()
		if err != nil {
			for j := i - 1; j >= 0; j-- {
				s.views[j].Destroy()
			}
			s.images, s.views = nil, nil
			return fmt.Errorf("swapchain image view %d: %w", i, err)
		}
		s.views[i] = view
	}
	return nil
}

// Acquire requests the next presentable image, signaling sem once the
// image is ready for GPU work. stale means the surface changed and the
// swapchain must be recreated before drawing; it is not an error.
func (s *Swapchain) Acquire(sem vk.Semaphore) (int, bool, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(s.Device.VKDevice, s.VKSwapchain, vk.MaxUint64, sem, vk.NullFence, &imageIndex)
	if res == vk.ErrorOutOfDate || res == vk.Suboptimal {
		return 0, true, nil
	}
	if err := resultErr(res); err != nil {
		return 0, false, err
	}
	return int(imageIndex), false, nil
}

// Present queues the image for presentation, gated on wait. Staleness
// is reported the same way as Acquire.
func (s *Swapchain) Present(wait vk.Semaphore, imageIndex int) (bool, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.VKSwapchain},
		PImageIndices:      []uint32{uint32(imageIndex)},
	}

	res := vk.QueuePresent(s.presentQueue.VKQueue, &presentInfo)
	if res == vk.ErrorOutOfDate || res == vk.Suboptimal {
		return true, nil
	}
	return false, resultErr(res)
}

// Recreate replaces the image set with one matching the new extent
// and, when non-nil, the requested format. The old swapchain is handed
// to the driver as OldSwapchain and destroyed afterwards, views first.
// The caller must have waited for the device to go idle.
func (s *Swapchain) Recreate(extent vk.Extent2D, format *vk.SurfaceFormat) error {
	old := s.VKSwapchain
	oldViews := s.views

	preferred := s.preferred
	if format != nil {
		preferred = format
	}

	if err := s.create(extent, preferred, len(s.images), old); err != nil {
		return err
	}
	// the consumed format becomes the standing preference
	s.preferred = preferred

	for _, v := range oldViews {
		v.Destroy()
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(s.Device.VKDevice, old, nil)
	}
	return nil
}

// ImageCount returns the number of presentable images, always >= 2.
func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

// Images returns the presentable images. Borrowed; do not destroy.
func (s *Swapchain) Images() []*Image {
	return s.images
}

// Views returns the image views, one per presentable image. Borrowed;
// valid until the next Recreate or Destroy.
func (s *Swapchain) Views() []*ImageView {
	return s.views
}

// Extent returns the current swapchain dimensions.
func (s *Swapchain) Extent() vk.Extent2D {
	return s.extent
}

// SurfaceFormat returns the negotiated format and color space.
func (s *Swapchain) SurfaceFormat() vk.SurfaceFormat {
	return s.format
}

// Destroy releases the views and the swapchain handle. The device must
// be idle.
func (s *Swapchain) Destroy() {
	for _, v := range s.views {
		v.Destroy()
	}
	s.views = nil
	s.images = nil
	vk.DestroySwapchain(s.Device.VKDevice, s.VKSwapchain, nil)
	s.VKSwapchain = vk.NullSwapchain
}

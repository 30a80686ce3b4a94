package vkr

import (
	"fmt"
	"log"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// Config carries the options the frame core recognizes. It is passed
// explicitly at construction; there is no package-level configuration.
type Config struct {
	// FrameRingDepth is the number of in-flight frame slots, >= 2.
	// Zero means 2, giving one frame of CPU/GPU overlap. Deeper rings
	// tolerate more latency but cost memory and input lag.
	FrameRingDepth int
	// PreferredFormat is the surface format to negotiate for; a
	// default is used when the surface does not support it.
	PreferredFormat *vk.SurfaceFormat
	// InitialExtent sizes the swapchain when no window dictates one.
	InitialExtent vk.Extent2D
}

func (c *Config) ringDepth() int {
	if c.FrameRingDepth == 0 {
		return 2
	}
	return c.FrameRingDepth
}

// GraphicsApp owns the device setup and the frame core and drives a
// RenderDelegate. It does not know what is drawn: the delegate records
// the main and overlay passes, and rebuilds its swapchain-sized
// resources in OnRecreate.
type GraphicsApp struct {
	Instance *Instance
	App      *App

	Window    *glfw.Window
	VKSurface vk.Surface

	Device         *Device
	PhysicalDevice *PhysicalDevice

	GraphicsQueue *Queue
	PresentQueue  *Queue

	GraphicsCommandPool *CommandPool
	PipelineCache       *PipelineCache
	ResourceManager     *ResourceManager

	Swapchain *Swapchain

	config   Config
	commands FrameCommands
	loop     *FrameLoop

	screenExtent vk.Extent2D
}

// NewGraphicsApp creates an app shell with the given name, version and
// frame-core configuration.
func NewGraphicsApp(name string, version Version, config Config) (*GraphicsApp, error) {
	if config.FrameRingDepth == 1 {
		return nil, fmt.Errorf("frame ring depth must be at least 2, got 1")
	}
	return &GraphicsApp{
		App:          &App{Name: name, Version: version},
		config:       config,
		screenExtent: config.InitialExtent,
	}, nil
}

// EnableDebugging turns on validation before Init.
func (p *GraphicsApp) EnableDebugging() bool {
	if p.Instance != nil {
		return false
	}
	p.App.EnableDebugging()
	return true
}

// EnableExtension enables an instance extension if the loader supports
// it.
func (p *GraphicsApp) EnableExtension(extension string) bool {
	supported, err := SupportedExtensions()
	if err != nil {
		return false
	}
	for _, s := range supported {
		if extension == s {
			p.App.EnableExtension(extension)
			return true
		}
	}
	return false
}

// SetWindow attaches the GLFW window. Must be called before Init so
// the window's required instance extensions get enabled.
func (p *GraphicsApp) SetWindow(window *glfw.Window) error {
	if p.Instance != nil {
		return fmt.Errorf("window must be set prior to initialization")
	}
	p.Window = window

	for _, ext := range window.GetRequiredInstanceExtensions() {
		if !p.EnableExtension(ext) {
			return fmt.Errorf("extension '%s' required by glfw is not supported by vulkan", ext)
		}
	}

	p.refreshScreenExtent()
	return nil
}

// Init creates the instance, surface, logical device and queues. The
// first physical device with a graphics+present capable queue family
// wins.
func (p *GraphicsApp) Init() error {
	var err error

	p.Instance, err = p.App.CreateInstance()
	if err != nil {
		return err
	}

	if p.Window != nil && p.VKSurface == vk.NullSurface {
		surface, err := p.Window.CreateWindowSurface(p.Instance.VKInstance, nil)
		if err != nil {
			return fmt.Errorf("creating window surface: %w", err)
		}
		p.VKSurface = vk.SurfaceFromPointer(surface)
	}

	physicalDevices, err := p.Instance.PhysicalDevices()
	if err != nil {
		return fmt.Errorf("error getting devices: %w", err)
	}
	if len(physicalDevices) == 0 {
		return fmt.Errorf("no devices found")
	}

	pdevice := physicalDevices[0]

	queues, err := pdevice.QueueFamilies()
	if err != nil {
		return fmt.Errorf("unable to load device queue families: %w", err)
	}

	gqueues := queues.FilterGraphicsAndPresent(p.VKSurface)
	if len(gqueues) == 0 {
		return fmt.Errorf("no graphics capable queues found on device: %v", pdevice)
	}

	enabledExtensions := []string{}
	if p.Window != nil {
		enabledExtensions = []string{"VK_KHR_swapchain"}
	}

	ldevice, err := pdevice.CreateLogicalDeviceWithOptions(gqueues, &CreateDeviceOptions{
		EnabledExtensions: enabledExtensions,
	})
	if err != nil {
		return fmt.Errorf("unable to create device: %w", err)
	}

	p.Device = ldevice
	p.PhysicalDevice = pdevice

	if len(gqueues) == 1 {
		queue := ldevice.GetQueue(gqueues[0])
		p.GraphicsQueue = queue
		p.PresentQueue = queue
	} else {
		pq := gqueues.FilterPresent(p.VKSurface)
		gq := gqueues.FilterGraphics()
		p.GraphicsQueue = ldevice.GetQueue(gq[0])
		p.PresentQueue = ldevice.GetQueue(pq[0])
	}

	p.GraphicsCommandPool, err = p.Device.CreateCommandPool(p.GraphicsQueue.QueueFamily)
	if err != nil {
		return err
	}

	p.PipelineCache, err = p.Device.CreatePipelineCache()
	if err != nil {
		return err
	}

	p.ResourceManager = p.Device.CreateResourceManager()

	return nil
}

// PrepareToDraw builds the swapchain and the frame core around the
// delegate. Must be called after Init.
func (p *GraphicsApp) PrepareToDraw(delegate RenderDelegate) error {
	if delegate == nil {
		return fmt.Errorf("no render delegate has been configured")
	}

	p.refreshScreenExtent()

	swapchain, err := p.Device.CreateSwapchain(p.VKSurface, p.GraphicsQueue, p.PresentQueue, &CreateSwapchainOptions{
		Extent:          p.screenExtent,
		PreferredFormat: p.config.PreferredFormat,
	})
	if err != nil {
		return fmt.Errorf("creating swapchain: %w", err)
	}
	p.Swapchain = swapchain

	p.commands, err = NewFrameCommands(p.GraphicsCommandPool, swapchain.ImageCount())
	if err != nil {
		return err
	}

	p.loop, err = NewFrameLoop(p.Device, swapchain, p.GraphicsQueue, p.commands, delegate, p.config.ringDepth())
	if err != nil {
		return err
	}

	log.Printf("prepared to draw: %d images, ring depth %d, format %v",
		swapchain.ImageCount(), p.config.ringDepth(), swapchain.SurfaceFormat().Format)

	return nil
}

// DrawFrame runs one cycle of the frame loop. Transient surface
// changes are handled internally; errors that reach the caller are
// real, and fatal ones satisfy IsFatal.
func (p *GraphicsApp) DrawFrame() error {
	return p.loop.Frame(p.screenExtent)
}

// Resize tells the frame core the window changed. Safe to call from a
// glfw size callback; recreation happens at the next frame boundary.
func (p *GraphicsApp) Resize() {
	p.refreshScreenExtent()
	p.loop.MarkDirty()
}

// RequestFormatChange rebuilds the swapchain with the given surface
// format at the next frame boundary. Repeated requests before that
// boundary collapse into one recreation with the last format.
func (p *GraphicsApp) RequestFormatChange(format vk.SurfaceFormat) {
	p.loop.RequestFormatChange(format)
}

// Statistics returns frame timing for the owning application.
func (p *GraphicsApp) Statistics() Statistics {
	return p.loop.Statistics()
}

// GetScreenExtent returns the current framebuffer size.
func (p *GraphicsApp) GetScreenExtent() vk.Extent2D {
	return p.screenExtent
}

// NumSwapchainImages returns the current presentable image count. It
// may change across recreations; delegates should re-read it inside
// OnRecreate.
func (p *GraphicsApp) NumSwapchainImages() int {
	return p.Swapchain.ImageCount()
}

// WaitIdle blocks until all in-flight frames completed. Required
// before shutdown.
func (p *GraphicsApp) WaitIdle() error {
	return p.Device.WaitIdle()
}

func (p *GraphicsApp) refreshScreenExtent() {
	if p.Window == nil {
		return
	}
	width, height := p.Window.GetFramebufferSize()
	p.screenExtent = vk.Extent2D{Width: uint32(width), Height: uint32(height)}
}

// Destroy tears everything down in strict reverse creation order. It
// waits for the device first, so frames still on the GPU complete
// before any object they reference dies.
func (p *GraphicsApp) Destroy() {
	if p.Device != nil {
		if err := p.Device.WaitIdle(); err != nil {
			log.Printf("wait idle during teardown: %v", err)
		}
	}

	if p.loop != nil {
		p.loop.Destroy()
		p.loop = nil
	}
	if p.commands != nil {
		p.commands.Destroy()
		p.commands = nil
	}
	if p.Swapchain != nil {
		p.Swapchain.Destroy()
		p.Swapchain = nil
	}
	if p.ResourceManager != nil {
		p.ResourceManager.Destroy()
		p.ResourceManager = nil
	}
	if p.PipelineCache != nil {
		p.PipelineCache.Destroy(p.Device)
		p.PipelineCache = nil
	}
	if p.GraphicsCommandPool != nil {
		p.GraphicsCommandPool.Destroy()
		p.GraphicsCommandPool = nil
	}
	if p.VKSurface != vk.NullSurface {
		vk.DestroySurface(p.Instance.VKInstance, p.VKSurface, nil)
		p.VKSurface = vk.NullSurface
	}
	if p.Device != nil {
		p.Device.Destroy()
		p.Device = nil
	}
	if p.Instance != nil {
		p.Instance.Destroy()
		p.Instance = nil
	}
}

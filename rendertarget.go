package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// RenderTargetOptions configures a RenderTarget.
type RenderTargetOptions struct {
	// DepthFormat enables a depth attachment when not FormatUndefined.
	DepthFormat vk.Format
	// ClearColor clears the color attachment at the start of the pass.
	ClearColor [4]float32
	// ConfigureRenderPass, when set, may adjust the render pass info
	// before the pass is created.
	ConfigureRenderPass func(info *vk.RenderPassCreateInfo)
}

// RenderTarget owns a render pass and one framebuffer per swapchain
// image, plus the depth attachment when one is configured. Delegates
// that render to the swapchain build one in PrepareToDraw and call
// Rebuild from OnRecreate; the attachments are sized to the swapchain
// and die with it.
type RenderTarget struct {
	VKRenderPass vk.RenderPass
	Framebuffers []vk.Framebuffer

	app     *GraphicsApp
	options RenderTargetOptions

	depthImage *ImageResource
	depthView  *ImageView
}

// CreateRenderTarget builds a render target against the current
// swapchain. Call after PrepareToDraw created the swapchain.
func (p *GraphicsApp) CreateRenderTarget(options RenderTargetOptions) (*RenderTarget, error) {
	r := &RenderTarget{app: p, options: options}
	if err := r.build(p.Swapchain.Extent(), p.Swapchain.SurfaceFormat()); err != nil {
		return nil, err
	}
	return r, nil
}

// HasDepth reports whether the target carries a depth attachment.
func (r *RenderTarget) HasDepth() bool {
	return r.options.DepthFormat != vk.FormatUndefined
}

// DepthView returns the depth attachment's view, or nil when the
// target has none. Other passes may attach it to depth-test against
// this target's geometry; the view dies on Rebuild, so holders must
// refresh from OnRecreate.
func (r *RenderTarget) DepthView() *ImageView {
	return r.depthView
}

func (r *RenderTarget) renderPassCreateInfo(format vk.SurfaceFormat) vk.RenderPassCreateInfo {
	attachments := []vk.AttachmentDescription{{
		Format:         format.Format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}

	colorAttachments := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorAttachments,
	}

	if r.HasDepth() {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         r.options.DepthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
}

func (r *RenderTarget) build(extent vk.Extent2D, format vk.SurfaceFormat) error {
	createInfo := r.renderPassCreateInfo(format)
	if r.options.ConfigureRenderPass != nil {
		r.options.ConfigureRenderPass(&createInfo)
	}

	var renderPass vk.RenderPass
	if err := resultErr(vk.CreateRenderPass(r.app.Device.VKDevice, &createInfo, nil, &renderPass)); err != nil {
		return fmt.Errorf("creating render pass: %w", err)
	}
	r.VKRenderPass = renderPass

	if r.HasDepth() {
		var err error
		r.depthImage, err = r.app.ResourceManager.NewImageResourceWithOptions(extent,
			r.options.DepthFormat, vk.ImageTilingOptimal, vk.ImageUsageDepthStencilAttachmentBit,
			vk.SharingModeExclusive, vk.MemoryPropertyDeviceLocalBit)
		if err != nil {
			r.destroyAttachments()
			return fmt.Errorf("creating depth image: %w", err)
		}
		r.depthView, err = r.depthImage.CreateImageViewWithAspectMask(vk.ImageAspectFlags(vk.ImageAspectDepthBit))
		if err != nil {
			r.destroyAttachments()
			return fmt.Errorf("creating depth view: %w", err)
		}
	}

	views := r.app.Swapchain.Views()
	r.Framebuffers = make([]vk.Framebuffer, len(views))
	for i, view := range views {
		attachments := []vk.ImageView{view.VKImageView}
		if r.HasDepth() {
			attachments = append(attachments, r.depthView.VKImageView)
		}
		fbCreateInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      r.VKRenderPass,
			Layers:          1,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           extent.Width,
			Height:          extent.Height,
		}
		if err := resultErr(vk.CreateFramebuffer(r.app.Device.VKDevice, &fbCreateInfo, nil, &r.Framebuffers[i])); err != nil {
			r.destroyAttachments()
			return fmt.Errorf("creating framebuffer %d: %w", i, err)
		}
	}
	return nil
}

// Rebuild tears the target down and builds it against the new
// swapchain. Call from RenderDelegate.OnRecreate; the device is idle
// there.
func (r *RenderTarget) Rebuild(extent vk.Extent2D, format vk.SurfaceFormat) error {
	r.destroyAttachments()
	return r.build(extent, format)
}

// Begin starts the render pass against the framebuffer for the given
// swapchain image, clearing all attachments.
func (r *RenderTarget) Begin(cmd *CommandBuffer, imageIndex int) {
	clearValues := make([]vk.ClearValue, 1, 2)
	clearValues[0].SetColor(r.options.ClearColor[:])
	if r.HasDepth() {
		var depth vk.ClearValue
		depth.SetDepthStencil(1, 0)
		clearValues = append(clearValues, depth)
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  r.VKRenderPass,
		Framebuffer: r.Framebuffers[imageIndex],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: r.app.Swapchain.Extent(),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cmd.VK(), &beginInfo, vk.SubpassContentsInline)
}

// End closes the render pass.
func (r *RenderTarget) End(cmd *CommandBuffer) {
	vk.CmdEndRenderPass(cmd.VK())
}

func (r *RenderTarget) destroyAttachments() {
	for i := range r.Framebuffers {
		vk.DestroyFramebuffer(r.app.Device.VKDevice, r.Framebuffers[i], nil)
	}
	r.Framebuffers = nil

	if r.depthView != nil {
		r.depthView.Destroy()
		r.depthView = nil
	}
	if r.depthImage != nil {
		r.depthImage.Destroy()
		r.depthImage = nil
	}
	if r.VKRenderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(r.app.Device.VKDevice, r.VKRenderPass, nil)
		r.VKRenderPass = vk.NullRenderPass
	}
}

// Destroy releases the render pass, framebuffers and depth attachment.
// The device must be idle.
func (r *RenderTarget) Destroy() {
	r.destroyAttachments()
}

package vkr

import (
	vk "github.com/vulkan-go/vulkan"
)

// CommandBuffer records a sequence of commands for submission to a
// device queue. Only the commands this package itself needs are
// wrapped; applications call the native vulkan command APIs against
// VK() for everything else.
type CommandBuffer struct {
	VKCommandBuffer vk.CommandBuffer
}

// VK exposes the native handle for unwrapped vulkan commands.
func (c *CommandBuffer) VK() vk.CommandBuffer {
	return c.VKCommandBuffer
}

// Reset clears the buffer for re-recording.
func (c *CommandBuffer) Reset() error {
	return resultErr(vk.ResetCommandBuffer(c.VKCommandBuffer, 0))
}

// ResetAndRelease clears the buffer and returns its resources to the
// pool.
func (c *CommandBuffer) ResetAndRelease() error {
	return resultErr(vk.ResetCommandBuffer(c.VKCommandBuffer, vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit)))
}

// Begin starts recording.
func (c *CommandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	return resultErr(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

// BeginOneTime starts recording a buffer that will be submitted once
// and thrown away.
func (c *CommandBuffer) BeginOneTime() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return resultErr(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

// End finishes recording.
func (c *CommandBuffer) End() error {
	return resultErr(vk.EndCommandBuffer(c.VKCommandBuffer))
}

func (c *CommandBuffer) CmdBindComputePipeline(p *ComputePipeline) {
	vk.CmdBindPipeline(c.VKCommandBuffer, vk.PipelineBindPointCompute, p.VKPipeline)
}

func (c *CommandBuffer) CmdBindGraphicsPipeline(p vk.Pipeline) {
	vk.CmdBindPipeline(c.VKCommandBuffer, vk.PipelineBindPointGraphics, p)
}

func (c *CommandBuffer) CmdBindDescriptorSets(bindPoint vk.PipelineBindPoint, layout *PipelineLayout, firstSet int, descriptorSets ...*DescriptorSet) {
	sets := make([]vk.DescriptorSet, len(descriptorSets))
	for i := range descriptorSets {
		sets[i] = descriptorSets[i].VKDescriptorSet
	}

	vk.CmdBindDescriptorSets(c.VKCommandBuffer, bindPoint,
		layout.VKPipelineLayout, uint32(firstSet), uint32(len(descriptorSets)), sets, 0, nil)
}

func (c *CommandBuffer) CmdDispatch(x, y, z int) {
	vk.CmdDispatch(c.VKCommandBuffer, uint32(x), uint32(y), uint32(z))
}

// ImageLayoutTransition describes one image barrier. Zero access masks
// are valid for transitions that only change layout.
type ImageLayoutTransition struct {
	Image     vk.Image
	OldLayout vk.ImageLayout
	NewLayout vk.ImageLayout
	SrcAccess vk.AccessFlagBits
	DstAccess vk.AccessFlagBits
	SrcStage  vk.PipelineStageFlagBits
	DstStage  vk.PipelineStageFlagBits
}

// CmdTransitionImageLayout records a pipeline barrier moving an image
// between layouts. The delegate's record callbacks use it to bring the
// acquired swapchain image into a renderable layout and back to the
// present layout before recording ends.
func (c *CommandBuffer) CmdTransitionImageLayout(t ImageLayoutTransition) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           t.OldLayout,
		NewLayout:           t.NewLayout,
		SrcAccessMask:       vk.AccessFlags(t.SrcAccess),
		DstAccessMask:       vk.AccessFlags(t.DstAccess),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.Image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	vk.CmdPipelineBarrier(c.VKCommandBuffer,
		vk.PipelineStageFlags(t.SrcStage), vk.PipelineStageFlags(t.DstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

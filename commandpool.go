package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// CommandPool allocates command buffers for one queue family. Pools
// are created with the reset bit so per-frame buffers can be
// re-recorded in place.
type CommandPool struct {
	Device        *Device
	QueueFamily   *QueueFamily
	VKCommandPool vk.CommandPool
}

func (d *Device) CreateCommandPool(q *QueueFamily) (*CommandPool, error) {
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit | vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: uint32(q.Index),
	}

	var pool vk.CommandPool
	if err := resultErr(vk.CreateCommandPool(d.VKDevice, &createInfo, nil, &pool)); err != nil {
		return nil, fmt.Errorf("creating command pool for queue family %d: %w", q.Index, err)
	}

	return &CommandPool{Device: d, QueueFamily: q, VKCommandPool: pool}, nil
}

// AllocateBuffers allocates count primary command buffers.
func (c *CommandPool) AllocateBuffers(count int) ([]*CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.VKCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	raw := make([]vk.CommandBuffer, count)
	if err := resultErr(vk.AllocateCommandBuffers(c.Device.VKDevice, &allocateInfo, raw)); err != nil {
		return nil, fmt.Errorf("allocating command buffers: %w", err)
	}

	buffers := make([]*CommandBuffer, count)
	for i := range buffers {
		buffers[i] = &CommandBuffer{VKCommandBuffer: raw[i]}
	}
	return buffers, nil
}

// AllocateBuffer allocates a single primary command buffer.
func (c *CommandPool) AllocateBuffer() (*CommandBuffer, error) {
	buffers, err := c.AllocateBuffers(1)
	if err != nil {
		return nil, err
	}
	return buffers[0], nil
}

func (c *CommandPool) FreeBuffers(buffers []*CommandBuffer) {
	raw := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		raw[i] = buffers[i].VKCommandBuffer
	}
	vk.FreeCommandBuffers(c.Device.VKDevice, c.VKCommandPool, uint32(len(buffers)), raw)
}

func (c *CommandPool) FreeBuffer(b *CommandBuffer) {
	c.FreeBuffers([]*CommandBuffer{b})
}

func (c *CommandPool) Destroy() {
	vk.DestroyCommandPool(c.Device.VKDevice, c.VKCommandPool, nil)
}

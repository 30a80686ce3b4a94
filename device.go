package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Device is a logical vulkan device. It is the construction context
// for everything else in this package: swapchains, frame rings,
// buffers, images and pipelines all hang off a Device. There is no
// package-level device; callers pass it explicitly.
type Device struct {
	PhysicalDevice *PhysicalDevice
	VKDevice       vk.Device
}

func (d *Device) String() string {
	return fmt.Sprintf("{ PhysicalDevice: %s }", d.PhysicalDevice)
}

// WaitIdle blocks until every queue on the device drained. It is the
// precondition for swapchain recreation and for teardown.
func (d *Device) WaitIdle() error {
	return resultErr(vk.DeviceWaitIdle(d.VKDevice))
}

// Destroy releases the logical device. All child objects must have
// been destroyed first.
func (d *Device) Destroy() {
	vk.DestroyDevice(d.VKDevice, nil)
}

// GetQueue fetches queue 0 of the given family.
func (d *Device) GetQueue(qf *QueueFamily) *Queue {
	var vkq vk.Queue
	vk.GetDeviceQueue(d.VKDevice, uint32(qf.Index), 0, &vkq)

	return &Queue{
		Device:      d,
		QueueFamily: qf,
		VKQueue:     vkq,
	}
}

// AllocationRequirements describes what a buffer or image needs from
// device memory.
type AllocationRequirements struct {
	Size           int
	MemoryTypeBits uint32
}

// AllocateForBuffer allocates device memory sized and typed for b.
func (d *Device) AllocateForBuffer(b *Buffer, memoryProperties vk.MemoryPropertyFlags) (*DeviceMemory, error) {
	ar := b.AllocationRequirements()
	return d.Allocate(ar.Size, ar.MemoryTypeBits, vk.MemoryPropertyFlagBits(memoryProperties))
}

// Allocate allocates raw device memory of a type matching
// memoryTypeBits and the requested properties.
func (d *Device) Allocate(sizeInBytes int, memoryTypeBits uint32, memoryProperties vk.MemoryPropertyFlagBits) (*DeviceMemory, error) {
	typeIndex, err := d.PhysicalDevice.FindMemoryType(memoryTypeBits, memoryProperties)
	if err != nil {
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(sizeInBytes),
		MemoryTypeIndex: typeIndex,
	}

	var deviceMemory vk.DeviceMemory
	if err := resultErr(vk.AllocateMemory(d.VKDevice, &allocateInfo, nil, &deviceMemory)); err != nil {
		return nil, fmt.Errorf("allocating %d bytes of device memory: %w", sizeInBytes, err)
	}

	return &DeviceMemory{
		Size:           uint64(sizeInBytes),
		Device:         d,
		VKDeviceMemory: deviceMemory,
	}, nil
}

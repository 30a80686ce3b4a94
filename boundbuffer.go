package vkr

import (
	vk "github.com/vulkan-go/vulkan"
)

// HostBoundBuffer couples a buffer, its host-visible memory and the
// BufferObject whose data it mirrors.
type HostBoundBuffer struct {
	HostBuffer       *Buffer
	HostMemory       *DeviceMemory
	HostMemoryOffset uint64
	BufferObject     BufferObject
}

// StagedBoundBuffer is a HostBoundBuffer plus a device-local copy the
// host side stages into.
type StagedBoundBuffer struct {
	HostBoundBuffer

	DeviceBuffer       *Buffer
	DeviceMemory       *DeviceMemory
	DeviceMemoryOffset uint64
}

// CreateAndBindBufferAndMemory creates a buffer, allocates matching
// memory and binds the two.
func (d *Device) CreateAndBindBufferAndMemory(size uint64, offset uint64, usage vk.BufferUsageFlags, mprops vk.MemoryPropertyFlags, sharing vk.SharingMode) (*Buffer, *DeviceMemory, error) {
	buffer, err := d.CreateBufferWithOptions(size, usage, sharing)
	if err != nil {
		return nil, nil, err
	}
	memory, err := d.AllocateForBuffer(buffer, mprops)
	if err != nil {
		buffer.Destroy()
		return nil, nil, err
	}
	if err := buffer.Bind(memory, offset); err != nil {
		memory.Destroy()
		buffer.Destroy()
		return nil, nil, err
	}
	return buffer, memory, nil
}

func (d *Device) CreateHostVertexBuffer(bo BufferObject, sharingMode vk.SharingMode) (*HostBoundBuffer, error) {
	return d.createHostBuffer(bo, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), sharingMode)
}

func (d *Device) CreateHostIndexBuffer(bo BufferObject, sharingMode vk.SharingMode) (*HostBoundBuffer, error) {
	return d.createHostBuffer(bo, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), sharingMode)
}

func (d *Device) createHostBuffer(bo BufferObject, usage vk.BufferUsageFlags, sharingMode vk.SharingMode) (*HostBoundBuffer, error) {
	buffer, memory, err := d.CreateAndBindBufferAndMemory(uint64(len(bo.Bytes())), 0, usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit), sharingMode)
	if err != nil {
		return nil, err
	}

	return &HostBoundBuffer{
		HostBuffer:   buffer,
		HostMemory:   memory,
		BufferObject: bo,
	}, nil
}

// CreateHostBoundBuffer creates a host-visible buffer whose usage is
// inferred from the interfaces the BufferObject implements.
func (d *Device) CreateHostBoundBuffer(bo BufferObject) (*HostBoundBuffer, error) {
	var usage vk.BufferUsageFlags
	if _, ok := bo.(VertexSource); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if _, ok := bo.(IndexSource); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	if _, ok := bo.(UBO); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}

	return d.createHostBuffer(bo, usage, vk.SharingModeExclusive)
}

// CreateStagedBoundBuffer creates a host-visible staging buffer plus a
// device-local destination whose usage is inferred from the
// BufferObject.
func (d *Device) CreateStagedBoundBuffer(bo BufferObject) (*StagedBoundBuffer, error) {
	s := &StagedBoundBuffer{}
	s.BufferObject = bo

	size := uint64(len(bo.Bytes()))

	buffer, memory, err := d.CreateAndBindBufferAndMemory(size, 0,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		vk.SharingModeExclusive)
	if err != nil {
		return nil, err
	}

	s.HostBuffer = buffer
	s.HostMemory = memory

	usage := vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	if _, ok := bo.(VertexSource); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if _, ok := bo.(IndexSource); ok {
		usage |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}

	buffer, memory, err = d.CreateAndBindBufferAndMemory(size, 0, usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.SharingModeExclusive)
	if err != nil {
		s.Destroy()
		return nil, err
	}

	s.DeviceBuffer = buffer
	s.DeviceMemory = memory

	return s, nil
}

// Map copies the BufferObject's current bytes into the host buffer.
func (h *HostBoundBuffer) Map() error {
	data := h.BufferObject.Bytes()

	pm, err := h.HostMemory.MapWithSize(len(data))
	if err != nil {
		return err
	}
	copy(ToBytes(pm, len(data)), data)
	h.HostMemory.Unmap()

	return nil
}

func (h *HostBoundBuffer) Destroy() {
	if h.HostMemory != nil {
		h.HostMemory.Destroy()
	}
	if h.HostBuffer != nil {
		h.HostBuffer.Destroy()
	}
}

func (s *StagedBoundBuffer) Destroy() {
	s.HostBoundBuffer.Destroy()
	if s.DeviceMemory != nil {
		s.DeviceMemory.Destroy()
	}
	if s.DeviceBuffer != nil {
		s.DeviceBuffer.Destroy()
	}
}

// CopyBuffer records the host to device copy of a staged buffer.
func (cb *CommandBuffer) CopyBuffer(s *StagedBoundBuffer) {
	vk.CmdCopyBuffer(cb.VK(), s.HostBuffer.VKBuffer, s.DeviceBuffer.VKBuffer, 1, []vk.BufferCopy{
		{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      vk.DeviceSize(s.HostBuffer.Size),
		},
	})
}

package vkr

import (
	"sync/atomic"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// DeviceMemory wraps a vulkan memory allocation, host or device local.
type DeviceMemory struct {
	Device         *Device
	VKDeviceMemory vk.DeviceMemory
	Size           uint64
	MapCount       int32
	Ptr            unsafe.Pointer
}

// IsMapped reports whether the memory is currently mapped.
func (d *DeviceMemory) IsMapped() bool {
	return atomic.LoadInt32(&d.MapCount) > 0
}

func (d *DeviceMemory) Destroy() {
	vk.FreeMemory(d.Device.VKDevice, d.VKDeviceMemory, nil)
}

// MapCopyUnmap maps the memory, copies data into it and unmaps.
func (d *DeviceMemory) MapCopyUnmap(data []byte) error {
	pm, err := d.MapWithSize(len(data))
	if err != nil {
		return err
	}
	copy(ToBytes(pm, len(data)), data)
	d.Unmap()
	return nil
}

// MapWithOffset maps size bytes starting at offset.
func (d *DeviceMemory) MapWithOffset(size uint64, offset uint64) (unsafe.Pointer, error) {
	var res unsafe.Pointer
	if err := resultErr(vk.MapMemory(d.Device.VKDevice, d.VKDeviceMemory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &res)); err != nil {
		return nil, err
	}
	atomic.AddInt32(&d.MapCount, 1)
	return res, nil
}

// Map maps the whole allocation.
func (d *DeviceMemory) Map() (unsafe.Pointer, error) {
	res, err := d.MapWithOffset(d.Size, 0)
	if err != nil {
		return nil, err
	}
	d.Ptr = res
	return res, nil
}

// MapWithSize maps size bytes from the start of the allocation.
func (d *DeviceMemory) MapWithSize(size int) (unsafe.Pointer, error) {
	return d.MapWithOffset(uint64(size), 0)
}

func (d *DeviceMemory) Unmap() {
	d.Ptr = nil
	vk.UnmapMemory(d.Device.VKDevice, d.VKDeviceMemory)
	atomic.AddInt32(&d.MapCount, -1)
}

// MappedMemoryRanger is implemented by resources that can describe
// their slice of mapped pool memory, see FlushMappedRanges.
type MappedMemoryRanger interface {
	VKMappedMemoryRange() vk.MappedMemoryRange
}

// FlushMappedRanges flushes host writes to the given resources. Only
// needed for memory without the host-coherent property.
func (d *Device) FlushMappedRanges(resources ...MappedMemoryRanger) error {
	ranges := make([]vk.MappedMemoryRange, len(resources))
	for i, r := range resources {
		ranges[i] = r.VKMappedMemoryRange()
	}
	return resultErr(vk.FlushMappedMemoryRanges(d.VKDevice, uint32(len(ranges)), ranges))
}

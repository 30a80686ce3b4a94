package vkr

import (
	"log"

	vk "github.com/vulkan-go/vulkan"
)

// StagingPoolName is the reserved name of the buffer pool staged
// uploads draw from.
const StagingPoolName = "staging"

// ResourceManager owns named pools of device memory. Vulkan caps the
// number of live memory allocations, so buffers and images are
// sub-allocated from pools instead of each getting its own allocation.
type ResourceManager struct {
	Device      *Device
	bufferPools map[string]*BufferResourcePool
	imagePools  map[string]*ImageResourcePool
}

func (d *Device) CreateResourceManager() *ResourceManager {
	return &ResourceManager{
		Device:      d,
		bufferPools: make(map[string]*BufferResourcePool),
		imagePools:  make(map[string]*ImageResourcePool),
	}
}

// BufferResourcePool sub-allocates buffers from one device memory
// allocation.
type BufferResourcePool struct {
	Device           *Device
	Name             string
	Usage            vk.BufferUsageFlagBits
	Sharing          vk.SharingMode
	MemoryProperties vk.MemoryPropertyFlagBits
	Size             uint64
	Allocator        IAllocator
	Memory           *DeviceMemory
	NeedsStaging     bool
	ResourceManager  *ResourceManager
}

// ImageResourcePool sub-allocates images from one device memory
// allocation.
type ImageResourcePool struct {
	Device           *Device
	Name             string
	Usage            vk.ImageUsageFlagBits
	Sharing          vk.SharingMode
	MemoryProperties vk.MemoryPropertyFlagBits
	Size             uint64
	Allocator        IAllocator
	Memory           *DeviceMemory
	NeedsStaging     bool
	ResourceManager  *ResourceManager
}

func (r *ResourceManager) GetStagingPool() *BufferResourcePool {
	return r.bufferPools[StagingPoolName]
}

func (r *ResourceManager) HasStagingPool() bool {
	return r.bufferPools[StagingPoolName] != nil
}

func (r *ResourceManager) AllocateStagingPool(size uint64) (*BufferResourcePool, error) {
	return r.AllocateBufferPoolWithOptions(StagingPoolName, size,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit,
		vk.BufferUsageTransferSrcBit, vk.SharingModeExclusive)
}

func (r *ResourceManager) AllocateHostVertexAndIndexBufferPool(name string, size uint64) (*BufferResourcePool, error) {
	return r.AllocateBufferPoolWithOptions(name, size,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit,
		vk.BufferUsageVertexBufferBit|vk.BufferUsageIndexBufferBit, vk.SharingModeExclusive)
}

func (r *ResourceManager) AllocateDeviceTexturePool(name string, size uint64) (*ImageResourcePool, error) {
	return r.AllocateImagePoolWithOptions(name, size, vk.MemoryPropertyDeviceLocalBit,
		vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit, vk.SharingModeExclusive)
}

// AllocateBufferPoolWithOptions creates a named pool of size bytes.
// Pools in device-local memory are marked as needing staging.
func (r *ResourceManager) AllocateBufferPoolWithOptions(name string, size uint64, mprops vk.MemoryPropertyFlagBits, usage vk.BufferUsageFlagBits, sharing vk.SharingMode) (*BufferResourcePool, error) {
	// TODO: integrated GPUs expose device-local host-visible memory
	// where staging is a wasted copy
	needsStaging := mprops&vk.MemoryPropertyDeviceLocalBit == vk.MemoryPropertyDeviceLocalBit
	if needsStaging {
		usage |= vk.BufferUsageTransferDstBit
	}

	p := &BufferResourcePool{
		Device:           r.Device,
		Name:             name,
		Usage:            usage,
		Sharing:          sharing,
		MemoryProperties: mprops,
		Size:             size,
		Allocator:        &LinearAllocator{Size: size},
		NeedsStaging:     needsStaging,
		ResourceManager:  r,
	}

	// a throwaway buffer tells us which memory types this usage allows
	probe, err := r.Device.CreateBufferWithOptions(size, vk.BufferUsageFlags(usage), sharing)
	if err != nil {
		return nil, err
	}
	defer probe.Destroy()

	mr := probe.VKMemoryRequirements()
	mr.Deref()

	memory, err := r.Device.Allocate(int(size), mr.MemoryTypeBits, mprops)
	if err != nil {
		return nil, err
	}
	p.Memory = memory

	r.bufferPools[name] = p
	return p, nil
}

// AllocateImagePoolWithOptions creates a named image pool of size
// bytes.
func (r *ResourceManager) AllocateImagePoolWithOptions(name string, size uint64, mprops vk.MemoryPropertyFlagBits, usage vk.ImageUsageFlagBits, sharing vk.SharingMode) (*ImageResourcePool, error) {
	needsStaging := mprops&vk.MemoryPropertyDeviceLocalBit == vk.MemoryPropertyDeviceLocalBit
	if needsStaging {
		usage |= vk.ImageUsageTransferDstBit
	}

	p := &ImageResourcePool{
		Device:           r.Device,
		Name:             name,
		Usage:            usage,
		Sharing:          sharing,
		MemoryProperties: mprops,
		Size:             size,
		Allocator:        &LinearAllocator{Size: size},
		NeedsStaging:     needsStaging,
		ResourceManager:  r,
	}

	probe, err := r.Device.CreateImage(vk.Extent2D{Width: 800, Height: 600},
		vk.FormatR8g8b8a8Unorm, vk.ImageTilingOptimal, vk.ImageUsageFlags(usage))
	if err != nil {
		return nil, err
	}
	defer probe.Destroy()

	mr := probe.GetMemoryRequirements()
	mr.Deref()

	memory, err := r.Device.Allocate(int(size), mr.MemoryTypeBits, mprops)
	if err != nil {
		return nil, err
	}
	p.Memory = memory

	r.imagePools[name] = p
	return p, nil
}

// AllocateBuffer sub-allocates a buffer of size bytes from the pool.
// Returns ErrPoolExhausted when the pool cannot fit it.
func (p *BufferResourcePool) AllocateBuffer(size uint64, usage vk.BufferUsageFlagBits) (*BufferResource, error) {
	buffer, err := p.Device.CreateBufferWithOptions(size, vk.BufferUsageFlags(usage), vk.SharingModeExclusive)
	if err != nil {
		return nil, err
	}

	mr := buffer.VKMemoryRequirements()
	mr.Deref()

	allocation := p.Allocator.Allocate(size, uint64(mr.Alignment))
	if allocation == nil {
		buffer.Destroy()
		return nil, ErrPoolExhausted
	}

	if err := buffer.Bind(p.Memory, allocation.Offset); err != nil {
		p.Allocator.Free(allocation)
		buffer.Destroy()
		return nil, err
	}

	ret := &BufferResource{
		Allocation:   allocation,
		ResourcePool: p,
		Usage:        usage,
	}
	ret.VKBuffer = buffer.VKBuffer
	ret.Device = buffer.Device
	ret.Size = buffer.Size

	return ret, nil
}

// AllocateFor sub-allocates a buffer sized and typed for the given
// source object.
func (p *BufferResourcePool) AllocateFor(src BufferObject) (*BufferResource, error) {
	if _, ok := src.(VertexSource); ok {
		return p.AllocateBuffer(uint64(len(src.Bytes())), vk.BufferUsageVertexBufferBit)
	}
	if _, ok := src.(IndexSource); ok {
		return p.AllocateBuffer(uint64(len(src.Bytes())), vk.BufferUsageIndexBufferBit)
	}
	return p.AllocateBuffer(uint64(len(src.Bytes())), p.Usage)
}

// AllocateImage sub-allocates an image from the pool. Returns
// ErrPoolExhausted when the pool cannot fit it.
func (p *ImageResourcePool) AllocateImage(extent vk.Extent2D, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlagBits) (*ImageResource, error) {
	i, err := p.Device.CreateImage(extent, format, tiling, vk.ImageUsageFlags(usage))
	if err != nil {
		return nil, err
	}

	mr := i.GetMemoryRequirements()
	mr.Deref()

	allocation := p.Allocator.Allocate(uint64(mr.Size), uint64(mr.Alignment))
	if allocation == nil {
		i.Destroy()
		return nil, ErrPoolExhausted
	}

	if err := resultErr(vk.BindImageMemory(p.Device.VKDevice, i.VKImage, p.Memory.VKDeviceMemory, vk.DeviceSize(allocation.Offset))); err != nil {
		p.Allocator.Free(allocation)
		i.Destroy()
		return nil, err
	}

	img := &ImageResource{}
	img.VKImage = i.VKImage
	img.Device = i.Device
	img.VKFormat = i.VKFormat
	img.Size = uint64(mr.Size)
	img.Allocation = allocation
	img.ResourcePool = p
	img.Extent = extent

	return img, nil
}

func (p *BufferResourcePool) Destroy() {
	if p.Memory != nil {
		p.Memory.Destroy()
		p.Memory = nil
	}
	p.Allocator = nil
	delete(p.ResourceManager.bufferPools, p.Name)
}

func (p *ImageResourcePool) Destroy() {
	if p.Memory != nil {
		p.Memory.Destroy()
		p.Memory = nil
	}
	p.Allocator = nil
	delete(p.ResourceManager.imagePools, p.Name)
}

func (r *ResourceManager) BufferPool(name string) *BufferResourcePool {
	return r.bufferPools[name]
}

func (r *ResourceManager) ImagePool(name string) *ImageResourcePool {
	return r.imagePools[name]
}

func (r *ResourceManager) Destroy() {
	for _, p := range r.bufferPools {
		p.Destroy()
	}
	for _, p := range r.imagePools {
		p.Destroy()
	}
}

// LogDetails dumps pool occupancy, handy when sizing pools.
func (r *ResourceManager) LogDetails() {
	for name, pool := range r.bufferPools {
		log.Printf("buffer pool %q: size %d allocs %v", name, pool.Size, pool.Allocator)
	}
	for name, pool := range r.imagePools {
		log.Printf("image pool %q: size %d allocs %v", name, pool.Size, pool.Allocator)
	}
}

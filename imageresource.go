package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ImageResource is an image sub-allocated from an ImageResourcePool.
type ImageResource struct {
	Image
	Extent          vk.Extent2D
	Size            uint64
	ResourcePool    *ImageResourcePool
	Allocation      *Allocation
	StagingResource *BufferResource
	// IndividualPool marks resources that own their pool exclusively
	// and destroy it when freed.
	IndividualPool bool
}

// NewImageResourceWithOptions creates an image resource backed by its
// own exclusive memory allocation instead of a shared pool.
func (r *ResourceManager) NewImageResourceWithOptions(extent vk.Extent2D, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlagBits, sharing vk.SharingMode, mprops vk.MemoryPropertyFlagBits) (*ImageResource, error) {
	img, err := r.Device.CreateImage(extent, format, tiling, vk.ImageUsageFlags(usage))
	if err != nil {
		return nil, err
	}

	mr := img.GetMemoryRequirements()
	mr.Deref()

	memory, err := r.Device.Allocate(int(mr.Size), mr.MemoryTypeBits, mprops)
	if err != nil {
		img.Destroy()
		return nil, err
	}

	if err := resultErr(vk.BindImageMemory(r.Device.VKDevice, img.VKImage, memory.VKDeviceMemory, 0)); err != nil {
		memory.Destroy()
		img.Destroy()
		return nil, err
	}

	pool := &ImageResourcePool{
		Device:           r.Device,
		Usage:            usage,
		Sharing:          sharing,
		MemoryProperties: mprops,
		Memory:           memory,
		NeedsStaging:     mprops&vk.MemoryPropertyDeviceLocalBit == vk.MemoryPropertyDeviceLocalBit,
		ResourceManager:  r,
	}

	ir := &ImageResource{
		Extent:         extent,
		Size:           uint64(mr.Size),
		ResourcePool:   pool,
		IndividualPool: true,
	}
	ir.VKImage = img.VKImage
	ir.Device = img.Device
	ir.VKFormat = format

	return ir, nil
}

// RequiresStaging reports whether this image lives in device-local
// memory and must be filled through a staging buffer.
func (r *ImageResource) RequiresStaging() bool {
	return r.ResourcePool.NeedsStaging
}

// AllocateStagingResource allocates a matching transfer-source buffer
// from the staging pool. The caller must free it explicitly, see
// FreeStagingResource.
func (r *ImageResource) AllocateStagingResource() error {
	if !r.ResourcePool.NeedsStaging {
		return fmt.Errorf("resource does not require staging")
	}

	stagingPool := r.ResourcePool.ResourceManager.GetStagingPool()
	if stagingPool == nil {
		return fmt.Errorf("no %q pool exists, create it before staging resources", StagingPoolName)
	}

	var err error
	r.StagingResource, err = stagingPool.AllocateBuffer(r.Size, vk.BufferUsageTransferSrcBit)
	return err
}

// FreeStagingResource frees the staging buffer, if any.
func (r *ImageResource) FreeStagingResource() {
	if r.StagingResource != nil {
		r.StagingResource.Free()
		r.StagingResource = nil
	}
}

// Bytes returns the image's window into the pool's mapped memory.
func (r *ImageResource) Bytes() ([]byte, error) {
	if r.RequiresStaging() {
		return nil, fmt.Errorf("resource requires staging")
	}
	if r.ResourcePool.Memory.Ptr == nil {
		return nil, fmt.Errorf("pool memory must be mapped first")
	}

	s := r.Allocation.Offset
	e := r.Allocation.Offset + r.Allocation.Size
	return ToBytes(r.ResourcePool.Memory.Ptr, int(e))[s:e], nil
}

func (r *ImageResource) String() string {
	return fmt.Sprintf("{ Image %dx%d }", r.Extent.Width, r.Extent.Height)
}

func (r *ImageResource) Destroy() {
	r.Free()
}

// Free releases the image, its pool allocation and any staging
// resource. Resources with an individual pool destroy the pool too.
func (r *ImageResource) Free() {
	if r.StagingResource != nil {
		r.StagingResource.Free()
		r.StagingResource = nil
	}
	if r.IndividualPool && r.ResourcePool != nil {
		r.ResourcePool.Destroy()
		r.ResourcePool = nil
	} else if r.Allocation != nil {
		r.ResourcePool.Allocator.Free(r.Allocation)
		r.Allocation = nil
	}
	r.Image.Destroy()
}

// CmdStageImageResource records the copy from the image's staging
// buffer into the image. The image must be in transfer destination
// layout.
func (cb *CommandBuffer) CmdStageImageResource(img *ImageResource) error {
	if img.StagingResource == nil {
		return fmt.Errorf("no staging resource has been allocated")
	}

	vk.CmdCopyBufferToImage(cb.VK(), img.StagingResource.VKBuffer, img.VKImage, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{
		{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{
				Width: img.Extent.Width, Height: img.Extent.Height, Depth: 1,
			},
		},
	})
	return nil
}

// CmdTransitionResourceLayout records the layout transitions a staged
// image upload needs.
func (cb *CommandBuffer) CmdTransitionResourceLayout(img *ImageResource, oldLayout, newLayout vk.ImageLayout) {
	t := ImageLayoutTransition{
		Image:     img.VKImage,
		OldLayout: oldLayout,
		NewLayout: newLayout,
	}

	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		t.DstAccess = vk.AccessTransferWriteBit
		t.SrcStage = vk.PipelineStageTopOfPipeBit
		t.DstStage = vk.PipelineStageTransferBit
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		t.SrcAccess = vk.AccessTransferWriteBit
		t.DstAccess = vk.AccessShaderReadBit
		t.SrcStage = vk.PipelineStageTransferBit
		t.DstStage = vk.PipelineStageFragmentShaderBit
	}

	cb.CmdTransitionImageLayout(t)
}

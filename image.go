package vkr

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"unsafe"

	_ "image/jpeg"
	_ "image/png"

	vk "github.com/vulkan-go/vulkan"
)

// Image wraps a vulkan image handle together with its format.
type Image struct {
	Device   *Device
	VKImage  vk.Image
	VKFormat vk.Format
}

func (d *Device) CreateImage(extent vk.Extent2D, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlags) (*Image, error) {
	createInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var img vk.Image
	if err := resultErr(vk.CreateImage(d.VKDevice, &createInfo, nil, &img)); err != nil {
		return nil, fmt.Errorf("creating %dx%d image: %w", extent.Width, extent.Height, err)
	}

	return &Image{Device: d, VKImage: img, VKFormat: format}, nil
}

func (i *Image) GetMemoryRequirements() vk.MemoryRequirements {
	var memRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(i.Device.VKDevice, i.VKImage, &memRequirements)
	return memRequirements
}

func (i *Image) Destroy() {
	vk.DestroyImage(i.Device.VKDevice, i.VKImage, nil)
}

// BoundImage is an image bound to its own device memory.
type BoundImage struct {
	Image
	DeviceMemory *DeviceMemory
}

func (d *Device) CreateBoundImage(extent vk.Extent2D, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlags, props vk.MemoryPropertyFlags) (*BoundImage, error) {
	img, err := d.CreateImage(extent, format, tiling, usage)
	if err != nil {
		return nil, err
	}

	mr := img.GetMemoryRequirements()
	mr.Deref()

	mem, err := d.Allocate(int(mr.Size), mr.MemoryTypeBits, vk.MemoryPropertyFlagBits(props))
	if err != nil {
		img.Destroy()
		return nil, err
	}

	if err := resultErr(vk.BindImageMemory(d.VKDevice, img.VKImage, mem.VKDeviceMemory, 0)); err != nil {
		mem.Destroy()
		img.Destroy()
		return nil, fmt.Errorf("binding image memory: %w", err)
	}

	bound := &BoundImage{DeviceMemory: mem}
	bound.Device = d
	bound.VKImage = img.VKImage
	bound.VKFormat = img.VKFormat

	return bound, nil
}

// StagedBoundImage is a device-local image plus the host buffer its
// pixels are uploaded through.
type StagedBoundImage struct {
	BoundImage
	HostBuffer       *Buffer
	HostMemory       *DeviceMemory
	HostOffset       int
	HostMemoryOffset uint64
	Width            int
	Height           int
}

// LocalImage is a decoded RGBA image in host memory.
type LocalImage struct {
	img *image.RGBA
}

func (l *LocalImage) Bytes() []byte {
	return ToBytes(unsafe.Pointer(&l.img.Pix[0]), len(l.img.Pix))
}

// LoadImageFromDisk decodes a png or jpeg file into RGBA.
func LoadImageFromDisk(file string) (*LocalImage, error) {
	imageFile, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer imageFile.Close()

	src, _, err := image.Decode(imageFile)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", file, err)
	}

	b := src.Bounds()
	m := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(m, m.Bounds(), src, b.Min, draw.Src)

	return &LocalImage{m}, nil
}

func (d *Device) stageRGBA(pixels []byte, width, height int) (*StagedBoundImage, error) {
	buffer, memory, err := d.CreateAndBindBufferAndMemory(uint64(len(pixels)), 0,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		vk.SharingModeExclusive)
	if err != nil {
		return nil, err
	}

	if err := memory.MapCopyUnmap(pixels); err != nil {
		memory.Destroy()
		buffer.Destroy()
		return nil, err
	}

	bi, err := d.CreateBoundImage(
		vk.Extent2D{Width: uint32(width), Height: uint32(height)},
		vk.FormatR8g8b8a8Unorm,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		memory.Destroy()
		buffer.Destroy()
		return nil, err
	}

	si := &StagedBoundImage{
		HostBuffer: buffer,
		HostMemory: memory,
		Width:      width,
		Height:     height,
	}
	si.Device = d
	si.VKImage = bi.VKImage
	si.DeviceMemory = bi.DeviceMemory
	si.VKFormat = bi.VKFormat

	return si, nil
}

// StageRGBAImageFromMemory uploads raw RGBA pixels into a device-local
// sampled image.
func (d *Device) StageRGBAImageFromMemory(img unsafe.Pointer, width, height int) (*StagedBoundImage, error) {
	return d.stageRGBA(ToBytes(img, width*height*4), width, height)
}

// StageImageFromDisk decodes an image file and uploads it into a
// device-local sampled image.
func (d *Device) StageImageFromDisk(file string) (*StagedBoundImage, error) {
	img, err := LoadImageFromDisk(file)
	if err != nil {
		return nil, err
	}
	bounds := img.img.Bounds()
	return d.stageRGBA(img.Bytes(), bounds.Dx(), bounds.Dy())
}

// CmdStageTransition records the layout transitions a staged image
// upload needs: undefined to transfer destination before the copy, and
// transfer destination to shader read after it.
func (cb *CommandBuffer) CmdStageTransition(s *StagedBoundImage, oldLayout, newLayout vk.ImageLayout) {
	t := ImageLayoutTransition{
		Image:     s.VKImage,
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

// CmdCopyImage records the host buffer to image copy of a staged
// image. The image must be in transfer destination layout.
func (cb *CommandBuffer) CmdCopyImage(s *StagedBoundImage) {
	vk.CmdCopyBufferToImage(cb.VK(), s.HostBuffer.VKBuffer, s.VKImage, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{
		{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{
				Width: uint32(s.Width), Height: uint32(s.Height), Depth: 1,
			},
		},
	})
}

package vkr

import (
	"fmt"
	"image"
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// StageTextureFromDisk decodes an image file and uploads it into the
// pool as a sampled texture. The upload is submitted on the given
// queue and waited for.
func (p *ImageResourcePool) StageTextureFromDisk(filename string, cmd *CommandBuffer, queue *Queue) (*ImageResource, error) {
	img, err := LoadImageFromDisk(filename)
	if err != nil {
		return nil, err
	}
	return p.StageTextureFromImage(img.img, cmd, queue)
}

// StageTextureFromImage uploads a decoded RGBA image into the pool as
// a sampled texture.
func (p *ImageResourcePool) StageTextureFromImage(srcImg *image.RGBA, cmd *CommandBuffer, queue *Queue) (*ImageResource, error) {
	b := srcImg.Bounds()
	extent := vk.Extent2D{Width: uint32(b.Dx()), Height: uint32(b.Dy())}

	img, err := p.AllocateImage(extent, vk.FormatR8g8b8a8Unorm, vk.ImageTilingOptimal,
		vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit)
	if err != nil {
		return nil, err
	}

	if err := img.AllocateStagingResource(); err != nil {
		img.Free()
		return nil, err
	}
	defer img.FreeStagingResource()

	if _, err := img.StagingResource.ResourcePool.Memory.Map(); err != nil {
		img.Free()
		return nil, err
	}
	defer img.StagingResource.ResourcePool.Memory.Unmap()

	srb := img.StagingResource.Bytes()
	if srb == nil {
		img.Free()
		return nil, fmt.Errorf("staging pool memory is not mapped")
	}
	copy(srb, ToBytes(unsafe.Pointer(&srcImg.Pix[0]), len(srcImg.Pix)))

	if err := cmd.BeginOneTime(); err != nil {
		img.Free()
		return nil, err
	}
	cmd.CmdTransitionResourceLayout(img, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	if err := cmd.CmdStageImageResource(img); err != nil {
		img.Free()
		return nil, err
	}
	cmd.CmdTransitionResourceLayout(img, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	if err := cmd.End(); err != nil {
		img.Free()
		return nil, err
	}

	fence, err := p.Device.CreateFence()
	if err != nil {
		img.Free()
		return nil, err
	}
	defer fence.Destroy()

	if err := queue.SubmitWithFence(fence, cmd); err != nil {
		img.Free()
		return nil, err
	}
	if err := fence.Wait(10 * time.Second); err != nil {
		img.Free()
		return nil, fmt.Errorf("waiting for texture upload: %w", err)
	}

	return img, nil
}

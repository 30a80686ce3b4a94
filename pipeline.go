package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// PipelineCache wraps a vulkan pipeline cache shared across pipeline
// creation.
type PipelineCache struct {
	VKPipelineCache vk.PipelineCache
}

func (d *Device) CreatePipelineCache() (*PipelineCache, error) {
	createInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}

	var cache vk.PipelineCache
	if err := resultErr(vk.CreatePipelineCache(d.VKDevice, &createInfo, nil, &cache)); err != nil {
		return nil, err
	}
	return &PipelineCache{VKPipelineCache: cache}, nil
}

func (p *PipelineCache) Destroy(d *Device) {
	vk.DestroyPipelineCache(d.VKDevice, p.VKPipelineCache, nil)
}

// ComputePipeline is a compute pipeline under construction or built.
type ComputePipeline struct {
	Device                          *Device
	VKPipeline                      vk.Pipeline
	VKPipelineShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
	VKPipelineLayout                vk.PipelineLayout
}

func (c *ComputePipeline) Destroy() {
	vk.DestroyPipeline(c.Device.VKDevice, c.VKPipeline, nil)
	c.VKPipeline = vk.NullPipeline
}

func (c *ComputePipeline) SetPipelineLayout(layout *PipelineLayout) {
	c.VKPipelineLayout = layout.VKPipelineLayout
}

func (c *ComputePipeline) SetShaderStage(entryPoint string, shaderModule *ShaderModule) {
	c.VKPipelineShaderStageCreateInfo = shaderModule.VKPipelineShaderStageCreateInfo(vk.ShaderStageComputeBit, entryPoint)
}

// CreateComputePipelines builds the given compute pipelines in one
// call, filling in their VKPipeline handles.
func (d *Device) CreateComputePipelines(pc *PipelineCache, cp ...*ComputePipeline) error {
	createInfos := make([]vk.ComputePipelineCreateInfo, len(cp))
	for i, p := range cp {
		createInfos[i] = vk.ComputePipelineCreateInfo{
			SType:  vk.StructureTypeComputePipelineCreateInfo,
			Stage:  p.VKPipelineShaderStageCreateInfo,
			Layout: p.VKPipelineLayout,
		}
	}

	pipelines := make([]vk.Pipeline, len(cp))
	if err := resultErr(vk.CreateComputePipelines(d.VKDevice, pc.VKPipelineCache,
		uint32(len(createInfos)), createInfos, nil, pipelines)); err != nil {
		return fmt.Errorf("creating %d compute pipelines: %w", len(cp), err)
	}

	for i := range pipelines {
		cp[i].Device = d
		cp[i].VKPipeline = pipelines[i]
	}
	return nil
}

// CreateGraphicsPipelines builds one graphics pipeline per config
// against the given render pass and extent.
func (d *Device) CreateGraphicsPipelines(pc *PipelineCache, renderPass vk.RenderPass, extent vk.Extent2D, configs ...*GraphicsPipelineConfig) ([]vk.Pipeline, error) {
	createInfos := make([]vk.GraphicsPipelineCreateInfo, len(configs))
	for i, cfg := range configs {
		ci, err := cfg.VKGraphicsPipelineCreateInfo(extent)
		if err != nil {
			return nil, err
		}
		ci.RenderPass = renderPass
		createInfos[i] = ci
	}

	pipelines := make([]vk.Pipeline, len(configs))
	if err := resultErr(vk.CreateGraphicsPipelines(d.VKDevice, pc.VKPipelineCache,
		uint32(len(createInfos)), createInfos, nil, pipelines)); err != nil {
		return nil, fmt.Errorf("creating %d graphics pipelines: %w", len(configs), err)
	}
	return pipelines, nil
}

package vkr

import (
	vk "github.com/vulkan-go/vulkan"
)

// IDestructable is anything owning native handles that must be
// released explicitly.
type IDestructable interface {
	Destroy()
}

// Descriptor describes where a resource binds in a pipeline layout.
type Descriptor struct {
	Type        vk.DescriptorType
	ShaderStage vk.ShaderStageFlags
	Set         int
	Binding     int
}

// DescriptorBinder is implemented by data objects that know their own
// binding slot.
type DescriptorBinder interface {
	Descriptor() *Descriptor
}

// BufferObject is any object that can serialize itself into a device
// buffer.
type BufferObject interface {
	Bytes() []byte
}

// IndexSource supplies index data for indexed draws.
type IndexSource interface {
	BufferObject
	IndexType() vk.IndexType
}

// VertexSource supplies vertex data and its input layout.
type VertexSource interface {
	BufferObject
	GetBindingDescription() vk.VertexInputBindingDescription
	GetAttributeDescriptions() []vk.VertexInputAttributeDescription
}

// UBO is a uniform buffer object with a known binding.
type UBO interface {
	BufferObject
	DescriptorBinder
}

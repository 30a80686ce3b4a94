/*
Package vkr wraps the Vulkan graphics framework for Go with a focus on
getting the frame lifecycle right. Vulkan hands the application full
control over synchronization between the CPU and the GPU, and most of
the hard-won bugs in a Vulkan program live exactly there: reusing a
command buffer the GPU is still executing, presenting an image that was
never acquired, or recreating a swapchain while frames are in flight.

This package provides the pieces that make that lifecycle hard to get
wrong, while exposing the native Vulkan handles (the 'VK' prefixed
fields on every object) so applications are never boxed in by what the
wrappers cover.

# The frame lifecycle

The core of the package is the frame ring and the frame loop. A
FrameRing is a fixed set of slots, each owning the synchronization
primitives for one in-flight frame:

	ImageAvailable	semaphore signaled when the acquired swapchain image is ready
	RenderFinished	semaphore signaled when the frame's commands finished
	InFlight	fence guarding reuse of the slot
	Timing		a begin/end timestamp query pair bracketing the frame

A FrameLoop drives one frame per call through a fixed sequence: advance
the ring, wait for the slot's previous frame to complete, read its GPU
time, acquire a swapchain image, record commands through a
RenderDelegate, submit, present. Surface staleness (window resized, a
format change requested, the surface out of date) marks the loop dirty;
the next frame recreates the swapchain at a safe point, after the
device idled, and carries on.

A typical application:

	1. Create a GraphicsApp and attach a window
	2. Init: instance, surface, device, queues
	3. PrepareToDraw with a RenderDelegate
	4. Loop: poll events, DrawFrame
	5. WaitIdle, Destroy

# About this package

Objects are created from a Device and destroyed explicitly, in reverse
creation order. Nothing in the package is global; configuration travels
in explicit structs. Errors that are part of normal operation (a stale
surface, a minimized window) are sentinel values the frame loop handles
internally, see IsTransient and IsFatal.

Beyond the frame core the package carries the supporting cast a Vulkan
program needs:

GraphicsApp:

	application shell managing setup, the frame loop and teardown

ResourceManager:

	pooled device memory with sub-allocation and staging helpers

GraphicsPipelineConfig:

	a builder for graphics pipelines with sane defaults
*/
package vkr

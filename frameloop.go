package vkr

import (
	"fmt"
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// RenderDelegate is the extension point applications implement. The
// frame loop does not know what is drawn; it only guarantees that the
// main pass is recorded before the overlay pass, that both run while
// the slot's command buffer is recording, and that the swapchain image
// handed to them must be left in a presentable layout when
// RecordOverlayPass returns.
//
// The command buffer and image index are only valid for the duration
// of the call, callbacks must not retain them.
type RenderDelegate interface {
	RecordMainPass(cmd *CommandBuffer, imageIndex int) error
	RecordOverlayPass(cmd *CommandBuffer, imageIndex int) error

	// OnRecreate fires after the swapchain was rebuilt. Every resource
	// sized to the old swapchain (off-screen targets, per-image
	// descriptor bindings) must be rebuilt here.
	OnRecreate(extent vk.Extent2D, format vk.SurfaceFormat) error
}

// PresentChain is what the frame loop needs from a swapchain. The
// stale return reports out-of-date/suboptimal surfaces; it is never an
// error, the loop reacts by recreating on the next frame.
type PresentChain interface {
	Acquire(signal vk.Semaphore) (imageIndex int, stale bool, err error)
	Present(wait vk.Semaphore, imageIndex int) (stale bool, err error)
	Recreate(extent vk.Extent2D, format *vk.SurfaceFormat) error
	ImageCount() int
	Extent() vk.Extent2D
	SurfaceFormat() vk.SurfaceFormat
}

// FrameSubmitter submits one frame's command buffer, waiting on the
// image-available semaphore and signaling the render-finished
// semaphore and the slot fence. *Queue implements it.
type FrameSubmitter interface {
	SubmitFrame(cmd *CommandBuffer, wait, signal vk.Semaphore, fence vk.Fence) error
}

// FrameCommands owns the per-swapchain-image command buffers and
// brackets their recording (reset, begin, timestamp writes, end).
type FrameCommands interface {
	Buffer(imageIndex int) *CommandBuffer
	BeginFrame(cmd *CommandBuffer, slot *FrameSlot) error
	EndFrame(cmd *CommandBuffer, slot *FrameSlot) error
	// Realloc resizes the buffer set after swapchain recreation, the
	// image count may legitimately have changed.
	Realloc(imageCount int) error
	Destroy()
}

// FrameLoop drives the per-frame state machine
//
//	Idle -> Acquiring -> Recording -> Submitted -> Presenting -> Idle
//
// on a single goroutine. A stale surface at Acquire or Present moves
// the frame to a Dirty terminal state: nothing is recorded or
// presented, and the next Frame call rebuilds the swapchain before
// drawing. GPU execution overlaps the next frame's CPU work; the only
// blocking wait in steady state is the ring's slot fence.
type FrameLoop struct {
	dev      SyncDevice
	ring     *FrameRing
	chain    PresentChain
	submit   FrameSubmitter
	commands FrameCommands
	delegate RenderDelegate

	// WaitTimeout bounds the slot fence wait. Zero means wait forever;
	// production callers should set a finite value so device loss is
	// detected instead of hanging.
	WaitTimeout time.Duration

	stats         frameStats
	dirty         bool
	pendingFormat *vk.SurfaceFormat
}

// NewFrameLoop wires a frame loop around an existing ring. The chain,
// submitter, command set and delegate are borrowed, not owned; only
// the ring is destroyed by Destroy.
func NewFrameLoop(dev SyncDevice, chain PresentChain, submit FrameSubmitter, commands FrameCommands, delegate RenderDelegate, ringDepth int) (*FrameLoop, error) {
	ring, err := NewFrameRing(dev, ringDepth)
	if err != nil {
		return nil, fmt.Errorf("creating frame ring: %w", err)
	}
	return &FrameLoop{
		dev:      dev,
		ring:     ring,
		chain:    chain,
		submit:   submit,
		commands: commands,
		delegate: delegate,
	}, nil
}

// Ring exposes the frame ring, mainly so applications can size
// per-frame resources to its depth.
func (l *FrameLoop) Ring() *FrameRing {
	return l.ring
}

// RequestFormatChange asks for the swapchain to be rebuilt with the
// given surface format at the next frame boundary. Repeated calls
// before that boundary overwrite each other; exactly one recreation
// happens, with the last requested format.
func (l *FrameLoop) RequestFormatChange(format vk.SurfaceFormat) {
	f := format
	l.pendingFormat = &f
}

// MarkDirty flags the swapchain for recreation, typically from a
// window resize notification.
func (l *FrameLoop) MarkDirty() {
	l.dirty = true
}

// Dirty reports whether a recreation is pending.
func (l *FrameLoop) Dirty() bool {
	return l.dirty || l.pendingFormat != nil
}

// Statistics returns the current frame timing snapshot.
func (l *FrameLoop) Statistics() Statistics {
	return l.stats.snapshot()
}

// Frame runs one cycle of the state machine. extent is the current
// surface size, consulted only when a recreation is pending. Transient
// conditions (stale surface, zero-area surface) return nil, the frame
// is simply skipped; everything else is a real error and fatal errors
// satisfy IsFatal.
func (l *FrameLoop) Frame(extent vk.Extent2D) error {
	l.stats.beginFrame(time.Now())

	if l.Dirty() {
		if err := l.reconcile(extent); err != nil {
			return err
		}
		if l.dirty {
			// still dirty: zero-area surface, retry on a later frame
			return nil
		}
	}

	slot := l.ring.Advance()

	if err := l.ring.WaitSlotReady(l.WaitTimeout); err != nil {
		return err
	}

	gpuTime, ok := l.ring.GPUTime()
	l.stats.setGPUTime(gpuTime, ok)
	l.stats.tick()

	imageIndex, stale, err := l.chain.Acquire(slot.ImageAvailable)
	if stale {
		l.dirty = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("acquiring image: %w", err)
	}

	// Only reset the completion guard once this frame is certain to
	// submit, otherwise the next wait on this slot would deadlock.
	if err := l.ring.ResetSlot(); err != nil {
		return err
	}

	cmd := l.commands.Buffer(imageIndex)
	if err := l.commands.BeginFrame(cmd, slot); err != nil {
		return fmt.Errorf("beginning frame commands: %w", err)
	}
	if err := l.delegate.RecordMainPass(cmd, imageIndex); err != nil {
		return fmt.Errorf("recording main pass: %w", err)
	}
	if err := l.delegate.RecordOverlayPass(cmd, imageIndex); err != nil {
		return fmt.Errorf("recording overlay pass: %w", err)
	}
	if err := l.commands.EndFrame(cmd, slot); err != nil {
		return fmt.Errorf("ending frame commands: %w", err)
	}

	if err := l.submit.SubmitFrame(cmd, slot.ImageAvailable, slot.RenderFinished, slot.InFlight); err != nil {
		return fmt.Errorf("submitting frame: %w", err)
	}
	l.ring.MarkSubmitted()

	stale, err = l.chain.Present(slot.RenderFinished, imageIndex)
	if stale {
		l.dirty = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("presenting image: %w", err)
	}

	return nil
}

// reconcile consumes the pending format change (if any) and rebuilds
// the swapchain and its dependents. Old images must not be referenced
// by in-flight work when replaced, so a full device-idle wait is the
// precondition here; it is the simplest provably correct one.
func (l *FrameLoop) reconcile(extent vk.Extent2D) error {
	if extent.Width == 0 || extent.Height == 0 {
		l.dirty = true
		return nil
	}

	format := l.pendingFormat
	l.pendingFormat = nil

	if err := l.dev.WaitIdle(); err != nil {
		return fmt.Errorf("waiting for device before recreation: %w", err)
	}

	if err := l.chain.Recreate(extent, format); err != nil {
		if IsTransient(err) {
			l.dirty = true
			return nil
		}
		return fmt.Errorf("recreating swapchain: %w", err)
	}

	if err := l.commands.Realloc(l.chain.ImageCount()); err != nil {
		return fmt.Errorf("reallocating frame commands: %w", err)
	}

	if err := l.delegate.OnRecreate(l.chain.Extent(), l.chain.SurfaceFormat()); err != nil {
		return fmt.Errorf("recreate callback: %w", err)
	}

	l.dirty = false
	return nil
}

// WaitIdle blocks until the device finished all submitted work,
// including frames still in flight. Call before any teardown.
func (l *FrameLoop) WaitIdle() error {
	return l.dev.WaitIdle()
}

// Destroy releases the frame ring. WaitIdle must have returned
// successfully first.
func (l *FrameLoop) Destroy() {
	l.ring.Destroy()
}

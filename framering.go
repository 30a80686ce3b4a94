package vkr

import (
	"fmt"
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// SyncDevice is the slice of the logical device the frame ring needs.
// *Device implements it; tests supply a fake so the ring and the frame
// loop can be exercised without a GPU.
type SyncDevice interface {
	VKCreateSemaphore() (vk.Semaphore, error)
	VKDestroySemaphore(s vk.Semaphore)
	VKCreateFence(signaled bool) (vk.Fence, error)
	VKDestroyFence(f vk.Fence)
	VKWaitForFence(f vk.Fence, timeout time.Duration) error
	VKResetFence(f vk.Fence) error
	CreateTimestampQuery() (TimestampQuery, error)
	WaitIdle() error
}

// TimestampQuery is a begin/end pair of GPU timestamps recorded around
// one frame's command stream.
type TimestampQuery interface {
	// Begin resets the query pair and records the begin timestamp.
	// Must be the first thing recorded into the frame's buffer.
	Begin(cmd *CommandBuffer)
	// End records the end timestamp; last thing before the buffer ends.
	End(cmd *CommandBuffer)
	// Results blocks until both timestamps are available and returns
	// them in GPU ticks. Must not be called for a slot that has never
	// been submitted, the values would be uninitialized.
	Results() (begin, end uint64, err error)
	Destroy()
}

// FrameSlot owns the synchronization primitives for one in-flight
// frame. Slots are allocated once by NewFrameRing, reused for the
// lifetime of the ring and destroyed only at shutdown.
type FrameSlot struct {
	// ImageAvailable is signaled when the acquired swapchain image is
	// ready to be rendered to. The frame's submission must wait on it.
	ImageAvailable vk.Semaphore
	// RenderFinished is signaled by the frame's submission and gates
	// presentation.
	RenderFinished vk.Semaphore
	// InFlight is the completion guard for the slot. Created signaled
	// so the first use of the slot does not block.
	InFlight vk.Fence
	// Timing brackets the slot's command stream with GPU timestamps.
	Timing TimestampQuery

	index     int
	waited    bool
	submitted bool
}

// Index returns the slot's position in the ring.
func (s *FrameSlot) Index() int {
	return s.index
}

// FrameRing is a fixed ring of FrameSlots. It guarantees the CPU never
// reuses a slot, or the command buffer and resources tied to it, while
// the GPU may still be executing the slot's previous submission.
//
// The depth is fixed at construction. Two slots allow one frame of
// CPU/GPU overlap; deeper rings tolerate more latency at the cost of
// memory and input lag. The trade-off is deliberately a configuration
// value, never computed at runtime.
type FrameRing struct {
	dev   SyncDevice
	slots []*FrameSlot

	current int
	frames  uint64
}

// NewFrameRing allocates a ring of depth slots. Depth below 2 is a
// programming error.
func NewFrameRing(dev SyncDevice, depth int) (*FrameRing, error) {
	if depth < 2 {
		panic(fmt.Sprintf("vkr: frame ring depth must be >= 2, got %d", depth))
	}

	r := &FrameRing{
		dev:     dev,
		slots:   make([]*FrameSlot, depth),
		current: depth - 1, // so the first Advance lands on slot 0
	}

	for i := range r.slots {
		slot, err := newFrameSlot(dev, i)
		if err != nil {
			// unwind the slots created so far, in reverse
			for j := i - 1; j >= 0; j-- {
				r.slots[j].destroy(dev)
			}
			return nil, fmt.Errorf("frame slot %d: %w", i, err)
		}
		r.slots[i] = slot
	}

	return r, nil
}

func newFrameSlot(dev SyncDevice, index int) (*FrameSlot, error) {
	var err error
	s := &FrameSlot{index: index}

	s.ImageAvailable, err = dev.VKCreateSemaphore()
	if err != nil {
		return nil, fmt.Errorf("image available semaphore: %w", err)
	}
	s.RenderFinished, err = dev.VKCreateSemaphore()
	if err != nil {
		dev.VKDestroySemaphore(s.ImageAvailable)
		return nil, fmt.Errorf("render finished semaphore: %w", err)
	}
	s.InFlight, err = dev.VKCreateFence(true)
	if err != nil {
		dev.VKDestroySemaphore(s.RenderFinished)
		dev.VKDestroySemaphore(s.ImageAvailable)
		return nil, fmt.Errorf("in flight fence: %w", err)
	}
	s.Timing, err = dev.CreateTimestampQuery()
	if err != nil {
		dev.VKDestroyFence(s.InFlight)
		dev.VKDestroySemaphore(s.RenderFinished)
		dev.VKDestroySemaphore(s.ImageAvailable)
		return nil, fmt.Errorf("timestamp query: %w", err)
	}

	return s, nil
}

func (s *FrameSlot) destroy(dev SyncDevice) {
	s.Timing.Destroy()
	dev.VKDestroyFence(s.InFlight)
	dev.VKDestroySemaphore(s.RenderFinished)
	dev.VKDestroySemaphore(s.ImageAvailable)
}

// Depth returns the number of slots in the ring.
func (r *FrameRing) Depth() int {
	return len(r.slots)
}

// Advance moves to the next slot and returns it. Pure state
// transition, it cannot fail.
func (r *FrameRing) Advance() *FrameSlot {
	r.current = (r.current + 1) % len(r.slots)
	r.frames++
	return r.slots[r.current]
}

// Slot returns the current slot.
func (r *FrameRing) Slot() *FrameSlot {
	return r.slots[r.current]
}

// SlotIndex returns the index of the current slot.
func (r *FrameRing) SlotIndex() int {
	return r.current
}

// FrameCount returns the number of frames started so far, i.e. the
// number of Advance calls. It only ever grows.
func (r *FrameRing) FrameCount() uint64 {
	return r.frames
}

// WaitSlotReady blocks until the GPU has completed the current slot's
// previous submission. A zero timeout waits forever. Returns
// ErrDeviceLost when the device is gone, which is fatal.
func (r *FrameRing) WaitSlotReady(timeout time.Duration) error {
	slot := r.slots[r.current]
	if err := r.dev.VKWaitForFence(slot.InFlight, timeout); err != nil {
		return fmt.Errorf("slot %d not ready: %w", slot.index, err)
	}
	slot.waited = true
	return nil
}

// ResetSlot clears the current slot's completion guard so it can fence
// a new submission. Calling it without a prior successful
// WaitSlotReady is a contract violation and panics: resetting a fence
// the GPU may still signal corrupts the ring's ordering guarantee.
func (r *FrameRing) ResetSlot() error {
	slot := r.slots[r.current]
	if !slot.waited {
		panic(fmt.Sprintf("vkr: ResetSlot on slot %d before WaitSlotReady succeeded", slot.index))
	}
	if err := r.dev.VKResetFence(slot.InFlight); err != nil {
		return fmt.Errorf("reset slot %d: %w", slot.index, err)
	}
	slot.waited = false
	return nil
}

// MarkSubmitted records that the current slot's command buffer was
// handed to the GPU with the slot's fence attached. From here on the
// slot's timestamp queries hold real data once the fence signals.
func (r *FrameRing) MarkSubmitted() {
	r.slots[r.current].submitted = true
}

// GPUTime returns the GPU execution time of the current slot's last
// completed submission. The second return is false while the slot has
// never been submitted: for the first Depth frames there is no prior
// submission and the query results would be garbage, so callers get
// "no data" instead of a value that looks like a very fast frame.
//
// Must be called after WaitSlotReady, otherwise the results may still
// be in flight.
func (r *FrameRing) GPUTime() (time.Duration, bool) {
	slot := r.slots[r.current]
	if !slot.submitted {
		return 0, false
	}
	begin, end, err := slot.Timing.Results()
	if err != nil || end < begin {
		return 0, false
	}
	// timestamps are treated as nanosecond ticks
	return time.Duration(end - begin), true
}

// Destroy releases every slot. The caller must guarantee no slot is
// still referenced by in-flight GPU work, see GraphicsApp.WaitIdle.
func (r *FrameRing) Destroy() {
	for i := len(r.slots) - 1; i >= 0; i-- {
		r.slots[i].destroy(r.dev)
	}
	r.slots = nil
}

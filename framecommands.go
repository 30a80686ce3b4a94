package vkr

import (
	"fmt"
)

// frameCommandSet is the FrameCommands implementation backed by a
// command pool: one primary buffer per swapchain image, re-recorded
// every frame, reallocated whenever recreation changes the image
// count.
type frameCommandSet struct {
	pool    *CommandPool
	buffers []*CommandBuffer
}

// NewFrameCommands allocates imageCount primary command buffers from
// the pool.
func NewFrameCommands(pool *CommandPool, imageCount int) (FrameCommands, error) {
	s := &frameCommandSet{pool: pool}
	if err := s.Realloc(imageCount); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *frameCommandSet) Buffer(imageIndex int) *CommandBuffer {
	return s.buffers[imageIndex]
}

// BeginFrame resets the buffer, starts recording and opens the slot's
// timestamp bracket.
func (s *frameCommandSet) BeginFrame(cmd *CommandBuffer, slot *FrameSlot) error {
	if err := cmd.Reset(); err != nil {
		return fmt.Errorf("resetting command buffer: %w", err)
	}
	if err := cmd.Begin(); err != nil {
		return fmt.Errorf("beginning command buffer: %w", err)
	}
	slot.Timing.Begin(cmd)
	return nil
}

// EndFrame closes the timestamp bracket and ends recording.
func (s *frameCommandSet) EndFrame(cmd *CommandBuffer, slot *FrameSlot) error {
	slot.Timing.End(cmd)
	return cmd.End()
}

func (s *frameCommandSet) Realloc(imageCount int) error {
	if len(s.buffers) > 0 {
		s.pool.FreeBuffers(s.buffers)
	}
	buffers, err := s.pool.AllocateBuffers(imageCount)
	if err != nil {
		s.buffers = nil
		return fmt.Errorf("allocating %d command buffers: %w", imageCount, err)
	}
	s.buffers = buffers
	return nil
}

func (s *frameCommandSet) Destroy() {
	if len(s.buffers) > 0 {
		s.pool.FreeBuffers(s.buffers)
		s.buffers = nil
	}
}

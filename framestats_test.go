package vkr

import (
	"testing"
	"time"
)

func TestFrameStatsCPUTime(t *testing.T) {
	var s frameStats
	base := time.Unix(0, 0)

	// gpu timings arrive one ring cycle late, so cpu time is derived
	// from the frame before the last one
	s.beginFrame(base)
	s.setGPUTime(0, false)
	s.tick()

	s.beginFrame(base.Add(20 * time.Millisecond))
	s.setGPUTime(5*time.Millisecond, true)
	s.tick()

	s.beginFrame(base.Add(40 * time.Millisecond))
	s.setGPUTime(5*time.Millisecond, true)
	s.tick()

	got := s.snapshot()
	if got.FrameTime != 20*time.Millisecond {
		t.Errorf("FrameTime = %v, want 20ms", got.FrameTime)
	}
	if got.CPUTime != 15*time.Millisecond {
		t.Errorf("CPUTime = %v, want 15ms", got.CPUTime)
	}
	if got.GPUTime != 5*time.Millisecond || !got.GPUTimeValid {
		t.Errorf("GPUTime = %v valid=%v, want 5ms valid", got.GPUTime, got.GPUTimeValid)
	}
	if got.FrameIndex != 3 {
		t.Errorf("FrameIndex = %d, want 3", got.FrameIndex)
	}
}

func TestFrameStatsCPUTimeClamped(t *testing.T) {
	var s frameStats
	base := time.Unix(0, 0)

	s.beginFrame(base)
	s.tick()
	s.beginFrame(base.Add(10 * time.Millisecond))
	// a gpu reading longer than the frame must not go negative
	s.setGPUTime(30*time.Millisecond, true)
	s.tick()
	s.beginFrame(base.Add(20 * time.Millisecond))
	s.setGPUTime(30*time.Millisecond, true)
	s.tick()

	if got := s.snapshot().CPUTime; got != 0 {
		t.Errorf("CPUTime = %v, want 0", got)
	}
}

func TestFrameStatsFPSWindow(t *testing.T) {
	var s frameStats
	base := time.Unix(0, 0)

	// 250ms frames: the fps counter publishes once accumulated frame
	// time passes one second
	for i := 0; i < 5; i++ {
		s.beginFrame(base.Add(time.Duration(i) * 250 * time.Millisecond))
		s.tick()
	}
	if got := s.snapshot().FPS; got != 0 {
		t.Fatalf("FPS published early: %d", got)
	}

	s.beginFrame(base.Add(5 * 250 * time.Millisecond))
	s.tick()
	if got := s.snapshot().FPS; got != 6 {
		t.Errorf("FPS = %d, want 6", got)
	}
}

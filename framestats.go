package vkr

import (
	"time"
)

// Statistics is a snapshot of frame timing as seen by the frame loop.
type Statistics struct {
	// FrameIndex counts frames since startup, including skipped ones.
	FrameIndex uint64
	// FrameTime is the wall time of the previous full frame.
	FrameTime time.Duration
	// CPUTime is FrameTime minus the GPU portion.
	CPUTime time.Duration
	// GPUTime is the measured GPU execution time of the frame the
	// current slot last completed. Only meaningful when GPUTimeValid
	// is set; the first ring-depth frames have no prior submission to
	// measure.
	GPUTime      time.Duration
	GPUTimeValid bool
	// FPS is the number of frames completed during the last full
	// second.
	FPS int
}

// frameStats accumulates timing across frames. GPU timings arrive one
// ring-cycle after the frame that produced them, so cpu time is
// derived from the previous frame's wall time.
type frameStats struct {
	prevFrameTime time.Duration
	frameTime     time.Duration
	cpuTime       time.Duration
	gpuTime       time.Duration
	gpuTimeValid  bool

	frameIndex uint64
	frameCount int
	fps        int
	timer      time.Duration

	lastFrame time.Time
}

func (s *frameStats) beginFrame(now time.Time) {
	if !s.lastFrame.IsZero() {
		s.setFrameTime(now.Sub(s.lastFrame))
	}
	s.lastFrame = now
}

func (s *frameStats) setFrameTime(ft time.Duration) {
	s.prevFrameTime = s.frameTime
	s.frameTime = ft
}

func (s *frameStats) setGPUTime(gt time.Duration, valid bool) {
	s.gpuTime = gt
	s.gpuTimeValid = valid
}

func (s *frameStats) tick() {
	s.cpuTime = s.prevFrameTime - s.gpuTime
	if s.cpuTime < 0 {
		s.cpuTime = 0
	}

	s.frameIndex++
	s.frameCount++
	s.timer += s.frameTime

	if s.timer > time.Second {
		s.fps = s.frameCount
		s.frameCount = 0
		s.timer -= time.Second
	}
}

func (s *frameStats) snapshot() Statistics {
	return Statistics{
		FrameIndex:   s.frameIndex,
		FrameTime:    s.frameTime,
		CPUTime:      s.cpuTime,
		GPUTime:      s.gpuTime,
		GPUTimeValid: s.gpuTimeValid,
		FPS:          s.fps,
	}
}

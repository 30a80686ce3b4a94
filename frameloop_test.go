package vkr

import (
	"testing"
	"time"

	vk "github.com/vulkan-go/vulkan"
)

func newTestLoop(t *testing.T, imageCount, ringDepth int) (*FrameLoop, *fakeSyncDevice, *fakePresentChain, *fakeSubmitter, *fakeFrameCommands, *fakeDelegate) {
	t.Helper()
	dev := &fakeSyncDevice{}
	chain := newFakePresentChain(imageCount)
	submit := &fakeSubmitter{}
	commands := newFakeFrameCommands(imageCount)
	delegate := &fakeDelegate{}

	loop, err := NewFrameLoop(dev, chain, submit, commands, delegate, ringDepth)
	if err != nil {
		t.Fatal(err)
	}
	return loop, dev, chain, submit, commands, delegate
}

func TestFrameLoopSteadyState(t *testing.T) {
	loop, _, chain, submit, commands, delegate := newTestLoop(t, 3, 2)
	defer loop.Destroy()

	extent := chain.Extent()
	for frame := 0; frame < 5; frame++ {
		if err := loop.Frame(extent); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
	}

	wantImages := []int{0, 1, 2, 0, 1}
	if len(delegate.mains) != len(wantImages) {
		t.Fatalf("main passes recorded = %d, want %d", len(delegate.mains), len(wantImages))
	}
	for i, w := range wantImages {
		if delegate.mains[i] != w {
			t.Errorf("frame %d: main pass on image %d, want %d", i, delegate.mains[i], w)
		}
		if delegate.overlays[i] != w {
			t.Errorf("frame %d: overlay pass on image %d, want %d", i, delegate.overlays[i], w)
		}
	}

	if len(submit.submissions) != 5 || chain.presents != 5 {
		t.Errorf("submissions=%d presents=%d, want 5 and 5", len(submit.submissions), chain.presents)
	}
	if commands.begins != 5 || commands.ends != 5 {
		t.Errorf("begins=%d ends=%d, want 5 and 5", commands.begins, commands.ends)
	}
	if loop.Dirty() {
		t.Error("loop dirty after clean frames")
	}
	if len(chain.recreations) != 0 {
		t.Errorf("unexpected recreations: %d", len(chain.recreations))
	}
}

func TestFrameLoopSubmissionWiring(t *testing.T) {
	loop, _, chain, submit, commands, _ := newTestLoop(t, 2, 2)
	defer loop.Destroy()

	if err := loop.Frame(chain.Extent()); err != nil {
		t.Fatal(err)
	}

	slot := loop.Ring().Slot()
	sub := submit.submissions[0]
	if sub.wait != slot.ImageAvailable {
		t.Error("submission does not wait on the slot's ImageAvailable semaphore")
	}
	if sub.signal != slot.RenderFinished {
		t.Error("submission does not signal the slot's RenderFinished semaphore")
	}
	if sub.fence != slot.InFlight {
		t.Error("submission does not attach the slot's InFlight fence")
	}
	if sub.cmd != commands.Buffer(0) {
		t.Error("submission uses the wrong command buffer for image 0")
	}
}

func TestFrameLoopGPUTimingWarmsUp(t *testing.T) {
	loop, _, chain, _, _, _ := newTestLoop(t, 3, 2)
	defer loop.Destroy()

	// the first ring-depth frames have no completed submission to read
	for frame := 0; frame < 2; frame++ {
		if err := loop.Frame(chain.Extent()); err != nil {
			t.Fatal(err)
		}
		if stats := loop.Statistics(); stats.GPUTimeValid {
			t.Errorf("frame %d: GPU time valid during warm-up", frame)
		}
	}

	if err := loop.Frame(chain.Extent()); err != nil {
		t.Fatal(err)
	}
	stats := loop.Statistics()
	if !stats.GPUTimeValid {
		t.Fatal("GPU time should be valid from the third frame")
	}
	if stats.GPUTime != 2500*time.Nanosecond {
		t.Errorf("GPUTime = %v, want 2500ns", stats.GPUTime)
	}
	if stats.FrameIndex != 3 {
		t.Errorf("FrameIndex = %d, want 3", stats.FrameIndex)
	}
}

func TestFrameLoopStaleAcquire(t *testing.T) {
	loop, dev, chain, submit, commands, delegate := newTestLoop(t, 3, 2)
	defer loop.Destroy()

	chain.staleAcquires[3] = true
	extent := chain.Extent()

	for frame := 0; frame < 3; frame++ {
		if err := loop.Frame(extent); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
	}

	// frame 3 saw the stale surface: skipped, nothing submitted
	if len(submit.submissions) != 2 {
		t.Fatalf("submissions = %d, want 2", len(submit.submissions))
	}
	// the slot fence was not reset, or the next wait would deadlock
	if dev.fenceResets != 2 {
		t.Errorf("fence resets = %d, want 2", dev.fenceResets)
	}
	if !loop.Dirty() {
		t.Fatal("stale acquire should mark the loop dirty")
	}

	// next frame recreates once, then draws
	if err := loop.Frame(extent); err != nil {
		t.Fatal(err)
	}
	if dev.idleWaits != 1 {
		t.Errorf("device idle waits = %d, want 1", dev.idleWaits)
	}
	if len(chain.recreations) != 1 {
		t.Fatalf("recreations = %d, want 1", len(chain.recreations))
	}
	if chain.recreations[0].format != nil {
		t.Error("resize recreation should not request a format")
	}
	if len(commands.reallocs) != 1 || commands.reallocs[0] != 3 {
		t.Errorf("command reallocs = %v, want [3]", commands.reallocs)
	}
	if len(delegate.recreates) != 1 {
		t.Fatalf("delegate recreates = %d, want 1", len(delegate.recreates))
	}
	if len(submit.submissions) != 3 {
		t.Errorf("submissions = %d, want 3 after recovery", len(submit.submissions))
	}
	if loop.Dirty() {
		t.Error("loop still dirty after recreation")
	}
}

func TestFrameLoopStalePresent(t *testing.T) {
	loop, _, chain, submit, _, _ := newTestLoop(t, 2, 2)
	defer loop.Destroy()

	chain.stalePresents[2] = true
	extent := chain.Extent()

	for frame := 0; frame < 2; frame++ {
		if err := loop.Frame(extent); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
	}

	// the stale frame was still submitted, staleness surfaced at present
	if len(submit.submissions) != 2 {
		t.Errorf("submissions = %d, want 2", len(submit.submissions))
	}
	if !loop.Dirty() {
		t.Fatal("stale present should mark the loop dirty")
	}

	if err := loop.Frame(extent); err != nil {
		t.Fatal(err)
	}
	if len(chain.recreations) != 1 {
		t.Errorf("recreations = %d, want 1", len(chain.recreations))
	}
}

func TestFrameLoopFormatChangeConsumedOnce(t *testing.T) {
	loop, _, chain, _, _, delegate := newTestLoop(t, 2, 2)
	defer loop.Destroy()

	first := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	second := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	// two requests before the frame boundary: last one wins
	loop.RequestFormatChange(first)
	loop.RequestFormatChange(second)
	if !loop.Dirty() {
		t.Fatal("format request should mark the loop dirty")
	}

	extent := chain.Extent()
	if err := loop.Frame(extent); err != nil {
		t.Fatal(err)
	}

	if len(chain.recreations) != 1 {
		t.Fatalf("recreations = %d, want exactly 1", len(chain.recreations))
	}
	got := chain.recreations[0].format
	if got == nil || got.Format != second.Format {
		t.Errorf("recreated with format %v, want %v", got, second.Format)
	}
	if delegate.recreates[0].format.Format != second.Format {
		t.Error("delegate was not told the new format")
	}

	// the request is consumed, the next frame does not recreate again
	if err := loop.Frame(extent); err != nil {
		t.Fatal(err)
	}
	if len(chain.recreations) != 1 {
		t.Errorf("recreations = %d after second frame, want 1", len(chain.recreations))
	}
}

func TestFrameLoopZeroAreaStaysDirty(t *testing.T) {
	loop, dev, chain, submit, _, _ := newTestLoop(t, 2, 2)
	defer loop.Destroy()

	loop.MarkDirty()

	// minimized window: skip the frame entirely, stay dirty
	for i := 0; i < 3; i++ {
		if err := loop.Frame(vk.Extent2D{}); err != nil {
			t.Fatalf("zero-area frame %d: %v", i, err)
		}
	}
	if !loop.Dirty() {
		t.Fatal("zero-area surface should leave the loop dirty")
	}
	if chain.acquires != 0 || len(submit.submissions) != 0 {
		t.Error("nothing should be acquired or submitted while zero-area")
	}
	if dev.idleWaits != 0 || len(chain.recreations) != 0 {
		t.Error("no recreation should be attempted while zero-area")
	}

	// the window came back
	if err := loop.Frame(vk.Extent2D{Width: 640, Height: 480}); err != nil {
		t.Fatal(err)
	}
	if loop.Dirty() {
		t.Error("loop still dirty after restore")
	}
	if len(chain.recreations) != 1 || len(submit.submissions) != 1 {
		t.Errorf("recreations=%d submissions=%d, want 1 and 1", len(chain.recreations), len(submit.submissions))
	}
}

func TestFrameLoopTransientRecreateStaysDirty(t *testing.T) {
	loop, _, chain, _, _, _ := newTestLoop(t, 2, 2)
	defer loop.Destroy()

	loop.MarkDirty()
	chain.recreateErr = ErrZeroAreaSurface

	if err := loop.Frame(chain.Extent()); err != nil {
		t.Fatalf("transient recreate failure should be swallowed: %v", err)
	}
	if !loop.Dirty() {
		t.Error("loop should stay dirty when recreation hits a transient error")
	}

	chain.recreateErr = nil
	if err := loop.Frame(chain.Extent()); err != nil {
		t.Fatal(err)
	}
	if !loop.Ring().Slot().submitted {
		t.Error("frame should draw once recreation succeeds")
	}
}

func TestFrameLoopFatalWaitError(t *testing.T) {
	loop, dev, chain, _, _, _ := newTestLoop(t, 2, 2)
	defer loop.Destroy()

	dev.waitErr = ErrDeviceLost
	err := loop.Frame(chain.Extent())
	if err == nil {
		t.Fatal("expected device loss to surface")
	}
	if !IsFatal(err) {
		t.Errorf("device loss should be fatal, got %v", err)
	}
}

func TestFrameLoopShutdownOrder(t *testing.T) {
	loop, dev, chain, _, _, _ := newTestLoop(t, 2, 2)

	for frame := 0; frame < 2; frame++ {
		if err := loop.Frame(chain.Extent()); err != nil {
			t.Fatal(err)
		}
	}

	if err := loop.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if dev.idleWaits != 1 {
		t.Errorf("idle waits = %d, want 1 before teardown", dev.idleWaits)
	}
	loop.Destroy()

	if dev.semaphoresDestroyed != 4 || dev.fencesDestroyed != 2 {
		t.Errorf("destroyed semaphores=%d fences=%d, want 4 and 2",
			dev.semaphoresDestroyed, dev.fencesDestroyed)
	}
	for i, q := range dev.queries {
		if !q.destroyed {
			t.Errorf("timestamp query %d not destroyed", i)
		}
	}
}

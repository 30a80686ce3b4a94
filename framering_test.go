package vkr

import (
	"testing"
	"time"
)

func TestFrameRingSlotSequence(t *testing.T) {
	dev := &fakeSyncDevice{}
	ring, err := NewFrameRing(dev, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer ring.Destroy()

	want := []int{0, 1, 0, 1, 0}
	for frame, w := range want {
		slot := ring.Advance()
		if slot.Index() != w {
			t.Errorf("frame %d: slot %d, want %d", frame, slot.Index(), w)
		}
		if ring.SlotIndex() != w {
			t.Errorf("frame %d: SlotIndex() = %d, want %d", frame, ring.SlotIndex(), w)
		}
	}
	if ring.FrameCount() != 5 {
		t.Errorf("FrameCount() = %d, want 5", ring.FrameCount())
	}
}

func TestFrameRingDepthBelowTwoPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("depth 1 should panic")
		}
	}()
	NewFrameRing(&fakeSyncDevice{}, 1)
}

func TestFrameRingResetBeforeWaitPanics(t *testing.T) {
	dev := &fakeSyncDevice{}
	ring, err := NewFrameRing(dev, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer ring.Destroy()

	ring.Advance()

	defer func() {
		if recover() == nil {
			t.Error("ResetSlot without WaitSlotReady should panic")
		}
	}()
	ring.ResetSlot()
}

func TestFrameRingWaitThenReset(t *testing.T) {
	dev := &fakeSyncDevice{}
	ring, err := NewFrameRing(dev, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer ring.Destroy()

	ring.Advance()
	if err := ring.WaitSlotReady(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := ring.ResetSlot(); err != nil {
		t.Fatal(err)
	}
	if dev.fenceWaits != 1 || dev.fenceResets != 1 {
		t.Errorf("waits=%d resets=%d, want 1 and 1", dev.fenceWaits, dev.fenceResets)
	}

	// the wait has been consumed, a second reset must panic
	defer func() {
		if recover() == nil {
			t.Error("second ResetSlot without a new wait should panic")
		}
	}()
	ring.ResetSlot()
}

func TestFrameRingGPUTimeNeedsSubmission(t *testing.T) {
	dev := &fakeSyncDevice{}
	ring, err := NewFrameRing(dev, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer ring.Destroy()

	// first visit to each slot: never submitted, no data
	for frame := 0; frame < 2; frame++ {
		ring.Advance()
		if err := ring.WaitSlotReady(0); err != nil {
			t.Fatal(err)
		}
		if _, ok := ring.GPUTime(); ok {
			t.Errorf("frame %d: GPUTime valid before any submission", frame)
		}
		if err := ring.ResetSlot(); err != nil {
			t.Fatal(err)
		}
		ring.MarkSubmitted()
	}

	// back on slot 0, which has now been submitted once
	ring.Advance()
	if err := ring.WaitSlotReady(0); err != nil {
		t.Fatal(err)
	}
	gpu, ok := ring.GPUTime()
	if !ok {
		t.Fatal("GPUTime should be valid after the slot's first submission")
	}
	if gpu != 2500*time.Nanosecond {
		t.Errorf("GPUTime = %v, want 2500ns", gpu)
	}
	// the never-submitted query pairs were not read
	if dev.queries[0].reads != 1 || dev.queries[1].reads != 0 {
		t.Errorf("query reads = %d,%d, want 1,0", dev.queries[0].reads, dev.queries[1].reads)
	}
}

func TestFrameRingCreationUnwind(t *testing.T) {
	dev := &fakeSyncDevice{failFenceAt: 2}
	if _, err := NewFrameRing(dev, 2); err == nil {
		t.Fatal("expected error from fence creation failure")
	}

	// slot 1 unwinds its two semaphores, then slot 0 unwinds fully
	if dev.semaphoresDestroyed != dev.semaphoresCreated {
		t.Errorf("semaphores destroyed %d of %d created", dev.semaphoresDestroyed, dev.semaphoresCreated)
	}
	if dev.fencesDestroyed != 1 {
		t.Errorf("fences destroyed = %d, want 1", dev.fencesDestroyed)
	}
	if len(dev.queries) != 1 || !dev.queries[0].destroyed {
		t.Error("slot 0's timestamp query should have been destroyed")
	}
}

func TestFrameRingDestroy(t *testing.T) {
	dev := &fakeSyncDevice{}
	ring, err := NewFrameRing(dev, 3)
	if err != nil {
		t.Fatal(err)
	}
	ring.Destroy()

	if dev.semaphoresDestroyed != 6 {
		t.Errorf("semaphores destroyed = %d, want 6", dev.semaphoresDestroyed)
	}
	if dev.fencesDestroyed != 3 {
		t.Errorf("fences destroyed = %d, want 3", dev.fencesDestroyed)
	}
	for i, q := range dev.queries {
		if !q.destroyed {
			t.Errorf("query %d not destroyed", i)
		}
	}
}

package vkr

import (
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// The frame ring and the frame loop are tested against fakes of the
// device-facing interfaces, so the state machine can run without a GPU.

type fakeSyncDevice struct {
	handles uintptr

	semaphoresCreated   int
	semaphoresDestroyed int
	fencesCreated       int
	fencesDestroyed     int

	fenceWaits  int
	fenceResets int
	idleWaits   int

	queries []*fakeTimestampQuery

	// failFenceAt makes the n-th VKCreateFence call fail (1-based).
	failFenceAt int
	waitErr     error
}

func (d *fakeSyncDevice) next() unsafe.Pointer {
	d.handles++
	return unsafe.Pointer(d.handles)
}

func (d *fakeSyncDevice) VKCreateSemaphore() (vk.Semaphore, error) {
	d.semaphoresCreated++
	return vk.Semaphore(d.next()), nil
}

func (d *fakeSyncDevice) VKDestroySemaphore(s vk.Semaphore) {
	d.semaphoresDestroyed++
}

func (d *fakeSyncDevice) VKCreateFence(signaled bool) (vk.Fence, error) {
	d.fencesCreated++
	if d.failFenceAt > 0 && d.fencesCreated == d.failFenceAt {
		return vk.NullFence, ErrOutOfDeviceMemory
	}
	return vk.Fence(d.next()), nil
}

func (d *fakeSyncDevice) VKDestroyFence(f vk.Fence) {
	d.fencesDestroyed++
}

func (d *fakeSyncDevice) VKWaitForFence(f vk.Fence, timeout time.Duration) error {
	d.fenceWaits++
	return d.waitErr
}

func (d *fakeSyncDevice) VKResetFence(f vk.Fence) error {
	d.fenceResets++
	return nil
}

func (d *fakeSyncDevice) CreateTimestampQuery() (TimestampQuery, error) {
	q := &fakeTimestampQuery{begin: 1000, end: 3500}
	d.queries = append(d.queries, q)
	return q, nil
}

func (d *fakeSyncDevice) WaitIdle() error {
	d.idleWaits++
	return nil
}

type fakeTimestampQuery struct {
	begin, end uint64

	begins    int
	ends      int
	reads     int
	destroyed bool
}

func (q *fakeTimestampQuery) Begin(cmd *CommandBuffer) { q.begins++ }
func (q *fakeTimestampQuery) End(cmd *CommandBuffer)   { q.ends++ }

func (q *fakeTimestampQuery) Results() (uint64, uint64, error) {
	q.reads++
	return q.begin, q.end, nil
}

func (q *fakeTimestampQuery) Destroy() { q.destroyed = true }

type recreation struct {
	extent vk.Extent2D
	format *vk.SurfaceFormat
}

type fakePresentChain struct {
	imageCount int
	extent     vk.Extent2D
	format     vk.SurfaceFormat

	acquires  int
	presents  int
	nextImage int

	// keyed by 1-based call number
	staleAcquires map[int]bool
	stalePresents map[int]bool

	recreations []recreation
	recreateErr error
}

func newFakePresentChain(imageCount int) *fakePresentChain {
	return &fakePresentChain{
		imageCount:    imageCount,
		extent:        vk.Extent2D{Width: 800, Height: 600},
		format:        defaultSurfaceFormat,
		staleAcquires: map[int]bool{},
		stalePresents: map[int]bool{},
	}
}

func (c *fakePresentChain) Acquire(signal vk.Semaphore) (int, bool, error) {
	c.acquires++
	if c.staleAcquires[c.acquires] {
		return 0, true, nil
	}
	idx := c.nextImage
	c.nextImage = (c.nextImage + 1) % c.imageCount
	return idx, false, nil
}

func (c *fakePresentChain) Present(wait vk.Semaphore, imageIndex int) (bool, error) {
	c.presents++
	if c.stalePresents[c.presents] {
		return true, nil
	}
	return false, nil
}

func (c *fakePresentChain) Recreate(extent vk.Extent2D, format *vk.SurfaceFormat) error {
	if c.recreateErr != nil {
		return c.recreateErr
	}
	c.recreations = append(c.recreations, recreation{extent: extent, format: format})
	c.extent = extent
	if format != nil {
		c.format = *format
	}
	return nil
}

func (c *fakePresentChain) ImageCount() int                 { return c.imageCount }
func (c *fakePresentChain) Extent() vk.Extent2D             { return c.extent }
func (c *fakePresentChain) SurfaceFormat() vk.SurfaceFormat { return c.format }

type submission struct {
	cmd          *CommandBuffer
	wait, signal vk.Semaphore
	fence        vk.Fence
}

type fakeSubmitter struct {
	submissions []submission
	err         error
}

func (s *fakeSubmitter) SubmitFrame(cmd *CommandBuffer, wait, signal vk.Semaphore, fence vk.Fence) error {
	if s.err != nil {
		return s.err
	}
	s.submissions = append(s.submissions, submission{cmd: cmd, wait: wait, signal: signal, fence: fence})
	return nil
}

type fakeFrameCommands struct {
	buffers []*CommandBuffer

	begins    int
	ends      int
	reallocs  []int
	destroyed bool
}

func newFakeFrameCommands(imageCount int) *fakeFrameCommands {
	f := &fakeFrameCommands{}
	f.resize(imageCount)
	return f
}

func (f *fakeFrameCommands) resize(imageCount int) {
	f.buffers = make([]*CommandBuffer, imageCount)
	for i := range f.buffers {
		f.buffers[i] = &CommandBuffer{}
	}
}

func (f *fakeFrameCommands) Buffer(imageIndex int) *CommandBuffer {
	return f.buffers[imageIndex]
}

func (f *fakeFrameCommands) BeginFrame(cmd *CommandBuffer, slot *FrameSlot) error {
	f.begins++
	slot.Timing.Begin(cmd)
	return nil
}

func (f *fakeFrameCommands) EndFrame(cmd *CommandBuffer, slot *FrameSlot) error {
	slot.Timing.End(cmd)
	f.ends++
	return nil
}

func (f *fakeFrameCommands) Realloc(imageCount int) error {
	f.reallocs = append(f.reallocs, imageCount)
	f.resize(imageCount)
	return nil
}

func (f *fakeFrameCommands) Destroy() { f.destroyed = true }

type recreateCall struct {
	extent vk.Extent2D
	format vk.SurfaceFormat
}

type fakeDelegate struct {
	mains     []int
	overlays  []int
	recreates []recreateCall

	mainErr error
}

func (d *fakeDelegate) RecordMainPass(cmd *CommandBuffer, imageIndex int) error {
	if d.mainErr != nil {
		return d.mainErr
	}
	d.mains = append(d.mains, imageIndex)
	return nil
}

func (d *fakeDelegate) RecordOverlayPass(cmd *CommandBuffer, imageIndex int) error {
	d.overlays = append(d.overlays, imageIndex)
	return nil
}

func (d *fakeDelegate) OnRecreate(extent vk.Extent2D, format vk.SurfaceFormat) error {
	d.recreates = append(d.recreates, recreateCall{extent: extent, format: format})
	return nil
}

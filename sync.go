package vkr

import (
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// VKCreateSemaphore creates a native vulkan semaphore.
func (d *Device) VKCreateSemaphore() (vk.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var sema vk.Semaphore
	if err := resultErr(vk.CreateSemaphore(d.VKDevice, &createInfo, nil, &sema)); err != nil {
		return vk.NullSemaphore, err
	}
	return sema, nil
}

func (d *Device) VKDestroySemaphore(s vk.Semaphore) {
	vk.DestroySemaphore(d.VKDevice, s, nil)
}

// VKCreateFence creates a native vulkan fence, optionally already
// signaled. Frame slot fences start signaled so their first wait
// returns immediately.
func (d *Device) VKCreateFence(signaled bool) (vk.Fence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := resultErr(vk.CreateFence(d.VKDevice, &createInfo, nil, &fence)); err != nil {
		return vk.NullFence, err
	}
	return fence, nil
}

func (d *Device) VKDestroyFence(f vk.Fence) {
	vk.DestroyFence(d.VKDevice, f, nil)
}

func (d *Device) VKGetFenceStatus(f vk.Fence) vk.Result {
	return vk.GetFenceStatus(d.VKDevice, f)
}

// VKWaitForFence blocks until f signals. A zero timeout waits forever.
// A timeout that actually elapses is reported as device loss: in
// steady state the GPU signals frame fences within a frame or two, so
// a bounded wait expiring means the device stopped making progress.
func (d *Device) VKWaitForFence(f vk.Fence, timeout time.Duration) error {
	ns := uint64(vk.MaxUint64)
	if timeout > 0 {
		ns = uint64(timeout.Nanoseconds())
	}

	res := vk.WaitForFences(d.VKDevice, 1, []vk.Fence{f}, vk.True, ns)
	if res == vk.Timeout {
		return ErrDeviceLost
	}
	return resultErr(res)
}

func (d *Device) VKResetFence(f vk.Fence) error {
	return resultErr(vk.ResetFences(d.VKDevice, 1, []vk.Fence{f}))
}

// Fence wraps a native fence together with its owning device.
type Fence struct {
	Device  *Device
	VKFence vk.Fence
}

func (d *Device) CreateFence() (*Fence, error) {
	fence, err := d.VKCreateFence(false)
	if err != nil {
		return nil, err
	}
	return &Fence{Device: d, VKFence: fence}, nil
}

func (f *Fence) Wait(timeout time.Duration) error {
	return f.Device.VKWaitForFence(f.VKFence, timeout)
}

func (f *Fence) Reset() error {
	return f.Device.VKResetFence(f.VKFence)
}

func (f *Fence) Destroy() {
	f.Device.VKDestroyFence(f.VKFence)
}

// timestampQueryPool is a two-entry TIMESTAMP query pool bracketing
// one frame's command stream. It implements TimestampQuery.
type timestampQueryPool struct {
	device      *Device
	VKQueryPool vk.QueryPool
}

// CreateTimestampQuery allocates a begin/end timestamp query pair.
func (d *Device) CreateTimestampQuery() (TimestampQuery, error) {
	createInfo := vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeTimestamp,
		QueryCount: 2,
	}

	var pool vk.QueryPool
	if err := resultErr(vk.CreateQueryPool(d.VKDevice, &createInfo, nil, &pool)); err != nil {
		return nil, err
	}
	return &timestampQueryPool{device: d, VKQueryPool: pool}, nil
}

// Begin resets both queries and stamps the top of the pipe. Queries
// must be reset on the GPU timeline before reuse.
func (q *timestampQueryPool) Begin(cmd *CommandBuffer) {
	vk.CmdResetQueryPool(cmd.VKCommandBuffer, q.VKQueryPool, 0, 2)
	vk.CmdWriteTimestamp(cmd.VKCommandBuffer, vk.PipelineStageTopOfPipeBit, q.VKQueryPool, 0)
}

// End stamps the bottom of the pipe.
func (q *timestampQueryPool) End(cmd *CommandBuffer) {
	vk.CmdWriteTimestamp(cmd.VKCommandBuffer, vk.PipelineStageBottomOfPipeBit, q.VKQueryPool, 1)
}

// Results blocks until both timestamps were written and returns them.
// vk.QueryResultWaitBit hangs forever on queries that were never
// recorded, which is why FrameRing.GPUTime refuses to read slots that
// have no prior submission.
func (q *timestampQueryPool) Results() (uint64, uint64, error) {
	var data [2]uint64
	res := vk.GetQueryPoolResults(q.device.VKDevice, q.VKQueryPool, 0, 2,
		uint(unsafe.Sizeof(data)), unsafe.Pointer(&data[0]), vk.DeviceSize(unsafe.Sizeof(data[0])),
		vk.QueryResultFlags(vk.QueryResult64Bit|vk.QueryResultWaitBit))
	if err := resultErr(res); err != nil {
		return 0, 0, err
	}
	return data[0], data[1], nil
}

func (q *timestampQueryPool) Destroy() {
	vk.DestroyQueryPool(q.device.VKDevice, q.VKQueryPool, nil)
}

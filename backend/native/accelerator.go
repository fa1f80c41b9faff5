//go:build !nogpu

package native

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/splat"
	"github.com/gogpu/splat/gpucompute"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Accelerator runs the distance and projection stages as wgpu/hal
// compute dispatches. It implements splat.Accelerator.
//
// GPU resources are rebuilt only when the source capacity changes; a
// frame is uniform upload, splat upload, two dispatches and the
// readbacks the CPU sort and batch need.
type Accelerator struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  *HALAdapter

	distanceSPIRV []uint32
	projectSPIRV  []uint32

	pipeline *gpucompute.KernelPipeline

	// scratch holds the packed records staged for upload.
	scratch []byte

	gpuReady       bool
	externalDevice bool
}

var (
	_ splat.Accelerator         = (*Accelerator)(nil)
	_ splat.DeviceProviderAware = (*Accelerator)(nil)
)

// Name returns the accelerator name.
func (a *Accelerator) Name() string { return "wgpu" }

// CanAccelerate reports support for both data-parallel stages.
func (a *Accelerator) CanAccelerate(op splat.AcceleratedOp) bool {
	return op&(splat.AccelDistance|splat.AccelProject) != 0
}

// Init compiles the kernels and brings up a GPU device. Fails when no
// usable backend or adapter exists; registration is then skipped and the
// pipeline stays on the CPU.
func (a *Accelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.distanceSPIRV, err = compileWGSL(distanceWGSL); err != nil {
		return fmt.Errorf("native: distance kernel: %w", err)
	}
	if a.projectSPIRV, err = compileWGSL(projectWGSL); err != nil {
		return fmt.Errorf("native: project kernel: %w", err)
	}

	return a.initDevice()
}

// initDevice opens the first usable Vulkan adapter. Must hold mu.
func (a *Accelerator) initDevice() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("native: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("native: no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("native: open device: %w", err)
	}

	a.instance = instance
	a.device = openDev.Device
	a.queue = openDev.Queue
	a.adapter = NewHALAdapter(a.device, a.queue, nil)
	a.gpuReady = true
	splat.Logger().Info("splat: GPU accelerator initialized", "adapter", selected.Info.Name)
	return nil
}

// SetDeviceProvider switches to a shared GPU device from an external
// provider (e.g., a gogpu window). The provider must expose HalDevice()
// and HalQueue() returning hal.Device and hal.Queue.
func (a *Accelerator) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("native: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("native: provider HalQueue is not hal.Queue")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.destroyPipeline()
	if !a.externalDevice && a.device != nil {
		a.device.Destroy()
	}
	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
	}

	a.device = device
	a.queue = queue
	a.adapter = NewHALAdapter(device, queue, nil)
	a.externalDevice = true
	a.gpuReady = true
	splat.Logger().Info("splat: accelerator switched to shared GPU device")
	return nil
}

// Close releases every GPU resource.
func (a *Accelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.destroyPipeline()
	if !a.externalDevice {
		if a.device != nil {
			a.device.Destroy()
			a.device = nil
		}
		if a.instance != nil {
			a.instance.Destroy()
			a.instance = nil
		}
	} else {
		// Shared resources belong to the provider.
		a.device = nil
		a.instance = nil
	}
	a.queue = nil
	a.adapter = nil
	a.scratch = nil
	a.gpuReady = false
	a.externalDevice = false
}

// destroyPipeline releases the kernel pipeline. Must hold mu.
func (a *Accelerator) destroyPipeline() {
	if a.pipeline != nil {
		a.pipeline.Destroy()
		a.pipeline = nil
	}
}

// ComputeDistances uploads the frame and runs the distance kernel,
// reading the keys back for the CPU sort.
func (a *Accelerator) ComputeDistances(src splat.SplatSource, params *splat.FrameParameters, keys []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.gpuReady {
		return splat.ErrFallbackToCPU
	}
	n := src.NumSplats()
	if err := a.ensurePipeline(src.Capacity()); err != nil {
		return err
	}
	if err := a.uploadFrame(src, params, n, 0); err != nil {
		return err
	}
	if err := a.pipeline.DispatchDistance(n); err != nil {
		return err
	}

	out, done, err := a.pipeline.ReadKeys(n)
	if err != nil {
		return err
	}
	if !done {
		return splat.ErrNotReady
	}
	copy(keys, out)
	return nil
}

// Project runs the projection kernel in permutation order and scatters
// the vertex readback into the batch. Any failure falls back to the CPU
// stage.
func (a *Accelerator) Project(src splat.SplatSource, params *splat.FrameParameters, order []uint32, batch *splat.VertexBatch) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.gpuReady {
		return splat.ErrFallbackToCPU
	}
	n := len(order)
	if n == 0 {
		return nil
	}
	if err := a.ensurePipeline(src.Capacity()); err != nil {
		return fmt.Errorf("%w: %w", splat.ErrFallbackToCPU, err)
	}
	if err := a.uploadFrame(src, params, n, 1); err != nil {
		return fmt.Errorf("%w: %w", splat.ErrFallbackToCPU, err)
	}
	a.pipeline.UploadOrder(order)
	if err := a.pipeline.DispatchProject(n); err != nil {
		return fmt.Errorf("%w: %w", splat.ErrFallbackToCPU, err)
	}

	if !a.adapter.WaitIdle() {
		return fmt.Errorf("%w: projection dispatch still in flight", splat.ErrFallbackToCPU)
	}
	raw, err := a.adapter.ReadBuffer(a.pipeline.VertexBuffer(), 0, uint64(n)*splat.QuadVertexCount*gpucompute.VertexStride)
	if err != nil {
		return fmt.Errorf("%w: %w", splat.ErrFallbackToCPU, err)
	}
	scatterVertices(raw, n, batch)
	return nil
}

// ensurePipeline rebuilds the kernel pipeline when the source capacity
// changes. Must hold mu.
func (a *Accelerator) ensurePipeline(capacity int) error {
	if a.pipeline != nil && a.pipeline.Capacity() == capacity {
		return nil
	}
	a.destroyPipeline()

	p, err := gpucompute.NewKernelPipeline(a.adapter, &gpucompute.PipelineConfig{
		Capacity:      capacity,
		DistanceSPIRV: a.distanceSPIRV,
		ProjectSPIRV:  a.projectSPIRV,
	})
	if err != nil {
		return err
	}
	a.pipeline = p
	a.scratch = make([]byte, capacity*gpucompute.PackedSplatStride)
	return nil
}

// uploadFrame stages the packed records and the uniform block. Must
// hold mu.
func (a *Accelerator) uploadFrame(src splat.SplatSource, params *splat.FrameParameters, n int, useSorted uint32) error {
	for i := range n {
		p := src.At(i)
		off := i * gpucompute.PackedSplatStride
		binary.LittleEndian.PutUint32(a.scratch[off:], p.Word0)
		binary.LittleEndian.PutUint32(a.scratch[off+4:], p.Word1)
		binary.LittleEndian.PutUint32(a.scratch[off+8:], p.Word2)
		binary.LittleEndian.PutUint32(a.scratch[off+12:], p.Word3)
	}
	if err := a.pipeline.UploadSplats(a.scratch, n); err != nil {
		return err
	}

	u := buildUniforms(src, params, n, useSorted)
	a.pipeline.SetUniforms(&u)
	return nil
}

// buildUniforms derives the kernel parameter block from the frame
// parameters, matching the CPU stage's per-frame derivations.
func buildUniforms(src splat.SplatSource, params *splat.FrameParameters, n int, useSorted uint32) gpucompute.FrameUniforms {
	viewQ := params.CameraRotation.Conjugate()
	viewT := viewQ.Rotate(params.CameraPosition).Mul(-1)
	viewDir := params.CameraRotation.Rotate(splat.Vec3{0, 0, -1})
	fx := 0.5 * params.Viewport[0] * params.Projection[0] * params.FocalAdjustment
	fy := 0.5 * params.Viewport[1] * params.Projection[5] * params.FocalAdjustment
	rng := src.Range()

	u := gpucompute.FrameUniforms{
		ViewRotation:    [4]float32{viewQ.V[0], viewQ.V[1], viewQ.V[2], viewQ.W},
		ViewTranslation: [3]float32{viewT[0], viewT[1], viewT[2]},
		NumSplats:       uint32(n),
		CameraPos:       [3]float32{params.CameraPosition[0], params.CameraPosition[1], params.CameraPosition[2]},
		SortMode:        uint32(params.SortMode),
		ViewDir:         [3]float32{viewDir[0], viewDir[1], viewDir[2]},
		DepthBias:       params.DepthBias,
		Viewport:        [2]float32{params.Viewport[0], params.Viewport[1]},
		Focal:           [2]float32{fx, fy},
		MaxStdDev:       params.MaxStdDev,
		MinAlpha:        params.MinAlpha,
		MinPixelRadius:  params.MinPixelRadius,
		MaxPixelRadius:  params.MaxPixelRadius,
		ClipFactor:      params.ClipFactor,
		PreBlurAmount:   params.PreBlurAmount,
		BlurAmount:      params.BlurAmount,
		UseSorted:       useSorted,
		RGBMin:          rng.RGBMin,
		RGBMax:          rng.RGBMax,
		LnScaleMin:      rng.LnScaleMin,
		LnScaleMax:      rng.LnScaleMax,
	}
	copy(u.Projection[:], params.Projection[:])
	if params.Projection.IsOrthographic() {
		u.Orthographic = 1
	}
	return u
}

// scatterVertices deinterleaves the 48-byte GPU vertex records into the
// batch's vector slices.
func scatterVertices(raw []byte, n int, batch *splat.VertexBatch) {
	for v := 0; v < n*splat.QuadVertexCount; v++ {
		off := v * gpucompute.VertexStride
		batch.Positions[v] = splat.Vec3{
			f32At(raw, off),
			f32At(raw, off+4),
			f32At(raw, off+8),
		}
		batch.Colors[v] = splat.Vec4{
			f32At(raw, off+16),
			f32At(raw, off+20),
			f32At(raw, off+24),
			f32At(raw, off+28),
		}
		batch.UVs[v] = splat.Vec2{
			f32At(raw, off+32),
			f32At(raw, off+36),
		}
	}
}

func f32At(raw []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
}

package gpucompute

import (
	"fmt"
	"unsafe"
)

// DefaultWorkgroupSize is the kernel workgroup size along X.
const DefaultWorkgroupSize = 256

// Binding indices shared with the WGSL kernels.
const (
	bindUniforms = 0
	bindSplats   = 1
	bindKeys     = 2
	bindOrder    = 3
	bindVertices = 4
)

// PipelineConfig configures a KernelPipeline.
type PipelineConfig struct {
	// Capacity is the number of splat slots to allocate for.
	Capacity int

	// WorkgroupSize is the kernel workgroup size along X.
	// If 0, defaults to DefaultWorkgroupSize.
	WorkgroupSize int

	// DistanceSPIRV and ProjectSPIRV are the compiled kernels. The
	// backend compiles them from WGSL once at init.
	DistanceSPIRV []uint32
	ProjectSPIRV  []uint32
}

// KernelPipeline owns the GPU resources for one splat source: the packed
// splat buffer, the key/order/vertex buffers, the uniform block and the
// two compute pipelines. Resources are created once; per-frame work is
// uniform upload, dispatch and readback only.
type KernelPipeline struct {
	adapter Adapter
	config  PipelineConfig

	uniforms BufferID
	splats   BufferID
	keys     BufferID
	order    BufferID
	vertices BufferID

	distanceModule ShaderModuleID
	projectModule  ShaderModuleID
	layout         BindGroupLayoutID
	pipelineLayout PipelineLayoutID
	distancePipe   ComputePipelineID
	projectPipe    ComputePipelineID
	bindGroup      BindGroupID
}

// NewKernelPipeline creates the GPU resources for the given capacity.
func NewKernelPipeline(adapter Adapter, config *PipelineConfig) (*KernelPipeline, error) {
	if adapter == nil {
		return nil, fmt.Errorf("gpucompute: adapter is required")
	}
	if config == nil {
		return nil, fmt.Errorf("gpucompute: config is required")
	}
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("gpucompute: invalid capacity %d", config.Capacity)
	}
	if !adapter.SupportsCompute() {
		return nil, fmt.Errorf("gpucompute: adapter has no compute support")
	}
	if len(config.DistanceSPIRV) == 0 || len(config.ProjectSPIRV) == 0 {
		return nil, fmt.Errorf("gpucompute: missing kernel bytecode")
	}

	cfg := *config
	if cfg.WorkgroupSize <= 0 {
		cfg.WorkgroupSize = DefaultWorkgroupSize
	}
	if wg := adapter.MaxWorkgroupSize(); uint32(cfg.WorkgroupSize) > wg[0] {
		cfg.WorkgroupSize = int(wg[0])
	}

	splatBytes := uint64(cfg.Capacity) * PackedSplatStride
	if splatBytes > adapter.MaxBufferSize() {
		return nil, fmt.Errorf("gpucompute: capacity %d exceeds max buffer size %d", cfg.Capacity, adapter.MaxBufferSize())
	}

	p := &KernelPipeline{adapter: adapter, config: cfg}
	if err := p.createResources(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

// createResources allocates every buffer and pipeline.
func (p *KernelPipeline) createResources() error {
	a := p.adapter
	c := p.config.Capacity

	var err error
	if p.uniforms, err = a.CreateBuffer(int(unsafe.Sizeof(FrameUniforms{})), BufferUsageUniform|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("gpucompute: uniform buffer: %w", err)
	}
	if p.splats, err = a.CreateBuffer(c*PackedSplatStride, BufferUsageStorage|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("gpucompute: splat buffer: %w", err)
	}
	if p.keys, err = a.CreateBuffer(c*KeyStride, BufferUsageStorage|BufferUsageCopySrc); err != nil {
		return fmt.Errorf("gpucompute: key buffer: %w", err)
	}
	if p.order, err = a.CreateBuffer(c*OrderStride, BufferUsageStorage|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("gpucompute: order buffer: %w", err)
	}
	if p.vertices, err = a.CreateBuffer(c*4*VertexStride, BufferUsageStorage|BufferUsageVertex|BufferUsageCopySrc); err != nil {
		return fmt.Errorf("gpucompute: vertex buffer: %w", err)
	}

	if p.distanceModule, err = a.CreateShaderModule(p.config.DistanceSPIRV, "splat-distance"); err != nil {
		return fmt.Errorf("gpucompute: distance kernel: %w", err)
	}
	if p.projectModule, err = a.CreateShaderModule(p.config.ProjectSPIRV, "splat-project"); err != nil {
		return fmt.Errorf("gpucompute: project kernel: %w", err)
	}

	p.layout, err = a.CreateBindGroupLayout(&BindGroupLayoutDesc{
		Label: "splat-kernel-layout",
		Entries: []BindGroupLayoutEntry{
			{Binding: bindUniforms, Type: BindingTypeUniformBuffer, MinBindingSize: uint64(unsafe.Sizeof(FrameUniforms{}))},
			{Binding: bindSplats, Type: BindingTypeReadOnlyStorageBuffer},
			{Binding: bindKeys, Type: BindingTypeStorageBuffer},
			{Binding: bindOrder, Type: BindingTypeReadOnlyStorageBuffer},
			{Binding: bindVertices, Type: BindingTypeStorageBuffer},
		},
	})
	if err != nil {
		return fmt.Errorf("gpucompute: bind group layout: %w", err)
	}

	if p.pipelineLayout, err = a.CreatePipelineLayout([]BindGroupLayoutID{p.layout}); err != nil {
		return fmt.Errorf("gpucompute: pipeline layout: %w", err)
	}

	p.distancePipe, err = a.CreateComputePipeline(&ComputePipelineDesc{
		Label:        "splat-distance",
		Layout:       p.pipelineLayout,
		ShaderModule: p.distanceModule,
		EntryPoint:   "main",
	})
	if err != nil {
		return fmt.Errorf("gpucompute: distance pipeline: %w", err)
	}
	p.projectPipe, err = a.CreateComputePipeline(&ComputePipelineDesc{
		Label:        "splat-project",
		Layout:       p.pipelineLayout,
		ShaderModule: p.projectModule,
		EntryPoint:   "main",
	})
	if err != nil {
		return fmt.Errorf("gpucompute: project pipeline: %w", err)
	}

	p.bindGroup, err = a.CreateBindGroup(p.layout, []BindGroupEntry{
		{Binding: bindUniforms, Buffer: p.uniforms},
		{Binding: bindSplats, Buffer: p.splats},
		{Binding: bindKeys, Buffer: p.keys},
		{Binding: bindOrder, Buffer: p.order},
		{Binding: bindVertices, Buffer: p.vertices},
	})
	if err != nil {
		return fmt.Errorf("gpucompute: bind group: %w", err)
	}
	return nil
}

// Capacity returns the splat capacity the pipeline was built for.
func (p *KernelPipeline) Capacity() int { return p.config.Capacity }

// VertexBuffer returns the buffer the projection kernel writes; hosts
// presenting directly from GPU memory bind it as a vertex buffer.
func (p *KernelPipeline) VertexBuffer() BufferID { return p.vertices }

// SetUniforms uploads the per-frame parameter block.
func (p *KernelPipeline) SetUniforms(u *FrameUniforms) {
	p.adapter.WriteBuffer(p.uniforms, 0, u.Bytes())
}

// UploadSplats writes n packed splat records.
func (p *KernelPipeline) UploadSplats(data []byte, n int) error {
	if n*PackedSplatStride > len(data) {
		return fmt.Errorf("gpucompute: %d splats but only %d bytes", n, len(data))
	}
	p.adapter.WriteBuffer(p.splats, 0, data[:n*PackedSplatStride])
	return nil
}

// UploadOrder writes the sorted permutation for the projection kernel.
func (p *KernelPipeline) UploadOrder(order []uint32) {
	if len(order) == 0 {
		return
	}
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(&order[0])), len(order)*OrderStride)
	p.adapter.WriteBuffer(p.order, 0, bytes)
}

// DispatchDistance runs the distance kernel over n splats and submits.
func (p *KernelPipeline) DispatchDistance(n int) error {
	return p.dispatch(p.distancePipe, n)
}

// DispatchProject runs the projection kernel over n splats and submits.
func (p *KernelPipeline) DispatchProject(n int) error {
	return p.dispatch(p.projectPipe, n)
}

func (p *KernelPipeline) dispatch(pipe ComputePipelineID, n int) error {
	if n <= 0 {
		return nil
	}
	pass := p.adapter.BeginComputePass()
	if err := pass.SetPipeline(pipe); err != nil {
		return fmt.Errorf("gpucompute: set pipeline: %w", err)
	}
	if err := pass.SetBindGroup(0, p.bindGroup); err != nil {
		return fmt.Errorf("gpucompute: set bind group: %w", err)
	}
	groups := (n + p.config.WorkgroupSize - 1) / p.config.WorkgroupSize
	if err := pass.DispatchWorkgroups(uint32(groups), 1, 1); err != nil {
		return fmt.Errorf("gpucompute: dispatch: %w", err)
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("gpucompute: end pass: %w", err)
	}
	p.adapter.Submit()
	return nil
}

// ReadKeys copies the first n distance keys back to the CPU for the
// sequential sort. Returns false if the GPU has not finished the
// distance pass yet; the caller skips the frame.
func (p *KernelPipeline) ReadKeys(n int) ([]float32, bool, error) {
	if !p.adapter.WaitIdle() {
		return nil, false, nil
	}
	raw, err := p.adapter.ReadBuffer(p.keys, 0, uint64(n*KeyStride))
	if err != nil {
		return nil, true, fmt.Errorf("gpucompute: key readback: %w", err)
	}
	if len(raw) < n*KeyStride {
		return nil, true, fmt.Errorf("gpucompute: short key readback: %d of %d bytes", len(raw), n*KeyStride)
	}
	keys := unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), n)
	return keys, true, nil
}

// Destroy releases every GPU resource. Safe to call on a partially
// constructed pipeline.
func (p *KernelPipeline) Destroy() {
	a := p.adapter
	if p.bindGroup != InvalidID {
		a.DestroyBindGroup(p.bindGroup)
	}
	if p.distancePipe != InvalidID {
		a.DestroyComputePipeline(p.distancePipe)
	}
	if p.projectPipe != InvalidID {
		a.DestroyComputePipeline(p.projectPipe)
	}
	if p.pipelineLayout != InvalidID {
		a.DestroyPipelineLayout(p.pipelineLayout)
	}
	if p.layout != InvalidID {
		a.DestroyBindGroupLayout(p.layout)
	}
	if p.distanceModule != InvalidID {
		a.DestroyShaderModule(p.distanceModule)
	}
	if p.projectModule != InvalidID {
		a.DestroyShaderModule(p.projectModule)
	}
	for _, id := range []BufferID{p.uniforms, p.splats, p.keys, p.order, p.vertices} {
		if id != InvalidID {
			a.DestroyBuffer(id)
		}
	}
	*p = KernelPipeline{adapter: a}
}

// Bytes views the uniform block as raw bytes for upload.
func (u *FrameUniforms) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), int(unsafe.Sizeof(*u)))
}

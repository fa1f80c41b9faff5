package gpucompute

// Adapter abstracts the GPU API for the compute stages. Implementations
// map the opaque IDs to concrete backend resources; see backend/native
// for the wgpu/hal implementation.
//
// Thread Safety: implementations must be safe for concurrent use; the
// KernelPipeline itself is driven from a single goroutine per frame.
type Adapter interface {
	// SupportsCompute returns whether compute shaders are supported.
	SupportsCompute() bool

	// MaxWorkgroupSize returns the maximum workgroup size per dimension.
	MaxWorkgroupSize() [3]uint32

	// MaxBufferSize returns the maximum buffer size in bytes.
	MaxBufferSize() uint64

	// CreateShaderModule creates a shader module from SPIR-V bytecode.
	CreateShaderModule(spirv []uint32, label string) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// CreateBuffer creates a GPU buffer.
	CreateBuffer(size int, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer.
	WriteBuffer(id BufferID, offset uint64, data []byte)

	// ReadBuffer reads data back from a buffer, blocking until the
	// copy completes.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreatePipelineLayout creates a pipeline layout from bind group layouts.
	CreatePipelineLayout(layouts []BindGroupLayoutID) (PipelineLayoutID, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(id PipelineLayoutID)

	// CreateComputePipeline creates a compute pipeline.
	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)

	// DestroyComputePipeline releases a compute pipeline.
	DestroyComputePipeline(id ComputePipelineID)

	// CreateBindGroup creates a bind group.
	CreateBindGroup(layout BindGroupLayoutID, entries []BindGroupEntry) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// BeginComputePass begins recording a compute pass.
	BeginComputePass() ComputePassEncoder

	// Submit submits recorded commands to the GPU.
	Submit()

	// WaitIdle blocks until submitted work completes. Returns false if
	// the wait timed out (work still in flight).
	WaitIdle() bool
}

// ComputePassEncoder records compute commands within a pass.
type ComputePassEncoder interface {
	// SetPipeline sets the compute pipeline for subsequent dispatches.
	SetPipeline(id ComputePipelineID) error

	// SetBindGroup binds a resource group at the given index.
	SetBindGroup(index uint32, id BindGroupID) error

	// DispatchWorkgroups executes the bound pipeline.
	DispatchWorkgroups(x, y, z uint32) error

	// End completes the pass.
	End() error
}

package gpucompute

// Resource IDs
//
// These opaque IDs represent GPU resources. Each adapter implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// ComputePipelineID is an opaque handle to a compute pipeline.
type ComputePipelineID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// PipelineLayoutID is an opaque handle to a pipeline layout.
type PipelineLayoutID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 1

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 2

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 3

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 4

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 5
)

// BindingType specifies the type of a shader binding.
type BindingType uint32

// Binding types.
const (
	// BindingTypeUniformBuffer is a uniform buffer binding.
	BindingTypeUniformBuffer BindingType = iota + 1

	// BindingTypeStorageBuffer is a storage buffer binding (read-write).
	BindingTypeStorageBuffer

	// BindingTypeReadOnlyStorageBuffer is a read-only storage buffer binding.
	BindingTypeReadOnlyStorageBuffer
)

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the pipeline layout.
	Layout PipelineLayoutID

	// ShaderModule contains the compute shader.
	ShaderModule ShaderModuleID

	// EntryPoint is the name of the shader entry point function.
	EntryPoint string
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	// Label is an optional debug label.
	Label string

	// Entries defines the bindings in this layout.
	Entries []BindGroupLayoutEntry
}

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Type is the type of resource bound at this index.
	Type BindingType

	// MinBindingSize is the minimum buffer size for buffer bindings.
	MinBindingSize uint64
}

// BindGroupEntry describes a single binding in a bind group.
type BindGroupEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Buffer is the buffer to bind.
	Buffer BufferID

	// Offset is the offset into the buffer.
	Offset uint64

	// Size is the size of the buffer range to bind.
	// Use 0 to bind the entire buffer from offset.
	Size uint64
}

// GPU Data Structures
//
// These structures match the WGSL kernel layouts and are used for
// CPU-GPU data transfer. All structures use explicit padding for
// 16-byte alignment compatibility.

// FrameUniforms is the per-frame parameter block read by both kernels.
// Must match Frame in distance.wgsl and project.wgsl.
type FrameUniforms struct {
	Projection [16]float32 // Row-major projection matrix

	ViewRotation    [4]float32 // World-to-view quaternion (x, y, z, w)
	ViewTranslation [3]float32 // World-to-view translation
	NumSplats       uint32     // Active splat count

	CameraPos [3]float32 // Camera position in world space
	SortMode  uint32     // 0 = radial, 1 = planar

	ViewDir   [3]float32 // Camera forward axis in world space
	DepthBias float32    // Planar key bias

	Viewport [2]float32 // Render target size in pixels
	Focal    [2]float32 // Derived pixel focal lengths

	MaxStdDev      float32
	MinAlpha       float32
	MinPixelRadius float32
	MaxPixelRadius float32

	ClipFactor    float32
	PreBlurAmount float32
	BlurAmount    float32
	UseSorted     uint32 // Read splats through the order buffer when 1

	RGBMin       float32
	RGBMax       float32
	LnScaleMin   float32
	LnScaleMax   float32

	Orthographic uint32 // Skip the perspective Jacobian when 1
	Padding0     uint32
	Padding1     uint32
	Padding2     uint32
}

// PackedSplatStride is the byte size of one packed splat record.
const PackedSplatStride = 16

// KeyStride is the byte size of one distance key.
const KeyStride = 4

// OrderStride is the byte size of one permutation entry.
const OrderStride = 4

// VertexStride is the byte size of one emitted vertex: vec4 position
// (xyz + padding), vec4 color, vec2 uv plus vec2 padding.
const VertexStride = 48

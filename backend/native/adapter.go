//go:build !nogpu

// Package native runs the splat compute stages on the GPU through
// gogpu/wgpu's hardware abstraction layer.
package native

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/splat/gpucompute"
	"github.com/gogpu/wgpu/hal"
	types "github.com/gogpu/gputypes"
)

// fenceTimeout bounds every GPU wait.
const fenceTimeout = 5 * time.Second

// HALAdapter implements gpucompute.Adapter on gogpu/wgpu/hal.
//
// Thread Safety: HALAdapter is safe for concurrent use from multiple
// goroutines. All resource operations are protected by a mutex.
type HALAdapter struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue

	limits       types.Limits
	maxBufferSz  uint64
	maxWorkgroup [3]uint32

	nextID atomic.Uint64

	// Resource tracking maps gpucompute IDs to hal resources.
	buffers          map[gpucompute.BufferID]hal.Buffer
	shaderModules    map[gpucompute.ShaderModuleID]hal.ShaderModule
	computePipelines map[gpucompute.ComputePipelineID]hal.ComputePipeline
	bindGroupLayouts map[gpucompute.BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts  map[gpucompute.PipelineLayoutID]hal.PipelineLayout
	bindGroups       map[gpucompute.BindGroupID]hal.BindGroup

	// Command encoder for the current frame.
	encoder    hal.CommandEncoder
	hasEncoder bool
}

var _ gpucompute.Adapter = (*HALAdapter)(nil)

// NewHALAdapter creates an adapter wrapping the given device and queue.
// If limits is nil, default limits are used.
func NewHALAdapter(device hal.Device, queue hal.Queue, limits *types.Limits) *HALAdapter {
	var lim types.Limits
	if limits != nil {
		lim = *limits
	} else {
		lim = types.DefaultLimits()
	}

	a := &HALAdapter{
		device:           device,
		queue:            queue,
		limits:           lim,
		maxBufferSz:      lim.MaxBufferSize,
		maxWorkgroup:     [3]uint32{lim.MaxComputeWorkgroupSizeX, lim.MaxComputeWorkgroupSizeY, lim.MaxComputeWorkgroupSizeZ},
		buffers:          make(map[gpucompute.BufferID]hal.Buffer),
		shaderModules:    make(map[gpucompute.ShaderModuleID]hal.ShaderModule),
		computePipelines: make(map[gpucompute.ComputePipelineID]hal.ComputePipeline),
		bindGroupLayouts: make(map[gpucompute.BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts:  make(map[gpucompute.PipelineLayoutID]hal.PipelineLayout),
		bindGroups:       make(map[gpucompute.BindGroupID]hal.BindGroup),
	}

	// 0 is InvalidID.
	a.nextID.Store(1)

	return a
}

func (a *HALAdapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// SupportsCompute returns whether compute shaders are supported.
func (a *HALAdapter) SupportsCompute() bool {
	return a.device != nil && a.queue != nil
}

// MaxWorkgroupSize returns the maximum workgroup size in each dimension.
func (a *HALAdapter) MaxWorkgroupSize() [3]uint32 {
	return a.maxWorkgroup
}

// MaxBufferSize returns the maximum buffer size in bytes.
func (a *HALAdapter) MaxBufferSize() uint64 {
	return a.maxBufferSz
}

// CreateShaderModule creates a shader module from SPIR-V bytecode.
func (a *HALAdapter) CreateShaderModule(spirv []uint32, label string) (gpucompute.ShaderModuleID, error) {
	if len(spirv) == 0 {
		return gpucompute.InvalidID, fmt.Errorf("native: empty SPIR-V bytecode")
	}

	module, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirv,
		},
	})
	if err != nil {
		return gpucompute.InvalidID, fmt.Errorf("native: create shader module: %w", err)
	}

	id := gpucompute.ShaderModuleID(a.newID())

	a.mu.Lock()
	a.shaderModules[id] = module
	a.mu.Unlock()

	return id, nil
}

// DestroyShaderModule releases a shader module.
func (a *HALAdapter) DestroyShaderModule(id gpucompute.ShaderModuleID) {
	a.mu.Lock()
	module, ok := a.shaderModules[id]
	if ok {
		delete(a.shaderModules, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyShaderModule(module)
	}
}

// CreateBuffer creates a GPU buffer.
func (a *HALAdapter) CreateBuffer(size int, usage gpucompute.BufferUsage) (gpucompute.BufferID, error) {
	if size <= 0 {
		return gpucompute.InvalidID, fmt.Errorf("native: buffer size must be positive")
	}

	buffer, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Size:  uint64(size),
		Usage: convertBufferUsage(usage),
	})
	if err != nil {
		return gpucompute.InvalidID, fmt.Errorf("native: create buffer: %w", err)
	}

	id := gpucompute.BufferID(a.newID())

	a.mu.Lock()
	a.buffers[id] = buffer
	a.mu.Unlock()

	return id, nil
}

// DestroyBuffer releases a GPU buffer.
func (a *HALAdapter) DestroyBuffer(id gpucompute.BufferID) {
	a.mu.Lock()
	buffer, ok := a.buffers[id]
	if ok {
		delete(a.buffers, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBuffer(buffer)
	}
}

// WriteBuffer writes data to a buffer.
func (a *HALAdapter) WriteBuffer(id gpucompute.BufferID, offset uint64, data []byte) {
	a.mu.RLock()
	buffer, ok := a.buffers[id]
	a.mu.RUnlock()

	if ok && len(data) > 0 {
		a.queue.WriteBuffer(buffer, offset, data)
	}
}

// ReadBuffer copies a buffer range to a staging buffer, waits for the
// GPU and returns the bytes.
func (a *HALAdapter) ReadBuffer(id gpucompute.BufferID, offset, size uint64) ([]byte, error) {
	a.mu.RLock()
	buffer, ok := a.buffers[id]
	a.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("native: buffer %d not found", id)
	}

	stagingBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "splat_staging",
		Size:  size,
		Usage: types.BufferUsageMapRead | types.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(stagingBuf)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "splat_readback",
	})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("splat_readback"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(buffer, stagingBuf, []hal.BufferCopy{{
		SrcOffset: offset,
		DstOffset: 0,
		Size:      size,
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}
	defer cmdBuf.Destroy()

	fence, err := a.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("native: create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("native: submit: %w", err)
	}
	fenceOK, err := a.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("native: wait for readback: ok=%v err=%w", fenceOK, err)
	}

	out := make([]byte, size)
	if err := a.queue.ReadBuffer(stagingBuf, 0, out); err != nil {
		return nil, fmt.Errorf("native: readback: %w", err)
	}
	return out, nil
}

// CreateBindGroupLayout creates a bind group layout.
func (a *HALAdapter) CreateBindGroupLayout(desc *gpucompute.BindGroupLayoutDesc) (gpucompute.BindGroupLayoutID, error) {
	if desc == nil {
		return gpucompute.InvalidID, fmt.Errorf("native: nil bind group layout descriptor")
	}

	halEntries := make([]types.BindGroupLayoutEntry, len(desc.Entries))
	for i, entry := range desc.Entries {
		halEntries[i] = convertBindGroupLayoutEntry(entry)
	}

	layout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: halEntries,
	})
	if err != nil {
		return gpucompute.InvalidID, fmt.Errorf("native: create bind group layout: %w", err)
	}

	id := gpucompute.BindGroupLayoutID(a.newID())

	a.mu.Lock()
	a.bindGroupLayouts[id] = layout
	a.mu.Unlock()

	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (a *HALAdapter) DestroyBindGroupLayout(id gpucompute.BindGroupLayoutID) {
	a.mu.Lock()
	layout, ok := a.bindGroupLayouts[id]
	if ok {
		delete(a.bindGroupLayouts, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBindGroupLayout(layout)
	}
}

// CreatePipelineLayout creates a pipeline layout.
func (a *HALAdapter) CreatePipelineLayout(layouts []gpucompute.BindGroupLayoutID) (gpucompute.PipelineLayoutID, error) {
	a.mu.RLock()
	halLayouts := make([]hal.BindGroupLayout, len(layouts))
	for i, id := range layouts {
		layout, ok := a.bindGroupLayouts[id]
		if !ok {
			a.mu.RUnlock()
			return gpucompute.InvalidID, fmt.Errorf("native: bind group layout %d not found", id)
		}
		halLayouts[i] = layout
	}
	a.mu.RUnlock()

	pipelineLayout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		BindGroupLayouts: halLayouts,
	})
	if err != nil {
		return gpucompute.InvalidID, fmt.Errorf("native: create pipeline layout: %w", err)
	}

	id := gpucompute.PipelineLayoutID(a.newID())

	a.mu.Lock()
	a.pipelineLayouts[id] = pipelineLayout
	a.mu.Unlock()

	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (a *HALAdapter) DestroyPipelineLayout(id gpucompute.PipelineLayoutID) {
	a.mu.Lock()
	layout, ok := a.pipelineLayouts[id]
	if ok {
		delete(a.pipelineLayouts, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyPipelineLayout(layout)
	}
}

// CreateComputePipeline creates a compute pipeline.
func (a *HALAdapter) CreateComputePipeline(desc *gpucompute.ComputePipelineDesc) (gpucompute.ComputePipelineID, error) {
	if desc == nil {
		return gpucompute.InvalidID, fmt.Errorf("native: nil compute pipeline descriptor")
	}

	a.mu.RLock()
	pipelineLayout, layoutOK := a.pipelineLayouts[desc.Layout]
	shaderModule, moduleOK := a.shaderModules[desc.ShaderModule]
	a.mu.RUnlock()

	if !layoutOK {
		return gpucompute.InvalidID, fmt.Errorf("native: pipeline layout %d not found", desc.Layout)
	}
	if !moduleOK {
		return gpucompute.InvalidID, fmt.Errorf("native: shader module %d not found", desc.ShaderModule)
	}

	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     shaderModule,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return gpucompute.InvalidID, fmt.Errorf("native: create compute pipeline: %w", err)
	}

	id := gpucompute.ComputePipelineID(a.newID())

	a.mu.Lock()
	a.computePipelines[id] = pipeline
	a.mu.Unlock()

	return id, nil
}

// DestroyComputePipeline releases a compute pipeline.
func (a *HALAdapter) DestroyComputePipeline(id gpucompute.ComputePipelineID) {
	a.mu.Lock()
	pipeline, ok := a.computePipelines[id]
	if ok {
		delete(a.computePipelines, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyComputePipeline(pipeline)
	}
}

// CreateBindGroup creates a bind group.
func (a *HALAdapter) CreateBindGroup(layout gpucompute.BindGroupLayoutID, entries []gpucompute.BindGroupEntry) (gpucompute.BindGroupID, error) {
	a.mu.RLock()
	halLayout, ok := a.bindGroupLayouts[layout]
	if !ok {
		a.mu.RUnlock()
		return gpucompute.InvalidID, fmt.Errorf("native: bind group layout %d not found", layout)
	}

	halEntries := make([]types.BindGroupEntry, len(entries))
	for i, entry := range entries {
		halEntry, err := a.convertBindGroupEntry(entry)
		if err != nil {
			a.mu.RUnlock()
			return gpucompute.InvalidID, fmt.Errorf("native: convert bind group entry %d: %w", entry.Binding, err)
		}
		halEntries[i] = halEntry
	}
	a.mu.RUnlock()

	bindGroup, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Layout:  halLayout,
		Entries: halEntries,
	})
	if err != nil {
		return gpucompute.InvalidID, fmt.Errorf("native: create bind group: %w", err)
	}

	id := gpucompute.BindGroupID(a.newID())

	a.mu.Lock()
	a.bindGroups[id] = bindGroup
	a.mu.Unlock()

	return id, nil
}

// DestroyBindGroup releases a bind group.
func (a *HALAdapter) DestroyBindGroup(id gpucompute.BindGroupID) {
	a.mu.Lock()
	group, ok := a.bindGroups[id]
	if ok {
		delete(a.bindGroups, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBindGroup(group)
	}
}

// BeginComputePass begins a compute pass, creating the frame encoder on
// first use.
func (a *HALAdapter) BeginComputePass() gpucompute.ComputePassEncoder {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasEncoder {
		encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
			Label: "splat_compute",
		})
		if err != nil {
			return &halComputePassEncoder{adapter: a, err: fmt.Errorf("native: create command encoder: %w", err)}
		}
		if err := encoder.BeginEncoding("splat_compute"); err != nil {
			return &halComputePassEncoder{adapter: a, err: fmt.Errorf("native: begin encoding: %w", err)}
		}
		a.encoder = encoder
		a.hasEncoder = true
	}

	halPass := a.encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: "splat",
	})

	return &halComputePassEncoder{
		adapter: a,
		pass:    halPass,
	}
}

// Submit submits recorded commands to the GPU without waiting.
func (a *HALAdapter) Submit() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasEncoder || a.encoder == nil {
		return
	}

	cmdBuf, err := a.encoder.EndEncoding()
	a.encoder = nil
	a.hasEncoder = false
	if err != nil {
		return
	}

	_ = a.queue.Submit([]hal.CommandBuffer{cmdBuf}, nil, 0)
	cmdBuf.Destroy()
}

// WaitIdle submits pending work and blocks until the GPU catches up.
// Returns false if the wait timed out.
func (a *HALAdapter) WaitIdle() bool {
	a.Submit()

	fence, err := a.device.CreateFence()
	if err != nil {
		return false
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit(nil, fence, 1); err != nil {
		return false
	}
	completed, err := a.device.Wait(fence, 1, fenceTimeout)
	return completed && err == nil
}

// convertBufferUsage converts gpucompute.BufferUsage to types.BufferUsage.
func convertBufferUsage(usage gpucompute.BufferUsage) types.BufferUsage {
	var result types.BufferUsage

	if usage&gpucompute.BufferUsageMapRead != 0 {
		result |= types.BufferUsageMapRead
	}
	if usage&gpucompute.BufferUsageCopySrc != 0 {
		result |= types.BufferUsageCopySrc
	}
	if usage&gpucompute.BufferUsageCopyDst != 0 {
		result |= types.BufferUsageCopyDst
	}
	if usage&gpucompute.BufferUsageUniform != 0 {
		result |= types.BufferUsageUniform
	}
	if usage&gpucompute.BufferUsageStorage != 0 {
		result |= types.BufferUsageStorage
	}
	if usage&gpucompute.BufferUsageVertex != 0 {
		result |= types.BufferUsageVertex
	}

	return result
}

// convertBindGroupLayoutEntry converts a layout entry to the HAL form.
// Visibility is always compute; the pipeline has no other stages.
func convertBindGroupLayoutEntry(entry gpucompute.BindGroupLayoutEntry) types.BindGroupLayoutEntry {
	result := types.BindGroupLayoutEntry{
		Binding:    entry.Binding,
		Visibility: types.ShaderStageCompute,
	}

	switch entry.Type {
	case gpucompute.BindingTypeUniformBuffer:
		result.Buffer = &types.BufferBindingLayout{
			Type:           types.BufferBindingTypeUniform,
			MinBindingSize: entry.MinBindingSize,
		}
	case gpucompute.BindingTypeStorageBuffer:
		result.Buffer = &types.BufferBindingLayout{
			Type:           types.BufferBindingTypeStorage,
			MinBindingSize: entry.MinBindingSize,
		}
	case gpucompute.BindingTypeReadOnlyStorageBuffer:
		result.Buffer = &types.BufferBindingLayout{
			Type:           types.BufferBindingTypeReadOnlyStorage,
			MinBindingSize: entry.MinBindingSize,
		}
	}

	return result
}

// convertBindGroupEntry converts a bind group entry to the HAL form.
// Must be called with mu held.
func (a *HALAdapter) convertBindGroupEntry(entry gpucompute.BindGroupEntry) (types.BindGroupEntry, error) {
	result := types.BindGroupEntry{
		Binding: entry.Binding,
	}

	if entry.Buffer == gpucompute.InvalidID {
		return result, fmt.Errorf("no buffer in entry")
	}
	if _, ok := a.buffers[entry.Buffer]; !ok {
		return result, fmt.Errorf("buffer %d not found", entry.Buffer)
	}

	result.Resource = types.BufferBinding{
		Buffer: uintptr(entry.Buffer),
		Offset: entry.Offset,
		Size:   entry.Size,
	}
	return result, nil
}

// halComputePassEncoder implements gpucompute.ComputePassEncoder.
type halComputePassEncoder struct {
	adapter *HALAdapter
	pass    hal.ComputePassEncoder
	err     error
}

// SetPipeline sets the active compute pipeline.
func (e *halComputePassEncoder) SetPipeline(pipeline gpucompute.ComputePipelineID) error {
	if e.pass == nil {
		return e.passErr()
	}

	e.adapter.mu.RLock()
	halPipeline, ok := e.adapter.computePipelines[pipeline]
	e.adapter.mu.RUnlock()

	if !ok {
		return fmt.Errorf("native: compute pipeline %d not found", pipeline)
	}
	e.pass.SetPipeline(halPipeline)
	return nil
}

// SetBindGroup sets a bind group at the specified index.
func (e *halComputePassEncoder) SetBindGroup(index uint32, group gpucompute.BindGroupID) error {
	if e.pass == nil {
		return e.passErr()
	}

	e.adapter.mu.RLock()
	halGroup, ok := e.adapter.bindGroups[group]
	e.adapter.mu.RUnlock()

	if !ok {
		return fmt.Errorf("native: bind group %d not found", group)
	}
	e.pass.SetBindGroup(index, halGroup, nil)
	return nil
}

// DispatchWorkgroups dispatches compute workgroups.
func (e *halComputePassEncoder) DispatchWorkgroups(x, y, z uint32) error {
	if e.pass == nil {
		return e.passErr()
	}
	e.pass.Dispatch(x, y, z)
	return nil
}

// End finishes the compute pass.
func (e *halComputePassEncoder) End() error {
	if e.pass == nil {
		return e.passErr()
	}
	e.pass.End()
	return nil
}

func (e *halComputePassEncoder) passErr() error {
	if e.err != nil {
		return e.err
	}
	return fmt.Errorf("native: compute pass not recording")
}

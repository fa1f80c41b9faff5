// Package gpucompute defines the GPU abstraction for the splat pipeline's
// compute stages.
//
// The package contains no GPU code itself: it defines the Adapter
// interface over opaque resource IDs, the uniform and buffer layouts
// shared with the WGSL kernels, and the KernelPipeline that owns the GPU
// resources for one splat source. Backend packages (backend/native)
// implement Adapter on a concrete API.
//
// Resources are created once per structural rebuild; per-frame work is
// limited to uniform updates, kernel dispatch and the key readback. The
// kernels themselves are fixed: frame state travels entirely through
// the uniform buffer, including the sort-mode and use-sorted-order
// flags, so no toggle ever requires recreating a pipeline.
package gpucompute

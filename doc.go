// Package splat implements a real-time sort-and-project pipeline for 3D
// Gaussian splats.
//
// A splat is an anisotropic 3D Gaussian with position, per-axis scale,
// orientation and color, stored as a compact 16-byte record
// ([PackedSplat]). Every frame the [Pipeline] decodes the records of a
// [SplatSource], orders them back to front by a per-frame distance
// metric, projects each Gaussian's covariance into a screen-space
// ellipse and emits four quad vertices per splat ([VertexBatch]) for an
// external alpha-blending rasterizer.
//
// The two data-parallel stages (distance keys and projection) run on a
// goroutine pool by default. GPU execution is optional and opt-in:
//
//	import _ "github.com/gogpu/splat/gpu" // enables GPU stages
//
// The package produces no log output by default; see [SetLogger].
package splat

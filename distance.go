package splat

import "math"

// invalidKey is the ordering key assigned to invalid or padding entries.
// The sorter orders keys descending, so the lowest possible priority
// places these entries after every valid splat.
var invalidKey = float32(math.Inf(-1))

// computeDistanceRange fills keys[lo:hi] with the per-splat ordering key
// and returns the number of valid entries in the range. Only the center
// is decoded; scale, rotation and color are ignored at this stage.
//
// Each index depends only on its own record and the frame parameters, so
// ranges can run on any worker in any order.
func computeDistanceRange(src SplatSource, p *FrameParameters, keys []float32, lo, hi int) int {
	origin := p.CameraPosition
	dir := p.viewDirection()
	planar := p.SortMode == SortPlanar
	bias := p.DepthBias

	valid := 0
	for i := lo; i < hi; i++ {
		ps := src.At(i)
		toSplat := Vec3{
			halfToFloat32(uint16(ps.Word1 & 0xffff)),
			halfToFloat32(uint16(ps.Word1 >> 16)),
			halfToFloat32(uint16(ps.Word2 & 0xffff)),
		}.Sub(origin)

		var key float32
		if planar {
			key = toSplat.Dot(dir) + bias
		} else {
			key = toSplat.Len()
		}

		if !isFinite32(key) {
			key = invalidKey
		} else {
			valid++
		}
		keys[i] = key
	}
	return valid
}

// isFinite32 reports whether x is neither NaN nor an infinity.
func isFinite32(x float32) bool {
	// NaN fails x == x; infinities fail the subtraction.
	return x-x == 0
}

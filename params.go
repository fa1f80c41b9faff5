package splat

import "math"

// SortMode selects the distance metric used for the back-to-front order.
type SortMode uint32

const (
	// SortRadial orders splats by Euclidean distance from the camera.
	SortRadial SortMode = iota

	// SortPlanar orders splats by signed distance along the view
	// direction. Cheaper and stable under pure camera rotation.
	SortPlanar
)

// String returns a human-readable name for the sort mode.
func (m SortMode) String() string {
	switch m {
	case SortRadial:
		return "Radial"
	case SortPlanar:
		return "Planar"
	default:
		return "Unknown"
	}
}

// FrameParameters carries everything that can change between frames.
// A fresh value (or an updated one) is passed to Pipeline.Update each
// frame; it has no identity beyond that call.
type FrameParameters struct {
	// CameraPosition and CameraRotation give the camera pose in world
	// space. The world-to-view transform is derived from them.
	CameraPosition Vec3
	CameraRotation Quat

	// Projection is the clip-space projection matrix. An affine last
	// row selects the orthographic covariance path.
	Projection Mat4

	// Viewport is the render target size in pixels.
	Viewport Vec2

	// MaxStdDev is the quad extent in Gaussian standard deviations.
	MaxStdDev float32

	// MinAlpha culls splats whose (corrected) alpha falls below it.
	MinAlpha float32

	// MinPixelRadius culls splats whose footprint stays below it on
	// both axes; MaxPixelRadius clamps runaway footprints.
	MinPixelRadius float32
	MaxPixelRadius float32

	// ClipFactor widens the XY frustum test so quads overlapping the
	// screen edge survive; 1 clips exactly at the edge.
	ClipFactor float32

	// FocalAdjustment scales the derived focal lengths.
	FocalAdjustment float32

	// PreBlurAmount dilates the 2D covariance before the determinant
	// snapshot; BlurAmount dilates it after, with the alpha correction
	// keeping total energy approximately constant.
	PreBlurAmount float32
	BlurAmount    float32

	// SortMode and DepthBias control the ordering key.
	SortMode  SortMode
	DepthBias float32
}

// DefaultFrameParameters returns parameters with the reference tunables.
// Callers fill in the camera pose, projection and viewport.
func DefaultFrameParameters() FrameParameters {
	return FrameParameters{
		CameraRotation:  QuatIdent(),
		Projection:      Mat4Ident(),
		Viewport:        Vec2{1, 1},
		MaxStdDev:       float32(math.Sqrt(8)),
		MinAlpha:        1.0 / 255,
		MinPixelRadius:  0.3,
		MaxPixelRadius:  1024,
		ClipFactor:      1.4,
		FocalAdjustment: 1,
		PreBlurAmount:   0,
		BlurAmount:      0.3,
		SortMode:        SortRadial,
	}
}

// viewQuat returns the world-to-view rotation.
func (p *FrameParameters) viewQuat() Quat {
	return p.CameraRotation.Conjugate()
}

// viewDirection returns the camera forward axis (-Z) in world space.
func (p *FrameParameters) viewDirection() Vec3 {
	return p.CameraRotation.Rotate(Vec3{0, 0, -1})
}

// focal derives the pixel focal lengths from the viewport and the
// projection's diagonal scale terms.
func (p *FrameParameters) focal() (fx, fy float32) {
	fx = 0.5 * p.Viewport[0] * p.Projection[0] * p.FocalAdjustment
	fy = 0.5 * p.Viewport[1] * p.Projection[5] * p.FocalAdjustment
	return fx, fy
}

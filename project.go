package splat

// The projection stage turns one packed splat into four quad vertices.
// It mirrors the GPU kernel: no step errors or exits early, a single
// accumulated validity flag gates the output, and invalid splats still
// emit a (degenerate) quad so batch offsets stay constant.

// covEpsilon guards divisions in the covariance and eigenvector math.
const covEpsilon = 1e-12

// frameState caches the per-frame quantities derived from
// FrameParameters once per update, shared read-only by all workers.
type frameState struct {
	params FrameParameters

	// World-to-view transform: rotate by viewQ, then add viewT.
	viewQ Quat
	viewT Vec3

	fx, fy float32
	ortho  bool

	// ndcPerPixel converts pixel offsets to NDC offsets.
	ndcPerPixel Vec2
}

func newFrameState(p FrameParameters) frameState {
	st := frameState{params: p}
	st.viewQ = p.viewQuat()
	st.viewT = st.viewQ.Rotate(p.CameraPosition).Mul(-1)
	st.fx, st.fy = p.focal()
	st.ortho = p.Projection.IsOrthographic()
	vp := p.Viewport
	if vp[0] <= 0 {
		vp[0] = 1
	}
	if vp[1] <= 0 {
		vp[1] = 1
	}
	st.ndcPerPixel = Vec2{2 / vp[0], 2 / vp[1]}
	return st
}

// cov3 holds the six unique entries of a symmetric 3x3 covariance.
type cov3 struct {
	xx, xy, xz, yy, yz, zz float32
}

// splatCovariance builds the view-space covariance RS·RSᵀ from the
// composed rotation and the per-axis scales. The result is symmetric
// positive semi-definite for any rotation and non-negative scale.
func splatCovariance(rot Quat, scale Vec3) cov3 {
	rs := rot.RotationScaleMatrix(scale)
	return cov3{
		xx: rs[0]*rs[0] + rs[1]*rs[1] + rs[2]*rs[2],
		xy: rs[0]*rs[3] + rs[1]*rs[4] + rs[2]*rs[5],
		xz: rs[0]*rs[6] + rs[1]*rs[7] + rs[2]*rs[8],
		yy: rs[3]*rs[3] + rs[4]*rs[4] + rs[5]*rs[5],
		yz: rs[3]*rs[6] + rs[4]*rs[7] + rs[5]*rs[8],
		zz: rs[6]*rs[6] + rs[7]*rs[7] + rs[8]*rs[8],
	}
}

// projectCovariance maps a view-space covariance to the pixel-space 2x2
// [[a b] [b d]]. The orthographic path scales the XY block by the focal
// lengths; the perspective path propagates through the first-order
// Jacobian of the perspective division at the splat center. Both
// preserve symmetry and positive semi-definiteness.
func (st *frameState) projectCovariance(c cov3, viewCenter Vec3) (a, b, d float32) {
	if st.ortho {
		a = st.fx * st.fx * c.xx
		b = st.fx * st.fy * c.xy
		d = st.fy * st.fy * c.yy
		return a, b, d
	}

	z := viewCenter[2]
	if z == 0 {
		z = 1
	}
	j00 := st.fx / z
	j02 := -st.fx * viewCenter[0] / (z * z)
	j11 := st.fy / z
	j12 := -st.fy * viewCenter[1] / (z * z)

	a = j00*(j00*c.xx+j02*c.xz) + j02*(j00*c.xz+j02*c.zz)
	b = j00*(j11*c.xy+j12*c.xz) + j02*(j11*c.yz+j12*c.zz)
	d = j11*(j11*c.yy+j12*c.yz) + j12*(j11*c.yz+j12*c.zz)
	return a, b, d
}

// eigenSymm2 decomposes the symmetric 2x2 [[a b] [b d]] in closed form.
// eigen1 >= eigen2 always; v1 is the unit eigenvector for eigen1, with
// the (1, 0) fallback in the numerically near-isotropic case. The second
// eigenvector is v1.Perp().
func eigenSymm2(a, b, d float32) (eigen1, eigen2 float32, v1 Vec2) {
	det := a*d - b*b
	avg := (a + d) / 2
	delta := sqrt32(max(0, avg*avg-det))
	eigen1 = avg + delta
	eigen2 = avg - delta
	if abs32(b) > covEpsilon {
		v1 = Vec2{b, eigen1 - a}.Normalize()
	} else {
		v1 = Vec2{1, 0}
	}
	return eigen1, eigen2, v1
}

// projectSplat decodes the splat at index and writes its quad to slot.
func projectSplat(src SplatSource, st *frameState, index uint32, slot int, batch *VertexBatch) {
	p := &st.params
	s := src.At(int(index)).Decode(src.Range())

	// Cheap gates first; the math still runs so the flow matches the
	// branch-free kernel.
	alphaValid := s.Color[3] >= p.MinAlpha
	hasScale := s.Scale[0] > 0 || s.Scale[1] > 0 || s.Scale[2] > 0

	viewCenter := st.viewQ.Rotate(s.Center).Add(st.viewT)
	inFront := viewCenter[2] < 0

	clip := p.Projection.MulVec4(viewCenter.Vec4(1))
	withinDepth := abs32(clip[2]) < clip[3]
	withinXY := abs32(clip[0]) <= p.ClipFactor*clip[3] &&
		abs32(clip[1]) <= p.ClipFactor*clip[3]

	// Guard w = 0; the withinDepth/withinXY gates have already failed
	// in that case, the substitution only avoids a division fault.
	w := clip[3]
	if w == 0 {
		w = 1
	}
	ndcCenter := Vec3{clip[0] / w, clip[1] / w, clip[2] / w}

	// Covariance of the splat in view space, then its 2D projection
	// [[a b] [b d]] in pixel space.
	viewRot := st.viewQ.Mul(s.Rotation)
	cov := splatCovariance(viewRot, s.Scale)
	a, b, d := st.projectCovariance(cov, viewCenter)

	// Pre-filter, then dilate for anti-aliasing. The determinant ratio
	// rescales alpha so the dilated Gaussian carries roughly the same
	// total energy.
	a += p.PreBlurAmount
	d += p.PreBlurAmount
	detOrig := a*d - b*b
	a += p.BlurAmount
	d += p.BlurAmount
	detBlurred := a*d - b*b
	correction := sqrt32(max(0, detOrig/max(detBlurred, covEpsilon)))
	finalAlpha := s.Color[3] * correction
	finalAlphaValid := finalAlpha >= p.MinAlpha

	// Closed-form eigendecomposition of the blurred covariance.
	eigen1, eigen2, v1 := eigenSymm2(a, b, d)
	v2 := v1.Perp()

	r1 := min(p.MaxPixelRadius, p.MaxStdDev*sqrt32(max(0, eigen1)))
	r2 := min(p.MaxPixelRadius, p.MaxStdDev*sqrt32(max(0, eigen2)))
	hasMinRadius := r1 >= p.MinPixelRadius || r2 >= p.MinPixelRadius

	isValid := alphaValid && hasScale && inFront &&
		withinDepth && withinXY && finalAlphaValid && hasMinRadius

	if !isValid {
		batch.setDegenerate(slot)
		return
	}

	color := Vec4{s.Color[0], s.Color[1], s.Color[2], finalAlpha}
	base := slot * QuadVertexCount
	for c, corner := range quadCorners {
		px := corner[0]*v1[0]*r1 + corner[1]*v2[0]*r2
		py := corner[0]*v1[1]*r1 + corner[1]*v2[1]*r2
		batch.Positions[base+c] = Vec3{
			ndcCenter[0] + px*st.ndcPerPixel[0],
			ndcCenter[1] + py*st.ndcPerPixel[1],
			ndcCenter[2],
		}
		batch.Colors[base+c] = color
		batch.UVs[base+c] = corner.Mul(p.MaxStdDev)
	}
}

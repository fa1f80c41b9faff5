package splat

import "math"

// PackedSplat is the 16-byte wire representation of one splat, stored as
// four 32-bit words:
//
//	word0: R, G, B, A as 8-bit quantized channels (low byte = R)
//	word1: center.x, center.y as half floats (low half = x)
//	word2: low 16 bits = center.z half float,
//	       high 16 bits = low 16 bits of the orientation code
//	word3: low 24 bits = quantized log-scale X, Y, Z (8 bits each),
//	       high 8 bits = high 8 bits of the orientation code
//
// The 24-bit orientation code packs an octahedral-folded rotation axis
// (8-bit u, 8-bit v) and an 8-bit quantized half-angle.
//
// Decoding is total: every bit pattern decodes to some splat, though
// nonsensical patterns yield geometry the projection stage culls.
type PackedSplat struct {
	Word0, Word1, Word2, Word3 uint32
}

// Splat is the decoded form of a PackedSplat.
type Splat struct {
	// Center is the splat position in world space.
	Center Vec3

	// Scale holds the per-axis standard deviations of the Gaussian.
	// A component of exactly zero comes from the zero-scale sentinel.
	Scale Vec3

	// Rotation orients the Gaussian's principal axes.
	Rotation Quat

	// Color is the RGBA color. RGB is denormalized through the codec's
	// RGB range; alpha is linear in [0, 1].
	Color Vec4
}

// CodecRange holds the dequantization ranges shared by every splat in a
// source. RGB channels map linearly onto [RGBMin, RGBMax]; scale values
// map exponentially onto [exp(LnScaleMin), exp(LnScaleMax)].
type CodecRange struct {
	RGBMin, RGBMax         float32
	LnScaleMin, LnScaleMax float32
}

// DefaultCodecRange returns the ranges used when a source does not carry
// its own.
func DefaultCodecRange() CodecRange {
	return CodecRange{
		RGBMin:     0,
		RGBMax:     1,
		LnScaleMin: -12,
		LnScaleMax: 2,
	}
}

// Decode unpacks the splat. It never fails; see PackedSplat.
func (p PackedSplat) Decode(r CodecRange) Splat {
	var s Splat

	s.Color = Vec4{
		r.RGBMin + float32(p.Word0&0xff)/255*(r.RGBMax-r.RGBMin),
		r.RGBMin + float32(p.Word0>>8&0xff)/255*(r.RGBMax-r.RGBMin),
		r.RGBMin + float32(p.Word0>>16&0xff)/255*(r.RGBMax-r.RGBMin),
		float32(p.Word0>>24) / 255,
	}

	s.Center = Vec3{
		halfToFloat32(uint16(p.Word1 & 0xffff)),
		halfToFloat32(uint16(p.Word1 >> 16)),
		halfToFloat32(uint16(p.Word2 & 0xffff)),
	}

	s.Scale = Vec3{
		decodeScale(uint32(p.Word3&0xff), r),
		decodeScale(uint32(p.Word3>>8&0xff), r),
		decodeScale(uint32(p.Word3>>16&0xff), r),
	}

	code := p.Word2>>16 | p.Word3>>24<<16
	s.Rotation = decodeRotation(code)

	return s
}

// Encode packs the splat. Center components are rounded to half floats,
// colors and scales to their 8-bit quantized forms, and the rotation to
// the 24-bit orientation code. Decode(Encode(s)) reproduces s within the
// quantization step of each field.
func (s Splat) Encode(r CodecRange) PackedSplat {
	var p PackedSplat

	p.Word0 = quantizeChannel(s.Color[0], r.RGBMin, r.RGBMax) |
		quantizeChannel(s.Color[1], r.RGBMin, r.RGBMax)<<8 |
		quantizeChannel(s.Color[2], r.RGBMin, r.RGBMax)<<16 |
		quantizeChannel(s.Color[3], 0, 1)<<24

	p.Word1 = uint32(float32ToHalf(s.Center[0])) |
		uint32(float32ToHalf(s.Center[1]))<<16

	code := encodeRotation(s.Rotation)

	p.Word2 = uint32(float32ToHalf(s.Center[2])) | code<<16&0xffff0000

	p.Word3 = encodeScale(s.Scale[0], r) |
		encodeScale(s.Scale[1], r)<<8 |
		encodeScale(s.Scale[2], r)<<16 |
		code>>16<<24
	return p
}

// decodeScale maps an 8-bit quantized log scale to a linear scale.
// Value 0 is the exact-zero sentinel.
func decodeScale(v uint32, r CodecRange) float32 {
	if v == 0 {
		return 0
	}
	ln := r.LnScaleMin + float32(v-1)*(r.LnScaleMax-r.LnScaleMin)/254
	return float32(math.Exp(float64(ln)))
}

// encodeScale quantizes a linear scale to 8 bits. Non-positive scales
// collapse to the zero sentinel; everything else lands in 1..255.
func encodeScale(s float32, r CodecRange) uint32 {
	if s <= 0 {
		return 0
	}
	ln := float32(math.Log(float64(s)))
	q := (ln - r.LnScaleMin) / (r.LnScaleMax - r.LnScaleMin) * 254
	v := int32(math.Round(float64(q))) + 1
	if v < 1 {
		v = 1
	} else if v > 255 {
		v = 255
	}
	return uint32(v)
}

// quantizeChannel maps a channel value in [lo, hi] to 8 bits.
func quantizeChannel(c, lo, hi float32) uint32 {
	if hi <= lo {
		return 0
	}
	q := (c - lo) / (hi - lo) * 255
	v := int32(math.Round(float64(q)))
	if v < 0 {
		v = 0
	} else if v > 255 {
		v = 255
	}
	return uint32(v)
}

// decodeRotation unpacks the 24-bit orientation code: octahedral-folded
// axis in the low two bytes, quantized half-angle in the third.
func decodeRotation(code uint32) Quat {
	fx := float32(code&0xff)/255*2 - 1
	fy := float32(code>>8&0xff)/255*2 - 1

	// Unfold the octahedral mapping.
	az := 1 - abs32(fx) - abs32(fy)
	t := max(-az, 0)
	ax, ay := fx, fy
	if ax >= 0 {
		ax -= t
	} else {
		ax += t
	}
	if ay >= 0 {
		ay -= t
	} else {
		ay += t
	}
	axis := Vec3{ax, ay, az}.Normalize()

	theta := float32(code>>16&0xff) / 255 * math.Pi
	return QuatFromAxisAngle(axis, theta)
}

// encodeRotation packs a rotation into the 24-bit orientation code.
func encodeRotation(q Quat) uint32 {
	q = q.Normalize()
	// Flip into the w >= 0 hemisphere so the angle fits [0, pi].
	if q.W < 0 {
		q = Quat{V: q.V.Mul(-1), W: -q.W}
	}
	w := q.W
	if w > 1 {
		w = 1
	}
	theta := 2 * float32(math.Acos(float64(w)))

	axis := q.V.Normalize()
	if axis == (Vec3{}) {
		axis = Vec3{0, 0, 1}
	}

	// Fold the axis onto the octahedron.
	norm := abs32(axis[0]) + abs32(axis[1]) + abs32(axis[2])
	px := axis[0] / norm
	py := axis[1] / norm
	if axis[2] < 0 {
		px, py = (1-abs32(py))*signNonZero(px), (1-abs32(px))*signNonZero(py)
	}

	u := quantizeChannel(px, -1, 1)
	v := quantizeChannel(py, -1, 1)
	a := quantizeChannel(theta, 0, math.Pi)
	return u | v<<8 | a<<16
}

// signNonZero returns +1 for non-negative values and -1 otherwise.
func signNonZero(x float32) float32 {
	if x >= 0 {
		return 1
	}
	return -1
}

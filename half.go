package splat

import "math"

// IEEE 754 binary16 conversion. Splat centers are stored as half floats
// in the packed record, so encode and decode must agree bit-for-bit with
// the GPU's f16 handling.

// halfToFloat32 converts a half-float to float32.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := int32((h >> 10) & 0x1f)
	mant := uint32(h & 0x3ff)

	if exp == 0 {
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Denormalized
		for (mant & 0x400) == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3ff
	} else if exp == 31 {
		// Inf/NaN
		return math.Float32frombits(sign | 0x7f800000 | (mant << 13))
	}

	exp = exp + (127 - 15)
	return math.Float32frombits(sign | uint32(exp)<<23 | (mant << 13))
}

// float32ToHalf converts a float32 to half-float, rounding toward zero.
// Values beyond the half range become infinities.
func float32ToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits >> 23) & 0xff)
	mant := bits & 0x7fffff

	if exp == 0xff {
		// Inf/NaN
		if mant != 0 {
			return sign | 0x7c00 | uint16(mant>>13)
		}
		return sign | 0x7c00
	}

	exp = exp - 127 + 15

	if exp <= 0 {
		if exp < -10 {
			return sign
		}
		mant = (mant | 0x800000) >> uint32(1-exp)
		return sign | uint16(mant>>13)
	}

	if exp >= 31 {
		return sign | 0x7c00
	}

	return sign | uint16(exp)<<10 | uint16(mant>>13)
}

package splat

import (
	"math"

	"golang.org/x/image/math/f32"
)

// Vec2 is a 2-component float32 vector.
type Vec2 f32.Vec2

// Vec3 is a 3-component float32 vector.
//
// All per-splat math is single precision to match the packed splat
// encoding and the GPU kernel layouts.
type Vec3 f32.Vec3

// Vec4 is a 4-component float32 vector, used for RGBA colors and
// homogeneous clip-space positions.
type Vec4 f32.Vec4

// XY constructs a Vec2.
func XY(x, y float32) Vec2 {
	return Vec2{x, y}
}

// XYZ constructs a Vec3.
func XYZ(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

// XYZW constructs a Vec4.
func XYZW(x, y, z, w float32) Vec4 {
	return Vec4{x, y, z, w}
}

// Mul returns the vector scaled by s.
func (v Vec2) Mul(s float32) Vec2 {
	return Vec2{v[0] * s, v[1] * s}
}

// Perp returns the perpendicular vector (rotated 90 degrees
// counter-clockwise).
func (v Vec2) Perp() Vec2 {
	return Vec2{-v[1], v[0]}
}

// Dot returns the dot product of two vectors.
func (v Vec2) Dot(w Vec2) float32 {
	return v[0]*w[0] + v[1]*w[1]
}

// Len returns the length (magnitude) of the vector.
func (v Vec2) Len() float32 {
	return sqrt32(v[0]*v[0] + v[1]*v[1])
}

// Normalize returns a unit vector in the same direction.
// Returns the zero vector if v has zero length.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v[0] / l, v[1] / l}
}

// Add returns the sum of two vectors.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns the difference of two vectors.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Mul returns the vector scaled by s.
func (v Vec3) Mul(s float32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(w Vec3) float32 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Cross returns the cross product of two vectors.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Len returns the length (magnitude) of the vector.
func (v Vec3) Len() float32 {
	return sqrt32(v.Dot(v))
}

// Normalize returns a unit vector in the same direction.
// Returns the zero vector if v has zero length.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Mul(1 / l)
}

// Vec4 expands the vector to a Vec4 with the given w component.
func (v Vec3) Vec4(w float32) Vec4 {
	return Vec4{v[0], v[1], v[2], w}
}

// Vec3 truncates the vector to its first three components.
func (v Vec4) Vec3() Vec3 {
	return Vec3{v[0], v[1], v[2]}
}

// sqrt32 is a float32 square root.
func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// abs32 is a float32 absolute value.
func abs32(x float32) float32 {
	return float32(math.Abs(float64(x)))
}

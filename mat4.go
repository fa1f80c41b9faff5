package splat

import "math"

// Mat4 is a row-major 4x4 projection matrix. Element (r,c) is stored at
// index r*4+c.
type Mat4 [16]float32

// Mat4Ident returns the identity matrix.
func Mat4Ident() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Perspective returns a right-handed perspective projection with the
// given vertical field of view in radians, aspect ratio and near/far
// planes. The view volume looks down -Z; clip-space depth maps to
// [-w, w].
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := float32(1 / math.Tan(float64(fovY)*0.5))
	d := near - far
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) / d, 2 * far * near / d,
		0, 0, -1, 0,
	}
}

// Orthographic returns a right-handed orthographic projection for the
// given view volume.
func Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	return Mat4{
		2 / (right - left), 0, 0, -(right + left) / (right - left),
		0, 2 / (top - bottom), 0, -(top + bottom) / (top - bottom),
		0, 0, -2 / (far - near), -(far + near) / (far - near),
		0, 0, 0, 1,
	}
}

// MulVec4 applies the matrix to a homogeneous vector.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2] + m[3]*v[3],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2] + m[7]*v[3],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2] + m[11]*v[3],
		m[12]*v[0] + m[13]*v[1] + m[14]*v[2] + m[15]*v[3],
	}
}

// IsOrthographic reports whether the matrix has an affine last row, i.e.
// no perspective division.
func (m Mat4) IsOrthographic() bool {
	return m[12] == 0 && m[13] == 0 && m[14] == 0 && m[15] == 1
}

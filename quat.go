package splat

import "math"

// Quat is a rotation quaternion with vector part V and scalar part W.
type Quat struct {
	V Vec3
	W float32
}

// QuatIdent returns the identity quaternion.
func QuatIdent() Quat {
	return Quat{W: 1}
}

// QuatFromAxisAngle builds a quaternion from a unit axis and an angle in
// radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	sin := float32(math.Sin(float64(angle * 0.5)))
	cos := float32(math.Cos(float64(angle * 0.5)))
	return Quat{V: axis.Mul(sin), W: cos}
}

// Rotate rotates a vector by the rotation this quaternion represents.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v + 2w*(q_v x v) + 2*q_v x (q_v x v)
	cross := q.V.Cross(v)
	return v.Add(cross.Mul(2 * q.W)).Add(q.V.Mul(2).Cross(cross))
}

// Mul composes two rotations (Hamilton product). Note that composition is
// not commutative: q.Mul(p) applies p first, then q.
func (q Quat) Mul(p Quat) Quat {
	return Quat{
		V: q.V.Cross(p.V).Add(p.V.Mul(q.W)).Add(q.V.Mul(p.W)),
		W: q.W*p.W - q.V.Dot(p.V),
	}
}

// Conjugate returns the conjugate quaternion. For unit quaternions this is
// the inverse rotation.
func (q Quat) Conjugate() Quat {
	return Quat{V: q.V.Mul(-1), W: q.W}
}

// Len returns the norm of the quaternion.
func (q Quat) Len() float32 {
	return sqrt32(q.W*q.W + q.V.Dot(q.V))
}

// Normalize returns the unit quaternion in the same orientation.
// The identity is returned for a zero quaternion.
func (q Quat) Normalize() Quat {
	l := q.Len()
	if l == 0 {
		return QuatIdent()
	}
	return Quat{V: q.V.Mul(1 / l), W: q.W / l}
}

// RotationScaleMatrix returns the 3x3 rotation matrix of q with each
// column pre-scaled by the corresponding component of s. The result maps
// the unit sphere onto the ellipsoid described by (q, s).
func (q Quat) RotationScaleMatrix(s Vec3) Mat3 {
	x, y, z, w := q.V[0], q.V[1], q.V[2], q.W
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	return Mat3{
		s[0] * (1 - 2*(yy+zz)), s[1] * 2 * (xy - wz), s[2] * 2 * (xz + wy),
		s[0] * 2 * (xy + wz), s[1] * (1 - 2*(xx+zz)), s[2] * 2 * (yz - wx),
		s[0] * 2 * (xz - wy), s[1] * 2 * (yz + wx), s[2] * (1 - 2*(xx+yy)),
	}
}

// Mat3 is a row-major 3x3 matrix.
type Mat3 [9]float32

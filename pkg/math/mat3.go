package math

// Mat3 is a 3x3 matrix in column-major order.
type Mat3 [9]float32

// Mat3Identity returns the 3x3 identity.
func Mat3Identity() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// MulVec3 returns m * v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[3]*v.Y + m[6]*v.Z,
		m[1]*v.X + m[4]*v.Y + m[7]*v.Z,
		m[2]*v.X + m[5]*v.Y + m[8]*v.Z,
	}
}

// Transpose returns the transposed matrix.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Determinant returns det(m).
func (m Mat3) Determinant() float32 {
	return m[0]*(m[4]*m[8]-m[7]*m[5]) -
		m[3]*(m[1]*m[8]-m[7]*m[2]) +
		m[6]*(m[1]*m[5]-m[4]*m[2])
}

// Inverse returns the inverse of m. ok is false for a singular matrix.
func (m Mat3) Inverse() (inv Mat3, ok bool) {
	det := m.Determinant()
	if det == 0 {
		return Mat3{}, false
	}
	invDet := 1 / det

	inv[0] = (m[4]*m[8] - m[7]*m[5]) * invDet
	inv[1] = (m[7]*m[2] - m[1]*m[8]) * invDet
	inv[2] = (m[1]*m[5] - m[4]*m[2]) * invDet
	inv[3] = (m[6]*m[5] - m[3]*m[8]) * invDet
	inv[4] = (m[0]*m[8] - m[6]*m[2]) * invDet
	inv[5] = (m[3]*m[2] - m[0]*m[5]) * invDet
	inv[6] = (m[3]*m[7] - m[6]*m[4]) * invDet
	inv[7] = (m[6]*m[1] - m[0]*m[7]) * invDet
	inv[8] = (m[0]*m[4] - m[3]*m[1]) * invDet
	return inv, true
}

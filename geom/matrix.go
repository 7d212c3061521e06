// Package geom holds the small amount of 3D math the converter needs on top of mgl32.
package geom

import "github.com/go-gl/mathgl/mgl32"

// LocalMatrix returns T*R. A nil component is the identity.
func LocalMatrix(t *mgl32.Vec3, r *mgl32.Quat) mgl32.Mat4 {
	m := mgl32.Ident4()
	if t != nil {
		m = mgl32.Translate3D(t[0], t[1], t[2])
	}
	if r != nil {
		m = m.Mul4(r.Mat4())
	}
	return m
}

// AllZero reports whether every component is zero (negative zero included).
func AllZero(v mgl32.Vec3) bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

// MirrorYZ negates Y and Z, converting studiomdl axes to glTF axes.
func MirrorYZ(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{v[0], -v[1], -v[2]}
}

// RotateXNeg90 rotates by -90 degrees around X.
func RotateXNeg90(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{v[0], v[2], -v[1]}
}

// Columns splits a column-major matrix into its four columns.
func Columns(m mgl32.Mat4) [4][4]float32 {
	return [4][4]float32{
		{m[0], m[1], m[2], m[3]},
		{m[4], m[5], m[6], m[7]},
		{m[8], m[9], m[10], m[11]},
		{m[12], m[13], m[14], m[15]},
	}
}

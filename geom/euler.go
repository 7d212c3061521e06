package geom

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// EulerXYZ returns the rotation of a studiomdl bone state (radians, X then Y then Z).
// The result equals qx*qy*qz.
func EulerXYZ(v mgl32.Vec3) mgl32.Quat {
	sx, cx := math32.Sincos(v[0] / 2)
	sy, cy := math32.Sincos(v[1] / 2)
	sz, cz := math32.Sincos(v[2] / 2)
	return mgl32.Quat{
		W: cx*cy*cz - sx*sy*sz,
		V: mgl32.Vec3{sx*cy*cz + cx*sy*sz, cx*sy*cz - sx*cy*sz, cx*cy*sz + sx*sy*cz},
	}
}

package geom

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func quatNear(a, b mgl32.Quat) bool {
	return near(a.W, b.W) && near(a.V[0], b.V[0]) && near(a.V[1], b.V[1]) && near(a.V[2], b.V[2])
}

func TestEulerXYZ(t *testing.T) {
	for i, c := range []mgl32.Vec3{
		{17, -63, 115},
		{10, 20, 30},
		{-40, 60, 5},
		{0, 90, 0},
		{45, 0, -10},
	} {
		x, y, z := mgl32.DegToRad(c[0]), mgl32.DegToRad(c[1]), mgl32.DegToRad(c[2])
		want := mgl32.QuatRotate(x, mgl32.Vec3{1, 0, 0}).
			Mul(mgl32.QuatRotate(y, mgl32.Vec3{0, 1, 0})).
			Mul(mgl32.QuatRotate(z, mgl32.Vec3{0, 0, 1}))

		got := EulerXYZ(mgl32.Vec3{x, y, z})
		if !quatNear(got, want) {
			t.Errorf("%d: EulerXYZ = %v, want %v", i, got, want)
		}
		if math32.Abs(got.Len()-1) > 1e-5 {
			t.Errorf("%d: |q| = %v", i, got.Len())
		}
	}

	if ident := EulerXYZ(mgl32.Vec3{}); ident != mgl32.QuatIdent() {
		t.Error("zero angles should be identity: ", ident)
	}
}

package geom

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b float32) bool {
	return math32.Abs(a-b) < 1e-5
}

func matrixNear(a, b mgl32.Mat4) bool {
	for i := range a {
		if !near(a[i], b[i]) {
			return false
		}
	}
	return true
}

func TestLocalMatrix(t *testing.T) {
	if LocalMatrix(nil, nil) != mgl32.Ident4() {
		t.Error("nil components should give identity")
	}

	pos := mgl32.Vec3{1, 2, 3}
	rot := EulerXYZ(mgl32.Vec3{0.1, 0.2, 0.3})
	m := LocalMatrix(&pos, &rot)

	p := m.Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
	if !p.ApproxEqual(pos) {
		t.Error("origin should map to translation: ", p)
	}
	if !matrixNear(m.Mul4(m.Inv()), mgl32.Ident4()) {
		t.Error("m * inv(m) != I")
	}
}

func TestAxisHelpers(t *testing.T) {
	if !AllZero(mgl32.Vec3{0, float32(negZero()), 0}) {
		t.Error("negative zero should count as zero")
	}
	if AllZero(mgl32.Vec3{0, 0, 1e-9}) {
		t.Error("non-zero reported as zero")
	}
	if v := MirrorYZ(mgl32.Vec3{1, 2, 3}); v != (mgl32.Vec3{1, -2, -3}) {
		t.Error("MirrorYZ: ", v)
	}

	v := mgl32.Vec3{1, 2, 3}
	want := mgl32.HomogRotate3DX(mgl32.DegToRad(-90)).Mul4x1(v.Vec4(1)).Vec3()
	if got := RotateXNeg90(v); !got.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("RotateXNeg90 = %v, want %v", got, want)
	}
}

func negZero() float64 {
	z := 0.0
	return -z
}

func TestColumns(t *testing.T) {
	m := mgl32.Translate3D(4, 5, 6)
	c := Columns(m)
	if c[3] != [4]float32{4, 5, 6, 1} {
		t.Error("translation column: ", c[3])
	}
}

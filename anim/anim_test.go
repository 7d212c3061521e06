package anim

import (
	"reflect"
	"testing"

	"github.com/Waterpicker/JglTF/geom"
	"github.com/Waterpicker/JglTF/skeleton"
	"github.com/Waterpicker/JglTF/smd"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

func TestDedup(t *testing.T) {
	for i, c := range []struct {
		times  []float32
		values []string
		wantT  []float32
		wantV  []string
	}{
		{[]float32{0, 1, 2, 3}, []string{"A", "A", "A", "B"}, []float32{0, 3}, []string{"A", "B"}},
		{[]float32{0, 1, 2}, []string{"A", "B", "A"}, []float32{0, 1, 2}, []string{"A", "B", "A"}},
		{[]float32{5}, []string{"A"}, []float32{5}, []string{"A"}},
		{nil, nil, nil, nil},
	} {
		gotT, gotV := Dedup(c.times, c.values)
		if !reflect.DeepEqual(gotT, c.wantT) || !reflect.DeepEqual(gotV, c.wantV) {
			t.Errorf("%d: got %v %v, want %v %v", i, gotT, gotV, c.wantT, c.wantV)
		}
		againT, againV := Dedup(gotT, gotV)
		if !reflect.DeepEqual(againT, gotT) || !reflect.DeepEqual(againV, gotV) {
			t.Errorf("%d: not idempotent", i)
		}
	}
}

func testSkeleton(t *testing.T) *skeleton.Skeleton {
	s, err := skeleton.Build([]smd.Bone{
		{ID: 0, Parent: -1, Name: "root"},
		{ID: 1, Parent: 0, Name: "b"},
		{ID: 2, Parent: 0, Name: "a"},
	}, nil, skeleton.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBuild(t *testing.T) {
	s := testSkeleton(t)
	still := mgl32.Vec3{1, 2, 3}
	keyframes := []smd.Keyframe{
		{Time: 2, States: []smd.BoneState{{Bone: 2, Pos: still}, {Bone: 1, Pos: mgl32.Vec3{0, 0, 2}}}},
		{Time: 0, States: []smd.BoneState{{Bone: 2, Pos: still}, {Bone: 1, Rot: mgl32.Vec3{0.5, 0, 0}}}},
		{Time: 1, States: []smd.BoneState{{Bone: 2, Pos: still}}},
	}

	clip, err := Build("walk", s, keyframes, Options{FrameRate: 2})
	if err != nil {
		t.Fatal(err)
	}
	if clip.Name != "walk" || len(clip.Translations) != 2 || len(clip.Rotations) != 2 {
		t.Fatal("clip: ", clip)
	}
	// pre-order: b (bone 1) before a (bone 2)
	if clip.Translations[0].Node.Name != "b" || clip.Translations[1].Node.Name != "a" {
		t.Error("channel order: ", clip.Translations[0].Node.Name, clip.Translations[1].Node.Name)
	}

	a := clip.Translations[1]
	if !reflect.DeepEqual(a.Times, []float32{0}) || a.Values[0] != still {
		t.Error("constant channel should collapse: ", a.Times, a.Values)
	}

	b := clip.Translations[0]
	if !reflect.DeepEqual(b.Times, []float32{0, 1}) {
		t.Error("times should be frame/rate: ", b.Times)
	}
	rot := clip.Rotations[0]
	if rot.Values[0] != geom.EulerXYZ(mgl32.Vec3{0.5, 0, 0}) || rot.Values[1] != mgl32.QuatIdent() {
		t.Error("rotations are not mirrored: ", rot.Values)
	}
	if clip.Duration() != 1 {
		t.Error("duration: ", clip.Duration())
	}
	if keyframes[0].Time != 2 {
		t.Error("input keyframes were reordered")
	}
}

func TestBuildUnknownBone(t *testing.T) {
	s := testSkeleton(t)
	_, err := Build("x", s, []smd.Keyframe{{States: []smd.BoneState{{Bone: 7}}}}, Options{})
	var re *smd.ReferenceError
	if !errors.As(err, &re) || re.Bone != 7 {
		t.Error("expected ReferenceError, got ", err)
	}
}

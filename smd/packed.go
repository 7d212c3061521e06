package smd

import (
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

type packedModel struct {
	_msgpack  struct{} `msgpack:",as_array"`
	Version   int
	Bones     []packedBone
	Keyframes []packedKeyframe
	Triangles []packedTriangle
}

type packedBone struct {
	_msgpack struct{} `msgpack:",as_array"`
	ID       int
	Parent   int
	Name     string
}

type packedKeyframe struct {
	_msgpack struct{} `msgpack:",as_array"`
	Time     int
	States   []packedState
}

type packedState struct {
	_msgpack   struct{} `msgpack:",as_array"`
	Bone       int
	PX, PY, PZ float32
	RX, RY, RZ float32
}

type packedTriangle struct {
	_msgpack struct{} `msgpack:",as_array"`
	Material string
	V0       packedVertex
	V1       packedVertex
	V2       packedVertex
}

type packedVertex struct {
	_msgpack   struct{} `msgpack:",as_array"`
	Parent     int
	PX, PY, PZ float32
	NX, NY, NZ float32
	U, V       float32
	Links      []packedLink
}

type packedLink struct {
	_msgpack struct{} `msgpack:",as_array"`
	Bone     int
	Weight   float32
}

func (v *packedVertex) vertex() Vertex {
	vert := Vertex{
		ParentBone: v.Parent,
		Pos:        mgl32.Vec3{v.PX, v.PY, v.PZ},
		Normal:     mgl32.Vec3{v.NX, v.NY, v.NZ},
		UV:         mgl32.Vec2{v.U, v.V},
	}
	for _, l := range v.Links {
		vert.Links = append(vert.Links, Link{Bone: l.Bone, Weight: l.Weight})
	}
	return vert
}

func packVertex(v *Vertex) packedVertex {
	pv := packedVertex{
		Parent: v.ParentBone,
		PX:     v.Pos[0], PY: v.Pos[1], PZ: v.Pos[2],
		NX: v.Normal[0], NY: v.Normal[1], NZ: v.Normal[2],
		U: v.UV[0], V: v.UV[1],
	}
	for _, l := range v.Links {
		pv.Links = append(pv.Links, packedLink{Bone: l.Bone, Weight: l.Weight})
	}
	return pv
}

// ParsePacked decodes the MessagePack variant.
func ParsePacked(r io.Reader) (*Document, error) {
	var m packedModel
	if err := msgpack.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "packed: %v", err)
	}

	doc := &Document{Version: m.Version}
	for _, b := range m.Bones {
		doc.Bones = append(doc.Bones, Bone{ID: b.ID, Parent: b.Parent, Name: b.Name})
	}
	for _, k := range m.Keyframes {
		kf := Keyframe{Time: k.Time}
		for _, s := range k.States {
			kf.States = append(kf.States, BoneState{
				Bone: s.Bone,
				Pos:  mgl32.Vec3{s.PX, s.PY, s.PZ},
				Rot:  mgl32.Vec3{s.RX, s.RY, s.RZ},
			})
		}
		doc.Keyframes = append(doc.Keyframes, kf)
	}
	if m.Triangles != nil {
		doc.Triangles = make([]*Triangle, 0, len(m.Triangles))
	}
	for _, t := range m.Triangles {
		doc.Triangles = append(doc.Triangles, &Triangle{
			Material: t.Material,
			Verts:    [3]Vertex{t.V0.vertex(), t.V1.vertex(), t.V2.vertex()},
		})
	}
	return doc, nil
}

// WritePacked encodes doc as MessagePack.
func WritePacked(w io.Writer, doc *Document) error {
	m := packedModel{Version: doc.Version}
	for _, b := range doc.Bones {
		m.Bones = append(m.Bones, packedBone{ID: b.ID, Parent: b.Parent, Name: b.Name})
	}
	for _, kf := range doc.Keyframes {
		k := packedKeyframe{Time: kf.Time}
		for _, s := range kf.States {
			k.States = append(k.States, packedState{
				Bone: s.Bone,
				PX:   s.Pos[0], PY: s.Pos[1], PZ: s.Pos[2],
				RX: s.Rot[0], RY: s.Rot[1], RZ: s.Rot[2],
			})
		}
		m.Keyframes = append(m.Keyframes, k)
	}
	if doc.Triangles != nil {
		m.Triangles = make([]packedTriangle, 0, len(doc.Triangles))
	}
	for _, t := range doc.Triangles {
		m.Triangles = append(m.Triangles, packedTriangle{
			Material: t.Material,
			V0:       packVertex(&t.Verts[0]),
			V1:       packVertex(&t.Verts[1]),
			V2:       packVertex(&t.Verts[2]),
		})
	}
	return msgpack.NewEncoder(w).Encode(&m)
}

// Package mesh packs studiomdl triangles into indexed, skinned vertex buffers.
package mesh

import (
	"encoding/binary"
	"math"

	"github.com/Waterpicker/JglTF/geom"
	"github.com/Waterpicker/JglTF/smd"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const MaxInfluences = 4

var ErrJointRange = errors.New("mesh: joint index does not fit in a byte")

// Joints resolves a bone id to its position in the skin's joint list.
type Joints interface {
	JointOf(bone int) (int, error)
}

type Options struct {
	Scale   float32 // 0 means 1
	RotateX bool    // rotate -90 degrees about X after mirroring
}

// Group is the index list of one material.
type Group struct {
	Material string
	Indices  []uint32
}

type Mesh struct {
	Positions [][3]float32
	Normals   [][3]float32
	TexCoords [][2]float32
	Joints    [][4]uint8
	Weights   [][4]float32
	Indices   []uint32
	Groups    []*Group
}

// Bounds returns the per-axis min and max of Positions.
func (m *Mesh) Bounds() (min, max [3]float32) {
	for i, p := range m.Positions {
		for k := 0; k < 3; k++ {
			if i == 0 || p[k] < min[k] {
				min[k] = p[k]
			}
			if i == 0 || p[k] > max[k] {
				max[k] = p[k]
			}
		}
	}
	return
}

func floatBits(f float32) uint32 {
	if f == 0 {
		return 0 // -0 == 0
	}
	return math.Float32bits(f)
}

// vertexKey serialises every field compared by smd.Vertex.Equal.
func vertexKey(v *smd.Vertex) string {
	buf := make([]byte, 0, 4+4*8+4+len(v.Links)*8)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(v.ParentBone)))
	for _, f := range [...]float32{v.Pos[0], v.Pos[1], v.Pos[2], v.Normal[0], v.Normal[1], v.Normal[2], v.UV[0], v.UV[1]} {
		buf = binary.LittleEndian.AppendUint32(buf, floatBits(f))
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Links)))
	for _, l := range v.Links {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(l.Bone)))
		buf = binary.LittleEndian.AppendUint32(buf, floatBits(l.Weight))
	}
	return string(buf)
}

func (m *Mesh) addVertex(v *smd.Vertex, joints Joints, opts *Options, scale float32) error {
	pos := geom.MirrorYZ(v.Pos).Mul(scale)
	normal := geom.MirrorYZ(v.Normal)
	if opts.RotateX {
		pos = geom.RotateXNeg90(pos)
		normal = geom.RotateXNeg90(normal)
	}

	var j [4]uint8
	var w [4]float32
	for i, l := range v.Links {
		if i >= MaxInfluences {
			break
		}
		idx, err := joints.JointOf(l.Bone)
		if err != nil {
			return err
		}
		if idx > math.MaxUint8 {
			return errors.Wrapf(ErrJointRange, "bone %d is joint %d", l.Bone, idx)
		}
		j[i] = uint8(idx)
		w[i] = l.Weight
	}

	m.Positions = append(m.Positions, pos)
	m.Normals = append(m.Normals, normal)
	m.TexCoords = append(m.TexCoords, mgl32.Vec2{v.UV[0], 1 - v.UV[1]})
	m.Joints = append(m.Joints, j)
	m.Weights = append(m.Weights, w)
	return nil
}

// Pack deduplicates vertices and emits one index per triangle corner, in
// triangle order. Indices are also grouped per material, in first-use order.
func Pack(triangles []*smd.Triangle, joints Joints, opts Options) (*Mesh, error) {
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	m := &Mesh{}
	slots := map[string]uint32{}
	groups := map[string]*Group{}
	for ti, t := range triangles {
		g := groups[t.Material]
		if g == nil {
			g = &Group{Material: t.Material}
			groups[t.Material] = g
			m.Groups = append(m.Groups, g)
		}
		for i := range t.Verts {
			key := vertexKey(&t.Verts[i])
			slot, ok := slots[key]
			if !ok {
				slot = uint32(len(m.Positions))
				if err := m.addVertex(&t.Verts[i], joints, &opts, scale); err != nil {
					return nil, errors.Wrapf(err, "triangle %d", ti)
				}
				slots[key] = slot
			}
			m.Indices = append(m.Indices, slot)
			g.Indices = append(g.Indices, slot)
		}
	}
	return m, nil
}

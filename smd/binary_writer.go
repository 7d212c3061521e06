package smd

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

type binaryWriter struct {
	w   io.Writer
	err error
}

func (w *binaryWriter) write(v interface{}) {
	if w.err == nil {
		w.err = binary.Write(w.w, binary.BigEndian, v)
	}
}

func (w *binaryWriter) fail(format string, args ...interface{}) {
	if w.err == nil {
		w.err = errors.Errorf("smd: "+format, args...)
	}
}

func (w *binaryWriter) writeUint8(v uint8) { w.write(v) }

func (w *binaryWriter) writeUint16(v uint16) { w.write(v) }

func (w *binaryWriter) writeFloat(v float32) { w.write(v) }

func (w *binaryWriter) writeInt16(v int, what string) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		w.fail("%s %d does not fit in int16", what, v)
		return
	}
	w.write(int16(v))
}

func (w *binaryWriter) writeCount(n int, max int, what string) {
	if n > max {
		w.fail("too many %s: %d", what, n)
		return
	}
	if max > math.MaxUint8 {
		w.writeUint16(uint16(n))
	} else {
		w.writeUint8(uint8(n))
	}
}

func (w *binaryWriter) writeVec3(v mgl32.Vec3) {
	w.writeFloat(v[0])
	w.writeFloat(v[1])
	w.writeFloat(v[2])
}

func (w *binaryWriter) writeString(s string) {
	b, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		w.fail("string %q: %v", s, err)
		return
	}
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			w.fail("string %q contains NUL", s)
			return
		}
	}
	w.write(b)
	w.writeUint16(0)
}

func (w *binaryWriter) writeVertex(v *Vertex) {
	w.writeInt16(v.ParentBone, "parent bone")
	w.writeVec3(v.Pos)
	w.writeVec3(v.Normal)
	w.writeFloat(v.UV[0])
	w.writeFloat(v.UV[1])
	w.writeCount(len(v.Links), math.MaxUint8, "links")
	for _, l := range v.Links {
		w.writeInt16(l.Bone, "link bone")
		w.writeFloat(l.Weight)
	}
}

// Materials returns the distinct triangle materials in first-use order.
func (doc *Document) Materials() []string {
	var materials []string
	seen := map[string]bool{}
	for _, t := range doc.Triangles {
		if !seen[t.Material] {
			seen[t.Material] = true
			materials = append(materials, t.Material)
		}
	}
	return materials
}

// WriteBinary encodes doc in the big-endian binary layout. Keyframes are
// written in slice order; their Time values are not stored.
func WriteBinary(out io.Writer, doc *Document) error {
	w := &binaryWriter{w: out}
	if doc.Version < 0 || doc.Version > math.MaxUint8 {
		w.fail("version %d does not fit in a byte", doc.Version)
	}
	w.writeUint8(uint8(doc.Version))

	w.writeCount(len(doc.Bones), math.MaxUint16, "bones")
	for _, b := range doc.Bones {
		w.writeInt16(b.ID, "bone id")
		w.writeInt16(b.Parent, "bone parent")
		w.writeString(b.Name)
	}

	w.writeCount(len(doc.Keyframes), math.MaxUint16, "keyframes")
	for _, kf := range doc.Keyframes {
		w.writeCount(len(kf.States), math.MaxUint16, "states")
		for _, s := range kf.States {
			w.writeInt16(s.Bone, "state bone")
			w.writeVec3(s.Pos)
			w.writeVec3(s.Rot)
		}
	}

	materials := doc.Materials()
	w.writeCount(len(materials), math.MaxUint16, "materials")
	index := make(map[string]int, len(materials))
	for i, m := range materials {
		index[m] = i
		w.writeString(m)
	}
	if len(materials) > math.MaxUint8+1 {
		w.fail("too many materials for byte index: %d", len(materials))
	}
	w.writeCount(len(doc.Triangles), math.MaxUint16, "triangles")
	for _, t := range doc.Triangles {
		w.writeUint8(uint8(index[t.Material]))
		for i := range t.Verts {
			w.writeVertex(&t.Verts[i])
		}
	}
	return w.err
}

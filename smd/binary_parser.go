package smd

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// minimum encoded sizes, used to reject counts the remaining input cannot hold.
const (
	minBoneSize     = 2 + 2 + 2
	minFrameSize    = 2
	stateSize       = 2 + 6*4
	minMaterialSize = 2
	minVertexSize   = 2 + 8*4 + 1
	minTriangleSize = 1 + 3*minVertexSize
	linkSize        = 2 + 4
)

type binaryParser struct {
	data []byte
	pos  int
	err  error
	at   int
}

func (p *binaryParser) fail(err error) {
	if p.err == nil {
		p.err = err
		p.at = p.pos
	}
}

func (p *binaryParser) take(n int) []byte {
	if p.err != nil {
		return nil
	}
	if n > len(p.data)-p.pos {
		p.fail(ErrTruncated)
		return nil
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b
}

func (p *binaryParser) readUint8() uint8 {
	if b := p.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (p *binaryParser) readUint16() uint16 {
	if b := p.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (p *binaryParser) readInt16() int {
	return int(int16(p.readUint16()))
}

func (p *binaryParser) readFloat() float32 {
	if b := p.take(4); b != nil {
		return math.Float32frombits(binary.BigEndian.Uint32(b))
	}
	return 0
}

func (p *binaryParser) readVec3() mgl32.Vec3 {
	return mgl32.Vec3{p.readFloat(), p.readFloat(), p.readFloat()}
}

// readCount reads a count and checks that count*size bytes are still available.
func (p *binaryParser) readCount(wide bool, size int) int {
	var n int
	if wide {
		n = int(p.readUint16())
	} else {
		n = int(p.readUint8())
	}
	if p.err == nil && n*size > len(p.data)-p.pos {
		p.fail(errors.Wrapf(ErrCountOverflow, "count %d", n))
		return 0
	}
	return n
}

// readString reads UTF-16BE code units up to a zero unit.
func (p *binaryParser) readString() string {
	if p.err != nil {
		return ""
	}
	end := -1
	for i := p.pos; i+1 < len(p.data); i += 2 {
		if p.data[i] == 0 && p.data[i+1] == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		p.fail(errors.Wrap(ErrTruncated, "unterminated string"))
		return ""
	}
	raw := p.take(end - p.pos)
	p.take(2)
	s, err := utf16be.NewDecoder().Bytes(raw)
	if err != nil {
		p.fail(err)
		return ""
	}
	return string(s)
}

func (p *binaryParser) parseNodes(doc *Document) {
	n := p.readCount(true, minBoneSize)
	doc.Bones = make([]Bone, 0, n)
	for i := 0; i < n && p.err == nil; i++ {
		id := p.readInt16()
		parent := p.readInt16()
		doc.Bones = append(doc.Bones, Bone{ID: id, Parent: parent, Name: p.readString()})
	}
}

func (p *binaryParser) parseSkeleton(doc *Document) {
	frames := p.readCount(true, minFrameSize)
	doc.Keyframes = make([]Keyframe, 0, frames)
	for f := 0; f < frames && p.err == nil; f++ {
		kf := Keyframe{Time: f}
		n := p.readCount(true, stateSize)
		kf.States = make([]BoneState, 0, n)
		for i := 0; i < n && p.err == nil; i++ {
			kf.States = append(kf.States, BoneState{Bone: p.readInt16(), Pos: p.readVec3(), Rot: p.readVec3()})
		}
		doc.Keyframes = append(doc.Keyframes, kf)
	}
}

func (p *binaryParser) readVertex() Vertex {
	v := Vertex{ParentBone: p.readInt16()}
	v.Pos = p.readVec3()
	v.Normal = p.readVec3()
	v.UV = mgl32.Vec2{p.readFloat(), p.readFloat()}
	n := p.readCount(false, linkSize)
	if n > 0 {
		v.Links = make([]Link, 0, n)
	}
	for i := 0; i < n && p.err == nil; i++ {
		v.Links = append(v.Links, Link{Bone: p.readInt16(), Weight: p.readFloat()})
	}
	return v
}

func (p *binaryParser) parseTriangles(doc *Document) {
	nmat := p.readCount(true, minMaterialSize)
	materials := make([]string, 0, nmat)
	for i := 0; i < nmat && p.err == nil; i++ {
		materials = append(materials, p.readString())
	}

	n := p.readCount(true, minTriangleSize)
	doc.Triangles = make([]*Triangle, 0, n)
	for i := 0; i < n && p.err == nil; i++ {
		pos := p.pos
		m := int(p.readUint8())
		if p.err == nil && m >= len(materials) {
			p.pos = pos
			p.fail(errors.Errorf("smd: triangle %d: material index %d out of range", i, m))
			return
		}
		t := &Triangle{}
		for j := range t.Verts {
			t.Verts[j] = p.readVertex()
		}
		if p.err == nil {
			t.Material = materials[m]
			doc.Triangles = append(doc.Triangles, t)
		}
	}
}

// DecodeBinary parses the big-endian binary layout from memory.
func DecodeBinary(data []byte) (*Document, error) {
	p := &binaryParser{data: data}
	doc := &Document{Version: int(p.readUint8())}
	p.parseNodes(doc)
	p.parseSkeleton(doc)
	p.parseTriangles(doc)
	if p.err != nil {
		return nil, &DecodeError{Format: FormatBinary, Offset: int64(p.at), Err: p.err}
	}
	return doc, nil
}

// ParseBinary reads the whole stream and decodes it.
func ParseBinary(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBinary(data)
}

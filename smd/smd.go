// Package smd reads and writes studiomdl model files.
//
// Three encodings carry the same three blocks (nodes, skeleton, triangles):
// the Valve text format (.smd), a MessagePack packing of it (.smdx) and a
// compact big-endian binary layout (.bmd).
package smd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// ImplicitBoneName is the synthetic root inserted by Blender's SMD exporter.
const ImplicitBoneName = "blender_implicit"

var (
	ErrUnsupportedFormat = errors.New("smd: unsupported format")
	ErrMalformed         = errors.New("smd: malformed model")
	ErrTruncated         = errors.New("smd: unexpected end of stream")
	ErrCountOverflow     = errors.New("smd: count exceeds remaining data")
	ErrInvalidSkeleton   = errors.New("smd: invalid skeleton")
)

type Format int

const (
	FormatUnknown Format = iota
	FormatText
	FormatPacked
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatPacked:
		return "packed"
	case FormatBinary:
		return "binary"
	}
	return "unknown"
}

// FormatOf guesses the encoding from the file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".smd":
		return FormatText
	case ".smdx":
		return FormatPacked
	case ".bmd":
		return FormatBinary
	}
	return FormatUnknown
}

type Bone struct {
	ID     int
	Parent int // -1: root
	Name   string
}

type BoneState struct {
	Bone int
	Pos  mgl32.Vec3
	Rot  mgl32.Vec3 // euler XYZ, radians
}

type Keyframe struct {
	Time   int
	States []BoneState
}

type Link struct {
	Bone   int
	Weight float32
}

type Vertex struct {
	ParentBone int
	Pos        mgl32.Vec3
	Normal     mgl32.Vec3
	UV         mgl32.Vec2
	Links      []Link
}

// Equal reports structural equality, links included.
func (v *Vertex) Equal(o *Vertex) bool {
	if v.ParentBone != o.ParentBone || v.Pos != o.Pos || v.Normal != o.Normal || v.UV != o.UV || len(v.Links) != len(o.Links) {
		return false
	}
	for i := range v.Links {
		if v.Links[i] != o.Links[i] {
			return false
		}
	}
	return true
}

type Triangle struct {
	Material string
	Verts    [3]Vertex
}

// Document is a decoded model. Triangles is nil for animation-only files.
type Document struct {
	Version   int
	Bones     []Bone
	Keyframes []Keyframe
	Triangles []*Triangle
}

// ReferenceError reports a bone id that does not resolve to a bone.
type ReferenceError struct {
	Block string
	Bone  int
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("smd: %s references unknown bone %d", e.Block, e.Bone)
}

// DecodeError wraps a failure to decode one file. Offset is the byte
// position of the failure for binary input and -1 otherwise.
type DecodeError struct {
	Path   string
	Format Format
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("smd: decode %s (%v) at offset %d: %v", e.Path, e.Format, e.Offset, e.Err)
	}
	return fmt.Sprintf("smd: decode %s (%v): %v", e.Path, e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BoneByName returns the bone with the given name.
func (doc *Document) BoneByName(name string) (Bone, bool) {
	for _, b := range doc.Bones {
		if b.Name == name {
			return b, true
		}
	}
	return Bone{}, false
}

// ValidateBones checks that ids are 0..N-1 in list order and parents index the list.
func (doc *Document) ValidateBones() error {
	for i, b := range doc.Bones {
		if b.ID != i {
			return errors.Wrapf(ErrInvalidSkeleton, "bone %q has id %d at index %d", b.Name, b.ID, i)
		}
		if b.Parent < -1 || b.Parent >= len(doc.Bones) || b.Parent == i {
			return errors.Wrapf(ErrInvalidSkeleton, "bone %q has invalid parent %d", b.Name, b.Parent)
		}
	}
	return nil
}

// CheckReferences verifies that every keyframe state and vertex link names a known bone.
func (doc *Document) CheckReferences() error {
	known := make(map[int]bool, len(doc.Bones))
	for _, b := range doc.Bones {
		known[b.ID] = true
	}
	for _, kf := range doc.Keyframes {
		for _, s := range kf.States {
			if !known[s.Bone] {
				return &ReferenceError{Block: fmt.Sprintf("keyframe %d", kf.Time), Bone: s.Bone}
			}
		}
	}
	for i, t := range doc.Triangles {
		for _, v := range t.Verts {
			for _, l := range v.Links {
				if !known[l.Bone] {
					return &ReferenceError{Block: fmt.Sprintf("triangle %d", i), Bone: l.Bone}
				}
			}
		}
	}
	return nil
}

// Load decodes a model file, choosing the decoder by extension.
func Load(path string) (*Document, error) {
	format := FormatOf(path)
	if format == FormatUnknown {
		return nil, errors.Wrap(ErrUnsupportedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "smd")
	}
	defer f.Close()

	var doc *Document
	switch format {
	case FormatText:
		doc, err = NewTextParser(f).Parse()
	case FormatPacked:
		doc, err = ParsePacked(f)
	case FormatBinary:
		doc, err = ParseBinary(f)
	}
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = path
			return nil, de
		}
		return nil, &DecodeError{Path: path, Format: format, Offset: -1, Err: err}
	}

	doc, err = normalize(doc)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return doc, nil
}

// Save encodes a model file, choosing the encoder by extension.
func Save(doc *Document, path string) error {
	format := FormatOf(path)
	if format == FormatUnknown {
		return errors.Wrap(ErrUnsupportedFormat, path)
	}
	w, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "smd")
	}
	defer w.Close()

	switch format {
	case FormatText:
		err = WriteText(w, doc)
	case FormatPacked:
		err = WritePacked(w, doc)
	case FormatBinary:
		err = WriteBinary(w, doc)
	}
	if err != nil {
		return errors.Wrapf(err, "smd: encode %s", path)
	}
	return w.Close()
}

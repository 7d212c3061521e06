package smd

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// TextParser reads the Valve studiomdl text format.
type TextParser struct {
	s    *bufio.Scanner
	line int
	err  error
}

func NewTextParser(r io.Reader) *TextParser {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &TextParser{s: s}
}

func (p *TextParser) errorf(f string, a ...interface{}) error {
	if p.err == nil {
		p.err = errors.Wrapf(ErrMalformed, "line %d: "+f, append([]interface{}{p.line}, a...)...)
	}
	return p.err
}

// tokenize splits on whitespace; double quotes group a token.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	quoted, inToken := false, false
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
			inToken = true
		case !quoted && (c == ' ' || c == '\t' || c == '\r'):
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(c)
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// stripComment cuts a // comment. The marker must start the line or follow
// whitespace, and must not be inside quotes, so names and material paths
// containing // survive.
func stripComment(line string) string {
	quoted := false
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '"':
			quoted = !quoted
		case quoted || !strings.HasPrefix(line[i:], "//"):
		case i == 0 || line[i-1] == ' ' || line[i-1] == '\t':
			return line[:i]
		}
	}
	return line
}

// nextLine returns the next non-blank line outside comments, trimmed.
func (p *TextParser) nextLine() (string, bool) {
	for p.err == nil && p.s.Scan() {
		p.line++
		line := p.s.Text()
		line = strings.TrimSpace(stripComment(line))
		if line != "" {
			return line, true
		}
	}
	if err := p.s.Err(); err != nil && p.err == nil {
		p.err = err
	}
	return "", false
}

func (p *TextParser) next() []string {
	line, ok := p.nextLine()
	if !ok {
		return nil
	}
	return tokenize(line)
}

func (p *TextParser) parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		p.errorf("bad integer %q", s)
	}
	return v
}

func (p *TextParser) parseFloats(fields []string, out []float32) {
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			p.errorf("bad number %q", s)
			return
		}
		out[i] = float32(v)
	}
}

func (p *TextParser) parseNodes(doc *Document) {
	for p.err == nil {
		f := p.next()
		if f == nil {
			p.errorf("unterminated nodes block")
			return
		}
		if f[0] == "end" {
			return
		}
		if len(f) < 3 {
			p.errorf("node needs id, name and parent")
			return
		}
		doc.Bones = append(doc.Bones, Bone{ID: p.parseInt(f[0]), Name: f[1], Parent: p.parseInt(f[2])})
	}
}

func (p *TextParser) parseSkeleton(doc *Document) {
	var kf *Keyframe
	for p.err == nil {
		f := p.next()
		if f == nil {
			p.errorf("unterminated skeleton block")
			return
		}
		switch {
		case f[0] == "end":
			return
		case f[0] == "time":
			if len(f) < 2 {
				p.errorf("time without frame number")
				return
			}
			doc.Keyframes = append(doc.Keyframes, Keyframe{Time: p.parseInt(f[1])})
			kf = &doc.Keyframes[len(doc.Keyframes)-1]
		case kf == nil:
			p.errorf("bone state before time")
			return
		case len(f) < 7:
			p.errorf("bone state needs 7 fields, got %d", len(f))
			return
		default:
			var v [6]float32
			p.parseFloats(f[1:7], v[:])
			kf.States = append(kf.States, BoneState{
				Bone: p.parseInt(f[0]),
				Pos:  mgl32.Vec3{v[0], v[1], v[2]},
				Rot:  mgl32.Vec3{v[3], v[4], v[5]},
			})
		}
	}
}

func (p *TextParser) parseVertex(f []string) Vertex {
	if len(f) < 9 {
		p.errorf("vertex needs 9 fields, got %d", len(f))
		return Vertex{}
	}
	var v [8]float32
	p.parseFloats(f[1:9], v[:])
	vert := Vertex{
		ParentBone: p.parseInt(f[0]),
		Pos:        mgl32.Vec3{v[0], v[1], v[2]},
		Normal:     mgl32.Vec3{v[3], v[4], v[5]},
		UV:         mgl32.Vec2{v[6], v[7]},
	}
	if len(f) == 9 {
		return vert
	}
	n := p.parseInt(f[9])
	if n < 0 || len(f) != 10+2*n {
		p.errorf("vertex declares %d links but has %d fields", n, len(f))
		return vert
	}
	for i := 0; i < n; i++ {
		var w [1]float32
		p.parseFloats(f[11+2*i:12+2*i], w[:])
		vert.Links = append(vert.Links, Link{Bone: p.parseInt(f[10+2*i]), Weight: w[0]})
	}
	return vert
}

func (p *TextParser) parseTriangles(doc *Document) {
	doc.Triangles = []*Triangle{}
	for p.err == nil {
		material, ok := p.nextLine()
		if !ok {
			p.errorf("unterminated triangles block")
			return
		}
		if material == "end" {
			return
		}
		t := &Triangle{Material: material}
		for i := range t.Verts {
			f := p.next()
			if f == nil {
				p.errorf("triangle has fewer than 3 vertices")
				return
			}
			t.Verts[i] = p.parseVertex(f)
		}
		doc.Triangles = append(doc.Triangles, t)
	}
}

func (p *TextParser) skipBlock(name string) {
	for p.err == nil {
		f := p.next()
		if f == nil {
			p.errorf("unterminated %s block", name)
			return
		}
		if f[0] == "end" {
			return
		}
	}
}

func (p *TextParser) Parse() (*Document, error) {
	doc := &Document{}
	seenVersion := false
	for p.err == nil {
		f := p.next()
		if f == nil {
			break
		}
		switch f[0] {
		case "version":
			if len(f) < 2 {
				p.errorf("version without number")
				break
			}
			doc.Version = p.parseInt(f[1])
			seenVersion = true
		case "nodes":
			p.parseNodes(doc)
		case "skeleton":
			p.parseSkeleton(doc)
		case "triangles":
			p.parseTriangles(doc)
		default:
			p.skipBlock(f[0])
		}
	}
	if p.err == nil && !seenVersion {
		p.errorf("missing version")
	}
	if p.err != nil {
		return nil, p.err
	}
	return doc, nil
}

// Package manifest reads .pqc/.qc model manifests and loads the files they name.
package manifest

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Waterpicker/JglTF/smd"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrNoBody = errors.New("manifest: no $body model")

// DirectiveError reports an unusable manifest line.
type DirectiveError struct {
	Path      string
	Line      int
	Directive string
	Reason    string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("manifest: %s:%d: %s: %s", e.Path, e.Line, e.Directive, e.Reason)
}

// Loader decodes one model file.
type Loader func(path string) (*smd.Document, error)

type Animation struct {
	Name string
	Path string
	Doc  *smd.Document
}

type Resources struct {
	Manifest   string
	BodyPath   string
	Body       *smd.Document
	Animations []*Animation
	Scale      *float64 // nil: no override
}

// Extensions lists manifest file extensions.
var Extensions = []string{".pqc", ".qc"}

func IsManifest(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

type Resolver struct {
	Load Loader
	Log  *zap.Logger
}

func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{Load: smd.Load, Log: log}
}

// IsSoft reports whether a load error only makes the model absent.
func IsSoft(err error) bool {
	return errors.Is(err, smd.ErrMalformed) || errors.Is(err, smd.ErrUnsupportedFormat) || errors.Is(err, os.ErrNotExist)
}

func (r *Resolver) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Resolver) load(path string) (*smd.Document, error) {
	load := r.Load
	if load == nil {
		load = smd.Load
	}
	doc, err := load(path)
	if err != nil {
		if IsSoft(err) {
			r.logger().Warn("model skipped", zap.String("file", path), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

// Resolve parses the manifest and loads the body and animations it names.
// Paths are relative to the manifest's directory.
func (r *Resolver) Resolve(path string) (*Resources, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "manifest")
	}
	defer f.Close()

	dir := filepath.Dir(path)
	res := &Resources{Manifest: path}
	animIndex := map[string]int{}
	directive := func(line int, name string, reason string) error {
		return &DirectiveError{Path: path, Line: line, Directive: name, Reason: reason}
	}

	s := bufio.NewScanner(f)
	for line := 1; s.Scan(); line++ {
		parts := strings.Fields(strings.ReplaceAll(s.Text(), "\t", ""))
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "$body":
			if len(parts) < 2 {
				return nil, directive(line, parts[0], "missing path")
			}
			p := filepath.Join(dir, unquote(parts[1]))
			doc, err := r.load(p)
			if err != nil {
				return nil, errors.Wrapf(err, "manifest %s", path)
			}
			res.Body, res.BodyPath = doc, p
		case "$anim":
			if len(parts) < 3 {
				return nil, directive(line, parts[0], "needs a name and a path")
			}
			name, p := unquote(parts[1]), filepath.Join(dir, unquote(parts[2]))
			doc, err := r.load(p)
			if err != nil {
				return nil, errors.Wrapf(err, "manifest %s", path)
			}
			if doc == nil {
				continue
			}
			a := &Animation{Name: name, Path: p, Doc: doc}
			if i, ok := animIndex[name]; ok {
				res.Animations[i] = a
			} else {
				animIndex[name] = len(res.Animations)
				res.Animations = append(res.Animations, a)
			}
		case "$scale":
			if len(parts) < 2 {
				return nil, directive(line, parts[0], "missing value")
			}
			v, err := strconv.ParseFloat(unquote(parts[1]), 64)
			if err != nil {
				return nil, directive(line, parts[0], err.Error())
			}
			if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
				r.logger().Warn("ignoring $scale", zap.String("file", path), zap.Int("line", line), zap.Float64("scale", v))
				continue
			}
			res.Scale = &v
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "manifest")
	}
	if res.Body == nil {
		return nil, errors.Wrap(ErrNoBody, path)
	}
	return res, nil
}

// ResolveModel treats a single model file as a manifest with only a $body.
func (r *Resolver) ResolveModel(path string) (*Resources, error) {
	doc, err := r.load(path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.Wrap(ErrNoBody, path)
	}
	return &Resources{Manifest: path, BodyPath: path, Body: doc}, nil
}

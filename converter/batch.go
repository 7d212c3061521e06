package converter

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Waterpicker/JglTF/gltfutil"
	"github.com/Waterpicker/JglTF/manifest"
	"github.com/Waterpicker/JglTF/smd"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrSkipped marks inputs that were not converted but did not fail.
var ErrSkipped = errors.New("converter: skipped")

type Result struct {
	Name    string
	Input   string
	Output  string
	Success bool
	Skipped bool
	Error   error
}

type Batch struct {
	Options   SMDToGLTFOption
	OutputDir string // "": next to the input
	OutputExt string // ".glb" (default) or ".gltf"
	Log       *zap.Logger

	resolver *manifest.Resolver
}

func NewBatch(options SMDToGLTFOption, log *zap.Logger) *Batch {
	if log == nil {
		log = zap.NewNop()
	}
	return &Batch{Options: options, OutputExt: ".glb", Log: log}
}

func (b *Batch) logger() *zap.Logger {
	if b.Log == nil {
		return zap.NewNop()
	}
	return b.Log
}

func (b *Batch) getResolver() *manifest.Resolver {
	if b.resolver == nil {
		b.resolver = manifest.NewResolver(b.logger())
	}
	return b.resolver
}

// isSkip reports errors that only mean "nothing to convert here".
func isSkip(err error) bool {
	var de *manifest.DirectiveError
	return errors.Is(err, ErrSkipped) ||
		errors.Is(err, manifest.ErrNoBody) ||
		errors.Is(err, smd.ErrUnsupportedFormat) ||
		errors.As(err, &de) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission)
}

// OutputPath names the output after the input's stem.
func (b *Batch) OutputPath(input string) string {
	ext := b.OutputExt
	if ext == "" {
		ext = ".glb"
	}
	dir := b.OutputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, stem+ext)
}

func (b *Batch) resolve(input string) (*manifest.Resources, error) {
	if manifest.IsManifest(input) {
		return b.getResolver().Resolve(input)
	}
	if smd.FormatOf(input) != smd.FormatUnknown {
		return b.getResolver().ResolveModel(input)
	}
	return nil, errors.Wrapf(ErrSkipped, "%s: not a manifest or model", input)
}

// ConvertFile converts one manifest or model file and writes the result.
func (b *Batch) ConvertFile(input string) Result {
	return b.ConvertTo(input, b.OutputPath(input))
}

// ConvertTo is ConvertFile with an explicit output path.
func (b *Batch) ConvertTo(input, output string) Result {
	result := Result{Name: filepath.Base(input), Input: input, Output: output}
	err := func() error {
		res, err := b.resolve(input)
		if err != nil {
			return err
		}
		opts := b.Options
		opts.Log = b.logger().With(zap.String("file", input))
		doc, err := NewSMDToGLTFConverter(&opts).Convert(res, filepath.Dir(res.BodyPath))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(result.Output), 0755); err != nil {
			return err
		}
		return gltfutil.Save(doc, result.Output)
	}()
	if err != nil {
		result.Error = err
		result.Skipped = isSkip(err)
		return result
	}
	result.Success = true
	return result
}

// Collect expands directories into the manifests below them. Files are kept as given.
func Collect(inputs []string) ([]string, error) {
	var files []string
	for _, in := range inputs {
		st, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			files = append(files, in)
			continue
		}
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && manifest.IsManifest(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// Run converts each input in turn. A failed input does not stop the batch.
func (b *Batch) Run(ctx context.Context, inputs []string) ([]Result, error) {
	log := b.logger().With(zap.String("run", uuid.New().String()))
	files, err := Collect(inputs)
	if err != nil {
		return nil, err
	}
	log.Info("batch started", zap.Int("files", len(files)))
	start := time.Now()

	var results []Result
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r := b.ConvertFile(f)
		switch {
		case r.Success:
			log.Info("converted", zap.String("file", f), zap.String("output", r.Output))
		case r.Skipped:
			log.Warn("skipped", zap.String("file", f), zap.String("reason", r.Error.Error()))
		default:
			log.Error("failed", zap.String("file", f), zap.String("reason", r.Error.Error()))
		}
		results = append(results, r)
	}
	log.Info("batch finished",
		zap.Int("files", len(results)),
		zap.Int("failed", Failed(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

// Failed counts results that are neither successful nor skipped.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success && !r.Skipped {
			n++
		}
	}
	return n
}

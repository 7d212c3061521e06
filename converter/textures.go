package converter

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/blezek/tga"
	ftga "github.com/ftrvxmtrx/tga"
	"github.com/oov/psd"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const webpExt = "EXT_texture_webp"

// ErrUnsupportedImage is returned for texture files with an unknown extension.
var ErrUnsupportedImage = errors.New("converter: unsupported image format")

// ErrCancelled is returned by a Selector when the user dismisses the prompt.
var ErrCancelled = errors.New("converter: selection cancelled")

// Selector asks the user for paths. Implementations live with the UI.
type Selector interface {
	SelectDirectory() (string, error)
	SelectFile(context string) (string, error)
}

type TextureOption struct {
	Format        string  // "png" (default) or "webp"
	Scale         float32 // 0: 1
	MaxResolution int     // 0: unlimited
	ReCompress    bool
	Interactive   bool // ask the Selector when no file matches
}

// TextureExtensions are tried, in order, with the material's stem.
var TextureExtensions = []string{".png", ".tga", ".bmp", ".jpg", ".psd"}

// TextureSource finds the image file for a material.
type TextureSource struct {
	Dir         string
	Selector    Selector
	Interactive bool
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// Find returns the texture path for material, or "" when none is found.
func (s *TextureSource) Find(material string) (string, error) {
	if material == "" {
		return "", nil
	}
	if p := filepath.Join(s.Dir, material); exists(p) {
		return p, nil
	}
	stem := strings.TrimSuffix(material, filepath.Ext(material))
	for _, ext := range TextureExtensions {
		if p := filepath.Join(s.Dir, stem+ext); exists(p) {
			return p, nil
		}
	}
	if s.Interactive && s.Selector != nil {
		p, err := s.Selector.SelectFile("Texture for material " + material)
		if errors.Is(err, ErrCancelled) {
			return "", nil
		}
		return p, err
	}
	return "", nil
}

type textureCache struct {
	textures map[string]*textureInfo
}

type textureInfo struct {
	path string
	id   *uint32
	img  image.Image
	err  error
}

func newTextureCache() *textureCache {
	return &textureCache{textures: map[string]*textureInfo{}}
}

func (c *textureCache) get(path string) *textureInfo {
	if t, ok := c.textures[path]; ok {
		return t
	}
	t := &textureInfo{path: path}
	c.textures[path] = t
	return t
}

func decodeTGA(r io.ReadSeeker) (image.Image, error) {
	img, err := tga.Decode(r)
	if err == nil {
		return img, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return ftga.Decode(r)
}

func decodePSD(r io.ReadSeeker) (image.Image, error) {
	doc, _, err := psd.Decode(r, nil)
	if err != nil {
		return nil, err
	}
	return doc.Picker, nil
}

// imageDecoders picks the decoder by extension. The tga package registers
// itself for every input, so image.Decode cannot be used to sniff formats.
var imageDecoders = map[string]func(io.ReadSeeker) (image.Image, error){
	".png":  func(r io.ReadSeeker) (image.Image, error) { return png.Decode(r) },
	".jpg":  func(r io.ReadSeeker) (image.Image, error) { return jpeg.Decode(r) },
	".jpeg": func(r io.ReadSeeker) (image.Image, error) { return jpeg.Decode(r) },
	".gif":  func(r io.ReadSeeker) (image.Image, error) { return gif.Decode(r) },
	".bmp":  func(r io.ReadSeeker) (image.Image, error) { return bmp.Decode(r) },
	".webp": func(r io.ReadSeeker) (image.Image, error) { return webp.Decode(r) },
	".tga":  decodeTGA,
	".psd":  decodePSD,
}

func (c *textureCache) getImage(path string) (image.Image, error) {
	t := c.get(path)
	if t.img != nil || t.err != nil {
		return t.img, t.err
	}

	decode, ok := imageDecoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		t.err = errors.Wrap(ErrUnsupportedImage, path)
		return nil, t.err
	}
	f, err := os.Open(path)
	if err != nil {
		t.err = err
		return nil, err
	}
	defer f.Close()

	t.img, t.err = decode(f)
	return t.img, t.err
}

func (c *textureCache) hasAlpha(path string) bool {
	img, err := c.getImage(path)
	if err != nil {
		return false
	}
	switch img := img.(type) {
	case *image.RGBA:
		return !img.Opaque()
	case *image.NRGBA:
		return !img.Opaque()
	}
	return false
}

func scaleTexture(img image.Image, scale float32, limit int) image.Image {
	rect := img.Bounds()
	if limit > 0 {
		sz := int(float32(rect.Dx()) * scale)
		if sz > limit {
			scale *= float32(limit) / float32(sz)
		}
	}
	if scale == 1.0 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float32(rect.Dx())*scale), int(float32(rect.Dy())*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
	return dst
}

func encodeImage(img image.Image, mimeType string) (io.Reader, error) {
	w := new(bytes.Buffer)
	var err error
	switch mimeType {
	case "image/webp":
		err = nativewebp.Encode(w, img, nil)
	case "image/jpeg":
		err = jpeg.Encode(w, img, nil)
	default:
		err = png.Encode(w, img)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// addTexture embeds the image at path and returns its texture index.
func (c *smdToGltf) addTexture(path string) (*uint32, error) {
	t := c.textures.get(path)
	if t.id != nil {
		return t.id, nil
	}
	opt := &c.TextureOptions
	ext := strings.ToLower(filepath.Ext(path))

	encode := opt.ReCompress || opt.Scale != 1 || opt.MaxResolution > 0
	var mimeType string
	switch {
	case opt.Format == "webp":
		mimeType = "image/webp"
		encode = true
	case ext == ".jpg" || ext == ".jpeg":
		mimeType = "image/jpeg"
	case ext == ".png":
		mimeType = "image/png"
	default:
		mimeType = "image/png"
		encode = true
	}

	var r io.Reader
	if encode {
		img, err := c.textures.getImage(path)
		if err != nil {
			return nil, err
		}
		r, err = encodeImage(scaleTexture(img, opt.Scale, opt.MaxResolution), mimeType)
		if err != nil {
			return nil, err
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	img, err := modeler.WriteImage(c.Document, filepath.Base(path), mimeType, r)
	if err != nil {
		return nil, err
	}
	c.Buffers[0].ByteLength = uint32(len(c.Buffers[0].Data))

	tex := &gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(img)}
	if mimeType == "image/webp" {
		tex.Source = nil
		tex.Extensions = gltf.Extensions{webpExt: map[string]interface{}{"source": img}}
		c.useExtension(webpExt, true)
	}
	c.Document.Textures = append(c.Document.Textures, tex)
	t.id = gltf.Index(uint32(len(c.Document.Textures)) - 1)
	return t.id, nil
}

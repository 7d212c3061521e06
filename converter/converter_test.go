package converter

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Waterpicker/JglTF/gltfutil"
	"github.com/Waterpicker/JglTF/smd"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"golang.org/x/image/bmp"
)

func matrixNear(a, b mgl32.Mat4) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > 1e-5 {
			return false
		}
	}
	return true
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func saveModel(t *testing.T, doc *smd.Document, path string) {
	t.Helper()
	if err := smd.Save(doc, path); err != nil {
		t.Fatal(err)
	}
}

func writePNG(t *testing.T, path string, alpha uint8) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: alpha})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestConvertSingleBone(t *testing.T) {
	dir := t.TempDir()
	v := smd.Vertex{ParentBone: 0, Pos: mgl32.Vec3{1, 2, 3}, Normal: mgl32.Vec3{0, 0, 1}, UV: mgl32.Vec2{0, 1}}
	saveModel(t, &smd.Document{
		Version:   1,
		Bones:     []smd.Bone{{ID: 0, Parent: -1, Name: "root"}},
		Keyframes: []smd.Keyframe{{Time: 0, States: []smd.BoneState{{Bone: 0}}}},
		Triangles: []*smd.Triangle{{Material: "none", Verts: [3]smd.Vertex{v, v, v}}},
	}, filepath.Join(dir, "a.smd"))
	manifestPath := filepath.Join(dir, "single.pqc")
	writeFile(t, manifestPath, "$body a.smd\n")

	b := NewBatch(SMDToGLTFOption{}, nil)
	r := b.ConvertFile(manifestPath)
	if !r.Success {
		t.Fatal(r.Error)
	}
	if filepath.Base(r.Output) != "single.glb" {
		t.Error("output: ", r.Output)
	}

	doc, err := gltfutil.Load(r.Output)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Skins) != 0 {
		t.Error("no joints should mean no skin")
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].Mesh == nil || doc.Nodes[0].Translation != [3]float32{} {
		t.Fatal("nodes: ", doc.Nodes)
	}
	prim := doc.Meshes[0].Primitives[0]
	if doc.Accessors[prim.Attributes["POSITION"]].Count != 1 {
		t.Error("degenerate triangle should pack to one vertex")
	}
	if _, ok := prim.Attributes["JOINTS_0"]; ok {
		t.Error("unskinned mesh should not carry joints")
	}
	if doc.Accessors[*prim.Indices].Count != 3 {
		t.Error("indices: ", doc.Accessors[*prim.Indices].Count)
	}
}

func skinnedModel() *smd.Document {
	link := func(bone int) []smd.Link { return []smd.Link{{Bone: bone, Weight: 1}} }
	v := func(x float32, bone int) smd.Vertex {
		return smd.Vertex{ParentBone: bone, Pos: mgl32.Vec3{x, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{x, 0}, Links: link(bone)}
	}
	return &smd.Document{
		Version: 1,
		Bones: []smd.Bone{
			{ID: 0, Parent: -1, Name: smd.ImplicitBoneName},
			{ID: 1, Parent: 0, Name: "root"},
			{ID: 2, Parent: 1, Name: "hip"},
			{ID: 3, Parent: 2, Name: "leg"},
		},
		Keyframes: []smd.Keyframe{{Time: 0, States: []smd.BoneState{
			{Bone: 0, Pos: mgl32.Vec3{9, 9, 9}},
			{Bone: 2, Pos: mgl32.Vec3{0, 0, 1}},
			{Bone: 3, Pos: mgl32.Vec3{0, 1, 0}, Rot: mgl32.Vec3{0.3, 0, 0}},
		}}},
		Triangles: []*smd.Triangle{
			{Material: "skin.bmp", Verts: [3]smd.Vertex{v(0, 2), v(1, 3), v(2, 3)}},
		},
	}
}

func TestConvertSkinned(t *testing.T) {
	dir := t.TempDir()
	saveModel(t, skinnedModel(), filepath.Join(dir, "body.bmd"))
	saveModel(t, &smd.Document{
		Version: 1,
		Bones:   skinnedModel().Bones,
		Keyframes: []smd.Keyframe{
			{Time: 0, States: []smd.BoneState{{Bone: 3, Pos: mgl32.Vec3{0, 1, 0}}, {Bone: 0}}},
			{Time: 1, States: []smd.BoneState{{Bone: 3, Pos: mgl32.Vec3{0, 1, 0}}}},
			{Time: 2, States: []smd.BoneState{{Bone: 3, Pos: mgl32.Vec3{0, 2, 0}}}},
		},
	}, filepath.Join(dir, "walk.smdx"))
	writePNG(t, filepath.Join(dir, "skin.png"), 128)
	manifestPath := filepath.Join(dir, "hero.qc")
	writeFile(t, manifestPath, "$body body.bmd\n$anim walk walk.smdx\n$anim gone missing.smd\n$scale 2\n")

	b := NewBatch(SMDToGLTFOption{}, nil)
	b.OutputExt = ".gltf"
	r := b.ConvertFile(manifestPath)
	if !r.Success {
		t.Fatal(r.Error)
	}
	doc, err := gltfutil.Load(r.Output)
	if err != nil {
		t.Fatal(err)
	}

	if len(doc.Nodes) != 3 || doc.Nodes[0].Name != "root" {
		t.Fatal("implicit bone should be gone: ", doc.Nodes)
	}
	if doc.Nodes[1].Translation != [3]float32{0, 0, -2} {
		t.Error("hip translation should be mirrored and scaled: ", doc.Nodes[1].Translation)
	}
	if len(doc.Skins) != 1 || len(doc.Skins[0].Joints) != 2 || *doc.Skins[0].Skeleton != 0 {
		t.Fatal("skin: ", doc.Skins)
	}
	ibm, err := gltfutil.ReadMatrices(doc, *doc.Skins[0].InverseBindMatrices)
	if err != nil {
		t.Fatal(err)
	}
	if !matrixNear(ibm[0], mgl32.Translate3D(0, 0, 2)) {
		t.Error("hip IBM: ", ibm[0])
	}
	if *doc.Nodes[0].Skin != 0 || *doc.Nodes[0].Mesh != 0 {
		t.Error("root should carry mesh and skin")
	}

	prim := doc.Meshes[0].Primitives[0]
	if _, ok := prim.Attributes["JOINTS_0"]; !ok {
		t.Error("skinned mesh should carry joints")
	}
	mat := doc.Materials[*prim.Material]
	if mat.Name != "skin.bmp" || mat.PBRMetallicRoughness.BaseColorTexture == nil || mat.AlphaMode != gltf.AlphaBlend {
		t.Error("material: ", mat)
	}
	if len(doc.Images) != 1 || doc.Images[0].MimeType != "image/png" {
		t.Error("images: ", doc.Images)
	}

	if len(doc.Animations) != 1 || doc.Animations[0].Name != "walk" {
		t.Fatal("animations: ", doc.Animations)
	}
	a := doc.Animations[0]
	if len(a.Channels) != 2 {
		t.Fatal("channels: ", len(a.Channels))
	}
	for _, ch := range a.Channels {
		if *ch.Target.Node != 2 {
			t.Error("channel should target leg: ", *ch.Target.Node)
		}
	}
	in := doc.Accessors[*a.Samplers[0].Input]
	if in.Count != 2 || in.Max[0] != 2 {
		t.Error("translation times should be deduplicated: ", in.Count, in.Max)
	}
}

func TestConvertWebp(t *testing.T) {
	dir := t.TempDir()
	saveModel(t, skinnedModel(), filepath.Join(dir, "body.smd"))
	writePNG(t, filepath.Join(dir, "skin.png"), 255)

	opts := SMDToGLTFOption{ForceUnlit: true}
	opts.TextureOptions.Format = "webp"
	b := NewBatch(opts, nil)
	r := b.ConvertFile(filepath.Join(dir, "body.smd"))
	if !r.Success {
		t.Fatal(r.Error)
	}
	doc, err := gltfutil.Load(r.Output)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Images) != 1 || doc.Images[0].MimeType != "image/webp" {
		t.Error("images: ", doc.Images)
	}
	found := map[string]bool{}
	for _, e := range doc.ExtensionsUsed {
		found[e] = true
	}
	if !found[webpExt] || !found[unlitMaterialExt] {
		t.Error("extensions used: ", doc.ExtensionsUsed)
	}
}

func TestConvertSkeletonOnly(t *testing.T) {
	dir := t.TempDir()
	model := skinnedModel()
	model.Triangles = nil
	saveModel(t, model, filepath.Join(dir, "rig.smd"))

	r := NewBatch(SMDToGLTFOption{}, nil).ConvertFile(filepath.Join(dir, "rig.smd"))
	if !r.Success {
		t.Fatal(r.Error)
	}
	doc, err := gltfutil.Load(r.Output)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Nodes) != 3 {
		t.Fatal("nodes: ", len(doc.Nodes))
	}
	for i, n := range doc.Nodes {
		if n.Skin != nil && n.Mesh == nil {
			t.Errorf("node %d has a skin but no mesh", i)
		}
	}
	if len(doc.Skins) != 0 || len(doc.Meshes) != 0 {
		t.Error("skeleton-only model should have no skin and no mesh: ", len(doc.Skins), len(doc.Meshes))
	}
}

func TestTextureDecode(t *testing.T) {
	dir := t.TempDir()
	translucent := filepath.Join(dir, "glass.png")
	writePNG(t, translucent, 128)
	opaque := filepath.Join(dir, "wood.png")
	writePNG(t, opaque, 255)

	bmpPath := filepath.Join(dir, "stone.bmp")
	f, err := os.Create(bmpPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 3))); err != nil {
		t.Fatal(err)
	}
	f.Close()
	writeFile(t, filepath.Join(dir, "notes.xyz"), "not an image")

	cache := newTextureCache()
	if !cache.hasAlpha(translucent) {
		t.Error("translucent png should have alpha")
	}
	if cache.hasAlpha(opaque) {
		t.Error("opaque png should not have alpha")
	}
	img, err := cache.getImage(bmpPath)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 3 {
		t.Error("bmp bounds: ", img.Bounds())
	}
	if _, err := cache.getImage(filepath.Join(dir, "notes.xyz")); !errors.Is(err, ErrUnsupportedImage) {
		t.Error("unknown extension: ", err)
	}

	c := NewSMDToGLTFConverter(&SMDToGLTFOption{TextureOptions: TextureOption{Scale: 0.5}})
	if _, err := c.addTexture(translucent); err != nil {
		t.Fatal(err)
	}
	if len(c.Document.Images) != 1 || c.Document.Images[0].MimeType != "image/png" {
		t.Error("images: ", c.Document.Images)
	}
}

type fakeSelector struct {
	file  string
	asked []string
}

func (s *fakeSelector) SelectDirectory() (string, error) { return "", ErrCancelled }

func (s *fakeSelector) SelectFile(context string) (string, error) {
	s.asked = append(s.asked, context)
	if s.file == "" {
		return "", ErrCancelled
	}
	return s.file, nil
}

func TestTextureSource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "wood.png"), 255)
	writePNG(t, filepath.Join(dir, "picked.png"), 255)

	sel := &fakeSelector{}
	src := &TextureSource{Dir: dir, Selector: sel}
	if p, _ := src.Find("wood.bmp"); filepath.Base(p) != "wood.png" {
		t.Error("stem match: ", p)
	}
	if p, _ := src.Find("metal.bmp"); p != "" || len(sel.asked) != 0 {
		t.Error("non-interactive source should not ask: ", p)
	}

	src.Interactive = true
	if p, err := src.Find("metal.bmp"); p != "" || err != nil {
		t.Error("cancelled selection should leave no texture: ", p, err)
	}
	sel.file = filepath.Join(dir, "picked.png")
	if p, _ := src.Find("metal.bmp"); p != sel.file {
		t.Error("selected: ", p)
	}
}

func TestBatchRun(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	os.Mkdir(sub, 0755)
	saveModel(t, skinnedModel(), filepath.Join(sub, "body.smd"))
	writeFile(t, filepath.Join(sub, "good.pqc"), "$body body.smd\n")
	writeFile(t, filepath.Join(dir, "nobody.pqc"), "$scale 1\n")
	writeFile(t, filepath.Join(dir, "broken.bmd"), "\x01\x00")
	writeFile(t, filepath.Join(dir, "broken.pqc"), "$body broken.bmd\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")

	out := t.TempDir()
	b := NewBatch(SMDToGLTFOption{}, nil)
	b.OutputDir = out
	results, err := b.Run(context.Background(), []string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatal("results: ", results)
	}
	status := map[string]string{}
	for _, r := range results {
		switch {
		case r.Success:
			status[r.Name] = "ok"
		case r.Skipped:
			status[r.Name] = "skip"
		default:
			status[r.Name] = "fail"
		}
	}
	if status["good.pqc"] != "ok" || status["nobody.pqc"] != "skip" || status["broken.pqc"] != "fail" {
		t.Error("status: ", status)
	}
	if Failed(results) != 1 {
		t.Error("failed: ", Failed(results))
	}
	if _, err := os.Stat(filepath.Join(out, "good.glb")); err != nil {
		t.Error(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Run(ctx, []string{dir}); err == nil {
		t.Error("cancelled run should report the context error")
	}
}

package converter

import (
	"github.com/Waterpicker/JglTF/anim"
	"github.com/Waterpicker/JglTF/gltfutil"
	"github.com/Waterpicker/JglTF/manifest"
	"github.com/Waterpicker/JglTF/mesh"
	"github.com/Waterpicker/JglTF/skeleton"
	"github.com/Waterpicker/JglTF/smd"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const unlitMaterialExt = "KHR_materials_unlit"

// KeepImplicitBone disables implicit-bone removal when used as ImplicitBone.
const KeepImplicitBone = "-"

type SMDToGLTFOption struct {
	Scale        float32 // Default: 1. A manifest $scale takes precedence.
	FrameRate    float32 // 0: animation times are frame numbers
	RotateX      bool
	RootPolicy   skeleton.RootPolicy
	ImplicitBone string // Default: smd.ImplicitBoneName
	ForceUnlit   bool

	TextureOptions TextureOption
	Selector       Selector
	Log            *zap.Logger
}

type smdToGltf struct {
	*SMDToGLTFOption
	*gltf.Document
	textures *textureCache
	log      *zap.Logger
}

func NewSMDToGLTFConverter(options *SMDToGLTFOption) *smdToGltf {
	if options == nil {
		options = &SMDToGLTFOption{}
	}
	if options.Scale == 0 {
		options.Scale = 1
	}
	if options.ImplicitBone == "" {
		options.ImplicitBone = smd.ImplicitBoneName
	}
	if options.TextureOptions.Scale == 0 {
		options.TextureOptions.Scale = 1.0
	}
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &smdToGltf{
		SMDToGLTFOption: options,
		Document:        gltf.NewDocument(),
		textures:        newTextureCache(),
		log:             log,
	}
}

func (c *smdToGltf) useExtension(name string, required bool) {
	if !slices.Contains(c.ExtensionsUsed, name) {
		c.ExtensionsUsed = append(c.ExtensionsUsed, name)
	}
	if required && !slices.Contains(c.ExtensionsRequired, name) {
		c.ExtensionsRequired = append(c.ExtensionsRequired, name)
	}
}

func (c *smdToGltf) removeImplicit(doc *smd.Document) (*smd.Document, error) {
	if c.ImplicitBone == KeepImplicitBone {
		return doc, nil
	}
	return smd.RemoveImplicitBone(doc, c.ImplicitBone)
}

// addNodes appends one glTF node per skeleton node in pre-order.
func (c *smdToGltf) addNodes(s *skeleton.Skeleton) map[*skeleton.Node]uint32 {
	ids := map[*skeleton.Node]uint32{}
	s.Walk(func(n *skeleton.Node) {
		ids[n] = uint32(len(c.Nodes))
		node := &gltf.Node{Name: n.Name, Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}}
		if n.Translation != nil {
			node.Translation = *n.Translation
		}
		if n.Rotation != nil {
			q := n.Rotation
			node.Rotation = [4]float32{q.V[0], q.V[1], q.V[2], q.W}
		}
		c.Nodes = append(c.Nodes, node)
	})
	s.Walk(func(n *skeleton.Node) {
		for _, child := range n.Children {
			c.Nodes[ids[n]].Children = append(c.Nodes[ids[n]].Children, ids[child])
		}
	})
	c.Scenes[0].Nodes = append(c.Scenes[0].Nodes, ids[s.Root])
	return ids
}

func (c *smdToGltf) addSkin(skin *skeleton.Skin, ids map[*skeleton.Node]uint32) uint32 {
	joints := make([]uint32, len(skin.Joints))
	for i, j := range skin.Joints {
		joints[i] = ids[j]
	}
	c.Skins = append(c.Skins, &gltf.Skin{
		Joints:              joints,
		InverseBindMatrices: gltf.Index(gltfutil.WriteMatrices(c.Document, skin.Inverse)),
		Skeleton:            gltf.Index(ids[skin.Root]),
	})
	return uint32(len(c.Skins) - 1)
}

func (c *smdToGltf) convertMaterial(name string, textures *TextureSource) *gltf.Material {
	var rf float32 = 0.8
	var mf float32 = 0
	mm := &gltf.Material{
		Name: name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			RoughnessFactor: &rf,
			MetallicFactor:  &mf,
		},
	}
	if c.ForceUnlit {
		mm.Extensions = gltf.Extensions{unlitMaterialExt: map[string]string{}}
		c.useExtension(unlitMaterialExt, false)
	}

	path, err := textures.Find(name)
	if err != nil {
		c.log.Warn("texture selection failed", zap.String("material", name), zap.Error(err))
		return mm
	}
	if path == "" {
		c.log.Info("no texture for material", zap.String("material", name))
		return mm
	}
	tex, err := c.addTexture(path)
	if err != nil {
		c.log.Warn("texture read error", zap.String("texture", path), zap.Error(err))
		return mm
	}
	mm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: *tex}
	if c.textures.hasAlpha(path) {
		mm.AlphaMode = gltf.AlphaBlend
	}
	return mm
}

func (c *smdToGltf) addMesh(m *mesh.Mesh, skinned bool, textures *TextureSource) uint32 {
	attributes := map[string]uint32{
		"POSITION":   modeler.WritePosition(c.Document, m.Positions),
		"NORMAL":     modeler.WriteNormal(c.Document, m.Normals),
		"TEXCOORD_0": modeler.WriteTextureCoord(c.Document, m.TexCoords),
	}
	if skinned {
		attributes["JOINTS_0"] = modeler.WriteJoints(c.Document, m.Joints)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(c.Document, m.Weights)
	}

	var primitives []*gltf.Primitive
	for _, g := range m.Groups {
		c.Materials = append(c.Materials, c.convertMaterial(g.Material, textures))
		primitives = append(primitives, &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(c.Document, g.Indices)),
			Attributes: attributes,
			Material:   gltf.Index(uint32(len(c.Materials) - 1)),
		})
	}
	c.Meshes = append(c.Meshes, &gltf.Mesh{Primitives: primitives})
	return uint32(len(c.Meshes) - 1)
}

func (c *smdToGltf) addAnimation(clip *anim.Clip, ids map[*skeleton.Node]uint32) {
	a := &gltf.Animation{Name: clip.Name}
	channel := func(node *skeleton.Node, input, output uint32, path gltf.TRSProperty) {
		a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
			Input:         gltf.Index(input),
			Output:        gltf.Index(output),
			Interpolation: gltf.InterpolationLinear,
		})
		a.Channels = append(a.Channels, &gltf.Channel{
			Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
			Target: gltf.ChannelTarget{
				Node: gltf.Index(ids[node]),
				Path: path,
			},
		})
	}

	for _, ch := range clip.Translations {
		values := make([][3]float32, len(ch.Values))
		for i, v := range ch.Values {
			values[i] = v
		}
		channel(ch.Node, gltfutil.WriteTimes(c.Document, ch.Times), modeler.WritePosition(c.Document, values), gltf.TRSTranslation)
	}
	for _, ch := range clip.Rotations {
		values := make([][4]float32, len(ch.Values))
		for i, q := range ch.Values {
			values[i] = [4]float32{q.V[0], q.V[1], q.V[2], q.W}
		}
		channel(ch.Node, gltfutil.WriteTimes(c.Document, ch.Times), modeler.WriteTangent(c.Document, values), gltf.TRSRotation)
	}
	if len(a.Channels) == 0 {
		c.log.Info("animation has no channels", zap.String("animation", clip.Name))
		return
	}
	c.Animations = append(c.Animations, a)
}

// Convert builds a glTF document from resolved manifest resources. Texture
// files are looked up in textureDir.
func (c *smdToGltf) Convert(res *manifest.Resources, textureDir string) (*gltf.Document, error) {
	body, err := c.removeImplicit(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}
	scale := c.Scale
	if res.Scale != nil {
		scale = float32(*res.Scale)
	}

	s, err := skeleton.Build(body.Bones, skeleton.PoseKeyframe(body.Keyframes), skeleton.Options{RootPolicy: c.RootPolicy, Scale: scale})
	if err != nil {
		return nil, errors.Wrap(err, "skeleton")
	}
	skin := skeleton.NewSkin(s)
	ids := c.addNodes(s)
	root := c.Nodes[ids[s.Root]]

	// A skin is only valid on a node that also carries a mesh.
	skinned := len(skin.Joints) > 0 && len(body.Triangles) > 0
	if skinned {
		root.Skin = gltf.Index(c.addSkin(skin, ids))
	}

	if len(body.Triangles) > 0 {
		m, err := mesh.Pack(body.Triangles, skin, mesh.Options{Scale: scale, RotateX: c.RotateX})
		if err != nil {
			return nil, errors.Wrap(err, "mesh")
		}
		textures := &TextureSource{Dir: textureDir, Selector: c.Selector, Interactive: c.TextureOptions.Interactive}
		root.Mesh = gltf.Index(c.addMesh(m, skinned, textures))
		c.log.Debug("mesh packed", zap.Int("vertices", len(m.Positions)), zap.Int("indices", len(m.Indices)), zap.Int("materials", len(m.Groups)))
	}

	for _, a := range res.Animations {
		doc, err := c.removeImplicit(a.Doc)
		if err != nil {
			return nil, errors.Wrapf(err, "animation %s", a.Name)
		}
		clip, err := anim.Build(a.Name, s, doc.Keyframes, anim.Options{FrameRate: c.FrameRate, Scale: scale})
		if err != nil {
			return nil, errors.Wrapf(err, "animation %s", a.Name)
		}
		c.addAnimation(clip, ids)
	}

	if len(c.Document.Textures) > 0 {
		c.Samplers = []*gltf.Sampler{{}}
	}
	c.log.Debug("converted",
		zap.Int("nodes", len(c.Nodes)),
		zap.Int("joints", len(skin.Joints)),
		zap.Int("animations", len(c.Animations)))
	return c.Document, nil
}

// Package skeleton turns a bone list into a node tree and computes its bind pose.
package skeleton

import (
	"fmt"
	"strings"

	"github.com/Waterpicker/JglTF/geom"
	"github.com/Waterpicker/JglTF/smd"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

var (
	ErrNoRoot        = errors.New("skeleton: no root bone")
	ErrAmbiguousRoot = errors.New("skeleton: more than one root bone")

	ErrUnknownRootPolicy = errors.New("skeleton: unknown root policy")
)

// Node is one bone in the pose hierarchy.
type Node struct {
	Name        string
	Bone        int
	Translation *mgl32.Vec3
	Rotation    *mgl32.Quat
	Children    []*Node
	Parent      *Node
}

// Local returns the node's T*R matrix.
func (n *Node) Local() mgl32.Mat4 {
	return geom.LocalMatrix(n.Translation, n.Rotation)
}

// RootPolicy decides which bone becomes the root when several have no parent.
type RootPolicy int

const (
	// RootFirstWithChildren takes the first parentless bone that has children.
	RootFirstWithChildren RootPolicy = iota
	RootFirst
	RootStrict
)

var rootPolicyNames = map[string]RootPolicy{
	"first-with-children": RootFirstWithChildren,
	"first":               RootFirst,
	"strict":              RootStrict,
}

func ParseRootPolicy(s string) (RootPolicy, error) {
	if s == "" {
		return RootFirstWithChildren, nil
	}
	p, ok := rootPolicyNames[strings.ToLower(s)]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownRootPolicy, "%q", s)
	}
	return p, nil
}

func (p RootPolicy) String() string {
	for name, v := range rootPolicyNames {
		if v == p {
			return name
		}
	}
	return fmt.Sprintf("RootPolicy(%d)", int(p))
}

type Options struct {
	RootPolicy RootPolicy
	Scale      float32 // applied to pose translations; 0 means 1
}

// BoneIndex maps source bone ids to nodes reachable from the root.
type BoneIndex map[int]*Node

func (idx BoneIndex) Lookup(bone int) (*Node, error) {
	if n, ok := idx[bone]; ok {
		return n, nil
	}
	return nil, &smd.ReferenceError{Block: "skeleton", Bone: bone}
}

type Skeleton struct {
	Root  *Node
	Nodes []*Node // source order
	Index BoneIndex
}

// Walk visits the tree from the root in depth-first pre-order.
func (s *Skeleton) Walk(fn func(*Node)) {
	var walk func(*Node)
	walk = func(n *Node) {
		fn(n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(s.Root)
}

// PoseKeyframe returns the keyframe with the lowest time, or nil.
func PoseKeyframe(keyframes []smd.Keyframe) *smd.Keyframe {
	var pose *smd.Keyframe
	for i := range keyframes {
		if pose == nil || keyframes[i].Time < pose.Time {
			pose = &keyframes[i]
		}
	}
	return pose
}

func selectRoot(nodes []*Node, policy RootPolicy) (*Node, error) {
	var roots []*Node
	for _, n := range nodes {
		if n.Parent == nil {
			roots = append(roots, n)
		}
	}
	if len(roots) == 0 {
		return nil, ErrNoRoot
	}
	if len(roots) == 1 {
		return roots[0], nil
	}
	switch policy {
	case RootFirst:
		return roots[0], nil
	case RootStrict:
		return nil, errors.Wrapf(ErrAmbiguousRoot, "%d candidates", len(roots))
	}
	if i := slices.IndexFunc(roots, func(n *Node) bool { return len(n.Children) > 0 }); i >= 0 {
		return roots[i], nil
	}
	return nil, errors.Wrapf(ErrNoRoot, "none of %d parentless bones has children", len(roots))
}

// Build creates one node per bone, links parents, picks the root and applies
// the pose keyframe. Bone ids must be dense (see smd.Document.ValidateBones).
func Build(bones []smd.Bone, pose *smd.Keyframe, opts Options) (*Skeleton, error) {
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}

	nodes := make([]*Node, len(bones))
	for i, b := range bones {
		if b.ID != i {
			return nil, errors.Wrapf(smd.ErrInvalidSkeleton, "bone %q has id %d at index %d", b.Name, b.ID, i)
		}
		nodes[i] = &Node{Name: b.Name, Bone: b.ID}
	}
	for i, b := range bones {
		if b.Parent == -1 {
			continue
		}
		if b.Parent < 0 || b.Parent >= len(nodes) || b.Parent == i {
			return nil, &smd.ReferenceError{Block: "nodes", Bone: b.Parent}
		}
		parent := nodes[b.Parent]
		nodes[i].Parent = parent
		parent.Children = append(parent.Children, nodes[i])
	}

	root, err := selectRoot(nodes, opts.RootPolicy)
	if err != nil {
		return nil, err
	}
	s := &Skeleton{Root: root, Nodes: nodes, Index: BoneIndex{}}
	s.Walk(func(n *Node) { s.Index[n.Bone] = n })

	if pose != nil {
		for _, st := range pose.States {
			if st.Bone < 0 || st.Bone >= len(nodes) {
				return nil, &smd.ReferenceError{Block: "pose", Bone: st.Bone}
			}
			n := nodes[st.Bone]
			if !geom.AllZero(st.Pos) {
				t := geom.MirrorYZ(st.Pos).Mul(scale)
				n.Translation = &t
			}
			if !geom.AllZero(st.Rot) {
				r := geom.EulerXYZ(geom.MirrorYZ(st.Rot)).Normalize()
				n.Rotation = &r
			}
		}
	}
	return s, nil
}

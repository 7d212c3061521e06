package skeleton

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

var ErrNotJoint = errors.New("skeleton: bone is not a skin joint")

// Skin holds the joint list and inverse bind matrices in pre-order.
// The root node is the skeleton and is never a joint.
type Skin struct {
	Root    *Node
	Joints  []*Node
	Inverse []mgl32.Mat4
	index   map[*Node]int
	bones   BoneIndex
}

// NewSkin walks the root's subtrees. Each joint's inverse bind matrix is the
// inverse of its local matrix, post-multiplied by the parent's when the parent
// is itself a joint.
func NewSkin(s *Skeleton) *Skin {
	skin := &Skin{Root: s.Root, index: map[*Node]int{}, bones: s.Index}
	var walk func(n *Node, parentInv *mgl32.Mat4)
	walk = func(n *Node, parentInv *mgl32.Mat4) {
		inv := n.Local().Inv()
		if parentInv != nil {
			inv = inv.Mul4(*parentInv)
		}
		skin.index[n] = len(skin.Joints)
		skin.Joints = append(skin.Joints, n)
		skin.Inverse = append(skin.Inverse, inv)
		for _, c := range n.Children {
			walk(c, &inv)
		}
	}
	for _, c := range s.Root.Children {
		walk(c, nil)
	}
	return skin
}

// JointIndex returns the position of n in the joint list.
func (s *Skin) JointIndex(n *Node) (int, bool) {
	i, ok := s.index[n]
	return i, ok
}

// JointOf resolves a source bone id to its joint position.
func (s *Skin) JointOf(bone int) (int, error) {
	n, err := s.bones.Lookup(bone)
	if err != nil {
		return 0, err
	}
	i, ok := s.index[n]
	if !ok {
		return 0, errors.Wrapf(ErrNotJoint, "bone %d (%s)", bone, n.Name)
	}
	return i, nil
}

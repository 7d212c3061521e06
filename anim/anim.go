// Package anim converts studiomdl keyframes into per-node sampled channels.
package anim

import (
	"github.com/Waterpicker/JglTF/geom"
	"github.com/Waterpicker/JglTF/skeleton"
	"github.com/Waterpicker/JglTF/smd"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slices"
)

// Channel is one animated property of a node. Times are non-decreasing.
type Channel[T comparable] struct {
	Node   *skeleton.Node
	Times  []float32
	Values []T
}

func (c *Channel[T]) add(time float32, v T) {
	c.Times = append(c.Times, time)
	c.Values = append(c.Values, v)
}

// Dedup collapses runs of consecutive equal values to the first sample of the run.
func Dedup[T comparable](times []float32, values []T) ([]float32, []T) {
	var outTimes []float32
	var outValues []T
	for i, v := range values {
		if i > 0 && v == values[i-1] {
			continue
		}
		outTimes = append(outTimes, times[i])
		outValues = append(outValues, v)
	}
	return outTimes, outValues
}

// Clip is a named animation. Channels follow the skeleton's pre-order.
type Clip struct {
	Name         string
	Translations []*Channel[mgl32.Vec3]
	Rotations    []*Channel[mgl32.Quat]
}

// Duration returns the last sample time.
func (c *Clip) Duration() float32 {
	var d float32
	for _, ch := range c.Translations {
		if n := len(ch.Times); n > 0 && ch.Times[n-1] > d {
			d = ch.Times[n-1]
		}
	}
	for _, ch := range c.Rotations {
		if n := len(ch.Times); n > 0 && ch.Times[n-1] > d {
			d = ch.Times[n-1]
		}
	}
	return d
}

type Options struct {
	FrameRate float32 // frames per second; 0 keeps frame numbers as times
	Scale     float32 // applied to translations; 0 means 1
}

// Build samples every bone state in keyframes. Positions and rotations are
// taken as written, without the axis mirroring applied to the bind pose.
func Build(name string, s *skeleton.Skeleton, keyframes []smd.Keyframe, opts Options) (*Clip, error) {
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	sorted := slices.Clone(keyframes)
	slices.SortStableFunc(sorted, func(a, b smd.Keyframe) int { return a.Time - b.Time })

	translations := map[*skeleton.Node]*Channel[mgl32.Vec3]{}
	rotations := map[*skeleton.Node]*Channel[mgl32.Quat]{}
	for _, kf := range sorted {
		time := float32(kf.Time)
		if opts.FrameRate > 0 {
			time /= opts.FrameRate
		}
		for _, st := range kf.States {
			n, err := s.Index.Lookup(st.Bone)
			if err != nil {
				return nil, err
			}
			if translations[n] == nil {
				translations[n] = &Channel[mgl32.Vec3]{Node: n}
				rotations[n] = &Channel[mgl32.Quat]{Node: n}
			}
			translations[n].add(time, st.Pos.Mul(scale))
			rotations[n].add(time, geom.EulerXYZ(st.Rot))
		}
	}

	clip := &Clip{Name: name}
	s.Walk(func(n *skeleton.Node) {
		if ch := translations[n]; ch != nil {
			ch.Times, ch.Values = Dedup(ch.Times, ch.Values)
			clip.Translations = append(clip.Translations, ch)
		}
		if ch := rotations[n]; ch != nil {
			ch.Times, ch.Values = Dedup(ch.Times, ch.Values)
			clip.Rotations = append(clip.Rotations, ch)
		}
	})
	return clip, nil
}

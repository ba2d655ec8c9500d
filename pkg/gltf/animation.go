package gltf

import (
	"fmt"
	gomath "math"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/gltfkit/pkg/math"
)

// EnableAnimation samples every channel of an animation at time t and
// writes the results into the target nodes. Times outside the keyframe
// range clamp to the first or last key. Channels whose data cannot be read
// are skipped with a warning.
func (d *Document) EnableAnimation(animation int, t float32) error {
	if err := d.requirePhase(PhaseBuffersLoaded); err != nil {
		return err
	}
	if gomath.IsNaN(float64(t)) || gomath.IsInf(float64(t), 0) {
		return fmt.Errorf("%w: animation time %v", ErrMissingOrInvalidField, t)
	}
	a, err := d.Animation(animation)
	if err != nil {
		return err
	}

	for ci, c := range a.Channels {
		if err := d.applyChannel(a, c, t); err != nil {
			d.AddWarning(err, "skipping animation channel",
				zap.Int("animation", animation), zap.Int("channel", ci), zap.Stringer("path", c.Path))
		}
	}
	a.enabled = true
	a.time = t
	return nil
}

// DisableAnimation restores every node the animation targets to the values
// captured at load.
func (d *Document) DisableAnimation(animation int) error {
	a, err := d.Animation(animation)
	if err != nil {
		return err
	}
	for _, c := range a.Channels {
		n := d.Nodes[c.Node]
		switch c.Path {
		case PathTranslation:
			n.Translation = n.InitialTranslation
		case PathRotation:
			n.Rotation = n.InitialRotation
		case PathScale:
			n.Scale = n.InitialScale
		case PathWeights:
			n.Weights = slices.Clone(n.InitialWeights)
		}
		if err := d.InvalidateTransform(c.Node); err != nil {
			return err
		}
	}
	a.enabled = false
	a.time = 0
	return nil
}

// AnimationState reports whether an animation is enabled and at what time.
func (d *Document) AnimationState(animation int) (enabled bool, t float32, err error) {
	a, err := d.Animation(animation)
	if err != nil {
		return false, 0, err
	}
	return a.enabled, a.time, nil
}

func (d *Document) applyChannel(a *Animation, c Channel, t float32) error {
	s := a.Samplers[c.Sampler]
	if err := d.materialize(s); err != nil {
		return err
	}

	n := d.Nodes[c.Node]
	width := 0
	switch c.Path {
	case PathTranslation, PathScale:
		width = 3
	case PathRotation:
		width = 4
	case PathWeights:
		width = len(s.outputs) / len(s.inputs)
		if s.Interpolation == InterpolationCubicSpline {
			width /= 3
		}
	}
	v, err := s.sample(t, width, c.Path == PathRotation)
	if err != nil {
		return err
	}

	switch c.Path {
	case PathTranslation:
		n.Translation = math.Vec3{X: v[0], Y: v[1], Z: v[2]}
	case PathRotation:
		n.Rotation = math.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}
	case PathScale:
		n.Scale = math.Vec3{X: v[0], Y: v[1], Z: v[2]}
	case PathWeights:
		n.Weights = v
	}
	return d.InvalidateTransform(c.Node)
}

// materialize reads and caches the keyframe arrays of a sampler.
func (d *Document) materialize(s *AnimationSampler) error {
	if s.ready {
		return nil
	}
	in, err := ReadScalars(d, s.Input)
	if err != nil {
		return err
	}
	out, err := ReadFloats(d, s.Output)
	if err != nil {
		return err
	}
	if len(in) == 0 {
		return fmt.Errorf("%w: sampler has no keyframes", ErrMissingOrInvalidField)
	}
	s.inputs = in
	s.outputs = out.Data
	s.ready = true
	return nil
}

// sample evaluates the sampler at t. width is the number of floats in one
// keyframe value.
func (s *AnimationSampler) sample(t float32, width int, rotation bool) ([]float32, error) {
	keys := len(s.inputs)
	perKey := width
	if s.Interpolation == InterpolationCubicSpline {
		perKey = 3 * width
	}
	if width == 0 || len(s.outputs) != keys*perKey {
		return nil, fmt.Errorf("%w: %d output values for %d keys of width %d",
			ErrMissingOrInvalidField, len(s.outputs), keys, width)
	}

	value := func(k int) []float32 {
		off := k * perKey
		if s.Interpolation == InterpolationCubicSpline {
			off += width
		}
		return s.outputs[off : off+width]
	}

	if t <= s.inputs[0] {
		return slices.Clone(value(0)), nil
	}
	if t >= s.inputs[keys-1] {
		return slices.Clone(value(keys - 1)), nil
	}

	k1 := sort.Search(keys, func(i int) bool { return s.inputs[i] > t })
	if k1 == 0 || k1 == keys {
		// Only reachable with unsorted inputs or a NaN time.
		return slices.Clone(value(min(k1, keys-1))), nil
	}
	k0 := k1 - 1
	t0, t1 := s.inputs[k0], s.inputs[k1]
	td := t1 - t0
	u := (t - t0) / td

	out := make([]float32, width)
	switch s.Interpolation {
	case InterpolationStep:
		copy(out, value(k0))
		return out, nil

	case InterpolationCubicSpline:
		u2 := u * u
		u3 := u2 * u
		h00 := 2*u3 - 3*u2 + 1
		h10 := u3 - 2*u2 + u
		h01 := -2*u3 + 3*u2
		h11 := u3 - u2
		v0, v1 := value(k0), value(k1)
		outTangent := s.outputs[k0*perKey+2*width : k0*perKey+3*width]
		inTangent := s.outputs[k1*perKey : k1*perKey+width]
		for i := range out {
			out[i] = h00*v0[i] + h10*td*outTangent[i] + h01*v1[i] + h11*td*inTangent[i]
		}
		if rotation {
			q := math.Quat{X: out[0], Y: out[1], Z: out[2], W: out[3]}.Normalize()
			out[0], out[1], out[2], out[3] = q.X, q.Y, q.Z, q.W
		}
		return out, nil

	default:
		v0, v1 := value(k0), value(k1)
		if rotation {
			q0 := math.Quat{X: v0[0], Y: v0[1], Z: v0[2], W: v0[3]}
			q1 := math.Quat{X: v1[0], Y: v1[1], Z: v1[2], W: v1[3]}
			q := q0.Lerp(q1, u)
			out[0], out[1], out[2], out[3] = q.X, q.Y, q.Z, q.W
			return out, nil
		}
		for i := range out {
			out[i] = v0[i] + u*(v1[i]-v0[i])
		}
		return out, nil
	}
}

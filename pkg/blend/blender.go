// Package blend implements a per-element weighted blend of points, vectors
// and normals across a set of registered transforms.
package blend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/gltfkit/pkg/math"
)

var (
	// ErrInvalidWeightIndex is reported for a weight whose slot index is
	// negative or beyond the registered slots.
	ErrInvalidWeightIndex = errors.New("invalid transform index")
	// ErrNonlinearCell is reported for cells left unblended because a
	// participating transform is not linear.
	ErrNonlinearCell = errors.New("cell blend needs linear transforms")
	// ErrMismatchedLength is returned when input arrays disagree in size.
	ErrMismatchedLength = errors.New("mismatched input lengths")
)

// Weights holds Components weights per element, stored contiguously.
// Indices, when set, is parallel to Values and names the transform slot of
// each weight; otherwise weight k uses slot k.
type Weights struct {
	Values     []float32
	Indices    []int
	Components int
}

func (w Weights) check(count int) error {
	if w.Components < 0 || len(w.Values) != count*w.Components {
		return fmt.Errorf("%w: %d weights for %d elements of %d", ErrMismatchedLength, len(w.Values), count, w.Components)
	}
	if w.Indices != nil && len(w.Indices) != len(w.Values) {
		return fmt.Errorf("%w: %d indices for %d weights", ErrMismatchedLength, len(w.Indices), len(w.Values))
	}
	return nil
}

// PointInput is per-point data to blend. Normals and each Vectors entry are
// optional and parallel to Points.
type PointInput struct {
	Points  []math.Vec3
	Normals []math.Vec3
	Vectors [][]math.Vec3
	Weights Weights
}

// PointOutput holds blended point data, shaped like the input.
type PointOutput struct {
	Points  []math.Vec3
	Normals []math.Vec3
	Vectors [][]math.Vec3
}

// CellInput is per-cell data to blend. Cells have no position, so only
// linear transforms can be applied to them.
type CellInput struct {
	Normals []math.Vec3
	Vectors [][]math.Vec3
	Weights Weights
}

// CellOutput holds blended cell data. Skipped lists cells passed through
// unchanged because a participating transform was not linear.
type CellOutput struct {
	Normals []math.Vec3
	Vectors [][]math.Vec3
	Skipped []int
}

// Blender blends elements across up to N transform slots.
// A Blender is not safe for concurrent use.
type Blender struct {
	slots          []Transform
	addInputValues bool
	log            *zap.Logger
}

// Option configures a Blender.
type Option func(*Blender)

// WithLogger sets the logger invalid weight indices are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(b *Blender) {
		if log != nil {
			b.log = log
		}
	}
}

// WithAddInputValues seeds every accumulator with the unmodified input.
func WithAddInputValues(on bool) Option {
	return func(b *Blender) {
		b.addInputValues = on
	}
}

// New creates a blender with no transforms.
func New(opts ...Option) *Blender {
	b := &Blender{log: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetTransform registers t at slot, growing the slot table as needed.
// A nil t empties the slot. The previous occupant is dropped.
func (b *Blender) SetTransform(slot int, t Transform) {
	if slot < 0 {
		return
	}
	for len(b.slots) <= slot {
		b.slots = append(b.slots, nil)
	}
	b.slots[slot] = t
}

// RemoveTransform empties slot.
func (b *Blender) RemoveTransform(slot int) {
	if slot >= 0 && slot < len(b.slots) {
		b.slots[slot] = nil
	}
}

// Transform returns the transform at slot, or nil.
func (b *Blender) Transform(slot int) Transform {
	if slot < 0 || slot >= len(b.slots) {
		return nil
	}
	return b.slots[slot]
}

// NumberOfTransforms returns the slot count, including empty slots.
func (b *Blender) NumberOfTransforms() int {
	return len(b.slots)
}

// SetAddInputValues toggles seeding accumulators with the input.
func (b *Blender) SetAddInputValues(on bool) {
	b.addInputValues = on
}

// AddInputValues reports whether accumulators are seeded with the input.
func (b *Blender) AddInputValues() bool {
	return b.addInputValues
}

// Update refreshes every registered transform.
func (b *Blender) Update() {
	for _, t := range b.slots {
		if t != nil {
			t.Update()
		}
	}
}

// resolve returns the transform for weight k of element i, or nil when the
// weight contributes nothing.
func (b *Blender) resolve(w Weights, i, k int, warned map[int]bool) Transform {
	slot := k
	if w.Indices != nil {
		slot = w.Indices[i*w.Components+k]
	}
	if slot < 0 || slot >= len(b.slots) {
		if !warned[slot] {
			warned[slot] = true
			b.log.Warn("ignoring weight for missing transform",
				zap.Int("slot", slot), zap.Int("slots", len(b.slots)), zap.Int("element", i),
				zap.Error(ErrInvalidWeightIndex))
		}
		return nil
	}
	return b.slots[slot]
}

// BlendPoints blends every point, normal and vector of in. On cancellation
// the partially filled output is returned with the context error; it must
// not be used as a complete result.
func (b *Blender) BlendPoints(ctx context.Context, in PointInput) (*PointOutput, error) {
	n := len(in.Points)
	if err := in.Weights.check(n); err != nil {
		return nil, err
	}
	if in.Normals != nil && len(in.Normals) != n {
		return nil, fmt.Errorf("%w: %d normals for %d points", ErrMismatchedLength, len(in.Normals), n)
	}
	for k, v := range in.Vectors {
		if len(v) != n {
			return nil, fmt.Errorf("%w: vector array %d has %d entries for %d points", ErrMismatchedLength, k, len(v), n)
		}
	}

	out := &PointOutput{Points: make([]math.Vec3, n)}
	if in.Normals != nil {
		out.Normals = make([]math.Vec3, n)
	}
	out.Vectors = make([][]math.Vec3, len(in.Vectors))
	for k := range in.Vectors {
		out.Vectors[k] = make([]math.Vec3, n)
	}

	warned := make(map[int]bool)
	m := in.Weights.Components
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		p := in.Points[i]
		var accP, accN math.Vec3
		if b.addInputValues {
			accP = p
			if in.Normals != nil {
				accN = in.Normals[i]
			}
			for k := range in.Vectors {
				out.Vectors[k][i] = in.Vectors[k][i]
			}
		}

		for k := 0; k < m; k++ {
			w := in.Weights.Values[i*m+k]
			if w == 0 {
				continue
			}
			t := b.resolve(in.Weights, i, k, warned)
			if t == nil {
				continue
			}

			switch t := t.(type) {
			case *Linear:
				accP = accP.Add(t.point(p).Scale(w))
				if in.Normals != nil {
					if nn, ok := t.normalVec(in.Normals[i]); ok {
						accN = accN.Add(nn.Scale(w))
					}
				}
				for vk := range in.Vectors {
					out.Vectors[vk][i] = out.Vectors[vk][i].Add(t.vector(in.Vectors[vk][i]).Scale(w))
				}
			case *General:
				mapped, jac := t.eval.EvaluatePointAndJacobian(p)
				accP = accP.Add(mapped.Scale(w))
				if in.Normals != nil {
					if nn, ok := solveNormal(jac, in.Normals[i]); ok {
						accN = accN.Add(nn.Scale(w))
					}
				}
				for vk := range in.Vectors {
					out.Vectors[vk][i] = out.Vectors[vk][i].Add(jac.MulVec3(in.Vectors[vk][i]).Scale(w))
				}
			}
		}

		out.Points[i] = accP
		if in.Normals != nil {
			out.Normals[i] = accN.Normalize()
		}
	}
	return out, nil
}

// BlendCells blends cell normals and vectors. A cell any of whose
// participating transforms is not linear is passed through unchanged.
func (b *Blender) BlendCells(ctx context.Context, in CellInput) (*CellOutput, error) {
	n := len(in.Normals)
	if in.Normals == nil && len(in.Vectors) > 0 {
		n = len(in.Vectors[0])
	}
	if err := in.Weights.check(n); err != nil {
		return nil, err
	}
	for k, v := range in.Vectors {
		if len(v) != n {
			return nil, fmt.Errorf("%w: vector array %d has %d entries for %d cells", ErrMismatchedLength, k, len(v), n)
		}
	}

	out := &CellOutput{}
	if in.Normals != nil {
		out.Normals = make([]math.Vec3, n)
	}
	out.Vectors = make([][]math.Vec3, len(in.Vectors))
	for k := range in.Vectors {
		out.Vectors[k] = make([]math.Vec3, n)
	}

	warned := make(map[int]bool)
	m := in.Weights.Components
	linear := make([]*Linear, m)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		nonlinear := false
		for k := 0; k < m; k++ {
			linear[k] = nil
			if in.Weights.Values[i*m+k] == 0 {
				continue
			}
			t := b.resolve(in.Weights, i, k, warned)
			if t == nil {
				continue
			}
			if l, ok := t.(*Linear); ok && l.IsLinear() {
				linear[k] = l
				continue
			}
			nonlinear = true
			break
		}

		if nonlinear {
			if in.Normals != nil {
				out.Normals[i] = in.Normals[i]
			}
			for vk := range in.Vectors {
				out.Vectors[vk][i] = in.Vectors[vk][i]
			}
			out.Skipped = append(out.Skipped, i)
			continue
		}

		var accN math.Vec3
		if b.addInputValues {
			if in.Normals != nil {
				accN = in.Normals[i]
			}
			for vk := range in.Vectors {
				out.Vectors[vk][i] = in.Vectors[vk][i]
			}
		}
		for k, l := range linear {
			if l == nil {
				continue
			}
			w := in.Weights.Values[i*m+k]
			if in.Normals != nil {
				if nn, ok := l.normalVec(in.Normals[i]); ok {
					accN = accN.Add(nn.Scale(w))
				}
			}
			for vk := range in.Vectors {
				out.Vectors[vk][i] = out.Vectors[vk][i].Add(l.vector(in.Vectors[vk][i]).Scale(w))
			}
		}
		if in.Normals != nil {
			out.Normals[i] = accN.Normalize()
		}
	}

	if len(out.Skipped) > 0 {
		b.log.Debug("cells passed through unblended",
			zap.Int("cells", len(out.Skipped)), zap.Error(ErrNonlinearCell))
	}
	return out, nil
}

// solveNormal solves transpose(J) * n' = n and normalizes n'. The
// column-major Mat3 read row by row is already transpose(J).
func solveNormal(j math.Mat3, n math.Vec3) (math.Vec3, bool) {
	data := make([]float64, 9)
	for i, v := range j {
		data[i] = float64(v)
	}
	a := mat.NewDense(3, 3, data)
	rhs := mat.NewVecDense(3, []float64{float64(n.X), float64(n.Y), float64(n.Z)})

	var x mat.VecDense
	if err := x.SolveVec(a, rhs); err != nil {
		return math.Vec3{}, false
	}
	return math.Vec3{X: float32(x.AtVec(0)), Y: float32(x.AtVec(1)), Z: float32(x.AtVec(2))}.Normalize(), true
}

package blend

import (
	"github.com/Faultbox/gltfkit/pkg/math"
)

// Transform is a blendable transform. The set of implementations is closed:
// *Linear and *General.
type Transform interface {
	// Update refreshes the transform from its source.
	Update()
	// IsLinear reports whether the transform is affine.
	IsLinear() bool

	transform()
}

// Linear is an affine transform with the data its fast path needs cached:
// the upper 3x3 block, the translation and the inverse-transpose of the 3x3
// block for normals.
type Linear struct {
	source func() math.Mat4

	m         math.Mat4
	m3        math.Mat3
	t         math.Vec3
	normal    math.Mat3
	hasNormal bool
}

// NewLinear creates a linear transform from a fixed matrix.
func NewLinear(m math.Mat4) *Linear {
	l := &Linear{}
	l.SetMatrix(m)
	return l
}

// NewLinearFunc creates a linear transform whose matrix is re-read from
// source on every Update.
func NewLinearFunc(source func() math.Mat4) *Linear {
	l := &Linear{source: source}
	l.SetMatrix(source())
	return l
}

// SetMatrix replaces the matrix and recomputes the cached blocks.
func (l *Linear) SetMatrix(m math.Mat4) {
	l.m = m
	l.m3 = m.Mat3()
	l.t = m.Translation()
	l.normal, l.hasNormal = m.NormalMatrix()
}

// Matrix returns the current matrix.
func (l *Linear) Matrix() math.Mat4 {
	return l.m
}

func (l *Linear) Update() {
	if l.source != nil {
		l.SetMatrix(l.source())
	}
}

// IsLinear is false for projective matrices.
func (l *Linear) IsLinear() bool {
	return l.m.IsAffine()
}

func (l *Linear) transform() {}

func (l *Linear) point(p math.Vec3) math.Vec3 {
	if !l.m.IsAffine() {
		return l.m.TransformVec3(p)
	}
	return l.m3.MulVec3(p).Add(l.t)
}

func (l *Linear) vector(v math.Vec3) math.Vec3 {
	return l.m3.MulVec3(v)
}

// normalVec maps a normal through the cached inverse-transpose. ok is false
// for a singular 3x3 block.
func (l *Linear) normalVec(n math.Vec3) (math.Vec3, bool) {
	if !l.hasNormal {
		return math.Vec3{}, false
	}
	return l.normal.MulVec3(n).Normalize(), true
}

// Evaluator is a general, possibly nonlinear, point mapping.
type Evaluator interface {
	Update()
	// EvaluatePointAndJacobian maps p and returns the local Jacobian at p.
	EvaluatePointAndJacobian(p math.Vec3) (math.Vec3, math.Mat3)
}

// General wraps an Evaluator. Vectors are mapped by the Jacobian at the
// element's point and normals by its inverse-transpose.
type General struct {
	eval Evaluator
}

// NewGeneral creates a general transform.
func NewGeneral(e Evaluator) *General {
	return &General{eval: e}
}

// Evaluator returns the wrapped evaluator.
func (g *General) Evaluator() Evaluator {
	return g.eval
}

func (g *General) Update() {
	g.eval.Update()
}

func (g *General) IsLinear() bool {
	return false
}

func (g *General) transform() {}

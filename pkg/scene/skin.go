package scene

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/gltfkit/pkg/blend"
	"github.com/Faultbox/gltfkit/pkg/gltf"
	"github.com/Faultbox/gltfkit/pkg/math"
)

// skinWeights concatenates every JOINTS_n/WEIGHTS_n pair of a primitive
// into one weight tuple per vertex. ok is false for an unskinned primitive.
func skinWeights(doc *gltf.Document, prim *gltf.Primitive, count int) (w blend.Weights, ok bool, err error) {
	sets := 0
	for {
		_, hasJ := prim.Attributes[fmt.Sprintf("JOINTS_%d", sets)]
		_, hasW := prim.Attributes[fmt.Sprintf("WEIGHTS_%d", sets)]
		if !hasJ || !hasW {
			break
		}
		sets++
	}
	if sets == 0 {
		return blend.Weights{}, false, nil
	}

	m := 4 * sets
	w = blend.Weights{
		Values:     make([]float32, count*m),
		Indices:    make([]int, count*m),
		Components: m,
	}
	for s := 0; s < sets; s++ {
		joints, err := gltf.ReadUints(doc, prim.Attributes[fmt.Sprintf("JOINTS_%d", s)])
		if err != nil {
			return blend.Weights{}, false, fmt.Errorf("JOINTS_%d: %w", s, err)
		}
		weights, err := gltf.ReadFloats(doc, prim.Attributes[fmt.Sprintf("WEIGHTS_%d", s)])
		if err != nil {
			return blend.Weights{}, false, fmt.Errorf("WEIGHTS_%d: %w", s, err)
		}
		if joints.Count != count || weights.Count != count || joints.Components != 4 || weights.Components != 4 {
			return blend.Weights{}, false, fmt.Errorf("skin set %d: %w: expected %d VEC4 entries", s, gltf.ErrTypeMismatch, count)
		}
		for i := 0; i < count; i++ {
			for k := 0; k < 4; k++ {
				w.Values[i*m+s*4+k] = weights.Data[i*4+k]
				w.Indices[i*m+s*4+k] = int(joints.Data[i*4+k])
			}
		}
	}
	return w, true, nil
}

// skin blends attrs across the joint matrices. Tangent w is preserved.
func (a *Assembler) skin(ctx context.Context, joints []math.Mat4, weights blend.Weights, attrs *Attributes) error {
	b := blend.New(blend.WithLogger(a.log))
	for i, j := range joints {
		b.SetTransform(i, blend.NewLinear(j))
	}

	in := blend.PointInput{Points: attrs.Positions, Normals: attrs.Normals, Weights: weights}
	if attrs.Tangents != nil {
		in.Vectors = [][]math.Vec3{tangentXYZ(attrs.Tangents)}
	}
	out, err := b.BlendPoints(ctx, in)
	if err != nil {
		return err
	}

	attrs.Positions = out.Points
	if attrs.Normals != nil {
		attrs.Normals = out.Normals
	}
	if attrs.Tangents != nil {
		attrs.Tangents = withTangentXYZ(attrs.Tangents, out.Vectors[0])
	}
	return nil
}

// place maps attrs into world space through the node's global transform.
func (a *Assembler) place(ctx context.Context, global math.Mat4, attrs *Attributes) error {
	b := blend.New(blend.WithLogger(a.log))
	b.SetTransform(0, blend.NewLinear(global))

	n := len(attrs.Positions)
	ones := make([]float32, n)
	for i := range ones {
		ones[i] = 1
	}
	in := blend.PointInput{
		Points:  attrs.Positions,
		Normals: attrs.Normals,
		Weights: blend.Weights{Values: ones, Components: 1},
	}
	if attrs.Tangents != nil {
		in.Vectors = [][]math.Vec3{tangentXYZ(attrs.Tangents)}
	}
	out, err := b.BlendPoints(ctx, in)
	if err != nil {
		return err
	}

	attrs.Positions = out.Points
	if attrs.Normals != nil {
		attrs.Normals = out.Normals
	}
	if attrs.Tangents != nil {
		xyz := out.Vectors[0]
		for i := range xyz {
			xyz[i] = xyz[i].Normalize()
		}
		attrs.Tangents = withTangentXYZ(attrs.Tangents, xyz)
	}
	return nil
}

func tangentXYZ(t [][4]float32) []math.Vec3 {
	out := make([]math.Vec3, len(t))
	for i, v := range t {
		out[i] = math.Vec3{X: v[0], Y: v[1], Z: v[2]}
	}
	return out
}

func withTangentXYZ(t [][4]float32, xyz []math.Vec3) [][4]float32 {
	out := make([][4]float32, len(t))
	for i := range t {
		out[i] = [4]float32{xyz[i].X, xyz[i].Y, xyz[i].Z, t[i][3]}
	}
	return out
}

func (a *Assembler) warn(doc *gltf.Document, err error, msg string, node, prim int) {
	doc.AddWarning(err, msg, zap.Int("node", node), zap.Int("primitive", prim))
}

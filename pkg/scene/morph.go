package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/gltfkit/pkg/gltf"
	"github.com/Faultbox/gltfkit/pkg/math"
)

// ErrMismatchedMorphWeightCount is reported when the active weights do not
// match the number of morph targets.
var ErrMismatchedMorphWeightCount = errors.New("morph weight count does not match target count")

// Attributes are the deformable vertex attributes of a primitive. Normals
// and Tangents may be nil.
type Attributes struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	Tangents  [][4]float32
}

// MorphWeights returns the active weights: the node override, else the
// mesh default, else nil.
func MorphWeights(node *gltf.Node, mesh *gltf.Mesh) []float32 {
	if node.Weights != nil {
		return node.Weights
	}
	return mesh.Weights
}

// Morph adds every weighted morph target to attrs in place. An attribute a
// target does not define contributes nothing. Tangent targets displace xyz
// only. On error attrs is left unchanged.
func Morph(doc *gltf.Document, prim *gltf.Primitive, weights []float32, attrs *Attributes) error {
	if len(prim.Targets) == 0 || weights == nil {
		return nil
	}
	if len(weights) != len(prim.Targets) {
		return fmt.Errorf("%w: %d weights, %d targets", ErrMismatchedMorphWeightCount, len(weights), len(prim.Targets))
	}

	positions := append([]math.Vec3(nil), attrs.Positions...)
	normals := append([]math.Vec3(nil), attrs.Normals...)
	tangents := append([][4]float32(nil), attrs.Tangents...)

	for k, target := range prim.Targets {
		w := weights[k]
		if w == 0 {
			continue
		}
		if err := displace(doc, target, "POSITION", w, positions); err != nil {
			return err
		}
		if attrs.Normals != nil {
			if err := displace(doc, target, "NORMAL", w, normals); err != nil {
				return err
			}
		}
		if attrs.Tangents != nil {
			idx, ok := target["TANGENT"]
			if !ok {
				continue
			}
			d, err := gltf.ReadVec3(doc, idx)
			if err != nil {
				return fmt.Errorf("target %d TANGENT: %w", k, err)
			}
			if len(d) != len(tangents) {
				return fmt.Errorf("target %d TANGENT: %w: %d displacements for %d vertices", k, gltf.ErrOutOfBounds, len(d), len(tangents))
			}
			for i := range tangents {
				tangents[i][0] += w * d[i][0]
				tangents[i][1] += w * d[i][1]
				tangents[i][2] += w * d[i][2]
			}
		}
	}

	attrs.Positions = positions
	if attrs.Normals != nil {
		attrs.Normals = normals
	}
	if attrs.Tangents != nil {
		attrs.Tangents = tangents
	}
	return nil
}

func displace(doc *gltf.Document, target map[string]int, name string, w float32, dst []math.Vec3) error {
	idx, ok := target[name]
	if !ok {
		return nil
	}
	d, err := gltf.ReadVec3(doc, idx)
	if err != nil {
		return fmt.Errorf("target %s: %w", name, err)
	}
	if len(d) != len(dst) {
		return fmt.Errorf("target %s: %w: %d displacements for %d vertices", name, gltf.ErrOutOfBounds, len(d), len(dst))
	}
	for i := range dst {
		dst[i] = dst[i].Add(math.V3(d[i]).Scale(w))
	}
	return nil
}

package gltf

import (
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/gltfkit/pkg/math"
)

// rotationTolerance is how far a rotation's length may stray from 1 before
// it is renormalized. Each node warns about this once.
const rotationTolerance = 1e-3

// UpdateTransform recomputes the local matrix of a node from its TRS, or
// takes its explicit matrix verbatim.
func (d *Document) UpdateTransform(node int) error {
	n, err := d.Node(node)
	if err != nil {
		return err
	}
	d.updateLocal(node, n)
	return nil
}

func (d *Document) updateLocal(i int, n *Node) {
	if n.HasMatrix {
		n.local = n.Matrix
	} else {
		q := n.Rotation
		if l := q.Length(); gomath.Abs(float64(l)-1) > rotationTolerance {
			if !n.driftWarned {
				n.driftWarned = true
				d.AddWarning(fmt.Errorf("%w: rotation length %g", ErrMissingOrInvalidField, l),
					"renormalizing node rotation", zap.Int("node", i))
			}
			q = q.Normalize()
		}
		n.local = math.FromTRS(n.Translation, q, n.Scale)
	}
	n.localValid = true
}

// LocalTransform returns the cached local matrix of a node.
func (d *Document) LocalTransform(node int) (math.Mat4, error) {
	n, err := d.Node(node)
	if err != nil {
		return math.Mat4{}, err
	}
	if !n.localValid {
		d.updateLocal(node, n)
	}
	return n.local, nil
}

// BuildGlobalTransforms computes global matrices for every node reachable
// from the roots of a scene in one top-down pass.
func (d *Document) BuildGlobalTransforms(scene int) error {
	if err := d.requirePhase(PhaseMetadataLoaded); err != nil {
		return err
	}
	s, err := d.Scene(scene)
	if err != nil {
		return err
	}

	visited := make(map[int]bool)
	for _, root := range s.Nodes {
		parent := math.Identity()
		if n := d.Nodes[root]; n.Parent != NoIndex {
			if parent, err = d.GlobalTransform(n.Parent); err != nil {
				return err
			}
		}
		if err := d.buildGlobal(root, parent, visited); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) buildGlobal(i int, parent math.Mat4, visited map[int]bool) error {
	if visited[i] {
		return fmt.Errorf("%w: node %d reached twice", ErrStructure, i)
	}
	visited[i] = true

	n := d.Nodes[i]
	if !n.localValid {
		d.updateLocal(i, n)
	}
	n.global = parent.Mul(n.local)
	n.globalValid = true

	for _, c := range n.Children {
		if err := d.buildGlobal(c, n.global, visited); err != nil {
			return err
		}
	}
	return nil
}

// GlobalTransform returns the global matrix of a node, computing it and any
// stale ancestors on demand.
func (d *Document) GlobalTransform(node int) (math.Mat4, error) {
	n, err := d.Node(node)
	if err != nil {
		return math.Mat4{}, err
	}
	if n.globalValid {
		return n.global, nil
	}

	// Walk up to the first ancestor with a valid cache.
	chain := []int{node}
	seen := map[int]bool{node: true}
	global := math.Identity()
	for p := n.Parent; p != NoIndex; p = d.Nodes[p].Parent {
		if seen[p] {
			return math.Mat4{}, fmt.Errorf("%w: cycle through node %d", ErrStructure, p)
		}
		seen[p] = true
		if d.Nodes[p].globalValid {
			global = d.Nodes[p].global
			break
		}
		chain = append(chain, p)
	}

	for k := len(chain) - 1; k >= 0; k-- {
		i := chain[k]
		cn := d.Nodes[i]
		if !cn.localValid {
			d.updateLocal(i, cn)
		}
		global = global.Mul(cn.local)
		cn.global = global
		cn.globalValid = true
	}
	return global, nil
}

// InvalidateTransform marks the local matrix of a node stale and the global
// matrices of the node and all its descendants.
func (d *Document) InvalidateTransform(node int) error {
	n, err := d.Node(node)
	if err != nil {
		return err
	}
	n.localValid = false
	d.invalidateGlobal(node, make(map[int]bool))
	return nil
}

func (d *Document) invalidateGlobal(i int, visited map[int]bool) {
	if visited[i] {
		return
	}
	visited[i] = true
	n := d.Nodes[i]
	n.globalValid = false
	for _, c := range n.Children {
		d.invalidateGlobal(c, visited)
	}
}

// InverseBindMatrices returns the inverse bind matrices of a skin, one per
// joint. A skin without the accessor uses identities.
func (d *Document) InverseBindMatrices(skin int) ([]math.Mat4, error) {
	s, err := d.Skin(skin)
	if err != nil {
		return nil, err
	}
	if s.ibm != nil {
		return s.ibm, nil
	}

	var ibm []math.Mat4
	if s.InverseBindMatrices == NoIndex {
		ibm = make([]math.Mat4, len(s.Joints))
		for i := range ibm {
			ibm[i] = math.Identity()
		}
	} else {
		if ibm, err = ReadMat4(d, s.InverseBindMatrices); err != nil {
			return nil, err
		}
		if len(ibm) != len(s.Joints) {
			return nil, fmt.Errorf("%w: skin %d has %d joints and %d inverse bind matrices",
				ErrMissingOrInvalidField, skin, len(s.Joints), len(ibm))
		}
	}
	s.ibm = ibm
	return ibm, nil
}

// ComputeJointMatrices returns, for each joint of a skin,
// inverse(Global(meshNode)) * Global(joint) * InverseBindMatrix(joint).
func (d *Document) ComputeJointMatrices(skin, meshNode int) ([]math.Mat4, error) {
	if err := d.requirePhase(PhaseBuffersLoaded); err != nil {
		return nil, err
	}
	s, err := d.Skin(skin)
	if err != nil {
		return nil, err
	}
	ibm, err := d.InverseBindMatrices(skin)
	if err != nil {
		return nil, err
	}
	meshGlobal, err := d.GlobalTransform(meshNode)
	if err != nil {
		return nil, err
	}
	invMesh := meshGlobal.Inverse()

	joints := make([]math.Mat4, len(s.Joints))
	for i, j := range s.Joints {
		g, err := d.GlobalTransform(j)
		if err != nil {
			return nil, err
		}
		joints[i] = invMesh.Mul(g).Mul(ibm[i])
	}
	return joints, nil
}

// Package scene turns a loaded glTF document into a tree of deformed
// geometry blocks.
package scene

import (
	"github.com/Faultbox/gltfkit/pkg/gltf"
	"github.com/Faultbox/gltfkit/pkg/math"
)

// Kind is the role of a Block in the output tree.
type Kind int

const (
	KindScene Kind = iota
	KindNode
	KindPrimitive
)

func (k Kind) String() string {
	switch k {
	case KindScene:
		return "scene"
	case KindNode:
		return "node"
	case KindPrimitive:
		return "primitive"
	default:
		return "unknown"
	}
}

// Block is one named element of the output hierarchy. Only primitive
// blocks carry geometry.
type Block struct {
	Name     string
	Kind     Kind
	Children []*Block
	Geometry *Geometry
	Metadata Metadata
}

// Walk calls fn for b and every descendant, depth first.
func (b *Block) Walk(fn func(b *Block, depth int)) {
	b.walk(fn, 0)
}

func (b *Block) walk(fn func(*Block, int), depth int) {
	fn(b, depth)
	for _, c := range b.Children {
		c.walk(fn, depth+1)
	}
}

// Geometry is final, world-space primitive data.
type Geometry struct {
	Mode      gltf.PrimitiveMode
	Points    []math.Vec3
	Normals   []math.Vec3
	Tangents  [][4]float32
	TexCoords [][][2]float32
	Colors    [][][4]float32
	Indices   []uint32
}

// Metadata lets a consumer rebuild material and pose state.
type Metadata struct {
	Node      int
	Mesh      int
	Primitive int

	GlobalTransform math.Mat4
	MorphWeights    []float32
	JointMatrices   []math.Mat4

	Material *MaterialBinding
	Camera   *CameraBinding
	Light    *gltf.Light
}

// TextureBinding resolves a material texture slot down to its image.
type TextureBinding struct {
	Texture   int
	Image     int
	ImageURI  string
	MimeType  string
	Sampler   int
	TexCoord  int
	Scale     float32
	Transform *gltf.TextureTransform
}

// MaterialBinding carries material factors and texture bindings by slot
// name: baseColor, metallicRoughness, normal, occlusion and emissive.
type MaterialBinding struct {
	Index           int
	Name            string
	BaseColorFactor [4]float32
	MetallicFactor  float32
	RoughnessFactor float32
	EmissiveFactor  [3]float32
	AlphaMode       string
	AlphaCutoff     float32
	DoubleSided     bool
	Unlit           bool
	Textures        map[string]TextureBinding
}

// CameraBinding is a camera attached to a node.
type CameraBinding struct {
	Index      int
	Type       gltf.CameraType
	Projection math.Mat4
}

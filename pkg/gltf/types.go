package gltf

import (
	"fmt"

	"github.com/Faultbox/gltfkit/pkg/math"
)

// NoIndex marks an absent optional index.
const NoIndex = -1

// ComponentType is the numeric type of accessor components.
type ComponentType int

const (
	ComponentByte          ComponentType = 5120
	ComponentUnsignedByte  ComponentType = 5121
	ComponentShort         ComponentType = 5122
	ComponentUnsignedShort ComponentType = 5123
	ComponentUnsignedInt   ComponentType = 5125
	ComponentFloat         ComponentType = 5126
)

// Size returns the component size in bytes, or 0 for an unknown type.
func (c ComponentType) Size() int {
	switch c {
	case ComponentByte, ComponentUnsignedByte:
		return 1
	case ComponentShort, ComponentUnsignedShort:
		return 2
	case ComponentUnsignedInt, ComponentFloat:
		return 4
	default:
		return 0
	}
}

// IsUnsigned reports whether c is one of the unsigned integer types.
func (c ComponentType) IsUnsigned() bool {
	return c == ComponentUnsignedByte || c == ComponentUnsignedShort || c == ComponentUnsignedInt
}

// String returns the glTF name of the component type.
func (c ComponentType) String() string {
	switch c {
	case ComponentByte:
		return "BYTE"
	case ComponentUnsignedByte:
		return "UNSIGNED_BYTE"
	case ComponentShort:
		return "SHORT"
	case ComponentUnsignedShort:
		return "UNSIGNED_SHORT"
	case ComponentUnsignedInt:
		return "UNSIGNED_INT"
	case ComponentFloat:
		return "FLOAT"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// AccessorType is the element shape of an accessor.
type AccessorType int

const (
	TypeScalar AccessorType = iota + 1
	TypeVec2
	TypeVec3
	TypeVec4
	TypeMat2
	TypeMat3
	TypeMat4
)

var accessorTypeNames = map[string]AccessorType{
	"SCALAR": TypeScalar,
	"VEC2":   TypeVec2,
	"VEC3":   TypeVec3,
	"VEC4":   TypeVec4,
	"MAT2":   TypeMat2,
	"MAT3":   TypeMat3,
	"MAT4":   TypeMat4,
}

// ParseAccessorType maps a glTF type name to an AccessorType.
func ParseAccessorType(name string) (AccessorType, bool) {
	t, ok := accessorTypeNames[name]
	return t, ok
}

// NumberOfComponents returns the component count per element.
func (t AccessorType) NumberOfComponents() int {
	switch t {
	case TypeScalar:
		return 1
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4, TypeMat2:
		return 4
	case TypeMat3:
		return 9
	case TypeMat4:
		return 16
	default:
		return 0
	}
}

// columns returns the column count for matrix types and 1 otherwise.
func (t AccessorType) columns() int {
	switch t {
	case TypeMat2:
		return 2
	case TypeMat3:
		return 3
	case TypeMat4:
		return 4
	default:
		return 1
	}
}

// String returns the glTF name of the accessor type.
func (t AccessorType) String() string {
	for name, v := range accessorTypeNames {
		if v == t {
			return name
		}
	}
	return fmt.Sprintf("Unknown(%d)", int(t))
}

// PrimitiveMode is the topology of a primitive.
type PrimitiveMode int

const (
	ModePoints PrimitiveMode = iota
	ModeLines
	ModeLineLoop
	ModeLineStrip
	ModeTriangles
	ModeTriangleStrip
	ModeTriangleFan
)

// Path is the node property an animation channel targets.
type Path int

const (
	PathTranslation Path = iota + 1
	PathRotation
	PathScale
	PathWeights
)

// String returns the glTF name of the path.
func (p Path) String() string {
	switch p {
	case PathTranslation:
		return "translation"
	case PathRotation:
		return "rotation"
	case PathScale:
		return "scale"
	case PathWeights:
		return "weights"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// Interpolation is the keyframe interpolation mode of a sampler.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	InterpolationCubicSpline
)

// String returns the glTF name of the interpolation.
func (i Interpolation) String() string {
	switch i {
	case InterpolationLinear:
		return "LINEAR"
	case InterpolationStep:
		return "STEP"
	case InterpolationCubicSpline:
		return "CUBICSPLINE"
	default:
		return fmt.Sprintf("Unknown(%d)", int(i))
	}
}

// Asset holds the asset metadata block.
type Asset struct {
	Version    string
	MinVersion string
	Generator  string
	Copyright  string
}

// Buffer is raw byte storage. Bytes are only present after buffer
// materialization.
type Buffer struct {
	Name       string
	URI        string
	ByteLength int

	data   []byte
	loaded bool
}

// Data returns the materialized bytes, or nil before materialization.
func (b *Buffer) Data() []byte {
	return b.data
}

// Loaded reports whether the buffer bytes were fetched.
func (b *Buffer) Loaded() bool {
	return b.loaded
}

// BufferView is a byte range of a buffer.
type BufferView struct {
	Name       string
	Buffer     int
	ByteOffset int
	ByteLength int
	ByteStride int
	Target     int
}

// SparseIndices locates the sparse index array.
type SparseIndices struct {
	BufferView    int
	ByteOffset    int
	ComponentType ComponentType
}

// SparseValues locates the sparse replacement values.
type SparseValues struct {
	BufferView int
	ByteOffset int
}

// Sparse describes a patch applied on top of an accessor's base values.
type Sparse struct {
	Count   int
	Indices SparseIndices
	Values  SparseValues
}

// Accessor is a typed view into a buffer view.
type Accessor struct {
	Name          string
	BufferView    int
	ByteOffset    int
	ComponentType ComponentType
	Normalized    bool
	Count         int
	Type          AccessorType
	Min           []float64
	Max           []float64
	Sparse        *Sparse
}

// Primitive is one drawable part of a mesh.
type Primitive struct {
	Attributes  map[string]int
	Indices     int
	Material    int
	Mode        PrimitiveMode
	Targets     []map[string]int
	TargetNames []string
}

// Mesh is a list of primitives with default morph weights.
type Mesh struct {
	Name       string
	Primitives []Primitive
	Weights    []float32
}

// Node is an element of the node tree. Either HasMatrix is set and Matrix is
// authoritative, or the TRS fields are.
type Node struct {
	Name     string
	Children []int
	Parent   int
	Mesh     int
	Skin     int
	Camera   int
	Light    int

	HasMatrix   bool
	Matrix      math.Mat4
	Translation math.Vec3
	Rotation    math.Quat
	Scale       math.Vec3
	Weights     []float32

	// Values as loaded, before any animation was applied.
	InitialTranslation math.Vec3
	InitialRotation    math.Quat
	InitialScale       math.Vec3
	InitialWeights     []float32

	local       math.Mat4
	localValid  bool
	driftWarned bool
	global      math.Mat4
	globalValid bool
}

// Skin binds a mesh to a joint hierarchy.
type Skin struct {
	Name                string
	Joints              []int
	InverseBindMatrices int
	Skeleton            int

	ibm []math.Mat4
}

// CameraType distinguishes camera projections.
type CameraType string

const (
	CameraPerspective  CameraType = "perspective"
	CameraOrthographic CameraType = "orthographic"
)

// PerspectiveProjection holds perspective camera parameters. AspectRatio and
// ZFar are zero when not specified.
type PerspectiveProjection struct {
	AspectRatio float32
	YFov        float32
	ZFar        float32
	ZNear       float32
}

// OrthographicProjection holds orthographic camera parameters.
type OrthographicProjection struct {
	XMag  float32
	YMag  float32
	ZFar  float32
	ZNear float32
}

// Camera is a projection attached to nodes.
type Camera struct {
	Name         string
	Type         CameraType
	Perspective  *PerspectiveProjection
	Orthographic *OrthographicProjection
}

// Projection returns the camera projection matrix. aspect is used when the
// camera does not define its own aspect ratio.
func (c *Camera) Projection(aspect float32) math.Mat4 {
	switch c.Type {
	case CameraOrthographic:
		o := c.Orthographic
		return math.Ortho(-o.XMag, o.XMag, -o.YMag, o.YMag, o.ZNear, o.ZFar)
	default:
		p := c.Perspective
		if p.AspectRatio > 0 {
			aspect = p.AspectRatio
		}
		if p.ZFar == 0 {
			return math.PerspectiveInfinite(p.YFov, aspect, p.ZNear)
		}
		return math.Perspective(p.YFov, aspect, p.ZNear, p.ZFar)
	}
}

// Image references encoded pixel data; decoding is left to the caller.
type Image struct {
	Name       string
	URI        string
	MimeType   string
	BufferView int
}

// Texture pairs an image source with a sampler.
type Texture struct {
	Name    string
	Sampler int
	Source  int
}

// Sampler holds texture filtering and wrapping modes.
type Sampler struct {
	Name      string
	MagFilter int
	MinFilter int
	WrapS     int
	WrapT     int
}

// TextureTransform is the KHR_texture_transform extension payload.
type TextureTransform struct {
	Offset   [2]float32
	Rotation float32
	Scale    [2]float32
	TexCoord int
}

// TextureInfo binds a texture to a material slot. Scale is the normal map
// scale or the occlusion strength depending on the slot.
type TextureInfo struct {
	Index     int
	TexCoord  int
	Scale     float32
	Transform *TextureTransform
}

// Material holds PBR metallic-roughness parameters.
type Material struct {
	Name                     string
	BaseColorFactor          [4]float32
	BaseColorTexture         *TextureInfo
	MetallicFactor           float32
	RoughnessFactor          float32
	MetallicRoughnessTexture *TextureInfo
	NormalTexture            *TextureInfo
	OcclusionTexture         *TextureInfo
	EmissiveTexture          *TextureInfo
	EmissiveFactor           [3]float32
	AlphaMode                string
	AlphaCutoff              float32
	DoubleSided              bool
	Unlit                    bool
}

// Light is a KHR_lights_punctual light. Range is zero when infinite.
type Light struct {
	Name           string
	Type           string
	Color          [3]float32
	Intensity      float32
	Range          float32
	InnerConeAngle float32
	OuterConeAngle float32
}

// Channel connects a sampler to a node property.
type Channel struct {
	Sampler int
	Node    int
	Path    Path
}

// AnimationSampler pairs keyframe times with values.
type AnimationSampler struct {
	Input         int
	Output        int
	Interpolation Interpolation

	inputs  []float32
	outputs []float32
	ready   bool
}

// Animation is a set of channels with a shared timeline.
type Animation struct {
	Name     string
	Channels []Channel
	Samplers []*AnimationSampler
	Duration float32

	enabled bool
	time    float32
}

// Scene lists root nodes.
type Scene struct {
	Name  string
	Nodes []int
}

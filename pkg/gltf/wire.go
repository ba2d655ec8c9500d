package gltf

import (
	"encoding/json"
	"fmt"

	"github.com/Faultbox/gltfkit/pkg/math"
)

// JSON shapes of the glTF object graph. Required fields are pointers so a
// missing value can be told apart from a zero value.

type wireDocument struct {
	Asset              *wireAsset        `json:"asset"`
	ExtensionsUsed     []string          `json:"extensionsUsed"`
	ExtensionsRequired []string          `json:"extensionsRequired"`
	Scene              *int              `json:"scene"`
	Accessors          []json.RawMessage `json:"accessors"`
	Animations         []json.RawMessage `json:"animations"`
	Buffers            []json.RawMessage `json:"buffers"`
	BufferViews        []json.RawMessage `json:"bufferViews"`
	Cameras            []json.RawMessage `json:"cameras"`
	Images             []json.RawMessage `json:"images"`
	Materials          []json.RawMessage `json:"materials"`
	Meshes             []json.RawMessage `json:"meshes"`
	Nodes              []json.RawMessage `json:"nodes"`
	Samplers           []json.RawMessage `json:"samplers"`
	Scenes             []json.RawMessage `json:"scenes"`
	Skins              []json.RawMessage `json:"skins"`
	Textures           []json.RawMessage `json:"textures"`
	Extensions         struct {
		LightsPunctual *struct {
			Lights []json.RawMessage `json:"lights"`
		} `json:"KHR_lights_punctual"`
	} `json:"extensions"`
}

type wireAsset struct {
	Version    *string `json:"version"`
	MinVersion string  `json:"minVersion"`
	Generator  string  `json:"generator"`
	Copyright  string  `json:"copyright"`
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingOrInvalidField, field)
}

func optIndex(p *int) int {
	if p == nil {
		return NoIndex
	}
	return *p
}

type wireBuffer struct {
	Name       string `json:"name"`
	URI        string `json:"uri"`
	ByteLength *int   `json:"byteLength"`
}

func (w *wireBuffer) build() (*Buffer, error) {
	if w.ByteLength == nil || *w.ByteLength < 0 {
		return nil, missing("byteLength")
	}
	return &Buffer{Name: w.Name, URI: w.URI, ByteLength: *w.ByteLength}, nil
}

type wireBufferView struct {
	Name       string `json:"name"`
	Buffer     *int   `json:"buffer"`
	ByteOffset int    `json:"byteOffset"`
	ByteLength *int   `json:"byteLength"`
	ByteStride int    `json:"byteStride"`
	Target     int    `json:"target"`
}

func (w *wireBufferView) build() (*BufferView, error) {
	if w.Buffer == nil {
		return nil, missing("buffer")
	}
	if w.ByteLength == nil || *w.ByteLength < 0 {
		return nil, missing("byteLength")
	}
	if w.ByteOffset < 0 || w.ByteStride < 0 {
		return nil, missing("byteOffset/byteStride")
	}
	return &BufferView{
		Name:       w.Name,
		Buffer:     *w.Buffer,
		ByteOffset: w.ByteOffset,
		ByteLength: *w.ByteLength,
		ByteStride: w.ByteStride,
		Target:     w.Target,
	}, nil
}

type wireSparse struct {
	Count   *int `json:"count"`
	Indices *struct {
		BufferView    *int `json:"bufferView"`
		ByteOffset    int  `json:"byteOffset"`
		ComponentType *int `json:"componentType"`
	} `json:"indices"`
	Values *struct {
		BufferView *int `json:"bufferView"`
		ByteOffset int  `json:"byteOffset"`
	} `json:"values"`
}

type wireAccessor struct {
	Name          string      `json:"name"`
	BufferView    *int        `json:"bufferView"`
	ByteOffset    int         `json:"byteOffset"`
	ComponentType *int        `json:"componentType"`
	Normalized    bool        `json:"normalized"`
	Count         *int        `json:"count"`
	Type          *string     `json:"type"`
	Min           []float64   `json:"min"`
	Max           []float64   `json:"max"`
	Sparse        *wireSparse `json:"sparse"`
}

func (w *wireAccessor) build() (*Accessor, error) {
	if w.ComponentType == nil {
		return nil, missing("componentType")
	}
	if w.Count == nil || *w.Count < 1 {
		return nil, missing("count")
	}
	if w.Type == nil {
		return nil, missing("type")
	}
	typ, ok := ParseAccessorType(*w.Type)
	if !ok {
		return nil, missing("type " + *w.Type)
	}
	a := &Accessor{
		Name:          w.Name,
		BufferView:    optIndex(w.BufferView),
		ByteOffset:    w.ByteOffset,
		ComponentType: ComponentType(*w.ComponentType),
		Normalized:    w.Normalized,
		Count:         *w.Count,
		Type:          typ,
		Min:           w.Min,
		Max:           w.Max,
	}
	if s := w.Sparse; s != nil {
		if s.Count == nil || *s.Count < 1 || s.Indices == nil || s.Values == nil ||
			s.Indices.BufferView == nil || s.Indices.ComponentType == nil || s.Values.BufferView == nil {
			return nil, missing("sparse")
		}
		a.Sparse = &Sparse{
			Count: *s.Count,
			Indices: SparseIndices{
				BufferView:    *s.Indices.BufferView,
				ByteOffset:    s.Indices.ByteOffset,
				ComponentType: ComponentType(*s.Indices.ComponentType),
			},
			Values: SparseValues{
				BufferView: *s.Values.BufferView,
				ByteOffset: s.Values.ByteOffset,
			},
		}
	}
	return a, nil
}

type wirePrimitive struct {
	Attributes map[string]int   `json:"attributes"`
	Indices    *int             `json:"indices"`
	Material   *int             `json:"material"`
	Mode       *int             `json:"mode"`
	Targets    []map[string]int `json:"targets"`
}

type wireMesh struct {
	Name       string          `json:"name"`
	Primitives []wirePrimitive `json:"primitives"`
	Weights    []float32       `json:"weights"`
	Extras     struct {
		TargetNames []string `json:"targetNames"`
	} `json:"extras"`
}

func (w *wireMesh) build() (*Mesh, error) {
	if len(w.Primitives) == 0 {
		return nil, missing("primitives")
	}
	m := &Mesh{Name: w.Name, Weights: w.Weights}
	for i, p := range w.Primitives {
		if p.Attributes == nil {
			return nil, missing(fmt.Sprintf("primitives[%d].attributes", i))
		}
		mode := ModeTriangles
		if p.Mode != nil {
			if *p.Mode < int(ModePoints) || *p.Mode > int(ModeTriangleFan) {
				return nil, missing(fmt.Sprintf("primitives[%d].mode", i))
			}
			mode = PrimitiveMode(*p.Mode)
		}
		m.Primitives = append(m.Primitives, Primitive{
			Attributes:  p.Attributes,
			Indices:     optIndex(p.Indices),
			Material:    optIndex(p.Material),
			Mode:        mode,
			Targets:     p.Targets,
			TargetNames: w.Extras.TargetNames,
		})
	}
	return m, nil
}

type wireNode struct {
	Name        string       `json:"name"`
	Children    []int        `json:"children"`
	Camera      *int         `json:"camera"`
	Skin        *int         `json:"skin"`
	Mesh        *int         `json:"mesh"`
	Matrix      *[16]float32 `json:"matrix"`
	Rotation    *[4]float32  `json:"rotation"`
	Scale       *[3]float32  `json:"scale"`
	Translation *[3]float32  `json:"translation"`
	Weights     []float32    `json:"weights"`
	Extensions  struct {
		LightsPunctual *struct {
			Light *int `json:"light"`
		} `json:"KHR_lights_punctual"`
	} `json:"extensions"`
}

func (w *wireNode) build() (*Node, error) {
	n := &Node{
		Name:     w.Name,
		Children: w.Children,
		Parent:   NoIndex,
		Mesh:     optIndex(w.Mesh),
		Skin:     optIndex(w.Skin),
		Camera:   optIndex(w.Camera),
		Light:    NoIndex,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		Weights:  w.Weights,
	}
	if l := w.Extensions.LightsPunctual; l != nil && l.Light != nil {
		n.Light = *l.Light
	}
	if w.Matrix != nil {
		n.HasMatrix = true
		n.Matrix = math.Mat4(*w.Matrix)
	}
	if w.Translation != nil {
		n.Translation = math.V3(*w.Translation)
	}
	if w.Rotation != nil {
		n.Rotation = math.Q4(*w.Rotation)
	}
	if w.Scale != nil {
		n.Scale = math.V3(*w.Scale)
	}

	n.InitialTranslation = n.Translation
	n.InitialRotation = n.Rotation
	n.InitialScale = n.Scale
	if n.Weights != nil {
		n.InitialWeights = append([]float32(nil), n.Weights...)
	}
	return n, nil
}

type wireSkin struct {
	Name                string `json:"name"`
	InverseBindMatrices *int   `json:"inverseBindMatrices"`
	Skeleton            *int   `json:"skeleton"`
	Joints              []int  `json:"joints"`
}

func (w *wireSkin) build() (*Skin, error) {
	if len(w.Joints) == 0 {
		return nil, missing("joints")
	}
	return &Skin{
		Name:                w.Name,
		Joints:              w.Joints,
		InverseBindMatrices: optIndex(w.InverseBindMatrices),
		Skeleton:            optIndex(w.Skeleton),
	}, nil
}

type wireChannel struct {
	Sampler *int `json:"sampler"`
	Target  *struct {
		Node *int    `json:"node"`
		Path *string `json:"path"`
	} `json:"target"`
}

type wireAnimationSampler struct {
	Input         *int   `json:"input"`
	Output        *int   `json:"output"`
	Interpolation string `json:"interpolation"`
}

type wireAnimation struct {
	Name     string                 `json:"name"`
	Channels []wireChannel          `json:"channels"`
	Samplers []wireAnimationSampler `json:"samplers"`
}

var pathNames = map[string]Path{
	"translation": PathTranslation,
	"rotation":    PathRotation,
	"scale":       PathScale,
	"weights":     PathWeights,
}

var interpolationNames = map[string]Interpolation{
	"":            InterpolationLinear,
	"LINEAR":      InterpolationLinear,
	"STEP":        InterpolationStep,
	"CUBICSPLINE": InterpolationCubicSpline,
}

// build converts samplers strictly and channels leniently: a channel that
// cannot be resolved is reported through dropped and left out.
func (w *wireAnimation) build(dropped func(i int, err error)) (*Animation, error) {
	if len(w.Samplers) == 0 {
		return nil, missing("samplers")
	}
	a := &Animation{Name: w.Name}
	for i, s := range w.Samplers {
		if s.Input == nil || s.Output == nil {
			return nil, missing(fmt.Sprintf("samplers[%d].input/output", i))
		}
		interp, ok := interpolationNames[s.Interpolation]
		if !ok {
			return nil, missing(fmt.Sprintf("samplers[%d].interpolation %q", i, s.Interpolation))
		}
		a.Samplers = append(a.Samplers, &AnimationSampler{
			Input:         *s.Input,
			Output:        *s.Output,
			Interpolation: interp,
		})
	}
	for i, c := range w.Channels {
		// Channels without a target node are valid glTF but animate nothing here.
		if c.Sampler == nil || c.Target == nil || c.Target.Node == nil || c.Target.Path == nil {
			dropped(i, missing("channel sampler/target"))
			continue
		}
		path, ok := pathNames[*c.Target.Path]
		if !ok {
			dropped(i, missing("channel path "+*c.Target.Path))
			continue
		}
		a.Channels = append(a.Channels, Channel{Sampler: *c.Sampler, Node: *c.Target.Node, Path: path})
	}
	return a, nil
}

type wireScene struct {
	Name  string `json:"name"`
	Nodes []int  `json:"nodes"`
}

func (w *wireScene) build() (*Scene, error) {
	return &Scene{Name: w.Name, Nodes: w.Nodes}, nil
}

type wireCamera struct {
	Name        string  `json:"name"`
	Type        *string `json:"type"`
	Perspective *struct {
		AspectRatio float32  `json:"aspectRatio"`
		YFov        *float32 `json:"yfov"`
		ZFar        float32  `json:"zfar"`
		ZNear       *float32 `json:"znear"`
	} `json:"perspective"`
	Orthographic *struct {
		XMag  *float32 `json:"xmag"`
		YMag  *float32 `json:"ymag"`
		ZFar  *float32 `json:"zfar"`
		ZNear *float32 `json:"znear"`
	} `json:"orthographic"`
}

func (w *wireCamera) build() (*Camera, error) {
	if w.Type == nil {
		return nil, missing("type")
	}
	c := &Camera{Name: w.Name, Type: CameraType(*w.Type)}
	switch c.Type {
	case CameraPerspective:
		p := w.Perspective
		if p == nil || p.YFov == nil || p.ZNear == nil {
			return nil, missing("perspective")
		}
		c.Perspective = &PerspectiveProjection{AspectRatio: p.AspectRatio, YFov: *p.YFov, ZFar: p.ZFar, ZNear: *p.ZNear}
	case CameraOrthographic:
		o := w.Orthographic
		if o == nil || o.XMag == nil || o.YMag == nil || o.ZFar == nil || o.ZNear == nil {
			return nil, missing("orthographic")
		}
		c.Orthographic = &OrthographicProjection{XMag: *o.XMag, YMag: *o.YMag, ZFar: *o.ZFar, ZNear: *o.ZNear}
	default:
		return nil, missing("type " + *w.Type)
	}
	return c, nil
}

type wireImage struct {
	Name       string `json:"name"`
	URI        string `json:"uri"`
	MimeType   string `json:"mimeType"`
	BufferView *int   `json:"bufferView"`
}

func (w *wireImage) build() (*Image, error) {
	if w.URI == "" && w.BufferView == nil {
		return nil, missing("uri or bufferView")
	}
	return &Image{Name: w.Name, URI: w.URI, MimeType: w.MimeType, BufferView: optIndex(w.BufferView)}, nil
}

type wireTexture struct {
	Name    string `json:"name"`
	Sampler *int   `json:"sampler"`
	Source  *int   `json:"source"`
}

func (w *wireTexture) build() (*Texture, error) {
	return &Texture{Name: w.Name, Sampler: optIndex(w.Sampler), Source: optIndex(w.Source)}, nil
}

type wireSampler struct {
	Name      string `json:"name"`
	MagFilter int    `json:"magFilter"`
	MinFilter int    `json:"minFilter"`
	WrapS     *int   `json:"wrapS"`
	WrapT     *int   `json:"wrapT"`
}

// wrapRepeat is the glTF default wrap mode (GL_REPEAT).
const wrapRepeat = 10497

func (w *wireSampler) build() (*Sampler, error) {
	s := &Sampler{Name: w.Name, MagFilter: w.MagFilter, MinFilter: w.MinFilter, WrapS: wrapRepeat, WrapT: wrapRepeat}
	if w.WrapS != nil {
		s.WrapS = *w.WrapS
	}
	if w.WrapT != nil {
		s.WrapT = *w.WrapT
	}
	return s, nil
}

type wireTextureInfo struct {
	Index      *int     `json:"index"`
	TexCoord   int      `json:"texCoord"`
	Scale      *float32 `json:"scale"`
	Strength   *float32 `json:"strength"`
	Extensions struct {
		Transform *struct {
			Offset   *[2]float32 `json:"offset"`
			Rotation float32     `json:"rotation"`
			Scale    *[2]float32 `json:"scale"`
			TexCoord *int        `json:"texCoord"`
		} `json:"KHR_texture_transform"`
	} `json:"extensions"`
}

func (w *wireTextureInfo) build() (*TextureInfo, error) {
	if w == nil {
		return nil, nil
	}
	if w.Index == nil {
		return nil, missing("textureInfo.index")
	}
	ti := &TextureInfo{Index: *w.Index, TexCoord: w.TexCoord, Scale: 1}
	switch {
	case w.Scale != nil:
		ti.Scale = *w.Scale
	case w.Strength != nil:
		ti.Scale = *w.Strength
	}
	if t := w.Extensions.Transform; t != nil {
		tt := &TextureTransform{Rotation: t.Rotation, Scale: [2]float32{1, 1}, TexCoord: NoIndex}
		if t.Offset != nil {
			tt.Offset = *t.Offset
		}
		if t.Scale != nil {
			tt.Scale = *t.Scale
		}
		if t.TexCoord != nil {
			tt.TexCoord = *t.TexCoord
		}
		ti.Transform = tt
	}
	return ti, nil
}

type wireMaterial struct {
	Name string `json:"name"`
	PBR  *struct {
		BaseColorFactor          *[4]float32      `json:"baseColorFactor"`
		BaseColorTexture         *wireTextureInfo `json:"baseColorTexture"`
		MetallicFactor           *float32         `json:"metallicFactor"`
		RoughnessFactor          *float32         `json:"roughnessFactor"`
		MetallicRoughnessTexture *wireTextureInfo `json:"metallicRoughnessTexture"`
	} `json:"pbrMetallicRoughness"`
	NormalTexture    *wireTextureInfo           `json:"normalTexture"`
	OcclusionTexture *wireTextureInfo           `json:"occlusionTexture"`
	EmissiveTexture  *wireTextureInfo           `json:"emissiveTexture"`
	EmissiveFactor   *[3]float32                `json:"emissiveFactor"`
	AlphaMode        string                     `json:"alphaMode"`
	AlphaCutoff      *float32                   `json:"alphaCutoff"`
	DoubleSided      bool                       `json:"doubleSided"`
	Extensions       map[string]json.RawMessage `json:"extensions"`
}

func (w *wireMaterial) build() (*Material, error) {
	m := &Material{
		Name:            w.Name,
		BaseColorFactor: [4]float32{1, 1, 1, 1},
		MetallicFactor:  1,
		RoughnessFactor: 1,
		AlphaMode:       "OPAQUE",
		AlphaCutoff:     0.5,
		DoubleSided:     w.DoubleSided,
	}
	var err error
	if p := w.PBR; p != nil {
		if p.BaseColorFactor != nil {
			m.BaseColorFactor = *p.BaseColorFactor
		}
		if p.MetallicFactor != nil {
			m.MetallicFactor = *p.MetallicFactor
		}
		if p.RoughnessFactor != nil {
			m.RoughnessFactor = *p.RoughnessFactor
		}
		if m.BaseColorTexture, err = p.BaseColorTexture.build(); err != nil {
			return nil, err
		}
		if m.MetallicRoughnessTexture, err = p.MetallicRoughnessTexture.build(); err != nil {
			return nil, err
		}
	}
	if m.NormalTexture, err = w.NormalTexture.build(); err != nil {
		return nil, err
	}
	if m.OcclusionTexture, err = w.OcclusionTexture.build(); err != nil {
		return nil, err
	}
	if m.EmissiveTexture, err = w.EmissiveTexture.build(); err != nil {
		return nil, err
	}
	if w.EmissiveFactor != nil {
		m.EmissiveFactor = *w.EmissiveFactor
	}
	switch w.AlphaMode {
	case "":
	case "OPAQUE", "MASK", "BLEND":
		m.AlphaMode = w.AlphaMode
	default:
		return nil, missing("alphaMode " + w.AlphaMode)
	}
	if w.AlphaCutoff != nil {
		m.AlphaCutoff = *w.AlphaCutoff
	}
	_, m.Unlit = w.Extensions[extMaterialsUnlit]
	return m, nil
}

type wireLight struct {
	Name      string      `json:"name"`
	Type      *string     `json:"type"`
	Color     *[3]float32 `json:"color"`
	Intensity *float32    `json:"intensity"`
	Range     float32     `json:"range"`
	Spot      *struct {
		InnerConeAngle float32  `json:"innerConeAngle"`
		OuterConeAngle *float32 `json:"outerConeAngle"`
	} `json:"spot"`
}

func (w *wireLight) build() (*Light, error) {
	if w.Type == nil {
		return nil, missing("type")
	}
	l := &Light{Name: w.Name, Type: *w.Type, Color: [3]float32{1, 1, 1}, Intensity: 1, Range: w.Range}
	switch l.Type {
	case "directional", "point":
	case "spot":
		l.OuterConeAngle = 0.7853982
		if w.Spot != nil {
			l.InnerConeAngle = w.Spot.InnerConeAngle
			if w.Spot.OuterConeAngle != nil {
				l.OuterConeAngle = *w.Spot.OuterConeAngle
			}
		}
	default:
		return nil, missing("type " + l.Type)
	}
	if w.Color != nil {
		l.Color = *w.Color
	}
	if w.Intensity != nil {
		l.Intensity = *w.Intensity
	}
	return l, nil
}

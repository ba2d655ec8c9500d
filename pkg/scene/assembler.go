package scene

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/gltfkit/pkg/gltf"
	"github.com/Faultbox/gltfkit/pkg/math"
)

// Assembler walks a scene and emits deformed, world-space geometry.
type Assembler struct {
	log    *zap.Logger
	aspect float32
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger used while assembling.
func WithLogger(log *zap.Logger) Option {
	return func(a *Assembler) {
		if log != nil {
			a.log = log
		}
	}
}

// WithAspectRatio sets the aspect ratio used for cameras that leave it
// unspecified.
func WithAspectRatio(aspect float32) Option {
	return func(a *Assembler) {
		if aspect > 0 {
			a.aspect = aspect
		}
	}
}

// NewAssembler creates an assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{log: zap.NewNop(), aspect: 1}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the block tree of a scene; a negative scene selects the
// document's default. Each primitive is morphed, then skinned, then moved
// by its node's global transform. On cancellation the partial tree is
// returned with the context error.
func (a *Assembler) Assemble(ctx context.Context, doc *gltf.Document, scene int) (*Block, error) {
	if doc.Phase() < gltf.PhaseBuffersLoaded {
		return nil, fmt.Errorf("%w: assembling needs loaded buffers, document is %s", gltf.ErrWrongPhase, doc.Phase())
	}
	if scene < 0 {
		scene = doc.DefaultScene
	}
	s, err := doc.Scene(scene)
	if err != nil {
		return nil, err
	}
	if err := doc.BuildGlobalTransforms(scene); err != nil {
		return nil, err
	}

	name := s.Name
	if name == "" {
		name = fmt.Sprintf("scene_%d", scene)
	}
	root := &Block{Name: name, Kind: KindScene, Metadata: Metadata{Node: gltf.NoIndex, Mesh: gltf.NoIndex, Primitive: gltf.NoIndex}}

	for _, r := range s.Nodes {
		child, err := a.node(ctx, doc, r)
		if child != nil {
			root.Children = append(root.Children, child)
		}
		if err != nil {
			return root, err
		}
	}

	if err := doc.MarkGeometryBuilt(); err != nil {
		return nil, err
	}
	a.log.Debug("assembled scene", zap.Int("scene", scene), zap.Int("roots", len(root.Children)))
	return root, nil
}

func (a *Assembler) node(ctx context.Context, doc *gltf.Document, i int) (*Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := doc.Nodes[i]
	global, err := doc.GlobalTransform(i)
	if err != nil {
		return nil, err
	}

	name := n.Name
	if name == "" {
		name = fmt.Sprintf("node_%d", i)
	}
	b := &Block{
		Name: name,
		Kind: KindNode,
		Metadata: Metadata{
			Node:            i,
			Mesh:            n.Mesh,
			Primitive:       gltf.NoIndex,
			GlobalTransform: global,
		},
	}

	if n.Camera != gltf.NoIndex {
		if c, err := doc.Camera(n.Camera); err == nil {
			b.Metadata.Camera = &CameraBinding{Index: n.Camera, Type: c.Type, Projection: c.Projection(a.aspect)}
		} else {
			doc.AddWarning(err, "skipping node camera", zap.Int("node", i))
		}
	}
	if n.Light != gltf.NoIndex {
		if l, err := doc.Light(n.Light); err == nil {
			b.Metadata.Light = l
		} else {
			doc.AddWarning(err, "skipping node light", zap.Int("node", i))
		}
	}

	if n.Mesh != gltf.NoIndex {
		mesh, err := doc.Mesh(n.Mesh)
		if err != nil {
			doc.AddWarning(err, "skipping node mesh", zap.Int("node", i))
		} else {
			for p := range mesh.Primitives {
				pb, err := a.primitive(ctx, doc, i, n, mesh, p, global)
				if pb != nil {
					b.Children = append(b.Children, pb)
				}
				if err != nil {
					return b, err
				}
			}
		}
	}

	for _, c := range n.Children {
		child, err := a.node(ctx, doc, c)
		if child != nil {
			b.Children = append(b.Children, child)
		}
		if err != nil {
			return b, err
		}
	}
	return b, nil
}

// primitive returns nil without error for a primitive that had to be
// skipped; the reason is recorded as a document warning.
func (a *Assembler) primitive(ctx context.Context, doc *gltf.Document, ni int, n *gltf.Node, mesh *gltf.Mesh, pi int, global math.Mat4) (*Block, error) {
	prim := &mesh.Primitives[pi]

	attrs, geom, err := readPrimitive(doc, prim)
	if err != nil {
		a.warn(doc, err, "skipping primitive", ni, pi)
		return nil, nil
	}

	meta := Metadata{
		Node:            ni,
		Mesh:            n.Mesh,
		Primitive:       pi,
		GlobalTransform: global,
	}

	if weights := MorphWeights(n, mesh); len(prim.Targets) > 0 {
		if err := Morph(doc, prim, weights, attrs); err != nil {
			a.warn(doc, err, "skipping morph targets", ni, pi)
		} else if weights != nil {
			meta.MorphWeights = append([]float32(nil), weights...)
		}
	}

	if n.Skin != gltf.NoIndex {
		if err := a.applySkin(ctx, doc, ni, n, prim, attrs, &meta); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			a.warn(doc, err, "skipping skin", ni, pi)
		}
	}

	if err := a.place(ctx, global, attrs); err != nil {
		return nil, err
	}

	if prim.Material != gltf.NoIndex {
		if mb, err := bindMaterial(doc, prim.Material); err == nil {
			meta.Material = mb
		} else {
			a.warn(doc, err, "skipping material", ni, pi)
		}
	}

	geom.Points = attrs.Positions
	geom.Normals = attrs.Normals
	geom.Tangents = attrs.Tangents
	return &Block{
		Name:     fmt.Sprintf("primitive_%d", pi),
		Kind:     KindPrimitive,
		Geometry: geom,
		Metadata: meta,
	}, nil
}

func (a *Assembler) applySkin(ctx context.Context, doc *gltf.Document, ni int, n *gltf.Node, prim *gltf.Primitive, attrs *Attributes, meta *Metadata) error {
	weights, ok, err := skinWeights(doc, prim, len(attrs.Positions))
	if err != nil || !ok {
		return err
	}
	joints, err := doc.ComputeJointMatrices(n.Skin, ni)
	if err != nil {
		return err
	}
	if err := a.skin(ctx, joints, weights, attrs); err != nil {
		return err
	}
	meta.JointMatrices = joints
	return nil
}

// readPrimitive materializes the attributes a primitive block carries.
// POSITION is required; other attributes that fail to read are dropped.
func readPrimitive(doc *gltf.Document, prim *gltf.Primitive) (*Attributes, *Geometry, error) {
	pi, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, nil, fmt.Errorf("%w: POSITION", gltf.ErrMissingOrInvalidField)
	}
	positions, err := gltf.ReadVec3(doc, pi)
	if err != nil {
		return nil, nil, fmt.Errorf("POSITION: %w", err)
	}
	attrs := &Attributes{Positions: make([]math.Vec3, len(positions))}
	for i, p := range positions {
		attrs.Positions[i] = math.V3(p)
	}
	count := len(positions)

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err := gltf.ReadVec3(doc, idx); err == nil && len(normals) == count {
			attrs.Normals = make([]math.Vec3, count)
			for i, n := range normals {
				attrs.Normals[i] = math.V3(n)
			}
		} else {
			doc.AddWarning(attrError(err, "NORMAL"), "dropping attribute", zap.String("attribute", "NORMAL"))
		}
	}
	if idx, ok := prim.Attributes["TANGENT"]; ok {
		if tangents, err := gltf.ReadVec4(doc, idx); err == nil && len(tangents) == count {
			attrs.Tangents = tangents
		} else {
			doc.AddWarning(attrError(err, "TANGENT"), "dropping attribute", zap.String("attribute", "TANGENT"))
		}
	}

	geom := &Geometry{Mode: prim.Mode}
	for set := 0; ; set++ {
		idx, ok := prim.Attributes[fmt.Sprintf("TEXCOORD_%d", set)]
		if !ok {
			break
		}
		uv, err := gltf.ReadVec2(doc, idx)
		if err != nil || len(uv) != count {
			doc.AddWarning(attrError(err, "TEXCOORD"), "dropping attribute", zap.Int("set", set))
			uv = nil
		}
		geom.TexCoords = append(geom.TexCoords, uv)
	}
	for set := 0; ; set++ {
		idx, ok := prim.Attributes[fmt.Sprintf("COLOR_%d", set)]
		if !ok {
			break
		}
		colors, err := gltf.ReadColors(doc, idx)
		if err != nil || len(colors) != count {
			doc.AddWarning(attrError(err, "COLOR"), "dropping attribute", zap.Int("set", set))
			colors = nil
		}
		geom.Colors = append(geom.Colors, colors)
	}

	if prim.Indices != gltf.NoIndex {
		indices, err := gltf.ReadIndices(doc, prim.Indices)
		if err != nil {
			return nil, nil, fmt.Errorf("indices: %w", err)
		}
		for _, v := range indices {
			if int(v) >= count {
				return nil, nil, fmt.Errorf("%w: index %d for %d vertices", gltf.ErrOutOfBounds, v, count)
			}
		}
		geom.Indices = indices
	}
	return attrs, geom, nil
}

func attrError(err error, name string) error {
	if err == nil {
		return fmt.Errorf("%w: %s count differs from POSITION", gltf.ErrMissingOrInvalidField, name)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func bindMaterial(doc *gltf.Document, index int) (*MaterialBinding, error) {
	m, err := doc.Material(index)
	if err != nil {
		return nil, err
	}
	mb := &MaterialBinding{
		Index:           index,
		Name:            m.Name,
		BaseColorFactor: m.BaseColorFactor,
		MetallicFactor:  m.MetallicFactor,
		RoughnessFactor: m.RoughnessFactor,
		EmissiveFactor:  m.EmissiveFactor,
		AlphaMode:       m.AlphaMode,
		AlphaCutoff:     m.AlphaCutoff,
		DoubleSided:     m.DoubleSided,
		Unlit:           m.Unlit,
		Textures:        make(map[string]TextureBinding),
	}
	slots := []struct {
		name string
		info *gltf.TextureInfo
	}{
		{"baseColor", m.BaseColorTexture},
		{"metallicRoughness", m.MetallicRoughnessTexture},
		{"normal", m.NormalTexture},
		{"occlusion", m.OcclusionTexture},
		{"emissive", m.EmissiveTexture},
	}
	for _, s := range slots {
		if s.info == nil {
			continue
		}
		tb := TextureBinding{
			Texture:   s.info.Index,
			Image:     gltf.NoIndex,
			Sampler:   gltf.NoIndex,
			TexCoord:  s.info.TexCoord,
			Scale:     s.info.Scale,
			Transform: s.info.Transform,
		}
		if tex, err := doc.Texture(s.info.Index); err == nil {
			tb.Sampler = tex.Sampler
			tb.Image = tex.Source
			if img, err := doc.Image(tex.Source); err == nil {
				tb.ImageURI = img.URI
				tb.MimeType = img.MimeType
			}
		}
		mb.Textures[s.name] = tb
	}
	return mb, nil
}

// Package gltf loads glTF 2.0 assets into a typed document model and
// evaluates its node hierarchy, accessors and animations.
package gltf

import (
	"fmt"

	"go.uber.org/zap"
)

// Phase is the load state of a Document.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseMetadataLoaded
	PhaseBuffersLoaded
	PhaseGeometryBuilt
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseMetadataLoaded:
		return "metadata-loaded"
	case PhaseBuffersLoaded:
		return "buffers-loaded"
	case PhaseGeometryBuilt:
		return "geometry-built"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Document is a loaded glTF asset. Top-level arrays keep a nil entry for
// every element the loader had to drop, so indices stay stable.
type Document struct {
	Asset              Asset
	ExtensionsUsed     []string
	ExtensionsRequired []string
	DefaultScene       int

	Accessors   []*Accessor
	Animations  []*Animation
	Buffers     []*Buffer
	BufferViews []*BufferView
	Cameras     []*Camera
	Images      []*Image
	Materials   []*Material
	Meshes      []*Mesh
	Nodes       []*Node
	Samplers    []*Sampler
	Scenes      []*Scene
	Skins       []*Skin
	Textures    []*Texture
	Lights      []*Light

	Warnings []Warning

	phase Phase
	log   *zap.Logger
}

func newDocument(log *zap.Logger) *Document {
	return &Document{log: log}
}

// Phase returns the current load phase.
func (d *Document) Phase() Phase {
	return d.phase
}

// Logger returns the logger the document reports warnings to.
func (d *Document) Logger() *zap.Logger {
	return d.log
}

// MarkGeometryBuilt advances the document to PhaseGeometryBuilt.
func (d *Document) MarkGeometryBuilt() error {
	if err := d.requirePhase(PhaseBuffersLoaded); err != nil {
		return err
	}
	d.phase = PhaseGeometryBuilt
	return nil
}

// AddWarning records a recoverable problem and logs it.
func (d *Document) AddWarning(err error, msg string, fields ...zap.Field) {
	d.Warnings = append(d.Warnings, Warning{Err: err, Message: msg})
	d.log.Warn(msg, append(fields, zap.Error(err))...)
}

func (d *Document) requirePhase(min Phase) error {
	if d.phase < min {
		return fmt.Errorf("%w: need %s, document is %s", ErrWrongPhase, min, d.phase)
	}
	return nil
}

// element resolves index i in items. A nil slot is a dropped element.
func element[T any](items []*T, i int, kind string) (*T, error) {
	if i < 0 || i >= len(items) {
		return nil, fmt.Errorf("%w: %s %d of %d", ErrOutOfBounds, kind, i, len(items))
	}
	if items[i] == nil {
		return nil, fmt.Errorf("%w: %s %d was dropped at load", ErrMissingOrInvalidField, kind, i)
	}
	return items[i], nil
}

func (d *Document) Accessor(i int) (*Accessor, error)     { return element(d.Accessors, i, "accessor") }
func (d *Document) Animation(i int) (*Animation, error)   { return element(d.Animations, i, "animation") }
func (d *Document) Buffer(i int) (*Buffer, error)         { return element(d.Buffers, i, "buffer") }
func (d *Document) BufferView(i int) (*BufferView, error) { return element(d.BufferViews, i, "bufferView") }
func (d *Document) Camera(i int) (*Camera, error)         { return element(d.Cameras, i, "camera") }
func (d *Document) Image(i int) (*Image, error)           { return element(d.Images, i, "image") }
func (d *Document) Material(i int) (*Material, error)     { return element(d.Materials, i, "material") }
func (d *Document) Mesh(i int) (*Mesh, error)             { return element(d.Meshes, i, "mesh") }
func (d *Document) Node(i int) (*Node, error)             { return element(d.Nodes, i, "node") }
func (d *Document) Sampler(i int) (*Sampler, error)       { return element(d.Samplers, i, "sampler") }
func (d *Document) Scene(i int) (*Scene, error)           { return element(d.Scenes, i, "scene") }
func (d *Document) Skin(i int) (*Skin, error)             { return element(d.Skins, i, "skin") }
func (d *Document) Texture(i int) (*Texture, error)       { return element(d.Textures, i, "texture") }
func (d *Document) Light(i int) (*Light, error)           { return element(d.Lights, i, "light") }

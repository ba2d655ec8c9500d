package gltf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"
)

// Extension names understood by the loader.
const (
	extLightsPunctual   = "KHR_lights_punctual"
	extMaterialsUnlit   = "KHR_materials_unlit"
	extTextureTransform = "KHR_texture_transform"
)

var supportedExtensions = []string{extLightsPunctual, extMaterialsUnlit, extTextureTransform}

// SupportedExtensions returns the extension names the loader understands.
func SupportedExtensions() []string {
	return slices.Clone(supportedExtensions)
}

const supportedVersion = "2.0"

// Loader reads glTF assets in two phases: metadata, then buffers.
// A Loader holds one document at a time and is not safe for concurrent use.
type Loader struct {
	log      *zap.Logger
	resolver Resolver

	doc       *Document
	src       io.ReadSeeker
	container *Container
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger warnings are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithResolver sets the collaborator used to fetch buffer URIs.
func WithResolver(r Resolver) Option {
	return func(l *Loader) {
		l.resolver = r
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{log: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Document returns the current document, or nil if nothing is loaded.
func (l *Loader) Document() *Document {
	return l.doc
}

// Loaded reports whether both load phases completed.
func (l *Loader) Loaded() bool {
	return l.doc != nil && l.doc.phase >= PhaseBuffersLoaded
}

// Load runs both load phases on r starting at offset.
func (l *Loader) Load(ctx context.Context, r io.ReadSeeker, offset int64) error {
	if err := l.LoadMetadata(r, offset); err != nil {
		return err
	}
	return l.LoadBuffers(ctx)
}

// LoadFile loads a .gltf or .glb file. Resolvers that implement
// SetBaseDir are pointed at the file's directory first.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if b, ok := l.resolver.(interface{ SetBaseDir(string) }); ok {
		b.SetBaseDir(filepath.Dir(path))
	}
	return l.Load(ctx, bytes.NewReader(data), 0)
}

// LoadMetadata parses the container and JSON document. The stream is kept
// for LoadBuffers. Any previous document is discarded first.
func (l *Loader) LoadMetadata(r io.ReadSeeker, offset int64) error {
	l.doc = nil
	l.src = nil
	l.container = nil

	c, err := ReadContainer(r, offset)
	if err != nil {
		return err
	}

	doc := newDocument(l.log)
	if err := l.parse(doc, c.JSON); err != nil {
		return err
	}
	doc.phase = PhaseMetadataLoaded

	l.doc = doc
	l.src = r
	l.container = c

	l.log.Debug("loaded glTF metadata",
		zap.Bool("binary", c.IsBinary),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("meshes", len(doc.Meshes)),
		zap.Int("accessors", len(doc.Accessors)),
		zap.Int("warnings", len(doc.Warnings)))
	return nil
}

func (l *Loader) parse(doc *Document, text []byte) error {
	var w wireDocument
	if err := json.Unmarshal(text, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	if err := checkVersion(w.Asset); err != nil {
		return err
	}
	doc.Asset = Asset{
		Version:    *w.Asset.Version,
		MinVersion: w.Asset.MinVersion,
		Generator:  w.Asset.Generator,
		Copyright:  w.Asset.Copyright,
	}

	doc.ExtensionsUsed = w.ExtensionsUsed
	doc.ExtensionsRequired = w.ExtensionsRequired
	for _, ext := range w.ExtensionsRequired {
		if !slices.Contains(supportedExtensions, ext) {
			return fmt.Errorf("%w: %s", ErrUnsupportedRequiredExtension, ext)
		}
	}
	for _, ext := range w.ExtensionsUsed {
		if !slices.Contains(supportedExtensions, ext) {
			doc.AddWarning(fmt.Errorf("unsupported extension %s", ext), "ignoring extension", zap.String("extension", ext))
		}
	}

	doc.Buffers = loadElements(doc, "buffer", w.Buffers, (*wireBuffer).build)
	doc.BufferViews = loadElements(doc, "bufferView", w.BufferViews, (*wireBufferView).build)
	doc.Accessors = loadElements(doc, "accessor", w.Accessors, (*wireAccessor).build)
	doc.Images = loadElements(doc, "image", w.Images, (*wireImage).build)
	doc.Samplers = loadElements(doc, "sampler", w.Samplers, (*wireSampler).build)
	doc.Textures = loadElements(doc, "texture", w.Textures, (*wireTexture).build)
	doc.Materials = loadElements(doc, "material", w.Materials, (*wireMaterial).build)
	doc.Meshes = loadElements(doc, "mesh", w.Meshes, (*wireMesh).build)
	doc.Cameras = loadElements(doc, "camera", w.Cameras, (*wireCamera).build)
	doc.Skins = loadElements(doc, "skin", w.Skins, (*wireSkin).build)
	doc.Nodes = loadElements(doc, "node", w.Nodes, (*wireNode).build)
	doc.Scenes = loadElements(doc, "scene", w.Scenes, (*wireScene).build)
	if lp := w.Extensions.LightsPunctual; lp != nil {
		doc.Lights = loadElements(doc, "light", lp.Lights, (*wireLight).build)
	}
	doc.Animations = loadElements(doc, "animation", w.Animations, func(wa *wireAnimation) (*Animation, error) {
		return wa.build(func(i int, err error) {
			doc.AddWarning(err, "dropping animation channel", zap.String("animation", wa.Name), zap.Int("channel", i))
		})
	})

	doc.DefaultScene = 0
	if w.Scene != nil && *w.Scene >= 0 && *w.Scene < len(doc.Scenes) {
		doc.DefaultScene = *w.Scene
	}

	if err := linkNodes(doc); err != nil {
		return err
	}
	validateSkins(doc)
	validateScenes(doc)
	validateAnimations(doc)
	return nil
}

func checkVersion(a *wireAsset) error {
	if a == nil || a.Version == nil {
		return fmt.Errorf("%w: missing asset.version", ErrUnsupportedVersion)
	}
	v := *a.Version
	if a.MinVersion != "" {
		v = a.MinVersion
	}
	if v != supportedVersion {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
	}
	return nil
}

// loadElements decodes each raw element independently. An element that
// fails to decode or build leaves a nil slot and a warning.
func loadElements[W, T any](doc *Document, kind string, raw []json.RawMessage, build func(*W) (*T, error)) []*T {
	if len(raw) == 0 {
		return nil
	}
	out := make([]*T, len(raw))
	for i, msg := range raw {
		var w W
		if err := json.Unmarshal(msg, &w); err != nil {
			doc.AddWarning(fmt.Errorf("%w: %v", ErrMissingOrInvalidField, err), "dropping "+kind, zap.Int("index", i))
			continue
		}
		v, err := build(&w)
		if err != nil {
			doc.AddWarning(err, "dropping "+kind, zap.Int("index", i))
			continue
		}
		out[i] = v
	}
	return out
}

// linkNodes validates node references and records parents. A node with two
// parents or listing itself as a child is fatal.
func linkNodes(doc *Document) error {
	for i, n := range doc.Nodes {
		if n == nil {
			continue
		}
		checkRef(doc, n.Mesh, len(doc.Meshes), "mesh", i, func() { n.Mesh = NoIndex })
		checkRef(doc, n.Skin, len(doc.Skins), "skin", i, func() { n.Skin = NoIndex })
		checkRef(doc, n.Camera, len(doc.Cameras), "camera", i, func() { n.Camera = NoIndex })
		checkRef(doc, n.Light, len(doc.Lights), "light", i, func() { n.Light = NoIndex })

		children := n.Children[:0:0]
		for _, c := range n.Children {
			if c < 0 || c >= len(doc.Nodes) || doc.Nodes[c] == nil {
				doc.AddWarning(fmt.Errorf("%w: child %d", ErrMissingOrInvalidField, c), "dropping node child", zap.Int("node", i))
				continue
			}
			if c == i {
				return fmt.Errorf("%w: node %d is its own child", ErrStructure, i)
			}
			child := doc.Nodes[c]
			if child.Parent != NoIndex {
				return fmt.Errorf("%w: node %d has parents %d and %d", ErrStructure, c, child.Parent, i)
			}
			child.Parent = i
			children = append(children, c)
		}
		n.Children = children
	}
	return nil
}

func checkRef(doc *Document, idx, n int, kind string, node int, clear func()) {
	if idx == NoIndex {
		return
	}
	if idx < 0 || idx >= n {
		doc.AddWarning(fmt.Errorf("%w: %s %d", ErrMissingOrInvalidField, kind, idx), "clearing node reference", zap.Int("node", node))
		clear()
	}
}

func validateSkins(doc *Document) {
	for i, s := range doc.Skins {
		if s == nil {
			continue
		}
		for _, j := range s.Joints {
			if j < 0 || j >= len(doc.Nodes) || doc.Nodes[j] == nil {
				doc.AddWarning(fmt.Errorf("%w: joint node %d", ErrMissingOrInvalidField, j), "dropping skin", zap.Int("skin", i))
				doc.Skins[i] = nil
				break
			}
		}
	}
}

func validateScenes(doc *Document) {
	for i, s := range doc.Scenes {
		if s == nil {
			continue
		}
		roots := s.Nodes[:0:0]
		for _, r := range s.Nodes {
			if r < 0 || r >= len(doc.Nodes) || doc.Nodes[r] == nil {
				doc.AddWarning(fmt.Errorf("%w: root node %d", ErrMissingOrInvalidField, r), "dropping scene root", zap.Int("scene", i))
				continue
			}
			roots = append(roots, r)
		}
		s.Nodes = roots
	}
}

// validateAnimations drops channels that cannot be applied and computes
// durations from the input accessor bounds.
func validateAnimations(doc *Document) {
	for ai, a := range doc.Animations {
		if a == nil {
			continue
		}
		channels := a.Channels[:0:0]
		for ci, c := range a.Channels {
			var reason error
			switch {
			case c.Sampler < 0 || c.Sampler >= len(a.Samplers):
				reason = fmt.Errorf("%w: sampler %d", ErrOutOfBounds, c.Sampler)
			case c.Node < 0 || c.Node >= len(doc.Nodes):
				reason = fmt.Errorf("%w: node %d", ErrOutOfBounds, c.Node)
			case doc.Nodes[c.Node] == nil:
				reason = fmt.Errorf("%w: node %d", ErrMissingOrInvalidField, c.Node)
			case doc.Nodes[c.Node].HasMatrix && c.Path != PathWeights:
				reason = fmt.Errorf("%w: node %d uses a matrix", ErrMissingOrInvalidField, c.Node)
			}
			if reason != nil {
				doc.AddWarning(reason, "dropping animation channel", zap.Int("animation", ai), zap.Int("channel", ci))
				continue
			}
			channels = append(channels, c)
		}
		a.Channels = channels

		for _, s := range a.Samplers {
			in, err := doc.Accessor(s.Input)
			if err != nil || len(in.Max) == 0 {
				continue
			}
			if d := float32(in.Max[0]); d > a.Duration {
				a.Duration = d
			}
		}
	}
}

// LoadBuffers materializes every buffer. Buffers that cannot be fetched
// stay unloaded with a warning; only cancellation is returned as an error.
func (l *Loader) LoadBuffers(ctx context.Context) error {
	if l.doc == nil {
		return fmt.Errorf("%w: no metadata loaded", ErrWrongPhase)
	}
	doc := l.doc
	if doc.phase != PhaseMetadataLoaded {
		return fmt.Errorf("%w: buffers already loaded", ErrWrongPhase)
	}

	for i, b := range doc.Buffers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b == nil {
			continue
		}
		data, err := l.fetch(ctx, i, b)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			doc.AddWarning(err, "buffer not loaded", zap.Int("buffer", i), zap.String("uri", redactURI(b.URI)))
			continue
		}
		if len(data) < b.ByteLength {
			doc.AddWarning(fmt.Errorf("%w: got %d bytes, byteLength %d", ErrOutOfBounds, len(data), b.ByteLength),
				"short buffer", zap.Int("buffer", i))
		}
		b.data = data
		b.loaded = true
	}

	doc.phase = PhaseBuffersLoaded
	return nil
}

func (l *Loader) fetch(ctx context.Context, i int, b *Buffer) ([]byte, error) {
	if b.URI == "" {
		bin := l.container.BinChunk
		if i != 0 || bin == nil {
			return nil, fmt.Errorf("%w: buffer %d has no uri and no GLB BIN chunk", ErrMissingOrInvalidField, i)
		}
		if _, err := l.src.Seek(bin.Offset, io.SeekStart); err != nil {
			return nil, err
		}
		data := make([]byte, bin.Length)
		if _, err := io.ReadFull(l.src, data); err != nil {
			return nil, fmt.Errorf("reading BIN chunk: %w", err)
		}
		return data, nil
	}
	if l.resolver == nil {
		return nil, fmt.Errorf("no resolver for uri")
	}
	return l.resolver.Resolve(ctx, b.URI)
}

// redactURI keeps data: URIs out of log lines.
func redactURI(uri string) string {
	if len(uri) > 64 {
		return uri[:64] + "..."
	}
	return uri
}

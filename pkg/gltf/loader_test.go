package gltf

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func loadJSON(t *testing.T, text string, opts ...Option) (*Loader, error) {
	t.Helper()
	l := NewLoader(opts...)
	err := l.Load(context.Background(), bytes.NewReader([]byte(text)), 0)
	return l, err
}

func TestLoader_Version(t *testing.T) {
	tests := []struct {
		name    string
		asset   string
		wantErr error
	}{
		{"2.0", `{"version":"2.0"}`, nil},
		{"minVersion 2.0 wins", `{"version":"2.1","minVersion":"2.0"}`, nil},
		{"1.0", `{"version":"1.0"}`, ErrUnsupportedVersion},
		{"minVersion 2.1", `{"version":"2.0","minVersion":"2.1"}`, ErrUnsupportedVersion},
		{"missing version", `{}`, ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := loadJSON(t, `{"asset":`+tt.asset+`}`)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
			if (tt.wantErr == nil) != l.Loaded() {
				t.Errorf("Loaded() = %v after error %v", l.Loaded(), err)
			}
		})
	}
}

func TestLoader_MalformedJSON(t *testing.T) {
	_, err := loadJSON(t, `{"asset":`)
	if !errors.Is(err, ErrMalformedDocument) {
		t.Errorf("expected ErrMalformedDocument, got %v", err)
	}
}

func TestLoader_Extensions(t *testing.T) {
	_, err := loadJSON(t, `{"asset":{"version":"2.0"},"extensionsRequired":["KHR_draco_mesh_compression"],"extensionsUsed":["KHR_draco_mesh_compression"]}`)
	if !errors.Is(err, ErrUnsupportedRequiredExtension) {
		t.Errorf("expected ErrUnsupportedRequiredExtension, got %v", err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	l, err := loadJSON(t, `{"asset":{"version":"2.0"},"extensionsUsed":["EXT_meshopt_compression","KHR_materials_unlit"],"extensionsRequired":["KHR_materials_unlit"]}`,
		WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(l.Document().Warnings); n != 1 {
		t.Errorf("expected 1 warning, got %d: %v", n, l.Document().Warnings)
	}
	if logs.FilterField(zap.String("extension", "EXT_meshopt_compression")).Len() != 1 {
		t.Errorf("expected a logged warning for the unsupported extension, got %v", logs.All())
	}
}

func TestLoader_DroppedElementsKeepIndices(t *testing.T) {
	f := newFixture()
	f.addAccessor(map[string]any{"componentType": 5126, "type": "VEC3"}) // no count
	good := f.floats("VEC3", 1, 2, 3)
	f.set("meshes", []map[string]any{{
		"primitives": []map[string]any{{"attributes": map[string]int{"POSITION": good}}},
	}})

	d := f.load(t)
	if d.Accessors[0] != nil {
		t.Error("accessor 0 should be dropped")
	}
	if d.Accessors[good] == nil {
		t.Fatal("accessor 1 should survive")
	}
	pos, err := ReadVec3(d, d.Meshes[0].Primitives[0].Attributes["POSITION"])
	if err != nil {
		t.Fatalf("ReadVec3: %v", err)
	}
	if pos[0] != [3]float32{1, 2, 3} {
		t.Errorf("position = %v", pos[0])
	}

	if _, err := d.Accessor(0); !errors.Is(err, ErrMissingOrInvalidField) {
		t.Errorf("reading a dropped accessor: got %v", err)
	}
	var w Warning
	if len(d.Warnings) == 0 || !errors.As(error(d.Warnings[0]), &w) || !errors.Is(w, ErrMissingOrInvalidField) {
		t.Errorf("expected a missing field warning, got %v", d.Warnings)
	}
}

func TestLoader_DefaultScene(t *testing.T) {
	tests := []struct {
		name  string
		scene string
		want  int
	}{
		{"absent", ``, 0},
		{"explicit", `"scene":1,`, 1},
		{"out of range", `"scene":7,`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := loadJSON(t, `{"asset":{"version":"2.0"},`+tt.scene+`"scenes":[{},{}]}`)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := l.Document().DefaultScene; got != tt.want {
				t.Errorf("DefaultScene = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLoader_Structure(t *testing.T) {
	_, err := loadJSON(t, `{"asset":{"version":"2.0"},"nodes":[{"children":[2]},{"children":[2]},{}]}`)
	if !errors.Is(err, ErrStructure) {
		t.Errorf("two parents: expected ErrStructure, got %v", err)
	}

	_, err = loadJSON(t, `{"asset":{"version":"2.0"},"nodes":[{"children":[0]}]}`)
	if !errors.Is(err, ErrStructure) {
		t.Errorf("self child: expected ErrStructure, got %v", err)
	}

	l, err := loadJSON(t, `{"asset":{"version":"2.0"},"nodes":[{"children":[1,9],"mesh":4},{}]}`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := l.Document()
	if len(d.Nodes[0].Children) != 1 || d.Nodes[1].Parent != 0 {
		t.Errorf("children = %v, parent = %d", d.Nodes[0].Children, d.Nodes[1].Parent)
	}
	if d.Nodes[0].Mesh != NoIndex {
		t.Errorf("dangling mesh reference kept: %d", d.Nodes[0].Mesh)
	}
}

func TestLoader_AnimationChannels(t *testing.T) {
	f := newFixture()
	in := f.floats("SCALAR", 0, 2)
	out := f.floats("VEC3", 0, 0, 0, 1, 1, 1)
	f.set("nodes", []map[string]any{
		{"translation": []float32{1, 0, 0}},
		{"matrix": []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}},
	})
	f.set("animations", []map[string]any{{
		"samplers": []map[string]any{{"input": in, "output": out}},
		"channels": []map[string]any{
			{"sampler": 0, "target": map[string]any{"node": 0, "path": "translation"}},
			{"sampler": 0, "target": map[string]any{"node": 1, "path": "translation"}},
			{"sampler": 3, "target": map[string]any{"node": 0, "path": "scale"}},
			{"sampler": 0, "target": map[string]any{"node": 8, "path": "scale"}},
			{"sampler": 0, "target": map[string]any{"node": 0, "path": "color"}},
		},
	}})

	d := f.load(t)
	a := d.Animations[0]
	if len(a.Channels) != 1 || a.Channels[0].Node != 0 {
		t.Errorf("channels = %+v", a.Channels)
	}
	if a.Duration != 2 {
		t.Errorf("Duration = %v, want 2", a.Duration)
	}
	if len(d.Warnings) != 4 {
		t.Errorf("expected 4 warnings, got %d: %v", len(d.Warnings), d.Warnings)
	}
}

func TestLoader_Phases(t *testing.T) {
	f := newFixture()
	acc := f.floats("SCALAR", 1, 2, 3)

	l := NewLoader()
	if err := l.LoadMetadata(bytes.NewReader(f.glb(t)), 0); err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	d := l.Document()
	if d.Phase() != PhaseMetadataLoaded || l.Loaded() {
		t.Fatalf("phase = %s, loaded = %v", d.Phase(), l.Loaded())
	}
	if _, err := ReadScalars(d, acc); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("reading before buffers: got %v", err)
	}
	if err := d.MarkGeometryBuilt(); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("MarkGeometryBuilt before buffers: got %v", err)
	}

	if err := l.LoadBuffers(context.Background()); err != nil {
		t.Fatalf("LoadBuffers: %v", err)
	}
	if !l.Loaded() || d.Phase() != PhaseBuffersLoaded {
		t.Fatalf("phase = %s", d.Phase())
	}
	if err := l.LoadBuffers(context.Background()); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("second LoadBuffers: got %v", err)
	}
	got, err := ReadScalars(d, acc)
	if err != nil || len(got) != 3 || got[2] != 3 {
		t.Errorf("ReadScalars = %v, %v", got, err)
	}
	if err := d.MarkGeometryBuilt(); err != nil || d.Phase() != PhaseGeometryBuilt {
		t.Errorf("MarkGeometryBuilt: %v, phase %s", err, d.Phase())
	}
}

type mapResolver map[string][]byte

func (m mapResolver) Resolve(_ context.Context, uri string) ([]byte, error) {
	data, ok := m[uri]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func TestLoader_ExternalBuffers(t *testing.T) {
	text := `{
		"asset":{"version":"2.0"},
		"buffers":[{"uri":"a.bin","byteLength":4},{"uri":"missing.bin","byteLength":4}],
		"bufferViews":[{"buffer":0,"byteLength":4},{"buffer":1,"byteLength":4}],
		"accessors":[
			{"bufferView":0,"componentType":5121,"count":4,"type":"SCALAR"},
			{"bufferView":1,"componentType":5121,"count":4,"type":"SCALAR"}
		]
	}`
	l, err := loadJSON(t, text, WithResolver(mapResolver{"a.bin": {1, 2, 3, 4}}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := l.Document()
	if len(d.Warnings) != 1 {
		t.Errorf("expected 1 warning for the missing buffer, got %v", d.Warnings)
	}
	got, err := ReadIndices(d, 0)
	if err != nil || len(got) != 4 || got[3] != 4 {
		t.Errorf("ReadIndices(0) = %v, %v", got, err)
	}
	if _, err := ReadIndices(d, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("reading an unloaded buffer: got %v", err)
	}
}

func TestLoader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(WithResolver(mapResolver{}))
	err := l.Load(ctx, bytes.NewReader([]byte(`{"asset":{"version":"2.0"},"buffers":[{"uri":"a.bin","byteLength":1}]}`)), 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if l.Loaded() {
		t.Error("cancelled load reported as loaded")
	}
}

func TestLoader_Materials(t *testing.T) {
	text := `{
		"asset":{"version":"2.0"},
		"extensionsUsed":["KHR_texture_transform","KHR_materials_unlit","KHR_lights_punctual"],
		"extensions":{"KHR_lights_punctual":{"lights":[{"type":"spot","spot":{"innerConeAngle":0.1}},{"type":"laser"}]}},
		"materials":[{
			"pbrMetallicRoughness":{
				"baseColorFactor":[0.5,0.5,0.5,1],
				"baseColorTexture":{"index":0,"extensions":{"KHR_texture_transform":{"offset":[0.5,0],"scale":[2,2]}}}
			},
			"occlusionTexture":{"index":1,"strength":0.25},
			"alphaMode":"MASK",
			"extensions":{"KHR_materials_unlit":{}}
		}],
		"nodes":[{"extensions":{"KHR_lights_punctual":{"light":0}}}]
	}`
	l, err := loadJSON(t, text)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := l.Document()
	m := d.Materials[0]
	if !m.Unlit || m.AlphaMode != "MASK" || m.MetallicFactor != 1 {
		t.Errorf("material = %+v", m)
	}
	tt := m.BaseColorTexture.Transform
	if tt == nil || tt.Offset != [2]float32{0.5, 0} || tt.Scale != [2]float32{2, 2} || tt.TexCoord != NoIndex {
		t.Errorf("texture transform = %+v", tt)
	}
	if m.OcclusionTexture.Scale != 0.25 {
		t.Errorf("occlusion strength = %v", m.OcclusionTexture.Scale)
	}
	if d.Lights[0] == nil || d.Lights[0].Type != "spot" || d.Lights[0].OuterConeAngle == 0 {
		t.Errorf("light 0 = %+v", d.Lights[0])
	}
	if d.Lights[1] != nil {
		t.Error("light with unknown type should be dropped")
	}
	if d.Nodes[0].Light != 0 {
		t.Errorf("node light = %d", d.Nodes[0].Light)
	}
}

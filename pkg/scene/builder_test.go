package scene

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/Faultbox/gltfkit/pkg/assets"
	"github.com/Faultbox/gltfkit/pkg/gltf"
)

// builder assembles a glTF document whose single buffer is a data: URI.
type builder struct {
	bin       []byte
	views     []map[string]any
	accessors []map[string]any
	doc       map[string]any
}

func newBuilder() *builder {
	return &builder{doc: map[string]any{"asset": map[string]any{"version": "2.0"}}}
}

func (b *builder) add(componentType int, typ string, count int, data []byte) int {
	for len(b.bin)%4 != 0 {
		b.bin = append(b.bin, 0)
	}
	b.views = append(b.views, map[string]any{"buffer": 0, "byteOffset": len(b.bin), "byteLength": len(data)})
	b.bin = append(b.bin, data...)
	b.accessors = append(b.accessors, map[string]any{
		"bufferView":    len(b.views) - 1,
		"componentType": componentType,
		"count":         count,
		"type":          typ,
	})
	return len(b.accessors) - 1
}

func (b *builder) floats(typ string, count int, vals []float32) int {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return b.add(5126, typ, count, data)
}

func (b *builder) vec3(vals ...[3]float32) int {
	var flat []float32
	for _, v := range vals {
		flat = append(flat, v[:]...)
	}
	return b.floats("VEC3", len(vals), flat)
}

func (b *builder) vec4(vals ...[4]float32) int {
	var flat []float32
	for _, v := range vals {
		flat = append(flat, v[:]...)
	}
	return b.floats("VEC4", len(vals), flat)
}

func (b *builder) joints(vals ...[4]uint8) int {
	var data []byte
	for _, v := range vals {
		data = append(data, v[:]...)
	}
	return b.add(5121, "VEC4", len(vals), data)
}

func (b *builder) indices(vals ...uint16) int {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[i*2:], v)
	}
	return b.add(5123, "SCALAR", len(vals), data)
}

func (b *builder) set(key string, v any) {
	b.doc[key] = v
}

func (b *builder) load(t *testing.T, opts ...gltf.Option) *gltf.Document {
	t.Helper()
	b.doc["buffers"] = []map[string]any{{
		"byteLength": len(b.bin),
		"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b.bin),
	}}
	b.doc["bufferViews"] = b.views
	b.doc["accessors"] = b.accessors
	text, err := json.Marshal(b.doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	opts = append(opts, gltf.WithResolver(assets.NewResolver("", nil)))
	l := gltf.NewLoader(opts...)
	if err := l.Load(context.Background(), strings.NewReader(string(text)), 0); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return l.Document()
}

var triangle = [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

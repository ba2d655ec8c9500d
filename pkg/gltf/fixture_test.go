package gltf

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"
)

// fixture builds a glTF document with a single GLB BIN buffer.
type fixture struct {
	bin       []byte
	views     []map[string]any
	accessors []map[string]any
	doc       map[string]any
}

func newFixture() *fixture {
	return &fixture{doc: map[string]any{"asset": map[string]any{"version": "2.0"}}}
}

// addView appends data to the BIN buffer, 4-byte aligned, and returns the
// buffer view index.
func (f *fixture) addView(data []byte, stride int) int {
	for len(f.bin)%4 != 0 {
		f.bin = append(f.bin, 0)
	}
	v := map[string]any{"buffer": 0, "byteOffset": len(f.bin), "byteLength": len(data)}
	if stride > 0 {
		v["byteStride"] = stride
	}
	f.bin = append(f.bin, data...)
	f.views = append(f.views, v)
	return len(f.views) - 1
}

func (f *fixture) addAccessor(acc map[string]any) int {
	f.accessors = append(f.accessors, acc)
	return len(f.accessors) - 1
}

// floats writes a tightly packed FLOAT accessor of the given type.
func (f *fixture) floats(typ string, vals ...float32) int {
	n := map[string]int{"SCALAR": 1, "VEC2": 2, "VEC3": 3, "VEC4": 4, "MAT4": 16}[typ]
	acc := map[string]any{
		"bufferView":    f.addView(float32Bytes(vals...), 0),
		"componentType": int(ComponentFloat),
		"count":         len(vals) / n,
		"type":          typ,
	}
	if typ == "SCALAR" {
		lo, hi := vals[0], vals[0]
		for _, v := range vals {
			lo, hi = min(lo, v), max(hi, v)
		}
		acc["min"] = []float32{lo}
		acc["max"] = []float32{hi}
	}
	return f.addAccessor(acc)
}

func (f *fixture) set(key string, v any) *fixture {
	f.doc[key] = v
	return f
}

func (f *fixture) json(t *testing.T) []byte {
	t.Helper()
	if len(f.bin) > 0 {
		f.doc["buffers"] = []map[string]any{{"byteLength": len(f.bin)}}
	}
	if len(f.views) > 0 {
		f.doc["bufferViews"] = f.views
	}
	if len(f.accessors) > 0 {
		f.doc["accessors"] = f.accessors
	}
	text, err := json.Marshal(f.doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return text
}

func (f *fixture) glb(t *testing.T) []byte {
	t.Helper()
	return buildGLB(f.json(t), f.bin)
}

// load runs both load phases and fails the test on error.
func (f *fixture) load(t *testing.T, opts ...Option) *Document {
	t.Helper()
	l := NewLoader(opts...)
	if err := l.Load(context.Background(), bytes.NewReader(f.glb(t)), 0); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return l.Document()
}

// buildGLB assembles a GLB container with a JSON chunk and, if bin is not
// empty, a BIN chunk.
func buildGLB(jsonText, bin []byte) []byte {
	jsonText = pad(jsonText, ' ')
	bin = pad(bin, 0)

	total := 12 + 8 + len(jsonText)
	if len(bin) > 0 {
		total += 8 + len(bin)
	}

	var buf bytes.Buffer
	buf.WriteString("glTF")
	binary.Write(&buf, binary.LittleEndian, uint32(2))
	binary.Write(&buf, binary.LittleEndian, uint32(total))
	binary.Write(&buf, binary.LittleEndian, uint32(len(jsonText)))
	buf.WriteString("JSON")
	buf.Write(jsonText)
	if len(bin) > 0 {
		binary.Write(&buf, binary.LittleEndian, uint32(len(bin)))
		buf.WriteString("BIN\x00")
		buf.Write(bin)
	}
	return buf.Bytes()
}

func pad(b []byte, with byte) []byte {
	out := append([]byte(nil), b...)
	for len(out)%4 != 0 {
		out = append(out, with)
	}
	return out
}

func float32Bytes(vals ...float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

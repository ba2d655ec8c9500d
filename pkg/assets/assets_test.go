package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeDataURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr bool
	}{
		{"base64", "data:application/octet-stream;base64,AQIDBA==", "\x01\x02\x03\x04", false},
		{"gltf buffer mime", "data:application/gltf-buffer;base64,aGk=", "hi", false},
		{"percent encoded", "data:text/plain,a%20b", "a b", false},
		{"missing comma", "data:application/octet-stream;base64", "", true},
		{"bad base64", "data:;base64,@@@", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDataURI) {
				t.Errorf("expected ErrInvalidDataURI, got %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_Files(t *testing.T) {
	base := t.TempDir()
	extra := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "mesh data.bin"), []byte("base"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(extra, "shared.bin"), []byte("extra"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(base, nil)
	r.AddDir(extra)
	ctx := context.Background()

	got, err := r.Resolve(ctx, "mesh%20data.bin")
	if err != nil || string(got) != "base" {
		t.Errorf("relative escaped uri: %q, %v", got, err)
	}
	got, err = r.Resolve(ctx, "shared.bin")
	if err != nil || string(got) != "extra" {
		t.Errorf("fallback dir: %q, %v", got, err)
	}
	got, err = r.Resolve(ctx, filepath.Join(base, "mesh data.bin"))
	if err != nil || string(got) != "base" {
		t.Errorf("absolute path: %q, %v", got, err)
	}
	if _, err := r.Resolve(ctx, "missing.bin"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := r.Resolve(ctx, "https://example.com/a.bin"); !errors.Is(err, ErrRemoteURI) {
		t.Errorf("remote uri: got %v", err)
	}

	// Second read of the same file is served from cache.
	before, _ := r.Cache().Stats()
	if _, err := r.Resolve(ctx, "shared.bin"); err != nil {
		t.Fatal(err)
	}
	after, _ := r.Cache().Stats()
	if after != before+1 {
		t.Errorf("cache hits %d -> %d", before, after)
	}

	r.Close()
	if hits, misses := r.Cache().Stats(); hits != 0 || misses != 0 {
		t.Errorf("stats after Close = %d/%d", hits, misses)
	}
}

func TestResolver_SetBaseDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), []byte{7}, 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewResolver("", nil)
	r.SetBaseDir(dir)
	got, err := r.Resolve(context.Background(), "a.bin")
	if err != nil || len(got) != 1 || got[0] != 7 {
		t.Errorf("Resolve = %v, %v", got, err)
	}
}

func TestResolver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewResolver("", nil).Resolve(ctx, "data:,x"); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
}

// Package assets resolves and caches the files a glTF asset references.
package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrRemoteURI is returned for URIs that need a network fetch.
	ErrRemoteURI = errors.New("remote URIs are not supported")
	// ErrInvalidDataURI is returned for malformed data: URIs.
	ErrInvalidDataURI = errors.New("invalid data URI")
)

// Resolver fetches local, relative and data: URIs.
type Resolver struct {
	base  string
	dirs  []string
	cache *Cache
	log   *zap.Logger
	mu    sync.RWMutex
}

// NewResolver creates a resolver rooted at baseDir. log may be nil.
func NewResolver(baseDir string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{base: baseDir, cache: NewCache(), log: log}
}

// SetBaseDir replaces the primary directory relative URIs resolve against.
func (r *Resolver) SetBaseDir(dir string) {
	r.mu.Lock()
	r.base = dir
	r.mu.Unlock()
}

// AddDir adds a fallback directory for relative URIs.
// The base directory is searched first, then fallbacks in reverse order
// (last added = highest priority).
func (r *Resolver) AddDir(dir string) {
	r.mu.Lock()
	r.dirs = append(r.dirs, dir)
	r.mu.Unlock()
}

// Resolve returns the bytes behind uri.
func (r *Resolver) Resolve(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(uri, "data:"):
		return DecodeDataURI(uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return nil, fmt.Errorf("%w: %s", ErrRemoteURI, uri)
	}

	path := uri
	if strings.HasPrefix(uri, "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", uri, err)
		}
		path = u.Path
	} else if unescaped, err := url.PathUnescape(uri); err == nil {
		path = unescaped
	}

	if filepath.IsAbs(path) {
		return r.load(path)
	}

	r.mu.RLock()
	base := r.base
	if base == "" {
		base = "."
	}
	dirs := []string{base}
	for i := len(r.dirs) - 1; i >= 0; i-- {
		dirs = append(dirs, r.dirs[i])
	}
	r.mu.RUnlock()

	var lastErr error
	for _, dir := range dirs {
		data, err := r.load(filepath.Join(dir, filepath.FromSlash(path)))
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *Resolver) load(path string) ([]byte, error) {
	if data, ok := r.cache.Get(path); ok {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	r.cache.Set(path, data)
	r.log.Debug("resolved asset file", zap.String("path", path), zap.Int("bytes", len(data)))
	return data, nil
}

// Close drops all cached files.
func (r *Resolver) Close() {
	r.cache.Clear()
}

// Cache returns the file cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// DecodeDataURI decodes a data: URI with base64 or percent-encoded payload.
func DecodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing comma", ErrInvalidDataURI)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
		return data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return []byte(data), nil
}

// Cache is a simple in-memory cache for loaded files.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

package gltf

import (
	"context"
	"fmt"
)

// Resolver fetches the bytes behind a buffer or image URI.
type Resolver interface {
	Resolve(ctx context.Context, uri string) ([]byte, error)
}

// BufferViewData returns the bytes of a buffer view.
func (d *Document) BufferViewData(i int) ([]byte, error) {
	if err := d.requirePhase(PhaseBuffersLoaded); err != nil {
		return nil, err
	}
	bv, err := d.BufferView(i)
	if err != nil {
		return nil, err
	}
	return d.viewBytes(bv)
}

func (d *Document) viewBytes(bv *BufferView) ([]byte, error) {
	buf, err := d.Buffer(bv.Buffer)
	if err != nil {
		return nil, err
	}
	if !buf.loaded {
		return nil, fmt.Errorf("%w: buffer %d was not loaded", ErrOutOfBounds, bv.Buffer)
	}
	end := bv.ByteOffset + bv.ByteLength
	if end > len(buf.data) || end > buf.ByteLength {
		return nil, fmt.Errorf("%w: view [%d,%d) exceeds buffer %d of %d bytes",
			ErrOutOfBounds, bv.ByteOffset, end, bv.Buffer, min(len(buf.data), buf.ByteLength))
	}
	return buf.data[bv.ByteOffset:end], nil
}

// ImageData returns the encoded bytes of an image stored in a buffer view.
// Images referenced by URI are fetched through r. Decoding is left to the
// caller.
func (d *Document) ImageData(ctx context.Context, i int, r Resolver) ([]byte, error) {
	img, err := d.Image(i)
	if err != nil {
		return nil, err
	}
	if img.BufferView != NoIndex {
		return d.BufferViewData(img.BufferView)
	}
	if r == nil {
		return nil, fmt.Errorf("image %d: no resolver for uri", i)
	}
	return r.Resolve(ctx, img.URI)
}

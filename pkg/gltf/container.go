package gltf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// GLB layout constants.
const (
	glbMagic        = "glTF"
	glbVersion      = 2
	glbHeaderLength = 12
	glbChunkHeader  = 8

	chunkTypeJSON = "JSON"
	chunkTypeBIN  = "BIN\x00"
)

// ChunkRange locates a chunk payload in the source stream.
// Offset is absolute, not relative to the container start.
type ChunkRange struct {
	Offset int64
	Length int64
}

// Container is the demultiplexed content of a glTF asset stream.
type Container struct {
	JSON     []byte
	IsBinary bool
	// BinChunk is nil for text glTF and for GLB without a BIN chunk.
	BinChunk *ChunkRange
}

// glbHeader is the fixed 12-byte GLB header.
type glbHeader struct {
	Magic   [4]byte
	Version uint32
	Length  uint32
}

// glbChunkHeaderData precedes every chunk payload.
type glbChunkHeaderData struct {
	Length uint32
	Type   [4]byte
}

// ReadContainer reads a glTF asset that starts at offset in r.
// A stream starting with the "glTF" magic is validated as GLB; anything else
// is returned verbatim (offset to end) as JSON text. The BIN chunk is located
// but not read.
func ReadContainer(r io.ReadSeeker, offset int64) (*Container, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to asset start: %w", err)
	}

	var magic [4]byte
	n, err := io.ReadFull(r, magic[:])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("reading magic: %w", err)
	}

	if n < 4 || string(magic[:]) != glbMagic {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking to asset start: %w", err)
		}
		text, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading JSON text: %w", err)
		}
		return &Container{JSON: text}, nil
	}

	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to asset start: %w", err)
	}
	return readGLB(r, offset)
}

func readGLB(r io.ReadSeeker, offset int64) (*Container, error) {
	var header glbHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformedContainer)
	}
	if header.Version != glbVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformedContainer, header.Version)
	}

	c := &Container{IsBinary: true}
	pos := int64(glbHeaderLength)
	total := int64(header.Length)
	chunks := 0

	for pos < total {
		var ch glbChunkHeaderData
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			return nil, fmt.Errorf("%w: truncated chunk header at %d", ErrMalformedContainer, pos)
		}
		pos += glbChunkHeader
		chunkType := string(ch.Type[:])
		length := int64(ch.Length)

		if chunks == 0 && chunkType != chunkTypeJSON {
			return nil, fmt.Errorf("%w: first chunk is %q, expected JSON", ErrMalformedContainer, chunkType)
		}

		switch {
		case chunkType == chunkTypeJSON && chunks == 0:
			c.JSON = make([]byte, length)
			if _, err := io.ReadFull(r, c.JSON); err != nil {
				return nil, fmt.Errorf("%w: truncated JSON chunk", ErrMalformedContainer)
			}
		case chunkType == chunkTypeBIN && c.BinChunk == nil:
			c.BinChunk = &ChunkRange{Offset: offset + pos, Length: length}
			if err := skip(r, length); err != nil {
				return nil, err
			}
		default:
			if err := skip(r, length); err != nil {
				return nil, err
			}
		}

		pos += length
		chunks++
	}

	if chunks == 0 {
		return nil, fmt.Errorf("%w: no chunks", ErrMalformedContainer)
	}
	if pos != total {
		return nil, fmt.Errorf("%w: total length %d does not match chunk layout %d", ErrMalformedContainer, total, pos)
	}

	return c, nil
}

// skip advances past a chunk payload and verifies it is fully present.
func skip(r io.ReadSeeker, length int64) error {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if cur+length > end {
		return fmt.Errorf("%w: truncated chunk payload", ErrMalformedContainer)
	}
	_, err = r.Seek(cur+length, io.SeekStart)
	return err
}

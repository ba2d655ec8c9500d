package gltf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// maxSparseOnlyCount caps the element count of an accessor with no
// bufferView, whose size nothing in the buffers bounds.
const maxSparseOnlyCount = 1 << 24

// Number is the set of element types an accessor can be materialized into.
type Number interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | float32 | float64
}

// Array is a materialized accessor: Count elements of Components values
// each, stored contiguously. Matrix elements are column-major.
type Array[T Number] struct {
	Data       []T
	Count      int
	Components int
}

// At returns the components of element i.
func (a *Array[T]) At(i int) []T {
	return a.Data[i*a.Components : (i+1)*a.Components]
}

// Read materializes accessor index into an array of T. Integer components
// are normalized when the accessor says so and T is a float type. Reading
// float components into an integer T, or integer components into a T that
// cannot hold their range, is ErrTypeMismatch.
func Read[T Number](d *Document, index int) (*Array[T], error) {
	if err := d.requirePhase(PhaseBuffersLoaded); err != nil {
		return nil, err
	}
	acc, err := d.Accessor(index)
	if err != nil {
		return nil, err
	}
	out, err := readAccessor[T](d, acc)
	if err != nil {
		return nil, fmt.Errorf("accessor %d: %w", index, err)
	}
	return out, nil
}

func readAccessor[T Number](d *Document, acc *Accessor) (*Array[T], error) {
	if acc.ComponentType.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedComponentType, acc.ComponentType)
	}
	n := acc.Type.NumberOfComponents()
	if n == 0 {
		return nil, fmt.Errorf("%w: type %s", ErrMissingOrInvalidField, acc.Type)
	}
	if err := checkTarget[T](acc.ComponentType); err != nil {
		return nil, err
	}

	normalize := acc.Normalized && isFloat[T]()
	size := elementSize(acc.ComponentType, acc.Type)

	// Every bound is checked before the output is allocated, so a corrupt
	// count fails here instead of exhausting memory.
	var view []byte
	stride := size
	if acc.BufferView != NoIndex {
		bv, err := d.BufferView(acc.BufferView)
		if err != nil {
			return nil, err
		}
		if view, err = d.viewBytes(bv); err != nil {
			return nil, err
		}
		if bv.ByteStride != 0 {
			if bv.ByteStride < size {
				return nil, fmt.Errorf("%w: byteStride %d smaller than element size %d", ErrMissingOrInvalidField, bv.ByteStride, size)
			}
			stride = bv.ByteStride
		}
		if acc.ByteOffset < 0 || acc.ByteOffset > len(view)-size ||
			acc.Count-1 > (len(view)-acc.ByteOffset-size)/stride {
			return nil, fmt.Errorf("%w: %d elements of %d bytes at offset %d, stride %d, bufferView %d has %d bytes",
				ErrOutOfBounds, acc.Count, size, acc.ByteOffset, stride, acc.BufferView, len(view))
		}
	} else if acc.Count > maxSparseOnlyCount {
		return nil, fmt.Errorf("%w: count %d without a bufferView exceeds %d", ErrOutOfBounds, acc.Count, maxSparseOnlyCount)
	}

	out := &Array[T]{
		Data:       make([]T, acc.Count*n),
		Count:      acc.Count,
		Components: n,
	}
	if acc.BufferView != NoIndex {
		decode(out.Data, view[acc.ByteOffset:], acc.ComponentType, acc.Type, acc.Count, stride, normalize)
	}

	if acc.Sparse != nil {
		if err := applySparse(d, acc, out, normalize); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func applySparse[T Number](d *Document, acc *Accessor, out *Array[T], normalize bool) error {
	s := acc.Sparse
	if s.Count > acc.Count {
		return fmt.Errorf("%w: sparse count %d exceeds count %d", ErrOutOfBounds, s.Count, acc.Count)
	}
	ict := s.Indices.ComponentType
	if !ict.IsUnsigned() {
		return fmt.Errorf("%w: sparse indices must be unsigned, got %s", ErrUnsupportedComponentType, ict)
	}

	ibv, err := d.BufferView(s.Indices.BufferView)
	if err != nil {
		return err
	}
	ib, err := d.viewBytes(ibv)
	if err != nil {
		return err
	}
	if end := s.Indices.ByteOffset + s.Count*ict.Size(); s.Indices.ByteOffset < 0 || end > len(ib) {
		return fmt.Errorf("%w: sparse indices need %d bytes, have %d", ErrOutOfBounds, end, len(ib))
	}

	vbv, err := d.BufferView(s.Values.BufferView)
	if err != nil {
		return err
	}
	vb, err := d.viewBytes(vbv)
	if err != nil {
		return err
	}
	size := elementSize(acc.ComponentType, acc.Type)
	if end := s.Values.ByteOffset + s.Count*size; s.Values.ByteOffset < 0 || end > len(vb) {
		return fmt.Errorf("%w: sparse values need %d bytes, have %d", ErrOutOfBounds, end, len(vb))
	}

	n := out.Components
	values := make([]T, s.Count*n)
	decode(values, vb[s.Values.ByteOffset:], acc.ComponentType, acc.Type, s.Count, size, normalize)

	ix := ib[s.Indices.ByteOffset:]
	for k := 0; k < s.Count; k++ {
		idx := int(component(ix[k*ict.Size():], ict))
		if idx >= acc.Count {
			return fmt.Errorf("%w: sparse index %d not below count %d", ErrOutOfBounds, idx, acc.Count)
		}
		copy(out.Data[idx*n:(idx+1)*n], values[k*n:(k+1)*n])
	}
	return nil
}

// elementSize is the byte size of one element, including the 4-byte column
// alignment glTF requires for matrices of 1- and 2-byte components.
func elementSize(ct ComponentType, t AccessorType) int {
	_, colStride, cols := layout(ct, t)
	return colStride * cols
}

func layout(ct ComponentType, t AccessorType) (rows, colStride, cols int) {
	cols = t.columns()
	rows = t.NumberOfComponents() / cols
	colStride = rows * ct.Size()
	if cols > 1 {
		colStride = (colStride + 3) &^ 3
	}
	return rows, colStride, cols
}

func decode[T Number](dst []T, src []byte, ct ComponentType, t AccessorType, count, stride int, normalize bool) {
	rows, colStride, cols := layout(ct, t)
	cs := ct.Size()
	n := rows * cols
	for i := 0; i < count; i++ {
		base := i * stride
		for c := 0; c < cols; c++ {
			for r := 0; r < rows; r++ {
				v := component(src[base+c*colStride+r*cs:], ct)
				if normalize {
					v = normalized(v, ct)
				}
				dst[i*n+c*rows+r] = T(v)
			}
		}
	}
}

// component decodes one little-endian component. Every component type is
// exactly representable as float64.
func component(b []byte, ct ComponentType) float64 {
	switch ct {
	case ComponentByte:
		return float64(int8(b[0]))
	case ComponentUnsignedByte:
		return float64(b[0])
	case ComponentShort:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case ComponentUnsignedShort:
		return float64(binary.LittleEndian.Uint16(b))
	case ComponentUnsignedInt:
		return float64(binary.LittleEndian.Uint32(b))
	case ComponentFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return 0
	}
}

func normalized(v float64, ct ComponentType) float64 {
	switch ct {
	case ComponentByte:
		return math.Max(v/127, -1)
	case ComponentUnsignedByte:
		return v / 255
	case ComponentShort:
		return math.Max(v/32767, -1)
	case ComponentUnsignedShort:
		return v / 65535
	case ComponentUnsignedInt:
		return v / 4294967295
	default:
		return v
	}
}

func isFloat[T Number]() bool {
	switch any(T(0)).(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

// checkTarget rejects conversions that would lose integer range.
func checkTarget[T Number](ct ComponentType) error {
	if isFloat[T]() {
		return nil
	}
	if ct == ComponentFloat {
		return fmt.Errorf("%w: float components into %T", ErrTypeMismatch, T(0))
	}
	lo, hi := componentRange(ct)
	tlo, thi := targetRange[T]()
	if lo < tlo || hi > thi {
		return fmt.Errorf("%w: %s does not fit %T", ErrTypeMismatch, ct, T(0))
	}
	return nil
}

func componentRange(ct ComponentType) (lo, hi float64) {
	switch ct {
	case ComponentByte:
		return math.MinInt8, math.MaxInt8
	case ComponentUnsignedByte:
		return 0, math.MaxUint8
	case ComponentShort:
		return math.MinInt16, math.MaxInt16
	case ComponentUnsignedShort:
		return 0, math.MaxUint16
	default:
		return 0, math.MaxUint32
	}
}

func targetRange[T Number]() (lo, hi float64) {
	switch any(T(0)).(type) {
	case int8:
		return math.MinInt8, math.MaxInt8
	case uint8:
		return 0, math.MaxUint8
	case int16:
		return math.MinInt16, math.MaxInt16
	case uint16:
		return 0, math.MaxUint16
	case int32:
		return math.MinInt32, math.MaxInt32
	case uint32:
		return 0, math.MaxUint32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

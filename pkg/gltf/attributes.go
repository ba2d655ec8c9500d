package gltf

import (
	"fmt"

	"github.com/Faultbox/gltfkit/pkg/math"
)

// ReadFloats materializes an accessor as float32, normalizing if requested.
func ReadFloats(d *Document, index int) (*Array[float32], error) {
	return Read[float32](d, index)
}

// ReadUints materializes an integer accessor as uint32.
func ReadUints(d *Document, index int) (*Array[uint32], error) {
	return Read[uint32](d, index)
}

func readTyped(d *Document, index int, want AccessorType) (*Array[float32], error) {
	acc, err := d.Accessor(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != want {
		return nil, fmt.Errorf("accessor %d: %w: %s, want %s", index, ErrTypeMismatch, acc.Type, want)
	}
	return ReadFloats(d, index)
}

// ReadScalars reads a SCALAR accessor.
func ReadScalars(d *Document, index int) ([]float32, error) {
	a, err := readTyped(d, index, TypeScalar)
	if err != nil {
		return nil, err
	}
	return a.Data, nil
}

// ReadVec2 reads a VEC2 accessor.
func ReadVec2(d *Document, index int) ([][2]float32, error) {
	a, err := readTyped(d, index, TypeVec2)
	if err != nil {
		return nil, err
	}
	out := make([][2]float32, a.Count)
	for i := range out {
		copy(out[i][:], a.At(i))
	}
	return out, nil
}

// ReadVec3 reads a VEC3 accessor.
func ReadVec3(d *Document, index int) ([][3]float32, error) {
	a, err := readTyped(d, index, TypeVec3)
	if err != nil {
		return nil, err
	}
	out := make([][3]float32, a.Count)
	for i := range out {
		copy(out[i][:], a.At(i))
	}
	return out, nil
}

// ReadVec4 reads a VEC4 accessor.
func ReadVec4(d *Document, index int) ([][4]float32, error) {
	a, err := readTyped(d, index, TypeVec4)
	if err != nil {
		return nil, err
	}
	out := make([][4]float32, a.Count)
	for i := range out {
		copy(out[i][:], a.At(i))
	}
	return out, nil
}

// ReadColors reads a COLOR_n accessor, expanding VEC3 to opaque RGBA.
func ReadColors(d *Document, index int) ([][4]float32, error) {
	acc, err := d.Accessor(index)
	if err != nil {
		return nil, err
	}
	if acc.Type == TypeVec4 {
		return ReadVec4(d, index)
	}
	rgb, err := ReadVec3(d, index)
	if err != nil {
		return nil, err
	}
	out := make([][4]float32, len(rgb))
	for i, c := range rgb {
		out[i] = [4]float32{c[0], c[1], c[2], 1}
	}
	return out, nil
}

// ReadMat4 reads a MAT4 accessor.
func ReadMat4(d *Document, index int) ([]math.Mat4, error) {
	a, err := readTyped(d, index, TypeMat4)
	if err != nil {
		return nil, err
	}
	out := make([]math.Mat4, a.Count)
	for i := range out {
		copy(out[i][:], a.At(i))
	}
	return out, nil
}

// ReadIndices reads a SCALAR accessor of unsigned integers.
func ReadIndices(d *Document, index int) ([]uint32, error) {
	acc, err := d.Accessor(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != TypeScalar || !acc.ComponentType.IsUnsigned() {
		return nil, fmt.Errorf("accessor %d: %w: indices must be unsigned scalars", index, ErrTypeMismatch)
	}
	a, err := ReadUints(d, index)
	if err != nil {
		return nil, err
	}
	return a.Data, nil
}

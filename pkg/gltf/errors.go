package gltf

import (
	"errors"
	"fmt"
)

// Fatal errors abort the whole load.
var (
	ErrMalformedContainer           = errors.New("malformed GLB container")
	ErrMalformedDocument            = errors.New("malformed glTF JSON document")
	ErrUnsupportedVersion           = errors.New("unsupported glTF version")
	ErrUnsupportedRequiredExtension = errors.New("unsupported required extension")
	ErrStructure                    = errors.New("invalid node hierarchy")
)

// Local errors affect a single element, accessor or operation.
var (
	ErrMissingOrInvalidField    = errors.New("missing or invalid field")
	ErrOutOfBounds              = errors.New("out of bounds")
	ErrUnsupportedComponentType = errors.New("unsupported component type")
	ErrTypeMismatch             = errors.New("accessor type mismatch")
	ErrWrongPhase               = errors.New("operation not allowed in current load phase")
)

// Warning is a recoverable problem recorded while loading or evaluating a
// document. Err is one of the sentinel errors above.
type Warning struct {
	Err     error
	Message string
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Message, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

package tesswrap

import (
	"errors"
	"fmt"
)

// Errors returned by [Engine] and [ResultIterator]. Match them with [errors.Is];
// most are wrapped with details about the failing call.
var (
	// construction errors
	ErrEngineCreationFailed = errors.New("tesseract: engine creation failed")
	ErrInitializationFailed = errors.New("tesseract: initialization failed")

	// input validation errors, always raised before a native call
	ErrInvalidImageData = errors.New("tesseract: invalid image data")
	ErrInvalidArgument  = errors.New("tesseract: invalid argument")

	// native call errors
	ErrTextExtractionFailed = errors.New("tesseract: text extraction failed")
	ErrRecognitionFailed    = errors.New("tesseract: recognition failed")
	ErrVariableNotFound     = errors.New("tesseract: variable not found")
	ErrNativeCall           = errors.New("tesseract: native call failed")

	// encoding errors
	ErrInvalidUTF8 = errors.New("tesseract: output is not valid UTF-8")

	// state errors
	ErrNotInitialized      = errors.New("tesseract: engine not initialized")
	ErrEngineClosed        = errors.New("tesseract: use of closed engine")
	ErrIteratorClosed      = errors.New("tesseract: use of closed result iterator")
	ErrIteratorInvalidated = errors.New("tesseract: result iterator invalidated by a later engine call")
)

// ImageError reports which invariant of an [Image] was violated.
type ImageError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("%v: %s = %d: %s", ErrInvalidImageData, e.Field, e.Value, e.Reason)
}

func (e *ImageError) Unwrap() error {
	return ErrInvalidImageData
}

// UTF8Error is returned when native output is not valid UTF-8.
// Offset is the position of the first invalid byte.
type UTF8Error struct {
	Op     string
	Offset int
	Len    int
}

func (e *UTF8Error) Error() string {
	return fmt.Sprintf("%v: %s: invalid byte at offset %d of %d", ErrInvalidUTF8, e.Op, e.Offset, e.Len)
}

func (e *UTF8Error) Unwrap() error {
	return ErrInvalidUTF8
}

// opError decorates a sentinel with the name of the failing operation.
func opError(op string, sentinel error, format string, args ...any) error {
	if format == "" {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return fmt.Errorf("%s: %w: %s", op, sentinel, fmt.Sprintf(format, args...))
}

package tesswrap

import (
	"unicode/utf8"
	"unsafe"
)

// maxNativeString bounds the strlen scan of native output.
const maxNativeString = 1 << 30

// copyCString copies a NUL-terminated native string into Go memory.
func copyCString(p *byte) []byte {
	if p == nil {
		return nil
	}
	n := 0
	for n < maxNativeString && *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice(p, n))
	return out
}

// takeText copies a native string, releases it exactly once and validates its encoding.
// A nil pointer is reported as ErrTextExtractionFailed.
func (in *instance) takeText(op string, p *byte) (string, error) {
	if p == nil {
		return "", opError(op, ErrTextExtractionFailed, "engine returned no text")
	}
	var raw []byte
	err := in.native(op, func() {
		defer in.backend.DeleteText(p)
		raw = copyCString(p)
	})
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", &UTF8Error{Op: op, Offset: firstInvalid(raw), Len: len(raw)}
	}
	return string(raw), nil
}

func firstInvalid(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}

/*
Package tesswrap is a safe binding to the Tesseract OCR C API.

The library is loaded at runtime with purego (see [LoadLibrary]), so no cgo toolchain is
needed to build programs using it. [Backend] is the raw boundary; [Engine] is the safe handle
built on top of it:

  - Validation and lifecycle errors are reported before anything reaches native code.
  - Native strings are copied into Go memory, released exactly once and checked for valid UTF-8.
  - Image pixels are copied into a buffer that stays valid and unmoved until the engine
    forgets the image, because Tesseract keeps a pointer into it between calls.
  - Backend panics are recovered and surfaced as [ErrNativeCall].

Clones of an Engine share one native instance behind a mutex: calls serialize and
configuration is shared by all clones. Package tesspool offers the other policy, a pool
of independently initialized instances for parallel recognition.
*/
package tesswrap

// Version returns the version string of the native library behind b.
func Version(b Backend) (v string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opError("Version", ErrNativeCall, "%v", r)
		}
	}()
	return b.Version(), nil
}

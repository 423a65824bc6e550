//go:build !linux && !darwin && !tesseract_lib

package tesswrap

import (
	"fmt"
	"runtime"
)

var DefaultLibNames = []string{"libtesseract-5.dll", "tesseract55.dll"}

// LoadLibrary is not implemented on this platform; use a Backend of your own with [New].
func LoadLibrary(path string) (Backend, error) {
	return nil, fmt.Errorf("%w: native binding is not supported on %s", ErrEngineCreationFailed, runtime.GOOS)
}

func LibraryPath(b Backend) string {
	return ""
}

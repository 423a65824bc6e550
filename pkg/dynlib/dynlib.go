// Package dynlib opens shared objects / DLLs at runtime so they can be bound with purego.
package dynlib

import "errors"

var errNoCandidates = errors.New("dynlib: no library paths given")

// Lib is an opened shared library.
type Lib struct {
	Handle uintptr
	// Path is the candidate that could be opened
	Path string
}

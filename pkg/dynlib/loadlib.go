//go:build linux || darwin

package dynlib

import (
	"errors"

	"github.com/ebitengine/purego"
)

// TryLoadLib tries to load a shared object from the given paths, in order,
// and returns the first one that could be opened.
// The errors of all failed attempts are joined.
func TryLoadLib(paths ...string) (*Lib, error) {
	if len(paths) == 0 {
		return nil, errNoCandidates
	}
	var err error
	for _, path := range paths {
		lib, liberr := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if lib != 0 {
			return &Lib{Handle: lib, Path: path}, nil
		}
		err = errors.Join(err, liberr)
	}
	return nil, err
}

// Close unloads the library. Functions registered from it must not be called afterwards.
func (l *Lib) Close() error {
	if l == nil || l.Handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.Handle)
	l.Handle = 0
	return err
}

package dynlib

import (
	"errors"
	"syscall"
)

// TryLoadLib tries to load a DLL from the given paths, in order,
// and returns the first one that could be opened.
// The errors of all failed attempts are joined.
func TryLoadLib(paths ...string) (*Lib, error) {
	if len(paths) == 0 {
		return nil, errNoCandidates
	}
	var err error
	for _, path := range paths {
		lib, liberr := syscall.LoadLibrary(path)
		if lib != 0 {
			return &Lib{Handle: uintptr(lib), Path: path}, nil
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
	err := syscall.FreeLibrary(syscall.Handle(l.Handle))
	l.Handle = 0
	return err
}

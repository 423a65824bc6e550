package tesswrap

import (
	"bufio"
	"bytes"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SetVariable sets a Tesseract parameter such as "tessedit_char_whitelist".
// Names the engine does not know fail with [ErrVariableNotFound]; nothing is silently ignored.
// The value is shared with every clone of e.
func (e *Engine) SetVariable(name, value string) error {
	const op = "SetVariable"
	in, err := e.acquire(op, true)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	if err := checkName(op, name); err != nil {
		return err
	}
	if strings.ContainsRune(value, 0) {
		return opError(op, ErrInvalidArgument, "value of %s contains a NUL byte", name)
	}
	prev, seen := in.prior[name]
	if !seen {
		if prev, err = in.currentValueLocked(op, name); err != nil {
			return err
		}
	}
	var ok bool
	err = in.native(op, func() {
		ok = in.backend.SetVariable(in.handle, name, value)
	})
	if err != nil {
		return err
	}
	if !ok {
		return opError(op, ErrVariableNotFound, "%s", name)
	}
	in.prior[name] = prev
	in.vars[name] = value
	in.log.Debug("Variable set", "name", name, "value", value)
	return nil
}

// SetVariables applies vars sorted by name and stops at the first failure.
func (e *Engine) SetVariables(vars map[string]string) error {
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		if err := e.SetVariable(name, vars[name]); err != nil {
			return err
		}
	}
	return nil
}

func checkName(op, name string) error {
	if name == "" || strings.ContainsRune(name, 0) {
		return opError(op, ErrVariableNotFound, "%q", name)
	}
	return nil
}

// getVariable runs one typed getter under the lock.
func getVariable[T any](e *Engine, op, name string, get func(Backend, Handle, string) (T, bool)) (T, error) {
	var v T
	in, err := e.acquire(op, true)
	if err != nil {
		return v, err
	}
	defer in.mu.Unlock()
	if err := checkName(op, name); err != nil {
		return v, err
	}
	var ok bool
	err = in.native(op, func() {
		v, ok = get(in.backend, in.handle, name)
	})
	if err != nil {
		return v, err
	}
	if !ok {
		return v, opError(op, ErrVariableNotFound, "%s", name)
	}
	return v, nil
}

// StringVariable returns the value of a string parameter.
func (e *Engine) StringVariable(name string) (string, error) {
	return getVariable(e, "StringVariable", name, Backend.StringVariable)
}

func (e *Engine) IntVariable(name string) (int, error) {
	v, err := getVariable(e, "IntVariable", name, Backend.IntVariable)
	return int(v), err
}

func (e *Engine) BoolVariable(name string) (bool, error) {
	return getVariable(e, "BoolVariable", name, Backend.BoolVariable)
}

func (e *Engine) DoubleVariable(name string) (float64, error) {
	return getVariable(e, "DoubleVariable", name, Backend.DoubleVariable)
}

// SetPageSegMode sets the page segmentation mode used by the next recognition.
func (e *Engine) SetPageSegMode(mode PageSegMode) error {
	const op = "SetPageSegMode"
	in, err := e.acquire(op, true)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	if !mode.Valid() {
		return opError(op, ErrInvalidArgument, "page segmentation mode %d", mode)
	}
	return in.native(op, func() {
		in.backend.SetPageSegMode(in.handle, mode)
	})
}

func (e *Engine) PageSegMode() (PageSegMode, error) {
	const op = "PageSegMode"
	in, err := e.acquire(op, true)
	if err != nil {
		return 0, err
	}
	defer in.mu.Unlock()
	var mode PageSegMode
	err = in.native(op, func() {
		mode = in.backend.PageSegMode(in.handle)
	})
	return mode, err
}

// InitLanguages returns the language string the engine was initialized with, as reported by Tesseract.
func (e *Engine) InitLanguages() (string, error) {
	return query(e, "InitLanguages", Backend.InitLanguages)
}

// LoadedLanguages lists the languages actually loaded, including those pulled in by the model files.
func (e *Engine) LoadedLanguages() ([]string, error) {
	return query(e, "LoadedLanguages", Backend.LoadedLanguages)
}

// AvailableLanguages lists the languages found in the data path.
func (e *Engine) AvailableLanguages() ([]string, error) {
	return query(e, "AvailableLanguages", Backend.AvailableLanguages)
}

// Datapath returns the data path in use. Libraries without TessBaseAPIGetDatapath
// report the path passed to Init.
func (e *Engine) Datapath() (string, error) {
	const op = "Datapath"
	in, err := e.acquire(op, true)
	if err != nil {
		return "", err
	}
	defer in.mu.Unlock()
	var p string
	err = in.native(op, func() {
		p = in.backend.Datapath(in.handle)
	})
	if p == "" {
		p = in.datapath
	}
	return p, err
}

func query[T any](e *Engine, op string, get func(Backend, Handle) T) (T, error) {
	var v T
	in, err := e.acquire(op, true)
	if err != nil {
		return v, err
	}
	defer in.mu.Unlock()
	err = in.native(op, func() {
		v = get(in.backend, in.handle)
	})
	return v, err
}

// ReadConfigFile sets the variables listed in a Tesseract config file, one "name value" pair
// per line with # starting a comment. name is looked up in the configs and tessconfigs
// directories of the data path first, then taken as a path. Like changes made with
// SetVariable, those of the file are undone by [Engine.Restore].
func (e *Engine) ReadConfigFile(name string) error {
	const op = "ReadConfigFile"
	in, err := e.acquire(op, true)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	if name == "" || strings.ContainsRune(name, 0) {
		return opError(op, ErrInvalidArgument, "config file name %q", name)
	}
	path, ok := findConfig(in.datapath, name)
	if !ok {
		return opError(op, ErrInvalidArgument, "config file %s not found", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opError(op, ErrInvalidArgument, "%v", err)
	}
	vars := parseConfig(data)
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		if _, seen := in.prior[name]; seen {
			continue
		}
		prev, err := in.currentValueLocked(op, name)
		if err != nil {
			return err
		}
		in.prior[name] = prev
	}
	err = in.native(op, func() {
		in.backend.ReadConfigFile(in.handle, path)
	})
	if err != nil {
		return err
	}
	for name, value := range vars {
		// names no getter knows are left to a re-Init on Restore
		if in.prior[name].known {
			in.vars[name] = value
		}
	}
	in.log.Debug("Config file read", "path", path, "variables", len(vars))
	return nil
}

func findConfig(datapath, name string) (string, bool) {
	for _, p := range []string{
		filepath.Join(datapath, "configs", name),
		filepath.Join(datapath, "tessconfigs", name),
		name,
	} {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// parseConfig reads "name value" lines the way Tesseract does: the value is the rest of the line.
func parseConfig(data []byte) map[string]string {
	vars := make(map[string]string)
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		line := strings.TrimLeft(s.Text(), " \t")
		if line == "" || line[0] == '#' {
			continue
		}
		name, value := line, ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			name, value = line[:i], strings.TrimSpace(line[i+1:])
		}
		vars[name] = value
	}
	return vars
}

// ClearAdaptiveClassifier forgets what the legacy engine adapted to on earlier pages.
func (e *Engine) ClearAdaptiveClassifier() error {
	const op = "ClearAdaptiveClassifier"
	in, err := e.acquire(op, true)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	return in.native(op, func() {
		in.backend.ClearAdaptiveClassifier(in.handle)
	})
}

// Package tessdata locates Tesseract model data. It only reads the filesystem;
// populating the directory is left to whoever installs the models.
package tessdata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// EnvPrefix is the environment variable Tesseract itself reads for the data directory.
const EnvPrefix = "TESSDATA_PREFIX"

const suffix = ".traineddata"

var (
	ErrNoDatapath      = errors.New("tessdata: data directory not found")
	ErrMissingLanguage = errors.New("tessdata: language data not found")
)

// Resolve returns the data directory: $TESSDATA_PREFIX if set, otherwise the per-user default.
func Resolve() string {
	if dir := os.Getenv(EnvPrefix); dir != "" {
		return dir
	}
	return DefaultDir()
}

// DefaultDir is the per-user cache directory:
//
//	macOS:   ~/Library/Application Support/tesseract-rs/tessdata
//	Windows: %APPDATA%\tesseract-rs\tessdata
//	others:  ~/.tesseract-rs/tessdata
func DefaultDir() string {
	return defaultDir(runtime.GOOS, os.Getenv)
}

func defaultDir(goos string, getenv func(string) string) string {
	home := getenv("HOME")
	if home == "" && getenv("USER") != "" {
		home = filepath.Join("/home", getenv("USER"))
	}
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "tesseract-rs", "tessdata")
	case "windows":
		appData := getenv("APPDATA")
		if appData == "" && getenv("USERPROFILE") != "" {
			appData = getenv("USERPROFILE") + `\AppData\Roaming`
		}
		return appData + `\tesseract-rs\tessdata`
	}
	return filepath.Join(home, ".tesseract-rs", "tessdata")
}

// Verify checks that dir is a directory containing <lang>.traineddata for every
// language of a "+" separated list such as "deu+eng".
func Verify(dir, languages string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoDatapath, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNoDatapath, dir)
	}
	var errs []error
	for _, lang := range strings.Split(languages, "+") {
		if lang == "" {
			errs = append(errs, fmt.Errorf("%w: empty language in %q", ErrMissingLanguage, languages))
			continue
		}
		p := filepath.Join(dir, lang+suffix)
		fi, err := os.Stat(p)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingLanguage, p))
		case fi.IsDir() || fi.Size() == 0:
			errs = append(errs, fmt.Errorf("%w: %s is empty", ErrMissingLanguage, p))
		}
	}
	return errors.Join(errs...)
}

// Installed lists the languages with model data in dir, sorted.
func Installed(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNoDatapath, err)
		}
		return nil, err
	}
	var langs []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), suffix); ok && !e.IsDir() && name != "" {
			langs = append(langs, name)
		}
	}
	slices.Sort(langs)
	return langs, nil
}

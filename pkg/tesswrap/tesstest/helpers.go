package tesstest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/johbar/tesseract-purego/pkg/tesswrap"
)

// Tessdata creates a temporary data directory holding a model file for every language.
// The stub accepts these files; a real library does not.
func Tessdata(tb testing.TB, langs ...string) string {
	tb.Helper()
	dir := tb.TempDir()
	for _, lang := range langs {
		if err := os.WriteFile(filepath.Join(dir, lang+".traineddata"), []byte("stub model\n"), 0o644); err != nil {
			tb.Fatal(err)
		}
	}
	return dir
}

// Gray returns a width x height image with one byte per pixel, all set to v.
func Gray(width, height int, v byte) tesswrap.Image {
	data := make([]byte, width*height)
	for i := range data {
		data[i] = v
	}
	return tesswrap.Image{Data: data, Width: width, Height: height, BytesPerPixel: 1, BytesPerLine: width}
}

// NewEngine returns an engine on b initialized with "eng" from a fresh data directory.
// It is closed when the test ends.
func NewEngine(tb testing.TB, b tesswrap.Backend, opts ...tesswrap.Option) *tesswrap.Engine {
	tb.Helper()
	e, err := tesswrap.New(b, opts...)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { e.Close() })
	if err := e.Init(Tessdata(tb, "eng"), "eng"); err != nil {
		tb.Fatal(err)
	}
	return e
}

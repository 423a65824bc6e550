package tesswrap_test

import (
	"testing"

	"github.com/johbar/tesseract-purego/pkg/tesswrap/tesstest"
)

func BenchmarkStubSetImageText(b *testing.B) {
	e := tesstest.NewEngine(b, tesstest.New())
	img := tesstest.Gray(640, 480, 3)
	for b.Loop() {
		if err := e.SetRawImage(img); err != nil {
			b.Fatal(err)
		}
		if _, err := e.Text(); err != nil {
			b.Fatal(err)
		}
	}
}

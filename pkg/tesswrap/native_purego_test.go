//go:build (linux || darwin) && !tesseract_lib

package tesswrap_test

import (
	"testing"

	"github.com/johbar/tesseract-purego/pkg/tesswrap"
)

func checkStructuredOutput(t *testing.T, e *tesswrap.Engine) {
	t.Helper()
	if _, err := e.HOCRText(0); err != nil {
		t.Error(err)
	}
	spans, err := e.Spans(tesswrap.RIL_WORD)
	if err != nil {
		t.Fatal(err)
	}
	if len(spans) == 0 {
		t.Error("no words")
	}
	elems, err := e.Layout(tesswrap.RIL_WORD)
	if err != nil {
		t.Fatal(err)
	}
	if len(elems) == 0 {
		t.Error("layout analysis found no words")
	}
}

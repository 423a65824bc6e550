//go:build tesseract_lib

package tesswrap_test

import (
	"errors"
	"testing"

	"github.com/johbar/tesseract-purego/pkg/tesswrap"
)

// The linked bindings only produce plain text; everything else fails cleanly.
func checkStructuredOutput(t *testing.T, e *tesswrap.Engine) {
	t.Helper()
	if _, err := e.HOCRText(0); !errors.Is(err, tesswrap.ErrTextExtractionFailed) {
		t.Errorf("HOCRText: got %v", err)
	}
	if _, err := e.Spans(tesswrap.RIL_WORD); err == nil {
		t.Error("Spans succeeded without iterator support")
	}
}

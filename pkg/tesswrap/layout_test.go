package tesswrap_test

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/johbar/tesseract-purego/pkg/tesswrap"
	"github.com/johbar/tesseract-purego/pkg/tesswrap/tesstest"
)

func TestLayoutWords(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	elems, err := e.Layout(tesswrap.RIL_WORD)
	if err != nil {
		t.Fatal(err)
	}
	if len(elems) != 3 {
		t.Fatalf("got %d elements, want 3", len(elems))
	}
	for i, el := range elems {
		x := 10 * i
		if want := image.Rect(x, 0, x+9, 3); el.Bounds != want {
			t.Errorf("element %d: bounds %v, want %v", i, el.Bounds, want)
		}
		if el.Level != tesswrap.RIL_WORD || el.BlockType != tesswrap.PT_FLOWING_TEXT {
			t.Errorf("element %d: %+v", i, el)
		}
		if want := (tesswrap.Baseline{From: image.Pt(x, 2), To: image.Pt(x+9, 2)}); el.Baseline == nil || *el.Baseline != want {
			t.Errorf("element %d: baseline %v, want %v", i, el.Baseline, want)
		}
		if el.Orientation.Orientation != tesswrap.ORIENTATION_PAGE_UP ||
			el.Orientation.WritingDirection != tesswrap.WRITING_DIRECTION_LEFT_TO_RIGHT ||
			el.Orientation.TextlineOrder != tesswrap.TEXTLINE_ORDER_TOP_TO_BOTTOM {
			t.Errorf("element %d: orientation %+v", i, el.Orientation)
		}
		if el.Paragraph == nil || el.Paragraph.Justification != tesswrap.JUSTIFICATION_LEFT {
			t.Errorf("element %d: paragraph %+v", i, el.Paragraph)
		}
	}
	if n := stub.Called("Recognize"); n != 0 {
		t.Errorf("layout analysis recognized %d times", n)
	}
	if n := stub.Called("PageIteratorDelete"); n != 1 {
		t.Errorf("PageIteratorDelete called %d times", n)
	}
	if _, iters, _ := stub.Live(); iters != 0 {
		t.Errorf("%d iterators alive", iters)
	}
	checkClean(t, stub)
}

func TestLayoutBlocks(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	elems, err := e.Layout(tesswrap.RIL_BLOCK)
	if err != nil {
		t.Fatal(err)
	}
	if len(elems) != 1 {
		t.Fatalf("got %d blocks", len(elems))
	}
	if elems[0].Paragraph != nil {
		t.Errorf("block has paragraph info %+v", elems[0].Paragraph)
	}
	checkClean(t, stub)
}

func TestLayoutErrors(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if _, err := e.AnalyseLayout(tesswrap.RIL_WORD); !errors.Is(err, tesswrap.ErrInvalidArgument) {
		t.Errorf("without image: got %v", err)
	}
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AnalyseLayout(tesswrap.Level(42)); !errors.Is(err, tesswrap.ErrInvalidArgument) {
		t.Errorf("bad level: got %v", err)
	}
	if n := stub.Called("AnalyseLayout"); n != 0 {
		t.Errorf("AnalyseLayout reached the library %d times", n)
	}
	checkClean(t, stub)
}

func TestLayoutInvalidation(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	words, err := e.Iterator(tesswrap.RIL_WORD)
	if err != nil {
		t.Fatal(err)
	}
	defer words.Close()
	if !words.Next() {
		t.Fatal(words.Err())
	}
	// a new analysis drops the recognition result
	pit, err := e.AnalyseLayout(tesswrap.RIL_WORD)
	if err != nil {
		t.Fatal(err)
	}
	if words.Next() {
		t.Error("result iterator survived layout analysis")
	}
	if err := words.Err(); !errors.Is(err, tesswrap.ErrIteratorInvalidated) {
		t.Errorf("result iterator: got %v", err)
	}
	if !pit.Next() {
		t.Fatal(pit.Err())
	}
	if err := e.SetRawImage(tesstest.Gray(2, 2, 1)); err != nil {
		t.Fatal(err)
	}
	if pit.Next() {
		t.Error("page iterator survived a new image")
	}
	if err := pit.Err(); !errors.Is(err, tesswrap.ErrIteratorInvalidated) {
		t.Errorf("page iterator: got %v", err)
	}
	if err := pit.Close(); err != nil {
		t.Fatal(err)
	}
	if n := stub.Called("PageIteratorDelete"); n != 1 {
		t.Errorf("PageIteratorDelete called %d times", n)
	}
	if _, iters, _ := stub.Live(); iters != 0 {
		t.Errorf("%d iterators alive", iters)
	}
	checkClean(t, stub)
}

func TestWordAttributes(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	spans, err := e.Spans(tesswrap.RIL_WORD)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range spans {
		if s.Word == nil {
			t.Fatalf("word %q without attributes", s.Text)
		}
		if s.Word.Language != "eng" || s.Word.Numeric || s.Word.Font.Name != "Stub_Sans" || s.Symbol != nil {
			t.Errorf("word %q: %+v, %+v", s.Text, s.Word, s.Symbol)
		}
	}

	if err := e.SetVariable("tessedit_char_whitelist", "0123456789"); err != nil {
		t.Fatal(err)
	}
	if err := e.Recognize(); err != nil {
		t.Fatal(err)
	}
	spans, err = e.Spans(tesswrap.RIL_WORD)
	if err != nil {
		t.Fatal(err)
	}
	if len(spans) != 3 {
		t.Fatalf("got %d words", len(spans))
	}
	for _, s := range spans {
		if !s.Word.Numeric {
			t.Errorf("word %q is not numeric", s.Text)
		}
	}

	lines, err := e.Spans(tesswrap.RIL_TEXTLINE)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0].Word != nil || lines[0].Symbol != nil {
		t.Errorf("line spans %+v", lines)
	}
	checkClean(t, stub)
}

func TestSymbolAttributes(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	syms, err := e.Spans(tesswrap.RIL_SYMBOL)
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) < 2 {
		t.Fatalf("got %d symbols", len(syms))
	}
	if syms[0].Symbol == nil || !syms[0].Symbol.Dropcap {
		t.Errorf("first symbol %+v", syms[0].Symbol)
	}
	if syms[1].Symbol == nil || syms[1].Symbol.Dropcap || syms[1].Word != nil {
		t.Errorf("second symbol %+v", syms[1])
	}
	checkClean(t, stub)
}

func writeConfig(t *testing.T, e *tesswrap.Engine, name, content string) {
	t.Helper()
	datapath, err := e.Datapath()
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(datapath, "configs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadConfigFile(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	writeConfig(t, e, "digits", "# digits only\ntessedit_char_whitelist 0123456789\nuser_defined_dpi\t300\n")
	if err := e.ReadConfigFile("digits"); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.StringVariable("tessedit_char_whitelist"); v != "0123456789" {
		t.Errorf("whitelist = %q", v)
	}
	if v, _ := e.IntVariable("user_defined_dpi"); v != 300 {
		t.Errorf("dpi = %d", v)
	}
	changed, err := e.Changed()
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 2 || changed[0] != "tessedit_char_whitelist" || changed[1] != "user_defined_dpi" {
		t.Errorf("changed %q", changed)
	}
	if err := e.Restore(); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.StringVariable("tessedit_char_whitelist"); v != "" {
		t.Errorf("whitelist after restore = %q", v)
	}
	if v, _ := e.IntVariable("user_defined_dpi"); v != 0 {
		t.Errorf("dpi after restore = %d", v)
	}
	if n := stub.Called("Init"); n != 1 {
		t.Errorf("Init called %d times", n)
	}
	checkClean(t, stub)
}

func TestReadConfigFileUnknownVariable(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	writeConfig(t, e, "odd", "no_such_variable 1\ntessedit_char_blacklist xyz\n")
	if err := e.ReadConfigFile("odd"); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.StringVariable("tessedit_char_blacklist"); v != "xyz" {
		t.Errorf("blacklist = %q", v)
	}
	if err := e.Restore(); err != nil {
		t.Fatal(err)
	}
	if n := stub.Called("Init"); n != 2 {
		t.Errorf("Init called %d times, want a second one for the unreadable variable", n)
	}
	if v, _ := e.StringVariable("tessedit_char_blacklist"); v != "" {
		t.Errorf("blacklist after restore = %q", v)
	}
	checkClean(t, stub)
}

func TestReadConfigFileByPath(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	path := filepath.Join(t.TempDir(), "dpi.cfg")
	if err := os.WriteFile(path, []byte("user_defined_dpi 150\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.ReadConfigFile(path); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.IntVariable("user_defined_dpi"); v != 150 {
		t.Errorf("dpi = %d", v)
	}
	checkClean(t, stub)
}

func TestReadConfigFileErrors(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	for _, name := range []string{"", "missing", "nul\x00name"} {
		if err := e.ReadConfigFile(name); !errors.Is(err, tesswrap.ErrInvalidArgument) {
			t.Errorf("%q: got %v", name, err)
		}
	}
	if n := stub.Called("ReadConfigFile"); n != 0 {
		t.Errorf("ReadConfigFile reached the library %d times", n)
	}
	checkClean(t, stub)
}

func TestClearAdaptiveClassifier(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.ClearAdaptiveClassifier(); err != nil {
		t.Fatal(err)
	}
	if n := stub.Called("ClearAdaptiveClassifier"); n != 1 {
		t.Errorf("ClearAdaptiveClassifier called %d times", n)
	}
	checkClean(t, stub)
}

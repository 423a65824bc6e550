package tesswrap_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/johbar/tesseract-purego/pkg/tesswrap"
	"github.com/johbar/tesseract-purego/pkg/tesswrap/tesstest"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func checkClean(t *testing.T, stub *tesstest.Backend) {
	t.Helper()
	if v := stub.Violations(); len(v) > 0 {
		t.Errorf("backend misuse: %q", v)
	}
}

func TestInitNonexistentPath(t *testing.T) {
	stub := tesstest.New()
	e, err := tesswrap.New(stub)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	err = e.Init("/nonexistent/path", "eng")
	if !errors.Is(err, tesswrap.ErrInitializationFailed) {
		t.Fatalf("got %v, want ErrInitializationFailed", err)
	}
	if n := stub.Called("Init"); n != 0 {
		t.Errorf("native Init called %d times", n)
	}
	if s := e.State(); s != tesswrap.StateCreated {
		t.Errorf("state = %v", s)
	}
}

func TestInitFailures(t *testing.T) {
	tests := []struct {
		name  string
		langs string
		dir   func(t *testing.T) string
	}{
		{"missing language", "eng+fra", func(t *testing.T) string { return tesstest.Tessdata(t, "eng") }},
		{"empty language", "", func(t *testing.T) string { return tesstest.Tessdata(t, "eng") }},
		{"NUL in language", "eng\x00", func(t *testing.T) string { return tesstest.Tessdata(t, "eng") }},
		{"native rejects model", "eng", func(t *testing.T) string {
			dir := tesstest.Tessdata(t)
			writeFile(t, dir, "eng.traineddata", "corrupt")
			return dir
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := tesstest.New()
			e, err := tesswrap.New(stub)
			if err != nil {
				t.Fatal(err)
			}
			defer e.Close()
			if err := e.Init(tt.dir(t), tt.langs); !errors.Is(err, tesswrap.ErrInitializationFailed) {
				t.Errorf("got %v, want ErrInitializationFailed", err)
			}
			if _, err := e.Text(); !errors.Is(err, tesswrap.ErrNotInitialized) {
				t.Errorf("Text after failed Init: got %v", err)
			}
			checkClean(t, stub)
		})
	}
}

func TestInitDefaultDatapath(t *testing.T) {
	t.Setenv("TESSDATA_PREFIX", tesstest.Tessdata(t, "eng", "deu"))
	stub := tesstest.New()
	e, err := tesswrap.New(stub)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.Init("", "deu+eng"); err != nil {
		t.Fatal(err)
	}
	langs, err := e.LoadedLanguages()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"deu", "eng"}; !slices.Equal(langs, want) {
		t.Errorf("loaded %v, want %v", langs, want)
	}
	avail, err := e.AvailableLanguages()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"deu", "eng"}; !slices.Equal(avail, want) {
		t.Errorf("available %v, want %v", avail, want)
	}
	if got, _ := e.InitLanguages(); got != "deu+eng" {
		t.Errorf("init languages %q", got)
	}
}

func TestRawImageScenario(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	buf := []byte{1, 1, 1, 1, 1, 1, 1, 1, 1}
	if err := e.SetImage(buf, 3, 3, 1, 3); err != nil {
		t.Fatal(err)
	}
	txt, err := e.Text()
	if err != nil {
		t.Fatal(err)
	}
	if txt != "w3 h3 s9\n" {
		t.Errorf("text = %q", txt)
	}
	if _, _, texts := stub.Live(); texts != 0 {
		t.Errorf("%d native strings not released", texts)
	}
	checkClean(t, stub)
}

func TestShortBufferRejected(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	err := e.SetImage(make([]byte, 5), 3, 3, 1, 3)
	if !errors.Is(err, tesswrap.ErrInvalidImageData) {
		t.Fatalf("got %v, want ErrInvalidImageData", err)
	}
	var ie *tesswrap.ImageError
	if !errors.As(err, &ie) || ie.Field != "len(data)" {
		t.Errorf("got %#v", ie)
	}
	if n := stub.Called("SetImage"); n != 0 {
		t.Errorf("native SetImage called %d times", n)
	}
}

func TestInvalidImagesNeverReachBackend(t *testing.T) {
	tests := []struct {
		name  string
		img   tesswrap.Image
		field string
	}{
		{"zero width", tesswrap.Image{Data: make([]byte, 9), Width: 0, Height: 3, BytesPerPixel: 1, BytesPerLine: 3}, "width"},
		{"negative height", tesswrap.Image{Data: make([]byte, 9), Width: 3, Height: -1, BytesPerPixel: 1, BytesPerLine: 3}, "height"},
		{"zero bpp", tesswrap.Image{Data: make([]byte, 9), Width: 3, Height: 3, BytesPerPixel: 0, BytesPerLine: 3}, "bytesPerPixel"},
		{"two bpp", tesswrap.Image{Data: make([]byte, 18), Width: 3, Height: 3, BytesPerPixel: 2, BytesPerLine: 6}, "bytesPerPixel"},
		{"stride too small", tesswrap.Image{Data: make([]byte, 27), Width: 3, Height: 3, BytesPerPixel: 3, BytesPerLine: 8}, "bytesPerLine"},
		{"one byte short", tesswrap.Image{Data: make([]byte, 11), Width: 3, Height: 3, BytesPerPixel: 1, BytesPerLine: 4}, "len(data)"},
		{"nil data", tesswrap.Image{Width: 1, Height: 1, BytesPerPixel: 1, BytesPerLine: 1}, "len(data)"},
	}
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.SetRawImage(tt.img)
			var ie *tesswrap.ImageError
			if !errors.As(err, &ie) {
				t.Fatalf("got %v, want *ImageError", err)
			}
			if ie.Field != tt.field {
				t.Errorf("field = %q, want %q", ie.Field, tt.field)
			}
			if !errors.Is(err, tesswrap.ErrInvalidImageData) {
				t.Errorf("%v does not match ErrInvalidImageData", err)
			}
		})
	}
	if n := stub.Called("SetImage"); n != 0 {
		t.Errorf("native SetImage called %d times", n)
	}
}

func TestMaxImageBytes(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub, tesswrap.WithMaxImageBytes(8))
	err := e.SetRawImage(tesstest.Gray(3, 3, 0))
	var ie *tesswrap.ImageError
	if !errors.As(err, &ie) || ie.Field != "size" {
		t.Fatalf("got %v", err)
	}
	if err := e.SetRawImage(tesstest.Gray(2, 2, 0)); err != nil {
		t.Fatal(err)
	}
}

// everyCall exercises each Engine method that needs an initialized engine.
var everyCall = map[string]func(e *tesswrap.Engine) error{
	"SetImage":            func(e *tesswrap.Engine) error { return e.SetImage(make([]byte, 9), 3, 3, 1, 3) },
	"SetRawImage":         func(e *tesswrap.Engine) error { return e.SetRawImage(tesstest.Gray(2, 2, 0)) },
	"SetSourceResolution": func(e *tesswrap.Engine) error { return e.SetSourceResolution(300) },
	"SetRectangle":        func(e *tesswrap.Engine) error { return e.SetRectangle(0, 0, 1, 1) },
	"Recognize":           func(e *tesswrap.Engine) error { return e.Recognize() },
	"Text":                func(e *tesswrap.Engine) error { _, err := e.Text(); return err },
	"HOCRText":            func(e *tesswrap.Engine) error { _, err := e.HOCRText(0); return err },
	"ALTOText":            func(e *tesswrap.Engine) error { _, err := e.ALTOText(0); return err },
	"TSVText":             func(e *tesswrap.Engine) error { _, err := e.TSVText(0); return err },
	"BoxText":             func(e *tesswrap.Engine) error { _, err := e.BoxText(0); return err },
	"LSTMBoxText":         func(e *tesswrap.Engine) error { _, err := e.LSTMBoxText(0); return err },
	"WordStrBoxText":      func(e *tesswrap.Engine) error { _, err := e.WordStrBoxText(0); return err },
	"UNLVText":            func(e *tesswrap.Engine) error { _, err := e.UNLVText(); return err },
	"MeanTextConf":        func(e *tesswrap.Engine) error { _, err := e.MeanTextConf(); return err },
	"AllWordConfidences":  func(e *tesswrap.Engine) error { _, err := e.AllWordConfidences(); return err },
	"SetVariable":         func(e *tesswrap.Engine) error { return e.SetVariable("tessedit_char_whitelist", "abc") },
	"StringVariable":      func(e *tesswrap.Engine) error { _, err := e.StringVariable("tessedit_char_whitelist"); return err },
	"IntVariable":         func(e *tesswrap.Engine) error { _, err := e.IntVariable("user_defined_dpi"); return err },
	"BoolVariable":        func(e *tesswrap.Engine) error { _, err := e.BoolVariable("tessedit_create_hocr"); return err },
	"DoubleVariable":      func(e *tesswrap.Engine) error { _, err := e.DoubleVariable("textord_min_linesize"); return err },
	"SetPageSegMode":      func(e *tesswrap.Engine) error { return e.SetPageSegMode(tesswrap.PSM_AUTO) },
	"PageSegMode":         func(e *tesswrap.Engine) error { _, err := e.PageSegMode(); return err },
	"InitLanguages":       func(e *tesswrap.Engine) error { _, err := e.InitLanguages(); return err },
	"LoadedLanguages":     func(e *tesswrap.Engine) error { _, err := e.LoadedLanguages(); return err },
	"AvailableLanguages":  func(e *tesswrap.Engine) error { _, err := e.AvailableLanguages(); return err },
	"Datapath":            func(e *tesswrap.Engine) error { _, err := e.Datapath(); return err },
	"Iterator":            func(e *tesswrap.Engine) error { _, err := e.Iterator(tesswrap.RIL_WORD); return err },
	"Spans":               func(e *tesswrap.Engine) error { _, err := e.Spans(tesswrap.RIL_WORD); return err },
	"Clear":               func(e *tesswrap.Engine) error { return e.Clear() },
	"Checkpoint":          func(e *tesswrap.Engine) error { return e.Checkpoint() },
	"Restore":             func(e *tesswrap.Engine) error { return e.Restore() },
	"Changed":             func(e *tesswrap.Engine) error { _, err := e.Changed(); return err },
	"AnalyseLayout":       func(e *tesswrap.Engine) error { _, err := e.AnalyseLayout(tesswrap.RIL_WORD); return err },
	"Layout":              func(e *tesswrap.Engine) error { _, err := e.Layout(tesswrap.RIL_WORD); return err },
	"ReadConfigFile":      func(e *tesswrap.Engine) error { return e.ReadConfigFile("digits") },

	"ClearAdaptiveClassifier": func(e *tesswrap.Engine) error { return e.ClearAdaptiveClassifier() },
}

func TestCallsBeforeInit(t *testing.T) {
	stub := tesstest.New()
	e, err := tesswrap.New(stub)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	for name, call := range everyCall {
		if err := call(e); !errors.Is(err, tesswrap.ErrNotInitialized) {
			t.Errorf("%s: got %v, want ErrNotInitialized", name, err)
		}
	}
	if calls := stub.Calls(); !slices.Equal(calls, []string{"Create"}) {
		t.Errorf("native calls before Init: %v", calls)
	}
}

func TestCallsAfterClose(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	before := len(stub.Calls())
	for name, call := range everyCall {
		if err := call(e); !errors.Is(err, tesswrap.ErrEngineClosed) {
			t.Errorf("%s: got %v, want ErrEngineClosed", name, err)
		}
	}
	if err := e.Init(tesstest.Tessdata(t, "eng"), "eng"); !errors.Is(err, tesswrap.ErrEngineClosed) {
		t.Errorf("Init: got %v", err)
	}
	if err := e.End(); !errors.Is(err, tesswrap.ErrEngineClosed) {
		t.Errorf("End: got %v", err)
	}
	if _, err := e.Clone(); !errors.Is(err, tesswrap.ErrEngineClosed) {
		t.Errorf("Clone: got %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if after := len(stub.Calls()); after != before {
		t.Errorf("%d native calls after Close", after-before)
	}
	if e.State() != tesswrap.StateDestroyed {
		t.Errorf("state = %v", e.State())
	}
	if engines, _, _ := stub.Live(); engines != 0 {
		t.Errorf("%d native engines alive", engines)
	}
	checkClean(t, stub)
}

func TestNilEngine(t *testing.T) {
	var e *tesswrap.Engine
	if _, err := e.Text(); !errors.Is(err, tesswrap.ErrEngineClosed) {
		t.Errorf("got %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestCreateFailures(t *testing.T) {
	if _, err := tesswrap.New(nil); !errors.Is(err, tesswrap.ErrEngineCreationFailed) {
		t.Errorf("nil backend: got %v", err)
	}
	stub := tesstest.New()
	stub.CreateFails = true
	if _, err := tesswrap.New(stub); !errors.Is(err, tesswrap.ErrEngineCreationFailed) {
		t.Errorf("null handle: got %v", err)
	}
	stub = tesstest.New()
	stub.PanicOn = "Create"
	if _, err := tesswrap.New(stub); !errors.Is(err, tesswrap.ErrEngineCreationFailed) || !errors.Is(err, tesswrap.ErrNativeCall) {
		t.Errorf("panicking backend: got %v", err)
	}
}

func TestCloseDestroysOnce(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	clones := make([]*tesswrap.Engine, 3)
	for i := range clones {
		c, err := e.Clone()
		if err != nil {
			t.Fatal(err)
		}
		clones[i] = c
	}
	if n := e.Owners(); n != 4 {
		t.Errorf("owners = %d", n)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if stub.Called("Delete") != 0 {
		t.Fatal("instance destroyed while clones are open")
	}
	if _, err := clones[0].MeanTextConf(); !errors.Is(err, tesswrap.ErrTextExtractionFailed) {
		t.Errorf("clone after original closed: %v", err)
	}
	if clones[1].State() != tesswrap.StateInitialized {
		t.Errorf("clone state = %v", clones[1].State())
	}

	var wg sync.WaitGroup
	for _, c := range clones {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
			c.Close()
		}()
	}
	wg.Wait()
	if n := stub.Called("Delete"); n != 1 {
		t.Errorf("Delete called %d times", n)
	}
	checkClean(t, stub)
}

func newLeakedEngine(t *testing.T, stub *tesstest.Backend) {
	e, err := tesswrap.New(stub)
	if err != nil {
		t.Fatal(err)
	}
	c, err := e.Clone()
	if err != nil {
		t.Fatal(err)
	}
	_ = c
}

func TestLeakedEngineIsReleased(t *testing.T) {
	stub := tesstest.New()
	newLeakedEngine(t, stub)
	for range 100 {
		runtime.GC()
		if stub.Called("Delete") == 1 {
			checkClean(t, stub)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("leaked engine was never destroyed")
}

func TestCloneSharesVariables(t *testing.T) {
	stub := tesstest.New()
	orig := tesstest.NewEngine(t, stub)
	clone, err := orig.Clone()
	if err != nil {
		t.Fatal(err)
	}
	defer clone.Close()

	if clone.State() != tesswrap.StateInitialized {
		t.Fatalf("clone state = %v", clone.State())
	}
	if n := stub.Called("Init"); n != 1 {
		t.Errorf("Init called %d times, clones must not re-initialize", n)
	}
	for range 10 {
		if err := clone.SetVariable("tessedit_char_whitelist", "0123456789"); err != nil {
			t.Fatal(err)
		}
		if v, err := orig.StringVariable("tessedit_char_whitelist"); err != nil || v != "0123456789" {
			t.Fatalf("original sees %q, %v", v, err)
		}
		if err := orig.SetVariable("tessedit_char_whitelist", "wh"); err != nil {
			t.Fatal(err)
		}
		if v, err := clone.StringVariable("tessedit_char_whitelist"); err != nil || v != "wh" {
			t.Fatalf("clone sees %q, %v", v, err)
		}
	}
	if err := orig.SetPageSegMode(tesswrap.PSM_SINGLE_LINE); err != nil {
		t.Fatal(err)
	}
	if m, _ := clone.PageSegMode(); m != tesswrap.PSM_SINGLE_LINE {
		t.Errorf("clone mode = %v", m)
	}
}

func TestConcurrentTextFromClones(t *testing.T) {
	const n = 8
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	valid := make(map[string]bool)
	for i := range n {
		valid[fmt.Sprintf("w4 h4 s%d\n", 16*i)] = true
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*20)
	for i := range n {
		c, err := e.Clone()
		if err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.Close()
			for range 20 {
				if err := c.SetRawImage(tesstest.Gray(4, 4, byte(i))); err != nil {
					errs <- err
					return
				}
				txt, err := c.Text()
				if err != nil {
					errs <- err
					return
				}
				if !valid[txt] {
					errs <- fmt.Errorf("spliced result %q", txt)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	checkClean(t, stub)
}

func TestDeterministicAcrossEngines(t *testing.T) {
	img := tesstest.Gray(5, 2, 7)
	var results []string
	for range 3 {
		stub := tesstest.New()
		e := tesstest.NewEngine(t, stub)
		if err := e.SetVariable("tessedit_char_whitelist", "0123456789"); err != nil {
			t.Fatal(err)
		}
		for range 2 {
			if err := e.SetRawImage(img); err != nil {
				t.Fatal(err)
			}
			txt, err := e.Text()
			if err != nil {
				t.Fatal(err)
			}
			results = append(results, txt)
		}
		e.Close()
	}
	for _, r := range results {
		if r != "5 2 70\n" {
			t.Errorf("got %q", r)
		}
	}
}

func TestEngineBuffersAreIndependent(t *testing.T) {
	stub := tesstest.New()
	a := tesstest.NewEngine(t, stub)
	b := tesstest.NewEngine(t, stub)
	if err := a.SetVariable("tessedit_char_whitelist", "0123456789"); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.StringVariable("tessedit_char_whitelist"); v != "" {
		t.Errorf("independent engine sees whitelist %q", v)
	}
	img := tesstest.Gray(2, 2, 1)
	if err := b.SetRawImage(img); err != nil {
		t.Fatal(err)
	}
	// the engine must have copied the pixels
	for i := range img.Data {
		img.Data[i] = 0xff
	}
	if txt, _ := b.Text(); txt != "w2 h2 s4\n" {
		t.Errorf("text = %q", txt)
	}
}

func TestUnknownVariables(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetVariable("no_such_variable", "1"); !errors.Is(err, tesswrap.ErrVariableNotFound) {
		t.Errorf("set: got %v", err)
	}
	if _, err := e.StringVariable("no_such_variable"); !errors.Is(err, tesswrap.ErrVariableNotFound) {
		t.Errorf("get: got %v", err)
	}
	if _, err := e.IntVariable("tessedit_char_whitelist"); !errors.Is(err, tesswrap.ErrVariableNotFound) {
		t.Errorf("wrong type: got %v", err)
	}
	if err := e.SetVariable("", "1"); !errors.Is(err, tesswrap.ErrVariableNotFound) {
		t.Errorf("empty name: got %v", err)
	}
	if err := e.SetVariable("tessedit_char_whitelist", "a\x00b"); !errors.Is(err, tesswrap.ErrInvalidArgument) {
		t.Errorf("NUL value: got %v", err)
	}
	if err := e.SetPageSegMode(tesswrap.PageSegMode(99)); !errors.Is(err, tesswrap.ErrInvalidArgument) {
		t.Errorf("bad mode: got %v", err)
	}
}

func TestTypedVariables(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	err := e.SetVariables(map[string]string{
		"user_defined_dpi":          "300",
		"preserve_interword_spaces": "1",
		"textord_min_linesize":      "2.5",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, err := e.IntVariable("user_defined_dpi"); err != nil || v != 300 {
		t.Errorf("int: %d, %v", v, err)
	}
	if v, err := e.BoolVariable("preserve_interword_spaces"); err != nil || !v {
		t.Errorf("bool: %t, %v", v, err)
	}
	if v, err := e.DoubleVariable("textord_min_linesize"); err != nil || v != 2.5 {
		t.Errorf("double: %g, %v", v, err)
	}
	if p, err := e.Datapath(); err != nil || p == "" {
		t.Errorf("datapath %q, %v", p, err)
	}
}

func TestInvalidUTF8(t *testing.T) {
	stub := tesstest.New()
	stub.InvalidUTF8 = true
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	_, err := e.Text()
	var ue *tesswrap.UTF8Error
	if !errors.As(err, &ue) {
		t.Fatalf("got %v, want *UTF8Error", err)
	}
	if ue.Offset != len("w3 h3 s9\n") {
		t.Errorf("offset = %d", ue.Offset)
	}
	if !errors.Is(err, tesswrap.ErrInvalidUTF8) {
		t.Errorf("%v does not match ErrInvalidUTF8", err)
	}
	if _, _, texts := stub.Live(); texts != 0 {
		t.Errorf("%d native strings not released", texts)
	}
	checkClean(t, stub)
}

func TestTextWithoutImage(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if _, err := e.Text(); !errors.Is(err, tesswrap.ErrTextExtractionFailed) {
		t.Errorf("got %v", err)
	}
	if n := stub.Called("UTF8Text"); n != 0 {
		t.Errorf("native call without image")
	}
}

func TestRecognitionFailure(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	stub.RecognizeStatus = -1
	if err := e.Recognize(); !errors.Is(err, tesswrap.ErrRecognitionFailed) {
		t.Errorf("Recognize: got %v", err)
	}
	if _, err := e.Text(); !errors.Is(err, tesswrap.ErrTextExtractionFailed) {
		t.Errorf("Text: got %v", err)
	}
}

func TestNativePanicIsRecovered(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	stub.PanicOn = "UTF8Text"
	if _, err := e.Text(); !errors.Is(err, tesswrap.ErrNativeCall) {
		t.Fatalf("got %v, want ErrNativeCall", err)
	}
	stub.PanicOn = ""
	if txt, err := e.Text(); err != nil || txt != "w3 h3 s9\n" {
		t.Errorf("after recovery: %q, %v", txt, err)
	}
}

func TestRenderers(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	renderers := map[string]func() (string, error){
		"hocr":    func() (string, error) { return e.HOCRText(0) },
		"alto":    func() (string, error) { return e.ALTOText(0) },
		"tsv":     func() (string, error) { return e.TSVText(0) },
		"box":     func() (string, error) { return e.BoxText(0) },
		"lstmbox": func() (string, error) { return e.LSTMBoxText(0) },
		"wordstr": func() (string, error) { return e.WordStrBoxText(0) },
		"unlv":    e.UNLVText,
	}
	for name, render := range renderers {
		out, err := render()
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if out == "" {
			t.Errorf("%s: empty output", name)
		}
	}
	if conf, err := e.MeanTextConf(); err != nil || conf != 90 {
		t.Errorf("mean conf %d, %v", conf, err)
	}
	if confs, err := e.AllWordConfidences(); err != nil || !slices.Equal(confs, []int{90, 90, 90}) {
		t.Errorf("word confs %v, %v", confs, err)
	}
	if _, _, texts := stub.Live(); texts != 0 {
		t.Errorf("%d native strings not released", texts)
	}
	checkClean(t, stub)
}

func TestSetRectangle(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(4, 4, 1)); err != nil {
		t.Fatal(err)
	}
	if err := e.SetSourceResolution(300); err != nil {
		t.Fatal(err)
	}
	if err := e.SetSourceResolution(0); !errors.Is(err, tesswrap.ErrInvalidArgument) {
		t.Errorf("zero ppi: got %v", err)
	}
	if err := e.SetRectangle(1, 1, 2, 3); err != nil {
		t.Fatal(err)
	}
	if txt, _ := e.Text(); txt != "w2 h3 s6\n" {
		t.Errorf("text = %q", txt)
	}
	if err := e.SetRectangle(3, 0, 2, 1); !errors.Is(err, tesswrap.ErrInvalidImageData) {
		t.Errorf("rectangle outside: got %v", err)
	}
}

func TestReinitAndEnd(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	if err := e.Init(tesstest.Tessdata(t, "deu"), "deu"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Text(); !errors.Is(err, tesswrap.ErrTextExtractionFailed) {
		t.Errorf("image survived Init: %v", err)
	}
	if err := e.End(); err != nil {
		t.Fatal(err)
	}
	if e.State() != tesswrap.StateCreated {
		t.Errorf("state after End = %v", e.State())
	}
	if err := e.SetVariable("tessedit_char_whitelist", "a"); !errors.Is(err, tesswrap.ErrNotInitialized) {
		t.Errorf("after End: %v", err)
	}
	if err := e.InitWithOEM(tesstest.Tessdata(t, "eng"), "eng", tesswrap.OEM_LSTM_ONLY); err != nil {
		t.Fatal(err)
	}
	if err := e.InitWithOEM(tesstest.Tessdata(t, "eng"), "eng", tesswrap.OcrEngineMode(7)); !errors.Is(err, tesswrap.ErrInitializationFailed) {
		t.Errorf("bad mode: %v", err)
	}
	checkClean(t, stub)
}

func TestVersion(t *testing.T) {
	if v, err := tesswrap.Version(tesstest.New()); err != nil || v != tesstest.StubVersion {
		t.Errorf("got %q, %v", v, err)
	}
	if _, err := tesswrap.Version(nil); !errors.Is(err, tesswrap.ErrNativeCall) {
		t.Errorf("nil backend: %v", err)
	}
}

func TestRestore(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	initial, _ := e.PageSegMode()
	if err := e.SetVariable("tessedit_char_whitelist", "abc"); err != nil {
		t.Fatal(err)
	}
	if err := e.Checkpoint(); err != nil {
		t.Fatal(err)
	}
	err := e.SetVariables(map[string]string{
		"tessedit_char_whitelist":   "12",
		"tessedit_char_blacklist":   "xyz",
		"user_defined_dpi":          "300",
		"preserve_interword_spaces": "1",
		"textord_min_linesize":      "3.5",
	})
	if err != nil {
		t.Fatal(err)
	}
	// a second change keeps the value from before the first
	if err := e.SetVariable("tessedit_char_blacklist", "q"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetPageSegMode(tesswrap.PSM_SINGLE_CHAR); err != nil {
		t.Fatal(err)
	}
	changed, err := e.Changed()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"preserve_interword_spaces", "tessedit_char_blacklist", "tessedit_char_whitelist", "textord_min_linesize", "user_defined_dpi"}
	if !slices.Equal(changed, want) {
		t.Errorf("changed = %v", changed)
	}

	if err := e.Restore(); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.StringVariable("tessedit_char_whitelist"); v != "abc" {
		t.Errorf("whitelist = %q, want the checkpointed value", v)
	}
	if v, _ := e.StringVariable("tessedit_char_blacklist"); v != "" {
		t.Errorf("blacklist = %q", v)
	}
	if v, _ := e.IntVariable("user_defined_dpi"); v != 0 {
		t.Errorf("dpi = %d", v)
	}
	if v, _ := e.BoolVariable("preserve_interword_spaces"); v {
		t.Error("preserve_interword_spaces still set")
	}
	if v, _ := e.DoubleVariable("textord_min_linesize"); v != 1.25 {
		t.Errorf("min linesize = %g", v)
	}
	if m, _ := e.PageSegMode(); m != initial {
		t.Errorf("page seg mode = %v, want %v", m, initial)
	}
	if changed, _ := e.Changed(); len(changed) != 0 {
		t.Errorf("changed after Restore: %v", changed)
	}
	if n := stub.Called("Init"); n != 1 {
		t.Errorf("Init called %d times", n)
	}
	checkClean(t, stub)
}

func TestRestoreUnreadableVariable(t *testing.T) {
	stub := tesstest.New()
	stub.UnreadableVariables = []string{"debug_file"}
	e := tesstest.NewEngine(t, stub)
	if err := e.SetVariable("tessedit_char_whitelist", "abc"); err != nil {
		t.Fatal(err)
	}
	if err := e.Checkpoint(); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVariable("debug_file", "/dev/null"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	if err := e.Restore(); err != nil {
		t.Fatal(err)
	}
	if n := stub.Called("Init"); n != 2 {
		t.Errorf("Init called %d times, want a second one to reset debug_file", n)
	}
	if v, _ := e.StringVariable("tessedit_char_whitelist"); v != "abc" {
		t.Errorf("checkpointed variable lost: %q", v)
	}
	if _, err := e.Text(); !errors.Is(err, tesswrap.ErrTextExtractionFailed) {
		t.Errorf("image survived Init: %v", err)
	}
	if e.State() != tesswrap.StateInitialized {
		t.Errorf("state = %v", e.State())
	}
	checkClean(t, stub)
}

func TestImageSettersWithoutImage(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRectangle(0, 0, 1, 1); !errors.Is(err, tesswrap.ErrInvalidArgument) {
		t.Errorf("SetRectangle: got %v", err)
	}
	if err := e.SetSourceResolution(300); !errors.Is(err, tesswrap.ErrInvalidArgument) {
		t.Errorf("SetSourceResolution: got %v", err)
	}
	if n := stub.Called("SetRectangle") + stub.Called("SetSourceResolution"); n != 0 {
		t.Errorf("%d native calls without image", n)
	}
}

func TestFailedTextIsNotARecognition(t *testing.T) {
	stub := tesstest.New()
	e := tesstest.NewEngine(t, stub)
	if err := e.SetRawImage(tesstest.Gray(3, 3, 1)); err != nil {
		t.Fatal(err)
	}
	stub.RecognizeStatus = -1
	if _, err := e.Text(); !errors.Is(err, tesswrap.ErrTextExtractionFailed) {
		t.Fatalf("Text: got %v", err)
	}
	stub.RecognizeStatus = 0
	spans, err := e.Spans(tesswrap.RIL_WORD)
	if err != nil {
		t.Fatal(err)
	}
	if len(spans) != 3 {
		t.Errorf("%d words", len(spans))
	}
	if n := stub.Called("Recognize"); n != 1 {
		t.Errorf("Recognize called %d times, the iterator must recognize again", n)
	}
	checkClean(t, stub)
}

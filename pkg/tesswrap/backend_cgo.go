//go:build tesseract_lib

package tesswrap

import (
	"bufio"
	"bytes"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/raff/go-tesseract"
)

// DefaultLibNames is empty: libtesseract is linked at build time.
var DefaultLibNames []string

// libBackend drives libtesseract through the cgo bindings of go-tesseract. The bindings
// work on encoded images and plain text, so this backend recognizes text but reports
// no structured output (hOCR and friends, iterators, confidences, layout).
type libBackend struct {
	mu      sync.Mutex
	next    uintptr
	engines map[Handle]*libEngine
	texts   map[*byte][]byte
}

type libEngine struct {
	api      *tesseract.BaseAPI
	datapath string
	language string
	// vars holds what was set through this backend; the bindings have no getters.
	vars    map[string]string
	psm     PageSegMode
	img     image.Image
	rect    image.Rectangle
	hasText bool
	text    string
}

// LoadLibrary returns the linked libtesseract. path is ignored.
func LoadLibrary(path string) (Backend, error) {
	return &libBackend{
		engines: make(map[Handle]*libEngine),
		texts:   make(map[*byte][]byte),
	}, nil
}

func LibraryPath(b Backend) string {
	if _, ok := b.(*libBackend); ok {
		return "linked"
	}
	return ""
}

func (b *libBackend) engine(h Handle) *libEngine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engines[h]
}

func (b *libBackend) Version() string {
	return tesseract.Version()
}

func (b *libBackend) Create() Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next += 0x10
	h := Handle(b.next)
	b.engines[h] = &libEngine{api: tesseract.BaseAPICreate(), psm: PSM_SINGLE_BLOCK}
	return h
}

func (b *libBackend) Delete(h Handle) {
	b.mu.Lock()
	e := b.engines[h]
	delete(b.engines, h)
	b.mu.Unlock()
	if e != nil {
		e.api.End()
	}
}

func (b *libBackend) Init(h Handle, datapath, language string, oem OcrEngineMode) int32 {
	e := b.engine(h)
	if e == nil {
		return -1
	}
	// Init3 always uses the default engine mode
	if ret := e.api.Init3(datapath, language); ret != 0 {
		return -1
	}
	e.api.SetDebugVariable("debug_file", "/dev/null")
	e.datapath = datapath
	e.language = language
	e.vars = make(map[string]string)
	e.clear()
	setPageSegMode(e.api.SetPageSegMode, e.psm)
	return 0
}

func (b *libBackend) End(h Handle) {
	if e := b.engine(h); e != nil {
		e.api.End()
		e.vars = nil
		e.clear()
	}
}

func (b *libBackend) Clear(h Handle) {
	if e := b.engine(h); e != nil {
		e.api.Clear()
		e.clear()
	}
}

func (e *libEngine) clear() {
	e.img = nil
	e.rect = image.Rectangle{}
	e.hasText = false
	e.text = ""
}

// setPageSegMode converts mode to whatever integer type the bindings declare.
func setPageSegMode[T ~int | ~int32 | ~uint32](set func(T), mode PageSegMode) {
	set(T(mode))
}

func (b *libBackend) SetVariable(h Handle, name, value string) bool {
	e := b.engine(h)
	if e == nil || !e.api.SetVariable(name, value) {
		return false
	}
	e.vars[name] = value
	e.hasText = false
	return true
}

func (b *libBackend) StringVariable(h Handle, name string) (string, bool) {
	e := b.engine(h)
	if e == nil {
		return "", false
	}
	v, ok := e.vars[name]
	return v, ok
}

func (b *libBackend) IntVariable(h Handle, name string) (int32, bool) {
	v, ok := b.StringVariable(h, name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 32)
	return int32(n), err == nil
}

func (b *libBackend) BoolVariable(h Handle, name string) (bool, bool) {
	v, ok := b.StringVariable(h, name)
	if !ok {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "t", "true", "on":
		return true, true
	case "0", "f", "false", "off":
		return false, true
	}
	return false, false
}

func (b *libBackend) DoubleVariable(h Handle, name string) (float64, bool) {
	v, ok := b.StringVariable(h, name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

func (b *libBackend) SetPageSegMode(h Handle, mode PageSegMode) {
	if e := b.engine(h); e != nil {
		setPageSegMode(e.api.SetPageSegMode, mode)
		e.psm = mode
		e.hasText = false
	}
}

func (b *libBackend) PageSegMode(h Handle) PageSegMode {
	if e := b.engine(h); e != nil {
		return e.psm
	}
	return PSM_SINGLE_BLOCK
}

func (b *libBackend) InitLanguages(h Handle) string {
	if e := b.engine(h); e != nil {
		return e.language
	}
	return ""
}

func (b *libBackend) LoadedLanguages(h Handle) []string {
	if e := b.engine(h); e != nil && e.language != "" {
		return strings.Split(e.language, "+")
	}
	return nil
}

func (b *libBackend) AvailableLanguages(h Handle) []string {
	e := b.engine(h)
	if e == nil {
		return nil
	}
	files, _ := filepath.Glob(filepath.Join(e.datapath, "*.traineddata"))
	langs := make([]string, 0, len(files))
	for _, f := range files {
		langs = append(langs, strings.TrimSuffix(filepath.Base(f), ".traineddata"))
	}
	slices.Sort(langs)
	return langs
}

func (b *libBackend) Datapath(h Handle) string {
	if e := b.engine(h); e != nil {
		return e.datapath
	}
	return ""
}

// SetImage wraps the pixels without copying; the caller keeps data alive.
func (b *libBackend) SetImage(h Handle, data []byte, width, height, bytesPerPixel, bytesPerLine int32) {
	e := b.engine(h)
	if e == nil {
		return
	}
	e.clear()
	r := image.Rect(0, 0, int(width), int(height))
	switch bytesPerPixel {
	case 1:
		e.img = &image.Gray{Pix: data, Stride: int(bytesPerLine), Rect: r}
	case 3:
		rgba := image.NewNRGBA(r)
		for y := range int(height) {
			row := data[y*int(bytesPerLine):]
			for x := range int(width) {
				copy(rgba.Pix[y*rgba.Stride+4*x:], row[3*x:3*x+3])
				rgba.Pix[y*rgba.Stride+4*x+3] = 0xff
			}
		}
		e.img = rgba
	case 4:
		e.img = &image.NRGBA{Pix: data, Stride: int(bytesPerLine), Rect: r}
	}
	if e.img != nil {
		e.rect = r
	}
}

func (b *libBackend) SetSourceResolution(h Handle, ppi int32) {
	b.SetVariable(h, "user_defined_dpi", strconv.Itoa(int(ppi)))
}

func (b *libBackend) SetRectangle(h Handle, left, top, width, height int32) {
	if e := b.engine(h); e != nil && e.img != nil {
		e.rect = image.Rect(int(left), int(top), int(left+width), int(top+height)).Intersect(e.img.Bounds())
		e.hasText = false
	}
}

// Recognize hands the rectangle to Tesseract as a PNG, the only form the bindings accept.
func (b *libBackend) Recognize(h Handle) int32 {
	e := b.engine(h)
	if e == nil || e.img == nil || e.vars == nil {
		return -1
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Crop(e.img, e.rect), imaging.PNG); err != nil {
		return -1
	}
	e.api.SetImageBytes(buf.Bytes())
	e.text = e.api.GetUTF8Text()
	e.hasText = true
	return 0
}

func (b *libBackend) UTF8Text(h Handle) *byte {
	e := b.engine(h)
	if e == nil || (!e.hasText && b.Recognize(h) != 0) {
		return nil
	}
	return b.newText(e.text)
}

// newText returns a NUL-terminated copy of s, kept alive until DeleteText.
func (b *libBackend) newText(s string) *byte {
	buf := append([]byte(s), 0)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts[&buf[0]] = buf
	return &buf[0]
}

func (b *libBackend) DeleteText(text *byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.texts, text)
}

func (b *libBackend) HOCRText(h Handle, page int32) *byte       { return nil }
func (b *libBackend) ALTOText(h Handle, page int32) *byte       { return nil }
func (b *libBackend) TSVText(h Handle, page int32) *byte        { return nil }
func (b *libBackend) BoxText(h Handle, page int32) *byte        { return nil }
func (b *libBackend) LSTMBoxText(h Handle, page int32) *byte    { return nil }
func (b *libBackend) WordStrBoxText(h Handle, page int32) *byte { return nil }
func (b *libBackend) UNLVText(h Handle) *byte                   { return nil }
func (b *libBackend) MeanTextConf(h Handle) int32               { return -1 }
func (b *libBackend) AllWordConfidences(h Handle) []int32       { return nil }

func (b *libBackend) Iterator(h Handle) Handle                          { return 0 }
func (b *libBackend) IteratorDelete(it Handle)                          {}
func (b *libBackend) IteratorNext(it Handle, level Level) bool          { return false }
func (b *libBackend) IteratorText(it Handle, level Level) *byte         { return nil }
func (b *libBackend) IteratorConfidence(it Handle, level Level) float32 { return 0 }
func (b *libBackend) IteratorBoundingBox(it Handle, level Level) (left, top, right, bottom int32, ok bool) {
	return 0, 0, 0, 0, false
}
func (b *libBackend) IteratorBlockType(it Handle) BlockType               { return PT_UNKNOWN }
func (b *libBackend) IteratorWordAttributes(it Handle) WordAttributes     { return WordAttributes{} }
func (b *libBackend) IteratorSymbolAttributes(it Handle) SymbolAttributes { return SymbolAttributes{} }
func (b *libBackend) AnalyseLayout(h Handle) Handle                       { return 0 }
func (b *libBackend) PageIteratorDelete(pit Handle)                       {}
func (b *libBackend) PageIteratorNext(pit Handle, level Level) bool       { return false }
func (b *libBackend) PageIteratorBlockType(pit Handle) BlockType          { return PT_UNKNOWN }
func (b *libBackend) PageIteratorOrientation(pit Handle) TextOrientation  { return TextOrientation{} }
func (b *libBackend) PageIteratorParagraphInfo(pit Handle) ParagraphInfo  { return ParagraphInfo{} }
func (b *libBackend) ClearAdaptiveClassifier(h Handle)                    {}
func (b *libBackend) PageIteratorBoundingBox(pit Handle, level Level) (left, top, right, bottom int32, ok bool) {
	return 0, 0, 0, 0, false
}
func (b *libBackend) PageIteratorBaseline(pit Handle, level Level) (x1, y1, x2, y2 int32, ok bool) {
	return 0, 0, 0, 0, false
}

// ReadConfigFile sets the listed variables one by one; unknown names are skipped like Tesseract does.
func (b *libBackend) ReadConfigFile(h Handle, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimLeft(s.Text(), " \t")
		if line == "" || line[0] == '#' {
			continue
		}
		name, value := line, ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			name, value = line[:i], strings.TrimSpace(line[i+1:])
		}
		b.SetVariable(h, name, value)
	}
}

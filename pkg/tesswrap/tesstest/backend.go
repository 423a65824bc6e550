// Package tesstest provides an in-memory [tesswrap.Backend] for tests.
//
// The stub "recognizes" a raster by describing it: "w<width> h<height> s<sum of bytes>"
// followed by a newline, filtered through tessedit_char_whitelist. The output is a pure
// function of image, rectangle and variables, so independent engines produce identical text.
//
// Besides answering calls it checks how it is used. Calls on deleted or unknown handles,
// double releases of native strings, calls that need an initialized engine before Init
// and overlapping calls on one handle are recorded as violations instead of crashing.
package tesstest

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/johbar/tesseract-purego/pkg/tesswrap"
)

// StubVersion is returned by [Backend.Version].
const StubVersion = "5.5.0-stub"

type kind int

const (
	kindString kind = iota
	kindInt
	kindBool
	kindDouble
)

// Variables known to the stub, with their kind and default value.
var knownVariables = map[string]struct {
	kind kind
	def  string
}{
	"tessedit_char_whitelist":   {kindString, ""},
	"tessedit_char_blacklist":   {kindString, ""},
	"debug_file":                {kindString, ""},
	"user_defined_dpi":          {kindInt, "0"},
	"tessedit_pageseg_mode":     {kindInt, "6"},
	"preserve_interword_spaces": {kindBool, "0"},
	"tessedit_create_hocr":      {kindBool, "0"},
	"textord_min_linesize":      {kindDouble, "1.25"},
}

type engine struct {
	initialized bool
	datapath    string
	language    string
	vars        map[string]string
	psm         tesswrap.PageSegMode
	ppi         int32

	img     []byte
	width   int
	height  int
	bpp     int
	stride  int
	rect    image.Rectangle
	hasImg  bool
	result  []byte
	checked bool

	// scratch is written byte by byte during recognition, like a native result buffer
	scratch []byte
}

type iterator struct {
	engine tesswrap.Handle
	words  []string
	pos    int
	height int
	lang   string
	// layout marks page iterators from AnalyseLayout
	layout bool
}

// Backend is the stub. The zero value is not usable; call [New].
type Backend struct {
	// RecognizeDelay is slept inside every recognition.
	RecognizeDelay time.Duration
	// InvalidUTF8 appends an invalid byte to every recognized text.
	InvalidUTF8 bool
	// PanicOn names a Backend method that panics when called.
	PanicOn string
	// CreateFails makes Create return the null handle.
	CreateFails bool
	// RecognizeStatus is returned by Recognize when non-zero.
	RecognizeStatus int32
	// UnreadableVariables can be set but none of the typed getters finds them.
	UnreadableVariables []string

	mu         sync.Mutex
	next       uintptr
	engines    map[tesswrap.Handle]*engine
	iters      map[tesswrap.Handle]*iterator
	texts      map[*byte][]byte
	calls      []string
	inFlight   map[tesswrap.Handle]int
	violations []string
}

var _ tesswrap.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		next:     0x1000,
		engines:  make(map[tesswrap.Handle]*engine),
		iters:    make(map[tesswrap.Handle]*iterator),
		texts:    make(map[*byte][]byte),
		inFlight: make(map[tesswrap.Handle]int),
	}
}

// Calls returns the names of all Backend methods called so far, in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// Called reports how often method was called.
func (b *Backend) Called(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Violations returns every misuse detected so far.
func (b *Backend) Violations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.violations)
}

// Live returns the number of engines and iterators not yet deleted and of native strings not yet released.
func (b *Backend) Live() (engines, iterators, texts int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.engines), len(b.iters), len(b.texts)
}

func (b *Backend) violation(format string, args ...any) {
	b.violations = append(b.violations, fmt.Sprintf(format, args...))
}

// enter records a call and returns the engine it targets, or nil after recording a violation.
// If needInit is set, calls on an engine without language data are violations too.
func (b *Backend) enter(method string, h tesswrap.Handle, needInit bool) *engine {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, method)
	if b.PanicOn == method {
		panic("tesstest: " + method + " failed")
	}
	e, ok := b.engines[h]
	if !ok {
		b.violation("%s on unknown or deleted engine %#x", method, h)
		return nil
	}
	if needInit && !e.initialized {
		b.violation("%s on uninitialized engine %#x", method, h)
	}
	b.inFlight[h]++
	if b.inFlight[h] > 1 {
		b.violation("%s overlaps another call on engine %#x", method, h)
	}
	return e
}

func (b *Backend) leave(h tesswrap.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight[h]--
}

func (b *Backend) record(method string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, method)
	if b.PanicOn == method {
		panic("tesstest: " + method + " failed")
	}
}

func (b *Backend) Version() string {
	b.record("Version")
	return StubVersion
}

func (b *Backend) Create() tesswrap.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "Create")
	if b.PanicOn == "Create" {
		panic("tesstest: Create failed")
	}
	if b.CreateFails {
		return 0
	}
	b.next += 0x10
	h := tesswrap.Handle(b.next)
	b.engines[h] = &engine{psm: tesswrap.PSM_SINGLE_BLOCK}
	return h
}

func (b *Backend) Delete(h tesswrap.Handle) {
	if e := b.enter("Delete", h, false); e == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, it := range b.iters {
		if it.engine == h {
			b.violation("engine %#x deleted before its iterator %#x", h, id)
		}
	}
	delete(b.engines, h)
	delete(b.inFlight, h)
}

func (b *Backend) Init(h tesswrap.Handle, datapath, language string, oem tesswrap.OcrEngineMode) int32 {
	e := b.enter("Init", h, false)
	if e == nil {
		return -1
	}
	defer b.leave(h)
	e.initialized = false
	if fi, err := os.Stat(datapath); err != nil || !fi.IsDir() {
		return -1
	}
	for _, lang := range strings.Split(language, "+") {
		data, err := os.ReadFile(filepath.Join(datapath, lang+".traineddata"))
		if err != nil || strings.HasPrefix(string(data), "corrupt") {
			return -1
		}
	}
	e.initialized = true
	e.datapath = datapath
	e.language = language
	e.vars = make(map[string]string, len(knownVariables))
	for name, v := range knownVariables {
		e.vars[name] = v.def
	}
	e.clearImage()
	return 0
}

func (b *Backend) End(h tesswrap.Handle) {
	e := b.enter("End", h, false)
	if e == nil {
		return
	}
	defer b.leave(h)
	e.initialized = false
	e.clearImage()
}

func (b *Backend) Clear(h tesswrap.Handle) {
	e := b.enter("Clear", h, false)
	if e == nil {
		return
	}
	defer b.leave(h)
	e.clearImage()
}

func (e *engine) clearImage() {
	e.img = nil
	e.hasImg = false
	e.result = nil
	e.checked = false
}

func (b *Backend) SetVariable(h tesswrap.Handle, name, value string) bool {
	e := b.enter("SetVariable", h, true)
	if e == nil {
		return false
	}
	defer b.leave(h)
	v, ok := knownVariables[name]
	if !ok {
		return false
	}
	switch v.kind {
	case kindInt:
		if _, err := strconv.Atoi(value); err != nil {
			return false
		}
	case kindBool:
		if _, err := parseBool(value); err != nil {
			return false
		}
	case kindDouble:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return false
		}
	}
	e.vars[name] = value
	return true
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "t", "true", "on":
		return true, nil
	case "0", "f", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a bool: %q", s)
}

// variable returns the raw value if name is a known variable of the given kind.
func (b *Backend) variable(method string, h tesswrap.Handle, name string, k kind) (string, bool) {
	e := b.enter(method, h, true)
	if e == nil {
		return "", false
	}
	defer b.leave(h)
	v, ok := knownVariables[name]
	if !ok || v.kind != k || e.vars == nil || slices.Contains(b.UnreadableVariables, name) {
		return "", false
	}
	return e.vars[name], true
}

func (b *Backend) StringVariable(h tesswrap.Handle, name string) (string, bool) {
	return b.variable("StringVariable", h, name, kindString)
}

func (b *Backend) IntVariable(h tesswrap.Handle, name string) (int32, bool) {
	s, ok := b.variable("IntVariable", h, name, kindInt)
	if !ok {
		return 0, false
	}
	n, _ := strconv.Atoi(s)
	return int32(n), true
}

func (b *Backend) BoolVariable(h tesswrap.Handle, name string) (bool, bool) {
	s, ok := b.variable("BoolVariable", h, name, kindBool)
	if !ok {
		return false, false
	}
	v, _ := parseBool(s)
	return v, true
}

func (b *Backend) DoubleVariable(h tesswrap.Handle, name string) (float64, bool) {
	s, ok := b.variable("DoubleVariable", h, name, kindDouble)
	if !ok {
		return 0, false
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f, true
}

func (b *Backend) SetPageSegMode(h tesswrap.Handle, mode tesswrap.PageSegMode) {
	e := b.enter("SetPageSegMode", h, true)
	if e == nil {
		return
	}
	defer b.leave(h)
	e.psm = mode
}

func (b *Backend) PageSegMode(h tesswrap.Handle) tesswrap.PageSegMode {
	e := b.enter("PageSegMode", h, true)
	if e == nil {
		return 0
	}
	defer b.leave(h)
	return e.psm
}

func (b *Backend) InitLanguages(h tesswrap.Handle) string {
	e := b.enter("InitLanguages", h, true)
	if e == nil {
		return ""
	}
	defer b.leave(h)
	return e.language
}

func (b *Backend) LoadedLanguages(h tesswrap.Handle) []string {
	e := b.enter("LoadedLanguages", h, true)
	if e == nil {
		return nil
	}
	defer b.leave(h)
	return strings.Split(e.language, "+")
}

func (b *Backend) AvailableLanguages(h tesswrap.Handle) []string {
	e := b.enter("AvailableLanguages", h, true)
	if e == nil {
		return nil
	}
	defer b.leave(h)
	files, _ := filepath.Glob(filepath.Join(e.datapath, "*.traineddata"))
	langs := make([]string, 0, len(files))
	for _, f := range files {
		langs = append(langs, strings.TrimSuffix(filepath.Base(f), ".traineddata"))
	}
	slices.Sort(langs)
	return langs
}

func (b *Backend) Datapath(h tesswrap.Handle) string {
	e := b.enter("Datapath", h, true)
	if e == nil {
		return ""
	}
	defer b.leave(h)
	return e.datapath
}

// SetImage keeps data itself, not a copy, the way Tesseract keeps the caller's pointer.
func (b *Backend) SetImage(h tesswrap.Handle, data []byte, width, height, bytesPerPixel, bytesPerLine int32) {
	e := b.enter("SetImage", h, true)
	if e == nil {
		return
	}
	defer b.leave(h)
	if int64(len(data)) < int64(bytesPerLine)*int64(height) {
		b.mu.Lock()
		b.violation("SetImage with %d bytes for %d lines of %d", len(data), height, bytesPerLine)
		b.mu.Unlock()
		return
	}
	e.clearImage()
	e.img = data
	e.width, e.height = int(width), int(height)
	e.bpp, e.stride = int(bytesPerPixel), int(bytesPerLine)
	e.rect = image.Rect(0, 0, e.width, e.height)
	e.hasImg = true
}

func (b *Backend) SetSourceResolution(h tesswrap.Handle, ppi int32) {
	e := b.enter("SetSourceResolution", h, true)
	if e == nil {
		return
	}
	defer b.leave(h)
	e.ppi = ppi
}

func (b *Backend) SetRectangle(h tesswrap.Handle, left, top, width, height int32) {
	e := b.enter("SetRectangle", h, true)
	if e == nil {
		return
	}
	defer b.leave(h)
	e.rect = image.Rect(int(left), int(top), int(left+width), int(top+height)).Intersect(image.Rect(0, 0, e.width, e.height))
	e.result = nil
	e.checked = false
}

func (b *Backend) Recognize(h tesswrap.Handle) int32 {
	e := b.enter("Recognize", h, true)
	if e == nil {
		return -1
	}
	defer b.leave(h)
	return b.recognize(e)
}

// recognize fills e.result. It must be called between enter and leave.
func (b *Backend) recognize(e *engine) int32 {
	if !e.hasImg || !e.initialized {
		return -1
	}
	if b.RecognizeStatus != 0 {
		return b.RecognizeStatus
	}
	if b.RecognizeDelay > 0 {
		time.Sleep(b.RecognizeDelay)
	}
	line := e.describe()
	// built in place and slowly, so unsynchronized callers would splice results
	e.scratch = e.scratch[:0]
	for i := range len(line) {
		e.scratch = append(e.scratch, line[i])
		runtime.Gosched()
	}
	e.result = append(slices.Clone(e.scratch), '\n')
	if b.InvalidUTF8 {
		e.result = append(e.result, 0xff)
	}
	e.checked = true
	return 0
}

// describe is the text the stub recognizes in the current rectangle.
func (e *engine) describe() string {
	sum := 0
	for y := e.rect.Min.Y; y < e.rect.Max.Y; y++ {
		row := e.img[y*e.stride:]
		for x := e.rect.Min.X * e.bpp; x < e.rect.Max.X*e.bpp; x++ {
			sum += int(row[x])
		}
	}
	line := fmt.Sprintf("w%d h%d s%d", e.rect.Dx(), e.rect.Dy(), sum)
	if wl := e.vars["tessedit_char_whitelist"]; wl != "" {
		line = strings.Map(func(r rune) rune {
			if r == ' ' || strings.ContainsRune(wl, r) {
				return r
			}
			return -1
		}, line)
	}
	return line
}

// output recognizes if needed and returns a native copy of render(result).
func (b *Backend) output(method string, h tesswrap.Handle, render func(e *engine, words []string) string) *byte {
	e := b.enter(method, h, true)
	if e == nil {
		return nil
	}
	defer b.leave(h)
	if !e.checked && b.recognize(e) != 0 {
		return nil
	}
	return b.newText(render(e, strings.Fields(string(e.result))))
}

// newText hands out a NUL-terminated string the caller must release with DeleteText.
func (b *Backend) newText(s string) *byte {
	buf := append([]byte(s), 0)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts[&buf[0]] = buf
	return &buf[0]
}

func (b *Backend) UTF8Text(h tesswrap.Handle) *byte {
	return b.output("UTF8Text", h, func(e *engine, _ []string) string {
		return string(e.result)
	})
}

func (b *Backend) HOCRText(h tesswrap.Handle, page int32) *byte {
	return b.output("HOCRText", h, func(e *engine, words []string) string {
		var sb strings.Builder
		fmt.Fprintf(&sb, "  <div class='ocr_page' id='page_%d' title='bbox 0 0 %d %d'>\n", page+1, e.width, e.height)
		for i, w := range words {
			fmt.Fprintf(&sb, "   <span class='ocrx_word' id='word_%d_%d' title='bbox %d 0 %d %d; x_wconf 90'>%s</span>\n",
				page+1, i+1, i*10, i*10+9, e.height, w)
		}
		sb.WriteString("  </div>\n")
		return sb.String()
	})
}

func (b *Backend) ALTOText(h tesswrap.Handle, page int32) *byte {
	return b.output("ALTOText", h, func(e *engine, words []string) string {
		var sb strings.Builder
		fmt.Fprintf(&sb, "\t\t\t<Page WIDTH=\"%d\" HEIGHT=\"%d\" PHYSICAL_IMG_NR=\"%d\" ID=\"page_%d\">\n", e.width, e.height, page, page)
		for i, w := range words {
			fmt.Fprintf(&sb, "\t\t\t\t<String ID=\"string_%d\" HPOS=\"%d\" VPOS=\"0\" WIDTH=\"9\" HEIGHT=\"%d\" WC=\"0.90\" CONTENT=\"%s\"/>\n", i, i*10, e.height, w)
		}
		sb.WriteString("\t\t\t</Page>\n")
		return sb.String()
	})
}

func (b *Backend) TSVText(h tesswrap.Handle, page int32) *byte {
	return b.output("TSVText", h, func(e *engine, words []string) string {
		var sb strings.Builder
		fmt.Fprintf(&sb, "1\t%d\t0\t0\t0\t0\t0\t0\t%d\t%d\t-1\t\n", page+1, e.width, e.height)
		for i, w := range words {
			fmt.Fprintf(&sb, "5\t%d\t1\t1\t1\t%d\t%d\t0\t9\t%d\t90\t%s\n", page+1, i+1, i*10, e.height, w)
		}
		return sb.String()
	})
}

func (b *Backend) boxes(method string, h tesswrap.Handle, page int32) *byte {
	return b.output(method, h, func(e *engine, words []string) string {
		var sb strings.Builder
		for i, w := range words {
			for _, r := range w {
				fmt.Fprintf(&sb, "%c %d 0 %d %d %d\n", r, i*10, i*10+9, e.height, page)
			}
		}
		return sb.String()
	})
}

func (b *Backend) BoxText(h tesswrap.Handle, page int32) *byte {
	return b.boxes("BoxText", h, page)
}

func (b *Backend) LSTMBoxText(h tesswrap.Handle, page int32) *byte {
	return b.boxes("LSTMBoxText", h, page)
}

func (b *Backend) WordStrBoxText(h tesswrap.Handle, page int32) *byte {
	return b.output("WordStrBoxText", h, func(e *engine, words []string) string {
		return fmt.Sprintf("WordStr 0 0 %d %d %d #%s\n", e.width, e.height, page, strings.Join(words, " "))
	})
}

func (b *Backend) UNLVText(h tesswrap.Handle) *byte {
	return b.output("UNLVText", h, func(e *engine, words []string) string {
		return strings.Join(words, " ") + "\n"
	})
}

func (b *Backend) DeleteText(text *byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "DeleteText")
	if _, ok := b.texts[text]; !ok {
		b.violation("DeleteText of unknown or already released text %p", text)
		return
	}
	delete(b.texts, text)
}

func (b *Backend) MeanTextConf(h tesswrap.Handle) int32 {
	e := b.enter("MeanTextConf", h, true)
	if e == nil {
		return 0
	}
	defer b.leave(h)
	if !e.checked && b.recognize(e) != 0 {
		return 0
	}
	if len(strings.Fields(string(e.result))) == 0 {
		return 0
	}
	return 90
}

func (b *Backend) AllWordConfidences(h tesswrap.Handle) []int32 {
	e := b.enter("AllWordConfidences", h, true)
	if e == nil {
		return nil
	}
	defer b.leave(h)
	if !e.checked && b.recognize(e) != 0 {
		return nil
	}
	words := strings.Fields(string(e.result))
	confs := make([]int32, len(words))
	for i := range confs {
		confs[i] = 90
	}
	return confs
}

func (b *Backend) Iterator(h tesswrap.Handle) tesswrap.Handle {
	e := b.enter("Iterator", h, true)
	if e == nil {
		return 0
	}
	defer b.leave(h)
	if !e.checked {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next += 0x10
	id := tesswrap.Handle(b.next)
	b.iters[id] = &iterator{engine: h, words: strings.Fields(string(e.result)), height: e.height, lang: e.firstLanguage()}
	return id
}

func (e *engine) firstLanguage() string {
	lang, _, _ := strings.Cut(e.language, "+")
	return lang
}

func (b *Backend) iterator(method string, it tesswrap.Handle) *iterator {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, method)
	if b.PanicOn == method {
		panic("tesstest: " + method + " failed")
	}
	i, ok := b.iters[it]
	if !ok {
		b.violation("%s on unknown or deleted iterator %#x", method, it)
		return nil
	}
	if _, ok := b.engines[i.engine]; !ok {
		b.violation("%s on iterator %#x of deleted engine", method, it)
		return nil
	}
	return i
}

func (b *Backend) IteratorDelete(it tesswrap.Handle) {
	i := b.iterator("IteratorDelete", it)
	if i == nil {
		return
	}
	if i.layout {
		b.mu.Lock()
		b.violation("IteratorDelete on page iterator %#x", it)
		b.mu.Unlock()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.iters, it)
}

// elements splits the words according to level. Block, paragraph and line all see one element.
func (i *iterator) elements(level tesswrap.Level) []string {
	switch level {
	case tesswrap.RIL_WORD:
		return i.words
	case tesswrap.RIL_SYMBOL:
		var syms []string
		for _, w := range i.words {
			for _, r := range w {
				syms = append(syms, string(r))
			}
		}
		return syms
	}
	if len(i.words) == 0 {
		return nil
	}
	return []string{strings.Join(i.words, " ")}
}

func (b *Backend) IteratorNext(it tesswrap.Handle, level tesswrap.Level) bool {
	i := b.iterator("IteratorNext", it)
	if i == nil {
		return false
	}
	if i.pos+1 >= len(i.elements(level)) {
		return false
	}
	i.pos++
	return true
}

func (b *Backend) IteratorText(it tesswrap.Handle, level tesswrap.Level) *byte {
	i := b.iterator("IteratorText", it)
	if i == nil {
		return nil
	}
	els := i.elements(level)
	if i.pos >= len(els) {
		return nil
	}
	s := els[i.pos]
	if level <= tesswrap.RIL_TEXTLINE {
		s += "\n"
	}
	return b.newText(s)
}

func (b *Backend) IteratorConfidence(it tesswrap.Handle, level tesswrap.Level) float32 {
	if b.iterator("IteratorConfidence", it) == nil {
		return 0
	}
	return 90
}

func (b *Backend) IteratorBoundingBox(it tesswrap.Handle, level tesswrap.Level) (left, top, right, bottom int32, ok bool) {
	i := b.iterator("IteratorBoundingBox", it)
	if i == nil {
		return 0, 0, 0, 0, false
	}
	x := int32(i.pos * 10)
	return x, 0, x + 9, int32(i.height), true
}

func (b *Backend) IteratorBlockType(it tesswrap.Handle) tesswrap.BlockType {
	if b.iterator("IteratorBlockType", it) == nil {
		return tesswrap.PT_UNKNOWN
	}
	return tesswrap.PT_FLOWING_TEXT
}

func (b *Backend) IteratorWordAttributes(it tesswrap.Handle) tesswrap.WordAttributes {
	i := b.iterator("IteratorWordAttributes", it)
	if i == nil || i.pos >= len(i.words) {
		return tesswrap.WordAttributes{}
	}
	w := i.words[i.pos]
	return tesswrap.WordAttributes{
		Language: i.lang,
		Numeric:  strings.Trim(w, "0123456789") == "",
		Font:     tesswrap.FontAttributes{Name: "Stub_Sans", PointSize: i.height},
	}
}

// IteratorSymbolAttributes reports the first symbol of the page as a drop cap.
func (b *Backend) IteratorSymbolAttributes(it tesswrap.Handle) tesswrap.SymbolAttributes {
	i := b.iterator("IteratorSymbolAttributes", it)
	if i == nil {
		return tesswrap.SymbolAttributes{}
	}
	return tesswrap.SymbolAttributes{Dropcap: i.pos == 0}
}

// AnalyseLayout finds the words the stub would recognize, without recognizing.
func (b *Backend) AnalyseLayout(h tesswrap.Handle) tesswrap.Handle {
	e := b.enter("AnalyseLayout", h, true)
	if e == nil {
		return 0
	}
	defer b.leave(h)
	if !e.hasImg {
		return 0
	}
	e.result = nil
	e.checked = false
	words := strings.Fields(e.describe())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next += 0x10
	id := tesswrap.Handle(b.next)
	b.iters[id] = &iterator{engine: h, words: words, height: e.height, lang: e.firstLanguage(), layout: true}
	return id
}

// pageIterator is iterator for calls that need an iterator from AnalyseLayout.
func (b *Backend) pageIterator(method string, it tesswrap.Handle) *iterator {
	i := b.iterator(method, it)
	if i != nil && !i.layout {
		b.mu.Lock()
		b.violation("%s on result iterator %#x", method, it)
		b.mu.Unlock()
	}
	return i
}

func (b *Backend) PageIteratorDelete(pit tesswrap.Handle) {
	if b.pageIterator("PageIteratorDelete", pit) == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.iters, pit)
}

func (b *Backend) PageIteratorNext(pit tesswrap.Handle, level tesswrap.Level) bool {
	i := b.pageIterator("PageIteratorNext", pit)
	if i == nil {
		return false
	}
	if i.pos+1 >= len(i.elements(level)) {
		// like Tesseract, the iterator moves past the end
		i.pos = len(i.elements(level))
		return false
	}
	i.pos++
	return true
}

func (b *Backend) PageIteratorBoundingBox(pit tesswrap.Handle, level tesswrap.Level) (left, top, right, bottom int32, ok bool) {
	i := b.pageIterator("PageIteratorBoundingBox", pit)
	if i == nil || i.pos >= len(i.elements(level)) {
		return 0, 0, 0, 0, false
	}
	x := int32(i.pos * 10)
	return x, 0, x + 9, int32(i.height), true
}

func (b *Backend) PageIteratorBlockType(pit tesswrap.Handle) tesswrap.BlockType {
	if b.pageIterator("PageIteratorBlockType", pit) == nil {
		return tesswrap.PT_UNKNOWN
	}
	return tesswrap.PT_FLOWING_TEXT
}

func (b *Backend) PageIteratorBaseline(pit tesswrap.Handle, level tesswrap.Level) (x1, y1, x2, y2 int32, ok bool) {
	i := b.pageIterator("PageIteratorBaseline", pit)
	if i == nil || i.pos >= len(i.elements(level)) {
		return 0, 0, 0, 0, false
	}
	x := int32(i.pos * 10)
	return x, int32(i.height - 1), x + 9, int32(i.height - 1), true
}

func (b *Backend) PageIteratorOrientation(pit tesswrap.Handle) tesswrap.TextOrientation {
	b.pageIterator("PageIteratorOrientation", pit)
	return tesswrap.TextOrientation{
		Orientation:      tesswrap.ORIENTATION_PAGE_UP,
		WritingDirection: tesswrap.WRITING_DIRECTION_LEFT_TO_RIGHT,
		TextlineOrder:    tesswrap.TEXTLINE_ORDER_TOP_TO_BOTTOM,
	}
}

func (b *Backend) PageIteratorParagraphInfo(pit tesswrap.Handle) tesswrap.ParagraphInfo {
	b.pageIterator("PageIteratorParagraphInfo", pit)
	return tesswrap.ParagraphInfo{Justification: tesswrap.JUSTIFICATION_LEFT}
}

// ReadConfigFile sets the known variables listed in the file and ignores the rest, like Tesseract.
func (b *Backend) ReadConfigFile(h tesswrap.Handle, path string) {
	e := b.enter("ReadConfigFile", h, true)
	if e == nil {
		return
	}
	defer b.leave(h)
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for line := range strings.Lines(string(data)) {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if _, ok := knownVariables[fields[0]]; ok {
			e.vars[fields[0]] = strings.Join(fields[1:], " ")
		}
	}
}

func (b *Backend) ClearAdaptiveClassifier(h tesswrap.Handle) {
	if e := b.enter("ClearAdaptiveClassifier", h, true); e != nil {
		b.leave(h)
	}
}

//go:build (linux || darwin) && !tesseract_lib

package tesswrap

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/johbar/tesseract-purego/pkg/dynlib"
	"golang.org/x/sys/unix"
)

// DefaultLibNames are tried in order by [LoadLibrary] when no path is given.
var DefaultLibNames = defaultLibNames()

func defaultLibNames() []string {
	if runtime.GOOS == "darwin" {
		return []string{
			"libtesseract.5.dylib",
			"libtesseract.dylib",
			"/opt/homebrew/lib/libtesseract.dylib",
			"/usr/local/lib/libtesseract.dylib",
		}
	}
	return []string{
		"libtesseract.so.5",
		"libtesseract.so",
		"/usr/lib/x86_64-linux-gnu/libtesseract.so.5",
		"/usr/lib/aarch64-linux-gnu/libtesseract.so.5",
		"/usr/local/lib/libtesseract.so",
	}
}

// pureBackend binds libtesseract's C API with purego.
type pureBackend struct {
	lib *dynlib.Lib

	tessVersion func() *byte

	baseAPICreate func() uintptr
	baseAPIDelete func(h uintptr)
	/*
		Close down tesseract and free up all memory. End() is equivalent to destructing and reconstructing
		your TessBaseAPI. Once End() has been used, none of the other API functions may be used other than Init.
	*/
	baseAPIEnd   func(h uintptr)
	baseAPIInit2 func(h uintptr, datapath, language *byte, oem int32) int32
	/*
		Free up recognition results and any stored image data,
		without actually freeing any recognition data that would be time-consuming to reload.
		Afterwards, you must call SetImage or TesseractRect before doing any Recognize or Get* operation.
	*/
	baseAPIClear func(h uintptr)

	baseAPISetVariable       func(h uintptr, name, value *byte) int32
	baseAPIGetStringVariable func(h uintptr, name *byte) *byte
	baseAPIGetIntVariable    func(h uintptr, name *byte, value *int32) int32
	baseAPIGetBoolVariable   func(h uintptr, name *byte, value *int32) int32
	baseAPIGetDoubleVariable func(h uintptr, name *byte, value *float64) int32
	baseAPISetPageSegMode    func(h uintptr, mode int32)
	baseAPIGetPageSegMode    func(h uintptr) int32

	baseAPIGetInitLanguagesAsString      func(h uintptr) *byte
	baseAPIGetLoadedLanguagesAsVector    func(h uintptr) uintptr
	baseAPIGetAvailableLanguagesAsVector func(h uintptr) uintptr
	deleteTextArray                      func(arr uintptr)
	baseAPIGetDatapath                   func(h uintptr) *byte

	baseAPISetImage            func(h uintptr, data *byte, width, height, bytesPerPixel, bytesPerLine int32)
	baseAPISetSourceResolution func(h uintptr, ppi int32)
	baseAPISetRectangle        func(h uintptr, left, top, width, height int32)

	baseAPIRecognize          func(h uintptr, monitor uintptr) int32
	baseAPIGetUTF8Text        func(h uintptr) *byte
	baseAPIGetHOCRText        func(h uintptr, page int32) *byte
	baseAPIGetAltoText        func(h uintptr, page int32) *byte
	baseAPIGetTsvText         func(h uintptr, page int32) *byte
	baseAPIGetBoxText         func(h uintptr, page int32) *byte
	baseAPIGetLSTMBoxText     func(h uintptr, page int32) *byte
	baseAPIGetWordStrBoxText  func(h uintptr, page int32) *byte
	baseAPIGetUNLVText        func(h uintptr) *byte
	deleteText                func(text *byte)
	baseAPIMeanTextConf       func(h uintptr) int32
	baseAPIAllWordConfidences func(h uintptr) uintptr
	deleteIntArray            func(arr uintptr)

	baseAPIGetIterator                 func(h uintptr) uintptr
	resultIteratorDelete               func(it uintptr)
	resultIteratorNext                 func(it uintptr, level int32) int32
	resultIteratorGetUTF8Text          func(it uintptr, level int32) *byte
	resultIteratorConfidence           func(it uintptr, level int32) float32
	resultIteratorGetPageIteratorConst func(it uintptr) uintptr
	pageIteratorBoundingBox            func(pit uintptr, level int32, left, top, right, bottom *int32) int32
	pageIteratorBlockType              func(pit uintptr) int32

	resultIteratorWordRecognitionLanguage func(it uintptr) *byte
	resultIteratorWordFontAttributes      func(it uintptr, bold, italic, underlined, monospace, serif, smallcaps, pointsize, fontID *int32) *byte
	resultIteratorWordIsFromDictionary    func(it uintptr) int32
	resultIteratorWordIsNumeric           func(it uintptr) int32
	resultIteratorSymbolIsSuperscript     func(it uintptr) int32
	resultIteratorSymbolIsSubscript       func(it uintptr) int32
	resultIteratorSymbolIsDropcap         func(it uintptr) int32

	baseAPIAnalyseLayout      func(h uintptr) uintptr
	pageIteratorDelete        func(pit uintptr)
	pageIteratorNext          func(pit uintptr, level int32) int32
	pageIteratorBaseline      func(pit uintptr, level int32, x1, y1, x2, y2 *int32) int32
	pageIteratorOrientation   func(pit uintptr, orientation, direction, order *int32, deskew *float32)
	pageIteratorParagraphInfo func(pit uintptr, justification, isListItem, isCrown, firstLineIndent *int32)

	baseAPIReadConfigFile          func(h uintptr, filename *byte)
	baseAPIClearAdaptiveClassifier func(h uintptr)
}

// LoadLibrary opens libtesseract (path, or [DefaultLibNames] if path is empty)
// and binds its C API. The returned Backend can be shared by any number of engines.
func LoadLibrary(path string) (Backend, error) {
	var lib *dynlib.Lib
	var err error
	if len(path) > 0 {
		lib, err = dynlib.TryLoadLib(path)
	} else {
		lib, err = dynlib.TryLoadLib(DefaultLibNames...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading libtesseract: %w", ErrEngineCreationFailed, err)
	}
	b := &pureBackend{lib: lib}
	if err := b.register(); err != nil {
		lib.Close()
		return nil, fmt.Errorf("%w: binding %s: %w", ErrEngineCreationFailed, lib.Path, err)
	}
	return b, nil
}

// LibraryPath returns the path libtesseract was loaded from.
func LibraryPath(b Backend) string {
	if pb, ok := b.(*pureBackend); ok {
		return pb.lib.Path
	}
	return ""
}

func (b *pureBackend) register() error {
	var errs error
	bind := func(fptr any, name string, optional bool) {
		sym, err := purego.Dlsym(b.lib.Handle, name)
		if err != nil {
			if !optional {
				errs = errors.Join(errs, fmt.Errorf("symbol %s: %w", name, err))
			}
			return
		}
		purego.RegisterFunc(fptr, sym)
	}
	bind(&b.tessVersion, "TessVersion", false)
	bind(&b.baseAPICreate, "TessBaseAPICreate", false)
	bind(&b.baseAPIDelete, "TessBaseAPIDelete", false)
	bind(&b.baseAPIEnd, "TessBaseAPIEnd", false)
	bind(&b.baseAPIInit2, "TessBaseAPIInit2", false)
	bind(&b.baseAPIClear, "TessBaseAPIClear", false)

	bind(&b.baseAPISetVariable, "TessBaseAPISetVariable", false)
	bind(&b.baseAPIGetStringVariable, "TessBaseAPIGetStringVariable", false)
	bind(&b.baseAPIGetIntVariable, "TessBaseAPIGetIntVariable", false)
	bind(&b.baseAPIGetBoolVariable, "TessBaseAPIGetBoolVariable", false)
	bind(&b.baseAPIGetDoubleVariable, "TessBaseAPIGetDoubleVariable", false)
	bind(&b.baseAPISetPageSegMode, "TessBaseAPISetPageSegMode", false)
	bind(&b.baseAPIGetPageSegMode, "TessBaseAPIGetPageSegMode", false)

	bind(&b.baseAPIGetInitLanguagesAsString, "TessBaseAPIGetInitLanguagesAsString", false)
	bind(&b.baseAPIGetLoadedLanguagesAsVector, "TessBaseAPIGetLoadedLanguagesAsVector", false)
	bind(&b.baseAPIGetAvailableLanguagesAsVector, "TessBaseAPIGetAvailableLanguagesAsVector", false)
	bind(&b.deleteTextArray, "TessDeleteTextArray", false)
	bind(&b.baseAPIGetDatapath, "TessBaseAPIGetDatapath", true)

	bind(&b.baseAPISetImage, "TessBaseAPISetImage", false)
	bind(&b.baseAPISetSourceResolution, "TessBaseAPISetSourceResolution", false)
	bind(&b.baseAPISetRectangle, "TessBaseAPISetRectangle", false)

	bind(&b.baseAPIRecognize, "TessBaseAPIRecognize", false)
	bind(&b.baseAPIGetUTF8Text, "TessBaseAPIGetUTF8Text", false)
	bind(&b.baseAPIGetHOCRText, "TessBaseAPIGetHOCRText", false)
	// renderers added with Tesseract 4.1
	bind(&b.baseAPIGetAltoText, "TessBaseAPIGetAltoText", true)
	bind(&b.baseAPIGetTsvText, "TessBaseAPIGetTsvText", true)
	bind(&b.baseAPIGetBoxText, "TessBaseAPIGetBoxText", true)
	bind(&b.baseAPIGetLSTMBoxText, "TessBaseAPIGetLSTMBoxText", true)
	bind(&b.baseAPIGetWordStrBoxText, "TessBaseAPIGetWordStrBoxText", true)
	bind(&b.baseAPIGetUNLVText, "TessBaseAPIGetUNLVText", true)
	bind(&b.deleteText, "TessDeleteText", false)
	bind(&b.baseAPIMeanTextConf, "TessBaseAPIMeanTextConf", false)
	bind(&b.baseAPIAllWordConfidences, "TessBaseAPIAllWordConfidences", false)
	bind(&b.deleteIntArray, "TessDeleteIntArray", false)

	bind(&b.baseAPIGetIterator, "TessBaseAPIGetIterator", false)
	bind(&b.resultIteratorDelete, "TessResultIteratorDelete", false)
	bind(&b.resultIteratorNext, "TessResultIteratorNext", false)
	bind(&b.resultIteratorGetUTF8Text, "TessResultIteratorGetUTF8Text", false)
	bind(&b.resultIteratorConfidence, "TessResultIteratorConfidence", false)
	bind(&b.resultIteratorGetPageIteratorConst, "TessResultIteratorGetPageIteratorConst", false)
	bind(&b.pageIteratorBoundingBox, "TessPageIteratorBoundingBox", false)
	bind(&b.pageIteratorBlockType, "TessPageIteratorBlockType", false)

	bind(&b.resultIteratorWordRecognitionLanguage, "TessResultIteratorWordRecognitionLanguage", false)
	bind(&b.resultIteratorWordFontAttributes, "TessResultIteratorWordFontAttributes", false)
	bind(&b.resultIteratorWordIsFromDictionary, "TessResultIteratorWordIsFromDictionary", false)
	bind(&b.resultIteratorWordIsNumeric, "TessResultIteratorWordIsNumeric", false)
	bind(&b.resultIteratorSymbolIsSuperscript, "TessResultIteratorSymbolIsSuperscript", false)
	bind(&b.resultIteratorSymbolIsSubscript, "TessResultIteratorSymbolIsSubscript", false)
	bind(&b.resultIteratorSymbolIsDropcap, "TessResultIteratorSymbolIsDropcap", false)

	bind(&b.baseAPIAnalyseLayout, "TessBaseAPIAnalyseLayout", false)
	bind(&b.pageIteratorDelete, "TessPageIteratorDelete", false)
	bind(&b.pageIteratorNext, "TessPageIteratorNext", false)
	bind(&b.pageIteratorBaseline, "TessPageIteratorBaseline", false)
	bind(&b.pageIteratorOrientation, "TessPageIteratorOrientation", false)
	bind(&b.pageIteratorParagraphInfo, "TessPageIteratorParagraphInfo", false)

	bind(&b.baseAPIReadConfigFile, "TessBaseAPIReadConfigFile", false)
	bind(&b.baseAPIClearAdaptiveClassifier, "TessBaseAPIClearAdaptiveClassifier", false)
	return errs
}

// cString converts s for a native call. ok is false if s contains a NUL byte.
func cString(s string) (p *byte, ok bool) {
	p, err := unix.BytePtrFromString(s)
	return p, err == nil
}

func (b *pureBackend) Version() string {
	return unix.BytePtrToString(b.tessVersion())
}

func (b *pureBackend) Create() Handle {
	return Handle(b.baseAPICreate())
}

func (b *pureBackend) Delete(h Handle) {
	b.baseAPIDelete(uintptr(h))
}

func (b *pureBackend) Init(h Handle, datapath, language string, oem OcrEngineMode) int32 {
	var path *byte
	if len(datapath) > 0 {
		var ok bool
		if path, ok = cString(datapath); !ok {
			return -1
		}
	}
	lang, ok := cString(language)
	if !ok {
		return -1
	}
	return b.baseAPIInit2(uintptr(h), path, lang, int32(oem))
}

func (b *pureBackend) End(h Handle) {
	b.baseAPIEnd(uintptr(h))
}

func (b *pureBackend) Clear(h Handle) {
	b.baseAPIClear(uintptr(h))
}

func (b *pureBackend) SetVariable(h Handle, name, value string) bool {
	n, ok := cString(name)
	if !ok {
		return false
	}
	v, ok := cString(value)
	if !ok {
		return false
	}
	return b.baseAPISetVariable(uintptr(h), n, v) != 0
}

func (b *pureBackend) StringVariable(h Handle, name string) (string, bool) {
	n, ok := cString(name)
	if !ok {
		return "", false
	}
	v := b.baseAPIGetStringVariable(uintptr(h), n)
	if v == nil {
		return "", false
	}
	return unix.BytePtrToString(v), true
}

func (b *pureBackend) IntVariable(h Handle, name string) (int32, bool) {
	n, ok := cString(name)
	if !ok {
		return 0, false
	}
	var v int32
	found := b.baseAPIGetIntVariable(uintptr(h), n, &v) != 0
	return v, found
}

func (b *pureBackend) BoolVariable(h Handle, name string) (bool, bool) {
	n, ok := cString(name)
	if !ok {
		return false, false
	}
	var v int32
	found := b.baseAPIGetBoolVariable(uintptr(h), n, &v) != 0
	return v != 0, found
}

func (b *pureBackend) DoubleVariable(h Handle, name string) (float64, bool) {
	n, ok := cString(name)
	if !ok {
		return 0, false
	}
	var v float64
	found := b.baseAPIGetDoubleVariable(uintptr(h), n, &v) != 0
	return v, found
}

func (b *pureBackend) SetPageSegMode(h Handle, mode PageSegMode) {
	b.baseAPISetPageSegMode(uintptr(h), int32(mode))
}

func (b *pureBackend) PageSegMode(h Handle) PageSegMode {
	return PageSegMode(b.baseAPIGetPageSegMode(uintptr(h)))
}

func (b *pureBackend) InitLanguages(h Handle) string {
	return unix.BytePtrToString(b.baseAPIGetInitLanguagesAsString(uintptr(h)))
}

func (b *pureBackend) LoadedLanguages(h Handle) []string {
	return b.takeTextArray(b.baseAPIGetLoadedLanguagesAsVector(uintptr(h)))
}

func (b *pureBackend) AvailableLanguages(h Handle) []string {
	return b.takeTextArray(b.baseAPIGetAvailableLanguagesAsVector(uintptr(h)))
}

// takeTextArray copies a NULL-terminated char** and releases it.
func (b *pureBackend) takeTextArray(arr uintptr) []string {
	if arr == 0 {
		return nil
	}
	defer b.deleteTextArray(arr)
	var out []string
	for i := uintptr(0); ; i++ {
		elem := *(**byte)(unsafe.Add(unsafe.Pointer(arr), i*unsafe.Sizeof(arr)))
		if elem == nil {
			return out
		}
		out = append(out, unix.BytePtrToString(elem))
	}
}

func (b *pureBackend) Datapath(h Handle) string {
	if b.baseAPIGetDatapath == nil {
		return ""
	}
	return unix.BytePtrToString(b.baseAPIGetDatapath(uintptr(h)))
}

func (b *pureBackend) SetImage(h Handle, data []byte, width, height, bytesPerPixel, bytesPerLine int32) {
	b.baseAPISetImage(uintptr(h), unsafe.SliceData(data), width, height, bytesPerPixel, bytesPerLine)
}

func (b *pureBackend) SetSourceResolution(h Handle, ppi int32) {
	b.baseAPISetSourceResolution(uintptr(h), ppi)
}

func (b *pureBackend) SetRectangle(h Handle, left, top, width, height int32) {
	b.baseAPISetRectangle(uintptr(h), left, top, width, height)
}

func (b *pureBackend) Recognize(h Handle) int32 {
	return b.baseAPIRecognize(uintptr(h), 0)
}

func (b *pureBackend) UTF8Text(h Handle) *byte {
	return b.baseAPIGetUTF8Text(uintptr(h))
}

func (b *pureBackend) HOCRText(h Handle, page int32) *byte {
	return b.baseAPIGetHOCRText(uintptr(h), page)
}

func (b *pureBackend) ALTOText(h Handle, page int32) *byte {
	return optionalPage(b.baseAPIGetAltoText, h, page)
}

func (b *pureBackend) TSVText(h Handle, page int32) *byte {
	return optionalPage(b.baseAPIGetTsvText, h, page)
}

func (b *pureBackend) BoxText(h Handle, page int32) *byte {
	return optionalPage(b.baseAPIGetBoxText, h, page)
}

func (b *pureBackend) LSTMBoxText(h Handle, page int32) *byte {
	return optionalPage(b.baseAPIGetLSTMBoxText, h, page)
}

func (b *pureBackend) WordStrBoxText(h Handle, page int32) *byte {
	return optionalPage(b.baseAPIGetWordStrBoxText, h, page)
}

// optionalPage calls a renderer that older libraries may lack; a missing one yields NULL.
func optionalPage(f func(uintptr, int32) *byte, h Handle, page int32) *byte {
	if f == nil {
		return nil
	}
	return f(uintptr(h), page)
}

func (b *pureBackend) UNLVText(h Handle) *byte {
	if b.baseAPIGetUNLVText == nil {
		return nil
	}
	return b.baseAPIGetUNLVText(uintptr(h))
}

func (b *pureBackend) DeleteText(text *byte) {
	b.deleteText(text)
}

func (b *pureBackend) MeanTextConf(h Handle) int32 {
	return b.baseAPIMeanTextConf(uintptr(h))
}

// AllWordConfidences copies the -1 terminated int array and releases it.
func (b *pureBackend) AllWordConfidences(h Handle) []int32 {
	arr := b.baseAPIAllWordConfidences(uintptr(h))
	if arr == 0 {
		return nil
	}
	defer b.deleteIntArray(arr)
	out := []int32{}
	for i := uintptr(0); ; i++ {
		v := *(*int32)(unsafe.Add(unsafe.Pointer(arr), i*4))
		if v == -1 {
			return out
		}
		out = append(out, v)
	}
}

func (b *pureBackend) Iterator(h Handle) Handle {
	return Handle(b.baseAPIGetIterator(uintptr(h)))
}

func (b *pureBackend) IteratorDelete(it Handle) {
	b.resultIteratorDelete(uintptr(it))
}

func (b *pureBackend) IteratorNext(it Handle, level Level) bool {
	return b.resultIteratorNext(uintptr(it), int32(level)) != 0
}

func (b *pureBackend) IteratorText(it Handle, level Level) *byte {
	return b.resultIteratorGetUTF8Text(uintptr(it), int32(level))
}

func (b *pureBackend) IteratorConfidence(it Handle, level Level) float32 {
	return b.resultIteratorConfidence(uintptr(it), int32(level))
}

func (b *pureBackend) IteratorBoundingBox(it Handle, level Level) (left, top, right, bottom int32, ok bool) {
	pit := b.resultIteratorGetPageIteratorConst(uintptr(it))
	if pit == 0 {
		return 0, 0, 0, 0, false
	}
	ok = b.pageIteratorBoundingBox(pit, int32(level), &left, &top, &right, &bottom) != 0
	return left, top, right, bottom, ok
}

func (b *pureBackend) IteratorBlockType(it Handle) BlockType {
	pit := b.resultIteratorGetPageIteratorConst(uintptr(it))
	if pit == 0 {
		return PT_UNKNOWN
	}
	return BlockType(b.pageIteratorBlockType(pit))
}

func (b *pureBackend) IteratorWordAttributes(it Handle) WordAttributes {
	var attrs WordAttributes
	attrs.Language = unix.BytePtrToString(b.resultIteratorWordRecognitionLanguage(uintptr(it)))
	attrs.FromDictionary = b.resultIteratorWordIsFromDictionary(uintptr(it)) != 0
	attrs.Numeric = b.resultIteratorWordIsNumeric(uintptr(it)) != 0
	var bold, italic, underlined, monospace, serif, smallcaps, pointsize, fontID int32
	// the font name belongs to the iterator; NULL when the engine has no font information
	name := b.resultIteratorWordFontAttributes(uintptr(it), &bold, &italic, &underlined, &monospace, &serif, &smallcaps, &pointsize, &fontID)
	if name != nil {
		attrs.Font = FontAttributes{
			Name:       unix.BytePtrToString(name),
			ID:         int(fontID),
			PointSize:  int(pointsize),
			Bold:       bold != 0,
			Italic:     italic != 0,
			Underlined: underlined != 0,
			Monospace:  monospace != 0,
			Serif:      serif != 0,
			SmallCaps:  smallcaps != 0,
		}
	}
	return attrs
}

func (b *pureBackend) IteratorSymbolAttributes(it Handle) SymbolAttributes {
	return SymbolAttributes{
		Superscript: b.resultIteratorSymbolIsSuperscript(uintptr(it)) != 0,
		Subscript:   b.resultIteratorSymbolIsSubscript(uintptr(it)) != 0,
		Dropcap:     b.resultIteratorSymbolIsDropcap(uintptr(it)) != 0,
	}
}

func (b *pureBackend) AnalyseLayout(h Handle) Handle {
	return Handle(b.baseAPIAnalyseLayout(uintptr(h)))
}

func (b *pureBackend) PageIteratorDelete(pit Handle) {
	b.pageIteratorDelete(uintptr(pit))
}

func (b *pureBackend) PageIteratorNext(pit Handle, level Level) bool {
	return b.pageIteratorNext(uintptr(pit), int32(level)) != 0
}

func (b *pureBackend) PageIteratorBoundingBox(pit Handle, level Level) (left, top, right, bottom int32, ok bool) {
	ok = b.pageIteratorBoundingBox(uintptr(pit), int32(level), &left, &top, &right, &bottom) != 0
	return left, top, right, bottom, ok
}

func (b *pureBackend) PageIteratorBlockType(pit Handle) BlockType {
	return BlockType(b.pageIteratorBlockType(uintptr(pit)))
}

func (b *pureBackend) PageIteratorBaseline(pit Handle, level Level) (x1, y1, x2, y2 int32, ok bool) {
	ok = b.pageIteratorBaseline(uintptr(pit), int32(level), &x1, &y1, &x2, &y2) != 0
	return x1, y1, x2, y2, ok
}

func (b *pureBackend) PageIteratorOrientation(pit Handle) TextOrientation {
	var orientation, direction, order int32
	var deskew float32
	b.pageIteratorOrientation(uintptr(pit), &orientation, &direction, &order, &deskew)
	return TextOrientation{
		Orientation:      Orientation(orientation),
		WritingDirection: WritingDirection(direction),
		TextlineOrder:    TextlineOrder(order),
		DeskewAngle:      deskew,
	}
}

func (b *pureBackend) PageIteratorParagraphInfo(pit Handle) ParagraphInfo {
	var justification, listItem, crown, indent int32
	b.pageIteratorParagraphInfo(uintptr(pit), &justification, &listItem, &crown, &indent)
	return ParagraphInfo{
		Justification:   Justification(justification),
		IsListItem:      listItem != 0,
		IsCrown:         crown != 0,
		FirstLineIndent: int(indent),
	}
}

func (b *pureBackend) ReadConfigFile(h Handle, path string) {
	if p, ok := cString(path); ok {
		b.baseAPIReadConfigFile(uintptr(h), p)
	}
}

func (b *pureBackend) ClearAdaptiveClassifier(h Handle) {
	b.baseAPIClearAdaptiveClassifier(uintptr(h))
}

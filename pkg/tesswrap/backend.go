package tesswrap

// Handle is an opaque native pointer (TessBaseAPI*, TessResultIterator*).
// The zero Handle is the null pointer.
type Handle uintptr

// Backend is the raw boundary to a Tesseract C API implementation.
//
// A Backend makes no safety guarantees: calls on destroyed handles, calls before
// Init and concurrent calls on one handle are undefined. [Engine] is the safe layer on top.
//
// Methods returning *byte hand out NUL-terminated native strings owned by the caller,
// which must be released with DeleteText exactly once. Methods returning Go values
// (string, []string, []int32) have already copied and released the native memory.
type Backend interface {
	Version() string

	Create() Handle
	Delete(h Handle)
	// Init returns the native status, 0 on success.
	Init(h Handle, datapath, language string, oem OcrEngineMode) int32
	End(h Handle)
	Clear(h Handle)

	// SetVariable returns false for names the engine does not know.
	SetVariable(h Handle, name, value string) bool
	StringVariable(h Handle, name string) (string, bool)
	IntVariable(h Handle, name string) (int32, bool)
	BoolVariable(h Handle, name string) (bool, bool)
	DoubleVariable(h Handle, name string) (float64, bool)
	SetPageSegMode(h Handle, mode PageSegMode)
	PageSegMode(h Handle) PageSegMode

	InitLanguages(h Handle) string
	LoadedLanguages(h Handle) []string
	AvailableLanguages(h Handle) []string
	Datapath(h Handle) string

	// SetImage passes raw pixels. data must stay valid until the image is replaced or cleared.
	SetImage(h Handle, data []byte, width, height, bytesPerPixel, bytesPerLine int32)
	SetSourceResolution(h Handle, ppi int32)
	SetRectangle(h Handle, left, top, width, height int32)

	// Recognize returns the native status, 0 on success.
	Recognize(h Handle) int32
	UTF8Text(h Handle) *byte
	HOCRText(h Handle, page int32) *byte
	ALTOText(h Handle, page int32) *byte
	TSVText(h Handle, page int32) *byte
	BoxText(h Handle, page int32) *byte
	LSTMBoxText(h Handle, page int32) *byte
	WordStrBoxText(h Handle, page int32) *byte
	UNLVText(h Handle) *byte
	DeleteText(text *byte)
	MeanTextConf(h Handle) int32
	AllWordConfidences(h Handle) []int32

	// Iterator returns a TessResultIterator positioned at the first element, or 0.
	Iterator(h Handle) Handle
	IteratorDelete(it Handle)
	IteratorNext(it Handle, level Level) bool
	IteratorText(it Handle, level Level) *byte
	IteratorConfidence(it Handle, level Level) float32
	IteratorBoundingBox(it Handle, level Level) (left, top, right, bottom int32, ok bool)
	IteratorBlockType(it Handle) BlockType
	// IteratorWordAttributes is only called on an iterator at a word.
	IteratorWordAttributes(it Handle) WordAttributes
	IteratorSymbolAttributes(it Handle) SymbolAttributes

	// AnalyseLayout returns a TessPageIterator over the layout of the current image, or 0.
	AnalyseLayout(h Handle) Handle
	PageIteratorDelete(pit Handle)
	PageIteratorNext(pit Handle, level Level) bool
	PageIteratorBoundingBox(pit Handle, level Level) (left, top, right, bottom int32, ok bool)
	PageIteratorBlockType(pit Handle) BlockType
	PageIteratorBaseline(pit Handle, level Level) (x1, y1, x2, y2 int32, ok bool)
	PageIteratorOrientation(pit Handle) TextOrientation
	PageIteratorParagraphInfo(pit Handle) ParagraphInfo

	// ReadConfigFile sets the variables listed in a Tesseract config file.
	ReadConfigFile(h Handle, path string)
	ClearAdaptiveClassifier(h Handle)
}

package tesswrap

import "strconv"

// PageSegMode mirrors TessPageSegMode.
type PageSegMode int32

const (
	PSM_OSD_ONLY PageSegMode = iota
	PSM_AUTO_OSD
	PSM_AUTO_ONLY
	PSM_AUTO
	PSM_SINGLE_COLUMN
	PSM_SINGLE_BLOCK_VERT_TEXT
	PSM_SINGLE_BLOCK
	PSM_SINGLE_LINE
	PSM_SINGLE_WORD
	PSM_CIRCLE_WORD
	PSM_SINGLE_CHAR
	PSM_SPARSE_TEXT
	PSM_SPARSE_TEXT_OSD
	PSM_RAW_LINE
	psmCount
)

var psmNames = [...]string{
	"PSM_OSD_ONLY",
	"PSM_AUTO_OSD",
	"PSM_AUTO_ONLY",
	"PSM_AUTO",
	"PSM_SINGLE_COLUMN",
	"PSM_SINGLE_BLOCK_VERT_TEXT",
	"PSM_SINGLE_BLOCK",
	"PSM_SINGLE_LINE",
	"PSM_SINGLE_WORD",
	"PSM_CIRCLE_WORD",
	"PSM_SINGLE_CHAR",
	"PSM_SPARSE_TEXT",
	"PSM_SPARSE_TEXT_OSD",
	"PSM_RAW_LINE",
}

// Valid reports whether m is a mode Tesseract accepts.
func (m PageSegMode) Valid() bool {
	return m >= PSM_OSD_ONLY && m < psmCount
}

func (m PageSegMode) String() string {
	if !m.Valid() {
		return "PageSegMode(" + strconv.Itoa(int(m)) + ")"
	}
	return psmNames[m]
}

// OcrEngineMode mirrors TessOcrEngineMode.
type OcrEngineMode int32

const (
	OEM_TESSERACT_ONLY OcrEngineMode = iota
	OEM_LSTM_ONLY
	OEM_TESSERACT_LSTM_COMBINED
	OEM_DEFAULT
)

func (m OcrEngineMode) Valid() bool {
	return m >= OEM_TESSERACT_ONLY && m <= OEM_DEFAULT
}

func (m OcrEngineMode) String() string {
	switch m {
	case OEM_TESSERACT_ONLY:
		return "OEM_TESSERACT_ONLY"
	case OEM_LSTM_ONLY:
		return "OEM_LSTM_ONLY"
	case OEM_TESSERACT_LSTM_COMBINED:
		return "OEM_TESSERACT_LSTM_COMBINED"
	case OEM_DEFAULT:
		return "OEM_DEFAULT"
	}
	return "OcrEngineMode(" + strconv.Itoa(int(m)) + ")"
}

// Level mirrors TessPageIteratorLevel: the granularity of a result iteration.
type Level int32

const (
	RIL_BLOCK Level = iota
	RIL_PARA
	RIL_TEXTLINE
	RIL_WORD
	RIL_SYMBOL
)

func (l Level) Valid() bool {
	return l >= RIL_BLOCK && l <= RIL_SYMBOL
}

func (l Level) String() string {
	switch l {
	case RIL_BLOCK:
		return "block"
	case RIL_PARA:
		return "paragraph"
	case RIL_TEXTLINE:
		return "line"
	case RIL_WORD:
		return "word"
	case RIL_SYMBOL:
		return "symbol"
	}
	return "Level(" + strconv.Itoa(int(l)) + ")"
}

// ParseLevel accepts the names returned by [Level.String].
func ParseLevel(s string) (Level, bool) {
	for l := RIL_BLOCK; l <= RIL_SYMBOL; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// BlockType mirrors TessPolyBlockType.
type BlockType int32

const (
	PT_UNKNOWN BlockType = iota
	PT_FLOWING_TEXT
	PT_HEADING_TEXT
	PT_PULLOUT_TEXT
	PT_EQUATION
	PT_INLINE_EQUATION
	PT_TABLE
	PT_VERTICAL_TEXT
	PT_CAPTION_TEXT
	PT_FLOWING_IMAGE
	PT_HEADING_IMAGE
	PT_PULLOUT_IMAGE
	PT_HORZ_LINE
	PT_VERT_LINE
	PT_NOISE
	ptCount
)

var blockTypeNames = [...]string{
	"unknown",
	"flowing-text",
	"heading-text",
	"pullout-text",
	"equation",
	"inline-equation",
	"table",
	"vertical-text",
	"caption-text",
	"flowing-image",
	"heading-image",
	"pullout-image",
	"horizontal-line",
	"vertical-line",
	"noise",
}

func (b BlockType) String() string {
	if b < PT_UNKNOWN || b >= ptCount {
		return "BlockType(" + strconv.Itoa(int(b)) + ")"
	}
	return blockTypeNames[b]
}

// IsText reports whether the block holds text rather than an image or a rule.
func (b BlockType) IsText() bool {
	switch b {
	case PT_FLOWING_TEXT, PT_HEADING_TEXT, PT_PULLOUT_TEXT, PT_VERTICAL_TEXT, PT_CAPTION_TEXT, PT_TABLE:
		return true
	}
	return false
}

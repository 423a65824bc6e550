package tesswrap

import (
	"image"
	"strconv"
)

// Orientation mirrors TessOrientation: the direction the top of the text points to.
type Orientation int32

const (
	ORIENTATION_PAGE_UP Orientation = iota
	ORIENTATION_PAGE_RIGHT
	ORIENTATION_PAGE_DOWN
	ORIENTATION_PAGE_LEFT
)

func (o Orientation) String() string {
	switch o {
	case ORIENTATION_PAGE_UP:
		return "page-up"
	case ORIENTATION_PAGE_RIGHT:
		return "page-right"
	case ORIENTATION_PAGE_DOWN:
		return "page-down"
	case ORIENTATION_PAGE_LEFT:
		return "page-left"
	}
	return "Orientation(" + strconv.Itoa(int(o)) + ")"
}

// WritingDirection mirrors TessWritingDirection.
type WritingDirection int32

const (
	WRITING_DIRECTION_LEFT_TO_RIGHT WritingDirection = iota
	WRITING_DIRECTION_RIGHT_TO_LEFT
	WRITING_DIRECTION_TOP_TO_BOTTOM
)

func (d WritingDirection) String() string {
	switch d {
	case WRITING_DIRECTION_LEFT_TO_RIGHT:
		return "left-to-right"
	case WRITING_DIRECTION_RIGHT_TO_LEFT:
		return "right-to-left"
	case WRITING_DIRECTION_TOP_TO_BOTTOM:
		return "top-to-bottom"
	}
	return "WritingDirection(" + strconv.Itoa(int(d)) + ")"
}

// TextlineOrder mirrors TessTextlineOrder.
type TextlineOrder int32

const (
	TEXTLINE_ORDER_LEFT_TO_RIGHT TextlineOrder = iota
	TEXTLINE_ORDER_RIGHT_TO_LEFT
	TEXTLINE_ORDER_TOP_TO_BOTTOM
)

func (o TextlineOrder) String() string {
	switch o {
	case TEXTLINE_ORDER_LEFT_TO_RIGHT:
		return "left-to-right"
	case TEXTLINE_ORDER_RIGHT_TO_LEFT:
		return "right-to-left"
	case TEXTLINE_ORDER_TOP_TO_BOTTOM:
		return "top-to-bottom"
	}
	return "TextlineOrder(" + strconv.Itoa(int(o)) + ")"
}

// Justification mirrors TessParagraphJustification.
type Justification int32

const (
	JUSTIFICATION_UNKNOWN Justification = iota
	JUSTIFICATION_LEFT
	JUSTIFICATION_CENTER
	JUSTIFICATION_RIGHT
)

func (j Justification) String() string {
	switch j {
	case JUSTIFICATION_UNKNOWN:
		return "unknown"
	case JUSTIFICATION_LEFT:
		return "left"
	case JUSTIFICATION_CENTER:
		return "center"
	case JUSTIFICATION_RIGHT:
		return "right"
	}
	return "Justification(" + strconv.Itoa(int(j)) + ")"
}

// TextOrientation is the orientation of the block the iterator is in.
type TextOrientation struct {
	Orientation      Orientation
	WritingDirection WritingDirection
	TextlineOrder    TextlineOrder
	// DeskewAngle in radians rotates the block so its lines are horizontal.
	DeskewAngle float32
}

type ParagraphInfo struct {
	Justification   Justification
	IsListItem      bool
	IsCrown         bool
	FirstLineIndent int
}

// Baseline runs from From to To. For non-text blocks it is the bottom edge of the box.
type Baseline struct {
	From, To image.Point
}

// FontAttributes are only reported by the legacy engine; with LSTM models they stay zero.
type FontAttributes struct {
	Name       string
	ID         int
	PointSize  int
	Bold       bool
	Italic     bool
	Underlined bool
	Monospace  bool
	Serif      bool
	SmallCaps  bool
}

// WordAttributes describe a recognized word.
type WordAttributes struct {
	// Language of the model that recognized the word, e.g. "eng".
	Language       string
	FromDictionary bool
	Numeric        bool
	Font           FontAttributes
}

type SymbolAttributes struct {
	Superscript bool
	Subscript   bool
	Dropcap     bool
}

// LayoutElement is one element found by layout analysis.
type LayoutElement struct {
	Level       Level
	Bounds      image.Rectangle
	BlockType   BlockType
	Baseline    *Baseline
	Orientation TextOrientation
	// Paragraph is set below block level in text blocks.
	Paragraph *ParagraphInfo
}

// PageIterator walks the result of [Engine.AnalyseLayout] at one [Level]. It follows the
// rules of [ResultIterator]: finite, invalidated by changes to image or results, and
// released exactly once.
type PageIterator struct {
	in      *instance
	it      Handle
	level   Level
	started bool
	done    bool
	elem    LayoutElement
	err     error
}

// AnalyseLayout finds blocks, paragraphs, lines and words of the current image without
// recognizing any text. It discards earlier recognition results.
func (e *Engine) AnalyseLayout(level Level) (*PageIterator, error) {
	const op = "AnalyseLayout"
	in, err := e.requireImage(op, ErrInvalidArgument)
	if err != nil {
		return nil, err
	}
	defer in.mu.Unlock()
	if !level.Valid() {
		return nil, opError(op, ErrInvalidArgument, "level %d", level)
	}
	in.invalidateLocked()
	var it Handle
	err = in.native(op, func() {
		it = in.backend.AnalyseLayout(in.handle)
	})
	if err != nil {
		return nil, err
	}
	if it == 0 {
		return nil, opError(op, ErrRecognitionFailed, "layout analysis found nothing to iterate")
	}
	p := &PageIterator{in: in, it: it, level: level}
	in.iters[p] = struct{}{}
	return p, nil
}

// Layout collects all elements at level.
func (e *Engine) Layout(level Level) ([]LayoutElement, error) {
	it, err := e.AnalyseLayout(level)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var elems []LayoutElement
	for it.Next() {
		elems = append(elems, it.Element())
	}
	return elems, it.Err()
}

// Next advances to the next element; see [ResultIterator.Next].
func (p *PageIterator) Next() bool {
	in := p.in
	in.mu.Lock()
	defer in.mu.Unlock()
	if p.done {
		return false
	}
	const op = "PageIterator.Next"
	var (
		more = true
		el   = LayoutElement{Level: p.level}
		ok   bool
	)
	err := in.native(op, func() {
		if p.started {
			if more = in.backend.PageIteratorNext(p.it, p.level); !more {
				return
			}
		}
		var left, top, right, bottom int32
		// an iterator past the last element has no box
		if left, top, right, bottom, ok = in.backend.PageIteratorBoundingBox(p.it, p.level); !ok {
			return
		}
		el.Bounds = image.Rect(int(left), int(top), int(right), int(bottom))
		el.BlockType = in.backend.PageIteratorBlockType(p.it)
		if x1, y1, x2, y2, ok := in.backend.PageIteratorBaseline(p.it, p.level); ok {
			el.Baseline = &Baseline{From: image.Pt(int(x1), int(y1)), To: image.Pt(int(x2), int(y2))}
		}
		el.Orientation = in.backend.PageIteratorOrientation(p.it)
		if p.level > RIL_BLOCK && el.BlockType.IsText() {
			info := in.backend.PageIteratorParagraphInfo(p.it)
			el.Paragraph = &info
		}
	})
	p.started = true
	if err != nil {
		p.finishLocked(err)
		return false
	}
	if !more || !ok {
		p.finishLocked(nil)
		return false
	}
	p.elem = el
	return true
}

// Element returns the element Next moved to.
func (p *PageIterator) Element() LayoutElement {
	p.in.mu.Lock()
	defer p.in.mu.Unlock()
	return p.elem
}

func (p *PageIterator) Err() error {
	p.in.mu.Lock()
	defer p.in.mu.Unlock()
	return p.err
}

// Close releases the native iterator. It is safe to call more than once.
func (p *PageIterator) Close() error {
	p.in.mu.Lock()
	defer p.in.mu.Unlock()
	if !p.done {
		p.finishLocked(opError("PageIterator.Next", ErrIteratorClosed, ""))
	}
	return nil
}

func (p *PageIterator) finishLocked(err error) {
	if p.done {
		return
	}
	p.done = true
	if p.err == nil {
		p.err = err
	}
	delete(p.in.iters, p)
	it := p.it
	p.it = 0
	if err := p.in.native("PageIterator.Close", func() {
		p.in.backend.PageIteratorDelete(it)
	}); err != nil && p.err == nil {
		p.err = err
	}
}

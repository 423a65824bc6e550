package tesswrap

import "image"

// Span is one recognized element of a page.
type Span struct {
	Level Level
	Text  string
	// Confidence ranges from 0 to 100.
	Confidence float32
	Bounds     image.Rectangle
	BlockType  BlockType
	// Word is only set at RIL_WORD, Symbol only at RIL_SYMBOL.
	Word   *WordAttributes
	Symbol *SymbolAttributes
}

// ResultIterator walks the recognition result of an [Engine] at one [Level].
// It is finite and cannot be restarted:
//
//	it, err := engine.Iterator(tesswrap.RIL_WORD)
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//		span := it.Span()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Any call that changes the image or the results (SetImage, SetRectangle, Recognize,
// Clear, Init, End) invalidates live iterators; Err then reports [ErrIteratorInvalidated].
// Each step locks the engine, so an iterator may be used concurrently with other calls.
type ResultIterator struct {
	in      *instance
	it      Handle
	level   Level
	started bool
	done    bool
	span    Span
	err     error
}

// Iterator recognizes the current image if necessary and returns an iterator over its elements.
func (e *Engine) Iterator(level Level) (*ResultIterator, error) {
	const op = "Iterator"
	in, err := e.withImage(op)
	if err != nil {
		return nil, err
	}
	defer in.mu.Unlock()
	if !level.Valid() {
		return nil, opError(op, ErrInvalidArgument, "level %d", level)
	}
	if !in.recognized {
		if err := in.recognizeLocked(op); err != nil {
			return nil, err
		}
	}
	var it Handle
	err = in.native(op, func() {
		it = in.backend.Iterator(in.handle)
	})
	if err != nil {
		return nil, err
	}
	if it == 0 {
		return nil, opError(op, ErrTextExtractionFailed, "engine returned no result iterator")
	}
	r := &ResultIterator{in: in, it: it, level: level}
	in.iters[r] = struct{}{}
	return r, nil
}

// Spans collects all elements at level.
func (e *Engine) Spans(level Level) ([]Span, error) {
	it, err := e.Iterator(level)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var spans []Span
	for it.Next() {
		spans = append(spans, it.Span())
	}
	return spans, it.Err()
}

// Next advances to the next element. It returns false at the end of the result,
// after Close and on error; check Err to tell them apart.
func (r *ResultIterator) Next() bool {
	in := r.in
	in.mu.Lock()
	defer in.mu.Unlock()
	if r.done {
		return false
	}
	const op = "ResultIterator.Next"
	if r.started {
		var more bool
		if err := in.native(op, func() {
			more = in.backend.IteratorNext(r.it, r.level)
		}); err != nil {
			r.finishLocked(err)
			return false
		}
		if !more {
			r.finishLocked(nil)
			return false
		}
	}
	r.started = true

	var p *byte
	if err := in.native(op, func() {
		p = in.backend.IteratorText(r.it, r.level)
	}); err != nil {
		r.finishLocked(err)
		return false
	}
	if p == nil {
		// an empty page has no elements at all
		r.finishLocked(nil)
		return false
	}
	text, err := in.takeText(op, p)
	if err != nil {
		r.finishLocked(err)
		return false
	}
	span := Span{Level: r.level, Text: text}
	err = in.native(op, func() {
		span.Confidence = in.backend.IteratorConfidence(r.it, r.level)
		if left, top, right, bottom, ok := in.backend.IteratorBoundingBox(r.it, r.level); ok {
			span.Bounds = image.Rect(int(left), int(top), int(right), int(bottom))
		}
		span.BlockType = in.backend.IteratorBlockType(r.it)
		switch r.level {
		case RIL_WORD:
			attrs := in.backend.IteratorWordAttributes(r.it)
			span.Word = &attrs
		case RIL_SYMBOL:
			attrs := in.backend.IteratorSymbolAttributes(r.it)
			span.Symbol = &attrs
		}
	})
	if err != nil {
		r.finishLocked(err)
		return false
	}
	r.span = span
	return true
}

// Span returns the element Next moved to.
func (r *ResultIterator) Span() Span {
	r.in.mu.Lock()
	defer r.in.mu.Unlock()
	return r.span
}

// Err returns the error that ended the iteration, if any.
func (r *ResultIterator) Err() error {
	r.in.mu.Lock()
	defer r.in.mu.Unlock()
	return r.err
}

// Close releases the native iterator. It is safe to call more than once; Next
// returns false afterwards.
func (r *ResultIterator) Close() error {
	r.in.mu.Lock()
	defer r.in.mu.Unlock()
	if !r.done {
		r.finishLocked(opError("ResultIterator.Next", ErrIteratorClosed, ""))
	}
	return nil
}

// finishLocked ends the iteration and deletes the native iterator exactly once.
func (r *ResultIterator) finishLocked(err error) {
	if r.done {
		return
	}
	r.done = true
	if r.err == nil {
		r.err = err
	}
	delete(r.in.iters, r)
	it := r.it
	r.it = 0
	if err := r.in.native("ResultIterator.Close", func() {
		r.in.backend.IteratorDelete(it)
	}); err != nil && r.err == nil {
		r.err = err
	}
}

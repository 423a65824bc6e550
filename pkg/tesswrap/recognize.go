package tesswrap

import (
	"context"
	"fmt"
	"runtime"
)

// SetImage passes a raw raster. It is shorthand for [Engine.SetRawImage].
func (e *Engine) SetImage(data []byte, width, height, bytesPerPixel, bytesPerLine int) error {
	return e.SetRawImage(Image{
		Data:          data,
		Width:         width,
		Height:        height,
		BytesPerPixel: bytesPerPixel,
		BytesPerLine:  bytesPerLine,
	})
}

// SetRawImage validates img and hands a private copy of its pixels to the engine.
// The copy lives outside the Go heap when possible and is kept until the image is
// replaced or cleared, so img.Data may be reused as soon as this returns.
// Previous recognition results and live iterators are discarded.
func (e *Engine) SetRawImage(img Image) error {
	const op = "SetImage"
	in, err := e.acquire(op, true)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	if err := img.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	size := img.Size()
	if in.maxImageBytes > 0 && size > in.maxImageBytes {
		return fmt.Errorf("%s: %w", op, &ImageError{
			Field:  "size",
			Value:  size,
			Reason: fmt.Sprintf("exceeds the limit of %d bytes", in.maxImageBytes),
		})
	}

	buf, pin := in.retain(img.Data[:size])
	in.invalidateLocked()
	err = in.native(op, func() {
		in.backend.SetImage(in.handle, buf, int32(img.Width), int32(img.Height), int32(img.BytesPerPixel), int32(img.BytesPerLine))
	})
	if err != nil {
		// state of the native image is unknown; make it forget whatever it got
		in.native("Clear", func() { in.backend.Clear(in.handle) })
		in.releaseBufferLocked(buf, pin)
		in.dropImageLocked()
		return err
	}
	// the engine now points at buf, the previous copy can go
	in.releaseBufferLocked(in.image, in.imagePin)
	in.image, in.imagePin = buf, pin
	in.hasImage = true
	in.imgWidth, in.imgHeight = img.Width, img.Height
	return nil
}

// retain copies data into memory the native engine may keep pointing to.
// Pooled mappings are preferred; if mapping fails the copy is a pinned Go slice.
func (in *instance) retain(data []byte) ([]byte, *runtime.Pinner) {
	buf, err := in.pool.Get(len(data))
	if err == nil {
		copy(buf, data)
		return buf, nil
	}
	in.log.Warn("Could not map image buffer, falling back to heap", "size", len(data), "err", err)
	buf = make([]byte, len(data))
	copy(buf, data)
	pin := new(runtime.Pinner)
	pin.Pin(&buf[0])
	return buf, pin
}

// SetSourceResolution tells the engine the resolution of the current image in pixels per inch.
func (e *Engine) SetSourceResolution(ppi int) error {
	const op = "SetSourceResolution"
	in, err := e.requireImage(op, ErrInvalidArgument)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	if ppi <= 0 || ppi > 1<<20 {
		return opError(op, ErrInvalidArgument, "resolution %d", ppi)
	}
	return in.native(op, func() {
		in.backend.SetSourceResolution(in.handle, int32(ppi))
	})
}

// SetRectangle restricts recognition to a part of the current image.
// Previous recognition results and live iterators are discarded.
func (e *Engine) SetRectangle(left, top, width, height int) error {
	const op = "SetRectangle"
	in, err := e.requireImage(op, ErrInvalidArgument)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	switch {
	case left < 0 || left >= in.imgWidth:
		return fmt.Errorf("%s: %w", op, &ImageError{Field: "left", Value: left, Reason: "outside the image"})
	case top < 0 || top >= in.imgHeight:
		return fmt.Errorf("%s: %w", op, &ImageError{Field: "top", Value: top, Reason: "outside the image"})
	case width <= 0 || width > in.imgWidth-left:
		return fmt.Errorf("%s: %w", op, &ImageError{Field: "width", Value: width, Reason: "rectangle exceeds the image"})
	case height <= 0 || height > in.imgHeight-top:
		return fmt.Errorf("%s: %w", op, &ImageError{Field: "height", Value: height, Reason: "rectangle exceeds the image"})
	}
	in.invalidateLocked()
	return in.native(op, func() {
		in.backend.SetRectangle(in.handle, int32(left), int32(top), int32(width), int32(height))
	})
}

// withImage is acquire for calls that need an initialized engine with an image.
// Without one there is nothing to extract text from.
func (e *Engine) withImage(op string) (*instance, error) {
	return e.requireImage(op, ErrTextExtractionFailed)
}

func (e *Engine) requireImage(op string, missing error) (*instance, error) {
	in, err := e.acquire(op, true)
	if err != nil {
		return nil, err
	}
	if !in.hasImage {
		in.mu.Unlock()
		return nil, opError(op, missing, "no image set")
	}
	return in, nil
}

// Recognize runs layout analysis and recognition on the current image.
// The text getters do this implicitly; calling it first only separates the failure modes.
func (e *Engine) Recognize() error {
	const op = "Recognize"
	in, err := e.withImage(op)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	return in.recognizeLocked(op)
}

func (in *instance) recognizeLocked(op string) error {
	in.invalidateLocked()
	var status int32
	if err := in.native(op, func() {
		status = in.backend.Recognize(in.handle)
	}); err != nil {
		return err
	}
	if status != 0 {
		return opError(op, ErrRecognitionFailed, "native status %d", status)
	}
	in.recognized = true
	return nil
}

// Text recognizes the current image if necessary and returns the plain UTF-8 text.
func (e *Engine) Text() (string, error) {
	return e.render("Text", func(b Backend, h Handle) *byte {
		return b.UTF8Text(h)
	})
}

// TextContext is Text with a deadline. Tesseract cannot be interrupted: when ctx is done
// first, TextContext returns ctx.Err() while the recognition runs to completion in the
// background, and the engine stays busy until it does.
func (e *Engine) TextContext(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		txt, err := e.Text()
		done <- result{txt, err}
	}()
	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// HOCRText returns the result as an hOCR fragment. page is the zero-based page number used in element ids.
func (e *Engine) HOCRText(page int) (string, error) {
	return e.render("HOCRText", func(b Backend, h Handle) *byte {
		return b.HOCRText(h, int32(page))
	})
}

// ALTOText returns the result as ALTO XML.
func (e *Engine) ALTOText(page int) (string, error) {
	return e.render("ALTOText", func(b Backend, h Handle) *byte {
		return b.ALTOText(h, int32(page))
	})
}

// TSVText returns one tab separated line per layout element.
func (e *Engine) TSVText(page int) (string, error) {
	return e.render("TSVText", func(b Backend, h Handle) *byte {
		return b.TSVText(h, int32(page))
	})
}

func (e *Engine) BoxText(page int) (string, error) {
	return e.render("BoxText", func(b Backend, h Handle) *byte {
		return b.BoxText(h, int32(page))
	})
}

func (e *Engine) LSTMBoxText(page int) (string, error) {
	return e.render("LSTMBoxText", func(b Backend, h Handle) *byte {
		return b.LSTMBoxText(h, int32(page))
	})
}

func (e *Engine) WordStrBoxText(page int) (string, error) {
	return e.render("WordStrBoxText", func(b Backend, h Handle) *byte {
		return b.WordStrBoxText(h, int32(page))
	})
}

func (e *Engine) UNLVText() (string, error) {
	return e.render("UNLVText", func(b Backend, h Handle) *byte {
		return b.UNLVText(h)
	})
}

// render runs one text producing call and takes ownership of its output.
func (e *Engine) render(op string, get func(Backend, Handle) *byte) (string, error) {
	in, err := e.withImage(op)
	if err != nil {
		return "", err
	}
	defer in.mu.Unlock()
	var p *byte
	err = in.native(op, func() {
		p = get(in.backend, in.handle)
	})
	if err != nil {
		return "", err
	}
	txt, err := in.takeText(op, p)
	if err != nil {
		return "", err
	}
	// the getters recognize implicitly
	in.recognized = true
	return txt, nil
}

// MeanTextConf returns the mean word confidence (0-100) of the current result.
func (e *Engine) MeanTextConf() (int, error) {
	const op = "MeanTextConf"
	in, err := e.withImage(op)
	if err != nil {
		return 0, err
	}
	defer in.mu.Unlock()
	var conf int32
	err = in.native(op, func() {
		conf = in.backend.MeanTextConf(in.handle)
	})
	in.recognized = err == nil
	return int(conf), err
}

// AllWordConfidences returns the confidence (0-100) of every recognized word.
func (e *Engine) AllWordConfidences() ([]int, error) {
	const op = "AllWordConfidences"
	in, err := e.withImage(op)
	if err != nil {
		return nil, err
	}
	defer in.mu.Unlock()
	var raw []int32
	err = in.native(op, func() {
		raw = in.backend.AllWordConfidences(in.handle)
	})
	if err != nil {
		return nil, err
	}
	in.recognized = true
	confs := make([]int, len(raw))
	for i, c := range raw {
		confs[i] = int(c)
	}
	return confs, nil
}

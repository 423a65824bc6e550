// Package extractor runs OCR requests against a pool of Tesseract instances and
// serves them over HTTP and NATS.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/johbar/tesseract-purego/internal/cache"
	"github.com/johbar/tesseract-purego/internal/config"
	"github.com/johbar/tesseract-purego/internal/imageparser"
	"github.com/johbar/tesseract-purego/pkg/dehyphenator"
	"github.com/johbar/tesseract-purego/pkg/tesspool"
	"github.com/johbar/tesseract-purego/pkg/tesswrap"
)

var (
	ErrInvalidParams = errors.New("invalid request parameters")
	ErrTimeout       = errors.New("recognition timed out")
	ErrClosed        = errors.New("extractor is shutting down")
)

// Output formats
const (
	FormatText    = "text"
	FormatHOCR    = "hocr"
	FormatALTO    = "alto"
	FormatTSV     = "tsv"
	FormatBox     = "box"
	FormatLSTMBox = "lstmbox"
	FormatWordStr = "wordstr"
	FormatUNLV    = "unlv"
	FormatSpans   = "spans"
)

type RequestParams struct {
	// Output format, defaults to text
	Format string `form:"format" json:"format" validate:"omitempty,oneof=text hocr alto tsv box lstmbox wordstr unlv spans"`
	// Page segmentation mode for this request only
	Psm *int `form:"psm" json:"psm,omitempty" validate:"omitempty,gte=0,lte=13"`
	// Iterator level of the spans format, defaults to word
	Level string `form:"level" json:"level" validate:"omitempty,oneof=block paragraph line word symbol"`
	// Join words hyphenated at line ends (text format only)
	Dehyphenate bool `form:"dehyphenate" json:"dehyphenate"`
	//Ignore cached result
	NoCache bool `form:"noCache" json:"noCache"`
}

// Result is a rendered recognition result.
type Result struct {
	ContentType string
	Body        []byte
	Metadata    cache.Metadata
	Cached      bool
}

type Extractor struct {
	tesCache   cache.Cache
	cacheNop   bool
	pool       *tesspool.Pool
	backend    tesswrap.Backend
	log        *slog.Logger
	validate   *validator.Validate
	tesConfig  *config.TesConfig
	saveChan   chan cache.Entry
	saveFinish sync.WaitGroup

	// closed and inFlight keep Close from closing saveChan under a running request
	mu       sync.RWMutex
	closed   bool
	inFlight sync.WaitGroup
}

func New(config *config.TesConfig, pool *tesspool.Pool, backend tesswrap.Backend, tesCache cache.Cache, logger *slog.Logger) *Extractor {
	extract := &Extractor{
		tesCache:  tesCache,
		pool:      pool,
		backend:   backend,
		log:       logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		tesConfig: config,
		saveChan:  make(chan cache.Entry, 100),
	}
	if logger == nil {
		extract.log = slog.New(slog.DiscardHandler)
	}
	if tesCache == nil {
		extract.tesCache = &cache.NopCache{}
	}
	_, extract.cacheNop = extract.tesCache.(*cache.NopCache)
	extract.saveFinish.Add(1)
	go extract.saveResults()
	return extract
}

// Close rejects new requests, waits for running ones and then until their results are cached.
// It is safe to call more than once.
func (e *Extractor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.inFlight.Wait()
	close(e.saveChan)
	e.saveFinish.Wait()
}

// begin registers a request. It fails once Close has been called; otherwise end must follow.
func (e *Extractor) begin() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	e.inFlight.Add(1)
	return nil
}

func (e *Extractor) end() {
	e.inFlight.Done()
}

func (e *Extractor) saveResults() {
	defer e.saveFinish.Done()
	for entry := range e.saveChan {
		if e.cacheNop {
			continue
		}
		for i := 0; i <= 5; i++ {
			err := e.tesCache.Save(entry)
			if err == nil {
				e.log.Info("Saved OCR result in NATS object store bucket", "key", entry.Key, "size", len(entry.Body))
				break
			}
			e.log.Warn("Could not save result to cache", "retries", i, "key", entry.Key, "err", err)
		}
	}
}

func (p *RequestParams) setDefaults() {
	if p.Format == "" {
		p.Format = FormatText
	}
	if p.Level == "" {
		p.Level = tesswrap.RIL_WORD.String()
	}
}

// cacheKey covers every parameter that changes the output.
func (p *RequestParams) cacheKey(image []byte, languages string) string {
	psm := "default"
	if p.Psm != nil {
		psm = strconv.Itoa(*p.Psm)
	}
	level := ""
	if p.Format == FormatSpans {
		level = p.Level
	}
	return cache.Key(image, p.Format, psm, level, strconv.FormatBool(p.Dehyphenate), languages)
}

// Recognize decodes an encoded image and returns its text in the requested format.
// Results are served from and saved to the cache unless params.NoCache is set.
func (e *Extractor) Recognize(ctx context.Context, data []byte, params RequestParams) (*Result, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	return e.recognize(ctx, data, params)
}

// recognize is Recognize for callers that already called begin.
func (e *Extractor) recognize(ctx context.Context, data []byte, params RequestParams) (*Result, error) {
	params.setDefaults()
	if err := e.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	key := params.cacheKey(data, e.tesConfig.TesseractLangs)
	if !params.NoCache && !e.cacheNop {
		if res := e.fromCache(key); res != nil {
			return res, nil
		}
	}
	doc, err := imageparser.NewFromBytes(data, e.maxPixels())
	if err != nil {
		return nil, err
	}
	res, err := e.run(ctx, doc, params)
	if err != nil {
		return nil, err
	}
	e.saveChan <- cache.Entry{Key: key, Metadata: res.Metadata, Body: res.Body}
	return res, nil
}

func (e *Extractor) maxPixels() int {
	return int(min(e.tesConfig.MaxImageSizeBytes, math.MaxInt32))
}

func (e *Extractor) fromCache(key string) *Result {
	metadata, err := e.tesCache.GetMetadata(key)
	if err != nil {
		e.log.Error("Could not get metadata from NATS object store", "key", key, "err", err)
		return nil
	}
	if metadata == nil {
		return nil
	}
	var body bytes.Buffer
	if err := e.tesCache.StreamBody(key, &body); err != nil {
		e.log.Error("Could not receive result from NATS object store", "key", key, "err", err)
		return nil
	}
	e.log.Debug("Serving result from cache", "key", key)
	return &Result{ContentType: metadata["content-type"], Body: body.Bytes(), Metadata: metadata, Cached: true}
}

// run recognizes doc on a pooled engine. When the timeout expires first, the client gets
// ErrTimeout and the engine returns to the pool once Tesseract is done.
func (e *Extractor) run(ctx context.Context, doc *imageparser.ImageDoc, params RequestParams) (*Result, error) {
	if e.tesConfig.OcrTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.tesConfig.OcrTimeout)
		defer cancel()
	}
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var res *Result
		err := e.pool.Do(ctx, func(eng *tesswrap.Engine) error {
			var err error
			res, err = render(eng, doc, params)
			return err
		})
		done <- outcome{res, err}
	}()
	select {
	case o := <-done:
		if errors.Is(o.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, o.err)
		}
		return o.res, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, e.tesConfig.OcrTimeout)
		}
		return nil, ctx.Err()
	}
}

func render(eng *tesswrap.Engine, doc *imageparser.ImageDoc, params RequestParams) (*Result, error) {
	if params.Psm != nil {
		if err := eng.SetPageSegMode(tesswrap.PageSegMode(*params.Psm)); err != nil {
			return nil, err
		}
	}
	if err := eng.SetRawImage(doc.Raster()); err != nil {
		return nil, err
	}
	var (
		text        string
		body        []byte
		err         error
		contentType = "text/plain; charset=utf-8"
	)
	switch params.Format {
	case FormatText:
		text, err = eng.Text()
		if err == nil && params.Dehyphenate {
			text, err = dehyphenator.DehyphenateString(text, dehyphenator.Options{})
		}
	case FormatHOCR:
		text, err = eng.HOCRText(0)
		contentType = "text/html; charset=utf-8"
	case FormatALTO:
		text, err = eng.ALTOText(0)
		contentType = "application/xml; charset=utf-8"
	case FormatTSV:
		text, err = eng.TSVText(0)
		contentType = "text/tab-separated-values; charset=utf-8"
	case FormatBox:
		text, err = eng.BoxText(0)
	case FormatLSTMBox:
		text, err = eng.LSTMBoxText(0)
	case FormatWordStr:
		text, err = eng.WordStrBoxText(0)
	case FormatUNLV:
		text, err = eng.UNLVText()
	case FormatSpans:
		body, err = spansJSON(eng, params.Level)
		contentType = "application/json"
	default:
		return nil, fmt.Errorf("%w: format %q", ErrInvalidParams, params.Format)
	}
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = []byte(text)
	}
	conf, err := eng.MeanTextConf()
	if err != nil {
		return nil, err
	}
	metadata := doc.MetadataMap()
	metadata["content-type"] = contentType
	metadata["x-ocr-format"] = params.Format
	metadata["x-mean-confidence"] = strconv.Itoa(conf)
	return &Result{ContentType: contentType, Body: body, Metadata: metadata}, nil
}

type spanJSON struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	// left, top, right, bottom
	BBox      [4]int `json:"bbox"`
	BlockType string `json:"blockType"`
}

type spansDoc struct {
	Level string     `json:"level"`
	Spans []spanJSON `json:"spans"`
}

func spansJSON(eng *tesswrap.Engine, levelName string) ([]byte, error) {
	level, ok := tesswrap.ParseLevel(levelName)
	if !ok {
		return nil, fmt.Errorf("%w: level %q", ErrInvalidParams, levelName)
	}
	spans, err := eng.Spans(level)
	if err != nil {
		return nil, err
	}
	doc := spansDoc{Level: level.String(), Spans: make([]spanJSON, 0, len(spans))}
	for _, s := range spans {
		doc.Spans = append(doc.Spans, spanJSON{
			Text:       s.Text,
			Confidence: s.Confidence,
			BBox:       [4]int{s.Bounds.Min.X, s.Bounds.Min.Y, s.Bounds.Max.X, s.Bounds.Max.Y},
			BlockType:  s.BlockType.String(),
		})
	}
	return json.Marshal(doc)
}

// Info describes the engines serving requests.
type Info struct {
	Version            string            `json:"version"`
	Library            string            `json:"library"`
	Datapath           string            `json:"datapath"`
	Languages          []string          `json:"languages"`
	AvailableLanguages []string          `json:"availableLanguages"`
	PageSegMode        string            `json:"pageSegMode"`
	Variables          map[string]string `json:"variables"`
	Pool               tesspool.Stats    `json:"pool"`
}

// Info borrows an engine to report its configuration.
func (e *Extractor) Info(ctx context.Context) (*Info, error) {
	version, err := tesswrap.Version(e.backend)
	if err != nil {
		return nil, err
	}
	info := &Info{
		Version:   version,
		Library:   tesswrap.LibraryPath(e.backend),
		Variables: e.pool.Variables(),
	}
	err = e.pool.Do(ctx, func(eng *tesswrap.Engine) error {
		var err error
		if info.Datapath, err = eng.Datapath(); err != nil {
			return err
		}
		if info.Languages, err = eng.LoadedLanguages(); err != nil {
			return err
		}
		if info.AvailableLanguages, err = eng.AvailableLanguages(); err != nil {
			return err
		}
		psm, err := eng.PageSegMode()
		info.PageSegMode = psm.String()
		return err
	})
	if err != nil {
		return nil, err
	}
	info.Pool = e.pool.Stats()
	return info, nil
}

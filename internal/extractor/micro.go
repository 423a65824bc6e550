package extractor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
)

const queueGroup = "tesseract-purego"

// RegisterNatsService exposes the extractor as NATS micro service "ocr" with the
// endpoints ocr.recognize and ocr.info.
func (e *Extractor) RegisterNatsService(nc *nats.Conn) (micro.Service, error) {
	ocrService, err := micro.AddService(nc, micro.Config{
		Name:        "ocr",
		Version:     "1.0.0",
		Description: "Recognizes the text of images with Tesseract",
	})
	if err != nil {
		return nil, err
	}
	g := ocrService.AddGroup("ocr", micro.WithGroupQueueGroup(queueGroup))
	if err := g.AddEndpoint("recognize", micro.HandlerFunc(e.handleRecognize)); err != nil {
		return nil, err
	}
	if err := g.AddEndpoint("info", micro.HandlerFunc(e.handleInfo)); err != nil {
		return nil, err
	}
	return ocrService, nil
}

// paramsFromHeaders reads the headers named like the HTTP query parameters.
func paramsFromHeaders(h micro.Headers) (RequestParams, error) {
	params := RequestParams{
		Format:      h.Get("format"),
		Level:       h.Get("level"),
		Dehyphenate: h.Get("dehyphenate") == "true",
		NoCache:     h.Get("noCache") == "true",
	}
	if psm := h.Get("psm"); psm != "" {
		n, err := strconv.Atoi(psm)
		if err != nil {
			return params, fmt.Errorf("%w: psm: %w", ErrInvalidParams, err)
		}
		params.Psm = &n
	}
	return params, nil
}

// handleRecognize replies with the OCR result of the image in the request data.
// Recognition runs on its own goroutine so requests are served in parallel up to the pool size.
func (e *Extractor) handleRecognize(req micro.Request) {
	params, err := paramsFromHeaders(req.Headers())
	if err != nil {
		req.Error(strconv.Itoa(StatusFor(err)), err.Error(), nil)
		return
	}
	// counted until the response is sent, so Close waits for it
	if err := e.begin(); err != nil {
		req.Error(strconv.Itoa(StatusFor(err)), err.Error(), nil)
		return
	}
	go func() {
		defer e.end()
		e.log.Info("Received NATS request", "params", params, "size", len(req.Data()))
		res, err := e.recognize(context.Background(), req.Data(), params)
		if err != nil {
			e.log.Error("Recognition failed", "err", err)
			req.Error(strconv.Itoa(StatusFor(err)), err.Error(), nil)
			return
		}
		headers := micro.Headers{"Content-Type": {res.ContentType}}
		for k, v := range res.Metadata {
			headers[k] = []string{v}
		}
		if err := req.Respond(res.Body, micro.WithHeaders(headers)); err != nil {
			e.log.Error("Could not respond to NATS request", "err", err)
		}
	}()
}

func (e *Extractor) handleInfo(req micro.Request) {
	info, err := e.Info(context.Background())
	if err != nil {
		req.Error(strconv.Itoa(StatusFor(err)), err.Error(), nil)
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		req.Error("500", err.Error(), nil)
		return
	}
	req.Respond(data)
}

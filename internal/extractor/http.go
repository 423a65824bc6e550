package extractor

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/johbar/tesseract-purego/internal/cache"
	"github.com/johbar/tesseract-purego/internal/imageparser"
	"github.com/johbar/tesseract-purego/pkg/tesswrap"
)

// Register adds the OCR routes to r.
func (e *Extractor) Register(r gin.IRoutes) {
	r.POST("/", e.RecognizeBody)
	r.GET("/info", e.GetInfo)
}

// RecognizeBody runs OCR on the image in the request body.
func (e *Extractor) RecognizeBody(c *gin.Context) {
	var params RequestParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	body := http.MaxBytesReader(c.Writer, c.Request.Body, int64(min(e.tesConfig.MaxImageSizeBytes, 1<<40)))
	data, err := io.ReadAll(body)
	if err != nil {
		e.log.Error("Error reading request body", "err", err)
		c.String(StatusFor(err), err.Error())
		return
	}
	res, err := e.Recognize(c.Request.Context(), data, params)
	if err != nil {
		status := StatusFor(err)
		e.log.Error("Recognition failed", "status", status, "err", err)
		c.String(status, err.Error())
		return
	}
	addMetadataAsHeaders(c.Writer.Header(), res.Metadata)
	if res.Cached {
		c.Header("X-Cache", "hit")
	} else {
		c.Header("X-Cache", "miss")
	}
	c.Data(http.StatusOK, res.ContentType, res.Body)
}

func (e *Extractor) GetInfo(c *gin.Context) {
	info, err := e.Info(c.Request.Context())
	if err != nil {
		c.String(StatusFor(err), err.Error())
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func addMetadataAsHeaders(header http.Header, metadata cache.Metadata) {
	for k, v := range metadata {
		if k == "content-type" {
			continue
		}
		header.Add(k, v)
	}
}

// StatusFor maps an error of Recognize or Info to an HTTP status code.
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var imgErr *tesswrap.ImageError
	switch {
	case errors.Is(err, ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, imageparser.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, imageparser.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imageparser.ErrDecode), errors.As(err, &imgErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		// client went away
		return 499
	}
	return http.StatusInternalServerError
}

// Package cache stores rendered OCR results keyed by a hash of the image and the
// request parameters, so the same image is not recognized twice.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Metadata describes a cached result, e.g. its content type and mean confidence.
type Metadata = map[string]string

// Entry is one rendered result.
type Entry struct {
	Key      string
	Metadata Metadata
	Body     []byte
}

type Cache interface {
	// GetMetadata returns nil, nil if key is not cached
	GetMetadata(key string) (Metadata, error)
	// StreamBody writes the cached result to w
	StreamBody(key string, w io.Writer) error
	Save(e Entry) error
}

// Key derives the cache key from the encoded image and every parameter that
// changes the result (output format, page segmentation mode, languages).
func Key(image []byte, params ...string) string {
	h := sha256.New()
	h.Write(image)
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type NopCache struct{}

func (c *NopCache) GetMetadata(key string) (Metadata, error) {
	return nil, nil
}

func (c *NopCache) StreamBody(key string, w io.Writer) error {
	return nil
}

func (c *NopCache) Save(e Entry) error {
	return nil
}

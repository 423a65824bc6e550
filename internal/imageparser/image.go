// Package imageparser turns encoded images (PNG, JPEG, GIF, BMP, TIFF, WebP) into
// 8 bit gray rasters for the OCR engine.
package imageparser

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/johbar/tesseract-purego/pkg/tesswrap"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
	ErrDecode          = errors.New("decoding image failed")
)

// SupportedTypes are the MIME types Parse accepts.
var SupportedTypes = []string{"image/png", "image/jpeg", "image/gif", "image/bmp", "image/tiff", "image/webp"}

// ImageDoc is a decoded image ready for recognition.
type ImageDoc struct {
	data    []byte
	mime    string
	path    string
	decoded image.Rectangle
	raster  tesswrap.Image
}

// NewFromBytes detects the type of data and decodes it. Images whose gray raster
// would exceed maxPixels bytes are rejected before decoding; maxPixels <= 0 means no limit.
func NewFromBytes(data []byte, maxPixels int) (*ImageDoc, error) {
	mtype := mimetype.Detect(data)
	if !supported(mtype) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &ImageDoc{
		data:    data,
		mime:    mtype.String(),
		decoded: img.Bounds(),
		raster:  tesswrap.ImageFromGo(toGray(img)),
	}, nil
}

// Open reads and decodes the file at path; "-" reads stdin.
func Open(path string, maxPixels int) (*ImageDoc, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	d, err := NewFromBytes(data, maxPixels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.path = path
	return d, nil
}

func supported(mtype *mimetype.MIME) bool {
	for _, t := range SupportedTypes {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Raster is the 1 byte per pixel image passed to the engine.
func (d *ImageDoc) Raster() tesswrap.Image {
	return d.raster
}

// Data returns the encoded image.
func (d *ImageDoc) Data() []byte {
	return d.data
}

func (d *ImageDoc) MimeType() string {
	return d.mime
}

// Path returns the file the image was loaded from or an empty string.
func (d *ImageDoc) Path() string {
	return d.path
}

func (d *ImageDoc) MetadataMap() map[string]string {
	meta := make(map[string]string)
	meta["x-doctype"] = d.mime
	meta["x-image-width"] = strconv.Itoa(d.decoded.Dx())
	meta["x-image-height"] = strconv.Itoa(d.decoded.Dy())
	return meta
}

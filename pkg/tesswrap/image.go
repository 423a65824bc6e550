package tesswrap

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Image is an already decoded raster passed to [Engine.SetRawImage].
// Rows start every BytesPerLine bytes; only the first Width*BytesPerPixel bytes of a row are pixels.
type Image struct {
	Data          []byte
	Width         int
	Height        int
	BytesPerPixel int
	BytesPerLine  int
}

// Size is the number of bytes the native engine reads: BytesPerLine*Height.
func (img Image) Size() int {
	return img.BytesPerLine * img.Height
}

// Validate checks the raster invariants. The returned error is an [*ImageError].
func (img Image) Validate() error {
	if img.Width <= 0 || img.Width > math.MaxInt32 {
		return &ImageError{Field: "width", Value: img.Width, Reason: "must be positive and fit in an int32"}
	}
	if img.Height <= 0 || img.Height > math.MaxInt32 {
		return &ImageError{Field: "height", Value: img.Height, Reason: "must be positive and fit in an int32"}
	}
	switch img.BytesPerPixel {
	case 1, 3, 4:
	default:
		return &ImageError{Field: "bytesPerPixel", Value: img.BytesPerPixel, Reason: "must be 1 (gray), 3 (RGB) or 4 (RGBA)"}
	}
	minLine := int64(img.Width) * int64(img.BytesPerPixel)
	if int64(img.BytesPerLine) < minLine || img.BytesPerLine > math.MaxInt32 {
		return &ImageError{
			Field:  "bytesPerLine",
			Value:  img.BytesPerLine,
			Reason: fmt.Sprintf("must be at least width*bytesPerPixel = %d and fit in an int32", minLine),
		}
	}
	need := int64(img.BytesPerLine) * int64(img.Height)
	if need > math.MaxInt {
		return &ImageError{Field: "height", Value: img.Height, Reason: "bytesPerLine*height overflows"}
	}
	if int64(len(img.Data)) < need {
		return &ImageError{
			Field:  "len(data)",
			Value:  len(img.Data),
			Reason: fmt.Sprintf("shorter than bytesPerLine*height = %d", need),
		}
	}
	return nil
}

// ImageFromGo converts a decoded Go image. Gray images become 1 byte per pixel,
// everything else 4 bytes per pixel RGBA. Pixel memory is shared when the layout allows it.
func ImageFromGo(img image.Image) Image {
	switch src := img.(type) {
	case *image.Gray:
		return fromPix(src.Pix, src.Stride, src.Rect, src.PixOffset, 1)
	case *image.RGBA:
		return fromPix(src.Pix, src.Stride, src.Rect, src.PixOffset, 4)
	case *image.NRGBA:
		return fromPix(src.Pix, src.Stride, src.Rect, src.PixOffset, 4)
	}
	dst := imaging.Clone(img)
	return fromPix(dst.Pix, dst.Stride, dst.Rect, dst.PixOffset, 4)
}

func fromPix(pix []byte, stride int, r image.Rectangle, offset func(x, y int) int, bpp int) Image {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return Image{Width: w, Height: h, BytesPerPixel: bpp, BytesPerLine: w * bpp}
	}
	start := offset(r.Min.X, r.Min.Y)
	if len(pix)-start >= stride*h {
		return Image{Data: pix[start : start+stride*h], Width: w, Height: h, BytesPerPixel: bpp, BytesPerLine: stride}
	}
	// sub-images may end before a full last stride; compact them
	line := w * bpp
	data := make([]byte, line*h)
	for y := range h {
		copy(data[y*line:(y+1)*line], pix[start+y*stride:])
	}
	return Image{Data: data, Width: w, Height: h, BytesPerPixel: bpp, BytesPerLine: line}
}

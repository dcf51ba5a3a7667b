package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"

	// Registered decoders for the formats accepted as upload input.
	_ "image/gif"

	"github.com/gen2brain/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// I/O errors.
var (
	// ErrUnsupportedFormat is returned when the image format is not supported.
	ErrUnsupportedFormat = errors.New("image: unsupported format")

	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("image: empty data")
)

// Decode decodes an encoded image (PNG, JPEG, GIF, WebP, BMP or TIFF) and
// returns it as an RGBA8 buffer together with the detected format name.
func Decode(data []byte) (*Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyData
	}
	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("image: decode: %w", err)
	}
	buf, err := FromStdImage(img)
	if err != nil {
		return nil, "", err
	}
	return buf, kind, nil
}

// FromStdImage creates an Image from a standard library image.Image.
func FromStdImage(img image.Image) (*Image, error) {
	bounds := img.Bounds()
	out, err := New(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	// Fast path for NRGBA images
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := range out.height {
			start := nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(out.RowBytes(y), nrgba.Pix[start:start+out.Stride()])
		}
		return out, nil
	}

	// Everything else goes through draw, which un-premultiplies into NRGBA.
	dst := &image.NRGBA{Pix: out.pix, Stride: out.Stride(), Rect: image.Rect(0, 0, out.width, out.height)}
	draw.Draw(dst, dst.Rect, img, bounds.Min, draw.Src)
	return out, nil
}

// ToStdImage returns an *image.NRGBA sharing the pixel data of m.
func (m *Image) ToStdImage() *image.NRGBA {
	return &image.NRGBA{Pix: m.pix, Stride: m.Stride(), Rect: image.Rect(0, 0, m.width, m.height)}
}

// Encode writes m to w in the given format. Quality is clamped to 1-100;
// zero selects DefaultQuality.
func (m *Image) Encode(w io.Writer, format Format, quality int) error {
	if quality == 0 {
		quality = DefaultQuality
	}
	quality = max(1, min(quality, 100))

	img := m.ToStdImage()
	var err error
	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: pngCompression(quality)}
		err = enc.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		opts := &tiff.Options{Compression: tiff.Uncompressed}
		if quality > DefaultQuality {
			opts = &tiff.Options{Compression: tiff.Deflate, Predictor: true}
		}
		err = tiff.Encode(w, img, opts)
	case FormatWebP:
		err = webp.Encode(w, img, webp.Options{Quality: quality, Lossless: quality == 100})
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("image: encode %s: %w", format, err)
	}
	return nil
}

// EncodeToBytes encodes m and returns the bytes.
func (m *Image) EncodeToBytes(format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(m.ByteSize() / 4)
	if err := m.Encode(&buf, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pngCompression maps a 1-100 quality factor onto a PNG compression level.
// PNG is lossless, so a higher factor trades speed for smaller output.
func pngCompression(quality int) png.CompressionLevel {
	switch {
	case quality >= 95:
		return png.BestCompression
	case quality >= 50:
		return png.DefaultCompression
	default:
		return png.BestSpeed
	}
}

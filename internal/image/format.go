package image

import (
	"fmt"
	"strings"
)

// Format is an output encoding understood by Encode.
type Format uint8

const (
	// FormatPNG is lossless PNG. Quality selects the compression level.
	FormatPNG Format = iota

	// FormatJPEG is baseline JPEG. Quality is the usual 1-100 scale.
	FormatJPEG

	// FormatBMP is uncompressed BMP. Quality is ignored.
	FormatBMP

	// FormatTIFF is TIFF. Quality above DefaultQuality enables deflate
	// compression with a horizontal predictor.
	FormatTIFF

	// FormatWebP is WebP. Quality 100 selects lossless compression, lower
	// factors are lossy.
	FormatWebP

	// formatCount is the number of formats (for internal use).
	formatCount
)

// DefaultQuality is used when the caller does not supply a quality factor.
const DefaultQuality = 90

type formatInfo struct {
	name string
	ext  string
	mime string
}

var formatTable = [formatCount]formatInfo{
	FormatPNG:  {name: "png", ext: ".png", mime: "image/png"},
	FormatJPEG: {name: "jpeg", ext: ".jpg", mime: "image/jpeg"},
	FormatBMP:  {name: "bmp", ext: ".bmp", mime: "image/bmp"},
	FormatTIFF: {name: "tiff", ext: ".tiff", mime: "image/tiff"},
	FormatWebP: {name: "webp", ext: ".webp", mime: "image/webp"},
}

// IsValid returns true if the format is a known encoding.
func (f Format) IsValid() bool {
	return f < formatCount
}

// String returns the lower-case format name.
func (f Format) String() string {
	if !f.IsValid() {
		return "unknown"
	}
	return formatTable[f].name
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	if !f.IsValid() {
		return ""
	}
	return formatTable[f].ext
}

// MIME returns the media type of the format.
func (f Format) MIME() string {
	if !f.IsValid() {
		return "application/octet-stream"
	}
	return formatTable[f].mime
}

// ParseFormat parses a format name, extension or media type, ignoring case.
func ParseFormat(s string) (Format, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, ".")
	switch v {
	case "png", "image/png":
		return FormatPNG, nil
	case "jpg", "jpeg", "image/jpeg":
		return FormatJPEG, nil
	case "bmp", "image/bmp":
		return FormatBMP, nil
	case "tif", "tiff", "image/tiff":
		return FormatTIFF, nil
	case "webp", "image/webp":
		return FormatWebP, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

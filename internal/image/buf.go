// Package image provides the RGBA8 pixel buffers used by the upscaling
// pipeline.
//
// Buffers are owned values: cropping, padding and extraction always return a
// new buffer, so a decoded source can be shared read-only between strip jobs
// while every job writes only into buffers it created itself.
package image

import (
	"errors"
	"fmt"
)

// BytesPerPixel is the size of one interleaved RGBA8 pixel.
const BytesPerPixel = 4

// Common errors for image operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("image: invalid dimensions")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("image: data buffer too small")

	// ErrOutOfBounds is returned when a rectangle or pixel lies outside the image.
	ErrOutOfBounds = errors.New("image: coordinates out of bounds")
)

// Rect represents a rectangular region in pixel coordinates.
type Rect struct {
	X, Y          int // Top-left corner
	Width, Height int // Dimensions
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Scale returns r with every coordinate multiplied by s.
func (r Rect) Scale(s int) Rect {
	return Rect{X: r.X * s, Y: r.Y * s, Width: r.Width * s, Height: r.Height * s}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Image is an owned buffer of interleaved, non-premultiplied RGBA8 pixels.
//
// Rows are tightly packed (stride == 4*width).
//
// Thread safety: Image is safe for concurrent read access. Writes require
// external synchronization or disjoint regions.
type Image struct {
	pix    []byte
	width  int
	height int
}

// New creates a zeroed image with the given dimensions.
func New(width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	return &Image{
		pix:    make([]byte, width*height*BytesPerPixel),
		width:  width,
		height: height,
	}, nil
}

// FromRaw wraps existing RGBA8 data without copying.
// The caller transfers ownership of data to the returned Image.
func FromRaw(data []byte, width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	required := width * height * BytesPerPixel
	if len(data) < required {
		return nil, ErrDataTooSmall
	}
	return &Image{pix: data[:required], width: width, height: height}, nil
}

// Clone creates a deep copy of the image.
func (m *Image) Clone() *Image {
	pix := make([]byte, len(m.pix))
	copy(pix, m.pix)
	return &Image{pix: pix, width: m.width, height: m.height}
}

// Width returns the image width in pixels.
func (m *Image) Width() int {
	return m.width
}

// Height returns the image height in pixels.
func (m *Image) Height() int {
	return m.height
}

// Stride returns the number of bytes per row.
func (m *Image) Stride() int {
	return m.width * BytesPerPixel
}

// Bounds returns the full image rectangle.
func (m *Image) Bounds() Rect {
	return Rect{Width: m.width, Height: m.height}
}

// Pix returns the raw pixel data.
func (m *Image) Pix() []byte {
	return m.pix
}

// ByteSize returns the total size of the pixel data in bytes.
func (m *Image) ByteSize() int {
	return len(m.pix)
}

// RowBytes returns the pixel data for row y, or nil if y is out of bounds.
func (m *Image) RowBytes(y int) []byte {
	if y < 0 || y >= m.height {
		return nil
	}
	start := y * m.Stride()
	return m.pix[start : start+m.Stride()]
}

// PixelOffset returns the byte offset of pixel (x, y) in the data slice.
// Returns -1 if coordinates are out of bounds.
func (m *Image) PixelOffset(x, y int) int {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return -1
	}
	return (y*m.width + x) * BytesPerPixel
}

// GetRGBA returns the color at (x, y).
// Returns (0,0,0,0) if coordinates are out of bounds.
func (m *Image) GetRGBA(x, y int) (r, g, b, a uint8) {
	off := m.PixelOffset(x, y)
	if off < 0 {
		return 0, 0, 0, 0
	}
	p := m.pix[off : off+4 : off+4]
	return p[0], p[1], p[2], p[3]
}

// SetRGBA sets the color at (x, y).
// Returns ErrOutOfBounds if coordinates are outside image bounds.
func (m *Image) SetRGBA(x, y int, r, g, b, a uint8) error {
	off := m.PixelOffset(x, y)
	if off < 0 {
		return ErrOutOfBounds
	}
	p := m.pix[off : off+4 : off+4]
	p[0], p[1], p[2], p[3] = r, g, b, a
	return nil
}

// Fill sets all pixels to the given color.
func (m *Image) Fill(r, g, b, a uint8) {
	for i := 0; i < len(m.pix); i += BytesPerPixel {
		m.pix[i] = r
		m.pix[i+1] = g
		m.pix[i+2] = b
		m.pix[i+3] = a
	}
}

// contains reports whether rect lies entirely inside the image.
func (m *Image) contains(r Rect) bool {
	return !r.Empty() && r.X >= 0 && r.Y >= 0 &&
		r.X+r.Width <= m.width && r.Y+r.Height <= m.height
}

// Crop copies the region r into a new image.
func (m *Image) Crop(r Rect) (*Image, error) {
	if !m.contains(r) {
		return nil, fmt.Errorf("%w: crop %v from %dx%d", ErrOutOfBounds, r, m.width, m.height)
	}
	out, err := New(r.Width, r.Height)
	if err != nil {
		return nil, err
	}
	rowBytes := r.Width * BytesPerPixel
	for y := range r.Height {
		src := (r.Y+y)*m.Stride() + r.X*BytesPerPixel
		copy(out.pix[y*rowBytes:(y+1)*rowBytes], m.pix[src:src+rowBytes])
	}
	return out, nil
}

// Blit copies the region src of image s into m with its top-left corner
// placed at (dx, dy). Both rectangles must lie inside their images.
func (m *Image) Blit(s *Image, src Rect, dx, dy int) error {
	if !s.contains(src) {
		return fmt.Errorf("%w: blit source %v from %dx%d", ErrOutOfBounds, src, s.width, s.height)
	}
	dst := Rect{X: dx, Y: dy, Width: src.Width, Height: src.Height}
	if !m.contains(dst) {
		return fmt.Errorf("%w: blit destination %v into %dx%d", ErrOutOfBounds, dst, m.width, m.height)
	}
	rowBytes := src.Width * BytesPerPixel
	for y := range src.Height {
		so := (src.Y+y)*s.Stride() + src.X*BytesPerPixel
		do := (dy+y)*m.Stride() + dx*BytesPerPixel
		copy(m.pix[do:do+rowBytes], s.pix[so:so+rowBytes])
	}
	return nil
}

// PadEdge returns a new width x height image whose top-left region is m and
// whose remaining pixels replicate the nearest edge pixel of m.
// The padded dimensions must be at least the source dimensions.
func (m *Image) PadEdge(width, height int) (*Image, error) {
	if width < m.width || height < m.height {
		return nil, fmt.Errorf("%w: pad %dx%d to %dx%d", ErrInvalidDimensions, m.width, m.height, width, height)
	}
	out, err := New(width, height)
	if err != nil {
		return nil, err
	}
	srcRow := m.Stride()
	for y := range height {
		sy := min(y, m.height-1)
		row := out.pix[y*out.Stride() : (y+1)*out.Stride()]
		copy(row, m.pix[sy*srcRow:(sy+1)*srcRow])
		last := row[srcRow-BytesPerPixel : srcRow]
		for x := m.width; x < width; x++ {
			copy(row[x*BytesPerPixel:(x+1)*BytesPerPixel], last)
		}
	}
	return out, nil
}

// Package tensor converts RGBA8 pixel buffers to and from the planar
// float32 layout consumed by upscaling models.
//
// Tensors use NCHW order with a batch of one and three channels (R, G, B).
// Values are normalized to [0, 1]. Alpha is not represented: it is dropped on
// encode and restored as fully opaque on decode.
//
// All functions are pure and safe to call concurrently on independent inputs.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

// Channels is the number of color planes in a tensor.
const Channels = 3

// ErrShape is returned when a buffer does not match the declared shape.
var ErrShape = errors.New("tensor: shape mismatch")

// Shape is an NCHW tensor shape.
type Shape [4]int

// ImageShape returns the shape of a single RGB image of the given size.
func ImageShape(width, height int) Shape {
	return Shape{1, Channels, height, width}
}

// Len returns the number of elements described by s.
func (s Shape) Len() int {
	return s[0] * s[1] * s[2] * s[3]
}

// Width returns the W dimension.
func (s Shape) Width() int { return s[3] }

// Height returns the H dimension.
func (s Shape) Height() int { return s[2] }

func (s Shape) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", s[0], s[1], s[2], s[3])
}

// Tensor is a dense float32 tensor.
type Tensor struct {
	Shape Shape
	Data  []float32
}

// New allocates a zeroed tensor of the given shape.
func New(shape Shape) *Tensor {
	return &Tensor{Shape: shape, Data: make([]float32, shape.Len())}
}

// Validate checks that Data holds exactly Shape.Len() elements.
func (t *Tensor) Validate() error {
	if len(t.Data) != t.Shape.Len() {
		return fmt.Errorf("%w: %d elements for shape %v", ErrShape, len(t.Data), t.Shape)
	}
	return nil
}

// Plane returns the c-th channel plane of a single-batch tensor.
func (t *Tensor) Plane(c int) []float32 {
	n := t.Shape[2] * t.Shape[3]
	return t.Data[c*n : (c+1)*n]
}

// Encode converts width*height interleaved RGBA8 pixels into a [1,3,H,W]
// tensor with each channel byte divided by 255.
func Encode(pix []byte, width, height int) (*Tensor, error) {
	n := width * height
	if width <= 0 || height <= 0 || len(pix) < n*4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d RGBA", ErrShape, len(pix), width, height)
	}
	t := New(ImageShape(width, height))
	r, g, b := t.Data[:n], t.Data[n:2*n], t.Data[2*n:3*n]
	for i := range n {
		p := pix[i*4 : i*4+3 : i*4+3]
		r[i] = float32(p[0]) / 255
		g[i] = float32(p[1]) / 255
		b[i] = float32(p[2]) / 255
	}
	return t, nil
}

// Decode converts a [1,3,H,W] tensor back to interleaved RGBA8 pixels.
// Each value is clamped to [0, 1] before rounding so that out-of-range
// activations saturate instead of wrapping. NaN decodes to 0.
func Decode(t *Tensor) ([]byte, error) {
	if t.Shape[0] != 1 || t.Shape[1] != Channels {
		return nil, fmt.Errorf("%w: cannot decode %v as RGB", ErrShape, t.Shape)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	n := t.Shape[2] * t.Shape[3]
	pix := make([]byte, n*4)
	r, g, b := t.Data[:n], t.Data[n:2*n], t.Data[2*n:3*n]
	for i := range n {
		p := pix[i*4 : i*4+4 : i*4+4]
		p[0] = toByte(r[i])
		p[1] = toByte(g[i])
		p[2] = toByte(b[i])
		p[3] = 255
	}
	return pix, nil
}

// toByte maps a normalized value to 0-255 with clamping.
func toByte(v float32) byte {
	if !(v > 0) { // also catches NaN
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(math.Round(float64(v) * 255))
}

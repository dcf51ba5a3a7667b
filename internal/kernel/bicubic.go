package kernel

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/upscale/internal/tensor"
)

// Bicubic resamples tiles with a Catmull-Rom filter. It needs no weights and
// serves as the classical baseline for learned models.
type Bicubic struct{}

// Name implements Backend.
func (Bicubic) Name() string { return "bicubic" }

// Init implements Backend. Weights are ignored.
func (Bicubic) Init(_ []byte, cfg Config) (Session, error) {
	side := cfg.TileSize * cfg.Scale
	return &bicubicSession{
		cfg: cfg,
		src: image.NewRGBA64(image.Rect(0, 0, cfg.TileSize, cfg.TileSize)),
		dst: image.NewRGBA64(image.Rect(0, 0, side, side)),
	}, nil
}

// bicubicSession keeps 16-bit scratch images so the tensor precision survives
// the round trip through x/image/draw.
type bicubicSession struct {
	cfg Config
	src *image.RGBA64
	dst *image.RGBA64
}

func (s *bicubicSession) Run(in, out *tensor.Tensor) error {
	planesToRGBA64(in, s.src)
	draw.CatmullRom.Scale(s.dst, s.dst.Bounds(), s.src, s.src.Bounds(), draw.Src, nil)
	rgba64ToPlanes(s.dst, out)
	return nil
}

func (s *bicubicSession) Close() error { return nil }

func planesToRGBA64(t *tensor.Tensor, img *image.RGBA64) {
	r, g, b := t.Plane(0), t.Plane(1), t.Plane(2)
	for i := range r {
		p := img.Pix[i*8 : i*8+8 : i*8+8]
		put16(p[0:2], r[i])
		put16(p[2:4], g[i])
		put16(p[4:6], b[i])
		p[6], p[7] = 0xff, 0xff
	}
}

func rgba64ToPlanes(img *image.RGBA64, t *tensor.Tensor) {
	r, g, b := t.Plane(0), t.Plane(1), t.Plane(2)
	for i := range r {
		p := img.Pix[i*8 : i*8+8 : i*8+8]
		r[i] = get16(p[0:2])
		g[i] = get16(p[2:4])
		b[i] = get16(p[4:6])
	}
}

// put16 stores a normalized value as a big-endian 16-bit sample.
func put16(p []byte, v float32) {
	switch {
	case !(v > 0):
		v = 0
	case v > 1:
		v = 1
	}
	u := uint16(v*65535 + 0.5)
	p[0], p[1] = byte(u>>8), byte(u)
}

func get16(p []byte) float32 {
	return float32(uint16(p[0])<<8|uint16(p[1])) / 65535
}

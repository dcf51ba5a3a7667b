package kernel

import "github.com/gogpu/upscale/internal/tensor"

// Nearest replicates every input pixel into an s x s block.
//
// It needs no weights and is exactly local, which makes it the identity
// reference for checking that tiling and stitching are seam free.
type Nearest struct{}

// Name implements Backend.
func (Nearest) Name() string { return "nearest" }

// Init implements Backend. Weights are ignored.
func (Nearest) Init(_ []byte, cfg Config) (Session, error) {
	return nearestSession{cfg: cfg}, nil
}

type nearestSession struct {
	cfg Config
}

func (s nearestSession) Run(in, out *tensor.Tensor) error {
	t, scale := s.cfg.TileSize, s.cfg.Scale
	side := t * scale
	for c := range tensor.Channels {
		src, dst := in.Plane(c), out.Plane(c)
		for y := range side {
			srow := src[(y/scale)*t : (y/scale+1)*t]
			drow := dst[y*side : (y+1)*side]
			for x := range side {
				drow[x] = srow[x/scale]
			}
		}
	}
	return nil
}

func (nearestSession) Close() error { return nil }

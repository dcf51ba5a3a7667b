// Package tile computes the deterministic tile plans used to feed a
// fixed-size upscaling kernel.
//
// A region of arbitrary size is covered by square tiles of side TileSize that
// advance by Step = TileSize - Overlap. The last row and column are clamped to
// the region edge instead of being padded, so every tile is fully inside the
// region. Each tile also carries the crop-and-place rectangles that decide
// which part of its upscaled output is copied into the result:
//
//   - boundary edges of the region are never trimmed
//   - interior edges are trimmed by half the overlap (Overlap/2 on the
//     leading side, the remainder on the trailing side)
//   - a clamped last tile starts exactly where its predecessor stopped
//
// With these rules every output pixel is written by exactly one tile.
//
// Everything in this package is a pure function of its inputs.
package tile

import (
	"errors"
	"fmt"

	"github.com/gogpu/upscale/internal/image"
)

// ErrInvalidGeometry is returned for tile parameters that cannot produce a plan.
var ErrInvalidGeometry = errors.New("tile: invalid geometry")

// Placement is one tile of a plan.
type Placement struct {
	// Index is the position of the tile in plan order (row-major).
	Index int

	// X, Y is the tile origin in the source region.
	X, Y int

	// FirstCol, FirstRow, LastCol and LastRow mark tiles touching the
	// corresponding region edge.
	FirstCol, FirstRow, LastCol, LastRow bool

	// Src is the part of the upscaled tile that is kept, in upscaled
	// tile-local coordinates.
	Src image.Rect

	// Dst is where Src lands in the upscaled region.
	Dst image.Rect
}

// Bounds returns the tile rectangle in source region coordinates.
func (p Placement) Bounds(tileSize int) image.Rect {
	return image.Rect{X: p.X, Y: p.Y, Width: tileSize, Height: tileSize}
}

// Plan is the ordered tile sequence covering a region.
type Plan struct {
	Width, Height int
	TileSize      int
	Overlap       int
	Scale         int
	Placements    []Placement
}

// Len returns the number of tiles in the plan.
func (p *Plan) Len() int {
	return len(p.Placements)
}

// OutputWidth returns the upscaled region width.
func (p *Plan) OutputWidth() int {
	return p.Width * p.Scale
}

// OutputHeight returns the upscaled region height.
func (p *Plan) OutputHeight() int {
	return p.Height * p.Scale
}

// Step returns the stride between successive tile origins.
func Step(tileSize, overlap int) int {
	return tileSize - overlap
}

func validate(width, height, tileSize, overlap int) error {
	switch {
	case tileSize <= 0:
		return fmt.Errorf("%w: tile size %d", ErrInvalidGeometry, tileSize)
	case overlap < 0 || overlap >= tileSize:
		return fmt.Errorf("%w: overlap %d for tile size %d", ErrInvalidGeometry, overlap, tileSize)
	case width < tileSize || height < tileSize:
		return fmt.Errorf("%w: region %dx%d smaller than tile %d", ErrInvalidGeometry, width, height, tileSize)
	}
	return nil
}

// Origins returns the tile origins along one axis of length dim.
//
// Origins advance by the step; a tile that would overshoot the edge is
// clamped to dim-tileSize and ends the walk. The caller must ensure
// dim >= tileSize and 0 <= overlap < tileSize.
func Origins(dim, tileSize, overlap int) []int {
	step := Step(tileSize, overlap)
	out := make([]int, 0, (dim-overlap+step-1)/step)
	for pos := 0; ; pos += step {
		if pos > 0 && pos+tileSize > dim {
			pos = dim - tileSize
		}
		out = append(out, pos)
		if pos+tileSize >= dim {
			break
		}
	}
	return out
}

// span is the kept interval of one tile along an axis, in source pixels.
type span struct {
	start, end int
}

// spans applies the crop-and-place rule along one axis. A tile keeps up to
// trail = overlap - overlap/2 pixels short of its trailing edge; the next
// tile starts where it stopped, which for unclamped origins is exactly
// overlap/2 pixels past its own leading edge.
func spans(origins []int, dim, tileSize, overlap int) []span {
	trail := overlap - overlap/2
	out := make([]span, len(origins))
	for i, pos := range origins {
		s := span{start: 0, end: dim}
		if i > 0 {
			s.start = out[i-1].end
		}
		if i < len(origins)-1 {
			s.end = pos + tileSize - trail
		}
		out[i] = s
	}
	return out
}

// NewPlan computes the tile plan for a width x height region.
func NewPlan(width, height, tileSize, overlap, scale int) (*Plan, error) {
	if err := validate(width, height, tileSize, overlap); err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, fmt.Errorf("%w: scale %d", ErrInvalidGeometry, scale)
	}

	xs := Origins(width, tileSize, overlap)
	ys := Origins(height, tileSize, overlap)
	xSpans := spans(xs, width, tileSize, overlap)
	ySpans := spans(ys, height, tileSize, overlap)

	p := &Plan{
		Width:      width,
		Height:     height,
		TileSize:   tileSize,
		Overlap:    overlap,
		Scale:      scale,
		Placements: make([]Placement, 0, len(xs)*len(ys)),
	}

	for row, y := range ys {
		sy := ySpans[row]
		for col, x := range xs {
			sx := xSpans[col]
			src := image.Rect{
				X:      sx.start - x,
				Y:      sy.start - y,
				Width:  sx.end - sx.start,
				Height: sy.end - sy.start,
			}
			p.Placements = append(p.Placements, Placement{
				Index:    len(p.Placements),
				X:        x,
				Y:        y,
				FirstCol: col == 0,
				FirstRow: row == 0,
				LastCol:  col == len(xs)-1,
				LastRow:  row == len(ys)-1,
				Src:      src.Scale(scale),
				Dst:      image.Rect{X: sx.start, Y: sy.start, Width: src.Width, Height: src.Height}.Scale(scale),
			})
		}
	}

	return p, nil
}

// Count returns the number of tiles NewPlan would produce for the region.
func Count(width, height, tileSize, overlap int) (int, error) {
	if err := validate(width, height, tileSize, overlap); err != nil {
		return 0, err
	}
	return len(Origins(width, tileSize, overlap)) * len(Origins(height, tileSize, overlap)), nil
}

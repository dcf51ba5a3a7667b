// Package strip splits a padded image into horizontal strips, one per
// worker, with enough borrowed context rows for seam-free recombination.
package strip

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/gogpu/upscale/internal/image"
)

// ErrInvalidParams is returned for partition parameters that cannot be satisfied.
var ErrInvalidParams = errors.New("strip: invalid parameters")

// Strip describes the rows one worker is responsible for.
//
// The nominal span [StartY, StartY+Height) is the part of the padded image the
// strip contributes to the final canvas. The extracted span additionally
// borrows PaddingTop rows above and PaddingBottom rows below so the tiles near
// the nominal edges see the same context as in an unpartitioned run.
type Strip struct {
	// Index is the worker slot the strip is routed to.
	Index int

	// StartY and Height are the nominal span in padded-image rows.
	StartY int
	Height int

	// PaddingTop and PaddingBottom are borrowed context rows.
	PaddingTop    int
	PaddingBottom int

	// PaddingLeft is the borrowed context columns (always 0 for horizontal strips).
	PaddingLeft int

	// OriginalWidth and OriginalHeight are the logical extent the strip is
	// responsible for, excluding borrowed context.
	OriginalWidth  int
	OriginalHeight int
}

// Empty reports whether the strip has no rows to contribute.
func (s Strip) Empty() bool {
	return s.Height <= 0
}

// ExtractY returns the first padded-image row of the extracted region.
func (s Strip) ExtractY() int {
	return s.StartY - s.PaddingTop
}

// ExtractHeight returns the height of the extracted region.
func (s Strip) ExtractHeight() int {
	return s.PaddingTop + s.Height + s.PaddingBottom
}

// Extract returns the region of the padded image the worker receives.
func (s Strip) Extract() image.Rect {
	return image.Rect{X: 0, Y: s.ExtractY(), Width: s.OriginalWidth + s.PaddingLeft, Height: s.ExtractHeight()}
}

// Nominal returns the region of the padded image the strip contributes.
func (s Strip) Nominal() image.Rect {
	return image.Rect{X: s.PaddingLeft, Y: s.StartY, Width: s.OriginalWidth, Height: s.OriginalHeight}
}

// Keep returns the part of the upscaled extracted strip that belongs to the
// final canvas, discarding the borrowed context.
func (s Strip) Keep(scale int) image.Rect {
	return image.Rect{X: s.PaddingLeft, Y: s.PaddingTop, Width: s.OriginalWidth, Height: s.OriginalHeight}.Scale(scale)
}

// Params configures Partition.
type Params struct {
	// Width and Height are the padded image dimensions.
	Width, Height int

	// Workers is the number of strips to produce.
	Workers int

	// Step is the tile stride (tile size minus overlap).
	Step int

	// Overlap is the number of context rows borrowed from each neighbour.
	Overlap int

	// TileSize is the minimum extracted height.
	TileSize int
}

func (p Params) validate() error {
	switch {
	case p.Workers < 1:
		return fmt.Errorf("%w: %d workers", ErrInvalidParams, p.Workers)
	case p.Step <= 0:
		return fmt.Errorf("%w: step %d", ErrInvalidParams, p.Step)
	case p.Overlap < 0:
		return fmt.Errorf("%w: overlap %d", ErrInvalidParams, p.Overlap)
	case p.TileSize <= 0 || p.Width < p.TileSize || p.Height < p.TileSize:
		return fmt.Errorf("%w: %dx%d image for tile %d", ErrInvalidParams, p.Width, p.Height, p.TileSize)
	}
	return nil
}

// BaseHeight returns each worker's nominal share rounded up to a multiple of
// step: ceil(height / workers / step) * step.
func BaseHeight(height, workers, step int) int {
	per := workers * step
	return (height + per - 1) / per * step
}

// Partition returns exactly p.Workers strips. Strips past the end of the
// image are Empty.
func Partition(p Params) ([]Strip, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	base := BaseHeight(p.Height, p.Workers, p.Step)
	strips := make([]Strip, p.Workers)
	for i := range strips {
		start := i * base
		if start >= p.Height {
			strips[i] = Strip{Index: i, StartY: p.Height, OriginalWidth: p.Width}
			continue
		}
		end := min(start+base, p.Height)

		top := 0
		if i > 0 {
			top = min(p.Overlap, start)
		}
		bottom := 0
		if end < p.Height {
			bottom = min(p.Overlap, p.Height-end)
		}

		// Widen short extractions (upward first) so at least one full tile fits.
		if need := p.TileSize - (top + (end - start) + bottom); need > 0 {
			up := min(need, start-top)
			top += up
			bottom = min(bottom+need-up, p.Height-end)
		}

		strips[i] = Strip{
			Index:          i,
			StartY:         start,
			Height:         end - start,
			PaddingTop:     top,
			PaddingBottom:  bottom,
			OriginalWidth:  p.Width,
			OriginalHeight: end - start,
		}
	}
	return strips, nil
}

// NonEmpty returns the strips that contribute rows.
func NonEmpty(strips []Strip) []Strip {
	return lo.Filter(strips, func(s Strip, _ int) bool { return !s.Empty() })
}

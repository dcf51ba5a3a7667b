package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gogpu/upscale/internal/image"
	"github.com/gogpu/upscale/internal/kernel"
	"github.com/gogpu/upscale/internal/strip"
	"github.com/gogpu/upscale/internal/tensor"
	"github.com/gogpu/upscale/internal/tile"
)

// Job is one strip of one image routed to exactly one unit.
//
// Src is the extracted region of the padded image (strip.Extract). The unit
// reads it and never writes to it.
type Job struct {
	ID    uuid.UUID
	Image string
	Strip strip.Strip
	Src   *image.Image

	// Overlap is the tile overlap inside the strip.
	Overlap int

	// Progress, if set, is called on the unit's goroutine with the number of
	// tiles finished since the previous call.
	Progress func(tiles int)

	// Done receives exactly one Result.
	Done chan<- Result
}

// Result is the outcome of a Job.
type Result struct {
	JobID uuid.UUID
	Strip strip.Strip

	// Image is the upscaled nominal strip (strip.Keep applied), or nil for
	// empty strips and failures.
	Image *image.Image

	// Tiles is the number of tiles evaluated.
	Tiles int

	Err error
}

func (u *unit) process(ctx context.Context, job Job) (res Result) {
	res = Result{JobID: job.ID, Strip: job.Strip}
	defer func() {
		if r := recover(); r != nil {
			res.Image = nil
			res.Err = fmt.Errorf("%w: strip %d: panic: %v", kernel.ErrInference, job.Strip.Index, r)
			u.logger.Error("worker: strip panicked", "job", job.ID, "image", job.Image, "panic", r)
		}
	}()

	if job.Strip.Empty() {
		return res
	}
	h := u.kernel.Handle()
	if h == nil {
		res.Err = ErrNotReady
		return res
	}

	img, tiles, err := u.upscaleStrip(ctx, h, job)
	res.Tiles = tiles
	if err != nil {
		res.Err = fmt.Errorf("strip %d: %w", job.Strip.Index, err)
		return res
	}
	res.Image = img
	u.logger.Debug("worker: strip done", "job", job.ID, "image", job.Image,
		"model", h.ModelID(), "strip", job.Strip.Index, "tiles", tiles)
	return res
}

// upscaleStrip runs every tile of the extracted region through the kernel
// and returns the kept part of the upscaled region.
func (u *unit) upscaleStrip(ctx context.Context, h *kernel.Handle, job Job) (*image.Image, int, error) {
	ts, scale := h.TileSize(), h.Scale()
	src := job.Src
	plan, err := tile.NewPlan(src.Width(), src.Height(), ts, job.Overlap, scale)
	if err != nil {
		return nil, 0, err
	}
	canvas, err := image.New(plan.OutputWidth(), plan.OutputHeight())
	if err != nil {
		return nil, 0, err
	}

	side := ts * scale
	for n, p := range plan.Placements {
		if err := ctx.Err(); err != nil {
			return nil, n, err
		}
		patch, err := src.Crop(p.Bounds(ts))
		if err != nil {
			return nil, n, err
		}
		in, err := tensor.Encode(patch.Pix(), ts, ts)
		if err != nil {
			return nil, n, err
		}
		out, err := u.kernel.Run(h, in)
		if err != nil {
			return nil, n, fmt.Errorf("tile %d at (%d,%d): %w", p.Index, p.X, p.Y, err)
		}
		pix, err := tensor.Decode(out)
		if err != nil {
			return nil, n, err
		}
		up, err := image.FromRaw(pix, side, side)
		if err != nil {
			return nil, n, err
		}
		if err := canvas.Blit(up, p.Src, p.Dst.X, p.Dst.Y); err != nil {
			return nil, n, err
		}
		if job.Progress != nil {
			job.Progress(1)
		}
	}

	kept, err := canvas.Crop(job.Strip.Keep(scale))
	if err != nil {
		return nil, plan.Len(), err
	}
	return kept, plan.Len(), nil
}

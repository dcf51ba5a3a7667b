package upscale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/gogpu/upscale/internal/image"
	"github.com/gogpu/upscale/internal/kernel"
	"github.com/gogpu/upscale/internal/strip"
	"github.com/gogpu/upscale/internal/tile"
	"github.com/gogpu/upscale/internal/worker"
)

// State is the coarse state of an Upscaler.
type State int32

// Upscaler states.
const (
	StateIdle State = iota
	StateLoadingModel
	StateProcessing
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingModel:
		return "loading-model"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Upscaler drives batches of images through a pool of worker units.
//
// A model is fetched and broadcast to every unit the first time it is used
// and stays loaded until a different model is requested. Images of a batch
// are processed one after another; the strips of one image run in parallel.
//
// Upscale calls are serialized. State is safe to call at any time.
type Upscaler struct {
	cfg      Config
	profile  Profile
	source   ModelSource
	reporter Reporter
	exporter Exporter
	backends map[string]Backend
	logger   *slog.Logger

	state atomic.Int32

	mu      sync.Mutex
	closed  bool
	pool    *worker.Pool
	backend string
	loaded  string
	geom    kernel.Config
}

// New creates an Upscaler. The worker pool is started lazily by the first
// Upscale call.
func New(opts ...Option) (*Upscaler, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	if o.source == nil {
		o.source = NewCachedSource(Sources{BuiltinSource{}, HTTPSource{}}, o.config.CacheBytes)
	}
	return &Upscaler{
		cfg:      o.config,
		profile:  o.profile,
		source:   o.source,
		reporter: o.reporter,
		exporter: o.exporter,
		backends: o.backends,
		logger:   Logger(),
	}, nil
}

// State returns the current state.
func (u *Upscaler) State() State {
	return State(u.state.Load())
}

// Workers returns the worker pool size.
func (u *Upscaler) Workers() int {
	if u.cfg.Workers > 0 {
		return u.cfg.Workers
	}
	return u.profile.Workers()
}

// Loaded returns the identifier of the model currently loaded in the pool,
// or "" if none is.
func (u *Upscaler) Loaded() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.loaded
}

// Close stops the worker pool. It waits for a running Upscale call.
func (u *Upscaler) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}
	u.closed = true
	if u.pool != nil {
		u.pool.Close()
		u.pool = nil
	}
	u.loaded = ""
}

// Upscale processes every source of batch with model m and returns one
// Result per source, in batch order.
//
// Failures confined to one image are recorded in its Result and the batch
// continues. A model that cannot be fetched or initialized fails every
// image and is returned as a *BatchError. Cancelling ctx fails the images
// not yet processed and returns ctx's error.
func (u *Upscaler) Upscale(ctx context.Context, m Model, batch *Batch) ([]Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil, ErrClosed
	}

	n := batch.Len()
	results := make([]Result, n)
	log := u.logger.With("model", m.ID)
	log.Info("upscale: batch started", "images", n)

	geom, err := u.prepare(ctx, m)
	if err != nil {
		u.state.Store(int32(StateError))
		failRemaining(batch, results, 0, StageModel, err)
		log.Error("upscale: batch aborted", "err", err)
		return results, &BatchError{Model: m.ID, Err: err}
	}

	u.state.Store(int32(StateProcessing))
	defer u.state.Store(int32(StateIdle))

	for i := range n {
		src, active := batch.at(i)
		if err := ctx.Err(); err != nil {
			failRemaining(batch, results, i, StagePending, err)
			log.Warn("upscale: batch cancelled", "remaining", n-i)
			return results, err
		}
		if !active {
			results[i] = Result{Name: src.Name, Skipped: true}
			log.Info("upscale: image skipped", "image", src.Name)
			continue
		}
		results[i] = u.processImage(ctx, i, src, m, geom)
	}

	failed := lo.CountBy(results, func(r Result) bool { return r.Err != nil })
	log.Info("upscale: batch finished", "images", n, "failed", failed)
	return results, nil
}

// failRemaining fails results[from:] at stage. Sources already removed from
// the batch are reported as skipped.
func failRemaining(batch *Batch, results []Result, from int, stage Stage, err error) {
	for i := from; i < len(results); i++ {
		s, active := batch.at(i)
		if !active {
			results[i] = Result{Name: s.Name, Skipped: true}
			continue
		}
		results[i] = Result{Name: s.Name, Err: &FileError{Name: s.Name, Stage: stage, Err: err}}
	}
}

// prepare validates the request and makes sure the pool runs model m.
func (u *Upscaler) prepare(ctx context.Context, m Model) (kernel.Config, error) {
	if err := m.Validate(); err != nil {
		return kernel.Config{}, err
	}
	geom, err := u.geometry(m)
	if err != nil {
		return kernel.Config{}, err
	}
	b, err := u.lookupBackend(m.Backend)
	if err != nil {
		return kernel.Config{}, err
	}
	if u.pool != nil && u.backend == m.Backend && u.loaded == m.ID && u.geom == geom {
		return geom, nil
	}

	u.state.Store(int32(StateLoadingModel))
	u.reporter.Report(Event{Phase: PhaseLoadingModel})
	start := time.Now()

	lctx, cancel := context.WithTimeout(ctx, u.cfg.ModelLoadTimeout)
	defer cancel()

	weights, err := u.source.Fetch(lctx, m)
	if err != nil {
		if !errors.Is(err, ErrModelFetch) {
			err = fmt.Errorf("%w: %s: %w", ErrModelFetch, m.ID, err)
		}
		return kernel.Config{}, err
	}

	if u.pool == nil || u.backend != m.Backend {
		if u.pool != nil {
			u.pool.Close()
		}
		u.pool = worker.NewPool(u.Workers(), b, u.logger)
		u.backend = m.Backend
	}
	u.loaded = ""
	if err := u.pool.Broadcast(lctx, m.ID, weights, geom); err != nil {
		if !errors.Is(err, ErrModelInit) {
			err = fmt.Errorf("%w: %s: %w", ErrModelInit, m.ID, err)
		}
		return kernel.Config{}, err
	}
	u.loaded, u.geom = m.ID, geom

	u.logger.Info("upscale: model loaded", "model", m.ID, "backend", m.Backend,
		"tile", geom.TileSize, "scale", geom.Scale, "units", u.pool.Size(),
		"bytes", len(weights), "elapsed", time.Since(start))
	return geom, nil
}

// geometry resolves the tile size for m.
func (u *Upscaler) geometry(m Model) (kernel.Config, error) {
	ts := m.TileSize
	if ts == 0 {
		ts = u.cfg.TileSize
	}
	if ts == 0 {
		ts = u.profile.TileSize()
	}
	if u.cfg.Overlap >= ts {
		return kernel.Config{}, fmt.Errorf("%w: overlap %d must be smaller than tile size %d of %s",
			ErrInvalidConfig, u.cfg.Overlap, ts, m.ID)
	}
	return kernel.Config{TileSize: ts, Scale: m.Scale}, nil
}

func (u *Upscaler) lookupBackend(name string) (Backend, error) {
	if b, ok := u.backends[name]; ok {
		return b, nil
	}
	b, err := kernel.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return b, nil
}

// processImage runs one image through pad, dispatch, await, composite and
// encode.
func (u *Upscaler) processImage(ctx context.Context, idx int, src Source, m Model, geom kernel.Config) Result {
	res := Result{Name: src.Name, Format: u.cfg.Format}
	log := u.logger.With("image", src.Name, "model", m.ID)
	start := time.Now()
	fail := func(stage Stage, err error) Result {
		res.Data = nil
		res.Err = &FileError{Name: src.Name, Stage: stage, Err: err}
		log.Warn("upscale: image failed", "stage", stage, "err", err)
		return res
	}

	img, err := src.decode()
	if err != nil {
		return fail(StageDecode, err)
	}

	ts, ov, scale := geom.TileSize, u.cfg.Overlap, geom.Scale
	w, h := img.Width(), img.Height()
	pw, ph := paddedSize(w, ts, ov), paddedSize(h, ts, ov)
	padded, err := img.PadEdge(pw, ph)
	if err != nil {
		return fail(StagePad, err)
	}
	strips, err := strip.Partition(strip.Params{
		Width:    pw,
		Height:   ph,
		Workers:  u.pool.Size(),
		Step:     tile.Step(ts, ov),
		Overlap:  ov,
		TileSize: ts,
	})
	if err != nil {
		return fail(StagePad, err)
	}
	active := strip.NonEmpty(strips)

	prog := &progress{reporter: u.reporter, image: src.Name, index: idx}
	defer prog.close()
	prog.start(lo.SumBy(active, func(s strip.Strip) int {
		n, _ := tile.Count(s.Extract().Width, s.ExtractHeight(), ts, ov)
		return n
	}))

	parts, err := u.runStrips(ctx, log, padded, active, ov, prog)
	if err != nil {
		return fail(StageInference, err)
	}

	out, err := composite(parts, pw*scale, ph*scale, w*scale, h*scale, scale)
	if err != nil {
		return fail(StageComposite, err)
	}
	prog.finalize()

	data, err := out.EncodeToBytes(u.cfg.Format, u.cfg.Quality)
	if err != nil {
		return fail(StageEncode, fmt.Errorf("%w: %w", ErrEncode, err))
	}
	res.Data = data
	res.Width, res.Height = out.Width(), out.Height()
	res.Filename = outputName(src.Name, scale, u.cfg.Format)

	if u.exporter != nil {
		if err := u.exporter.Export(ctx, res); err != nil {
			return fail(StageExport, err)
		}
	}
	log.Info("upscale: image done", "width", res.Width, "height", res.Height,
		"strips", len(active), "elapsed", time.Since(start))
	return res
}

// runStrips dispatches one job per strip and waits until all of them are
// done, one fails or the job timeout expires. Results that arrive after the
// wait has ended are dropped with the channel.
func (u *Upscaler) runStrips(ctx context.Context, log *slog.Logger, padded *image.Image,
	strips []strip.Strip, overlap int, prog *progress) ([]worker.Result, error) {
	jctx, cancel := context.WithTimeoutCause(ctx, u.cfg.JobTimeout, ErrJobTimeout)
	defer cancel()

	done := make(chan worker.Result, len(strips))
	pending := make(map[uuid.UUID]strip.Strip, len(strips))
	for _, s := range strips {
		region, err := padded.Crop(s.Extract())
		if err != nil {
			return nil, err
		}
		job := worker.Job{
			ID:       uuid.New(),
			Image:    prog.image,
			Strip:    s,
			Src:      region,
			Overlap:  overlap,
			Progress: prog.add,
			Done:     done,
		}
		pending[job.ID] = s
		if err := u.pool.Dispatch(jctx, s.Index, job); err != nil {
			return nil, err
		}
	}

	parts := make([]worker.Result, 0, len(strips))
	for len(pending) > 0 {
		select {
		case r := <-done:
			if _, ok := pending[r.JobID]; !ok {
				log.Warn("upscale: discarding result of unknown job", "job", r.JobID)
				continue
			}
			delete(pending, r.JobID)
			if r.Err != nil {
				return nil, r.Err
			}
			parts = append(parts, r)
		case <-jctx.Done():
			if cause := context.Cause(jctx); !errors.Is(cause, ErrJobTimeout) {
				return nil, cause
			}
			return nil, fmt.Errorf("%w after %v: %d of %d strips pending",
				ErrJobTimeout, u.cfg.JobTimeout, len(pending), len(strips))
		}
	}
	return parts, nil
}

// composite draws each upscaled strip at its nominal offset on a canvas of
// the padded size and crops the result to the unpadded output size.
func composite(parts []worker.Result, cw, ch, w, h, scale int) (*image.Image, error) {
	canvas, err := image.New(cw, ch)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		dst := p.Strip.Nominal().Scale(scale)
		if err := canvas.Blit(p.Image, p.Image.Bounds(), dst.X, dst.Y); err != nil {
			return nil, fmt.Errorf("strip %d: %w", p.Strip.Index, err)
		}
	}
	return canvas.Crop(image.Rect{Width: w, Height: h})
}

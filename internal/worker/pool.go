// Package worker runs strip jobs on a fixed pool of serial units.
//
// Each unit owns one kernel and one work queue. Everything that touches a
// unit's kernel (warm-up and strip processing) is executed on that unit's
// goroutine, so no two jobs ever run on the same kernel at the same time.
// Units run in parallel with each other.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/upscale/internal/kernel"
)

// Pool errors.
var (
	// ErrClosed is returned when work is submitted to a closed pool.
	ErrClosed = errors.New("worker: pool closed")

	// ErrNotReady is returned when a job reaches a unit that has not been
	// warmed up.
	ErrNotReady = errors.New("worker: model not loaded")
)

// unit is one serial execution slot.
type unit struct {
	id     int
	queue  chan func()
	kernel *kernel.Kernel
	logger *slog.Logger
}

// Pool is a fixed set of units.
//
// Thread safety: Pool is safe for concurrent use. Work submitted to the same
// unit runs in submission order.
type Pool struct {
	units []*unit

	// done signals units to stop.
	done chan struct{}

	// wg waits for all units to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool

	logger *slog.Logger
}

// NewPool starts n units, each with its own kernel for backend b.
// If n is 0 or negative, GOMAXPROCS is used. A nil logger disables logging.
func NewPool(n int, b kernel.Backend, logger *slog.Logger) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Pool{
		units:  make([]*unit, n),
		done:   make(chan struct{}),
		logger: logger,
	}
	for i := range n {
		ul := logger.With("unit", i)
		p.units[i] = &unit{
			id:     i,
			queue:  make(chan func(), 4),
			kernel: kernel.New(b, ul),
			logger: ul,
		}
	}

	p.running.Store(true)

	p.wg.Add(n)
	for _, u := range p.units {
		go p.loop(u)
	}
	return p
}

// loop is the main loop of a unit.
func (p *Pool) loop(u *unit) {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			drainQueue(u.queue)
			return
		case work := <-u.queue:
			if work != nil {
				work()
			}
		}
	}
}

// drainQueue executes all remaining work in a queue.
func drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

// submit queues fn on unit i. It blocks while the unit's queue is full.
func (p *Pool) submit(ctx context.Context, i int, fn func()) error {
	if !p.running.Load() {
		return ErrClosed
	}
	select {
	case p.units[i].queue <- fn:
		return nil
	default:
	}
	select {
	case p.units[i].queue <- fn:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Broadcast warms up every unit with the same model and waits until all of
// them are ready. The first failure is returned; no partially loaded pool is
// reported as ready. Warm-up is idempotent per unit, so broadcasting the
// already loaded model is cheap.
func (p *Pool) Broadcast(ctx context.Context, modelID string, weights []byte, cfg kernel.Config) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, u := range p.units {
		g.Go(func() error {
			errc := make(chan error, 1)
			err := p.submit(ctx, u.id, func() {
				_, err := u.kernel.WarmUp(modelID, weights, cfg)
				errc <- err
			})
			if err != nil {
				return err
			}
			select {
			case err := <-errc:
				if err != nil {
					return fmt.Errorf("unit %d: %w", u.id, err)
				}
				return nil
			case <-ctx.Done():
				return fmt.Errorf("unit %d: %w", u.id, context.Cause(ctx))
			}
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn("worker: model broadcast failed", "model", modelID, "err", err)
		return err
	}
	p.logger.Debug("worker: model broadcast", "model", modelID, "units", len(p.units))
	return nil
}

// Dispatch routes job to unit i modulo the pool size. The result is
// delivered on job.Done, which must have room for it: units never block on
// a reader that has gone away.
func (p *Pool) Dispatch(ctx context.Context, i int, job Job) error {
	u := p.units[i%len(p.units)]
	return p.submit(ctx, u.id, func() {
		res := u.process(ctx, job)
		select {
		case job.Done <- res:
		default:
			u.logger.Warn("worker: result dropped", "job", job.ID, "strip", job.Strip.Index)
		}
	})
}

// Close stops accepting work, lets queued work finish and releases every
// kernel. Close is safe to call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()

	for _, u := range p.units {
		if err := u.kernel.Close(); err != nil {
			u.logger.Warn("worker: close kernel", "err", err)
		}
	}
}

// Size returns the number of units.
func (p *Pool) Size() int {
	return len(p.units)
}

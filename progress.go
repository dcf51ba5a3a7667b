package upscale

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Phase is the coarse pipeline step reported in progress events.
type Phase string

// Progress phases.
const (
	PhaseLoadingModel Phase = "loading-model"
	PhaseProcessing   Phase = "processing"
	PhaseFinalizing   Phase = "finalizing"
)

// Event is a progress update. Processed and Total count tiles of the current
// image; Processed never decreases within an image and restarts at 0 for the
// next one. Image and Index are empty during PhaseLoadingModel.
type Event struct {
	Image     string
	Index     int
	Phase     Phase
	Processed int
	Total     int
}

// Reporter receives progress events. Report may be called from worker
// goroutines but never concurrently.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report implements Reporter.
func (f ReporterFunc) Report(e Event) { f(e) }

// Exporter receives every successfully encoded image.
type Exporter interface {
	Export(ctx context.Context, r Result) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(ctx context.Context, r Result) error

// Export implements Exporter.
func (f ExporterFunc) Export(ctx context.Context, r Result) error { return f(ctx, r) }

// DirExporter writes results into a directory using their Filename.
type DirExporter struct {
	Dir string
}

// Export implements Exporter.
func (d DirExporter) Export(_ context.Context, r Result) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	p := filepath.Join(d.Dir, filepath.Base(r.Filename))
	if err := os.WriteFile(p, r.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// progress serializes the tile counter of one image so events are monotonic.
type progress struct {
	mu        sync.Mutex
	reporter  Reporter
	image     string
	index     int
	processed int
	total     int
	closed    bool
}

func (p *progress) emit(phase Phase) {
	p.reporter.Report(Event{
		Image:     p.image,
		Index:     p.index,
		Phase:     phase,
		Processed: p.processed,
		Total:     p.total,
	})
}

func (p *progress) start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed, p.total = 0, total
	p.emit(PhaseProcessing)
}

func (p *progress) add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.processed = min(p.processed+n, p.total)
	p.emit(PhaseProcessing)
}

// finalize reports PhaseFinalizing and ignores tiles reported afterwards by
// abandoned jobs.
func (p *progress) finalize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.emit(PhaseFinalizing)
}

// close ignores further tile reports without emitting an event.
func (p *progress) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// nopReporter discards events.
type nopReporter struct{}

func (nopReporter) Report(Event) {}

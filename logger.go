package upscale

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for upscale and its worker pool.
// By default, upscale produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore silence.
// The logger is captured when an Upscaler is created; upscalers created
// earlier keep the logger they started with.
//
// Log levels used by upscale:
//   - [slog.LevelDebug]: per-strip and per-model diagnostics
//   - [slog.LevelInfo]: batch and image lifecycle
//   - [slog.LevelWarn]: per-file failures, dropped late results
//   - [slog.LevelError]: recovered panics, batch-fatal model errors
//
// Example:
//
//	upscale.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// Package kernel wraps a single upscaling model behind a fixed-shape
// inference call.
//
// A Kernel owns one backend session. It is warmed up once per model and then
// evaluated tile by tile: the input must be exactly [1,3,T,T] and the output
// is [1,3,T*s,T*s]. Kernels are not safe for concurrent use; each worker unit
// owns its own instance.
package kernel

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/upscale/internal/tensor"
)

// Kernel errors.
var (
	// ErrModelInit is returned when a backend rejects the weights or fails
	// to initialize.
	ErrModelInit = errors.New("kernel: model initialization failed")

	// ErrInference is returned when a backend fails while evaluating a tile.
	ErrInference = errors.New("kernel: inference failed")

	// ErrShapeMismatch is returned when a tile of the wrong shape reaches Run.
	ErrShapeMismatch = errors.New("kernel: input shape mismatch")
)

// Config is the fixed geometry a session is initialized for.
type Config struct {
	// TileSize is the side of the square input tile.
	TileSize int

	// Scale is the integer upscale factor.
	Scale int
}

func (c Config) validate() error {
	if c.TileSize <= 0 || c.Scale <= 0 {
		return fmt.Errorf("%w: tile size %d, scale %d", ErrModelInit, c.TileSize, c.Scale)
	}
	return nil
}

// Backend creates inference sessions from an opaque weights blob.
type Backend interface {
	// Name identifies the backend in model descriptors.
	Name() string

	// Init parses weights and prepares a session for cfg.
	Init(weights []byte, cfg Config) (Session, error)
}

// Session evaluates one tile at a time.
type Session interface {
	// Run reads in ([1,3,T,T]) and writes out ([1,3,T*s,T*s]).
	Run(in, out *tensor.Tensor) error

	// Close releases backend resources.
	Close() error
}

// Handle is an initialized model ready for Run.
type Handle struct {
	modelID string
	cfg     Config
	session Session
}

// ModelID returns the identifier the handle was warmed up with.
func (h *Handle) ModelID() string {
	return h.modelID
}

// TileSize returns the input tile side.
func (h *Handle) TileSize() int {
	return h.cfg.TileSize
}

// Scale returns the upscale factor.
func (h *Handle) Scale() int {
	return h.cfg.Scale
}

// InputShape returns the exact shape Run accepts.
func (h *Handle) InputShape() tensor.Shape {
	return tensor.ImageShape(h.cfg.TileSize, h.cfg.TileSize)
}

// OutputShape returns the shape Run produces.
func (h *Handle) OutputShape() tensor.Shape {
	side := h.cfg.TileSize * h.cfg.Scale
	return tensor.ImageShape(side, side)
}

// Kernel is a single-owner inference engine.
type Kernel struct {
	backend Backend
	handle  *Handle
	logger  *slog.Logger
}

// New creates a kernel for the given backend. A nil logger disables logging.
func New(b Backend, logger *slog.Logger) *Kernel {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Kernel{backend: b, logger: logger}
}

// Handle returns the current handle, or nil before the first WarmUp.
func (k *Kernel) Handle() *Handle {
	return k.handle
}

// WarmUp initializes the kernel for a model. Calling it again with the same
// model identifier and geometry is a no-op that returns the existing handle.
// A different model replaces (and closes) the previous session.
func (k *Kernel) WarmUp(modelID string, weights []byte, cfg Config) (*Handle, error) {
	if h := k.handle; h != nil && h.modelID == modelID && h.cfg == cfg {
		return h, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	session, err := k.init(weights, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s: %w", ErrModelInit, k.backend.Name(), modelID, err)
	}

	if k.handle != nil {
		if err := k.handle.session.Close(); err != nil {
			k.logger.Warn("kernel: close previous session", "model", k.handle.modelID, "err", err)
		}
	}
	k.handle = &Handle{modelID: modelID, cfg: cfg, session: session}
	k.logger.Debug("kernel: warmed up", "backend", k.backend.Name(), "model", modelID,
		"tile", cfg.TileSize, "scale", cfg.Scale)
	return k.handle, nil
}

// init calls the backend, converting a panic into an error.
func (k *Kernel) init(weights []byte, cfg Config) (s Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return k.backend.Init(weights, cfg)
}

// Run evaluates one tile. The input shape must equal h.InputShape().
func (k *Kernel) Run(h *Handle, in *tensor.Tensor) (out *tensor.Tensor, err error) {
	if h == nil || h != k.handle {
		return nil, fmt.Errorf("%w: kernel not warmed up for this handle", ErrInference)
	}
	if in == nil || in.Shape != h.InputShape() || in.Validate() != nil {
		got := tensor.Shape{}
		if in != nil {
			got = in.Shape
		}
		return nil, fmt.Errorf("%w: got %v, want %v", ErrShapeMismatch, got, h.InputShape())
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %s: panic: %v", ErrInference, h.modelID, r)
		}
	}()

	out = tensor.New(h.OutputShape())
	if err := h.session.Run(in, out); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInference, h.modelID, err)
	}
	return out, nil
}

// Close releases the current session.
func (k *Kernel) Close() error {
	if k.handle == nil {
		return nil
	}
	err := k.handle.session.Close()
	k.handle = nil
	return err
}

package upscale

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/gogpu/upscale/internal/kernel"
)

// Error kinds. Use errors.Is to classify a failure.
var (
	// ErrModelFetch reports a network or storage failure while retrieving
	// weights. It is fatal to the batch and is not retried.
	ErrModelFetch = errors.New("upscale: model fetch failed")

	// ErrModelInit reports that the backend rejected the weights. It is
	// fatal to the batch.
	ErrModelInit = kernel.ErrModelInit

	// ErrShapeMismatch reports a tile of the wrong size reaching the kernel.
	// It indicates a defect and fails only the affected image.
	ErrShapeMismatch = kernel.ErrShapeMismatch

	// ErrInference reports a backend failure while evaluating a tile. It
	// fails only the affected image.
	ErrInference = kernel.ErrInference

	// ErrEncode reports an output encoding failure for one image.
	ErrEncode = errors.New("upscale: encode failed")

	// ErrDecode reports an unreadable source image.
	ErrDecode = errors.New("upscale: decode failed")

	// ErrJobTimeout reports a strip job that did not finish in time.
	ErrJobTimeout = errors.New("upscale: job timed out")

	// ErrInvalidConfig reports a configuration or model descriptor that
	// cannot be used.
	ErrInvalidConfig = errors.New("upscale: invalid configuration")

	// ErrClosed is returned by Upscale after Close.
	ErrClosed = errors.New("upscale: upscaler closed")
)

// Stage names the step of the per-image pipeline in which a failure occurred.
type Stage string

// Pipeline stages. StagePending marks images the batch never reached.
const (
	StageModel     Stage = "model"
	StagePending   Stage = "pending"
	StageDecode    Stage = "decode"
	StagePad       Stage = "pad"
	StageInference Stage = "inference"
	StageComposite Stage = "composite"
	StageEncode    Stage = "encode"
	StageExport    Stage = "export"
)

// FileError is a failure confined to one source image.
type FileError struct {
	Name  string
	Stage Stage
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("upscale: %s: %s: %v", e.Name, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// BatchError is returned by Upscale when a model-level failure stops the
// whole batch. Results still holds one entry per source.
type BatchError struct {
	Model string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("upscale: batch aborted: model %s: %v", e.Model, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// IsBatchFatal reports whether err stops the whole batch rather than a
// single image.
func IsBatchFatal(err error) bool {
	return errors.Is(err, ErrModelFetch) || errors.Is(err, ErrModelInit)
}

// Failures summarizes the failed results as one error, or nil when every
// image succeeded or was skipped.
func Failures(results []Result) error {
	errs := lo.FilterMap(results, func(r Result, _ int) (error, bool) {
		return r.Err, r.Err != nil
	})
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d images failed:\n%w", len(errs), len(results), errors.Join(errs...))
}

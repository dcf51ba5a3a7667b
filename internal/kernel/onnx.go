//go:build cgo

package kernel

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/gogpu/upscale/internal/tensor"
)

func init() {
	Register(ONNX{})
}

// ONNX runs ONNX super-resolution graphs through onnxruntime.
//
// The graph's first input must accept float32 [1,3,T,T] and its first
// output must produce float32 [1,3,T*s,T*s]. Dynamic dimensions are accepted
// and fixed by the session's tile geometry.
type ONNX struct {
	// LibraryPath is the onnxruntime shared library. When empty,
	// LibraryPathEnv is consulted, then the platform default.
	LibraryPath string
}

// Name implements Backend.
func (ONNX) Name() string { return "onnx" }

// ortMu serializes environment setup; onnxruntime has one environment per
// process.
var ortMu sync.Mutex

func (b ONNX) environment() error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	path := b.LibraryPath
	if path == "" {
		path = os.Getenv(LibraryPathEnv)
	}
	if path != "" {
		ort.SetSharedLibraryPath(path)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnxruntime: %w", err)
	}
	return nil
}

// Init implements Backend.
func (b ONNX) Init(weights []byte, cfg Config) (Session, error) {
	if len(weights) == 0 {
		return nil, errors.New("onnx: empty model")
	}
	if err := b.environment(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(weights)
	if err != nil {
		return nil, fmt.Errorf("onnx: read graph: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: graph has %d inputs and %d outputs", len(inputs), len(outputs))
	}

	ts := int64(cfg.TileSize)
	side := int64(cfg.TileSize * cfg.Scale)
	inShape := ort.NewShape(1, 3, ts, ts)
	outShape := ort.NewShape(1, 3, side, side)
	if err := checkDims("input", inputs[0].Dimensions, inShape); err != nil {
		return nil, err
	}
	if err := checkDims("output", outputs[0].Dimensions, outShape); err != nil {
		return nil, err
	}

	in, err := ort.NewEmptyTensor[float32](inShape)
	if err != nil {
		return nil, fmt.Errorf("onnx: input tensor: %w", err)
	}
	out, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		_ = in.Destroy()
		return nil, fmt.Errorf("onnx: output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSessionWithONNXData(weights,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{in}, []ort.Value{out}, nil)
	if err != nil {
		_ = in.Destroy()
		_ = out.Destroy()
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}
	return &onnxSession{session: session, in: in, out: out}, nil
}

// checkDims rejects a static graph dimension that disagrees with want.
// Non-positive dimensions are symbolic.
func checkDims(kind string, got, want ort.Shape) error {
	if len(got) != len(want) {
		return fmt.Errorf("onnx: %s rank %d, want %v", kind, len(got), want)
	}
	for i, d := range got {
		if d > 0 && d != want[i] {
			return fmt.Errorf("onnx: %s shape %v, want %v", kind, got, want)
		}
	}
	return nil
}

type onnxSession struct {
	session *ort.AdvancedSession
	in      *ort.Tensor[float32]
	out     *ort.Tensor[float32]
}

func (s *onnxSession) Run(in, out *tensor.Tensor) error {
	copy(s.in.GetData(), in.Data)
	if err := s.session.Run(); err != nil {
		return err
	}
	copy(out.Data, s.out.GetData())
	return nil
}

func (s *onnxSession) Close() error {
	return errors.Join(s.session.Destroy(), s.in.Destroy(), s.out.Destroy())
}

package upscale

import (
	"github.com/gogpu/upscale/internal/kernel"
	"github.com/gogpu/upscale/internal/tensor"
)

// Backend turns a weights blob into an inference session for a fixed tile
// geometry. Built-in backends are "nearest", "bicubic", "conv" and, in cgo
// builds, "onnx".
type Backend = kernel.Backend

// Session evaluates one [1,3,T,T] tile into a [1,3,T*s,T*s] tile.
type Session = kernel.Session

// KernelConfig is the tile geometry a Session is created for.
type KernelConfig = kernel.Config

// Tensor is a planar float32 NCHW tensor with values in [0,1].
type Tensor = tensor.Tensor

// RegisterBackend makes b available to every Upscaler under b.Name().
func RegisterBackend(b Backend) {
	kernel.Register(b)
}

// Backends returns the names of the registered backends.
func Backends() []string {
	return kernel.Names()
}

// weightless reports whether a backend runs without a weights blob.
func weightless(backend string) bool {
	return backend == "nearest" || backend == "bicubic"
}

// ONNXLibraryEnv names the environment variable that locates the
// onnxruntime shared library used by the "onnx" backend.
const ONNXLibraryEnv = kernel.LibraryPathEnv

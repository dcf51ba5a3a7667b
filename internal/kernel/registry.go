package kernel

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownBackend is returned by Lookup for unregistered names.
var ErrUnknownBackend = errors.New("kernel: unknown backend")

// LibraryPathEnv names the environment variable that locates the
// onnxruntime shared library for the "onnx" backend.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var (
	registryMu sync.RWMutex
	registry   = map[string]Backend{}
)

func init() {
	Register(Nearest{})
	Register(Bicubic{})
	Register(Conv{})
}

// Register makes a backend available by name, replacing any previous
// backend with the same name.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b.Name()] = b
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return b, nil
}

// Names returns the registered backend names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

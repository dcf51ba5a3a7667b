package gpuinfo

import "errors"

// ErrNoAdapter is returned when no usable graphics adapter exists.
var ErrNoAdapter = errors.New("gpuinfo: no adapter")

// Info describes the adapter a device was opened on.
type Info struct {
	Name       string
	Integrated bool

	// MaxTextureSize is the largest 2D texture side the opened device
	// guarantees.
	MaxTextureSize int
}

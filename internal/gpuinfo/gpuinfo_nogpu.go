//go:build nogpu

package gpuinfo

// Detect reports ErrNoAdapter in builds without GPU support.
func Detect() (Info, error) {
	return Info{}, ErrNoAdapter
}

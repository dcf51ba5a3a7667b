package upscale

import (
	"runtime"
	"sync"

	"github.com/gogpu/upscale/internal/gpuinfo"
)

const gib = 1 << 30

// Profile describes the host resources the Upscaler sizes itself to.
type Profile struct {
	// Parallelism is the number of execution units available for workers.
	Parallelism int

	// MemoryBytes is the memory budget. Zero means unknown and is treated
	// as 4 GiB.
	MemoryBytes int64

	// MaxTextureSize is the largest square surface the accelerator supports.
	// Zero means no accelerator limit.
	MaxTextureSize int

	// Mobile marks constrained devices.
	Mobile bool
}

// detectAdapter queries the graphics adapter once per process.
var detectAdapter = sync.OnceValues(gpuinfo.Detect)

// DetectProfile returns a profile for the current process. MaxTextureSize
// comes from the graphics adapter and stays 0 when there is none.
func DetectProfile() Profile {
	return detectProfile(detectAdapter)
}

func detectProfile(detect func() (gpuinfo.Info, error)) Profile {
	p := Profile{Parallelism: runtime.GOMAXPROCS(0)}
	info, err := detect()
	if err != nil {
		Logger().Debug("upscale: no graphics adapter", "err", err)
		return p
	}
	p.MaxTextureSize = info.MaxTextureSize
	Logger().Debug("upscale: graphics adapter", "name", info.Name, "max_texture", info.MaxTextureSize)
	return p
}

// Workers returns the worker pool size, at least 1.
func (p Profile) Workers() int {
	return max(p.Parallelism, 1)
}

// TileSize returns the tile side for models that accept any tile size.
func (p Profile) TileSize() int {
	mem := p.MemoryBytes
	if mem <= 0 {
		mem = 4 * gib
	}
	tex := p.MaxTextureSize
	if tex <= 0 {
		tex = 1 << 14
	}

	if p.Mobile {
		if mem >= 6*gib {
			return 96
		}
		return 64
	}
	switch {
	case mem >= 16*gib && tex >= 8192:
		return 128
	case mem >= 8*gib && tex >= 4096:
		return 96
	}
	return 64
}

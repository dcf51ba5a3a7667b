package upscale

import (
	"fmt"
	"time"

	"github.com/gogpu/upscale/internal/image"
)

// Format is an output encoding.
type Format = image.Format

// Output formats.
const (
	FormatPNG  = image.FormatPNG
	FormatJPEG = image.FormatJPEG
	FormatBMP  = image.FormatBMP
	FormatTIFF = image.FormatTIFF
	FormatWebP = image.FormatWebP
)

// ParseFormat parses a format name such as "png" or "JPEG".
func ParseFormat(s string) (Format, error) {
	f, err := image.ParseFormat(s)
	if err != nil {
		return f, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return f, nil
}

// Default configuration values.
const (
	DefaultOverlap          = 8
	DefaultQuality          = image.DefaultQuality
	DefaultJobTimeout       = 5 * time.Minute
	DefaultModelLoadTimeout = 2 * time.Minute
	DefaultCacheBytes       = 512 << 20
)

// Config holds the tunables of an Upscaler.
type Config struct {
	// Overlap is the number of pixels shared by neighbouring tiles and the
	// number of context rows each strip borrows from its neighbours.
	Overlap int

	// TileSize overrides the tile side for models that accept any tile size
	// (Model.TileSize == 0). Zero picks it from the resource profile.
	TileSize int

	// Workers is the number of worker units. Zero sizes the pool from the
	// resource profile.
	Workers int

	// Format and Quality select the output encoding. Quality 0 means
	// DefaultQuality.
	Format  Format
	Quality int

	// JobTimeout bounds the wait for all strips of one image.
	JobTimeout time.Duration

	// ModelLoadTimeout bounds weight retrieval plus the warm-up broadcast.
	ModelLoadTimeout time.Duration

	// CacheBytes is the budget of the in-memory weights cache used when no
	// ModelSource is configured explicitly.
	CacheBytes int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Overlap:          DefaultOverlap,
		Format:           FormatPNG,
		Quality:          DefaultQuality,
		JobTimeout:       DefaultJobTimeout,
		ModelLoadTimeout: DefaultModelLoadTimeout,
		CacheBytes:       DefaultCacheBytes,
	}
}

// Validate reports the first unusable field.
func (c Config) Validate() error {
	switch {
	case c.Overlap < 0:
		return fmt.Errorf("%w: overlap %d", ErrInvalidConfig, c.Overlap)
	case c.TileSize < 0:
		return fmt.Errorf("%w: tile size %d", ErrInvalidConfig, c.TileSize)
	case c.TileSize > 0 && c.Overlap >= c.TileSize:
		return fmt.Errorf("%w: overlap %d must be smaller than tile size %d", ErrInvalidConfig, c.Overlap, c.TileSize)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	case !c.Format.IsValid():
		return fmt.Errorf("%w: format %v", ErrInvalidConfig, c.Format)
	case c.Quality < 0 || c.Quality > 100:
		return fmt.Errorf("%w: quality %d", ErrInvalidConfig, c.Quality)
	case c.JobTimeout <= 0:
		return fmt.Errorf("%w: job timeout %v", ErrInvalidConfig, c.JobTimeout)
	case c.ModelLoadTimeout <= 0:
		return fmt.Errorf("%w: model load timeout %v", ErrInvalidConfig, c.ModelLoadTimeout)
	case c.CacheBytes < 0:
		return fmt.Errorf("%w: cache budget %d", ErrInvalidConfig, c.CacheBytes)
	}
	return nil
}

package upscale

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/upscale/internal/cache"
	"github.com/gogpu/upscale/internal/kernel"
)

// ErrModelNotFound is returned by a ModelSource that has no weights for the
// requested model. It wraps ErrModelFetch.
var ErrModelNotFound = fmt.Errorf("%w: weights not found", ErrModelFetch)

// ModelSource retrieves the weights blob of a model. Fetch must be
// idempotent: the same model always yields the same bytes.
type ModelSource interface {
	Fetch(ctx context.Context, m Model) ([]byte, error)
}

// Sources tries each source in order and returns the first blob found.
type Sources []ModelSource

// Fetch implements ModelSource.
func (s Sources) Fetch(ctx context.Context, m Model) ([]byte, error) {
	for _, src := range s {
		b, err := src.Fetch(ctx, m)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrModelNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, m.ID)
}

// BuiltinSource serves weights compiled into the program. Models whose
// backend needs no weights get an empty blob.
type BuiltinSource struct {
	Blobs map[string][]byte
}

// Fetch implements ModelSource.
func (s BuiltinSource) Fetch(_ context.Context, m Model) ([]byte, error) {
	if b, ok := s.Blobs[m.ID]; ok {
		return b, nil
	}
	if b, ok := builtinBlobs[m.ID]; ok {
		return b()
	}
	if weightless(m.Backend) {
		return []byte{}, nil
	}
	return nil, fmt.Errorf("%w: %s is not built in", ErrModelNotFound, m.ID)
}

var builtinBlobs = map[string]func() ([]byte, error){
	"conv-identity-x2": func() ([]byte, error) {
		return kernel.IdentityConvWeights(2, 3).Encode()
	},
}

// FileSource reads weights named by model ID from a file system.
type FileSource struct {
	FS fs.FS
}

// Fetch implements ModelSource.
func (s FileSource) Fetch(_ context.Context, m Model) ([]byte, error) {
	if s.FS == nil || !fs.ValidPath(m.ID) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, m.ID)
	}
	b, err := fs.ReadFile(s.FS, m.ID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, m.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelFetch, m.ID, err)
	}
	return b, nil
}

// DefaultMaxModelBytes caps HTTPSource downloads.
const DefaultMaxModelBytes = 1 << 30

// HTTPSource downloads weights from Model.URL with a GET request.
type HTTPSource struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client

	// Timeout bounds one download. Zero means no extra bound beyond ctx.
	Timeout time.Duration

	// MaxBytes caps the blob size. Zero means DefaultMaxModelBytes.
	MaxBytes int64
}

// Fetch implements ModelSource.
func (s HTTPSource) Fetch(ctx context.Context, m Model) ([]byte, error) {
	if m.URL == "" {
		return nil, fmt.Errorf("%w: %s has no URL", ErrModelNotFound, m.ID)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxModelBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelFetch, m.ID, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelFetch, m.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: %s: status %d: %s", ErrModelFetch, m.ID, resp.StatusCode, msg)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelFetch, m.ID, err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: %s: larger than %d bytes", ErrModelFetch, m.ID, limit)
	}
	return b, nil
}

// CacheStats reports CachedSource usage.
type CacheStats = cache.Stats

// CachedSource memoizes another source by model ID within a byte budget and
// collapses concurrent fetches of the same model into one.
type CachedSource struct {
	src   ModelSource
	cache *cache.Cache[string, []byte]
	group singleflight.Group
}

// NewCachedSource wraps src with a cache holding at most budget bytes.
// A budget of 0 means unlimited.
func NewCachedSource(src ModelSource, budget int64) *CachedSource {
	return &CachedSource{
		src:   src,
		cache: cache.New[string, []byte](budget, cache.BytesSize),
	}
}

// Fetch implements ModelSource.
func (c *CachedSource) Fetch(ctx context.Context, m Model) ([]byte, error) {
	if b, ok := c.cache.Get(m.ID); ok {
		return b, nil
	}
	v, err, _ := c.group.Do(m.ID, func() (any, error) {
		if b, ok := c.cache.Get(m.ID); ok {
			return b, nil
		}
		b, err := c.src.Fetch(ctx, m)
		if err != nil {
			return nil, err
		}
		c.cache.Set(m.ID, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Forget drops the cached weights of a model.
func (c *CachedSource) Forget(id string) {
	c.cache.Delete(id)
}

// Cached returns the IDs of the cached models, most recently used first.
func (c *CachedSource) Cached() []string {
	return c.cache.Keys()
}

// Stats returns cache statistics.
func (c *CachedSource) Stats() CacheStats {
	return c.cache.Stats()
}

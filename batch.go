package upscale

import (
	"fmt"
	stdimage "image"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/upscale/internal/image"
)

// Source is one input image: encoded bytes with a name, or an already
// decoded image created by SourceFromImage.
type Source struct {
	Name string
	Data []byte

	// MIME is the declared media type. Decoding sniffs the content; the
	// declared type is reported when decoding fails.
	MIME string

	decoded *image.Image
	err     error
}

// SourceFromError records an input that could not be read. It fails at the
// decode stage with err as the cause while the rest of the batch runs.
func SourceFromError(name string, err error) Source {
	return Source{Name: name, err: err}
}

// SourceFromImage wraps a decoded image. The pixels are copied.
func SourceFromImage(name string, img stdimage.Image) (Source, error) {
	m, err := image.FromStdImage(img)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}
	return Source{Name: name, decoded: m}, nil
}

func (s Source) decode() (*image.Image, error) {
	switch {
	case s.err != nil:
		return nil, fmt.Errorf("%w: %w", ErrDecode, s.err)
	case s.decoded != nil:
		return s.decoded, nil
	}
	m, _, err := image.Decode(s.Data)
	if err != nil {
		if s.MIME != "" {
			return nil, fmt.Errorf("%w: declared %s: %w", ErrDecode, s.MIME, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return m, nil
}

// Batch is an ordered list of sources. Sources can be removed while a batch
// is running; a removed source is skipped when its turn comes, while one
// already being processed runs to completion.
//
// Batch is safe for concurrent use.
type Batch struct {
	mu      sync.Mutex
	sources []Source
	removed map[string]bool
}

// NewBatch creates a batch from sources.
func NewBatch(sources ...Source) *Batch {
	return &Batch{sources: sources, removed: make(map[string]bool)}
}

// Add appends a source.
func (b *Batch) Add(s Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, s)
	delete(b.removed, s.Name)
}

// Remove marks every source with the given name as removed. It returns
// false if no such source exists.
func (b *Batch) Remove(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sources {
		if s.Name == name {
			b.removed[name] = true
			return true
		}
	}
	return false
}

// Len returns the number of sources, including removed ones.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sources)
}

func (b *Batch) at(i int) (Source, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sources[i]
	return s, !b.removed[s.Name]
}

// Result is the outcome for one source.
type Result struct {
	// Name is the source name.
	Name string

	// Filename is a suggested output file name.
	Filename string

	Format Format
	Data   []byte

	// Width and Height are the output dimensions.
	Width, Height int

	// Err is a *FileError for failed images.
	Err error

	// Skipped is set for sources removed before their turn.
	Skipped bool
}

// OK reports whether the image was produced.
func (r Result) OK() bool {
	return r.Err == nil && !r.Skipped
}

// outputName derives the output file name from a source name: the NFC
// normalized stem, the scale suffix and the format extension.
func outputName(name string, scale int, f Format) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	stem = norm.NFC.String(strings.TrimSpace(stem))
	if stem == "" || stem == "." || stem == "/" {
		stem = "image"
	}
	return fmt.Sprintf("%s_x%d%s", stem, scale, f.Extension())
}

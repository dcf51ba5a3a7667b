package upscale

import (
	"fmt"
	"slices"
	"strings"
)

// Model describes an upscaling model.
//
// The weights blob is fetched by ID from a ModelSource and handed to the
// backend named by Backend. A TileSize of 0 marks a fully convolutional model
// that accepts any tile size; the Upscaler then picks one.
type Model struct {
	ID          string
	Name        string
	Description string
	URL         string
	TileSize    int
	Scale       int
	Backend     string
}

// Validate reports descriptor fields that cannot be used.
func (m Model) Validate() error {
	switch {
	case strings.TrimSpace(m.ID) == "":
		return fmt.Errorf("%w: model without identifier", ErrInvalidConfig)
	case m.Scale < 1:
		return fmt.Errorf("%w: model %s: scale %d", ErrInvalidConfig, m.ID, m.Scale)
	case m.TileSize < 0:
		return fmt.Errorf("%w: model %s: tile size %d", ErrInvalidConfig, m.ID, m.TileSize)
	case m.Backend == "":
		return fmt.Errorf("%w: model %s: no backend", ErrInvalidConfig, m.ID)
	}
	return nil
}

func (m Model) String() string {
	if m.Name != "" {
		return m.Name + " (" + m.ID + ")"
	}
	return m.ID
}

// Catalog models. The ONNX entries require an "onnx" backend to be
// registered by the embedding application.
var catalog = []Model{
	{
		ID:          "nearest-x4",
		Name:        "Nearest",
		Description: "Pixel replication. Exact and fast, useful as a reference.",
		Scale:       4,
		Backend:     "nearest",
	},
	{
		ID:          "bicubic-x4",
		Name:        "Bicubic",
		Description: "Catmull-Rom resampling without a learned model.",
		Scale:       4,
		Backend:     "bicubic",
	},
	{
		ID:          "conv-identity-x2",
		Name:        "Conv identity",
		Description: "Sub-pixel convolution with identity weights.",
		Scale:       2,
		Backend:     "conv",
	},
	{
		ID:          "model.onnx",
		Name:        "SwinIR",
		Description: "A powerful Transformer-based model for high-quality, general-purpose upscaling.",
		URL:         "https://huggingface.co/KxllMach/Upscaler-Models/resolve/main/model.onnx",
		TileSize:    64,
		Scale:       4,
		Backend:     "onnx",
	},
	{
		ID:          "RealESRGAN_x4plus_anime_4B32F.onnx",
		Name:        "ESRGAN Anime",
		Description: "Specialized model for anime and cartoon images with enhanced detail preservation.",
		URL:         "https://huggingface.co/KxllMach/Upscaler-Models/resolve/main/RealESRGAN_x4plus_anime_4B32F.onnx",
		TileSize:    64,
		Scale:       4,
		Backend:     "onnx",
	},
	{
		ID:          "real_esrgan_x4_fp16.onnx",
		Name:        "Lite",
		Description: "Lightweight model for quick processing with moderate quality improvements.",
		URL:         "https://huggingface.co/KxllMach/Upscaler-Models/resolve/main/real_esrgan_x4_fp16.onnx",
		TileSize:    64,
		Scale:       4,
		Backend:     "onnx",
	},
}

// Models returns the built-in model catalog.
func Models() []Model {
	return slices.Clone(catalog)
}

// LookupModel returns the catalog entry with the given identifier.
func LookupModel(id string) (Model, bool) {
	i := slices.IndexFunc(catalog, func(m Model) bool { return m.ID == id })
	if i < 0 {
		return Model{}, false
	}
	return catalog[i], true
}

// Package upscale enlarges images with super-resolution models by cutting
// them into overlapping tiles and running the tiles on a pool of workers.
//
// # Overview
//
// A model only ever sees fixed-size square tiles. Each image is padded so
// the tile grid covers it exactly, split into horizontal strips (one per
// worker), and every strip is tiled with overlap. Only the center of each
// upscaled tile is kept, which hides seams at tile and strip borders. The
// strips are stacked on a canvas and the padding is cropped away, so the
// output is exactly scale times the input in both dimensions.
//
// # Quick Start
//
//	import "github.com/gogpu/upscale"
//
//	u, err := upscale.New()
//	if err != nil {
//		return err
//	}
//	defer u.Close()
//
//	m, _ := upscale.LookupModel("bicubic-x4")
//	batch := upscale.NewBatch()
//	batch.Add(upscale.Source{Name: "photo.png", Data: data})
//
//	results, err := u.Upscale(ctx, m, batch)
//	if err != nil {
//		return err // the whole batch failed, e.g. the model could not load
//	}
//	for _, r := range results {
//		if r.OK() {
//			os.WriteFile(r.Filename, r.Data, 0o644)
//		}
//	}
//
// # Models and Backends
//
// A Model names a backend and a weights blob. Blobs come from a ModelSource:
// built in, read from a file system, or downloaded over HTTP, with a
// CachedSource in front so each model is fetched once per process. The
// built-in backends are "nearest", "bicubic", "conv" and, in cgo builds,
// "onnx" for the catalog's ONNX models; other runtimes are plugged in with
// RegisterBackend or WithBackend.
//
// # Failure Handling
//
// Failures are isolated per image: a corrupt file or a failed tile marks
// that Result with a *FileError and the batch moves on. Only model loading
// failures abort the whole batch (see IsBatchFatal). Every image has a
// deadline (Config.JobTimeout); late strip results are discarded.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Upscaler, Model, Batch, Config, ModelSource, Reporter
//   - Internal: image (RGBA buffers and codecs), tensor (NCHW conversion),
//     tile and strip (geometry), kernel (backends), worker (unit pool),
//     cache (byte-budgeted LRU)
//
// # Logging
//
// The package is silent by default. Call SetLogger with an *slog.Logger to
// see model loading, strip scheduling and failures.
package upscale

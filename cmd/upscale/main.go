// Command upscale enlarges images with a tiled super-resolution model.
//
// Progress, results and errors are written to stdout as newline-delimited
// JSON; logs go to stderr.
//
//	upscale --model nearest-x4 --format png --out ./big photo.jpg scan.png
//	upscale models
package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gogpu/upscale"
)

type flags struct {
	model       string
	backend     string
	url         string
	weightsDir  string
	onnxLib     string
	modelTile   int
	scale       int
	tile        int
	overlap     int
	workers     int
	format      string
	quality     int
	out         string
	jobTimeout  time.Duration
	loadTimeout time.Duration
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "upscale [flags] IMAGE...",
		Short:         "Upscale images with a tiled super-resolution model",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, f, args)
		},
	}
	addFlags(cmd.Flags(), &f)
	cmd.AddCommand(newModelsCmd())
	return cmd
}

func addFlags(fs *pflag.FlagSet, f *flags) {
	def := upscale.DefaultConfig()
	fs.StringVarP(&f.model, "model", "m", "nearest-x4", "model identifier (see 'upscale models')")
	fs.StringVar(&f.backend, "backend", "", "backend for a custom model ("+fmt.Sprint(upscale.Backends())+")")
	fs.StringVar(&f.url, "url", "", "weights URL for a custom model")
	fs.StringVar(&f.weightsDir, "weights-dir", "", "directory holding weights files named by model identifier")
	fs.StringVar(&f.onnxLib, "onnx-lib", "", "onnxruntime shared library for the onnx backend (default $"+upscale.ONNXLibraryEnv+")")
	fs.IntVar(&f.modelTile, "model-tile", 0, "fixed input tile size of a custom model (0 = any)")
	fs.IntVar(&f.scale, "scale", 0, "upscale factor of a custom model")
	fs.IntVar(&f.tile, "tile", 0, "tile size for models that accept any size (0 = from host profile)")
	fs.IntVar(&f.overlap, "overlap", def.Overlap, "tile and strip overlap in pixels")
	fs.IntVarP(&f.workers, "workers", "w", 0, "worker units (0 = one per CPU)")
	fs.StringVarP(&f.format, "format", "f", "png", "output format: png, jpeg, webp, bmp, tiff")
	fs.IntVarP(&f.quality, "quality", "q", def.Quality, "output quality 1-100")
	fs.StringVarP(&f.out, "out", "o", ".", "output directory")
	fs.DurationVar(&f.jobTimeout, "job-timeout", def.JobTimeout, "maximum time for one image")
	fs.DurationVar(&f.loadTimeout, "load-timeout", def.ModelLoadTimeout, "maximum time to fetch and load a model")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging on stderr")
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the built-in model catalog",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			for _, m := range upscale.Models() {
				tile := "any"
				if m.TileSize > 0 {
					tile = fmt.Sprint(m.TileSize)
				}
				fmt.Fprintf(w, "%-36s x%d  tile %-4s %-8s %s\n", m.ID, m.Scale, tile, m.Backend, m.Description)
			}
		},
	}
}

// resolveModel applies command-line overrides to a catalog entry, or builds
// a custom model from them.
func resolveModel(f flags, changed func(string) bool) (upscale.Model, error) {
	m, ok := upscale.LookupModel(f.model)
	if !ok {
		if f.backend == "" || f.scale == 0 {
			return m, fmt.Errorf("unknown model %q: custom models need --backend and --scale", f.model)
		}
		m = upscale.Model{ID: f.model, Name: f.model}
	}
	if changed("backend") {
		m.Backend = f.backend
	}
	if changed("scale") {
		m.Scale = f.scale
	}
	if changed("url") {
		m.URL = f.url
	}
	if changed("model-tile") {
		m.TileSize = f.modelTile
	}
	return m, m.Validate()
}

func run(ctx context.Context, cmd *cobra.Command, f flags, args []string) error {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	upscale.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	events := newEventWriter(cmd.OutOrStdout())
	if f.onnxLib != "" {
		os.Setenv(upscale.ONNXLibraryEnv, f.onnxLib)
	}

	fail := func(err error) error {
		events.Error(err)
		return err
	}

	m, err := resolveModel(f, cmd.Flags().Changed)
	if err != nil {
		return fail(err)
	}
	format, err := upscale.ParseFormat(f.format)
	if err != nil {
		return fail(err)
	}

	cfg := upscale.DefaultConfig()
	cfg.Overlap = f.overlap
	cfg.TileSize = f.tile
	cfg.Workers = f.workers
	cfg.Format = format
	cfg.Quality = f.quality
	cfg.JobTimeout = f.jobTimeout
	cfg.ModelLoadTimeout = f.loadTimeout

	var sources upscale.Sources
	if f.weightsDir != "" {
		sources = append(sources, upscale.FileSource{FS: os.DirFS(f.weightsDir)})
	}
	sources = append(sources, upscale.BuiltinSource{}, upscale.HTTPSource{Timeout: f.loadTimeout})

	u, err := upscale.New(
		upscale.WithConfig(cfg),
		upscale.WithSource(upscale.NewCachedSource(sources, cfg.CacheBytes)),
		upscale.WithReporter(events),
		upscale.WithExporter(upscale.DirExporter{Dir: f.out}),
	)
	if err != nil {
		return fail(err)
	}
	defer u.Close()

	batch := upscale.NewBatch()
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			batch.Add(upscale.SourceFromError(path, err))
			continue
		}
		batch.Add(upscale.Source{Name: path, Data: data, MIME: mime.TypeByExtension(filepath.Ext(path))})
	}

	results, err := u.Upscale(ctx, m, batch)
	for _, r := range results {
		events.Result(r, filepath.Join(f.out, r.Filename))
	}
	if err != nil {
		return fail(err)
	}
	return upscale.Failures(results)
}

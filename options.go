package upscale

// Option configures an Upscaler during creation.
//
// Example:
//
//	u, err := upscale.New(
//	    upscale.WithProfile(upscale.Profile{Parallelism: 4}),
//	    upscale.WithReporter(upscale.ReporterFunc(func(e upscale.Event) {
//	        fmt.Println(e.Image, e.Processed, e.Total)
//	    })),
//	)
type Option func(*options)

// options holds optional configuration for Upscaler creation.
type options struct {
	config   Config
	profile  Profile
	source   ModelSource
	reporter Reporter
	exporter Exporter
	backends map[string]Backend
}

// defaultOptions returns the default options.
func defaultOptions() options {
	return options{
		config:   DefaultConfig(),
		profile:  DetectProfile(),
		reporter: nopReporter{},
		backends: make(map[string]Backend),
	}
}

// WithConfig replaces the default configuration.
func WithConfig(c Config) Option {
	return func(o *options) {
		o.config = c
	}
}

// WithProfile sets the resource profile used to size the worker pool and
// pick tile sizes.
func WithProfile(p Profile) Option {
	return func(o *options) {
		o.profile = p
	}
}

// WithSource sets where model weights come from. The source is used as is;
// wrap it with NewCachedSource to memoize downloads.
//
// The default is a cached chain of BuiltinSource and HTTPSource.
func WithSource(s ModelSource) Option {
	return func(o *options) {
		o.source = s
	}
}

// WithReporter sets the progress destination.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithExporter sets a destination that receives every encoded image.
// Export failures are reported in that image's Result.
func WithExporter(e Exporter) Option {
	return func(o *options) {
		o.exporter = e
	}
}

// WithBackend makes b available to this Upscaler under b.Name(), taking
// precedence over the globally registered backend of the same name.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backends[b.Name()] = b
	}
}

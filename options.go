package splat

// Option configures a Pipeline during creation.
//
// Example:
//
//	// Default CPU pipeline sized by the source set later
//	pl := splat.NewPipeline()
//
//	// Pin the worker count and inject a custom accelerator
//	pl := splat.NewPipeline(
//		splat.WithWorkers(4),
//		splat.WithAccelerator(accel),
//	)
type Option func(*pipelineOptions)

// pipelineOptions holds optional configuration for Pipeline creation.
type pipelineOptions struct {
	workers       int
	sortThreshold int
	accel         Accelerator
	useRegistry   bool
}

// defaultOptions returns the default pipeline options.
func defaultOptions() pipelineOptions {
	return pipelineOptions{
		workers:       0, // GOMAXPROCS
		sortThreshold: DefaultSortThreshold,
		useRegistry:   true,
	}
}

// WithWorkers sets the number of worker goroutines for the data-parallel
// stages. Zero or negative selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *pipelineOptions) {
		o.workers = n
	}
}

// WithSortThreshold overrides the splat count at which the sorter
// switches from insertion sort to the general comparison sort. Intended
// for tests and tuning; the default is DefaultSortThreshold.
func WithSortThreshold(n int) Option {
	return func(o *pipelineOptions) {
		o.sortThreshold = n
	}
}

// WithAccelerator injects an accelerator for this pipeline, bypassing
// the global registry. Pass nil to force the CPU stages regardless of
// any registered accelerator.
func WithAccelerator(a Accelerator) Option {
	return func(o *pipelineOptions) {
		o.accel = a
		o.useRegistry = false
	}
}

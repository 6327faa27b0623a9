package engine

import (
	"time"

	"github.com/Carmen-Shannon/texforge-go/engine/presenter"
	"github.com/Carmen-Shannon/texforge-go/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Second / time.Duration(fps)
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing
// the engine to create and manage one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithPresenter sets a custom configured presenter, allowing clear color,
// sampler and present mode overrides.
//
// Parameters:
//   - p: a pre-configured Presenter instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPresenter(p presenter.Presenter) EngineBuilderOption {
	return func(e *engine) {
		e.presenter = p
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Second / time.Duration(fps)
	}
}

// WithForceFallbackAdapter requests the software rasterizer adapter during
// device acquisition. Used in CI and headless environments.
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithForceFallbackAdapter() EngineBuilderOption {
	return func(e *engine) {
		e.forceFallbackAdapter = true
	}
}

// WithPackWorkers sets the number of worker-pool goroutines used for
// per-generator parameter packing. Values <= 0 keep the default
// (NumCPU - 1, minimum 1).
//
// Parameters:
//   - workers: worker count for the packing pool
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPackWorkers(workers int) EngineBuilderOption {
	return func(e *engine) {
		if workers > 0 {
			e.packWorkers = workers
		}
	}
}

package presenter

import (
	"github.com/Carmen-Shannon/texforge-go/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresenterBuilderOption is a functional option used to configure a Presenter during construction.
type PresenterBuilderOption func(*presenter)

// WithClearColor sets the color the surface is cleared to before the blit.
// Defaults to opaque black.
//
// Parameters:
//   - color: the clear color
//
// Returns:
//   - PresenterBuilderOption: option function to apply
func WithClearColor(color wgpu.Color) PresenterBuilderOption {
	return func(p *presenter) {
		p.clearColor = color
	}
}

// WithPresentMode sets how presented frames are delivered to the display.
// Defaults to PresentModeUncapped.
//
// Parameters:
//   - mode: the present mode (PresentModeUncapped or PresentModeVSync)
//
// Returns:
//   - PresenterBuilderOption: option function to apply
func WithPresentMode(mode PresentMode) PresenterBuilderOption {
	return func(p *presenter) {
		p.presentMode = mode
	}
}

// WithSamplerConfig overrides the sampler used to read the source texture.
// Zero-valued fields keep their defaults (clamp-to-edge, trilinear).
//
// Parameters:
//   - data: the sampler configuration
//
// Returns:
//   - PresenterBuilderOption: option function to apply
func WithSamplerConfig(data common.SamplerStagingData) PresenterBuilderOption {
	return func(p *presenter) {
		p.samplerData = data
	}
}

// WithForceFallbackAdapter requests the software rasterizer adapter when the
// presenter acquires its own GPU context. Used in CI and headless environments.
//
// Returns:
//   - PresenterBuilderOption: option function to apply
func WithForceFallbackAdapter() PresenterBuilderOption {
	return func(p *presenter) {
		p.forceFallback = true
	}
}

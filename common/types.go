// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// FrameInfo describes the per-frame inputs a generator program reads alongside its
// parameter values: elapsed time, a monotonically increasing frame index, and the
// viewport the output texture is rendered at.
type FrameInfo struct {
	// Time is the elapsed time in seconds since the engine started rendering.
	Time float32
	// Frame is the number of frames rendered so far, starting at 0.
	Frame uint32
	// Width is the output texture width in texels.
	Width uint32
	// Height is the output texture height in texels.
	Height uint32
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Zero-valued fields fall back to trilinear filtering with clamp-to-edge addressing
// when the sampler is created, so callers only need to set what they want to override.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

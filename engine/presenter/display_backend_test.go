package presenter

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/texforge-go/common"
	"github.com/Carmen-Shannon/texforge-go/engine/capability"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestBlitBindingsWithFloat32Filterable(t *testing.T) {
	texture := blitTextureBindingLayout(true)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, texture.ViewDimension)

	sampler := blitSamplerBindingLayout(true)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, sampler.Type)

	descriptor := blitSamplerDescriptor(common.SamplerStagingData{}, true)
	assert.Equal(t, wgpu.FilterModeLinear, descriptor.MagFilter)
	assert.Equal(t, wgpu.FilterModeLinear, descriptor.MinFilter)
	assert.Equal(t, wgpu.MipmapFilterModeLinear, descriptor.MipmapFilter)
	assert.Equal(t, wgpu.AddressModeClampToEdge, descriptor.AddressModeU)
	assert.Equal(t, wgpu.AddressModeClampToEdge, descriptor.AddressModeV)
}

func TestBlitBindingsWithoutFloat32Filterable(t *testing.T) {
	texture := blitTextureBindingLayout(false)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, texture.SampleType,
		"rgba32float must bind as unfilterable-float without the feature")

	sampler := blitSamplerBindingLayout(false)
	assert.Equal(t, wgpu.SamplerBindingTypeNonFiltering, sampler.Type,
		"an unfilterable-float texture pairs with a non-filtering sampler")

	// Even explicit linear overrides must drop to nearest: a non-filtering
	// sampler binding rejects linear modes.
	descriptor := blitSamplerDescriptor(common.SamplerStagingData{
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		MaxAnisotropy: 16,
	}, false)
	assert.Equal(t, wgpu.FilterModeNearest, descriptor.MagFilter)
	assert.Equal(t, wgpu.FilterModeNearest, descriptor.MinFilter)
	assert.Equal(t, wgpu.MipmapFilterModeNearest, descriptor.MipmapFilter)
	assert.Equal(t, uint16(1), descriptor.MaxAnisotropy)
}

func TestBackendAdoptCarriesFloat32Filterable(t *testing.T) {
	for _, filterable := range []bool{true, false} {
		b := &wgpuDisplayBackendImpl{mu: &sync.Mutex{}}
		b.adopt(capability.DeviceBundle{
			Device:            &wgpu.Device{},
			Queue:             &wgpu.Queue{},
			Float32Filterable: filterable,
		}, &wgpu.Surface{}, wgpu.TextureFormatBGRA8Unorm)
		assert.Equal(t, filterable, b.float32Filterable)
		assert.False(t, b.ownsContext)
	}
}

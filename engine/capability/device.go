package capability

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoAdapter indicates no GPU adapter could be acquired.
var ErrNoAdapter = errors.New("capability: no adapter available")

// DeviceBundle holds a device, its queue, and the adapter they came from.
// All three must be released together, newest first.
type DeviceBundle struct {
	Adapter *wgpu.Adapter
	Device  *wgpu.Device
	Queue   *wgpu.Queue

	// Float32Filterable is true when the device was created with the
	// float32-filterable feature, allowing linear sampling of rgba32float
	// textures. When false, consumers must bind such textures as
	// unfilterable-float with a non-filtering sampler.
	Float32Filterable bool
}

// Release frees the bundle's GPU objects. Safe on a zero-value bundle.
func (b *DeviceBundle) Release() {
	if b.Queue != nil {
		b.Queue.Release()
		b.Queue = nil
	}
	if b.Device != nil {
		b.Device.Release()
		b.Device = nil
	}
	if b.Adapter != nil {
		b.Adapter.Release()
		b.Adapter = nil
	}
}

// AcquireDevice requests an adapter compatible with the given surface and a
// device on it, returning errors instead of panicking so callers can fall
// back gracefully. The float32-filterable feature is requested whenever the
// adapter offers it, so rgba32float generator output can be sampled with
// linear filtering.
//
// Parameters:
//   - instance: the GPU instance to request from
//   - surface: the surface the adapter must be compatible with (nil for a surface-independent device)
//   - forceFallbackAdapter: request the software rasterizer instead of hardware
//   - label: debug label for the device
//
// Returns:
//   - DeviceBundle: the acquired adapter, device and queue
//   - error: ErrNoAdapter or the underlying request failure
func AcquireDevice(instance *wgpu.Instance, surface *wgpu.Surface, forceFallbackAdapter bool, label string) (DeviceBundle, error) {
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		return DeviceBundle{}, fmt.Errorf("capability: adapter request failed: %w", err)
	}
	if adapter == nil {
		return DeviceBundle{}, ErrNoAdapter
	}

	descriptor := &wgpu.DeviceDescriptor{
		Label: label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	}
	float32Filterable := adapter.HasFeature(wgpu.FeatureNameFloat32Filterable)
	if float32Filterable {
		descriptor.RequiredFeatures = []wgpu.FeatureName{wgpu.FeatureNameFloat32Filterable}
	}

	device, err := adapter.RequestDevice(descriptor)
	if err != nil {
		adapter.Release()
		return DeviceBundle{}, fmt.Errorf("capability: device request failed: %w", err)
	}

	return DeviceBundle{
		Adapter:           adapter,
		Device:            device,
		Queue:             device.GetQueue(),
		Float32Filterable: float32Filterable,
	}, nil
}

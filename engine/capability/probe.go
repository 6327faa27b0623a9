package capability

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Unsupported reasons reported by CheckSupport.
const (
	ReasonAPIMissing = "api missing"
	ReasonNoAdapter  = "no adapter"
)

// Report is the outcome of a support probe. Exactly one of the three states
// holds: API missing, adapter unavailable, or supported.
type Report struct {
	// Supported is true when an adapter was acquired successfully.
	Supported bool

	// Reason explains an unsupported result. Empty when Supported is true.
	Reason string
}

// probe is the implementation of the Probe interface.
type probe struct {
	forceFallbackAdapter bool
}

// Probe answers "can this process render at all" before any window or surface
// exists. It is the cheap pre-flight check callers run to decide between the
// GPU path and a graceful fallback; it never panics, even when the native
// library is absent.
type Probe interface {
	// IsAPIAvailable reports whether the GPU API can be instantiated at all.
	//
	// Returns:
	//   - bool: true if an instance was created successfully
	IsAPIAvailable() bool

	// CheckSupport probes for a usable adapter and classifies the result.
	// The probe is surface-independent; a surface-compatible adapter is
	// re-requested later when a presenter binds a real surface.
	//
	// Returns:
	//   - Report: the tri-state support outcome
	CheckSupport() Report
}

var _ Probe = &probe{}

// ProbeBuilderOption is a functional option used to configure a Probe during construction.
type ProbeBuilderOption func(*probe)

// WithForceFallbackAdapter requests the software rasterizer adapter instead of
// a hardware one. Used in CI and headless environments.
//
// Returns:
//   - ProbeBuilderOption: option function to apply
func WithForceFallbackAdapter() ProbeBuilderOption {
	return func(p *probe) {
		p.forceFallbackAdapter = true
	}
}

// NewProbe creates a capability Probe.
//
// Parameters:
//   - options: functional options to configure the probe
//
// Returns:
//   - Probe: the newly created probe
func NewProbe(options ...ProbeBuilderOption) Probe {
	p := &probe{}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// createInstance wraps wgpu instance creation so a missing or broken native
// library surfaces as nil instead of a crash.
func createInstance() (instance *wgpu.Instance) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
		}
	}()
	return wgpu.CreateInstance(nil)
}

func (p *probe) IsAPIAvailable() bool {
	instance := createInstance()
	if instance == nil {
		return false
	}
	instance.Release()
	return true
}

func (p *probe) CheckSupport() (report Report) {
	defer func() {
		if r := recover(); r != nil {
			report = Report{Reason: fmt.Sprintf("adapter request failed: %v", r)}
		}
	}()

	instance := createInstance()
	if instance == nil {
		return Report{Reason: ReasonAPIMissing}
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: p.forceFallbackAdapter,
	})
	if err != nil {
		return Report{Reason: fmt.Sprintf("adapter request failed: %s", err.Error())}
	}
	if adapter == nil {
		return Report{Reason: ReasonNoAdapter}
	}
	adapter.Release()

	return Report{Supported: true}
}

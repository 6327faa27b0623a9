package presenter

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/texforge-go/common"
	"github.com/Carmen-Shannon/texforge-go/engine/capability"
	"github.com/Carmen-Shannon/texforge-go/engine/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed blit.wgsl
var blitSource string

// State is the presenter lifecycle phase.
type State int

const (
	// StateUninitialized means no blit pipeline exists yet.
	StateUninitialized State = iota

	// StateInitializing means pipeline construction is in progress.
	StateInitializing

	// StateReady means the pipeline exists and Present may be called.
	StateReady
)

// PresentMode controls how presented frames are delivered to the display.
type PresentMode int

const (
	// PresentModeUncapped presents frames as fast as possible.
	PresentModeUncapped PresentMode = iota

	// PresentModeVSync locks presentation to the display refresh rate.
	PresentModeVSync
)

// presenter is the implementation of the Presenter interface.
type presenter struct {
	mu *sync.Mutex

	state    State
	bound    bool
	external bool

	width  int
	height int

	backend       displayBackend
	newBackend    func() displayBackend
	clearColor    wgpu.Color
	samplerData   common.SamplerStagingData
	presentMode   PresentMode
	forceFallback bool
}

// Presenter owns the surface-facing half of the render path: it binds a
// window surface (or adopts a caller-owned GPU context), lazily builds a blit
// pipeline on first use, and presents generator output textures by sampling
// them across a full-screen triangle.
//
// The lifecycle is a one-way state machine per binding: Uninitialized until
// EnsureInitialized succeeds, then Ready until Reset. Present runs the
// initialization itself when it has not happened yet.
type Presenter interface {
	// BindSurface creates a presenter-owned GPU context for the given window
	// surface descriptor and configures the swapchain at the given size.
	//
	// Parameters:
	//   - surfaceDescriptor: the platform surface descriptor obtained from the window
	//   - width: initial surface width in pixels
	//   - height: initial surface height in pixels
	//
	// Returns:
	//   - error: an error if the context could not be acquired or the surface configured
	BindSurface(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int) error

	// BindSurfaceContext adopts a caller-owned device bundle and
	// pre-configured surface. In this mode the presenter never reconfigures
	// or releases the surface; Resize returns ErrExternalSurface.
	//
	// Parameters:
	//   - bundle: the caller's adapter, device and queue
	//   - surface: the caller's configured surface
	//   - format: the format the surface was configured with
	//
	// Returns:
	//   - error: an error if the bundle is incomplete or the surface is nil
	BindSurfaceContext(bundle capability.DeviceBundle, surface *wgpu.Surface, format wgpu.TextureFormat) error

	// EnsureInitialized builds the blit pipeline if it does not exist yet.
	// Idempotent: once Ready, subsequent calls return nil without touching
	// the GPU.
	//
	// Returns:
	//   - error: ErrNotConfigured before a surface is bound, or the pipeline build failure
	EnsureInitialized() error

	// Present draws one frame sampling the given texture view to the bound
	// surface, building the blit pipeline first if it does not exist yet.
	// A nil source presents a clear-only frame.
	//
	// Parameters:
	//   - source: the texture view to sample, or nil
	//
	// Returns:
	//   - error: ErrNotConfigured, ErrUninitializedPipeline (wrapping the build failure), ErrDeviceLost, or the underlying GPU error
	Present(source *wgpu.TextureView) error

	// Resize reconfigures the swapchain after a window size change. Only
	// valid for presenter-owned surfaces.
	//
	// Parameters:
	//   - width: new surface width in pixels
	//   - height: new surface height in pixels
	//
	// Returns:
	//   - error: ErrNotConfigured, ErrExternalSurface, or the reconfiguration failure
	Resize(width, height int) error

	// IsReady reports whether Present may be called.
	//
	// Returns:
	//   - bool: true when the blit pipeline exists
	IsReady() bool

	// State returns the current lifecycle phase.
	//
	// Returns:
	//   - State: the current state
	State() State

	// Reset releases all GPU objects and drops the surface binding, returning
	// the presenter to its initial state. A new surface may be bound after.
	Reset()
}

var _ Presenter = &presenter{}

// NewPresenter creates an unbound Presenter.
//
// Parameters:
//   - options: functional options to configure the presenter
//
// Returns:
//   - Presenter: the newly created presenter
func NewPresenter(options ...PresenterBuilderOption) Presenter {
	p := &presenter{
		mu:         &sync.Mutex{},
		clearColor: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		newBackend: newWGPUDisplayBackend,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *presenter) BindSurface(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bound {
		return fmt.Errorf("presenter: surface already bound, Reset first")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("presenter: invalid surface size %dx%d", width, height)
	}

	backend := p.newBackend()
	if err := backend.init(surfaceDescriptor, p.forceFallback); err != nil {
		return err
	}
	if err := backend.configureSurface(width, height, p.wgpuPresentMode()); err != nil {
		backend.release()
		return err
	}

	p.backend = backend
	p.bound = true
	p.external = false
	p.width = width
	p.height = height
	return nil
}

func (p *presenter) BindSurfaceContext(bundle capability.DeviceBundle, surface *wgpu.Surface, format wgpu.TextureFormat) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bound {
		return fmt.Errorf("presenter: surface already bound, Reset first")
	}
	if bundle.Device == nil || bundle.Queue == nil || surface == nil {
		return fmt.Errorf("presenter: context binding requires device, queue and surface")
	}

	backend := p.newBackend()
	backend.adopt(bundle, surface, format)

	p.backend = backend
	p.bound = true
	p.external = true
	return nil
}

func (p *presenter) EnsureInitialized() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureInitializedLocked()
}

func (p *presenter) ensureInitializedLocked() error {
	if !p.bound {
		return ErrNotConfigured
	}
	if p.state == StateReady {
		return nil
	}

	p.state = StateInitializing

	vertex, err := shader.NewShaderFromSource("blit", shader.ShaderTypeVertex, blitSource)
	if err != nil {
		p.state = StateUninitialized
		return err
	}
	fragment, err := shader.NewShaderFromSource("blit", shader.ShaderTypeFragment, blitSource)
	if err != nil {
		p.state = StateUninitialized
		return err
	}

	if err := p.backend.initPipeline(vertex, fragment, p.samplerData); err != nil {
		p.state = StateUninitialized
		return err
	}

	p.state = StateReady
	return nil
}

func (p *presenter) Present(source *wgpu.TextureView) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.bound {
		return ErrNotConfigured
	}
	if p.state != StateReady {
		if err := p.ensureInitializedLocked(); err != nil {
			return fmt.Errorf("%w: %v", ErrUninitializedPipeline, err)
		}
	}

	return p.backend.blit(source, p.clearColor)
}

func (p *presenter) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.bound {
		return ErrNotConfigured
	}
	if p.external {
		return ErrExternalSurface
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("presenter: invalid surface size %dx%d", width, height)
	}

	if err := p.backend.configureSurface(width, height, p.wgpuPresentMode()); err != nil {
		return err
	}
	p.width = width
	p.height = height
	return nil
}

func (p *presenter) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateReady
}

func (p *presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *presenter) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.backend != nil {
		p.backend.release()
		p.backend = nil
	}
	p.bound = false
	p.external = false
	p.state = StateUninitialized
	p.width = 0
	p.height = 0
}

// wgpuPresentMode maps the exported PresentMode enum to its wgpu value.
// Must be called with the mutex held or from a builder option.
func (p *presenter) wgpuPresentMode() wgpu.PresentMode {
	switch p.presentMode {
	case PresentModeVSync:
		return wgpu.PresentModeFifo
	default:
		return wgpu.PresentModeImmediate
	}
}

package engine

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/texforge-go/common"
	"github.com/Carmen-Shannon/texforge-go/engine/capability"
	"github.com/Carmen-Shannon/texforge-go/engine/compute"
	"github.com/Carmen-Shannon/texforge-go/engine/generator"
	"github.com/Carmen-Shannon/texforge-go/engine/presenter"
	"github.com/Carmen-Shannon/texforge-go/engine/profiler"
	"github.com/Carmen-Shannon/texforge-go/engine/selection"
	"github.com/Carmen-Shannon/texforge-go/engine/shader"
	"github.com/Carmen-Shannon/texforge-go/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// engine implements the Engine interface.
// Coordinates the tick, render, and window threads around the generator
// registry, per-generator compute producers, and the surface presenter.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window

	registry  generator.Registry
	tracker   selection.Tracker
	presenter presenter.Presenter

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	// Shared GPU context. The engine owns the instance, surface and device;
	// the presenter adopts them and producers render with them.
	instance      *wgpu.Instance
	surface       *wgpu.Surface
	surfaceFormat wgpu.TextureFormat
	bundle        capability.DeviceBundle

	producersMu *sync.Mutex
	producers   map[string]compute.Producer

	// producerFactory builds one generator's GPU residency. Tests substitute
	// a stub to exercise producer lifecycle without a device.
	producerFactory func(device *wgpu.Device, queue *wgpu.Queue, program shader.Shader, iterations int) (compute.Producer, error)

	// packPool runs per-generator parameter packing off the render thread.
	// Workers are reused across frames (no goroutine spawn overhead).
	packPool    worker.DynamicWorkerPool
	packWorkers int

	forceFallbackAdapter bool

	startTime  time.Time
	frameIndex uint32
}

// Engine is the main entry point. It wires the window, registry, selection
// tracker, compute producers, and presenter into a running preview: every
// frame, each active generator's program is dispatched into its offscreen
// texture, and the focused generator's output is blitted to the window.
type Engine interface {
	// Init probes GPU support, acquires the shared device, configures the
	// window surface, and hands the context to the presenter.
	//
	// Returns:
	//   - error: an error if the GPU is unsupported or acquisition fails
	Init() error

	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Registry returns the generator registry. Registering, unregistering
	// and updating generators through it keeps the GPU side in sync.
	//
	// Returns:
	//   - generator.Registry: the registry instance
	Registry() generator.Registry

	// Tracker returns the multi-select tracker used for compose checkboxes.
	//
	// Returns:
	//   - selection.Tracker: the tracker instance
	Tracker() selection.Tracker

	// Presenter returns the surface presenter.
	//
	// Returns:
	//   - presenter.Presenter: the presenter instance
	Presenter() presenter.Presenter

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for parameter animation
	// and input processing.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called each render frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the main engine loop (blocks until window closes).
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// The registry's change callback is claimed by the engine so producer
// lifecycles track registration events.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		running:         false,
		wg:              sync.WaitGroup{},
		registry:        generator.NewRegistry(),
		tracker:         selection.NewTracker(),
		presenter:       presenter.NewPresenter(),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
		producersMu:     &sync.Mutex{},
		producers:       make(map[string]compute.Producer),
		producerFactory: compute.NewProducer,
		packWorkers:     max(runtime.NumCPU()-1, 1),
	}

	for _, opt := range options {
		opt(e)
	}

	e.packPool = worker.NewDynamicWorkerPool(e.packWorkers, 256, 1*time.Second)
	e.registry.SetChangeCallback(e.handleRegistryChange)

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.resizeSurface(width, height)
		})
	}

	return e
}

func (e *engine) Init() error {
	if e.window == nil {
		return fmt.Errorf("engine: a window is required, use WithWindow")
	}

	probe := e.newProbe()
	if report := probe.CheckSupport(); !report.Supported {
		return fmt.Errorf("engine: gpu unsupported: %s", report.Reason)
	}

	e.instance = wgpu.CreateInstance(nil)
	e.surface = e.instance.CreateSurface(e.window.SurfaceDescriptor())

	bundle, err := capability.AcquireDevice(e.instance, e.surface, e.forceFallbackAdapter, "Engine Device")
	if err != nil {
		return err
	}
	e.bundle = bundle

	if err := e.configureSurface(e.window.Width(), e.window.Height()); err != nil {
		return err
	}

	if err := e.presenter.BindSurfaceContext(bundle, e.surface, e.surfaceFormat); err != nil {
		return err
	}
	if err := e.presenter.EnsureInitialized(); err != nil {
		return err
	}

	e.syncProducers()
	return nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Registry() generator.Registry {
	return e.registry
}

func (e *engine) Tracker() selection.Tracker {
	return e.tracker
}

func (e *engine) Presenter() presenter.Presenter {
	return e.presenter
}

func (e *engine) Run() {
	e.startTime = time.Now()
	e.running = true
	e.handle()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
	e.releaseGPU()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// newProbe builds the capability probe honoring the fallback-adapter option.
func (e *engine) newProbe() capability.Probe {
	if e.forceFallbackAdapter {
		return capability.NewProbe(capability.WithForceFallbackAdapter())
	}
	return capability.NewProbe()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handle launches the tick, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleTick()
	go e.handleRender()
	go e.handleQuit()
}

// handleTick runs the fixed-rate tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic
// rate changes via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleTick() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own
// goroutine. Each frame: pack active generators' parameter values in
// parallel, batch every compute pass into one command encoder, submit, then
// present the focused generator's output.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.renderFrame()

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// renderFrame runs one full frame: parameter packing, compute dispatch, blit.
func (e *engine) renderFrame() {
	if e.bundle.Device == nil || !e.presenter.IsReady() {
		return
	}

	frame := common.FrameInfo{
		Time:   float32(time.Since(e.startTime).Seconds()),
		Frame:  e.frameIndex,
		Width:  uint32(e.window.Width()),
		Height: uint32(e.window.Height()),
	}
	e.frameIndex++

	active := e.registry.ListActive()
	if len(active) == 0 {
		e.presentOutput(nil)
		return
	}

	// Phase 1: parallel CPU prep — pack each generator's parameter values
	// into dispatch order on the worker pool. A WaitGroup provides per-frame
	// barrier sync since pool.Wait() blocks until workers idle-exit, which
	// is unsuitable for frame-rate workloads.
	packed := make([][]float32, len(active))
	var wg sync.WaitGroup
	for i, def := range active {
		wg.Add(1)
		idx := i
		id := def.ID
		params := def.Params
		e.packPool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				values, ok := e.registry.Parameters(id)
				if !ok {
					return nil, nil
				}
				packed[idx] = packValues(params, values)
				return nil, nil
			},
		})
	}
	wg.Wait()

	// Phase 2: batch all compute dispatches into a single GPU submission.
	encoder, err := e.bundle.Device.CreateCommandEncoder(nil)
	if err != nil {
		log.Printf("engine: command encoder creation failed: %v", err)
		return
	}

	dispatched := 0
	e.producersMu.Lock()
	for i, def := range active {
		producer, ok := e.producers[def.ID]
		if !ok || packed[i] == nil {
			continue
		}
		if err := producer.Encode(encoder, frame, packed[i]); err != nil {
			log.Printf("engine: dispatch of %s failed: %v", def.ID, err)
			continue
		}
		dispatched++
	}
	focused := e.focusedProducerLocked(active)
	e.producersMu.Unlock()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		log.Printf("engine: command encoding failed: %v", err)
		return
	}
	e.bundle.Queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.RecordDispatches(dispatched, len(active))
	}

	// Phase 3: blit the focused generator's output to the surface.
	var view *wgpu.TextureView
	if focused != nil {
		if v, viewErr := focused.OutputView(); viewErr == nil {
			view = v
		}
	}
	e.presentOutput(view)
}

// presentOutput blits one frame. Device loss is fatal to the GPU context: the
// presenter, pipelines and surface all need full reconstruction, so the engine
// shuts down instead of logging the same failure every frame.
func (e *engine) presentOutput(view *wgpu.TextureView) {
	err := e.presenter.Present(view)
	if err == nil {
		return
	}
	if errors.Is(err, presenter.ErrDeviceLost) {
		log.Printf("engine: device lost, shutting down: %v", err)
		e.signalQuit()
		return
	}
	log.Printf("engine: present failed: %v", err)
}

// focusedProducerLocked resolves the selection to a producer, falling back to
// the first active generator when the selection is empty or stale.
// Must be called with producersMu held.
func (e *engine) focusedProducerLocked(active []generator.Definition) compute.Producer {
	if selected := e.registry.Selected(); selected != "" {
		if p, ok := e.producers[selected]; ok && e.registry.IsActive(selected) {
			return p
		}
	}
	for _, def := range active {
		if p, ok := e.producers[def.ID]; ok {
			return p
		}
	}
	return nil
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// handleRegistryChange keeps producers in lockstep with the registry: new
// registrations get a producer, source updates rebuild the pipeline, and
// removals release GPU resources and prune the compose tracker.
func (e *engine) handleRegistryChange(ev generator.ChangeEvent) {
	switch ev.Kind {
	case generator.ChangeRegistered:
		if e.bundle.Device == nil {
			// Registration before Init is fine; syncProducers backfills once
			// the device exists.
			log.Printf("engine: deferring producer for %s until the device is acquired", ev.ID)
			return
		}
		def, ok := e.registry.Get(ev.ID)
		if !ok {
			return
		}
		e.ensureProducer(def)

	case generator.ChangeSourceUpdated:
		def, ok := e.registry.Get(ev.ID)
		if !ok {
			return
		}
		e.producersMu.Lock()
		p, exists := e.producers[ev.ID]
		e.producersMu.Unlock()
		if !exists {
			return
		}
		if err := p.UpdateProgram(def.Program); err != nil {
			log.Printf("engine: program swap for %s failed, keeping previous pipeline: %v", ev.ID, err)
			return
		}
		p.SetIterations(def.Iterations)

	case generator.ChangeUnregistered:
		e.producersMu.Lock()
		if p, exists := e.producers[ev.ID]; exists {
			p.Release()
			delete(e.producers, ev.ID)
		}
		e.producersMu.Unlock()
		e.tracker.Prune(e.registry.IDs())

	case generator.ChangeCleared:
		e.producersMu.Lock()
		for _, p := range e.producers {
			p.Release()
		}
		e.producers = make(map[string]compute.Producer)
		e.producersMu.Unlock()
		e.tracker.Clear()
	}
}

// ensureProducer builds and stores a producer for the definition if one does
// not already exist. Failures are logged; the generator simply does not render.
func (e *engine) ensureProducer(def generator.Definition) {
	e.producersMu.Lock()
	_, exists := e.producers[def.ID]
	e.producersMu.Unlock()
	if exists {
		return
	}

	p, err := e.producerFactory(e.bundle.Device, e.bundle.Queue, def.Program, def.Iterations)
	if err != nil {
		log.Printf("engine: producer for %s rejected: %v", def.ID, err)
		return
	}
	if err := p.Init(uint32(e.window.Width()), uint32(e.window.Height())); err != nil {
		log.Printf("engine: producer init for %s failed: %v", def.ID, err)
		return
	}
	e.producersMu.Lock()
	e.producers[def.ID] = p
	e.producersMu.Unlock()
}

// syncProducers builds producers for every generator registered before the
// device existed. Called from Init once the device bundle is live.
func (e *engine) syncProducers() {
	for _, id := range e.registry.IDs() {
		if def, ok := e.registry.Get(id); ok {
			e.ensureProducer(def)
		}
	}
}

// configureSurface (re)configures the engine-owned surface. The presenter is
// in adopted-context mode, so swapchain sizing stays with the engine.
func (e *engine) configureSurface(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("engine: invalid surface size %dx%d", width, height)
	}

	capabilities := e.surface.GetCapabilities(e.bundle.Adapter)
	if len(capabilities.Formats) == 0 {
		return fmt.Errorf("engine: surface reports no compatible formats")
	}
	e.surfaceFormat = capabilities.Formats[0]

	e.surface.Configure(e.bundle.Adapter, e.bundle.Device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      e.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

// resizeSurface reconfigures the swapchain and every producer's output
// texture after a window resize.
func (e *engine) resizeSurface(width, height int) {
	if e.bundle.Device == nil {
		return
	}
	if err := e.configureSurface(width, height); err != nil {
		log.Printf("engine: resize failed: %v", err)
		return
	}

	e.producersMu.Lock()
	defer e.producersMu.Unlock()
	for id, p := range e.producers {
		if err := p.Resize(uint32(width), uint32(height)); err != nil {
			log.Printf("engine: output resize for %s failed: %v", id, err)
		}
	}
}

// releaseGPU frees producers, the presenter, and the engine-owned context.
func (e *engine) releaseGPU() {
	e.producersMu.Lock()
	for _, p := range e.producers {
		p.Release()
	}
	e.producers = make(map[string]compute.Producer)
	e.producersMu.Unlock()

	e.presenter.Reset()
	e.bundle.Release()
	if e.surface != nil {
		e.surface.Release()
		e.surface = nil
	}
	if e.instance != nil {
		e.instance.Release()
		e.instance = nil
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}

// packValues flattens a generator's value map into schema declaration order
// for the uniform block, truncating at the producer's parameter capacity.
func packValues(params []generator.ParamSchema, values map[string]float64) []float32 {
	limit := len(params)
	if limit > compute.MaxParams {
		limit = compute.MaxParams
	}
	packed := make([]float32, limit)
	for i := 0; i < limit; i++ {
		packed[i] = float32(values[params[i].Name])
	}
	return packed
}

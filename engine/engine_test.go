package engine

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/texforge-go/common"
	"github.com/Carmen-Shannon/texforge-go/engine/capability"
	"github.com/Carmen-Shannon/texforge-go/engine/compute"
	"github.com/Carmen-Shannon/texforge-go/engine/generator"
	"github.com/Carmen-Shannon/texforge-go/engine/presenter"
	"github.com/Carmen-Shannon/texforge-go/engine/shader"
	"github.com/Carmen-Shannon/texforge-go/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWindow satisfies window.Window without GLFW so engine logic can run
// headless.
type stubWindow struct {
	width  int
	height int
}

var _ window.Window = &stubWindow{}

func (w *stubWindow) SetUpdateCallback(func())                   {}
func (w *stubWindow) SetResizeCallback(func(int, int))           {}
func (w *stubWindow) SetScrollCallback(func(float32))            {}
func (w *stubWindow) SetKeyDownCallback(func(uint32))            {}
func (w *stubWindow) SetKeyUpCallback(func(uint32))              {}
func (w *stubWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *stubWindow) IsRunning() bool                            { return false }
func (w *stubWindow) Close() error                               { return nil }
func (w *stubWindow) ProcessMessages()                           {}
func (w *stubWindow) Width() int                                 { return w.width }
func (w *stubWindow) Height() int                                { return w.height }

// stubProducer counts lifecycle calls instead of touching the GPU.
type stubProducer struct {
	initCalls    int
	releaseCalls int
	lastWidth    uint32
	lastHeight   uint32
}

var _ compute.Producer = &stubProducer{}

func (p *stubProducer) Init(width, height uint32) error {
	p.initCalls++
	p.lastWidth = width
	p.lastHeight = height
	return nil
}
func (p *stubProducer) Resize(uint32, uint32) error       { return nil }
func (p *stubProducer) UpdateProgram(shader.Shader) error { return nil }
func (p *stubProducer) Encode(*wgpu.CommandEncoder, common.FrameInfo, []float32) error {
	return nil
}
func (p *stubProducer) OutputView() (*wgpu.TextureView, error) { return nil, compute.ErrNoOutput }
func (p *stubProducer) SetIterations(int)                      {}
func (p *stubProducer) Release()                               { p.releaseCalls++ }

// stubPresenter satisfies presenter.Presenter and fails Present with a fixed
// error when one is set.
type stubPresenter struct {
	presentErr   error
	presentCalls int
}

var _ presenter.Presenter = &stubPresenter{}

func (p *stubPresenter) BindSurface(*wgpu.SurfaceDescriptor, int, int) error { return nil }
func (p *stubPresenter) BindSurfaceContext(capability.DeviceBundle, *wgpu.Surface, wgpu.TextureFormat) error {
	return nil
}
func (p *stubPresenter) EnsureInitialized() error { return nil }
func (p *stubPresenter) Present(*wgpu.TextureView) error {
	p.presentCalls++
	return p.presentErr
}
func (p *stubPresenter) Resize(int, int) error  { return nil }
func (p *stubPresenter) IsReady() bool          { return true }
func (p *stubPresenter) State() presenter.State { return presenter.StateReady }
func (p *stubPresenter) Reset()                 {}

const testComputeSource = `
@group(0) @binding(0) var output: texture_storage_2d<rgba32float, write>;

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    textureStore(output, vec2<i32>(id.xy), vec4<f32>(0.0, 0.0, 0.0, 1.0));
}
`

func testDefinition(t *testing.T, id string, params ...generator.ParamSchema) generator.Definition {
	t.Helper()
	program, err := shader.NewShaderFromSource(id, shader.ShaderTypeCompute, testComputeSource)
	require.NoError(t, err)
	def, err := generator.NewDefinition(id, program, params, generator.WithID(id))
	require.NoError(t, err)
	return def
}

func TestPackValues(t *testing.T) {
	params := []generator.ParamSchema{
		{Name: "scale", Kind: generator.ParamKindFloat, Min: 1, Max: 20, Default: 6},
		{Name: "speed", Kind: generator.ParamKindFloat, Min: 0, Max: 4, Default: 1},
	}
	values := map[string]float64{"scale": 12, "speed": 0.5}

	packed := packValues(params, values)
	require.Len(t, packed, 2)
	assert.Equal(t, float32(12), packed[0], "values are packed in schema declaration order")
	assert.Equal(t, float32(0.5), packed[1])
}

func TestPackValuesTruncates(t *testing.T) {
	params := make([]generator.ParamSchema, compute.MaxParams+4)
	values := make(map[string]float64, len(params))
	for i := range params {
		name := fmt.Sprintf("p%02d", i)
		params[i] = generator.ParamSchema{Name: name, Kind: generator.ParamKindFloat, Min: 0, Max: 100, Default: 0}
		values[name] = float64(i)
	}

	packed := packValues(params, values)
	assert.Len(t, packed, compute.MaxParams)
	assert.Equal(t, float32(compute.MaxParams-1), packed[compute.MaxParams-1])
}

func TestEngineTrackerPrunedOnUnregister(t *testing.T) {
	e := NewEngine().(*engine)

	require.NoError(t, e.registry.Register(testDefinition(t, "g1"), nil))
	require.NoError(t, e.registry.Register(testDefinition(t, "g2"), nil))
	e.tracker.Add("g1")
	e.tracker.Add("g2")

	e.registry.Unregister("g1")
	assert.False(t, e.tracker.IsChecked("g1"), "compose checkbox is dropped with its generator")
	assert.True(t, e.tracker.IsChecked("g2"))
}

func TestEngineTrackerClearedWithRegistry(t *testing.T) {
	e := NewEngine().(*engine)

	require.NoError(t, e.registry.Register(testDefinition(t, "g1"), nil))
	e.tracker.Add("g1")

	e.registry.Clear()
	assert.Equal(t, 0, e.tracker.Count())
}

func TestEngineInitRequiresWindow(t *testing.T) {
	e := NewEngine()
	assert.Error(t, e.Init())
}

func TestEngineAccessors(t *testing.T) {
	e := NewEngine()
	assert.NotNil(t, e.Registry())
	assert.NotNil(t, e.Tracker())
	assert.NotNil(t, e.Presenter())
	assert.Nil(t, e.Window())
}

func TestEngineQuitIsIdempotent(t *testing.T) {
	e := NewEngine()
	e.Quit()
	e.Quit()
}

func TestEngineBackfillsProducersRegisteredBeforeInit(t *testing.T) {
	e := NewEngine(WithWindow(&stubWindow{width: 640, height: 480})).(*engine)
	created := make(map[string]*stubProducer)
	e.producerFactory = func(_ *wgpu.Device, _ *wgpu.Queue, program shader.Shader, _ int) (compute.Producer, error) {
		p := &stubProducer{}
		created[program.Key()] = p
		return p, nil
	}

	// Registration before the device exists must not drop the generators.
	require.NoError(t, e.registry.Register(testDefinition(t, "g1"), nil))
	require.NoError(t, e.registry.Register(testDefinition(t, "g2"), nil))
	assert.Empty(t, e.producers)

	e.bundle = capability.DeviceBundle{Device: &wgpu.Device{}, Queue: &wgpu.Queue{}}
	e.syncProducers()

	assert.Len(t, e.producers, 2)
	require.Contains(t, created, "g1")
	assert.Equal(t, 1, created["g1"].initCalls)
	assert.Equal(t, uint32(640), created["g1"].lastWidth)
	assert.Equal(t, uint32(480), created["g1"].lastHeight)

	// A second sync is a no-op for generators that already have a producer.
	e.syncProducers()
	assert.Equal(t, 1, created["g1"].initCalls)
	assert.Equal(t, 1, created["g2"].initCalls)
}

func TestEngineCreatesProducerOnRegister(t *testing.T) {
	e := NewEngine(WithWindow(&stubWindow{width: 640, height: 480})).(*engine)
	e.bundle = capability.DeviceBundle{Device: &wgpu.Device{}, Queue: &wgpu.Queue{}}
	factoryCalls := 0
	e.producerFactory = func(_ *wgpu.Device, _ *wgpu.Queue, _ shader.Shader, _ int) (compute.Producer, error) {
		factoryCalls++
		return &stubProducer{}, nil
	}

	require.NoError(t, e.registry.Register(testDefinition(t, "g1"), nil))
	assert.Equal(t, 1, factoryCalls)
	assert.Len(t, e.producers, 1)

	e.registry.Unregister("g1")
	assert.Empty(t, e.producers)
}

func TestEngineQuitsOnDeviceLoss(t *testing.T) {
	lost := &stubPresenter{presentErr: presenter.ErrDeviceLost}
	e := NewEngine(
		WithWindow(&stubWindow{width: 640, height: 480}),
		WithPresenter(lost),
	).(*engine)
	e.bundle = capability.DeviceBundle{Device: &wgpu.Device{}, Queue: &wgpu.Queue{}}

	e.renderFrame()
	assert.Equal(t, 1, lost.presentCalls)

	select {
	case <-e.quitChannel:
	default:
		t.Fatal("device loss should shut the engine down")
	}
}

func TestEngineKeepsRunningOnTransientPresentFailure(t *testing.T) {
	flaky := &stubPresenter{presentErr: fmt.Errorf("transient")}
	e := NewEngine(
		WithWindow(&stubWindow{width: 640, height: 480}),
		WithPresenter(flaky),
	).(*engine)
	e.bundle = capability.DeviceBundle{Device: &wgpu.Device{}, Queue: &wgpu.Queue{}}

	e.renderFrame()
	select {
	case <-e.quitChannel:
		t.Fatal("a non-fatal present failure must not stop the engine")
	default:
	}
}

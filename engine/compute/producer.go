package compute

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/texforge-go/common"
	"github.com/Carmen-Shannon/texforge-go/engine/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// MaxParams is the number of float parameter slots in the uniform block.
// Generator programs read them as array<vec4<f32>, 4> in declaration order.
const MaxParams = 16

// uniform block layout: an 8-word header followed by MaxParams packed floats.
// Must match the Params struct every generator WGSL program declares.
const (
	uniformHeaderSize = 32
	uniformSize       = uniformHeaderSize + MaxParams*4
)

// ErrNoOutput indicates OutputView was called before Init allocated the
// output texture.
var ErrNoOutput = errors.New("compute: output texture not allocated")

// producer is the implementation of the Producer interface.
type producer struct {
	mu *sync.Mutex

	device *wgpu.Device
	queue  *wgpu.Queue

	program    shader.Shader
	iterations int

	pipeline        *wgpu.ComputePipeline
	bindGroupLayout *wgpu.BindGroupLayout
	bindGroup       *wgpu.BindGroup
	uniformBuffer   *wgpu.Buffer

	texture     *wgpu.Texture
	textureView *wgpu.TextureView

	width  uint32
	height uint32
}

// Producer runs one generator's compute program into an offscreen
// RGBA32Float storage texture. Each registered generator gets its own
// producer; the engine batches all producers' passes into one command
// encoder per frame and hands the focused producer's OutputView to the
// presenter.
//
// The expected program bind group layout is:
//
//	@group(0) @binding(0) var output: texture_storage_2d<rgba32float, write>;
//	@group(0) @binding(1) var<uniform> params: Params;
type Producer interface {
	// Init builds the compute pipeline, uniform buffer, output texture and
	// bind group at the given output size.
	//
	// Parameters:
	//   - width: output texture width in texels
	//   - height: output texture height in texels
	//
	// Returns:
	//   - error: an error if any GPU resource could not be created
	Init(width, height uint32) error

	// Resize reallocates the output texture and rebuilds the bind group.
	//
	// Parameters:
	//   - width: new output texture width in texels
	//   - height: new output texture height in texels
	//
	// Returns:
	//   - error: an error if the texture could not be recreated
	Resize(width, height uint32) error

	// UpdateProgram swaps the compute program and rebuilds the pipeline.
	// The output texture and uniform buffer survive the swap.
	//
	// Parameters:
	//   - program: the replacement compute program
	//
	// Returns:
	//   - error: an error if the new pipeline could not be created
	UpdateProgram(program shader.Shader) error

	// Encode writes the frame uniforms and encodes one compute pass into the
	// given encoder. The pass runs the program once per configured iteration.
	//
	// Parameters:
	//   - encoder: the frame's command encoder
	//   - frame: per-frame inputs (time, frame index, viewport)
	//   - values: parameter values in schema declaration order (at most MaxParams)
	//
	// Returns:
	//   - error: an error if the producer is uninitialized or values overflow MaxParams
	Encode(encoder *wgpu.CommandEncoder, frame common.FrameInfo, values []float32) error

	// OutputView returns the view of the output texture for sampling.
	//
	// Returns:
	//   - *wgpu.TextureView: the output texture view
	//   - error: ErrNoOutput before Init
	OutputView() (*wgpu.TextureView, error)

	// SetIterations sets how many times the program runs per frame.
	//
	// Parameters:
	//   - iterations: the per-frame iteration count (values below 1 are treated as 1)
	SetIterations(iterations int)

	// Release frees all GPU resources held by this producer.
	Release()
}

var _ Producer = &producer{}

// NewProducer creates a Producer for one generator program. Init must be
// called before Encode.
//
// Parameters:
//   - device: the shared GPU device
//   - queue: the shared GPU queue
//   - program: the generator's compute program
//   - iterations: the per-frame iteration count
//
// Returns:
//   - Producer: the newly created producer
//   - error: an error if the program is nil or not a compute shader
func NewProducer(device *wgpu.Device, queue *wgpu.Queue, program shader.Shader, iterations int) (Producer, error) {
	if program == nil {
		return nil, errors.New("compute: producer requires a program")
	}
	if program.ShaderType() != shader.ShaderTypeCompute {
		return nil, fmt.Errorf("compute: program %s is not a compute shader", program.Key())
	}
	if iterations < 1 {
		iterations = 1
	}
	return &producer{
		mu:         &sync.Mutex{},
		device:     device,
		queue:      queue,
		program:    program,
		iterations: iterations,
	}, nil
}

func (p *producer) Init(width, height uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.buildPipelineLocked(); err != nil {
		return err
	}

	buf, err := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: p.program.Key() + " Uniform Buffer",
		Size:  uniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	p.uniformBuffer = buf

	return p.buildOutputLocked(width, height)
}

func (p *producer) Resize(width, height uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pipeline == nil {
		return fmt.Errorf("compute: producer %s not initialized", p.program.Key())
	}
	return p.buildOutputLocked(width, height)
}

func (p *producer) UpdateProgram(program shader.Shader) error {
	if program == nil {
		return errors.New("compute: producer requires a program")
	}
	if program.ShaderType() != shader.ShaderTypeCompute {
		return fmt.Errorf("compute: program %s is not a compute shader", program.Key())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	previous := p.program
	p.program = program
	if err := p.buildPipelineLocked(); err != nil {
		p.program = previous
		return err
	}
	return nil
}

func (p *producer) Encode(encoder *wgpu.CommandEncoder, frame common.FrameInfo, values []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pipeline == nil || p.bindGroup == nil {
		return fmt.Errorf("compute: producer %s not initialized", p.program.Key())
	}
	if len(values) > MaxParams {
		return fmt.Errorf("compute: %d parameter values exceed the %d slot limit", len(values), MaxParams)
	}

	p.queue.WriteBuffer(p.uniformBuffer, 0, packUniform(frame, uint32(p.iterations), values))

	wg := p.program.WorkgroupSize()
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, p.bindGroup, nil)
	pass.DispatchWorkgroups(dispatchCount(p.width, wg[0]), dispatchCount(p.height, wg[1]), 1)
	pass.End()

	return nil
}

func (p *producer) OutputView() (*wgpu.TextureView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.textureView == nil {
		return nil, ErrNoOutput
	}
	return p.textureView, nil
}

func (p *producer) SetIterations(iterations int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if iterations < 1 {
		iterations = 1
	}
	p.iterations = iterations
}

func (p *producer) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.textureView != nil {
		p.textureView.Release()
		p.textureView = nil
	}
	if p.texture != nil {
		p.texture.Release()
		p.texture = nil
	}
	if p.uniformBuffer != nil {
		p.uniformBuffer.Release()
		p.uniformBuffer = nil
	}
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
}

// buildPipelineLocked creates the bind group layout (once) and the compute
// pipeline for the current program. Must be called with the mutex held.
func (p *producer) buildPipelineLocked() error {
	module, err := p.device.CreateShaderModule(p.program.Module())
	if err != nil {
		return err
	}
	// The pipeline holds its own reference; releasing here keeps program
	// hot-swaps from leaking a module per swap.
	defer module.Release()

	if p.bindGroupLayout == nil {
		layout, layoutErr := p.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label: p.program.Key() + " Bind Group Layout",
			Entries: []wgpu.BindGroupLayoutEntry{
				{
					Binding:    0,
					Visibility: wgpu.ShaderStageCompute,
					StorageTexture: wgpu.StorageTextureBindingLayout{
						Access:        wgpu.StorageTextureAccessWriteOnly,
						Format:        wgpu.TextureFormatRGBA32Float,
						ViewDimension: wgpu.TextureViewDimension2D,
					},
				},
				{
					Binding:    1,
					Visibility: wgpu.ShaderStageCompute,
					Buffer: wgpu.BufferBindingLayout{
						Type:           wgpu.BufferBindingTypeUniform,
						MinBindingSize: uniformSize,
					},
				},
			},
		})
		if layoutErr != nil {
			return layoutErr
		}
		p.bindGroupLayout = layout
	}

	pipelineLayout, err := p.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.program.Key(),
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.bindGroupLayout},
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	created, err := p.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.program.Key() + " Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: p.program.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	if p.pipeline != nil {
		p.pipeline.Release()
	}
	p.pipeline = created
	return nil
}

// buildOutputLocked (re)allocates the output texture and rebuilds the bind
// group around it. Must be called with the mutex held.
func (p *producer) buildOutputLocked(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("compute: invalid output size %dx%d", width, height)
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.textureView != nil {
		p.textureView.Release()
		p.textureView = nil
	}
	if p.texture != nil {
		p.texture.Release()
		p.texture = nil
	}

	tex, err := p.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: p.program.Key() + " Output Texture",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA32Float,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return err
	}

	bindGroup, err := p.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  p.program.Key() + " Bind Group",
		Layout: p.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Buffer: p.uniformBuffer, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		view.Release()
		tex.Release()
		return err
	}

	p.texture = tex
	p.textureView = view
	p.bindGroup = bindGroup
	p.width = width
	p.height = height
	return nil
}

// packUniform serializes the frame header and parameter values into the
// uniform block's byte layout.
func packUniform(frame common.FrameInfo, iterations uint32, values []float32) []byte {
	data := make([]byte, uniformSize)
	binary.LittleEndian.PutUint32(data[0:], frame.Width)
	binary.LittleEndian.PutUint32(data[4:], frame.Height)
	binary.LittleEndian.PutUint32(data[8:], math.Float32bits(frame.Time))
	binary.LittleEndian.PutUint32(data[12:], frame.Frame)
	binary.LittleEndian.PutUint32(data[16:], iterations)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[uniformHeaderSize+i*4:], math.Float32bits(v))
	}
	return data
}

// dispatchCount computes how many workgroups cover size texels at the given
// workgroup dimension.
func dispatchCount(size, workgroup uint32) uint32 {
	if workgroup == 0 {
		workgroup = 1
	}
	return (size + workgroup - 1) / workgroup
}

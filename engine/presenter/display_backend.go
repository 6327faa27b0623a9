package presenter

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/texforge-go/common"
	"github.com/Carmen-Shannon/texforge-go/engine/capability"
	"github.com/Carmen-Shannon/texforge-go/engine/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// displayBackend is the GPU-facing half of the presenter. The presenter owns
// the state machine and validation; the backend owns every wgpu call. Tests
// substitute a stub backend to exercise the state machine without a GPU.
type displayBackend interface {
	// init creates the instance, surface, adapter, device and queue for a
	// presenter-owned surface.
	init(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) error

	// adopt takes over a caller-owned GPU context. The backend never releases
	// adopted objects.
	adopt(bundle capability.DeviceBundle, surface *wgpu.Surface, format wgpu.TextureFormat)

	// configureSurface (re)configures the swapchain at the given size.
	configureSurface(width, height int, presentMode wgpu.PresentMode) error

	// initPipeline builds the blit render pipeline, its bind group layout
	// and the sampler used to read the source texture.
	initPipeline(vertex, fragment shader.Shader, samplerData common.SamplerStagingData) error

	// blit draws one frame: clear to clearColor, sample source over a
	// full-screen triangle, submit, wait for the queue, present. A nil
	// source presents a clear-only frame.
	blit(source *wgpu.TextureView, clearColor wgpu.Color) error

	// release frees every GPU object the backend owns.
	release()
}

type wgpuDisplayBackendImpl struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat

	pipeline        *wgpu.RenderPipeline
	bindGroupLayout *wgpu.BindGroupLayout
	sampler         *wgpu.Sampler

	// float32Filterable mirrors the device's float32-filterable feature. The
	// rgba32float source binds as filterable float with a trilinear sampler
	// when set, and as unfilterable float with a nearest sampler otherwise.
	float32Filterable bool

	// ownsContext is false when the device, queue and surface were adopted
	// from a caller. Adopted objects are never released here.
	ownsContext bool
}

var _ displayBackend = &wgpuDisplayBackendImpl{}

func newWGPUDisplayBackend() displayBackend {
	return &wgpuDisplayBackendImpl{
		mu: &sync.Mutex{},
	}
}

func (b *wgpuDisplayBackendImpl) init(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) error {
	runtime.LockOSThread()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	bundle, err := capability.AcquireDevice(b.instance, b.surface, forceFallbackAdapter, "Presenter Device")
	if err != nil {
		b.surface.Release()
		b.surface = nil
		b.instance.Release()
		b.instance = nil
		return err
	}
	b.adapter = bundle.Adapter
	b.device = bundle.Device
	b.queue = bundle.Queue
	b.float32Filterable = bundle.Float32Filterable
	b.ownsContext = true

	return nil
}

func (b *wgpuDisplayBackendImpl) adopt(bundle capability.DeviceBundle, surface *wgpu.Surface, format wgpu.TextureFormat) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.device = bundle.Device
	b.queue = bundle.Queue
	b.surface = surface
	b.surfaceFormat = &format
	b.float32Filterable = bundle.Float32Filterable
	b.ownsContext = false
}

func (b *wgpuDisplayBackendImpl) configureSurface(width, height int, presentMode wgpu.PresentMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil || b.adapter == nil {
		return ErrNotConfigured
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return fmt.Errorf("presenter: surface reports no compatible formats")
	}
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	return nil
}

func (b *wgpuDisplayBackendImpl) initPipeline(vertex, fragment shader.Shader, samplerData common.SamplerStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil || b.surfaceFormat == nil {
		return ErrNotConfigured
	}

	vs, err := b.device.CreateShaderModule(vertex.Module())
	if err != nil {
		return err
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(fragment.Module())
	if err != nil {
		return err
	}
	defer fs.Release()

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Blit Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture:    blitTextureBindingLayout(b.float32Filterable),
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    blitSamplerBindingLayout(b.float32Filterable),
			},
		},
	})
	if err != nil {
		return err
	}
	b.bindGroupLayout = layout

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Blit Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Blit Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertex.EntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragment.EntryPoint(),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    *b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}
	b.pipeline = created

	samp, err := b.device.CreateSampler(blitSamplerDescriptor(samplerData, b.float32Filterable))
	if err != nil {
		return err
	}
	b.sampler = samp

	return nil
}

// blitTextureBindingLayout returns the texture binding for the blit pass.
// rgba32float sources only bind as filterable float when the device carries
// the float32-filterable feature.
func blitTextureBindingLayout(float32Filterable bool) wgpu.TextureBindingLayout {
	sampleType := wgpu.TextureSampleTypeUnfilterableFloat
	if float32Filterable {
		sampleType = wgpu.TextureSampleTypeFloat
	}
	return wgpu.TextureBindingLayout{
		SampleType:    sampleType,
		ViewDimension: wgpu.TextureViewDimension2D,
	}
}

// blitSamplerBindingLayout returns the sampler binding matching
// blitTextureBindingLayout: an unfilterable-float texture must pair with a
// non-filtering sampler.
func blitSamplerBindingLayout(float32Filterable bool) wgpu.SamplerBindingLayout {
	bindingType := wgpu.SamplerBindingTypeNonFiltering
	if float32Filterable {
		bindingType = wgpu.SamplerBindingTypeFiltering
	}
	return wgpu.SamplerBindingLayout{Type: bindingType}
}

// blitSamplerDescriptor builds the sampler for the blit pass. With the
// float32-filterable feature the defaults are clamp-to-edge trilinear; without
// it every filter drops to nearest, since a non-filtering sampler binding
// rejects linear modes. Mip-based downsampling is lost only on hardware that
// cannot filter float32 textures.
func blitSamplerDescriptor(samplerData common.SamplerStagingData, float32Filterable bool) *wgpu.SamplerDescriptor {
	descriptor := &wgpu.SamplerDescriptor{
		Label:         "Blit Sampler",
		AddressModeU:  common.Coalesce(samplerData.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(samplerData.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(samplerData.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(samplerData.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(samplerData.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(samplerData.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(samplerData.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(samplerData.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(samplerData.MaxAnisotropy, 1),
		Compare:       samplerData.Compare,
	}
	if !float32Filterable {
		descriptor.MagFilter = wgpu.FilterModeNearest
		descriptor.MinFilter = wgpu.FilterModeNearest
		descriptor.MipmapFilter = wgpu.MipmapFilterModeNearest
		descriptor.MaxAnisotropy = 1
	}
	return descriptor
}

func (b *wgpuDisplayBackendImpl) blit(source *wgpu.TextureView, clearColor wgpu.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeviceLost, err.Error())
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	// The source view changes whenever a generator re-renders, so the bind
	// group is built per frame and released after submission.
	var bindGroup *wgpu.BindGroup
	if source != nil {
		bindGroup, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  "Blit Bind Group",
			Layout: b.bindGroupLayout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: source},
				{Binding: 1, Sampler: b.sampler},
			},
		})
		if err != nil {
			encoder.Release()
			view.Release()
			surfaceTexture.Release()
			return err
		}
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clearColor,
			},
		},
	})
	if bindGroup != nil {
		pass.SetPipeline(b.pipeline)
		pass.SetBindGroup(0, bindGroup, nil)
		pass.Draw(3, 1, 0, 0)
	}
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		if bindGroup != nil {
			bindGroup.Release()
		}
		encoder.Release()
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.queue.Submit(commandBuffer)
	b.device.Poll(true, nil)

	b.surface.Present()

	commandBuffer.Release()
	encoder.Release()
	if bindGroup != nil {
		bindGroup.Release()
	}
	view.Release()
	surfaceTexture.Release()

	return nil
}

func (b *wgpuDisplayBackendImpl) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sampler != nil {
		b.sampler.Release()
		b.sampler = nil
	}
	if b.pipeline != nil {
		b.pipeline.Release()
		b.pipeline = nil
	}
	if b.bindGroupLayout != nil {
		b.bindGroupLayout.Release()
		b.bindGroupLayout = nil
	}

	if b.ownsContext {
		if b.queue != nil {
			b.queue.Release()
		}
		if b.device != nil {
			b.device.Release()
		}
		if b.adapter != nil {
			b.adapter.Release()
		}
		if b.surface != nil {
			b.surface.Release()
		}
		if b.instance != nil {
			b.instance.Release()
		}
	}
	b.queue = nil
	b.device = nil
	b.adapter = nil
	b.surface = nil
	b.instance = nil
	b.surfaceFormat = nil
}

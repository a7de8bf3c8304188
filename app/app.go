package app

import (
	"fmt"
	"image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/aobake/aobake/bake"
	"github.com/aobake/aobake/gpu"
	"github.com/aobake/aobake/log"
	"github.com/aobake/aobake/shaders"
)

// App owns the window, the device and the preview blit of the baked
// map. The window is optional; headless runs only bring up the device.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	RenderPipeline *wgpu.RenderPipeline
	AOTexture      *wgpu.Texture
	AOView         *wgpu.TextureView
	Sampler        *wgpu.Sampler
	RenderBG       *wgpu.BindGroup

	Viewport Viewport
	Log      log.Logger

	session    *gpu.BakeSession
	mapW, mapH uint32
}

func NewApp(window *glfw.Window, logger log.Logger) *App {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &App{Window: window, Log: logger}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)

	opts := &wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	}
	if a.Window != nil {
		a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))
		opts.CompatibleSurface = a.Surface
	}

	adapter, err := a.Instance.RequestAdapter(opts)
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	a.Queue = a.Device.GetQueue()

	if a.Window == nil {
		return nil
	}

	width, height := a.Window.GetFramebufferSize()
	a.Viewport = Viewport{Width: width, Height: height}

	caps := a.Surface.GetCapabilities(adapter)
	format := caps.Formats[0]
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	blitModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Blit VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BlitWGSL},
	})
	if err != nil {
		return err
	}
	a.RenderPipeline, err = a.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     blitModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     blitModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xffffffff,
		},
	})
	if err != nil {
		return err
	}

	a.Sampler, err = a.Device.CreateSampler(nil)
	return err
}

// ShowMap uploads a baked map for the preview blit. The texture is
// reused across frames as long as the map size stays the same.
func (a *App) ShowMap(m *bake.AOMap) error {
	if a.Window == nil {
		return nil
	}

	if a.AOTexture == nil || a.mapW != m.Width || a.mapH != m.Height {
		if a.AOTexture != nil {
			a.AOTexture.Release()
		}
		if a.RenderBG != nil {
			a.RenderBG.Release()
			a.RenderBG = nil
		}

		var err error
		a.AOTexture, err = a.Device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "AO Map",
			Size:          wgpu.Extent3D{Width: m.Width, Height: m.Height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        wgpu.TextureFormatRGBA8Unorm,
			Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		})
		if err != nil {
			return err
		}
		a.AOView, err = a.AOTexture.CreateView(nil)
		if err != nil {
			return err
		}
		a.mapW, a.mapH = m.Width, m.Height
	}

	img := m.Image()
	a.Queue.WriteTexture(
		a.AOTexture.AsImageCopy(),
		img.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride),
			RowsPerImage: m.Height,
		},
		&wgpu.Extent3D{Width: m.Width, Height: m.Height, DepthOrArrayLayers: 1},
	)

	if a.RenderBG == nil {
		var err error
		a.RenderBG, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout: a.RenderPipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: a.AOView},
				{Binding: 1, Sampler: a.Sampler},
			},
		})
		return err
	}
	return nil
}

func (a *App) Resize(width, height int) {
	if width > 0 && height > 0 && a.Config != nil {
		a.Viewport = Viewport{Width: width, Height: height}
		a.Config.Width = uint32(width)
		a.Config.Height = uint32(height)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
	}
}

func (a *App) Render() {
	if a.Window == nil || a.RenderBG == nil {
		return
	}
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Log.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Log.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		a.Log.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rPass.SetPipeline(a.RenderPipeline)
	rPass.SetBindGroup(0, a.RenderBG, nil)
	rPass.Draw(3, 1, 0, 0)
	if err := rPass.End(); err != nil {
		a.Log.Errorf("render pass End failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.Log.Errorf("encoder Finish failed: %v", err)
		return
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()
}

// Rebake runs the retained device bake again and refreshes the preview
// texture. The full estimate is recomputed; there is no accumulation
// across frames. Returns the new map, or nil when no device session is
// held (CPU bakes are not repeated).
func (a *App) Rebake() (*bake.AOMap, error) {
	if a.session == nil {
		return nil, nil
	}
	m, err := a.session.Bake()
	if err != nil {
		return nil, err
	}
	if err := a.ShowMap(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Close releases the bake session's device resources.
func (a *App) Close() {
	if a.session != nil {
		a.session.Release()
		a.session = nil
	}
}

// WritePNG exports a baked map.
func WritePNG(path string, m *bake.AOMap) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, m.Image()); err != nil {
		return fmt.Errorf("app: encode %s: %w", path, err)
	}
	return nil
}

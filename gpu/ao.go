package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/aobake/aobake/bake"
	"github.com/aobake/aobake/core"
	"github.com/aobake/aobake/shaders"
)

// AOPass owns the bake compute pipeline and its bind group.
type AOPass struct {
	Pipeline  *wgpu.ComputePipeline
	BindGroup *wgpu.BindGroup
}

// NewAOPass compiles the bake kernel and binds the builder's buffers.
// Call after the builder has uploaded every input.
func NewAOPass(b *Builder) (*AOPass, error) {
	module, err := b.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "AO Bake CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.AOBakeWGSL},
	})
	if err != nil {
		return nil, err
	}

	pass := &AOPass{}
	pass.Pipeline, err = b.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "AO Bake Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, err
	}

	pass.BindGroup, err = b.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: pass.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.ParamsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: b.TLASBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: b.NodesBuf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: b.TrisBuf, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: b.InstancesBuf, Size: wgpu.WholeSize},
			{Binding: 5, Buffer: b.GBufferBuf, Size: wgpu.WholeSize},
			{Binding: 6, Buffer: b.OutputBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, err
	}
	return pass, nil
}

func (p *AOPass) Release() {
	if p.BindGroup != nil {
		p.BindGroup.Release()
		p.BindGroup = nil
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}

// Dispatch runs the kernel over the whole atlas and waits for it.
func (p *AOPass) Dispatch(b *Builder, params core.AtlasParams) error {
	encoder, err := b.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	cp := encoder.BeginComputePass(nil)
	cp.SetPipeline(p.Pipeline)
	cp.SetBindGroup(0, p.BindGroup, nil)
	cp.DispatchWorkgroups((params.Width+7)/8, (params.Height+7)/8, 1)
	cp.End()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.Queue.Submit(cmd)
	b.Device.Poll(true, nil)
	return nil
}

// BakeSession holds everything a repeated bake needs resident: the
// builder's buffers and the compiled pass. Inputs are uploaded once;
// Bake may be called once per frame.
type BakeSession struct {
	Builder *Builder
	Pass    *AOPass
	Params  core.AtlasParams
}

// NewBakeSession uploads the G-buffer and parameter block and compiles
// the bake pass. The builder must already hold the acceleration
// structures.
func NewBakeSession(b *Builder, gb *bake.GBuffer, params core.AtlasParams) (*BakeSession, error) {
	if err := b.UploadBakeInputs(gb.Bytes(), params); err != nil {
		return nil, err
	}
	pass, err := NewAOPass(b)
	if err != nil {
		return nil, err
	}
	return &BakeSession{Builder: b, Pass: pass, Params: params}, nil
}

// Bake dispatches the full estimate and reads the map back.
func (s *BakeSession) Bake() (*bake.AOMap, error) {
	if err := s.Pass.Dispatch(s.Builder, s.Params); err != nil {
		return nil, err
	}
	values, err := s.Builder.ReadOutput(s.Params)
	if err != nil {
		return nil, err
	}
	return &bake.AOMap{Width: s.Params.Width, Height: s.Params.Height, Values: values}, nil
}

func (s *BakeSession) Release() {
	s.Pass.Release()
	s.Builder.Release()
}

// BakeGPU runs one full device-side bake: upload the G-buffer and
// parameters, dispatch, read back.
func BakeGPU(b *Builder, gb *bake.GBuffer, params core.AtlasParams) (*bake.AOMap, error) {
	session, err := NewBakeSession(b, gb, params)
	if err != nil {
		return nil, err
	}
	defer session.Pass.Release()
	return session.Bake()
}

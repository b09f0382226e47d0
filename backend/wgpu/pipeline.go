//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/internal/logging"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// pipeline is a kernel compiled for one workgroup extent. Bindings
// 0..n-1 are the kernel's slots in order, binding n is the parameter
// block.
type pipeline struct {
	kernel *compute.Kernel
	local  compute.Size

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	raw        hal.ComputePipeline
}

func (p *pipeline) Kernel() *compute.Kernel  { return p.kernel }
func (p *pipeline) LocalSize() compute.Size { return p.local }

// CreatePipeline implements compute.Device.
func (d *Device) CreatePipeline(k *compute.Kernel, local compute.Size) (compute.Pipeline, error) {
	if !local.Valid() {
		return nil, fmt.Errorf("%w: workgroup %s", compute.ErrInvalidSize, local)
	}
	code, err := compileKernel(k, local)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}

	p := &pipeline{kernel: k, local: local}
	if err := d.buildPipeline(p, code); err != nil {
		d.destroyPipeline(p)
		return nil, err
	}
	logging.Logger().Debug("wgpu: pipeline created", "kernel", k.Name(), "local", local, "spirv_words", len(code))
	return p, nil
}

func (d *Device) buildPipeline(p *pipeline, code []uint32) error {
	name := p.kernel.Name()
	var err error
	p.shader, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return fmt.Errorf("create %s shader module: %w", name, err)
	}

	p.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   name + "_bind_layout",
		Entries: layoutEntries(p.kernel),
	})
	if err != nil {
		return fmt.Errorf("create %s bind group layout: %w", name, err)
	}

	p.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: name + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create %s pipeline layout: %w", name, err)
	}

	p.raw, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: name + "_pipeline", Layout: p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create %s compute pipeline: %w", name, err)
	}
	return nil
}

func layoutEntries(k *compute.Kernel) []gputypes.BindGroupLayoutEntry {
	slots := k.Slots()
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(slots)+1)
	for i, kind := range slots {
		typ := gputypes.BufferBindingTypeReadOnlyStorage
		if kind == compute.SlotOutput {
			typ = gputypes.BufferBindingTypeStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i), //nolint:gosec // slot count is small
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		})
	}
	return append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    uint32(len(slots)), //nolint:gosec // slot count is small
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})
}

// ReleasePipeline implements compute.Device.
func (d *Device) ReleasePipeline(cp compute.Pipeline) {
	p, ok := cp.(*pipeline)
	if !ok || p == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.destroyPipeline(p)
}

func (d *Device) destroyPipeline(p *pipeline) {
	if p.raw != nil {
		d.device.DestroyComputePipeline(p.raw)
		p.raw = nil
	}
	if p.pipeLayout != nil {
		d.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		d.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		d.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

//go:build !nogpu

package wgpu

import (
	"context"
	"fmt"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/internal/logging"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// submission holds the per-dispatch resources of one Submit. They live
// until the fence signals.
type submission struct {
	uniforms   []hal.Buffer
	bindGroups []hal.BindGroup
}

func (s *submission) destroy(device hal.Device) {
	for _, bg := range s.bindGroups {
		if bg != nil {
			device.DestroyBindGroup(bg)
		}
	}
	for _, ub := range s.uniforms {
		if ub != nil {
			device.DestroyBuffer(ub)
		}
	}
}

// Submit implements compute.Device. All dispatches are encoded into one
// command buffer with a compute pass each, then submitted and waited on.
// A failed submission runs as a whole or not at all, so every flip of
// cmd is undone.
func (d *Device) Submit(ctx context.Context, cmd *compute.CommandBuffer) error {
	if cmd == nil {
		return compute.ErrEmptyCommandBuffer
	}
	if err := d.submit(ctx, cmd); err != nil {
		cmd.Discard()
		return err
	}
	return nil
}

func (d *Device) submit(ctx context.Context, cmd *compute.CommandBuffer) error {
	if err := cmd.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}
	dispatches := cmd.Dispatches()
	if len(dispatches) == 0 {
		return nil
	}

	var sub submission
	defer sub.destroy(d.device)
	for i := range dispatches {
		if err := d.bind(&sub, &dispatches[i]); err != nil {
			return fmt.Errorf("%s dispatch %d: %w", cmd.Label(), i, err)
		}
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: cmd.Label() + "_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(cmd.Label()); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	for i := range dispatches {
		dp := &dispatches[i]
		p := dp.Pipeline.(*pipeline)
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: p.kernel.Name()})
		pass.SetPipeline(p.raw)
		pass.SetBindGroup(0, sub.bindGroups[i], nil)
		pass.Dispatch(uint32(dp.WorkSize.Width), uint32(dp.WorkSize.Height), 1) //nolint:gosec // workgroup counts fit uint32
		pass.End()
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	logging.Logger().Debug("wgpu: submit", "label", cmd.Label(), "dispatches", len(dispatches))
	return d.submitAndWait(cmdBuf, waitTimeout(ctx))
}

// bind uploads the parameter block of dp and creates its bind group.
func (d *Device) bind(sub *submission, dp *compute.Dispatch) error {
	p, ok := dp.Pipeline.(*pipeline)
	if !ok || p.raw == nil {
		return fmt.Errorf("wgpu: pipeline of %s belongs to another device or was released", dp.Kernel().Name())
	}
	k := p.kernel

	params := compute.EncodeParams(k, dp.Batch.Domain, dp.Bindings, dp.Batch.Constants)
	ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: k.Name() + "_params", Size: uint64(len(params)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%w: params buffer: %w", compute.ErrResourceCreation, err)
	}
	sub.uniforms = append(sub.uniforms, ub)
	d.queue.WriteBuffer(ub, 0, params)

	entries := make([]gputypes.BindGroupEntry, 0, len(dp.Bindings)+1)
	for i, b := range dp.Bindings {
		buf, err := d.gpuBuffer(b.Buffer())
		if err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i), //nolint:gosec // slot count is small
			Resource: gputypes.BufferBinding{Buffer: buf.raw.NativeHandle(), Offset: 0, Size: buf.bytes},
		})
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  uint32(len(dp.Bindings)), //nolint:gosec // slot count is small
		Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: uint64(len(params))},
	})

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: k.Name() + "_bind", Layout: p.bindLayout, Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%w: bind group: %w", compute.ErrResourceCreation, err)
	}
	sub.bindGroups = append(sub.bindGroups, bg)
	return nil
}

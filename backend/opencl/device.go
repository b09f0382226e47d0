//go:build opencl

package opencl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/KangWeon/Vortex2D/backend"
	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/internal/logging"
	"github.com/jgillich/go-opencl/cl"
)

func init() {
	backend.Register(backend.OpenCL, func(backend.Config) (compute.Device, error) {
		return New()
	})
}

// Device runs kernels on one OpenCL device.
type Device struct {
	mu sync.Mutex

	context *cl.Context
	queue   *cl.CommandQueue
	device  *cl.Device
	name    string

	buffers map[*buffer]struct{}
	closed  bool
}

type buffer struct {
	label string
	size  compute.Size
	mem   *cl.MemObject
}

func (b *buffer) Label() string      { return b.label }
func (b *buffer) Size() compute.Size { return b.size }

type pipeline struct {
	kernel  *compute.Kernel
	local   compute.Size
	program *cl.Program
	raw     *cl.Kernel
}

func (p *pipeline) Kernel() *compute.Kernel  { return p.kernel }
func (p *pipeline) LocalSize() compute.Size { return p.local }

// New opens the first GPU of any platform, falling back to a CPU device.
func New() (*Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms"
		}
		return nil, fmt.Errorf("%w: %s: %w", backend.ErrBackendNotAvailable, msg, err)
	}
	device := firstDevice(platforms, cl.DeviceTypeGPU)
	if device == nil {
		device = firstDevice(platforms, cl.DeviceTypeCPU)
	}
	if device == nil {
		return nil, fmt.Errorf("%w: no suitable OpenCL devices found", backend.ErrBackendNotAvailable)
	}

	ctx, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("%w: creating OpenCL context: %w", backend.ErrBackendNotAvailable, err)
	}
	queue, err := ctx.CreateCommandQueue(device, 0)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("%w: creating OpenCL command queue: %w", backend.ErrBackendNotAvailable, err)
	}

	d := &Device{
		context: ctx,
		queue:   queue,
		device:  device,
		name:    "opencl (" + device.Name() + ")",
		buffers: make(map[*buffer]struct{}),
	}
	logging.Logger().Info("opencl: device opened", "device", device.Name())
	return d, nil
}

func firstDevice(platforms []*cl.Platform, typ cl.DeviceType) *cl.Device {
	for _, p := range platforms {
		devices, err := p.GetDevices(typ)
		if err != nil && !errors.Is(err, cl.ErrDeviceNotFound) {
			continue
		}
		if len(devices) > 0 {
			return devices[0]
		}
	}
	return nil
}

// Name implements compute.Device.
func (d *Device) Name() string { return d.name }

// CreateBuffer implements compute.Device.
func (d *Device) CreateBuffer(label string, size compute.Size) (compute.Buffer, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: opencl buffer %q: %w", compute.ErrResourceCreation, label, compute.ErrInvalidSize)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}
	mem, err := d.context.CreateEmptyBuffer(cl.MemReadWrite, 4*size.Cells())
	if err != nil {
		return nil, fmt.Errorf("%w: opencl buffer %q: %w", compute.ErrResourceCreation, label, err)
	}
	if _, err := d.queue.EnqueueWriteBufferFloat32(mem, true, 0, make([]float32, size.Cells()), nil); err != nil {
		mem.Release()
		return nil, fmt.Errorf("%w: clearing opencl buffer %q: %w", compute.ErrResourceCreation, label, err)
	}
	b := &buffer{label: label, size: size, mem: mem}
	d.buffers[b] = struct{}{}
	return b, nil
}

func (d *Device) clBuffer(buf compute.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	switch {
	case d.closed:
		return nil, compute.ErrDeviceClosed
	case buf == nil || (ok && b == nil):
		return nil, compute.ErrNilBuffer
	case !ok:
		return nil, fmt.Errorf("opencl: buffer %q belongs to another device", buf.Label())
	case b.mem == nil:
		return nil, fmt.Errorf("opencl: buffer %q used after release", b.label)
	}
	return b, nil
}

// WriteBuffer implements compute.Device.
func (d *Device) WriteBuffer(buf compute.Buffer, data []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.clBuffer(buf)
	if err != nil {
		return err
	}
	if len(data) != b.size.Cells() {
		return fmt.Errorf("%w: write %d values into %s buffer %q", compute.ErrSizeMismatch, len(data), b.size, b.label)
	}
	if _, err := d.queue.EnqueueWriteBufferFloat32(b.mem, true, 0, data, nil); err != nil {
		return fmt.Errorf("writing %q: %w", b.label, err)
	}
	return nil
}

// ReadBuffer implements compute.Device.
func (d *Device) ReadBuffer(buf compute.Buffer, dst []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.clBuffer(buf)
	if err != nil {
		return err
	}
	if len(dst) != b.size.Cells() {
		return fmt.Errorf("%w: read %s buffer %q into %d values", compute.ErrSizeMismatch, b.size, b.label, len(dst))
	}
	if _, err := d.queue.EnqueueReadBufferFloat32(b.mem, true, 0, dst, nil); err != nil {
		return fmt.Errorf("reading %q: %w", b.label, err)
	}
	return nil
}

// ReleaseBuffer implements compute.Device.
func (d *Device) ReleaseBuffer(buf compute.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.mem == nil {
		return
	}
	b.mem.Release()
	b.mem = nil
	delete(d.buffers, b)
}

// CreatePipeline implements compute.Device.
func (d *Device) CreatePipeline(k *compute.Kernel, local compute.Size) (compute.Pipeline, error) {
	if !local.Valid() {
		return nil, fmt.Errorf("%w: workgroup %s", compute.ErrInvalidSize, local)
	}
	if k.OpenCL() == "" {
		return nil, fmt.Errorf("%w: %s has no OpenCL source", compute.ErrUnknownKernel, k.Name())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}

	program, err := d.context.CreateProgramWithSource([]string{k.OpenCL()})
	if err != nil {
		return nil, fmt.Errorf("creating %s program: %w", k.Name(), err)
	}
	if err := program.BuildProgram([]*cl.Device{d.device}, ""); err != nil {
		program.Release()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building %s program: %s", k.Name(), string(buildErr))
		}
		return nil, fmt.Errorf("building %s program: %w", k.Name(), err)
	}
	raw, err := program.CreateKernel(k.Name())
	if err != nil {
		program.Release()
		return nil, fmt.Errorf("creating %s kernel: %w", k.Name(), err)
	}
	logging.Logger().Debug("opencl: pipeline created", "kernel", k.Name(), "local", local)
	return &pipeline{kernel: k, local: local, program: program, raw: raw}, nil
}

// ReleasePipeline implements compute.Device.
func (d *Device) ReleasePipeline(cp compute.Pipeline) {
	p, ok := cp.(*pipeline)
	if !ok || p == nil || p.raw == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p.raw.Release()
	p.program.Release()
	p.raw, p.program = nil, nil
}

// Submit implements compute.Device. Dispatches are enqueued in order and
// Submit returns after the queue drained.
func (d *Device) Submit(ctx context.Context, cmd *compute.CommandBuffer) error {
	if cmd == nil {
		return compute.ErrEmptyCommandBuffer
	}
	if err := cmd.Err(); err != nil {
		cmd.Discard()
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		cmd.Discard()
		return compute.ErrDeviceClosed
	}

	var params []*cl.MemObject
	defer func() {
		for _, m := range params {
			m.Release()
		}
	}()

	dispatches := cmd.Dispatches()
	for i := range dispatches {
		if err := ctx.Err(); err != nil {
			d.abort(cmd, i)
			return err
		}
		mem, err := d.enqueue(&dispatches[i])
		if mem != nil {
			params = append(params, mem)
		}
		if err != nil {
			d.abort(cmd, i)
			return fmt.Errorf("%s dispatch %d: %w", cmd.Label(), i, err)
		}
	}
	if err := d.queue.Finish(); err != nil {
		cmd.Discard()
		return fmt.Errorf("opencl: finish: %w", err)
	}
	logging.Logger().Debug("opencl: submit", "label", cmd.Label(), "dispatches", len(dispatches))
	return nil
}

// abort drains the dispatches already enqueued and rolls cmd back to
// them.
func (d *Device) abort(cmd *compute.CommandBuffer, enqueued int) {
	if err := d.queue.Finish(); err != nil {
		cmd.Discard()
		return
	}
	cmd.Rollback(enqueued)
}

func (d *Device) enqueue(dp *compute.Dispatch) (*cl.MemObject, error) {
	p, ok := dp.Pipeline.(*pipeline)
	if !ok || p.raw == nil {
		return nil, fmt.Errorf("opencl: pipeline of %s belongs to another device or was released", dp.Kernel().Name())
	}

	block := compute.EncodeParams(p.kernel, dp.Batch.Domain, dp.Bindings, dp.Batch.Constants)
	mem, err := d.context.CreateEmptyBuffer(cl.MemReadOnly, len(block))
	if err != nil {
		return nil, fmt.Errorf("%w: params buffer: %w", compute.ErrResourceCreation, err)
	}
	if _, err := d.queue.EnqueueWriteBuffer(mem, true, 0, len(block), unsafe.Pointer(&block[0]), nil); err != nil {
		return mem, fmt.Errorf("writing params: %w", err)
	}

	args := make([]any, 0, len(dp.Bindings)+1)
	for i, b := range dp.Bindings {
		buf, err := d.clBuffer(b.Buffer())
		if err != nil {
			return mem, fmt.Errorf("slot %d: %w", i, err)
		}
		args = append(args, buf.mem)
	}
	args = append(args, mem)
	if err := p.raw.SetArgs(args...); err != nil {
		return mem, fmt.Errorf("setting %s arguments: %w", p.kernel.Name(), err)
	}

	local := []int{p.local.Width, p.local.Height}
	global := []int{dp.WorkSize.Width * p.local.Width, dp.WorkSize.Height * p.local.Height}
	ev, err := d.queue.EnqueueNDRangeKernel(p.raw, nil, global, local, nil)
	if err != nil {
		return mem, fmt.Errorf("enqueueing %s: %w", p.kernel.Name(), err)
	}
	ev.Release()
	return mem, nil
}

// Close implements compute.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if len(d.buffers) > 0 {
		logging.Logger().Warn("opencl: closing with live buffers", "count", len(d.buffers))
	}
	for b := range d.buffers {
		b.mem.Release()
		b.mem = nil
	}
	d.buffers = nil
	d.queue.Release()
	d.context.Release()
	return nil
}

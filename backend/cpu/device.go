// Package cpu implements compute.Device on the host.
//
// Each dispatch is split into its workgroups and the workgroups run on a
// work-stealing goroutine pool; the dispatch returns only after all of
// them finished, so the next dispatch sees every write. With one worker
// the device is fully deterministic, which makes it the reference backend
// for kernel tests.
package cpu

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/KangWeon/Vortex2D/backend"
	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/internal/logging"
	"github.com/KangWeon/Vortex2D/internal/parallel"
)

func init() {
	backend.Register(backend.CPU, func(cfg backend.Config) (compute.Device, error) {
		return New(cfg.Workers), nil
	})
}

// Device runs kernels' CPU cell functions.
type Device struct {
	pool *parallel.WorkerPool

	// submitMu serialises Submit calls into one logical stream.
	submitMu sync.Mutex
	closed   atomic.Bool
	live     atomic.Int64
}

type buffer struct {
	label string
	size  compute.Size
	data  []float32
}

func (b *buffer) Label() string      { return b.label }
func (b *buffer) Size() compute.Size { return b.size }

type pipeline struct {
	kernel *compute.Kernel
	local  compute.Size
	fn     compute.CellFunc
}

func (p *pipeline) Kernel() *compute.Kernel  { return p.kernel }
func (p *pipeline) LocalSize() compute.Size { return p.local }

// New creates a device with the given worker count (0 = GOMAXPROCS).
func New(workers int) *Device {
	return &Device{pool: parallel.NewWorkerPool(workers)}
}

// Name implements compute.Device.
func (d *Device) Name() string {
	return fmt.Sprintf("cpu (%d workers)", d.pool.Workers())
}

// LiveBuffers returns the number of allocated, unreleased buffers.
func (d *Device) LiveBuffers() int {
	return int(d.live.Load())
}

// CreateBuffer implements compute.Device.
func (d *Device) CreateBuffer(label string, size compute.Size) (compute.Buffer, error) {
	if d.closed.Load() {
		return nil, compute.ErrDeviceClosed
	}
	if !size.Valid() {
		return nil, fmt.Errorf("%w: cpu buffer %q: %w", compute.ErrResourceCreation, label, compute.ErrInvalidSize)
	}
	d.live.Add(1)
	return &buffer{label: label, size: size, data: make([]float32, size.Cells())}, nil
}

func (d *Device) host(buf compute.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	switch {
	case buf == nil || (ok && b == nil):
		return nil, compute.ErrNilBuffer
	case !ok:
		return nil, fmt.Errorf("cpu: buffer %q belongs to another device", buf.Label())
	case b.data == nil:
		return nil, fmt.Errorf("cpu: buffer %q used after release", b.label)
	}
	return b, nil
}

// WriteBuffer implements compute.Device.
func (d *Device) WriteBuffer(buf compute.Buffer, data []float32) error {
	b, err := d.host(buf)
	if err != nil {
		return err
	}
	if len(data) != len(b.data) {
		return fmt.Errorf("%w: write %d values into %s buffer %q", compute.ErrSizeMismatch, len(data), b.size, b.label)
	}
	copy(b.data, data)
	return nil
}

// ReadBuffer implements compute.Device.
func (d *Device) ReadBuffer(buf compute.Buffer, dst []float32) error {
	b, err := d.host(buf)
	if err != nil {
		return err
	}
	if len(dst) != len(b.data) {
		return fmt.Errorf("%w: read %s buffer %q into %d values", compute.ErrSizeMismatch, b.size, b.label, len(dst))
	}
	copy(dst, b.data)
	return nil
}

// ReleaseBuffer implements compute.Device.
func (d *Device) ReleaseBuffer(buf compute.Buffer) {
	if b, ok := buf.(*buffer); ok && b != nil && b.data != nil {
		b.data = nil
		d.live.Add(-1)
	}
}

// CreatePipeline implements compute.Device.
func (d *Device) CreatePipeline(k *compute.Kernel, local compute.Size) (compute.Pipeline, error) {
	if d.closed.Load() {
		return nil, compute.ErrDeviceClosed
	}
	if k.CPU() == nil {
		return nil, fmt.Errorf("%w: %s has no CPU implementation", compute.ErrUnknownKernel, k.Name())
	}
	if !local.Valid() {
		return nil, fmt.Errorf("%w: workgroup %s", compute.ErrInvalidSize, local)
	}
	return &pipeline{kernel: k, local: local, fn: k.CPU()}, nil
}

// ReleasePipeline implements compute.Device. CPU pipelines hold no
// resources.
func (d *Device) ReleasePipeline(compute.Pipeline) {}

// Submit implements compute.Device.
func (d *Device) Submit(ctx context.Context, cmd *compute.CommandBuffer) error {
	if cmd == nil {
		return compute.ErrEmptyCommandBuffer
	}
	if err := cmd.Err(); err != nil {
		cmd.Discard()
		return err
	}
	if d.closed.Load() {
		cmd.Discard()
		return compute.ErrDeviceClosed
	}

	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	dispatches := cmd.Dispatches()
	for i := range dispatches {
		if err := ctx.Err(); err != nil {
			cmd.Rollback(i)
			return fmt.Errorf("cpu: %s dispatch %d: %w", cmd.Label(), i, err)
		}
		if err := d.dispatch(&dispatches[i]); err != nil {
			cmd.Rollback(i)
			return fmt.Errorf("cpu: %s dispatch %d: %w", cmd.Label(), i, err)
		}
	}
	logging.Logger().Debug("cpu: submitted", "label", cmd.Label(), "dispatches", len(dispatches))
	return nil
}

func (d *Device) dispatch(ds *compute.Dispatch) error {
	p, ok := ds.Pipeline.(*pipeline)
	if !ok {
		return fmt.Errorf("%w: pipeline %T was not created by the cpu device", compute.ErrUnknownKernel, ds.Pipeline)
	}
	slots := p.kernel.Slots()
	views := make([]compute.View, len(ds.Bindings))
	for i, binding := range ds.Bindings {
		b, err := d.host(binding.Buffer())
		if err != nil {
			return fmt.Errorf("%s slot %d: %w", p.kernel.Name(), i, err)
		}
		views[i] = compute.View{Data: b.data, Size: b.size, Kind: slots[i]}
		if s, ok := binding.Sampler(); ok {
			views[i].Sampler = s
		}
	}

	domain := ds.Batch.Domain
	local := ds.Batch.WorkgroupSize
	tasks := make([]func(), 0, ds.WorkSize.Cells())
	for wy := range ds.WorkSize.Height {
		for wx := range ds.WorkSize.Width {
			x0, y0 := wx*local.Width, wy*local.Height
			x1 := min(x0+local.Width, domain.Width)
			y1 := min(y0+local.Height, domain.Height)
			tasks = append(tasks, func() {
				cell := compute.Cell{Domain: domain, Constants: ds.Batch.Constants, Views: views}
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						cell.X, cell.Y = x, y
						p.fn(&cell)
					}
				}
			})
		}
	}
	d.pool.ExecuteAll(tasks)
	return nil
}

// Close stops the worker pool.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.pool.Close()
	return nil
}

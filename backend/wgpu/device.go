//go:build !nogpu

package wgpu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/KangWeon/Vortex2D/backend"
	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/internal/logging"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// DefaultTimeout bounds the wait for one submission when the context
// carries no deadline.
const DefaultTimeout = 10 * time.Second

func init() {
	backend.Register(backend.GPU, func(backend.Config) (compute.Device, error) {
		return New()
	})
}

// Device runs kernels as compute pipelines on a HAL device.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string

	buffers  map[*buffer]struct{}
	external bool // shared device: Close does not destroy it
	closed   bool
}

type buffer struct {
	label string
	size  compute.Size
	bytes uint64
	raw   hal.Buffer
}

func (b *buffer) Label() string      { return b.label }
func (b *buffer) Size() compute.Size { return b.size }

// New opens the first discrete or integrated GPU of the Vulkan backend,
// falling back to the first adapter found.
func New() (*Device, error) {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", backend.ErrBackendNotAvailable)
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", backend.ErrBackendNotAvailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", backend.ErrBackendNotAvailable)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", backend.ErrBackendNotAvailable, err)
	}

	d := newDevice(openDev.Device, openDev.Queue, "gpu ("+selected.Info.Name+")")
	d.instance = instance
	logging.Logger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// NewDeviceFromProvider wraps the device of a host application. The
// provider must expose HalDevice() and HalQueue() returning hal.Device
// and hal.Queue.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("wgpu: provider HalQueue is not hal.Queue")
	}
	d := newDevice(device, queue, "gpu (shared)")
	d.external = true
	logging.Logger().Info("wgpu: using shared device")
	return d, nil
}

func newDevice(device hal.Device, queue hal.Queue, name string) *Device {
	return &Device{
		device:  device,
		queue:   queue,
		name:    name,
		buffers: make(map[*buffer]struct{}),
	}
}

// Name implements compute.Device.
func (d *Device) Name() string { return d.name }

// CreateBuffer implements compute.Device.
func (d *Device) CreateBuffer(label string, size compute.Size) (compute.Buffer, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: gpu buffer %q: %w", compute.ErrResourceCreation, label, compute.ErrInvalidSize)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}

	n := uint64(size.Cells()) * 4 //nolint:gosec // validated positive
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label, Size: n,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gpu buffer %q: %w", compute.ErrResourceCreation, label, err)
	}
	b := &buffer{label: label, size: size, bytes: n, raw: raw}
	// Storage is not guaranteed to start zeroed.
	d.queue.WriteBuffer(raw, 0, make([]byte, n))
	d.buffers[b] = struct{}{}
	return b, nil
}

func (d *Device) gpuBuffer(buf compute.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	switch {
	case d.closed:
		return nil, compute.ErrDeviceClosed
	case buf == nil || (ok && b == nil):
		return nil, compute.ErrNilBuffer
	case !ok:
		return nil, fmt.Errorf("wgpu: buffer %q belongs to another device", buf.Label())
	case b.raw == nil:
		return nil, fmt.Errorf("wgpu: buffer %q used after release", b.label)
	}
	return b, nil
}

// WriteBuffer implements compute.Device.
func (d *Device) WriteBuffer(buf compute.Buffer, data []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.gpuBuffer(buf)
	if err != nil {
		return err
	}
	if len(data) != b.size.Cells() {
		return fmt.Errorf("%w: write %d values into %s buffer %q", compute.ErrSizeMismatch, len(data), b.size, b.label)
	}
	d.queue.WriteBuffer(b.raw, 0, encodeFloats(data))
	return nil
}

// ReadBuffer implements compute.Device. It copies buf into a staging
// buffer and waits for the copy.
func (d *Device) ReadBuffer(buf compute.Buffer, dst []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.gpuBuffer(buf)
	if err != nil {
		return err
	}
	if len(dst) != b.size.Cells() {
		return fmt.Errorf("%w: read %s buffer %q into %d values", compute.ErrSizeMismatch, b.size, b.label, len(dst))
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label + ".staging", Size: b.bytes,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%w: staging buffer: %w", compute.ErrResourceCreation, err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: b.bytes},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	if err := d.submitAndWait(cmdBuf, DefaultTimeout); err != nil {
		return err
	}

	raw := make([]byte, b.bytes)
	if err := d.queue.ReadBuffer(staging, 0, raw); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	decodeFloats(raw, dst)
	return nil
}

// ReleaseBuffer implements compute.Device.
func (d *Device) ReleaseBuffer(buf compute.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.raw == nil {
		return
	}
	if !d.closed {
		d.device.DestroyBuffer(b.raw)
	}
	b.raw = nil
	delete(d.buffers, b)
}

func (d *Device) submitAndWait(cmdBuf hal.CommandBuffer, timeout time.Duration) error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := d.device.Wait(fence, 1, timeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// Close implements compute.Device. Buffers still alive are destroyed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	if len(d.buffers) > 0 {
		logging.Logger().Warn("wgpu: closing with live buffers", "count", len(d.buffers))
	}
	for b := range d.buffers {
		d.device.DestroyBuffer(b.raw)
		b.raw = nil
	}
	d.buffers = nil

	if !d.external {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
	return nil
}

func encodeFloats(data []float32) []byte {
	out := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeFloats(raw []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
}

// waitTimeout returns how long Submit may wait for the GPU under ctx.
func waitTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return max(time.Until(deadline), time.Millisecond)
	}
	return DefaultTimeout
}

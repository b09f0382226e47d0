package cpu

import (
	"context"
	"errors"
	"testing"

	"github.com/KangWeon/Vortex2D/backend"
	"github.com/KangWeon/Vortex2D/compute"
)

var (
	// stamp counts how often each cell runs.
	stamp = compute.NewKernel("stamp").Input().Output().CPU(func(c *compute.Cell) {
		c.Store(1, c.Load(0)+1)
	}).MustBuild()

	// shift reads its left neighbour, so it observes the previous dispatch.
	shift = compute.NewKernel("shift").Input().Output().CPU(func(c *compute.Cell) {
		c.Store(1, c.LoadAt(0, c.X-1, c.Y))
	}).MustBuild()

	// paint writes its constant into every cell.
	paint = compute.NewKernel("paint").Output().Constants(1).CPU(func(c *compute.Cell) {
		c.Store(0, c.Float32(0))
	}).MustBuild()

	gpuOnly = compute.NewKernel("gpu_only").Output().WGSL("fn main() {}").MustBuild()
)

func newDevice(t *testing.T, workers int) (*Device, *compute.PipelineCache) {
	t.Helper()
	dev := New(workers)
	pc := compute.NewPipelineCache(dev, 0)
	t.Cleanup(func() {
		pc.Close()
		_ = dev.Close()
	})
	return dev, pc
}

func mustBuffer(t *testing.T, dev *Device, label string, size compute.Size) compute.Buffer {
	t.Helper()
	b, err := dev.CreateBuffer(label, size)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// =============================================================================
// Dispatch Tests
// =============================================================================

func TestEveryCellRunsOnce(t *testing.T) {
	for _, domain := range []compute.Size{compute.Sz(1, 1), compute.Sz(17, 33), compute.Sz(300, 1), compute.Sz(64, 64)} {
		t.Run(domain.String(), func(t *testing.T) {
			dev, pc := newDevice(t, 4)
			in := mustBuffer(t, dev, "in", domain)
			out := mustBuffer(t, dev, "out", domain)

			work, err := compute.NewWork(pc, stamp, compute.NewComputeSize(domain))
			if err != nil {
				t.Fatal(err)
			}
			cmd := compute.NewCommandBuffer("stamp")
			work.Record(cmd, nil, compute.BufferRef(in), compute.BufferRef(out))
			work.Record(cmd, nil, compute.BufferRef(out), compute.BufferRef(in))
			if err := dev.Submit(context.Background(), cmd); err != nil {
				t.Fatal(err)
			}

			got := make([]float32, domain.Cells())
			if err := dev.ReadBuffer(in, got); err != nil {
				t.Fatal(err)
			}
			for i, v := range got {
				if v != 2 {
					t.Fatalf("cell %d = %v, want 2", i, v)
				}
			}
		})
	}
}

func TestDispatchOrdering(t *testing.T) {
	dev, pc := newDevice(t, 8)
	domain := compute.Sz(40, 3)
	a := mustBuffer(t, dev, "a", domain)
	b := mustBuffer(t, dev, "b", domain)

	seed := make([]float32, domain.Cells())
	for y := range domain.Height {
		seed[domain.Index(0, y)] = 1
	}
	if err := dev.WriteBuffer(a, seed); err != nil {
		t.Fatal(err)
	}

	work, _ := compute.NewWork(pc, shift, compute.NewComputeSize(domain))
	cmd := compute.NewCommandBuffer("shift")
	src, dst := a, b
	for range domain.Width - 1 {
		work.Record(cmd, nil, compute.BufferRef(src), compute.BufferRef(dst))
		src, dst = dst, src
	}
	if err := dev.Submit(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}

	got := make([]float32, domain.Cells())
	_ = dev.ReadBuffer(src, got)
	for y := range domain.Height {
		for x := range domain.Width {
			want := float32(0)
			if x == domain.Width-1 {
				want = 1
			}
			if got[domain.Index(x, y)] != want {
				t.Fatalf("(%d,%d) = %v, want %v", x, y, got[domain.Index(x, y)], want)
			}
		}
	}
}

func TestSubmitCancelled(t *testing.T) {
	dev, pc := newDevice(t, 2)
	domain := compute.Sz(8, 8)
	in, out := mustBuffer(t, dev, "in", domain), mustBuffer(t, dev, "out", domain)
	work, _ := compute.NewWork(pc, stamp, compute.NewComputeSize(domain))
	cmd := compute.NewCommandBuffer("cancel")
	work.Record(cmd, nil, compute.BufferRef(in), compute.BufferRef(out))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := dev.Submit(ctx, cmd); !errors.Is(err, context.Canceled) {
		t.Errorf("Submit() = %v, want context.Canceled", err)
	}
}

// cancelAfter reports cancellation once Err has been asked n times.
type cancelAfter struct {
	context.Context
	n int
}

func (c *cancelAfter) Err() error {
	if c.n == 0 {
		return context.Canceled
	}
	c.n--
	return nil
}

// pair is a two-buffer ping-pong.
type pair struct {
	bufs  [2]compute.Buffer
	front int
}

func (p *pair) Front() compute.Buffer { return p.bufs[p.front] }
func (p *pair) Back() compute.Buffer  { return p.bufs[1-p.front] }
func (p *pair) Swap()                 { p.front = 1 - p.front }

func TestSubmitCancelledKeepsFront(t *testing.T) {
	dev, pc := newDevice(t, 2)
	domain := compute.Sz(8, 8)
	p := &pair{bufs: [2]compute.Buffer{mustBuffer(t, dev, "a", domain), mustBuffer(t, dev, "b", domain)}}
	ones := make([]float32, domain.Cells())
	for i := range ones {
		ones[i] = 1
	}
	if err := dev.WriteBuffer(p.Front(), ones); err != nil {
		t.Fatal(err)
	}

	work, _ := compute.NewWork(pc, paint, compute.NewComputeSize(domain))
	cmd := compute.NewCommandBuffer("paint")
	for _, v := range []float32{3, 9} {
		work.Record(cmd, compute.Float32s(v), compute.BufferRef(p.Back()))
		cmd.Swap(p)
	}

	ctx := &cancelAfter{Context: context.Background(), n: 1}
	if err := dev.Submit(ctx, cmd); !errors.Is(err, context.Canceled) {
		t.Fatalf("Submit() = %v, want context.Canceled", err)
	}
	got := make([]float32, domain.Cells())
	if err := dev.ReadBuffer(p.Front(), got); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != 3 {
			t.Fatalf("front cell %d = %v, want 3 from the last dispatch that ran", i, v)
		}
	}
}

func TestSubmitRecordingError(t *testing.T) {
	dev, pc := newDevice(t, 1)
	domain := compute.Sz(4, 4)
	in, out := mustBuffer(t, dev, "in", domain), mustBuffer(t, dev, "out", domain)
	work, _ := compute.NewWork(pc, stamp, compute.NewComputeSize(domain))

	cmd := compute.NewCommandBuffer("bad")
	work.Record(cmd, nil, compute.BufferRef(in), compute.BufferRef(out))
	work.Record(cmd, nil, compute.BufferRef(in))
	if err := dev.Submit(context.Background(), cmd); !errors.Is(err, compute.ErrBindingMismatch) {
		t.Fatalf("Submit() = %v, want ErrBindingMismatch", err)
	}
	got := make([]float32, domain.Cells())
	_ = dev.ReadBuffer(out, got)
	for _, v := range got {
		if v != 0 {
			t.Fatal("dispatches ran although recording failed")
		}
	}
}

// =============================================================================
// Resource Tests
// =============================================================================

func TestBufferReadWrite(t *testing.T) {
	dev, _ := newDevice(t, 1)
	b := mustBuffer(t, dev, "b", compute.Sz(2, 2))

	if err := dev.WriteBuffer(b, []float32{1, 2, 3}); !errors.Is(err, compute.ErrSizeMismatch) {
		t.Errorf("short write: %v", err)
	}
	if err := dev.WriteBuffer(b, []float32{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	got := make([]float32, 4)
	if err := dev.ReadBuffer(b, got); err != nil || got[3] != 4 {
		t.Errorf("read = %v, %v", got, err)
	}
	if err := dev.ReadBuffer(b, make([]float32, 5)); !errors.Is(err, compute.ErrSizeMismatch) {
		t.Errorf("long read: %v", err)
	}

	if dev.LiveBuffers() != 1 {
		t.Errorf("LiveBuffers() = %d, want 1", dev.LiveBuffers())
	}
	dev.ReleaseBuffer(b)
	dev.ReleaseBuffer(b)
	if dev.LiveBuffers() != 0 {
		t.Errorf("LiveBuffers() = %d after release, want 0", dev.LiveBuffers())
	}
	if err := dev.ReadBuffer(b, got); err == nil {
		t.Error("read after release succeeded")
	}
}

func TestCreateErrors(t *testing.T) {
	dev, pc := newDevice(t, 1)
	if _, err := dev.CreateBuffer("empty", compute.Sz(0, 3)); !errors.Is(err, compute.ErrResourceCreation) {
		t.Errorf("empty buffer: %v", err)
	}
	if _, err := pc.Get(gpuOnly, compute.DefaultLocalSize); !errors.Is(err, compute.ErrUnknownKernel) {
		t.Errorf("kernel without CPU form: %v", err)
	}

	_ = dev.Close()
	if _, err := dev.CreateBuffer("late", compute.Sz(1, 1)); !errors.Is(err, compute.ErrDeviceClosed) {
		t.Errorf("after Close: %v", err)
	}
	if err := dev.Submit(context.Background(), compute.NewCommandBuffer("late")); !errors.Is(err, compute.ErrDeviceClosed) {
		t.Errorf("Submit after Close: %v", err)
	}
}

func TestRegistered(t *testing.T) {
	dev, err := backend.Open(backend.CPU, backend.Config{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()
	if dev.Name() != "cpu (2 workers)" {
		t.Errorf("Name() = %q", dev.Name())
	}
}

func BenchmarkDispatch256(b *testing.B) {
	dev := New(0)
	defer dev.Close()
	pc := compute.NewPipelineCache(dev, 0)
	domain := compute.Sz(256, 256)
	in, _ := dev.CreateBuffer("in", domain)
	out, _ := dev.CreateBuffer("out", domain)
	work, _ := compute.NewWork(pc, stamp, compute.NewComputeSize(domain))
	cmd := compute.NewCommandBuffer("bench")
	work.Record(cmd, nil, compute.BufferRef(in), compute.BufferRef(out))

	b.ReportAllocs()
	for b.Loop() {
		_ = dev.Submit(context.Background(), cmd)
	}
}

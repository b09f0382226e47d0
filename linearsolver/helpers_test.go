package linearsolver

import (
	"context"
	"math"
	"testing"

	"github.com/KangWeon/Vortex2D/backend/cpu"
	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/grid"
	"gonum.org/v1/gonum/floats"
)

// =============================================================================
// Harness
// =============================================================================

type env struct {
	dev *cpu.Device
	pc  *compute.PipelineCache
}

func newEnv(t testing.TB) *env {
	t.Helper()
	dev := cpu.New(4)
	pc := compute.NewPipelineCache(dev, 0)
	t.Cleanup(func() {
		pc.Close()
		_ = dev.Close()
	})
	return &env{dev: dev, pc: pc}
}

func (e *env) buffer(t testing.TB, label string, size compute.Size, data []float32) compute.Buffer {
	t.Helper()
	b, err := e.dev.CreateBuffer(label, size)
	if err != nil {
		t.Fatal(err)
	}
	if data != nil {
		if err := e.dev.WriteBuffer(b, data); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() { e.dev.ReleaseBuffer(b) })
	return b
}

func (e *env) field(t testing.TB, size compute.Size) *grid.Field {
	t.Helper()
	f, err := grid.NewField(e.dev, "pressure", size)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.Release)
	return f
}

func (e *env) submit(t testing.TB, cmd *compute.CommandBuffer) {
	t.Helper()
	if err := e.dev.Submit(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}
}

func (e *env) read(t testing.TB, b compute.Buffer) []float32 {
	t.Helper()
	out := make([]float32, b.Size().Cells())
	if err := e.dev.ReadBuffer(b, out); err != nil {
		t.Fatal(err)
	}
	return out
}

func filled(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// delta returns a right-hand side that is zero except for 1 at (x, y).
func delta(size compute.Size, x, y int) []float32 {
	out := make([]float32, size.Cells())
	out[size.Index(x, y)] = 1
	return out
}

// hostResidual evaluates rhs - A*p on the host with the same stencil the
// kernels use.
func hostResidual(size compute.Size, p, rhs, w []float32, h2 float32) []float32 {
	r := make([]float32, size.Cells())
	for y := range size.Height {
		for x := range size.Width {
			i := size.Index(x, y)
			if w[i] == 0 {
				continue
			}
			var diag, sum float32
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if !size.Contains(nx, ny) {
					diag += 2
					continue
				}
				j := size.Index(nx, ny)
				diag += w[j]
				sum += w[j] * p[j]
			}
			r[i] = rhs[i] - (diag*p[i]-sum)/h2
		}
	}
	return r
}

func norm(v []float32) float64 {
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	return floats.Norm(f, 2)
}

func maxAbs(v []float32) float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(float64(x)))
	}
	return m
}

package kernels

import (
	"math"
	"testing"

	"github.com/KangWeon/Vortex2D/compute"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// =============================================================================
// Harness
// =============================================================================

// run executes the CPU form of k serially over domain.
func run(k *compute.Kernel, domain compute.Size, constants compute.Constants, views ...compute.View) {
	fn := k.CPU()
	c := &compute.Cell{Domain: domain, Constants: constants, Views: views}
	for y := range domain.Height {
		for x := range domain.Width {
			c.X, c.Y = x, y
			fn(c)
		}
	}
}

func input(size compute.Size, data []float32) compute.View {
	return compute.View{Data: data, Size: size, Kind: compute.SlotInput}
}

func output(size compute.Size) compute.View {
	return compute.View{Data: make([]float32, size.Cells()), Size: size, Kind: compute.SlotOutput}
}

func image(s compute.Sampler, size compute.Size, data []float32) compute.View {
	return compute.View{Data: data, Size: size, Kind: compute.SlotImage, Sampler: s}
}

func constant(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// poissonMatrix builds the dense operator the jacobi and residual kernels
// discretise on an all-fluid domain with unit spacing.
func poissonMatrix(size compute.Size) *mat.Dense {
	n := size.Cells()
	a := mat.NewDense(n, n, nil)
	for y := range size.Height {
		for x := range size.Width {
			i := size.Index(x, y)
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if !size.Contains(nx, ny) {
					a.Set(i, i, a.At(i, i)+2)
					continue
				}
				a.Set(i, i, a.At(i, i)+1)
				a.Set(i, size.Index(nx, ny), -1)
			}
		}
	}
	return a
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// =============================================================================
// Element-wise kernels
// =============================================================================

func TestFillCopyMultiply(t *testing.T) {
	size := compute.Sz(3, 2)

	filled := output(size)
	run(Fill, size, compute.Float32s(2.5), filled)
	for i, v := range filled.Data {
		if v != 2.5 {
			t.Fatalf("fill[%d] = %v", i, v)
		}
	}

	src := []float32{1, 2, 3, 4, 5, 6}
	copied := output(size)
	run(Copy, size, nil, input(size, src), copied)
	if !equal32(copied.Data, src) {
		t.Errorf("copy = %v", copied.Data)
	}

	prod := output(size)
	run(Multiply, size, nil, input(size, src), input(size, src), prod)
	if want := []float32{1, 4, 9, 16, 25, 36}; !equal32(prod.Data, want) {
		t.Errorf("multiply = %v, want %v", prod.Data, want)
	}
}

func TestCorrect(t *testing.T) {
	size := compute.Sz(2, 2)
	out := output(size)
	run(Correct, size, nil, input(size, []float32{1, 2, 3, 4}), input(size, []float32{0.5, -2, 0, 1}), out)
	if want := []float32{1.5, 0, 3, 5}; !equal32(out.Data, want) {
		t.Errorf("correct = %v, want %v", out.Data, want)
	}
}

// =============================================================================
// Reduction kernels
// =============================================================================

func TestReduceStepOddEdge(t *testing.T) {
	src := compute.Sz(3, 3)
	dst := src.Half()
	data := constant(9, 1)

	sum := output(dst)
	run(ReduceSum, dst, nil, image(compute.BorderSampler(), src, data), sum)
	// Blocks hanging over the edge read the zero border.
	if want := []float32{4, 2, 2, 1}; !equal32(sum.Data, want) {
		t.Errorf("reduce_sum = %v, want %v", sum.Data, want)
	}

	data[8] = -7
	mx := output(dst)
	run(ReduceMax, dst, nil, image(compute.BorderSampler(), src, data), mx)
	if want := []float32{1, 1, 1, 7}; !equal32(mx.Data, want) {
		t.Errorf("reduce_max = %v, want %v", mx.Data, want)
	}
}

// =============================================================================
// Poisson kernels
// =============================================================================

func TestJacobiStencil(t *testing.T) {
	size := compute.Sz(3, 3)
	p := []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	rhs := constant(9, 1)
	w := constant(9, 1)
	w[2] = 0 // solid corner

	out := output(size)
	run(Jacobi, size, compute.Float32s(1, 1), input(size, p), input(size, rhs), input(size, w), out)

	// Centre: all neighbours fluid, diag 4, sum 2+4+6+8.
	if got, want := out.Data[4], float32((1+20)/4.0); !near(got, want, 1e-6) {
		t.Errorf("centre = %v, want %v", got, want)
	}
	// Solid cell is zeroed.
	if out.Data[2] != 0 {
		t.Errorf("solid cell = %v, want 0", out.Data[2])
	}
	// Corner (0,0): two faces outside (+4), neighbours 2 and 4.
	if got, want := out.Data[0], float32((1+2+4)/6.0); !near(got, want, 1e-6) {
		t.Errorf("corner = %v, want %v", got, want)
	}
	// Cell (1,0) borders the solid corner: it drops out of diag and sum.
	if got, want := out.Data[1], float32((1+1+5)/4.0); !near(got, want, 1e-6) {
		t.Errorf("next to solid = %v, want %v", got, want)
	}

	relaxed := output(size)
	run(Jacobi, size, compute.Float32s(0.5, 1), input(size, p), input(size, rhs), input(size, w), relaxed)
	if got, want := relaxed.Data[4], 0.5*5+0.5*out.Data[4]; !near(got, want, 1e-6) {
		t.Errorf("relaxed centre = %v, want %v", got, want)
	}
}

func TestJacobiIsolatedCell(t *testing.T) {
	size := compute.Sz(3, 3)
	w := constant(9, 0)
	w[4] = 1
	p := constant(9, 0)
	p[4] = 3
	out := output(size)
	run(Jacobi, size, compute.Float32s(1, 1), input(size, p), input(size, constant(9, 1)), input(size, w), out)
	if out.Data[4] != 3 {
		t.Errorf("isolated cell = %v, want unchanged 3", out.Data[4])
	}
}

func TestPoissonKernelsAgainstDenseSolve(t *testing.T) {
	size := compute.Sz(5, 4)
	n := size.Cells()

	rhs := make([]float64, n)
	for i := range rhs {
		rhs[i] = math.Sin(float64(i)*0.7) + 0.25
	}
	var sol mat.VecDense
	if err := sol.SolveVec(poissonMatrix(size), mat.NewVecDense(n, rhs)); err != nil {
		t.Fatalf("dense solve: %v", err)
	}
	p := toFloat32(sol.RawVector().Data)
	w := constant(n, 1)

	res := output(size)
	run(Residual, size, compute.Float32s(1), input(size, p), input(size, toFloat32(rhs)), input(size, w), res)
	if m := maxAbs(res.Data); m > 1e-4 {
		t.Errorf("residual of the exact solution = %v", m)
	}

	// The exact solution is a fixed point of the sweep.
	swept := output(size)
	run(Jacobi, size, compute.Float32s(2.0/3, 1), input(size, p), input(size, toFloat32(rhs)), input(size, w), swept)
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = float64(swept.Data[i] - p[i])
	}
	if d := floats.Norm(diff, math.Inf(1)); d > 1e-4 {
		t.Errorf("jacobi moved the exact solution by %v", d)
	}
}

func TestResidualSpacing(t *testing.T) {
	size := compute.Sz(3, 3)
	p := constant(9, 0)
	p[4] = 1
	w := constant(9, 1)
	out := output(size)
	run(Residual, size, compute.Float32s(4), input(size, p), input(size, constant(9, 0)), input(size, w), out)
	// A*p at the centre is 4/h2 = 1, at its neighbours -1/h2.
	if !near(out.Data[4], -1, 1e-6) || !near(out.Data[1], 0.25, 1e-6) {
		t.Errorf("residual = %v", out.Data)
	}
}

// =============================================================================
// Transfer kernels
// =============================================================================

func TestRestrictProlongateConstant(t *testing.T) {
	fine := compute.Sz(8, 6)
	coarse := fine.Half()

	r := output(coarse)
	run(Restrict, coarse, nil, image(compute.BorderSampler(), fine, constant(fine.Cells(), 3)), r)
	for i, v := range r.Data {
		if !near(v, 3, 1e-6) {
			t.Fatalf("restrict[%d] = %v, want 3", i, v)
		}
	}

	p := output(fine)
	run(Prolongate, fine, nil, image(compute.EdgeSampler(), coarse, r.Data), p)
	for i, v := range p.Data {
		if !near(v, 3, 1e-6) {
			t.Fatalf("prolongate[%d] = %v, want 3", i, v)
		}
	}
}

func TestRestrictProlongateRamp(t *testing.T) {
	// A linear ramp survives the round trip except where prolongation
	// clamps at the edge, which costs half a fine cell per axis.
	tests := []struct {
		n       int
		maxDiff float64
	}{
		{16, 1.0 / 16},
		{32, 1.0 / 32},
		{64, 1.0 / 64},
		{128, 1.0 / 128},
	}
	prev := math.Inf(1)
	for _, tt := range tests {
		fine := compute.Sz(tt.n, tt.n)
		coarse := fine.Half()
		ramp := make([]float32, fine.Cells())
		for y := range tt.n {
			for x := range tt.n {
				ramp[fine.Index(x, y)] = float32(x+y) / float32(tt.n)
			}
		}

		r := output(coarse)
		run(Restrict, coarse, nil, image(compute.BorderSampler(), fine, ramp), r)
		p := output(fine)
		run(Prolongate, fine, nil, image(compute.EdgeSampler(), coarse, r.Data), p)

		var worst, interior float64
		for y := range tt.n {
			for x := range tt.n {
				d := math.Abs(float64(p.Data[fine.Index(x, y)] - ramp[fine.Index(x, y)]))
				worst = math.Max(worst, d)
				if x > 0 && y > 0 && x < tt.n-1 && y < tt.n-1 {
					interior = math.Max(interior, d)
				}
			}
		}
		if worst > tt.maxDiff+1e-5 {
			t.Errorf("n=%d: max error %g, want <= %g", tt.n, worst, tt.maxDiff)
		}
		if interior > 1e-5 {
			t.Errorf("n=%d: interior error %g, want exact", tt.n, interior)
		}
		if worst >= prev {
			t.Errorf("n=%d: error %g did not shrink from %g", tt.n, worst, prev)
		}
		prev = worst
	}
}

func TestProlongateLinear(t *testing.T) {
	coarse := compute.Sz(4, 4)
	fine := compute.Sz(8, 8)
	data := make([]float32, coarse.Cells())
	for y := range 4 {
		for x := range 4 {
			data[coarse.Index(x, y)] = float32(x)
		}
	}
	p := output(fine)
	run(Prolongate, fine, nil, image(compute.EdgeSampler(), coarse, data), p)
	// Interior fine cells reproduce the ramp at their own coarse coordinate.
	for x := 1; x < 7; x++ {
		want := (float32(x)+0.5)*0.5 - 0.5
		if got := p.Data[fine.Index(x, 3)]; !near(got, want, 1e-6) {
			t.Errorf("fine x=%d: %v, want %v", x, got, want)
		}
	}
}

// =============================================================================
// Level set kernels
// =============================================================================

func TestRedistanceAnchorsInterface(t *testing.T) {
	size := compute.Sz(4, 1)
	phi0 := []float32{-1.5, -0.5, 1.5, 2.5}
	out := output(size)
	run(Redistance, size, compute.Float32s(0.5), input(size, phi0), input(size, phi0), out)

	// The zero crossing lies a quarter of the way from cell 1 to cell 2.
	if !near(out.Data[1], -0.25, 1e-6) || !near(out.Data[2], 0.75, 1e-6) {
		t.Errorf("anchors = %v, %v, want -0.25, 0.75", out.Data[1], out.Data[2])
	}
}

func TestRedistanceKeepsUnitGradient(t *testing.T) {
	size := compute.Sz(8, 1)
	phi := make([]float32, 8)
	for i := range phi {
		phi[i] = float32(i) - 2.5
	}
	out := output(size)
	run(Redistance, size, compute.Float32s(0.5), input(size, phi), input(size, phi), out)
	for i, v := range out.Data {
		if !near(v, phi[i], 1e-5) {
			t.Errorf("cell %d moved from %v to %v", i, phi[i], v)
		}
	}
}

func TestExtrapolate(t *testing.T) {
	size := compute.Sz(3, 3)
	solid := []float32{
		1, 1, 1,
		1, -1, -1,
		1, -1, -2,
	}
	field := []float32{
		10, 20, 30,
		40, 0, 0,
		70, 0, 0,
	}
	out := output(size)
	run(Extrapolate, size, nil, input(size, solid), input(size, field), out)

	if out.Data[4] != 40 { // first neighbour with the largest distance: (0,1)
		t.Errorf("centre = %v, want 40", out.Data[4])
	}
	if out.Data[5] != 30 {
		t.Errorf("(2,1) = %v, want 30", out.Data[5])
	}
	if out.Data[8] != 0 { // neighbours are still solid after one pass
		t.Errorf("(2,2) = %v, want 0 after one pass", out.Data[8])
	}
	if out.Data[0] != 10 {
		t.Errorf("fluid cell changed: %v", out.Data[0])
	}
}

func equal32(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func near(a, b, tol float32) bool {
	return float32(math.Abs(float64(a-b))) <= tol
}

func maxAbs(v []float32) float32 {
	var m float32
	for _, x := range v {
		m = max(m, float32(math.Abs(float64(x))))
	}
	return m
}

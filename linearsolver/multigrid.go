package linearsolver

import (
	"fmt"
	"math"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/grid"
	"github.com/KangWeon/Vortex2D/internal/logging"
	"github.com/KangWeon/Vortex2D/kernels"
	"github.com/KangWeon/Vortex2D/reduce"
)

// Level is one resolution of the hierarchy. Level 0 is the finest.
type Level struct {
	Depth    int
	Size     compute.Size
	Pressure *grid.Field
	RHS      compute.Buffer
	Weights  compute.Buffer
	// Residual holds rhs - A*pressure on the way down and the
	// prolongated correction on the way up.
	Residual compute.Buffer

	smoother   *Jacobi
	residual   *compute.Work
	fill       *compute.Work
	restrict   *compute.Work // writes this level from the finer one
	prolongate *compute.Work // writes this level from the coarser one
	correct    *compute.Work
}

// Spacing returns the grid spacing of the level, 2^depth fine cells.
func (l *Level) Spacing() float32 {
	return float32(int(1) << l.Depth)
}

// Data is the finest level's storage exchanged with the caller: the
// divergence goes into RHS, the solution comes out of Pressure.Front().
type Data struct {
	Pressure *grid.Field
	RHS      compute.Buffer
	Weights  compute.Buffer
}

// Multigrid solves the weighted Poisson equation with V-cycles.
//
// The hierarchy is built once per domain size. Init must run whenever
// the solid geometry changes; Solve records one V-cycle. Neither checks
// convergence: the number of cycles and sweeps is the caller's choice.
type Multigrid struct {
	device compute.Device
	opts   options
	levels []*Level
	copy   *compute.Work

	norm    *reduce.Sum
	normOut compute.Buffer
	normDot *reduce.Bound
}

// Sizes returns the extents of the levels built for a finest extent:
// each level halves the previous one, rounding up, and the chain stops
// once either dimension would drop to minSize or below.
func Sizes(size compute.Size, minSize int) []compute.Size {
	sizes := []compute.Size{size}
	for next := size.Half(); next.Width > minSize && next.Height > minSize; next = next.Half() {
		sizes = append(sizes, next)
	}
	return sizes
}

// NewMultigrid builds the hierarchy for a finest extent of size.
func NewMultigrid(pc *compute.PipelineCache, size compute.Size, opts ...Option) (*Multigrid, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("multigrid: %w: %s", compute.ErrInvalidSize, size)
	}
	m := &Multigrid{device: pc.Device(), opts: apply(multigridDefaults(), opts)}
	if err := m.build(pc, size); err != nil {
		m.Release()
		return nil, err
	}

	sizes := make([]string, len(m.levels))
	for i, l := range m.levels {
		sizes[i] = l.Size.String()
	}
	logging.Logger().Info("linearsolver: multigrid built", "levels", len(m.levels), "sizes", sizes,
		"iterations", m.opts.iterations, "coarse", m.opts.coarseIterations, "w", m.opts.relaxation)
	return m, nil
}

func (m *Multigrid) build(pc *compute.PipelineCache, size compute.Size) error {
	var err error
	if m.copy, err = compute.NewWork(pc, kernels.Copy, compute.NewComputeSize(size)); err != nil {
		return err
	}

	for depth, s := range Sizes(size, m.opts.minSize) {
		l := &Level{Depth: depth, Size: s}
		m.levels = append(m.levels, l)
		name := fmt.Sprintf("level%d", depth)

		if l.Pressure, err = grid.NewField(m.device, name+".pressure", s); err != nil {
			return err
		}
		for _, b := range []struct {
			dst   *compute.Buffer
			label string
		}{
			{&l.RHS, ".rhs"},
			{&l.Weights, ".weights"},
			{&l.Residual, ".residual"},
		} {
			if *b.dst, err = m.device.CreateBuffer(name+b.label, s); err != nil {
				return fmt.Errorf("multigrid %s: %w", name, err)
			}
		}

		cs := compute.NewComputeSize(s)
		for _, w := range []struct {
			dst    **compute.Work
			kernel *compute.Kernel
		}{
			{&l.residual, kernels.Residual},
			{&l.fill, kernels.Fill},
			{&l.restrict, kernels.Restrict},
			{&l.prolongate, kernels.Prolongate},
			{&l.correct, kernels.Correct},
		} {
			if *w.dst, err = compute.NewWork(pc, w.kernel, cs); err != nil {
				return err
			}
		}

		if l.smoother, err = NewJacobi(pc, s, WithRelaxation(m.opts.relaxation)); err != nil {
			return err
		}
		l.smoother.SetSpacing(l.Spacing())
		if err = l.smoother.Bind(l.Pressure, l.RHS, l.Weights); err != nil {
			return err
		}
	}

	finest := m.levels[0]
	if m.norm, err = reduce.NewSum(pc, size); err != nil {
		return err
	}
	if m.normOut, err = reduce.NewScalar(m.device, "multigrid.norm"); err != nil {
		return err
	}
	m.normDot, err = m.norm.BindDot(finest.Residual, finest.Residual, m.normOut)
	return err
}

// Depths returns the number of levels.
func (m *Multigrid) Depths() int { return len(m.levels) }

// Level returns the level at depth, or nil when out of range.
func (m *Multigrid) Level(depth int) *Level {
	if depth < 0 || depth >= len(m.levels) {
		return nil
	}
	return m.levels[depth]
}

// GetData returns the finest level's pressure, rhs and weights.
func (m *Multigrid) GetData() Data {
	l := m.levels[0]
	return Data{Pressure: l.Pressure, RHS: l.RHS, Weights: l.Weights}
}

// GetPressureReader returns a host reader of the pressure at depth. The
// reader follows the front buffer current at the time of the call.
func (m *Multigrid) GetPressureReader(depth int) *grid.Reader {
	l := m.Level(depth)
	if l == nil {
		return nil
	}
	return grid.NewReader(m.device, l.Pressure.Front())
}

// GetWeightsReader returns a host reader of the weights at depth.
func (m *Multigrid) GetWeightsReader(depth int) *grid.Reader {
	l := m.Level(depth)
	if l == nil {
		return nil
	}
	return grid.NewReader(m.device, l.Weights)
}

// Init records the rebuild of every level's weights from the finest
// boundary description: boundary is copied into level 0 and each coarser
// level averages 2x2 blocks of the one above.
func (m *Multigrid) Init(cmd *compute.CommandBuffer, boundary compute.Buffer) error {
	if err := grid.CheckSize("boundary", boundary, m.levels[0].Size); err != nil {
		return err
	}
	m.copy.Record(cmd, nil, compute.BufferRef(boundary), compute.BufferRef(m.levels[0].Weights))
	for i := 1; i < len(m.levels); i++ {
		fine, coarse := m.levels[i-1], m.levels[i]
		coarse.restrict.Record(cmd, nil,
			compute.ImageRef(compute.BorderSampler(), fine.Weights),
			compute.BufferRef(coarse.Weights))
	}
	return nil
}

// Solve records one V-cycle. Call it again for further cycles.
func (m *Multigrid) Solve(cmd *compute.CommandBuffer) {
	last := len(m.levels) - 1

	for i := range last {
		fine, coarse := m.levels[i], m.levels[i+1]
		fine.smoother.Record(cmd, m.opts.iterations)
		m.recordResidual(cmd, fine)
		coarse.fill.Record(cmd, compute.Float32s(0), compute.BufferRef(coarse.Pressure.Front()))
		coarse.restrict.Record(cmd, nil,
			compute.ImageRef(compute.BorderSampler(), fine.Residual),
			compute.BufferRef(coarse.RHS))
	}

	m.levels[last].smoother.Record(cmd, m.opts.coarseIterations)

	for i := last - 1; i >= 0; i-- {
		fine, coarse := m.levels[i], m.levels[i+1]
		fine.prolongate.Record(cmd, nil,
			compute.ImageRef(compute.EdgeSampler(), coarse.Pressure.Front()),
			compute.BufferRef(fine.Residual))
		fine.correct.Record(cmd, nil,
			compute.BufferRef(fine.Pressure.Front()),
			compute.BufferRef(fine.Residual),
			compute.BufferRef(fine.Pressure.Back()))
		cmd.Swap(fine.Pressure)
		fine.smoother.Record(cmd, m.opts.iterations)
	}
}

func (m *Multigrid) recordResidual(cmd *compute.CommandBuffer, l *Level) {
	h := l.Spacing()
	l.residual.Record(cmd, compute.Float32s(h*h),
		compute.BufferRef(l.Pressure.Front()),
		compute.BufferRef(l.RHS),
		compute.BufferRef(l.Weights),
		compute.BufferRef(l.Residual))
}

// RecordResidualNorm records the finest residual and its squared L2 norm.
// Read the norm with ResidualNorm once cmd has been submitted.
func (m *Multigrid) RecordResidualNorm(cmd *compute.CommandBuffer) {
	m.recordResidual(cmd, m.levels[0])
	m.normDot.Record(cmd)
}

// ResidualNorm returns the L2 norm computed by the last submitted
// RecordResidualNorm.
func (m *Multigrid) ResidualNorm() (float32, error) {
	v := make([]float32, 1)
	if err := m.device.ReadBuffer(m.normOut, v); err != nil {
		return 0, err
	}
	return float32(math.Sqrt(math.Max(float64(v[0]), 0))), nil
}

// Release frees every buffer of the hierarchy and returns its pipelines.
func (m *Multigrid) Release() {
	m.copy.Release()
	for _, l := range m.levels {
		if l.smoother != nil {
			l.smoother.Release()
		}
		for _, w := range []*compute.Work{l.residual, l.fill, l.restrict, l.prolongate, l.correct} {
			w.Release()
		}
		if l.Pressure != nil {
			l.Pressure.Release()
		}
		for _, b := range []compute.Buffer{l.RHS, l.Weights, l.Residual} {
			if b != nil {
				m.device.ReleaseBuffer(b)
			}
		}
	}
	m.levels = nil
	if m.norm != nil {
		m.norm.Release()
		m.norm = nil
	}
	if m.normOut != nil {
		m.device.ReleaseBuffer(m.normOut)
		m.normOut = nil
	}
}

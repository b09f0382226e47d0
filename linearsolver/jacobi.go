package linearsolver

import (
	"errors"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/grid"
	"github.com/KangWeon/Vortex2D/kernels"
)

// ErrNotBound is recorded when a smoother records before Bind.
var ErrNotBound = errors.New("linearsolver: smoother has no bound fields")

// Jacobi is a weighted Jacobi smoother for the weighted Poisson operator.
// Each sweep reads the pressure front buffer and writes the back buffer,
// after which the field is swapped, so the newest iterate is always in
// front once a Record call returns.
//
// The sweep count is the only termination criterion.
type Jacobi struct {
	work *compute.Work
	size compute.Size
	opts options
	w    float32
	h2   float32

	pressure *grid.Field
	rhs      compute.Buffer
	weights  compute.Buffer
}

// NewJacobi creates a smoother for fields of the given extent. The
// relaxation defaults to 1 (plain Jacobi).
func NewJacobi(pc *compute.PipelineCache, size compute.Size, opts ...Option) (*Jacobi, error) {
	o := apply(jacobiDefaults(), opts)
	work, err := compute.NewWork(pc, kernels.Jacobi, compute.NewComputeSize(size))
	if err != nil {
		return nil, err
	}
	return &Jacobi{work: work, size: size, opts: o, w: o.relaxation, h2: 1}, nil
}

// Bind sets the fields the smoother operates on. All must match the
// smoother's extent.
func (j *Jacobi) Bind(pressure *grid.Field, rhs, weights compute.Buffer) error {
	if pressure == nil {
		return compute.ErrNilBuffer
	}
	if err := grid.CheckSize("pressure", pressure.Front(), j.size); err != nil {
		return err
	}
	if err := grid.CheckSize("rhs", rhs, j.size); err != nil {
		return err
	}
	if err := grid.CheckSize("weights", weights, j.size); err != nil {
		return err
	}
	j.pressure, j.rhs, j.weights = pressure, rhs, weights
	return nil
}

// Record appends iterations sweeps to cmd.
func (j *Jacobi) Record(cmd *compute.CommandBuffer, iterations int) {
	if j.pressure == nil {
		cmd.Fail(ErrNotBound)
		return
	}
	constants := compute.Float32s(j.w, j.h2)
	for range iterations {
		j.work.Record(cmd, constants,
			compute.BufferRef(j.pressure.Front()),
			compute.BufferRef(j.rhs),
			compute.BufferRef(j.weights),
			compute.BufferRef(j.pressure.Back()))
		cmd.Swap(j.pressure)
	}
}

// RecordPreconditioner appends the configured number of preconditioner
// sweeps.
func (j *Jacobi) RecordPreconditioner(cmd *compute.CommandBuffer) {
	j.Record(cmd, j.opts.preconditioner)
}

// SetW sets the relaxation factor used by later recordings.
func (j *Jacobi) SetW(w float32) { j.w = w }

// W returns the relaxation factor.
func (j *Jacobi) W() float32 { return j.w }

// SetPreconditionerIterations sets the sweeps of RecordPreconditioner.
func (j *Jacobi) SetPreconditionerIterations(n int) { j.opts.preconditioner = n }

// PreconditionerIterations returns the sweeps of RecordPreconditioner.
func (j *Jacobi) PreconditionerIterations() int { return j.opts.preconditioner }

// SetSpacing sets the grid spacing h; the operator is scaled by 1/h^2.
func (j *Jacobi) SetSpacing(h float32) { j.h2 = h * h }

// Release returns the smoother's pipeline. The bound fields belong to
// the caller and are left alone.
func (j *Jacobi) Release() {
	j.work.Release()
}

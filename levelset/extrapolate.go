package levelset

import (
	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/grid"
	"github.com/KangWeon/Vortex2D/kernels"
)

// Extrapolator extends any double-buffered field into a solid. Each
// pass moves values one cell deeper, taking them from the neighbour
// that lies furthest out of the solid.
type Extrapolator struct {
	work   *compute.Work
	size   compute.Size
	passes int
}

// NewExtrapolator creates an extrapolator running passes passes per
// Record.
func NewExtrapolator(pc *compute.PipelineCache, size compute.Size, passes int) (*Extrapolator, error) {
	work, err := compute.NewWork(pc, kernels.Extrapolate, compute.NewComputeSize(size))
	if err != nil {
		return nil, err
	}
	return &Extrapolator{work: work, size: size, passes: passes}, nil
}

// Release returns the extrapolator's pipeline.
func (e *Extrapolator) Release() {
	e.work.Release()
}

// Passes returns the number of passes per Record.
func (e *Extrapolator) Passes() int { return e.passes }

// Record appends the passes to cmd. A solidPhi of the wrong extent fails
// cmd without recording anything.
func (e *Extrapolator) Record(cmd *compute.CommandBuffer, field *grid.Field, solidPhi compute.Buffer) {
	if field == nil {
		cmd.Fail(compute.ErrNilBuffer)
		return
	}
	if err := grid.CheckSize("solid phi", solidPhi, e.size); err != nil {
		cmd.Fail(err)
		return
	}
	for range e.passes {
		e.work.Record(cmd, nil,
			compute.BufferRef(solidPhi),
			compute.BufferRef(field.Front()),
			compute.BufferRef(field.Back()))
		cmd.Swap(field)
	}
}

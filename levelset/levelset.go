// Package levelset maintains a signed distance field on the finest grid.
//
// The sign of the field marks the side of the interface, negative
// inside the liquid. Redistance restores |grad phi| = 1 without moving
// the zero crossing. Extrapolate carries field values into solids.
package levelset

import (
	"fmt"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/grid"
	"github.com/KangWeon/Vortex2D/internal/logging"
	"github.com/KangWeon/Vortex2D/kernels"
)

// LevelSet is a distance field together with the works that maintain it.
type LevelSet struct {
	device compute.Device
	opts   options
	field  *grid.Field
	phi0   compute.Buffer

	copy         *compute.Work
	redistance   *compute.Work
	extrapolator *Extrapolator
}

// New creates a level set of the given extent. The field is zero until
// written through Field().Write or a recorded kernel.
func New(pc *compute.PipelineCache, size compute.Size, opts ...Option) (*LevelSet, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("levelset: %w: %s", compute.ErrInvalidSize, size)
	}
	l := &LevelSet{device: pc.Device(), opts: defaults()}
	for _, opt := range opts {
		opt(&l.opts)
	}

	if err := l.build(pc, size); err != nil {
		l.Release()
		return nil, err
	}

	logging.Logger().Debug("levelset: created", "size", size, "dt", l.opts.timeStep, "passes", l.opts.passes)
	return l, nil
}

func (l *LevelSet) build(pc *compute.PipelineCache, size compute.Size) error {
	cs := compute.NewComputeSize(size)
	var err error
	if l.copy, err = compute.NewWork(pc, kernels.Copy, cs); err != nil {
		return err
	}
	if l.redistance, err = compute.NewWork(pc, kernels.Redistance, cs); err != nil {
		return err
	}
	if l.extrapolator, err = NewExtrapolator(pc, size, l.opts.passes); err != nil {
		return err
	}
	if l.field, err = grid.NewField(l.device, "levelset", size); err != nil {
		return err
	}
	if l.phi0, err = l.device.CreateBuffer("levelset.phi0", size); err != nil {
		return fmt.Errorf("levelset: %w", err)
	}
	return nil
}

// Field returns the distance field. Its front buffer holds the current
// distances.
func (l *LevelSet) Field() *grid.Field { return l.field }

// Size returns the extent of the field.
func (l *LevelSet) Size() compute.Size { return l.field.Size() }

// Redistance records iterations steps of Eikonal relaxation. The field
// as it stands when the commands run is kept as the reference for the
// interface position, so cells next to a sign change are pinned to
// their interpolated distance every iteration.
func (l *LevelSet) Redistance(cmd *compute.CommandBuffer, iterations int) {
	l.copy.Record(cmd, nil, compute.BufferRef(l.field.Front()), compute.BufferRef(l.phi0))
	dt := compute.Float32s(l.opts.timeStep)
	for range iterations {
		l.redistance.Record(cmd, dt,
			compute.BufferRef(l.phi0),
			compute.BufferRef(l.field.Front()),
			compute.BufferRef(l.field.Back()))
		cmd.Swap(l.field)
	}
}

// Extrapolate records the extrapolation of the distance field into the
// solid described by solidPhi, negative inside the solid.
func (l *LevelSet) Extrapolate(cmd *compute.CommandBuffer, solidPhi compute.Buffer) {
	l.extrapolator.Record(cmd, l.field, solidPhi)
}

// Release frees the field, its scratch buffer and the pipelines.
func (l *LevelSet) Release() {
	l.copy.Release()
	l.redistance.Release()
	if l.extrapolator != nil {
		l.extrapolator.Release()
	}
	if l.field != nil {
		l.field.Release()
		l.field = nil
	}
	if l.phi0 != nil {
		l.device.ReleaseBuffer(l.phi0)
		l.phi0 = nil
	}
}

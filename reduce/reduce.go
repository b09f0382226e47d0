// Package reduce implements parallel tree reductions over a field.
//
// A reducer halves its input repeatedly, rounding odd extents up, until a
// single cell is left; every step combines a 2x2 block. Blocks hanging
// over an odd edge read the zero border of a clamp-to-border sampler, so
// they contribute nothing to a sum and never win a max.
package reduce

import (
	"fmt"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/grid"
)

// Scalar is the extent of a reduction result.
var Scalar = compute.Sz(1, 1)

// NewScalar allocates a 1x1 buffer to receive a reduction.
func NewScalar(device compute.Device, label string) (compute.Buffer, error) {
	return device.CreateBuffer(label, Scalar)
}

type reducer struct {
	device  compute.Device
	size    compute.Size
	steps   []*compute.Work
	scratch []compute.Buffer
}

func newReducer(pc *compute.PipelineCache, size compute.Size, kernel *compute.Kernel) (*reducer, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("reduce %s: %w: %s", kernel.Name(), compute.ErrInvalidSize, size)
	}
	r := &reducer{device: pc.Device(), size: size}

	// A 1x1 input still takes one step, which applies the combine (|v|
	// for max) to its single value.
	for level := size.Half(); ; level = level.Half() {
		w, err := compute.NewWork(pc, kernel, compute.NewComputeSize(level))
		if err != nil {
			r.Release()
			return nil, err
		}
		r.steps = append(r.steps, w)
		if level == Scalar {
			break
		}
		b, err := r.device.CreateBuffer(fmt.Sprintf("%s.%s", kernel.Name(), level), level)
		if err != nil {
			r.Release()
			return nil, fmt.Errorf("reduce %s: %w", kernel.Name(), err)
		}
		r.scratch = append(r.scratch, b)
	}
	return r, nil
}

// Steps returns the number of halving dispatches per reduction.
func (r *reducer) Steps() int { return len(r.steps) }

// Size returns the input extent.
func (r *reducer) Size() compute.Size { return r.size }

func (r *reducer) bind(input, output compute.Buffer) (*Bound, error) {
	if err := grid.CheckSize("reduce input", input, r.size); err != nil {
		return nil, err
	}
	if err := grid.CheckSize("reduce output", output, Scalar); err != nil {
		return nil, err
	}
	bound := &Bound{steps: make([]*compute.Bound, 0, len(r.steps))}
	src := input
	for i, w := range r.steps {
		dst := output
		if i < len(r.scratch) {
			dst = r.scratch[i]
		}
		b, err := w.Bind(compute.ImageRef(compute.BorderSampler(), src), compute.BufferRef(dst))
		if err != nil {
			return nil, err
		}
		bound.steps = append(bound.steps, b)
		src = dst
	}
	return bound, nil
}

// Release frees the intermediate buffers and returns the pipelines.
func (r *reducer) Release() {
	for _, w := range r.steps {
		w.Release()
	}
	r.steps = nil
	for _, b := range r.scratch {
		r.device.ReleaseBuffer(b)
	}
	r.scratch = nil
}

// Bound is a reduction with its input and output fixed.
type Bound struct {
	steps []*compute.Bound
}

// Record appends the reduction's dispatches to cmd.
func (b *Bound) Record(cmd *compute.CommandBuffer) {
	for _, s := range b.steps {
		s.Record(cmd, nil)
	}
}

// Len returns the number of dispatches Record appends.
func (b *Bound) Len() int { return len(b.steps) }

package reduce

import (
	"fmt"

	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/grid"
	"github.com/KangWeon/Vortex2D/kernels"
)

// Sum reduces a field to the sum of its values. BindDot reduces the
// element-wise product of two fields, giving their inner product.
type Sum struct {
	*reducer
	multiply *compute.Work
	product  compute.Buffer
}

// NewSum creates a sum reducer for fields of the given extent.
func NewSum(pc *compute.PipelineCache, size compute.Size) (*Sum, error) {
	r, err := newReducer(pc, size, kernels.ReduceSum)
	if err != nil {
		return nil, err
	}
	mul, err := compute.NewWork(pc, kernels.Multiply, compute.NewComputeSize(size))
	if err != nil {
		r.Release()
		return nil, err
	}
	product, err := r.device.CreateBuffer("reduce_sum.product", size)
	if err != nil {
		mul.Release()
		r.Release()
		return nil, fmt.Errorf("reduce sum: %w", err)
	}
	return &Sum{reducer: r, multiply: mul, product: product}, nil
}

// Bind prepares the reduction of input into the 1x1 output.
func (s *Sum) Bind(input, output compute.Buffer) (*Bound, error) {
	return s.bind(input, output)
}

// BindDot prepares the reduction of a*b into the 1x1 output.
func (s *Sum) BindDot(a, b, output compute.Buffer) (*Bound, error) {
	if err := grid.CheckSize("dot operand", a, s.size); err != nil {
		return nil, err
	}
	if err := grid.CheckSize("dot operand", b, s.size); err != nil {
		return nil, err
	}
	mul, err := s.multiply.Bind(compute.BufferRef(a), compute.BufferRef(b), compute.BufferRef(s.product))
	if err != nil {
		return nil, err
	}
	rest, err := s.bind(s.product, output)
	if err != nil {
		return nil, err
	}
	rest.steps = append([]*compute.Bound{mul}, rest.steps...)
	return rest, nil
}

// Release frees the reducer's buffers and pipelines.
func (s *Sum) Release() {
	s.reducer.Release()
	s.multiply.Release()
	if s.product != nil {
		s.device.ReleaseBuffer(s.product)
		s.product = nil
	}
}

// Max reduces a field to the largest magnitude of its values.
type Max struct {
	*reducer
}

// NewMax creates a max reducer for fields of the given extent.
func NewMax(pc *compute.PipelineCache, size compute.Size) (*Max, error) {
	r, err := newReducer(pc, size, kernels.ReduceMax)
	if err != nil {
		return nil, err
	}
	return &Max{reducer: r}, nil
}

// Bind prepares the reduction of input into the 1x1 output.
func (m *Max) Bind(input, output compute.Buffer) (*Bound, error) {
	return m.bind(input, output)
}

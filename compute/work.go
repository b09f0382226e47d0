package compute

import (
	"fmt"

	"github.com/KangWeon/Vortex2D/internal/logging"
)

// Work is a kernel bound to a dispatch extent and its compiled pipeline.
// A Work counts as a user of its pipeline until Release, so the cache
// never frees a pipeline a live Work still dispatches.
type Work struct {
	kernel   *Kernel
	size     ComputeSize
	cache    *PipelineCache
	pipeline Pipeline
}

// NewWork fetches (or compiles) the pipeline for kernel at size's
// workgroup extent.
func NewWork(cache *PipelineCache, kernel *Kernel, size ComputeSize) (*Work, error) {
	if err := size.Domain.validate(); err != nil {
		return nil, fmt.Errorf("work %s: %w", kernel.Name(), err)
	}
	p, err := cache.Get(kernel, size.LocalSize)
	if err != nil {
		return nil, err
	}
	return &Work{kernel: kernel, size: size, cache: cache, pipeline: p}, nil
}

// Release returns the pipeline to the cache. Recording a released Work
// fails the command buffer with ErrReleased. Release is idempotent.
func (w *Work) Release() {
	if w == nil || w.pipeline == nil {
		return
	}
	w.cache.release(w.pipeline)
	w.pipeline = nil
}

// Kernel returns the work's kernel.
func (w *Work) Kernel() *Kernel { return w.kernel }

// ComputeSize returns the dispatch extent.
func (w *Work) ComputeSize() ComputeSize { return w.size }

// Bind checks bindings against the kernel's slots and returns a Bound
// ready for recording. Input and output buffers must cover exactly the
// dispatch domain; images may have any extent.
func (w *Work) Bind(bindings ...Binding) (*Bound, error) {
	if err := checkBindings(w.kernel, bindings); err != nil {
		return nil, err
	}
	for i, b := range bindings {
		if w.kernel.slots[i] != SlotImage && b.buffer.Size() != w.size.Domain {
			return nil, fmt.Errorf("%w: kernel %q slot %d (%s) is %s, domain is %s",
				ErrSizeMismatch, w.kernel.Name(), i, b.buffer.Label(), b.buffer.Size(), w.size.Domain)
		}
	}
	return &Bound{work: w, bindings: bindings}, nil
}

// Record binds and records in one step. Binding errors are kept on cmd.
func (w *Work) Record(cmd *CommandBuffer, constants Constants, bindings ...Binding) {
	b, err := w.Bind(bindings...)
	if err != nil {
		cmd.Fail(err)
		return
	}
	b.Record(cmd, constants)
}

// Bound is a Work with concrete bindings.
type Bound struct {
	work     *Work
	bindings []Binding
}

// Work returns the bound work.
func (b *Bound) Work() *Work { return b.work }

// Record appends one dispatch to cmd. A constants block of the wrong
// length fails cmd with ErrBindingMismatch.
func (b *Bound) Record(cmd *CommandBuffer, constants Constants) {
	k := b.work.kernel
	if b.work.pipeline == nil {
		cmd.Fail(fmt.Errorf("%w: kernel %q", ErrReleased, k.Name()))
		return
	}
	if len(constants) != 4*k.constants {
		cmd.Fail(fmt.Errorf("%w: kernel %q takes %d constant words, got %d bytes",
			ErrBindingMismatch, k.Name(), k.constants, len(constants)))
		return
	}
	cmd.record(Dispatch{
		Pipeline: b.work.pipeline,
		Batch: Batch{
			Domain:        b.work.size.Domain,
			WorkgroupSize: b.work.size.LocalSize,
			Constants:     constants,
		},
		Bindings: b.bindings,
		WorkSize: b.work.size.WorkSize,
	})
	logging.Logger().Debug("compute: record",
		"kernel", k.Name(), "domain", b.work.size.Domain.String(), "workgroups", b.work.size.Workgroups())
}

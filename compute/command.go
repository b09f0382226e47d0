package compute

import "slices"

// Batch describes one dispatcher invocation.
type Batch struct {
	Domain        Size
	WorkgroupSize Size
	Constants     Constants
}

// Dispatch is one recorded kernel invocation.
type Dispatch struct {
	Pipeline Pipeline
	Batch    Batch
	Bindings []Binding
	// WorkSize is the number of workgroups along each axis.
	WorkSize Size
}

// Kernel returns the kernel of the dispatch's pipeline.
func (d *Dispatch) Kernel() *Kernel {
	return d.Pipeline.Kernel()
}

// CommandBuffer is an ordered list of dispatches. Dispatch k+1 observes
// every write of dispatch k once submitted.
//
// The first recording error sticks: later dispatches are dropped and
// Device.Submit returns the error without executing anything.
// CommandBuffer is not safe for concurrent recording.
//
// Double-buffered resources flip through Swap while recording so later
// dispatches bind the new front. The buffer remembers every flip and a
// failed or abandoned submission takes back the ones whose preceding
// dispatches never ran.
type CommandBuffer struct {
	label      string
	dispatches []Dispatch
	swaps      []pendingSwap
	err        error
}

// Swapper is a resource with front and back roles that Swap exchanges.
type Swapper interface {
	Swap()
}

// pendingSwap is a flip recorded after the first `after` dispatches.
type pendingSwap struct {
	target Swapper
	after  int
}

// NewCommandBuffer returns an empty command buffer.
func NewCommandBuffer(label string) *CommandBuffer {
	return &CommandBuffer{label: label}
}

// Label returns the label given at creation.
func (c *CommandBuffer) Label() string { return c.label }

// Len returns the number of recorded dispatches.
func (c *CommandBuffer) Len() int { return len(c.dispatches) }

// Dispatches returns the recorded dispatches in order.
func (c *CommandBuffer) Dispatches() []Dispatch { return c.dispatches }

// Err returns the first recording error.
func (c *CommandBuffer) Err() error { return c.err }

// Fail records err unless an earlier error is already kept.
func (c *CommandBuffer) Fail(err error) {
	if c.err == nil && err != nil {
		c.err = err
	}
}

// Swap flips s now and records the flip. Dispatches recorded afterwards
// see the new front; Rollback and Discard flip it back.
func (c *CommandBuffer) Swap(s Swapper) {
	s.Swap()
	c.swaps = append(c.swaps, pendingSwap{target: s, after: len(c.dispatches)})
}

// Swaps returns the number of recorded flips still pending.
func (c *CommandBuffer) Swaps() int { return len(c.swaps) }

// Rollback undoes, newest first, the flips recorded after more than
// completed dispatches. Devices call it when Submit fails with the
// number of dispatches that finished, so every resource front holds
// the last output that was actually written.
func (c *CommandBuffer) Rollback(completed int) {
	i := len(c.swaps)
	for i > 0 && c.swaps[i-1].after > completed {
		i--
		c.swaps[i].target.Swap()
	}
	clear(c.swaps[i:])
	c.swaps = c.swaps[:i]
}

// Discard undoes every recorded flip, newest first. It is used when a
// recording is abandoned before anything ran.
func (c *CommandBuffer) Discard() {
	for _, s := range slices.Backward(c.swaps) {
		s.target.Swap()
	}
	clear(c.swaps)
	c.swaps = c.swaps[:0]
}

// Reset clears dispatches, pending flips and the recording error so the
// buffer can be recorded again. Flips are kept as they stand.
func (c *CommandBuffer) Reset() {
	c.dispatches = c.dispatches[:0]
	clear(c.swaps)
	c.swaps = c.swaps[:0]
	c.err = nil
}

func (c *CommandBuffer) record(d Dispatch) {
	if c.err != nil {
		return
	}
	d.Bindings = slices.Clone(d.Bindings)
	c.dispatches = append(c.dispatches, d)
}

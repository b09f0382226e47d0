package compute

import "context"

// Buffer is a device allocation holding Size().Cells() float32 values.
type Buffer interface {
	Label() string
	Size() Size
}

// Pipeline is a kernel compiled for one workgroup extent.
type Pipeline interface {
	Kernel() *Kernel
	LocalSize() Size
}

// Device executes recorded command buffers. Implementations live under
// backend/.
type Device interface {
	// Name identifies the device in logs.
	Name() string

	// CreateBuffer allocates a zeroed buffer of size.Cells() float32 values.
	CreateBuffer(label string, size Size) (Buffer, error)

	// WriteBuffer uploads data, which must hold exactly buf.Size().Cells()
	// values. It must not overlap a running Submit that uses buf.
	WriteBuffer(buf Buffer, data []float32) error

	// ReadBuffer downloads buf into dst, which must hold exactly
	// buf.Size().Cells() values.
	ReadBuffer(buf Buffer, dst []float32) error

	// ReleaseBuffer frees buf. Releasing twice is a no-op.
	ReleaseBuffer(buf Buffer)

	// CreatePipeline compiles kernel for the given workgroup extent.
	CreatePipeline(kernel *Kernel, local Size) (Pipeline, error)

	// ReleasePipeline frees p.
	ReleasePipeline(p Pipeline)

	// Submit runs every dispatch of cmd in order and returns once the
	// last one completed. It returns cmd.Err() without running anything
	// when recording failed. On any error it rolls back the flips of cmd
	// that follow dispatches which did not run.
	Submit(ctx context.Context, cmd *CommandBuffer) error

	// Close releases the device. Later calls fail with ErrDeviceClosed.
	Close() error
}

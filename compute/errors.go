package compute

import "errors"

var (
	// ErrBindingMismatch is returned when the bindings handed to a kernel do
	// not match its declared slots in count or kind, or when a writable
	// slot aliases another slot.
	ErrBindingMismatch = errors.New("compute: binding mismatch")

	// ErrSizeMismatch is returned when buffers that must agree in extent do not.
	ErrSizeMismatch = errors.New("compute: size mismatch")

	// ErrResourceCreation wraps device failures creating buffers or pipelines.
	ErrResourceCreation = errors.New("compute: resource creation failed")

	// ErrNilBuffer is returned when a binding has no buffer.
	ErrNilBuffer = errors.New("compute: nil buffer")

	// ErrUnknownKernel is returned when a device has no implementation
	// for a kernel.
	ErrUnknownKernel = errors.New("compute: unknown kernel")

	// ErrDeviceClosed is returned by operations on a closed device.
	ErrDeviceClosed = errors.New("compute: device closed")

	// ErrEmptyCommandBuffer is returned by Submit for a nil command buffer.
	ErrEmptyCommandBuffer = errors.New("compute: nil command buffer")

	// ErrReleased is recorded when a released Work is used.
	ErrReleased = errors.New("compute: work released")

	// ErrInvalidSize is returned for non-positive extents.
	ErrInvalidSize = errors.New("compute: invalid size")
)

// Package grid provides double-buffered scalar fields and host transfer
// helpers.
package grid

import (
	"fmt"

	"github.com/KangWeon/Vortex2D/compute"
)

// Field is a float32 field stored twice. Kernels read Front and write
// Back; Swap exchanges the roles without copying.
type Field struct {
	device  compute.Device
	label   string
	size    compute.Size
	buffers [2]compute.Buffer
	front   int
}

// NewField allocates both buffers of a field.
func NewField(device compute.Device, label string, size compute.Size) (*Field, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("field %q: %w: %s", label, compute.ErrInvalidSize, size)
	}
	f := &Field{device: device, label: label, size: size}
	for i, role := range [2]string{"a", "b"} {
		b, err := device.CreateBuffer(label+"."+role, size)
		if err != nil {
			f.Release()
			return nil, fmt.Errorf("field %q: %w", label, err)
		}
		f.buffers[i] = b
	}
	return f, nil
}

// Label returns the field label.
func (f *Field) Label() string { return f.label }

// Size returns the field extent.
func (f *Field) Size() compute.Size { return f.size }

// Front returns the buffer holding the current values.
func (f *Field) Front() compute.Buffer { return f.buffers[f.front] }

// Back returns the scratch buffer the next sweep writes.
func (f *Field) Back() compute.Buffer { return f.buffers[1-f.front] }

// Swap exchanges the front and back roles.
func (f *Field) Swap() { f.front = 1 - f.front }

// Write uploads data into the front buffer.
func (f *Field) Write(data []float32) error {
	return f.device.WriteBuffer(f.Front(), data)
}

// Read downloads the front buffer into dst.
func (f *Field) Read(dst []float32) error {
	return f.device.ReadBuffer(f.Front(), dst)
}

// Release frees both buffers.
func (f *Field) Release() {
	for i, b := range f.buffers {
		if b != nil {
			f.device.ReleaseBuffer(b)
			f.buffers[i] = nil
		}
	}
}

// CheckSize returns ErrSizeMismatch unless buf has extent size.
func CheckSize(what string, buf compute.Buffer, size compute.Size) error {
	if buf == nil {
		return fmt.Errorf("%s: %w", what, compute.ErrNilBuffer)
	}
	if buf.Size() != size {
		return fmt.Errorf("%w: %s %q is %s, want %s", compute.ErrSizeMismatch, what, buf.Label(), buf.Size(), size)
	}
	return nil
}

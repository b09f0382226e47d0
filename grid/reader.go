package grid

import "github.com/KangWeon/Vortex2D/compute"

// Reader downloads a buffer into host memory it owns. Call Read after
// the command buffer that produced the values has been submitted.
type Reader struct {
	device compute.Device
	buffer compute.Buffer
	data   []float32
}

// NewReader creates a reader for buf.
func NewReader(device compute.Device, buf compute.Buffer) *Reader {
	return &Reader{device: device, buffer: buf, data: make([]float32, buf.Size().Cells())}
}

// Read refreshes the host copy.
func (r *Reader) Read() error {
	return r.device.ReadBuffer(r.buffer, r.data)
}

// Size returns the buffer extent.
func (r *Reader) Size() compute.Size { return r.buffer.Size() }

// Data returns the host copy, row-major.
func (r *Reader) Data() []float32 { return r.data }

// At returns the host value at (x, y).
func (r *Reader) At(x, y int) float32 {
	return r.data[r.buffer.Size().Index(x, y)]
}

// Writer stages host values and uploads them into a buffer.
type Writer struct {
	device compute.Device
	buffer compute.Buffer
	data   []float32
}

// NewWriter creates a writer for buf with a zeroed staging slice.
func NewWriter(device compute.Device, buf compute.Buffer) *Writer {
	return &Writer{device: device, buffer: buf, data: make([]float32, buf.Size().Cells())}
}

// Set stages v at (x, y).
func (w *Writer) Set(x, y int, v float32) {
	w.data[w.buffer.Size().Index(x, y)] = v
}

// Fill stages fn(x, y) for every cell.
func (w *Writer) Fill(fn func(x, y int) float32) {
	size := w.buffer.Size()
	for y := range size.Height {
		for x := range size.Width {
			w.data[size.Index(x, y)] = fn(x, y)
		}
	}
}

// Data returns the staging slice.
func (w *Writer) Data() []float32 { return w.data }

// Write uploads the staged values.
func (w *Writer) Write() error {
	return w.device.WriteBuffer(w.buffer, w.data)
}

package compute

// View is the host memory behind one binding during a CPU dispatch.
type View struct {
	Data    []float32
	Size    Size
	Kind    SlotKind
	Sampler Sampler
}

// Cell is the invocation state handed to a CellFunc.
type Cell struct {
	X, Y      int
	Domain    Size
	Constants Constants
	Views     []View
}

// Load reads slot at the invocation's own cell.
func (c *Cell) Load(slot int) float32 {
	return c.LoadAt(slot, c.X, c.Y)
}

// LoadAt reads slot at (x, y). Image slots apply their sampler; plain
// buffers return 0 outside their extent.
func (c *Cell) LoadAt(slot, x, y int) float32 {
	v := &c.Views[slot]
	if v.Kind == SlotImage {
		return v.Sampler.Fetch(v.Data, v.Size, x, y)
	}
	if !v.Size.Contains(x, y) {
		return 0
	}
	return v.Data[v.Size.Index(x, y)]
}

// Store writes slot at the invocation's own cell. Writes outside the
// slot's extent are dropped.
func (c *Cell) Store(slot int, value float32) {
	v := &c.Views[slot]
	if v.Size.Contains(c.X, c.Y) {
		v.Data[v.Size.Index(c.X, c.Y)] = value
	}
}

// Float32 returns constant word i.
func (c *Cell) Float32(i int) float32 {
	return c.Constants.Float32(i)
}

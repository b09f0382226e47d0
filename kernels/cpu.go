package kernels

import (
	"math"

	"github.com/KangWeon/Vortex2D/compute"
)

// noCrossing marks an axis without a sign change next to the cell.
const noCrossing = float32(math.MaxFloat32)

func fill(c *compute.Cell) {
	c.Store(0, c.Float32(0))
}

func copyCell(c *compute.Cell) {
	c.Store(1, c.Load(0))
}

func multiply(c *compute.Cell) {
	c.Store(2, c.Load(0)*c.Load(1))
}

func reduceSum(c *compute.Cell) {
	x, y := 2*c.X, 2*c.Y
	c.Store(1, c.LoadAt(0, x, y)+c.LoadAt(0, x+1, y)+c.LoadAt(0, x, y+1)+c.LoadAt(0, x+1, y+1))
}

func reduceMax(c *compute.Cell) {
	x, y := 2*c.X, 2*c.Y
	a := max(abs(c.LoadAt(0, x, y)), abs(c.LoadAt(0, x+1, y)))
	b := max(abs(c.LoadAt(0, x, y+1)), abs(c.LoadAt(0, x+1, y+1)))
	c.Store(1, max(a, b))
}

// stencil accumulates the weighted Laplacian around the cell. Neighbours
// outside the domain sit behind a zero-pressure face: they add 2 to the
// diagonal and nothing to the sum.
func stencil(c *compute.Cell) (diag, sum float32) {
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		x, y := c.X+d[0], c.Y+d[1]
		if !c.Domain.Contains(x, y) {
			diag += 2
			continue
		}
		w := c.LoadAt(2, x, y)
		diag += w
		sum += w * c.LoadAt(0, x, y)
	}
	return diag, sum
}

func jacobi(c *compute.Cell) {
	p := c.Load(0)
	if c.Load(2) == 0 {
		c.Store(3, 0)
		return
	}
	diag, sum := stencil(c)
	if diag == 0 {
		c.Store(3, p)
		return
	}
	omega, h2 := c.Float32(0), c.Float32(1)
	c.Store(3, (1-omega)*p+omega*(h2*c.Load(1)+sum)/diag)
}

func residual(c *compute.Cell) {
	if c.Load(2) == 0 {
		c.Store(3, 0)
		return
	}
	diag, sum := stencil(c)
	c.Store(3, c.Load(1)-(diag*c.Load(0)-sum)/c.Float32(0))
}

func restrict(c *compute.Cell) {
	x, y := 2*c.X, 2*c.Y
	c.Store(1, 0.25*(c.LoadAt(0, x, y)+c.LoadAt(0, x+1, y)+c.LoadAt(0, x, y+1)+c.LoadAt(0, x+1, y+1)))
}

func prolongate(c *compute.Cell) {
	cx := (float32(c.X)+0.5)*0.5 - 0.5
	cy := (float32(c.Y)+0.5)*0.5 - 0.5
	x0f := float32(math.Floor(float64(cx)))
	y0f := float32(math.Floor(float64(cy)))
	fx, fy := cx-x0f, cy-y0f
	x0, y0 := int(x0f), int(y0f)

	top := lerp(c.LoadAt(0, x0, y0), c.LoadAt(0, x0+1, y0), fx)
	bottom := lerp(c.LoadAt(0, x0, y0+1), c.LoadAt(0, x0+1, y0+1), fx)
	c.Store(1, lerp(top, bottom, fy))
}

func correct(c *compute.Cell) {
	c.Store(2, c.Load(0)+c.Load(1))
}

// crossing returns the fraction of the way from p to q at which the
// linear interpolant changes sign, or noCrossing.
func crossing(c *compute.Cell, p, s float32, x, y int) float32 {
	if !c.Domain.Contains(x, y) {
		return noCrossing
	}
	q := c.LoadAt(0, x, y)
	if sign(q) == s {
		return noCrossing
	}
	return p / (p - q)
}

// anchor returns the sub-cell distance to the interface of a cell next to
// a sign change of phi0.
func anchor(c *compute.Cell, p0, s float32) (float32, bool) {
	dx := min(crossing(c, p0, s, c.X-1, c.Y), crossing(c, p0, s, c.X+1, c.Y))
	dy := min(crossing(c, p0, s, c.X, c.Y-1), crossing(c, p0, s, c.X, c.Y+1))
	switch {
	case dx == noCrossing && dy == noCrossing:
		return 0, false
	case dy == noCrossing:
		return s * dx, true
	case dx == noCrossing:
		return s * dy, true
	case dx == 0 || dy == 0:
		return 0, true
	default:
		return s * dx * dy / float32(math.Sqrt(float64(dx*dx+dy*dy))), true
	}
}

func redistance(c *compute.Cell) {
	p0 := c.Load(0)
	s := sign(p0)
	if d, ok := anchor(c, p0, s); ok {
		c.Store(2, d)
		return
	}

	at := func(x, y int) float32 {
		x = min(max(x, 0), c.Domain.Width-1)
		y = min(max(y, 0), c.Domain.Height-1)
		return c.LoadAt(1, x, y)
	}
	p := c.Load(1)
	dxm, dxp := p-at(c.X-1, c.Y), at(c.X+1, c.Y)-p
	dym, dyp := p-at(c.X, c.Y-1), at(c.X, c.Y+1)-p

	var gx, gy float32
	if s > 0 {
		gx = max(sq(max(dxm, 0)), sq(min(dxp, 0)))
		gy = max(sq(max(dym, 0)), sq(min(dyp, 0)))
	} else {
		gx = max(sq(min(dxm, 0)), sq(max(dxp, 0)))
		gy = max(sq(min(dym, 0)), sq(max(dyp, 0)))
	}
	g := float32(math.Sqrt(float64(gx + gy)))
	c.Store(2, p-c.Float32(0)*s*(g-1))
}

func extrapolate(c *compute.Cell) {
	solid := c.Load(0)
	value := c.Load(1)
	if solid < 0 {
		best := solid
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			x, y := c.X+d[0], c.Y+d[1]
			if !c.Domain.Contains(x, y) {
				continue
			}
			if n := c.LoadAt(0, x, y); n > best {
				best = n
				value = c.LoadAt(1, x, y)
			}
		}
	}
	c.Store(2, value)
}

func sign(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sq(v float32) float32 { return v * v }

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

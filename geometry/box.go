// Package geometry - Box math shared by anchor generation, matching and post-processing.
package geometry

// Box is an axis-aligned box in corner form, normalized to [0,1] relative to the image.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// CenterBox is an axis-aligned box in center-size form, normalized to [0,1].
type CenterBox struct {
	CX, CY, W, H float32
}

// Rect is a box in absolute pixel units.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Area returns the area of the box. Unordered boxes report a non-positive area.
func (b Box) Area() float32 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Width returns X2 - X1.
func (b Box) Width() float32 { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b Box) Height() float32 { return b.Y2 - b.Y1 }

// Center converts the box to center-size form.
//
// Returns:
//   - The same box as (cx, cy, w, h).
//
// Example:
//
// ```go
//
//	b := Box{X1: 0.1, Y1: 0.1, X2: 0.5, Y2: 0.5}
//	c := b.Center() // CenterBox{CX: 0.3, CY: 0.3, W: 0.4, H: 0.4}
//
// ```
func (b Box) Center() CenterBox {
	return CenterBox{
		CX: (b.X1 + b.X2) / 2,
		CY: (b.Y1 + b.Y2) / 2,
		W:  b.X2 - b.X1,
		H:  b.Y2 - b.Y1,
	}
}

// Scale converts a normalized box into absolute pixels by multiplying every coordinate by
// size and truncating toward zero.
//
// Arguments:
//   - size: The pixel extent that 1.0 maps to.
//
// Returns:
//   - The truncated pixel rectangle.
func (b Box) Scale(size float32) Rect {
	return Rect{
		X1: int(b.X1 * size),
		Y1: int(b.Y1 * size),
		X2: int(b.X2 * size),
		Y2: int(b.Y2 * size),
	}
}

// Corners converts the box to corner form.
func (c CenterBox) Corners() Box {
	return Box{
		X1: c.CX - c.W/2,
		Y1: c.CY - c.H/2,
		X2: c.CX + c.W/2,
		Y2: c.CY + c.H/2,
	}
}

// Dx returns the rectangle width.
func (r Rect) Dx() int { return r.X2 - r.X1 }

// Dy returns the rectangle height.
func (r Rect) Dy() int { return r.Y2 - r.Y1 }

package geometry

import "github.com/chewxy/math32"

// Variances scale the center offset and the log size ratio of the box parameterization.
var Variances = [2]float32{0.1, 0.2}

// Encode maps a matched ground-truth box onto the anchor-relative regression target:
//
//	tx = (gx - ax) / (0.1 * aw)    ty = (gy - ay) / (0.1 * ah)
//	tw = log(gw / aw) / 0.2        th = log(gh / ah) / 0.2
//
// Arguments:
//   - matched: Ground-truth box in corner form.
//   - anchor: Anchor in center-size form.
//
// Returns:
//   - [4]float32: The offsets (tx, ty, tw, th).
func Encode(matched Box, anchor CenterBox) [4]float32 {
	g := matched.Center()
	return [4]float32{
		(g.CX - anchor.CX) / (Variances[0] * anchor.W),
		(g.CY - anchor.CY) / (Variances[0] * anchor.H),
		math32.Log(g.W/anchor.W) / Variances[1],
		math32.Log(g.H/anchor.H) / Variances[1],
	}
}

// Decode reconstructs the absolute box from predicted offsets and returns it in corner
// form. It is the algebraic inverse of Encode.
//
// Arguments:
//   - offsets: Predicted (tx, ty, tw, th).
//   - anchor: Anchor in center-size form.
//
// Returns:
//   - Box: The decoded box (corner form, normalized).
func Decode(offsets [4]float32, anchor CenterBox) Box {
	return CenterBox{
		CX: anchor.CX + offsets[0]*Variances[0]*anchor.W,
		CY: anchor.CY + offsets[1]*Variances[0]*anchor.H,
		W:  anchor.W * math32.Exp(offsets[2]*Variances[1]),
		H:  anchor.H * math32.Exp(offsets[3]*Variances[1]),
	}.Corners()
}

// Sanitize converts a pair of relative coordinates into an ordered absolute interval,
// expanded by padding and clamped to [0, size].
//
// Arguments:
//   - x1, x2: Relative coordinates, in any order.
//   - size: The pixel extent of the axis.
//   - padding: Pixels added on both sides before clamping.
//
// Returns:
//   - lo, hi: The sanitized interval.
func Sanitize(x1, x2, size, padding float32) (float32, float32) {
	x1 *= size
	x2 *= size

	lo := math32.Min(x1, x2)
	hi := math32.Max(x1, x2)
	lo = math32.Max(lo-padding, 0)
	hi = math32.Min(hi+padding, size)

	return lo, hi
}

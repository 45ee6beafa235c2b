package inference

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Per-channel RGB statistics the network was trained with.
var (
	Means = [3]float32{123.68, 116.78, 103.94}
	Stds  = [3]float32{58.40, 57.12, 57.38}
)

// PrepareInput writes img into dst as a normalized [3, size, size] CHW plane.
//
// The image is placed at the top-left of a max(w, h) square padded with the mean color, so
// that boxes and masks map back with a single max(w, h) scale, then resized bilinearly to
// size × size.
//
// Arguments:
//   - img: The image to prepare.
//   - size: The side of the network input.
//   - dst: The destination buffer, at least 3 * size * size floats.
//
// Returns:
//   - error: If dst is too small or img is empty.
func PrepareInput(img image.Image, size int, dst []float32) error {
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination holds %d floats, needs %d", len(dst), channelSize*3)
	}
	b := img.Bounds()
	if b.Empty() {
		return errors.New("image is empty")
	}

	side := max(b.Dx(), b.Dy())
	square := image.NewRGBA(image.Rect(0, 0, side, side))
	mean := color.RGBA{R: uint8(Means[0] + 0.5), G: uint8(Means[1] + 0.5), B: uint8(Means[2] + 0.5), A: 0xff}
	draw.Draw(square, square.Bounds(), &image.Uniform{C: mean}, image.Point{}, draw.Src)
	draw.Draw(square, image.Rect(0, 0, b.Dx(), b.Dy()), img, b.Min, draw.Src)

	resized := resize.Resize(uint(size), uint(size), square, resize.Bilinear)

	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := resized.At(x, y).RGBA()
			red[i] = (float32(r>>8) - Means[0]) / Stds[0]
			green[i] = (float32(g>>8) - Means[1]) / Stds[1]
			blue[i] = (float32(bl>>8) - Means[2]) / Stds[2]
			i++
		}
	}
	return nil
}

// Package anchors - Generation and caching of the fixed anchor grid.
//
// The order of the generated anchors is a contract with the network output layout: cells
// are visited row-major (outer loop over rows, inner loop over columns) and every aspect
// ratio of a cell is emitted before moving to the next cell. Feature levels are
// concatenated in the order they are configured.
package anchors

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-yolact/geometry"
)

// Grid is the size of one feature map in cells.
type Grid struct {
	Height int `json:"height" yaml:"height"`
	Width  int `json:"width" yaml:"width"`
}

// Level describes one feature-pyramid level: its grid and the anchor scale in pixels.
type Level struct {
	Grid  Grid    `json:"grid" yaml:"grid"`
	Scale float32 `json:"scale" yaml:"scale"`
}

// Make generates the anchors of a single feature map.
//
// Every anchor is centered on its cell, ((col+0.5)/width, (row+0.5)/height), and has size
// (scale*sqrt(r)/imgSize, scale/sqrt(r)/imgSize) for aspect ratio r.
//
// Arguments:
//   - grid: Feature map size in cells.
//   - imgSize: Side of the square network input in pixels.
//   - scale: Anchor scale in pixels.
//   - ratios: Aspect ratios (width/height).
//
// Returns:
//   - []geometry.CenterBox: grid.Height*grid.Width*len(ratios) anchors.
//
// Example:
//
// ```go
//
//	a := Make(Grid{Height: 69, Width: 69}, 550, 24, []float32{1, 0.5, 2})
//	fmt.Println(len(a)) // 14283
//
// ```
func Make(grid Grid, imgSize int, scale float32, ratios []float32) []geometry.CenterBox {
	out := make([]geometry.CenterBox, 0, grid.Height*grid.Width*len(ratios))
	size := float32(imgSize)

	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			x := (float32(col) + 0.5) / float32(grid.Width)
			y := (float32(row) + 0.5) / float32(grid.Height)

			for _, r := range ratios {
				ar := math32.Sqrt(r)
				out = append(out, geometry.CenterBox{
					CX: x,
					CY: y,
					W:  scale * ar / size,
					H:  scale / ar / size,
				})
			}
		}
	}

	return out
}

// Pyramid generates and concatenates the anchors of every level, in order.
func Pyramid(levels []Level, imgSize int, ratios []float32) []geometry.CenterBox {
	total := 0
	for _, l := range levels {
		total += l.Grid.Height * l.Grid.Width * len(ratios)
	}

	out := make([]geometry.CenterBox, 0, total)
	for _, l := range levels {
		out = append(out, Make(l.Grid, imgSize, l.Scale, ratios)...)
	}
	return out
}

// Count returns the number of anchors Pyramid produces without generating them.
func Count(levels []Level, ratios []float32) int {
	total := 0
	for _, l := range levels {
		total += l.Grid.Height * l.Grid.Width * len(ratios)
	}
	return total
}

type entry struct {
	once    sync.Once
	anchors []geometry.CenterBox
}

var cache sync.Map

// Cached returns the anchor pyramid for the given layout, generating it once per process.
//
// The returned slice is shared by every caller and must be treated as read-only.
// Concurrent first calls block until the single generation completes.
func Cached(levels []Level, imgSize int, ratios []float32) []geometry.CenterBox {
	key := fmt.Sprintf("%d|%v|%v", imgSize, levels, ratios)

	v, _ := cache.LoadOrStore(key, &entry{})
	e := v.(*entry)
	e.once.Do(func() {
		e.anchors = Pyramid(levels, imgSize, ratios)
	})
	return e.anchors
}

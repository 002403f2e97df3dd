// Package pixeldiff compares two rendered snapshots pixel by pixel and
// produces a difference image: matched pixels dimmed toward white,
// differing pixels painted in a highlight colour.
package pixeldiff

import (
	"fmt"
	"image"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Options tunes the comparison.
type Options struct {
	// Threshold is the CIE-Lab distance above which two pixels differ.
	// colorful scales L to [0,1], so 0.05 is roughly a ΔE of 5.
	Threshold float64
	// Dim is the share of a matched pixel's grey level kept after blending
	// toward white. 0 paints matched pixels white, 1 keeps plain greyscale.
	Dim float64
	// Highlight paints differing pixels.
	Highlight color.RGBA
	// Grid is the cell size in pixels used to report changed regions.
	Grid int
	// RegionMin is the share of differing pixels a cell needs to be reported.
	RegionMin float64
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		Threshold: 0.05,
		Dim:       0.1,
		Highlight: color.RGBA{R: 0xff, A: 0xff},
		Grid:      50,
		RegionMin: 0.1,
	}
}

// ParseHighlight parses a "#rrggbb" colour.
func ParseHighlight(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("pixeldiff: highlight %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// Region is a grid cell where the share of differing pixels exceeds
// Options.RegionMin.
type Region struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Ratio  float64 `json:"ratio"`
}

// Result is the difference image and its statistics.
type Result struct {
	Image       *image.RGBA `json:"-"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	DiffPixels  int         `json:"diff_pixels"`
	TotalPixels int         `json:"total_pixels"`
	Ratio       float64     `json:"ratio"`
	Regions     []Region    `json:"regions"`
}

// Compare diffs a against b. The output covers the largest width and height
// of the two; pixels present in only one input count as different.
func Compare(a, b image.Image, opts Options) *Result {
	ab, bb := a.Bounds(), b.Bounds()
	w := max(ab.Dx(), bb.Dx())
	h := max(ab.Dy(), bb.Dy())
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	res := &Result{Image: out, Width: w, Height: h, TotalPixels: w * h}

	grid := opts.Grid
	if grid <= 0 {
		grid = w + h + 1
	}
	cols, rows := (w+grid-1)/grid, (h+grid-1)/grid
	cells := make([]int, cols*rows)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pa, inA := pixel(a, ab, x, y)
			pb, inB := pixel(b, bb, x, y)
			if inA && inB && same(pa, pb, opts.Threshold) {
				out.SetRGBA(x, y, dim(pb, opts.Dim))
				continue
			}
			out.SetRGBA(x, y, opts.Highlight)
			res.DiffPixels++
			cells[(y/grid)*cols+x/grid]++
		}
	}

	if res.TotalPixels > 0 {
		res.Ratio = float64(res.DiffPixels) / float64(res.TotalPixels)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			n := cells[r*cols+c]
			if n == 0 {
				continue
			}
			cw := min(grid, w-c*grid)
			ch := min(grid, h-r*grid)
			ratio := float64(n) / float64(cw*ch)
			if ratio > opts.RegionMin {
				res.Regions = append(res.Regions, Region{X: c * grid, Y: r * grid, Width: cw, Height: ch, Ratio: ratio})
			}
		}
	}
	return res
}

// pixel returns the pixel at (x, y) relative to the image origin,
// composited over white.
func pixel(img image.Image, b image.Rectangle, x, y int) (color.RGBA, bool) {
	if x >= b.Dx() || y >= b.Dy() {
		return color.RGBA{}, false
	}
	r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
	// RGBA() is alpha-premultiplied; adding the uncovered share of white
	// composites the pixel over a white page.
	bg := 0xffff - a
	return color.RGBA{
		R: uint8((r + bg) >> 8),
		G: uint8((g + bg) >> 8),
		B: uint8((bl + bg) >> 8),
		A: 0xff,
	}, true
}

func same(p, q color.RGBA, threshold float64) bool {
	if p == q {
		return true
	}
	cp := colorful.Color{R: float64(p.R) / 255, G: float64(p.G) / 255, B: float64(p.B) / 255}
	cq := colorful.Color{R: float64(q.R) / 255, G: float64(q.G) / 255, B: float64(q.B) / 255}
	return cp.DistanceLab(cq) <= threshold
}

func dim(p color.RGBA, keep float64) color.RGBA {
	lum := 0.299*float64(p.R) + 0.587*float64(p.G) + 0.114*float64(p.B)
	v := uint8(255 - (255-lum)*clamp01(keep) + 0.5)
	return color.RGBA{R: v, G: v, B: v, A: 0xff}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

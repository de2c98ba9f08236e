package rimage

import (
	"math"

	"github.com/golang/geo/r2"
)

// NearestNeighborIndex returns the row-major index of the pixel closest to pt in a width×height
// grid, or -1 when pt rounds outside of it.
func NearestNeighborIndex(pt r2.Point, width, height int) int {
	if math.IsNaN(pt.X) || math.IsNaN(pt.Y) {
		return -1
	}
	x, y := math.Round(pt.X), math.Round(pt.Y)
	if x < 0 || y < 0 || x >= float64(width) || y >= float64(height) {
		return -1
	}
	return int(y)*width + int(x)
}

package rgbd

import (
	"github.com/golang/geo/r2"
)

// appendTexCoords appends one texture coordinate per projected color pixel, in order. With mirror
// set the horizontal axis is flipped around colorWidth, matching the mirrored unprojection.
func appendTexCoords(dst, projected []r2.Point, colorWidth int, cfg Config) []r2.Point {
	w := float64(colorWidth)
	for _, p := range projected {
		tc := r2.Point{X: p.X * cfg.XTexScale, Y: p.Y * cfg.YTexScale}
		if cfg.Mirror {
			tc.X = w - tc.X
		}
		dst = append(dst, tc)
	}
	return dst
}

package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// ProjectPoints moves each point into the target camera frame with tf and projects it through
// model, distortion included. One image point is produced per input point, in input order.
// Results are appended to dst[:0], so callers can reuse the returned slice across calls.
// A point lying on the camera plane (z == 0) is projected as if z were 1.
func ProjectPoints(points []r3.Vector, tf *RigidTransform, model *PinholeCameraModel, dst []r2.Point) []r2.Point {
	dst = dst[:0]
	for _, p := range points {
		q := tf.Apply(p)
		invZ := 1.
		if q.Z != 0 {
			invZ = 1 / q.Z
		}
		x, y := q.X*invZ, q.Y*invZ
		if model.Distortion != nil {
			x, y = model.Distortion.Transform(x, y)
		}
		dst = append(dst, r2.Point{X: x*model.Fx + model.Ppx, Y: y*model.Fy + model.Ppy})
	}
	return dst
}

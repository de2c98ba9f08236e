package transform

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/rgbdmesh/rimage"
)

// DepthUndistorter removes lens distortion from depth frames. The remap table is computed once
// per camera model; every destination pixel copies the exact depth of its nearest source pixel,
// so no depth value is ever synthesized between a foreground and a background sample.
type DepthUndistorter struct {
	width  int
	height int
	// source index per destination pixel, -1 when the source falls outside of the frame
	lut []int
}

// NewDepthUndistorter builds the nearest neighbor remap table for the given depth camera.
func NewDepthUndistorter(model *PinholeCameraModel) (*DepthUndistorter, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	w, h := model.Width, model.Height
	du := &DepthUndistorter{width: w, height: h, lut: make([]int, w*h)}
	distortionMap := model.DistortionMap()
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			x, y := distortionMap(float64(u), float64(v))
			du.lut[v*w+u] = rimage.NearestNeighborIndex(r2.Point{X: x, Y: y}, w, h)
		}
	}
	return du, nil
}

// Undistort writes the undistorted version of src into dst. Both must match the camera size.
func (du *DepthUndistorter) Undistort(src, dst *rimage.DepthMap) error {
	if src == nil || dst == nil {
		return errors.New("input DepthMap is nil")
	}
	if src.Width() != du.width || src.Height() != du.height {
		return errors.Errorf("depth dimension and intrinsics don't match Depth(%d,%d) != Intrinsics(%d,%d)",
			src.Width(), src.Height(), du.width, du.height)
	}
	if dst.Width() != du.width || dst.Height() != du.height {
		return errors.Errorf("output depth dimension and intrinsics don't match Depth(%d,%d) != Intrinsics(%d,%d)",
			dst.Width(), dst.Height(), du.width, du.height)
	}
	in, out := src.Raw(), dst.Raw()
	for i, idx := range du.lut {
		if idx < 0 {
			out[i] = 0
			continue
		}
		out[i] = in[idx]
	}
	return nil
}

// UndistortDepthMap takes an input depth map and creates a new depth map the same size, undistorted
// according to the distortion model in PinholeCameraModel with nearest neighbor sampling.
func (params *PinholeCameraModel) UndistortDepthMap(dm *rimage.DepthMap) (*rimage.DepthMap, error) {
	if dm == nil {
		return nil, errors.New("input DepthMap is nil")
	}
	du, err := NewDepthUndistorter(params)
	if err != nil {
		return nil, err
	}
	undistortedDm := rimage.NewEmptyDepthMap(dm.Width(), dm.Height())
	if err := du.Undistort(dm, undistortedDm); err != nil {
		return nil, err
	}
	return undistortedDm, nil
}

package transform

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestPinholeCheckValid(t *testing.T) {
	var nilIntrinsics *PinholeCameraIntrinsics
	err := nilIntrinsics.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	intrinsics := &PinholeCameraIntrinsics{Width: 0, Height: 480, Fx: 1, Fy: 1}
	test.That(t, intrinsics.CheckValid(), test.ShouldNotBeNil)
	intrinsics = &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: -1, Fy: 1}
	test.That(t, intrinsics.CheckValid(), test.ShouldNotBeNil)
	intrinsics = &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 1, Fy: 1, Ppx: -3}
	test.That(t, intrinsics.CheckValid(), test.ShouldNotBeNil)
	intrinsics = &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 580, Fy: 580, Ppx: 320, Ppy: 240}
	test.That(t, intrinsics.CheckValid(), test.ShouldBeNil)

	model := &PinholeCameraModel{PinholeCameraIntrinsics: intrinsics, Distortion: (*BrownConrady)(nil)}
	test.That(t, model.CheckValid(), test.ShouldNotBeNil)
	model.Distortion = &BrownConrady{}
	test.That(t, model.CheckValid(), test.ShouldBeNil)
}

func TestFieldOfViewRoundTrip(t *testing.T) {
	intrinsics := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 320, Fy: 240, Ppx: 320, Ppy: 240}
	fovX, fovY := intrinsics.FieldOfView()
	// fx equal to half the width is a 90 degree field of view
	test.That(t, fovX, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, fovY, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, 2*math.Tan(fovX/2), test.ShouldAlmostEqual, float64(intrinsics.Width)/intrinsics.Fx)

	fromFOV, err := NewPinholeCameraIntrinsicsFromFOV(640, 480, 320, 240, fovX, fovY)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fromFOV.Fx, test.ShouldAlmostEqual, intrinsics.Fx)
	test.That(t, fromFOV.Fy, test.ShouldAlmostEqual, intrinsics.Fy)

	_, err = NewPinholeCameraIntrinsicsFromFOV(640, 480, 320, 240, 0, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPixelToPointAndBack(t *testing.T) {
	intrinsics := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 580, Fy: 575, Ppx: 319.5, Ppy: 239.5}
	x, y, z := intrinsics.PixelToPoint(100, 400, 1500)
	test.That(t, z, test.ShouldEqual, 1500.)
	u, v := intrinsics.PointToPixel(x, y, z)
	test.That(t, u, test.ShouldAlmostEqual, 100.)
	test.That(t, v, test.ShouldAlmostEqual, 400.)

	u, v = intrinsics.PointToPixel(1, 1, 0)
	test.That(t, u, test.ShouldEqual, -1.)
	test.That(t, v, test.ShouldEqual, -1.)

	k := intrinsics.GetCameraMatrix()
	test.That(t, k.At(0, 0), test.ShouldEqual, 580.)
	test.That(t, k.At(1, 2), test.ShouldEqual, 239.5)
	test.That(t, k.At(2, 2), test.ShouldEqual, 1.)

	fromK, err := NewPinholeCameraIntrinsicsFromMatrix(k, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *fromK, test.ShouldResemble, *intrinsics)
}

func TestDistortionMap(t *testing.T) {
	intrinsics := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Ppx: 320, Ppy: 240}
	model := &PinholeCameraModel{PinholeCameraIntrinsics: intrinsics}
	u, v := model.DistortionMap()(10, 20)
	test.That(t, u, test.ShouldEqual, 10.)
	test.That(t, v, test.ShouldEqual, 20.)

	model.Distortion = &BrownConrady{RadialK1: 0.1}
	// the principal point never moves
	u, v = model.DistortionMap()(320, 240)
	test.That(t, u, test.ShouldAlmostEqual, 320.)
	test.That(t, v, test.ShouldAlmostEqual, 240.)
	// positive k1 pushes points away from the center
	u, _ = model.DistortionMap()(620, 240)
	test.That(t, u, test.ShouldBeGreaterThan, 620.)
}

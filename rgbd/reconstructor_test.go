package rgbd

import (
	"image"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"go.viam.com/rgbdmesh/logging"
	"go.viam.com/rgbdmesh/mesh"
	"go.viam.com/rgbdmesh/rimage"
	"go.viam.com/rgbdmesh/rimage/transform"
)

// unitCalibration has a 90 degree field of view on both axes, no distortion and an identity
// depth to color transform.
func unitCalibration(width, height int) *transform.Calibration {
	intrinsics := func() *transform.PinholeCameraIntrinsics {
		return &transform.PinholeCameraIntrinsics{
			Width: width, Height: height,
			Fx: float64(width) / 2, Fy: float64(height) / 2,
			Ppx: float64(width) / 2, Ppy: float64(height) / 2,
		}
	}
	return &transform.Calibration{
		Depth:        &transform.PinholeCameraModel{PinholeCameraIntrinsics: intrinsics()},
		Color:        &transform.PinholeCameraModel{PinholeCameraIntrinsics: intrinsics()},
		DepthToColor: transform.NewIdentityRigidTransform(),
	}
}

func newTestReconstructor(t *testing.T, width, height int, opts ...Option) (*Reconstructor, *observer.ObservedLogs) {
	t.Helper()
	logger, logs := logging.NewObservedTestLogger(t)
	opts = append([]Option{WithSensorSize(width, height), WithClock(clock.NewMock())}, opts...)
	r, err := NewReconstructor(logger, opts...)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.SetCalibration(unitCalibration(width, height)), test.ShouldBeNil)
	return r, logs
}

func constantFrame(width, height int, d uint16) []uint16 {
	raw := make([]uint16, width*height)
	for i := range raw {
		raw[i] = d
	}
	return raw
}

func TestUpdatePreconditions(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	r, err := NewReconstructor(logger, WithSensorSize(4, 4))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.HasDepthImage(), test.ShouldBeFalse)
	test.That(t, r.HasCalibration(), test.ShouldBeFalse)
	test.That(t, r.HasColorImage(), test.ShouldBeFalse)

	test.That(t, errors.Is(r.Update(), ErrNoDepthImage), test.ShouldBeTrue)
	test.That(t, logs.FilterMessage("update: no depth image").Len(), test.ShouldEqual, 1)

	test.That(t, r.SetDepthPixels(constantFrame(4, 4, 1000)), test.ShouldBeNil)
	test.That(t, r.HasDepthImage(), test.ShouldBeTrue)
	test.That(t, errors.Is(r.Update(), ErrNoCalibration), test.ShouldBeTrue)
	test.That(t, logs.FilterMessage("update: no calibration").Len(), test.ShouldEqual, 1)
	test.That(t, r.Mesh().VertexCount(), test.ShouldEqual, 0)

	err = r.Setup(filepath.Join(t.TempDir(), "missing"))
	test.That(t, errors.Is(err, transform.ErrNoCalibrationDirectory), test.ShouldBeTrue)
	test.That(t, r.HasCalibration(), test.ShouldBeFalse)
	test.That(t, logs.FilterMessage("failed to load calibration").Len(), test.ShouldEqual, 1)

	test.That(t, r.SetCalibration(unitCalibration(4, 4)), test.ShouldBeNil)
	test.That(t, r.Update(), test.ShouldBeNil)
	built := r.Mesh().Clone()
	test.That(t, built.TriangleCount(), test.ShouldEqual, 18)

	// a failed load keeps the previous calibration and mesh
	err = r.Setup(filepath.Join(t.TempDir(), "missing"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, r.HasCalibration(), test.ShouldBeTrue)
	test.That(t, r.Mesh(), test.ShouldResemble, built)
}

func TestSetupFromDirectory(t *testing.T) {
	dir := t.TempDir()
	test.That(t, transform.SaveCalibrationToDirectory(dir, unitCalibration(8, 6)), test.ShouldBeNil)

	logger := logging.NewTestLogger(t)
	r, err := NewReconstructor(logger, WithSensorSize(8, 6))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Setup(dir), test.ShouldBeNil)
	test.That(t, r.HasCalibration(), test.ShouldBeTrue)
	test.That(t, r.Calibration().Depth.Fx, test.ShouldEqual, 4.)

	// the depth camera must match the sensor
	other, err := NewReconstructor(logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, other.Setup(dir), test.ShouldNotBeNil)
	test.That(t, other.HasCalibration(), test.ShouldBeFalse)
}

func TestDepthInput(t *testing.T) {
	r, _ := newTestReconstructor(t, 4, 4)
	test.That(t, r.SetDepthPixels(make([]uint16, 15)), test.ShouldNotBeNil)
	test.That(t, r.HasDepthImage(), test.ShouldBeFalse)
	test.That(t, r.SetDepthImage(rimage.NewEmptyDepthMap(5, 4)), test.ShouldNotBeNil)
	test.That(t, r.SetDepthImage(nil), test.ShouldNotBeNil)
	test.That(t, r.HasDepthImage(), test.ShouldBeFalse)

	dm := rimage.NewEmptyDepthMap(4, 4)
	dm.Set(1, 2, 1234)
	test.That(t, r.SetDepthImage(dm), test.ShouldBeNil)
	test.That(t, r.HasDepthImage(), test.ShouldBeTrue)
	// the frame is copied
	dm.Set(1, 2, 1)
	test.That(t, r.DepthImage().GetDepth(1, 2), test.ShouldEqual, rimage.Depth(1234))
}

func TestFlatPatch(t *testing.T) {
	r, _ := newTestReconstructor(t, 4, 4)
	test.That(t, r.SetDepthPixels(constantFrame(4, 4, 1000)), test.ShouldBeNil)

	test.That(t, r.Update(), test.ShouldBeNil)
	m := r.Mesh()
	test.That(t, m.VertexCount(), test.ShouldEqual, 16)
	test.That(t, r.IndexTemplate().TriangleCount(), test.ShouldEqual, 18)
	test.That(t, m.TriangleCount(), test.ShouldEqual, 18)
	test.That(t, len(m.Normals), test.ShouldEqual, 0)
	test.That(t, len(m.TexCoords), test.ShouldEqual, 0)

	res := r.LastResult()
	test.That(t, res.Vertices, test.ShouldEqual, 16)
	test.That(t, res.Considered, test.ShouldEqual, 18)
	test.That(t, res.Emitted, test.ShouldEqual, 18)
	test.That(t, res.Culled, test.ShouldEqual, 0)
	// the mock clock never moves
	test.That(t, res.Total, test.ShouldEqual, time.Duration(0))

	// pixel (3, 1) is slot 7: x = (3-2)/4 * 1000 * 2, y = (1-2)/4 * 1000 * 2
	v := m.Vertices[7]
	test.That(t, v.X, test.ShouldAlmostEqual, 500.)
	test.That(t, v.Y, test.ShouldAlmostEqual, -500.)
	test.That(t, v.Z, test.ShouldEqual, 1000.)

	// normals only add data
	r.SetCalculateNormals(true)
	test.That(t, r.Update(), test.ShouldBeNil)
	test.That(t, m.TriangleCount(), test.ShouldEqual, 18)
	test.That(t, len(m.Normals), test.ShouldEqual, m.VertexCount())
	test.That(t, r.LastResult().NormalsSet, test.ShouldEqual, 12)

	r.SetCalculateNormals(false)
	test.That(t, r.Update(), test.ShouldBeNil)
	test.That(t, len(m.Normals), test.ShouldEqual, 0)
}

func TestAllZeroFrame(t *testing.T) {
	r, logs := newTestReconstructor(t, 640, 480)
	test.That(t, r.SetDepthPixels(constantFrame(640, 480, 1000)), test.ShouldBeNil)
	test.That(t, r.Update(), test.ShouldBeNil)
	test.That(t, r.Mesh().VertexCount(), test.ShouldEqual, 640*480)

	test.That(t, r.SetDepthPixels(make([]uint16, 640*480)), test.ShouldBeNil)
	err := r.Update()
	test.That(t, errors.Is(err, ErrDegenerateFrame), test.ShouldBeTrue)
	test.That(t, r.Mesh().VertexCount(), test.ShouldEqual, 0)
	test.That(t, r.Mesh().TriangleCount(), test.ShouldEqual, 0)
	test.That(t, r.LastResult().Vertices, test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("update: no vertices").Len(), test.ShouldEqual, 1)

	// two valid samples are still degenerate
	raw := make([]uint16, 640*480)
	raw[0], raw[1] = 1000, 1000
	test.That(t, r.SetDepthPixels(raw), test.ShouldBeNil)
	test.That(t, errors.Is(r.Update(), ErrDegenerateFrame), test.ShouldBeTrue)
	test.That(t, r.Mesh().VertexCount(), test.ShouldEqual, 0)
}

// noisyFrame mixes holes, far samples, a foreground plate and background.
func noisyFrame(width, height int, seed int64) []uint16 {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec
	raw := make([]uint16, width*height)
	for i := range raw {
		switch p := rng.Float64(); {
		case p < 0.1:
			raw[i] = 0
		case p < 0.2:
			raw[i] = uint16(6000 + rng.Intn(3000))
		case p < 0.5:
			raw[i] = uint16(800 + rng.Intn(50))
		default:
			raw[i] = uint16(1000 + rng.Intn(5000))
		}
	}
	return raw
}

func TestValidityAndCullInvariants(t *testing.T) {
	const w, h = 64, 48
	for _, stride := range []int{1, 2, 3} {
		r, _ := newTestReconstructor(t, w, h)
		r.SetStride(stride)
		test.That(t, r.SetEdgeCull(500), test.ShouldBeNil)
		r.SetCalculateNormals(true)
		raw := noisyFrame(w, h, int64(stride))
		test.That(t, r.SetDepthPixels(raw), test.ShouldBeNil)
		test.That(t, r.Update(), test.ShouldBeNil)
		m := r.Mesh()
		tpl := r.IndexTemplate()

		expected := 0
		for slot := 0; slot < tpl.Slots(); slot++ {
			x, y := tpl.SlotPixel(slot)
			if d := raw[y*w+x]; d != 0 && d < 6000 {
				expected++
			}
		}
		test.That(t, m.VertexCount(), test.ShouldEqual, expected)
		for _, v := range m.Vertices {
			test.That(t, v.Z, test.ShouldBeGreaterThan, 0.)
			test.That(t, v.Z, test.ShouldBeLessThan, 6000.)
		}

		test.That(t, m.TriangleCount(), test.ShouldBeGreaterThan, 0)
		for i := 0; i < m.TriangleCount(); i++ {
			a, b, c := m.TriangleVertices(i)
			test.That(t, math.Abs(a.Z-b.Z), test.ShouldBeLessThan, 500.)
			test.That(t, math.Abs(a.Z-c.Z), test.ShouldBeLessThan, 500.)
		}
		res := r.LastResult()
		test.That(t, res.Emitted+res.Culled+res.SkippedInvalid, test.ShouldEqual, tpl.TriangleCount())
		test.That(t, len(m.Normals), test.ShouldEqual, m.VertexCount())
	}
}

func TestTexCoords(t *testing.T) {
	r, _ := newTestReconstructor(t, 8, 6)
	test.That(t, r.SetDepthPixels(constantFrame(8, 6, 1500)), test.ShouldBeNil)
	test.That(t, r.Update(), test.ShouldBeNil)
	test.That(t, len(r.Mesh().TexCoords), test.ShouldEqual, 0)

	color := image.NewRGBA(image.Rect(0, 0, 8, 6))
	r.SetColorImage(color)
	test.That(t, r.HasColorImage(), test.ShouldBeTrue)
	test.That(t, r.ColorImage(), test.ShouldEqual, color)
	test.That(t, r.Update(), test.ShouldBeNil)
	m := r.Mesh()
	test.That(t, len(m.TexCoords), test.ShouldEqual, m.VertexCount())
	test.That(t, r.LastResult().TexCoords, test.ShouldEqual, m.VertexCount())
	// identical cameras project each vertex back onto its own pixel
	tpl := r.IndexTemplate()
	for slot := 0; slot < tpl.Slots(); slot++ {
		x, y := tpl.SlotPixel(slot)
		test.That(t, m.TexCoords[slot].X, test.ShouldAlmostEqual, float64(x), 1e-9)
		test.That(t, m.TexCoords[slot].Y, test.ShouldAlmostEqual, float64(y), 1e-9)
	}

	test.That(t, r.SetTextureScale(0.5, 2), test.ShouldBeNil)
	test.That(t, r.Update(), test.ShouldBeNil)
	test.That(t, m.TexCoords[9].X, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, m.TexCoords[9].Y, test.ShouldAlmostEqual, 2., 1e-9)

	r.SetColorImage(nil)
	test.That(t, r.HasColorImage(), test.ShouldBeFalse)
	test.That(t, r.Update(), test.ShouldBeNil)
	test.That(t, len(m.TexCoords), test.ShouldEqual, 0)
}

func TestUpdateIsIdempotent(t *testing.T) {
	const w, h = 32, 24
	r, _ := newTestReconstructor(t, w, h)
	r.SetColorImage(image.NewGray(image.Rect(0, 0, 64, 48)))
	r.SetCalculateNormals(true)
	test.That(t, r.SetShift(0.5, -1.5), test.ShouldBeNil)
	test.That(t, r.SetDepthPixels(noisyFrame(w, h, 7)), test.ShouldBeNil)

	test.That(t, r.Update(), test.ShouldBeNil)
	first := r.Mesh().Clone()
	test.That(t, r.Update(), test.ShouldBeNil)
	test.That(t, r.Mesh().Vertices, test.ShouldResemble, first.Vertices)
	test.That(t, r.Mesh().Indices, test.ShouldResemble, first.Indices)
	test.That(t, r.Mesh().TexCoords, test.ShouldResemble, first.TexCoords)
	test.That(t, r.Mesh().Normals, test.ShouldResemble, first.Normals)
}

func TestMirror(t *testing.T) {
	const w, h = 8, 6
	r, _ := newTestReconstructor(t, w, h)
	const colorWidth = 16
	r.SetColorImage(image.NewRGBA(image.Rect(0, 0, colorWidth, 12)))
	raw := noisyFrame(w, h, 3)
	test.That(t, r.SetDepthPixels(raw), test.ShouldBeNil)
	test.That(t, r.Update(), test.ShouldBeNil)
	plain := r.Mesh().Clone()

	r.SetMirror(true)
	test.That(t, r.Update(), test.ShouldBeNil)
	mirrored := r.Mesh()
	test.That(t, mirrored.VertexCount(), test.ShouldEqual, plain.VertexCount())
	test.That(t, mirrored.Indices, test.ShouldResemble, plain.Indices)

	// both the unprojection and the texture coordinates flip in the same update
	calib := r.Calibration()
	projected := transform.ProjectPoints(mirrored.Vertices, calib.DepthToColor, calib.Color, nil)
	for i, v := range mirrored.Vertices {
		test.That(t, v.X, test.ShouldEqual, -plain.Vertices[i].X)
		test.That(t, v.Y, test.ShouldEqual, plain.Vertices[i].Y)
		test.That(t, mirrored.TexCoords[i].X, test.ShouldEqual, colorWidth-projected[i].X)
		test.That(t, mirrored.TexCoords[i].Y, test.ShouldEqual, projected[i].Y)
	}
}

func TestStride(t *testing.T) {
	r, logs := newTestReconstructor(t, 640, 480)
	tpl := r.IndexTemplate()
	test.That(t, r.Stride(), test.ShouldEqual, 1)
	test.That(t, tpl.TriangleCount(), test.ShouldEqual, 639*479*2)

	r.SetStride(2)
	test.That(t, r.Stride(), test.ShouldEqual, 2)
	test.That(t, r.IndexTemplate(), test.ShouldNotEqual, tpl)
	test.That(t, r.IndexTemplate().TriangleCount(), test.ShouldEqual, 319*239*2)
	test.That(t, logs.FilterMessage("rebuilt index template").Len(), test.ShouldEqual, 2)

	// same stride keeps the template
	tpl = r.IndexTemplate()
	r.SetStride(2)
	test.That(t, r.IndexTemplate(), test.ShouldEqual, tpl)

	r.SetStride(0)
	test.That(t, r.Stride(), test.ShouldEqual, 1)
	r.SetStride(100)
	test.That(t, r.Stride(), test.ShouldEqual, 8)
	test.That(t, r.IndexTemplate().TriangleCount(), test.ShouldEqual, 79*59*2)

	test.That(t, r.SetDepthPixels(constantFrame(640, 480, 2000)), test.ShouldBeNil)
	test.That(t, r.Update(), test.ShouldBeNil)
	test.That(t, r.Mesh().VertexCount(), test.ShouldEqual, 80*60)
	test.That(t, r.Mesh().TriangleCount(), test.ShouldEqual, 79*59*2)
}

func TestJitter(t *testing.T) {
	const w, h = 16, 12
	build := func(seed int64) *mesh.Mesh {
		r, _ := newTestReconstructor(t, w, h, WithRandSource(rand.NewSource(seed)))
		test.That(t, r.SetJitter(5), test.ShouldBeNil)
		// 5999 stays valid even if the jitter pushes it past the far clip
		raw := constantFrame(w, h, 1000)
		raw[0] = 5999
		test.That(t, r.SetDepthPixels(raw), test.ShouldBeNil)
		test.That(t, r.Update(), test.ShouldBeNil)
		return r.Mesh().Clone()
	}
	m := build(42)
	test.That(t, m.VertexCount(), test.ShouldEqual, w*h)
	distinct := map[float64]struct{}{}
	for _, v := range m.Vertices[1:] {
		test.That(t, v.Z, test.ShouldBeBetweenOrEqual, 995., 1005.)
		distinct[v.Z] = struct{}{}
	}
	test.That(t, len(distinct), test.ShouldBeGreaterThan, 1)

	// jitter is applied before unprojection, so x and y scale with the jittered depth
	v := m.Vertices[w+1]
	test.That(t, v.X, test.ShouldAlmostEqual, (1.-8)/16*v.Z*2, 1e-9)

	test.That(t, build(42).Vertices, test.ShouldResemble, m.Vertices)
	test.That(t, build(43).Vertices, test.ShouldNotResemble, m.Vertices)
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.Stride, test.ShouldEqual, 1)
	test.That(t, cfg.EdgeCull, test.ShouldEqual, 4000.)
	test.That(t, cfg.FarClip, test.ShouldEqual, 6000.)
	test.That(t, cfg.XTexScale, test.ShouldEqual, 1.)
	test.That(t, cfg.Mirror, test.ShouldBeFalse)

	cfg.Stride = 42
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.Normalized().Stride, test.ShouldEqual, 8)

	for _, bad := range []func(c *Config){
		func(c *Config) { c.EdgeCull = 0 },
		func(c *Config) { c.FarClip = -1 },
		func(c *Config) { c.FarClip = 1e9 },
		func(c *Config) { c.Jitter = -1 },
		func(c *Config) { c.XShift = math.NaN() },
		func(c *Config) { c.YTexScale = math.Inf(1) },
	} {
		c := DefaultConfig()
		bad(&c)
		test.That(t, c.Validate(), test.ShouldNotBeNil)
	}

	r, _ := newTestReconstructor(t, 4, 4)
	bad := DefaultConfig()
	bad.EdgeCull = -3
	test.That(t, r.SetConfig(bad), test.ShouldNotBeNil)
	test.That(t, r.Config(), test.ShouldResemble, DefaultConfig())

	good := DefaultConfig()
	good.Stride = 2
	good.Mirror = true
	test.That(t, r.SetConfig(good), test.ShouldBeNil)
	test.That(t, r.Config(), test.ShouldResemble, good)
	test.That(t, r.IndexTemplate().Stride(), test.ShouldEqual, 2)

	_, err := NewReconstructor(logging.NewTestLogger(t), WithConfig(bad))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewReconstructor(logging.NewTestLogger(t), WithSensorSize(0, 10))
	test.That(t, err, test.ShouldNotBeNil)
	r, err = NewReconstructor(nil, WithConfig(good))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Stride(), test.ShouldEqual, 2)
	w, h := r.SensorSize()
	test.That(t, w, test.ShouldEqual, 640)
	test.That(t, h, test.ShouldEqual, 480)

	t.Run("setters validate", func(t *testing.T) {
		r, logs := newTestReconstructor(t, 4, 4)
		before := r.Config()
		test.That(t, r.SetFarClip(math.NaN()), test.ShouldNotBeNil)
		test.That(t, r.SetFarClip(0), test.ShouldNotBeNil)
		test.That(t, r.SetEdgeCull(-1), test.ShouldNotBeNil)
		test.That(t, r.SetJitter(-2), test.ShouldNotBeNil)
		test.That(t, r.SetShift(math.Inf(-1), 0), test.ShouldNotBeNil)
		test.That(t, r.SetTextureScale(1, math.NaN()), test.ShouldNotBeNil)
		test.That(t, r.Config(), test.ShouldResemble, before)
		test.That(t, logs.FilterMessage("invalid config").Len(), test.ShouldEqual, 6)

		test.That(t, r.SetFarClip(3000), test.ShouldBeNil)
		test.That(t, r.SetShift(1, 2), test.ShouldBeNil)
		cfg := r.Config()
		test.That(t, cfg.FarClip, test.ShouldEqual, 3000.)
		test.That(t, cfg.XShift, test.ShouldEqual, 1.)
		test.That(t, cfg.YShift, test.ShouldEqual, 2.)
	})
}

func TestUnprojectorPoint(t *testing.T) {
	intrinsics := &transform.PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 580, Fy: 580, Ppx: 320, Ppy: 240}
	cfg := DefaultConfig()
	cfg.XShift, cfg.YShift = 3, -2
	u := newUnprojector(intrinsics, cfg, nil)
	test.That(t, u.fx, test.ShouldAlmostEqual, 640./580)
	test.That(t, u.fy, test.ShouldAlmostEqual, 480./580)

	p := u.point(100, 50, 2000)
	test.That(t, p.X, test.ShouldAlmostEqual, (100.-320+3)/640*2000*u.fx)
	test.That(t, p.Y, test.ShouldAlmostEqual, (50.-240-2)/480*2000*u.fy)
	test.That(t, p.Z, test.ShouldEqual, 2000.)

	cfg.Mirror = true
	u = newUnprojector(intrinsics, cfg, nil)
	p = u.point(100, 50, 2000)
	test.That(t, p.X, test.ShouldAlmostEqual, (320.-100-3)/640*2000*u.fx)

	test.That(t, u.valid(0), test.ShouldBeFalse)
	test.That(t, u.valid(5999), test.ShouldBeTrue)
	test.That(t, u.valid(6000), test.ShouldBeFalse)

	test.That(t, uniformJitter(nil, 3), test.ShouldBeNil)
	test.That(t, uniformJitter(rand.New(rand.NewSource(1)), 0), test.ShouldBeNil) //nolint:gosec
	j := uniformJitter(rand.New(rand.NewSource(1)), 3)                           //nolint:gosec
	for i := 0; i < 100; i++ {
		test.That(t, math.Abs(j()), test.ShouldBeLessThanOrEqualTo, 3.)
	}
}

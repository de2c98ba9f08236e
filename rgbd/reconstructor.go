// Package rgbd reconstructs a textured triangle mesh from a depth frame and a co-registered color
// frame, given the calibration of both cameras.
package rgbd

import (
	"image"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/rgbdmesh/logging"
	"go.viam.com/rgbdmesh/mesh"
	"go.viam.com/rgbdmesh/rimage"
	"go.viam.com/rgbdmesh/rimage/transform"
)

var (
	// ErrNoDepthImage is returned by Update before any depth frame was set.
	ErrNoDepthImage = errors.New("no depth image")
	// ErrNoCalibration is returned by Update before a calibration was loaded.
	ErrNoCalibration = errors.New("no calibration")
	// ErrDegenerateFrame is returned by Update when fewer than three samples produced vertices.
	ErrDegenerateFrame = errors.New("fewer than 3 valid vertices, no triangle can be formed")
)

// UpdateResult describes the last update.
type UpdateResult struct {
	Vertices int
	mesh.BuildResult
	TexCoords int

	Undistort   time.Duration
	Unproject   time.Duration
	Triangulate time.Duration
	Reproject   time.Duration
	Total       time.Duration
}

// A Reconstructor owns the latest depth frame, color frame binding, calibration and the mesh
// rebuilt from them on every Update. It is not safe for concurrent use; the mesh it returns is
// only valid until the next Update.
type Reconstructor struct {
	logger logging.Logger
	clock  clock.Clock
	rng    *rand.Rand

	width  int
	height int

	cfg         Config
	calib       *transform.Calibration
	undistorter *transform.DepthUndistorter

	depth       *rimage.DepthMap
	undistorted *rimage.DepthMap
	hasDepth    bool
	color       image.Image

	tpl       *mesh.IndexTemplate
	validity  mesh.ValidityMap
	mesh      mesh.Mesh
	projected []r2.Point
	last      UpdateResult
}

// NewReconstructor returns a Reconstructor with no depth frame, no color frame and no calibration.
func NewReconstructor(logger logging.Logger, opts ...Option) (*Reconstructor, error) {
	o := options{width: DefaultSensorWidth, height: DefaultSensorHeight}
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.width <= 0 || o.height <= 0 {
		return nil, errors.Errorf("invalid sensor size (%d,%d)", o.width, o.height)
	}
	cfg := DefaultConfig()
	if o.config != nil {
		cfg = o.config.Normalized()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.source == nil {
		o.source = rand.NewSource(o.clock.Now().UnixNano())
	}

	if logger == nil {
		logger = logging.NewBlankLogger("rgbd")
	}

	r := &Reconstructor{
		logger:      logger,
		clock:       o.clock,
		rng:         rand.New(o.source), //nolint:gosec
		width:       o.width,
		height:      o.height,
		cfg:         cfg,
		depth:       rimage.NewEmptyDepthMap(o.width, o.height),
		undistorted: rimage.NewEmptyDepthMap(o.width, o.height),
	}
	r.rebuildIndexTemplate()
	return r, nil
}

// SensorSize returns the depth sensor resolution.
func (r *Reconstructor) SensorSize() (int, int) {
	return r.width, r.height
}

// Setup loads the calibration directory dir. On failure the previous calibration, if any, is kept.
func (r *Reconstructor) Setup(dir string) error {
	calib, err := transform.NewCalibrationFromDirectory(dir)
	if err != nil {
		r.logger.Errorw("failed to load calibration", "dir", dir, "error", err)
		return err
	}
	return r.SetCalibration(calib)
}

// SetCalibration installs an already loaded calibration. The depth camera must match the sensor size.
func (r *Reconstructor) SetCalibration(calib *transform.Calibration) error {
	if err := calib.CheckValid(); err != nil {
		r.logger.Errorw("invalid calibration", "error", err)
		return err
	}
	if calib.Depth.Width != r.width || calib.Depth.Height != r.height {
		err := errors.Errorf("depth calibration is for (%d,%d), sensor is (%d,%d)",
			calib.Depth.Width, calib.Depth.Height, r.width, r.height)
		r.logger.Errorw("invalid calibration", "error", err)
		return err
	}
	undistorter, err := transform.NewDepthUndistorter(calib.Depth)
	if err != nil {
		r.logger.Errorw("invalid calibration", "error", err)
		return err
	}
	r.calib = calib
	r.undistorter = undistorter
	r.logger.Debugw("calibration set",
		"depth_size", [2]int{calib.Depth.Width, calib.Depth.Height},
		"color_size", [2]int{calib.Color.Width, calib.Color.Height})
	return nil
}

// Calibration returns the current calibration or nil.
func (r *Reconstructor) Calibration() *transform.Calibration {
	return r.calib
}

// HasCalibration reports whether a calibration was loaded.
func (r *Reconstructor) HasCalibration() bool {
	return r.calib != nil
}

// SetDepthImage copies dm into the live depth frame. It must match the sensor size.
func (r *Reconstructor) SetDepthImage(dm *rimage.DepthMap) error {
	if err := r.depth.CopyFrom(dm); err != nil {
		r.logger.Errorw("failed to set depth image", "error", err)
		return err
	}
	r.hasDepth = true
	return nil
}

// SetDepthPixels copies row-major raw depth samples of sensor size into the live depth frame.
func (r *Reconstructor) SetDepthPixels(raw []uint16) error {
	if err := r.depth.SetFromRaw(raw); err != nil {
		r.logger.Errorw("failed to set depth pixels", "error", err)
		return err
	}
	r.hasDepth = true
	return nil
}

// HasDepthImage reports whether a depth frame was set.
func (r *Reconstructor) HasDepthImage() bool {
	return r.hasDepth
}

// DepthImage returns the live depth frame.
func (r *Reconstructor) DepthImage() *rimage.DepthMap {
	return r.depth
}

// UndistortedDepthImage returns the depth frame as undistorted by the last update.
func (r *Reconstructor) UndistortedDepthImage() *rimage.DepthMap {
	return r.undistorted
}

// SetColorImage binds the color frame used for texture coordinates. A nil image unbinds it.
// Its width is read on every update.
func (r *Reconstructor) SetColorImage(img image.Image) {
	r.color = img
}

// ColorImage returns the bound color frame or nil.
func (r *Reconstructor) ColorImage() image.Image {
	return r.color
}

// HasColorImage reports whether a color frame is bound.
func (r *Reconstructor) HasColorImage() bool {
	return r.color != nil
}

// Config returns a copy of the current config.
func (r *Reconstructor) Config() Config {
	return r.cfg
}

// SetConfig replaces the config. The stride is clamped; other invalid values are rejected and
// leave the config unchanged.
func (r *Reconstructor) SetConfig(cfg Config) error {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		r.logger.Errorw("invalid config", "error", err)
		return err
	}
	r.cfg = cfg
	r.rebuildIndexTemplate()
	return nil
}

// SetStride sets the grid stride, clamped to [1, 8]. The index template is rebuilt right away
// when the stride changes.
func (r *Reconstructor) SetStride(stride int) {
	r.cfg.Stride = mesh.ClampStride(stride)
	r.rebuildIndexTemplate()
}

// Stride returns the clamped stride.
func (r *Reconstructor) Stride() int {
	return r.cfg.Stride
}

// SetShift sets the pixel offsets applied before unprojection.
func (r *Reconstructor) SetShift(x, y float64) error {
	return r.modifyConfig(func(cfg *Config) { cfg.XShift, cfg.YShift = x, y })
}

// SetTextureScale sets the scale applied to projected color pixels.
func (r *Reconstructor) SetTextureScale(x, y float64) error {
	return r.modifyConfig(func(cfg *Config) { cfg.XTexScale, cfg.YTexScale = x, y })
}

// SetEdgeCull sets the depth discontinuity threshold.
func (r *Reconstructor) SetEdgeCull(edgeCull float64) error {
	return r.modifyConfig(func(cfg *Config) { cfg.EdgeCull = edgeCull })
}

// SetFarClip sets the far clip depth.
func (r *Reconstructor) SetFarClip(farClip float64) error {
	return r.modifyConfig(func(cfg *Config) { cfg.FarClip = farClip })
}

// SetJitter sets the depth jitter amplitude. Zero disables it.
func (r *Reconstructor) SetJitter(amplitude float64) error {
	return r.modifyConfig(func(cfg *Config) { cfg.Jitter = amplitude })
}

// modifyConfig applies fn to a copy of the config and keeps it only if it validates.
func (r *Reconstructor) modifyConfig(fn func(cfg *Config)) error {
	cfg := r.cfg
	fn(&cfg)
	if err := cfg.Validate(); err != nil {
		r.logger.Errorw("invalid config", "error", err)
		return err
	}
	r.cfg = cfg
	return nil
}

// SetCalculateNormals toggles per-vertex normals.
func (r *Reconstructor) SetCalculateNormals(enabled bool) {
	r.cfg.CalculateNormals = enabled
}

// SetMirror toggles the horizontal mirror.
func (r *Reconstructor) SetMirror(enabled bool) {
	r.cfg.Mirror = enabled
}

func (r *Reconstructor) rebuildIndexTemplate() {
	if r.tpl.Matches(r.width, r.height, r.cfg.Stride) {
		return
	}
	r.tpl = mesh.NewIndexTemplate(r.width, r.height, r.cfg.Stride)
	r.logger.Debugw("rebuilt index template",
		"stride", r.tpl.Stride(), "cols", r.tpl.Cols(), "rows", r.tpl.Rows(), "triangles", r.tpl.TriangleCount())
}

// IndexTemplate returns the template the next update will triangulate with.
func (r *Reconstructor) IndexTemplate() *mesh.IndexTemplate {
	return r.tpl
}

// Mesh returns the mesh built by the last successful update. It is reused by the next update;
// Clone it to keep it.
func (r *Reconstructor) Mesh() *mesh.Mesh {
	return &r.mesh
}

// LastResult returns the counters and phase timings of the last update that got past its
// preconditions.
func (r *Reconstructor) LastResult() UpdateResult {
	return r.last
}

// Update rebuilds the mesh from the live depth frame: undistort, unproject, triangulate and,
// when a color frame is bound, reproject into the color camera for texture coordinates.
// Without a depth frame or calibration it returns an error and leaves the mesh untouched. A frame
// with fewer than three valid samples leaves the mesh empty and returns ErrDegenerateFrame.
func (r *Reconstructor) Update() error {
	if !r.hasDepth {
		r.logger.Errorw("update: no depth image")
		return ErrNoDepthImage
	}
	if r.calib == nil {
		r.logger.Errorw("update: no calibration")
		return ErrNoCalibration
	}

	cfg := r.cfg
	var res UpdateResult
	start := r.clock.Now()
	phase := start

	if err := r.undistorter.Undistort(r.depth, r.undistorted); err != nil {
		r.logger.Errorw("update: failed to undistort depth image", "error", err)
		return err
	}
	res.Undistort = r.clock.Since(phase)

	phase = r.clock.Now()
	r.mesh.Reset()
	r.validity.Resize(r.tpl.Slots())
	u := newUnprojector(r.calib.Depth.PinholeCameraIntrinsics, cfg, uniformJitter(r.rng, cfg.Jitter))
	res.Vertices = u.unproject(r.undistorted, r.tpl, &r.mesh, r.validity)
	res.Unproject = r.clock.Since(phase)
	if res.Vertices < 3 {
		r.mesh.Reset()
		res.Total = r.clock.Since(start)
		r.last = res
		r.logger.Errorw("update: no vertices", "vertices", res.Vertices)
		return ErrDegenerateFrame
	}

	phase = r.clock.Now()
	build, err := mesh.BuildTriangles(&r.mesh, r.tpl, r.validity, mesh.BuildOptions{
		EdgeCull:         cfg.EdgeCull,
		CalculateNormals: cfg.CalculateNormals,
	})
	if err != nil {
		r.mesh.Reset()
		r.logger.Errorw("update: failed to build triangles", "error", err)
		return err
	}
	res.BuildResult = build
	res.Triangulate = r.clock.Since(phase)

	if r.color != nil {
		phase = r.clock.Now()
		r.projected = transform.ProjectPoints(r.mesh.Vertices, r.calib.DepthToColor, r.calib.Color, r.projected)
		r.mesh.TexCoords = appendTexCoords(r.mesh.TexCoords, r.projected, r.color.Bounds().Dx(), cfg)
		res.TexCoords = len(r.mesh.TexCoords)
		res.Reproject = r.clock.Since(phase)
	}
	res.Total = r.clock.Since(start)
	r.last = res

	r.logger.Debugw("updated mesh",
		"vertices", res.Vertices,
		"triangles", res.Emitted,
		"culled", res.Culled,
		"tex_coords", res.TexCoords,
		"undistort", res.Undistort,
		"unproject", res.Unproject,
		"triangulate", res.Triangulate,
		"reproject", res.Reproject,
		"total", res.Total)
	return nil
}

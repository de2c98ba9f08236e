package transform

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// File names expected inside a calibration directory.
const (
	DepthCalibrationFile     = "depthCalib.yml"
	ColorCalibrationFile     = "rgbCalib.yml"
	RotationDepthToColorFile = "rotationDepthToRGB.yml"
	TranslationDepthToColor  = "translationDepthToRGB.yml"
)

// ErrNoCalibrationDirectory is returned when the calibration directory does not exist.
var ErrNoCalibrationDirectory = errors.New("calibration directory doesn't exist")

// Calibration holds everything known about a depth camera paired with a color camera.
// It is immutable once loaded.
type Calibration struct {
	Depth        *PinholeCameraModel
	Color        *PinholeCameraModel
	DepthToColor *RigidTransform
}

// CheckValid checks that both camera models and the extrinsics are present and usable.
func (c *Calibration) CheckValid() error {
	if c == nil {
		return NewNoIntrinsicsError("calibration does not exist")
	}
	if err := c.Depth.CheckValid(); err != nil {
		return errors.Wrap(err, "depth camera")
	}
	if err := c.Color.CheckValid(); err != nil {
		return errors.Wrap(err, "color camera")
	}
	if c.DepthToColor == nil {
		return errors.New("depth to color transform does not exist")
	}
	return nil
}

// NewCalibrationFromDirectory loads the depth and color camera models and the depth to color
// rotation and translation from the four files of a calibration directory.
func NewCalibrationFromDirectory(dir string) (*Calibration, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.Wrapf(ErrNoCalibrationDirectory, "%q", dir)
	}

	depth, err := readCameraModelFile(filepath.Join(dir, DepthCalibrationFile))
	if err != nil {
		return nil, err
	}
	color, err := readCameraModelFile(filepath.Join(dir, ColorCalibrationFile))
	if err != nil {
		return nil, err
	}
	rotation, err := readMatrixFile(filepath.Join(dir, RotationDepthToColorFile))
	if err != nil {
		return nil, err
	}
	translation, err := readMatrixFile(filepath.Join(dir, TranslationDepthToColor))
	if err != nil {
		return nil, err
	}
	if len(translation.Data) != 3 {
		return nil, errors.Errorf("%s: translation must have 3 values, got %d", TranslationDepthToColor, len(translation.Data))
	}
	tf, err := NewRigidTransform(rotation.Data,
		r3.Vector{X: translation.Data[0], Y: translation.Data[1], Z: translation.Data[2]})
	if err != nil {
		return nil, errors.Wrap(err, RotationDepthToColorFile)
	}

	calib := &Calibration{Depth: depth, Color: color, DepthToColor: tf}
	if err := calib.CheckValid(); err != nil {
		return nil, err
	}
	return calib, nil
}

// matrixNode is an OpenCV style serialized matrix.
type matrixNode struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data"`
}

func (m *matrixNode) dense() (*mat.Dense, error) {
	if m.Rows*m.Cols != len(m.Data) || len(m.Data) == 0 {
		return nil, errors.Errorf("matrix is %dx%d but has %d values", m.Rows, m.Cols, len(m.Data))
	}
	return mat.NewDense(m.Rows, m.Cols, m.Data), nil
}

type matrixFile struct {
	Mat        *matrixNode `yaml:"Mat,omitempty"`
	matrixNode `yaml:",inline"`
}

type intrinsicsNode struct {
	Width   int     `yaml:"width_px"`
	Height  int     `yaml:"height_px"`
	Fx      float64 `yaml:"fx"`
	Fy      float64 `yaml:"fy"`
	Ppx     float64 `yaml:"ppx"`
	Ppy     float64 `yaml:"ppy"`
	FovXDeg float64 `yaml:"fov_x_deg,omitempty"`
	FovYDeg float64 `yaml:"fov_y_deg,omitempty"`
}

type distortionNode struct {
	Type       DistortionType `yaml:"type"`
	Parameters []float64      `yaml:"parameters"`
}

// cameraFile accepts either the native layout (intrinsic_parameters + distortion) or the keys
// written by OpenCV based calibration tools (cameraMatrix, imageSize_*, distCoeffs).
type cameraFile struct {
	Intrinsics *intrinsicsNode `yaml:"intrinsic_parameters,omitempty"`
	Distortion *distortionNode `yaml:"distortion,omitempty"`

	CameraMatrix *matrixNode `yaml:"cameraMatrix,omitempty"`
	ImageWidth   int         `yaml:"imageSize_width,omitempty"`
	ImageHeight  int         `yaml:"imageSize_height,omitempty"`
	DistCoeffs   *matrixNode `yaml:"distCoeffs,omitempty"`
}

// readYAML decodes a yaml file, tolerating the "%YAML:1.0" header and "!!opencv-matrix" tags
// that OpenCV's FileStorage writes.
func readYAML(fn string, out interface{}) error {
	//nolint:gosec
	raw, err := os.ReadFile(fn)
	if err != nil {
		return errors.Wrap(err, "error reading calibration file")
	}
	lines := strings.Split(string(raw), "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "%YAML") {
		lines = lines[1:]
	}
	cleaned := strings.ReplaceAll(strings.Join(lines, "\n"), "!!opencv-matrix", "")
	if err := yaml.Unmarshal([]byte(cleaned), out); err != nil {
		return errors.Wrapf(err, "error parsing calibration file %s", fn)
	}
	return nil
}

func readMatrixFile(fn string) (*matrixNode, error) {
	var mf matrixFile
	if err := readYAML(fn, &mf); err != nil {
		return nil, err
	}
	node := &mf.matrixNode
	if mf.Mat != nil {
		node = mf.Mat
	}
	if _, err := node.dense(); err != nil {
		return nil, errors.Wrap(err, fn)
	}
	return node, nil
}

func readCameraModelFile(fn string) (*PinholeCameraModel, error) {
	var cf cameraFile
	if err := readYAML(fn, &cf); err != nil {
		return nil, err
	}
	model, err := cf.cameraModel()
	if err != nil {
		return nil, errors.Wrap(err, fn)
	}
	return model, nil
}

func (cf *cameraFile) cameraModel() (*PinholeCameraModel, error) {
	var intrinsics *PinholeCameraIntrinsics
	var err error
	switch {
	case cf.Intrinsics != nil && cf.Intrinsics.Fx == 0 && cf.Intrinsics.FovXDeg != 0:
		in := cf.Intrinsics
		intrinsics, err = NewPinholeCameraIntrinsicsFromFOV(in.Width, in.Height, in.Ppx, in.Ppy,
			in.FovXDeg*math.Pi/180, in.FovYDeg*math.Pi/180)
	case cf.Intrinsics != nil:
		in := cf.Intrinsics
		intrinsics = &PinholeCameraIntrinsics{in.Width, in.Height, in.Fx, in.Fy, in.Ppx, in.Ppy}
		err = intrinsics.CheckValid()
	case cf.CameraMatrix != nil:
		var k *mat.Dense
		if k, err = cf.CameraMatrix.dense(); err == nil {
			intrinsics, err = NewPinholeCameraIntrinsicsFromMatrix(k, cf.ImageWidth, cf.ImageHeight)
		}
	default:
		err = NewNoIntrinsicsError("no intrinsic_parameters or cameraMatrix")
	}
	if err != nil {
		return nil, err
	}

	var distortion Distorter
	switch {
	case cf.Distortion != nil:
		distortion, err = NewDistorter(cf.Distortion.Type, cf.Distortion.Parameters)
	case cf.DistCoeffs != nil:
		distortion, err = NewBrownConradyFromOpenCV(cf.DistCoeffs.Data)
	}
	if err != nil {
		return nil, err
	}
	return &PinholeCameraModel{PinholeCameraIntrinsics: intrinsics, Distortion: distortion}, nil
}

// SaveCalibrationToDirectory writes calib in the layout read by NewCalibrationFromDirectory,
// creating dir if needed.
func SaveCalibrationToDirectory(dir string, calib *Calibration) error {
	if err := calib.CheckValid(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	for fn, model := range map[string]*PinholeCameraModel{
		DepthCalibrationFile: calib.Depth,
		ColorCalibrationFile: calib.Color,
	} {
		in := model.PinholeCameraIntrinsics
		cf := cameraFile{Intrinsics: &intrinsicsNode{
			Width: in.Width, Height: in.Height, Fx: in.Fx, Fy: in.Fy, Ppx: in.Ppx, Ppy: in.Ppy,
		}}
		if model.Distortion != nil {
			cf.Distortion = &distortionNode{Type: model.Distortion.ModelType(), Parameters: model.Distortion.Parameters()}
		}
		if err := writeYAML(filepath.Join(dir, fn), cf); err != nil {
			return err
		}
	}

	tf := calib.DepthToColor
	rotation := matrixFile{matrixNode: matrixNode{Rows: 3, Cols: 3, Data: append([]float64(nil), tf.rot[:]...)}}
	if err := writeYAML(filepath.Join(dir, RotationDepthToColorFile), rotation); err != nil {
		return err
	}
	translation := matrixFile{matrixNode: matrixNode{
		Rows: 3, Cols: 1, Data: []float64{tf.Translation.X, tf.Translation.Y, tf.Translation.Z},
	}}
	return writeYAML(filepath.Join(dir, TranslationDepthToColor), translation)
}

func writeYAML(fn string, in interface{}) error {
	out, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return os.WriteFile(fn, out, 0o600)
}

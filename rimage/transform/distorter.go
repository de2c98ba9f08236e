package transform

import "github.com/pkg/errors"

// DistortionType is the name of the distortion model.
type DistortionType string

const (
	// BrownConradyDistortionType is for simple lenses of narrow field easily modeled as a pinhole camera.
	BrownConradyDistortionType = DistortionType("brown_conrady")
	// InverseBrownConradyDistortionType is for calibrations that ship the inverse of a Brown-Conrady model.
	InverseBrownConradyDistortionType = DistortionType("inverse_brown_conrady")
	// NoDistortionType is for already rectified cameras.
	NoDistortionType = DistortionType("no_distortion")
)

// Distorter defines a Transform that takes an undistorted image and distorts it according to the model.
// Coordinates are normalized image coordinates, i.e. (u-ppx)/fx and (v-ppy)/fy.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errors.New("invalid distortion_parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters. An empty
// type or NoDistortionType yields a nil Distorter, which leaves points unchanged.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case "", NoDistortionType:
		return nil, nil
	case BrownConradyDistortionType:
		return NewBrownConrady(parameters)
	case InverseBrownConradyDistortionType:
		return NewInverseBrownConrady(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}

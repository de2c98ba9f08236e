package transform

import "github.com/pkg/errors"

const (
	inverseMaxIterations = 20
	inverseTolerance     = 1e-10
)

// InverseBrownConrady undoes a BrownConrady distortion: given a distorted normalized point it
// returns the undistorted point that the forward model maps onto it.
type InverseBrownConrady struct {
	Forward BrownConrady `json:"forward" yaml:"forward"`
}

// CheckValid checks if the fields for InverseBrownConrady have valid inputs.
func (ibc *InverseBrownConrady) CheckValid() error {
	if ibc == nil {
		return InvalidDistortionError("InverseBrownConrady shaped distortion_parameters not provided")
	}
	return nil
}

// NewInverseBrownConrady takes the forward model coefficients k1, k2, k3, p1, p2 in order.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	forward, err := NewBrownConrady(inp)
	if err != nil {
		return nil, errors.Wrap(err, "inverse brown conrady")
	}
	return &InverseBrownConrady{Forward: *forward}, nil
}

// ModelType returns the type of distortion model.
func (ibc *InverseBrownConrady) ModelType() DistortionType {
	return InverseBrownConradyDistortionType
}

// Parameters returns the forward model parameters as a list of floats.
func (ibc *InverseBrownConrady) Parameters() []float64 {
	if ibc == nil {
		return []float64{}
	}
	return ibc.Forward.Parameters()
}

// Transform solves BrownConrady.Transform(xu, yu) = (xd, yd) for (xu, yu) with Newton-Raphson
// iterations seeded at the distorted point.
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64) {
	if ibc == nil {
		return xd, yd
	}

	xu, yu := xd, yd
	for i := 0; i < inverseMaxIterations; i++ {
		xEst, yEst := ibc.Forward.Transform(xu, yu)
		errX, errY := xEst-xd, yEst-yd
		if errX*errX+errY*errY < inverseTolerance*inverseTolerance {
			break
		}

		dxdx, dxdy, dydx, dydy := ibc.Forward.jacobian(xu, yu)
		det := dxdx*dydy - dxdy*dydx
		if det == 0 {
			break
		}
		xu -= (dydy*errX - dxdy*errY) / det
		yu -= (-dydx*errX + dxdx*errY) / det
	}
	return xu, yu
}

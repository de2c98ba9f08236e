package transform

import "github.com/pkg/errors"

// BrownConrady is a struct for some terms of a modified Brown-Conrady model of distortion.
// It matches the five coefficient model used by OpenCV, with the coefficients stored
// radial first: k1, k2, k3, p1, p2.
type BrownConrady struct {
	RadialK1     float64 `json:"rk1" yaml:"rk1"`
	RadialK2     float64 `json:"rk2" yaml:"rk2"`
	RadialK3     float64 `json:"rk3" yaml:"rk3"`
	TangentialP1 float64 `json:"tp1" yaml:"tp1"`
	TangentialP2 float64 `json:"tp2" yaml:"tp2"`
}

// CheckValid checks if the fields for BrownConrady have valid inputs.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	return nil
}

// NewBrownConrady takes in a slice of floats that will be passed into the struct in order.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	if len(inp) == 0 {
		return &BrownConrady{}, nil
	}
	params := make([]float64, 5)
	copy(params, inp)
	return &BrownConrady{params[0], params[1], params[2], params[3], params[4]}, nil
}

// NewBrownConradyFromOpenCV takes coefficients in OpenCV order (k1, k2, p1, p2, k3).
func NewBrownConradyFromOpenCV(coeffs []float64) (*BrownConrady, error) {
	if len(coeffs) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(coeffs))
	}
	params := make([]float64, 5)
	copy(params, coeffs)
	return &BrownConrady{
		RadialK1:     params[0],
		RadialK2:     params[1],
		RadialK3:     params[4],
		TangentialP1: params[2],
		TangentialP2: params[3],
	}, nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the distortion parameters as a list of floats.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.RadialK3, bc.TangentialP1, bc.TangentialP2}
}

// Transform distorts the normalized input point (x, y):
//
//	x_d = x * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x*y + p2*(r² + 2*x²)
//	y_d = y * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x*y + p1*(r² + 2*y²)
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	if bc == nil {
		return x, y
	}
	r2 := x*x + y*y
	radDist := 1. + bc.RadialK1*r2 + bc.RadialK2*r2*r2 + bc.RadialK3*r2*r2*r2
	radDistX := x * radDist
	radDistY := y * radDist
	tanDistX := 2.*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2.*x*x)
	tanDistY := 2.*bc.TangentialP2*x*y + bc.TangentialP1*(r2+2.*y*y)
	return radDistX + tanDistX, radDistY + tanDistY
}

// jacobian returns the partial derivatives of Transform at (x, y) as
// dxd/dx, dxd/dy, dyd/dx, dyd/dy.
func (bc *BrownConrady) jacobian(x, y float64) (float64, float64, float64, float64) {
	r2 := x*x + y*y
	radDist := 1. + bc.RadialK1*r2 + bc.RadialK2*r2*r2 + bc.RadialK3*r2*r2*r2
	// d(radDist)/d(r2)
	dRad := bc.RadialK1 + 2.*bc.RadialK2*r2 + 3.*bc.RadialK3*r2*r2

	dxdx := radDist + 2.*x*x*dRad + 2.*bc.TangentialP1*y + 6.*bc.TangentialP2*x
	dxdy := 2.*x*y*dRad + 2.*bc.TangentialP1*x + 2.*bc.TangentialP2*y
	dydx := 2.*x*y*dRad + 2.*bc.TangentialP2*y + 2.*bc.TangentialP1*x
	dydy := radDist + 2.*y*y*dRad + 2.*bc.TangentialP2*x + 6.*bc.TangentialP1*y
	return dxdx, dxdy, dydx, dydy
}

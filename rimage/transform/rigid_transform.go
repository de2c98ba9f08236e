package transform

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RigidTransform maps points from one camera frame to another: p' = Rotation·p + Translation.
type RigidTransform struct {
	Rotation    *mat.Dense
	Translation r3.Vector

	rot [9]float64
}

// NewIdentityRigidTransform returns the transform that leaves points unchanged.
func NewIdentityRigidTransform() *RigidTransform {
	tf, err := NewRigidTransform([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, r3.Vector{})
	if err != nil {
		// shouldn't happen
		panic(err)
	}
	return tf
}

// NewRigidTransform creates a transform from a rotation and translation. The rotation is either
// nine values of a row-major 3x3 matrix or three values of a Rodrigues rotation vector.
func NewRigidTransform(rotation []float64, translation r3.Vector) (*RigidTransform, error) {
	var rot *mat.Dense
	switch len(rotation) {
	case 9:
		rot = mat.NewDense(3, 3, append([]float64(nil), rotation...))
	case 3:
		rot = RodriguesToRotationMatrix(r3.Vector{X: rotation[0], Y: rotation[1], Z: rotation[2]})
	default:
		return nil, errors.Errorf("rotation must have 3 (Rodrigues) or 9 (matrix) values, got %d", len(rotation))
	}

	// a rotation matrix has unit determinant; anything else would scale or mirror the cloud
	if det := mat.Det(rot); math.Abs(det-1) > 1e-3 {
		return nil, errors.Errorf("rotation matrix is not a proper rotation, determinant is %v", det)
	}

	tf := &RigidTransform{Rotation: rot, Translation: translation}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			tf.rot[3*i+j] = rot.At(i, j)
		}
	}
	return tf, nil
}

// RodriguesToRotationMatrix converts an axis-angle vector, whose norm is the angle in radians,
// to a 3x3 rotation matrix.
func RodriguesToRotationMatrix(v r3.Vector) *mat.Dense {
	theta := v.Norm()
	if theta < 1e-12 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	k := v.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	t := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + t*k.X*k.X, t*k.X*k.Y - s*k.Z, t*k.X*k.Z + s*k.Y,
		t*k.Y*k.X + s*k.Z, c + t*k.Y*k.Y, t*k.Y*k.Z - s*k.X,
		t*k.Z*k.X - s*k.Y, t*k.Z*k.Y + s*k.X, c + t*k.Z*k.Z,
	})
}

// Apply moves p into the destination frame.
func (tf *RigidTransform) Apply(p r3.Vector) r3.Vector {
	if tf == nil {
		return p
	}
	r := &tf.rot
	return r3.Vector{
		X: r[0]*p.X + r[1]*p.Y + r[2]*p.Z + tf.Translation.X,
		Y: r[3]*p.X + r[4]*p.Y + r[5]*p.Z + tf.Translation.Y,
		Z: r[6]*p.X + r[7]*p.Y + r[8]*p.Z + tf.Translation.Z,
	}
}

// PoseMatrix returns the 3x4 matrix [R|t].
func (tf *RigidTransform) PoseMatrix() *mat.Dense {
	t := mat.NewDense(3, 1, []float64{tf.Translation.X, tf.Translation.Y, tf.Translation.Z})
	var pose mat.Dense
	pose.Augment(tf.Rotation, t)
	return &pose
}

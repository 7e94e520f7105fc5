package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Pose is the rigid transform from the calibration target's frame to the
// camera frame for one observation: an axis-angle rotation vector whose norm
// is the rotation angle in radians, and a translation.
type Pose struct {
	Rotation    r3.Vector `json:"rvec"`
	Translation r3.Vector `json:"tvec"`
}

// RotationVectorToMatrix converts an axis-angle rotation vector to a 3x3
// rotation matrix using the Rodrigues formula.
func RotationVectorToMatrix(rvec r3.Vector) *mat.Dense {
	theta := rvec.Norm()
	if theta < 1e-12 {
		return eye(3)
	}
	axis := rvec.Mul(1. / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	t := 1 - c
	x, y, z := axis.X, axis.Y, axis.Z
	return mat.NewDense(3, 3, []float64{
		t*x*x + c, t*x*y - s*z, t*x*z + s*y,
		t*x*y + s*z, t*y*y + c, t*y*z - s*x,
		t*x*z - s*y, t*y*z + s*x, t*z*z + c,
	})
}

// RotationMatrixToVector converts a 3x3 rotation matrix to its axis-angle
// rotation vector representation.
func RotationMatrixToVector(m *mat.Dense) r3.Vector {
	trace := m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
	cosTheta := (trace - 1.) / 2.
	theta := math.Acos(math.Max(-1, math.Min(1, cosTheta)))
	if theta < 1e-12 {
		return r3.Vector{}
	}
	if math.Pi-theta < 1e-6 {
		// near 180 degrees the off-diagonal differences vanish; recover the
		// axis from the diagonal instead
		x := math.Sqrt(math.Max(0, (m.At(0, 0)+1.)/2.))
		y := math.Sqrt(math.Max(0, (m.At(1, 1)+1.)/2.))
		z := math.Sqrt(math.Max(0, (m.At(2, 2)+1.)/2.))
		if m.At(0, 1) < 0 {
			y = -y
		}
		if m.At(0, 2) < 0 {
			z = -z
		}
		return r3.Vector{X: x, Y: y, Z: z}.Mul(theta)
	}
	axis := r3.Vector{
		X: m.At(2, 1) - m.At(1, 2),
		Y: m.At(0, 2) - m.At(2, 0),
		Z: m.At(1, 0) - m.At(0, 1),
	}.Mul(1. / (2. * math.Sin(theta)))
	return axis.Mul(theta)
}

// TransformPoint brings a point in the target frame into the camera frame.
func (p *Pose) TransformPoint(pt r3.Vector) r3.Vector {
	rot := RotationVectorToMatrix(p.Rotation)
	return r3.Vector{
		X: rot.At(0, 0)*pt.X + rot.At(0, 1)*pt.Y + rot.At(0, 2)*pt.Z + p.Translation.X,
		Y: rot.At(1, 0)*pt.X + rot.At(1, 1)*pt.Y + rot.At(1, 2)*pt.Z + p.Translation.Y,
		Z: rot.At(2, 0)*pt.X + rot.At(2, 1)*pt.Y + rot.At(2, 2)*pt.Z + p.Translation.Z,
	}
}

// ProjectPoints projects world points through a pose, the shared intrinsics,
// and the shared distortion model, yielding pixel coordinates in observation
// order. A nil distortion projects through the plain pinhole model.
func ProjectPoints(worldPts []r3.Vector, pose *Pose, params *PinholeCameraIntrinsics, distortion *BrownConrady) []r2.Point {
	rot := RotationVectorToMatrix(pose.Rotation)
	out := make([]r2.Point, len(worldPts))
	for i, wp := range worldPts {
		cam := r3.Vector{
			X: rot.At(0, 0)*wp.X + rot.At(0, 1)*wp.Y + rot.At(0, 2)*wp.Z + pose.Translation.X,
			Y: rot.At(1, 0)*wp.X + rot.At(1, 1)*wp.Y + rot.At(1, 2)*wp.Z + pose.Translation.Y,
			Z: rot.At(2, 0)*wp.X + rot.At(2, 1)*wp.Y + rot.At(2, 2)*wp.Z + pose.Translation.Z,
		}
		x, y := cam.X/cam.Z, cam.Y/cam.Z
		x, y = distortion.Transform(x, y)
		u, v := params.NormalizedToPixel(x, y)
		out[i] = r2.Point{X: u, Y: v}
	}
	return out
}

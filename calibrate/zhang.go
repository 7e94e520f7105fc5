package calibrate

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/calibrate/transform"
)

// homographyForSet fits the board-to-image homography of one view with the
// normalized DLT.
func homographyForSet(set *CorrespondenceSet) (*mat.Dense, error) {
	if err := set.CheckValid(); err != nil {
		return nil, err
	}
	src := make([]r2.Point, len(set.WorldPoints))
	for i, wp := range set.WorldPoints {
		src[i] = r2.Point{X: wp.X, Y: wp.Y}
	}
	h, err := transform.EstimateHomography(src, set.ImagePoints, true)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fit homography for %q", set.Name)
	}
	return h, nil
}

// vij builds one row of Zhang's constraint system from columns i and j of a
// homography: v_ij^T b = h_i^T B h_j where b stacks the 6 distinct entries
// of the symmetric B = K^-T K^-1.
func vij(h *mat.Dense, i, j int) []float64 {
	hi0, hi1, hi2 := h.At(0, i), h.At(1, i), h.At(2, i)
	hj0, hj1, hj2 := h.At(0, j), h.At(1, j), h.At(2, j)
	return []float64{
		hi0 * hj0,
		hi0*hj1 + hi1*hj0,
		hi1 * hj1,
		hi2*hj0 + hi0*hj2,
		hi2*hj1 + hi1*hj2,
		hi2 * hj2,
	}
}

// IntrinsicsFromHomographies recovers the camera matrix from at least one
// board-to-image homography. With two or more views it solves Zhang's
// orthonormality system; a single view underdetermines the problem, so the
// principal point is pinned to the image center and only the focal lengths
// are solved for.
func IntrinsicsFromHomographies(hs []*mat.Dense, width, height int) (*transform.PinholeCameraIntrinsics, error) {
	if len(hs) == 0 {
		return nil, errors.New("need at least one homography to recover intrinsics")
	}
	if len(hs) == 1 {
		return intrinsicsFromSingleView(hs[0], width, height)
	}

	nRows := 2 * len(hs)
	if len(hs) == 2 {
		// two views give 4 equations for 5 unknowns; pin the skew to zero
		nRows++
	}
	v := mat.NewDense(nRows, 6, nil)
	for i, h := range hs {
		v.SetRow(2*i, vij(h, 0, 1))
		v11 := vij(h, 0, 0)
		v22 := vij(h, 1, 1)
		row := make([]float64, 6)
		for k := range row {
			row[k] = v11[k] - v22[k]
		}
		v.SetRow(2*i+1, row)
	}
	if len(hs) == 2 {
		v.SetRow(nRows-1, []float64{0, 1, 0, 0, 0, 0})
	}

	var svd mat.SVD
	if ok := svd.Factorize(v, mat.SVDFull); !ok {
		return nil, errors.New("could not factorize intrinsics constraint matrix")
	}
	var rsv mat.Dense
	svd.VTo(&rsv)
	b := make([]float64, 6)
	for k := range b {
		b[k] = rsv.At(k, 5)
	}
	// B is only defined up to scale; fix the sign so it is positive definite
	if b[0] < 0 {
		for k := range b {
			b[k] = -b[k]
		}
	}
	b11, b12, b22, b13, b23, b33 := b[0], b[1], b[2], b[3], b[4], b[5]

	denom := b11*b22 - b12*b12
	if b11 <= 0 || denom <= 0 {
		return nil, errors.New("intrinsics constraint matrix is degenerate, views may be near-parallel")
	}
	v0 := (b12*b13 - b11*b23) / denom
	lambda := b33 - (b13*b13+v0*(b12*b13-b11*b23))/b11
	if lambda <= 0 {
		return nil, errors.New("intrinsics solution is not positive definite")
	}
	fx := math.Sqrt(lambda / b11)
	fy := math.Sqrt(lambda * b11 / denom)
	u0 := -b13 * fx * fx / lambda

	params := &transform.PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     fx,
		Fy:     fy,
		Ppx:    u0,
		Ppy:    v0,
	}
	if err := params.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "recovered intrinsics are invalid")
	}
	return params, nil
}

// intrinsicsFromSingleView solves for fx and fy with the principal point
// fixed at the image center, using the two orthonormality constraints of the
// single homography translated so the principal point is the origin.
func intrinsicsFromSingleView(h *mat.Dense, width, height int) (*transform.PinholeCameraIntrinsics, error) {
	u0 := float64(width-1) / 2.
	v0 := float64(height-1) / 2.
	t := mat.NewDense(3, 3, []float64{
		1, 0, -u0,
		0, 1, -v0,
		0, 0, 1,
	})
	var hc mat.Dense
	hc.Mul(t, h)

	// with B = diag(a, b, 1), a = 1/fx^2, b = 1/fy^2:
	//   h1^T B h2 = 0 and h1^T B h1 = h2^T B h2
	h10, h11, h12 := hc.At(0, 0), hc.At(1, 0), hc.At(2, 0)
	h20, h21, h22 := hc.At(0, 1), hc.At(1, 1), hc.At(2, 1)
	a := mat.NewDense(2, 2, []float64{
		h10 * h20, h11 * h21,
		h10*h10 - h20*h20, h11*h11 - h21*h21,
	})
	rhs := mat.NewVecDense(2, []float64{
		-h12 * h22,
		-(h12*h12 - h22*h22),
	})
	var sol mat.VecDense
	if err := sol.SolveVec(a, rhs); err != nil {
		return nil, errors.Wrap(err, "single view intrinsics system is singular")
	}
	if sol.AtVec(0) <= 0 || sol.AtVec(1) <= 0 {
		return nil, errors.New("single view gives no real focal length, view may be fronto-parallel")
	}
	params := &transform.PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     1. / math.Sqrt(sol.AtVec(0)),
		Fy:     1. / math.Sqrt(sol.AtVec(1)),
		Ppx:    u0,
		Ppy:    v0,
	}
	if err := params.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "recovered intrinsics are invalid")
	}
	return params, nil
}

// PoseFromHomography decomposes a board-to-image homography into the board's
// pose in the camera frame, given the intrinsics. The rotation built from
// the first two columns is only approximately orthonormal; it is projected
// onto the nearest rotation matrix before converting to a rotation vector.
func PoseFromHomography(h *mat.Dense, params *transform.PinholeCameraIntrinsics) (*transform.Pose, error) {
	k := params.GetCameraMatrix()
	var kInv mat.Dense
	if err := kInv.Inverse(k); err != nil {
		return nil, errors.Wrap(err, "camera matrix is not invertible")
	}
	var a mat.Dense
	a.Mul(&kInv, h)

	c1 := r3.Vector{X: a.At(0, 0), Y: a.At(1, 0), Z: a.At(2, 0)}
	c2 := r3.Vector{X: a.At(0, 1), Y: a.At(1, 1), Z: a.At(2, 1)}
	c3 := r3.Vector{X: a.At(0, 2), Y: a.At(1, 2), Z: a.At(2, 2)}
	norm := math.Sqrt(c1.Norm() * c2.Norm())
	if norm < 1e-12 {
		return nil, errors.New("homography decomposition is degenerate")
	}
	scale := 1. / norm
	// the board must sit in front of the camera
	if c3.Z < 0 {
		scale = -scale
	}
	r1 := c1.Mul(scale)
	r2Col := c2.Mul(scale)
	r3Col := r1.Cross(r2Col)

	rot := mat.NewDense(3, 3, []float64{
		r1.X, r2Col.X, r3Col.X,
		r1.Y, r2Col.Y, r3Col.Y,
		r1.Z, r2Col.Z, r3Col.Z,
	})
	rot, err := nearestRotation(rot)
	if err != nil {
		return nil, err
	}
	return &transform.Pose{
		Rotation:    transform.RotationMatrixToVector(rot),
		Translation: c3.Mul(scale),
	}, nil
}

// nearestRotation projects a near-orthonormal matrix onto SO(3) by zeroing
// its singular values.
func nearestRotation(m *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.New("could not orthonormalize rotation")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// flip the last column of U to stay a proper rotation
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	return &r, nil
}

package calibrate

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/calibrate/transform"
)

// ErrNoCorrespondences is returned when a calibration is attempted with no
// usable correspondence sets at all.
var ErrNoCorrespondences = errors.New("no correspondence sets to calibrate from")

// SolverOptions tunes the joint refinement.
type SolverOptions struct {
	MaxIterations  int     `json:"max-iterations"`
	ConvergenceTol float64 `json:"convergence-tol"` // relative squared error reduction below which iteration stops
	InitialLambda  float64 `json:"initial-lambda"`
	MaxLambda      float64 `json:"max-lambda"`
}

// DefaultSolverOptions returns the refinement settings used when none are
// given.
func DefaultSolverOptions() SolverOptions {
	return SolverOptions{
		MaxIterations:  100,
		ConvergenceTol: 1e-10,
		InitialLambda:  1e-3,
		MaxLambda:      1e10,
	}
}

const numIntrinsicParams = 9 // fx fy cx cy k1 k2 p1 p2 k3
const numPoseParams = 6

// Solve calibrates the camera from the given correspondence sets. The linear
// init requires nothing but the sets; distortion starts at zero and is only
// introduced by the joint refinement.
func Solve(sets []*CorrespondenceSet, width, height int, opts SolverOptions, logger golog.Logger) (*CalibrationResult, error) {
	if len(sets) == 0 {
		return nil, ErrNoCorrespondences
	}
	for _, set := range sets {
		if err := set.CheckValid(); err != nil {
			return nil, err
		}
	}
	if opts.MaxIterations <= 0 {
		opts = DefaultSolverOptions()
	}

	if len(sets) == 1 {
		logger.Warn("calibrating from a single view; the principal point is pinned to the image center and the result will be poorly conditioned")
	}
	hs := make([]*mat.Dense, len(sets))
	for i, set := range sets {
		h, err := homographyForSet(set)
		if err != nil {
			return nil, err
		}
		hs[i] = h
	}
	intrinsics, err := IntrinsicsFromHomographies(hs, width, height)
	if err != nil {
		return nil, err
	}
	poses := make([]transform.Pose, len(sets))
	for i, h := range hs {
		pose, err := PoseFromHomography(h, intrinsics)
		if err != nil {
			return nil, errors.Wrapf(err, "could not recover pose for %q", sets[i].Name)
		}
		poses[i] = *pose
	}
	logger.Debugw("linear init",
		"fx", intrinsics.Fx, "fy", intrinsics.Fy, "ppx", intrinsics.Ppx, "ppy", intrinsics.Ppy)

	params := packParams(intrinsics, &transform.BrownConrady{}, poses)
	params, err = runLevenbergMarquardt(params, sets, opts, logger)
	if err != nil {
		return nil, err
	}
	intrinsics, distortion, poses := unpackParams(params, len(sets), width, height)

	perImage, mean, err := EvaluateReprojection(sets, intrinsics, distortion, poses)
	if err != nil {
		return nil, err
	}
	return &CalibrationResult{
		Intrinsics:            intrinsics,
		Distortion:            distortion,
		Poses:                 poses,
		NumImagesUsed:         len(sets),
		PerImageErrors:        perImage,
		MeanReprojectionError: mean,
		Success:               true,
	}, nil
}

// packParams flattens the shared intrinsics, shared distortion and per-view
// poses into one optimization vector.
func packParams(in *transform.PinholeCameraIntrinsics, dist *transform.BrownConrady, poses []transform.Pose) []float64 {
	p := make([]float64, 0, numIntrinsicParams+numPoseParams*len(poses))
	p = append(p, in.Fx, in.Fy, in.Ppx, in.Ppy)
	p = append(p, dist.RadialK1, dist.RadialK2, dist.TangentialP1, dist.TangentialP2, dist.RadialK3)
	for _, pose := range poses {
		p = append(p,
			pose.Rotation.X, pose.Rotation.Y, pose.Rotation.Z,
			pose.Translation.X, pose.Translation.Y, pose.Translation.Z)
	}
	return p
}

func unpackParams(p []float64, numViews, width, height int) (*transform.PinholeCameraIntrinsics, *transform.BrownConrady, []transform.Pose) {
	in := &transform.PinholeCameraIntrinsics{
		Width: width, Height: height,
		Fx: p[0], Fy: p[1], Ppx: p[2], Ppy: p[3],
	}
	dist := &transform.BrownConrady{
		RadialK1:     p[4],
		RadialK2:     p[5],
		TangentialP1: p[6],
		TangentialP2: p[7],
		RadialK3:     p[8],
	}
	poses := make([]transform.Pose, numViews)
	for i := 0; i < numViews; i++ {
		off := numIntrinsicParams + numPoseParams*i
		poses[i] = transform.Pose{
			Rotation:    r3.Vector{X: p[off], Y: p[off+1], Z: p[off+2]},
			Translation: r3.Vector{X: p[off+3], Y: p[off+4], Z: p[off+5]},
		}
	}
	return in, dist, poses
}

// residuals stacks (observed - projected) for every corner of every view,
// two entries per corner.
func residuals(p []float64, sets []*CorrespondenceSet) []float64 {
	in, dist, poses := unpackParams(p, len(sets), 0, 0)
	n := 0
	for _, set := range sets {
		n += 2 * len(set.WorldPoints)
	}
	res := make([]float64, 0, n)
	for i, set := range sets {
		projected := transform.ProjectPoints(set.WorldPoints, &poses[i], in, dist)
		for k, obs := range set.ImagePoints {
			res = append(res, obs.X-projected[k].X, obs.Y-projected[k].Y)
		}
	}
	return res
}

// jacobian computes the residual Jacobian by forward differences. The
// problem is small enough that numeric differentiation costs nothing next to
// the detection stage.
func jacobian(p []float64, sets []*CorrespondenceSet, base []float64) *mat.Dense {
	j := mat.NewDense(len(base), len(p), nil)
	pStep := make([]float64, len(p))
	for col := range p {
		copy(pStep, p)
		step := 1e-6 * math.Max(1., math.Abs(p[col]))
		pStep[col] += step
		perturbed := residuals(pStep, sets)
		for row := range base {
			j.Set(row, col, (perturbed[row]-base[row])/step)
		}
	}
	return j
}

func runLevenbergMarquardt(p []float64, sets []*CorrespondenceSet, opts SolverOptions, logger golog.Logger) ([]float64, error) {
	lambda := opts.InitialLambda
	res := residuals(p, sets)
	errSq := floats.Dot(res, res)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		j := jacobian(p, sets, res)
		var jtj mat.Dense
		jtj.Mul(j.T(), j)
		// residuals are observed minus projected, so the descent direction
		// needs the negated gradient
		g := mat.NewVecDense(len(p), nil)
		g.MulVec(j.T(), mat.NewVecDense(len(res), res))
		g.ScaleVec(-1, g)

		accepted := false
		for lambda <= opts.MaxLambda {
			// damped normal equations; the diagonal damping also evens out
			// the very different scales of focal lengths and distortion
			// coefficients
			var a mat.Dense
			a.CloneFrom(&jtj)
			for k := 0; k < len(p); k++ {
				a.Set(k, k, jtj.At(k, k)*(1.+lambda)+1e-12)
			}
			var delta mat.VecDense
			if err := delta.SolveVec(&a, g); err != nil {
				lambda *= 10
				continue
			}
			candidate := make([]float64, len(p))
			copy(candidate, p)
			floats.Add(candidate, delta.RawVector().Data)

			candRes := residuals(candidate, sets)
			candErrSq := floats.Dot(candRes, candRes)
			if candErrSq < errSq {
				reduction := (errSq - candErrSq) / errSq
				p = candidate
				res = candRes
				errSq = candErrSq
				lambda = math.Max(lambda/10, 1e-12)
				accepted = true
				if reduction < opts.ConvergenceTol {
					return p, nil
				}
				break
			}
			lambda *= 10
		}
		if !accepted {
			// on noise-free data the residual bottoms out at the floating
			// point floor and no damping can improve it further; that is a
			// converged solve, not a failure
			if errSq <= 1e-12*float64(len(res)) {
				return p, nil
			}
			return nil, errors.Errorf("optimization failed to converge after %d iterations, residual %.4f px^2", iter, errSq)
		}
		logger.Debugw("refinement step", "iteration", iter, "residual", errSq, "lambda", lambda)
	}
	return p, nil
}

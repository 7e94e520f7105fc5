package calibrate

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/calibrate/transform"
)

// EvaluateReprojection projects every world point through the calibrated
// model and measures the euclidean pixel distance to its observed corner. It
// returns the mean error of each image and the mean over images. Averaging
// per image first keeps a view with many corners from drowning out a bad
// one, and matches how reprojection error is conventionally reported.
func EvaluateReprojection(
	sets []*CorrespondenceSet,
	intrinsics *transform.PinholeCameraIntrinsics,
	distortion *transform.BrownConrady,
	poses []transform.Pose,
) ([]float64, float64, error) {
	if len(sets) == 0 {
		return nil, 0, ErrNoCorrespondences
	}
	if len(poses) != len(sets) {
		return nil, 0, errors.Errorf("have %d correspondence sets but %d poses", len(sets), len(poses))
	}
	perImage := make([]float64, len(sets))
	for i, set := range sets {
		if err := set.CheckValid(); err != nil {
			return nil, 0, err
		}
		projected := transform.ProjectPoints(set.WorldPoints, &poses[i], intrinsics, distortion)
		dists := make([]float64, len(projected))
		for k, proj := range projected {
			dists[k] = math.Hypot(set.ImagePoints[k].X-proj.X, set.ImagePoints[k].Y-proj.Y)
		}
		mean, err := stats.Mean(dists)
		if err != nil {
			return nil, 0, err
		}
		perImage[i] = mean
	}
	overall, err := stats.Mean(perImage)
	if err != nil {
		return nil, 0, err
	}
	return perImage, overall, nil
}

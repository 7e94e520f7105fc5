package chessboard

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/calibrate/transform"
)

// CheckerboardSpec describes the interior corner grid of the physical
// calibration target. Width and Height count interior corners, not squares;
// a standard 8x11 squares board has a 7x10 corner grid.
type CheckerboardSpec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CheckValid returns an error if the grid cannot produce enough constraints
// for a planar homography.
func (spec CheckerboardSpec) CheckValid() error {
	if spec.Width < 3 || spec.Height < 3 {
		return errors.Errorf("checkerboard dimensions must be at least 3x3 interior corners, got %dx%d",
			spec.Width, spec.Height)
	}
	return nil
}

// NumCorners returns the number of interior corners of the grid.
func (spec CheckerboardSpec) NumCorners() int {
	return spec.Width * spec.Height
}

// orderOuterCorners finds the 4 extreme points of the candidate set and
// returns them ordered topleft, topright, bottomright, bottomleft in image
// coordinates. The topleft corner minimizes x+y, the bottomright maximizes
// it, the topright maximizes x-y and the bottomleft minimizes it.
func orderOuterCorners(pts []r2.Point) [4]r2.Point {
	var quad [4]r2.Point
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for _, pt := range pts {
		sum := pt.X + pt.Y
		diff := pt.X - pt.Y
		if sum < minSum {
			minSum = sum
			quad[0] = pt
		}
		if sum > maxSum {
			maxSum = sum
			quad[2] = pt
		}
		if diff > maxDiff {
			maxDiff = diff
			quad[1] = pt
		}
		if diff < minDiff {
			minDiff = diff
			quad[3] = pt
		}
	}
	return quad
}

// canonicalCorners returns the outer corners of the canonical grid in the
// same order as orderOuterCorners.
func canonicalCorners(spec CheckerboardSpec) []r2.Point {
	w := float64(spec.Width - 1)
	h := float64(spec.Height - 1)
	return []r2.Point{
		{X: 0, Y: 0},
		{X: w, Y: 0},
		{X: w, Y: h},
		{X: 0, Y: h},
	}
}

// canonicalGrid returns all grid positions in row-major order, (0,0) at the
// topleft, x increasing along a row.
func canonicalGrid(spec CheckerboardSpec) []r2.Point {
	pts := make([]r2.Point, 0, spec.NumCorners())
	for i := 0; i < spec.Height; i++ {
		for j := 0; j < spec.Width; j++ {
			pts = append(pts, r2.Point{X: float64(j), Y: float64(i)})
		}
	}
	return pts
}

// gridSpacing estimates the pixel distance between adjacent corners from the
// outer quad. It is used to scale the snapping tolerances to the apparent
// size of the board.
func gridSpacing(quad [4]r2.Point, spec CheckerboardSpec) float64 {
	top := quad[1].Sub(quad[0]).Norm() / float64(spec.Width-1)
	left := quad[3].Sub(quad[0]).Norm() / float64(spec.Height-1)
	return math.Min(top, left)
}

// snapToCandidates matches each predicted grid location with its nearest
// candidate point. Every prediction must find a candidate within tol and no
// candidate may be claimed twice, otherwise the grid hypothesis is rejected.
func snapToCandidates(predicted, candidates []r2.Point, tol float64) ([]r2.Point, error) {
	snapped := make([]r2.Point, len(predicted))
	claimed := make(map[int]int, len(predicted))
	for i, pred := range predicted {
		idx, dist := getMinSaddleDistance(candidates, pred)
		if idx < 0 || dist > tol {
			return nil, errors.Errorf("no corner candidate within %.2f px of predicted grid position %d", tol, i)
		}
		if prev, ok := claimed[idx]; ok {
			return nil, errors.Errorf("corner candidate claimed by grid positions %d and %d", prev, i)
		}
		claimed[idx] = i
		snapped[i] = candidates[idx]
	}
	return snapped, nil
}

// assembleGrid organizes corner candidates into a row-major Width x Height
// grid. The 4 extreme candidates seed an exact homography from the canonical
// grid; predictions from that homography are snapped to their nearest
// candidates, the homography is refit on all matches and the grid is snapped
// once more with a tighter tolerance.
func assembleGrid(candidates []r2.Point, spec CheckerboardSpec, snapRatio float64) ([]r2.Point, error) {
	need := spec.NumCorners()
	if len(candidates) < need {
		return nil, errors.Errorf("found %d corner candidates, need at least %d", len(candidates), need)
	}
	quad := orderOuterCorners(candidates)
	spacing := gridSpacing(quad, spec)
	if spacing < 2 {
		return nil, errors.Errorf("apparent grid spacing %.2f px is too small to resolve corners", spacing)
	}

	homography, err := transform.EstimateHomography(canonicalCorners(spec), quad[:], false)
	if err != nil {
		return nil, errors.Wrap(err, "could not fit outer corner quad")
	}
	grid := canonicalGrid(spec)
	predicted := transform.ApplyHomography(homography, grid)
	snapped, err := snapToCandidates(predicted, candidates, snapRatio*spacing)
	if err != nil {
		return nil, err
	}

	// refit on all matched corners to absorb lens distortion the 4 point
	// homography cannot model, then snap again with a tighter tolerance
	homography, err = transform.EstimateHomography(grid, snapped, true)
	if err != nil {
		return nil, errors.Wrap(err, "could not refit grid homography")
	}
	predicted = transform.ApplyHomography(homography, grid)
	return snapToCandidates(predicted, candidates, 0.6*snapRatio*spacing)
}

// transposeGrid reindexes a row-major grid detected with a transposed spec
// back into row-major order for the original spec.
func transposeGrid(grid []r2.Point, spec CheckerboardSpec) []r2.Point {
	out := make([]r2.Point, len(grid))
	for i := 0; i < spec.Height; i++ {
		for j := 0; j < spec.Width; j++ {
			out[i*spec.Width+j] = grid[j*spec.Height+i]
		}
	}
	return out
}

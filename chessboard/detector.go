package chessboard

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/calibrate/rimage"
	"go.viam.com/calibrate/utils"
)

// DetectionConfiguration stores the parameters of the full corner detection
// pass over one image.
type DetectionConfiguration struct {
	Saddle            SaddleConfiguration `json:"saddle"`
	ThresholdHalfWin  int                 `json:"thresh-win"`      // half window of the adaptive threshold; 0 picks one from the image size
	ThresholdOffset   float64             `json:"thresh-offset"`   // subtracted from the local mean before binarization
	SnapDistanceRatio float64             `json:"snap-ratio"`      // fraction of the grid spacing a candidate may be from its predicted position
	QuadrantRadius    int                 `json:"quadrant-radius"` // diagonal sample distance of the quadrant polarity check
}

// DefaultDetectionConfiguration returns the detection parameters that work
// for checkerboards filling roughly a fifth of the frame or more.
func DefaultDetectionConfiguration() DetectionConfiguration {
	return DetectionConfiguration{
		Saddle:            DefaultSaddleConf,
		ThresholdHalfWin:  0,
		ThresholdOffset:   10.,
		SnapDistanceRatio: 0.5,
		QuadrantRadius:    5,
	}
}

// filterCheckerboardCorners keeps only the candidates whose 4 diagonal
// neighborhoods in the binarized image alternate black and white, which holds
// at the X-crossings of the interior grid but not at the junctions of the
// board outline, where two of the quadrants belong to the background. Score
// alone cannot make that separation (outline junctions reach a third of an
// interior crossing's score), so this polarity check is what keeps the
// extreme-corner quad seeded from interior corners only.
func filterCheckerboardCorners(binarized *mat.Dense, candidates []r2.Point, radius int) []r2.Point {
	nRows, nCols := binarized.Dims()
	kept := make([]r2.Point, 0, len(candidates))
	for _, pt := range candidates {
		x, y := int(math.Round(pt.X)), int(math.Round(pt.Y))
		if x-radius < 0 || y-radius < 0 || x+radius >= nCols || y+radius >= nRows {
			continue
		}
		ul := binarized.At(y-radius, x-radius)
		ur := binarized.At(y-radius, x+radius)
		lr := binarized.At(y+radius, x+radius)
		ll := binarized.At(y+radius, x-radius)
		if ul == lr && ur == ll && ul != ur {
			kept = append(kept, pt)
		}
	}
	return kept
}

// FindChessboardCorners detects the interior corners of a checkerboard in a
// grayscale image and returns them in row-major order matching spec. If the
// board cannot be found, or the found corners do not form a complete
// unambiguous grid, an error is returned and no partial grid is ever
// produced. For boards that are not square the transposed orientation is
// tried as well, so the physical board may appear rotated in the image.
func FindChessboardCorners(img *image.Gray, spec CheckerboardSpec, conf DetectionConfiguration) ([]r2.Point, error) {
	if err := spec.CheckValid(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	halfWin := conf.ThresholdHalfWin
	if halfWin <= 0 {
		halfWin = utils.MaxInt(9, utils.MinInt(bounds.Dx(), bounds.Dy())/16)
	}

	lum := rimage.ConvertGrayToLuminanceFloat(img)
	binarized := rimage.AdaptiveThreshold(lum, halfWin, conf.ThresholdOffset)
	// one blur pass before saddle scoring turns the hard binary steps into
	// ramps with a well defined Hessian at the X-crossings
	blur := rimage.GetBlur3()
	smoothed, err := rimage.ConvolveGrayFloat64(binarized, &blur)
	if err != nil {
		return nil, err
	}

	_, candidates, err := GetSaddleMapPoints(smoothed, &conf.Saddle)
	if err != nil {
		return nil, err
	}
	radius := conf.QuadrantRadius
	if radius <= 0 {
		radius = 5
	}
	candidates = filterCheckerboardCorners(binarized, candidates, radius)
	if len(candidates) < spec.NumCorners() {
		return nil, errors.Errorf("found %d corner candidates, need %d for a %dx%d board",
			len(candidates), spec.NumCorners(), spec.Width, spec.Height)
	}

	grid, err := assembleGrid(candidates, spec, conf.SnapDistanceRatio)
	if err == nil {
		return grid, nil
	}
	if spec.Width == spec.Height {
		return nil, err
	}
	transposed := CheckerboardSpec{Width: spec.Height, Height: spec.Width}
	grid, errT := assembleGrid(candidates, transposed, conf.SnapDistanceRatio)
	if errT != nil {
		// report the failure of the requested orientation
		return nil, err
	}
	return transposeGrid(grid, spec), nil
}

// Package chessboard locates the interior corners of a checkerboard pattern
// in a grayscale image and refines them to sub-pixel precision. Detection is
// a pure function of the image: a failed detection is an error for that image
// only and carries no side effects.
package chessboard

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/calibrate/rimage"
	"go.viam.com/calibrate/utils"
)

// SaddleConfiguration stores the parameters used to turn the Hessian
// determinant image into a set of candidate corner points.
type SaddleConfiguration struct {
	ScoreRatio    float64 `json:"score-ratio"`  // keep candidates scoring at least this fraction of the best saddle
	NMSWindowSize int     `json:"win-size"`     // half window for non-maximum suppression
	MergeRadius   float64 `json:"merge-radius"` // candidates closer than this collapse into their centroid
}

// DefaultSaddleConf stores the default saddle detection parameters. The
// score ratio is permissive on purpose: junctions on the board outline score
// a third of an interior X-crossing and cannot be separated by score alone,
// so candidates are filtered afterwards by their quadrant polarity instead.
var DefaultSaddleConf = SaddleConfiguration{
	ScoreRatio:    0.05,
	NMSWindowSize: 5,
	MergeRadius:   4.,
}

// computePixelWiseHessianDeterminant computes Hessian components for each
// pixel and returns a *mat.Dense containing the value of the determinant of
// the Hessian for each pixel. The sign and value of the determinant gives the
// location of saddle points: the X-crossings of a checkerboard have a
// strongly negative determinant.
func computePixelWiseHessianDeterminant(img *mat.Dense) (*mat.Dense, error) {
	nRows, nCols := img.Dims()
	sobelX := rimage.GetSobelX()
	sobelY := rimage.GetSobelY()
	gX, err := rimage.ConvolveGrayFloat64(img, &sobelX)
	if err != nil {
		return nil, err
	}
	gY, err := rimage.ConvolveGrayFloat64(img, &sobelY)
	if err != nil {
		return nil, err
	}
	gXX, err := rimage.ConvolveGrayFloat64(gX, &sobelX)
	if err != nil {
		return nil, err
	}
	gYY, err := rimage.ConvolveGrayFloat64(gY, &sobelY)
	if err != nil {
		return nil, err
	}
	gXY, err := rimage.ConvolveGrayFloat64(gX, &sobelY)
	if err != nil {
		return nil, err
	}
	m1 := mat.NewDense(nRows, nCols, nil)
	m2 := mat.NewDense(nRows, nCols, nil)
	out := mat.NewDense(nRows, nCols, nil)
	m1.MulElem(gXX, gYY)
	m2.MulElem(gXY, gXY)
	out.Sub(m1, m2)
	return out, nil
}

// NonMaxSuppression keeps only the entries of a score map that are the
// maximum of their (2*winSize+1)^2 neighborhood.
func NonMaxSuppression(img *mat.Dense, winSize int) *mat.Dense {
	h, w := img.Dims()
	imgSup := mat.NewDense(h, w, nil)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			if img.At(i, j) == 0 {
				continue
			}
			ta := utils.MaxInt(0, i-winSize)
			tb := utils.MinInt(h, i+winSize+1)
			tc := utils.MaxInt(0, j-winSize)
			td := utils.MinInt(w, j+winSize+1)
			cell := img.Slice(ta, tb, tc, td)
			if mat.Max(cell) == img.At(i, j) {
				imgSup.Set(i, j, img.At(i, j))
			}
		}
	}
	return imgSup
}

// GetSaddleMapPoints computes the saddle score map of a luminance matrix and
// returns it along with the suppressed list of candidate corner points.
func GetSaddleMapPoints(img *mat.Dense, conf *SaddleConfiguration) (*mat.Dense, []r2.Point, error) {
	blur := rimage.GetBlur3()
	imgBlur, err := rimage.ConvolveGrayFloat64(img, &blur)
	if err != nil {
		return nil, nil, err
	}
	hessian, err := computePixelWiseHessianDeterminant(imgBlur)
	if err != nil {
		return nil, nil, err
	}
	// saddle points are where the determinant of the Hessian is < 0; for
	// better readability work with the negated determinant
	hessian.Scale(-1.0, hessian)
	nRows, nCols := hessian.Dims()
	saddleMap := mat.NewDense(nRows, nCols, nil)
	saddleMap.Apply(func(r, c int, v float64) float64 {
		if v < 0 {
			return 0.
		}
		return v
	}, hessian)

	maxScore := mat.Max(saddleMap)
	if maxScore <= 0 {
		return saddleMap, nil, nil
	}
	nms := NonMaxSuppression(saddleMap, conf.NMSWindowSize)
	thresh := conf.ScoreRatio * maxScore
	saddlePoints := make([]r2.Point, 0)
	for i := 0; i < nRows; i++ {
		for j := 0; j < nCols; j++ {
			if nms.At(i, j) >= thresh {
				saddlePoints = append(saddlePoints, r2.Point{X: float64(j), Y: float64(i)})
			}
		}
	}
	saddlePoints = mergeClosePoints(saddlePoints, conf.MergeRadius)
	return saddleMap, saddlePoints, nil
}

// mergeClosePoints collapses points within radius of each other into their
// centroid. Suppression plateaus can yield several equal-score pixels on one
// physical corner; this keeps exactly one point per corner.
func mergeClosePoints(pts []r2.Point, radius float64) []r2.Point {
	merged := make([]r2.Point, 0, len(pts))
	counts := make([]int, 0, len(pts))
	for _, pt := range pts {
		found := false
		for i, m := range merged {
			if pt.Sub(m).Norm() <= radius {
				// running centroid
				n := float64(counts[i])
				merged[i] = r2.Point{
					X: (m.X*n + pt.X) / (n + 1),
					Y: (m.Y*n + pt.Y) / (n + 1),
				}
				counts[i]++
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, pt)
			counts = append(counts, 1)
		}
	}
	return merged
}

// getMinSaddleDistance returns the saddle point that minimizes the distance
// to pt, its index, and that minimum distance.
func getMinSaddleDistance(saddlePoints []r2.Point, pt r2.Point) (int, float64) {
	bestDist := math.Inf(1)
	bestIdx := -1
	for i, saddlePt := range saddlePoints {
		if dist := pt.Sub(saddlePt).Norm(); dist < bestDist {
			bestDist = dist
			bestIdx = i
		}
	}
	return bestIdx, bestDist
}

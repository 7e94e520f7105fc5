package chessboard

import (
	"image"
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/calibrate/rimage"
)

// TermCriteria bounds an iterative refinement, stopping at whichever of the
// two limits is hit first.
type TermCriteria struct {
	MaxIterations int
	Epsilon       float64
}

// DefaultTermCriteria is the refinement stopping rule used when none is given.
var DefaultTermCriteria = TermCriteria{MaxIterations: 30, Epsilon: 0.001}

// DefaultRefinementHalfWindow is the half size of the refinement window, in
// pixels, used when none is given.
const DefaultRefinementHalfWindow = 11

// RefineCornersSubpix refines detected corner locations to sub-pixel
// precision on the original grayscale image. Each corner is moved to the
// point where the image gradients in a (2*winHalf+1)^2 window around it are
// all orthogonal to their offset from that point, which for a saddle is the
// true crossing. A corner whose window leaves the image or whose gradient
// structure is degenerate keeps its input location.
func RefineCornersSubpix(img *image.Gray, corners []r2.Point, winHalf int, crit TermCriteria) []r2.Point {
	if winHalf <= 0 {
		winHalf = DefaultRefinementHalfWindow
	}
	if crit.MaxIterations <= 0 {
		crit.MaxIterations = DefaultTermCriteria.MaxIterations
	}
	if crit.Epsilon <= 0 {
		crit.Epsilon = DefaultTermCriteria.Epsilon
	}
	refined := make([]r2.Point, len(corners))
	for i, corner := range corners {
		refined[i] = refineCorner(img, corner, winHalf, crit)
	}
	return refined
}

func refineCorner(img *image.Gray, corner r2.Point, winHalf int, crit TermCriteria) r2.Point {
	sigma := float64(winHalf) / 2.
	current := corner
	for iter := 0; iter < crit.MaxIterations; iter++ {
		var a, b, c, bx, by float64
		for dy := -winHalf; dy <= winHalf; dy++ {
			for dx := -winHalf; dx <= winHalf; dx++ {
				px := current.X + float64(dx)
				py := current.Y + float64(dy)
				gx, gy, ok := sampleGradient(img, px, py)
				if !ok {
					continue
				}
				w := math.Exp(-float64(dx*dx+dy*dy) / (2 * sigma * sigma))
				a += w * gx * gx
				b += w * gx * gy
				c += w * gy * gy
				bx += w * (gx*gx*px + gx*gy*py)
				by += w * (gx*gy*px + gy*gy*py)
			}
		}
		det := a*c - b*b
		if math.Abs(det) < 1e-12 {
			break
		}
		next := r2.Point{
			X: (c*bx - b*by) / det,
			Y: (a*by - b*bx) / det,
		}
		shift := next.Sub(current).Norm()
		// a corner drifting out of its own window is diverging; keep the
		// last stable estimate
		if shift > float64(winHalf) {
			break
		}
		current = next
		if shift < crit.Epsilon {
			break
		}
	}
	return current
}

// sampleGradient returns the centered-difference image gradient at a
// sub-pixel location, sampled bilinearly. ok is false when any of the
// samples falls outside the image.
func sampleGradient(img *image.Gray, x, y float64) (gx, gy float64, ok bool) {
	xp := rimage.BilinearInterpolationGray(r2.Point{X: x + 1, Y: y}, img)
	xm := rimage.BilinearInterpolationGray(r2.Point{X: x - 1, Y: y}, img)
	yp := rimage.BilinearInterpolationGray(r2.Point{X: x, Y: y + 1}, img)
	ym := rimage.BilinearInterpolationGray(r2.Point{X: x, Y: y - 1}, img)
	if xp == nil || xm == nil || yp == nil || ym == nil {
		return 0, 0, false
	}
	return (*xp - *xm) / 2., (*yp - *ym) / 2., true
}

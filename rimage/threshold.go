package rimage

import (
	"image"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/calibrate/utils"
)

// IntegralImage computes the summed-area table of a luminance matrix.
// Entry (i, j) holds the sum of all values in the rectangle [0, i] x [0, j].
func IntegralImage(m *mat.Dense) *mat.Dense {
	h, w := m.Dims()
	out := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		rowSum := 0.
		for x := 0; x < w; x++ {
			rowSum += m.At(y, x)
			if y == 0 {
				out.Set(y, x, rowSum)
			} else {
				out.Set(y, x, out.At(y-1, x)+rowSum)
			}
		}
	}
	return out
}

// boxSum returns the sum of the window [x0, x1] x [y0, y1] (inclusive, clipped
// to the matrix) using a summed-area table.
func boxSum(integral *mat.Dense, x0, y0, x1, y1 int) (float64, int) {
	h, w := integral.Dims()
	x0, y0 = utils.MaxInt(x0, 0), utils.MaxInt(y0, 0)
	x1, y1 = utils.MinInt(x1, w-1), utils.MinInt(y1, h-1)
	sum := integral.At(y1, x1)
	if x0 > 0 {
		sum -= integral.At(y1, x0-1)
	}
	if y0 > 0 {
		sum -= integral.At(y0-1, x1)
	}
	if x0 > 0 && y0 > 0 {
		sum += integral.At(y0-1, x0-1)
	}
	return sum, (x1 - x0 + 1) * (y1 - y0 + 1)
}

// AdaptiveThreshold binarizes a luminance matrix against the local mean of a
// (2*halfWin+1)^2 neighborhood minus offset. Pixels brighter than their local
// mean map to 255, the rest to 0. This keeps a checkerboard's alternating
// squares separable under uneven illumination, where one global threshold
// does not.
func AdaptiveThreshold(m *mat.Dense, halfWin int, offset float64) *mat.Dense {
	h, w := m.Dims()
	integral := IntegralImage(m)
	out := mat.NewDense(h, w, nil)
	utils.ParallelForEachPixel(image.Point{w, h}, func(x, y int) {
		sum, area := boxSum(integral, x-halfWin, y-halfWin, x+halfWin, y+halfWin)
		if m.At(y, x) > sum/float64(area)-offset {
			out.Set(y, x, 255.)
		}
	})
	return out
}

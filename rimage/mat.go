package rimage

import (
	"image"
	"image/color"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/calibrate/utils"
)

// ConvertGrayToLuminanceFloat converts a grayscale image to a *mat.Dense of
// luminance values in [0, 255]. Row i of the matrix is row i of the image.
func ConvertGrayToLuminanceFloat(img *image.Gray) *mat.Dense {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := mat.NewDense(h, w, nil)
	utils.ParallelForEachPixel(image.Point{w, h}, func(x, y int) {
		out.Set(y, x, float64(img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y))
	})
	return out
}

// ConvertLuminanceFloatToGray converts a luminance matrix back into a
// grayscale image, clamping values to [0, 255].
func ConvertLuminanceFloatToGray(m *mat.Dense) *image.Gray {
	h, w := m.Dims()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{uint8(utils.ClampF64(m.At(y, x), 0, 255))})
		}
	}
	return img
}

// BinarizeMat thresholds a luminance matrix into a binary matrix whose
// entries are 0 or 255.
func BinarizeMat(m mat.Matrix, threshold float64) *mat.Dense {
	h, w := m.Dims()
	out := mat.NewDense(h, w, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if v >= threshold {
			return 255.
		}
		return 0.
	}, m)
	return out
}

package rimage

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/calibrate/utils"
)

// Kernel is a 2 dimensional matrix used for convolutions.
type Kernel struct {
	Content [][]float64
	Width   int
	Height  int
}

// At returns the kernel value at the given x (column) and y (row).
func (k *Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// Size returns the size of the kernel as an image.Point.
func (k *Kernel) Size() image.Point {
	return image.Point{k.Width, k.Height}
}

// PaddingFloat64 pads a luminance matrix with the replicated values of its
// border so that convolving with a kernel of the given size keeps the
// original dimensions. The anchor represents a point inside the area of the
// kernel that maps onto the current output position.
func PaddingFloat64(m *mat.Dense, kernelSize, anchor image.Point) (*mat.Dense, error) {
	h, w := m.Dims()
	if kernelSize.X <= 0 || kernelSize.Y <= 0 {
		return nil, errors.Errorf("kernel size must be positive, got %v", kernelSize)
	}
	padLeft, padTop := anchor.X, anchor.Y
	padRight, padBottom := kernelSize.X-anchor.X-1, kernelSize.Y-anchor.Y-1
	if padLeft < 0 || padTop < 0 || padRight < 0 || padBottom < 0 {
		return nil, errors.Errorf("anchor %v is outside of the kernel %v", anchor, kernelSize)
	}
	padded := mat.NewDense(h+padTop+padBottom, w+padLeft+padRight, nil)
	ph, pw := padded.Dims()
	for y := 0; y < ph; y++ {
		sy := utils.MinInt(utils.MaxInt(y-padTop, 0), h-1)
		for x := 0; x < pw; x++ {
			sx := utils.MinInt(utils.MaxInt(x-padLeft, 0), w-1)
			padded.Set(y, x, m.At(sy, sx))
		}
	}
	return padded, nil
}

// ConvolveGrayFloat64 implements a gray float64 image convolution with the
// Kernel filter. There is no clamping of the output values.
func ConvolveGrayFloat64(m *mat.Dense, filter *Kernel) (*mat.Dense, error) {
	h, w := m.Dims()
	result := mat.NewDense(h, w, nil)
	kernelSize := filter.Size()
	padded, err := PaddingFloat64(m, kernelSize, image.Point{kernelSize.X / 2, kernelSize.Y / 2})
	if err != nil {
		return nil, err
	}

	utils.ParallelForEachPixel(image.Point{w, h}, func(x, y int) {
		sum := float64(0)
		for ky := 0; ky < kernelSize.Y; ky++ {
			for kx := 0; kx < kernelSize.X; kx++ {
				pixel := padded.At(y+ky, x+kx)
				kE := filter.At(kx, ky)
				sum += pixel * kE
			}
		}
		result.Set(y, x, sum)
	})
	return result, nil
}

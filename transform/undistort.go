package transform

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/calibrate/rimage"
	"go.viam.com/calibrate/utils"
)

// undistortBorderSamples is the number of sample points along each image edge
// used to estimate the valid region of the undistorted image.
const undistortBorderSamples = 32

// GetOptimalNewCameraMatrix returns intrinsics for the undistorted image,
// scaled according to balance in [0, 1]. At balance 0 the undistorted view is
// cropped so that every output pixel maps inside the source image; at balance
// 1 every source pixel remains visible, at the price of black borders. Values
// in between interpolate.
func GetOptimalNewCameraMatrix(params *PinholeCameraIntrinsics, distortion *BrownConrady, balance float64) (*PinholeCameraIntrinsics, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	balance = utils.ClampF64(balance, 0, 1)
	w, h := float64(params.Width), float64(params.Height)

	// undistort points along the image border into normalized coordinates
	var top, bottom, left, right []r2.Point
	for i := 0; i < undistortBorderSamples; i++ {
		t := float64(i) / float64(undistortBorderSamples-1)
		top = append(top, undistortPixel(params, distortion, t*(w-1), 0))
		bottom = append(bottom, undistortPixel(params, distortion, t*(w-1), h-1))
		left = append(left, undistortPixel(params, distortion, 0, t*(h-1)))
		right = append(right, undistortPixel(params, distortion, w-1, t*(h-1)))
	}

	all := append(append(append(append([]r2.Point{}, top...), bottom...), left...), right...)
	outX0, outY0 := math.Inf(1), math.Inf(1)
	outX1, outY1 := math.Inf(-1), math.Inf(-1)
	for _, pt := range all {
		outX0, outY0 = math.Min(outX0, pt.X), math.Min(outY0, pt.Y)
		outX1, outY1 = math.Max(outX1, pt.X), math.Max(outY1, pt.Y)
	}

	// the largest rectangle fully inside the undistorted border
	inX0, inY0 := math.Inf(-1), math.Inf(-1)
	inX1, inY1 := math.Inf(1), math.Inf(1)
	for _, pt := range left {
		inX0 = math.Max(inX0, pt.X)
	}
	for _, pt := range right {
		inX1 = math.Min(inX1, pt.X)
	}
	for _, pt := range top {
		inY0 = math.Max(inY0, pt.Y)
	}
	for _, pt := range bottom {
		inY1 = math.Min(inY1, pt.Y)
	}

	if outX1 <= outX0 || outY1 <= outY0 || inX1 <= inX0 || inY1 <= inY0 {
		return nil, errors.New("cannot compute a valid undistorted region for these parameters")
	}

	// intrinsics mapping each normalized rectangle exactly onto the output image
	innerFx, innerFy := (w-1)/(inX1-inX0), (h-1)/(inY1-inY0)
	outerFx, outerFy := (w-1)/(outX1-outX0), (h-1)/(outY1-outY0)

	fx := innerFx*(1-balance) + outerFx*balance
	fy := innerFy*(1-balance) + outerFy*balance
	x0 := inX0*(1-balance) + outX0*balance
	y0 := inY0*(1-balance) + outY0*balance

	return &PinholeCameraIntrinsics{
		Width:  params.Width,
		Height: params.Height,
		Fx:     fx,
		Fy:     fy,
		Ppx:    -x0 * fx,
		Ppy:    -y0 * fy,
	}, nil
}

func undistortPixel(params *PinholeCameraIntrinsics, distortion *BrownConrady, u, v float64) r2.Point {
	x, y := params.PixelToNormalized(u, v)
	x, y = distortion.Undistort(x, y)
	return r2.Point{X: x, Y: y}
}

// UndistortionMap is a dense per-pixel remap: for every pixel of the
// undistorted destination image it stores the source coordinate to sample in
// the distorted image. It only depends on the camera parameters, so it can be
// built once and reapplied to every image of the same size from the same
// physical camera.
type UndistortionMap struct {
	Width  int
	Height int
	mapX   []float64
	mapY   []float64
}

// NewUndistortionMap builds the remap taking an image captured with params
// and distortion into the undistorted view described by newParams. newParams
// is typically the output of GetOptimalNewCameraMatrix; passing params itself
// keeps the original framing.
func NewUndistortionMap(params *PinholeCameraIntrinsics, distortion *BrownConrady, newParams *PinholeCameraIntrinsics) (*UndistortionMap, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if err := newParams.CheckValid(); err != nil {
		return nil, err
	}
	um := &UndistortionMap{
		Width:  newParams.Width,
		Height: newParams.Height,
		mapX:   make([]float64, newParams.Width*newParams.Height),
		mapY:   make([]float64, newParams.Width*newParams.Height),
	}
	utils.ParallelForEachPixel(image.Point{um.Width, um.Height}, func(u, v int) {
		// destination pixel -> normalized -> distort -> source pixel
		x, y := newParams.PixelToNormalized(float64(u), float64(v))
		x, y = distortion.Transform(x, y)
		sx, sy := params.NormalizedToPixel(x, y)
		k := v*um.Width + u
		um.mapX[k] = sx
		um.mapY[k] = sy
	})
	return um, nil
}

// At returns the source coordinate sampled for the destination pixel (u, v).
func (um *UndistortionMap) At(u, v int) r2.Point {
	k := v*um.Width + u
	return r2.Point{X: um.mapX[k], Y: um.mapY[k]}
}

// Apply resamples a distorted grayscale image into the undistorted view using
// bilinear interpolation. Destination pixels that map outside the source stay
// black.
func (um *UndistortionMap) Apply(img *image.Gray) (*image.Gray, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if img.Bounds().Dx() != um.Width || img.Bounds().Dy() != um.Height {
		return nil, errors.Errorf("img dimension and remap don't match Image(%d,%d) != Remap(%d,%d)",
			img.Bounds().Dx(), img.Bounds().Dy(), um.Width, um.Height)
	}
	out := image.NewGray(image.Rect(0, 0, um.Width, um.Height))
	utils.ParallelForEachPixel(image.Point{um.Width, um.Height}, func(u, v int) {
		if val := rimage.BilinearInterpolationGray(um.At(u, v), img); val != nil {
			out.Pix[v*out.Stride+u] = uint8(utils.ClampF64(*val, 0, 255))
		}
	})
	return out, nil
}

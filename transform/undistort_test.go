package transform

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

var testParams = &PinholeCameraIntrinsics{
	Width: 640, Height: 480,
	Fx: 500, Fy: 505, Ppx: 322, Ppy: 247,
}

func TestGetOptimalNewCameraMatrixNoDistortion(t *testing.T) {
	zero := &BrownConrady{}
	for _, balance := range []float64{0, 0.5, 1} {
		newParams, err := GetOptimalNewCameraMatrix(testParams, zero, balance)
		test.That(t, err, test.ShouldBeNil)
		// without distortion the inner and outer regions coincide with the
		// original frame, whatever the balance
		test.That(t, newParams.Fx, test.ShouldAlmostEqual, testParams.Fx, 1e-6)
		test.That(t, newParams.Fy, test.ShouldAlmostEqual, testParams.Fy, 1e-6)
		test.That(t, newParams.Ppx, test.ShouldAlmostEqual, testParams.Ppx, 1e-6)
		test.That(t, newParams.Ppy, test.ShouldAlmostEqual, testParams.Ppy, 1e-6)
	}

	_, err := GetOptimalNewCameraMatrix(&PinholeCameraIntrinsics{}, zero, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGetOptimalNewCameraMatrixBalance(t *testing.T) {
	bc, err := NewBrownConrady([]float64{-0.3, 0.1, 0, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	cropped, err := GetOptimalNewCameraMatrix(testParams, bc, 0)
	test.That(t, err, test.ShouldBeNil)
	full, err := GetOptimalNewCameraMatrix(testParams, bc, 1)
	test.That(t, err, test.ShouldBeNil)
	// barrel distortion: keeping every source pixel requires zooming out
	// further than the cropped view
	test.That(t, full.Fx, test.ShouldBeLessThan, cropped.Fx)
	test.That(t, full.Fy, test.ShouldBeLessThan, cropped.Fy)
}

func TestUndistortionMapIdentity(t *testing.T) {
	zero := &BrownConrady{}
	um, err := NewUndistortionMap(testParams, zero, testParams)
	test.That(t, err, test.ShouldBeNil)
	pt := um.At(100, 200)
	test.That(t, pt.X, test.ShouldAlmostEqual, 100., 1e-9)
	test.That(t, pt.Y, test.ShouldAlmostEqual, 200., 1e-9)

	img := image.NewGray(image.Rect(0, 0, testParams.Width, testParams.Height))
	for y := 0; y < testParams.Height; y++ {
		for x := 0; x < testParams.Width; x++ {
			img.SetGray(x, y, color.Gray{uint8((x + y) % 256)})
		}
	}
	out, err := um.Apply(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.GrayAt(11, 17), test.ShouldResemble, img.GrayAt(11, 17))
	test.That(t, out.GrayAt(500, 333), test.ShouldResemble, img.GrayAt(500, 333))
}

func TestUndistortionMapRoundTrip(t *testing.T) {
	bc, err := NewBrownConrady([]float64{-0.25, 0.08, 0.0005, -0.0005, 0})
	test.That(t, err, test.ShouldBeNil)
	newParams, err := GetOptimalNewCameraMatrix(testParams, bc, 1)
	test.That(t, err, test.ShouldBeNil)
	um, err := NewUndistortionMap(testParams, bc, newParams)
	test.That(t, err, test.ShouldBeNil)

	// sampling coordinate of a destination pixel, pushed back through the
	// inverse model, lands on that same destination pixel
	for _, px := range []image.Point{{320, 240}, {100, 100}, {540, 400}} {
		src := um.At(px.X, px.Y)
		x, y := testParams.PixelToNormalized(src.X, src.Y)
		x, y = bc.Undistort(x, y)
		u, v := newParams.NormalizedToPixel(x, y)
		test.That(t, u, test.ShouldAlmostEqual, float64(px.X), 1e-6)
		test.That(t, v, test.ShouldAlmostEqual, float64(px.Y), 1e-6)
	}
}

func TestUndistortionMapApplyErrors(t *testing.T) {
	zero := &BrownConrady{}
	um, err := NewUndistortionMap(testParams, zero, testParams)
	test.That(t, err, test.ShouldBeNil)
	_, err = um.Apply(nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = um.Apply(image.NewGray(image.Rect(0, 0, 10, 10)))
	test.That(t, err, test.ShouldNotBeNil)
}

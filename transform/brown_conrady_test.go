package transform

import (
	"testing"

	"go.viam.com/test"
)

func TestNewBrownConradyOrdering(t *testing.T) {
	// coefficient order (k1, k2, p1, p2, k3) is a compatibility contract
	bc, err := NewBrownConrady([]float64{0.1, -0.2, 0.001, -0.002, 0.05})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.RadialK1, test.ShouldEqual, 0.1)
	test.That(t, bc.RadialK2, test.ShouldEqual, -0.2)
	test.That(t, bc.TangentialP1, test.ShouldEqual, 0.001)
	test.That(t, bc.TangentialP2, test.ShouldEqual, -0.002)
	test.That(t, bc.RadialK3, test.ShouldEqual, 0.05)
	test.That(t, bc.Parameters(), test.ShouldResemble, []float64{0.1, -0.2, 0.001, -0.002, 0.05})
	test.That(t, bc.ModelType(), test.ShouldEqual, BrownConradyDistortionType)
	test.That(t, bc.CheckValid(), test.ShouldBeNil)

	bc, err = NewBrownConrady([]float64{0.1, -0.2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.Parameters(), test.ShouldResemble, []float64{0.1, -0.2, 0, 0, 0})

	_, err = NewBrownConrady(make([]float64, 6))
	test.That(t, err, test.ShouldNotBeNil)

	var nilBC *BrownConrady
	test.That(t, nilBC.CheckValid(), test.ShouldNotBeNil)
	test.That(t, nilBC.Parameters(), test.ShouldResemble, []float64{})
}

func TestBrownConradyRoundTrip(t *testing.T) {
	bc, err := NewBrownConrady([]float64{-0.28, 0.09, 0.0012, -0.0008, -0.01})
	test.That(t, err, test.ShouldBeNil)

	// distorting an undistorted point and inverting it should return the
	// original location
	for _, pt := range [][2]float64{
		{0, 0}, {0.1, 0.05}, {-0.3, 0.2}, {0.45, -0.4}, {-0.5, -0.5},
	} {
		xd, yd := bc.Transform(pt[0], pt[1])
		xu, yu := bc.Undistort(xd, yd)
		test.That(t, xu, test.ShouldAlmostEqual, pt[0], 1e-8)
		test.That(t, yu, test.ShouldAlmostEqual, pt[1], 1e-8)
	}

	// zero model is the identity
	zero, err := NewBrownConrady(nil)
	test.That(t, err, test.ShouldBeNil)
	x, y := zero.Transform(0.25, -0.125)
	test.That(t, x, test.ShouldEqual, 0.25)
	test.That(t, y, test.ShouldEqual, -0.125)

	var nilBC *BrownConrady
	x, y = nilBC.Transform(0.25, -0.125)
	test.That(t, x, test.ShouldEqual, 0.25)
	test.That(t, y, test.ShouldEqual, -0.125)
	x, y = nilBC.Undistort(0.25, -0.125)
	test.That(t, x, test.ShouldEqual, 0.25)
	test.That(t, y, test.ShouldEqual, -0.125)
}

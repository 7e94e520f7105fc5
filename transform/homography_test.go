package transform

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestEstimateHomography(t *testing.T) {
	trueH := mat.NewDense(3, 3, []float64{
		210.5, -12.3, 320.0,
		8.8, 205.1, 240.0,
		1e-4, -2e-4, 1.0,
	})

	src := make([]r2.Point, 0, 48)
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			src = append(src, r2.Point{X: float64(x), Y: float64(y)})
		}
	}
	dst := ApplyHomography(trueH, src)

	for _, normalize := range []bool{false, true} {
		estH, err := EstimateHomography(src, dst, normalize)
		test.That(t, err, test.ShouldBeNil)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				test.That(t, estH.At(i, j), test.ShouldAlmostEqual, trueH.At(i, j), 1e-6)
			}
		}
	}

	// a minimal 4-point solve reproduces the mapping exactly
	quadSrc := []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	quadDst := ApplyHomography(trueH, quadSrc)
	estH, err := EstimateHomography(quadSrc, quadDst, false)
	test.That(t, err, test.ShouldBeNil)
	back := ApplyHomography(estH, quadSrc)
	for i := range quadDst {
		test.That(t, back[i].X, test.ShouldAlmostEqual, quadDst[i].X, 1e-8)
		test.That(t, back[i].Y, test.ShouldAlmostEqual, quadDst[i].Y, 1e-8)
	}
}

func TestEstimateHomographyErrors(t *testing.T) {
	pts3 := []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	_, err := EstimateHomography(pts3, pts3, false)
	test.That(t, err, test.ShouldNotBeNil)

	pts4 := []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	_, err = EstimateHomography(pts4, pts3, false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestApplyHomographyPoint(t *testing.T) {
	// pure translation
	h := mat.NewDense(3, 3, []float64{
		1, 0, 5,
		0, 1, -3,
		0, 0, 1,
	})
	out := ApplyHomographyPoint(h, r2.Point{X: 2, Y: 2})
	test.That(t, out.X, test.ShouldAlmostEqual, 7.)
	test.That(t, out.Y, test.ShouldAlmostEqual, -1.)
}

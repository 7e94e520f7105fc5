package chessboard

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestCheckerboardSpecValid(t *testing.T) {
	test.That(t, CheckerboardSpec{Width: 7, Height: 10}.CheckValid(), test.ShouldBeNil)
	test.That(t, CheckerboardSpec{Width: 3, Height: 3}.CheckValid(), test.ShouldBeNil)
	test.That(t, CheckerboardSpec{Width: 2, Height: 10}.CheckValid(), test.ShouldNotBeNil)
	test.That(t, CheckerboardSpec{Width: 7, Height: 0}.CheckValid(), test.ShouldNotBeNil)
	test.That(t, CheckerboardSpec{Width: 5, Height: 4}.NumCorners(), test.ShouldEqual, 20)
}

func TestOrderOuterCorners(t *testing.T) {
	pts := []r2.Point{
		{X: 55, Y: 52},
		{X: 210, Y: 48},
		{X: 215, Y: 160},
		{X: 50, Y: 165},
		{X: 130, Y: 100},
		{X: 132, Y: 55},
	}
	quad := orderOuterCorners(pts)
	test.That(t, quad[0], test.ShouldResemble, r2.Point{X: 55, Y: 52})
	test.That(t, quad[1], test.ShouldResemble, r2.Point{X: 210, Y: 48})
	test.That(t, quad[2], test.ShouldResemble, r2.Point{X: 215, Y: 160})
	test.That(t, quad[3], test.ShouldResemble, r2.Point{X: 50, Y: 165})
}

// lattice returns a spec-shaped grid of points with the given spacing and
// offset, optionally jittered.
func lattice(spec CheckerboardSpec, spacing, offX, offY, jitter float64, r *rand.Rand) []r2.Point {
	pts := make([]r2.Point, 0, spec.NumCorners())
	for i := 0; i < spec.Height; i++ {
		for j := 0; j < spec.Width; j++ {
			pt := r2.Point{
				X: offX + spacing*float64(j),
				Y: offY + spacing*float64(i),
			}
			if jitter > 0 {
				pt.X += (r.Float64()*2 - 1) * jitter
				pt.Y += (r.Float64()*2 - 1) * jitter
			}
			pts = append(pts, pt)
		}
	}
	return pts
}

func TestAssembleGrid(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	spec := CheckerboardSpec{Width: 5, Height: 4}
	exact := lattice(spec, 30, 40, 60, 0, nil)
	candidates := lattice(spec, 30, 40, 60, 0.4, r)
	// shuffle so assembly cannot rely on input order
	r.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	grid, err := assembleGrid(candidates, spec, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, grid, test.ShouldHaveLength, spec.NumCorners())
	for i, pt := range grid {
		test.That(t, pt.X, test.ShouldAlmostEqual, exact[i].X, 0.5)
		test.That(t, pt.Y, test.ShouldAlmostEqual, exact[i].Y, 0.5)
	}
}

func TestAssembleGridMissingCorner(t *testing.T) {
	spec := CheckerboardSpec{Width: 5, Height: 4}
	candidates := lattice(spec, 30, 40, 60, 0, nil)
	// push an interior point off the lattice, leaving a hole no candidate
	// can fill within tolerance
	candidates[7] = candidates[7].Add(r2.Point{X: 17, Y: 13})
	_, err := assembleGrid(candidates, spec, 0.5)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAssembleGridTooFew(t *testing.T) {
	spec := CheckerboardSpec{Width: 5, Height: 4}
	_, err := assembleGrid(lattice(CheckerboardSpec{Width: 3, Height: 3}, 30, 40, 60, 0, nil), spec, 0.5)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "corner candidates")
}

func TestTransposeGrid(t *testing.T) {
	spec := CheckerboardSpec{Width: 3, Height: 4}
	transposed := CheckerboardSpec{Width: spec.Height, Height: spec.Width}
	grid := canonicalGrid(transposed)
	out := transposeGrid(grid, spec)
	test.That(t, out, test.ShouldHaveLength, spec.NumCorners())
	for i := 0; i < spec.Height; i++ {
		for j := 0; j < spec.Width; j++ {
			test.That(t, out[i*spec.Width+j], test.ShouldResemble, r2.Point{X: float64(i), Y: float64(j)})
		}
	}
}

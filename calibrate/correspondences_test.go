package calibrate

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"go.viam.com/calibrate/chessboard"
)

func renderBoard(spec chessboard.CheckerboardSpec, origin image.Point, square int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 280, 220))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for y := 0; y < (spec.Height+1)*square; y++ {
		for x := 0; x < (spec.Width+1)*square; x++ {
			if ((x/square)+(y/square))%2 == 0 {
				img.SetGray(origin.X+x, origin.Y+y, color.Gray{Y: 0})
			}
		}
	}
	return img
}

func TestNewWorldPointGrid(t *testing.T) {
	spec := chessboard.CheckerboardSpec{Width: 3, Height: 4}
	grid := NewWorldPointGrid(spec)
	test.That(t, grid, test.ShouldHaveLength, 12)
	test.That(t, grid[0].X, test.ShouldEqual, 0.)
	test.That(t, grid[0].Y, test.ShouldEqual, 0.)
	// row-major: index 3 is the start of the second row
	test.That(t, grid[3].X, test.ShouldEqual, 0.)
	test.That(t, grid[3].Y, test.ShouldEqual, 1.)
	test.That(t, grid[11].X, test.ShouldEqual, 2.)
	test.That(t, grid[11].Y, test.ShouldEqual, 3.)
	for _, pt := range grid {
		test.That(t, pt.Z, test.ShouldEqual, 0.)
	}
}

func TestBuilderProcessAll(t *testing.T) {
	logger := golog.NewTestLogger(t)
	spec := chessboard.CheckerboardSpec{Width: 5, Height: 4}
	builder, err := NewBuilder(spec, chessboard.DefaultDetectionConfiguration(), logger)
	test.That(t, err, test.ShouldBeNil)

	blank := image.NewGray(image.Rect(0, 0, 280, 220))
	for i := range blank.Pix {
		blank.Pix[i] = 200
	}
	imgs := []LabeledImage{
		{Name: "good-1.png", Image: renderBoard(spec, image.Point{X: 30, Y: 25}, 30)},
		{Name: "blank.png", Image: blank},
		{Name: "unreadable.png", Image: nil},
		{Name: "good-2.png", Image: renderBoard(spec, image.Point{X: 45, Y: 35}, 28)},
	}
	err = builder.ProcessAll(context.Background(), imgs)
	test.That(t, err, test.ShouldBeNil)

	processed, accepted := builder.Counts()
	test.That(t, processed, test.ShouldEqual, 4)
	test.That(t, accepted, test.ShouldEqual, 2)

	sets := builder.Correspondences()
	test.That(t, sets, test.ShouldHaveLength, 2)
	test.That(t, sets[0].Name, test.ShouldEqual, "good-1.png")
	test.That(t, sets[1].Name, test.ShouldEqual, "good-2.png")
	for _, set := range sets {
		test.That(t, set.CheckValid(), test.ShouldBeNil)
		test.That(t, set.ImagePoints, test.ShouldHaveLength, spec.NumCorners())
	}
}

func TestBuilderInvalidSpec(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, err := NewBuilder(chessboard.CheckerboardSpec{Width: 1, Height: 4},
		chessboard.DefaultDetectionConfiguration(), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCorrespondenceSetValid(t *testing.T) {
	var nilSet *CorrespondenceSet
	test.That(t, nilSet.CheckValid(), test.ShouldNotBeNil)
	test.That(t, (&CorrespondenceSet{Name: "empty"}).CheckValid(), test.ShouldNotBeNil)

	spec := chessboard.CheckerboardSpec{Width: 3, Height: 3}
	set := &CorrespondenceSet{Name: "odd", WorldPoints: NewWorldPointGrid(spec)}
	test.That(t, set.CheckValid(), test.ShouldNotBeNil)
}

package rimage

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestWriteAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray(x, y, color.Gray{uint8(x*16 + y)})
		}
	}
	path := filepath.Join(dir, "img.png")
	test.That(t, WriteImageToFile(path, img), test.ShouldBeNil)

	back, err := ReadGrayFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Bounds(), test.ShouldResemble, img.Bounds())
	test.That(t, back.GrayAt(5, 7), test.ShouldResemble, img.GrayAt(5, 7))

	_, err = ReadGrayFromFile(filepath.Join(dir, "nope.png"))
	test.That(t, err, test.ShouldNotBeNil)

	err = WriteImageToFile(filepath.Join(dir, "img.xyz"), img)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMakeGrayPassThrough(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	test.That(t, MakeGray(img), test.ShouldEqual, img)

	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	rgba.Set(1, 1, color.RGBA{255, 255, 255, 255})
	gray := MakeGray(rgba)
	test.That(t, gray.GrayAt(1, 1).Y, test.ShouldEqual, uint8(255))
	test.That(t, gray.GrayAt(0, 0).Y, test.ShouldEqual, uint8(0))
}

func TestBilinearInterpolationGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{0})
	img.SetGray(1, 0, color.Gray{100})
	img.SetGray(0, 1, color.Gray{100})
	img.SetGray(1, 1, color.Gray{200})

	v := BilinearInterpolationGray(r2.Point{X: 0.5, Y: 0.5}, img)
	test.That(t, v, test.ShouldNotBeNil)
	test.That(t, *v, test.ShouldAlmostEqual, 100.)

	v = BilinearInterpolationGray(r2.Point{X: 0, Y: 0}, img)
	test.That(t, v, test.ShouldNotBeNil)
	test.That(t, *v, test.ShouldAlmostEqual, 0.)

	test.That(t, BilinearInterpolationGray(r2.Point{X: -0.1, Y: 0}, img), test.ShouldBeNil)
	test.That(t, BilinearInterpolationGray(r2.Point{X: 0, Y: 1.5}, img), test.ShouldBeNil)

	n := NearestNeighborGray(r2.Point{X: 0.9, Y: 0.2}, img)
	test.That(t, n, test.ShouldNotBeNil)
	test.That(t, *n, test.ShouldEqual, uint8(100))
	test.That(t, NearestNeighborGray(r2.Point{X: 3, Y: 0}, img), test.ShouldBeNil)
}

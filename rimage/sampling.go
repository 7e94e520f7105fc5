package rimage

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// BilinearInterpolationGray approximates the luminance value at the
// non-integer position pt in a grayscale image. It returns nil if the point
// is out of bounds.
func BilinearInterpolationGray(pt r2.Point, img *image.Gray) *float64 {
	width, height := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	if pt.X < 0 || pt.Y < 0 || pt.X > width-1 || pt.Y > height-1 {
		return nil
	}
	xmin := int(math.Floor(pt.X))
	ymin := int(math.Floor(pt.Y))
	xmax := int(math.Min(width-1, math.Ceil(pt.X)))
	ymax := int(math.Min(height-1, math.Ceil(pt.Y)))

	dx := pt.X - float64(xmin)
	dy := pt.Y - float64(ymin)

	area00 := (1 - dx) * (1 - dy)
	area10 := dx * (1 - dy)
	area01 := (1 - dx) * dy
	area11 := dx * dy

	v := area00*float64(img.GrayAt(xmin, ymin).Y) +
		area10*float64(img.GrayAt(xmax, ymin).Y) +
		area01*float64(img.GrayAt(xmin, ymax).Y) +
		area11*float64(img.GrayAt(xmax, ymax).Y)
	return &v
}

// NearestNeighborGray returns the luminance value of the closest integer
// position to pt, or nil if the point is out of bounds.
func NearestNeighborGray(pt r2.Point, img *image.Gray) *uint8 {
	x, y := int(math.Round(pt.X)), int(math.Round(pt.Y))
	if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
		return nil
	}
	v := img.GrayAt(x, y).Y
	return &v
}

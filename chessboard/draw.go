package chessboard

import (
	"image"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"golang.org/x/image/font/basicfont"
)

// DrawChessboardCorners overlays detected corners on an image for visual
// inspection and writes the result as a PNG. Corners are connected in their
// row-major order so a scrambled grid is immediately visible, and every
// corner is labeled with its index.
func DrawChessboardCorners(img image.Image, corners []r2.Point, outPath string) error {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetRGB(0, 1, 0)
	dc.SetLineWidth(1.5)
	for i := 1; i < len(corners); i++ {
		dc.DrawLine(corners[i-1].X, corners[i-1].Y, corners[i].X, corners[i].Y)
	}
	dc.Stroke()

	for i, c := range corners {
		dc.SetRGB(1, 0, 0)
		dc.DrawCircle(c.X, c.Y, 3)
		dc.Stroke()
		dc.SetRGB(1, 1, 0)
		dc.DrawStringAnchored(strconv.Itoa(i), c.X+4, c.Y-4, 0, 0)
	}
	return dc.SavePNG(outPath)
}

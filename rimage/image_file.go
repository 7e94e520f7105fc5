// Package rimage provides the grayscale image plumbing used by the calibration
// pipeline: file IO, luminance matrices, convolution, and thresholding.
package rimage

import (
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadImageFromFile reads an image from the given file path. It understands
// the formats the standard decoders understand (png, jpeg) plus whatever
// imaging registers (bmp, tiff).
func ReadImageFromFile(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image from %q", path)
	}
	return img, nil
}

// ReadGrayFromFile reads an image from the given file path and converts it
// to grayscale.
func ReadGrayFromFile(path string) (*image.Gray, error) {
	img, err := ReadImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return MakeGray(img), nil
}

// MakeGray converts an image to grayscale using the standard library's
// luminance conversion.
func MakeGray(pic image.Image) *image.Gray {
	if g, ok := pic.(*image.Gray); ok {
		return g
	}
	result := image.NewGray(pic.Bounds())
	draw.Draw(result, result.Bounds(), pic, pic.Bounds().Min, draw.Src)
	return result
}

// WriteImageToFile writes the given image to a file at the supplied path.
// The encoding is picked based on the file extension.
func WriteImageToFile(path string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multiCloseErr(err, f)
	}()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return png.Encode(f, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, nil)
	default:
		return errors.Errorf("rimage.WriteImageToFile does not support %q", ext)
	}
}

func multiCloseErr(err error, f *os.File) error {
	if err != nil {
		utils.UncheckedErrorFunc(f.Close)
		return err
	}
	return f.Close()
}

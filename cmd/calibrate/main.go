// Package main contains a command to calibrate a camera from a directory of
// checkerboard images. It writes the recovered model as a JSON artifact and,
// optionally, an undistorted preview of the first usable image.
package main

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/utils"

	"go.viam.com/calibrate/calibrate"
	"go.viam.com/calibrate/chessboard"
	"go.viam.com/calibrate/rimage"
	"go.viam.com/calibrate/transform"
)

var logger = golog.NewDevelopmentLogger("calibrate")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ImageDir    string `flag:"image_dir,default=./images,usage=directory of checkerboard images"`
	OutputFile  string `flag:"output_file,default=calibration_results.json,usage=path of the calibration artifact"`
	BoardWidth  int    `flag:"checkerboard_width,default=7,usage=interior corners along the board width"`
	BoardHeight int    `flag:"checkerboard_height,default=10,usage=interior corners along the board height"`
	NoDisplay   bool   `flag:"no_display,usage=skip writing the undistorted preview image"`
	DebugDir    string `flag:"debug_dir,usage=write corner overlay images to this directory"`
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	spec := chessboard.CheckerboardSpec{Width: argsParsed.BoardWidth, Height: argsParsed.BoardHeight}
	if err := spec.CheckValid(); err != nil {
		return err
	}

	if _, err := os.Stat(argsParsed.ImageDir); os.IsNotExist(err) {
		if err := os.MkdirAll(argsParsed.ImageDir, 0o755); err != nil {
			return errors.Wrapf(err, "could not create image directory %q", argsParsed.ImageDir)
		}
		logger.Infof("created image directory %q; add checkerboard images and run again", argsParsed.ImageDir)
		return nil
	}

	paths, err := listImages(argsParsed.ImageDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.Errorf("no images found in %q", argsParsed.ImageDir)
	}
	logger.Infof("calibrating from %d images in %q", len(paths), argsParsed.ImageDir)

	imgs, width, height := loadImages(paths, logger)
	if width == 0 {
		return errors.New("none of the images could be read")
	}

	builder, err := calibrate.NewBuilder(spec, chessboard.DefaultDetectionConfiguration(), logger)
	if err != nil {
		return err
	}
	if err := builder.ProcessAll(ctx, imgs); err != nil {
		return err
	}
	processed, accepted := builder.Counts()
	logger.Infof("found a %dx%d checkerboard in %d of %d images", spec.Width, spec.Height, accepted, processed)

	sets := builder.Correspondences()
	if argsParsed.DebugDir != "" {
		writeDebugOverlays(argsParsed.DebugDir, sets, imgs, logger)
	}
	if len(sets) == 0 {
		return errors.New("no checkerboard could be detected in any image")
	}

	result, err := calibrate.Solve(sets, width, height, calibrate.DefaultSolverOptions(), logger)
	if err != nil {
		return errors.Wrap(err, "calibration failed")
	}
	result.Spec = spec
	logger.Infof("calibrated: fx=%.2f fy=%.2f ppx=%.2f ppy=%.2f mean reprojection error %.4f px",
		result.Intrinsics.Fx, result.Intrinsics.Fy, result.Intrinsics.Ppx, result.Intrinsics.Ppy,
		result.MeanReprojectionError)

	if err := result.WriteToFile(argsParsed.OutputFile); err != nil {
		return errors.Wrapf(err, "could not write calibration artifact %q", argsParsed.OutputFile)
	}
	logger.Infof("wrote calibration artifact to %q", argsParsed.OutputFile)

	if argsParsed.NoDisplay {
		return nil
	}
	return writePreview(argsParsed.OutputFile, result, sets[0], imgs, logger)
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read image directory %q", dir)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}

// loadImages reads every path as grayscale. Unreadable images and images
// whose dimensions do not match the first readable one stay in the batch as
// nil entries so the builder can report them.
func loadImages(paths []string, logger golog.Logger) ([]calibrate.LabeledImage, int, int) {
	imgs := make([]calibrate.LabeledImage, 0, len(paths))
	var width, height int
	for _, path := range paths {
		name := filepath.Base(path)
		img, err := rimage.ReadGrayFromFile(path)
		if err != nil {
			logger.Warnw("could not read image", "image", name, "error", err)
			imgs = append(imgs, calibrate.LabeledImage{Name: name})
			continue
		}
		bounds := img.Bounds()
		if width == 0 {
			width, height = bounds.Dx(), bounds.Dy()
		} else if bounds.Dx() != width || bounds.Dy() != height {
			logger.Warnw("image dimensions do not match the first image",
				"image", name, "got", bounds.Size(), "want", image.Point{X: width, Y: height})
			imgs = append(imgs, calibrate.LabeledImage{Name: name})
			continue
		}
		imgs = append(imgs, calibrate.LabeledImage{Name: name, Image: img})
	}
	return imgs, width, height
}

func writeDebugOverlays(dir string, sets []*calibrate.CorrespondenceSet, imgs []calibrate.LabeledImage, logger golog.Logger) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warnw("could not create debug directory", "dir", dir, "error", err)
		return
	}
	byName := make(map[string]*image.Gray, len(imgs))
	for _, li := range imgs {
		byName[li.Name] = li.Image
	}
	for _, set := range sets {
		img := byName[set.Name]
		if img == nil {
			continue
		}
		outPath := filepath.Join(dir, strings.TrimSuffix(set.Name, filepath.Ext(set.Name))+"_corners.png")
		if err := chessboard.DrawChessboardCorners(img, set.ImagePoints, outPath); err != nil {
			logger.Warnw("could not write corner overlay", "image", set.Name, "error", err)
		}
	}
}

// writePreview undistorts the first image that produced correspondences and
// writes it next to the artifact, with balance 1 so the full field of view
// stays visible.
func writePreview(outputFile string, result *calibrate.CalibrationResult, first *calibrate.CorrespondenceSet,
	imgs []calibrate.LabeledImage, logger golog.Logger,
) error {
	var src *image.Gray
	for _, li := range imgs {
		if li.Name == first.Name {
			src = li.Image
			break
		}
	}
	if src == nil {
		return nil
	}
	newParams, err := transform.GetOptimalNewCameraMatrix(result.Intrinsics, result.Distortion, 1.0)
	if err != nil {
		return errors.Wrap(err, "could not compute preview camera matrix")
	}
	remap, err := transform.NewUndistortionMap(result.Intrinsics, result.Distortion, newParams)
	if err != nil {
		return err
	}
	undistorted, err := remap.Apply(src)
	if err != nil {
		return err
	}
	previewPath := filepath.Join(filepath.Dir(outputFile), "undistorted_preview.png")
	if err := rimage.WriteImageToFile(previewPath, undistorted); err != nil {
		return err
	}
	logger.Infof("wrote undistorted preview to %q", previewPath)
	return nil
}

package main

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"go.viam.com/calibrate/rimage"
)

func TestMainWithArgsNoDetections(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	imageDir := filepath.Join(dir, "images")
	test.That(t, os.MkdirAll(imageDir, 0o755), test.ShouldBeNil)

	// featureless frames cannot yield a checkerboard
	blank := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range blank.Pix {
		blank.Pix[i] = 200
	}
	for _, name := range []string{"a.png", "b.png"} {
		test.That(t, rimage.WriteImageToFile(filepath.Join(imageDir, name), blank), test.ShouldBeNil)
	}

	out := filepath.Join(dir, "calibration_results.json")
	err := mainWithArgs(context.Background(), []string{
		"calibrate", "-image_dir", imageDir, "-output_file", out,
		"-checkerboard_width", "5", "-checkerboard_height", "4", "-no_display",
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no checkerboard could be detected")

	// a run with no usable detections must not leave an artifact behind
	_, statErr := os.Stat(out)
	test.That(t, os.IsNotExist(statErr), test.ShouldBeTrue)
}

func TestMainWithArgsCreatesImageDir(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	imageDir := filepath.Join(dir, "images")
	out := filepath.Join(dir, "calibration_results.json")

	err := mainWithArgs(context.Background(), []string{
		"calibrate", "-image_dir", imageDir, "-output_file", out,
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	info, statErr := os.Stat(imageDir)
	test.That(t, statErr, test.ShouldBeNil)
	test.That(t, info.IsDir(), test.ShouldBeTrue)
	_, statErr = os.Stat(out)
	test.That(t, os.IsNotExist(statErr), test.ShouldBeTrue)
}

package utils

import (
	"context"
	"image"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestParallelForEachPixel(t *testing.T) {
	size := image.Point{17, 23}
	var count int64
	ParallelForEachPixel(size, func(x, y int) {
		atomic.AddInt64(&count, 1)
	})
	test.That(t, count, test.ShouldEqual, int64(size.X*size.Y))
}

func TestRunInParallel(t *testing.T) {
	results := make([]int, 4)
	fs := make([]SimpleFunc, 0, 4)
	for i := 0; i < 4; i++ {
		idx := i
		fs = append(fs, func(ctx context.Context) error {
			results[idx] = idx + 1
			return nil
		})
	}
	err := RunInParallel(context.Background(), fs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, results, test.ShouldResemble, []int{1, 2, 3, 4})

	fs = append(fs, func(ctx context.Context) error {
		return errors.New("one bad apple")
	})
	err = RunInParallel(context.Background(), fs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad apple")

	fs = append(fs, func(ctx context.Context) error {
		panic("blown fuse")
	})
	err = RunInParallel(context.Background(), fs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "blown fuse")
}

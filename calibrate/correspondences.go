// Package calibrate estimates a shared pinhole camera model with Brown-Conrady
// distortion from checkerboard images: corner detection builds 2D-3D
// correspondences, a closed-form init following Zhang seeds the intrinsics and
// per-view poses, and a joint Levenberg-Marquardt refinement minimizes the
// total reprojection error.
package calibrate

import (
	"context"
	"image"
	"sync"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/calibrate/chessboard"
	"go.viam.com/calibrate/utils"
)

// CorrespondenceSet pairs the checkerboard corners detected in one image with
// their known positions on the physical board. WorldPoints and ImagePoints
// are index-aligned and both row-major over the corner grid.
type CorrespondenceSet struct {
	Name        string
	WorldPoints []r3.Vector
	ImagePoints []r2.Point
}

// CheckValid returns an error if the set cannot contribute to calibration.
func (cs *CorrespondenceSet) CheckValid() error {
	if cs == nil {
		return errors.New("correspondence set is nil")
	}
	if len(cs.WorldPoints) == 0 {
		return errors.Errorf("correspondence set %q is empty", cs.Name)
	}
	if len(cs.WorldPoints) != len(cs.ImagePoints) {
		return errors.Errorf("correspondence set %q has %d world points but %d image points",
			cs.Name, len(cs.WorldPoints), len(cs.ImagePoints))
	}
	return nil
}

// NewWorldPointGrid returns the board frame coordinates of every interior
// corner in row-major order, with unit square size and z=0. The physical
// square size only scales the translations, not the intrinsics, so working
// in board units loses nothing.
func NewWorldPointGrid(spec chessboard.CheckerboardSpec) []r3.Vector {
	pts := make([]r3.Vector, 0, spec.NumCorners())
	for i := 0; i < spec.Height; i++ {
		for j := 0; j < spec.Width; j++ {
			pts = append(pts, r3.Vector{X: float64(j), Y: float64(i), Z: 0})
		}
	}
	return pts
}

// LabeledImage is one input frame. A nil Image marks a frame that could not
// be read; the builder counts and reports it without failing the batch.
type LabeledImage struct {
	Name  string
	Image *image.Gray
}

// Builder runs corner detection and sub-pixel refinement over a batch of
// images and collects the per-image correspondence sets. Images that fail
// detection are logged and skipped; only the whole batch failing is fatal to
// a calibration.
type Builder struct {
	spec   chessboard.CheckerboardSpec
	conf   chessboard.DetectionConfiguration
	world  []r3.Vector
	logger golog.Logger

	mu        sync.Mutex
	sets      []*CorrespondenceSet
	processed int
}

// NewBuilder returns a Builder for the given board.
func NewBuilder(spec chessboard.CheckerboardSpec, conf chessboard.DetectionConfiguration, logger golog.Logger) (*Builder, error) {
	if err := spec.CheckValid(); err != nil {
		return nil, err
	}
	return &Builder{
		spec:   spec,
		conf:   conf,
		world:  NewWorldPointGrid(spec),
		logger: logger,
	}, nil
}

// ProcessAll detects corners in every image, in parallel. Results keep the
// input order regardless of which image finishes first.
func (b *Builder) ProcessAll(ctx context.Context, imgs []LabeledImage) error {
	slots := make([]*CorrespondenceSet, len(imgs))
	fs := make([]utils.SimpleFunc, 0, len(imgs))
	for i, li := range imgs {
		i, li := i, li
		fs = append(fs, func(ctx context.Context) error {
			slots[i] = b.processOne(li)
			return nil
		})
	}
	if err := utils.RunInParallel(ctx, fs); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.processed += len(imgs)
	for _, set := range slots {
		if set != nil {
			b.sets = append(b.sets, set)
		}
	}
	return nil
}

func (b *Builder) processOne(li LabeledImage) *CorrespondenceSet {
	if li.Image == nil {
		b.logger.Warnw("skipping unreadable image", "image", li.Name)
		return nil
	}
	corners, err := chessboard.FindChessboardCorners(li.Image, b.spec, b.conf)
	if err != nil {
		b.logger.Warnw("no checkerboard found", "image", li.Name, "error", err)
		return nil
	}
	corners = chessboard.RefineCornersSubpix(li.Image, corners,
		chessboard.DefaultRefinementHalfWindow, chessboard.DefaultTermCriteria)
	b.logger.Debugw("checkerboard found", "image", li.Name, "corners", len(corners))
	return &CorrespondenceSet{
		Name:        li.Name,
		WorldPoints: b.world,
		ImagePoints: corners,
	}
}

// Correspondences returns the successfully built sets, in input order.
func (b *Builder) Correspondences() []*CorrespondenceSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*CorrespondenceSet, len(b.sets))
	copy(out, b.sets)
	return out
}

// Counts returns how many images were processed and how many produced a
// usable correspondence set.
func (b *Builder) Counts() (processed, accepted int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed, len(b.sets)
}

package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// EstimateHomography estimates the planar homography H such that
// dst[i] ~ H * src[i] using the direct linear transform on the homogeneous
// point correspondences. At least 4 point pairs are needed; with more than 4
// pairs, the least squares solution over all of them is returned. If
// normalize is true, both point sets are translated and scaled before the
// solve, which conditions the system much better for pixel-scale
// coordinates.
func EstimateHomography(src, dst []r2.Point, normalize bool) (*mat.Dense, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("sets of points must have the same number of elements, got %d and %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, errors.Errorf("need at least 4 point pairs to estimate a homography, got %d", len(src))
	}
	nPoints := len(src)

	points1 := src
	points2 := dst
	T1 := eye(3)
	T2 := eye(3)
	if normalize {
		points1, T1 = normalizePoints(src)
		points2, T2 = normalizePoints(dst)
	}

	// each correspondence contributes two rows to A*h = 0
	m := mat.NewDense(2*nPoints, 9, nil)
	for i := range points1 {
		p := points1[i]
		q := points2[i]
		m.SetRow(2*i, []float64{
			p.X, p.Y, 1, 0, 0, 0, -q.X * p.X, -q.X * p.Y, -q.X,
		})
		m.SetRow(2*i+1, []float64{
			0, 0, 0, p.X, p.Y, 1, -q.Y * p.X, -q.Y * p.Y, -q.Y,
		})
	}

	// h is the right singular vector for the smallest singular value
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize homography system")
	}
	var v mat.Dense
	svd.VTo(&v)
	hData := make([]float64, 9)
	for i := range hData {
		hData[i] = v.At(i, 8)
	}
	H := mat.NewDense(3, 3, hData)

	// denormalize: H = T2^-1 * Hn * T1
	if normalize {
		var invT2 mat.Dense
		if err := invT2.Inverse(T2); err != nil {
			return nil, errors.Wrap(err, "cannot invert normalization transform")
		}
		var tmp mat.Dense
		tmp.Mul(H, T1)
		H.Mul(&invT2, &tmp)
	}

	if math.Abs(H.At(2, 2)) < 1e-12 {
		return nil, errors.New("degenerate homography, cannot scale to h33 = 1")
	}
	H.Scale(1./H.At(2, 2), H)
	return H, nil
}

// ApplyHomography transforms every point in pts by the homography h.
func ApplyHomography(h *mat.Dense, pts []r2.Point) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, pt := range pts {
		out[i] = ApplyHomographyPoint(h, pt)
	}
	return out
}

// ApplyHomographyPoint transforms a single point by the homography h.
func ApplyHomographyPoint(h *mat.Dense, pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// normalizePoints translates points to their centroid and scales them so the
// average distance from the origin is sqrt(2). It returns the transformed
// points and the associated 3x3 transform.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	nPoints := len(pts)
	mu := r2.Point{}
	for _, pt := range pts {
		mu.X += pt.X
		mu.Y += pt.Y
	}
	mu = mu.Mul(1. / float64(nPoints))

	d := 0.0
	for _, pt := range pts {
		x2 := (pt.X - mu.X) * (pt.X - mu.X)
		y2 := (pt.Y - mu.Y) * (pt.Y - mu.Y)
		d += math.Sqrt(x2+y2) / float64(nPoints)
	}
	scale := 1.0
	if d > 1e-12 {
		scale = math.Sqrt(2) / d
	}
	transformData := []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	}
	T := mat.NewDense(3, 3, transformData)

	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = r2.Point{X: scale * (pts[i].X - mu.X), Y: scale * (pts[i].Y - mu.Y)}
	}
	return pointsTransformed, T
}

// eye creates an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

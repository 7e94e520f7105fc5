package calibrate

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/calibrate/chessboard"
	"go.viam.com/calibrate/transform"
)

// CalibrationResult is the full output of a calibration run.
type CalibrationResult struct {
	Intrinsics *transform.PinholeCameraIntrinsics
	Distortion *transform.BrownConrady
	// Poses holds the board pose of each used view, index-aligned with the
	// correspondence sets given to Solve.
	Poses []transform.Pose
	Spec  chessboard.CheckerboardSpec

	NumImagesUsed         int
	PerImageErrors        []float64
	MeanReprojectionError float64
	Success               bool
}

// resultJSON is the serialized layout of a calibration artifact. Field names
// and the distortion coefficient order k1, k2, p1, p2, k3 are a compatibility
// surface for downstream consumers and must not change.
type resultJSON struct {
	CameraMatrix             [][]float64 `json:"camera_matrix"`
	DistortionCoefficients   []float64   `json:"distortion_coefficients"`
	RotationVectors          [][]float64 `json:"rotation_vectors"`
	TranslationVectors       [][]float64 `json:"translation_vectors"`
	CalibrationSuccess       bool        `json:"calibration_success"`
	ImageDimensionsWH        [2]int      `json:"image_dimensions_wh"`
	CheckerboardDimensionsWH [2]int      `json:"checkerboard_dimensions_wh"`
	NumImagesUsed            int         `json:"num_images_used"`
	MeanReprojectionError    float64     `json:"mean_reprojection_error"`
}

// MarshalJSON serializes the result in the calibration artifact layout.
func (r *CalibrationResult) MarshalJSON() ([]byte, error) {
	if r.Intrinsics == nil || r.Distortion == nil {
		return nil, errors.New("calibration result is incomplete")
	}
	k := r.Intrinsics.GetCameraMatrix()
	out := resultJSON{
		CameraMatrix: [][]float64{
			{k.At(0, 0), k.At(0, 1), k.At(0, 2)},
			{k.At(1, 0), k.At(1, 1), k.At(1, 2)},
			{k.At(2, 0), k.At(2, 1), k.At(2, 2)},
		},
		DistortionCoefficients:   r.Distortion.Parameters(),
		RotationVectors:          make([][]float64, 0, len(r.Poses)),
		TranslationVectors:       make([][]float64, 0, len(r.Poses)),
		CalibrationSuccess:       r.Success,
		ImageDimensionsWH:        [2]int{r.Intrinsics.Width, r.Intrinsics.Height},
		CheckerboardDimensionsWH: [2]int{r.Spec.Width, r.Spec.Height},
		NumImagesUsed:            r.NumImagesUsed,
		MeanReprojectionError:    r.MeanReprojectionError,
	}
	for _, pose := range r.Poses {
		out.RotationVectors = append(out.RotationVectors,
			[]float64{pose.Rotation.X, pose.Rotation.Y, pose.Rotation.Z})
		out.TranslationVectors = append(out.TranslationVectors,
			[]float64{pose.Translation.X, pose.Translation.Y, pose.Translation.Z})
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a result back from the artifact layout. Per-image
// errors are not part of the artifact and stay empty.
func (r *CalibrationResult) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.CameraMatrix) != 3 || len(in.CameraMatrix[0]) != 3 {
		return errors.New("camera_matrix must be 3x3")
	}
	if len(in.DistortionCoefficients) != 5 {
		return errors.Errorf("expected 5 distortion coefficients, got %d", len(in.DistortionCoefficients))
	}
	if len(in.RotationVectors) != len(in.TranslationVectors) {
		return errors.New("rotation_vectors and translation_vectors must have the same length")
	}
	dist, err := transform.NewBrownConrady(in.DistortionCoefficients)
	if err != nil {
		return err
	}
	r.Intrinsics = &transform.PinholeCameraIntrinsics{
		Width:  in.ImageDimensionsWH[0],
		Height: in.ImageDimensionsWH[1],
		Fx:     in.CameraMatrix[0][0],
		Fy:     in.CameraMatrix[1][1],
		Ppx:    in.CameraMatrix[0][2],
		Ppy:    in.CameraMatrix[1][2],
	}
	r.Distortion = dist
	r.Poses = make([]transform.Pose, len(in.RotationVectors))
	for i := range in.RotationVectors {
		rv, tv := in.RotationVectors[i], in.TranslationVectors[i]
		if len(rv) != 3 || len(tv) != 3 {
			return errors.New("pose vectors must have 3 components")
		}
		r.Poses[i].Rotation.X, r.Poses[i].Rotation.Y, r.Poses[i].Rotation.Z = rv[0], rv[1], rv[2]
		r.Poses[i].Translation.X, r.Poses[i].Translation.Y, r.Poses[i].Translation.Z = tv[0], tv[1], tv[2]
	}
	r.Spec = chessboard.CheckerboardSpec{
		Width:  in.CheckerboardDimensionsWH[0],
		Height: in.CheckerboardDimensionsWH[1],
	}
	r.NumImagesUsed = in.NumImagesUsed
	r.MeanReprojectionError = in.MeanReprojectionError
	r.Success = in.CalibrationSuccess
	return nil
}

// WriteToFile writes the artifact atomically: the JSON lands in a temp file
// in the destination directory first and is renamed into place, so a crash
// mid-write never leaves a truncated artifact behind.
func (r *CalibrationResult) WriteToFile(path string) error {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".calibration-*.json")
	if err != nil {
		return errors.Wrap(err, "could not create temp artifact")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// NewCalibrationResultFromFile reads a previously written artifact.
func NewCalibrationResultFromFile(path string) (*CalibrationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result CalibrationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrapf(err, "could not parse calibration artifact %q", path)
	}
	return &result, nil
}

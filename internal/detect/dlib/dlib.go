// Package dlib runs face detection and encoding in-process through dlib.
package dlib

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/detect"
)

const jpegQuality = 95

// Detector wraps a dlib recognizer. The models directory must contain
// shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat
// and, for the cnn model, mmod_human_face_detector.dat.
type Detector struct {
	mu  sync.Mutex
	rec *face.Recognizer
	cnn bool
}

// New loads the models from modelsDir.
func New(modelsDir, model string) (*Detector, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load face models from %s: %w", modelsDir, err)
	}
	return &Detector{rec: rec, cnn: model == config.ModelCNN}, nil
}

// Detect returns every face in img with its 128-d descriptor.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detect.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := detect.EncodeJPEG(img, jpegQuality)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec == nil {
		return nil, fmt.Errorf("detector closed")
	}

	var found []face.Face
	if d.cnn {
		found, err = d.rec.RecognizeCNN(data)
	} else {
		found, err = d.rec.Recognize(data)
	}
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	faces := make([]detect.Face, len(found))
	for i, f := range found {
		enc := make([]float32, len(f.Descriptor))
		copy(enc, f.Descriptor[:])
		faces[i] = detect.Face{
			Box:      f.Rectangle,
			Encoding: enc,
			Score:    1,
		}
	}
	return faces, nil
}

// Close releases the dlib models.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
	return nil
}

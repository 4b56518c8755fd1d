// Package detect finds faces in a frame and computes their encodings.
package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
)

// Face is one detected face.
type Face struct {
	Box      image.Rectangle // in the coordinates of the image passed to Detect
	Encoding []float32
	Score    float64
}

// Detector locates faces and encodes them.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Face, error)
	Close() error
}

// EncodeJPEG serializes a frame for detectors that take compressed input.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Encodings returns the encodings of faces in detection order.
func Encodings(faces []Face) [][]float32 {
	out := make([][]float32, len(faces))
	for i, f := range faces {
		out[i] = f.Encoding
	}
	return out
}

// Package opencv reads frames from a camera through OpenCV.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"

	"gocv.io/x/gocv"
)

// Source is an opened OpenCV video capture.
type Source struct {
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// Open opens a camera by index ("0") or by path/URL and requests the given size.
func Open(device string, width, height int) (*Source, error) {
	var target any = device
	if idx, err := strconv.Atoi(device); err == nil {
		target = idx
	}

	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %s is not available", device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(height))

	return &Source{cap: vc, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame.
func (s *Source) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := s.cap.Read(&s.mat); !ok {
		return nil, errors.New("cannot read device")
	}
	if s.mat.Empty() {
		return nil, errors.New("empty frame")
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close releases the camera.
func (s *Source) Close() error {
	s.mat.Close()
	if err := s.cap.Close(); err != nil {
		return fmt.Errorf("close camera: %w", err)
	}
	return nil
}

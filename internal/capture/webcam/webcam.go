// Package webcam reads MJPEG frames from a V4L2 device.
package webcam

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

const (
	pixelFormatMJPEG webcam.PixelFormat = 0x47504A4D // 'MJPG'
	waitTimeoutSec                      = 1
)

// Source is an opened V4L2 camera streaming MJPEG.
type Source struct {
	cam *webcam.Webcam
}

// Open opens device (e.g. /dev/video0) and starts streaming at the requested size.
func Open(device string, width, height int) (*Source, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open device")
	}

	if _, ok := cam.GetSupportedFormats()[pixelFormatMJPEG]; !ok {
		cam.Close()
		return nil, errors.Errorf("device %s does not support MJPEG", device)
	}

	if _, _, _, err := cam.SetImageFormat(pixelFormatMJPEG, uint32(width), uint32(height)); err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "Can not set image format")
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "Can not start streaming")
	}

	return &Source{cam: cam}, nil
}

// Read waits for the next frame and decodes it.
func (s *Source) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := s.cam.WaitForFrame(waitTimeoutSec)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, errors.Wrap(err, "Frame wait timed out")
	default:
		return nil, errors.Wrap(err, "Frame wait failed")
	}

	frame, err := s.cam.ReadFrame()
	if err != nil {
		return nil, errors.Wrap(err, "Read frame failed")
	}
	if len(frame) == 0 {
		return nil, errors.New("empty frame")
	}

	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, errors.Wrap(err, "Decode frame failed")
	}
	return img, nil
}

// Close stops streaming and releases the device.
func (s *Source) Close() error {
	if s.cam == nil {
		return nil
	}
	s.cam.StopStreaming()
	err := s.cam.Close()
	s.cam = nil
	return errors.Wrap(err, "Close device failed")
}

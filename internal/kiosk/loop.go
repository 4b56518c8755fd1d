// Package kiosk runs the checkpoint: it pulls camera frames, recognizes
// faces on every Nth frame, advances the display state machine and shows
// the composited result.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/detect"
	"github.com/kozaktomas/face-attendance/internal/display"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/render"
	"github.com/kozaktomas/face-attendance/internal/surface"
)

const readRetryDelay = 20 * time.Millisecond

// errStop ends the loop without an error.
var errStop = errors.New("stop")

// ErrPanicked is wrapped by the error Run returns after recovering a panic
// in the loop body. Resources are released by then.
var ErrPanicked = errors.New("frame loop panicked")

// Stats counts what the loop did.
type Stats struct {
	Frames      int
	Processed   int
	ReadErrors  int
	DetectFails int
	Matches     int
}

// Loop is the frame loop. It owns the frame source and the surface and
// closes both when Run returns.
type Loop struct {
	cfg        config.RecognitionConfig
	source     capture.FrameSource
	detector   detect.Detector
	matcher    *facematch.Matcher
	machine    *display.Machine
	compositor *render.Compositor
	surface    surface.Surface
	log        logrus.FieldLogger

	boxes []image.Rectangle
	small *image.RGBA
	stats Stats
}

// Deps are the collaborators of a Loop.
type Deps struct {
	Source     capture.FrameSource
	Detector   detect.Detector
	Matcher    *facematch.Matcher
	Machine    *display.Machine
	Compositor *render.Compositor
	Surface    surface.Surface
	Log        logrus.FieldLogger
}

// New creates a frame loop.
func New(cfg config.RecognitionConfig, deps Deps) *Loop {
	return &Loop{
		cfg:        cfg,
		source:     deps.Source,
		detector:   deps.Detector,
		matcher:    deps.Matcher,
		machine:    deps.Machine,
		compositor: deps.Compositor,
		surface:    deps.Surface,
		log:        deps.Log,
	}
}

// Stats returns the counters collected so far.
func (l *Loop) Stats() Stats {
	return l.stats
}

// Run loops until ctx is cancelled, the surface reports quit, or a finite
// frame source runs out. It returns an error only if the loop body panicked.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer l.release()

	l.log.WithFields(logrus.Fields{
		"frame_skip":      l.cfg.FrameSkip,
		"detection_scale": l.cfg.DetectionScale,
		"threshold":       l.matcher.Threshold(),
	}).Info("Starting face recognition loop")

	for {
		if ctx.Err() != nil {
			l.log.Info("Frame loop interrupted")
			return nil
		}
		if l.surface.QuitRequested() {
			l.log.Info("Quit requested")
			return nil
		}

		if err := l.safeIterate(ctx); err != nil {
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		}
	}
}

// safeIterate runs one iteration and turns a panic into an error.
func (l *Loop) safeIterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithField("stack", string(debug.Stack())).Errorf("Frame loop panicked: %v", r)
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return l.iterate(ctx)
}

func (l *Loop) iterate(ctx context.Context) error {
	frame, err := l.source.Read(ctx)
	if err != nil {
		switch {
		case errors.Is(err, capture.ErrExhausted):
			l.log.Info("Frame source exhausted")
			return errStop
		case ctx.Err() != nil:
			return nil
		}
		l.stats.ReadErrors++
		l.log.WithError(err).Warn("Failed to capture frame")
		select {
		case <-ctx.Done():
		case <-time.After(readRetryDelay):
		}
		return nil
	}

	index := l.stats.Frames
	l.stats.Frames++

	if index%l.cfg.FrameSkip == 0 {
		l.process(ctx, frame)
	} else {
		// Boxes belong to the frame they were detected on.
		l.boxes = l.boxes[:0]
	}

	out := l.compositor.Compose(frame, l.machine.View(), l.boxes)
	if err := l.surface.Show(out); err != nil {
		l.log.WithError(err).Warn("Failed to show frame")
	}
	return nil
}

// process runs detection and matching on a downscaled copy of frame and
// steps the state machine.
func (l *Loop) process(ctx context.Context, frame image.Image) {
	l.stats.Processed++
	scale := l.cfg.DetectionScale

	faces, err := l.detector.Detect(ctx, l.downscale(frame))
	if err != nil {
		l.stats.DetectFails++
		l.log.WithError(err).Warn("Face detection failed")
		faces = nil
	}

	results := l.matcher.MatchAll(detect.Encodings(faces))

	l.boxes = l.boxes[:0]
	var matched []string
	origin := frame.Bounds().Min
	for i, res := range results {
		if !res.Matched {
			continue
		}
		box := facematch.UpscaleRect(faces[i].Box, scale).Add(origin)
		l.boxes = append(l.boxes, facematch.ClampRect(box, frame.Bounds()))
		matched = append(matched, res.ID)
		l.log.WithFields(logrus.Fields{
			"student_id": res.ID,
			"distance":   res.Distance,
		}).Debug("Face matched")
	}
	l.stats.Matches += len(matched)

	l.machine.Step(matched)
}

func (l *Loop) downscale(frame image.Image) image.Image {
	scale := l.cfg.DetectionScale
	if scale >= 1 {
		return frame
	}
	b := frame.Bounds()
	w, h := facematch.ScaledSize(b.Dx(), b.Dy(), scale)
	if l.small == nil || l.small.Bounds().Dx() != w || l.small.Bounds().Dy() != h {
		l.small = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	xdraw.ApproxBiLinear.Scale(l.small, l.small.Bounds(), frame, b, xdraw.Src, nil)
	return l.small
}

func (l *Loop) release() {
	if err := l.source.Close(); err != nil {
		l.log.WithError(err).Warn("Failed to release frame source")
	}
	if err := l.surface.Close(); err != nil {
		l.log.WithError(err).Warn("Failed to close surface")
	}
	l.log.WithFields(logrus.Fields{
		"frames":    l.stats.Frames,
		"processed": l.stats.Processed,
		"matches":   l.stats.Matches,
	}).Info("Frame loop stopped")
}

package attendance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// ErrRecordNotFound is reported when the record store has no profile for the key.
var ErrRecordNotFound = errors.New("student record not found")

// DefaultImageExts is the lookup order for reference images.
var DefaultImageExts = []string{"png", "jpg"}

// ImagePath returns the blob name of a reference image.
func ImagePath(id, ext string) string {
	return path.Join("images", id+"."+ext)
}

// Request asks the worker to refresh one identity for a display session.
type Request struct {
	ID    string
	Epoch uint64
}

// Outcome describes what a worker run did.
type Outcome struct {
	Request
	Recorded bool // attendance was written to the store
	Cached   bool // cache accepted the result
	HasImage bool
	Err      error
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Cooldown  time.Duration
	ImageExts []string
	Now       func() time.Time
}

// Worker fetches a student profile, records attendance when the cooldown has
// elapsed, and publishes the result into the cache.
type Worker struct {
	students database.StudentWriter
	blobs    database.BlobReader
	cache    *Cache
	log      logrus.FieldLogger

	cooldown time.Duration
	exts     []string
	now      func() time.Time
}

// NewWorker creates a worker. blobs may be nil, in which case profiles are
// shown without a reference image.
func NewWorker(students database.StudentWriter, blobs database.BlobReader, cache *Cache, log logrus.FieldLogger, cfg WorkerConfig) *Worker {
	w := &Worker{
		students: students,
		blobs:    blobs,
		cache:    cache,
		log:      log,
		cooldown: cfg.Cooldown,
		exts:     cfg.ImageExts,
		now:      cfg.Now,
	}
	if len(w.exts) == 0 {
		w.exts = DefaultImageExts
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Run performs one fetch-and-record cycle. Failures leave the cache untouched.
func (w *Worker) Run(ctx context.Context, req Request) Outcome {
	out := Outcome{Request: req}
	log := w.log.WithFields(logrus.Fields{"student_id": req.ID, "epoch": req.Epoch})

	rec, err := w.students.GetStudent(ctx, req.ID)
	if err != nil {
		out.Err = fmt.Errorf("get student %s: %w", req.ID, err)
		log.WithError(err).Error("Failed to fetch student record")
		return out
	}
	if rec == nil {
		out.Err = ErrRecordNotFound
		log.Warn("No student record for recognized face")
		return out
	}

	img, err := w.referenceImage(ctx, req.ID, log)
	if err != nil {
		out.Err = err
		log.WithError(err).Error("Failed to fetch reference image")
		return out
	}
	out.HasImage = img != nil

	now := w.now()
	elapsed := now.Sub(rec.LastAttendanceTime.Time)
	if rec.LastAttendanceTime.IsZero() || elapsed > w.cooldown {
		total := rec.TotalAttendance + 1
		if err := w.students.UpdateAttendance(ctx, req.ID, total, now); err != nil {
			out.Err = fmt.Errorf("update attendance for %s: %w", req.ID, err)
			log.WithError(err).Error("Failed to record attendance")
			return out
		}
		rec.TotalAttendance = total
		rec.LastAttendanceTime = database.NewTimestamp(now)
		out.Recorded = true
		log.WithField("total_attendance", total).Info("Attendance recorded")
	} else {
		log.WithField("elapsed", elapsed.Round(time.Second)).Info("Attendance already marked")
	}

	out.Cached = w.cache.Put(Entry{
		ID:       req.ID,
		Record:   *rec,
		Image:    img,
		Epoch:    req.Epoch,
		Recorded: out.Recorded,
	})
	if !out.Cached {
		log.Debug("Discarded result from an older session")
	}
	return out
}

// referenceImage returns the cached image or downloads it. A missing or
// undecodable image is not an error.
func (w *Worker) referenceImage(ctx context.Context, id string, log logrus.FieldLogger) (image.Image, error) {
	if img := w.cache.Image(id); img != nil {
		return img, nil
	}
	if w.blobs == nil {
		return nil, nil
	}

	for _, ext := range w.exts {
		name := ImagePath(id, ext)
		data, err := w.blobs.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("get blob %s: %w", name, err)
		}
		if data == nil {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			log.WithError(err).WithField("blob", name).Warn("Cannot decode reference image")
			return nil, nil
		}
		return img, nil
	}

	log.Debug("No reference image in blob store")
	return nil, nil
}

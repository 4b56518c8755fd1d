package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/blobstore/gcs"
	"github.com/kozaktomas/face-attendance/internal/blobstore/localfs"
	"github.com/kozaktomas/face-attendance/internal/blobstore/s3store"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/capture/opencv"
	"github.com/kozaktomas/face-attendance/internal/capture/webcam"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/firebase"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/database/redis"
	"github.com/kozaktomas/face-attendance/internal/detect"
	"github.com/kozaktomas/face-attendance/internal/detect/dlib"
	"github.com/kozaktomas/face-attendance/internal/surface"
	cvwindow "github.com/kozaktomas/face-attendance/internal/surface/opencv"
	"github.com/kozaktomas/face-attendance/internal/surface/stream"
)

// studentStore is a record store plus whatever must be released on exit.
type studentStore interface {
	database.StudentWriter
	io.Closer
}

func readCredentials(cfg *config.Config) ([]byte, error) {
	data, err := os.ReadFile(cfg.Store.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	return data, nil
}

// openStudentStore connects to the configured record store.
func openStudentStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (studentStore, error) {
	switch cfg.Store.Backend {
	case "firebase":
		creds, err := readCredentials(cfg)
		if err != nil {
			return nil, err
		}
		log.WithField("url", cfg.Store.DatabaseURL).Info("Connecting to Firebase Realtime Database")
		client, err := firebase.New(ctx, cfg.Store.DatabaseURL, cfg.Store.Namespace, creds)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "postgres":
		log.Info("Connecting to PostgreSQL")
		pool, err := postgres.Open(ctx, cfg.Store, log)
		if err != nil {
			return nil, err
		}
		return &postgresStudents{StudentRepository: postgres.NewStudentRepository(pool), pool: pool}, nil
	case "redis":
		store, err := redis.New(ctx, cfg.Store, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

type postgresStudents struct {
	*postgres.StudentRepository
	pool *postgres.Pool
}

func (p *postgresStudents) Close() error {
	return p.pool.Close()
}

// openBlobStore connects to the configured blob store.
func openBlobStore(ctx context.Context, cfg *config.Config) (database.BlobWriter, error) {
	switch cfg.Blob.Backend {
	case "gcs":
		creds, err := readCredentials(cfg)
		if err != nil {
			return nil, err
		}
		store, err := gcs.New(ctx, cfg.Blob.Bucket, creds)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := s3store.New(cfg.Blob.Bucket, cfg.Blob.Region, cfg.Blob.Endpoint)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "local":
		store, err := localfs.New(cfg.Blob.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
}

func openDetector(cfg *config.Config) (detect.Detector, error) {
	switch cfg.Detector.Backend {
	case "dlib":
		d, err := dlib.New(cfg.Detector.ModelsDir, cfg.Recognition.Model)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "service":
		return detect.NewServiceClient(cfg.Detector.URL, cfg.Recognition.Model), nil
	}
	return nil, fmt.Errorf("unknown detector backend %q", cfg.Detector.Backend)
}

func openFrameSource(cfg *config.Config) (capture.FrameSource, error) {
	c := cfg.Camera
	var (
		src capture.FrameSource
		err error
	)
	switch c.Backend {
	case "opencv":
		src, err = asSource(opencv.Open(c.Device, c.Width, c.Height))
	case "webcam":
		src, err = asSource(webcam.Open(c.Device, c.Width, c.Height))
	case "replay":
		src, err = asSource(capture.NewReplaySource(c.Device, true))
	default:
		err = fmt.Errorf("unknown camera backend %q", c.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("frame source unavailable: %w", err)
	}
	return src, nil
}

// asSource keeps a failed constructor's typed nil out of the interface.
func asSource[S capture.FrameSource](s S, err error) (capture.FrameSource, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// openSurface creates the render surface. The stream server binds its
// address here and serves in the background.
func openSurface(cfg *config.Config, log logrus.FieldLogger) (surface.Surface, error) {
	switch cfg.Surface.Backend {
	case "window":
		return cvwindow.NewWindow(cfg.Surface.Title), nil
	case "stream":
		srv := stream.NewServer(cfg.Surface.Listen, log)
		if err := srv.Listen(); err != nil {
			return nil, err
		}
		go func() {
			if err := srv.Serve(); err != nil {
				log.WithError(err).Error("Stream server stopped")
			}
		}()
		return srv, nil
	}
	return nil, fmt.Errorf("unknown surface backend %q", cfg.Surface.Backend)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/display"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/kiosk"
	"github.com/kozaktomas/face-attendance/internal/render"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the attendance checkpoint",
	Long: `Open the camera, recognize enrolled students and record their attendance.

The known encodings are read from the artifact written by "enroll"
(paths.encodings), or from PostgreSQL with --roster=postgres.
Press q in the window, call POST /api/v1/quit on the stream surface,
or send SIGINT/SIGTERM to stop.

Examples:
  # Run with config.yaml and the default OpenCV camera
  face-attendance run

  # Replay a folder of frames and stream the output to a browser
  face-attendance run --camera replay --device ./frames --surface stream`,
	RunE: runCheckpoint,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("camera", "", "Camera backend: opencv, webcam or replay")
	runCmd.Flags().String("device", "", "Camera device index, /dev/videoN or replay directory")
	runCmd.Flags().String("surface", "", "Render surface: window or stream")
	runCmd.Flags().Int("frame-skip", 0, "Run recognition on every Nth frame")
	runCmd.Flags().Float64("threshold", 0, "Maximum accepted face distance")
	runCmd.Flags().String("roster", "file", "Known encodings source: file or postgres")
}

// applyRunFlags overrides config values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	if flagChanged(cmd, "camera") {
		cfg.Camera.Backend = mustGetString(cmd, "camera")
	}
	if flagChanged(cmd, "device") {
		cfg.Camera.Device = mustGetString(cmd, "device")
	}
	if flagChanged(cmd, "surface") {
		cfg.Surface.Backend = mustGetString(cmd, "surface")
	}
	if flagChanged(cmd, "frame-skip") {
		cfg.Recognition.FrameSkip = mustGetInt(cmd, "frame-skip")
	}
	if flagChanged(cmd, "threshold") {
		cfg.Recognition.Threshold = mustGetFloat64(cmd, "threshold")
	}
	return cfg.Validate()
}

func loadRoster(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log logrus.FieldLogger) (*roster.KnownFaceSet, error) {
	switch source := mustGetString(cmd, "roster"); source {
	case "file":
		log.WithField("path", cfg.Paths.Encodings).Info("Loading encode file")
		return roster.Load(cfg.Paths.Encodings)
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.Store, log)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		return roster.LoadFromStore(ctx, postgres.NewKnownFaceRepository(pool))
	default:
		return nil, fmt.Errorf("unknown roster source %q", source)
	}
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	known, err := loadRoster(ctx, cmd, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to load known encodings: %w", err)
	}
	log.WithFields(logrus.Fields{
		"encodings":  known.Len(),
		"identities": known.Distinct(),
	}).Info("Encode file loaded")

	students, err := openStudentStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to record store: %w", err)
	}
	defer students.Close()

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to blob store: %w", err)
	}

	resources, err := render.LoadResources(cfg.Paths.Resources)
	if err != nil {
		return fmt.Errorf("failed to load UI resources: %w", err)
	}

	detector, err := openDetector(cfg)
	if err != nil {
		return fmt.Errorf("failed to start face detector: %w", err)
	}
	defer detector.Close()

	source, err := openFrameSource(cfg)
	if err != nil {
		return err
	}

	surf, err := openSurface(cfg, log)
	if err != nil {
		source.Close()
		return fmt.Errorf("failed to open render surface: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.WithField("signal", sig.String()).Info("Shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	cache := attendance.NewCache()
	worker := attendance.NewWorker(students, blobs, cache, log, attendance.WorkerConfig{
		Cooldown:  cfg.Attendance.Cooldown,
		ImageExts: cfg.Blob.ImageExts,
	})
	dispatcher := attendance.NewDispatcher(ctx, worker, cfg.Attendance.WorkerTimeout, log)
	dispatcher.OnOutcome = func(o attendance.Outcome) {
		entry := log.WithFields(logrus.Fields{
			"student_id": o.ID,
			"epoch":      o.Epoch,
			"recorded":   o.Recorded,
			"cached":     o.Cached,
		})
		if o.Err != nil {
			entry.WithError(o.Err).Warn("Attendance worker failed")
			return
		}
		entry.Debug("Attendance worker finished")
	}

	loop := kiosk.New(cfg.Recognition, kiosk.Deps{
		Source:     source,
		Detector:   detector,
		Matcher:    facematch.NewMatcher(known, cfg.Recognition.Threshold),
		Machine:    display.NewMachine(cfg.Display, cache, dispatcher, log),
		Compositor: render.NewCompositor(resources),
		Surface:    surf,
		Log:        log,
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.WithError(err).Warn("Failed to notify systemd")
	} else if ok {
		log.Debug("Notified systemd")
	}

	runErr := loop.Run(ctx)

	daemon.SdNotify(false, daemon.SdNotifyStopping) //nolint:errcheck // best effort
	cancel()
	dispatcher.Wait()

	st := loop.Stats()
	log.WithFields(logrus.Fields{
		"frames":       st.Frames,
		"read_errors":  st.ReadErrors,
		"detect_fails": st.DetectFails,
		"cached":       cache.Len(),
	}).Info("Checkpoint stopped")

	return loopExitError(runErr, log)
}

// loopExitError maps the loop result to the command result. A recovered
// panic has already shut the checkpoint down, so it exits 0 like a quit.
func loopExitError(err error, log logrus.FieldLogger) error {
	if errors.Is(err, kiosk.ErrPanicked) {
		log.WithError(err).Error("Checkpoint shut down after a frame loop failure")
		return nil
	}
	return err
}

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/detect"
	"github.com/kozaktomas/face-attendance/internal/kiosk"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

func TestListEnrollImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"963852.jpg", "321654.PNG", "notes.txt", "852741.jpeg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	images, err := listEnrollImages(dir)
	if err != nil {
		t.Fatalf("listEnrollImages failed: %v", err)
	}

	want := []string{"321654", "852741", "963852"}
	if len(images) != len(want) {
		t.Fatalf("got %d images, want %d: %+v", len(images), len(want), images)
	}
	for i, id := range want {
		if images[i].ID != id {
			t.Errorf("images[%d].ID = %q, want %q", i, images[i].ID, id)
		}
	}
	if images[0].Name != "321654.PNG" {
		t.Errorf("file name must keep its extension, got %q", images[0].Name)
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.yaml")
	content := `
"321654":
  name: Murtaza Hassan
  major: Robotics
  Starting_year: 2017
  total_attendance: 7
  standing: G
  year: 4
  Last_attendance_time: "2022-12-11 00:54:34"
"852741":
  name: Emly Blunt
  major: Economics
  total_attendance: 12
  Last_attendance_time: ""
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	records, err := loadSeedFile(path)
	if err != nil {
		t.Fatalf("loadSeedFile failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	rec := records["321654"]
	if rec.Name != "Murtaza Hassan" || rec.StartingYear != 2017 || rec.LastAttendanceTime.Hour() != 0 || rec.LastAttendanceTime.Minute() != 54 {
		t.Errorf("unexpected record %+v", rec)
	}
	if !records["852741"].LastAttendanceTime.IsZero() {
		t.Error("empty time should decode to zero")
	}
}

func TestLoadSeedFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSeedFile(path); err == nil {
		t.Error("expected error for empty seed file")
	}
}

func newRunFlagsCommand() *cobra.Command {
	c := &cobra.Command{Use: "run"}
	c.Flags().String("camera", "", "")
	c.Flags().String("device", "", "")
	c.Flags().String("surface", "", "")
	c.Flags().Int("frame-skip", 0, "")
	c.Flags().Float64("threshold", 0, "")
	return c
}

func TestApplyRunFlags(t *testing.T) {
	c := newRunFlagsCommand()
	if err := c.Flags().Parse([]string{"--camera", "replay", "--device", "frames", "--frame-skip", "3"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	if err := applyRunFlags(c, cfg); err != nil {
		t.Fatalf("applyRunFlags failed: %v", err)
	}
	if cfg.Camera.Backend != "replay" || cfg.Camera.Device != "frames" || cfg.Recognition.FrameSkip != 3 {
		t.Errorf("flags not applied: %+v %+v", cfg.Camera, cfg.Recognition)
	}
	if cfg.Recognition.Threshold != 0.6 {
		t.Errorf("unset threshold flag must keep the config value, got %v", cfg.Recognition.Threshold)
	}
}

func TestApplyRunFlags_Invalid(t *testing.T) {
	c := newRunFlagsCommand()
	if err := c.Flags().Parse([]string{"--surface", "hologram"}); err != nil {
		t.Fatal(err)
	}
	if err := applyRunFlags(c, config.Default()); err == nil {
		t.Error("expected validation error")
	}
}

type oneFaceDetector struct{}

func (oneFaceDetector) Detect(ctx context.Context, img image.Image) ([]detect.Face, error) {
	return []detect.Face{{Box: img.Bounds(), Encoding: []float32{0.1, 0.2}}}, nil
}

func (oneFaceDetector) Close() error { return nil }

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEnrollBlobName(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{"png", "321654.png", "images/321654.png"},
		{"upper png", "321654.PNG", "images/321654.png"},
		{"jpg", "852741.jpg", "images/852741.jpg"},
		{"upper jpg", "852741.JPG", "images/852741.jpg"},
		{"jpeg", "963852.jpeg", "images/963852.jpg"},
		{"mixed jpeg", "963852.JpEg", "images/963852.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := enrollImage{ID: tt.file[:6], Name: tt.file}
			if got := enrollBlobName(im); got != tt.want {
				t.Errorf("enrollBlobName(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestEnrolledPhotosAreFoundByWorker(t *testing.T) {
	dir := t.TempDir()
	data := jpegBytes(t)
	for _, name := range []string{"X.jpeg", "Y.JPG"} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	images, err := listEnrollImages(dir)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	log := logging.Discard()
	blobs := mock.NewMockBlobStore()
	students := mock.NewMockStudentStore()
	for _, im := range images {
		enc, ok := enrollOne(ctx, im, oneFaceDetector{}, blobs, nil, log)
		if !ok || enc == nil {
			t.Fatalf("enrollOne(%s) = %v, %v", im.Name, enc, ok)
		}
		students.AddStudent(im.ID, database.StudentRecord{Name: im.ID})
	}

	worker := attendance.NewWorker(students, blobs, attendance.NewCache(), log, attendance.WorkerConfig{
		Cooldown:  300 * time.Second,
		ImageExts: config.Default().Blob.ImageExts,
	})
	for i, id := range []string{"X", "Y"} {
		out := worker.Run(ctx, attendance.Request{ID: id, Epoch: uint64(i + 1)})
		if out.Err != nil {
			t.Fatalf("Run(%s) failed: %v", id, out.Err)
		}
		if !out.HasImage {
			t.Errorf("Run(%s): reference image uploaded by enroll was not found, requested %v", id, blobs.Requested())
		}
	}
}

func TestLoopExitError(t *testing.T) {
	other := errors.New("surface gone")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"clean stop", nil, nil},
		{"recovered panic", fmt.Errorf("%w: %v", kiosk.ErrPanicked, "boom"), nil},
		{"other error", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loopExitError(tt.err, logging.Discard()); got != tt.want {
				t.Errorf("loopExitError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMustGet(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	c.Flags().Bool("dry-run", false, "")
	c.Flags().Int("frame-skip", 2, "")
	if err := c.Flags().Parse([]string{"--dry-run"}); err != nil {
		t.Fatal(err)
	}

	if !mustGetBool(c, "dry-run") {
		t.Error("dry-run should be true")
	}
	if got := mustGetInt(c, "frame-skip"); got != 2 {
		t.Errorf("frame-skip = %d, want default 2", got)
	}
	if flagChanged(c, "frame-skip") || !flagChanged(c, "dry-run") {
		t.Error("flagChanged must follow the parsed arguments")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for undeclared flag")
		}
	}()
	mustGetString(c, "missing")
}

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/blobstore"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/detect"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <images-dir>",
	Short: "Build the known encodings from reference photos",
	Long: `Encode one reference photo per student and write the encodings artifact.

Every .png, .jpg and .jpeg file in the directory is one student; the file
name without extension is the student id. The first face found in each
photo is encoded. Photos are uploaded to images/<id>.png or images/<id>.jpg
in the blob store unless --no-upload is given.

Examples:
  # Encode Images/ into encodings.json and upload the photos
  face-attendance enroll Images

  # Also store the encodings in PostgreSQL for "run --roster=postgres"
  face-attendance enroll Images --postgres`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().StringP("output", "o", "", "Artifact path (defaults to paths.encodings)")
	enrollCmd.Flags().Bool("no-upload", false, "Do not upload photos to the blob store")
	enrollCmd.Flags().Bool("postgres", false, "Also store the encodings in PostgreSQL")
}

// enrollImage is one reference photo.
type enrollImage struct {
	ID   string
	Name string
	Path string
}

func listEnrollImages(dir string) ([]enrollImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read images directory: %w", err)
	}

	var images []enrollImage
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".png" && ext != ".jpg" && ext != ".jpeg") {
			continue
		}
		images = append(images, enrollImage{
			ID:   strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	slices.SortFunc(images, func(a, b enrollImage) int { return strings.Compare(a.Name, b.Name) })
	return images, nil
}

// encodeImage returns the encoding of the first face in the photo, or nil if none was found.
func encodeImage(ctx context.Context, detector detect.Detector, data []byte) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	faces, err := detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}
	return faces[0].Encoding, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	output := mustGetString(cmd, "output")
	if output == "" {
		output = cfg.Paths.Encodings
	}

	images, err := listEnrollImages(args[0])
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no .png/.jpg/.jpeg files in %s", args[0])
	}

	detector, err := openDetector(cfg)
	if err != nil {
		return fmt.Errorf("failed to start face detector: %w", err)
	}
	defer detector.Close()

	var blobs database.BlobWriter
	if !mustGetBool(cmd, "no-upload") {
		if blobs, err = openBlobStore(ctx, cfg); err != nil {
			return fmt.Errorf("failed to connect to blob store: %w", err)
		}
	}

	var knownFaces database.KnownFaceWriter
	if mustGetBool(cmd, "postgres") {
		pool, err := postgres.Open(ctx, cfg.Store, log)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer pool.Close()
		knownFaces = postgres.NewKnownFaceRepository(pool)
	}

	fmt.Printf("Encoding %d photos from %s\n\n", len(images), args[0])

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Encoding faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var ids []string
	var encodings [][]float32
	var skipped, errorCount int

	for _, im := range images {
		entry := log.WithFields(logrus.Fields{"student_id": im.ID, "file": im.Name})

		enc, ok := enrollOne(ctx, im, detector, blobs, knownFaces, entry)
		switch {
		case !ok:
			errorCount++
		case enc == nil:
			skipped++
		default:
			ids = append(ids, im.ID)
			encodings = append(encodings, enc)
		}
		bar.Add(1)
	}
	fmt.Println()

	if len(encodings) == 0 {
		return roster.ErrEmptyRoster
	}

	set, err := roster.New(ids, encodings)
	if err != nil {
		return err
	}
	if err := roster.Save(output, set); err != nil {
		return err
	}

	fmt.Printf("\nCompleted: %d encoded, %d without a face, %d errors\n", len(ids), skipped, errorCount)
	fmt.Printf("Encodings written to %s\n", output)
	return nil
}

// enrollBlobName is the name the attendance worker looks the photo up by:
// images/{id}.{ext} with a lower-case extension and jpeg folded into jpg.
func enrollBlobName(im enrollImage) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(im.Name), "."))
	if ext == "jpeg" {
		ext = "jpg"
	}
	return attendance.ImagePath(im.ID, ext)
}

// enrollOne encodes and uploads a single photo. ok is false on errors;
// a nil encoding with ok means no face was found.
func enrollOne(
	ctx context.Context, im enrollImage, detector detect.Detector,
	blobs database.BlobWriter, knownFaces database.KnownFaceWriter, log logrus.FieldLogger,
) (enc []float32, ok bool) {
	data, err := os.ReadFile(im.Path)
	if err != nil {
		log.WithError(err).Error("Failed to read photo")
		return nil, false
	}

	enc, err = encodeImage(ctx, detector, data)
	if err != nil {
		log.WithError(err).Error("Failed to encode photo")
		return nil, false
	}
	if enc == nil {
		log.Warn("No face found, skipping")
		return nil, true
	}

	blobName := enrollBlobName(im)
	if blobs != nil {
		if err := blobs.Put(ctx, blobName, data, blobstore.ContentType(blobName)); err != nil {
			log.WithError(err).Error("Failed to upload photo")
			return nil, false
		}
	}

	if knownFaces != nil {
		face := database.KnownFace{StudentID: im.ID, Encoding: enc, Source: blobName}
		if err := knownFaces.SaveKnownFaces(ctx, im.ID, []database.KnownFace{face}); err != nil {
			log.WithError(err).Error("Failed to store encoding")
			return nil, false
		}
	}
	return enc, true
}

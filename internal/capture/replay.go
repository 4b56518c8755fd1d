package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
)

var replayExts = []string{".png", ".jpg", ".jpeg", ".bmp"}

// ReplaySource plays back a directory of still images in name order.
// It stands in for a camera in tests and on machines without one.
type ReplaySource struct {
	files []string
	next  int
	loop  bool
}

// NewReplaySource lists the images in dir. With loop set, playback restarts
// after the last frame; otherwise Read returns ErrExhausted.
func NewReplaySource(dir string, loop bool) (*ReplaySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open replay directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(replayExts, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images in replay directory %s", dir)
	}
	slices.Sort(files)

	return &ReplaySource{files: files, loop: loop}, nil
}

// Read decodes the next image.
func (s *ReplaySource) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.files) {
		if !s.loop {
			return nil, ErrExhausted
		}
		s.next = 0
	}

	path := s.files[s.next]
	s.next++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Len returns the number of frames in one pass.
func (s *ReplaySource) Len() int {
	return len(s.files)
}

func (s *ReplaySource) Close() error {
	return nil
}

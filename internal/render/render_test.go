package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/display"
)

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDisplayText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "Jan Novak"},
		{"AI & ML", "AI & ML"},
		{"李", "?"},
		{"tab\there", "tab?here"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := DisplayText(tt.input); got != tt.expected {
				t.Errorf("DisplayText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTextWidth(t *testing.T) {
	// basicfont.Face7x13 advances 7px per glyph.
	if got := TextWidth("abc"); got != 21 {
		t.Errorf("TextWidth = %d, want 21", got)
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}

func TestCompose_FeedPanelAndBox(t *testing.T) {
	res := Placeholders()
	c := NewCompositor(res)

	red := color.RGBA{R: 200, A: 255}
	frame := solid(640, 480, red)
	out := c.Compose(frame, display.View{Mode: display.Idle, Panel: display.PanelActive},
		[]image.Rectangle{image.Rect(100, 100, 200, 200)})

	if out.Bounds().Dx() != CanvasWidth || out.Bounds().Dy() != CanvasHeight {
		t.Fatalf("canvas = %v", out.Bounds())
	}
	// Inside the feed, away from the box.
	if got := out.At(FeedRect.Min.X+5, FeedRect.Min.Y+5); !sameColor(got, red) {
		t.Errorf("feed pixel = %v, want %v", got, red)
	}
	// Top-left corner of the box.
	if got := out.At(FeedRect.Min.X+100, FeedRect.Min.Y+100); !sameColor(got, boxColor) {
		t.Errorf("box pixel = %v, want %v", got, boxColor)
	}
	// Panel corner comes from the active placeholder.
	if got := out.At(PanelRect.Min.X, PanelRect.Min.Y); !sameColor(got, res.Panels[display.PanelActive].At(0, 0)) {
		t.Errorf("panel pixel = %v", got)
	}
}

func TestCompose_ScalesFeed(t *testing.T) {
	c := NewCompositor(Placeholders())
	green := color.RGBA{G: 180, A: 255}

	out := c.Compose(solid(320, 240, green), display.View{}, []image.Rectangle{image.Rect(10, 10, 20, 20)})
	if got := out.At(FeedRect.Max.X-3, FeedRect.Max.Y-3); !sameColor(got, green) {
		t.Errorf("scaled feed pixel = %v, want %v", got, green)
	}
	// Box scaled by 2 in both directions.
	if got := out.At(FeedRect.Min.X+20, FeedRect.Min.Y+20); !sameColor(got, boxColor) {
		t.Errorf("scaled box pixel = %v, want %v", got, boxColor)
	}
}

func TestCompose_Profile(t *testing.T) {
	res := Placeholders()
	c := NewCompositor(res)
	blue := color.RGBA{B: 220, A: 255}

	view := display.View{
		Mode:        display.ShowingProfile,
		Panel:       display.PanelProfile,
		StudentID:   "852741",
		ShowProfile: true,
		Entry: attendance.Entry{
			ID:     "852741",
			Record: database.StudentRecord{Name: "Emly Blunt", Major: "Economics", TotalAttendance: 12},
			Image:  solid(50, 50, blue),
		},
	}
	out := c.Compose(nil, view, nil)

	center := image.Pt(StudentRect.Min.X+StudentRect.Dx()/2, StudentRect.Min.Y+StudentRect.Dy()/2)
	if r, _, b, _ := out.At(center.X, center.Y).RGBA(); b>>8 < 200 || r>>8 > 20 {
		t.Errorf("student image pixel = %v, want close to %v", out.At(center.X, center.Y), blue)
	}

	// Some text was drawn in the attendance counter area.
	panelColor := res.Panels[display.PanelProfile].At(0, 0)
	found := false
	for x := totalAttendancePos.X; x < totalAttendancePos.X+20 && !found; x++ {
		for y := totalAttendancePos.Y - 12; y <= totalAttendancePos.Y; y++ {
			if !sameColor(out.At(x, y), panelColor) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("expected attendance count to be drawn")
	}
}

func TestCompose_LoadingTag(t *testing.T) {
	c := NewCompositor(Placeholders())
	out := c.Compose(solid(640, 480, color.Black), display.View{Mode: display.MatchedPending, Loading: true}, nil)

	if got := out.At(loadingPos.X-2, loadingPos.Y); !sameColor(got, tagColor) {
		t.Errorf("loading tag pixel = %v, want %v", got, tagColor)
	}
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadResources(t *testing.T) {
	dir := t.TempDir()
	modes := filepath.Join(dir, "Modes")
	if err := os.Mkdir(modes, 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "background.png"), image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight)))
	writePNG(t, filepath.Join(modes, "1.png"), solid(414, 633, color.White))
	writePNG(t, filepath.Join(modes, "2.png"), solid(10, 10, color.Black))
	writePNG(t, filepath.Join(modes, "3.png"), solid(414, 633, color.White))

	res, err := LoadResources(dir)
	if err != nil {
		t.Fatalf("LoadResources failed: %v", err)
	}
	if len(res.Panels) != 3 {
		t.Fatalf("panels = %d, want 3", len(res.Panels))
	}
	if res.Panels[1].Bounds().Size() != PanelRect.Size() {
		t.Errorf("panel 1 should be resized to %v, got %v", PanelRect.Size(), res.Panels[1].Bounds().Size())
	}
	// Missing already-marked panel falls back to the marked one.
	if res.Panel(int(display.PanelAlreadyMarked)) != res.Panels[2] {
		t.Error("expected fallback to last panel")
	}
}

func TestLoadResources_Errors(t *testing.T) {
	t.Run("missing background", func(t *testing.T) {
		if _, err := LoadResources(t.TempDir()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("too few panels", func(t *testing.T) {
		dir := t.TempDir()
		os.Mkdir(filepath.Join(dir, "Modes"), 0o755)
		writePNG(t, filepath.Join(dir, "background.png"), image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight)))
		writePNG(t, filepath.Join(dir, "Modes", "1.png"), solid(4, 4, color.White))
		if _, err := LoadResources(dir); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("background too small", func(t *testing.T) {
		dir := t.TempDir()
		writePNG(t, filepath.Join(dir, "background.png"), image.NewRGBA(image.Rect(0, 0, 100, 100)))
		if _, err := LoadResources(dir); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadResources_EmptyPathUsesPlaceholders(t *testing.T) {
	res, err := LoadResources("")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Panels) != 4 || res.Background.Bounds().Dx() != CanvasWidth {
		t.Errorf("unexpected placeholders: %d panels, bg %v", len(res.Panels), res.Background.Bounds())
	}
}

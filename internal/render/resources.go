package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Resources are the static images the checkpoint UI is built from.
type Resources struct {
	Background image.Image
	Panels     []image.Image // indexed by display.Panel
}

// LoadResources reads background.png and the Modes/ panel images from dir.
// An empty dir yields flat placeholder images.
func LoadResources(dir string) (*Resources, error) {
	if dir == "" {
		return Placeholders(), nil
	}

	bg, err := loadImage(filepath.Join(dir, "background.png"))
	if err != nil {
		return nil, fmt.Errorf("load background: %w", err)
	}
	if bg.Bounds().Dx() < PanelRect.Max.X || bg.Bounds().Dy() < FeedRect.Max.Y {
		return nil, fmt.Errorf("background is %v, need at least %dx%d",
			bg.Bounds().Size(), PanelRect.Max.X, FeedRect.Max.Y)
	}

	modesDir := filepath.Join(dir, "Modes")
	entries, err := os.ReadDir(modesDir)
	if err != nil {
		return nil, fmt.Errorf("read mode panels: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".png" || ext == ".jpg" || ext == ".jpeg") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	if len(names) < minPanels {
		return nil, fmt.Errorf("found %d mode panels in %s, need at least %d", len(names), modesDir, minPanels)
	}

	panels := make([]image.Image, 0, len(names))
	for _, name := range names {
		img, err := loadImage(filepath.Join(modesDir, name))
		if err != nil {
			return nil, fmt.Errorf("load mode panel: %w", err)
		}
		panels = append(panels, fit(img, PanelRect.Size()))
	}

	return &Resources{Background: bg, Panels: panels}, nil
}

// Placeholders returns flat-colored stand-ins for the UI images.
func Placeholders() *Resources {
	bg := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	draw.Draw(bg, bg.Bounds(), image.NewUniform(color.RGBA{R: 28, G: 32, B: 40, A: 255}), image.Point{}, draw.Src)

	tints := []color.RGBA{
		{R: 52, G: 120, B: 70, A: 255},   // active
		{R: 235, G: 235, B: 235, A: 255}, // profile
		{R: 40, G: 90, B: 160, A: 255},   // marked
		{R: 150, G: 90, B: 30, A: 255},   // already marked
	}
	labels := []string{"ACTIVE", "", "MARKED", "ALREADY MARKED"}

	panels := make([]image.Image, len(tints))
	for i, c := range tints {
		p := image.NewRGBA(image.Rectangle{Max: PanelRect.Size()})
		draw.Draw(p, p.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
		if labels[i] != "" {
			x := (p.Bounds().Dx() - TextWidth(labels[i])) / 2
			drawText(p, x, p.Bounds().Dy()/2, labels[i], color.White)
		}
		panels[i] = p
	}
	return &Resources{Background: bg, Panels: panels}
}

// Panel returns panel i, falling back to the closest lower index.
func (r *Resources) Panel(i int) image.Image {
	if len(r.Panels) == 0 {
		return nil
	}
	return r.Panels[min(max(i, 0), len(r.Panels)-1)]
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// fit scales img to exactly size unless it already matches.
func fit(img image.Image, size image.Point) image.Image {
	if img.Bounds().Size() == size {
		return img
	}
	dst := image.NewRGBA(image.Rectangle{Max: size})
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

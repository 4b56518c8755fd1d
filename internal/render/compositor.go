// Package render composites the checkpoint UI: camera feed, mode panel,
// face boxes and the recognized student's profile.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	xdraw "golang.org/x/image/draw"

	"github.com/kozaktomas/face-attendance/internal/display"
)

var (
	white     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	grey      = color.RGBA{R: 100, G: 100, B: 100, A: 255}
	darkGrey  = color.RGBA{R: 50, G: 50, B: 50, A: 255}
	boxColor  = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	tagColor  = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	boxStroke = 2
)

// Compositor draws frames onto a reusable canvas. It is owned by the frame
// loop and is not safe for concurrent use.
type Compositor struct {
	res    *Resources
	canvas *image.RGBA
}

// NewCompositor allocates a canvas the size of the background image.
func NewCompositor(res *Resources) *Compositor {
	return &Compositor{
		res:    res,
		canvas: image.NewRGBA(image.Rectangle{Max: res.Background.Bounds().Size()}),
	}
}

// Compose renders one frame. boxes are face boxes in frame coordinates.
// The returned image is reused by the next call.
func (c *Compositor) Compose(frame image.Image, v display.View, boxes []image.Rectangle) *image.RGBA {
	bg := c.res.Background
	draw.Draw(c.canvas, c.canvas.Bounds(), bg, bg.Bounds().Min, draw.Src)

	if frame != nil {
		c.drawFeed(frame)
		c.drawBoxes(frame.Bounds(), boxes)
	}

	if p := c.res.Panel(int(v.Panel)); p != nil {
		draw.Draw(c.canvas, PanelRect, p, p.Bounds().Min, draw.Src)
	}

	if v.Loading {
		c.drawTag("Loading", loadingPos)
	}
	if v.ShowProfile {
		c.drawProfile(v)
	}
	return c.canvas
}

func (c *Compositor) drawFeed(frame image.Image) {
	fb := frame.Bounds()
	if fb.Size() == FeedRect.Size() {
		draw.Draw(c.canvas, FeedRect, frame, fb.Min, draw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(c.canvas, FeedRect, frame, fb, xdraw.Src, nil)
}

// drawBoxes outlines faces, mapping frame coordinates into the feed area.
func (c *Compositor) drawBoxes(frameBounds image.Rectangle, boxes []image.Rectangle) {
	if frameBounds.Empty() {
		return
	}
	sx := float64(FeedRect.Dx()) / float64(frameBounds.Dx())
	sy := float64(FeedRect.Dy()) / float64(frameBounds.Dy())

	for _, b := range boxes {
		r := image.Rect(
			FeedRect.Min.X+int(float64(b.Min.X-frameBounds.Min.X)*sx),
			FeedRect.Min.Y+int(float64(b.Min.Y-frameBounds.Min.Y)*sy),
			FeedRect.Min.X+int(float64(b.Max.X-frameBounds.Min.X)*sx),
			FeedRect.Min.Y+int(float64(b.Max.Y-frameBounds.Min.Y)*sy),
		).Intersect(FeedRect)
		if r.Empty() {
			continue
		}
		strokeRect(c.canvas, r, boxStroke, boxColor)
	}
}

func (c *Compositor) drawTag(text string, at image.Point) {
	const pad = 6
	w := TextWidth(text)
	h := textFace.Metrics().Height.Ceil()
	bg := image.Rect(at.X-pad, at.Y-h-pad/2, at.X+w+pad, at.Y+pad)
	draw.Draw(c.canvas, bg, image.NewUniform(tagColor), image.Point{}, draw.Src)
	drawText(c.canvas, at.X, at.Y-pad/2, text, white)
}

func (c *Compositor) drawProfile(v display.View) {
	rec := v.Entry.Record

	drawText(c.canvas, totalAttendancePos.X, totalAttendancePos.Y, strconv.Itoa(rec.TotalAttendance), white)
	drawText(c.canvas, majorPos.X, majorPos.Y, rec.Major, white)
	drawText(c.canvas, idPos.X, idPos.Y, v.StudentID, white)
	drawText(c.canvas, standingPos.X, standingPos.Y, rec.Standing, grey)
	drawText(c.canvas, yearPos.X, yearPos.Y, strconv.Itoa(rec.Year), grey)
	drawText(c.canvas, startingYearPos.X, startingYearPos.Y, strconv.Itoa(rec.StartingYear), grey)

	offset := (PanelRect.Dx() - TextWidth(rec.Name)) / 2
	drawText(c.canvas, PanelRect.Min.X+max(offset, 0), nameBaseline, rec.Name, darkGrey)

	if img := v.Entry.Image; img != nil {
		xdraw.CatmullRom.Scale(c.canvas, StudentRect, img, img.Bounds(), xdraw.Src, nil)
	}
}

func strokeRect(dst *image.RGBA, r image.Rectangle, width int, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

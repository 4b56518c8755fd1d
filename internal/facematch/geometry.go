package facematch

import (
	"image"
	"math"
)

// UpscaleRect maps a box found on a frame downscaled by scale back to
// full-resolution coordinates. scale must be in (0, 1].
func UpscaleRect(r image.Rectangle, scale float64) image.Rectangle {
	if scale <= 0 || scale == 1 {
		return r
	}
	inv := 1 / scale
	return image.Rect(
		int(math.Round(float64(r.Min.X)*inv)),
		int(math.Round(float64(r.Min.Y)*inv)),
		int(math.Round(float64(r.Max.X)*inv)),
		int(math.Round(float64(r.Max.Y)*inv)),
	)
}

// ScaledSize returns the dimensions of a w x h frame after downscaling, never below 1x1.
func ScaledSize(w, h int, scale float64) (int, int) {
	sw := int(math.Round(float64(w) * scale))
	sh := int(math.Round(float64(h) * scale))
	return max(sw, 1), max(sh, 1)
}

// ClampRect limits r to bounds. The result may be empty if r lies outside.
func ClampRect(r, bounds image.Rectangle) image.Rectangle {
	return r.Canon().Intersect(bounds)
}

package facematch

import (
	"image"
	"testing"
)

func TestUpscaleRect(t *testing.T) {
	tests := []struct {
		name     string
		rect     image.Rectangle
		scale    float64
		expected image.Rectangle
	}{
		{
			name:     "quarter scale",
			rect:     image.Rect(10, 20, 30, 40),
			scale:    0.25,
			expected: image.Rect(40, 80, 120, 160),
		},
		{
			name:     "half scale",
			rect:     image.Rect(1, 1, 3, 5),
			scale:    0.5,
			expected: image.Rect(2, 2, 6, 10),
		},
		{
			name:     "full scale is identity",
			rect:     image.Rect(5, 6, 7, 8),
			scale:    1,
			expected: image.Rect(5, 6, 7, 8),
		},
		{
			name:     "invalid scale is identity",
			rect:     image.Rect(5, 6, 7, 8),
			scale:    0,
			expected: image.Rect(5, 6, 7, 8),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := UpscaleRect(tt.rect, tt.scale)
			if result != tt.expected {
				t.Errorf("UpscaleRect(%v, %v) = %v, want %v", tt.rect, tt.scale, result, tt.expected)
			}
		})
	}
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h   int
		scale  float64
		ew, eh int
	}{
		{640, 480, 0.25, 160, 120},
		{640, 480, 1, 640, 480},
		{2, 2, 0.1, 1, 1},
	}

	for _, tt := range tests {
		w, h := ScaledSize(tt.w, tt.h, tt.scale)
		if w != tt.ew || h != tt.eh {
			t.Errorf("ScaledSize(%d, %d, %v) = %dx%d, want %dx%d", tt.w, tt.h, tt.scale, w, h, tt.ew, tt.eh)
		}
	}
}

func TestClampRect(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)

	if got := ClampRect(image.Rect(-10, -10, 50, 50), bounds); got != image.Rect(0, 0, 50, 50) {
		t.Errorf("ClampRect partial = %v", got)
	}
	if got := ClampRect(image.Rect(700, 500, 800, 600), bounds); !got.Empty() {
		t.Errorf("ClampRect outside = %v, want empty", got)
	}
	if got := ClampRect(image.Rect(50, 50, 10, 10), bounds); got != image.Rect(10, 10, 50, 50) {
		t.Errorf("ClampRect should canonicalize, got %v", got)
	}
}

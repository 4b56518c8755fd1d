// Package surface defines where composited frames are shown.
package surface

import "image"

// Surface displays composited frames and reports quit requests.
type Surface interface {
	// Show presents img. The image may be reused by the caller after Show returns.
	Show(img image.Image) error
	// QuitRequested reports whether the operator asked to stop (quit key or equivalent).
	QuitRequested() bool
	Close() error
}

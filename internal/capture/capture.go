// Package capture provides frame sources for the checkpoint loop.
package capture

import (
	"context"
	"errors"
	"image"
)

// ErrExhausted is returned by finite sources once every frame was read.
var ErrExhausted = errors.New("frame source exhausted")

// FrameSource yields camera frames. Implementations are opened by their
// constructor, which fails if the device is unavailable.
type FrameSource interface {
	// Read returns the next frame. A failed read is not fatal; the caller
	// may retry on the next iteration.
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

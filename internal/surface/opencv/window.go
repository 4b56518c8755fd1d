// Package opencv shows frames in a desktop window through OpenCV.
package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const quitKey = 'q'

// Window is an OpenCV highgui window. Pressing q requests quit.
type Window struct {
	win  *gocv.Window
	quit bool
}

// NewWindow opens a window with the given title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show displays img and polls the keyboard once.
func (w *Window) Show(img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	w.win.IMShow(mat)
	if w.win.WaitKey(1)&0xFF == quitKey {
		w.quit = true
	}
	return nil
}

// QuitRequested reports whether q was pressed or the window was closed.
func (w *Window) QuitRequested() bool {
	return w.quit || !w.win.IsOpen()
}

// Close destroys the window.
func (w *Window) Close() error {
	if err := w.win.Close(); err != nil {
		return fmt.Errorf("close window: %w", err)
	}
	return nil
}

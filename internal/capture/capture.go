// Package capture provides the screen-capture primitive and region handling.
package capture

import (
	"image"

	"github.com/kbinani/screenshot"

	"github.com/snapsift/snapsift/internal/errors"
)

// Func is the capture primitive: invoked once per tick, it returns one
// raw frame synchronously or an error when the display is unavailable.
type Func func() (image.Image, error)

// Region describes the capture rectangle in display coordinates.
// The zero value is the full-screen sentinel.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FullScreen reports whether the region is the full-screen sentinel.
func (r Region) FullScreen() bool {
	return r.Width == 0 && r.Height == 0
}

// ClampTo fits the region into the display bounds: the origin is pulled
// inside the display and width/height shrink to what remains, never
// below one pixel. Out-of-range regions are corrected, not rejected.
func (r Region) ClampTo(display image.Rectangle) Region {
	w, h := display.Dx(), display.Dy()

	x := min(max(r.X, 0), w-1)
	y := min(max(r.Y, 0), h-1)
	width := min(max(r.Width, 1), w-x)
	height := min(max(r.Height, 1), h-y)

	return Region{X: x, Y: y, Width: width, Height: height}
}

// Screen returns a Func that captures the given region of the primary
// display. The region is re-clamped on every tick since display
// geometry can change mid-run.
func Screen(region Region) Func {
	return func() (image.Image, error) {
		if screenshot.NumActiveDisplays() <= 0 {
			return nil, errors.New(errors.CodeDisplayUnavailable, "no active display found")
		}

		display := screenshot.GetDisplayBounds(0)
		rect := display
		if !region.FullScreen() {
			c := region.ClampTo(display)
			rect = image.Rect(
				display.Min.X+c.X,
				display.Min.Y+c.Y,
				display.Min.X+c.X+c.Width,
				display.Min.Y+c.Y+c.Height,
			)
		}

		img, err := screenshot.CaptureRect(rect)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeCaptureFailed, "capture screen region")
		}
		return img, nil
	}
}

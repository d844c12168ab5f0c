package session

import (
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/snapsift/snapsift/internal/capture"
	"github.com/snapsift/snapsift/internal/errors"
)

// solid creates a uniform test image.
func solid(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

var palette = []color.RGBA{
	{R: 255, A: 255},                 // red
	{G: 255, A: 255},                 // green
	{B: 255, A: 255},                 // blue
	{R: 255, G: 255, B: 255, A: 255}, // white
	{A: 255},                         // black
}

// identicalCapture returns the same solid image every tick.
func identicalCapture() capture.Func {
	img := solid(color.RGBA{R: 128, G: 128, B: 128, A: 255})
	return func() (image.Image, error) { return img, nil }
}

// paletteCapture returns the palette colors in sequence, repeating.
func paletteCapture(colors []color.RGBA) capture.Func {
	i := 0
	return func() (image.Image, error) {
		img := solid(colors[i%len(colors)])
		i++
		return img, nil
	}
}

// stubFiles is an in-memory storage.Store with scriptable failures.
type stubFiles struct {
	mu      sync.Mutex
	written []string
	deleted []string
	failOn  string // substring of paths whose writes fail
}

func (f *stubFiles) EnsureDir(string) error { return nil }

func (f *stubFiles) WriteImage(path string, _ image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(path, f.failOn) {
		return errors.New(errors.CodePersistFailed, "stub write failure")
	}
	f.written = append(f.written, path)
	return nil
}

func (f *stubFiles) DeleteFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *stubFiles) writtenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

// recordingReporter captures every notification for assertions.
type recordingReporter struct {
	mu        sync.Mutex
	ticks     []State
	decisions []Decision
	result    *Result
}

func (r *recordingReporter) OnTick(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, s)
}

func (r *recordingReporter) OnDecision(_ Frame, d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
}

func (r *recordingReporter) OnSessionEnd(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = &res
}

func (r *recordingReporter) kinds() []DecisionKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]DecisionKind, len(r.decisions))
	for i, d := range r.decisions {
		kinds[i] = d.Kind
	}
	return kinds
}

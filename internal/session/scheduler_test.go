package session

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/snapsift/snapsift/internal/errors"
)

// testConfig is a short-cadence config used with the internal run
// entry point; the public Run enforces second-granularity bounds.
func testConfig(ticks int) Config {
	interval := 20 * time.Millisecond
	return Config{
		OutputDir: "out",
		Duration:  time.Duration(ticks) * interval,
		Interval:  interval,
		Threshold: 90,
	}
}

func TestCadenceExactTickCount(t *testing.T) {
	// A capture that overruns the interval must not cause skipped
	// ticks: attempts stay at ceil(duration/interval).
	slow := func() (image.Image, error) {
		time.Sleep(50 * time.Millisecond)
		return solid(color.RGBA{R: 128, G: 128, B: 128, A: 255}), nil
	}
	rep := &recordingReporter{}
	r := NewRunner(testConfig(5), slow, &stubFiles{}, rep)

	res := r.run(context.Background())

	if res.Status != Completed {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if got := r.State().Attempted; got != 5 {
		t.Errorf("attempted = %d, want 5", got)
	}
	if res.FramesCaptured != 5 {
		t.Errorf("captured = %d, want 5", res.FramesCaptured)
	}
}

func TestScenarioAIdenticalFrames(t *testing.T) {
	// Identical solid-color frames every tick: first kept, rest
	// discarded as duplicates.
	rep := &recordingReporter{}
	files := &stubFiles{}
	r := NewRunner(testConfig(5), identicalCapture(), files, rep)

	res := r.run(context.Background())

	if res.Status != Completed {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if res.FramesCaptured != 5 || res.FramesKept != 1 || res.FramesDiscarded != 4 {
		t.Errorf("captured/kept/discarded = %d/%d/%d, want 5/1/4",
			res.FramesCaptured, res.FramesKept, res.FramesDiscarded)
	}
	if files.writtenCount() != 1 {
		t.Errorf("files written = %d, want 1", files.writtenCount())
	}
}

func TestScenarioBDistinctFrames(t *testing.T) {
	rep := &recordingReporter{}
	r := NewRunner(testConfig(5), paletteCapture(palette), &stubFiles{}, rep)

	res := r.run(context.Background())

	if res.Status != Completed {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if res.FramesKept != 5 || res.FramesDiscarded != 0 {
		t.Errorf("kept/discarded = %d/%d, want 5/0", res.FramesKept, res.FramesDiscarded)
	}
}

func TestCapturedInvariantAtSessionEnd(t *testing.T) {
	// Mixed duplicates and originals; captured == kept + discarded.
	colors := []color.RGBA{palette[0], palette[0], palette[1], palette[1], palette[2]}
	rep := &recordingReporter{}
	r := NewRunner(testConfig(5), paletteCapture(colors), &stubFiles{}, rep)

	res := r.run(context.Background())

	if res.FramesCaptured != res.FramesKept+res.FramesDiscarded {
		t.Errorf("captured %d != kept %d + discarded %d",
			res.FramesCaptured, res.FramesKept, res.FramesDiscarded)
	}
	if rep.result == nil {
		t.Fatal("OnSessionEnd not called")
	}
	if rep.result.FramesCaptured != res.FramesCaptured ||
		rep.result.FramesKept != res.FramesKept ||
		rep.result.FramesDiscarded != res.FramesDiscarded {
		t.Error("reporter result should match returned result")
	}
}

func TestDecisionDeterminism(t *testing.T) {
	colors := []color.RGBA{palette[0], palette[0], palette[1], palette[2], palette[1]}

	runOnce := func() []DecisionKind {
		rep := &recordingReporter{}
		r := NewRunner(testConfig(5), paletteCapture(colors), &stubFiles{}, rep)
		if res := r.run(context.Background()); res.Status != Completed {
			t.Fatalf("status = %v, want Completed", res.Status)
		}
		return rep.kinds()
	}

	first := runOnce()
	second := runOnce()
	if len(first) != len(second) {
		t.Fatalf("decision counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("decision %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestCancellationAfterTwoTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cap := func() (image.Image, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return solid(palette[calls%len(palette)]), nil
	}

	r := NewRunner(testConfig(5), cap, &stubFiles{}, nil)
	res := r.run(ctx)

	if res.Status != Cancelled {
		t.Fatalf("status = %v, want Cancelled", res.Status)
	}
	if res.FramesCaptured != 2 {
		t.Errorf("captured = %d, want 2", res.FramesCaptured)
	}
	if res.FramesCaptured != res.FramesKept+res.FramesDiscarded {
		t.Error("invariant violated after cancellation")
	}
}

func TestPersistenceFailureDoesNotRegister(t *testing.T) {
	// Tick 3's write fails; the frame is not registered, so tick 4's
	// identical frame is written fresh instead of matching a ghost
	// record. The run still completes.
	colors := []color.RGBA{palette[0], palette[1], palette[2], palette[2]}
	files := &stubFiles{failOn: "screenshot_000003"}
	rep := &recordingReporter{}
	r := NewRunner(testConfig(4), paletteCapture(colors), files, rep)

	res := r.run(context.Background())

	if res.Status != Completed {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(res.Errors))
	}
	if !errors.IsCode(res.Errors[0].Err, errors.CodePersistFailed) {
		t.Errorf("error code = %v, want CodePersistFailed", errors.CodeOf(res.Errors[0].Err))
	}
	if res.FramesKept != 3 {
		t.Errorf("kept = %d, want 3 (failed frame retried by its twin)", res.FramesKept)
	}
	if res.FramesCaptured != res.FramesKept+res.FramesDiscarded {
		t.Error("invariant violated with persistence failure")
	}
}

func TestConsecutiveCaptureFailuresAbort(t *testing.T) {
	failing := func() (image.Image, error) {
		return nil, errors.New(errors.CodeCaptureFailed, "display gone")
	}
	r := NewRunner(testConfig(10), failing, &stubFiles{}, nil)

	res := r.run(context.Background())

	if res.Status != Failed {
		t.Fatalf("status = %v, want Failed", res.Status)
	}
	if got := r.State().Attempted; got != MaxConsecutiveCaptureFailures {
		t.Errorf("attempted = %d, want %d", got, MaxConsecutiveCaptureFailures)
	}
	if len(res.Errors) != MaxConsecutiveCaptureFailures {
		t.Errorf("errors = %d, want %d", len(res.Errors), MaxConsecutiveCaptureFailures)
	}
}

func TestAllTicksFailedIsFailed(t *testing.T) {
	// Too short for the streak bound, but zero useful output.
	failing := func() (image.Image, error) {
		return nil, errors.New(errors.CodeCaptureFailed, "display gone")
	}
	r := NewRunner(testConfig(2), failing, &stubFiles{}, nil)

	if res := r.run(context.Background()); res.Status != Failed {
		t.Errorf("status = %v, want Failed", res.Status)
	}
}

func TestTransientCaptureFailureRecovers(t *testing.T) {
	calls := 0
	flaky := func() (image.Image, error) {
		calls++
		if calls == 2 {
			return nil, errors.New(errors.CodeCaptureFailed, "transient")
		}
		return solid(palette[calls%len(palette)]), nil
	}
	r := NewRunner(testConfig(4), flaky, &stubFiles{}, nil)

	res := r.run(context.Background())

	if res.Status != Completed {
		t.Fatalf("status = %v, want Completed", res.Status)
	}
	if res.FramesCaptured != 3 {
		t.Errorf("captured = %d, want 3", res.FramesCaptured)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(res.Errors))
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(5)
	cfg.Interval = 10 * time.Millisecond // below the 1s public bound
	rep := &recordingReporter{}
	r := NewRunner(cfg, identicalCapture(), &stubFiles{}, rep)

	res := r.Run(context.Background())

	if res.Status != Failed {
		t.Fatalf("status = %v, want Failed", res.Status)
	}
	if len(res.Errors) != 1 || !errors.IsCode(res.Errors[0].Err, errors.CodeConfigInvalid) {
		t.Error("want a single CodeConfigInvalid error")
	}
	if rep.result == nil {
		t.Error("OnSessionEnd should fire even for rejected configs")
	}
	if r.State().Attempted != 0 {
		t.Error("no capture may occur before validation passes")
	}
}

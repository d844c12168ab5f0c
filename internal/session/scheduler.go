package session

import (
	"context"
	"sync"
	"time"

	"github.com/snapsift/snapsift/internal/capture"
	"github.com/snapsift/snapsift/internal/errors"
	"github.com/snapsift/snapsift/internal/retention"
	"github.com/snapsift/snapsift/internal/similarity"
	"github.com/snapsift/snapsift/internal/storage"
	"github.com/snapsift/snapsift/internal/syncx"
	"github.com/snapsift/snapsift/internal/trace"
)

// Runner drives one capture session: a fixed-cadence capture loop
// feeding a single pipeline worker over a bounded queue. The single
// worker preserves sequence order, so earlier captures always reach
// the retention store first.
type Runner struct {
	cfg      Config
	capture  capture.Func
	files    storage.Store
	reporter Reporter
	state    *syncx.Guard[State]
}

// NewRunner creates a runner. A nil reporter is replaced with a no-op.
func NewRunner(cfg Config, capFn capture.Func, files storage.Store, reporter Reporter) *Runner {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Runner{
		cfg:      cfg,
		capture:  capFn,
		files:    files,
		reporter: reporter,
		state:    syncx.NewGuard(State{Status: Running}),
	}
}

// State returns a snapshot of the run's progress.
func (r *Runner) State() State {
	return r.state.Get()
}

// Run validates the configuration, prepares the output directory, and
// executes the session until the planned ticks are exhausted, the
// context is cancelled, or a fatal failure occurs. It always returns a
// Result and always notifies the reporter's OnSessionEnd.
func (r *Runner) Run(ctx context.Context) Result {
	if err := r.cfg.Validate(); err != nil {
		trace.Logger(ctx).Error("session config rejected", "error", err)
		return r.fail(err)
	}
	if err := r.files.EnsureDir(r.cfg.OutputDir); err != nil {
		trace.Logger(ctx).Error("output dir unavailable", "error", err)
		return r.fail(err)
	}
	return r.run(ctx)
}

// run is the validated session loop.
func (r *Runner) run(ctx context.Context) Result {
	ctx, span := trace.StartSpan(ctx, "session_run")
	defer span.End()
	log := trace.Logger(ctx)

	judge := similarity.NewJudge(r.cfg.Policy, &similarity.Structural{}, &similarity.Histogram{})
	store := retention.NewStore(judge, r.files, retention.Options{
		MaxRecords:    r.cfg.MaxRecords,
		HashPrefilter: r.cfg.HashPrefilter,
	})
	pipeline := NewPipeline(store, r.files, r.cfg.OutputDir, r.cfg.Threshold)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu              sync.Mutex
		tickErrs        []TickError
		invariantBroken bool
	)
	recordErr := func(tick int, err error) {
		mu.Lock()
		tickErrs = append(tickErrs, TickError{Tick: tick, Err: err})
		mu.Unlock()
	}

	frames := make(chan Frame, FrameQueueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for frame := range frames {
			d := pipeline.Process(frame)
			r.state.Update(func(s *State) {
				if d.Kind == Kept {
					s.Kept++
				} else {
					s.Discarded++
				}
			})
			if d.Err != nil {
				recordErr(int(frame.Seq), d.Err)
				if errors.IsCode(d.Err, errors.CodeInternal) {
					mu.Lock()
					invariantBroken = true
					mu.Unlock()
					cancel()
				} else {
					log.Warn("frame not persisted", "seq", frame.Seq, "error", d.Err)
				}
			}
			r.reporter.OnDecision(frame, d)
		}
	}()

	planned := r.cfg.PlannedTicks()
	span.SetAttr("planned_ticks", planned)
	start := time.Now()

	var (
		seq         uint64
		consecFails int
		cancelled   bool
		failed      bool
	)

loop:
	for tick := 1; tick <= planned; tick++ {
		if runCtx.Err() != nil {
			cancelled = true
			break loop
		}
		tickStart := time.Now()

		img, err := r.capture()
		r.state.Update(func(s *State) {
			s.Attempted++
			s.Elapsed = time.Since(start)
		})

		if err != nil {
			if errors.CodeOf(err) == errors.CodeUnknown {
				err = errors.Wrap(err, errors.CodeCaptureFailed, "capture tick failed")
			}
			recordErr(tick, err)
			log.Warn("capture failed", "tick", tick, "error", err)
			consecFails++
			if consecFails >= MaxConsecutiveCaptureFailures {
				failed = true
				break loop
			}
		} else {
			consecFails = 0
			seq++
			r.state.Update(func(s *State) { s.Captured++ })
			frame := Frame{Seq: seq, Time: time.Now(), Image: img}

			// Blocking hand-off: a full queue delays the cadence
			// instead of dropping the frame. A captured frame is
			// always decided, even when cancellation lands here.
			select {
			case frames <- frame:
			case <-runCtx.Done():
				frames <- frame
				cancelled = true
			}
			if cancelled {
				r.reporter.OnTick(r.state.Get())
				break loop
			}
		}

		r.reporter.OnTick(r.state.Get())

		if tick == planned {
			break
		}
		// Next tick targets tickStart + interval. Overruns fire the
		// next tick immediately rather than compounding drift.
		if wait := time.Until(tickStart.Add(r.cfg.Interval)); wait > 0 {
			select {
			case <-runCtx.Done():
				cancelled = true
				break loop
			case <-time.After(wait):
			}
		}
	}

	close(frames)
	wg.Wait()

	mu.Lock()
	errs := tickErrs
	broken := invariantBroken
	mu.Unlock()

	st := r.state.Get()
	status := Completed
	switch {
	case broken || failed:
		status = Failed
	case cancelled:
		status = Cancelled
	case st.Captured == 0 && st.Attempted > 0:
		// Every attempt in the run failed: no useful output.
		status = Failed
	}

	r.state.Update(func(s *State) {
		s.Status = status
		s.Elapsed = time.Since(start)
	})

	result := Result{
		Status:          status,
		FramesCaptured:  st.Captured,
		FramesKept:      st.Kept,
		FramesDiscarded: st.Discarded,
		Errors:          errs,
	}

	span.SetAttr("status", status.String())
	span.SetAttr("kept", result.FramesKept)
	log.Info("session finished",
		"status", status.String(),
		"captured", result.FramesCaptured,
		"kept", result.FramesKept,
		"discarded", result.FramesDiscarded,
		"errors", len(errs),
	)
	r.reporter.OnSessionEnd(result)
	return result
}

// fail reports a run that never started capturing.
func (r *Runner) fail(err error) Result {
	r.state.Update(func(s *State) { s.Status = Failed })
	result := Result{Status: Failed, Errors: []TickError{{Tick: 0, Err: err}}}
	r.reporter.OnSessionEnd(result)
	return result
}

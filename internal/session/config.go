// Package session drives capture scheduling and duplicate retention
// for one bounded run.
package session

import (
	"time"

	"github.com/snapsift/snapsift/internal/capture"
	"github.com/snapsift/snapsift/internal/errors"
	"github.com/snapsift/snapsift/internal/similarity"
)

// Config bounds for validation.
const (
	MinDuration  = 1 * time.Second
	MaxDuration  = 3600 * time.Second
	MinInterval  = 1 * time.Second
	MaxInterval  = 60 * time.Second
	MinThreshold = 50.0
	MaxThreshold = 99.0
)

// Config is the immutable per-run configuration. Validated once at
// session start; a run never begins with a rejected config.
type Config struct {
	// OutputDir receives the kept frames.
	OutputDir string `json:"output_dir"`

	// Region is the capture rectangle; the zero value captures the
	// full primary display.
	Region capture.Region `json:"region"`

	// Duration is the total run length.
	Duration time.Duration `json:"duration"`

	// Interval is the capture cadence.
	Interval time.Duration `json:"interval"`

	// Threshold is the duplicate similarity threshold in percent,
	// inclusive: a frame scoring exactly Threshold is a duplicate.
	Threshold float64 `json:"threshold"`

	// Policy selects how the structural and distribution measures
	// combine; the default disjunctive policy treats either kind of
	// similarity as sufficient.
	Policy similarity.Policy `json:"-"`

	// MaxRecords bounds retained records (0 = unbounded).
	MaxRecords int `json:"max_records"`

	// HashPrefilter enables the cheap perception-hash first pass in
	// the retention store.
	HashPrefilter bool `json:"hash_prefilter"`
}

// Validate rejects out-of-range fields with a descriptive error.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New(errors.CodeConfigInvalid, "output_dir must not be empty")
	}
	if c.Duration < MinDuration || c.Duration > MaxDuration {
		return errors.Newf(errors.CodeConfigInvalid,
			"duration %s out of range [%s, %s]", c.Duration, MinDuration, MaxDuration)
	}
	if c.Interval < MinInterval || c.Interval > MaxInterval {
		return errors.Newf(errors.CodeConfigInvalid,
			"interval %s out of range [%s, %s]", c.Interval, MinInterval, MaxInterval)
	}
	if c.Threshold < MinThreshold || c.Threshold > MaxThreshold {
		return errors.Newf(errors.CodeConfigInvalid,
			"threshold %.1f out of range [%.0f, %.0f]", c.Threshold, MinThreshold, MaxThreshold)
	}
	if !c.Region.FullScreen() && (c.Region.Width <= 0 || c.Region.Height <= 0) {
		return errors.Newf(errors.CodeConfigInvalid,
			"region %dx%d must have positive dimensions", c.Region.Width, c.Region.Height)
	}
	if c.MaxRecords < 0 {
		return errors.Newf(errors.CodeConfigInvalid, "max_records %d must not be negative", c.MaxRecords)
	}
	return nil
}

// PlannedTicks returns the number of capture attempts for the run.
func (c Config) PlannedTicks() int {
	return int((c.Duration + c.Interval - 1) / c.Interval)
}

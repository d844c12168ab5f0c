// Package similarity scores pairs of images for near-duplicate detection.
package similarity

import (
	"image"

	"github.com/nfnt/resize"
)

// Scorer computes a similarity score for two images in [0,1],
// where 1 means identical for the purposes of deduplication.
// Scoring is a pure function of the two image buffers.
type Scorer interface {
	Score(ref, candidate image.Image) float64
	Name() string
}

// Policy decides how multiple scorers combine into one duplicate verdict.
type Policy int

const (
	// MatchAny treats a frame as a duplicate when any scorer meets the
	// threshold. Either kind of similarity is sufficient.
	MatchAny Policy = iota

	// MatchAll requires every scorer to meet the threshold.
	MatchAll
)

// String returns the policy name used in configuration.
func (p Policy) String() string {
	if p == MatchAll {
		return "all"
	}
	return "any"
}

// ParsePolicy maps a config string to a Policy, defaulting to MatchAny.
func ParsePolicy(s string) Policy {
	if s == "all" {
		return MatchAll
	}
	return MatchAny
}

// Judge combines scorers under an explicit policy. The zero value is
// not usable; construct with NewJudge or DefaultJudge.
type Judge struct {
	scorers []Scorer
	policy  Policy
}

// NewJudge creates a judge over the given scorers.
func NewJudge(policy Policy, scorers ...Scorer) Judge {
	return Judge{scorers: scorers, policy: policy}
}

// DefaultJudge combines the structural and distribution measures
// disjunctively: either kind of similarity marks a duplicate.
func DefaultJudge() Judge {
	return NewJudge(MatchAny, &Structural{}, &Histogram{})
}

// Match reports whether candidate duplicates ref at the given threshold
// (a percentage, inclusive: a score exactly at the threshold counts).
// The returned score is the one that decided the verdict: the highest
// under MatchAny, the lowest under MatchAll.
func (j Judge) Match(ref, candidate image.Image, thresholdPct float64) (float64, bool) {
	if len(j.scorers) == 0 {
		return 0, false
	}

	decisive := j.scorers[0].Score(ref, candidate)
	for _, s := range j.scorers[1:] {
		score := s.Score(ref, candidate)
		if j.policy == MatchAll {
			if score < decisive {
				decisive = score
			}
		} else if score > decisive {
			decisive = score
		}
	}
	return decisive, decisive*100 >= thresholdPct
}

// normalizeTo resizes img to ref's dimensions when they differ.
// Lossy by design: the candidate is brought to the kept record's
// geometry before structural comparison.
func normalizeTo(ref, img image.Image) image.Image {
	rb, ib := ref.Bounds(), img.Bounds()
	if rb.Dx() == ib.Dx() && rb.Dy() == ib.Dy() {
		return img
	}
	return resize.Resize(uint(rb.Dx()), uint(rb.Dy()), img, resize.Bilinear)
}

// luma converts 16-bit RGBA components to 8-bit luminance.
func luma(r, g, b uint32) float64 {
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

// clamp01 bounds a score to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

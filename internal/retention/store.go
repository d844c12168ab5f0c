// Package retention tracks kept frames for duplicate queries.
package retention

import (
	"image"
	"log/slog"
	"sync"

	"github.com/corona10/goimagehash"

	"github.com/snapsift/snapsift/internal/errors"
	"github.com/snapsift/snapsift/internal/similarity"
)

// Record represents one kept frame: its identity, the persisted file
// path, and the comparison representation for future frames.
// Never mutated after insertion.
type Record struct {
	Seq   uint64
	Path  string
	Image image.Image

	// phash is the cheap first-pass representation, nil when the
	// prefilter is disabled or the hash could not be computed.
	phash *goimagehash.ImageHash
}

// Deleter removes an evicted record's file. Satisfied by storage.Store.
type Deleter interface {
	DeleteFile(path string) error
}

// Options configure store capacity and the first-pass filter.
type Options struct {
	// MaxRecords bounds the number of retained records; inserting past
	// capacity evicts the oldest record and deletes its file.
	// 0 means unbounded.
	MaxRecords int

	// HashPrefilter enables the perception-hash first pass. Disabling
	// it makes FindSimilar run the full scorers against every record,
	// which is the exact single-scorer fallback behavior.
	HashPrefilter bool

	// MaxHashDistance overrides DefaultMaxHashDistance when positive.
	MaxHashDistance int
}

// Store is the in-memory registry of kept frames. Mutated by exactly
// one logical actor at a time: the pipeline worker owns all writes,
// the mutex covers diagnostic reads from other goroutines.
type Store struct {
	mu      sync.Mutex
	judge   similarity.Judge
	files   Deleter
	opts    Options
	records []*Record
	seen    map[uint64]struct{}
}

// NewStore creates an empty retention store.
func NewStore(judge similarity.Judge, files Deleter, opts Options) *Store {
	if opts.MaxHashDistance <= 0 {
		opts.MaxHashDistance = DefaultMaxHashDistance
	}
	return &Store{
		judge: judge,
		files: files,
		opts:  opts,
		seen:  make(map[uint64]struct{}),
	}
}

// FindSimilar scans kept records in insertion order and returns the
// first record whose similarity to candidate meets or exceeds the
// threshold (a percentage, inclusive). Earlier captures win ties, so
// the earliest kept frame stays the canonical copy.
func (s *Store) FindSimilar(candidate image.Image, thresholdPct float64) (*Record, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candHash *goimagehash.ImageHash
	if s.opts.HashPrefilter {
		candHash, _ = goimagehash.PerceptionHash(candidate)
	}

	for _, rec := range s.records {
		if candHash != nil && rec.phash != nil {
			if dist, err := rec.phash.Distance(candHash); err == nil && dist > s.opts.MaxHashDistance {
				continue
			}
		}
		if score, ok := s.judge.Match(rec.Image, candidate, thresholdPct); ok {
			return rec, score, true
		}
	}
	return nil, 0, false
}

// Insert adds a kept record. A duplicate sequence number indicates a
// scheduling bug, not an environmental condition, and is returned as
// an internal invariant error.
func (s *Store) Insert(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[rec.Seq]; dup {
		return errors.Newf(errors.CodeInternal, "duplicate retention record seq %d", rec.Seq)
	}

	if s.opts.HashPrefilter {
		rec.phash, _ = goimagehash.PerceptionHash(rec.Image)
	}

	if s.opts.MaxRecords > 0 && len(s.records) >= s.opts.MaxRecords {
		s.evictOldestLocked()
	}

	s.records = append(s.records, rec)
	s.seen[rec.Seq] = struct{}{}
	return nil
}

// evictOldestLocked drops the oldest record and deletes its file.
func (s *Store) evictOldestLocked() {
	// The seq stays in seen: an evicted record is never resurrected.
	oldest := s.records[0]
	s.records = s.records[1:]

	if s.files != nil && oldest.Path != "" {
		if err := s.files.DeleteFile(oldest.Path); err != nil {
			slog.Warn("evicted record file not deleted", "path", oldest.Path, "error", err)
		}
	}
}

// Len returns the number of retained records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

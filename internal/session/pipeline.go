package session

import (
	"path/filepath"

	"github.com/snapsift/snapsift/internal/retention"
	"github.com/snapsift/snapsift/internal/storage"
)

// Pipeline decides keep-or-discard for each incoming frame. It is
// driven by a single worker, which makes it the sole writer of the
// retention store.
type Pipeline struct {
	store     *retention.Store
	files     storage.Store
	dir       string
	threshold float64
}

// NewPipeline creates a dedup pipeline over the given store.
func NewPipeline(store *retention.Store, files storage.Store, dir string, thresholdPct float64) *Pipeline {
	return &Pipeline{store: store, files: files, dir: dir, threshold: thresholdPct}
}

// Process runs one frame through dedup. Write-then-register ordering:
// a record enters the store only after its file write succeeded, so a
// failed write never corrupts retention state and the frame can be
// retried conceptually by a later similar capture.
func (p *Pipeline) Process(frame Frame) Decision {
	if rec, score, ok := p.store.FindSimilar(frame.Image, p.threshold); ok {
		return Decision{Kind: Discarded, MatchSeq: rec.Seq, Score: score}
	}

	path := filepath.Join(p.dir, storage.FileName(frame.Seq, frame.Time))
	if err := p.files.WriteImage(path, frame.Image); err != nil {
		return Decision{Kind: Discarded, Err: err}
	}

	rec := &retention.Record{Seq: frame.Seq, Path: path, Image: frame.Image}
	if err := p.store.Insert(rec); err != nil {
		// Duplicate sequence number: a scheduling bug, surfaced to the
		// runner which aborts the session.
		return Decision{Kind: Discarded, Err: err}
	}
	return Decision{Kind: Kept, Path: path}
}

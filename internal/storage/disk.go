// Package storage persists kept frames to the filesystem.
package storage

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/snapsift/snapsift/internal/errors"
)

// Store is the filesystem surface the dedup pipeline depends on.
// Failures are surfaced, never silently swallowed.
type Store interface {
	EnsureDir(path string) error
	WriteImage(path string, img image.Image) error
	DeleteFile(path string) error
}

// Disk implements Store with PNG files on the local filesystem.
type Disk struct{}

// EnsureDir creates the output directory if missing.
func (Disk) EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.Wrapf(err, errors.CodePersistFailed, "create output dir %s", path)
	}
	return nil
}

// WriteImage encodes img as PNG at path. A partial file left by a
// failed encode is removed so the output set never holds torn images.
func (Disk) WriteImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.CodePersistFailed, "create %s", path)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return errors.Wrapf(err, errors.CodePersistFailed, "encode %s", path)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return errors.Wrapf(err, errors.CodePersistFailed, "close %s", path)
	}
	return nil
}

// DeleteFile removes an evicted frame's file.
func (Disk) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, errors.CodePersistFailed, "delete %s", path)
	}
	return nil
}

// FileName returns the deterministic output name for a kept frame.
// The sequence number makes names collision-free within a run even
// when two frames share a millisecond timestamp.
func FileName(seq uint64, ts time.Time) string {
	return fmt.Sprintf("screenshot_%06d_%s.png", seq, ts.Format("20060102_150405.000"))
}

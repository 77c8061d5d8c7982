package transcript

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/catalog"
	"scribe/internal/pipeline"
)

// tempPattern names in-progress commits. The leading dot keeps partial
// output invisible to discovery; SweepTemp removes leftovers after a crash.
const (
	tempPrefix  = ".scribe-"
	tempSuffix  = ".tmp"
	tempPattern = tempPrefix + "*" + tempSuffix
)

// Writer commits transcript content atomically next to the media file.
type Writer struct {
	artifacts *Artifacts
}

// NewWriter returns a writer committing through the given artifact mapper.
func NewWriter(artifacts *Artifacts) *Writer {
	return &Writer{artifacts: artifacts}
}

// Commit writes content to the media file's transcript sidecar. The content
// lands in a temp file in the destination directory, is synced and stamped
// with the source fingerprint's modification time, then renamed into place.
// Observers never see a partial transcript. Returns the committed path.
func (w *Writer) Commit(mediaPath, content string, fp catalog.Fingerprint) (string, error) {
	target := w.artifacts.Path(mediaPath)
	dir := filepath.Dir(target)

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return "", pipeline.Wrap(pipeline.ErrCommit, "commit", "create temp file", "", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.WriteString(content); err != nil {
		cleanup()
		return "", pipeline.Wrap(pipeline.ErrCommit, "commit", "write transcript", "", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", pipeline.Wrap(pipeline.ErrCommit, "commit", "sync transcript", "", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", pipeline.Wrap(pipeline.ErrCommit, "commit", "close temp file", "", err)
	}
	if err := os.Chtimes(tmpPath, fp.ModTime, fp.ModTime); err != nil {
		_ = os.Remove(tmpPath)
		return "", pipeline.Wrap(pipeline.ErrCommit, "commit", "stamp transcript", "", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", pipeline.Wrap(pipeline.ErrCommit, "commit", "rename transcript", "", err)
	}
	return target, nil
}

// SweepTemp removes abandoned temp files under root left behind by an
// interrupted commit. Returns the number of files removed. Unreadable
// directories are skipped rather than aborting the sweep.
func SweepTemp(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if !strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, tempSuffix) {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, pipeline.Wrap(pipeline.ErrCommit, "commit", "sweep temp files", root, err)
	}
	return removed, nil
}

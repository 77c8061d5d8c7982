// Package scanner walks the watched root to discover media files.
//
// The walk follows directory symlinks but keeps a set of resolved real paths
// so link cycles terminate. Unreadable directories below the root are logged
// and skipped rather than aborting the pass; a root that cannot be read fails
// the whole pass. Zero-byte files are reported as deferred so a later pass
// can pick them up once content arrives.
package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/logging"
	"scribe/internal/pipeline"
)

// Sink receives discovery results as the walk encounters them.
type Sink interface {
	// Candidate reports a readable, non-empty media file.
	Candidate(ctx context.Context, path string)
	// Deferred reports a media file that cannot be admitted yet.
	Deferred(ctx context.Context, path, reason string)
}

// Result summarizes one scan pass.
type Result struct {
	Candidates int
	Deferred   int
	Skipped    int
}

// Scanner discovers media files under a root directory.
type Scanner struct {
	root       string
	extensions map[string]struct{}
	sink       Sink
	logger     *slog.Logger
}

// New constructs a scanner for root recognizing the given extensions
// (lowercase, with leading dot).
func New(root string, extensions []string, sink Sink, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}
	return &Scanner{
		root:       root,
		extensions: extSet,
		sink:       sink,
		logger:     logger.With(logging.String(logging.FieldComponent, "scanner")),
	}
}

// Recognizes reports whether path carries a recognized media extension.
func (s *Scanner) Recognizes(path string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Scan walks the root once, reporting every recognized file to the sink.
// The walk stops early when ctx is canceled. An unreadable root is an error;
// anything below it degrades to a skip.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	var result Result

	real, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return result, pipeline.Wrap(pipeline.ErrScan, "scan", "resolve root", s.root, err)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return result, pipeline.Wrap(pipeline.ErrScan, "scan", "read root", s.root, err)
	}

	visited := map[string]struct{}{real: {}}
	err = s.walkEntries(ctx, s.root, entries, visited, &result)
	return result, err
}

func (s *Scanner) walkDir(ctx context.Context, dir string, visited map[string]struct{}, result *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		s.logger.Warn("skipping unresolvable directory",
			logging.String(logging.FieldPath, dir), logging.Error(err))
		result.Skipped++
		return nil
	}
	if _, seen := visited[real]; seen {
		// symlink cycle
		return nil
	}
	visited[real] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("skipping unreadable directory",
			logging.String(logging.FieldPath, dir), logging.Error(err))
		result.Skipped++
		return nil
	}

	return s.walkEntries(ctx, dir, entries, visited, result)
}

func (s *Scanner) walkEntries(ctx context.Context, dir string, entries []os.DirEntry, visited map[string]struct{}, result *Result) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := s.walkDir(ctx, path, visited, result); err != nil {
				return err
			}
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			info, statErr := os.Stat(path)
			if statErr != nil {
				s.logger.Warn("skipping broken symlink",
					logging.String(logging.FieldPath, path), logging.Error(statErr))
				result.Skipped++
				continue
			}
			if info.IsDir() {
				if err := s.walkDir(ctx, path, visited, result); err != nil {
					return err
				}
				continue
			}
		}
		s.consider(ctx, path, result)
	}
	return nil
}

func (s *Scanner) consider(ctx context.Context, path string, result *Result) {
	if !s.Recognizes(path) {
		return
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("skipping unreadable file",
			logging.String(logging.FieldPath, path), logging.Error(err))
		result.Skipped++
		return
	}
	if info.Size() == 0 {
		result.Deferred++
		s.sink.Deferred(ctx, path, "empty file")
		return
	}
	result.Candidates++
	s.sink.Candidate(ctx, path)
}

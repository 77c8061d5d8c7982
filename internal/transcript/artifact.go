package transcript

import (
	"fmt"
	"os"
	"strings"

	"scribe/internal/catalog"
)

// Artifacts maps media files to their transcript sidecars and checks
// whether an existing sidecar is current for a given source fingerprint.
type Artifacts struct {
	ext string
}

// NewArtifacts returns an artifact mapper using the given sidecar extension.
func NewArtifacts(ext string) *Artifacts {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		ext = ".txt"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Artifacts{ext: ext}
}

// Extension returns the configured sidecar extension.
func (a *Artifacts) Extension() string {
	return a.ext
}

// Path returns the transcript sidecar path for a media file.
func (a *Artifacts) Path(mediaPath string) string {
	return mediaPath + a.ext
}

// IsSidecar reports whether path names a transcript sidecar.
func (a *Artifacts) IsSidecar(path string) bool {
	return strings.HasSuffix(path, a.ext)
}

// Matches reports whether a current transcript exists for the media file.
// The sidecar is current when it exists and its modification time equals the
// source fingerprint's modification time, which Commit guarantees by stamping
// the sidecar at write time.
func (a *Artifacts) Matches(mediaPath string, fp catalog.Fingerprint) (bool, error) {
	info, err := os.Stat(a.Path(mediaPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat transcript for %s: %w", mediaPath, err)
	}
	if info.IsDir() {
		return false, nil
	}
	return info.ModTime().Equal(fp.ModTime), nil
}

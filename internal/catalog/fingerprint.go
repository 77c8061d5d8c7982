package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode selects how fingerprints summarize file content.
type Mode string

const (
	// ModeMTime fingerprints by size plus modification time. Cheap: one stat.
	ModeMTime Mode = "mtime"
	// ModeSHA256 additionally hashes file content. Detects changes that
	// preserve size and mtime at the cost of a full read.
	ModeSHA256 Mode = "sha256"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(value string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeMTime:
		return ModeMTime, true
	case ModeSHA256:
		return ModeSHA256, true
	default:
		return "", false
	}
}

// Fingerprint is a cheap, comparable summary of a file's content state.
type Fingerprint struct {
	Size    int64
	ModTime time.Time
	Hash    string
}

// Fingerprinter computes fingerprints in a fixed mode.
type Fingerprinter struct {
	mode Mode
}

// NewFingerprinter returns a fingerprinter for the given mode.
func NewFingerprinter(mode Mode) *Fingerprinter {
	if mode == "" {
		mode = ModeMTime
	}
	return &Fingerprinter{mode: mode}
}

// Mode reports the configured fingerprint mode.
func (f *Fingerprinter) Mode() Mode {
	return f.mode
}

// Compute fingerprints the file at path.
func (f *Fingerprinter) Compute(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: is a directory", path)
	}

	fp := Fingerprint{Size: info.Size(), ModTime: info.ModTime()}
	if f.mode != ModeSHA256 {
		return fp, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return Fingerprint{}, fmt.Errorf("hash %s: %w", path, err)
	}
	fp.Hash = hex.EncodeToString(hasher.Sum(nil))
	return fp, nil
}

// IsZero reports whether the fingerprint carries no information.
func (fp Fingerprint) IsZero() bool {
	return fp.Size == 0 && fp.ModTime.IsZero() && fp.Hash == ""
}

// Equal reports whether two fingerprints describe the same content state.
// When both carry content hashes, the hashes decide; otherwise size and
// modification time must match exactly.
func (fp Fingerprint) Equal(other Fingerprint) bool {
	if fp.Hash != "" && other.Hash != "" {
		return fp.Hash == other.Hash
	}
	return fp.Size == other.Size && fp.ModTime.Equal(other.ModTime)
}

// String encodes the fingerprint for persistence and comparison.
func (fp Fingerprint) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(fp.Size, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(fp.ModTime.UnixNano(), 10))
	if fp.Hash != "" {
		b.WriteByte(':')
		b.WriteString(fp.Hash)
	}
	return b.String()
}

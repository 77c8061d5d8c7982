package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrScan          = errors.New("scan error")
	ErrWatch         = errors.New("watch error")
	ErrEngine        = errors.New("engine error")
	ErrCommit        = errors.New("commit error")
	ErrStale         = errors.New("stale fingerprint")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrEngine
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a failed job may succeed on a later attempt
// without operator intervention.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrConfiguration):
		return false
	default:
		return true
	}
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}

package catalog

import (
	"strings"
	"time"
)

// State represents the lifecycle of a catalog record.
type State string

const (
	StateDiscovered   State = "discovered"
	StateQueued       State = "queued"
	StateTranscribing State = "transcribing"
	StateCommitted    State = "committed"
	StateFailed       State = "failed"
)

// Source records which discovery mechanism produced a candidate.
type Source string

const (
	SourceScan  Source = "scan"
	SourceWatch Source = "watch"
)

var allStates = []State{
	StateDiscovered,
	StateQueued,
	StateTranscribing,
	StateCommitted,
	StateFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// busyStates are the states in which an equal fingerprint makes a path
// ineligible for a new enqueue.
var busyStates = map[State]struct{}{
	StateQueued:       {},
	StateTranscribing: {},
	StateCommitted:    {},
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a state ends the lifecycle for a fingerprint.
func (s State) IsTerminal() bool {
	return s == StateCommitted || s == StateFailed
}

// Record is one media file entry persisted in SQLite. At most one live
// record exists per canonical path.
type Record struct {
	ID           int64
	Path         string
	Fingerprint  string
	Source       Source
	State        State
	ErrorMessage string
	DiscoveredAt time.Time
	UpdatedAt    time.Time
}

// Stats aggregates record counts per state for display.
type Stats struct {
	Total        int
	Discovered   int
	Queued       int
	Transcribing int
	Committed    int
	Failed       int
}

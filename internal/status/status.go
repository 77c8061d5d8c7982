// Package status buffers pipeline events for the control plane and the CLI.
//
// The hub keeps a bounded in-memory window of recent events. Producers never
// block: when the buffer is full the oldest event is evicted and counted.
// Consumers poll with Fetch, which supports long-poll waits, and can detect
// missed events by comparing sequence numbers.
package status

import (
	"context"
	"sync"
	"time"
)

// EventType classifies a pipeline event.
type EventType string

const (
	EventDiscovered   EventType = "discovered"
	EventQueued       EventType = "queued"
	EventTranscribing EventType = "transcribing"
	EventCommitted    EventType = "committed"
	EventFailed       EventType = "failed"
	EventDeferred     EventType = "deferred"
	EventLifecycle    EventType = "lifecycle"
)

// Event represents one pipeline occurrence published to the hub.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Path      string    `json:"path,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Counters aggregates event totals since process start.
type Counters struct {
	Discovered   uint64 `json:"discovered"`
	Queued       uint64 `json:"queued"`
	Transcribing uint64 `json:"transcribing"`
	Committed    uint64 `json:"committed"`
	Failed       uint64 `json:"failed"`
	Deferred     uint64 `json:"deferred"`
	Dropped      uint64 `json:"dropped"`
}

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	counters Counters
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends a new event to the hub. When the buffer is full the oldest
// event is evicted and the dropped counter incremented.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	h.countLocked(evt.Type)

	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
		h.counters.Dropped++
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns events with sequence greater than since. When wait is true,
// Fetch blocks until at least one event is available or the context ends.
// The returned sequence is the newest published sequence; a caller whose
// since lags FirstSequence has missed evicted events.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *Hub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

// Snapshot returns aggregate event totals since process start.
func (h *Hub) Snapshot() Counters {
	if h == nil {
		return Counters{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counters
}

func (h *Hub) countLocked(t EventType) {
	switch t {
	case EventDiscovered:
		h.counters.Discovered++
	case EventQueued:
		h.counters.Queued++
	case EventTranscribing:
		h.counters.Transcribing++
	case EventCommitted:
		h.counters.Committed++
	case EventFailed:
		h.counters.Failed++
	case EventDeferred:
		h.counters.Deferred++
	}
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	startIdx := 0
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
		if i == len(h.buffer)-1 {
			return nil, h.nextSeq
		}
	}
	end := startIdx + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, h.nextSeq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

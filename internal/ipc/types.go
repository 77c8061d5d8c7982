package ipc

import "scribe/internal/status"

// StartRequest asks the daemon to begin watching and transcribing.
type StartRequest struct{}

// StartResponse reports the outcome of a start request.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon to halt the pipeline.
type StopRequest struct{}

// StopResponse confirms the pipeline stopped.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches a daemon snapshot.
type StatusRequest struct{}

// StatusResponse mirrors daemon.Status for wire transport.
type StatusResponse struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	WatchDir    string         `json:"watch_dir"`
	CatalogPath string         `json:"catalog_path"`
	LockPath    string         `json:"lock_path"`
	LogPath     string         `json:"log_path"`
	Workers     int            `json:"workers"`
	QueueDepth  int            `json:"queue_depth"`
	Catalog     CatalogCounts   `json:"catalog"`
	Events      status.Counters `json:"events"`
}

// CatalogCounts summarizes catalog records by state.
type CatalogCounts struct {
	Total        int `json:"total"`
	Discovered   int `json:"discovered"`
	Queued       int `json:"queued"`
	Transcribing int `json:"transcribing"`
	Committed    int `json:"committed"`
	Failed       int `json:"failed"`
}

// CatalogListRequest filters catalog records by state name. Empty means all.
type CatalogListRequest struct {
	States []string `json:"states,omitempty"`
}

// CatalogRecord is the wire form of a catalog row.
type CatalogRecord struct {
	ID           int64  `json:"id"`
	Path         string `json:"path"`
	Fingerprint  string `json:"fingerprint"`
	Source       string `json:"source"`
	State        string `json:"state"`
	ErrorMessage string `json:"error_message,omitempty"`
	DiscoveredAt string `json:"discovered_at"`
	UpdatedAt    string `json:"updated_at"`
}

// CatalogListResponse carries the matching records.
type CatalogListResponse struct {
	Records []CatalogRecord `json:"records"`
}

// EventsRequest long-polls the status stream. Since is the last sequence the
// caller has seen; WaitMillis bounds how long the server blocks when no new
// events exist.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns new events and the cursor for the next request.
type EventsResponse struct {
	Events []status.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// RescanRequest asks the daemon to sweep the watch directory immediately.
type RescanRequest struct{}

// RescanResponse confirms the rescan was scheduled.
type RescanResponse struct {
	Requested bool `json:"requested"`
}

// TestNotificationRequest triggers a test message through the notifier.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether the message went out.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

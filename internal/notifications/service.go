package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/config"
)

const userAgent = "Scribe-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyTranscriptCommitted(ctx context.Context, mediaPath, transcriptPath string) error
	NotifyTranscriptionFailed(ctx context.Context, mediaPath string, err error) error
	NotifyMonitorStarted(ctx context.Context, watchDir string, workers int) error
	NotifyMonitorStopped(ctx context.Context, committed, failed uint64) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		commits:   cfg.Notifications.Commits,
		errors:    cfg.Notifications.Errors,
		lifecycle: cfg.Notifications.Lifecycle,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	commits   bool
	errors    bool
	lifecycle bool
}

func (n *ntfyService) NotifyTranscriptCommitted(ctx context.Context, mediaPath, transcriptPath string) error {
	if !n.commits {
		return nil
	}
	data := payload{
		title:   "Scribe - Transcript Ready",
		message: fmt.Sprintf("Transcribed: %s\nFile: %s", filepath.Base(mediaPath), transcriptPath),
		tags:    []string{"scribe", "transcript", "committed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranscriptionFailed(ctx context.Context, mediaPath string, err error) error {
	if !n.errors {
		return nil
	}
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "Scribe - Transcription Failed",
		message:  fmt.Sprintf("Failed: %s\n%s", filepath.Base(mediaPath), detail),
		tags:     []string{"scribe", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMonitorStarted(ctx context.Context, watchDir string, workers int) error {
	if !n.lifecycle {
		return nil
	}
	data := payload{
		title:   "Scribe - Monitor Started",
		message: fmt.Sprintf("Watching %s with %d workers", watchDir, workers),
		tags:    []string{"scribe", "monitor", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMonitorStopped(ctx context.Context, committed, failed uint64) error {
	if !n.lifecycle {
		return nil
	}
	var message string
	if failed == 0 {
		message = fmt.Sprintf("Monitor stopped: %d transcripts committed", committed)
	} else {
		message = fmt.Sprintf("Monitor stopped: %d committed, %d failed", committed, failed)
	}
	data := payload{
		title:   "Scribe - Monitor Stopped",
		message: message,
		tags:    []string{"scribe", "monitor", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Scribe - Test",
		message:  "Notification system test",
		tags:     []string{"scribe", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyTranscriptCommitted(context.Context, string, string) error { return nil }
func (noopService) NotifyTranscriptionFailed(context.Context, string, error) error  { return nil }
func (noopService) NotifyMonitorStarted(context.Context, string, int) error         { return nil }
func (noopService) NotifyMonitorStopped(context.Context, uint64, uint64) error      { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }

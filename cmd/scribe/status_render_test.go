package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"scribe/internal/ipc"
	"scribe/internal/status"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Pipeline", statusError, "stopped", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Pipeline:", "[ERROR] stopped")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Pipeline", statusOK, "pid 42", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestSectionHeadingUnderlinesTitle(t *testing.T) {
	got := sectionHeading("Daemon", false)
	if got != "Daemon\n------" {
		t.Fatalf("unexpected heading %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}

func TestBuildCatalogRows(t *testing.T) {
	rows := buildCatalogRows(ipc.CatalogCounts{})
	if rows != nil {
		t.Fatalf("expected nil rows for empty catalog, got %v", rows)
	}

	rows = buildCatalogRows(ipc.CatalogCounts{Total: 3, Committed: 2, Failed: 1})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "committed" || rows[0][1] != "2" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[2][0] != "total" || rows[2][1] != "3" {
		t.Fatalf("unexpected total row %v", rows[2])
	}
}

func TestFormatEvent(t *testing.T) {
	evt := status.Event{
		Timestamp: time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC),
		Type:      status.EventCommitted,
		Path:      "/media/talk.mp3",
		Detail:    "/media/talk.mp3.txt",
	}
	got := formatEvent(evt)
	if !strings.HasPrefix(got, "09:30:15") {
		t.Fatalf("expected timestamp prefix, got %q", got)
	}
	if !strings.Contains(got, "committed") || !strings.Contains(got, "/media/talk.mp3") {
		t.Fatalf("unexpected event format %q", got)
	}
	if !strings.Contains(got, "(/media/talk.mp3.txt)") {
		t.Fatalf("expected detail suffix, got %q", got)
	}
}

package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scribe/internal/pipeline"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("exit status 1")
	err := pipeline.Wrap(pipeline.ErrEngine, "transcribe", "run whisperx", "model load failed", base)

	if !errors.Is(err, pipeline.ErrEngine) {
		t.Fatal("expected engine marker")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause to be preserved")
	}
	msg := err.Error()
	for _, want := range []string{"transcribe", "run whisperx", "model load failed", "exit status 1"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := pipeline.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, pipeline.ErrEngine) {
		t.Fatal("expected fallback marker")
	}
	if !strings.Contains(err.Error(), "pipeline failure") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestRetryableClassification(t *testing.T) {
	cfgErr := pipeline.Wrap(pipeline.ErrConfiguration, "engine", "resolve binary", "", nil)
	if pipeline.Retryable(cfgErr) {
		t.Fatal("configuration errors should not be retryable")
	}
	engineErr := pipeline.Wrap(pipeline.ErrEngine, "transcribe", "", "", errors.New("oom"))
	if !pipeline.Retryable(engineErr) {
		t.Fatal("engine errors should be retryable")
	}
}

func TestContextAnnotations(t *testing.T) {
	ctx := pipeline.WithJobID(context.Background(), "job-123")
	ctx = pipeline.WithPhase(ctx, "transcribe")

	if id, ok := pipeline.JobIDFromContext(ctx); !ok || id != "job-123" {
		t.Fatalf("unexpected job id: %q ok=%v", id, ok)
	}
	if phase, ok := pipeline.PhaseFromContext(ctx); !ok || phase != "transcribe" {
		t.Fatalf("unexpected phase: %q ok=%v", phase, ok)
	}
	if _, ok := pipeline.JobIDFromContext(context.Background()); ok {
		t.Fatal("expected missing job id")
	}
}

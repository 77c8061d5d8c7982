package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/config"
	"scribe/internal/pipeline"
)

// WhisperX configuration constants.
const (
	DefaultModel   = "base"
	CUDAIndexURL   = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL   = "https://pypi.org/simple"
	BatchSize      = "4"
	CPUDevice      = "cpu"
	CUDADevice     = "cuda"
	CPUComputeType = "float32"
	OutputFormat   = "json"
)

// UVXCommand launches WhisperX without a managed Python environment.
const UVXCommand = "uvx"

// WhisperX transcribes media files by shelling out to WhisperX via uvx.
type WhisperX struct {
	cfg           config.Engine
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewWhisperX creates a WhisperX engine with the given configuration.
func NewWhisperX(cfg config.Engine) *WhisperX {
	return &WhisperX{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperX) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	w.commandRunner = runner
}

func (w *WhisperX) Name() string {
	return "whisperx"
}

// Model returns the configured model name for logging.
func (w *WhisperX) Model() string {
	if w.cfg.Model != "" {
		return w.cfg.Model
	}
	return DefaultModel
}

// Transcribe runs WhisperX against the media file and returns the plain
// transcript text assembled from the JSON segment output.
func (w *WhisperX) Transcribe(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", pipeline.Wrap(pipeline.ErrEngine, "transcribe", "whisperx", "source path required", nil)
	}

	workDir, err := os.MkdirTemp("", "scribe-whisperx-")
	if err != nil {
		return "", pipeline.Wrap(pipeline.ErrEngine, "transcribe", "create work dir", "", err)
	}
	defer os.RemoveAll(workDir)

	args := w.buildArgs(path, workDir)
	if err := w.run(ctx, UVXCommand, args...); err != nil {
		return "", pipeline.Wrap(pipeline.ErrEngine, "transcribe", "run whisperx", "", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	jsonPath := filepath.Join(workDir, baseName+".json")
	text, err := loadTranscriptText(jsonPath)
	if err != nil {
		return "", pipeline.Wrap(pipeline.ErrEngine, "transcribe", "read whisperx output", "", err)
	}
	return text, nil
}

// run executes a command, using the custom runner if set.
func (w *WhisperX) run(ctx context.Context, name string, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	env := os.Environ()
	// Torch 2.6 changed torch.load default to weights_only=true, breaking
	// WhisperX checkpoint loading. Force legacy behavior.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if w.cfg.CacheDir != "" {
		env = append(env, "HF_HOME="+w.cfg.CacheDir)
	}
	cmd.Env = env

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (w *WhisperX) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 20)

	if w.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", w.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
	)

	if w.cfg.Language != "" {
		args = append(args, "--language", w.cfg.Language)
	}

	if w.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// loadTranscriptText concatenates segment text into the transcript body.
func loadTranscriptText(jsonPath string) (string, error) {
	segments, err := LoadSegments(jsonPath)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

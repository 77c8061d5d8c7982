package config

const (
	defaultLogDir              = "~/.local/share/scribe/logs"
	defaultEngineCacheDir      = "~/.local/share/scribe/cache/whisperx"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultDebounceMillis      = 750
	defaultQueueCapacity       = 256
	defaultStatusBufferSize    = 512
	defaultTranscriptExtension = ".txt"
	defaultFingerprintMode     = "mtime"
	defaultEngineModel         = "base"
	defaultNotifyTimeout       = 10
)

// defaultExtensions mirrors the media types the pipeline recognizes out of
// the box. Matching is case-insensitive.
var defaultExtensions = []string{
	".mp3", ".wav", ".mp4", ".mkv", ".mov", ".flv", ".aac", ".m4a",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Monitor: Monitor{
			DebounceMillis:      defaultDebounceMillis,
			Extensions:          append([]string{}, defaultExtensions...),
			FingerprintMode:     defaultFingerprintMode,
			TranscriptExtension: defaultTranscriptExtension,
			QueueCapacity:       defaultQueueCapacity,
		},
		Engine: Engine{
			Model:    defaultEngineModel,
			CacheDir: defaultEngineCacheDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Commits:        true,
			Errors:         true,
			Lifecycle:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Status: Status{
			BufferSize: defaultStatusBufferSize,
		},
	}
}

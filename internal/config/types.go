package config

// Config is the full on-disk configuration. Unknown fields are rejected so
// typos surface at load time instead of silently using defaults.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Engine    EngineConfig    `json:"engine"`
	Admission AdmissionConfig `json:"admission"`
	Media     MediaConfig     `json:"media"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Janitor   JanitorConfig   `json:"janitor"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// LogChatID receives mirrored warn/error log lines when
	// logging.telegram.enabled is set.
	LogChatID int64 `json:"log_chat_id,omitempty"`
}

type LoggingConfig struct {
	Level    string            `json:"level,omitempty"`
	Console  bool              `json:"console"`
	File     FileLogConfig     `json:"file"`
	Telegram TelegramLogConfig `json:"telegram"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type TelegramLogConfig struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type EngineConfig struct {
	// Workers is the fixed worker pool size. Default 5.
	Workers int `json:"workers,omitempty"`
}

type AdmissionConfig struct {
	// Cooldown is a Go duration string. Default "5m".
	Cooldown string `json:"cooldown,omitempty"`
	// DailyLimit is the max accepted requests per user per calendar day.
	// Default 10.
	DailyLimit int `json:"daily_limit,omitempty"`
}

// MediaConfig controls the external tools and the pipeline limits.
//
// Defaults (when fields are omitted/zero):
//   - ytdlp_binary: "yt-dlp", ffmpeg_binary: "ffmpeg", ffprobe_binary: "ffprobe"
//   - quality_ceiling: 480 (max video height)
//   - size_limit_mb: 50, tolerance_seconds: 5, delivery_attempts: 3
//   - work_dir: the OS temp directory
type MediaConfig struct {
	YtDlpBinary   string `json:"ytdlp_binary,omitempty"`
	FFmpegBinary  string `json:"ffmpeg_binary,omitempty"`
	FFprobeBinary string `json:"ffprobe_binary,omitempty"`

	QualityCeiling int    `json:"quality_ceiling,omitempty"`
	WorkDir        string `json:"work_dir,omitempty"`

	SizeLimitMB      int `json:"size_limit_mb,omitempty"`
	ToleranceSeconds int `json:"tolerance_seconds,omitempty"`
	DeliveryAttempts int `json:"delivery_attempts,omitempty"`

	// FetchTimeout/TrimTimeout are Go duration strings.
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	TrimTimeout  string `json:"trim_timeout,omitempty"`
}

// StorageConfig configures the job history store.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", history is disabled.
type StorageConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string; sqlite only.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type JanitorConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron expression. Default "30 4 * * *".
	Schedule string `json:"schedule,omitempty"`
	// MaxAge is a Go duration string; artifacts older than this are swept.
	// Default "6h".
	MaxAge string `json:"max_age,omitempty"`
}

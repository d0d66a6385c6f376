package config

// Config is the daemon configuration. It decodes strictly (unknown fields are
// rejected) from JSON or YAML; all durations are Go duration strings
// (e.g. "500ms", "30s", "5m").
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	GenAI    GenAIConfig    `json:"genai"`
	Telegram TelegramConfig `json:"telegram,omitempty"`

	// Automation controls the scheduled-run driver and the run pipeline.
	Automation AutomationConfig `json:"automation"`

	// HTTP controls the manual-trigger API surface.
	HTTP HTTPConfig `json:"http,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the SQLite store.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// GenAIConfig configures the Gemini-backed idea/prompt generators.
type GenAIConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model,omitempty"` // default: gemini-2.0-flash

	// IdeaBatchSize is how many candidate ideas to request per run.
	IdeaBatchSize int `json:"idea_batch_size,omitempty"` // default: 5

	// RequestTimeout bounds a single generation call. Default: "60s".
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// TelegramConfig configures the optional run notifier.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	// ChatID is the default notification target when a channel has none.
	ChatID     int64 `json:"chat_id,omitempty"`
	RatePerSec int   `json:"rate_per_sec,omitempty"` // default: 3
}

// AutomationConfig controls the scheduling core.
//
// DueWindow must be strictly greater than Interval: a scheduled slot is
// considered due while (now - slot) <= DueWindow, which tolerates polling
// jitter. Making it much larger than Interval risks two nearby slots firing
// on the same tick, so keep the two close.
type AutomationConfig struct {
	Enabled bool `json:"enabled"`

	// Interval is the polling period of the scheduler loop. Default: "5m".
	Interval string `json:"interval,omitempty"`

	// DueWindow is the due-ness tolerance after a scheduled slot. Default: "6m".
	DueWindow string `json:"due_window,omitempty"`

	// DefaultTimezone is the IANA zone used when a channel has none.
	// Default: "Asia/Jakarta".
	DefaultTimezone string `json:"default_timezone,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8080"

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("10s", "1m"); empty means the mode default.
type Config struct {
	App        AppConfig        `json:"app"`
	Telegram   TelegramConfig   `json:"telegram"`
	Storage    StorageConfig    `json:"storage"`
	Logging    LoggingConfig    `json:"logging"`
	Reaper     ReaperConfig     `json:"reaper"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Memo       MemoConfig       `json:"memo"`
	Digest     DigestConfig     `json:"digest"`
	Ops        OpsConfig        `json:"ops"`
}

type Mode string

const (
	ModeTest       Mode = "test"
	ModeProduction Mode = "production"
)

type AppConfig struct {
	// Mode selects tick intervals and the default event window.
	Mode Mode `json:"mode"`
	// Timezone is an IANA name used for event input and display.
	Timezone string `json:"timezone,omitempty"`
	// EventWindow overrides how long an event without an end stays active.
	EventWindow string `json:"event_window,omitempty"`
}

type TelegramConfig struct {
	Token       string  `json:"token,omitempty"` // prefer EVENTBOT_TELEGRAM_TOKEN
	APIURL      string  `json:"api_url,omitempty"`
	HTTPTimeout string  `json:"http_timeout,omitempty"`
	RatePerSec  float64 `json:"rate_per_sec,omitempty"`
	MaxRetries  int     `json:"max_retries,omitempty"`
}

// StorageConfig points at the SQLite database file.
//
// Example:
//
//	"storage": { "path": "./data/eventbot.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors log lines into an ops chat topic.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type ReaperConfig struct {
	Interval string `json:"interval,omitempty"`
	// ProtectedChannels are never deleted by the reaper.
	ProtectedChannels []string `json:"protected_channels,omitempty"`
	CleanupTimeout    string   `json:"cleanup_timeout,omitempty"`
}

type DispatcherConfig struct {
	Interval  string `json:"interval,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
	// ClaimBeforeSend switches to claim mode for multi-instance deployments.
	ClaimBeforeSend bool   `json:"claim_before_send,omitempty"`
	SendTimeout     string `json:"send_timeout,omitempty"`
}

type MemoConfig struct {
	// Disabled turns the memo reminder loop off.
	Disabled  bool   `json:"disabled,omitempty"`
	Interval  string `json:"interval,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

type DigestConfig struct {
	Enabled  bool           `json:"enabled"`
	Schedule string         `json:"schedule,omitempty"` // cron, default "0 9 * * *"
	Blessing string         `json:"blessing,omitempty"`
	Targets  []DigestTarget `json:"targets,omitempty"`
}

type DigestTarget struct {
	ChatID   int64 `json:"chat_id"`
	ThreadID int64 `json:"thread_id,omitempty"`
}

// OpsConfig controls the metrics/health/pprof HTTP server.
//
// Binding to a non-loopback address requires a token or allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:9464"
	Token         string `json:"token,omitempty"` // do not log
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
}

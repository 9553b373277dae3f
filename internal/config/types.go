package config

// Config is the whole config file (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Storage   StorageConfig   `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// AdminChatID, if set, receives operator reports (bad timezones,
	// parked tasks, store failures).
	AdminChatID int64 `json:"admin_chat_id,omitempty"`

	// PollTimeout is the long-poll timeout (Go duration string).
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// SchedulerConfig controls the reminder tick loop.
//
// Defaults (when fields are omitted/zero):
//   - interval: "60s"
//   - retry_max: 10
//   - retry_base: "1m"
//   - retry_max_delay: "30m"
//   - commit_timeout: "15s"
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"`

	// Timezone is the default IANA zone for tasks that don't carry one,
	// e.g. "Asia/Jakarta". Empty means the host's local zone.
	Timezone string `json:"timezone,omitempty"`

	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	CommitTimeout string `json:"commit_timeout,omitempty"`
}

// NotifierConfig controls outbound delivery pacing.
// If the whole section is omitted, defaults apply.
type NotifierConfig struct {
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

// StorageConfig selects and configures the task container backend.
// Driver/path changes require a restart; they are not hot-reloadable.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/tasks.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

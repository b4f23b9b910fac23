package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Source   SourceConfig   `json:"source"`
	Watch    WatchConfig    `json:"watch"`
	Notify   NotifyConfig   `json:"notify"`
	Storage  StorageConfig  `json:"storage"`

	// Map enables best-effort static-map enrichment for "camera added"
	// messages. Omitting the section is a valid, non-error state meaning
	// "never attempt enrichment".
	Map *MapConfig `json:"map,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
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

// SourceConfig points at the page listing active speed checks.
type SourceConfig struct {
	URL string `json:"url,omitempty"` // default: the Lucerne police page
	// FetchTimeout is a Go duration string. Default "30s".
	FetchTimeout string `json:"fetch_timeout,omitempty"`
}

// WatchConfig controls the check schedule and the quiet window.
//
// Schedule accepts a cron expression ("0 */30 * * * *"), a Go duration
// ("30m"), or HH:MM interval shorthand. Quiet bounds are "HH:MM" in the
// configured timezone; cycles are skipped inside the window.
type WatchConfig struct {
	Schedule   string `json:"schedule"`
	QuietStart string `json:"quiet_start,omitempty"`
	QuietEnd   string `json:"quiet_end,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

type NotifyConfig struct {
	Workers    int `json:"workers,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the persistence backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./veloxbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MapConfig configures the static-map endpoint. URL may contain {lat},
// {lon}, {zoom}, {width}, {height} and {key} placeholders.
type MapConfig struct {
	URL     string `json:"url"`
	APIKey  string `json:"api_key,omitempty"`
	Zoom    int    `json:"zoom,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Timeout string `json:"timeout,omitempty"` // Go duration string
}

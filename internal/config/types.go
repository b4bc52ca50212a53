package config

// CurrentVersion is bumped whenever the layout below changes. A config file
// with a different version is replaced by Default() on load; fields are never
// merged across versions.
const CurrentVersion = 2

type Config struct {
	Version int `json:"version"`

	Transport   TransportConfig   `json:"transport"`
	Logging     LoggingConfig     `json:"logging"`
	Notifier    NotifierConfig    `json:"notifier"`
	Storage     StorageConfig     `json:"storage"`
	WorldState  WorldStateConfig  `json:"worldstate"`
	Market      MarketConfig      `json:"market"`
	Arbitration ArbitrationConfig `json:"arbitration"`

	Listeners Listeners `json:"listeners"`
	Commands  Commands  `json:"commands"`
}

// Feature is the per-listener / per-command switch plus its message template.
type Feature struct {
	Enabled bool   `json:"enabled"`
	Format  string `json:"format"`
}

type Listeners struct {
	// EidolonHunts fires when the Plains of Eidolon turn to night.
	EidolonHunts Feature `json:"eidolon_hunts"`
	// STierArbitrations is based on the "Arbitration Goons" tier list.
	STierArbitrations Feature `json:"s_tier_arbitrations"`
	// MetaRelics: S/A tier arbitration maps showing up as defense fissures.
	MetaRelics                 Feature `json:"meta_relics"`
	SteelPathDisruptionFissure Feature `json:"steel_path_disruption_fissures"`
}

type Commands struct {
	Average Feature `json:"average"`
}

// TransportConfig selects the chat platform.
//
// Kind is one of "twitch", "telegram", "discord".
// Platform secrets are not stored here: twitch uses the credentials file,
// telegram/discord read WFN_TELEGRAM_TOKEN / WFN_DISCORD_TOKEN.
type TransportConfig struct {
	Kind string `json:"kind"`
	// Nick is the twitch login used for NICK (defaults to the channel).
	Nick string `json:"nick,omitempty"`
	// PollTimeout is the telegram long-poll timeout (Go duration string).
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// NotifierConfig controls the outbound chat pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifierConfig struct {
	Workers       int    `json:"workers"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	DedupWindow   string `json:"dedup_window"`
	PersistDedup  bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./wfnotifier.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type WorldStateConfig struct {
	BaseURL string `json:"base_url"`
	// Poll accepts cron ("*/1 * * * *", "@every 1m"), Go durations ("45s")
	// or HH:MM intervals.
	Poll        string `json:"poll"`
	Timeout     string `json:"timeout,omitempty"`
	MaxFailures int    `json:"max_failures"`
}

type MarketConfig struct {
	BaseURL    string `json:"base_url"`
	Language   string `json:"language"`
	ItemsTTL   string `json:"items_ttl"`
	RatePerSec int    `json:"rate_per_sec"`
	Timeout    string `json:"timeout,omitempty"`
}

type ArbitrationConfig struct {
	// SchedulePath is a CSV of "unix_seconds,Node (Planet)" rows. No rotation
	// ships with the binary, so listeners.s_tier_arbitrations stays off until
	// one is provided.
	SchedulePath string `json:"schedule_path"`
	// TiersPath optionally overrides the embedded tier table (YAML).
	TiersPath string `json:"tiers_path,omitempty"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Transport: TransportConfig{
			Kind:        "twitch",
			PollTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
			File:    LoggingFile{Enabled: false, Path: "./wfnotifier.log", MaxSizeMB: 20, MaxAgeDays: 14},
		},
		Notifier: NotifierConfig{
			Workers:       1,
			QueueSize:     256,
			RatePerSec:    1,
			RetryMax:      3,
			RetryBase:     "1s",
			RetryMaxDelay: "30s",
			DedupWindow:   "2h",
			PersistDedup:  true,
		},
		Storage: StorageConfig{
			Driver:      "sqlite",
			Path:        "./wfnotifier.db",
			BusyTimeout: "2s",
		},
		WorldState: WorldStateConfig{
			BaseURL:     "https://api.warframestat.us/pc",
			Poll:        "@every 1m",
			Timeout:     "15s",
			MaxFailures: 30,
		},
		Market: MarketConfig{
			BaseURL:    "https://api.warframe.market",
			Language:   "en",
			ItemsTTL:   "6h",
			RatePerSec: 3,
			Timeout:    "10s",
		},
		Arbitration: ArbitrationConfig{
			SchedulePath: "./arbys.csv",
		},
		Listeners: Listeners{
			EidolonHunts: Feature{
				Enabled: true,
				Format:  "🌙 @{channel_name}, swing yo' ass over to Cetus! It's EIDOLON TIME!",
			},
			STierArbitrations: Feature{
				Enabled: false,
				Format:  "💰 @{channel_name}, new S-Tier Arbitration: {node} on {planet}",
			},
			MetaRelics: Feature{
				Enabled: true,
				Format:  "🔍 @{channel_name} New Meta Fissure detected on {node} - {difficulty}",
			},
			SteelPathDisruptionFissure: Feature{
				Enabled: true,
				Format:  "⚡ @{channel_name} New Steel Path Disruption Fissure detected on {node}",
			},
		},
		Commands: Commands{
			Average: Feature{
				Enabled: true,
				Format:  `@{author} "{item_name}" average: {average} || moving average: {moving_average} || sold: {amount_sold}`,
			},
		},
	}
}

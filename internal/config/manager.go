package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	logx "wfnotifier/pkg/logx"
)

// ConfigManager owns the on-disk config document.
//
// The config is read once at startup. Listener templates are captured at
// registration, so editing the file requires a restart.
type ConfigManager struct {
	path string
	log  logx.Logger
}

func NewConfigManager(path string) *ConfigManager {
	return &ConfigManager{path: path}
}

func (m *ConfigManager) SetLogger(log logx.Logger) { m.log = log }

// Parse reads and strictly decodes the config file (JSON or YAML).
func (m *ConfigManager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(m.path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		// An older layout carries fields this build no longer knows.
		// Surface it as a version mismatch so LoadOrCreate can reset.
		if v, ok := peekVersion(jb); ok && v != CurrentVersion {
			return &Config{Version: v}, nil
		}
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// LoadOrCreate loads the config, creating it from Default() when missing.
//
// A version mismatch replaces the whole document with Default() and
// persists it; there is no field-level merge.
func (m *ConfigManager) LoadOrCreate() (*Config, error) {
	cfg, err := m.Parse()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = Default()
		if err := m.Save(cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		if !m.log.IsZero() {
			m.log.Info("config created", logx.String("path", m.path))
		}
	case err != nil:
		return nil, fmt.Errorf("parse %s: %w", m.path, err)
	case cfg.Version != CurrentVersion:
		old := cfg.Version
		cfg = Default()
		if err := m.Save(cfg); err != nil {
			return nil, fmt.Errorf("reset config: %w", err)
		}
		if !m.log.IsZero() {
			m.log.Warn("config version mismatch; reset to defaults",
				logx.String("path", m.path),
				logx.Int("found", old),
				logx.Int("want", CurrentVersion),
			)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg in the format implied by the file extension.
func (m *ConfigManager) Save(cfg *Config) error {
	b, err := encodeForPath(m.path, cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

// Validate rejects values that would only fail later at runtime.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Transport.Kind)) {
	case "twitch", "telegram", "discord":
	default:
		return fmt.Errorf("transport.kind: unsupported %q", cfg.Transport.Kind)
	}
	if cfg.Notifier.Workers < 0 {
		return fmt.Errorf("notifier.workers must be >= 0")
	}
	if cfg.Notifier.RetryMax < 0 {
		return fmt.Errorf("notifier.retry_max must be >= 0")
	}
	if cfg.Listeners.STierArbitrations.Enabled && strings.TrimSpace(cfg.Arbitration.SchedulePath) == "" {
		return fmt.Errorf("arbitration.schedule_path is required when listeners.s_tier_arbitrations is enabled")
	}
	if cfg.WorldState.MaxFailures < 0 {
		return fmt.Errorf("worldstate.max_failures must be >= 0")
	}
	durations := map[string]string{
		"transport.poll_timeout":   cfg.Transport.PollTimeout,
		"notifier.retry_base":      cfg.Notifier.RetryBase,
		"notifier.retry_max_delay": cfg.Notifier.RetryMaxDelay,
		"notifier.dedup_window":    cfg.Notifier.DedupWindow,
		"storage.busy_timeout":     cfg.Storage.BusyTimeout,
		"worldstate.timeout":       cfg.WorldState.Timeout,
		"market.items_ttl":         cfg.Market.ItemsTTL,
		"market.timeout":           cfg.Market.Timeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	return nil
}

func peekVersion(jb []byte) (int, bool) {
	var v struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(jb, &v); err != nil {
		return 0, false
	}
	if v.Version == nil {
		return 0, true
	}
	return *v.Version, true
}

package app

import (
	"fmt"
	"strings"
	"time"

	"wfnotifier/internal/config"
	"wfnotifier/internal/market"
	"wfnotifier/internal/notifier"
	"wfnotifier/internal/storage"
	"wfnotifier/internal/worldstate"
	logx "wfnotifier/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
		if err != nil {
			return storage.Config{}, false, err
		}
		if busy == 0 {
			busy = time.Second
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := cfg.Notifier
	out := notifier.Config{
		Workers:      nc.Workers,
		QueueSize:    nc.QueueSize,
		RatePerSec:   nc.RatePerSec,
		RetryMax:     nc.RetryMax,
		PersistDedup: nc.PersistDedup,
	}
	var err error
	if out.RetryBase, err = config.ParseDurationField("notifier.retry_base", nc.RetryBase); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay); err != nil {
		return notifier.Config{}, err
	}
	if out.DedupWindow, err = config.ParseDurationField("notifier.dedup_window", nc.DedupWindow); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

func mapWorldStateConfig(cfg *config.Config) worldstate.Config {
	return worldstate.Config{
		BaseURL:     cfg.WorldState.BaseURL,
		Poll:        cfg.WorldState.Poll,
		Timeout:     config.DurationOr(cfg.WorldState.Timeout, 15*time.Second),
		MaxFailures: cfg.WorldState.MaxFailures,
	}
}

func mapMarketConfig(cfg *config.Config) market.Config {
	return market.Config{
		BaseURL:    cfg.Market.BaseURL,
		Language:   cfg.Market.Language,
		ItemsTTL:   config.DurationOr(cfg.Market.ItemsTTL, 6*time.Hour),
		RatePerSec: cfg.Market.RatePerSec,
		Timeout:    config.DurationOr(cfg.Market.Timeout, 10*time.Second),
	}
}

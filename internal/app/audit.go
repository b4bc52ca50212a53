package app

import (
	"context"
	"fmt"

	"wfnotifier/internal/config"
	"wfnotifier/internal/storage"
	logx "wfnotifier/pkg/logx"
)

// RecentCommands reads the newest command audit rows from the store named by
// the config at configPath. It does not create or reset the config.
func RecentCommands(ctx context.Context, configPath string, limit int) ([]storage.AuditEntry, error) {
	cfg, err := config.NewConfigManager(configPath).Parse()
	if err != nil {
		return nil, err
	}
	if cfg.Version != config.CurrentVersion {
		return nil, fmt.Errorf("%s: config version %d, want %d", configPath, cfg.Version, config.CurrentVersion)
	}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, storage.ErrDisabled
	}
	st, err := storage.Open(sc, logx.Nop())
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.RecentAudit(ctx, limit)
}

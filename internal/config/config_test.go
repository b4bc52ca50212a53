package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewConfigManager(path)

	cfg, err := m.LoadOrCreate()
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.True(t, cfg.Listeners.EidolonHunts.Enabled)
	assert.False(t, cfg.Listeners.STierArbitrations.Enabled, "needs a rotation file first")

	_, err = os.Stat(path)
	require.NoError(t, err)

	// Second load reads the persisted document back unchanged.
	again, err := NewConfigManager(path).LoadOrCreate()
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadOrCreateResetsOnVersionMismatch(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	old := `{"version": 1, "listeners": {"eidolon_hunts": {"enabled": false, "format": "custom"}}}`
	require.NoError(t, os.WriteFile(path, []byte(old), 0o644))

	cfg, err := NewConfigManager(path).LoadOrCreate()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "custom")
	assert.Contains(t, string(b), `"version": 2`)
}

func TestLoadOrCreateResetsLegacyFlatLayout(t *testing.T) {
	t.Parallel()
	// The first release stored bare booleans without a version field.
	path := filepath.Join(t.TempDir(), "config.json")
	legacy := `{"eidolon_hunt_message": true, "arbitration_s_tier_message": false, "relic_meta_and_disruption_message": true}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	cfg, err := NewConfigManager(path).LoadOrCreate()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOrCreateRejectsUnknownFieldsAtCurrentVersion(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 2, "bogus": true}`), 0o644))

	_, err := NewConfigManager(path).LoadOrCreate()
	require.Error(t, err)
}

func TestLoadOrCreateYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	m := NewConfigManager(path)
	cfg, err := m.LoadOrCreate()
	require.NoError(t, err)

	cfg.Listeners.MetaRelics.Enabled = false
	require.NoError(t, m.Save(cfg))

	again, err := NewConfigManager(path).LoadOrCreate()
	require.NoError(t, err)
	assert.False(t, again.Listeners.MetaRelics.Enabled)
	assert.Equal(t, cfg.Listeners.MetaRelics.Format, again.Listeners.MetaRelics.Format)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "bad transport", mutate: func(c *Config) { c.Transport.Kind = "irc" }},
		{name: "bad duration", mutate: func(c *Config) { c.Notifier.DedupWindow = "soon" }},
		{name: "negative retry", mutate: func(c *Config) { c.Notifier.RetryMax = -1 }},
		{name: "arbitrations without schedule", mutate: func(c *Config) {
			c.Listeners.STierArbitrations.Enabled = true
			c.Arbitration.SchedulePath = " "
		}},
		{name: "arbitrations with schedule", mutate: func(c *Config) {
			c.Listeners.STierArbitrations.Enabled = true
		}, ok: true},
		{name: "telegram", mutate: func(c *Config) { c.Transport.Kind = "Telegram" }, ok: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := Validate(c)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDurationOr(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 5*time.Second, DurationOr("", 5*time.Second))
	assert.Equal(t, 5*time.Second, DurationOr("nope", 5*time.Second))
	assert.Equal(t, time.Minute, DurationOr("1m", 5*time.Second))
}

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "wfnotifier/pkg/logx"
)

func openTemp(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db"), BusyTimeout: time.Second}, logx.Nop())
	require.NoError(t, err)
	require.NotNil(t, st)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
	_, err := Open(Config{Driver: "postgres"}, logx.Nop())
	assert.Error(t, err)
}

func TestDedupRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTemp(t)
	ctx := context.Background()

	_, ok, err := st.GetDedup(ctx, "fissure:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	require.NoError(t, st.PutDedup(ctx, "fissure:abc", until))
	got, ok, err := st.GetDedup(ctx, "fissure:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(until))

	later := until.Add(time.Hour)
	require.NoError(t, st.PutDedup(ctx, "fissure:abc", later))
	got, _, err = st.GetDedup(ctx, "fissure:abc")
	require.NoError(t, err)
	assert.True(t, got.Equal(later))
}

func TestDedupSurvivesReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.PutDedup(ctx, "eidolon:1", time.Now().Add(time.Hour)))
	require.NoError(t, st.PutDedup(ctx, "eidolon:old", time.Now().Add(-time.Hour)))
	require.NoError(t, st.Close())

	st, err = Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	_, ok, err := st.GetDedup(ctx, "eidolon:1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Expired keys are pruned on open.
	_, ok, err = st.GetDedup(ctx, "eidolon:old")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuditNewestFirst(t *testing.T) {
	t.Parallel()
	st := openTemp(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, st.AppendAudit(ctx, AuditEntry{At: base, Prefix: "!avg", Author: "a", OK: true, TookMS: 12}))
	require.NoError(t, st.AppendAudit(ctx, AuditEntry{At: base.Add(time.Minute), Prefix: "!avg", Author: "b", Error: "boom", TookMS: 3}))

	got, err := st.RecentAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, AuditEntry{At: base.Add(time.Minute), Prefix: "!avg", Author: "b", Error: "boom", TookMS: 3}, got[0])
	assert.Equal(t, AuditEntry{At: base, Prefix: "!avg", Author: "a", OK: true, TookMS: 12}, got[1])
}

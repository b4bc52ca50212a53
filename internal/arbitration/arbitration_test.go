package arbitration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeAndPlanetName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		label, node, planet string
	}{
		{"Hydron (Sedna)", "Hydron", "Sedna"},
		{"Nu-gua Mines (Neptune)", "Nu-gua Mines", "Neptune"},
		{"Yuvarium (Lua)", "Yuvarium", "Lua"},
		{"R-9 Cloud (Veil)", "R-9 Cloud", "Veil"},
		{"Outer Terminus (Pluto)", "Outer Terminus", "Pluto"},
		{" Casta (Ceres) ", "Casta", "Ceres"},
		{"Hydron", "Hydron", ""},
		{"(Sedna)", "(Sedna)", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.node, NodeName(tt.label), tt.label)
		assert.Equal(t, tt.planet, PlanetName(tt.label), tt.label)
	}
}

func TestDefaultTiers(t *testing.T) {
	t.Parallel()
	tiers, err := DefaultTiers()
	require.NoError(t, err)
	assert.Greater(t, tiers.Len(), 0)

	tier, ok := tiers.TierOf("Hydron")
	require.True(t, ok)
	assert.Equal(t, TierS, tier)

	tier, ok = tiers.TierOf("Outer Terminus")
	require.True(t, ok)
	assert.Equal(t, TierA, tier)

	_, ok = tiers.TierOf("Nowhere")
	assert.False(t, ok)
}

func TestParseTiersRejectsConflicts(t *testing.T) {
	t.Parallel()
	_, err := ParseTiers([]byte("S: [Hydron]\nA: [Hydron]\n"))
	assert.Error(t, err)

	_, err = ParseTiers([]byte("Z: [Hydron]\n"))
	assert.Error(t, err)
}

const scheduleCSV = `timestamp,node
1700003600,Casta (Ceres)
1700000000,Hydron (Sedna)
1700007200,Tessera (Venus)
1700010800,Zabala (Eris)
1700014400,Sechura (Pluto)
`

func testSchedule(t *testing.T) *Schedule {
	t.Helper()
	tiers, err := DefaultTiers()
	require.NoError(t, err)
	s, err := ParseSchedule(strings.NewReader(scheduleCSV), tiers)
	require.NoError(t, err)
	require.Equal(t, 5, s.Len())
	return s
}

func TestUpcomingByTier(t *testing.T) {
	t.Parallel()
	s := testSchedule(t)

	ev, err := s.UpcomingByTier(TierS, time.Unix(1699990000, 0))
	require.NoError(t, err)
	assert.Equal(t, "Hydron", ev.Node)
	assert.Equal(t, "Sedna", ev.Planet)
	assert.Equal(t, "Hydron (Sedna)", ev.Label)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ev.Activation)

	// Strictly after: the event at exactly now is skipped.
	ev, err = s.UpcomingByTier(TierS, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, "Casta", ev.Node)

	ev, err = s.UpcomingByTier(TierA, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, "Tessera", ev.Node)

	_, err = s.UpcomingByTier(TierS, time.Unix(1700014400, 0))
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestParseScheduleErrors(t *testing.T) {
	t.Parallel()
	_, err := ParseSchedule(strings.NewReader("1700000000,Hydron (Sedna)\nsoon,Casta (Ceres)\n"), nil)
	assert.Error(t, err)

	_, err = ParseSchedule(strings.NewReader("1700000000,Hydron (Sedna),extra\n"), nil)
	assert.Error(t, err)
}

func TestLoadScheduleAndTiersFromFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tiersPath := filepath.Join(dir, "tiers.yaml")
	csvPath := filepath.Join(dir, "arbys.csv")
	require.NoError(t, os.WriteFile(tiersPath, []byte("S:\n  - Zabala\n"), 0o644))
	require.NoError(t, os.WriteFile(csvPath, []byte(scheduleCSV), 0o644))

	tiers, err := LoadTiers(tiersPath)
	require.NoError(t, err)
	s, err := LoadSchedule(csvPath, tiers)
	require.NoError(t, err)

	ev, err := s.UpcomingByTier(TierS, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "Zabala", ev.Node)
	assert.Equal(t, "Eris", ev.Planet)
}

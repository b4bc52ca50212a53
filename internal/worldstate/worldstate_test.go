package worldstate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	logx "wfnotifier/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// fakeAPI serves whatever JSON is currently set for each endpoint.
type fakeAPI struct {
	mu       sync.Mutex
	cetus    string
	fissures string
	status   int
}

func (f *fakeAPI) set(cetus, fissures string) {
	f.mu.Lock()
	f.cetus, f.fissures = cetus, fissures
	f.mu.Unlock()
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	switch r.URL.Path {
	case "/pc/cetusCycle":
		_, _ = w.Write([]byte(f.cetus))
	case "/pc/fissures":
		_, _ = w.Write([]byte(f.fissures))
	default:
		http.NotFound(w, r)
	}
}

const (
	cetusDay   = `{"id":"cetusCycle1","state":"day","isDay":true,"activation":"2025-01-01T00:00:00.000Z","expiry":"2025-01-01T01:40:00.000Z"}`
	cetusNight = `{"id":"cetusCycle2","state":"night","isDay":false,"activation":"2025-01-01T01:40:00.000Z","expiry":"2025-01-01T02:30:00.000Z"}`

	fissuresA  = `[{"id":"f1","node":"Hydron (Sedna)","nodeKey":"Hydron (Sedna)","missionKey":"Defense","tier":"Lith","isHard":false,"isStorm":false}]`
	fissuresAB = `[{"id":"f1","node":"Hydron (Sedna)","nodeKey":"Hydron (Sedna)","missionKey":"Defense","tier":"Lith","isHard":false,"isStorm":false},
		{"id":"f2","node":"Ukko (Void)","nodeKey":"Ukko (Void)","missionKey":"Disruption","tier":"Axi","isHard":true,"isStorm":false}]`
	fissuresB = `[{"id":"f2","node":"Ukko (Void)","nodeKey":"Ukko (Void)","missionKey":"Disruption","tier":"Axi","isHard":true,"isStorm":false}]`
)

func newTestClient(t *testing.T, api *fakeAPI, maxFailures int) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/pc/", Poll: "@every 1h", MaxFailures: maxFailures}, logx.Nop())
	require.NoError(t, err)
	return c
}

func TestPollBaselineThenDiff(t *testing.T) {
	api := &fakeAPI{}
	api.set(cetusDay, fissuresA)
	c := newTestClient(t, api, 0)
	cetus := c.SubscribeCetus()
	fissures := c.SubscribeFissures()
	ctx := context.Background()

	require.NoError(t, c.Poll(ctx))
	assert.Empty(t, cetus.C, "baseline must not emit")
	assert.Empty(t, fissures.C, "baseline must not emit")

	api.set(cetusNight, fissuresAB)
	require.NoError(t, c.Poll(ctx))

	require.Len(t, cetus.C, 1)
	up := <-cetus.C
	assert.Equal(t, "day", up.Previous.State)
	assert.True(t, up.Current.IsNight())

	require.Len(t, fissures.C, 1)
	added := <-fissures.C
	assert.Equal(t, Added, added.Change)
	assert.Equal(t, "f2", added.Item.ID)
	assert.True(t, added.Item.IsHard)
	assert.Equal(t, "Disruption", added.Item.MissionKey)

	// Same cycle, one fissure gone.
	api.set(cetusNight, fissuresB)
	require.NoError(t, c.Poll(ctx))
	assert.Empty(t, cetus.C)
	require.Len(t, fissures.C, 1)
	removed := <-fissures.C
	assert.Equal(t, Removed, removed.Change)
	assert.Equal(t, "f1", removed.Item.ID)
}

func TestRunClosesSubscriptionsAfterMaxFailures(t *testing.T) {
	api := &fakeAPI{status: http.StatusBadGateway}
	c := newTestClient(t, api, 1)
	sub := c.SubscribeFissures()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consecutive poll failures")

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.ErrorIs(t, sub.Err(), err)
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	api := &fakeAPI{}
	api.set(cetusDay, fissuresA)
	c := newTestClient(t, api, 3)
	sub := c.SubscribeCetus()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.ErrorIs(t, sub.Err(), ErrFeedClosed)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()
	h := NewHub[int]()
	slow := h.Subscribe(1)
	fast := h.Subscribe(4)

	h.Publish(1)
	h.Publish(2)
	assert.Equal(t, uint64(1), h.Dropped())
	assert.Len(t, slow.C, 1)
	assert.Len(t, fast.C, 2)

	fast.Unsubscribe()
	fast.Unsubscribe()
	h.Publish(3)
	assert.Equal(t, uint64(2), h.Dropped())

	h.Close(nil)
	assert.ErrorIs(t, slow.Err(), ErrFeedClosed)
	late := h.Subscribe(1)
	_, ok := <-late.C
	assert.False(t, ok)
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 1, 1, 12, 0, 30, 0, time.UTC)
	tests := []struct {
		raw  string
		next time.Time
	}{
		{raw: "@every 1m", next: base.Add(time.Minute)},
		{raw: "45s", next: base.Add(45 * time.Second)},
		{raw: "00:05", next: base.Add(5 * time.Minute)},
		{raw: "*/1 * * * *", next: time.Date(2025, 1, 1, 12, 1, 0, 0, time.UTC)},
		{raw: "cron:0 13 * * *", next: time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		sch, err := ParseSchedule(tt.raw)
		require.NoError(t, err, tt.raw)
		got := sch.Next(base)
		assert.True(t, tt.next.Equal(got), "%s: got %s", tt.raw, got)
	}

	for _, bad := range []string{"", "soon", "00:75", "-5s", "cron:"} {
		_, err := ParseSchedule(bad)
		assert.Error(t, err, bad)
	}
}

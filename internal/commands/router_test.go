package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"wfnotifier/internal/market"
	"wfnotifier/internal/storage"
	kit "wfnotifier/internal/transport"
	logx "wfnotifier/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeReplier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeReplier) Reply(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeReplier) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
}

func (f *fakeAudit) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeAudit) RecentAudit(context.Context, int) ([]storage.AuditEntry, error) { return nil, nil }
func (f *fakeAudit) PutDedup(context.Context, string, time.Time) error { return nil }
func (f *fakeAudit) GetDedup(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (f *fakeAudit) Close() error { return nil }

func newTestRouter(t *testing.T, rep *fakeReplier, opts ...Option) *Router {
	t.Helper()
	return NewRouter("somestreamer", rep, logx.Nop(), opts...)
}

func TestHandleIgnoresUnknownAndChecksArity(t *testing.T) {
	t.Parallel()
	rep := &fakeReplier{}
	r := newTestRouter(t, rep)

	var calls [][]string
	require.NoError(t, r.Register(Descriptor{
		Prefix: "!pair",
		Arity:  Fixed(2),
		Invoke: func(_ context.Context, req *Request) error {
			calls = append(calls, req.Args)
			return nil
		},
	}))
	assert.Error(t, r.Register(Descriptor{Prefix: "!pair", Invoke: func(context.Context, *Request) error { return nil }}))

	ctx := context.Background()
	require.NoError(t, r.Handle(ctx, kit.Message{Sender: "a", Text: "hello there"}))
	require.NoError(t, r.Handle(ctx, kit.Message{Sender: "a", Text: "!pair one"}))
	require.NoError(t, r.Handle(ctx, kit.Message{Sender: "a", Text: "!pair a b c"}))
	require.NoError(t, r.Handle(ctx, kit.Message{Sender: "a", Text: "!pair one two \U000E0000"}))

	assert.Equal(t, []string{
		"This command should have 2 arguments!",
		"This command should have 2 arguments!",
	}, rep.lines())
	assert.Equal(t, [][]string{{"one", "two"}}, calls)
	assert.Equal(t, []string{"!pair"}, r.Prefixes())
}

func TestClientErrorRepliesAndContinues(t *testing.T) {
	t.Parallel()
	rep := &fakeReplier{}
	audit := &fakeAudit{}
	r := newTestRouter(t, rep, WithStore(audit))

	var seen []*Request
	require.NoError(t, r.Register(Descriptor{
		Prefix: "!echo",
		Arity:  Variadic(),
		Invoke: func(_ context.Context, req *Request) error {
			seen = append(seen, req)
			return Client("nope")
		},
	}))

	in := make(chan kit.Message, 2)
	in <- kit.Message{Sender: "viewer", Text: "!echo a"}
	in <- kit.Message{Sender: "viewer", Text: "!echo b"}
	close(in)

	require.NoError(t, r.Listen(context.Background(), in))
	assert.Equal(t, []string{"nope", "nope"}, rep.lines())

	require.Len(t, seen, 2)
	assert.Equal(t, "viewer", seen[0].Author)
	assert.Equal(t, "somestreamer", seen[0].Channel)
	assert.NotEmpty(t, seen[0].ReqID)
	assert.NotEqual(t, seen[0].ReqID, seen[1].ReqID)

	require.Len(t, audit.entries, 2)
	assert.Equal(t, "!echo", audit.entries[0].Prefix)
	assert.Equal(t, "viewer", audit.entries[0].Author)
	assert.False(t, audit.entries[0].OK)
	assert.Equal(t, "nope", audit.entries[0].Error)
}

func TestServerErrorStopsListening(t *testing.T) {
	t.Parallel()
	rep := &fakeReplier{}
	r := newTestRouter(t, rep)

	boom := errors.New("market down")
	require.NoError(t, r.Register(Descriptor{
		Prefix: "!fail",
		Arity:  Variadic(),
		Invoke: func(context.Context, *Request) error { return boom },
	}))

	in := make(chan kit.Message, 2)
	in <- kit.Message{Sender: "x", Text: "!fail"}
	in <- kit.Message{Sender: "x", Text: "!fail"}

	err := r.Listen(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var se *ServerError
	assert.ErrorAs(t, err, &se)
	assert.Empty(t, rep.lines())
	assert.Len(t, in, 1)
}

func TestPanicBecomesServerError(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, &fakeReplier{})
	require.NoError(t, r.Register(Descriptor{
		Prefix: "!panic",
		Arity:  Variadic(),
		Invoke: func(context.Context, *Request) error { panic("kaboom") },
	}))

	err := r.Handle(context.Background(), kit.Message{Text: "!panic"})
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestFailedClientReplyIsServerError(t *testing.T) {
	t.Parallel()
	rep := &fakeReplier{err: errors.New("socket closed")}
	r := newTestRouter(t, rep)
	require.NoError(t, r.Register(Descriptor{
		Prefix: "!one",
		Arity:  Fixed(1),
		Invoke: func(context.Context, *Request) error { return nil },
	}))

	err := r.Handle(context.Background(), kit.Message{Text: "!one"})
	var se *ServerError
	require.ErrorAs(t, err, &se)
}

func TestListenStopsOnCancel(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, &fakeReplier{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Listen(ctx, make(chan kit.Message)) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

type fakeMarket struct {
	items    []market.Item
	stats    map[string][]market.Statistic
	itemsErr error
}

func (f *fakeMarket) ListItems(context.Context) ([]market.Item, error) {
	return f.items, f.itemsErr
}

func (f *fakeMarket) Statistics48h(_ context.Context, slug string) ([]market.Statistic, error) {
	return f.stats[slug], nil
}

package transport

import (
	"context"
	"errors"
)

// Message is one inbound chat line.
type Message struct {
	Channel string
	Sender  string
	Text    string
}

// Adapter is a chat platform connection.
//
// Start begins delivering inbound messages to out and returns once the
// connection is established; delivery stops when ctx is canceled or Stop
// is called. Say is safe for concurrent use.
type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Join(ctx context.Context, channel string) error
	Say(ctx context.Context, channel, text string) error
	Stop(ctx context.Context) error
}

// Failer is implemented by adapters whose connection can fail for good after
// Start returned. Done is closed once the adapter stopped delivering; Err then
// says why, and is nil after a clean Stop.
type Failer interface {
	Done() <-chan struct{}
	Err() error
}

// ErrNotConnected is returned by Say before Start or after Stop.
var ErrNotConnected = errors.New("transport: not connected")

// SplitText cuts s into chunks of at most limit runes, preferring newline
// and then space boundaries.
func SplitText(s string, limit int) []string {
	rs := []rune(s)
	if limit <= 0 || len(rs) <= limit {
		return []string{s}
	}
	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end >= len(rs) {
			out = append(out, string(rs[start:]))
			break
		}
		cut := -1
		for i := end - 1; i > start+limit/3; i-- {
			if rs[i] == '\n' {
				cut = i
				break
			}
		}
		if cut == -1 {
			for i := end - 1; i > start+limit/3; i-- {
				if rs[i] == ' ' {
					cut = i
					break
				}
			}
		}
		if cut == -1 {
			out = append(out, string(rs[start:end]))
			start = end
			continue
		}
		out = append(out, string(rs[start:cut]))
		start = cut + 1
	}
	return out
}

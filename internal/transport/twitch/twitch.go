// Package twitch is the Twitch chat transport: IRC over WebSocket.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	rtsup "wfnotifier/internal/runtime/supervisor"
	kit "wfnotifier/internal/transport"
	logx "wfnotifier/pkg/logx"
)

const (
	DefaultURL = "wss://irc-ws.chat.twitch.tv:443"
	textLimit  = 500
)

var _ kit.Failer = (*Adapter)(nil)

var (
	ErrAuth      = errors.New("twitch: login authentication failed")
	errReconnect = errors.New("twitch: server requested reconnect")
)

// TokenSource yields a valid user access token, refreshing when needed.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Config struct {
	URL    string
	Nick   string
	Tokens TokenSource
}

type Adapter struct {
	cfg    Config
	log    logx.Logger
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	channels []string
	out      chan<- kit.Message
	sup      *rtsup.Supervisor
	group    *rtsup.Supervisor // survives Stop for Done/Err

	writeMu sync.Mutex
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("twitch: token source is nil")
	}
	if strings.TrimSpace(cfg.Nick) == "" {
		return nil, errors.New("twitch: nick is empty")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	cfg.Nick = strings.ToLower(strings.TrimSpace(cfg.Nick))
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{
		cfg:    cfg,
		log:    log,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Start connects, authenticates and keeps a reader running. A dropped
// connection is re-dialed under the restart loop and channels are rejoined.
// A rejected login ends the loop; see Done and Err.
func (a *Adapter) Start(ctx context.Context, out chan<- kit.Message) error {
	a.mu.Lock()
	if a.sup != nil {
		a.mu.Unlock()
		return nil
	}
	a.out = out
	a.mu.Unlock()

	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}

	sup := rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "twitch"))))
	a.mu.Lock()
	a.sup, a.group = sup, sup
	a.mu.Unlock()

	first := conn
	sup.GoRestart("twitch.read", func(c context.Context) error {
		cn := first
		first = nil
		if cn == nil {
			var err error
			if cn, err = a.connect(c); err != nil {
				return err
			}
		}
		return a.read(c, cn)
	}, rtsup.WithRestartBackoff(time.Second, 30*time.Second))
	return nil
}

func (a *Adapter) connect(ctx context.Context) (*websocket.Conn, error) {
	token, err := a.cfg.Tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("twitch token: %w", err)
	}
	conn, _, err := a.dialer.DialContext(ctx, a.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("twitch dial: %w", err)
	}
	a.mu.Lock()
	a.conn = conn
	channels := append([]string(nil), a.channels...)
	a.mu.Unlock()

	lines := []string{
		"PASS oauth:" + strings.TrimPrefix(token, "oauth:"),
		"NICK " + a.cfg.Nick,
	}
	for _, ch := range channels {
		lines = append(lines, "JOIN "+ch)
	}
	for _, l := range lines {
		if err := a.write(ctx, conn, l); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	a.log.Info("connected", logx.String("url", a.cfg.URL), logx.Int("channels", len(channels)))
	return conn, nil
}

func (a *Adapter) read(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer a.drop(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("twitch read: %w", err)
		}
		for _, raw := range strings.Split(string(data), "\r\n") {
			l, ok := parseLine(raw)
			if !ok {
				continue
			}
			if err := a.handle(ctx, conn, l); err != nil {
				return err
			}
		}
	}
}

func (a *Adapter) handle(ctx context.Context, conn *websocket.Conn, l line) error {
	switch l.Command {
	case "PING":
		return a.write(ctx, conn, "PONG :"+l.Trailing)
	case "RECONNECT":
		return errReconnect
	case "NOTICE":
		if strings.Contains(strings.ToLower(l.Trailing), "authentication failed") ||
			strings.Contains(strings.ToLower(l.Trailing), "improperly formatted auth") {
			return rtsup.Permanent(ErrAuth)
		}
	case "PRIVMSG":
		if len(l.Params) == 0 {
			return nil
		}
		a.mu.Lock()
		out := a.out
		a.mu.Unlock()
		if out == nil {
			return nil
		}
		msg := kit.Message{
			Channel: strings.TrimPrefix(l.Params[0], "#"),
			Sender:  l.Nick(),
			Text:    l.Trailing,
		}
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}
	return nil
}

func (a *Adapter) drop(conn *websocket.Conn) {
	_ = conn.Close()
	a.mu.Lock()
	if a.conn == conn {
		a.conn = nil
	}
	a.mu.Unlock()
}

func (a *Adapter) current() *websocket.Conn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn
}

func (a *Adapter) write(ctx context.Context, conn *websocket.Conn, s string) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	deadline := time.Now().Add(10 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, []byte(s+"\r\n"))
}

// Join joins the channel now and after every reconnect.
func (a *Adapter) Join(ctx context.Context, channel string) error {
	ch := channelName(channel)
	a.mu.Lock()
	known := false
	for _, c := range a.channels {
		if c == ch {
			known = true
			break
		}
	}
	if !known {
		a.channels = append(a.channels, ch)
	}
	a.mu.Unlock()

	conn := a.current()
	if conn == nil {
		return kit.ErrNotConnected
	}
	return a.write(ctx, conn, "JOIN "+ch)
}

func (a *Adapter) Say(ctx context.Context, channel, text string) error {
	conn := a.current()
	if conn == nil {
		return kit.ErrNotConnected
	}
	ch := channelName(channel)
	for _, chunk := range kit.SplitText(sanitize(text), textLimit) {
		if err := a.write(ctx, conn, "PRIVMSG "+ch+" :"+chunk); err != nil {
			return fmt.Errorf("twitch say: %w", err)
		}
	}
	return nil
}

// Done is closed once the read loop has ended for good.
func (a *Adapter) Done() <-chan struct{} {
	a.mu.Lock()
	g := a.group
	a.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Done()
}

// Err is ErrAuth (wrapped) after a rejected login, nil otherwise.
func (a *Adapter) Err() error {
	a.mu.Lock()
	g := a.group
	a.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Err()
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	sup := a.sup
	a.sup = nil
	conn := a.conn
	a.mu.Unlock()
	if sup == nil {
		return nil
	}
	if conn != nil {
		a.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		a.writeMu.Unlock()
	}
	// A rejected login is reported through Err, not as a shutdown failure.
	if err := sup.Stop(ctx); err != nil && !errors.Is(err, ErrAuth) {
		return err
	}
	return nil
}

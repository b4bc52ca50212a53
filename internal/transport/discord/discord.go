// Package discord is the Discord chat transport (discordgo gateway session).
//
// A channel is a Discord channel id.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	kit "wfnotifier/internal/transport"
	logx "wfnotifier/pkg/logx"
)

const textLimit = 2000

type Adapter struct {
	session *discordgo.Session
	log     logx.Logger

	mu      sync.Mutex
	out     chan<- kit.Message
	ctx     context.Context
	botID   string
	joined  map[string]struct{}
	running bool
}

func New(token string, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("discord token is empty")
	}
	session, err := discordgo.New("Bot " + strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("discordgo session: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{session: session, log: log, joined: map[string]struct{}{}}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	session.AddHandler(a.onMessage)
	return a, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Message) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.out = out
	a.ctx = ctx
	a.mu.Unlock()

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	a.mu.Lock()
	a.running = true
	if a.session.State != nil && a.session.State.User != nil {
		a.botID = a.session.State.User.ID
		a.log.Info("discord bot connected", logx.String("user", a.session.State.User.Username))
	}
	a.mu.Unlock()
	return nil
}

// Join checks the channel exists and starts forwarding its messages.
func (a *Adapter) Join(ctx context.Context, channel string) error {
	if _, err := a.session.Channel(channel, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord join %s: %w", channel, err)
	}
	a.mu.Lock()
	a.joined[channel] = struct{}{}
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Say(ctx context.Context, channel, text string) error {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()
	if !running {
		return kit.ErrNotConnected
	}
	for _, chunk := range kit.SplitText(text, textLimit) {
		if _, err := a.session.ChannelMessageSend(channel, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send to discord: %w", err)
		}
	}
	return nil
}

func (a *Adapter) Stop(context.Context) error {
	a.mu.Lock()
	wasRunning := a.running
	a.running = false
	a.out = nil
	a.mu.Unlock()
	if !wasRunning {
		return nil
	}
	return a.session.Close()
}

func (a *Adapter) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Content == "" {
		return
	}
	a.mu.Lock()
	out, ctx, botID := a.out, a.ctx, a.botID
	_, joined := a.joined[m.ChannelID]
	a.mu.Unlock()
	if out == nil || !joined || m.Author.Bot || m.Author.ID == botID {
		return
	}

	author := m.Author.GlobalName
	if author == "" {
		author = m.Author.Username
	}
	select {
	case out <- kit.Message{Channel: m.ChannelID, Sender: author, Text: m.Content}:
	case <-ctx.Done():
	}
}

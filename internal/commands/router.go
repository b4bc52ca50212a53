// Package commands implements the chat command router and the built-in
// commands.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"wfnotifier/internal/storage"
	kit "wfnotifier/internal/transport"
	logx "wfnotifier/pkg/logx"
)

// tagChar is appended by chat add-ons to get around duplicate message checks.
const tagChar = "\U000E0000"

type Handler func(ctx context.Context, req *Request) error

type Descriptor struct {
	Prefix string // "!avg"
	Arity  Arity
	Invoke Handler
}

// Replier sends a reply to the channel synchronously.
// *notifier.Service implements it.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

type Request struct {
	Author  string
	Args    []string
	Channel string
	ReqID   string
	Logger  logx.Logger

	prefix  string
	replier Replier
}

// Reply sends text to the channel the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	if r.replier == nil {
		return fmt.Errorf("request has no replier")
	}
	return r.replier.Reply(ctx, text)
}

type Router struct {
	channel string
	replier Replier
	log     logx.Logger
	store   storage.Store
	timeout time.Duration

	cmds map[string]Descriptor
	mw   []Middleware
}

type Option func(*Router)

// WithStore audits every invocation to s.
func WithStore(s storage.Store) Option { return func(r *Router) { r.store = s } }

// WithTimeout bounds a single invocation. 0 disables the bound.
func WithTimeout(d time.Duration) Option { return func(r *Router) { r.timeout = d } }

func NewRouter(channel string, replier Replier, log logx.Logger, opts ...Option) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		channel: channel,
		replier: replier,
		log:     log,
		timeout: 30 * time.Second,
		cmds:    map[string]Descriptor{},
	}
	for _, o := range opts {
		o(r)
	}
	r.mw = []Middleware{
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWAudit(r.store, r.log),
		MWTimeout(r.timeout),
	}
	return r
}

func (r *Router) Register(d Descriptor) error {
	if d.Prefix == "" || d.Invoke == nil {
		return fmt.Errorf("command %q: prefix and handler are required", d.Prefix)
	}
	if _, dup := r.cmds[d.Prefix]; dup {
		return fmt.Errorf("command %q already registered", d.Prefix)
	}
	r.cmds[d.Prefix] = d
	return nil
}

// Prefixes lists the registered command prefixes, sorted.
func (r *Router) Prefixes() []string {
	out := make([]string, 0, len(r.cmds))
	for p := range r.cmds {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Listen handles inbound lines one at a time until ctx is done, the stream
// closes, or a command fails with a server error.
func (r *Router) Listen(ctx context.Context, in <-chan kit.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-in:
			if !ok {
				r.log.Info("inbound stream closed")
				return nil
			}
			if err := r.Handle(ctx, m); err != nil {
				return err
			}
		}
	}
}

// Handle dispatches one line. Only server errors are returned.
func (r *Router) Handle(ctx context.Context, m kit.Message) error {
	text := strings.TrimRight(strings.ReplaceAll(m.Text, tagChar, ""), " ")
	parts := strings.Split(text, " ")
	d, ok := r.cmds[parts[0]]
	if !ok {
		return nil
	}
	args := parts[1:]

	if err := d.Arity.Check(len(args)); err != nil {
		return r.replyClient(ctx, err.Error())
	}

	reqID := uuid.NewString()
	req := &Request{
		Author:  m.Sender,
		Args:    args,
		Channel: r.channel,
		ReqID:   reqID,
		Logger: r.log.With(
			logx.String("cmd", d.Prefix),
			logx.String("author", m.Sender),
			logx.String("req_id", reqID),
		),
		prefix:  d.Prefix,
		replier: r.replier,
	}

	msg, serr := classify(Chain(d.Invoke, r.mw...)(ctx, req))
	if serr != nil {
		req.Logger.Error("command failed", logx.Err(serr))
		return fmt.Errorf("%s: %w", d.Prefix, serr)
	}
	if msg != "" {
		return r.replyClient(ctx, msg)
	}
	return nil
}

// A reply that cannot be delivered means the transport is broken.
func (r *Router) replyClient(ctx context.Context, text string) error {
	if err := r.replier.Reply(ctx, text); err != nil {
		return Server(fmt.Errorf("send reply: %w", err))
	}
	return nil
}

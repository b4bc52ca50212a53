package worldstate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "wfnotifier/pkg/logx"
)

const DefaultBaseURL = "https://api.warframestat.us/pc"

type Config struct {
	BaseURL string
	// Poll is parsed with ParseSchedule; empty means once a minute.
	Poll    string
	Timeout time.Duration
	// MaxFailures consecutive failed polls close every subscription.
	// 0 disables the limit.
	MaxFailures int
	// Buffer is the per-subscription channel size.
	Buffer int
}

// Client polls the world state on a schedule and diffs consecutive snapshots.
//
// The first successful poll is a baseline and emits nothing. Cetus emits
// when the cycle id changes; fissures emit Added/Removed by id.
type Client struct {
	cfg   Config
	sched cron.Schedule
	http  *http.Client
	log   logx.Logger

	cetus    *Hub[Update[Cetus]]
	fissures *Hub[NestedUpdate[Fissure]]

	mu           sync.Mutex
	lastCetus    *Cetus
	lastFissures map[string]Fissure
	failures     int
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Poll == "" {
		cfg.Poll = "@every 1m"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 32
	}
	sched, err := ParseSchedule(cfg.Poll)
	if err != nil {
		return nil, fmt.Errorf("worldstate.poll: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:      cfg,
		sched:    sched,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log,
		cetus:    NewHub[Update[Cetus]](),
		fissures: NewHub[NestedUpdate[Fissure]](),
	}, nil
}

// SubscribeCetus delivers cycle changes until the client stops.
func (c *Client) SubscribeCetus() *Subscription[Update[Cetus]] {
	return c.cetus.Subscribe(c.cfg.Buffer)
}

// SubscribeFissures delivers fissure additions and removals until the client stops.
func (c *Client) SubscribeFissures() *Subscription[NestedUpdate[Fissure]] {
	return c.fissures.Subscribe(c.cfg.Buffer)
}

// Run polls once immediately and then on the schedule until ctx is done or
// the failure limit is hit. Subscriptions are closed on return.
func (c *Client) Run(ctx context.Context) error {
	fatal := make(chan error, 1)
	poll := func() {
		if err := c.Poll(ctx); err != nil {
			select {
			case fatal <- err:
			default:
			}
		}
	}

	cr := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	cr.Schedule(c.sched, cron.FuncJob(poll))

	poll()
	cr.Start()
	c.log.Info("worldstate polling", logx.String("base_url", c.cfg.BaseURL), logx.String("poll", c.cfg.Poll))

	var err error
	select {
	case <-ctx.Done():
	case err = <-fatal:
	}
	<-cr.Stop().Done()

	c.cetus.Close(err)
	c.fissures.Close(err)
	if d := c.cetus.Dropped() + c.fissures.Dropped(); d > 0 {
		c.log.Warn("worldstate updates dropped by slow subscribers", logx.Uint64("count", d))
	}
	return err
}

// Poll fetches both endpoints once and publishes the differences.
// It returns an error only when the consecutive failure limit is reached.
func (c *Client) Poll(ctx context.Context) error {
	cetus, err := fetch[Cetus](ctx, c, "/cetusCycle")
	var fissures []Fissure
	if err == nil {
		fissures, err = fetch[[]Fissure](ctx, c, "/fissures")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.failures++
		c.log.Warn("worldstate poll failed", logx.Int("consecutive", c.failures), logx.Err(err))
		if c.cfg.MaxFailures > 0 && c.failures >= c.cfg.MaxFailures {
			return fmt.Errorf("worldstate: %d consecutive poll failures: %w", c.failures, err)
		}
		return nil
	}
	c.failures = 0
	c.apply(cetus, fissures)
	return nil
}

func (c *Client) apply(cetus Cetus, fissures []Fissure) {
	current := make(map[string]Fissure, len(fissures))
	for _, f := range fissures {
		current[f.ID] = f
	}

	if c.lastCetus == nil {
		c.lastCetus, c.lastFissures = &cetus, current
		c.log.Debug("worldstate baseline", logx.String("cetus", cetus.State), logx.Int("fissures", len(current)))
		return
	}

	if prev := *c.lastCetus; prev.ID != cetus.ID {
		c.cetus.Publish(Update[Cetus]{Previous: prev, Current: cetus})
	}
	c.lastCetus = &cetus

	// Keep API order for additions.
	for _, f := range fissures {
		if _, ok := c.lastFissures[f.ID]; !ok {
			c.fissures.Publish(NestedUpdate[Fissure]{Item: f, Change: Added})
		}
	}
	for id, f := range c.lastFissures {
		if _, ok := current[id]; !ok {
			c.fissures.Publish(NestedUpdate[Fissure]{Item: f, Change: Removed})
		}
	}
	c.lastFissures = current
}

func fetch[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?language=en", nil)
	if err != nil {
		return out, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return out, fmt.Errorf("GET %s: http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

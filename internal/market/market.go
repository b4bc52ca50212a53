// Package market is a small warframe.market API client: the tradable item
// list and per-item closed statistics.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	logx "wfnotifier/pkg/logx"
)

const (
	DefaultBaseURL = "https://api.warframe.market"
	userAgent      = "wfnotifier (+https://github.com/wfnotifier)"
)

// Item is a tradable item.
type Item struct {
	Slug string
	Name string
}

// Statistic is one bucket of the trailing 48 hour closed-order statistics.
type Statistic struct {
	Datetime    time.Time `json:"datetime"`
	Volume      uint32    `json:"volume"`
	ClosedPrice int64     `json:"closed_price"`
	AvgPrice    float64   `json:"avg_price"`
	MovingAvg   *float64  `json:"moving_avg"`
	ModRank     *uint8    `json:"mod_rank"`
}

type Config struct {
	BaseURL    string
	Language   string
	ItemsTTL   time.Duration
	RatePerSec int
	Timeout    time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
	now     func() time.Time

	sf        singleflight.Group
	mu        sync.Mutex
	items     []Item
	fetchedAt time.Time
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.ItemsTTL <= 0 {
		cfg.ItemsTTL = 6 * time.Hour
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		log:     log,
		now:     time.Now,
	}
}

type itemI18n struct {
	Name string `json:"name"`
}

type itemsResponse struct {
	Data []struct {
		Slug string              `json:"slug"`
		I18n map[string]itemI18n `json:"i18n"`
	} `json:"data"`
}

// ListItems returns every tradable item. The list is cached for ItemsTTL and
// concurrent refreshes share one request.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	c.mu.Lock()
	if c.items != nil && c.now().Sub(c.fetchedAt) < c.cfg.ItemsTTL {
		items := c.items
		c.mu.Unlock()
		return items, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sf.Do("items", func() (any, error) {
		// A flight that finished just before this one may have filled the cache.
		c.mu.Lock()
		if c.items != nil && c.now().Sub(c.fetchedAt) < c.cfg.ItemsTTL {
			items := c.items
			c.mu.Unlock()
			return items, nil
		}
		c.mu.Unlock()

		var resp itemsResponse
		if err := c.get(ctx, "/v2/items", &resp); err != nil {
			return nil, err
		}
		items := make([]Item, 0, len(resp.Data))
		for _, d := range resp.Data {
			tr, ok := d.I18n[c.cfg.Language]
			if !ok {
				tr = d.I18n["en"]
			}
			if d.Slug == "" || tr.Name == "" {
				continue
			}
			items = append(items, Item{Slug: d.Slug, Name: tr.Name})
		}
		c.mu.Lock()
		c.items, c.fetchedAt = items, c.now()
		c.mu.Unlock()
		c.log.Debug("market items refreshed", logx.Int("count", len(items)))
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Item), nil
}

type statisticsResponse struct {
	Payload struct {
		StatisticsClosed struct {
			Hours48 []Statistic `json:"48hours"`
		} `json:"statistics_closed"`
	} `json:"payload"`
}

// Statistics48h returns the closed statistics for slug, oldest first.
func (c *Client) Statistics48h(ctx context.Context, slug string) ([]Statistic, error) {
	var resp statisticsResponse
	if err := c.get(ctx, "/v1/items/"+url.PathEscape(slug)+"/statistics", &resp); err != nil {
		return nil, err
	}
	return resp.Payload.StatisticsClosed.Hours48, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Language", c.cfg.Language)
	req.Header.Set("Platform", "pc")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Package credentials stores the Twitch user access token and keeps it fresh.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	logx "wfnotifier/pkg/logx"
)

const (
	DefaultPath     = "./.credentials.json"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

	// ExpiryLayout is the "Expires At" format printed by the Twitch token generator.
	ExpiryLayout = "2006-01-02 15:04:05.999999999 -0700 MST"

	refreshSkew = 5 * time.Minute
)

var ErrMissing = errors.New("credentials not initialised; run `wfnotifier init`")

// Token is the persisted credential document.
type Token struct {
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// ExpiresWithin reports whether the token expires before now+d.
// A token without an expiry never expires.
func (t Token) ExpiresWithin(now time.Time, d time.Duration) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now.Add(d))
}

type Store struct {
	path     string
	tokenURL string
	http     *http.Client
	log      logx.Logger
	now      func() time.Time

	mu  sync.Mutex
	tok *Token

	refreshMu sync.Mutex
}

type Option func(*Store)

func WithHTTPClient(c *http.Client) Option { return func(s *Store) { s.http = c } }
func WithTokenURL(u string) Option         { return func(s *Store) { s.tokenURL = u } }
func WithLogger(l logx.Logger) Option      { return func(s *Store) { s.log = l } }
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(path string, opts ...Option) *Store {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{
		path:     path,
		tokenURL: DefaultTokenURL,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      logx.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Path() string { return s.path }

// Load reads the credential file and caches it.
func (s *Store) Load() (Token, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Token{}, fmt.Errorf("read %s: %w", s.path, ErrMissing)
	}
	if err != nil {
		return Token{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return Token{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.tok = &t
	s.mu.Unlock()
	return t, nil
}

// Update persists t and makes it current.
func (s *Store) Update(t Token) error {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.mu.Lock()
	s.tok = &t
	s.mu.Unlock()
	return nil
}

// Current returns the cached token, loading it on first use.
func (s *Store) Current() (Token, error) {
	s.mu.Lock()
	tok := s.tok
	s.mu.Unlock()
	if tok != nil {
		return *tok, nil
	}
	return s.Load()
}

// AccessToken returns a usable access token, refreshing it first when it
// expires within five minutes.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	t, err := s.Current()
	if err != nil {
		return "", err
	}
	if !t.ExpiresWithin(s.now(), refreshSkew) {
		return t.AccessToken, nil
	}
	t, err = s.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh exchanges the refresh token for a new token pair and persists it.
func (s *Store) Refresh(ctx context.Context) (Token, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	t, err := s.Current()
	if err != nil {
		return Token{}, err
	}
	// Another caller may have refreshed while we waited.
	if !t.ExpiresWithin(s.now(), refreshSkew) {
		return t, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {t.RefreshToken},
		"client_id":     {t.ClientID},
		"client_secret": {t.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode/100 != 2 {
		return Token{}, fmt.Errorf("refresh token: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var rr refreshResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return Token{}, fmt.Errorf("refresh token: %w", err)
	}
	if rr.AccessToken == "" {
		return Token{}, errors.New("refresh token: empty access_token in response")
	}

	now := s.now().UTC()
	t.AccessToken = rr.AccessToken
	if rr.RefreshToken != "" {
		t.RefreshToken = rr.RefreshToken
	}
	t.CreatedAt = now
	t.ExpiresAt = nil
	if rr.ExpiresIn > 0 {
		exp := now.Add(time.Duration(rr.ExpiresIn) * time.Second)
		t.ExpiresAt = &exp
	}
	if err := s.Update(t); err != nil {
		return Token{}, fmt.Errorf("persist refreshed token: %w", err)
	}
	s.log.Info("twitch token refreshed", logx.Any("expires_at", t.ExpiresAt))
	return t, nil
}

var initFileRe = regexp.MustCompile(`User Access Token:\s+(?P<access>\w+)\s*[\r\n]+.*?Refresh Token:\s+(?P<refresh>\w+)\s*[\r\n]+.*?Expires At:\s+(?P<expires>.*)`)

// ParseInitFile extracts the token pair and expiry from the output of the
// Twitch token generator.
func ParseInitFile(text string) (access, refresh string, expiresAt time.Time, err error) {
	m := initFileRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", time.Time{}, errors.New("failed to parse init file")
	}
	access = m[initFileRe.SubexpIndex("access")]
	refresh = m[initFileRe.SubexpIndex("refresh")]
	expiresAt, err = ParseExpiry(m[initFileRe.SubexpIndex("expires")])
	if err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, expiresAt, nil
}

// ParseExpiry parses an "Expires At" value and converts it to UTC.
func ParseExpiry(s string) (time.Time, error) {
	t, err := time.Parse(ExpiryLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expires_at: %w", err)
	}
	return t.UTC(), nil
}

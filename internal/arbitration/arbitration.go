// Package arbitration holds the arbitration rotation and the node tier table.
// Both are loaded once at startup and read-only afterwards.
package arbitration

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// ErrExhausted is returned when the schedule has no further event of the
// requested tier.
var ErrExhausted = errors.New("arbitration schedule exhausted")

type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
	TierF Tier = "F"
)

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TierS, TierA, TierB, TierC, TierD, TierF:
		return t, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

//go:embed tiers.yaml
var defaultTiers []byte

// Tiers maps node names to their tier.
type Tiers struct {
	byNode map[string]Tier
}

// DefaultTiers returns the compiled-in tier table.
func DefaultTiers() (*Tiers, error) {
	return ParseTiers(defaultTiers)
}

// LoadTiers reads a tier table from a YAML file.
func LoadTiers(path string) (*Tiers, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := ParseTiers(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTiers decodes a YAML mapping of tier -> node names.
func ParseTiers(b []byte) (*Tiers, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	t := &Tiers{byNode: map[string]Tier{}}
	for k, nodes := range raw {
		tier, err := ParseTier(k)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			n = strings.TrimSpace(n)
			if prev, ok := t.byNode[n]; ok && prev != tier {
				return nil, fmt.Errorf("node %q listed as both %s and %s", n, prev, tier)
			}
			t.byNode[n] = tier
		}
	}
	return t, nil
}

// TierOf looks a node up by name ("Hydron").
func (t *Tiers) TierOf(node string) (Tier, bool) {
	tier, ok := t.byNode[strings.TrimSpace(node)]
	return tier, ok
}

func (t *Tiers) Len() int { return len(t.byNode) }

// Event is one scheduled arbitration.
type Event struct {
	Activation time.Time
	Label      string // "Hydron (Sedna)"
	Node       string
	Planet     string
	Tier       Tier // empty when the node is not ranked
}

// Schedule is the precomputed rotation, sorted by activation.
type Schedule struct {
	events []Event
}

// LoadSchedule reads the rotation CSV from path.
func LoadSchedule(path string, tiers *Tiers) (*Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ParseSchedule(f, tiers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseSchedule reads "unix_seconds,Node (Planet)" rows. A non-numeric
// first row is treated as a header.
func ParseSchedule(r io.Reader, tiers *Tiers) (*Schedule, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var events []Event
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		sec, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: bad timestamp %q", line, rec[0])
		}
		label := strings.TrimSpace(rec[1])
		ev := Event{
			Activation: time.Unix(sec, 0).UTC(),
			Label:      label,
			Node:       NodeName(label),
			Planet:     PlanetName(label),
		}
		if tiers != nil {
			ev.Tier, _ = tiers.TierOf(ev.Node)
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Activation.Before(events[j].Activation) })
	return &Schedule{events: events}, nil
}

func (s *Schedule) Len() int { return len(s.events) }

// UpcomingByTier returns the first event activating strictly after now
// whose node has the given tier.
func (s *Schedule) UpcomingByTier(tier Tier, now time.Time) (Event, error) {
	i := sort.Search(len(s.events), func(i int) bool { return s.events[i].Activation.After(now) })
	for ; i < len(s.events); i++ {
		if s.events[i].Tier == tier {
			return s.events[i], nil
		}
	}
	return Event{}, ErrExhausted
}

// NodeName strips a trailing " (Planet)" suffix: "Nu-gua Mines (Neptune)"
// becomes "Nu-gua Mines".
func NodeName(label string) string {
	label = strings.TrimSpace(label)
	if strings.HasSuffix(label, ")") {
		if i := strings.LastIndex(label, " ("); i > 0 {
			return label[:i]
		}
	}
	return label
}

// PlanetName returns the text inside the trailing parentheses, or "".
func PlanetName(label string) string {
	label = strings.TrimSpace(label)
	if !strings.HasSuffix(label, ")") {
		return ""
	}
	i := strings.LastIndex(label, " (")
	if i < 0 {
		return ""
	}
	return label[i+2 : len(label)-1]
}

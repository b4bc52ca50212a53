package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"wfnotifier/internal/market"
	ph "wfnotifier/internal/placeholder"
)

const AveragePrefix = "!avg"

// MarketSource is the part of the market client the average command needs.
type MarketSource interface {
	ListItems(ctx context.Context) ([]market.Item, error)
	Statistics48h(ctx context.Context, slug string) ([]market.Statistic, error)
}

// Average builds the "!avg <item> [|| filters]" command, e.g.
// "!avg Arcane Energize || r5". format is the reply
// template captured at registration.
func Average(src MarketSource, format string) Descriptor {
	return Descriptor{
		Prefix: AveragePrefix,
		Arity:  Variadic(),
		Invoke: func(ctx context.Context, req *Request) error {
			return runAverage(ctx, req, src, format)
		},
	}
}

func runAverage(ctx context.Context, req *Request, src MarketSource, format string) error {
	query, rawFilters, hasFilters := strings.Cut(strings.Join(req.Args, " "), "||")
	query = strings.TrimSpace(query)

	var filters *Filters
	if hasFilters {
		f, err := ParseFilters(rawFilters)
		if err != nil {
			return err
		}
		filters = &f
	}

	items, err := src.ListItems(ctx)
	if err != nil {
		return Server(fmt.Errorf("fetch items: %w", err))
	}
	item, ok, err := ResolveAsync(ctx, query, items)
	if err != nil {
		return Server(err)
	}
	if !ok {
		return Client("Couldn't find the item you're looking for!")
	}

	stats, err := src.Statistics48h(ctx, item.Slug)
	if err != nil {
		return Server(fmt.Errorf("fetch statistics for %s: %w", item.Slug, err))
	}
	if len(stats) == 0 {
		return Clientf("%s hasn't had any sales in the last 48 hours!", item.Name)
	}

	// Only a rank filter, explicit or the rank 0 default, can empty the view.
	view := selectStatistics(stats, filters)
	if len(view) == 0 {
		return Clientf("%s hasn't had any sales in the last 48 hours! (filters applied)", item.Name)
	}

	latest := view[0]
	var sold uint64
	for _, s := range view {
		sold += uint64(s.Volume)
	}
	moving := ""
	if latest.MovingAvg != nil {
		moving = formatFloat(*latest.MovingAvg)
	}

	text := ph.Render(format,
		ph.Average(formatFloat(latest.AvgPrice)),
		ph.MovingAverage(moving),
		ph.ItemName(item.Name),
		ph.AmountSold(strconv.FormatUint(sold, 10)),
	)
	text = ph.Render(text, ph.Author(req.Author), ph.Channel(req.Channel))
	return req.Reply(ctx, text)
}

// selectStatistics returns the newest-first view of stats. When the item has
// mod ranks (decided by the first record) only the requested rank is kept,
// rank 0 without a filter. Records without a rank never match.
func selectStatistics(stats []market.Statistic, filters *Filters) []market.Statistic {
	hasModRank := stats[0].ModRank != nil
	var rank uint8
	if filters != nil && filters.ModRank != nil {
		rank = *filters.ModRank
	}

	out := make([]market.Statistic, 0, len(stats))
	for i := len(stats) - 1; i >= 0; i-- {
		s := stats[i]
		if hasModRank && (s.ModRank == nil || *s.ModRank != rank) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

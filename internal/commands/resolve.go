package commands

import (
	"context"

	"github.com/adrg/strutil/metrics"

	"wfnotifier/internal/market"
)

// Resolve returns the candidate whose name is most similar to query by
// Jaro-Winkler. Comparison is case sensitive and the first candidate wins a
// tie. It reports false only when there are no candidates.
func Resolve(query string, candidates []market.Item) (market.Item, bool) {
	if len(candidates) == 0 {
		return market.Item{}, false
	}
	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = true

	best, bestScore := 0, -1.0
	for i, c := range candidates {
		if s := jw.Compare(query, c.Name); s > bestScore {
			best, bestScore = i, s
		}
	}
	return candidates[best], true
}

type resolved struct {
	item market.Item
	ok   bool
}

// ResolveAsync runs Resolve on its own goroutine and waits for it or ctx.
func ResolveAsync(ctx context.Context, query string, candidates []market.Item) (market.Item, bool, error) {
	ch := make(chan resolved, 1)
	go func() {
		it, ok := Resolve(query, candidates)
		ch <- resolved{item: it, ok: ok}
	}()
	select {
	case <-ctx.Done():
		return market.Item{}, false, ctx.Err()
	case r := <-ch:
		return r.item, r.ok, nil
	}
}

package listener

import (
	"context"

	"wfnotifier/internal/arbitration"
	ph "wfnotifier/internal/placeholder"
	"wfnotifier/internal/worldstate"
)

type fissureUpdate = worldstate.NestedUpdate[worldstate.Fissure]

// MetaRelics announces new defense fissures on S or A tier arbitration
// nodes.
type MetaRelics struct {
	base
	tiers TierLookup
	sub   *worldstate.Subscription[fissureUpdate]
}

func NewMetaRelics(deps Deps, format string) *MetaRelics {
	return &MetaRelics{
		base:  newBase(NameMetaRelics, format, deps),
		tiers: deps.Tiers,
		sub:   deps.World.SubscribeFissures(),
	}
}

func (l *MetaRelics) Run(ctx context.Context) error {
	return consume(ctx, l.sub, func(ctx context.Context, u fissureUpdate) error {
		f := u.Item
		if u.Change != worldstate.Added || f.MissionKey != "Defense" {
			return nil
		}
		tier, ok := l.tiers.TierOf(arbitration.NodeName(f.Node))
		if !ok || (tier != arbitration.TierS && tier != arbitration.TierA) {
			return nil
		}
		text := l.render(ph.Node(f.Node), ph.Difficulty(f.IsHard))
		return l.announce(ctx, text, "fissure:"+f.ID)
	})
}

// SteelPathDisruption announces new Steel Path disruption fissures,
// ignoring Requiem ones.
type SteelPathDisruption struct {
	base
	sub *worldstate.Subscription[fissureUpdate]
}

func NewSteelPathDisruption(deps Deps, format string) *SteelPathDisruption {
	return &SteelPathDisruption{
		base: newBase(NameSteelPathDisruption, format, deps),
		sub:  deps.World.SubscribeFissures(),
	}
}

func (l *SteelPathDisruption) Run(ctx context.Context) error {
	return consume(ctx, l.sub, func(ctx context.Context, u fissureUpdate) error {
		f := u.Item
		if u.Change != worldstate.Added || f.Tier == "Requiem" || f.MissionKey != "Disruption" || !f.IsHard {
			return nil
		}
		return l.announce(ctx, l.render(ph.Node(f.Node)), "fissure:"+f.ID)
	})
}

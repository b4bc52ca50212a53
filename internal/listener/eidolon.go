package listener

import (
	"context"

	"wfnotifier/internal/worldstate"
)

// EidolonHunts announces the start of each Cetus night.
type EidolonHunts struct {
	base
	sub *worldstate.Subscription[worldstate.Update[worldstate.Cetus]]
}

func NewEidolonHunts(deps Deps, format string) *EidolonHunts {
	return &EidolonHunts{
		base: newBase(NameEidolonHunts, format, deps),
		sub:  deps.World.SubscribeCetus(),
	}
}

func (l *EidolonHunts) Run(ctx context.Context) error {
	return consume(ctx, l.sub, func(ctx context.Context, u worldstate.Update[worldstate.Cetus]) error {
		if !u.Current.IsNight() {
			return nil
		}
		return l.announce(ctx, l.render(), "eidolon:"+u.Current.ID)
	})
}

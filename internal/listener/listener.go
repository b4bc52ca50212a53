// Package listener turns world state changes and the arbitration rotation
// into chat announcements.
//
// Each enabled listener runs as one supervised task. A listener ends only
// when its feed closes, the context is canceled or the notifier stops;
// failed sends are logged and skipped.
package listener

import (
	"context"
	"errors"
	"time"

	"wfnotifier/internal/arbitration"
	"wfnotifier/internal/config"
	"wfnotifier/internal/notifier"
	ph "wfnotifier/internal/placeholder"
	rtsup "wfnotifier/internal/runtime/supervisor"
	"wfnotifier/internal/worldstate"
	logx "wfnotifier/pkg/logx"
)

type Listener interface {
	Name() string
	Run(ctx context.Context) error
}

// Sender queues an announcement. *notifier.Service implements it.
type Sender interface {
	Say(ctx context.Context, msg notifier.Outgoing) error
}

// WorldFeed is implemented by *worldstate.Client.
type WorldFeed interface {
	SubscribeCetus() *worldstate.Subscription[worldstate.Update[worldstate.Cetus]]
	SubscribeFissures() *worldstate.Subscription[worldstate.NestedUpdate[worldstate.Fissure]]
}

// ArbitrationSource is implemented by *arbitration.Schedule.
type ArbitrationSource interface {
	UpcomingByTier(tier arbitration.Tier, now time.Time) (arbitration.Event, error)
}

// TierLookup is implemented by *arbitration.Tiers.
type TierLookup interface {
	TierOf(node string) (arbitration.Tier, bool)
}

type Deps struct {
	Sender       Sender
	Channel      string
	World        WorldFeed
	Arbitrations ArbitrationSource
	Tiers        TierLookup
	Logger       logx.Logger
}

const (
	NameEidolonHunts        = "listener.eidolon_hunts"
	NameSTierArbitrations   = "listener.s_tier_arbitrations"
	NameMetaRelics          = "listener.meta_relics"
	NameSteelPathDisruption = "listener.steel_path_disruption_fissures"
)

// Build creates the enabled listeners. World listeners subscribe right
// away so nothing published between Build and Run is missed.
func Build(cfg config.Listeners, deps Deps) []Listener {
	log := deps.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	var out []Listener
	if cfg.EidolonHunts.Enabled {
		if deps.World == nil {
			log.Warn("eidolon hunts enabled without a world feed")
		} else {
			out = append(out, NewEidolonHunts(deps, cfg.EidolonHunts.Format))
		}
	}
	if cfg.STierArbitrations.Enabled {
		if deps.Arbitrations == nil {
			log.Warn("s-tier arbitrations enabled without a schedule")
		} else {
			out = append(out, NewArbitrations(deps, cfg.STierArbitrations.Format))
		}
	}
	if cfg.MetaRelics.Enabled {
		if deps.World == nil || deps.Tiers == nil {
			log.Warn("meta relics enabled without a world feed or tier table")
		} else {
			out = append(out, NewMetaRelics(deps, cfg.MetaRelics.Format))
		}
	}
	if cfg.SteelPathDisruptionFissure.Enabled {
		if deps.World == nil {
			log.Warn("steel path disruption enabled without a world feed")
		} else {
			out = append(out, NewSteelPathDisruption(deps, cfg.SteelPathDisruptionFissure.Format))
		}
	}
	return out
}

// Register starts every enabled listener under sup and returns their names.
func Register(sup *rtsup.Supervisor, cfg config.Listeners, deps Deps) []string {
	ls := Build(cfg, deps)
	names := make([]string, 0, len(ls))
	for _, l := range ls {
		sup.Go(l.Name(), l.Run)
		names = append(names, l.Name())
	}
	return names
}

// base is shared by all listeners.
type base struct {
	name    string
	format  string
	channel string
	sender  Sender
	log     logx.Logger
}

func newBase(name, format string, deps Deps) base {
	log := deps.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	return base{
		name:    name,
		format:  format,
		channel: deps.Channel,
		sender:  deps.Sender,
		log:     log.With(logx.String("comp", name)),
	}
}

func (b base) Name() string { return b.name }

// render applies the domain placeholders, then {channel_name}.
func (b base) render(ps ...ph.Placeholder) string {
	return ph.Render(ph.Render(b.format, ps...), ph.Channel(b.channel))
}

// announce hands text to the sender. Only a stopped notifier or a done
// context is returned; other failures are logged.
func (b base) announce(ctx context.Context, text, key string) error {
	err := b.sender.Say(ctx, notifier.Outgoing{Text: text, DedupKey: key})
	switch {
	case err == nil:
		b.log.Debug("announced", logx.String("key", key))
		return nil
	case errors.Is(err, notifier.ErrStopped):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		b.log.Warn("announcement failed", logx.String("key", key), logx.Err(err))
		return nil
	}
}

// consume feeds every value of sub to fn until ctx is done or sub closes.
func consume[T any](ctx context.Context, sub *worldstate.Subscription[T], fn func(context.Context, T) error) error {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-sub.C:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return sub.Err()
			}
			if err := fn(ctx, v); err != nil {
				return err
			}
		}
	}
}

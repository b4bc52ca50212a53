package listener

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"wfnotifier/internal/arbitration"
	ph "wfnotifier/internal/placeholder"
	logx "wfnotifier/pkg/logx"
)

// Arbitrations sleeps until each upcoming S tier arbitration and announces
// it. Running out of schedule is an error.
type Arbitrations struct {
	base
	src   ArbitrationSource
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type ArbitrationOption func(*Arbitrations)

func WithClock(now func() time.Time) ArbitrationOption {
	return func(a *Arbitrations) { a.now = now }
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ArbitrationOption {
	return func(a *Arbitrations) { a.sleep = sleep }
}

func NewArbitrations(deps Deps, format string, opts ...ArbitrationOption) *Arbitrations {
	a := &Arbitrations{
		base:  newBase(NameSTierArbitrations, format, deps),
		src:   deps.Arbitrations,
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (l *Arbitrations) Run(ctx context.Context) error {
	for {
		now := l.now()
		ev, err := l.src.UpcomingByTier(arbitration.TierS, now)
		if err != nil {
			return fmt.Errorf("upcoming arbitration: %w", err)
		}
		if d := ev.Activation.Sub(now); d > 0 {
			l.log.Info("next arbitration",
				logx.String("node", ev.Label),
				logx.Time("at", ev.Activation),
				logx.Duration("in", d),
			)
			if err := l.sleep(ctx, d); err != nil {
				return err
			}
		}
		text := l.render(ph.Node(ev.Node), ph.Planet(ev.Planet))
		key := "arbitration:" + strconv.FormatInt(ev.Activation.Unix(), 10)
		if err := l.announce(ctx, text, key); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

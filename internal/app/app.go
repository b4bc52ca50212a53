// Package app wires the notifier together: config, logging, storage, the
// chat transport and every supervised task.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"wfnotifier/internal/arbitration"
	"wfnotifier/internal/commands"
	"wfnotifier/internal/config"
	"wfnotifier/internal/credentials"
	"wfnotifier/internal/listener"
	"wfnotifier/internal/market"
	"wfnotifier/internal/notifier"
	rtsup "wfnotifier/internal/runtime/supervisor"
	"wfnotifier/internal/storage"
	kit "wfnotifier/internal/transport"
	"wfnotifier/internal/transport/discord"
	"wfnotifier/internal/transport/telegram"
	"wfnotifier/internal/transport/twitch"
	"wfnotifier/internal/worldstate"
	logx "wfnotifier/pkg/logx"
)

const (
	EnvTelegramToken = "WFN_TELEGRAM_TOKEN"
	EnvDiscordToken  = "WFN_DISCORD_TOKEN"
)

type Options struct {
	ConfigPath      string
	CredentialsPath string
	// Channel is the chat channel to join: a twitch login, a telegram chat
	// id or a discord channel id.
	Channel string

	// Adapter overrides the transport selected by transport.kind.
	Adapter kit.Adapter
}

type App struct {
	opts Options
	cfg  *config.Config

	log   logx.Logger
	logs  *logx.Service
	store storage.Store
	creds *credentials.Store

	adapter kit.Adapter
	notif   *notifier.Service
	world   *worldstate.Client
	market  *market.Client
	tiers   *arbitration.Tiers
	arbys   *arbitration.Schedule
	router  *commands.Router

	sup     *rtsup.Supervisor
	inbound chan kit.Message
}

func New(opts Options) (*App, error) {
	opts.Channel = strings.TrimSpace(opts.Channel)
	if opts.Channel == "" {
		return nil, errors.New("channel is required")
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "./config.json"
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "config"))
	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfgm.SetLogger(bootLog)
	cfg, err := cfgm.LoadOrCreate()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	a := &App{
		opts:    opts,
		cfg:     cfg,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		inbound: make(chan kit.Message, 64),
	}
	if err := a.build(log); err != nil {
		a.closeEarly()
		return nil, err
	}
	return a, nil
}

func (a *App) build(log logx.Logger) error {
	cfg := a.cfg

	// Storage (optional)
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	ad := a.opts.Adapter
	if ad == nil {
		var err error
		if ad, err = a.newAdapter(log); err != nil {
			return err
		}
	}
	a.adapter = ad

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return err
	}
	var dedupStore storage.Store
	if ncfg.PersistDedup {
		dedupStore = a.store
	}
	a.notif = notifier.New(ncfg, ad, a.opts.Channel, log.With(logx.String("comp", "notifier")), dedupStore)

	if a.world, err = worldstate.New(mapWorldStateConfig(cfg), log.With(logx.String("comp", "worldstate"))); err != nil {
		return err
	}
	a.market = market.New(mapMarketConfig(cfg), log.With(logx.String("comp", "market")))

	if p := strings.TrimSpace(cfg.Arbitration.TiersPath); p != "" {
		a.tiers, err = arbitration.LoadTiers(p)
	} else {
		a.tiers, err = arbitration.DefaultTiers()
	}
	if err != nil {
		return fmt.Errorf("arbitration tiers: %w", err)
	}
	if cfg.Listeners.STierArbitrations.Enabled {
		if a.arbys, err = arbitration.LoadSchedule(cfg.Arbitration.SchedulePath, a.tiers); err != nil {
			return fmt.Errorf("arbitration schedule: %w", err)
		}
		a.log.Info("arbitration schedule loaded", logx.Int("events", a.arbys.Len()))
	}

	var ropts []commands.Option
	if a.store != nil {
		ropts = append(ropts, commands.WithStore(a.store))
	}
	a.router = commands.NewRouter(a.opts.Channel, a.notif, log.With(logx.String("comp", "commands")), ropts...)
	if cfg.Commands.Average.Enabled {
		if err := a.router.Register(commands.Average(a.market, cfg.Commands.Average.Format)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) newAdapter(log logx.Logger) (kit.Adapter, error) {
	cfg := a.cfg
	switch kind := strings.ToLower(strings.TrimSpace(cfg.Transport.Kind)); kind {
	case "twitch":
		a.creds = credentials.NewStore(a.opts.CredentialsPath,
			credentials.WithLogger(log.With(logx.String("comp", "credentials"))))
		if _, err := a.creds.Load(); err != nil {
			return nil, fmt.Errorf("twitch credentials: %w", err)
		}
		nick := strings.TrimSpace(cfg.Transport.Nick)
		if nick == "" {
			nick = a.opts.Channel
		}
		return twitch.New(twitch.Config{Nick: nick, Tokens: a.creds}, log.With(logx.String("comp", "twitch")))
	case "telegram":
		return telegram.New(telegram.Config{
			Token:       os.Getenv(EnvTelegramToken),
			PollTimeout: config.DurationOr(cfg.Transport.PollTimeout, 10*time.Second),
		}, log.With(logx.String("comp", "telegram")))
	case "discord":
		return discord.New(os.Getenv(EnvDiscordToken), log.With(logx.String("comp", "discord")))
	default:
		return nil, fmt.Errorf("transport.kind: unsupported %q", cfg.Transport.Kind)
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()
	ch := a.opts.Channel

	if err := a.adapter.Start(run, a.inbound); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	if err := a.adapter.Join(ctx, ch); err != nil {
		return fmt.Errorf("join %s: %w", ch, err)
	}
	if err := a.notif.Reply(ctx, fmt.Sprintf("Hello @%s, I'm running the setup!", ch)); err != nil {
		return fmt.Errorf("greet: %w", err)
	}

	a.notif.Start(run)

	// Listeners subscribe before the first poll.
	names := listener.Register(a.sup, a.cfg.Listeners, listener.Deps{
		Sender:       a.notif,
		Channel:      ch,
		World:        a.world,
		Arbitrations: a.arbysSource(),
		Tiers:        a.tiers,
		Logger:       a.log.With(logx.String("comp", "listener")),
	})
	if f, ok := a.adapter.(kit.Failer); ok {
		a.sup.Go("transport.watch", func(c context.Context) error {
			select {
			case <-c.Done():
				return nil
			case <-f.Done():
				return f.Err()
			}
		})
	}
	a.sup.Go("worldstate.poll", a.world.Run)
	if a.creds != nil {
		a.sup.Go("credentials.watch", a.creds.Watch)
	}
	a.sup.Go("commands.listen", func(c context.Context) error {
		return a.router.Listen(c, a.inbound)
	})

	a.log.Info("started",
		logx.String("channel", ch),
		logx.String("transport", a.cfg.Transport.Kind),
		logx.Any("listeners", names),
		logx.Any("commands", a.router.Prefixes()),
	)
	if err := a.notif.Reply(ctx, fmt.Sprintf("@%s, setup successful!", ch)); err != nil {
		return fmt.Errorf("announce setup: %w", err)
	}
	return nil
}

// arbysSource avoids handing a typed nil to the listener deps.
func (a *App) arbysSource() listener.ArbitrationSource {
	if a.arbys == nil {
		return nil
	}
	return a.arbys
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeEarly()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if c.Err() != nil {
			a.log.Warn("tasks still running", logx.Any("tasks", a.sup.Running()))
		}
		return err
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// closeEarly releases what New opened when the app never started.
func (a *App) closeEarly() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

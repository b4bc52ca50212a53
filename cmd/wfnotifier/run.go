package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"wfnotifier/internal/app"
	"wfnotifier/internal/credentials"
)

var runFlags struct {
	config      string
	credentials string
}

var runCmd = &cobra.Command{
	Use:   "run <channel>",
	Short: "Join a channel and start announcing",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.config, "config", "./config.json", "path to config (json or yaml)")
	f.StringVar(&runFlags.credentials, "credentials", credentials.DefaultPath, "twitch credential file")
}

func runRun(_ *cobra.Command, args []string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(app.Options{
		ConfigPath:      runFlags.config,
		CredentialsPath: runFlags.credentials,
		Channel:         args[0],
	})
	if err != nil {
		return err
	}

	stop := func(reason app.StopReason) {
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		_ = a.Stop(sctx, reason)
	}

	if err := a.Start(ctx); err != nil {
		stop(app.StopFatalError)
		return err
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	reason := app.StopUnknown
	select {
	case sig := <-sigCh:
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		} else {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		reason = app.StopFatalError
	}
	stop(reason)

	if err := a.Err(); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return errors.New("stopped unexpectedly")
	}
	return nil
}

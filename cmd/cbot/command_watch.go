package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cbot/internal/app"
	"cbot/internal/session"
)

type WatchCommand struct {
	wiring commandWiring
}

func NewWatchCommand(wiring commandWiring) *WatchCommand {
	return &WatchCommand{wiring: wiring}
}

func (c *WatchCommand) Run(args []string) error {
	fs := newFlagSet("watch", c.wiring.stderr)
	backend := addBackendFlags(fs)
	interval := fs.Duration("interval", 0, "poll interval")
	once := fs.Bool("once", false, "print the current progress and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 1, "watch <conversation-id>"); err != nil {
		return err
	}

	cfg, api, logger, err := setup(c.wiring, backend)
	if err != nil {
		return err
	}
	pollInterval := cfg.PollInterval()
	if *interval > 0 {
		pollInterval = *interval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.wiring.runWatch(ctx, app.WatchOptions{
		ConversationID: fs.Arg(0),
		Fetcher:        session.NewFetcher(api, logger),
		Interval:       pollInterval,
		FetchTimeout:   cfg.FetchTimeout(),
		Out:            c.wiring.stdout,
		Logger:         logger,
		Once:           *once,
	})
}

package main

import (
	"fmt"
	"time"

	"cbot/internal/app"
	"cbot/internal/logging"
	"cbot/internal/store"
)

type ChatCommand struct {
	wiring commandWiring
}

func NewChatCommand(wiring commandWiring) *ChatCommand {
	return &ChatCommand{wiring: wiring}
}

func (c *ChatCommand) Run(args []string) error {
	fs := newFlagSet("chat", c.wiring.stderr)
	backend := addBackendFlags(fs)
	resume := fs.String("resume", "", "conversation id to resume")
	noMarkdown := fs.Bool("no-markdown", false, "render assistant replies as plain text")
	interval := fs.Duration("interval", 0, "session progress poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.wiring.loadConfig()
	if err != nil {
		return err
	}
	backend.apply(&cfg)

	// The terminal belongs to the UI, so logs go to a file.
	logger := logging.Nop()
	if logPath, err := cfg.LogFile(); err == nil {
		fileLogger, closer, openErr := logging.OpenFile(logPath, logging.ParseLevel(cfg.LogLevel()))
		if openErr != nil {
			fmt.Fprintf(c.wiring.stderr, "warning: %v (logging disabled)\n", openErr)
		} else {
			logger = fileLogger
			defer closer.Close()
		}
	}

	api, err := c.wiring.newClient(cfg, logger)
	if err != nil {
		return err
	}

	var recents store.RecentsStore
	if c.wiring.openRecents != nil {
		opened, err := c.wiring.openRecents()
		if err != nil {
			logger.Warn("recents_unavailable", logging.F("error", err))
		} else {
			recents = opened
			defer recents.Close()
		}
	}

	pollInterval := cfg.PollInterval()
	if *interval > 0 {
		pollInterval = *interval
	}
	logger.Info("ui_start",
		logging.F("base_url", cfg.BaseURL()),
		logging.F("resume", *resume),
		logging.F("interval", pollInterval.Round(time.Millisecond)),
	)
	return c.wiring.runUI(api, app.Options{
		UserID:          cfg.UserID(),
		BaseURL:         cfg.BaseURL(),
		ResumeID:        *resume,
		Markdown:        cfg.MarkdownEnabled() && !*noMarkdown,
		TimestampFormat: cfg.TimestampFormat(),
		PollInterval:    pollInterval,
		FetchTimeout:    cfg.FetchTimeout(),
		Logger:          logger,
		Recents:         recents,
	})
}

package main

import (
	"context"
	"io"
	"os"

	"cbot/internal/app"
	"cbot/internal/config"
	"cbot/internal/store"
)

type commandRunner interface {
	Run(args []string) error
}

type commandWiring struct {
	stdout      io.Writer
	stderr      io.Writer
	loadConfig  func() (config.Config, error)
	newClient   clientFactory
	openRecents func() (store.RecentsStore, error)
	runUI       func(api app.BackendAPI, opts app.Options) error
	runWatch    func(ctx context.Context, opts app.WatchOptions) error
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:      stdout,
		stderr:      stderr,
		loadConfig:  config.Load,
		newClient:   newBackendClient,
		openRecents: openDefaultRecents,
		runUI:       app.Run,
		runWatch:    app.RunWatch,
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"chat":     NewChatCommand(wiring),
		"watch":    NewWatchCommand(wiring),
		"start":    NewStartCommand(wiring),
		"send":     NewSendCommand(wiring),
		"history":  NewHistoryCommand(wiring),
		"prompt":   NewPromptCommand(wiring),
		"personas": NewPersonasCommand(wiring),
		"recents":  NewRecentsCommand(wiring),
		"config":   NewConfigCommand(wiring),
		"health":   NewHealthCommand(wiring),
	}
}

func openDefaultRecents() (store.RecentsStore, error) {
	path, err := config.RecentsPath()
	if err != nil {
		return nil, err
	}
	return store.NewBboltRecentsStore(path)
}

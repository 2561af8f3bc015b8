package main

import (
	"context"

	"cbot/internal/app"
	"cbot/internal/client"
	"cbot/internal/config"
	"cbot/internal/logging"
	"cbot/internal/types"
)

type commandClient interface {
	app.BackendAPI
	ListConversations(ctx context.Context, userID string, limit int) ([]types.ConversationRecord, error)
	GetPersona(ctx context.Context, id string) (*types.Persona, error)
}

type clientFactory func(cfg config.Config, logger logging.Logger) (commandClient, error)

func newBackendClient(cfg config.Config, logger logging.Logger) (commandClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return client.New(cfg.BaseURL(),
		client.WithTimeout(cfg.RequestTimeout()),
		client.WithChatTimeout(cfg.ChatTimeout()),
		client.WithLogger(logger),
	), nil
}

package app

import (
	"context"

	"cbot/internal/client"
	"cbot/internal/session"
	"cbot/internal/types"
)

// BackendAPI is the slice of the transport client the chat UI drives.
type BackendAPI interface {
	session.ConversationAPI
	session.PromptAPI
	session.SnapshotAPI
	Health(ctx context.Context) (*client.HealthResponse, error)
	ListPersonas(ctx context.Context) ([]types.Persona, error)
}

var _ BackendAPI = (*client.Client)(nil)

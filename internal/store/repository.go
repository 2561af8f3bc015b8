package store

import (
	"context"
	"time"
)

// RecentConversation is the local index entry for a conversation started or
// opened from this machine.
type RecentConversation struct {
	ID           string    `json:"id"`
	PersonaID    string    `json:"persona_id,omitempty"`
	PersonaName  string    `json:"persona_name,omitempty"`
	BaseURL      string    `json:"base_url,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	LastOpenedAt time.Time `json:"last_opened_at"`
}

type RecentsStore interface {
	Record(ctx context.Context, entry RecentConversation) (RecentConversation, error)
	Touch(ctx context.Context, id string) (RecentConversation, bool, error)
	Get(ctx context.Context, id string) (RecentConversation, bool, error)
	List(ctx context.Context, limit int) ([]RecentConversation, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

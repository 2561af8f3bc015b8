package session

import (
	"context"
	"errors"
	"strings"

	"cbot/internal/logging"
	"cbot/internal/types"
)

type SnapshotAPI interface {
	GetSession(ctx context.Context, conversationID string) (*types.SessionRecord, error)
}

// Fetcher reads the server-side session and normalizes it at the boundary.
type Fetcher struct {
	api    SnapshotAPI
	logger logging.Logger
}

func NewFetcher(api SnapshotAPI, logger logging.Logger) *Fetcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Fetcher{api: api, logger: logger}
}

func (f *Fetcher) FetchSnapshot(ctx context.Context, conversationID string) (types.SessionSnapshot, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return types.SessionSnapshot{}, &FetchError{Err: ErrNoSession}
	}
	if f == nil || f.api == nil {
		return types.SessionSnapshot{}, &FetchError{ConversationID: conversationID, Err: errors.New("session api not configured")}
	}
	record, err := f.api.GetSession(ctx, conversationID)
	if err != nil {
		return types.SessionSnapshot{}, &FetchError{ConversationID: conversationID, Err: err}
	}
	if record == nil {
		return types.SessionSnapshot{}, &FetchError{ConversationID: conversationID, Err: errors.New("empty session response")}
	}
	snapshot, issues := record.Normalize(conversationID)
	if len(issues) > 0 && f.logger.Enabled(logging.Debug) {
		for _, issue := range issues {
			f.logger.Debug("snapshot_validation",
				logging.F("conversation_id", conversationID),
				logging.F("field", issue.Field),
				logging.F("detail", issue.Detail),
			)
		}
	}
	return snapshot, nil
}

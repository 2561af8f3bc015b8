package session

import (
	"context"
	"errors"
	"strings"

	"cbot/internal/client"
	"cbot/internal/logging"
	"cbot/internal/types"
)

type ConversationAPI interface {
	CreateConversation(ctx context.Context, req client.CreateConversationRequest) (string, error)
	Chat(ctx context.Context, conversationID, message string) (*client.ChatResponse, error)
	GetConversation(ctx context.Context, conversationID string) (*types.ConversationRecord, error)
}

// ChatService runs the user-initiated conversation actions. Failures are
// returned to the caller and never touch tracker state except through an
// explicit resync.
type ChatService struct {
	api    ConversationAPI
	userID string
	logger logging.Logger
}

func NewChatService(api ConversationAPI, userID string, logger logging.Logger) *ChatService {
	if logger == nil {
		logger = logging.Nop()
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "web_user"
	}
	return &ChatService{api: api, userID: userID, logger: logger}
}

func (s *ChatService) UserID() string {
	return s.userID
}

func (s *ChatService) Start(ctx context.Context, persona *types.Persona) (string, error) {
	req := client.CreateConversationRequest{UserID: s.userID}
	if persona != nil {
		if err := persona.Validate(); err != nil {
			return "", err
		}
		p := *persona
		req.Persona = &p
	}
	id, err := s.api.CreateConversation(ctx, req)
	if err != nil {
		return "", err
	}
	fields := []logging.Field{logging.F("conversation_id", id)}
	if persona != nil {
		fields = append(fields, logging.F("persona_id", persona.ID))
	}
	s.logger.Info("conversation_started", fields...)
	return id, nil
}

// Post sends one message and returns the assistant reply. It does not record
// turns; see ApplyReply.
func (s *ChatService) Post(ctx context.Context, conversationID, message string) (*client.ChatResponse, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrNoSession
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	return s.api.Chat(ctx, conversationID, message)
}

// ApplyReply records the user message and the assistant reply as a pair.
func ApplyReply(tracker *Tracker, message string, reply *client.ChatResponse) (userIndex, assistantIndex int) {
	userIndex = tracker.RecordTurn(types.RoleUser, message)
	content := ""
	if reply != nil {
		content = reply.Response
	}
	assistantIndex = tracker.RecordTurn(types.RoleAssistant, content)
	return userIndex, assistantIndex
}

// Send posts message and records both turns on success. When the backend
// answered with an error it may already have stored the user message, so the
// transcript is re-read to keep indexes aligned.
func (s *ChatService) Send(ctx context.Context, tracker *Tracker, message string) (int, int, error) {
	if tracker == nil {
		return 0, 0, ErrNoSession
	}
	reply, err := s.Post(ctx, tracker.ConversationID(), message)
	if err != nil {
		if client.AsAPIError(err) != nil {
			if resyncErr := s.Resync(ctx, tracker); resyncErr != nil {
				s.logger.Warn("transcript_resync_failed",
					logging.F("conversation_id", tracker.ConversationID()),
					logging.F("error", resyncErr),
				)
			}
		}
		return 0, 0, err
	}
	userIndex, assistantIndex := ApplyReply(tracker, message, reply)
	return userIndex, assistantIndex, nil
}

// Resume loads a conversation and returns a tracker hydrated with its turns.
func (s *ChatService) Resume(ctx context.Context, api PromptAPI, conversationID string) (*Tracker, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, ErrNoSession
	}
	record, err := s.api.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	tracker := NewTracker(conversationID, api)
	tracker.Hydrate(record.Turns())
	return tracker, nil
}

func (s *ChatService) Resync(ctx context.Context, tracker *Tracker) error {
	if tracker == nil {
		return ErrNoSession
	}
	record, err := s.api.GetConversation(ctx, tracker.ConversationID())
	if err != nil {
		return err
	}
	if record == nil {
		return errors.New("empty conversation response")
	}
	tracker.Hydrate(record.Turns())
	return nil
}

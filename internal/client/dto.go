package client

import (
	"encoding/json"

	"cbot/internal/types"
)

type HealthResponse struct {
	Status string `json:"status"`
}

func (r *HealthResponse) OK() bool {
	return r != nil && r.Status == "ok"
}

// CreateConversationRequest carries the persona as a full object; the backend
// ignores it when absent.
type CreateConversationRequest struct {
	UserID  string         `json:"user_id"`
	Persona *types.Persona `json:"persona,omitempty"`
	Message string         `json:"message,omitempty"`
}

type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message,omitempty"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatSupervision struct {
	Score            int  `json:"score"`
	NeedsImprovement bool `json:"needs_improvement"`
}

type ChatResponse struct {
	ConversationID string           `json:"conversation_id,omitempty"`
	Response       string           `json:"response"`
	CurrentTask    json.RawMessage  `json:"current_task,omitempty"`
	TasksRemaining int              `json:"tasks_remaining,omitempty"`
	Supervision    *ChatSupervision `json:"supervision,omitempty"`
}

type ConversationsResponse struct {
	Conversations []types.ConversationRecord `json:"conversations"`
	Count         int                        `json:"count"`
}

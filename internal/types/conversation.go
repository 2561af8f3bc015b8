package types

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	default:
		return "", false
	}
}

// Turn is one message of a conversation. Index is the position in the
// conversation and matches the index the backend uses for prompt lookups.
type Turn struct {
	Index     int       `json:"index"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Linkable reports whether the turn has generation metadata on the backend.
func (t Turn) Linkable() bool {
	return t.Role == RoleAssistant
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageRecord struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ConversationRecord is the backend representation of a conversation. Older
// responses carry the identifier as "id", newer ones as "conversation_id".
type ConversationRecord struct {
	ID             string          `json:"id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Messages       []MessageRecord `json:"messages"`
	CreatedAt      string          `json:"created_at,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
}

func (r ConversationRecord) Identifier() string {
	if id := strings.TrimSpace(r.ConversationID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ID)
}

// Turns converts backend messages into turns. Every message keeps its
// position as index, including ones with an unknown role, so indexes stay
// aligned with the backend.
func (r ConversationRecord) Turns() []Turn {
	turns := make([]Turn, 0, len(r.Messages))
	for i, msg := range r.Messages {
		role, ok := ParseRole(msg.Role)
		if !ok {
			role = Role(strings.ToLower(strings.TrimSpace(msg.Role)))
		}
		turns = append(turns, Turn{
			Index:     i,
			Role:      role,
			Content:   msg.Content,
			CreatedAt: ParseTimestamp(msg.Timestamp),
		})
	}
	return turns
}

func (r ConversationRecord) Normalize() Conversation {
	return Conversation{
		ID:        r.Identifier(),
		UserID:    r.UserID,
		Turns:     r.Turns(),
		CreatedAt: ParseTimestamp(r.CreatedAt),
		UpdatedAt: ParseTimestamp(r.UpdatedAt),
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC 3339 and the naive ISO format emitted for
// timezone-less datetimes. Unparseable input yields the zero time.
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

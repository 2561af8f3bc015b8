package app

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cbot/internal/session"
	"cbot/internal/store"
	"cbot/internal/types"
)

const defaultRequestTimeout = 10 * time.Second

var toastTick = tea.Tick

func healthCmd(api BackendAPI, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
		resp, err := api.Health(ctx)
		if err == nil && !resp.OK() {
			err = errUnhealthy(resp.Status)
		}
		return healthMsg{err: err}
	}
}

func fetchPersonasCmd(api BackendAPI, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
		personas, err := api.ListPersonas(ctx)
		return personasMsg{personas: personas, err: err}
	}
}

func startConversationCmd(chat *session.ChatService, persona *types.Persona, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
		id, err := chat.Start(ctx, persona)
		return conversationStartedMsg{conversationID: id, persona: persona, err: err}
	}
}

func resumeConversationCmd(chat *session.ChatService, api session.PromptAPI, conversationID string, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
		tracker, err := chat.Resume(ctx, api, conversationID)
		return conversationResumedMsg{conversationID: conversationID, tracker: tracker, err: err}
	}
}

// sendMessageCmd leaves the deadline to the transport client, whose chat
// timeout covers the multi-stage pipeline.
func sendMessageCmd(chat *session.ChatService, tracker *session.Tracker, message string, ctx context.Context) tea.Cmd {
	before := tracker.Len()
	conversationID := tracker.ConversationID()
	return func() tea.Msg {
		userIndex, assistantIndex, err := chat.Send(ctx, tracker, message)
		return chatReplyMsg{
			conversationID: conversationID,
			message:        message,
			turnsBefore:    before,
			userIndex:      userIndex,
			assistantIndex: assistantIndex,
			err:            err,
		}
	}
}

func resolvePromptCmd(tracker *session.Tracker, index int, lookup uint64, supervision []types.SupervisionEvent, ctx context.Context) tea.Cmd {
	conversationID := tracker.ConversationID()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
		meta, err := tracker.ResolvePromptFor(ctx, index)
		if err == nil {
			meta = session.AttachSupervision(meta, supervision)
		}
		return promptResolvedMsg{conversationID: conversationID, index: index, lookup: lookup, meta: meta, err: err}
	}
}

func recordRecentCmd(recents store.RecentsStore, entry store.RecentConversation) tea.Cmd {
	if recents == nil || strings.TrimSpace(entry.ID) == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := recents.Record(ctx, entry)
		return recentRecordedMsg{conversationID: entry.ID, err: err}
	}
}

func touchRecentCmd(recents store.RecentsStore, conversationID string) tea.Cmd {
	if recents == nil || strings.TrimSpace(conversationID) == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _, err := recents.Touch(ctx, conversationID)
		return recentRecordedMsg{conversationID: conversationID, err: err}
	}
}

func copyPromptCmd(text string) tea.Cmd {
	return func() tea.Msg {
		method, err := copyTextToClipboard(text)
		return copyResultMsg{method: method, err: err}
	}
}

func toastExpiryCmd() tea.Cmd {
	return toastTick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{}
	})
}

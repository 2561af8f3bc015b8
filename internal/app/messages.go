package app

import (
	"cbot/internal/session"
	"cbot/internal/types"
)

type healthMsg struct {
	err error
}

type personasMsg struct {
	personas []types.Persona
	err      error
}

type conversationStartedMsg struct {
	conversationID string
	persona        *types.Persona
	err            error
}

type conversationResumedMsg struct {
	conversationID string
	tracker        *session.Tracker
	err            error
}

type chatReplyMsg struct {
	conversationID string
	message        string
	turnsBefore    int
	userIndex      int
	assistantIndex int
	err            error
}

type promptResolvedMsg struct {
	conversationID string
	index          int
	lookup         uint64
	meta           types.GenerationMetadata
	err            error
}

type recentRecordedMsg struct {
	conversationID string
	err            error
}

type copyResultMsg struct {
	method clipboardMethod
	err    error
}

type toastExpiredMsg struct{}

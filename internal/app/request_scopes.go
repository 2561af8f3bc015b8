package app

import (
	"context"
	"errors"
)

// requestScope names a class of user-initiated request. A new request in a
// scope cancels the previous one, so late answers to abandoned actions
// arrive as context.Canceled and are dropped by the reducers.
type requestScope string

const (
	requestScopeStartup requestScope = "startup"
	requestScopeStart   requestScope = "conversation_start"
	requestScopeSend    requestScope = "chat_send"
	requestScopePrompt  requestScope = "prompt_lookup"
)

type requestScopes map[requestScope]context.CancelFunc

func (s *requestScopes) replace(name requestScope) context.Context {
	if *s == nil {
		*s = requestScopes{}
	}
	s.cancel(name)
	ctx, cancel := context.WithCancel(context.Background())
	(*s)[name] = cancel
	return ctx
}

func (s requestScopes) active(name requestScope) bool {
	_, ok := s[name]
	return ok
}

func (s requestScopes) cancel(name requestScope) {
	if cancel, ok := s[name]; ok {
		cancel()
		delete(s, name)
	}
}

func (s requestScopes) cancelAll() {
	for name := range s {
		s.cancel(name)
	}
}

func (m *Model) replaceRequestScope(name requestScope) context.Context {
	return m.requestScopes.replace(name)
}

func (m *Model) hasRequestScope(name requestScope) bool {
	return m.requestScopes.active(name)
}

func (m *Model) cancelRequestScope(name requestScope) {
	m.requestScopes.cancel(name)
}

func (m *Model) cancelAllRequestScopes() {
	m.requestScopes.cancelAll()
}

func isCanceledRequestError(err error) bool {
	return errors.Is(err, context.Canceled)
}

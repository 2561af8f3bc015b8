package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks a snapshot fetch that produced nothing usable. The
// caller keeps the last good snapshot.
var ErrUnavailable = errors.New("session snapshot unavailable")

var (
	ErrNotFound     = errors.New("generation metadata not found")
	ErrNotLinkable  = errors.New("turn has no generation metadata")
	ErrEmptyMessage = errors.New("message is required")
	ErrNoSession    = errors.New("no active conversation")
)

// FetchError wraps the transport or HTTP failure behind ErrUnavailable so
// both errors.Is(err, ErrUnavailable) and errors.As(err, *client.APIError)
// hold.
type FetchError struct {
	ConversationID string
	Err            error
}

func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("fetch session %s: %v", e.ConversationID, e.Err)
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrUnavailable
}

type LookupReason string

const (
	LookupNotFound    LookupReason = "not_found"
	LookupNotLinkable LookupReason = "not_linkable"
)

// LookupError is returned by prompt resolution. It is always recoverable.
type LookupError struct {
	Index  int
	Reason LookupReason
	Err    error
}

func (e *LookupError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	switch e.Reason {
	case LookupNotLinkable:
		fmt.Fprintf(&b, "turn %d is not an assistant turn", e.Index)
	default:
		fmt.Fprintf(&b, "no generation metadata for turn %d", e.Index)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LookupError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *LookupError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrNotFound:
		return e.Reason == LookupNotFound
	case ErrNotLinkable:
		return e.Reason == LookupNotLinkable
	default:
		return false
	}
}

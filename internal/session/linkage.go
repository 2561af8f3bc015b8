package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"cbot/internal/client"
	"cbot/internal/types"
)

type PromptAPI interface {
	GetMessagePrompt(ctx context.Context, conversationID string, index int) (*types.PromptRecord, error)
}

// Tracker maps turn positions of one conversation to the generation context
// the backend recorded for them. Indexes are assigned in local append order
// and match the backend's message order.
type Tracker struct {
	conversationID string
	api            PromptAPI
	now            func() time.Time
	lookupTimeout  time.Duration

	mu    sync.Mutex
	turns []types.Turn
	group singleflight.Group
}

const defaultLookupTimeout = 10 * time.Second

type TrackerOption func(*Tracker)

// WithLookupTimeout bounds a shared prompt lookup. Callers joining the lookup
// still stop waiting when their own context ends.
func WithLookupTimeout(timeout time.Duration) TrackerOption {
	return func(t *Tracker) {
		if timeout > 0 {
			t.lookupTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTracker(conversationID string, api PromptAPI, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		conversationID: strings.TrimSpace(conversationID),
		api:            api,
		now:            time.Now,
		lookupTimeout:  defaultLookupTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Tracker) ConversationID() string {
	return t.conversationID
}

func (t *Tracker) RecordTurn(role types.Role, content string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	index := len(t.turns)
	t.turns = append(t.turns, types.Turn{
		Index:     index,
		Role:      role,
		Content:   content,
		CreatedAt: t.now(),
	})
	return index
}

// Hydrate replaces the local transcript with the backend's, so local indexes
// line up again after a resume or an ambiguous send failure.
func (t *Tracker) Hydrate(turns []types.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = make([]types.Turn, len(turns))
	for i, turn := range turns {
		turn.Index = i
		t.turns[i] = turn
	}
}

func (t *Tracker) Turns() []types.Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.Turn(nil), t.turns...)
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}

func (t *Tracker) Turn(index int) (types.Turn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.turns) {
		return types.Turn{}, false
	}
	return t.turns[index], true
}

// Linkable reports whether the lookup affordance may be offered for index.
func (t *Tracker) Linkable(index int) bool {
	turn, ok := t.Turn(index)
	return ok && turn.Linkable()
}

// LinkableIndexes lists assistant turn positions in order.
func (t *Tracker) LinkableIndexes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int
	for _, turn := range t.turns {
		if turn.Linkable() {
			out = append(out, turn.Index)
		}
	}
	return out
}

// ResolvePromptFor fetches the generation metadata of an assistant turn.
// Results are not cached since supervision can be attached after the turn
// was first inspected; concurrent lookups of one index share a request.
func (t *Tracker) ResolvePromptFor(ctx context.Context, index int) (types.GenerationMetadata, error) {
	turn, ok := t.Turn(index)
	if !ok {
		return types.GenerationMetadata{}, &LookupError{Index: index, Reason: LookupNotFound}
	}
	if !turn.Linkable() {
		return types.GenerationMetadata{}, &LookupError{Index: index, Reason: LookupNotLinkable}
	}
	if t.api == nil {
		return types.GenerationMetadata{}, &LookupError{Index: index, Reason: LookupNotFound}
	}
	// The shared request outlives any single caller; one caller giving up must
	// not fail the others.
	results := t.group.DoChan(strconv.Itoa(index), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.lookupTimeout)
		defer cancel()
		return t.api.GetMessagePrompt(lookupCtx, t.conversationID, index)
	})
	var value any
	var err error
	select {
	case <-ctx.Done():
		return types.GenerationMetadata{}, ctx.Err()
	case res := <-results:
		value, err = res.Val, res.Err
	}
	if err != nil {
		if client.IsNotFound(err) {
			return types.GenerationMetadata{}, &LookupError{Index: index, Reason: LookupNotFound, Err: err}
		}
		return types.GenerationMetadata{}, err
	}
	record, _ := value.(*types.PromptRecord)
	if record == nil || record.Empty() {
		return types.GenerationMetadata{}, &LookupError{Index: index, Reason: LookupNotFound}
	}
	return record.Normalize(index), nil
}

// AttachSupervision fills meta.Supervision from the session's supervision log
// when the prompt record did not carry one.
func AttachSupervision(meta types.GenerationMetadata, log []types.SupervisionEvent) types.GenerationMetadata {
	if meta.Supervision != nil {
		return meta
	}
	for i := len(log) - 1; i >= 0; i-- {
		if turn, ok := log[i].ScoredTurn(); ok && turn == meta.Index {
			event := log[i]
			meta.Supervision = &event
			return meta
		}
	}
	return meta
}

package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cbot/internal/client"
	"cbot/internal/types"
)

type fakePromptAPI struct {
	calls   atomic.Int32
	delay   time.Duration
	records map[int]*types.PromptRecord
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakePromptAPI) GetMessagePrompt(ctx context.Context, conversationID string, index int) (*types.PromptRecord, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[index]
	if !ok {
		return nil, &client.APIError{StatusCode: http.StatusNotFound, Message: "프롬프트를 찾을 수 없습니다."}
	}
	return record, nil
}

func TestTrackerAssignsIndexesInAppendOrder(t *testing.T) {
	tracker := NewTracker("c", nil)
	if idx := tracker.RecordTurn(types.RoleUser, "hello"); idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
	if idx := tracker.RecordTurn(types.RoleAssistant, "hi"); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	if tracker.Linkable(0) || !tracker.Linkable(1) || tracker.Linkable(2) {
		t.Fatalf("unexpected linkability")
	}
	if got := tracker.LinkableIndexes(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("unexpected linkable indexes %v", got)
	}
}

func TestResolvePromptForOnlyAssistantTurns(t *testing.T) {
	api := &fakePromptAPI{records: map[int]*types.PromptRecord{
		0: {Prompt: "should never be served"},
		1: {Prompt: "[System]", CurrentPart: []byte("1"), CurrentTask: []byte(`"t1"`)},
	}}
	tracker := NewTracker("c", api)
	tracker.RecordTurn(types.RoleUser, "hello")
	tracker.RecordTurn(types.RoleAssistant, "hi")

	_, err := tracker.ResolvePromptFor(context.Background(), 0)
	if !errors.Is(err, ErrNotLinkable) {
		t.Fatalf("expected not linkable, got %v", err)
	}
	if api.calls.Load() != 0 {
		t.Fatalf("user turns must not reach the backend")
	}
	meta, err := tracker.ResolvePromptFor(context.Background(), 1)
	if err != nil {
		t.Fatalf("ResolvePromptFor(1): %v", err)
	}
	if meta.Index != 1 || meta.Stage != types.StageStart || meta.TaskID != "t1" {
		t.Fatalf("unexpected metadata %#v", meta)
	}
}

func TestResolvePromptForNotFound(t *testing.T) {
	api := &fakePromptAPI{records: map[int]*types.PromptRecord{3: {Prompt: "  "}}}
	tracker := NewTracker("c", api)
	for i := 0; i < 4; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		tracker.RecordTurn(role, "x")
	}
	cases := []int{-1, 9, 1, 3}
	for _, index := range cases {
		_, err := tracker.ResolvePromptFor(context.Background(), index)
		var lookupErr *LookupError
		if !errors.As(err, &lookupErr) || !errors.Is(err, ErrNotFound) || lookupErr.Index != index {
			t.Fatalf("index %d: expected not found, got %v", index, err)
		}
	}
}

func TestResolvePromptForPassesThroughTransportFailures(t *testing.T) {
	api := &fakePromptAPI{err: &client.TransportError{Method: http.MethodGet, Path: "/x", Err: errors.New("refused")}}
	tracker := NewTracker("c", api)
	tracker.RecordTurn(types.RoleUser, "hello")
	tracker.RecordTurn(types.RoleAssistant, "hi")
	_, err := tracker.ResolvePromptFor(context.Background(), 1)
	if !client.IsTransport(err) || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestResolvePromptForSharesConcurrentLookups(t *testing.T) {
	api := &fakePromptAPI{delay: 50 * time.Millisecond, records: map[int]*types.PromptRecord{1: {Prompt: "p"}}}
	tracker := NewTracker("c", api)
	tracker.RecordTurn(types.RoleUser, "hello")
	tracker.RecordTurn(types.RoleAssistant, "hi")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tracker.ResolvePromptFor(context.Background(), 1); err != nil {
				t.Errorf("ResolvePromptFor: %v", err)
			}
		}()
	}
	wg.Wait()
	if calls := api.calls.Load(); calls < 1 || calls > 4 {
		t.Fatalf("unexpected call count %d", calls)
	}
	if _, err := tracker.ResolvePromptFor(context.Background(), 1); err != nil {
		t.Fatalf("sequential lookup: %v", err)
	}
}

func TestResolvePromptForCanceledCallerDoesNotFailJoinedLookup(t *testing.T) {
	api := &fakePromptAPI{
		records: map[int]*types.PromptRecord{1: {Prompt: "p"}},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	tracker := NewTracker("c", api)
	tracker.RecordTurn(types.RoleUser, "hello")
	tracker.RecordTurn(types.RoleAssistant, "hi")

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := tracker.ResolvePromptFor(firstCtx, 1)
		firstErr <- err
	}()
	select {
	case <-api.started:
	case <-time.After(time.Second):
		t.Fatalf("lookup never reached the api")
	}

	type result struct {
		meta types.GenerationMetadata
		err  error
	}
	second := make(chan result, 1)
	go func() {
		meta, err := tracker.ResolvePromptFor(context.Background(), 1)
		second <- result{meta: meta, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected first caller to see its cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("canceled caller did not return")
	}

	close(api.release)
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("joined lookup failed: %v", res.err)
		}
		if res.meta.Prompt != "p" || res.meta.Index != 1 {
			t.Fatalf("unexpected metadata %#v", res.meta)
		}
	case <-time.After(time.Second):
		t.Fatalf("joined lookup did not return")
	}
	if calls := api.calls.Load(); calls < 1 || calls > 2 {
		t.Fatalf("unexpected call count %d", calls)
	}
}

func TestResolvePromptForLookupTimeout(t *testing.T) {
	api := &fakePromptAPI{
		records: map[int]*types.PromptRecord{1: {Prompt: "p"}},
		release: make(chan struct{}),
	}
	defer close(api.release)
	tracker := NewTracker("c", api, WithLookupTimeout(20*time.Millisecond))
	tracker.RecordTurn(types.RoleUser, "hello")
	tracker.RecordTurn(types.RoleAssistant, "hi")

	_, err := tracker.ResolvePromptFor(context.Background(), 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected lookup deadline, got %v", err)
	}
}

func TestHydrateRealignsIndexes(t *testing.T) {
	tracker := NewTracker("c", nil)
	tracker.RecordTurn(types.RoleAssistant, "stale")
	tracker.Hydrate([]types.Turn{
		{Index: 5, Role: types.RoleUser, Content: "a"},
		{Index: 9, Role: types.RoleUser, Content: "b"},
		{Index: 2, Role: types.RoleAssistant, Content: "c"},
	})
	turns := tracker.Turns()
	for i, turn := range turns {
		if turn.Index != i {
			t.Fatalf("turn %d has index %d", i, turn.Index)
		}
	}
	if idx := tracker.RecordTurn(types.RoleUser, "d"); idx != 3 {
		t.Fatalf("expected next index 3, got %d", idx)
	}
}

func TestAttachSupervisionByMessageIndex(t *testing.T) {
	log := []types.SupervisionEvent{
		{Score: 9, MessageIndex: 1},
		{Score: 4, MessageIndex: 5},
		{Score: 6, MessageIndex: types.NoSupervisionMessageIndex},
	}
	meta := AttachSupervision(types.GenerationMetadata{Index: 5}, log)
	if meta.Supervision == nil || meta.Supervision.Score != 4 {
		t.Fatalf("expected supervision for turn 5: %#v", meta.Supervision)
	}
	if none := AttachSupervision(types.GenerationMetadata{Index: 3}, log); none.Supervision != nil {
		t.Fatalf("expected no supervision for turn 3")
	}
	own := &types.SupervisionEvent{Score: 10, MessageIndex: 5}
	if kept := AttachSupervision(types.GenerationMetadata{Index: 5, Supervision: own}, log); kept.Supervision != own {
		t.Fatalf("existing supervision should be kept")
	}
}

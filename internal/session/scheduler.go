package session

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cbot/internal/logging"
	"cbot/internal/types"
)

const (
	DefaultInterval     = 2 * time.Second
	DefaultFetchTimeout = 4 * time.Second
)

type PollState int

const (
	PollIdle PollState = iota
	PollPolling
)

func (s PollState) String() string {
	if s == PollPolling {
		return "polling"
	}
	return "idle"
}

type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, conversationID string) (types.SessionSnapshot, error)
}

// TickMsg fires when the polling interval of a generation elapsed.
type TickMsg struct {
	Generation uint64
	At         time.Time
}

// SnapshotMsg carries the result of one fetch back to the owner.
type SnapshotMsg struct {
	Generation     uint64
	ConversationID string
	Snapshot       types.SessionSnapshot
	Err            error
}

type TickFunc func(time.Duration, func(time.Time) tea.Msg) tea.Cmd

// Scheduler owns the active conversation id and the last good snapshot. It is
// driven by messages from a single update loop and is not safe for
// concurrent use. Every Start bumps the generation; ticks and fetch results
// from older generations are dropped, so a late response for an abandoned
// conversation is never reconciled.
type Scheduler struct {
	fetcher      SnapshotFetcher
	logger       logging.Logger
	interval     time.Duration
	fetchTimeout time.Duration
	tick         TickFunc

	state          PollState
	conversationID string
	generation     uint64
	inFlight       bool
	last           *types.SessionSnapshot
	scopeCtx       context.Context
	cancelScope    context.CancelFunc
}

type SchedulerOption func(*Scheduler)

func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithFetchTimeout(timeout time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.fetchTimeout = timeout
		}
	}
}

func WithSchedulerLogger(logger logging.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTickFunc(tick TickFunc) SchedulerOption {
	return func(s *Scheduler) {
		if tick != nil {
			s.tick = tick
		}
	}
}

func NewScheduler(fetcher SnapshotFetcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		fetcher:      fetcher,
		logger:       logging.Nop(),
		interval:     DefaultInterval,
		fetchTimeout: DefaultFetchTimeout,
		tick:         tea.Tick,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Scheduler) State() PollState {
	return s.state
}

func (s *Scheduler) ConversationID() string {
	return s.conversationID
}

func (s *Scheduler) Generation() uint64 {
	return s.generation
}

func (s *Scheduler) Busy() bool {
	return s.inFlight
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// LastSnapshot returns a copy of the last good snapshot.
func (s *Scheduler) LastSnapshot() (types.SessionSnapshot, bool) {
	if s.last == nil {
		return types.SessionSnapshot{}, false
	}
	return s.last.Clone(), true
}

// Start begins polling conversationID with one immediate fetch and a
// recurring tick. Starting the conversation already being polled is a no-op;
// starting another one stops the current one first.
func (s *Scheduler) Start(conversationID string) tea.Cmd {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		s.Stop()
		return nil
	}
	if s.state == PollPolling && s.conversationID == conversationID {
		return nil
	}
	s.Stop()
	s.generation++
	s.state = PollPolling
	s.conversationID = conversationID
	s.last = nil
	s.scopeCtx, s.cancelScope = context.WithCancel(context.Background())
	s.inFlight = true
	s.logger.Info("polling_started",
		logging.F("conversation_id", conversationID),
		logging.F("generation", s.generation),
		logging.F("interval", s.interval),
	)
	return tea.Batch(s.fetchCmd(), s.tickCmd())
}

// Stop is idempotent. An outstanding fetch is not awaited; its result is
// discarded when it arrives.
func (s *Scheduler) Stop() {
	if s.state == PollIdle {
		return
	}
	if s.cancelScope != nil {
		s.cancelScope()
	}
	s.logger.Info("polling_stopped",
		logging.F("conversation_id", s.conversationID),
		logging.F("generation", s.generation),
	)
	s.generation++
	s.state = PollIdle
	s.conversationID = ""
	s.inFlight = false
	s.scopeCtx = nil
	s.cancelScope = nil
}

// HandleTick runs one polling cycle. A tick that fires while the previous
// fetch is outstanding is skipped and the timer is re-armed.
func (s *Scheduler) HandleTick(msg TickMsg) tea.Cmd {
	if s.state != PollPolling || msg.Generation != s.generation {
		s.logger.Debug("tick_discarded", logging.F("generation", msg.Generation))
		return nil
	}
	if s.inFlight {
		s.logger.Debug("tick_skipped_busy",
			logging.F("conversation_id", s.conversationID),
			logging.F("generation", s.generation),
		)
		return s.tickCmd()
	}
	s.inFlight = true
	return tea.Batch(s.fetchCmd(), s.tickCmd())
}

// Refresh fetches immediately without re-arming the timer. It returns nil
// when idle or when a fetch is already outstanding.
func (s *Scheduler) Refresh() tea.Cmd {
	if s.state != PollPolling || s.inFlight {
		return nil
	}
	s.inFlight = true
	return s.fetchCmd()
}

// HandleSnapshot reconciles a fetch result against the last good snapshot.
// The second result is false when nothing should be projected: stale
// results, and failures, which leave the last good snapshot in place.
func (s *Scheduler) HandleSnapshot(msg SnapshotMsg) (Diff, bool) {
	if s.state != PollPolling || msg.Generation != s.generation || msg.ConversationID != s.conversationID {
		s.logger.Debug("snapshot_discarded",
			logging.F("conversation_id", msg.ConversationID),
			logging.F("generation", msg.Generation),
		)
		return Diff{}, false
	}
	s.inFlight = false
	if msg.Err != nil {
		s.logger.Warn("snapshot_fetch_failed",
			logging.F("conversation_id", msg.ConversationID),
			logging.F("generation", msg.Generation),
			logging.F("error", msg.Err),
		)
		return Diff{}, false
	}
	diff := Reconcile(s.last, msg.Snapshot)
	next := msg.Snapshot.Clone()
	s.last = &next
	if diff.Anomalous() {
		s.logger.Warn("snapshot_anomaly",
			logging.F("conversation_id", msg.ConversationID),
			logging.F("stage_regressed", diff.StageRegressed),
			logging.F("completion_log_shrunk", diff.CompletionLogShrunk),
			logging.F("supervision_log_shrunk", diff.SupervisionLogShrunk),
		)
	}
	return diff, true
}

func (s *Scheduler) fetchCmd() tea.Cmd {
	fetcher := s.fetcher
	generation := s.generation
	conversationID := s.conversationID
	parent := s.scopeCtx
	if parent == nil {
		parent = context.Background()
	}
	timeout := s.fetchTimeout
	return func() tea.Msg {
		if fetcher == nil {
			return SnapshotMsg{Generation: generation, ConversationID: conversationID, Err: &FetchError{ConversationID: conversationID, Err: ErrNoSession}}
		}
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		snapshot, err := fetcher.FetchSnapshot(ctx, conversationID)
		return SnapshotMsg{
			Generation:     generation,
			ConversationID: conversationID,
			Snapshot:       snapshot,
			Err:            err,
		}
	}
}

func (s *Scheduler) tickCmd() tea.Cmd {
	generation := s.generation
	return s.tick(s.interval, func(t time.Time) tea.Msg {
		return TickMsg{Generation: generation, At: t}
	})
}

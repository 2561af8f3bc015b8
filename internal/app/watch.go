package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cbot/internal/logging"
	"cbot/internal/session"
	"cbot/internal/types"
)

const watchTitleWidth = 24

type WatchOptions struct {
	ConversationID   string
	Fetcher          session.SnapshotFetcher
	Interval         time.Duration
	FetchTimeout     time.Duration
	Out              io.Writer
	Logger           logging.Logger
	Once             bool
	SchedulerOptions []session.SchedulerOption
}

// RunWatch polls one conversation without a terminal UI and writes a line
// per observed change to opts.Out. It returns when ctx is done, or after the
// first successful snapshot when opts.Once is set.
func RunWatch(ctx context.Context, opts WatchOptions) error {
	model, err := newWatchModel(opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	_, runErr := p.Run()
	model.scheduler.Stop()
	if model.err != nil {
		return model.err
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

type watchModel struct {
	conversationID string
	scheduler      *session.Scheduler
	out            io.Writer
	once           bool
	view           session.ViewState
	failing        bool
	err            error
}

func newWatchModel(opts WatchOptions) (*watchModel, error) {
	conversationID := strings.TrimSpace(opts.ConversationID)
	if conversationID == "" {
		return nil, session.ErrNoSession
	}
	if opts.Fetcher == nil {
		return nil, errors.New("snapshot fetcher is required")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	schedulerOpts := []session.SchedulerOption{session.WithSchedulerLogger(opts.Logger)}
	if opts.Interval > 0 {
		schedulerOpts = append(schedulerOpts, session.WithInterval(opts.Interval))
	}
	if opts.FetchTimeout > 0 {
		schedulerOpts = append(schedulerOpts, session.WithFetchTimeout(opts.FetchTimeout))
	}
	schedulerOpts = append(schedulerOpts, opts.SchedulerOptions...)
	return &watchModel{
		conversationID: conversationID,
		scheduler:      session.NewScheduler(opts.Fetcher, schedulerOpts...),
		out:            out,
		once:           opts.Once,
		view:           session.NewViewState(conversationID),
	}, nil
}

func (m *watchModel) Init() tea.Cmd {
	return m.scheduler.Start(m.conversationID)
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case session.TickMsg:
		return m, m.scheduler.HandleTick(msg)
	case session.SnapshotMsg:
		diff, ok := m.scheduler.HandleSnapshot(msg)
		if !ok {
			if msg.Err != nil && msg.Generation == m.scheduler.Generation() {
				if m.once {
					m.err = msg.Err
					return m, tea.Quit
				}
				if !m.failing {
					fmt.Fprintf(m.out, "sync failed: %v (keeping last snapshot)\n", msg.Err)
				}
				m.failing = true
			}
			return m, nil
		}
		if m.failing {
			fmt.Fprintln(m.out, "sync recovered")
			m.failing = false
		}
		m.view = session.Project(m.view, diff)
		writeWatchDiff(m.out, diff, m.view)
		if m.once {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *watchModel) View() string {
	return ""
}

// writeWatchDiff prints what changed in diff. The first snapshot prints the
// full task table.
func writeWatchDiff(w io.Writer, diff session.Diff, vs session.ViewState) {
	if diff.Initial {
		fmt.Fprintf(w, "%s stage %d %s (%s) task %s module %s\n",
			diff.ConversationID,
			int(diff.CurrentStage), diff.CurrentStage.Label(), diff.CurrentStage.EnglishLabel(),
			valueOrDash(diff.CurrentTaskID), valueOrDash(diff.CurrentModuleID),
		)
		writeWatchTasks(w, vs)
		if vs.ShowStageDetails {
			writeWatchStageDetails(w, vs)
		}
		return
	}
	if diff.Transition.Changed() {
		fmt.Fprintf(w, "stage %d → %d (%s → %s, %s → %s)\n",
			int(diff.Transition.From), int(diff.Transition.To),
			diff.Transition.From.Label(), diff.Transition.To.Label(),
			diff.Transition.From.EnglishLabel(), diff.Transition.To.EnglishLabel(),
		)
		if vs.ShowStageDetails {
			writeWatchStageDetails(w, vs)
		}
	}
	for _, transition := range diff.TaskTransitions {
		from := "new"
		if transition.From != "" {
			from = string(transition.From)
		}
		fmt.Fprintf(w, "task %s %s → %s (%s)\n", transition.TaskID, from, transition.To, transition.To.Label())
	}
	if diff.CurrentTaskChanged {
		fmt.Fprintf(w, "current task %s\n", valueOrDash(diff.CurrentTaskID))
	}
	for _, completion := range vs.Completions[:min(diff.NewCompletionEvents, len(vs.Completions))] {
		verdict := "not yet"
		if completion.Completed {
			verdict = string(completion.Status)
		}
		fmt.Fprintf(w, "completion %s %s: %s\n", completion.TaskID, verdict, flattenText(completion.Reason))
	}
	for _, sv := range vs.Supervisions[:min(diff.NewSupervisionEvents, len(vs.Supervisions))] {
		turn := "-"
		if sv.HasTurn {
			turn = fmt.Sprintf("%d", sv.TurnIndex)
		}
		fmt.Fprintf(w, "supervision turn %s score %d/%d: %s\n", turn, sv.Score, types.MaxSupervisionScore, flattenText(sv.Feedback))
	}
	for _, anomaly := range vs.Anomalies {
		fmt.Fprintf(w, "warning: %s\n", anomaly)
	}
}

func writeWatchTasks(w io.Writer, vs session.ViewState) {
	groups := make([]types.Stage, 0, types.StageCount+1)
	groups = append(groups, types.Stages()...)
	groups = append(groups, types.StageUnclassified)
	for _, stage := range groups {
		for _, task := range vs.Tasks.For(stage) {
			marker := " "
			if task.Current {
				marker = "*"
			}
			fmt.Fprintf(w, "  %s [%d] %s %s %s (%s)\n",
				marker, int(task.Stage),
				fitColumn(task.ID, 14), fitColumn(task.Title, watchTitleWidth),
				fitColumn(task.Status.Label(), 6), task.Status.EnglishLabel(),
			)
		}
	}
}

func writeWatchStageDetails(w io.Writer, vs session.ViewState) {
	if vs.StageGoal != "" {
		fmt.Fprintf(w, "  goal: %s\n", vs.StageGoal)
	}
	if len(vs.StageKeywords) > 0 {
		fmt.Fprintf(w, "  keywords: %s\n", strings.Join(vs.StageKeywords, ", "))
	}
}

package session

import "cbot/internal/types"

// LogWindowSize is how many of the newest log entries a Diff carries.
const LogWindowSize = 5

type StageState string

const (
	StagePending   StageState = "pending"
	StageActive    StageState = "active"
	StageCompleted StageState = "completed"
)

type StageProgress struct {
	Stage types.Stage
	State StageState
}

type TaskView struct {
	ID          string
	Title       string
	Description string
	Stage       types.Stage
	Status      types.TaskStatus
	Current     bool
}

// TaskGroups partitions tasks by owning stage. Tasks without a recognized
// stage land in Unclassified instead of being dropped.
type TaskGroups struct {
	ByStage      [types.StageCount][]TaskView
	Unclassified []TaskView
}

func (g TaskGroups) For(stage types.Stage) []TaskView {
	if !stage.Valid() {
		return g.Unclassified
	}
	return g.ByStage[stage-1]
}

func (g TaskGroups) Len() int {
	n := len(g.Unclassified)
	for _, group := range g.ByStage {
		n += len(group)
	}
	return n
}

type StageTransition struct {
	From types.Stage
	To   types.Stage
}

func (t StageTransition) Changed() bool {
	return t.From.Valid() && t.From != t.To
}

// TaskTransition.From is empty for a task that was not in the previous
// snapshot.
type TaskTransition struct {
	TaskID string
	From   types.TaskStatus
	To     types.TaskStatus
}

// Diff is everything a renderer needs from one reconciliation. It never
// aliases the snapshots it was built from.
type Diff struct {
	ConversationID string
	Initial        bool

	CurrentStage   types.Stage
	Stages         [types.StageCount]StageProgress
	Transition     StageTransition
	StageRegressed bool

	Tasks           TaskGroups
	TaskTransitions []TaskTransition

	CurrentTaskID      string
	CurrentTaskTitle   string
	CurrentTaskChanged bool
	CurrentModuleID    string
	ModuleChanged      bool
	CompletedTasks     []string

	CompletionWindow     []types.CompletionEvent
	SupervisionWindow    []types.SupervisionEvent
	NewCompletionEvents  int
	NewSupervisionEvents int
	CompletionLogShrunk  bool
	SupervisionLogShrunk bool

	StageGoal     *string
	StageKeywords []string
}

// Changed reports whether anything a renderer cares about moved.
func (d Diff) Changed() bool {
	return d.Initial ||
		d.Transition.Changed() ||
		len(d.TaskTransitions) > 0 ||
		d.CurrentTaskChanged ||
		d.ModuleChanged ||
		d.NewCompletionEvents > 0 ||
		d.NewSupervisionEvents > 0 ||
		d.CompletionLogShrunk ||
		d.SupervisionLogShrunk
}

func (d Diff) Anomalous() bool {
	return d.StageRegressed || d.CompletionLogShrunk || d.SupervisionLogShrunk
}

// Reconcile compares next against previous (nil on the first poll). It does
// no I/O and keeps no state; equal inputs give equal Diffs.
func Reconcile(previous *types.SessionSnapshot, next types.SessionSnapshot) Diff {
	stage := next.CurrentStage
	if !stage.Valid() {
		stage = types.StageStart
	}
	diff := Diff{
		ConversationID:  next.ConversationID,
		Initial:         previous == nil,
		CurrentStage:    stage,
		Stages:          stageProgress(stage),
		CurrentTaskID:   next.CurrentTaskID,
		CurrentModuleID: next.CurrentModuleID,
		CompletedTasks:  append([]string(nil), next.CompletedTasks...),
		Tasks:           groupTasks(next.Tasks, next.CurrentTaskID),
		StageKeywords:   append([]string(nil), next.StageSelectedKeywords...),
	}
	if task, ok := next.Task(next.CurrentTaskID); ok {
		diff.CurrentTaskTitle = task.DisplayTitle()
	} else {
		diff.CurrentTaskTitle = next.CurrentTaskID
	}
	if next.StageGoal != nil {
		goal := *next.StageGoal
		diff.StageGoal = &goal
	}
	diff.CompletionWindow = newestFirst(next.CompletionLog, LogWindowSize)
	diff.SupervisionWindow = newestFirst(next.SupervisionLog, LogWindowSize)

	if previous == nil {
		diff.Transition = StageTransition{To: stage}
		diff.TaskTransitions = taskTransitions(nil, next.Tasks)
		diff.NewCompletionEvents = len(next.CompletionLog)
		diff.NewSupervisionEvents = len(next.SupervisionLog)
		return diff
	}

	prevStage := previous.CurrentStage
	if !prevStage.Valid() {
		prevStage = types.StageStart
	}
	diff.Transition = StageTransition{From: prevStage, To: stage}
	diff.StageRegressed = stage < prevStage
	diff.TaskTransitions = taskTransitions(previous.Tasks, next.Tasks)
	diff.CurrentTaskChanged = previous.CurrentTaskID != next.CurrentTaskID
	diff.ModuleChanged = previous.CurrentModuleID != next.CurrentModuleID
	diff.NewCompletionEvents, diff.CompletionLogShrunk = logGrowth(len(previous.CompletionLog), len(next.CompletionLog))
	diff.NewSupervisionEvents, diff.SupervisionLogShrunk = logGrowth(len(previous.SupervisionLog), len(next.SupervisionLog))
	return diff
}

func stageProgress(current types.Stage) [types.StageCount]StageProgress {
	var out [types.StageCount]StageProgress
	for i, stage := range types.Stages() {
		state := StagePending
		switch {
		case stage < current:
			state = StageCompleted
		case stage == current:
			state = StageActive
		}
		out[i] = StageProgress{Stage: stage, State: state}
	}
	return out
}

func groupTasks(tasks []types.Task, currentTaskID string) TaskGroups {
	var groups TaskGroups
	for _, task := range tasks {
		view := TaskView{
			ID:          task.ID,
			Title:       task.DisplayTitle(),
			Description: task.Description,
			Stage:       task.Stage,
			Status:      task.Status,
			Current:     currentTaskID != "" && task.ID == currentTaskID,
		}
		if !task.Stage.Valid() {
			groups.Unclassified = append(groups.Unclassified, view)
			continue
		}
		groups.ByStage[task.Stage-1] = append(groups.ByStage[task.Stage-1], view)
	}
	return groups
}

func taskTransitions(previous, next []types.Task) []TaskTransition {
	before := make(map[string]types.TaskStatus, len(previous))
	for _, task := range previous {
		before[task.ID] = task.Status
	}
	var out []TaskTransition
	for _, task := range next {
		from, seen := before[task.ID]
		if seen && from == task.Status {
			continue
		}
		out = append(out, TaskTransition{TaskID: task.ID, From: from, To: task.Status})
	}
	return out
}

func logGrowth(before, after int) (added int, shrunk bool) {
	if after < before {
		return 0, true
	}
	return after - before, false
}

// newestFirst copies up to n trailing entries in reverse order.
func newestFirst[T any](log []T, n int) []T {
	if len(log) < n {
		n = len(log)
	}
	out := make([]T, 0, n)
	for i := len(log) - 1; i >= len(log)-n; i-- {
		out = append(out, log[i])
	}
	return out
}

package session

import (
	"time"

	"cbot/internal/types"
)

type TurnView struct {
	Index       int
	Role        types.Role
	Content     string
	CreatedAt   time.Time
	Inspectable bool
}

type CompletionView struct {
	TaskID    string
	TaskTitle string
	Completed bool
	Status    types.TaskStatus
	Reason    string
}

type SupervisionView struct {
	Score            int
	Feedback         string
	Improvements     string
	Strengths        string
	NeedsImprovement bool
	TurnIndex        int
	HasTurn          bool
}

type Anomaly string

const (
	AnomalyStageRegressed       Anomaly = "stage_regressed"
	AnomalyCompletionLogShrunk  Anomaly = "completion_log_shrunk"
	AnomalySupervisionLogShrunk Anomaly = "supervision_log_shrunk"
)

// ViewState is a complete renderable state. A renderer never needs anything
// else to draw a frame.
type ViewState struct {
	ConversationID string
	Revision       int
	Synced         bool

	Turns []TurnView

	CurrentStage types.Stage
	Stages       [types.StageCount]StageProgress
	Tasks        TaskGroups
	Highlighted  []string

	CurrentTaskID    string
	CurrentTaskTitle string
	CurrentModuleID  string
	CompletedTasks   []string

	Completions  []CompletionView
	Supervisions []SupervisionView

	StageGoal        string
	StageKeywords    []string
	ShowStageDetails bool

	Anomalies []Anomaly
}

func NewViewState(conversationID string) ViewState {
	return ViewState{
		ConversationID: conversationID,
		CurrentStage:   types.StageStart,
		Stages:         stageProgress(types.StageStart),
	}
}

// Project builds the next view state from a complete Diff. Turns are carried
// over only when the Diff belongs to the same conversation.
func Project(vs ViewState, diff Diff) ViewState {
	next := ViewState{
		ConversationID:   diff.ConversationID,
		Revision:         vs.Revision + 1,
		Synced:           true,
		CurrentStage:     diff.CurrentStage,
		Stages:           diff.Stages,
		Tasks:            copyGroups(diff.Tasks),
		CurrentTaskID:    diff.CurrentTaskID,
		CurrentTaskTitle: diff.CurrentTaskTitle,
		CurrentModuleID:  diff.CurrentModuleID,
		CompletedTasks:   append([]string(nil), diff.CompletedTasks...),
		StageKeywords:    append([]string(nil), diff.StageKeywords...),
	}
	if vs.ConversationID == diff.ConversationID {
		next.Turns = append([]TurnView(nil), vs.Turns...)
	}
	for _, transition := range diff.TaskTransitions {
		next.Highlighted = append(next.Highlighted, transition.TaskID)
	}

	titles := taskTitles(diff.Tasks)
	next.Completions = make([]CompletionView, 0, len(diff.CompletionWindow))
	for _, event := range diff.CompletionWindow {
		title := titles[event.TaskID]
		if title == "" {
			title = event.TaskID
		}
		next.Completions = append(next.Completions, CompletionView{
			TaskID:    event.TaskID,
			TaskTitle: title,
			Completed: event.Completed(),
			Status:    event.NewStatus,
			Reason:    event.Reason,
		})
	}
	next.Supervisions = make([]SupervisionView, 0, len(diff.SupervisionWindow))
	for _, event := range diff.SupervisionWindow {
		turn, hasTurn := event.ScoredTurn()
		next.Supervisions = append(next.Supervisions, SupervisionView{
			Score:            event.Score,
			Feedback:         event.Feedback,
			Improvements:     event.Improvements,
			Strengths:        event.Strengths,
			NeedsImprovement: event.NeedsImprovement(),
			TurnIndex:        turn,
			HasTurn:          hasTurn,
		})
	}

	if diff.StageGoal != nil {
		next.StageGoal = *diff.StageGoal
	}
	next.ShowStageDetails = diff.CurrentStage >= types.StageExplore && (next.StageGoal != "" || len(next.StageKeywords) > 0)

	if diff.StageRegressed {
		next.Anomalies = append(next.Anomalies, AnomalyStageRegressed)
	}
	if diff.CompletionLogShrunk {
		next.Anomalies = append(next.Anomalies, AnomalyCompletionLogShrunk)
	}
	if diff.SupervisionLogShrunk {
		next.Anomalies = append(next.Anomalies, AnomalySupervisionLogShrunk)
	}
	return next
}

// WithTurns returns vs with its transcript replaced.
func WithTurns(vs ViewState, turns []types.Turn) ViewState {
	out := vs
	out.Revision = vs.Revision + 1
	out.Turns = make([]TurnView, 0, len(turns))
	for _, turn := range turns {
		out.Turns = append(out.Turns, TurnView{
			Index:       turn.Index,
			Role:        turn.Role,
			Content:     turn.Content,
			CreatedAt:   turn.CreatedAt,
			Inspectable: turn.Linkable(),
		})
	}
	return out
}

// BuildView projects a single snapshot from scratch.
func BuildView(snapshot types.SessionSnapshot, turns []types.Turn) ViewState {
	vs := WithTurns(NewViewState(snapshot.ConversationID), turns)
	return Project(vs, Reconcile(nil, snapshot))
}

func (vs ViewState) Turn(index int) (TurnView, bool) {
	for _, turn := range vs.Turns {
		if turn.Index == index {
			return turn, true
		}
	}
	return TurnView{}, false
}

func (vs ViewState) IsHighlighted(taskID string) bool {
	for _, id := range vs.Highlighted {
		if id == taskID {
			return true
		}
	}
	return false
}

func copyGroups(groups TaskGroups) TaskGroups {
	var out TaskGroups
	for i, group := range groups.ByStage {
		out.ByStage[i] = append([]TaskView(nil), group...)
	}
	out.Unclassified = append([]TaskView(nil), groups.Unclassified...)
	return out
}

func taskTitles(groups TaskGroups) map[string]string {
	out := make(map[string]string, groups.Len())
	for _, group := range groups.ByStage {
		for _, task := range group {
			out[task.ID] = task.Title
		}
	}
	for _, task := range groups.Unclassified {
		out[task.ID] = task.Title
	}
	return out
}

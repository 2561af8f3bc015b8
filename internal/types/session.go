package types

import "strings"

// Stage is one of the three sequential phases of a counseling session. The
// backend calls it "part".
type Stage int

const (
	StageUnclassified Stage = 0
	StageStart        Stage = 1
	StageExplore      Stage = 2
	StageWrapUp       Stage = 3
)

const StageCount = 3

func Stages() []Stage {
	return []Stage{StageStart, StageExplore, StageWrapUp}
}

func (s Stage) Valid() bool {
	return s >= StageStart && s <= StageWrapUp
}

func (s Stage) Label() string {
	switch s {
	case StageStart:
		return "시작"
	case StageExplore:
		return "탐색"
	case StageWrapUp:
		return "마무리"
	default:
		return "미분류"
	}
}

func (s Stage) EnglishLabel() string {
	switch s {
	case StageStart:
		return "start"
	case StageExplore:
		return "exploration"
	case StageWrapUp:
		return "wrap-up"
	default:
		return "unclassified"
	}
}

// TaskStatus moves strictly forward: pending, in_progress, sufficient,
// completed.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusSufficient TaskStatus = "sufficient"
	TaskStatusCompleted  TaskStatus = "completed"
)

func ParseTaskStatus(raw string) (TaskStatus, bool) {
	switch TaskStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case TaskStatusPending:
		return TaskStatusPending, true
	case TaskStatusInProgress:
		return TaskStatusInProgress, true
	case TaskStatusSufficient:
		return TaskStatusSufficient, true
	case TaskStatusCompleted:
		return TaskStatusCompleted, true
	default:
		return "", false
	}
}

// Rank orders statuses along the forward path. Unknown statuses rank -1.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusInProgress:
		return 1
	case TaskStatusSufficient:
		return 2
	case TaskStatusCompleted:
		return 3
	default:
		return -1
	}
}

func (s TaskStatus) Label() string {
	switch s {
	case TaskStatusPending:
		return "대기"
	case TaskStatusInProgress:
		return "진행 중"
	case TaskStatusSufficient:
		return "충분"
	case TaskStatusCompleted:
		return "완료"
	default:
		return "-"
	}
}

func (s TaskStatus) EnglishLabel() string {
	switch s {
	case TaskStatusPending:
		return "pending"
	case TaskStatusInProgress:
		return "in progress"
	case TaskStatusSufficient:
		return "sufficient"
	case TaskStatusCompleted:
		return "completed"
	default:
		return "-"
	}
}

// Task.Stage is StageUnclassified when the backend did not tag the task with
// a recognized stage.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Stage       Stage      `json:"part"`
	Status      TaskStatus `json:"status"`
}

// DisplayTitle falls back to the task id when no title was provided.
func (t Task) DisplayTitle() string {
	if title := strings.TrimSpace(t.Title); title != "" {
		return title
	}
	return t.ID
}

// CompletionEvent.NewStatus is empty when the checker decided the task is not
// completed yet.
type CompletionEvent struct {
	TaskID    string     `json:"task_id"`
	NewStatus TaskStatus `json:"new_status,omitempty"`
	Reason    string     `json:"completion_reason"`
}

func (e CompletionEvent) Completed() bool {
	return e.NewStatus != ""
}

const (
	DefaultSupervisionScore   = 7
	MaxSupervisionScore       = 10
	supervisionPassScore      = 7
	NoSupervisionMessageIndex = -1
)

// SupervisionEvent is an evaluation of one assistant turn. Improvements and
// Strengths are empty when the supervisor reported nothing.
type SupervisionEvent struct {
	Score        int    `json:"score"`
	Feedback     string `json:"feedback"`
	Improvements string `json:"improvements,omitempty"`
	Strengths    string `json:"strengths,omitempty"`
	MessageIndex int    `json:"message_index"`
}

func (e SupervisionEvent) HasImprovements() bool {
	return e.Improvements != ""
}

func (e SupervisionEvent) HasStrengths() bool {
	return e.Strengths != ""
}

func (e SupervisionEvent) NeedsImprovement() bool {
	return e.Score < supervisionPassScore
}

func (e SupervisionEvent) ScoredTurn() (int, bool) {
	if e.MessageIndex < 0 {
		return 0, false
	}
	return e.MessageIndex, true
}

// SessionSnapshot is a normalized point-in-time read of the server-side
// session progress. StageGoal and StageSelectedKeywords only exist once the
// exploration stage produced them.
type SessionSnapshot struct {
	ConversationID        string             `json:"conversation_id"`
	CurrentStage          Stage              `json:"current_part"`
	CurrentTaskID         string             `json:"current_task,omitempty"`
	CurrentModuleID       string             `json:"current_module,omitempty"`
	Tasks                 []Task             `json:"tasks"`
	CompletedTasks        []string           `json:"completed_tasks"`
	CompletionLog         []CompletionEvent  `json:"completion_log"`
	SupervisionLog        []SupervisionEvent `json:"supervision_log"`
	StageGoal             *string            `json:"part2_goal,omitempty"`
	StageSelectedKeywords []string           `json:"part2_selected_keywords,omitempty"`
}

func (s SessionSnapshot) Task(id string) (Task, bool) {
	for _, task := range s.Tasks {
		if task.ID == id {
			return task, true
		}
	}
	return Task{}, false
}

func (s SessionSnapshot) Clone() SessionSnapshot {
	out := s
	out.Tasks = append([]Task(nil), s.Tasks...)
	out.CompletedTasks = append([]string(nil), s.CompletedTasks...)
	out.CompletionLog = append([]CompletionEvent(nil), s.CompletionLog...)
	out.SupervisionLog = append([]SupervisionEvent(nil), s.SupervisionLog...)
	out.StageSelectedKeywords = append([]string(nil), s.StageSelectedKeywords...)
	if s.StageGoal != nil {
		goal := *s.StageGoal
		out.StageGoal = &goal
	}
	return out
}

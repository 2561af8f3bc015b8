package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SessionRecord is the session document as served by the backend. Fields are
// kept loose because several revisions of the backend wrote different shapes;
// Normalize turns it into a SessionSnapshot with documented fallbacks.
type SessionRecord struct {
	ConversationID        string              `json:"conversation_id,omitempty"`
	CurrentPart           json.RawMessage     `json:"current_part,omitempty"`
	CurrentTask           json.RawMessage     `json:"current_task,omitempty"`
	CurrentModule         json.RawMessage     `json:"current_module,omitempty"`
	Tasks                 []TaskRecord        `json:"tasks"`
	CompletedTasks        []json.RawMessage   `json:"completed_tasks"`
	CompletionLog         []CompletionRecord  `json:"completion_log"`
	SupervisionLog        []SupervisionRecord `json:"supervision_log"`
	Part2Goal             *string             `json:"part2_goal,omitempty"`
	Part2SelectedKeywords []string            `json:"part2_selected_keywords,omitempty"`
}

type TaskRecord struct {
	ID          string          `json:"id"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Part        json.RawMessage `json:"part,omitempty"`
	Status      string          `json:"status,omitempty"`
}

type CompletionRecord struct {
	TaskID           string  `json:"task_id"`
	NewStatus        *string `json:"new_status"`
	CompletionReason string  `json:"completion_reason,omitempty"`
}

type SupervisionRecord struct {
	Score        json.RawMessage `json:"score,omitempty"`
	Feedback     string          `json:"feedback,omitempty"`
	Improvements string          `json:"improvements,omitempty"`
	Strengths    string          `json:"strengths,omitempty"`
	MessageIndex *int            `json:"message_index,omitempty"`
}

// ValidationIssue describes a malformed field that was recovered locally.
type ValidationIssue struct {
	Field  string
	Detail string
}

func (v ValidationIssue) String() string {
	return v.Field + ": " + v.Detail
}

// Normalize applies the boundary fallbacks:
//   - current_part missing -> 1, out of range -> clamped to 1..3
//   - task part missing or unrecognized -> StageUnclassified
//   - task title empty -> left empty, Task.DisplayTitle falls back to the id
//   - task status unknown -> pending
//   - new_status null or "None" -> not completed
//   - supervision score missing -> 7, clamped to 0..10
//   - "none"/"없음" free text -> empty
func (r SessionRecord) Normalize(conversationID string) (SessionSnapshot, []ValidationIssue) {
	var issues []ValidationIssue
	id := strings.TrimSpace(conversationID)
	if id == "" {
		id = strings.TrimSpace(r.ConversationID)
	}
	snapshot := SessionSnapshot{
		ConversationID: id,
		CurrentStage:   StageStart,
		Tasks:          make([]Task, 0, len(r.Tasks)),
		CompletedTasks: make([]string, 0, len(r.CompletedTasks)),
		CompletionLog:  make([]CompletionEvent, 0, len(r.CompletionLog)),
		SupervisionLog: make([]SupervisionEvent, 0, len(r.SupervisionLog)),
	}

	if part, ok := rawNumber(r.CurrentPart); ok {
		stage := Stage(clampNumber(part, int(StageStart), int(StageWrapUp)))
		switch {
		case part < float64(StageStart):
			issues = append(issues, ValidationIssue{Field: "current_part", Detail: fmt.Sprintf("%g below range, using 1", part)})
		case part > float64(StageWrapUp):
			issues = append(issues, ValidationIssue{Field: "current_part", Detail: fmt.Sprintf("%g above range, using 3", part)})
		}
		snapshot.CurrentStage = stage
	} else if !rawIsNull(r.CurrentPart) {
		issues = append(issues, ValidationIssue{Field: "current_part", Detail: "not a number, using 1"})
	}

	snapshot.CurrentTaskID, _ = rawIdentifier(r.CurrentTask)
	snapshot.CurrentModuleID, _ = rawIdentifier(r.CurrentModule)

	for i, rec := range r.Tasks {
		task := Task{
			ID:          strings.TrimSpace(rec.ID),
			Title:       strings.TrimSpace(rec.Title),
			Description: strings.TrimSpace(rec.Description),
			Stage:       StageUnclassified,
			Status:      TaskStatusPending,
		}
		if task.ID == "" {
			issues = append(issues, ValidationIssue{Field: fmt.Sprintf("tasks[%d].id", i), Detail: "missing"})
		}
		if stage, ok := rawStage(rec.Part); ok {
			task.Stage = stage
		} else {
			issues = append(issues, ValidationIssue{Field: fmt.Sprintf("tasks[%d].part", i), Detail: "unrecognized stage, task is unclassified"})
		}
		if status, ok := ParseTaskStatus(rec.Status); ok {
			task.Status = status
		} else {
			issues = append(issues, ValidationIssue{Field: fmt.Sprintf("tasks[%d].status", i), Detail: fmt.Sprintf("unknown status %q, using pending", rec.Status)})
		}
		snapshot.Tasks = append(snapshot.Tasks, task)
	}

	for i, raw := range r.CompletedTasks {
		id, ok := rawIdentifier(raw)
		if !ok || id == "" {
			issues = append(issues, ValidationIssue{Field: fmt.Sprintf("completed_tasks[%d]", i), Detail: "no task id"})
			continue
		}
		snapshot.CompletedTasks = append(snapshot.CompletedTasks, id)
	}

	for i, rec := range r.CompletionLog {
		event := CompletionEvent{
			TaskID: strings.TrimSpace(rec.TaskID),
			Reason: strings.TrimSpace(rec.CompletionReason),
		}
		if rec.NewStatus != nil && !isNoneSentinel(*rec.NewStatus) {
			if status, ok := ParseTaskStatus(*rec.NewStatus); ok {
				event.NewStatus = status
			} else {
				issues = append(issues, ValidationIssue{Field: fmt.Sprintf("completion_log[%d].new_status", i), Detail: fmt.Sprintf("unknown status %q", *rec.NewStatus)})
			}
		}
		snapshot.CompletionLog = append(snapshot.CompletionLog, event)
	}

	for i, rec := range r.SupervisionLog {
		event, ok := rec.Normalize()
		if !ok {
			issues = append(issues, ValidationIssue{Field: fmt.Sprintf("supervision_log[%d].score", i), Detail: "missing or invalid, using default"})
		}
		snapshot.SupervisionLog = append(snapshot.SupervisionLog, event)
	}

	if r.Part2Goal != nil {
		if goal := strings.TrimSpace(*r.Part2Goal); goal != "" {
			snapshot.StageGoal = &goal
		}
	}
	for _, keyword := range r.Part2SelectedKeywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			snapshot.StageSelectedKeywords = append(snapshot.StageSelectedKeywords, keyword)
		}
	}
	return snapshot, issues
}

// Normalize returns the event and whether the score was usable as sent.
func (r SupervisionRecord) Normalize() (SupervisionEvent, bool) {
	event := SupervisionEvent{
		Score:        DefaultSupervisionScore,
		Feedback:     noneToEmpty(r.Feedback),
		Improvements: noneToEmpty(r.Improvements),
		Strengths:    noneToEmpty(r.Strengths),
		MessageIndex: NoSupervisionMessageIndex,
	}
	if r.MessageIndex != nil && *r.MessageIndex >= 0 {
		event.MessageIndex = *r.MessageIndex
	}
	score, ok := rawNumber(r.Score)
	if !ok {
		return event, false
	}
	event.Score = clampNumber(score, 0, MaxSupervisionScore)
	return event, true
}

func isNoneSentinel(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none", "null", "없음":
		return true
	default:
		return false
	}
}

func noneToEmpty(value string) string {
	if isNoneSentinel(value) {
		return ""
	}
	return strings.TrimSpace(value)
}

func rawIsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// rawNumber accepts a JSON number or a numeric string.
func rawNumber(raw json.RawMessage) (float64, bool) {
	if rawIsNull(raw) {
		return 0, false
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if parseErr != nil {
			return 0, false
		}
		number = parsed
	}
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}
	return number, true
}

// rawStage accepts only whole-number stage tags in 1..3.
func rawStage(raw json.RawMessage) (Stage, bool) {
	number, ok := rawNumber(raw)
	if !ok || number != math.Trunc(number) || number < float64(StageStart) || number > float64(StageWrapUp) {
		return StageUnclassified, false
	}
	return Stage(number), true
}

// clampNumber bounds number to lo..hi before the int conversion, so huge
// values land on hi instead of overflowing. Fractions are rounded.
func clampNumber(number float64, lo, hi int) int {
	switch {
	case number < float64(lo):
		return lo
	case number > float64(hi):
		return hi
	default:
		return int(math.Round(number))
	}
}

// rawIdentifier accepts a string or an object carrying an "id" field.
func rawIdentifier(raw json.RawMessage) (string, bool) {
	if rawIsNull(raw) {
		return "", false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if isNoneSentinel(text) {
			return "", false
		}
		return strings.TrimSpace(text), true
	}
	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &object); err == nil && strings.TrimSpace(object.ID) != "" {
		return strings.TrimSpace(object.ID), true
	}
	return "", false
}

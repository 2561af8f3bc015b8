package mockbackend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cbot/internal/types"
)

type mockTask struct {
	id          string
	title       string
	description string
	module      string
	stage       types.Stage
	status      types.TaskStatus
}

// progress is the server-side session of one conversation. Each assistant
// turn moves the current task one status step forward; a stage ends when all
// of its tasks are sufficient (stages 1 and 2) or completed (stage 3).
type progress struct {
	stage          types.Stage
	currentTask    string
	tasks          []mockTask
	completedTasks []string
	completionLog  []types.CompletionRecord
	supervisionLog []types.SupervisionRecord
	goal           *string
	keywords       []string
	finished       bool
}

func newProgress() *progress {
	p := &progress{stage: types.StageStart}
	p.addStageTasks(types.StageStart)
	p.currentTask = p.nextOpenTask()
	return p
}

func (p *progress) addStageTasks(stage types.Stage) {
	for _, tmpl := range stageTemplates[stage] {
		p.tasks = append(p.tasks, mockTask{
			id:          tmpl.id,
			title:       tmpl.title,
			description: tmpl.description,
			module:      tmpl.module,
			stage:       stage,
			status:      types.TaskStatusPending,
		})
	}
}

func (p *progress) task(id string) *mockTask {
	for i := range p.tasks {
		if p.tasks[i].id == id {
			return &p.tasks[i]
		}
	}
	return nil
}

func (p *progress) currentModule() string {
	if task := p.task(p.currentTask); task != nil {
		return task.module
	}
	return ""
}

func (p *progress) targetStatus() types.TaskStatus {
	if p.stage == types.StageWrapUp {
		return types.TaskStatusCompleted
	}
	return types.TaskStatusSufficient
}

func (p *progress) nextOpenTask() string {
	target := p.targetStatus()
	for _, task := range p.tasks {
		if task.stage == p.stage && task.status.Rank() < target.Rank() {
			return task.id
		}
	}
	return ""
}

// advance runs the completion check for one assistant turn.
func (p *progress) advance(persona *types.Persona) {
	if p.finished {
		return
	}
	task := p.task(p.currentTask)
	if task == nil {
		return
	}
	next := nextStatus(task.status)
	task.status = next
	entry := types.CompletionRecord{TaskID: task.id}
	if next.Rank() >= p.targetStatus().Rank() {
		status := string(next)
		entry.NewStatus = &status
		entry.CompletionReason = fmt.Sprintf("%s 목표가 충분히 다뤄졌습니다.", task.title)
		p.completedTasks = append(p.completedTasks, task.id)
	} else {
		entry.CompletionReason = fmt.Sprintf("%s 진행 중 (%s)", task.title, next.Label())
	}
	p.completionLog = append(p.completionLog, entry)

	if open := p.nextOpenTask(); open != "" {
		p.currentTask = open
		return
	}
	switch p.stage {
	case types.StageStart:
		p.stage = types.StageExplore
		p.addStageTasks(types.StageExplore)
		p.selectFocus(persona)
	case types.StageExplore:
		p.stage = types.StageWrapUp
		p.addStageTasks(types.StageWrapUp)
	default:
		p.finished = true
		p.currentTask = ""
		return
	}
	p.currentTask = p.nextOpenTask()
}

func (p *progress) selectFocus(persona *types.Persona) {
	keywords := []string{"감정 인식", "자기 돌봄"}
	if persona != nil && len(persona.TypeSpecificKeywords) >= 2 {
		keywords = append([]string(nil), persona.TypeSpecificKeywords[:2]...)
	}
	goal := strings.Join(keywords, ", ") + "에 대한 이해와 대처 방법 찾기"
	p.goal = &goal
	p.keywords = keywords
}

func nextStatus(status types.TaskStatus) types.TaskStatus {
	switch status {
	case types.TaskStatusPending:
		return types.TaskStatusInProgress
	case types.TaskStatusInProgress:
		return types.TaskStatusSufficient
	default:
		return types.TaskStatusCompleted
	}
}

func (p *progress) record(conversationID string) types.SessionRecord {
	rec := types.SessionRecord{
		ConversationID:        conversationID,
		CurrentPart:           json.RawMessage(strconv.Itoa(int(p.stage))),
		CurrentTask:           rawString(p.currentTask),
		CurrentModule:         rawString(p.currentModule()),
		Tasks:                 make([]types.TaskRecord, 0, len(p.tasks)),
		CompletedTasks:        make([]json.RawMessage, 0, len(p.completedTasks)),
		CompletionLog:         append([]types.CompletionRecord{}, p.completionLog...),
		SupervisionLog:        append([]types.SupervisionRecord{}, p.supervisionLog...),
		Part2SelectedKeywords: append([]string(nil), p.keywords...),
	}
	for _, task := range p.tasks {
		rec.Tasks = append(rec.Tasks, types.TaskRecord{
			ID:          task.id,
			Title:       task.title,
			Description: task.description,
			Part:        json.RawMessage(strconv.Itoa(int(task.stage))),
			Status:      string(task.status),
		})
	}
	for _, id := range p.completedTasks {
		rec.CompletedTasks = append(rec.CompletedTasks, rawString(id))
	}
	if p.goal != nil {
		goal := *p.goal
		rec.Part2Goal = &goal
	}
	return rec
}

func rawString(value string) json.RawMessage {
	if value == "" {
		return json.RawMessage("null")
	}
	buf, _ := json.Marshal(value)
	return buf
}

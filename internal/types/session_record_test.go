package types

import (
	"encoding/json"
	"testing"
)

func decodeSessionRecord(t *testing.T, raw string) SessionRecord {
	t.Helper()
	var record SessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		t.Fatalf("decode session record: %v", err)
	}
	return record
}

func TestSessionRecordNormalizeAppliesFallbacks(t *testing.T) {
	record := decodeSessionRecord(t, `{
		"current_part": "2",
		"current_task": {"id": "t2", "title": "탐색"},
		"current_module": null,
		"tasks": [
			{"id": "t1", "title": "", "part": 1, "status": "sufficient"},
			{"id": "t2", "title": "탐색", "part": "2", "status": "in_progress"},
			{"id": "t9", "title": "legacy", "status": "weird"}
		],
		"completed_tasks": ["t0", {"id": "t1"}, 7],
		"completion_log": [
			{"task_id": "t1", "new_status": "None", "completion_reason": "아직"},
			{"task_id": "t1", "new_status": "sufficient", "completion_reason": "충분히 다룸"}
		],
		"supervision_log": [
			{"feedback": "좋음", "improvements": "없음", "strengths": "공감", "message_index": 1},
			{"score": 12.4, "feedback": "", "improvements": "질문 줄이기", "strengths": "none"}
		],
		"part2_goal": "  자기 돌봄 계획  ",
		"part2_selected_keywords": ["불안", " ", "대처 전략"]
	}`)

	snapshot, issues := record.Normalize("conv-1")
	if snapshot.ConversationID != "conv-1" {
		t.Fatalf("unexpected conversation id: %q", snapshot.ConversationID)
	}
	if snapshot.CurrentStage != StageExplore {
		t.Fatalf("expected stage 2, got %d", snapshot.CurrentStage)
	}
	if snapshot.CurrentTaskID != "t2" || snapshot.CurrentModuleID != "" {
		t.Fatalf("unexpected current task/module: %q %q", snapshot.CurrentTaskID, snapshot.CurrentModuleID)
	}
	if len(snapshot.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(snapshot.Tasks))
	}
	if snapshot.Tasks[0].DisplayTitle() != "t1" {
		t.Fatalf("expected title fallback to id, got %q", snapshot.Tasks[0].DisplayTitle())
	}
	if snapshot.Tasks[1].Stage != StageExplore {
		t.Fatalf("expected numeric string part to parse, got %d", snapshot.Tasks[1].Stage)
	}
	if snapshot.Tasks[2].Stage != StageUnclassified || snapshot.Tasks[2].Status != TaskStatusPending {
		t.Fatalf("unexpected legacy task: %#v", snapshot.Tasks[2])
	}
	if len(snapshot.CompletedTasks) != 2 || snapshot.CompletedTasks[1] != "t1" {
		t.Fatalf("unexpected completed tasks: %#v", snapshot.CompletedTasks)
	}
	if snapshot.CompletionLog[0].Completed() {
		t.Fatalf("expected None status to mean not completed")
	}
	if snapshot.CompletionLog[1].NewStatus != TaskStatusSufficient {
		t.Fatalf("unexpected completion status: %q", snapshot.CompletionLog[1].NewStatus)
	}
	first := snapshot.SupervisionLog[0]
	if first.Score != DefaultSupervisionScore || first.HasImprovements() || !first.HasStrengths() {
		t.Fatalf("unexpected first supervision: %#v", first)
	}
	if idx, ok := first.ScoredTurn(); !ok || idx != 1 {
		t.Fatalf("expected scored turn 1, got %d %v", idx, ok)
	}
	second := snapshot.SupervisionLog[1]
	if second.Score != MaxSupervisionScore || second.HasStrengths() || second.NeedsImprovement() {
		t.Fatalf("unexpected second supervision: %#v", second)
	}
	if _, ok := second.ScoredTurn(); ok {
		t.Fatalf("expected no scored turn")
	}
	if snapshot.StageGoal == nil || *snapshot.StageGoal != "자기 돌봄 계획" {
		t.Fatalf("unexpected goal: %v", snapshot.StageGoal)
	}
	if len(snapshot.StageSelectedKeywords) != 2 {
		t.Fatalf("unexpected keywords: %#v", snapshot.StageSelectedKeywords)
	}
	if len(issues) < 3 {
		t.Fatalf("expected validation issues for legacy task, completed task and score, got %v", issues)
	}
}

func TestSessionRecordNormalizeDefaultsStage(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Stage
	}{
		{name: "missing", raw: `{}`, want: StageStart},
		{name: "null", raw: `{"current_part": null}`, want: StageStart},
		{name: "too high", raw: `{"current_part": 5}`, want: StageWrapUp},
		{name: "zero", raw: `{"current_part": 0}`, want: StageStart},
		{name: "garbage", raw: `{"current_part": "abc"}`, want: StageStart},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snapshot, _ := decodeSessionRecord(t, tc.raw).Normalize("c")
			if snapshot.CurrentStage != tc.want {
				t.Fatalf("expected stage %d, got %d", tc.want, snapshot.CurrentStage)
			}
		})
	}
}

func TestSessionRecordNormalizeRejectsFractionalAndHugeNumbers(t *testing.T) {
	record := decodeSessionRecord(t, `{
		"current_part": 1e20,
		"tasks": [
			{"id": "a", "part": 1.4},
			{"id": "b", "part": "2.5"},
			{"id": "c", "part": 2.0},
			{"id": "d", "part": -1e30}
		],
		"supervision_log": [{"score": 1e30}, {"score": -1e30}, {"score": "6.6"}]
	}`)

	snapshot, _ := record.Normalize("c")
	if snapshot.CurrentStage != StageWrapUp {
		t.Fatalf("expected huge current_part to clamp to 3, got %d", snapshot.CurrentStage)
	}
	wantStages := []Stage{StageUnclassified, StageUnclassified, StageExplore, StageUnclassified}
	for i, want := range wantStages {
		if got := snapshot.Tasks[i].Stage; got != want {
			t.Fatalf("task %s: expected stage %d, got %d", snapshot.Tasks[i].ID, want, got)
		}
	}
	wantScores := []int{MaxSupervisionScore, 0, 7}
	for i, want := range wantScores {
		if got := snapshot.SupervisionLog[i].Score; got != want {
			t.Fatalf("supervision %d: expected score %d, got %d", i, want, got)
		}
	}
}

func TestPromptRecordNormalize(t *testing.T) {
	var record PromptRecord
	raw := `{"prompt":"[System]\nhi","current_task":"t1","current_part":1,"current_module":"rapport_building",
		"supervision":{"score":5,"feedback":"짧음","improvements":"공감 더","strengths":"없음"},"task_selector_output":""}`
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	meta := record.Normalize(3)
	if meta.Index != 3 || meta.Stage != StageStart || meta.TaskID != "t1" || meta.ModuleID != "rapport_building" {
		t.Fatalf("unexpected metadata: %#v", meta)
	}
	if meta.TaskSelectorOutput != nil {
		t.Fatalf("expected blank task selector output to be dropped")
	}
	if meta.Supervision == nil || meta.Supervision.MessageIndex != 3 || !meta.Supervision.NeedsImprovement() {
		t.Fatalf("unexpected supervision: %#v", meta.Supervision)
	}
}

func TestConversationRecordTurnsKeepBackendIndexes(t *testing.T) {
	record := ConversationRecord{
		ConversationID: "c1",
		Messages: []MessageRecord{
			{Role: "user", Content: "hello", Timestamp: "2025-01-02T03:04:05.123456"},
			{Role: "Assistant", Content: "hi", Timestamp: "2025-01-02T03:04:06Z"},
		},
	}
	turns := record.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Index != 0 || turns[0].Linkable() {
		t.Fatalf("unexpected user turn: %#v", turns[0])
	}
	if turns[1].Index != 1 || !turns[1].Linkable() {
		t.Fatalf("unexpected assistant turn: %#v", turns[1])
	}
	if turns[0].CreatedAt.IsZero() || turns[1].CreatedAt.IsZero() {
		t.Fatalf("expected timestamps to parse")
	}
}

func TestPersonaValidate(t *testing.T) {
	valid := Persona{
		ID:                   "p1",
		TypeSpecificKeywords: []string{"a", "b", "c", "d"},
		CommonKeywords:       []string{"w", "x", "y", "z"},
		CounselingLevel:      2,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid persona: %v", err)
	}
	short := valid
	short.CommonKeywords = []string{"w"}
	if err := short.Validate(); err == nil {
		t.Fatalf("expected keyword count error")
	}
	if len(valid.Keywords()) != 8 {
		t.Fatalf("expected 8 keywords")
	}
}

package app

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"

	"cbot/internal/session"
	"cbot/internal/types"
)

func TestProgressPanelFirstStage(t *testing.T) {
	vs := session.BuildView(types.SessionSnapshot{
		ConversationID: "conv-0001",
		CurrentStage:   types.StageStart,
		CurrentTaskID:  "t1",
		Tasks: []types.Task{
			{ID: "t1", Title: "환영 및 관계 형성", Stage: types.StageStart, Status: types.TaskStatusPending},
		},
	}, nil)
	panel := xansi.Strip(renderProgressPanel(vs, 36, 0))
	if !strings.Contains(panel, "▸ 환영 및 관계 형성") || !strings.Contains(panel, "대기") {
		t.Fatalf("expected current pending task:\n%s", panel)
	}
	if strings.Contains(panel, "2단계") || strings.Contains(panel, "3단계") || strings.Contains(panel, "탐색 초점") {
		t.Fatalf("later stages should have no task groups:\n%s", panel)
	}
}

func TestProgressPanelExplorationDetailsAndSupervision(t *testing.T) {
	goal := "불안, 걱정에 대한 이해와 대처 방법 찾기"
	vs := session.BuildView(types.SessionSnapshot{
		ConversationID:        "conv-0001",
		CurrentStage:          types.StageExplore,
		Tasks:                 []types.Task{{ID: "goal_1", Title: "상담 목표 설정", Stage: types.StageExplore, Status: types.TaskStatusInProgress}, {ID: "x", Title: "", Status: types.TaskStatusPending}},
		CompletionLog:         []types.CompletionEvent{{TaskID: "goal_1", Reason: "진행 중"}},
		SupervisionLog:        []types.SupervisionEvent{{Score: 6, Feedback: "5번째 응답 평가", Improvements: "개방형 질문을 더 활용하세요", MessageIndex: 5}},
		StageGoal:             &goal,
		StageSelectedKeywords: []string{"불안", "걱정"},
	}, nil)
	panel := xansi.Strip(renderProgressPanel(vs, 40, 0))
	for _, want := range []string{"✓ 1 시작", "탐색 초점", "키워드: 불안, 걱정", " 6/10 #5", "개선: 개방형 질문", "미분류"} {
		if !strings.Contains(panel, want) {
			t.Fatalf("panel missing %q:\n%s", want, panel)
		}
	}
}

func TestRenderInspectorShowsMetadata(t *testing.T) {
	selector := `{"selected_task": "info_1"}`
	meta := types.GenerationMetadata{
		Index:              3,
		Prompt:             "[System]\n당신은 따뜻한 상담사입니다.",
		Stage:              types.StageStart,
		TaskID:             "info_1",
		ModuleID:           "information_gathering",
		TaskSelectorOutput: &selector,
		Supervision:        &types.SupervisionEvent{Score: 8, Feedback: "좋은 반영", Strengths: "공감적인 어조", MessageIndex: 3},
	}
	out := xansi.Strip(renderInspector(inspectorInput{index: 3, meta: &meta, width: 80}))
	for _, want := range []string{"메시지 #3", "1 시작", "information_gathering", "8/10", "강점: 공감적인 어조", "selected_task", "[System]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspector missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "개선 필요") {
		t.Fatalf("passing score should not be flagged")
	}
}

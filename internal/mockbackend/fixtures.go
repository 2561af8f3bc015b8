package mockbackend

import "cbot/internal/types"

var commonKeywords = []string{"감정 인식", "자기 돌봄", "대인 관계", "스트레스"}

// DefaultPersonas is the persona catalog served by the admin endpoints.
func DefaultPersonas() []types.Persona {
	return []types.Persona{
		{
			ID:                   "type_a",
			Name:                 "완벽주의 성향",
			Description:          "높은 자기 기대와 완벽을 추구하는 성향",
			TypeSpecificKeywords: []string{"완벽주의", "자기 비판", "스트레스 관리", "목표 설정"},
			CommonKeywords:       append([]string(nil), commonKeywords...),
			CounselingLevel:      1,
		},
		{
			ID:                   "type_b",
			Name:                 "회피 성향",
			Description:          "갈등과 어려운 상황을 회피하는 성향",
			TypeSpecificKeywords: []string{"갈등 회피", "감정 표현", "자기 주장", "경계 설정"},
			CommonKeywords:       append([]string(nil), commonKeywords...),
			CounselingLevel:      2,
		},
		{
			ID:                   "type_d",
			Name:                 "불안 성향",
			Description:          "불안과 걱정이 많은 성향",
			TypeSpecificKeywords: []string{"불안", "걱정", "긴장 완화", "대처 전략"},
			CommonKeywords:       append([]string(nil), commonKeywords...),
			CounselingLevel:      2,
		},
	}
}

type taskTemplate struct {
	id          string
	title       string
	description string
	module      string
}

var stageTemplates = map[types.Stage][]taskTemplate{
	types.StageStart: {
		{id: "rapport_1", title: "환영 및 관계 형성", description: "따뜻하게 환영하고 편안한 분위기 조성", module: "rapport_building"},
		{id: "info_1", title: "기본 정보 수집", description: "상담을 찾게 된 이유 등 기본 정보 파악", module: "information_gathering"},
		{id: "info_2", title: "현재 상황 파악", description: "사용자가 현재 겪고 있는 문제나 상황 이해", module: "information_gathering"},
	},
	types.StageExplore: {
		{id: "explore_1", title: "핵심 감정 탐색", description: "반복되는 감정과 그 계기 탐색", module: "empathy_expression"},
		{id: "goal_1", title: "상담 목표 설정", description: "이번 상담을 통해 달성하고 싶은 목표 설정", module: "goal_setting"},
	},
	types.StageWrapUp: {
		{id: "task_wrapup_1", title: "상담 요약 및 다음 상담 안내", description: "오늘 상담 내용을 요약하고 다음 상담 계획을 안내", module: "goal_setting"},
	},
}

package mockbackend

import (
	"fmt"
	"strings"

	"cbot/internal/types"
)

func composeReply(stage types.Stage, taskTitle, message string) string {
	quoted := strings.TrimSpace(message)
	if runes := []rune(quoted); len(runes) > 40 {
		quoted = string(runes[:40]) + "…"
	}
	if taskTitle == "" {
		return fmt.Sprintf("오늘 이야기 나눠 주셔서 감사합니다. \"%s\"라는 말씀이 마음에 남네요.", quoted)
	}
	return fmt.Sprintf("\"%s\"라고 말씀해 주셨네요. **%s** 단계에서 %s에 대해 조금 더 이야기해 볼까요?", quoted, stage.Label(), taskTitle)
}

func composePrompt(persona *types.Persona, stage types.Stage, taskTitle, module string) string {
	var b strings.Builder
	b.WriteString("[System]\n당신은 따뜻하고 공감적인 상담사입니다.\n")
	if persona != nil {
		fmt.Fprintf(&b, "\n[Persona]\n%s: %s\n키워드: %s\n", persona.DisplayName(), persona.Description, strings.Join(persona.Keywords(), ", "))
	}
	fmt.Fprintf(&b, "\n[Part %d - %s]\n", int(stage), stage.Label())
	if taskTitle != "" {
		fmt.Fprintf(&b, "현재 Task: %s\n", taskTitle)
	}
	if module != "" {
		fmt.Fprintf(&b, "적용 Module: %s\n", module)
	}
	return b.String()
}

// superviseTurn scores an assistant turn. Scores alternate so both the
// passing and the needs-improvement path show up in short sessions.
func superviseTurn(index, round int) types.SupervisionRecord {
	score := 8
	improvements := "없음"
	strengths := "내담자의 감정을 정확히 반영함"
	if round%2 == 0 {
		score = 6
		improvements = "개방형 질문을 더 활용하세요"
		strengths = "공감적인 어조"
	}
	scoreRaw := []byte(fmt.Sprintf("%d", score))
	messageIndex := index
	return types.SupervisionRecord{
		Score:        scoreRaw,
		Feedback:     fmt.Sprintf("%d번째 응답 평가", index),
		Improvements: improvements,
		Strengths:    strengths,
		MessageIndex: &messageIndex,
	}
}

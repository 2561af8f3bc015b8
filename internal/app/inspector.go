package app

import (
	"fmt"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"

	"cbot/internal/types"
)

type inspectorInput struct {
	index    int
	meta     *types.GenerationMetadata
	loading  bool
	err      string
	width    int
	markdown bool
}

// renderInspector shows the generation context of one assistant turn.
func renderInspector(in inspectorInput) string {
	width := max(in.width, minViewportWidth)
	inner := max(width-4, 1)
	title := headerStyle.Render(fmt.Sprintf("메시지 #%d 생성 정보", in.index))
	var body []string
	switch {
	case in.loading:
		body = append(body, statusStyle.Render("불러오는 중…"))
	case in.err != "":
		body = append(body, scoreWeakStyle.Render(xansi.Wordwrap(in.err, inner, "")))
	case in.meta == nil:
		body = append(body, statusStyle.Render("생성 정보가 없습니다."))
	default:
		body = renderGenerationMetadata(*in.meta, inner, in.markdown)
	}
	return inspectorFrameStyle.Width(max(width-2, 1)).Render(title + "\n\n" + strings.Join(body, "\n"))
}

func renderGenerationMetadata(meta types.GenerationMetadata, width int, markdown bool) []string {
	lines := []string{
		inspectorField("단계", stageText(meta.Stage)),
		inspectorField("Task", valueOrDash(meta.TaskID)),
		inspectorField("Module", valueOrDash(meta.ModuleID)),
	}
	if meta.Supervision != nil {
		sv := meta.Supervision
		score := fmt.Sprintf("%d/%d", sv.Score, types.MaxSupervisionScore)
		if sv.NeedsImprovement() {
			score = scoreWeakStyle.Render(score + " 개선 필요")
		} else {
			score = scoreGoodStyle.Render(score)
		}
		lines = append(lines, "", inspectorLabelStyle.Render("슈퍼비전")+" "+score)
		if sv.Feedback != "" {
			lines = append(lines, xansi.Wordwrap(sv.Feedback, width, ""))
		}
		if sv.HasStrengths() {
			lines = append(lines, xansi.Wordwrap("강점: "+sv.Strengths, width, ""))
		}
		if sv.HasImprovements() {
			lines = append(lines, xansi.Wordwrap("개선: "+sv.Improvements, width, ""))
		}
	}
	if meta.TaskSelectorOutput != nil {
		lines = append(lines, "", inspectorLabelStyle.Render("Task Selector 출력"))
		lines = append(lines, xansi.Hardwrap(*meta.TaskSelectorOutput, width, true))
	}
	lines = append(lines, "", inspectorLabelStyle.Render("프롬프트"))
	prompt := meta.Prompt
	if markdown {
		prompt = renderMarkdown(escapeMarkdown(prompt), width)
	} else {
		prompt = xansi.Hardwrap(prompt, width, true)
	}
	lines = append(lines, prompt)
	return lines
}

func inspectorField(label, value string) string {
	return inspectorLabelStyle.Render(label+":") + " " + value
}

func stageText(stage types.Stage) string {
	if !stage.Valid() {
		return "-"
	}
	return fmt.Sprintf("%d %s", int(stage), stage.Label())
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

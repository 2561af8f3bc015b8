package app

import (
	"fmt"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"

	"cbot/internal/session"
	"cbot/internal/types"
)

const statusColumnWidth = 8

// renderProgressPanel draws the session progress side panel from a view
// state alone.
func renderProgressPanel(vs session.ViewState, width, height int) string {
	width = max(width, 10)
	if !vs.Synced {
		return statusStyle.Render("세션 정보를 불러오는 중…")
	}
	lines := []string{renderStageStrip(vs.Stages)}

	for _, stage := range types.Stages() {
		tasks := vs.Tasks.For(stage)
		if len(tasks) == 0 {
			continue
		}
		lines = append(lines, "", headerStyle.Render(fmt.Sprintf("%d단계 %s", int(stage), stage.Label())))
		lines = append(lines, renderTaskRows(vs, tasks, width)...)
	}
	if len(vs.Tasks.Unclassified) > 0 {
		lines = append(lines, "", headerStyle.Render(types.StageUnclassified.Label()))
		lines = append(lines, renderTaskRows(vs, vs.Tasks.Unclassified, width)...)
	}

	if vs.ShowStageDetails {
		lines = append(lines, "", headerStyle.Render("탐색 초점"))
		if vs.StageGoal != "" {
			lines = append(lines, wrapPanelText("목표: "+vs.StageGoal, width)...)
		}
		if len(vs.StageKeywords) > 0 {
			lines = append(lines, wrapPanelText("키워드: "+strings.Join(vs.StageKeywords, ", "), width)...)
		}
	}

	if len(vs.Completions) > 0 {
		lines = append(lines, "", headerStyle.Render("최근 완료 판단"))
		for _, completion := range vs.Completions {
			mark := "·"
			label := "진행"
			if completion.Completed {
				mark = "✓"
				label = completion.Status.Label()
			}
			lines = append(lines, truncateToWidth(fmt.Sprintf("%s %s %s", mark, fitColumn(completion.TaskTitle, max(width-8, 4)), label), width))
		}
	}

	if len(vs.Supervisions) > 0 {
		lines = append(lines, "", headerStyle.Render("슈퍼비전"))
		for _, sv := range vs.Supervisions {
			lines = append(lines, renderSupervisionLine(sv, width))
			if sv.NeedsImprovement && sv.Improvements != "" {
				lines = append(lines, wrapPanelText("  개선: "+sv.Improvements, width)...)
			}
		}
	}

	for _, anomaly := range vs.Anomalies {
		lines = append(lines, "", scoreWeakStyle.Render(truncateToWidth("⚠ "+anomalyLabel(anomaly), width)))
	}

	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func renderStageStrip(stages [types.StageCount]session.StageProgress) string {
	parts := make([]string, 0, len(stages))
	for _, progress := range stages {
		label := fmt.Sprintf(" %d %s ", int(progress.Stage), progress.Stage.Label())
		switch progress.State {
		case session.StageActive:
			parts = append(parts, stageActiveStyle.Render(label))
		case session.StageCompleted:
			parts = append(parts, stageCompletedStyle.Render("✓"+label))
		default:
			parts = append(parts, stagePendingStyle.Render(label))
		}
	}
	return strings.Join(parts, dividerStyle.Render("›"))
}

func renderTaskRows(vs session.ViewState, tasks []session.TaskView, width int) []string {
	titleWidth := max(width-statusColumnWidth-3, 4)
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		marker := "  "
		if task.Current {
			marker = "▸ "
		}
		row := marker + fitColumn(task.Title, titleWidth) + " " + fitColumn(task.Status.Label(), statusColumnWidth)
		switch {
		case vs.IsHighlighted(task.ID):
			row = taskHighlightStyle.Render(row)
		case task.Current:
			row = taskCurrentStyle.Render(row)
		default:
			row = taskStyle.Render(row)
		}
		out = append(out, row)
	}
	return out
}

func renderSupervisionLine(sv session.SupervisionView, width int) string {
	score := fmt.Sprintf("%2d/%d", sv.Score, types.MaxSupervisionScore)
	if sv.NeedsImprovement {
		score = scoreWeakStyle.Render(score)
	} else {
		score = scoreGoodStyle.Render(score)
	}
	turn := "  -"
	if sv.HasTurn {
		turn = fmt.Sprintf("#%-2d", sv.TurnIndex)
	}
	feedback := flattenText(sv.Feedback)
	return truncateToWidth(score+" "+turn+" "+feedback, width)
}

func wrapPanelText(text string, width int) []string {
	return strings.Split(xansi.Wordwrap(flattenText(text), width, ""), "\n")
}

package app

import (
	"fmt"
	"strings"
)

func (m *Model) pickerView(width int) string {
	height := max(m.height-headerLines-footerLines+1, minContentHeight)
	lines := []string{statusStyle.Render("상담을 연습할 내담자 페르소나를 고르세요."), ""}
	if !m.personasLoaded {
		lines = append(lines, statusStyle.Render("불러오는 중…"))
	}
	for i, persona := range m.personas {
		label := fmt.Sprintf("%s (%s)", persona.DisplayName(), persona.ID)
		lines = append(lines, m.pickerRow(i, label, width))
		detail := strings.Join(persona.TypeSpecificKeywords, ", ")
		if persona.Description != "" {
			detail = persona.Description + " · " + detail
		}
		lines = append(lines, helpStyle.Render(truncateToWidth("    "+detail, width)))
	}
	lines = append(lines, m.pickerRow(len(m.personas), noPersonaLabel, width))
	if len(lines) > height {
		// Keep the cursor row visible.
		cursorLine := 2 + m.pickerIndex*2
		start := min(max(cursorLine-height/2, 0), len(lines)-height)
		lines = lines[start : start+height]
	}
	return padLines(lines, width)
}

func (m *Model) pickerRow(index int, label string, width int) string {
	if index == m.pickerIndex {
		return selectedStyle.Render(truncateToWidth("▸ "+label, width))
	}
	return truncateToWidth("  "+label, width)
}

package app

import (
	"fmt"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"

	"cbot/internal/session"
	"cbot/internal/types"
)

type transcriptInput struct {
	turns      []session.TurnView
	selected   int
	pending    string
	spinner    string
	width      int
	markdown   bool
	timeLayout string
}

func renderTranscript(in transcriptInput) string {
	if len(in.turns) == 0 && in.pending == "" {
		return statusStyle.Render("대화를 시작해 보세요. 상담사가 첫 인사를 기다리고 있습니다.")
	}
	width := max(in.width, minViewportWidth)
	bubbleWidth := max(width-2, 1)
	contentWidth := max(bubbleWidth-2-2*chatBubblePaddingHorizontal, 1)
	blocks := make([]string, 0, len(in.turns)+1)
	for _, turn := range in.turns {
		selected := turn.Index == in.selected
		blocks = append(blocks, renderTurnMeta(turn, selected, in.timeLayout)+"\n"+renderTurnBubble(turn, selected, bubbleWidth, contentWidth, in.markdown))
	}
	if in.pending != "" {
		meta := chatMetaStyle.Render("나 · 전송 중 " + in.spinner)
		body := xansi.Wordwrap(in.pending, contentWidth, "")
		blocks = append(blocks, meta+"\n"+pendingBubbleStyle.Width(bubbleWidth).Render(body))
	}
	return strings.Join(blocks, "\n\n")
}

func renderTurnMeta(turn session.TurnView, selected bool, layout string) string {
	parts := []string{roleLabel(turn.Role)}
	if stamp := formatTurnTime(turn.CreatedAt, layout); stamp != "" {
		parts = append(parts, stamp)
	}
	parts = append(parts, fmt.Sprintf("#%d", turn.Index))
	line := strings.Join(parts, " · ")
	if selected {
		return chatMetaSelectedStyle.Render("▸ " + line + " · ctrl+o 생성 정보")
	}
	return chatMetaStyle.Render(line)
}

func renderTurnBubble(turn session.TurnView, selected bool, bubbleWidth, contentWidth int, markdown bool) string {
	switch turn.Role {
	case types.RoleUser:
		body := xansi.Wordwrap(turn.Content, contentWidth, "")
		return userBubbleStyle.Width(bubbleWidth).Render(body)
	default:
		body := turn.Content
		if markdown {
			body = renderMarkdown(body, contentWidth)
		} else {
			body = xansi.Wordwrap(body, contentWidth, "")
		}
		style := agentBubbleStyle
		if selected {
			style = agentSelectedStyle
		}
		return style.Width(bubbleWidth).Render(body)
	}
}

func roleLabel(role types.Role) string {
	switch role {
	case types.RoleUser:
		return "나"
	case types.RoleAssistant:
		return "상담사"
	default:
		return string(role)
	}
}

package app

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		m.shutdown()
		return tea.Quit
	}
	if key == "esc" && m.toastActive(m.now()) {
		m.clearToast()
		return nil
	}
	switch m.mode {
	case uiModePicker:
		return m.handlePickerKey(key)
	case uiModeInspector:
		return m.handleInspectorKey(key)
	default:
		return m.handleChatKey(msg)
	}
}

func (m *Model) handlePickerKey(key string) tea.Cmd {
	entries := len(m.personas) + 1
	switch key {
	case "up", "k":
		m.pickerIndex = max(m.pickerIndex-1, 0)
	case "down", "j":
		m.pickerIndex = min(m.pickerIndex+1, entries-1)
	case "enter":
		return m.startSelected()
	case "ctrl+r":
		m.status = "페르소나 목록을 불러오는 중…"
		return fetchPersonasCmd(m.api, m.replaceRequestScope(requestScopeStartup))
	}
	return nil
}

func (m *Model) handleChatKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		return m.sendInput()
	case "ctrl+n":
		m.leaveConversation()
		if !m.personasLoaded {
			return fetchPersonasCmd(m.api, m.replaceRequestScope(requestScopeStartup))
		}
		return nil
	case "ctrl+up":
		m.moveSelection(-1)
		return nil
	case "ctrl+down":
		m.moveSelection(1)
		return nil
	case "ctrl+o":
		return m.openInspector()
	case "ctrl+r":
		if cmd := m.scheduler.Refresh(); cmd != nil {
			return cmd
		}
		return nil
	case "pgup":
		m.follow = false
		m.transcript.SetYOffset(m.transcript.YOffset - max(m.transcript.Height/2, 1))
		return nil
	case "pgdown":
		m.transcript.SetYOffset(m.transcript.YOffset + max(m.transcript.Height/2, 1))
		m.follow = m.transcript.AtBottom()
		return nil
	case "esc":
		if m.selectedTurn >= 0 {
			m.selectedTurn = -1
			m.follow = true
			m.refreshTranscript()
		}
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) handleInspectorKey(key string) tea.Cmd {
	switch key {
	case "esc", "ctrl+o", "q":
		m.closeInspector()
		m.refreshTranscript()
		return nil
	case "c":
		if m.inspectMeta == nil || m.inspectMeta.Prompt == "" {
			return m.notify(toastLevelInfo, "복사할 프롬프트가 없습니다.")
		}
		return copyPromptCmd(m.inspectMeta.Prompt)
	case "ctrl+up", "ctrl+down":
		delta := -1
		if key == "ctrl+down" {
			delta = 1
		}
		previous := m.selectedTurn
		m.moveSelection(delta)
		if m.selectedTurn == previous {
			return nil
		}
		return m.openInspector()
	case "up", "k":
		m.inspector.SetYOffset(m.inspector.YOffset - 1)
	case "down", "j":
		m.inspector.SetYOffset(m.inspector.YOffset + 1)
	case "pgup":
		m.inspector.SetYOffset(m.inspector.YOffset - max(m.inspector.Height/2, 1))
	case "pgdown":
		m.inspector.SetYOffset(m.inspector.YOffset + max(m.inspector.Height/2, 1))
	}
	return nil
}

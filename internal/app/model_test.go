package app

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cbot/internal/client"
	"cbot/internal/mockbackend"
	"cbot/internal/session"
)

func immediateTick(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return fn(time.Now())
	}
}

// drain runs cmd and every command of a batch once, without feeding the
// results back into a model.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, inner := range batch {
			out = append(out, drain(inner)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func findMsg[T any](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	for _, msg := range msgs {
		if typed, ok := msg.(T); ok {
			return typed
		}
	}
	var zero T
	t.Fatalf("no %T in %#v", zero, msgs)
	return zero
}

func newTestModel(t *testing.T) (*Model, *mockbackend.Server) {
	t.Helper()
	origToastTick := toastTick
	toastTick = immediateTick
	t.Cleanup(func() { toastTick = origToastTick })

	backend := mockbackend.New()
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)
	m := NewModel(client.New(server.URL), Options{
		UserID:           "tester",
		BaseURL:          server.URL,
		Markdown:         false,
		SchedulerOptions: []session.SchedulerOption{session.WithTickFunc(immediateTick)},
	})
	t.Cleanup(m.shutdown)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(personasMsg{personas: mockbackend.DefaultPersonas()})
	return m, backend
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func runeKey(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

// startConversation picks the first persona and applies the initial poll.
func startConversation(t *testing.T, m *Model) {
	t.Helper()
	_, cmd := m.Update(key(tea.KeyEnter))
	started := findMsg[conversationStartedMsg](t, drain(cmd))
	if started.err != nil {
		t.Fatalf("start: %v", started.err)
	}
	_, cmd = m.Update(started)
	if m.mode != uiModeChat || m.conversationID == "" {
		t.Fatalf("expected chat mode after start, got mode %d id %q", m.mode, m.conversationID)
	}
	snapshot := findMsg[session.SnapshotMsg](t, drain(cmd))
	m.Update(snapshot)
	if !m.view.Synced {
		t.Fatalf("expected initial snapshot to be projected")
	}
}

func sendMessage(t *testing.T, m *Model, text string) tea.Cmd {
	t.Helper()
	m.input.SetValue(text)
	_, cmd := m.Update(key(tea.KeyEnter))
	if !m.sending || m.pendingMessage != text {
		t.Fatalf("expected pending send of %q", text)
	}
	reply := findMsg[chatReplyMsg](t, drain(cmd))
	if reply.err != nil {
		t.Fatalf("send: %v", reply.err)
	}
	_, cmd = m.Update(reply)
	return cmd
}

func TestPickerStartsConversationWithSelectedPersona(t *testing.T) {
	m, _ := newTestModel(t)
	if len(m.personas) != len(mockbackend.DefaultPersonas()) {
		t.Fatalf("expected fixture personas, got %d", len(m.personas))
	}
	m.Update(key(tea.KeyDown))
	if m.pickerIndex != 1 {
		t.Fatalf("expected cursor on second persona, got %d", m.pickerIndex)
	}
	startConversation(t, m)
	if m.persona == nil || m.persona.ID != mockbackend.DefaultPersonas()[1].ID {
		t.Fatalf("unexpected persona %#v", m.persona)
	}
	if m.scheduler.State() != session.PollPolling || m.scheduler.ConversationID() != m.conversationID {
		t.Fatalf("expected polling for %s", m.conversationID)
	}
	view := m.View()
	for _, want := range []string{"환영 및 관계 형성", "시작", m.conversationID} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestSendRecordsTurnsAndRefreshesProgress(t *testing.T) {
	m, _ := newTestModel(t)
	startConversation(t, m)

	cmd := sendMessage(t, m, "요즘 잠을 잘 못 자요")
	if m.sending || len(m.view.Turns) != 2 {
		t.Fatalf("expected two turns after reply, got %d", len(m.view.Turns))
	}
	if !m.view.Turns[1].Inspectable || m.view.Turns[0].Inspectable {
		t.Fatalf("only the assistant turn should be inspectable: %#v", m.view.Turns)
	}
	snapshot := findMsg[session.SnapshotMsg](t, drain(cmd))
	m.Update(snapshot)
	if !m.view.IsHighlighted("rapport_1") || len(m.view.Completions) != 1 {
		t.Fatalf("expected progress for rapport_1: %#v", m.view)
	}
	if len(m.view.Turns) != 2 {
		t.Fatalf("snapshot projection dropped turns")
	}
}

func TestEmptyInputIsNotSent(t *testing.T) {
	m, _ := newTestModel(t)
	startConversation(t, m)
	m.input.SetValue("   ")
	_, cmd := m.Update(key(tea.KeyEnter))
	if cmd != nil || m.sending {
		t.Fatalf("blank input should not send")
	}
}

func TestInspectorResolvesSelectedAssistantTurn(t *testing.T) {
	m, _ := newTestModel(t)
	startConversation(t, m)
	sendMessage(t, m, "안녕하세요")

	m.Update(key(tea.KeyCtrlUp))
	if m.selectedTurn != 1 {
		t.Fatalf("expected assistant turn selected, got %d", m.selectedTurn)
	}
	_, cmd := m.Update(key(tea.KeyCtrlO))
	if m.mode != uiModeInspector || !m.inspectLoading {
		t.Fatalf("expected loading inspector")
	}
	resolved := findMsg[promptResolvedMsg](t, drain(cmd))
	m.Update(resolved)
	if m.inspectMeta == nil || m.inspectMeta.TaskID != "rapport_1" || m.inspectMeta.Prompt == "" {
		t.Fatalf("unexpected metadata %#v", m.inspectMeta)
	}
	if !strings.Contains(m.View(), "rapport_building") {
		t.Fatalf("inspector view should show the module:\n%s", m.View())
	}

	var copied string
	stubClipboard(t, func(text string) error {
		copied = text
		return nil
	}, func(string) error { return nil })
	_, cmd = m.Update(runeKey("c"))
	m.Update(findMsg[copyResultMsg](t, drain(cmd)))
	if copied != m.inspectMeta.Prompt || !strings.Contains(m.toastText, "복사") {
		t.Fatalf("expected prompt copied, toast %q", m.toastText)
	}

	m.Update(key(tea.KeyEsc))
	if m.toastText != "" || m.mode != uiModeInspector {
		t.Fatalf("first esc should dismiss the toast only")
	}
	m.Update(key(tea.KeyEsc))
	if m.mode != uiModeChat {
		t.Fatalf("second esc should close the inspector")
	}
}

func TestInspectorReopenIgnoresEarlierLookup(t *testing.T) {
	m, _ := newTestModel(t)
	startConversation(t, m)
	sendMessage(t, m, "안녕하세요")
	m.Update(key(tea.KeyCtrlUp))

	first := m.openInspector()
	m.closeInspector()
	second := m.openInspector()
	if m.mode != uiModeInspector || !m.inspectLoading {
		t.Fatalf("expected loading inspector after reopening")
	}

	m.Update(findMsg[promptResolvedMsg](t, drain(first)))
	if !m.inspectLoading || m.inspectMeta != nil || m.inspectErr != "" {
		t.Fatalf("earlier lookup touched the reopened inspector: loading=%v meta=%#v err=%q", m.inspectLoading, m.inspectMeta, m.inspectErr)
	}
	if !m.hasRequestScope(requestScopePrompt) {
		t.Fatalf("earlier lookup canceled the current one")
	}

	resolved := findMsg[promptResolvedMsg](t, drain(second))
	if resolved.err != nil {
		t.Fatalf("current lookup failed: %v", resolved.err)
	}
	m.Update(resolved)
	if m.mode != uiModeInspector || m.inspectLoading || m.inspectMeta == nil || m.inspectErr != "" {
		t.Fatalf("inspector left blank after reopening the same turn: loading=%v meta=%#v err=%q", m.inspectLoading, m.inspectMeta, m.inspectErr)
	}
}

func TestInspectorIgnoresStaleSuccessForSameTurn(t *testing.T) {
	m, _ := newTestModel(t)
	startConversation(t, m)
	sendMessage(t, m, "안녕하세요")
	m.Update(key(tea.KeyCtrlUp))

	first := m.openInspector()
	stale := findMsg[promptResolvedMsg](t, drain(first))
	m.closeInspector()
	second := m.openInspector()

	m.Update(stale)
	if !m.inspectLoading || m.inspectMeta != nil {
		t.Fatalf("stale result applied to the reopened inspector")
	}
	m.Update(findMsg[promptResolvedMsg](t, drain(second)))
	if m.inspectLoading || m.inspectMeta == nil {
		t.Fatalf("expected metadata from the current lookup")
	}
}

func TestInspectorReportsMissingHistory(t *testing.T) {
	m, backend := newTestModel(t)
	startConversation(t, m)
	sendMessage(t, m, "안녕하세요")
	backend.ForgetPrompts(m.conversationID)

	_, cmd := m.Update(key(tea.KeyCtrlO))
	m.Update(findMsg[promptResolvedMsg](t, drain(cmd)))
	if m.inspectMeta != nil || m.inspectErr == "" {
		t.Fatalf("expected recoverable not found, got meta=%#v err=%q", m.inspectMeta, m.inspectErr)
	}
	if m.toastLevel == toastLevelError && m.toastText != "" {
		t.Fatalf("not found should not raise an error toast: %q", m.toastText)
	}
}

func TestNewConversationDiscardsOldResults(t *testing.T) {
	m, _ := newTestModel(t)
	startConversation(t, m)
	oldID := m.conversationID
	m.input.SetValue("hello")
	_, sendCmd := m.Update(key(tea.KeyEnter))
	_, refreshCmd := m.Update(key(tea.KeyCtrlR))

	m.Update(key(tea.KeyCtrlN))
	if m.mode != uiModePicker || m.scheduler.State() != session.PollIdle {
		t.Fatalf("expected picker with polling stopped")
	}
	startConversation(t, m)
	if m.conversationID == oldID {
		t.Fatalf("expected a new conversation")
	}
	revision := m.view.Revision

	msgs := append(drain(sendCmd), drain(refreshCmd)...)
	for _, msg := range msgs {
		switch msg.(type) {
		case chatReplyMsg, session.SnapshotMsg:
			m.Update(msg)
		}
	}
	if m.view.Revision != revision || len(m.view.Turns) != 0 || m.view.ConversationID != m.conversationID {
		t.Fatalf("results for %s leaked into %s: %#v", oldID, m.conversationID, m.view)
	}
}

func TestSnapshotFailureKeepsLastView(t *testing.T) {
	m, backend := newTestModel(t)
	startConversation(t, m)
	before := m.view

	backend.FailNextSessionFetches(1)
	_, cmd := m.Update(key(tea.KeyCtrlR))
	m.Update(findMsg[session.SnapshotMsg](t, drain(cmd)))
	if !m.syncFailed || m.view.Revision != before.Revision {
		t.Fatalf("expected failure to keep the last view")
	}
	if !strings.Contains(m.View(), "동기화 지연") {
		t.Fatalf("expected sync indicator in header")
	}

	_, cmd = m.Update(key(tea.KeyCtrlR))
	m.Update(findMsg[session.SnapshotMsg](t, drain(cmd)))
	if m.syncFailed {
		t.Fatalf("expected recovery on the next poll")
	}
}

func TestResumeHydratesTranscript(t *testing.T) {
	m, _ := newTestModel(t)
	startConversation(t, m)
	sendMessage(t, m, "첫 번째")
	id := m.conversationID

	resumed := NewModel(m.api, Options{
		ResumeID:         id,
		SchedulerOptions: []session.SchedulerOption{session.WithTickFunc(immediateTick)},
	})
	t.Cleanup(resumed.shutdown)
	msg := findMsg[conversationResumedMsg](t, drain(resumed.Init()))
	if msg.err != nil {
		t.Fatalf("resume: %v", msg.err)
	}
	resumed.Update(msg)
	if resumed.mode != uiModeChat || len(resumed.view.Turns) != 2 || resumed.conversationID != id {
		t.Fatalf("unexpected resumed state: mode %d turns %d", resumed.mode, len(resumed.view.Turns))
	}
}

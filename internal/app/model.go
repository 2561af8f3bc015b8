package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cbot/internal/logging"
	"cbot/internal/session"
	"cbot/internal/store"
	"cbot/internal/types"
)

const (
	minViewportWidth  = 20
	minContentHeight  = 6
	minPanelWidth     = 28
	maxPanelWidth     = 44
	panelBreakpoint   = 72
	headerLines       = 1
	footerLines       = 3
	inputCharLimit    = 2000
	noPersonaLabel    = "페르소나 없이 시작"
	defaultTimeLayout = "15:04"
)

type uiMode int

const (
	uiModePicker uiMode = iota
	uiModeChat
	uiModeInspector
)

// Options configure the chat UI. Zero values fall back to defaults.
type Options struct {
	UserID           string
	BaseURL          string
	ResumeID         string
	Markdown         bool
	TimestampFormat  string
	PollInterval     time.Duration
	FetchTimeout     time.Duration
	Logger           logging.Logger
	Recents          store.RecentsStore
	SchedulerOptions []session.SchedulerOption
	Now              func() time.Time
}

type Model struct {
	api       BackendAPI
	chat      *session.ChatService
	scheduler *session.Scheduler
	recents   store.RecentsStore
	logger    logging.Logger
	now       func() time.Time

	baseURL    string
	resumeID   string
	markdown   bool
	timeLayout string

	mode   uiMode
	width  int
	height int
	status string

	personas       []types.Persona
	personasLoaded bool
	pickerIndex    int

	conversationID string
	persona        *types.Persona
	tracker        *session.Tracker
	view           session.ViewState
	selectedTurn   int
	syncFailed     bool
	follow         bool

	sending        bool
	pendingMessage string

	inspectIndex   int
	inspectMeta    *types.GenerationMetadata
	inspectLoading bool
	inspectLookup  uint64
	inspectErr     string

	input      textinput.Model
	transcript viewport.Model
	inspector  viewport.Model
	loader     spinner.Model

	toastText  string
	toastLevel toastLevel
	toastUntil time.Time

	requestScopes requestScopes
}

func NewModel(api BackendAPI, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	timeLayout := strings.TrimSpace(opts.TimestampFormat)
	if timeLayout == "" {
		timeLayout = defaultTimeLayout
	}

	schedulerOpts := []session.SchedulerOption{session.WithSchedulerLogger(logger)}
	if opts.PollInterval > 0 {
		schedulerOpts = append(schedulerOpts, session.WithInterval(opts.PollInterval))
	}
	if opts.FetchTimeout > 0 {
		schedulerOpts = append(schedulerOpts, session.WithFetchTimeout(opts.FetchTimeout))
	}
	schedulerOpts = append(schedulerOpts, opts.SchedulerOptions...)

	input := textinput.New()
	input.Placeholder = "메시지를 입력하세요"
	input.CharLimit = inputCharLimit
	input.Prompt = "› "

	loader := spinner.New()
	loader.Spinner = spinner.Line
	loader.Style = activityStyle

	transcript := viewport.New(minViewportWidth, minContentHeight)
	transcript.SetContent("")
	inspector := viewport.New(minViewportWidth, minContentHeight)

	return &Model{
		api:          api,
		chat:         session.NewChatService(api, opts.UserID, logger),
		scheduler:    session.NewScheduler(session.NewFetcher(api, logger), schedulerOpts...),
		recents:      opts.Recents,
		logger:       logger,
		now:          now,
		baseURL:      strings.TrimSpace(opts.BaseURL),
		resumeID:     strings.TrimSpace(opts.ResumeID),
		markdown:     opts.Markdown,
		timeLayout:   timeLayout,
		mode:         uiModePicker,
		selectedTurn: -1,
		inspectIndex: -1,
		follow:       true,
		input:        input,
		transcript:   transcript,
		inspector:    inspector,
		loader:       loader,
	}
}

// Run starts the full-screen chat UI and blocks until it exits.
func Run(api BackendAPI, opts Options) error {
	model := NewModel(api, opts)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	model.shutdown()
	return err
}

func (m *Model) Init() tea.Cmd {
	ctx := m.replaceRequestScope(requestScopeStartup)
	cmds := []tea.Cmd{healthCmd(m.api, ctx), textinput.Blink}
	if m.resumeID != "" {
		m.status = "대화를 불러오는 중…"
		startCtx := m.replaceRequestScope(requestScopeStart)
		cmds = append(cmds, resumeConversationCmd(m.chat, m.api, m.resumeID, startCtx))
	} else {
		m.status = "페르소나 목록을 불러오는 중…"
		cmds = append(cmds, fetchPersonasCmd(m.api, ctx))
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case healthMsg:
		if msg.err != nil && !isCanceledRequestError(msg.err) {
			m.logger.Warn("health_check_failed", logging.F("error", msg.err))
			return m, m.notify(toastLevelWarning, "백엔드에 연결할 수 없습니다: "+msg.err.Error())
		}
		return m, nil
	case personasMsg:
		return m, m.reducePersonas(msg)
	case conversationStartedMsg:
		return m, m.reduceConversationStarted(msg)
	case conversationResumedMsg:
		return m, m.reduceConversationResumed(msg)
	case chatReplyMsg:
		return m, m.reduceChatReply(msg)
	case promptResolvedMsg:
		return m, m.reducePromptResolved(msg)
	case recentRecordedMsg:
		if msg.err != nil {
			m.logger.Warn("recent_record_failed", logging.F("conversation_id", msg.conversationID), logging.F("error", msg.err))
		}
		return m, nil
	case copyResultMsg:
		if msg.err != nil {
			return m, m.notify(toastLevelError, "복사 실패: "+msg.err.Error())
		}
		if msg.method == clipboardMethodOSC52 {
			return m, m.notify(toastLevelInfo, "프롬프트를 복사했습니다 (OSC52)")
		}
		return m, m.notify(toastLevelInfo, "프롬프트를 복사했습니다")
	case toastExpiredMsg:
		return m, nil
	case session.TickMsg:
		return m, m.scheduler.HandleTick(msg)
	case session.SnapshotMsg:
		return m, m.reduceSnapshot(msg)
	case spinner.TickMsg:
		if !m.sending && !m.inspectLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) reducePersonas(msg personasMsg) tea.Cmd {
	if isCanceledRequestError(msg.err) {
		return nil
	}
	m.cancelRequestScope(requestScopeStartup)
	m.personasLoaded = true
	if msg.err != nil {
		m.logger.Warn("personas_load_failed", logging.F("error", msg.err))
		m.status = ""
		return m.notify(toastLevelWarning, "페르소나 목록을 불러오지 못했습니다: "+msg.err.Error())
	}
	m.personas = make([]types.Persona, 0, len(msg.personas))
	for _, persona := range msg.personas {
		if err := persona.Validate(); err != nil {
			m.logger.Debug("persona_skipped", logging.F("persona_id", persona.ID), logging.F("error", err))
			continue
		}
		m.personas = append(m.personas, persona)
	}
	m.pickerIndex = 0
	m.status = ""
	return nil
}

func (m *Model) reduceConversationStarted(msg conversationStartedMsg) tea.Cmd {
	if isCanceledRequestError(msg.err) {
		return nil
	}
	m.cancelRequestScope(requestScopeStart)
	if msg.err != nil {
		m.status = ""
		return m.notify(toastLevelError, "대화를 시작하지 못했습니다: "+msg.err.Error())
	}
	tracker := session.NewTracker(msg.conversationID, m.api)
	m.persona = msg.persona
	entry := store.RecentConversation{ID: msg.conversationID, BaseURL: m.baseURL}
	if msg.persona != nil {
		entry.PersonaID = msg.persona.ID
		entry.PersonaName = msg.persona.DisplayName()
	}
	return tea.Batch(
		m.enterConversation(tracker),
		recordRecentCmd(m.recents, entry),
		m.notify(toastLevelInfo, "새 대화를 시작했습니다: "+msg.conversationID),
	)
}

func (m *Model) reduceConversationResumed(msg conversationResumedMsg) tea.Cmd {
	if isCanceledRequestError(msg.err) {
		return nil
	}
	m.cancelRequestScope(requestScopeStart)
	if msg.err != nil || msg.tracker == nil {
		m.status = ""
		err := msg.err
		if err == nil {
			err = errors.New("empty conversation")
		}
		ctx := m.replaceRequestScope(requestScopeStartup)
		return tea.Batch(
			fetchPersonasCmd(m.api, ctx),
			m.notify(toastLevelError, fmt.Sprintf("대화 %s를 불러오지 못했습니다: %v", msg.conversationID, err)),
		)
	}
	return tea.Batch(m.enterConversation(msg.tracker), touchRecentCmd(m.recents, msg.conversationID))
}

// enterConversation switches the UI to tracker's conversation and starts
// polling it. Any previous conversation's poll results are discarded by the
// scheduler from here on.
func (m *Model) enterConversation(tracker *session.Tracker) tea.Cmd {
	m.conversationID = tracker.ConversationID()
	m.tracker = tracker
	m.view = session.WithTurns(session.NewViewState(m.conversationID), tracker.Turns())
	m.selectedTurn = -1
	m.syncFailed = false
	m.sending = false
	m.pendingMessage = ""
	m.follow = true
	m.mode = uiModeChat
	m.status = ""
	m.input.Reset()
	m.input.Focus()
	m.resize()
	m.refreshTranscript()
	return m.scheduler.Start(m.conversationID)
}

func (m *Model) leaveConversation() {
	m.scheduler.Stop()
	m.cancelRequestScope(requestScopeSend)
	m.cancelRequestScope(requestScopePrompt)
	m.conversationID = ""
	m.persona = nil
	m.tracker = nil
	m.view = session.ViewState{}
	m.selectedTurn = -1
	m.sending = false
	m.pendingMessage = ""
	m.closeInspector()
	m.input.Blur()
	m.mode = uiModePicker
}

func (m *Model) reduceChatReply(msg chatReplyMsg) tea.Cmd {
	if msg.conversationID != m.conversationID || m.tracker == nil {
		return nil
	}
	m.cancelRequestScope(requestScopeSend)
	m.sending = false
	m.pendingMessage = ""
	m.view = session.WithTurns(m.view, m.tracker.Turns())
	if msg.err != nil {
		m.refreshTranscript()
		if isCanceledRequestError(msg.err) {
			return nil
		}
		if m.tracker.Len() == msg.turnsBefore && m.input.Value() == "" {
			m.input.SetValue(msg.message)
			m.input.CursorEnd()
		}
		m.logger.Warn("chat_send_failed", logging.F("conversation_id", msg.conversationID), logging.F("error", msg.err))
		return m.notify(toastLevelError, "메시지 전송 실패: "+msg.err.Error())
	}
	m.follow = true
	m.refreshTranscript()
	return m.scheduler.Refresh()
}

func (m *Model) reduceSnapshot(msg session.SnapshotMsg) tea.Cmd {
	diff, ok := m.scheduler.HandleSnapshot(msg)
	if !ok {
		if msg.Err != nil && msg.Generation == m.scheduler.Generation() {
			m.syncFailed = true
		}
		return nil
	}
	m.syncFailed = false
	m.view = session.Project(m.view, diff)
	m.refreshTranscript()
	var cmds []tea.Cmd
	if diff.Transition.Changed() {
		cmds = append(cmds, m.notify(toastLevelInfo, fmt.Sprintf("단계 전환: %s → %s", diff.Transition.From.Label(), diff.Transition.To.Label())))
	}
	if diff.Anomalous() {
		cmds = append(cmds, m.notify(toastLevelWarning, anomalySummary(m.view.Anomalies)))
	}
	return tea.Batch(cmds...)
}

func (m *Model) reducePromptResolved(msg promptResolvedMsg) tea.Cmd {
	// Each open of the inspector issues a new lookup; results of earlier opens
	// are dropped even when they target the same turn.
	if msg.lookup != m.inspectLookup || msg.conversationID != m.conversationID || msg.index != m.inspectIndex || m.mode != uiModeInspector {
		return nil
	}
	if isCanceledRequestError(msg.err) {
		return nil
	}
	m.cancelRequestScope(requestScopePrompt)
	m.inspectLoading = false
	if msg.err != nil {
		m.inspectMeta = nil
		switch {
		case errors.Is(msg.err, session.ErrNotLinkable):
			m.inspectErr = "사용자 메시지에는 생성 정보가 없습니다."
		case errors.Is(msg.err, session.ErrNotFound):
			m.inspectErr = "이 응답의 생성 정보를 찾을 수 없습니다."
		default:
			m.inspectErr = "생성 정보를 불러오지 못했습니다: " + msg.err.Error()
			m.refreshInspector()
			return m.notify(toastLevelError, m.inspectErr)
		}
		m.refreshInspector()
		return nil
	}
	meta := msg.meta
	m.inspectMeta = &meta
	m.inspectErr = ""
	m.refreshInspector()
	return nil
}

func (m *Model) startSelected() tea.Cmd {
	if m.hasRequestScope(requestScopeStart) {
		return nil
	}
	var persona *types.Persona
	if m.pickerIndex < len(m.personas) {
		p := m.personas[m.pickerIndex]
		persona = &p
	}
	m.status = "대화를 만드는 중…"
	ctx := m.replaceRequestScope(requestScopeStart)
	return startConversationCmd(m.chat, persona, ctx)
}

func (m *Model) sendInput() tea.Cmd {
	if m.tracker == nil {
		return nil
	}
	if m.sending {
		return m.notify(toastLevelWarning, "이전 메시지의 응답을 기다리는 중입니다.")
	}
	message := strings.TrimSpace(m.input.Value())
	if message == "" {
		return nil
	}
	m.sending = true
	m.pendingMessage = message
	m.input.Reset()
	m.follow = true
	m.refreshTranscript()
	ctx := m.replaceRequestScope(requestScopeSend)
	return tea.Batch(sendMessageCmd(m.chat, m.tracker, message, ctx), m.loader.Tick)
}

// moveSelection steps through assistant turns; only those link to prompts.
func (m *Model) moveSelection(delta int) {
	inspectable := m.inspectableIndexes()
	if len(inspectable) == 0 {
		m.selectedTurn = -1
		return
	}
	pos := -1
	for i, index := range inspectable {
		if index == m.selectedTurn {
			pos = i
			break
		}
	}
	switch {
	case pos == -1 && delta < 0:
		pos = len(inspectable) - 1
	case pos == -1:
		pos = 0
	default:
		pos = min(max(pos+delta, 0), len(inspectable)-1)
	}
	m.selectedTurn = inspectable[pos]
	m.follow = false
	m.refreshTranscript()
}

func (m *Model) inspectableIndexes() []int {
	out := make([]int, 0, len(m.view.Turns)/2+1)
	for _, turn := range m.view.Turns {
		if turn.Inspectable {
			out = append(out, turn.Index)
		}
	}
	return out
}

func (m *Model) openInspector() tea.Cmd {
	if m.tracker == nil {
		return nil
	}
	if m.selectedTurn < 0 {
		m.moveSelection(-1)
	}
	if m.selectedTurn < 0 {
		return m.notify(toastLevelInfo, "검사할 상담사 응답이 없습니다.")
	}
	m.mode = uiModeInspector
	m.inspectIndex = m.selectedTurn
	m.inspectMeta = nil
	m.inspectErr = ""
	m.inspectLoading = true
	m.input.Blur()
	m.inspector.GotoTop()
	m.refreshInspector()
	var supervision []types.SupervisionEvent
	if snapshot, ok := m.scheduler.LastSnapshot(); ok {
		supervision = snapshot.SupervisionLog
	}
	m.inspectLookup++
	ctx := m.replaceRequestScope(requestScopePrompt)
	return tea.Batch(resolvePromptCmd(m.tracker, m.inspectIndex, m.inspectLookup, supervision, ctx), m.loader.Tick)
}

func (m *Model) closeInspector() {
	m.cancelRequestScope(requestScopePrompt)
	m.inspectIndex = -1
	m.inspectMeta = nil
	m.inspectErr = ""
	m.inspectLoading = false
	if m.mode == uiModeInspector {
		m.mode = uiModeChat
		m.input.Focus()
	}
}

func (m *Model) notify(level toastLevel, message string) tea.Cmd {
	m.showToast(level, message)
	return toastExpiryCmd()
}

func (m *Model) shutdown() {
	m.scheduler.Stop()
	m.cancelAllRequestScopes()
}

func (m *Model) resize() {
	width := max(m.width, minViewportWidth)
	height := max(m.height-headerLines-footerLines, minContentHeight)
	m.transcript.Width = max(width-m.panelWidth(), minViewportWidth)
	m.transcript.Height = height
	m.inspector.Width = width
	m.inspector.Height = height
	m.input.Width = max(width-4, 1)
	m.refreshTranscript()
	m.refreshInspector()
}

func (m *Model) panelWidth() int {
	if m.width < panelBreakpoint {
		return 0
	}
	return min(max(m.width/3, minPanelWidth), maxPanelWidth)
}

func (m *Model) refreshTranscript() {
	if m.mode == uiModePicker {
		return
	}
	content := renderTranscript(transcriptInput{
		turns:      m.view.Turns,
		selected:   m.selectedTurn,
		pending:    m.pendingMessage,
		spinner:    m.loader.View(),
		width:      m.transcript.Width,
		markdown:   m.markdown,
		timeLayout: m.timeLayout,
	})
	m.transcript.SetContent(content)
	if m.follow {
		m.transcript.GotoBottom()
	}
}

func (m *Model) refreshInspector() {
	if m.mode != uiModeInspector {
		return
	}
	m.inspector.SetContent(renderInspector(inspectorInput{
		index:    m.inspectIndex,
		meta:     m.inspectMeta,
		loading:  m.inspectLoading,
		err:      m.inspectErr,
		width:    m.inspector.Width,
		markdown: m.markdown,
	}))
}

func (m *Model) View() string {
	width := max(m.width, minViewportWidth)
	var body string
	switch m.mode {
	case uiModePicker:
		body = m.pickerView(width)
	case uiModeInspector:
		body = m.inspector.View()
	default:
		body = m.chatBodyView()
	}
	lines := []string{m.headerView(width), body}
	if m.mode == uiModeChat {
		lines = append(lines, dividerStyle.Render(strings.Repeat("─", width)), m.input.View())
	}
	if toast := m.toastLine(width); toast != "" {
		lines = append(lines, toast)
	} else {
		lines = append(lines, statusStyle.Render(truncateToWidth(m.status, width)))
	}
	lines = append(lines, helpStyle.Render(truncateToWidth(m.helpText(), width)))
	return strings.Join(lines, "\n")
}

func (m *Model) chatBodyView() string {
	panelWidth := m.panelWidth()
	if panelWidth == 0 {
		return m.transcript.View()
	}
	panel := renderProgressPanel(m.view, panelWidth-2, m.transcript.Height)
	return lipgloss.JoinHorizontal(lipgloss.Top, m.transcript.View(), panelStyle.Height(m.transcript.Height).Render(panel))
}

func (m *Model) headerView(width int) string {
	parts := []string{"cbot"}
	switch m.mode {
	case uiModePicker:
		parts = append(parts, "새 상담 시작")
	default:
		parts = append(parts, m.conversationID)
		if m.persona != nil {
			parts = append(parts, m.persona.DisplayName())
		}
		if m.view.Synced {
			parts = append(parts, fmt.Sprintf("%d단계 %s", int(m.view.CurrentStage), m.view.CurrentStage.Label()))
		}
		if m.mode == uiModeInspector {
			parts = append(parts, fmt.Sprintf("메시지 #%d", m.inspectIndex))
		}
	}
	header := headerStyle.Render(strings.Join(parts, " · "))
	switch {
	case m.sending || m.inspectLoading:
		header += " " + m.loader.View()
	case m.syncFailed:
		header += " " + statusStyle.Render("(동기화 지연)")
	}
	return truncateToWidth(header, width)
}

func (m *Model) helpText() string {
	switch m.mode {
	case uiModePicker:
		return "↑/↓ 선택 · enter 시작 · ctrl+r 새로고침 · ctrl+c 종료"
	case uiModeInspector:
		return "c 프롬프트 복사 · ctrl+↑/↓ 이전/다음 응답 · pgup/pgdn 스크롤 · esc 닫기"
	default:
		return "enter 전송 · ctrl+↑/↓ 응답 선택 · ctrl+o 생성 정보 · ctrl+r 새로고침 · ctrl+n 새 대화 · ctrl+c 종료"
	}
}

func anomalySummary(anomalies []session.Anomaly) string {
	parts := make([]string, 0, len(anomalies))
	for _, anomaly := range anomalies {
		parts = append(parts, anomalyLabel(anomaly))
	}
	return "세션 이상 감지: " + strings.Join(parts, ", ")
}

func anomalyLabel(anomaly session.Anomaly) string {
	switch anomaly {
	case session.AnomalyStageRegressed:
		return "단계가 되돌아감"
	case session.AnomalyCompletionLogShrunk:
		return "완료 기록 감소"
	case session.AnomalySupervisionLogShrunk:
		return "슈퍼비전 기록 감소"
	default:
		return string(anomaly)
	}
}

func errUnhealthy(status string) error {
	return fmt.Errorf("backend reported status %q", status)
}

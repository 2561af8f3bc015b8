// Package mockbackend is an in-memory stand-in for the counseling backend's
// HTTP surface with deterministic stage and task progression.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"cbot/internal/logging"
	"cbot/internal/types"
)

const (
	DefaultSupervisionInterval = 3
	defaultListLimit           = 10
)

type conversation struct {
	id        string
	userID    string
	persona   *types.Persona
	messages  []types.MessageRecord
	prompts   map[int]types.PromptRecord
	progress  *progress
	createdAt time.Time
	updatedAt time.Time
}

type Server struct {
	mu                  sync.Mutex
	personas            []types.Persona
	conversations       map[string]*conversation
	nextID              int
	now                 func() time.Time
	supervisionInterval int
	failSessionFetches  int
	logger              logging.Logger
}

type Option func(*Server)

func WithPersonas(personas []types.Persona) Option {
	return func(s *Server) {
		s.personas = append([]types.Persona(nil), personas...)
	}
}

func WithSupervisionInterval(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.supervisionInterval = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		personas:            DefaultPersonas(),
		conversations:       map[string]*conversation{},
		now:                 time.Now,
		supervisionInterval: DefaultSupervisionInterval,
		logger:              logging.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// FailNextSessionFetches makes the next n session reads answer 503.
func (s *Server) FailNextSessionFetches(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSessionFetches = n
}

// ForgetPrompts drops the stored generation metadata of a conversation, like
// a backend that did not retain prompt history.
func (s *Server) ForgetPrompts(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[conversationID]; ok {
		conv.prompts = map[int]types.PromptRecord{}
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", s.handleCreateConversation)
			r.Get("/", s.handleListConversations)
			r.Get("/{id}", s.handleGetConversation)
			r.Post("/{id}/chat", s.handleChat)
			r.Get("/{id}/messages/{index}/prompt", s.handlePrompt)
		})
		r.Get("/sessions/{id}", s.handleGetSession)
	})
	r.Route("/admin/api/personas", func(r chi.Router) {
		r.Get("/", s.handleListPersonas)
		r.Get("/{id}", s.handleGetPersona)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http_request",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F("status", ww.Status()),
			logging.F("request_id", chiMiddleware.GetReqID(r.Context())),
			logging.F("duration", time.Since(start)),
		)
	})
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error body.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string          `json:"user_id"`
		Persona json.RawMessage `json:"persona"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	persona, err := s.resolvePersona(req.Persona)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = "anonymous"
	}

	s.mu.Lock()
	s.nextID++
	now := s.now().UTC()
	conv := &conversation{
		id:        fmt.Sprintf("conv-%04d", s.nextID),
		userID:    userID,
		persona:   persona,
		prompts:   map[int]types.PromptRecord{},
		progress:  newProgress(),
		createdAt: now,
		updatedAt: now,
	}
	if msg := strings.TrimSpace(req.Message); msg != "" {
		conv.messages = append(conv.messages, types.MessageRecord{Role: string(types.RoleUser), Content: msg, Timestamp: now.Format(time.RFC3339Nano)})
	}
	s.conversations[conv.id] = conv
	s.mu.Unlock()

	JSON(w, http.StatusCreated, map[string]string{
		"conversation_id": conv.id,
		"message":         "대화가 생성되었습니다.",
	})
}

// resolvePersona accepts a persona object or a bare persona id.
func (s *Server) resolvePersona(raw json.RawMessage) (*types.Persona, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		persona, ok := s.persona(id)
		if !ok {
			return nil, fmt.Errorf("페르소나를 찾을 수 없습니다: %s", id)
		}
		return &persona, nil
	}
	var persona types.Persona
	if err := json.Unmarshal(raw, &persona); err != nil {
		return nil, fmt.Errorf("잘못된 페르소나 형식입니다")
	}
	return &persona, nil
}

func (s *Server) persona(id string) (types.Persona, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, persona := range s.personas {
		if persona.ID == id {
			return persona, true
		}
	}
	return types.Persona{}, false
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = "anonymous"
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	s.mu.Lock()
	var matches []*conversation
	for _, conv := range s.conversations {
		if conv.userID == userID {
			matches = append(matches, conv)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].createdAt.Equal(matches[j].createdAt) {
			return matches[i].id > matches[j].id
		}
		return matches[i].createdAt.After(matches[j].createdAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	records := make([]types.ConversationRecord, 0, len(matches))
	for _, conv := range matches {
		records = append(records, conv.record())
	}
	s.mu.Unlock()

	JSON(w, http.StatusOK, map[string]any{
		"conversations": records,
		"count":         len(records),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	conv, ok := s.conversations[chi.URLParam(r, "id")]
	var record types.ConversationRecord
	if ok {
		record = conv.record()
	}
	s.mu.Unlock()
	if !ok {
		Error(w, http.StatusNotFound, "대화를 찾을 수 없습니다.")
		return
	}
	JSON(w, http.StatusOK, record)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "메시지가 필요합니다.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[chi.URLParam(r, "id")]
	if !ok {
		Error(w, http.StatusNotFound, "대화를 찾을 수 없습니다.")
		return
	}
	now := s.now().UTC()
	conv.messages = append(conv.messages, types.MessageRecord{Role: string(types.RoleUser), Content: req.Message, Timestamp: now.Format(time.RFC3339Nano)})

	p := conv.progress
	stage, taskID, module := p.stage, p.currentTask, p.currentModule()
	title := taskID
	if task := p.task(taskID); task != nil {
		title = task.title
	}
	reply := composeReply(stage, title, req.Message)
	index := len(conv.messages)
	conv.messages = append(conv.messages, types.MessageRecord{Role: string(types.RoleAssistant), Content: reply, Timestamp: now.Format(time.RFC3339Nano)})
	conv.updatedAt = now

	prompt := types.PromptRecord{
		Prompt:        composePrompt(conv.persona, stage, title, module),
		CurrentTask:   rawString(taskID),
		CurrentPart:   json.RawMessage(strconv.Itoa(int(stage))),
		CurrentModule: rawString(module),
	}
	if taskID != "" {
		selector := fmt.Sprintf("selected_task: %s\nreason: %s 단계에서 우선순위가 가장 높음", taskID, stage.Label())
		prompt.TaskSelectorOutput = &selector
	}

	resp := map[string]any{
		"conversation_id": conv.id,
		"response":        reply,
		"current_task":    nullable(taskID),
	}
	assistantTurns := 0
	for _, msg := range conv.messages {
		if msg.Role == string(types.RoleAssistant) {
			assistantTurns++
		}
	}
	if assistantTurns%s.supervisionInterval == 0 {
		supervision := superviseTurn(index, assistantTurns/s.supervisionInterval)
		p.supervisionLog = append(p.supervisionLog, supervision)
		prompt.Supervision = &supervision
		event, _ := supervision.Normalize()
		resp["supervision"] = map[string]any{
			"score":             event.Score,
			"needs_improvement": event.NeedsImprovement(),
		}
	}
	conv.prompts[index] = prompt

	p.advance(conv.persona)
	remaining := 0
	for _, task := range p.tasks {
		if task.status.Rank() < types.TaskStatusSufficient.Rank() {
			remaining++
		}
	}
	resp["tasks_remaining"] = remaining
	JSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		Error(w, http.StatusBadRequest, "잘못된 메시지 인덱스입니다.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[chi.URLParam(r, "id")]
	if !ok {
		Error(w, http.StatusNotFound, "대화를 찾을 수 없습니다.")
		return
	}
	if index < 0 || index >= len(conv.messages) {
		Error(w, http.StatusNotFound, "메시지를 찾을 수 없습니다.")
		return
	}
	if conv.messages[index].Role != string(types.RoleAssistant) {
		Error(w, http.StatusNotFound, "상담사 메시지가 아닙니다.")
		return
	}
	prompt, ok := conv.prompts[index]
	if !ok {
		Error(w, http.StatusNotFound, "프롬프트 기록이 없습니다.")
		return
	}
	JSON(w, http.StatusOK, prompt)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSessionFetches > 0 {
		s.failSessionFetches--
		Error(w, http.StatusServiceUnavailable, "세션 저장소를 사용할 수 없습니다.")
		return
	}
	id := chi.URLParam(r, "id")
	conv, ok := s.conversations[id]
	if !ok {
		Error(w, http.StatusNotFound, "세션을 찾을 수 없습니다.")
		return
	}
	JSON(w, http.StatusOK, conv.progress.record(id))
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	personas := append([]types.Persona(nil), s.personas...)
	s.mu.Unlock()
	JSON(w, http.StatusOK, types.PersonasRecord{Personas: personas})
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	persona, ok := s.persona(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "페르소나를 찾을 수 없습니다.")
		return
	}
	JSON(w, http.StatusOK, persona)
}

func (c *conversation) record() types.ConversationRecord {
	return types.ConversationRecord{
		ID:             c.id,
		ConversationID: c.id,
		UserID:         c.userID,
		Messages:       append([]types.MessageRecord{}, c.messages...),
		CreatedAt:      c.createdAt.Format(time.RFC3339Nano),
		UpdatedAt:      c.updatedAt.Format(time.RFC3339Nano),
	}
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

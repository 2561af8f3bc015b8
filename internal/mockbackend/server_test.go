package mockbackend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cbot/internal/types"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	backend := New(opts...)
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)
	return backend, server
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func createConversation(t *testing.T, baseURL string, persona any) string {
	t.Helper()
	var created struct {
		ConversationID string `json:"conversation_id"`
	}
	status := doJSON(t, http.MethodPost, baseURL+"/api/conversations", map[string]any{"user_id": "tester", "persona": persona}, &created)
	if status != http.StatusCreated || created.ConversationID == "" {
		t.Fatalf("create conversation: status %d body %#v", status, created)
	}
	return created.ConversationID
}

func chat(t *testing.T, baseURL, id, message string) map[string]any {
	t.Helper()
	var resp map[string]any
	if status := doJSON(t, http.MethodPost, baseURL+"/api/conversations/"+id+"/chat", map[string]string{"message": message}, &resp); status != http.StatusOK {
		t.Fatalf("chat: status %d body %#v", status, resp)
	}
	return resp
}

func session(t *testing.T, baseURL, id string) types.SessionSnapshot {
	t.Helper()
	var record types.SessionRecord
	if status := doJSON(t, http.MethodGet, baseURL+"/api/sessions/"+id, nil, &record); status != http.StatusOK {
		t.Fatalf("session: status %d", status)
	}
	snapshot, issues := record.Normalize(id)
	if len(issues) != 0 {
		t.Fatalf("mock session should be well formed, got %v", issues)
	}
	return snapshot
}

func TestHealth(t *testing.T) {
	_, server := newTestServer(t)
	var body map[string]string
	if status := doJSON(t, http.MethodGet, server.URL+"/health", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health: %d %#v", status, body)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	_, server := newTestServer(t)
	id := createConversation(t, server.URL, nil)
	var body map[string]string
	status := doJSON(t, http.MethodPost, server.URL+"/api/conversations/"+id+"/chat", map[string]string{"message": ""}, &body)
	if status != http.StatusBadRequest || body["error"] == "" {
		t.Fatalf("expected 400 with error, got %d %#v", status, body)
	}
	status = doJSON(t, http.MethodPost, server.URL+"/api/conversations/missing/chat", map[string]string{"message": "hi"}, &body)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown conversation, got %d", status)
	}
}

func TestProgressionWalksAllStages(t *testing.T) {
	_, server := newTestServer(t)
	id := createConversation(t, server.URL, "type_d")

	first := session(t, server.URL, id)
	if first.CurrentStage != types.StageStart || first.CurrentTaskID != "rapport_1" || len(first.Tasks) != 3 {
		t.Fatalf("unexpected initial session: %#v", first)
	}

	// Stage 1: three tasks, two steps each.
	for i := 0; i < 6; i++ {
		chat(t, server.URL, id, "이야기")
	}
	explore := session(t, server.URL, id)
	if explore.CurrentStage != types.StageExplore {
		t.Fatalf("expected exploration stage, got %d", explore.CurrentStage)
	}
	if explore.StageGoal == nil || len(explore.StageSelectedKeywords) != 2 || explore.StageSelectedKeywords[0] != "불안" {
		t.Fatalf("expected persona based goal and keywords: %#v", explore)
	}
	if len(explore.CompletedTasks) != 3 || len(explore.CompletionLog) != 6 {
		t.Fatalf("unexpected completion state: %#v %d", explore.CompletedTasks, len(explore.CompletionLog))
	}
	if explore.CompletionLog[0].Completed() || !explore.CompletionLog[1].Completed() {
		t.Fatalf("only the sufficient step should carry a status: %#v", explore.CompletionLog[:2])
	}
	if len(explore.SupervisionLog) != 2 {
		t.Fatalf("expected supervision every third turn, got %d", len(explore.SupervisionLog))
	}
	if idx, ok := explore.SupervisionLog[0].ScoredTurn(); !ok || idx != 5 {
		t.Fatalf("expected first supervision on turn 5, got %d", idx)
	}

	// Stage 2: two tasks, two steps each. Stage 3: one task, three steps.
	for i := 0; i < 4; i++ {
		chat(t, server.URL, id, "계속")
	}
	if wrap := session(t, server.URL, id); wrap.CurrentStage != types.StageWrapUp || wrap.CurrentTaskID != "task_wrapup_1" {
		t.Fatalf("expected wrap-up stage, got %d %q", wrap.CurrentStage, wrap.CurrentTaskID)
	}
	for i := 0; i < 4; i++ {
		chat(t, server.URL, id, "마무리")
	}
	done := session(t, server.URL, id)
	if done.CurrentStage != types.StageWrapUp || done.CurrentTaskID != "" {
		t.Fatalf("unexpected final session: %#v", done)
	}
	task, _ := done.Task("task_wrapup_1")
	if task.Status != types.TaskStatusCompleted {
		t.Fatalf("expected wrap-up task completed, got %s", task.Status)
	}
}

func TestPromptEndpoint(t *testing.T) {
	backend, server := newTestServer(t)
	id := createConversation(t, server.URL, map[string]any{"id": "p1", "name": "테스트", "type_specific_keywords": []string{"a", "b", "c", "d"}, "common_keywords": []string{"w", "x", "y", "z"}, "counseling_level": 2})
	chat(t, server.URL, id, "hello")

	var prompt types.PromptRecord
	if status := doJSON(t, http.MethodGet, server.URL+"/api/conversations/"+id+"/messages/1/prompt", nil, &prompt); status != http.StatusOK {
		t.Fatalf("expected prompt for assistant turn, got %d", status)
	}
	meta := prompt.Normalize(1)
	if meta.Stage != types.StageStart || meta.TaskID != "rapport_1" || meta.ModuleID != "rapport_building" || meta.TaskSelectorOutput == nil {
		t.Fatalf("unexpected metadata: %#v", meta)
	}
	if !bytes.Contains([]byte(meta.Prompt), []byte("테스트")) {
		t.Fatalf("expected persona in prompt: %q", meta.Prompt)
	}

	for _, index := range []string{"0", "2", "x"} {
		if status := doJSON(t, http.MethodGet, server.URL+"/api/conversations/"+id+"/messages/"+index+"/prompt", nil, nil); status == http.StatusOK {
			t.Fatalf("index %s should not resolve", index)
		}
	}
	backend.ForgetPrompts(id)
	if status := doJSON(t, http.MethodGet, server.URL+"/api/conversations/"+id+"/messages/1/prompt", nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected forgotten prompt to 404, got %d", status)
	}
}

func TestSessionFailureInjection(t *testing.T) {
	backend, server := newTestServer(t)
	id := createConversation(t, server.URL, nil)
	backend.FailNextSessionFetches(1)
	var body map[string]string
	if status := doJSON(t, http.MethodGet, server.URL+"/api/sessions/"+id, nil, &body); status != http.StatusServiceUnavailable || body["error"] == "" {
		t.Fatalf("expected injected failure, got %d", status)
	}
	session(t, server.URL, id)
}

func TestListConversationsNewestFirst(t *testing.T) {
	_, server := newTestServer(t)
	first := createConversation(t, server.URL, nil)
	second := createConversation(t, server.URL, nil)
	var resp struct {
		Conversations []types.ConversationRecord `json:"conversations"`
		Count         int                        `json:"count"`
	}
	if status := doJSON(t, http.MethodGet, server.URL+"/api/conversations?user_id=tester&limit=5", nil, &resp); status != http.StatusOK {
		t.Fatalf("list: %d", status)
	}
	if resp.Count != 2 || resp.Conversations[0].Identifier() != second || resp.Conversations[1].Identifier() != first {
		t.Fatalf("unexpected list: %#v", resp)
	}
}

func TestPersonaEndpoints(t *testing.T) {
	_, server := newTestServer(t)
	var list types.PersonasRecord
	if status := doJSON(t, http.MethodGet, server.URL+"/admin/api/personas", nil, &list); status != http.StatusOK || len(list.Personas) == 0 {
		t.Fatalf("unexpected persona list: %d %#v", status, list)
	}
	for _, persona := range list.Personas {
		if err := persona.Validate(); err != nil {
			t.Fatalf("fixture persona invalid: %v", err)
		}
	}
	if status := doJSON(t, http.MethodGet, server.URL+"/admin/api/personas/nope", nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"cbot/internal/app"
	"cbot/internal/config"
	"cbot/internal/mockbackend"
	"cbot/internal/store"
)

type testEnv struct {
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	wiring  commandWiring
	backend *mockbackend.Server
	baseURL string
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := mockbackend.New()
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)

	dir := t.TempDir()
	env := &testEnv{
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		backend: backend,
		baseURL: server.URL,
		dir:     dir,
	}
	env.wiring = commandWiring{
		stdout: env.stdout,
		stderr: env.stderr,
		loadConfig: func() (config.Config, error) {
			cfg := config.Default()
			cfg.Backend.BaseURL = server.URL
			cfg.Backend.UserID = "tester"
			cfg.Logging.Level = "error"
			cfg.Logging.File = filepath.Join(dir, "cbot.log")
			return cfg, nil
		},
		newClient: newBackendClient,
		openRecents: func() (store.RecentsStore, error) {
			return store.NewBboltRecentsStore(filepath.Join(dir, "recents.db"))
		},
		runUI: func(app.BackendAPI, app.Options) error {
			return errors.New("ui not expected")
		},
		runWatch: app.RunWatch,
	}
	return env
}

func (e *testEnv) run(t *testing.T, name string, args ...string) string {
	t.Helper()
	e.stdout.Reset()
	runner, ok := buildCommands(e.wiring)[name]
	if !ok {
		t.Fatalf("command %q not registered", name)
	}
	if err := runner.Run(args); err != nil {
		t.Fatalf("%s %v: %v (stderr %q)", name, args, err, e.stderr.String())
	}
	return e.stdout.String()
}

func (e *testEnv) start(t *testing.T, args ...string) string {
	t.Helper()
	out := e.run(t, "start", args...)
	return strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
}

func TestStartCommandPrintsIDAndRecordsRecent(t *testing.T) {
	env := newTestEnv(t)
	id := env.start(t, "--persona", "type_b")
	if !strings.HasPrefix(id, "conv-") {
		t.Fatalf("unexpected conversation id %q", id)
	}

	out := env.run(t, "recents")
	if !strings.Contains(out, id) || !strings.Contains(out, "회피 성향") || !strings.Contains(out, env.baseURL) {
		t.Fatalf("expected recorded conversation, got %q", out)
	}

	env.run(t, "recents", "--delete", id)
	if out := env.run(t, "recents"); strings.Contains(out, id) {
		t.Fatalf("expected %s forgotten, got %q", id, out)
	}
}

func TestStartCommandRejectsUnknownPersona(t *testing.T) {
	env := newTestEnv(t)
	err := NewStartCommand(env.wiring).Run([]string{"--persona", "missing"})
	if err == nil || !strings.Contains(err.Error(), "persona missing") {
		t.Fatalf("expected persona lookup error, got %v", err)
	}
}

func TestStartCommandWithMessagePrintsReply(t *testing.T) {
	env := newTestEnv(t)
	out := env.run(t, "start", "--message", "안녕하세요")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[1], "#1 ") {
		t.Fatalf("expected id then assistant reply, got %q", out)
	}
}

func TestSendCommandContinuesConversation(t *testing.T) {
	env := newTestEnv(t)
	id := env.start(t)
	env.run(t, "send", id, "첫", "번째")
	out := env.run(t, "send", id, "두 번째")
	if !strings.HasPrefix(out, "#3 ") {
		t.Fatalf("expected second assistant turn at index 3, got %q", out)
	}

	transcript := env.run(t, "history", id)
	for _, want := range []string{"#0 user: 첫 번째", "#2 user: 두 번째", "#3 assistant:"} {
		if !strings.Contains(transcript, want) {
			t.Fatalf("transcript missing %q:\n%s", want, transcript)
		}
	}
}

func TestSendCommandRequiresArguments(t *testing.T) {
	env := newTestEnv(t)
	err := NewSendCommand(env.wiring).Run([]string{"conv-0001"})
	if err == nil || !strings.Contains(err.Error(), "usage") {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestHistoryCommandListsConversations(t *testing.T) {
	env := newTestEnv(t)
	first := env.start(t)
	second := env.start(t)
	env.run(t, "send", second, "요즘 힘들어요")

	out := env.run(t, "history", "--limit", "10")
	if !strings.Contains(out, "MESSAGES") || !strings.Contains(out, first) || !strings.Contains(out, second) {
		t.Fatalf("expected both conversations, got %q", out)
	}
	if !strings.Contains(out, "tester") {
		t.Fatalf("expected user id column, got %q", out)
	}
}

func TestPromptCommandShowsGenerationMetadata(t *testing.T) {
	env := newTestEnv(t)
	id := env.start(t, "--persona", "type_a")
	env.run(t, "send", id, "안녕하세요")

	out := env.run(t, "prompt", id, "1")
	for _, want := range []string{"message", "#1", "rapport_1", "prompt:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("prompt output missing %q:\n%s", want, out)
		}
	}

	out = env.run(t, "prompt", "--json", id, "1")
	var meta struct {
		Index  int    `json:"index"`
		TaskID string `json:"current_task"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(out), &meta); err != nil {
		t.Fatalf("decode json output: %v\n%s", err, out)
	}
	if meta.Index != 1 || meta.TaskID != "rapport_1" || meta.Prompt == "" {
		t.Fatalf("unexpected metadata %#v", meta)
	}
}

func TestPromptCommandReportsUserTurn(t *testing.T) {
	env := newTestEnv(t)
	id := env.start(t)
	env.run(t, "send", id, "안녕하세요")
	out := env.run(t, "prompt", id, "0")
	if !strings.Contains(out, "no generation metadata for #0") {
		t.Fatalf("expected not linkable message, got %q", out)
	}
	if err := NewPromptCommand(env.wiring).Run([]string{id, "x"}); err == nil {
		t.Fatalf("expected invalid index error")
	}
}

func TestPersonasCommandPrintsCatalog(t *testing.T) {
	env := newTestEnv(t)
	out := env.run(t, "personas")
	for _, persona := range mockbackend.DefaultPersonas() {
		if !strings.Contains(out, persona.ID) || !strings.Contains(out, persona.Name) {
			t.Fatalf("personas output missing %s:\n%s", persona.ID, out)
		}
	}
}

func TestWatchCommandOnce(t *testing.T) {
	env := newTestEnv(t)
	id := env.start(t)
	out := env.run(t, "watch", "--once", id)
	if !strings.Contains(out, id+" stage 1") || !strings.Contains(out, "rapport_1") {
		t.Fatalf("unexpected watch output:\n%s", out)
	}
	if err := NewWatchCommand(env.wiring).Run(nil); err == nil {
		t.Fatalf("expected missing id error")
	}
}

func TestChatCommandPassesOptionsToUI(t *testing.T) {
	env := newTestEnv(t)
	var got app.Options
	env.wiring.runUI = func(api app.BackendAPI, opts app.Options) error {
		if api == nil {
			t.Fatalf("expected api")
		}
		got = opts
		return nil
	}
	if err := NewChatCommand(env.wiring).Run([]string{"--resume", "conv-0007", "--no-markdown", "--interval", "750ms", "--user-id", "override"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got.ResumeID != "conv-0007" || got.Markdown || got.UserID != "override" {
		t.Fatalf("unexpected options %#v", got)
	}
	if got.PollInterval.String() != "750ms" || got.BaseURL != env.baseURL {
		t.Fatalf("unexpected polling options %#v", got)
	}
	if got.Recents == nil || got.Logger == nil {
		t.Fatalf("expected recents store and logger")
	}
}

func TestConfigCommandFormats(t *testing.T) {
	env := newTestEnv(t)
	out := env.run(t, "config")
	if !strings.Contains(out, "[backend]") || !strings.Contains(out, env.baseURL) {
		t.Fatalf("expected effective toml config, got %q", out)
	}

	out = env.run(t, "config", "--default", "--format", "json")
	var cfg config.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("decode json config: %v\n%s", err, out)
	}
	if cfg.BaseURL() != config.Default().BaseURL() {
		t.Fatalf("expected default base url, got %q", cfg.BaseURL())
	}

	if err := NewConfigCommand(env.wiring).Run([]string{"--format", "yaml"}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestHealthCommand(t *testing.T) {
	env := newTestEnv(t)
	out := env.run(t, "health")
	if !strings.Contains(out, "ok") {
		t.Fatalf("unexpected health output %q", out)
	}

	err := NewHealthCommand(env.wiring).Run([]string{"--base-url", "ftp://example"})
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestCurrentTaskLabel(t *testing.T) {
	cases := map[string]string{
		``:                                      "",
		`null`:                                  "",
		`"rapport_1"`:                           "rapport_1",
		`{"id":"explore_1","title":"문제 탐색"}`: "explore_1 문제 탐색",
	}
	for raw, want := range cases {
		if got := currentTaskLabel(json.RawMessage(raw)); got != want {
			t.Fatalf("currentTaskLabel(%q) = %q, want %q", raw, got, want)
		}
	}
}

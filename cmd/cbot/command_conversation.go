package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"cbot/internal/client"
	"cbot/internal/logging"
	"cbot/internal/session"
	"cbot/internal/store"
	"cbot/internal/types"
)

type StartCommand struct {
	wiring commandWiring
}

func NewStartCommand(wiring commandWiring) *StartCommand {
	return &StartCommand{wiring: wiring}
}

func (c *StartCommand) Run(args []string) error {
	fs := newFlagSet("start", c.wiring.stderr)
	backend := addBackendFlags(fs)
	personaID := fs.String("persona", "", "persona id")
	message := fs.String("message", "", "first message to send after creating the conversation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, api, logger, err := setup(c.wiring, backend)
	if err != nil {
		return err
	}
	ctx := context.Background()
	var persona *types.Persona
	if id := strings.TrimSpace(*personaID); id != "" {
		persona, err = api.GetPersona(ctx, id)
		if err != nil {
			return fmt.Errorf("persona %s: %w", id, err)
		}
	}
	chat := session.NewChatService(api, cfg.UserID(), logger)
	conversationID, err := chat.Start(ctx, persona)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.wiring.stdout, conversationID)
	c.record(ctx, cfg.BaseURL(), conversationID, persona, logger)

	if strings.TrimSpace(*message) == "" {
		return nil
	}
	reply, err := chat.Post(ctx, conversationID, *message)
	if err != nil {
		return err
	}
	printReply(c.wiring, 1, reply)
	return nil
}

func (c *StartCommand) record(ctx context.Context, baseURL, conversationID string, persona *types.Persona, logger logging.Logger) {
	if c.wiring.openRecents == nil {
		return
	}
	recents, err := c.wiring.openRecents()
	if err != nil {
		logger.Warn("recents_unavailable", logging.F("error", err))
		return
	}
	defer recents.Close()
	entry := store.RecentConversation{ID: conversationID, BaseURL: baseURL}
	if persona != nil {
		entry.PersonaID = persona.ID
		entry.PersonaName = persona.DisplayName()
	}
	if _, err := recents.Record(ctx, entry); err != nil {
		logger.Warn("recents_record_failed", logging.F("error", err))
	}
}

type SendCommand struct {
	wiring commandWiring
}

func NewSendCommand(wiring commandWiring) *SendCommand {
	return &SendCommand{wiring: wiring}
}

func (c *SendCommand) Run(args []string) error {
	fs := newFlagSet("send", c.wiring.stderr)
	backend := addBackendFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 2, "send <conversation-id> <message>"); err != nil {
		return err
	}
	cfg, api, logger, err := setup(c.wiring, backend)
	if err != nil {
		return err
	}
	ctx := context.Background()
	chat := session.NewChatService(api, cfg.UserID(), logger)
	tracker, err := chat.Resume(ctx, api, fs.Arg(0))
	if err != nil {
		return err
	}
	message := strings.Join(fs.Args()[1:], " ")
	_, assistantIndex, err := chat.Send(ctx, tracker, message)
	if err != nil {
		return err
	}
	turn, _ := tracker.Turn(assistantIndex)
	printReply(c.wiring, assistantIndex, &client.ChatResponse{Response: turn.Content})
	return nil
}

// printReply writes the assistant reply with its turn index, and the task
// summary when the backend sent one.
func printReply(w commandWiring, index int, reply *client.ChatResponse) {
	fmt.Fprintf(w.stdout, "#%d %s\n", index, reply.Response)
	if task := currentTaskLabel(reply.CurrentTask); task != "" {
		fmt.Fprintf(w.stdout, "current task: %s (remaining %d)\n", task, reply.TasksRemaining)
	}
	if reply.Supervision != nil {
		fmt.Fprintf(w.stdout, "supervision: %d/%d\n", reply.Supervision.Score, types.MaxSupervisionScore)
	}
}

func currentTaskLabel(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var task struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &task); err == nil && task.ID != "" {
		if task.Title != "" {
			return task.ID + " " + task.Title
		}
		return task.ID
	}
	return string(raw)
}

type HistoryCommand struct {
	wiring commandWiring
}

func NewHistoryCommand(wiring commandWiring) *HistoryCommand {
	return &HistoryCommand{wiring: wiring}
}

func (c *HistoryCommand) Run(args []string) error {
	fs := newFlagSet("history", c.wiring.stderr)
	backend := addBackendFlags(fs)
	limit := fs.Int("limit", 20, "maximum conversations to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, api, _, err := setup(c.wiring, backend)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if fs.NArg() > 0 {
		record, err := api.GetConversation(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		printTranscript(c.wiring, record.Turns())
		return nil
	}
	records, err := api.ListConversations(ctx, cfg.UserID(), *limit)
	if err != nil {
		return err
	}
	printConversations(c.wiring, records, cfg.TimestampFormat())
	return nil
}

func printTranscript(w commandWiring, turns []types.Turn) {
	for _, turn := range turns {
		fmt.Fprintf(w.stdout, "#%d %s: %s\n", turn.Index, turn.Role, turn.Content)
	}
}

func printConversations(w commandWiring, records []types.ConversationRecord, layout string) {
	tw := tabwriter.NewWriter(w.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tMESSAGES\tUPDATED\tLAST")
	for _, record := range records {
		conv := record.Normalize()
		updated := "-"
		if !conv.UpdatedAt.IsZero() {
			updated = conv.UpdatedAt.Local().Format("2006-01-02 " + layout)
		}
		last := ""
		if n := len(conv.Turns); n > 0 {
			last = preview(conv.Turns[n-1].Content, 40)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", conv.ID, conv.UserID, len(conv.Turns), updated, last)
	}
	_ = tw.Flush()
}

type PromptCommand struct {
	wiring commandWiring
}

func NewPromptCommand(wiring commandWiring) *PromptCommand {
	return &PromptCommand{wiring: wiring}
}

func (c *PromptCommand) Run(args []string) error {
	fs := newFlagSet("prompt", c.wiring.stderr)
	backend := addBackendFlags(fs)
	asJSON := fs.Bool("json", false, "print the generation metadata as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireArgs(fs, 2, "prompt <conversation-id> <message-index>"); err != nil {
		return err
	}
	index, err := strconv.Atoi(fs.Arg(1))
	if err != nil || index < 0 {
		return fmt.Errorf("invalid message index %q", fs.Arg(1))
	}
	cfg, api, logger, err := setup(c.wiring, backend)
	if err != nil {
		return err
	}
	ctx := context.Background()
	chat := session.NewChatService(api, cfg.UserID(), logger)
	tracker, err := chat.Resume(ctx, api, fs.Arg(0))
	if err != nil {
		return err
	}
	meta, err := tracker.ResolvePromptFor(ctx, index)
	if err != nil {
		if errors.Is(err, session.ErrNotLinkable) || errors.Is(err, session.ErrNotFound) {
			fmt.Fprintf(c.wiring.stdout, "no generation metadata for #%d: %v\n", index, err)
			return nil
		}
		return err
	}
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout())
	defer cancel()
	if snapshot, err := session.NewFetcher(api, logger).FetchSnapshot(fetchCtx, tracker.ConversationID()); err == nil {
		meta = session.AttachSupervision(meta, snapshot.SupervisionLog)
	} else {
		logger.Warn("supervision_unavailable", logging.F("error", err))
	}

	if *asJSON {
		enc := json.NewEncoder(c.wiring.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}
	printGenerationMetadata(c.wiring, meta)
	return nil
}

func printGenerationMetadata(w commandWiring, meta types.GenerationMetadata) {
	tw := tabwriter.NewWriter(w.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "message\t#%d\n", meta.Index)
	if meta.Stage.Valid() {
		fmt.Fprintf(tw, "stage\t%d %s (%s)\n", int(meta.Stage), meta.Stage.Label(), meta.Stage.EnglishLabel())
	} else {
		fmt.Fprintln(tw, "stage\t-")
	}
	fmt.Fprintf(tw, "task\t%s\n", dashIfEmpty(meta.TaskID))
	fmt.Fprintf(tw, "module\t%s\n", dashIfEmpty(meta.ModuleID))
	if meta.Supervision != nil {
		fmt.Fprintf(tw, "supervision\t%d/%d %s\n", meta.Supervision.Score, types.MaxSupervisionScore, preview(meta.Supervision.Feedback, 80))
	}
	_ = tw.Flush()
	if meta.TaskSelectorOutput != nil && strings.TrimSpace(*meta.TaskSelectorOutput) != "" {
		fmt.Fprintf(w.stdout, "\ntask selector:\n%s\n", *meta.TaskSelectorOutput)
	}
	fmt.Fprintf(w.stdout, "\nprompt:\n%s\n", meta.Prompt)
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
)

type RecentsCommand struct {
	wiring commandWiring
}

func NewRecentsCommand(wiring commandWiring) *RecentsCommand {
	return &RecentsCommand{wiring: wiring}
}

func (c *RecentsCommand) Run(args []string) error {
	fs := newFlagSet("recents", c.wiring.stderr)
	limit := fs.Int("limit", 20, "maximum entries to list (0 for all)")
	remove := fs.String("delete", "", "forget a conversation id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	recents, err := c.wiring.openRecents()
	if err != nil {
		return err
	}
	defer recents.Close()

	ctx := context.Background()
	if id := strings.TrimSpace(*remove); id != "" {
		if err := recents.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(c.wiring.stdout, "forgot %s\n", id)
		return nil
	}
	entries, err := recents.List(ctx, *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.wiring.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPERSONA\tBACKEND\tSTARTED\tLAST OPENED")
	for _, entry := range entries {
		persona := dashIfEmpty(entry.PersonaName)
		if entry.PersonaID != "" && entry.PersonaName != entry.PersonaID {
			persona = fmt.Sprintf("%s (%s)", persona, entry.PersonaID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			entry.ID, persona, dashIfEmpty(entry.BaseURL),
			entry.StartedAt.Local().Format("2006-01-02 15:04"),
			entry.LastOpenedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

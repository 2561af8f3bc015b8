package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
)

type PersonasCommand struct {
	wiring commandWiring
}

func NewPersonasCommand(wiring commandWiring) *PersonasCommand {
	return &PersonasCommand{wiring: wiring}
}

func (c *PersonasCommand) Run(args []string) error {
	fs := newFlagSet("personas", c.wiring.stderr)
	backend := addBackendFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, api, _, err := setup(c.wiring, backend)
	if err != nil {
		return err
	}
	personas, err := api.ListPersonas(context.Background())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.wiring.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLEVEL\tKEYWORDS\tVALID")
	for _, persona := range personas {
		valid := "yes"
		if err := persona.Validate(); err != nil {
			valid = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			persona.ID, persona.DisplayName(), persona.CounselingLevel,
			strings.Join(persona.Keywords(), ", "), valid)
	}
	return tw.Flush()
}

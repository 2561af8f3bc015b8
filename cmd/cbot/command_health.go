package main

import (
	"context"
	"fmt"
)

type HealthCommand struct {
	wiring commandWiring
}

func NewHealthCommand(wiring commandWiring) *HealthCommand {
	return &HealthCommand{wiring: wiring}
}

func (c *HealthCommand) Run(args []string) error {
	fs := newFlagSet("health", c.wiring.stderr)
	backend := addBackendFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, api, _, err := setup(c.wiring, backend)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	defer cancel()
	resp, err := api.Health(ctx)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("backend %s reported status %q", cfg.BaseURL(), resp.Status)
	}
	fmt.Fprintf(c.wiring.stdout, "%s ok\n", cfg.BaseURL())
	return nil
}

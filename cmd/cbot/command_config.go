package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"cbot/internal/config"
)

type ConfigCommand struct {
	wiring commandWiring
}

func NewConfigCommand(wiring commandWiring) *ConfigCommand {
	return &ConfigCommand{wiring: wiring}
}

func (c *ConfigCommand) Run(args []string) error {
	fs := newFlagSet("config", c.wiring.stderr)
	backend := addBackendFlags(fs)
	defaults := fs.Bool("default", false, "print default configuration")
	format := fs.String("format", "toml", "output format: toml|json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var cfg config.Config
	if *defaults {
		cfg = config.Default()
	} else {
		loaded, err := c.wiring.loadConfig()
		if err != nil {
			return err
		}
		backend.apply(&loaded)
		cfg = loaded
	}

	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "toml":
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		_, err = c.wiring.stdout.Write(data)
		return err
	case "json":
		enc := json.NewEncoder(c.wiring.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format %q", *format)
	}
}

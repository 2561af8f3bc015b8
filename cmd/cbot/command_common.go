package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"cbot/internal/config"
	"cbot/internal/logging"
)

// backendFlags are shared by every command that talks to the backend. Set
// flags override the config file and environment.
type backendFlags struct {
	baseURL  string
	userID   string
	logLevel string
}

func addBackendFlags(fs *pflag.FlagSet) *backendFlags {
	flags := &backendFlags{}
	fs.StringVar(&flags.baseURL, "base-url", "", "backend base URL")
	fs.StringVar(&flags.userID, "user-id", "", "user id for new conversations and history")
	fs.StringVar(&flags.logLevel, "log-level", "", "log level: debug|info|warn|error")
	return flags
}

func (f *backendFlags) apply(cfg *config.Config) {
	if v := strings.TrimSpace(f.baseURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(f.userID); v != "" {
		cfg.Backend.UserID = v
	}
	if v := strings.TrimSpace(f.logLevel); v != "" {
		cfg.Logging.Level = v
	}
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// setup loads config, applies flags and builds a client logging to stderr.
func setup(w commandWiring, flags *backendFlags) (config.Config, commandClient, logging.Logger, error) {
	cfg, err := w.loadConfig()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	flags.apply(&cfg)
	logger := logging.New(w.stderr, logging.ParseLevel(cfg.LogLevel()))
	api, err := w.newClient(cfg, logger)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, api, logger, nil
}

func requireArgs(fs *pflag.FlagSet, n int, usage string) error {
	if fs.NArg() < n {
		return fmt.Errorf("usage: cbot %s", usage)
	}
	return nil
}

func preview(text string, limit int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= limit {
		return flat
	}
	return string(runes[:limit]) + "…"
}

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

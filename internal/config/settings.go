package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultBaseURL         = "http://127.0.0.1:5000"
	defaultUserID          = "web_user"
	defaultRequestTimeout  = 10 * time.Second
	defaultChatTimeout     = 90 * time.Second
	defaultPollInterval    = 2 * time.Second
	defaultFetchTimeout    = 4 * time.Second
	defaultTimestampFormat = "15:04"
)

const (
	EnvBaseURL      = "CBOT_BASE_URL"
	EnvUserID       = "CBOT_USER_ID"
	EnvPollInterval = "CBOT_POLL_INTERVAL"
	EnvLogLevel     = "CBOT_LOG_LEVEL"
)

type Config struct {
	Backend BackendConfig `toml:"backend" json:"backend"`
	Polling PollingConfig `toml:"polling" json:"polling"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

type BackendConfig struct {
	BaseURL        string `toml:"base_url" json:"base_url"`
	UserID         string `toml:"user_id" json:"user_id"`
	RequestTimeout string `toml:"request_timeout" json:"request_timeout"`
	ChatTimeout    string `toml:"chat_timeout" json:"chat_timeout"`
}

type PollingConfig struct {
	Interval     string `toml:"interval" json:"interval"`
	FetchTimeout string `toml:"fetch_timeout" json:"fetch_timeout"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

type UIConfig struct {
	Markdown        *bool  `toml:"markdown" json:"markdown"`
	TimestampFormat string `toml:"timestamp_format" json:"timestamp_format"`
}

func Default() Config {
	markdown := true
	return Config{
		Backend: BackendConfig{
			BaseURL:        defaultBaseURL,
			UserID:         defaultUserID,
			RequestTimeout: defaultRequestTimeout.String(),
			ChatTimeout:    defaultChatTimeout.String(),
		},
		Polling: PollingConfig{
			Interval:     defaultPollInterval.String(),
			FetchTimeout: defaultFetchTimeout.String(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Markdown:        &markdown,
			TimestampFormat: defaultTimestampFormat,
		},
	}
}

// Load reads the config file, then applies environment overrides. A missing
// file yields the defaults.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	cfg, err := LoadFromPath(path)
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func LoadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if value, ok := lookup(EnvBaseURL); ok && strings.TrimSpace(value) != "" {
		c.Backend.BaseURL = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvUserID); ok && strings.TrimSpace(value) != "" {
		c.Backend.UserID = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvPollInterval); ok && strings.TrimSpace(value) != "" {
		c.Polling.Interval = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = strings.TrimSpace(value)
	}
}

// Validate reports settings that cannot be recovered by falling back to a
// default.
func (c Config) Validate() error {
	raw := strings.TrimSpace(c.Backend.BaseURL)
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("backend.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend.base_url: scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("backend.base_url: host is required")
	}
	return nil
}

func (c Config) BaseURL() string {
	raw := strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if raw == "" {
		return defaultBaseURL
	}
	return raw
}

func (c Config) UserID() string {
	if id := strings.TrimSpace(c.Backend.UserID); id != "" {
		return id
	}
	return defaultUserID
}

func (c Config) RequestTimeout() time.Duration {
	return positiveDuration(c.Backend.RequestTimeout, defaultRequestTimeout)
}

func (c Config) ChatTimeout() time.Duration {
	return positiveDuration(c.Backend.ChatTimeout, defaultChatTimeout)
}

// PollInterval falls back to the default when unset, unparseable or not
// positive.
func (c Config) PollInterval() time.Duration {
	return positiveDuration(c.Polling.Interval, defaultPollInterval)
}

func (c Config) FetchTimeout() time.Duration {
	return positiveDuration(c.Polling.FetchTimeout, defaultFetchTimeout)
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

// LogFile returns the configured log file, or the default one under the data
// directory.
func (c Config) LogFile() (string, error) {
	if path := strings.TrimSpace(c.Logging.File); path != "" {
		return resolveConfigPath(path)
	}
	return DefaultLogPath()
}

func (c Config) MarkdownEnabled() bool {
	if c.UI.Markdown == nil {
		return true
	}
	return *c.UI.Markdown
}

func (c Config) TimestampFormat() string {
	if format := strings.TrimSpace(c.UI.TimestampFormat); format != "" {
		return format
	}
	return defaultTimestampFormat
}

// Encode renders the config as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func positiveDuration(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

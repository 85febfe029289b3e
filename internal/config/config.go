// Package config holds all objection configuration. Values come from an
// optional yaml file layered over defaults; command-line flags override
// individual fields after loading.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// Runtime is the url of the runtime entry module.
	Runtime string `yaml:"runtime"`

	// Engine selects the binding backend. Empty means no bindings are
	// generated.
	Engine string `yaml:"engine"`

	// EngineURL is where the running engine can be reached. Http or
	// websocket.
	EngineURL string `yaml:"engine_url"`

	// Platform selects the packager.
	Platform string `yaml:"platform"`

	// BindingsPath is where generated engine bindings are written.
	BindingsPath string `yaml:"bindings_path"`

	// OutDir is where build artifacts land, nested per platform.
	OutDir string `yaml:"out_dir"`

	// CacheDir pins the external toolchain's module cache.
	CacheDir string `yaml:"cache_dir"`

	// AssetIndexes lists asset index files whose entries are written into
	// the platform output.
	AssetIndexes []string `yaml:"asset_indexes"`

	Web     WebConfig     `yaml:"web"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// WebConfig configures the web platform server.
type WebConfig struct {
	Port int `yaml:"port"`
}

// SessionConfig configures the session queue.
type SessionConfig struct {
	// QueuedOperationLimit bounds how many operations one session may have
	// in flight before producers see a rate limit.
	QueuedOperationLimit int `yaml:"queued_operation_limit"`

	// TerminateAfter is the inactivity window after which a session worker
	// is reclaimed. A duration string, e.g. "20m".
	TerminateAfter string `yaml:"terminate_after"`

	// PollTimeout bounds how long an update request waits for its response.
	PollTimeout string `yaml:"poll_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	FileDir string `yaml:"file_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Runtime:      "runtime",
		Platform:     "web",
		BindingsPath: "bindings.rs",
		OutDir:       "target",
		CacheDir:     ".objection/cache",

		Web: WebConfig{
			Port: 4500,
		},

		Session: SessionConfig{
			QueuedOperationLimit: 5,
			TerminateAfter:       "20m",
			PollTimeout:          "30s",
		},

		Logging: LoggingConfig{
			FileDir: ".objection/logs",
		},
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config at %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config at %s: %w", path, err)
	}

	return config, nil
}

// TerminateAfterDuration parses the session inactivity window.
func (c *SessionConfig) TerminateAfterDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(c.TerminateAfter)
	if err != nil {
		return 0, fmt.Errorf("invalid session.terminate_after %q: %w", c.TerminateAfter, err)
	}
	return duration, nil
}

// PollTimeoutDuration parses the update-request poll window.
func (c *SessionConfig) PollTimeoutDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(c.PollTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid session.poll_timeout %q: %w", c.PollTimeout, err)
	}
	return duration, nil
}

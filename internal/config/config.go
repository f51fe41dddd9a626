// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/ollama"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigrun-chat configuration.
type Config struct {
	Ollama OllamaConfig `toml:"ollama"`
	Chat   ChatConfig   `toml:"chat"`
	UI     UIConfig     `toml:"ui"`
}

// OllamaConfig holds the connection settings for the Ollama server.
type OllamaConfig struct {
	URL         string `toml:"url"`
	Model       string `toml:"model"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	// TitlePrompt is sent ahead of the first user message to derive a title.
	TitlePrompt string `toml:"title_prompt"`
}

// UIConfig holds terminal output settings.
type UIConfig struct {
	// Markdown renders final answers with glamour when stdout is a terminal.
	Markdown bool `toml:"markdown"`
}

// Timeout returns the request timeout as a duration.
func (o OllamaConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultTimeoutSecs bounds non-streaming requests.
const DefaultTimeoutSecs = 30

// Default returns a configuration with built-in defaults. No model is
// selected by default.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:         ollama.DefaultBaseURL,
			TimeoutSecs: DefaultTimeoutSecs,
		},
		Chat: ChatConfig{
			TitlePrompt: chat.DefaultTitlePrompt,
		},
		UI: UIConfig{
			Markdown: true,
		},
	}
}

// fillDefaults fills in values a config file left empty.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = defaults.Ollama.URL
	}
	if cfg.Ollama.TimeoutSecs == 0 {
		cfg.Ollama.TimeoutSecs = defaults.Ollama.TimeoutSecs
	}
	if strings.TrimSpace(cfg.Chat.TitlePrompt) == "" {
		cfg.Chat.TitlePrompt = defaults.Chat.TitlePrompt
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigrun-chat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun-chat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the configuration from the default path. A missing file is
// not an error: defaults are used. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from path with full validation. A
// missing file yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		// Keys absent from the file keep their defaults.
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	fillDefaults(cfg)
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

const fileHeader = `# rigrun-chat configuration file
# Generated by rigrun-chat - edit with care

`

// Encode writes cfg as commented TOML to w.
func Encode(cfg *Config, w io.Writer) error {
	if _, err := io.WriteString(w, fileHeader); err != nil {
		return err
	}
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// SaveToPath writes cfg as TOML to path atomically with 0600 permissions.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := Encode(cfg, &buf); err != nil {
		return err
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Ollama.URL)
	switch {
	case err != nil:
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL '%s': %v", c.Ollama.URL, err),
		})
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid scheme '%s', must be http or https", u.Scheme),
		})
	case u.Host == "":
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: "missing host",
		})
	}

	if c.Ollama.TimeoutSecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "ollama.timeout_secs",
			Message: fmt.Sprintf("must be positive, got %d", c.Ollama.TimeoutSecs),
		})
	}

	if strings.ContainsAny(c.Ollama.Model, " \t\n") {
		errs = append(errs, ValidationError{
			Field:   "ollama.model",
			Message: fmt.Sprintf("model name '%s' must not contain whitespace", c.Ollama.Model),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// Environment variables that override config file values.
const (
	EnvOllamaURL = "RIGRUN_CHAT_OLLAMA_URL"
	EnvModel     = "RIGRUN_CHAT_MODEL"
	EnvTimeout   = "RIGRUN_CHAT_TIMEOUT"
)

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RIGRUN_CHAT_OLLAMA_URL: overrides ollama.url
//   - RIGRUN_CHAT_MODEL: overrides ollama.model
//   - RIGRUN_CHAT_TIMEOUT: overrides ollama.timeout_secs (whole seconds)
func (c *Config) ApplyEnvOverrides() error {
	if u := os.Getenv(EnvOllamaURL); u != "" {
		c.Ollama.URL = u
	}
	if model := os.Getenv(EnvModel); model != "" {
		c.Ollama.Model = model
	}
	if timeout := os.Getenv(EnvTimeout); timeout != "" {
		secs, err := strconv.Atoi(timeout)
		if err != nil {
			return fmt.Errorf("%s: invalid timeout '%s': %w", EnvTimeout, timeout, err)
		}
		c.Ollama.TimeoutSecs = secs
	}
	return nil
}

// =============================================================================
// WIRING
// =============================================================================

// ClientConfig returns the Ollama client settings described by c.
func (c *Config) ClientConfig() *ollama.ClientConfig {
	return &ollama.ClientConfig{
		BaseURL: c.Ollama.URL,
		Timeout: c.Ollama.Timeout(),
	}
}

// StoreConfig returns the chat store settings described by c.
func (c *Config) StoreConfig() chat.Config {
	cfg := chat.DefaultConfig()
	cfg.TitlePrompt = c.Chat.TitlePrompt
	return cfg
}

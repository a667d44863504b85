// Package config loads propchat configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all propchat configuration.
type Config struct {
	Chat      ChatConfig      `yaml:"chat"`
	Transport TransportConfig `yaml:"transport"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ChatConfig configures the composer and the conversation surface.
type ChatConfig struct {
	CurrentUserID   string `yaml:"current_user_id"`
	CurrentUserName string `yaml:"current_user_name"`

	TypingIdleTimeout string `yaml:"typing_idle_timeout"`
	RecordingTick     string `yaml:"recording_tick"`
	// Voice notes are kept only when strictly longer than this.
	MinVoiceSeconds  int   `yaml:"min_voice_seconds"`
	MaxDocumentBytes int64 `yaml:"max_document_bytes"`
	PageSize         int   `yaml:"page_size"`

	// AttachDir backs the terminal media picker.
	AttachDir string  `yaml:"attach_dir"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`

	// Markdown renders message bodies through glamour in the TUI.
	Markdown bool `yaml:"markdown"`
}

// TransportConfig selects and configures the Transport adapter.
type TransportConfig struct {
	Kind           string `yaml:"kind"` // memory, nats
	NATSURL        string `yaml:"nats_url"`
	SubjectPrefix  string `yaml:"subject_prefix"`
	StreamName     string `yaml:"stream_name"`
	ConversationID string `yaml:"conversation_id"`
	// HistoryMaxAge bounds the JetStream history, e.g. "720h". Empty keeps
	// everything.
	HistoryMaxAge string `yaml:"history_max_age"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

const (
	TransportMemory = "memory"
	TransportNATS   = "nats"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			CurrentUserID:     "resident",
			CurrentUserName:   "Resident",
			TypingIdleTimeout: "2s",
			RecordingTick:     "1s",
			MinVoiceSeconds:   1,
			MaxDocumentBytes:  10 << 20,
			PageSize:          30,
			AttachDir:         ".",
			Markdown:          true,
		},

		Transport: TransportConfig{
			Kind:           TransportMemory,
			NATSURL:        "nats://127.0.0.1:4222",
			SubjectPrefix:  "propchat",
			StreamName:     "PROPCHAT",
			ConversationID: "lobby",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "propchat.log",
		},

		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9464",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("PROPCHAT_NATS_URL"); url != "" {
		c.Transport.NATSURL = url
		c.Transport.Kind = TransportNATS
	}
	if id := os.Getenv("PROPCHAT_USER_ID"); id != "" {
		c.Chat.CurrentUserID = id
	}
	if name := os.Getenv("PROPCHAT_USER_NAME"); name != "" {
		c.Chat.CurrentUserName = name
	}
	if level := os.Getenv("PROPCHAT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("PROPCHAT_LOG_FILE"); file != "" {
		c.Logging.File = file
	}
}

// TypingIdle returns the typing idle timeout as a duration.
func (c ChatConfig) TypingIdle() time.Duration {
	return parseDuration(c.TypingIdleTimeout, 2*time.Second)
}

// Tick returns the recording tick as a duration.
func (c ChatConfig) Tick() time.Duration {
	return parseDuration(c.RecordingTick, time.Second)
}

// MaxAge returns the JetStream history bound; zero means unbounded.
func (c TransportConfig) MaxAge() time.Duration {
	return parseDuration(c.HistoryMaxAge, 0)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Chat.CurrentUserID == "" {
		return fmt.Errorf("chat.current_user_id is required (or set PROPCHAT_USER_ID)")
	}
	if c.Chat.Latitude < -90 || c.Chat.Latitude > 90 || c.Chat.Longitude < -180 || c.Chat.Longitude > 180 {
		return fmt.Errorf("chat location out of range: %f,%f", c.Chat.Latitude, c.Chat.Longitude)
	}
	if c.Chat.MaxDocumentBytes <= 0 {
		return fmt.Errorf("chat.max_document_bytes must be positive, got %d", c.Chat.MaxDocumentBytes)
	}
	switch c.Transport.Kind {
	case TransportMemory:
	case TransportNATS:
		if c.Transport.NATSURL == "" {
			return fmt.Errorf("transport.nats_url is required for the nats transport")
		}
		if c.Transport.ConversationID == "" {
			return fmt.Errorf("transport.conversation_id is required for the nats transport")
		}
	default:
		return fmt.Errorf("invalid transport kind: %s (valid: %s, %s)", c.Transport.Kind, TransportMemory, TransportNATS)
	}
	return nil
}

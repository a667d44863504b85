package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PROPCHAT_NATS_URL", "PROPCHAT_USER_ID", "PROPCHAT_USER_NAME", "PROPCHAT_LOG_LEVEL", "PROPCHAT_LOG_FILE"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Chat.TypingIdle() != 2*time.Second {
		t.Errorf("expected typing idle 2s, got %s", cfg.Chat.TypingIdle())
	}
	if cfg.Chat.MaxDocumentBytes != 10485760 {
		t.Errorf("expected 10 MiB document limit, got %d", cfg.Chat.MaxDocumentBytes)
	}
	if cfg.Transport.Kind != TransportMemory {
		t.Errorf("expected memory transport, got %s", cfg.Transport.Kind)
	}
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "propchat.yaml")

	cfg := DefaultConfig()
	cfg.Chat.CurrentUserID = "unit-12"
	cfg.Transport.Kind = TransportNATS
	cfg.Logging.Categories = map[string]bool{"typing": false}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "unit-12", loaded.Chat.CurrentUserID)
	assert.Equal(t, TransportNATS, loaded.Transport.Kind)
	assert.False(t, loaded.Logging.IsCategoryEnabled("typing"))
	assert.True(t, loaded.Logging.IsCategoryEnabled("composer"))
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  page_size: 50\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Chat.PageSize)
	assert.Equal(t, "2s", cfg.Chat.TypingIdleTimeout)
	assert.True(t, cfg.Chat.Markdown)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat: [unclosed"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROPCHAT_NATS_URL", "nats://broker:4222")
	t.Setenv("PROPCHAT_USER_ID", "u-7")
	t.Setenv("PROPCHAT_USER_NAME", "Unit Seven")
	t.Setenv("PROPCHAT_LOG_LEVEL", "debug")
	t.Setenv("PROPCHAT_LOG_FILE", "/var/log/propchat.log")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "nats://broker:4222", cfg.Transport.NATSURL)
	assert.Equal(t, TransportNATS, cfg.Transport.Kind, "a NATS url selects the nats transport")
	assert.Equal(t, "u-7", cfg.Chat.CurrentUserID)
	assert.Equal(t, "Unit Seven", cfg.Chat.CurrentUserName)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/log/propchat.log", cfg.Logging.File)
}

func TestDurations_FallBack(t *testing.T) {
	c := ChatConfig{TypingIdleTimeout: "soon", RecordingTick: "-1s"}
	assert.Equal(t, 2*time.Second, c.TypingIdle())
	assert.Equal(t, time.Second, c.Tick())

	assert.Equal(t, time.Duration(0), TransportConfig{}.MaxAge())
	assert.Equal(t, 720*time.Hour, TransportConfig{HistoryMaxAge: "720h"}.MaxAge())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing user", func(c *Config) { c.Chat.CurrentUserID = "" }},
		{"bad latitude", func(c *Config) { c.Chat.Latitude = 91 }},
		{"bad document limit", func(c *Config) { c.Chat.MaxDocumentBytes = 0 }},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "carrier-pigeon" }},
		{"nats without url", func(c *Config) { c.Transport.Kind = TransportNATS; c.Transport.NATSURL = "" }},
		{"nats without conversation", func(c *Config) { c.Transport.Kind = TransportNATS; c.Transport.ConversationID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoggingConfig_ToLogging(t *testing.T) {
	lc := LoggingConfig{Level: "warn", Format: "console", File: "/tmp/p.log", DebugMode: true}
	got := lc.ToLogging()
	assert.Equal(t, "warn", got.Level)
	assert.Equal(t, "/tmp/p.log", got.OutputPath)
	assert.True(t, got.DebugMode)
}

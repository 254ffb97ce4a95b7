// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, ProviderGemini, cfg.Model.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model.Model)
	assert.Equal(t, 3, cfg.Model.MaxAttempts)
	assert.Equal(t, 120*time.Second, cfg.Model.TurnTimeout)
	assert.Equal(t, DriverChrome, cfg.Browser.Driver)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5*time.Minute, cfg.Explorer.IdleTimeout)
	assert.Equal(t, 40, cfg.Explorer.MaxConversationTurns)
	assert.Equal(t, 3, cfg.Explorer.DriverWarnThreshold)
}

func TestConfigValidation(t *testing.T) {
	valid := NewDefault()
	require.NoError(t, valid.Validate())

	t.Run("unknown provider", func(t *testing.T) {
		cfg := *valid
		cfg.Model.Provider = "martian"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown model provider")
	})

	t.Run("zero retry budget", func(t *testing.T) {
		cfg := *valid
		cfg.Model.MaxAttempts = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model.max_attempts must be at least 1")
	})

	t.Run("remote driver needs endpoint", func(t *testing.T) {
		cfg := *valid
		cfg.Browser.Driver = DriverRemote
		cfg.Browser.RemoteURL = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.remote_url is required")

		cfg.Browser.RemoteURL = "ws://browser-box:9222"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := *valid
		cfg.Browser.Driver = "firefox"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown browser driver")
	})

	t.Run("negative conversation turn cap", func(t *testing.T) {
		cfg := *valid
		cfg.Explorer.MaxConversationTurns = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_conversation_turns must not be negative")
	})
}

func TestNewFromViperReadsYAML(t *testing.T) {
	yaml := []byte(`
model:
  model: gemini-2.5-pro
  max_attempts: 5
  turn_timeout: 45s
browser:
  driver: remote
  remote_url: ws://browser-box:9222
explorer:
  max_pages: 20
session:
  dir: /tmp/cartographer-test-sessions
`)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	cfg, err := NewFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.Model.Model)
	assert.Equal(t, 5, cfg.Model.MaxAttempts)
	assert.Equal(t, 45*time.Second, cfg.Model.TurnTimeout)
	assert.Equal(t, DriverRemote, cfg.Browser.Driver)
	assert.Equal(t, "/tmp/cartographer-test-sessions", cfg.Session.Dir)
	assert.Equal(t, 20, cfg.Explorer.MaxPages)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestNewFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("model.provider", "martian")

	_, err := NewFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}

func TestNewFromViperExpandsSessionDir(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.NotContains(t, cfg.Session.Dir, "~")
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("CARTOGRAPHER_MODEL_API_KEY", "key-from-env")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.Model.APIKey)
}

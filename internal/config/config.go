// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration, assembled from the config
// file, environment variables and CLI flag overrides.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Model    ModelConfig    `mapstructure:"model" yaml:"model"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Explorer ExplorerConfig `mapstructure:"explorer" yaml:"explorer"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ModelProvider identifies a language model backend.
type ModelProvider string

const (
	ProviderGemini ModelProvider = "gemini"
)

// ModelConfig configures the model session client.
type ModelConfig struct {
	Provider    ModelProvider `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// MaxAttempts is the whole-turn retry budget. One attempt means no retries.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// TurnTimeout bounds one complete turn across all attempts.
	TurnTimeout time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout"`
	// TurnsPerMinute paces requests to the provider. Zero disables pacing.
	TurnsPerMinute float64 `mapstructure:"turns_per_minute" yaml:"turns_per_minute"`
}

// DriverKind selects the browser automation backend.
type DriverKind string

const (
	// DriverChrome runs a local headless browser.
	DriverChrome DriverKind = "chrome"
	// DriverRemote attaches to the DevTools endpoint of a browser running in a
	// remote desktop container.
	DriverRemote DriverKind = "remote"
)

// BrowserConfig configures the browser driver.
type BrowserConfig struct {
	Driver            DriverKind    `mapstructure:"driver" yaml:"driver"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	RemoteURL         string        `mapstructure:"remote_url" yaml:"remote_url"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostActionWait    time.Duration `mapstructure:"post_action_wait" yaml:"post_action_wait"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// SessionConfig configures snapshot persistence.
type SessionConfig struct {
	// Dir is the snapshot directory. A leading ~ is expanded.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ExplorerConfig configures the orchestrator loop.
type ExplorerConfig struct {
	// IdleTimeout aborts the session when no stream data arrives for this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	// MaxPages caps graph growth. Zero means unbounded.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
	// MaxConversationTurns bounds the exchanges spent on a single conversation
	// before the current item is abandoned and the frontier advances. Zero
	// means unbounded.
	MaxConversationTurns int `mapstructure:"max_conversation_turns" yaml:"max_conversation_turns"`
	// DriverWarnThreshold is how many consecutive driver failures are tolerated
	// before a warning is surfaced to the caller.
	DriverWarnThreshold int `mapstructure:"driver_warn_threshold" yaml:"driver_warn_threshold"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "cartographer")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Model --
	v.SetDefault("model.provider", "gemini")
	v.SetDefault("model.model", "gemini-2.5-flash")
	v.SetDefault("model.temperature", 0.2)
	v.SetDefault("model.max_tokens", 8192)
	v.SetDefault("model.max_attempts", 3)
	v.SetDefault("model.turn_timeout", "120s")
	v.SetDefault("model.turns_per_minute", 0)

	// -- Browser --
	v.SetDefault("browser.driver", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_action_wait", "2s")
	v.SetDefault("browser.ignore_tls_errors", false)

	// -- Session --
	v.SetDefault("session.dir", "~/.cartographer/sessions")

	// -- Explorer --
	v.SetDefault("explorer.idle_timeout", "5m")
	v.SetDefault("explorer.max_pages", 0)
	v.SetDefault("explorer.max_conversation_turns", 40)
	v.SetDefault("explorer.driver_warn_threshold", 3)
}

// NewFromViper unmarshals and validates a Config from a viper instance.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// API keys come from the environment, never the config file on disk.
	_ = v.BindEnv("model.api_key", "CARTOGRAPHER_MODEL_API_KEY", "GEMINI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	dir, err := homedir.Expand(cfg.Session.Dir)
	if err != nil {
		return nil, fmt.Errorf("invalid session dir %q: %w", cfg.Session.Dir, err)
	}
	cfg.Session.Dir = dir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewDefault returns a Config populated with defaults only. Used by tests.
func NewDefault() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate rejects configurations the rest of the program cannot act on.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderGemini:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.MaxAttempts < 1 {
		return fmt.Errorf("model.max_attempts must be at least 1, got %d", c.Model.MaxAttempts)
	}
	switch c.Browser.Driver {
	case DriverChrome:
	case DriverRemote:
		if c.Browser.RemoteURL == "" {
			return fmt.Errorf("browser.remote_url is required for the remote driver")
		}
	default:
		return fmt.Errorf("unknown browser driver %q", c.Browser.Driver)
	}
	if c.Explorer.MaxConversationTurns < 0 {
		return fmt.Errorf("explorer.max_conversation_turns must not be negative, got %d", c.Explorer.MaxConversationTurns)
	}
	return nil
}

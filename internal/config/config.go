package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. FIELDMARK_PORT.
const EnvPrefix = "FIELDMARK"

type Config struct {
	Port string

	// Auth for the HTTP API. Empty disables auth.
	APIKey string

	// Model provider: "claude" or "gemini".
	Provider        string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	ModelMaxTokens  int64
	ModelTimeout    time.Duration

	// Worker pool
	WorkerCount    int
	MaxQueueSize   int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Upload limits
	MaxUploadBytes int64

	// State lifetimes
	JobTTL     time.Duration
	SessionTTL time.Duration

	// Snapshot store directory
	DataDir string

	LogLevel string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:           "8090",
		Provider:       "claude",
		AnthropicModel: "claude-sonnet-4-5-20250929",
		GeminiModel:    "gemini-2.0-flash",
		ModelMaxTokens: 8192,
		ModelTimeout:   120 * time.Second,
		WorkerCount:    4,
		MaxQueueSize:   100,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  30 * time.Second,
		MaxUploadBytes: 52428800, // 50MB
		JobTTL:         1 * time.Hour,
		SessionTTL:     24 * time.Hour,
		DataDir:        "./data",
		LogLevel:       "info",
	}
}

// Load reads configuration from flags, then FIELDMARK_* environment
// variables, then defaults. ANTHROPIC_API_KEY, GEMINI_API_KEY and PORT are
// honoured without the prefix.
func Load(args []string) (Config, error) {
	def := Default()

	fs := pflag.NewFlagSet("fieldmark", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("port", def.Port, "HTTP listen port")
	fs.String("api-key", "", "Bearer token required on /api routes (empty disables auth)")
	fs.String("provider", def.Provider, "Model provider: claude or gemini")
	fs.String("anthropic-model", def.AnthropicModel, "Claude model")
	fs.String("gemini-model", def.GeminiModel, "Gemini model")
	fs.Int64("model-max-tokens", def.ModelMaxTokens, "Max output tokens per model call")
	fs.Duration("model-timeout", def.ModelTimeout, "Timeout per model call")
	fs.Int("worker-count", def.WorkerCount, "Pipeline workers")
	fs.Int("max-queue-size", def.MaxQueueSize, "Pipeline queue capacity")
	fs.Duration("retry-base-delay", def.RetryBaseDelay, "First retry delay for transient model errors")
	fs.Duration("retry-max-delay", def.RetryMaxDelay, "Retry delay cap")
	fs.Int64("max-upload-bytes", def.MaxUploadBytes, "Maximum upload size")
	fs.Duration("job-ttl", def.JobTTL, "How long finished jobs stay queryable")
	fs.Duration("session-ttl", def.SessionTTL, "Idle time before a session is dropped")
	fs.String("data-dir", def.DataDir, "Snapshot store directory")
	fs.String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv("anthropic-api-key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("gemini-api-key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")

	cfg := Config{
		Port:            v.GetString("port"),
		APIKey:          v.GetString("api-key"),
		Provider:        strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		AnthropicAPIKey: v.GetString("anthropic-api-key"),
		AnthropicModel:  v.GetString("anthropic-model"),
		GeminiAPIKey:    v.GetString("gemini-api-key"),
		GeminiModel:     v.GetString("gemini-model"),
		ModelMaxTokens:  v.GetInt64("model-max-tokens"),
		ModelTimeout:    v.GetDuration("model-timeout"),
		WorkerCount:     v.GetInt("worker-count"),
		MaxQueueSize:    v.GetInt("max-queue-size"),
		RetryBaseDelay:  v.GetDuration("retry-base-delay"),
		RetryMaxDelay:   v.GetDuration("retry-max-delay"),
		MaxUploadBytes:  v.GetInt64("max-upload-bytes"),
		JobTTL:          v.GetDuration("job-ttl"),
		SessionTTL:      v.GetDuration("session-ttl"),
		DataDir:         v.GetString("data-dir"),
		LogLevel:        strings.ToLower(v.GetString("log-level")),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = def.ModelTimeout
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Provider {
	case "claude", "gemini":
	default:
		return fmt.Errorf("provider must be claude or gemini, got %q", c.Provider)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("retry max delay %s is below base delay %s", c.RetryMaxDelay, c.RetryBaseDelay)
	}
	return nil
}

// ModelAPIKey returns the API key of the selected provider.
func (c Config) ModelAPIKey() string {
	if c.Provider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.AnthropicAPIKey
}

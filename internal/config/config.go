// Package config loads gateway configuration from a TOML file with
// environment-variable overrides for deployment-platform knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":3001"
	DefaultGraphBaseURL  = "https://graph.facebook.com/v18.0"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultMaxHistory    = 12
	DefaultDedupeTTL     = 10 * time.Minute
	DefaultReplayWindow  = 5 * time.Minute
	DefaultJobTimeout    = 30 * time.Second
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Meta     MetaConfig     `toml:"meta"`
	Gemini   GeminiConfig   `toml:"gemini"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

// MetaConfig holds the Meta (WhatsApp / Instagram / Messenger) webhook and
// Graph API credentials. All fields may be empty: the gateway then boots in
// a degraded mode (signature checks fail closed, sends are dry-run).
type MetaConfig struct {
	VerifyToken   string `toml:"verify_token"`
	AppSecret     string `toml:"app_secret"`
	AccessToken   string `toml:"access_token"`
	PhoneNumberID string `toml:"phone_number_id"`
	GraphBaseURL  string `toml:"graph_base_url" validate:"required,url"`
}

type GeminiConfig struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model" validate:"required"`
	BaseURL        string `toml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"min=0"`
}

func (c GeminiConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PipelineConfig tunes the webhook delivery pipeline. Durations are
// milliseconds to match the environment variables the hosting platform sets.
type PipelineConfig struct {
	MaxHistoryMessages int   `toml:"max_history_messages" validate:"min=1"`
	DedupeTTLMs        int64 `toml:"dedupe_ttl_ms" validate:"min=1"`
	ReplayWindowMs     int64 `toml:"replay_window_ms" validate:"min=1"`
	JobTimeoutMs       int64 `toml:"job_timeout_ms" validate:"min=1"`
	// SweepCron is an optional cron spec for a periodic TTL-cache sweep
	// (e.g. "@every 5m"). Empty disables the sweep; expiry is then lazy only.
	SweepCron string `toml:"sweep_cron"`
}

func (c PipelineConfig) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLMs) * time.Millisecond
}

func (c PipelineConfig) ReplayWindow() time.Duration {
	return time.Duration(c.ReplayWindowMs) * time.Millisecond
}

func (c PipelineConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutMs) * time.Millisecond
}

// Load reads the config file at path (DefaultConfigPath if empty), applies
// environment overrides, and validates the result. A missing file is not an
// error: defaults plus environment are enough to boot in degraded mode.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Meta: MetaConfig{
			GraphBaseURL: DefaultGraphBaseURL,
		},
		Gemini: GeminiConfig{
			Model:   DefaultGeminiModel,
			BaseURL: DefaultGeminiBaseURL,
		},
		Pipeline: PipelineConfig{
			MaxHistoryMessages: DefaultMaxHistory,
			DedupeTTLMs:        DefaultDedupeTTL.Milliseconds(),
			ReplayWindowMs:     DefaultReplayWindow.Milliseconds(),
			JobTimeoutMs:       DefaultJobTimeout.Milliseconds(),
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks structural constraints. Missing credentials are not
// validation errors; they are reported by Warnings instead.
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Warnings lists configuration gaps that put the gateway into degraded mode.
// They are logged at startup, never fatal, so local development works
// without any credentials.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Meta.VerifyToken == "" {
		warnings = append(warnings, "meta verify_token is missing; webhook subscription handshake will be rejected")
	}
	if c.Meta.AppSecret == "" {
		warnings = append(warnings, "meta app_secret is missing; signature validation will fail closed")
	}
	if c.Meta.AccessToken == "" || c.Meta.PhoneNumberID == "" {
		warnings = append(warnings, "meta access_token/phone_number_id is missing; outbound replies run dry")
	}
	if c.Gemini.APIKey == "" {
		warnings = append(warnings, "gemini api_key is missing; replies fall back to canned acknowledgments")
	}
	return warnings
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	} else if v := os.Getenv("BACKEND_PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	setString(&cfg.Meta.VerifyToken, "META_VERIFY_TOKEN")
	setString(&cfg.Meta.AppSecret, "META_APP_SECRET")
	setString(&cfg.Meta.AccessToken, "META_ACCESS_TOKEN")
	setString(&cfg.Meta.PhoneNumberID, "META_PHONE_NUMBER_ID")
	setString(&cfg.Gemini.APIKey, "API_KEY")
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setInt(&cfg.Pipeline.MaxHistoryMessages, "MAX_HISTORY_MESSAGES")
	setInt64(&cfg.Pipeline.DedupeTTLMs, "DEDUPE_TTL_MS")
	setInt64(&cfg.Pipeline.ReplayWindowMs, "REPLAY_WINDOW_MS")
	setInt64(&cfg.Pipeline.JobTimeoutMs, "JOB_TIMEOUT_MS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

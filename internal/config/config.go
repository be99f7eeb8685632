// Package config provides configuration loading for teachd.
//
// Configuration is loaded from a YAML file overridden by environment
// variables, with hardcoded defaults for everything else.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete teachd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	Workflow      WorkflowConfig      `koanf:"workflow"`
	Memory        MemoryConfig        `koanf:"memory"`
	Generation    GenerationConfig    `koanf:"generation"`
	Speech        SpeechConfig        `koanf:"speech"`
	Notify        NotifyConfig        `koanf:"notify"`
	Storage       StorageConfig       `koanf:"storage"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // "json" or "console"
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"` // "http" or "grpc"
	Insecure    bool   `koanf:"insecure"`
}

// WorkflowConfig holds orchestrator configuration.
type WorkflowConfig struct {
	// CheckpointTimeout bounds how long a suspended stage waits for a
	// human decision before the run fails.
	CheckpointTimeout Duration `koanf:"checkpoint_timeout"`

	// MaxRegenerations bounds regenerate decisions per checkpoint stage.
	MaxRegenerations int `koanf:"max_regenerations"`

	// MinIntentConfidence is the floor below which a classified intent is
	// treated as unclear and the run halts.
	MinIntentConfidence int `koanf:"min_intent_confidence"`

	// GenerationTimeout bounds each external generation call.
	GenerationTimeout Duration `koanf:"generation_timeout"`

	// RunRetention is how long terminal runs are kept before the
	// retention sweep discards them.
	RunRetention Duration `koanf:"run_retention"`
}

// MemoryConfig holds session memory store configuration.
type MemoryConfig struct {
	// BaseMaxAge is the unextended lifetime of a memory item.
	BaseMaxAge Duration `koanf:"base_max_age"`

	// SweepInterval is how often the background sweeper runs.
	SweepInterval Duration `koanf:"sweep_interval"`
}

// GenerationConfig holds generation service configuration.
type GenerationConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// SpeechConfig holds speech service configuration.
type SpeechConfig struct {
	BaseURL        string `koanf:"base_url"`
	APIKey         Secret `koanf:"api_key"`
	DefaultVoiceID string `koanf:"default_voice_id"`
}

// NotifyConfig holds mail notifier configuration.
type NotifyConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BaseURL     string `koanf:"base_url"`
	APIKey      Secret `koanf:"api_key"`
	SenderEmail string `koanf:"sender_email"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Path is the SQLite database file. Empty means in-memory only.
	Path string `koanf:"path"`
}

// applyDefaults fills zero values with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9091
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "teachd"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "http"
	}
	if cfg.Workflow.CheckpointTimeout == 0 {
		cfg.Workflow.CheckpointTimeout = Duration(30 * time.Second)
	}
	if cfg.Workflow.MaxRegenerations == 0 {
		cfg.Workflow.MaxRegenerations = 3
	}
	if cfg.Workflow.MinIntentConfidence == 0 {
		cfg.Workflow.MinIntentConfidence = 20
	}
	if cfg.Workflow.GenerationTimeout == 0 {
		cfg.Workflow.GenerationTimeout = Duration(60 * time.Second)
	}
	if cfg.Workflow.RunRetention == 0 {
		cfg.Workflow.RunRetention = Duration(24 * time.Hour)
	}
	if cfg.Memory.BaseMaxAge == 0 {
		cfg.Memory.BaseMaxAge = Duration(7 * 24 * time.Hour)
	}
	if cfg.Memory.SweepInterval == 0 {
		cfg.Memory.SweepInterval = Duration(time.Hour)
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Speech.DefaultVoiceID == "" {
		cfg.Speech.DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Workflow.CheckpointTimeout.Duration() <= 0 {
		return errors.New("workflow checkpoint timeout must be positive")
	}
	if c.Workflow.MaxRegenerations < 0 {
		return fmt.Errorf("max regenerations must be >= 0, got %d", c.Workflow.MaxRegenerations)
	}
	if c.Workflow.MinIntentConfidence < 0 || c.Workflow.MinIntentConfidence > 95 {
		return fmt.Errorf("min intent confidence must be 0-95, got %d", c.Workflow.MinIntentConfidence)
	}
	if c.Memory.BaseMaxAge.Duration() <= 0 {
		return errors.New("memory base max age must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	switch c.Observability.Protocol {
	case "http", "grpc":
	default:
		return fmt.Errorf("observability protocol must be 'http' or 'grpc', got %q", c.Observability.Protocol)
	}
	if c.Notify.Enabled && c.Notify.SenderEmail == "" {
		return errors.New("notify sender email is required when notify is enabled")
	}
	return nil
}

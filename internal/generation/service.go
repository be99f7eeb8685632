package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable indicates the generation backend could not produce
	// content. Workflow stages treat this as a degradable failure.
	ErrUnavailable = errors.New("generation service unavailable")

	// ErrEmptyPrompt indicates an empty prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds configuration for the generation service.
type Config struct {
	// BaseURL is the base URL of an OpenAI-compatible completion API.
	BaseURL string

	// Model is the chat model to use.
	Model string

	// APIKey authenticates against the provider. Optional for local
	// OpenAI-compatible servers.
	APIKey string

	// Timeout bounds each generation call. Zero means no extra bound
	// beyond the caller's context.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service produces text for workflow stages.
type Service interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// service implements Service on top of langchaingo.
type service struct {
	llm     llms.Model
	logger  *zap.Logger
	timeout time.Duration
}

// NewService creates a generation service with the given configuration.
func NewService(config Config, logger *zap.Logger) (Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token, local servers ignore it
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &service{
		llm:     llm,
		logger:  logger,
		timeout: config.Timeout,
	}, nil
}

func (s *service) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		s.logger.Warn("generation failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	s.logger.Debug("generation completed",
		zap.Int("prompt_len", len(prompt)),
		zap.Int("output_len", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

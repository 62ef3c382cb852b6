package ai

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultMaxTokens   = 250
	defaultTemperature = 0.7
	defaultTimeout     = 15 * time.Second
)

// =============================================================================
// GOOGLE GENAI COMPLETER
// =============================================================================

// GenAICompleter answers prompts through the Gemini API.
type GenAICompleter struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	timeout     time.Duration
	logger      logger.Logger
}

// NewGenAICompleter creates a completer. An empty API key is an error; callers
// treat that as "AI disabled" and rely on the fallback plan.
func NewGenAICompleter(ctx context.Context, cfg *config.AIConfig, log logger.Logger) (*GenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, errors.ErrInvalidConfig.WithError(fmt.Errorf("ai.api_key is required"))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	c := &GenAICompleter{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      log,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.temperature <= 0 {
		c.temperature = defaultTemperature
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c, nil
}

// Complete sends one system instruction and one user prompt and returns the
// text answer with its token usage.
func (c *GenAICompleter) Complete(ctx context.Context, system, prompt string) (*models.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			Temperature:       genai.Ptr(c.temperature),
			MaxOutputTokens:   c.maxTokens,
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI completion failed: %w", err)
	}

	completion := &models.Completion{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		completion.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	c.logger.Debug(ctx, "Completion received",
		logger.String("model", c.model),
		logger.Int("tokens", completion.TotalTokens),
		logger.Duration("elapsed", time.Since(start)),
	)
	return completion, nil
}

// Name returns the completer name.
func (c *GenAICompleter) Name() string {
	return fmt.Sprintf("genai:%s", c.model)
}

// Package gemini implements the generation.Generator interface against
// Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/generation"
)

// Generator produces chat replies through the Gemini API. Failures are
// surfaced to the caller; the application wraps this in a fallback
// generator so a broken external backend never breaks chat.
type Generator struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Gemini-backed generator from chat
// configuration.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.ChatConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger: logger.With("component", "gemini_generator"),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", generation.ErrEmptyPrompt
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"error", err,
			"model", g.model)
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty reply", generation.ErrInvalidResponse)
	}

	g.logger.DebugContext(ctx, "Gemini API call successful", "model", g.model)
	return text, nil
}

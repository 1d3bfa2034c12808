package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dwelligence/internal/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phuslu/log"
)

// ClaudeCompleter completes text with Anthropic Claude
type ClaudeCompleter struct {
	client anthropic.Client
	config *config.ClaudeConfig
}

// NewClaudeCompleter creates a Claude API client.
func NewClaudeCompleter(cfg *config.ClaudeConfig) *ClaudeCompleter {
	log.Info().Str("model", cfg.Model).Int("max_tokens", cfg.MaxTokens).Msg("claude completer ready")
	return &ClaudeCompleter{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		config: cfg,
	}
}

// Complete implements Completer.
func (c *ClaudeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	maxTokens := c.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.config.Temperature > 0 {
		params.Temperature = anthropic.Float(c.config.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("claude returned no text")
	}
	return out.String(), nil
}

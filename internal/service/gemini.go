package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dwelligence/internal/config"

	"github.com/phuslu/log"
	"google.golang.org/genai"
)

// GeminiCompleter completes text with Google Gemini
type GeminiCompleter struct {
	client *genai.Client
	config *config.GeminiConfig
}

// NewGeminiCompleter creates a Gemini API client.
func NewGeminiCompleter(ctx context.Context, cfg *config.GeminiConfig) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	log.Info().Str("model", cfg.Model).Msg("gemini completer ready")
	return &GeminiCompleter{client: client, config: cfg}, nil
}

// Complete implements Completer.
func (g *GeminiCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.config.Temperature)),
	}
	if system != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				out.WriteString(part.Text)
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", errors.New("gemini returned no text")
	}
	return out.String(), nil
}

package service

import (
	"context"
	"fmt"

	"dwelligence/internal/config"
)

// Completer is the text completion capability: text in, text out.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// StreamCompleter is implemented by completers that can report partial
// output while generating.
type StreamCompleter interface {
	Completer
	CompleteStream(ctx context.Context, system, prompt string, onDelta DeltaFunc) (string, error)
}

// DeltaFunc receives reasoning and content fragments as they arrive.
type DeltaFunc func(thinking, content string) error

// NewCompleter builds the completer selected by cfg.Completion.Provider.
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.Completion.Provider {
	case "openai":
		return NewOpenAIClient(&cfg.OpenAI), nil
	case "gemini":
		return NewGeminiCompleter(ctx, &cfg.Gemini)
	case "claude":
		return NewClaudeCompleter(&cfg.Claude), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Completion.Provider)
	}
}

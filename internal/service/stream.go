package service

import (
	"encoding/json"
	"strings"
)

// streamDelta is one decoded chunk of a streaming chat completion
type streamDelta struct {
	Role     string
	Content  string
	Thinking string // reasoning_content, sent by DeepSeek-style models
	Done     bool
}

// parseStreamDelta decodes an OpenAI-format chunk. Providers that expose
// model reasoning put it in delta.reasoning_content.
func parseStreamDelta(data []byte) (streamDelta, error) {
	var raw struct {
		Choices []struct {
			Delta struct {
				Role             string  `json:"role,omitempty"`
				Content          string  `json:"content,omitempty"`
				ReasoningContent *string `json:"reasoning_content,omitempty"`
			} `json:"delta"`
			FinishReason *string `json:"finish_reason,omitempty"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return streamDelta{}, err
	}

	var d streamDelta
	if len(raw.Choices) == 0 {
		return d, nil
	}
	choice := raw.Choices[0]
	d.Role = choice.Delta.Role
	d.Content = choice.Delta.Content
	if choice.Delta.ReasoningContent != nil {
		d.Thinking = *choice.Delta.ReasoningContent
	}
	d.Done = choice.FinishReason != nil && *choice.FinishReason != ""
	return d, nil
}

// isReasoningProvider reports whether the API base is known to stream
// reasoning_content alongside content.
func isReasoningProvider(baseURL string) bool {
	return strings.Contains(baseURL, "integrate.api.nvidia.com") || strings.Contains(baseURL, "api.deepseek.com")
}

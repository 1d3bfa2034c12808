package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.+?)\\s*```")

// StripCodeFences returns the body of the first markdown code block in
// input, or input trimmed when there is none.
func StripCodeFences(input string) string {
	if m := fencePattern.FindStringSubmatch(input); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(input)
}

// ExtractJSON isolates the first complete JSON object or array in AI output
// that may be wrapped in code fences or surrounded by prose.
func ExtractJSON(input string) (string, error) {
	s := strings.TrimPrefix(StripCodeFences(input), "\ufeff")
	if s == "" {
		return "", errors.New("empty input")
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON value found in: %s", truncateString(s, 100))
	}

	open, close := rune('{'), rune('}')
	if s[start] == '[' {
		open, close = '[', ']'
	}
	extracted := extractBalancedBraces(s[start:], open, close)
	if extracted == "" {
		return "", fmt.Errorf("unbalanced JSON in: %s", truncateString(s, 100))
	}
	return extracted, nil
}

// DecodeStrict extracts JSON from AI output and decodes it into target,
// rejecting unknown fields and trailing values.
func DecodeStrict(input string, target interface{}) error {
	extracted, err := ExtractJSON(input)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(strings.NewReader(extracted))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON shape: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// extractBalancedBraces extracts content with balanced braces
func extractBalancedBraces(input string, open, close rune) string {
	if len(input) == 0 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	start := 0

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}
		if ch == '\\' && inString {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if ch == open {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == close {
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}

	return ""
}

// CompactJSON re-encodes v on one line for prompts.
func CompactJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

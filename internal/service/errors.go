package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed request input.
	ErrValidation = errors.New("validation failed")
	// ErrUpstreamUnavailable marks a maps or completion provider failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNotFound marks an unknown listing.
	ErrNotFound = errors.New("not found")
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("unparseable completion")
)

// ParseError reports completion output that does not match the expected shape.
type ParseError struct {
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse completion output: %v (content: %s)", e.Err, truncate(e.Content, 200))
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParse) match.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func upstreamError(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, what, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

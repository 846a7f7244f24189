package types

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Parse and extraction failures are fatal for the
// upload; model failures are recoverable and leave session state
// untouched; validation rejections never surface here at all, they are
// folded into the assistant reply.
var (
	ErrNoPlaceholders   = errors.New("template contains no detectable placeholders")
	ErrDocumentNotFound = errors.New("document not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrModelTimeout     = errors.New("language model timed out")
	ErrModelUnavailable = errors.New("language model unavailable")
)

type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("template unreadable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("template unreadable: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

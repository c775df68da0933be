package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one turn of conversation history handed to a provider.
// Role is "user", "assistant" or "system".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the typed response every provider returns.
type Result struct {
	Content    string
	TokenUsage int
	ModelName  string
}

// Provider is the contract all text-generation backends implement.
// A provider must return *CapacityError for rate/quota conditions and any
// other error unchanged, so callers can branch on the error kind.
type Provider interface {
	Generate(ctx context.Context, history []Message, systemPrompt string) (*Result, error)
	Name() string
}

// CapacityError marks a provider-reported rate or quota failure. It is the
// only error kind with cross-component semantics: the Switchboard fails over
// on it and on nothing else.
type CapacityError struct {
	Provider string
	Err      error
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: capacity exceeded: %v", e.Provider, e.Err)
}

func (e *CapacityError) Unwrap() error { return e.Err }

// IsCapacity reports whether err is (or wraps) a CapacityError.
func IsCapacity(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// classifyErr wraps rate/quota failures in a CapacityError and returns every
// other error untouched. Providers report these conditions inconsistently,
// so the match is on the canonical markers: HTTP 429 and quota/rate wording.
func classifyErr(provider string, err error) error {
	if err == nil {
		return nil
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "429") || strings.Contains(s, "quota") ||
		strings.Contains(s, "rate limit") || strings.Contains(s, "rate_limit") {
		return &CapacityError{Provider: provider, Err: err}
	}
	return err
}

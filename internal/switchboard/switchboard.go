// Package switchboard selects among interchangeable text-generation backends
// with a strict three-level failover chain: primary, then fallback, then the
// local fast provider as last resort.
package switchboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agenthands/synapse/internal/llm"
)

// EventLogger records failover events to the audit graph. Implemented by the
// memory store; nil-safe so the Switchboard works without a graph.
type EventLogger interface {
	LogSystemEvent(ctx context.Context, eventType, source, severity, details string, chatID int64) (string, error)
}

type Switchboard struct {
	primary  llm.Provider
	fallback llm.Provider
	fast     llm.Provider
	events   EventLogger
}

func New(primary, fallback, fast llm.Provider, events EventLogger) *Switchboard {
	slog.Info("switchboard initialized",
		"primary", primary.Name(),
		"fallback", fallback.Name(),
		"fast", fast.Name(),
	)
	return &Switchboard{primary: primary, fallback: fallback, fast: fast, events: events}
}

// Generate produces text with automatic failover. useFast routes directly to
// the local provider with no failover, for cheap classification-style calls.
// Only capacity failures trigger the next provider in the chain; every other
// error propagates unchanged. Repeated calls always restart at the primary;
// there is no sticky "skip primary" state.
func (s *Switchboard) Generate(ctx context.Context, history []llm.Message, systemPrompt string, useFast bool) (*llm.Result, error) {
	if useFast {
		return s.fast.Generate(ctx, history, systemPrompt)
	}

	res, err := s.primary.Generate(ctx, history, systemPrompt)
	if err == nil {
		return res, nil
	}
	if !llm.IsCapacity(err) {
		return nil, err
	}

	slog.Warn("primary provider out of capacity, failing over",
		"from", s.primary.Name(), "to", s.fallback.Name(), "error", err)
	s.logFallback(ctx, s.primary.Name(), s.fallback.Name(), err)

	res, err = s.fallback.Generate(ctx, history, systemPrompt)
	if err == nil {
		return res, nil
	}
	if !llm.IsCapacity(err) {
		return nil, err
	}

	slog.Warn("fallback provider out of capacity, using fast provider as last resort",
		"from", s.fallback.Name(), "to", s.fast.Name(), "error", err)
	s.logFallback(ctx, s.fallback.Name(), s.fast.Name(), err)

	// The fast provider is local and assumed always available, possibly
	// degraded; it never reports capacity failures.
	return s.fast.Generate(ctx, history, systemPrompt)
}

func (s *Switchboard) logFallback(ctx context.Context, from, to string, cause error) {
	if s.events == nil {
		return
	}
	details := fmt.Sprintf("Switched from %s to %s: %v", from, to, cause)
	if _, err := s.events.LogSystemEvent(ctx, "FALLBACK", from, "warning", details, 0); err != nil {
		// Audit failures must never fail the generation itself.
		slog.Error("failed to log fallback event", "error", err)
	}
}

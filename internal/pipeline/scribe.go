package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/synapse/internal/memory"
)

// Scribe is the first stage: it validates incoming events, writes them to
// the graph as Message nodes, and forwards the raw event to the brain queue.
// It also drains the enrichment sidecar queue, applying semantic annotations
// the Thinker derives after the fact.
type Scribe struct {
	Queue  Queue
	Memory Memory

	AgentID   int64
	AgentName string

	Incoming   string
	Brain      string
	Enrichment string

	Opts Options
}

// Run starts the event loop and the enrichment loop; it returns when ctx is
// cancelled or either loop fails terminally.
func (s *Scribe) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runLoop(ctx, "scribe", s.Queue, s.Incoming, s.Opts, s.handleEvent)
	})
	g.Go(func() error {
		return runLoop(ctx, "scribe-enrichment", s.Queue, s.Enrichment, s.Opts, s.handleEnrichment)
	})
	return g.Wait()
}

func (s *Scribe) handleEvent(ctx context.Context, payload []byte) error {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		// Not requeued: an undecodable event can never become decodable.
		slog.Warn("dropping undecodable event", "stage", "scribe", "error", err)
		return nil
	}
	if err := event.Validate(); err != nil {
		slog.Warn("dropping invalid event", "stage", "scribe", "error", err,
			"chat_id", event.ChatID, "message_id", event.MessageID)
		return nil
	}

	// The agent's own messages loop back through the incoming queue; they
	// are recorded as generated, not authored.
	var uid string
	var err error
	if event.UserID == s.AgentID {
		uid, err = s.Memory.SaveAgentResponse(ctx, event.UserID, event.ChatID, event.MessageID, event.Text, event.Timestamp, s.AgentName)
	} else {
		uid, err = s.Memory.SaveUserMessage(ctx, event.UserID, event.ChatID, event.MessageID, event.Text, event.Timestamp, event.AuthorName)
	}
	if err != nil {
		// Graph write failure: the event is dropped, not requeued.
		return fmt.Errorf("scribe graph write for %s: %w", event.UID(), err)
	}

	slog.Info("message recorded", "stage", "scribe", "uid", uid)

	if err := s.Queue.Push(ctx, s.Brain, payload); err != nil {
		return fmt.Errorf("forward to brain queue: %w", err)
	}
	return nil
}

func (s *Scribe) handleEnrichment(ctx context.Context, payload []byte) error {
	var enr EnrichmentPayload
	if err := json.Unmarshal(payload, &enr); err != nil {
		slog.Warn("dropping undecodable enrichment", "stage", "scribe", "error", err)
		return nil
	}
	if enr.TargetMessageUID == "" {
		slog.Warn("dropping enrichment without target", "stage", "scribe")
		return nil
	}

	entities := make([]memory.Entity, 0, len(enr.Entities))
	for _, e := range enr.Entities {
		entities = append(entities, memory.Entity{Name: e.Name, Type: e.Type, Weight: e.Weight})
	}

	if err := s.Memory.SaveSemanticEnrichment(ctx, enr.TargetMessageUID, enr.Topics, entities); err != nil {
		return fmt.Errorf("apply enrichment for %s: %w", enr.TargetMessageUID, err)
	}
	slog.Info("message enriched", "stage", "scribe", "uid", enr.TargetMessageUID,
		"topics", len(enr.Topics), "entities", len(entities))
	return nil
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/agenthands/synapse/internal/llm"
)

// Analyst is the third stage: it classifies the narrative's intent, derives
// a task plan, and decides whether the event deserves a response at all.
type Analyst struct {
	Queue     Queue
	Memory    Memory
	Generator Generator
	Assembler Assembler

	In  string
	Out string

	Opts Options
}

func (a *Analyst) Run(ctx context.Context) error {
	return runLoop(ctx, "analyst", a.Queue, a.In, a.Opts, a.handle)
}

func (a *Analyst) handle(ctx context.Context, payload []byte) error {
	var snapshot NarrativePayload
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		slog.Warn("dropping undecodable snapshot", "stage", "analyst", "error", err)
		return nil
	}

	// Same-day analyses keep the agent self-consistent: the prompt shows
	// them so the model does not re-reach old conclusions.
	prev, err := a.Memory.TodayAnalystSnapshots(ctx)
	if err != nil {
		slog.Warn("prior analyses unavailable", "stage", "analyst", "error", err)
	}

	event := snapshot.TriggerEvent
	original := fmt.Sprintf("[%s]: %s", event.AuthorName, event.Text)
	prompt := a.Assembler.BuildAnalystPrompt(ctx, snapshot.Narrative, original, prev)

	res, err := a.Generator.Generate(ctx, []llm.Message{{Role: "user", Content: prompt}}, "", false)
	if err != nil {
		return fmt.Errorf("analyst generation: %w", err)
	}
	analysis := res.Content

	intent, tasks, err := ParseIntent(analysis)
	if err != nil {
		// Chain halts: no snapshot, nothing forwarded.
		return fmt.Errorf("analyst: %w", err)
	}
	slog.Info("intent classified", "stage", "analyst", "uid", event.UID(), "intent", intent)

	// The snapshot is persisted even for IGNORE: deciding to stay silent is
	// still a decision worth auditing.
	snapshotID, err := a.Memory.SaveAnalystSnapshot(ctx, snapshot.ID, analysis, string(intent), taskStrings(tasks))
	if err != nil {
		return fmt.Errorf("analyst snapshot write: %w", err)
	}

	if intent == IntentIgnore {
		slog.Info("event ignored", "stage", "analyst", "uid", event.UID())
		return nil
	}

	envelope, err := json.Marshal(PlanPayload{
		Type:          "analyst_snapshot",
		ID:            snapshotID,
		Analysis:      analysis,
		Intent:        intent,
		Tasks:         tasks,
		OriginalEvent: event,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("analyst envelope: %w", err)
	}
	if err := a.Queue.Push(ctx, a.Out, envelope); err != nil {
		return fmt.Errorf("forward to coordinator queue: %w", err)
	}
	return nil
}

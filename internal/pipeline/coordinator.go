package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Coordinator is the fourth stage: it executes the plan's tasks (currently
// SEARCH, through the Researcher) and forwards the aggregated context. A
// failed search degrades to empty context; the response still happens.
type Coordinator struct {
	Queue     Queue
	Memory    Memory
	Knowledge Knowledge

	In  string
	Out string

	Opts Options
}

func (c *Coordinator) Run(ctx context.Context) error {
	return runLoop(ctx, "coordinator", c.Queue, c.In, c.Opts, c.handle)
}

func (c *Coordinator) handle(ctx context.Context, payload []byte) error {
	var plan PlanPayload
	if err := json.Unmarshal(payload, &plan); err != nil {
		slog.Warn("dropping undecodable plan", "stage", "coordinator", "error", err)
		return nil
	}
	event := plan.OriginalEvent

	retrieved := ""
	if hasTask(plan.Tasks, TaskSearch) && c.Knowledge != nil {
		slog.Info("executing search task", "stage", "coordinator", "uid", event.UID())
		answer, err := c.Knowledge.QueryKnowledge(ctx, event.Text)
		if err != nil {
			slog.Warn("search failed, continuing with empty context",
				"stage", "coordinator", "uid", event.UID(), "error", err)
		} else if answer != "" {
			retrieved = answer
		}
	}

	summary := fmt.Sprintf("Intent: %s. Tasks: %v.", plan.Intent, taskStrings(plan.Tasks))
	if retrieved != "" {
		summary += fmt.Sprintf(" Retrieved: %d chars.", len(retrieved))
	}

	snapshotID, err := c.Memory.SaveCoordinatorSnapshot(ctx, plan.ID, summary, taskStrings(plan.Tasks))
	if err != nil {
		return fmt.Errorf("coordinator snapshot write: %w", err)
	}

	envelope, err := json.Marshal(ContextPayload{
		Type:                  "coordinator_context",
		OriginalEvent:         event,
		PlanID:                plan.ID,
		CoordinatorSnapshotID: snapshotID,
		Intent:                plan.Intent,
		RetrievedContext:      retrieved,
		TasksExecuted:         plan.Tasks,
		Timestamp:             time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("coordinator envelope: %w", err)
	}
	if err := c.Queue.Push(ctx, c.Out, envelope); err != nil {
		return fmt.Errorf("forward to responder queue: %w", err)
	}
	return nil
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agenthands/synapse/internal/llm"
)

// Thinker is the second stage: it turns a raw event into a narrative
// snapshot of what is happening, using graph context and the Switchboard.
type Thinker struct {
	Queue     Queue
	Memory    Memory
	Generator Generator
	Assembler Assembler

	Brain      string
	Analyst    string
	Enrichment string

	ContextLimit  int
	ThoughtsLimit int

	Opts Options
}

// narrativeOutput is the structured summary the model must return.
type narrativeOutput struct {
	Summary  string   `json:"summary"`
	Topics   []string `json:"topics"`
	Entities []struct {
		Name   string  `json:"name"`
		Type   string  `json:"type"`
		Weight float64 `json:"weight"`
	} `json:"entities"`
}

func (t *Thinker) Run(ctx context.Context) error {
	return runLoop(ctx, "thinker", t.Queue, t.Brain, t.Opts, t.handle)
}

func (t *Thinker) handle(ctx context.Context, payload []byte) error {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		slog.Warn("dropping undecodable event", "stage", "thinker", "error", err)
		return nil
	}
	uid := event.UID()

	history, err := t.Memory.GetChatContext(ctx, event.ChatID, t.contextLimit())
	if err != nil {
		return fmt.Errorf("thinker context fetch: %w", err)
	}
	// The remaining context sources are best-effort: a missing topic list
	// must not stop cognition.
	topics, err := t.Memory.ActiveTopics(ctx)
	if err != nil {
		slog.Warn("active topics unavailable", "stage", "thinker", "error", err)
	}
	entityTypes, err := t.Memory.EntityTypes(ctx)
	if err != nil {
		slog.Warn("entity types unavailable", "stage", "thinker", "error", err)
	}
	recentThoughts, err := t.Memory.RecentThoughts(ctx, t.thoughtsLimit())
	if err != nil {
		slog.Warn("recent thoughts unavailable", "stage", "thinker", "error", err)
	}
	summaries, err := t.Memory.WeeklySummaries(ctx, 7)
	if err != nil {
		slog.Warn("weekly summaries unavailable", "stage", "thinker", "error", err)
	}

	current := fmt.Sprintf("[%s]: %s", event.AuthorName, event.Text)
	prompt := t.Assembler.BuildNarrativePrompt(ctx, current, history, topics, entityTypes, recentThoughts, summaries)

	res, err := t.Generator.Generate(ctx, []llm.Message{{Role: "user", Content: prompt}}, "", false)
	if err != nil {
		return fmt.Errorf("thinker generation: %w", err)
	}
	raw := stripJSONFences(res.Content)

	if err := t.Memory.SaveThinkerLog(ctx, prompt, raw, res.ModelName); err != nil {
		slog.Warn("thinker log write failed", "error", err)
	}

	var out narrativeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		// Unparsable structured output halts this event's progression.
		return fmt.Errorf("thinker %w: %v", ErrMalformedOutput, err)
	}

	narrative := out.Summary
	if narrative == "" {
		narrative = event.Text
	}
	slog.Info("narrative formed", "stage", "thinker", "uid", uid, "summary", clip(narrative, 80))

	// Side channel: hand the semantic annotations back to the Scribe.
	t.pushEnrichment(ctx, uid, out)

	snapshotID, err := t.Memory.SaveNarrativeSnapshot(ctx, uid, narrative)
	if err != nil {
		return fmt.Errorf("thinker snapshot write: %w", err)
	}

	envelope, err := json.Marshal(NarrativePayload{
		Type:         "narrative_snapshot",
		ID:           snapshotID,
		Narrative:    narrative,
		TriggerEvent: event,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("thinker envelope: %w", err)
	}
	if err := t.Queue.Push(ctx, t.Analyst, envelope); err != nil {
		return fmt.Errorf("forward to analyst queue: %w", err)
	}
	return nil
}

func (t *Thinker) pushEnrichment(ctx context.Context, uid string, out narrativeOutput) {
	if len(out.Topics) == 0 && len(out.Entities) == 0 {
		return
	}
	enr := EnrichmentPayload{TargetMessageUID: uid, Topics: out.Topics}
	for _, e := range out.Entities {
		enr.Entities = append(enr.Entities, EnrichmentEntity(e))
	}
	payload, err := json.Marshal(enr)
	if err != nil {
		return
	}
	if err := t.Queue.Push(ctx, t.Enrichment, payload); err != nil {
		slog.Warn("enrichment push failed", "stage", "thinker", "uid", uid, "error", err)
	}
}

func (t *Thinker) contextLimit() int {
	if t.ContextLimit > 0 {
		return t.ContextLimit
	}
	return 5
}

func (t *Thinker) thoughtsLimit() int {
	if t.ThoughtsLimit > 0 {
		return t.ThoughtsLimit
	}
	return 5
}

// stripJSONFences unwraps ```json ... ``` notation some models insist on.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
	} else {
		return s
	}
	if j := strings.Index(s, "```"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}

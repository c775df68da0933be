// Package pipeline contains the five cooperating stage workers and the
// payload envelopes they pass through the queue transport.
package pipeline

import (
	"fmt"
	"time"
)

// Event is the unit entering the pipeline, immutable once created and
// carried by value through the queues.
type Event struct {
	ChatID     int64     `json:"chat_id"`
	UserID     int64     `json:"user_id"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	MessageID  int64     `json:"message_id"`
	AuthorName string    `json:"author_name"`
}

// UID is the graph identity of the message this event produced.
func (e Event) UID() string {
	return fmt.Sprintf("%d:%d", e.ChatID, e.MessageID)
}

// Validate checks the fields the Scribe requires before a graph write.
func (e Event) Validate() error {
	if e.ChatID == 0 {
		return fmt.Errorf("event missing chat_id")
	}
	if e.UserID == 0 {
		return fmt.Errorf("event missing user_id")
	}
	if e.Text == "" {
		return fmt.Errorf("event missing text")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event missing timestamp")
	}
	return nil
}

// NarrativePayload is the Thinker's output envelope.
type NarrativePayload struct {
	Type         string    `json:"type"`
	ID           string    `json:"id"`
	Narrative    string    `json:"narrative"`
	TriggerEvent Event     `json:"trigger_event"`
	Timestamp    time.Time `json:"timestamp"`
}

// PlanPayload is the Analyst's output envelope.
type PlanPayload struct {
	Type          string    `json:"type"`
	ID            string    `json:"id"`
	Analysis      string    `json:"analysis"`
	Intent        Intent    `json:"intent"`
	Tasks         []Task    `json:"tasks"`
	OriginalEvent Event     `json:"original_event"`
	Timestamp     time.Time `json:"timestamp"`
}

// ContextPayload is the Coordinator's output envelope.
type ContextPayload struct {
	Type                  string    `json:"type"`
	OriginalEvent         Event     `json:"original_event"`
	PlanID                string    `json:"plan_id"`
	CoordinatorSnapshotID string    `json:"coordinator_snapshot_id"`
	Intent                Intent    `json:"intent"`
	RetrievedContext      string    `json:"retrieved_context"`
	TasksExecuted         []Task    `json:"tasks_executed"`
	Timestamp             time.Time `json:"timestamp"`
}

// OutgoingMessage crosses the pipeline boundary to the chat transport.
type OutgoingMessage struct {
	ChatID            int64  `json:"chat_id"`
	Text              string `json:"text"`
	OriginalMessageID int64  `json:"original_message_id"`
}

// EnrichmentPayload is the Thinker-to-Scribe sidecar carrying semantic
// annotations for an already-written message.
type EnrichmentPayload struct {
	TargetMessageUID string             `json:"target_message_uid"`
	Topics           []string           `json:"topics"`
	Entities         []EnrichmentEntity `json:"entities"`
}

type EnrichmentEntity struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

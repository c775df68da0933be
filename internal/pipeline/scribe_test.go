package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/synapse/internal/memory"
)

func testEvent() Event {
	return Event{
		ChatID:     1,
		UserID:     42,
		Text:       "hi there",
		Timestamp:  time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		MessageID:  100,
		AuthorName: "Bob",
	}
}

func newScribe(q *fakeQueue, m *fakeMemory) *Scribe {
	return &Scribe{
		Queue:      q,
		Memory:     m,
		AgentID:    7,
		AgentName:  "Vasilisa",
		Incoming:   "incoming",
		Brain:      "brain",
		Enrichment: "enrichment",
	}
}

func TestScribeRecordsUserMessage(t *testing.T) {
	q := newFakeQueue()
	m := newFakeMemory()
	s := newScribe(q, m)

	payload, _ := json.Marshal(testEvent())
	require.NoError(t, s.handleEvent(context.Background(), payload))

	require.Len(t, m.messages, 1)
	assert.Equal(t, int64(42), m.messages[0].AuthorID)
	assert.Equal(t, "Bob", m.messages[0].Author)
	assert.False(t, m.messages[0].Generated)

	// The raw event moves on unchanged.
	assert.Equal(t, 1, q.depth("brain"))
	forwarded, err := q.Pop(context.Background(), "brain", 0)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(forwarded))
}

func TestScribeRecordsOwnMessagesAsGenerated(t *testing.T) {
	q := newFakeQueue()
	m := newFakeMemory()
	s := newScribe(q, m)

	event := testEvent()
	event.UserID = 7 // the agent itself
	payload, _ := json.Marshal(event)
	require.NoError(t, s.handleEvent(context.Background(), payload))

	require.Len(t, m.messages, 1)
	assert.True(t, m.messages[0].Generated)
	assert.Equal(t, "Vasilisa", m.messages[0].Author)
}

func TestScribeDropsInvalidEvents(t *testing.T) {
	q := newFakeQueue()
	m := newFakeMemory()
	s := newScribe(q, m)

	cases := [][]byte{
		[]byte("not json at all"),
		mustMarshal(t, Event{UserID: 42, Text: "no chat"}),
		mustMarshal(t, Event{ChatID: 1, UserID: 42, Timestamp: time.Now()}), // no text
		mustMarshal(t, Event{ChatID: 1, UserID: 42, Text: "no timestamp"}),
	}
	for _, payload := range cases {
		assert.NoError(t, s.handleEvent(context.Background(), payload), "invalid input is dropped, not retried")
	}
	assert.Empty(t, m.messages)
	assert.Zero(t, q.depth("brain"))
}

func TestScribeDuplicateMessageIDNotDeduplicated(t *testing.T) {
	// There is no dedup guard at the boundary: a replayed message_id is
	// written again. This pins the current behavior.
	q := newFakeQueue()
	m := newFakeMemory()
	s := newScribe(q, m)

	payload, _ := json.Marshal(testEvent())
	require.NoError(t, s.handleEvent(context.Background(), payload))
	require.NoError(t, s.handleEvent(context.Background(), payload))

	assert.Len(t, m.messages, 2)
	assert.Equal(t, 2, q.depth("brain"))
}

func TestScribeGraphWriteFailure(t *testing.T) {
	q := newFakeQueue()
	m := newFakeMemory()
	m.saveMessageErr = errors.New("graph down")
	s := newScribe(q, m)

	payload, _ := json.Marshal(testEvent())
	err := s.handleEvent(context.Background(), payload)

	require.Error(t, err)
	assert.Zero(t, q.depth("brain"), "unrecorded events never reach the thinker")
}

func TestScribeAppliesEnrichment(t *testing.T) {
	q := newFakeQueue()
	m := newFakeMemory()
	s := newScribe(q, m)

	payload, _ := json.Marshal(EnrichmentPayload{
		TargetMessageUID: "1:100",
		Topics:           []string{"travel"},
		Entities:         []EnrichmentEntity{{Name: "Paris", Type: "City", Weight: 0.9}},
	})
	require.NoError(t, s.handleEnrichment(context.Background(), payload))

	require.Len(t, m.enrichments, 1)
	assert.Equal(t, "1:100", m.enrichments[0].UID)
	assert.Equal(t, []string{"travel"}, m.enrichments[0].Topics)
	assert.Equal(t, []memory.Entity{{Name: "Paris", Type: "City", Weight: 0.9}}, m.enrichments[0].Entities)
}

func TestScribeDropsEnrichmentWithoutTarget(t *testing.T) {
	q := newFakeQueue()
	m := newFakeMemory()
	s := newScribe(q, m)

	payload, _ := json.Marshal(EnrichmentPayload{Topics: []string{"travel"}})
	require.NoError(t, s.handleEnrichment(context.Background(), payload))
	assert.Empty(t, m.enrichments)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

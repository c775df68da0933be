// Package memory is the temporally-versioned graph store all pipeline stages
// read and write. Facts carry valid_from/valid_to intervals; corrections
// close a version instead of deleting it.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/synapse/internal/driver"
)

// ChatMessage is one row of recent chat context.
type ChatMessage struct {
	Author string
	Text   string
	Time   string
}

type Topic struct {
	Title       string
	Description string
}

// Entity is a mentioned thing extracted from a message.
type Entity struct {
	Name   string
	Type   string
	Weight float64
}

type NarrativeSnapshot struct {
	ID        string
	Content   string
	CreatedAt float64
}

type AnalystSnapshot struct {
	ID        string
	Analysis  string
	Intent    string
	CreatedAt float64
}

type SystemEvent struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Source    string  `json:"source"`
	Severity  string  `json:"severity"`
	Details   string  `json:"details"`
	CreatedAt float64 `json:"created_at"`
}

// Store exposes the graph operations the stages use. All writes that touch
// more than one node go through a single query so the write is atomic.
type Store struct {
	Driver driver.GraphDriver

	// Now and NewID are injectable for tests.
	Now   func() time.Time
	NewID func() string
}

func NewStore(d driver.GraphDriver) *Store {
	return &Store{
		Driver: d,
		Now:    func() time.Time { return time.Now().UTC() },
		NewID:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] },
	}
}

// ExecuteQuery is the raw query primitive, used by the Researcher and the
// Prompt Assembler. It accepts a parameter map and returns the eager result.
func (s *Store) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	return s.Driver.ExecuteQuery(ctx, query, params)
}

// SaveUserMessage writes one user-authored message and its edges, rewriting
// the chat's LAST_EVENT pointer and extending the NEXT chain, atomically.
// Returns the message uid "<chat_id>:<message_id>".
func (s *Store) SaveUserMessage(ctx context.Context, userID, chatID, messageID int64, text string, ts time.Time, authorName string) (string, error) {
	return s.saveMessage(ctx, driver.SaveUserMessageQuery, userID, chatID, messageID, text, ts, authorName)
}

// SaveAgentResponse is the GENERATED twin of SaveUserMessage.
func (s *Store) SaveAgentResponse(ctx context.Context, agentID, chatID, messageID int64, text string, ts time.Time, agentName string) (string, error) {
	return s.saveMessage(ctx, driver.SaveAgentResponseQuery, agentID, chatID, messageID, text, ts, agentName)
}

func (s *Store) saveMessage(ctx context.Context, query string, authorID, chatID, messageID int64, text string, ts time.Time, authorName string) (string, error) {
	uid := fmt.Sprintf("%d:%d", chatID, messageID)
	day := ts.Format("2006-01-02")
	nodeName, err := s.nextMessageName(ctx, authorID, day, authorName)
	if err != nil {
		slog.Warn("message naming fell back to sequence 1", "author_id", authorID, "error", err)
		nodeName = authorAbbrev(authorName) + "01"
	}

	params := map[string]any{
		"author_id":   authorID,
		"author_name": authorName,
		"chat_id":     chatID,
		"message_id":  messageID,
		"uid":         uid,
		"text":        text,
		"created_at":  float64(ts.UnixNano()) / float64(time.Second),
		"now":         float64(s.Now().UnixNano()) / float64(time.Second),
		"day":         day,
		"day_id":      s.NewID(),
		"day_name":    fmt.Sprintf("%d", ts.Day()),
		"year":        ts.Year(),
		"month":       int(ts.Month()),
		"time":        ts.Format("15:04:05"),
		"node_name":   nodeName,
	}

	if _, err := s.Driver.ExecuteQuery(ctx, query, params); err != nil {
		return "", fmt.Errorf("save message %s: %w", uid, err)
	}
	return uid, nil
}

// nextMessageName produces the per-author, per-day sequence name, e.g. "MA03".
func (s *Store) nextMessageName(ctx context.Context, authorID int64, day, authorName string) (string, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.CountAuthorMessagesQuery, map[string]any{
		"day":       day,
		"author_id": authorID,
	})
	if err != nil {
		return "", err
	}
	count := int64(0)
	if len(res.Records) > 0 {
		if v, ok := res.Records[0].Get("n"); ok {
			if n, ok := v.(int64); ok {
				count = n
			}
		}
	}
	return fmt.Sprintf("%s%02d", authorAbbrev(authorName), count+1), nil
}

func authorAbbrev(name string) string {
	parts := strings.Fields(strings.TrimSpace(name))
	switch {
	case len(parts) >= 2:
		return strings.ToUpper(string([]rune(parts[0])[0]) + string([]rune(parts[1])[0]))
	case len(parts) == 1:
		r := []rune(parts[0])
		if len(r) > 1 {
			return strings.ToUpper(string(r[:2]))
		}
		return strings.ToUpper(string(r))
	default:
		return "U"
	}
}

// GetChatContext returns the most recent limit messages of a chat in
// chronological order.
func (s *Store) GetChatContext(ctx context.Context, chatID int64, limit int) ([]ChatMessage, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetChatContextQuery, map[string]any{
		"chat_id": chatID,
		"limit":   int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("get chat context: %w", err)
	}

	msgs := make([]ChatMessage, 0, len(res.Records))
	for _, rec := range res.Records {
		m := ChatMessage{
			Author: stringValue(rec, "author", "???"),
			Text:   truncate(stringValue(rec, "text", ""), 150),
			Time:   stringValue(rec, "time", "??:??"),
		}
		msgs = append(msgs, m)
	}

	// Query returns newest first; callers want oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LogSystemEvent records an auditable event, optionally linked to a chat.
// chatID zero means no chat link.
func (s *Store) LogSystemEvent(ctx context.Context, eventType, source, severity, details string, chatID int64) (string, error) {
	id := "sys_" + s.NewID()
	params := map[string]any{
		"id":         id,
		"type":       eventType,
		"source":     source,
		"severity":   severity,
		"details":    details,
		"created_at": float64(s.Now().UnixNano()) / float64(time.Second),
	}

	query := driver.LogSystemEventQuery
	if chatID != 0 {
		query = driver.LogSystemEventWithChatQuery
		params["chat_id"] = chatID
	}

	if _, err := s.Driver.ExecuteQuery(ctx, query, params); err != nil {
		return "", fmt.Errorf("log system event: %w", err)
	}
	slog.Info("system event logged", "type", eventType, "source", source, "severity", severity)
	return id, nil
}

// RecentSystemEvents returns the newest limit audit events.
func (s *Store) RecentSystemEvents(ctx context.Context, limit int) ([]SystemEvent, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.RecentSystemEventsQuery, map[string]any{
		"limit": int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("recent system events: %w", err)
	}
	events := make([]SystemEvent, 0, len(res.Records))
	for _, rec := range res.Records {
		events = append(events, SystemEvent{
			ID:        stringValue(rec, "id", ""),
			Type:      stringValue(rec, "type", ""),
			Source:    stringValue(rec, "source", ""),
			Severity:  stringValue(rec, "severity", ""),
			Details:   stringValue(rec, "details", ""),
			CreatedAt: floatValue(rec, "created_at"),
		})
	}
	return events, nil
}

// SaveNarrativeSnapshot chains a Thinker decision to its triggering message.
func (s *Store) SaveNarrativeSnapshot(ctx context.Context, eventUID, narrative string) (string, error) {
	id := "snap_narrative_" + s.NewID()
	_, err := s.Driver.ExecuteQuery(ctx, driver.SaveNarrativeSnapshotQuery, map[string]any{
		"event_uid":  eventUID,
		"id":         id,
		"content":    narrative,
		"created_at": float64(s.Now().UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return "", fmt.Errorf("save narrative snapshot: %w", err)
	}
	return id, nil
}

// SaveAnalystSnapshot chains an Analyst decision to its narrative.
func (s *Store) SaveAnalystSnapshot(ctx context.Context, narrativeID, analysis, intent string, tasks []string) (string, error) {
	id := "snap_analyst_" + s.NewID()
	_, err := s.Driver.ExecuteQuery(ctx, driver.SaveAnalystSnapshotQuery, map[string]any{
		"narrative_id": narrativeID,
		"id":           id,
		"analysis":     analysis,
		"intent":       intent,
		"tasks":        tasks,
		"created_at":   float64(s.Now().UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return "", fmt.Errorf("save analyst snapshot: %w", err)
	}
	return id, nil
}

// SaveCoordinatorSnapshot closes the decision chain for one event.
func (s *Store) SaveCoordinatorSnapshot(ctx context.Context, analystID, contextSummary string, tasksExecuted []string) (string, error) {
	id := "snap_coord_" + s.NewID()
	_, err := s.Driver.ExecuteQuery(ctx, driver.SaveCoordinatorSnapshotQuery, map[string]any{
		"analyst_id":     analystID,
		"id":             id,
		"context":        contextSummary,
		"tasks_executed": tasksExecuted,
		"created_at":     float64(s.Now().UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return "", fmt.Errorf("save coordinator snapshot: %w", err)
	}
	return id, nil
}

// TodayNarrativeSnapshots returns today's Thinker decisions in creation order.
func (s *Store) TodayNarrativeSnapshots(ctx context.Context) ([]NarrativeSnapshot, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.TodayNarrativeSnapshotsQuery, map[string]any{
		"day": s.Now().Format("2006-01-02"),
	})
	if err != nil {
		return nil, fmt.Errorf("today narrative snapshots: %w", err)
	}
	snaps := make([]NarrativeSnapshot, 0, len(res.Records))
	for _, rec := range res.Records {
		snaps = append(snaps, NarrativeSnapshot{
			ID:        stringValue(rec, "id", ""),
			Content:   stringValue(rec, "content", ""),
			CreatedAt: floatValue(rec, "created_at"),
		})
	}
	return snaps, nil
}

// TodayAnalystSnapshots returns today's Analyst decisions in creation order.
func (s *Store) TodayAnalystSnapshots(ctx context.Context) ([]AnalystSnapshot, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.TodayAnalystSnapshotsQuery, map[string]any{
		"day": s.Now().Format("2006-01-02"),
	})
	if err != nil {
		return nil, fmt.Errorf("today analyst snapshots: %w", err)
	}
	snaps := make([]AnalystSnapshot, 0, len(res.Records))
	for _, rec := range res.Records {
		snaps = append(snaps, AnalystSnapshot{
			ID:        stringValue(rec, "id", ""),
			Analysis:  stringValue(rec, "analysis", ""),
			Intent:    stringValue(rec, "intent", ""),
			CreatedAt: floatValue(rec, "created_at"),
		})
	}
	return snaps, nil
}

// ActiveTopics returns conversation topics currently marked active.
func (s *Store) ActiveTopics(ctx context.Context) ([]Topic, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.ActiveTopicsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("active topics: %w", err)
	}
	topics := make([]Topic, 0, len(res.Records))
	for _, rec := range res.Records {
		topics = append(topics, Topic{
			Title:       stringValue(rec, "title", ""),
			Description: stringValue(rec, "description", ""),
		})
	}
	return topics, nil
}

// EntityTypes returns the distinct types of currently valid entities.
func (s *Store) EntityTypes(ctx context.Context) ([]string, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.EntityTypesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("entity types: %w", err)
	}
	types := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		if t := stringValue(rec, "type", ""); t != "" {
			types = append(types, t)
		}
	}
	return types, nil
}

// SaveSemanticEnrichment links a message to its topics and mentioned
// entities. Entities MERGE by name; mention edges carry a weight.
func (s *Store) SaveSemanticEnrichment(ctx context.Context, msgUID string, topics []string, entities []Entity) error {
	now := float64(s.Now().UnixNano()) / float64(time.Second)

	if len(topics) > 0 {
		_, err := s.Driver.ExecuteQuery(ctx, driver.LinkTopicsQuery, map[string]any{
			"uid":    msgUID,
			"topics": topics,
			"now":    now,
		})
		if err != nil {
			return fmt.Errorf("link topics for %s: %w", msgUID, err)
		}
	}

	if len(entities) > 0 {
		ents := make([]map[string]any, 0, len(entities))
		for _, e := range entities {
			w := e.Weight
			if w == 0 {
				w = 1.0
			}
			ents = append(ents, map[string]any{"name": e.Name, "type": e.Type, "weight": w})
		}
		_, err := s.Driver.ExecuteQuery(ctx, driver.MergeEntityMentionsQuery, map[string]any{
			"uid":      msgUID,
			"entities": ents,
			"now":      now,
		})
		if err != nil {
			return fmt.Errorf("merge entity mentions for %s: %w", msgUID, err)
		}
	}
	return nil
}

// CloseEntity closes the current version of an entity. The node stays in the
// graph with a closed validity interval.
func (s *Store) CloseEntity(ctx context.Context, name string) error {
	_, err := s.Driver.ExecuteQuery(ctx, driver.CloseEntityQuery, map[string]any{
		"name": name,
		"now":  float64(s.Now().UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return fmt.Errorf("close entity %s: %w", name, err)
	}
	return nil
}

// SaveThinkerLog records a prompt/response pair for the same-day
// "avoid repeating a thought" check.
func (s *Store) SaveThinkerLog(ctx context.Context, prompt, response, model string) error {
	_, err := s.Driver.ExecuteQuery(ctx, driver.SaveThinkerLogQuery, map[string]any{
		"timestamp": float64(s.Now().UnixNano()) / float64(time.Second),
		"prompt":    prompt,
		"response":  response,
		"model":     model,
	})
	if err != nil {
		return fmt.Errorf("save thinker log: %w", err)
	}
	return nil
}

// RecentThoughts returns model responses from the last 24 hours.
func (s *Store) RecentThoughts(ctx context.Context, limit int) ([]string, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.RecentThoughtsQuery, map[string]any{
		"since": float64(s.Now().Add(-24*time.Hour).UnixNano()) / float64(time.Second),
		"limit": int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("recent thoughts: %w", err)
	}
	out := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, stringValue(rec, "response", ""))
	}
	return out, nil
}

// WeeklySummaries returns day summaries for roughly the last week.
func (s *Store) WeeklySummaries(ctx context.Context, limit int) ([]string, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.WeeklySummariesQuery, map[string]any{
		"limit": int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("weekly summaries: %w", err)
	}
	out := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, stringValue(rec, "content", ""))
	}
	return out, nil
}

func stringValue(rec *neo4j.Record, key, fallback string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

func floatValue(rec *neo4j.Record, key string) float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

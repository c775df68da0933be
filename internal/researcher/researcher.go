// Package researcher answers natural-language questions from the knowledge
// graph: the model formulates a Cypher query, the store executes it, and the
// model interprets the rows back into prose.
package researcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/synapse/internal/llm"
)

const cypherPrompt = `You are an expert in Cypher, the query language for graph databases.

The memory graph has this schema:
- (:User {user_id, name}) - people
- (:Agent {user_id, name}) - bots
- (:Chat {chat_id, name}) - chats
- (:Message {uid, text, created_at, name}) - messages
- (:Day {date}) - days
- (:Entity {name, type}) - mentioned things
- (:SystemEvent {type, source, details}) - system events

Relationships:
- [:AUTHORED] User -> Message
- [:GENERATED] Agent -> Message
- [:HAPPENED_IN] Message -> Chat
- [:HAPPENED_AT] Message -> Day
- [:NEXT] Message -> Message (chronological order)
- [:MENTIONS] Message -> Entity

Write one Cypher query for the question below.
IMPORTANT:
1. Match on keywords with toLower(...) CONTAINS, not whole phrases.
2. Return ONLY the query, no explanations.
3. Always add LIMIT 10.

Question: `

const interpretPrompt = `You received results from a knowledge-graph query.
Interpret them and give a short, factual answer.

Query: %s
Results: %s

Answer (brief, to the point):`

// Generator is the text-generation dependency, satisfied by the Switchboard.
type Generator interface {
	Generate(ctx context.Context, history []llm.Message, systemPrompt string, useFast bool) (*llm.Result, error)
}

// QueryExecutor is the graph dependency, satisfied by the memory store.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error)
}

type Researcher struct {
	generator Generator
	graph     QueryExecutor
}

func New(g Generator, q QueryExecutor) *Researcher {
	return &Researcher{generator: g, graph: q}
}

// QueryKnowledge answers a natural-language question from the graph.
func (r *Researcher) QueryKnowledge(ctx context.Context, question string) (string, error) {
	query, err := r.generateCypher(ctx, question)
	if err != nil {
		return "", fmt.Errorf("generate cypher: %w", err)
	}
	slog.Debug("researcher generated query", "query", clip(query, 120))

	rows, err := r.executeQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("execute knowledge query: %w", err)
	}
	if len(rows) == 0 {
		return "The knowledge base has no information for this question.", nil
	}

	return r.interpret(ctx, query, rows)
}

func (r *Researcher) generateCypher(ctx context.Context, question string) (string, error) {
	res, err := r.generator.Generate(ctx, []llm.Message{
		{Role: "user", Content: cypherPrompt + question},
	}, "", false)
	if err != nil {
		return "", err
	}

	query := stripFences(strings.TrimSpace(res.Content))
	upper := strings.ToUpper(query)
	if !strings.Contains(upper, "MATCH") || !strings.Contains(upper, "RETURN") {
		return "", fmt.Errorf("model produced invalid cypher: %q", clip(query, 80))
	}
	return query, nil
}

func (r *Researcher) executeQuery(ctx context.Context, query string) ([]map[string]any, error) {
	res, err := r.graph.ExecuteQuery(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(res.Records))
	for _, rec := range res.Records {
		row := make(map[string]any, len(rec.Keys))
		for i, key := range rec.Keys {
			if i < len(rec.Values) {
				row[key] = rec.Values[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *Researcher) interpret(ctx context.Context, query string, rows []map[string]any) (string, error) {
	if len(rows) > 5 {
		rows = rows[:5]
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		rowsJSON = []byte(fmt.Sprintf("%v", rows))
	}

	// Interpretation is a cheap summarization call; the fast provider is
	// good enough and keeps cloud quota for the stages that need it.
	res, err := r.generator.Generate(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(interpretPrompt, query, rowsJSON)},
	}, "", true)
	if err != nil {
		return fmt.Sprintf("Found %d records in the knowledge base.", len(rows)), nil
	}
	return strings.TrimSpace(res.Content), nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

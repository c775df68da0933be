package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agenthands/synapse/internal/llm"
	"github.com/agenthands/synapse/internal/memory"
)

// allPathsFailedNotice is emitted instead of silence when every provider in
// the failover chain fails during final response generation.
const allPathsFailedNotice = "⚠️ All cognitive paths failed. I heard you, but I cannot form a proper answer right now."

// Responder is the fifth stage and the only one whose output crosses the
// pipeline boundary: it articulates the final response and pushes it to the
// outgoing queue for the chat transport.
type Responder struct {
	Queue     Queue
	Memory    Memory
	Generator Generator
	Assembler Assembler

	AgentName string

	In  string
	Out string

	ContextLimit int

	Opts Options
}

func (r *Responder) Run(ctx context.Context) error {
	return runLoop(ctx, "responder", r.Queue, r.In, r.Opts, r.handle)
}

func (r *Responder) handle(ctx context.Context, payload []byte) error {
	var cp ContextPayload
	if err := json.Unmarshal(payload, &cp); err != nil {
		slog.Warn("dropping undecodable context", "stage", "responder", "error", err)
		return nil
	}
	event := cp.OriginalEvent

	history, err := r.Memory.GetChatContext(ctx, event.ChatID, r.contextLimit())
	if err != nil {
		slog.Warn("chat history unavailable, responding from the event alone",
			"stage", "responder", "uid", event.UID(), "error", err)
	}

	messages := r.historyToMessages(history)
	if len(messages) == 0 {
		messages = []llm.Message{{Role: "user", Content: fmt.Sprintf("[%s]: %s", event.AuthorName, event.Text)}}
	}

	systemPrompt := r.Assembler.BuildResponderPrompt(ctx, cp.RetrievedContext)

	text := ""
	res, err := r.Generator.Generate(ctx, messages, systemPrompt, false)
	if err != nil {
		// The user's turn is never dropped silently: a visible notice goes
		// out even when the whole failover chain is down.
		slog.Error("response generation failed on all paths",
			"stage", "responder", "uid", event.UID(), "error", err)
		text = allPathsFailedNotice
	} else {
		text = res.Content
		slog.Info("response generated", "stage", "responder", "uid", event.UID(),
			"model", res.ModelName, "tokens", res.TokenUsage)
	}

	out, err := json.Marshal(OutgoingMessage{
		ChatID:            event.ChatID,
		Text:              text,
		OriginalMessageID: event.MessageID,
	})
	if err != nil {
		return fmt.Errorf("responder envelope: %w", err)
	}
	if err := r.Queue.Push(ctx, r.Out, out); err != nil {
		return fmt.Errorf("forward to outgoing queue: %w", err)
	}
	return nil
}

// historyToMessages maps stored chat context to provider turns. Messages
// written by the agent itself become assistant turns.
func (r *Responder) historyToMessages(history []memory.ChatMessage) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if m.Author == r.AgentName {
			messages = append(messages, llm.Message{Role: "assistant", Content: m.Text})
			continue
		}
		messages = append(messages, llm.Message{Role: "user", Content: fmt.Sprintf("[%s]: %s", m.Author, m.Text)})
	}
	return messages
}

func (r *Responder) contextLimit() int {
	if r.ContextLimit > 0 {
		return r.ContextLimit
	}
	return 10
}

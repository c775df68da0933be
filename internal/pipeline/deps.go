package pipeline

import (
	"context"
	"time"

	"github.com/agenthands/synapse/internal/llm"
	"github.com/agenthands/synapse/internal/memory"
)

// Queue is the transport contract the stages consume: push, and blocking
// pop with a bounded wait that returns (nil, nil) on timeout.
type Queue interface {
	Push(ctx context.Context, queue string, payload []byte) error
	Pop(ctx context.Context, queue string, wait time.Duration) ([]byte, error)
}

// Generator is the Switchboard contract.
type Generator interface {
	Generate(ctx context.Context, history []llm.Message, systemPrompt string, useFast bool) (*llm.Result, error)
}

// Memory is the slice of the graph store the stages use.
type Memory interface {
	SaveUserMessage(ctx context.Context, userID, chatID, messageID int64, text string, ts time.Time, authorName string) (string, error)
	SaveAgentResponse(ctx context.Context, agentID, chatID, messageID int64, text string, ts time.Time, agentName string) (string, error)
	GetChatContext(ctx context.Context, chatID int64, limit int) ([]memory.ChatMessage, error)
	SaveNarrativeSnapshot(ctx context.Context, eventUID, narrative string) (string, error)
	SaveAnalystSnapshot(ctx context.Context, narrativeID, analysis, intent string, tasks []string) (string, error)
	SaveCoordinatorSnapshot(ctx context.Context, analystID, contextSummary string, tasksExecuted []string) (string, error)
	TodayAnalystSnapshots(ctx context.Context) ([]memory.AnalystSnapshot, error)
	ActiveTopics(ctx context.Context) ([]memory.Topic, error)
	EntityTypes(ctx context.Context) ([]string, error)
	RecentThoughts(ctx context.Context, limit int) ([]string, error)
	WeeklySummaries(ctx context.Context, limit int) ([]string, error)
	SaveThinkerLog(ctx context.Context, prompt, response, model string) error
	SaveSemanticEnrichment(ctx context.Context, msgUID string, topics []string, entities []memory.Entity) error
}

// Assembler is the Prompt Assembler contract.
type Assembler interface {
	BuildNarrativePrompt(ctx context.Context, currentMessage string, history []memory.ChatMessage, topics []memory.Topic, entityTypes, recentThoughts, weeklySummaries []string) string
	BuildAnalystPrompt(ctx context.Context, narrative, originalText string, prevAnalyses []memory.AnalystSnapshot) string
	BuildResponderPrompt(ctx context.Context, retrievedContext string) string
}

// Knowledge is the Researcher collaborator contract.
type Knowledge interface {
	QueryKnowledge(ctx context.Context, question string) (string, error)
}

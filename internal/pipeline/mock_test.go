package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agenthands/synapse/internal/llm"
	"github.com/agenthands/synapse/internal/memory"
)

// fakeQueue is an in-memory transport: Pop returns immediately instead of
// blocking, (nil, nil) when the queue is empty.
type fakeQueue struct {
	mu      sync.Mutex
	data    map[string][][]byte
	pushErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{data: make(map[string][][]byte)}
}

func (q *fakeQueue) Push(ctx context.Context, queue string, payload []byte) error {
	if q.pushErr != nil {
		return q.pushErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.data[queue] = append(q.data[queue], payload)
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context, queue string, wait time.Duration) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.data[queue]
	if len(items) == 0 {
		return nil, nil
	}
	q.data[queue] = items[1:]
	return items[0], nil
}

func (q *fakeQueue) depth(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data[queue])
}

type savedMessage struct {
	AuthorID  int64
	ChatID    int64
	MessageID int64
	Text      string
	Author    string
	Generated bool
}

type savedEnrichment struct {
	UID      string
	Topics   []string
	Entities []memory.Entity
}

// fakeMemory records every write and serves canned reads.
type fakeMemory struct {
	messages    []savedMessage
	narratives  map[string]string
	analyses    map[string]string
	coords      map[string]string
	thinkerLogs int
	enrichments []savedEnrichment

	chatContext []memory.ChatMessage
	topics      []memory.Topic
	entityTypes []string
	thoughts    []string
	summaries   []string
	prevToday   []memory.AnalystSnapshot

	saveMessageErr error
	contextErr     error
	snapshotErr    error

	nextSnapshot int
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{
		narratives: make(map[string]string),
		analyses:   make(map[string]string),
		coords:     make(map[string]string),
	}
}

func (m *fakeMemory) snapshotID(prefix string) string {
	m.nextSnapshot++
	return fmt.Sprintf("%s_%d", prefix, m.nextSnapshot)
}

func (m *fakeMemory) SaveUserMessage(ctx context.Context, userID, chatID, messageID int64, text string, ts time.Time, authorName string) (string, error) {
	if m.saveMessageErr != nil {
		return "", m.saveMessageErr
	}
	m.messages = append(m.messages, savedMessage{userID, chatID, messageID, text, authorName, false})
	return fmt.Sprintf("%d:%d", chatID, messageID), nil
}

func (m *fakeMemory) SaveAgentResponse(ctx context.Context, agentID, chatID, messageID int64, text string, ts time.Time, agentName string) (string, error) {
	if m.saveMessageErr != nil {
		return "", m.saveMessageErr
	}
	m.messages = append(m.messages, savedMessage{agentID, chatID, messageID, text, agentName, true})
	return fmt.Sprintf("%d:%d", chatID, messageID), nil
}

func (m *fakeMemory) GetChatContext(ctx context.Context, chatID int64, limit int) ([]memory.ChatMessage, error) {
	if m.contextErr != nil {
		return nil, m.contextErr
	}
	return m.chatContext, nil
}

func (m *fakeMemory) SaveNarrativeSnapshot(ctx context.Context, eventUID, narrative string) (string, error) {
	if m.snapshotErr != nil {
		return "", m.snapshotErr
	}
	id := m.snapshotID("snap_narrative")
	m.narratives[id] = narrative
	return id, nil
}

func (m *fakeMemory) SaveAnalystSnapshot(ctx context.Context, narrativeID, analysis, intent string, tasks []string) (string, error) {
	if m.snapshotErr != nil {
		return "", m.snapshotErr
	}
	id := m.snapshotID("snap_analyst")
	m.analyses[id] = intent
	return id, nil
}

func (m *fakeMemory) SaveCoordinatorSnapshot(ctx context.Context, analystID, contextSummary string, tasksExecuted []string) (string, error) {
	if m.snapshotErr != nil {
		return "", m.snapshotErr
	}
	id := m.snapshotID("snap_coord")
	m.coords[id] = contextSummary
	return id, nil
}

func (m *fakeMemory) TodayAnalystSnapshots(ctx context.Context) ([]memory.AnalystSnapshot, error) {
	return m.prevToday, nil
}

func (m *fakeMemory) ActiveTopics(ctx context.Context) ([]memory.Topic, error) {
	return m.topics, nil
}

func (m *fakeMemory) EntityTypes(ctx context.Context) ([]string, error) {
	return m.entityTypes, nil
}

func (m *fakeMemory) RecentThoughts(ctx context.Context, limit int) ([]string, error) {
	return m.thoughts, nil
}

func (m *fakeMemory) WeeklySummaries(ctx context.Context, limit int) ([]string, error) {
	return m.summaries, nil
}

func (m *fakeMemory) SaveThinkerLog(ctx context.Context, prompt, response, model string) error {
	m.thinkerLogs++
	return nil
}

func (m *fakeMemory) SaveSemanticEnrichment(ctx context.Context, msgUID string, topics []string, entities []memory.Entity) error {
	m.enrichments = append(m.enrichments, savedEnrichment{msgUID, topics, entities})
	return nil
}

// fakeGenerator replays canned responses in call order.
type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
	lastFast  bool
}

func (g *fakeGenerator) Generate(ctx context.Context, history []llm.Message, systemPrompt string, useFast bool) (*llm.Result, error) {
	i := g.calls
	g.calls++
	g.lastFast = useFast
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	content := ""
	if i < len(g.responses) {
		content = g.responses[i]
	}
	return &llm.Result{Content: content, ModelName: "fake-model", TokenUsage: 42}, nil
}

// fakeAssembler returns static prompts so stage tests stay independent of
// the graph-backed assembler.
type fakeAssembler struct{}

func (fakeAssembler) BuildNarrativePrompt(ctx context.Context, currentMessage string, history []memory.ChatMessage, topics []memory.Topic, entityTypes, recentThoughts, weeklySummaries []string) string {
	return "narrative prompt: " + currentMessage
}

func (fakeAssembler) BuildAnalystPrompt(ctx context.Context, narrative, originalText string, prevAnalyses []memory.AnalystSnapshot) string {
	return "analyst prompt: " + narrative
}

func (fakeAssembler) BuildResponderPrompt(ctx context.Context, retrievedContext string) string {
	return "responder prompt: " + retrievedContext
}

type fakeKnowledge struct {
	answer    string
	err       error
	questions []string
}

func (k *fakeKnowledge) QueryKnowledge(ctx context.Context, question string) (string, error) {
	k.questions = append(k.questions, question)
	if k.err != nil {
		return "", k.err
	}
	return k.answer, nil
}

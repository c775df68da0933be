// Package prompt assembles model-ready prompts from the knowledge graph's
// Role/Task/Protocol/Instruction/Rule nodes plus recent chat state. When the
// graph is empty or unreachable the assembler degrades to a static prompt so
// the pipeline keeps functioning.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agenthands/synapse/internal/driver"
	"github.com/agenthands/synapse/internal/memory"
)

type Assembler struct {
	driver driver.GraphDriver
}

func NewAssembler(d driver.GraphDriver) *Assembler {
	return &Assembler{driver: d}
}

type namedText struct {
	name string
	text string
}

func (a *Assembler) fetch(ctx context.Context, query, role, nameKey, textKey string) []namedText {
	res, err := a.driver.ExecuteQuery(ctx, query, map[string]any{"role": role})
	if err != nil {
		slog.Warn("prompt graph query failed", "role", role, "error", err)
		return nil
	}
	out := make([]namedText, 0, len(res.Records))
	for _, rec := range res.Records {
		var nt namedText
		if v, ok := rec.Get(nameKey); ok {
			nt.name, _ = v.(string)
		}
		if v, ok := rec.Get(textKey); ok {
			nt.text, _ = v.(string)
		}
		out = append(out, nt)
	}
	return out
}

// BuildSystemPrompt assembles the system prompt for a role by traversing
// Role -> Task -> Protocol -> Instruction -> Rule. Repeated rule text is
// emitted once. An empty traversal falls back to a minimal static prompt.
func (a *Assembler) BuildSystemPrompt(ctx context.Context, role string) string {
	roleInfo := a.fetch(ctx, driver.RoleInfoQuery, role, "name", "description")
	tasks := a.fetch(ctx, driver.RoleTasksQuery, role, "name", "description")
	instructions := a.fetch(ctx, driver.RoleInstructionsQuery, role, "name", "content")
	rules := a.fetch(ctx, driver.RoleRulesQuery, role, "name", "content")

	var parts []string

	if len(roleInfo) > 0 {
		parts = append(parts, fmt.Sprintf("# Role: %s", roleInfo[0].name))
		if roleInfo[0].text != "" {
			parts = append(parts, roleInfo[0].text+"\n")
		}
	}

	if len(tasks) > 0 {
		parts = append(parts, "## Tasks:")
		for _, t := range tasks {
			parts = append(parts, fmt.Sprintf("- **%s**: %s", t.name, t.text))
		}
		parts = append(parts, "")
	}

	if len(instructions) > 0 {
		parts = append(parts, "## Protocol:")
		for _, in := range instructions {
			parts = append(parts, fmt.Sprintf("### %s", in.name), in.text+"\n")
		}
	}

	if len(rules) > 0 {
		parts = append(parts, "## Rules:")
		seen := make(map[string]bool)
		for _, r := range rules {
			if seen[r.text] {
				continue
			}
			seen[r.text] = true
			parts = append(parts, fmt.Sprintf("- **%s**: %s", r.name, r.text))
		}
		parts = append(parts, "")
	}

	assembled := strings.Join(parts, "\n")
	if strings.TrimSpace(assembled) == "" {
		slog.Warn("empty prompt assembled from graph, using static fallback", "role", role)
		return fmt.Sprintf("You are the %s. Process the input accordingly.", role)
	}
	return assembled
}

// BuildNarrativePrompt prepares the Thinker's full prompt: assembled system
// context plus everything the stage knows about the moment.
func (a *Assembler) BuildNarrativePrompt(ctx context.Context, currentMessage string, history []memory.ChatMessage, topics []memory.Topic, entityTypes, recentThoughts, weeklySummaries []string) string {
	system := a.BuildSystemPrompt(ctx, "Thinker")

	var hist strings.Builder
	for _, m := range history {
		fmt.Fprintf(&hist, "[%s] %s: %s\n", m.Time, m.Author, m.Text)
	}

	topicsStr := "None"
	if len(topics) > 0 {
		var b strings.Builder
		for _, t := range topics {
			fmt.Fprintf(&b, "- %s: %s\n", t.Title, t.Description)
		}
		topicsStr = b.String()
	}

	entitiesStr := "None"
	if len(entityTypes) > 0 {
		entitiesStr = strings.Join(entityTypes, ", ")
	}

	thoughtsStr := "None"
	if len(recentThoughts) > 0 {
		var b strings.Builder
		for _, t := range recentThoughts {
			fmt.Fprintf(&b, "- %s\n", clip(t, 100))
		}
		thoughtsStr = b.String()
	}

	summariesStr := "None"
	if len(weeklySummaries) > 0 {
		var b strings.Builder
		for _, s := range weeklySummaries {
			fmt.Fprintf(&b, "- %s\n", clip(s, 200))
		}
		summariesStr = b.String()
	}

	user := fmt.Sprintf(`CONTEXT:
---
Searchable Entity Types: %s
---
Active Topics:
%s
---
Last 7 Days Summaries:
%s
---
Recent Thoughts (Do not repeat):
%s
---
Chat History:
%s
---

NEW MESSAGE:
%s

INSTRUCTION:
Analyze the "NEW MESSAGE" based on the Protocol.
Return ONLY VALID JSON.
`, entitiesStr, topicsStr, summariesStr, thoughtsStr, hist.String(), currentMessage)

	return system + "\n\n" + user
}

// BuildAnalystPrompt prepares the Analyst's prompt: narrative, original
// input, today's prior analyses, and the intent contract the model must obey.
func (a *Assembler) BuildAnalystPrompt(ctx context.Context, narrative, originalText string, prevAnalyses []memory.AnalystSnapshot) string {
	system := a.BuildSystemPrompt(ctx, "Analyst")

	prev := ""
	if len(prevAnalyses) > 0 {
		var b strings.Builder
		b.WriteString("\n\nPrevious Analyses Today:\n")
		for _, snap := range prevAnalyses {
			fmt.Fprintf(&b, "- [%s] %s\n", snap.Intent, clip(snap.Analysis, 100))
		}
		prev = b.String()
	}

	user := fmt.Sprintf(`Narrative: %s
Original Input: %s%s

Possible Intents:
- QUESTION (Needs information search)
- COMMAND (Needs action execution)
- CHAT (Casual conversation)
- IGNORE (Noise, irrelevant)

Output Format:
Provide a short reasoning, then a line "Intent: <one of QUESTION|COMMAND|CHAT|IGNORE>".
`, narrative, originalText, prev)

	return system + "\n\n---\n\n" + user
}

// BuildResponderPrompt prepares the final system prompt, appending any
// retrieved knowledge context.
func (a *Assembler) BuildResponderPrompt(ctx context.Context, retrievedContext string) string {
	system := a.BuildSystemPrompt(ctx, "Responder")
	if retrievedContext != "" {
		system += "\n\n[KNOWLEDGE BASE RESULTS]:\n" + retrievedContext
	}
	return system
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

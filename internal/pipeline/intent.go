package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Intent is the Analyst's classification of an event.
type Intent string

const (
	IntentQuestion Intent = "QUESTION"
	IntentCommand  Intent = "COMMAND"
	IntentChat     Intent = "CHAT"
	IntentIgnore   Intent = "IGNORE"
)

// Task is one abstract step of an Analyst plan.
type Task string

const (
	TaskSearch  Task = "SEARCH"
	TaskReply   Task = "REPLY"
	TaskExecute Task = "EXECUTE"
)

// ErrMalformedOutput marks an unparsable structured model response. The
// stage halts the event's progression; nothing is forwarded.
var ErrMalformedOutput = errors.New("malformed model output")

var intentMarker = regexp.MustCompile(`(?i)intent\s*[:=]\s*\[?\s*(QUESTION|COMMAND|CHAT|IGNORE)`)

// ParseIntent extracts the intent from the Analyst model's answer. It
// prefers an explicit "Intent: <NAME>" marker and otherwise scans for the
// enum tokens, IGNORE taking precedence over action intents. Output matching
// no enum token is malformed, never silently defaulted.
func ParseIntent(text string) (Intent, []Task, error) {
	if m := intentMarker.FindStringSubmatch(text); m != nil {
		intent := Intent(strings.ToUpper(m[1]))
		return intent, tasksFor(intent), nil
	}

	upper := strings.ToUpper(text)
	for _, intent := range []Intent{IntentIgnore, IntentCommand, IntentQuestion, IntentChat} {
		if strings.Contains(upper, string(intent)) {
			return intent, tasksFor(intent), nil
		}
	}
	// SEARCH without a named intent still signals an information need.
	if strings.Contains(upper, string(TaskSearch)) {
		return IntentQuestion, tasksFor(IntentQuestion), nil
	}

	return "", nil, fmt.Errorf("%w: no intent in %q", ErrMalformedOutput, clip(text, 80))
}

func tasksFor(intent Intent) []Task {
	switch intent {
	case IntentQuestion:
		return []Task{TaskSearch, TaskReply}
	case IntentCommand:
		return []Task{TaskExecute, TaskReply}
	case IntentChat:
		return []Task{TaskReply}
	default:
		return nil
	}
}

func hasTask(tasks []Task, want Task) bool {
	for _, t := range tasks {
		if t == want {
			return true
		}
	}
	return false
}

func taskStrings(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = string(t)
	}
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

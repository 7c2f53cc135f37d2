package transport

import (
	"strings"

	"affectd/internal/interaction"
)

// cueHints maps an interaction.Kind to the phrases that suggest it in raw
// inbound text. Transports that only see free text (Discord, WebSocket)
// run it through InferKind before handing an Event to the funnel; MQTT
// terminals that report structured kinds directly skip this.
var cueHints = []struct {
	kind  interaction.Kind
	hints []string
}{
	{interaction.NegativeMessage, []string{
		"hate", "stupid", "useless", "shut up", "worst", "terrible",
		"awful", "screwed up", "you broke", "annoying",
	}},
	{interaction.PositiveMessage, []string{
		"thank you", "thanks", "love you", "great job", "good job",
		"awesome", "amazing", "you're the best", "appreciate you",
		"well done", "nice work",
	}},
	{interaction.ErrorOccurred, []string{
		"panic:", "exception", "traceback", "stack trace", "failed to",
		"error:", "crashed", "nil pointer", "segfault",
	}},
	{interaction.SuccessfulHelp, []string{
		"that fixed it", "that worked", "all green", "tests pass",
		"solved it", "works now", "fixed the bug",
	}},
	{interaction.CodeUpdate, []string{
		"pushed a commit", "merged", "opened a pr", "deployed",
		"refactored", "git push",
	}},
	{interaction.UserRefusal, []string{
		"no thanks", "not now", "i don't want", "leave me alone",
		"stop asking", "i'd rather not",
	}},
}

// InferKind does a best-effort lexical classification of free text into one
// of the closed interaction kinds. It returns ok=false when nothing
// matches, signalling the caller to drop the event rather than force a
// guess onto the emotion core.
func InferKind(text string) (interaction.Kind, bool) {
	lower := strings.ToLower(text)
	best := interaction.Kind("")
	bestScore := 0
	for _, item := range cueHints {
		score := 0
		for _, h := range item.hints {
			if strings.Contains(lower, h) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = item.kind
		}
	}
	if bestScore == 0 {
		return "", false
	}
	return best, true
}

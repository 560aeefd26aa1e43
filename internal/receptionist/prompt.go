package receptionist

import (
	"fmt"
	"strings"
)

// personaInstructions frames every generation request. The receptionist
// never promises actions it cannot take and defers to a human for anything
// it cannot answer.
const personaInstructions = `You are a professional AI receptionist answering a phone call.
Provide a helpful, concise, and professional response. Keep your answer under 200 words
and be friendly but professional. If you cannot answer the specific question, politely
explain what information you'd need or suggest they hold for a human representative.
Your reply will be read aloud, so use plain spoken sentences with no lists or markup.`

// PromptContext carries everything the generation adapter needs for one
// turn. It is rebuilt fresh per turn; the only cross-turn memory is the
// single previous caller utterance threaded in by the orchestrator.
type PromptContext struct {
	PersonaInstructions string
	CallerUtterance     string
	PreviousUtterance   string
}

// UserText renders the caller-side portion of the prompt.
func (p PromptContext) UserText() string {
	var b strings.Builder
	if prev := strings.TrimSpace(p.PreviousUtterance); prev != "" {
		fmt.Fprintf(&b, "Earlier in this call the caller said: %q\n\n", prev)
	}
	fmt.Fprintf(&b, "The caller asked: %q", strings.TrimSpace(p.CallerUtterance))
	return b.String()
}

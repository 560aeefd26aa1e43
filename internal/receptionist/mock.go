package receptionist

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator is a local fallback generator used when no Gemini key is
// configured, and the default fake in tests.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) Generate(_ context.Context, prompt PromptContext) (string, error) {
	utterance := strings.TrimSpace(prompt.CallerUtterance)
	return fmt.Sprintf("You asked: %s. I'm a test receptionist without a language model configured, so please check back with a human agent.", utterance), nil
}

// MockTranscriber returns a fixed transcript regardless of the recording.
type MockTranscriber struct {
	Text string
}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{Text: "simulated caller speech"}
}

func (t *MockTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	return t.Text, nil
}

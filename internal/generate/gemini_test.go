package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/antoniostano/frontdesk/internal/receptionist"
)

func candidateBody(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":"` + text + `"}]}}]}`
}

func testPrompt() receptionist.PromptContext {
	return receptionist.PromptContext{
		PersonaInstructions: "You are a receptionist.",
		CallerUtterance:     "Are you open on Saturday?",
	}
}

func TestGenerateHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "models/gemini-2.0-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "You are a receptionist." {
			t.Errorf("systemInstruction = %+v", req.SystemInstruction)
		}
		if len(req.Contents) != 1 || !strings.Contains(req.Contents[0].Parts[0].Text, "open on Saturday") {
			t.Errorf("contents = %+v", req.Contents)
		}
		w.Write([]byte(candidateBody("Yes, nine to noon.")))
	}))
	defer srv.Close()

	c := NewGeminiClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	got, err := c.Generate(context.Background(), testPrompt())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Yes, nine to noon." {
		t.Fatalf("Generate() = %q", got)
	}
}

func TestGenerateRetriesOnceOn503(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(candidateBody("Second try worked.")))
	}))
	defer srv.Close()

	c := NewGeminiClient(Config{APIKey: "k", BaseURL: srv.URL})
	got, err := c.Generate(context.Background(), testPrompt())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Second try worked." {
		t.Fatalf("Generate() = %q", got)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("upstream calls = %d, want 2", n)
	}
}

func TestGenerateDoesNotRetryOn400(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewGeminiClient(Config{APIKey: "k", BaseURL: srv.URL})
	if _, err := c.Generate(context.Background(), testPrompt()); err == nil {
		t.Fatalf("Generate() error = nil, want failure")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("upstream calls = %d, want 1 (no retry on 400)", n)
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(Config{APIKey: "k", BaseURL: srv.URL})
	got, err := c.Generate(context.Background(), testPrompt())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "" {
		t.Fatalf("Generate() = %q, want empty", got)
	}
}

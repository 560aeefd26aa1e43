package twiml

import (
	"strings"
	"testing"

	"github.com/antoniostano/frontdesk/internal/receptionist"
)

func testBuilder() *Builder {
	return NewBuilder(Config{
		PublicBaseURL:        "https://frontdesk.example.com",
		Voice:                "Polly.Joanna",
		Language:             "en-US",
		RecordMaxSeconds:     30,
		RecordSilenceTimeout: 5,
	})
}

func TestRenderTurnContinueSaysAndRecords(t *testing.T) {
	b := testBuilder()
	doc := string(b.RenderTurn(receptionist.Turn{
		OutputText: "Hello, how can I help?",
		Action:     receptionist.ActionContinue,
		Seq:        3,
	}))

	if !strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("missing XML declaration: %q", doc)
	}
	for _, want := range []string{
		"<Say",
		"Hello, how can I help?",
		`voice="Polly.Joanna"`,
		`language="en-US"`,
		`action="https://frontdesk.example.com/voice/turn?seq=3"`,
		`method="POST"`,
		`maxLength="30"`,
		`timeout="5"`,
		`playBeep="true"`,
		`transcribe="true"`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q:\n%s", want, doc)
		}
	}
	if strings.Contains(doc, "<Hangup") {
		t.Fatalf("continue turn must not hang up:\n%s", doc)
	}
}

func TestRenderTurnRequestsProviderTranscription(t *testing.T) {
	b := testBuilder()
	doc := string(b.RenderTurn(receptionist.Turn{
		OutputText: "How can I help?",
		Action:     receptionist.ActionContinue,
	}))

	// Without this attribute the recording callback never receives a
	// provider transcript and every turn reads as silence.
	if !strings.Contains(doc, `transcribe="true"`) {
		t.Fatalf("record verb does not request transcription:\n%s", doc)
	}
}

func TestRenderTurnTerminateSaysAndHangsUp(t *testing.T) {
	b := testBuilder()
	doc := string(b.RenderTurn(receptionist.Turn{
		OutputText: "Goodbye!",
		Action:     receptionist.ActionTerminate,
	}))

	if !strings.Contains(doc, "Goodbye!") {
		t.Fatalf("farewell not spoken:\n%s", doc)
	}
	if !strings.Contains(doc, "<Hangup") {
		t.Fatalf("terminate turn must hang up:\n%s", doc)
	}
	if strings.Contains(doc, "<Record") {
		t.Fatalf("terminate turn must not record:\n%s", doc)
	}
}

func TestRenderTurnPrefersClipPlayback(t *testing.T) {
	b := testBuilder()
	doc := string(b.RenderTurn(receptionist.Turn{
		OutputText: "Hello there.",
		ClipURL:    "https://frontdesk.example.com/audio/abc123",
		Action:     receptionist.ActionContinue,
	}))

	if !strings.Contains(doc, "<Play>https://frontdesk.example.com/audio/abc123</Play>") {
		t.Fatalf("clip not played:\n%s", doc)
	}
	if strings.Contains(doc, "<Say") {
		t.Fatalf("clip turn must not also use Say:\n%s", doc)
	}
}

func TestRenderTurnEscapesSpeech(t *testing.T) {
	b := testBuilder()
	doc := string(b.RenderTurn(receptionist.Turn{
		OutputText: `Tom & Jerry's <office>`,
		Action:     receptionist.ActionTerminate,
	}))

	if !strings.Contains(doc, "Tom &amp; Jerry") || !strings.Contains(doc, "&lt;office&gt;") {
		t.Fatalf("speech not XML-escaped:\n%s", doc)
	}
}

func TestRenderTurnUnknownActionFallsBack(t *testing.T) {
	b := testBuilder()
	doc := string(b.RenderTurn(receptionist.Turn{
		OutputText: "anything",
		Action:     receptionist.Action("bogus"),
	}))

	if doc != apologyDocument {
		t.Fatalf("unknown action = %q, want apology document", doc)
	}
}

func TestRenderNoopHangsUpSilently(t *testing.T) {
	doc := string(testBuilder().RenderNoop())
	if strings.Contains(doc, "<Say") || strings.Contains(doc, "<Play") {
		t.Fatalf("noop must be silent:\n%s", doc)
	}
	if !strings.Contains(doc, "<Hangup") {
		t.Fatalf("noop must hang up:\n%s", doc)
	}
}

func TestNewBuilderDefaultsRecordingLimits(t *testing.T) {
	b := NewBuilder(Config{PublicBaseURL: "https://x.example.com"})
	doc := string(b.RenderTurn(receptionist.Turn{
		OutputText: "hi",
		Action:     receptionist.ActionContinue,
	}))
	if !strings.Contains(doc, `maxLength="30"`) || !strings.Contains(doc, `timeout="5"`) {
		t.Fatalf("recording defaults not applied:\n%s", doc)
	}
}

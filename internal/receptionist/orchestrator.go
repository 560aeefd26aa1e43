package receptionist

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/antoniostano/frontdesk/internal/callstore"
	"github.com/antoniostano/frontdesk/internal/observability"
	"github.com/antoniostano/frontdesk/internal/policy"
)

// Action is what the telephony layer should do after speaking the reply.
type Action string

const (
	ActionContinue  Action = "continue"
	ActionTerminate Action = "terminate"
)

// Turn is one speak/record exchange decided by the orchestrator.
type Turn struct {
	InputText  string
	OutputText string
	Action     Action
	// Seq is the turn sequence the next recording callback must present.
	Seq int
	// ClipURL is set when synthesis produced playable audio; empty means
	// the instruction builder should use the provider's native voice.
	ClipURL string
}

const (
	greetingText = "Hello! You've reached our AI receptionist. " +
		"I'm here to help you with any questions you may have. " +
		"Please speak your question after the beep, and I'll do my best to assist you."
	repromptText = "I didn't catch that, could you repeat?"
	fallbackText = "I'm having trouble processing that right now, " +
		"please try again or hold for a human agent."
	closingText = "Thanks for calling, and have a great day. Goodbye!"

	maxSpeechChars = 600
)

var (
	// ErrDuplicateCallback means the provider redelivered a webhook for a
	// turn that already ran; the boundary answers with a silent hangup.
	ErrDuplicateCallback = errors.New("duplicate or stale callback")
	// ErrCallEnded means the call is unknown or already over.
	ErrCallEnded = errors.New("call already ended")
)

// Generator produces a spoken reply for a prompt context.
type Generator interface {
	Generate(ctx context.Context, prompt PromptContext) (string, error)
}

// Transcriber converts a recorded audio reference to text.
type Transcriber interface {
	Transcribe(ctx context.Context, recordingURL string) (string, error)
}

// Synthesizer renders reply text to a cached audio clip and returns its ID.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Orchestrator drives one call turn at a time: guard the callback, obtain
// the utterance, decide the reply, persist the transition. All adapters are
// injected; failures degrade to spoken fallbacks, never to a dropped call.
type Orchestrator struct {
	store       callstore.Store
	generator   Generator
	transcriber Transcriber
	synthesizer Synthesizer
	metrics     *observability.Metrics
	maxTurns    int
	audioBase   string
}

func NewOrchestrator(
	store callstore.Store,
	generator Generator,
	transcriber Transcriber,
	synthesizer Synthesizer,
	metrics *observability.Metrics,
	maxTurns int,
	audioBaseURL string,
) *Orchestrator {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Orchestrator{
		store:       store,
		generator:   generator,
		transcriber: transcriber,
		synthesizer: synthesizer,
		metrics:     metrics,
		maxTurns:    maxTurns,
		audioBase:   strings.TrimRight(audioBaseURL, "/"),
	}
}

// HandleCallStart registers the call and returns the greeting turn. A
// retried call-start webhook gets the same greeting; a start for an ended
// call gets ErrCallEnded.
func (o *Orchestrator) HandleCallStart(ctx context.Context, callID string) (Turn, error) {
	call, err := o.store.Create(ctx, callID)
	if err != nil {
		return Turn{}, err
	}
	if call.Status != callstore.StatusActive {
		return Turn{}, ErrCallEnded
	}
	o.metrics.CallEvents.WithLabelValues("started").Inc()
	o.observeActiveCalls(ctx)

	turn := Turn{
		OutputText: greetingText,
		Action:     ActionContinue,
		Seq:        call.TurnCount,
	}
	o.attachClip(ctx, &turn)
	return turn, nil
}

// HandleRecording processes a recording-complete callback end to end:
// idempotency guard, transcription, reply decision, state transition.
// seq must match the sequence embedded in the instruction that requested
// the recording.
func (o *Orchestrator) HandleRecording(ctx context.Context, callID string, seq int, recordingURL, providerTranscript string) (Turn, error) {
	started := time.Now()

	call, err := o.store.BeginTurn(ctx, callID, seq)
	switch {
	case errors.Is(err, callstore.ErrStaleTurn):
		o.metrics.CallEvents.WithLabelValues("duplicate_callback").Inc()
		return Turn{}, ErrDuplicateCallback
	case errors.Is(err, callstore.ErrEnded), errors.Is(err, callstore.ErrNotFound):
		return Turn{}, ErrCallEnded
	case err != nil:
		return Turn{}, err
	}

	utterance := o.resolveUtterance(ctx, callID, recordingURL, providerTranscript)
	turn := o.HandleUtterance(ctx, call, utterance)

	redacted, _ := policy.RedactPII(utterance)
	ended := turn.Action == ActionTerminate
	if err := o.store.CompleteTurn(ctx, callID, redacted, ended); err != nil {
		log.Printf("call %s: complete turn failed: %v", callID, err)
	}
	if ended {
		o.metrics.CallEvents.WithLabelValues("ended_max_turns").Inc()
		o.observeActiveCalls(ctx)
	}

	o.attachClip(ctx, &turn)
	o.metrics.ObserveTurnLatency(time.Since(started))
	return turn, nil
}

// HandleUtterance decides the reply for one already-guarded turn. The call
// snapshot has its turn count advanced by BeginTurn; persistence of the
// utterance and terminal status stays with the caller.
func (o *Orchestrator) HandleUtterance(ctx context.Context, call *callstore.Call, utterance string) Turn {
	turn := Turn{
		InputText: utterance,
		Action:    ActionContinue,
		Seq:       call.TurnCount,
	}

	if strings.TrimSpace(utterance) == "" {
		// Silence or failed transcription: re-prompt without spending a
		// generation call.
		o.metrics.CallEvents.WithLabelValues("silent_turn").Inc()
		turn.OutputText = repromptText
		return turn
	}

	prompt := PromptContext{
		PersonaInstructions: personaInstructions,
		CallerUtterance:     utterance,
		PreviousUtterance:   call.LastUtterance,
	}

	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("call %s: generation failed: %v", call.CallID, err)
		o.metrics.AdapterErrors.WithLabelValues("generate", "request_failed").Inc()
		turn.OutputText = fallbackText
		return turn
	}

	text = TrimForSpeech(text, maxSpeechChars)
	if text == "" {
		o.metrics.AdapterErrors.WithLabelValues("generate", "empty_reply").Inc()
		turn.OutputText = fallbackText
		return turn
	}

	if call.TurnCount >= o.maxTurns {
		turn.OutputText = text + " " + closingText
		turn.Action = ActionTerminate
		return turn
	}

	turn.OutputText = text
	return turn
}

// EndCall marks a call over in response to a terminal status webhook.
// Unknown call IDs are fine; providers report statuses for calls that
// never produced a turn.
func (o *Orchestrator) EndCall(ctx context.Context, callID string) {
	if _, err := o.store.End(ctx, callID); err != nil {
		if !errors.Is(err, callstore.ErrNotFound) {
			log.Printf("call %s: end failed: %v", callID, err)
		}
		return
	}
	o.metrics.CallEvents.WithLabelValues("ended_hangup").Inc()
	o.observeActiveCalls(ctx)
}

func (o *Orchestrator) resolveUtterance(ctx context.Context, callID, recordingURL, providerTranscript string) string {
	if text := strings.TrimSpace(providerTranscript); text != "" {
		return text
	}
	if strings.TrimSpace(recordingURL) == "" || o.transcriber == nil {
		return ""
	}
	text, err := o.transcriber.Transcribe(ctx, recordingURL)
	if err != nil {
		log.Printf("call %s: transcription failed: %v", callID, err)
		o.metrics.AdapterErrors.WithLabelValues("transcribe", "request_failed").Inc()
		return ""
	}
	return strings.TrimSpace(text)
}

// attachClip tries speech synthesis for the reply. Synthesis is best
// effort: on any failure the turn keeps an empty ClipURL and the provider
// speaks the text natively.
func (o *Orchestrator) attachClip(ctx context.Context, turn *Turn) {
	if o.synthesizer == nil || o.audioBase == "" {
		return
	}
	clipID, err := o.synthesizer.Synthesize(ctx, turn.OutputText)
	if err != nil {
		log.Printf("synthesis failed, falling back to native voice: %v", err)
		o.metrics.AdapterErrors.WithLabelValues("synthesize", "request_failed").Inc()
		return
	}
	turn.ClipURL = o.audioBase + "/audio/" + clipID
}

func (o *Orchestrator) observeActiveCalls(ctx context.Context) {
	if count, err := o.store.ActiveCount(ctx); err == nil {
		o.metrics.ActiveCalls.Set(float64(count))
	}
}

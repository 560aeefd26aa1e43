package twiml

import (
	"fmt"
	"log"

	"github.com/antoniostano/frontdesk/internal/receptionist"
)

// Config fixes the rendering choices shared by every instruction.
type Config struct {
	// PublicBaseURL is the externally reachable base for webhook callbacks.
	PublicBaseURL string
	// Voice and Language select the provider's native text-to-speech.
	Voice    string
	Language string
	// RecordMaxSeconds bounds one caller recording.
	RecordMaxSeconds int
	// RecordSilenceTimeout is how many seconds of silence end a recording.
	RecordSilenceTimeout int
}

// Builder renders Turns into TwiML. It never fails outward: any internal
// rendering problem degrades to a prebuilt apology-and-hangup document so
// the telephony provider always receives a valid instruction.
type Builder struct {
	cfg Config
}

const apologyText = "I'm sorry, something went wrong on our end. Please call again later. Goodbye."

// apologyDocument is the last-resort instruction, kept as a literal so it
// cannot itself fail to render.
const apologyDocument = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<Response><Say>` + apologyText + `</Say><Hangup></Hangup></Response>`

// noopDocument answers duplicate or late callbacks without speaking.
const noopDocument = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<Response><Hangup></Hangup></Response>`

func NewBuilder(cfg Config) *Builder {
	if cfg.RecordMaxSeconds <= 0 {
		cfg.RecordMaxSeconds = 30
	}
	if cfg.RecordSilenceTimeout <= 0 {
		cfg.RecordSilenceTimeout = 5
	}
	return &Builder{cfg: cfg}
}

// RenderTurn produces the instruction for one decided turn: speak the
// reply (via clip playback when available, the native voice otherwise),
// then either record the next utterance or end the call.
func (b *Builder) RenderTurn(turn receptionist.Turn) []byte {
	resp := Response{}
	resp.Verbs = append(resp.Verbs, b.speakVerb(turn))

	switch turn.Action {
	case receptionist.ActionContinue:
		// Provider-side transcription feeds the TranscriptionText field the
		// recording callback prefers over calling the speech service itself.
		resp.Verbs = append(resp.Verbs, Record{
			Action:     fmt.Sprintf("%s/voice/turn?seq=%d", b.cfg.PublicBaseURL, turn.Seq),
			Method:     "POST",
			MaxLength:  b.cfg.RecordMaxSeconds,
			Timeout:    b.cfg.RecordSilenceTimeout,
			PlayBeep:   true,
			Transcribe: true,
		})
	case receptionist.ActionTerminate:
		resp.Verbs = append(resp.Verbs, Hangup{})
	default:
		log.Printf("twiml: unknown turn action %q, hanging up", turn.Action)
		return []byte(apologyDocument)
	}

	out, err := Marshal(resp)
	if err != nil {
		log.Printf("twiml: render failed: %v", err)
		return []byte(apologyDocument)
	}
	return out
}

// RenderNoop answers a callback that must not re-enter the state machine.
func (b *Builder) RenderNoop() []byte {
	return []byte(noopDocument)
}

// RenderApologyHangup is the spoken last resort for unrecoverable states.
func (b *Builder) RenderApologyHangup() []byte {
	return []byte(apologyDocument)
}

func (b *Builder) speakVerb(turn receptionist.Turn) any {
	if turn.ClipURL != "" {
		return Play{URL: turn.ClipURL}
	}
	return Say{Voice: b.cfg.Voice, Language: b.cfg.Language, Text: turn.OutputText}
}

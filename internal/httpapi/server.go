package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/frontdesk/internal/callstore"
	"github.com/antoniostano/frontdesk/internal/config"
	"github.com/antoniostano/frontdesk/internal/observability"
	"github.com/antoniostano/frontdesk/internal/receptionist"
	"github.com/antoniostano/frontdesk/internal/synthesize"
	"github.com/antoniostano/frontdesk/internal/twiml"
)

// terminalCallStatuses are the provider statuses that mean the call is over.
var terminalCallStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

type Server struct {
	cfg          config.Config
	store        callstore.Store
	orchestrator *receptionist.Orchestrator
	builder      *twiml.Builder
	clips        *synthesize.ClipCache
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
	static       http.Handler
}

func New(cfg config.Config, store callstore.Store, orchestrator *receptionist.Orchestrator, builder *twiml.Builder, clips *synthesize.ClipCache, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		builder:      builder,
		clips:        clips,
		metrics:      metrics,
		static:       newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/voice", s.handleCallStart)
	r.Post("/voice/turn", s.handleRecordingCallback)
	r.Post("/voice/status", s.handleCallStatus)
	r.Get("/audio/{id}", s.handleAudioClip)

	r.Get("/v1/console/ws", s.handleConsoleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReady probes the call store; a webhook the store cannot guard is a
// webhook the orchestrator must not receive.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if _, err := s.store.ActiveCount(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleCallStart answers the inbound-call webhook with the greeting and
// the first recording instruction. The provider only understands TwiML, so
// every outcome, including internal failure, is a 200 with a document.
func (s *Server) handleCallStart(w http.ResponseWriter, r *http.Request) {
	callID := formValue(r, "CallSid")
	if callID == "" {
		respondTwiML(w, s.builder.RenderApologyHangup())
		return
	}

	turn, err := s.orchestrator.HandleCallStart(r.Context(), callID)
	if err != nil {
		if errors.Is(err, receptionist.ErrCallEnded) {
			respondTwiML(w, s.builder.RenderNoop())
			return
		}
		respondTwiML(w, s.builder.RenderApologyHangup())
		return
	}
	respondTwiML(w, s.builder.RenderTurn(turn))
}

// handleRecordingCallback processes one recording-complete webhook. The
// turn sequence rides the action URL's query string; replays and callbacks
// for ended calls get a silent hangup instead of a second reply.
func (s *Server) handleRecordingCallback(w http.ResponseWriter, r *http.Request) {
	callID := formValue(r, "CallSid")
	seq, seqErr := strconv.Atoi(r.URL.Query().Get("seq"))
	if callID == "" || seqErr != nil {
		respondTwiML(w, s.builder.RenderApologyHangup())
		return
	}

	recordingURL := formValue(r, "RecordingUrl")
	providerTranscript := formValue(r, "TranscriptionText")

	turn, err := s.orchestrator.HandleRecording(r.Context(), callID, seq, recordingURL, providerTranscript)
	switch {
	case errors.Is(err, receptionist.ErrDuplicateCallback), errors.Is(err, receptionist.ErrCallEnded):
		respondTwiML(w, s.builder.RenderNoop())
		return
	case err != nil:
		respondTwiML(w, s.builder.RenderApologyHangup())
		return
	}
	respondTwiML(w, s.builder.RenderTurn(turn))
}

// handleCallStatus reacts to provider status webhooks. Only terminal
// statuses matter; everything else is acknowledged and ignored.
func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	callID := formValue(r, "CallSid")
	status := strings.ToLower(formValue(r, "CallStatus"))
	if callID != "" && terminalCallStatuses[status] {
		s.orchestrator.EndCall(r.Context(), callID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAudioClip serves a synthesized reply back to the provider's Play
// verb. Unknown or expired clips are 404; the builder only emits Play URLs
// for clips that existed moments earlier.
func (s *Server) handleAudioClip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.clips == nil {
		http.NotFound(w, r)
		return
	}
	clip, ok := s.clips.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", clip.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(clip.Data)
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

func respondTwiML(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

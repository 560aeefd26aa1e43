package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/frontdesk/internal/protocol"
	"github.com/antoniostano/frontdesk/internal/receptionist"
)

// handleConsoleWS drives a text-only simulated call over a websocket. The
// console goes through the same orchestrator path as the telephony webhook,
// so replies, turn counting, and termination behave exactly like a phone
// call. One connection holds at most one simulated call.
func (s *Server) handleConsoleWS(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.CallEvents.WithLabelValues("console_connected").Inc()
	defer s.metrics.CallEvents.WithLabelValues("console_disconnected").Inc()

	conn.SetReadLimit(64 << 10)

	ctx := r.Context()
	callID := ""
	nextSeq := 0

	writeJSON := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v) == nil
	}
	writeError := func(code, detail string) bool {
		return writeJSON(protocol.ErrorEvent{
			Type:   protocol.TypeErrorEvent,
			CallID: callID,
			Code:   code,
			Detail: detail,
		})
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			if !writeError("invalid_client_message", err.Error()) {
				break
			}
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ConsoleAsk:
			if callID == "" {
				callID = "web-" + uuid.NewString()
				greeting, err := s.orchestrator.HandleCallStart(ctx, callID)
				if err != nil {
					callID = ""
					if !writeError("call_start_failed", err.Error()) {
						return
					}
					continue
				}
				nextSeq = greeting.Seq
				if !writeJSON(protocol.ConsoleReply{
					Type:   protocol.TypeConsoleReply,
					CallID: callID,
					Text:   greeting.OutputText,
					Action: string(greeting.Action),
				}) {
					return
				}
			}

			turn, err := s.orchestrator.HandleRecording(ctx, callID, nextSeq, "", msg.Text)
			if err != nil {
				if errors.Is(err, receptionist.ErrCallEnded) {
					if !writeError("call_ended", "this call is over, reconnect to start another") {
						return
					}
					continue
				}
				if !writeError("turn_failed", err.Error()) {
					return
				}
				continue
			}
			nextSeq = turn.Seq
			if !writeJSON(protocol.ConsoleReply{
				Type:      protocol.TypeConsoleReply,
				CallID:    callID,
				Text:      turn.OutputText,
				Action:    string(turn.Action),
				TurnCount: turn.Seq,
			}) {
				return
			}

		case protocol.ConsoleEnd:
			s.orchestrator.EndCall(ctx, msg.CallID)
			if msg.CallID == callID {
				callID = ""
				nextSeq = 0
			}
		}
	}

	if callID != "" {
		s.orchestrator.EndCall(ctx, callID)
	}
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/roadsense/companiond/internal/brain"
	"github.com/roadsense/companiond/internal/capability"
	"github.com/roadsense/companiond/internal/config"
	"github.com/roadsense/companiond/internal/observability"
	"github.com/roadsense/companiond/internal/protocol"
	"github.com/roadsense/companiond/internal/session"
)

// Server exposes the session controller over HTTP and a websocket event
// stream.
type Server struct {
	cfg        config.Config
	controller *session.Controller
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, controller *session.Controller) *Server {
	return &Server{
		cfg:        cfg,
		controller: controller,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive the companion; a foreign
				// page must not be able to trigger connects or voice turns.
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

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/connection/scan", s.handleScan)
	r.Post("/v1/connection", s.handleConnect)
	r.Post("/v1/connection/cancel", s.handleCancelConnection)
	r.Get("/v1/connection", s.handleConnectionStatus)

	r.Post("/v1/voice/turn", s.handleVoiceTurn)
	r.Post("/v1/voice/listen", s.handleListen)
	r.Post("/v1/voice/cancel", s.handleCancelVoiceTurn)
	r.Get("/v1/voice", s.handleVoiceStatus)
	r.Get("/v1/voice/history", s.handleHistory)

	r.Get("/v1/devices", s.handleListDevices)
	r.Delete("/v1/devices/{id}", s.handleForgetDevice)

	r.Get("/v1/log", s.handleLog)
	r.Delete("/v1/log", s.handleClearLog)

	r.Get("/v1/events/ws", s.handleEventsWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"brain_provider": s.cfg.BrainProvider,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	desc, err := s.controller.Scan(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"device": desc})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var desc capability.DeviceDescriptor
	if err := decodeJSON(r, &desc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := s.controller.RequestConnection(r.Context(), desc)
	if sess == nil && err != nil {
		respondFailure(w, err)
		return
	}
	// A failed connection still yields the session snapshot; the failure is a
	// status string for the UI, not an HTTP error.
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCancelConnection(w http.ResponseWriter, _ *http.Request) {
	s.controller.CancelConnection()
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConnectionStatus(w http.ResponseWriter, _ *http.Request) {
	sess := s.controller.ConnectionSession()
	if sess == nil {
		respondJSON(w, http.StatusOK, map[string]string{"state": string(session.StateIdle)})
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

type voiceTurnRequest struct {
	Text string `json:"text"`
}

type voiceTurnResponse struct {
	Session *session.Session `json:"session"`
	Reply   string           `json:"reply,omitempty"`
}

func (s *Server) handleVoiceTurn(w http.ResponseWriter, r *http.Request) {
	var req voiceTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := s.controller.RequestVoiceTurn(r.Context(), req.Text)
	if sess == nil && err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, voiceTurnResponse{Session: sess, Reply: s.lastAssistantReply(r)})
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	sess, err := s.controller.Listen(r.Context())
	if sess == nil && err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, voiceTurnResponse{Session: sess, Reply: s.lastAssistantReply(r)})
}

func (s *Server) lastAssistantReply(r *http.Request) string {
	history, err := s.controller.History(r.Context())
	if err != nil {
		return ""
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == brain.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

func (s *Server) handleCancelVoiceTurn(w http.ResponseWriter, _ *http.Request) {
	s.controller.CancelVoiceTurn()
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVoiceStatus(w http.ResponseWriter, _ *http.Request) {
	sess := s.controller.VoiceSession()
	payload := map[string]any{"speaking": s.controller.Speaking()}
	if sess == nil {
		payload["state"] = string(session.StateIdle)
	} else {
		payload["session"] = sess
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.controller.History(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": history})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	list, err := s.controller.RememberedDevices(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "devices_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"devices": list})
}

func (s *Server) handleForgetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_device_id", "missing device id")
		return
	}
	if err := s.controller.ForgetDevice(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "forget_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLog(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"entries": s.controller.Log()})
}

func (s *Server) handleClearLog(w http.ResponseWriter, _ *http.Request) {
	s.controller.ClearLog()
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, unsubscribe := s.controller.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

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
			continue
		}
		control, ok := parsed.(protocol.ClientControl)
		if !ok {
			continue
		}
		switch control.Action {
		case protocol.ActionCancelConnection:
			s.controller.CancelConnection()
		case protocol.ActionCancelVoiceTurn:
			s.controller.CancelVoiceTurn()
		case protocol.ActionStopSpeaking:
			s.controller.StopSpeaking()
		case protocol.ActionClearLog:
			s.controller.ClearLog()
		}
	}

	unsubscribe()
	<-done
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondFailure maps taxonomy failures that reject a request outright (no
// session was created) to HTTP statuses.
func respondFailure(w http.ResponseWriter, err error) {
	f, ok := capability.AsFailure(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	status := http.StatusInternalServerError
	switch f.Code {
	case capability.CodeAlreadyInProgress:
		status = http.StatusConflict
	case capability.CodeAborted, capability.CodeUserCancelled:
		status = http.StatusBadRequest
	case capability.CodeNotSupported:
		status = http.StatusNotImplemented
	}
	respondError(w, status, string(f.Code), f.Message())
}

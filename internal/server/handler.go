// Package server exposes a conversation over HTTP and pushes state changes
// to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/longkey1/chatline/internal/chatline"
	"github.com/longkey1/chatline/internal/chatline/conversation"
	"github.com/longkey1/chatline/internal/chatline/panel"
	"github.com/longkey1/chatline/internal/observability"
	"github.com/rs/zerolog"
)

// Server serves one conversation
type Server struct {
	coord    *conversation.Coordinator
	panels   map[string]*panel.Panel
	logger   zerolog.Logger
	timeout  time.Duration
	upgrader websocket.Upgrader
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRequestTimeout bounds each text exchange; zero means no bound
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.timeout = timeout }
}

// NewServer returns the HTTP handler for coord
func NewServer(coord *conversation.Coordinator, panels map[string]*panel.Panel, opts ...Option) http.Handler {
	s := &Server{
		coord:    coord,
		panels:   panels,
		logger:   zerolog.Nop(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /chat/start", s.handleStartChat)
	mux.HandleFunc("POST /chat/new", s.handleNewChat)
	mux.HandleFunc("POST /messages", s.handleSendMessage)
	mux.HandleFunc("POST /home", s.handleHome)
	mux.HandleFunc("POST /navigate", s.handleNavigate)
	mux.HandleFunc("POST /voice/start", s.handleVoiceStart)
	mux.HandleFunc("POST /voice/stop", s.handleVoiceStop)
	mux.HandleFunc("GET /panels/{name}", s.handlePanel)
	mux.HandleFunc("GET /events", s.handleEvents)

	return chainMiddlewares(mux, withLogging(s.logger), withCORS)
}

type messageRequest struct {
	Message string `json:"message"`
}

type navigateRequest struct {
	Target string `json:"target"`
}

type sendMessageResponse struct {
	Outcome conversation.SendOutcome `json:"outcome"`
	State   conversation.Snapshot    `json:"state"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Snapshot())
}

func (s *Server) handleStartChat(w http.ResponseWriter, r *http.Request) {
	// An empty body, chunked or not, starts the chat without a first message.
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := s.exchangeContext(r)
	defer cancel()
	s.coord.StartChat(ctx, req.Message)
	writeJSON(w, http.StatusOK, s.coord.Snapshot())
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := s.exchangeContext(r)
	defer cancel()
	outcome := s.coord.SendMessage(ctx, req.Message)
	writeJSON(w, http.StatusOK, sendMessageResponse{Outcome: outcome, State: s.coord.Snapshot()})
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	s.coord.StartNewChat()
	writeJSON(w, http.StatusOK, s.coord.Snapshot())
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.coord.GoHome()
	writeJSON(w, http.StatusOK, s.coord.Snapshot())
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	mode, err := chatline.ParseMode(req.Target)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.coord.Navigate(mode); err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Snapshot())
}

func (s *Server) handleVoiceStart(w http.ResponseWriter, r *http.Request) {
	s.coord.StartVoice(r.Context())
	writeJSON(w, http.StatusAccepted, s.coord.Snapshot())
}

func (s *Server) handleVoiceStop(w http.ResponseWriter, r *http.Request) {
	s.coord.StopVoice()
	writeJSON(w, http.StatusAccepted, s.coord.Snapshot())
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panels[r.PathValue("name")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "panel not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// exchangeContext detaches the exchange from the client connection, so a
// client that disconnects mid-send does not turn the reply into an apology.
func (s *Server) exchangeContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(r.Context())
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Server) requestLogger(r *http.Request) zerolog.Logger {
	return observability.LoggerFromContext(r.Context(), s.logger)
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent)
}

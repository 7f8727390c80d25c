// Package http exposes the orchestrator over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/session"
)

// Orchestrator is the slice of the parley facade the server needs.
type Orchestrator interface {
	HandleTurn(ctx context.Context, req parley.TurnRequest) (*parley.TurnResponse, error)
	Classify(ctx context.Context, message string, state *domain.ConversationState) domain.ClassificationResult
	Sessions() *session.Manager
}

// Server routes the JSON API onto an Orchestrator.
type Server struct {
	orchestrator Orchestrator
	logger       *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler builds the HTTP handler:
//
//	POST   /v1/turns                  run one conversation turn
//	POST   /v1/classify               classify a message without a turn
//	GET    /v1/conversations          list known conversation ids
//	GET    /v1/conversations/{id}     fetch one conversation's state
//	DELETE /v1/conversations/{id}     forget a conversation
//	GET    /healthz                   liveness probe
//	GET    /metrics                   Prometheus metrics
func NewHandler(o Orchestrator, opts ...Option) http.Handler {
	server := &Server{
		orchestrator: o,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/turns", server.handleTurn)
	r.Post("/v1/classify", server.handleClassify)
	r.Get("/v1/conversations", server.handleListConversations)
	r.Get("/v1/conversations/{id}", server.handleGetConversation)
	r.Delete("/v1/conversations/{id}", server.handleDeleteConversation)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return enableCORS(r)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req parley.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("turn: invalid request body", "err", err)
		return
	}
	if req.ConversationID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "conversation_id and message are required")
		return
	}

	resp, err := s.orchestrator.HandleTurn(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "turn failed")
		s.logger.Error("turn failed", "conversation_id", req.ConversationID, "err", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type classifyRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	var state *domain.ConversationState
	if req.ConversationID != "" {
		loaded, err := s.orchestrator.Sessions().Load(r.Context(), req.ConversationID)
		if err == nil {
			state = loaded
		}
	}

	result := s.orchestrator.Classify(r.Context(), req.Message, state)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.orchestrator.Sessions().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		s.logger.Error("list conversations failed", "err", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": ids})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.orchestrator.Sessions().Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		s.logger.Error("load conversation failed", "conversation_id", id, "err", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orchestrator.Sessions().Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		s.logger.Error("delete conversation failed", "conversation_id", id, "err", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

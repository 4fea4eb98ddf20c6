package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"mindcast/internal/canon"
	"mindcast/internal/lifecycle"
	"mindcast/internal/logging"
	"mindcast/internal/remaster"
	"mindcast/internal/router"
	"mindcast/internal/services"
	"mindcast/internal/store"
	"mindcast/internal/sweep"
)

const maxRequestBody = 1 << 20

// Deps collects the subsystems the HTTP surface exposes.
type Deps struct {
	Resolver *router.Resolver
	Manager  *lifecycle.Manager
	Sweeper  *sweep.Sweeper
	Worker   *remaster.Worker
	Store    *store.Store

	// Status reports the daemon's runtime state for GET /api/status.
	Status func(context.Context) StatusResponse
}

// Server is the bearer-token HTTP admin and routing surface.
type Server struct {
	bind   string
	token  string
	deps   Deps
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer constructs the HTTP server. An empty bind disables it and
// returns nil.
func NewServer(bind, token string, deps Deps, logger *slog.Logger) *Server {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil
	}
	srv := &Server{
		bind:   bind,
		token:  strings.TrimSpace(token),
		deps:   deps,
		logger: logging.WithComponent(logger, "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/resolve", srv.auth(srv.handleResolve))
	mux.HandleFunc("/api/usage", srv.auth(srv.handleUsage))
	mux.HandleFunc("/api/sweep", srv.auth(srv.handleSweep))
	mux.HandleFunc("/api/remaster", srv.auth(srv.handleRemaster))
	mux.HandleFunc("/api/stats", srv.auth(srv.handleStats))
	mux.HandleFunc("/api/topics/", srv.auth(srv.handleTopic))
	mux.HandleFunc("/api/status", srv.auth(srv.handleStatus))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Start begins serving and shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

// Addr returns the bound listen address, useful when binding port 0.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// auth validates the bearer token. An empty configured token disables
// authentication.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != s.token {
			s.writeErrorDetail(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	var req ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	requestType, ok := canon.ParseRequestType(req.Type)
	if !ok {
		s.writeErrorDetail(w, http.StatusBadRequest, "validation",
			fmt.Sprintf("unknown request type %q", req.Type))
		return
	}

	resolution, err := s.deps.Resolver.Resolve(r.Context(), router.ResolveInput{
		Topic:  req.Topic,
		UserID: req.UserID,
		Type:   requestType,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResolveResponse{
		Topic:    FromTopic(resolution.Topic),
		CacheHit: resolution.CacheHit,
		Episode:  FromEpisode(resolution.Episode),
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	var req UsageRequest
	if !s.decode(w, r, &req) {
		return
	}
	requestType, ok := canon.ParseRequestType(req.Type)
	if !ok {
		s.writeErrorDetail(w, http.StatusBadRequest, "validation",
			fmt.Sprintf("unknown request type %q", req.Type))
		return
	}

	stored, err := s.deps.Resolver.RecordUsage(r.Context(), router.UsageInput{
		Topic:         req.Topic,
		UserID:        req.UserID,
		Type:          requestType,
		CacheHit:      req.CacheHit,
		CompletionPct: req.CompletionPct,
		Saved:         req.Saved,
		Replayed:      req.Replayed,
		CostCents:     req.CostCents,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, UsageResponse{RequestID: stored.ID})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	result, err := s.deps.Sweeper.Run(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemaster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	result, err := s.deps.Worker.Run(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	stats, err := s.deps.Store.Stats(r.Context(), 10)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromStats(stats))
}

// handleTopic serves GET /api/topics/{key} and POST /api/topics/{key}/demote.
func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/topics/")
	if rest == "" {
		s.writeErrorDetail(w, http.StatusNotFound, "not_found", "topic key required")
		return
	}

	if key, ok := strings.CutSuffix(rest, "/demote"); ok {
		if r.Method != http.MethodPost {
			s.methodNotAllowed(w)
			return
		}
		s.demoteTopic(w, r, key)
		return
	}
	if strings.Contains(rest, "/") {
		s.writeErrorDetail(w, http.StatusNotFound, "not_found", "unknown topic path")
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	detail, err := s.deps.Manager.Detail(r.Context(), rest)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromDetail(detail))
}

func (s *Server) demoteTopic(w http.ResponseWriter, r *http.Request, key string) {
	var req DemoteRequest
	if r.ContentLength != 0 {
		if !s.decode(w, r, &req) {
			return
		}
	}
	target := canon.TopicStatus("")
	if strings.TrimSpace(req.Target) != "" {
		parsed, ok := canon.ParseTopicStatus(req.Target)
		if !ok {
			s.writeErrorDetail(w, http.StatusBadRequest, "validation",
				fmt.Sprintf("unknown target status %q", req.Target))
			return
		}
		target = parsed
	}

	topic, result, err := s.deps.Manager.Demote(r.Context(), key, target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, DemoteResponse{
		Topic:          FromTopic(topic),
		PreviousStatus: string(result.PreviousStatus),
		NewStatus:      string(result.NewStatus),
		CancelledJobs:  result.CancelledJobs,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	if s.deps.Status == nil {
		s.writeJSON(w, http.StatusOK, StatusResponse{Running: true})
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Status(r.Context()))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(target); err != nil {
		s.writeErrorDetail(w, http.StatusBadRequest, "validation", "invalid json body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	s.writeErrorDetail(w, http.StatusMethodNotAllowed, "validation", "method not allowed")
}

// writeError maps the service error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := services.Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "validation":
		status = http.StatusBadRequest
	case "not_found":
		status = http.StatusNotFound
	case "conflict":
		status = http.StatusConflict
	case "external":
		status = http.StatusBadGateway
	}
	s.writeErrorDetail(w, status, kind, err.Error())
}

func (s *Server) writeErrorDetail(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: message}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response failed", logging.Error(err))
	}
}

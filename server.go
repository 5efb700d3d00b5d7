package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"i4.energy/across/expresslink/expresslink"
)

// Server handles incoming HTTP requests for interacting with the
// configured ExpressLink module
type Server struct {
	Logger *slog.Logger
	Link   *expresslink.ExpressLink
	// Gatherer is exposed on /metrics when set.
	Gatherer prometheus.Gatherer

	once   sync.Once
	router http.Handler
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(s.routes)
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/command", s.handleCommand)
	r.Get("/event", s.handleEvent)
	r.Get("/config/{key}", s.handleGetConfig)
	r.Put("/config/{key}", s.handleSetConfig)
	r.Get("/status", s.handleStatus)
	r.Get("/info", s.handleInfo)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var confErr *expresslink.ConfigError
	switch {
	case errors.Is(err, expresslink.ErrEmptyCommand),
		errors.Is(err, expresslink.ErrUnknownTopic),
		expresslink.IsUnsupported(err):
		return http.StatusBadRequest
	case errors.Is(err, expresslink.ErrNotInitialized),
		errors.Is(err, expresslink.ErrAlreadyClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, expresslink.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &confErr) && confErr.Code != 0:
		return http.StatusUnprocessableEntity
	case errors.As(err, &confErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type commandResponse struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Code    int    `json:"code,omitempty"`
	Timeout bool   `json:"timeout,omitempty"`
}

// handleCommand sends one raw command and returns the module's response
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	type CommandRequest struct {
		Command string `json:"command"`
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.Link.Execute(r.Context(), req.Command)
	if err != nil {
		s.Logger.Error("Failed to execute command", "error", err, "command", req.Command)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.sendJSON(w, commandResponse{
		Type:    resp.Type.String(),
		Payload: resp.Payload,
		Code:    resp.Code,
		Timeout: resp.Timeout,
	})
}

// handleEvent takes the next event from the module's queue
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.Link.PollEvent(r.Context())
	if err != nil {
		s.Logger.Error("Failed to poll event", "error", err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}
	if ev == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.sendJSON(w, struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		Parameter int    `json:"parameter"`
		Mnemonic  string `json:"mnemonic"`
		Detail    string `json:"detail,omitempty"`
	}{int(ev.ID), ev.ID.String(), ev.Parameter, ev.Mnemonic, ev.Detail})
}

type configValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := s.Link.Conf().Get(r.Context(), key)
	if err != nil {
		s.Logger.Warn("Failed to read configuration", "error", err, "key", key)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}
	s.sendJSON(w, configValue{Key: key, Value: value})
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req configValue
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Link.Conf().Set(r.Context(), key, req.Value); err != nil {
		s.Logger.Warn("Failed to write configuration", "error", err, "key", key)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Configuration updated", "key", key)
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus reports the channel state and, when ready, the connection
// status from the module
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type StatusResponse struct {
		State     string `json:"state"`
		Ready     bool   `json:"ready"`
		Connected *bool  `json:"connected,omitempty"`
		Onboarded *bool  `json:"onboarded,omitempty"`
		Detail    string `json:"detail,omitempty"`
	}

	resp := StatusResponse{State: s.Link.State().String(), Ready: s.Link.Ready()}
	if resp.Ready {
		status, err := s.Link.ConnectionStatus(r.Context())
		if err != nil {
			s.Logger.Warn("Failed to query connection status", "error", err)
		} else {
			resp.Connected = &status.Connected
			resp.Onboarded = &status.Onboarded
			resp.Detail = status.Detail
		}
	}
	s.sendJSON(w, resp)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.Link.Info(r.Context())
	if err != nil && len(info) == 0 {
		s.Logger.Error("Failed to read module information", "error", err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}
	if err != nil {
		s.Logger.Warn("Module information incomplete", "error", err)
	}
	s.sendJSON(w, info)
}

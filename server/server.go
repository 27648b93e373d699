// Package server exposes the thread operations over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forkline-ai/forkline"
)

// Options configures the server.
type Options struct {
	Threads *forkline.Threads
	Logger  *slog.Logger

	// Registry receives the server's metrics. A nil registry disables the
	// /metrics endpoint.
	Registry *prometheus.Registry
}

// Server handles the HTTP API.
type Server struct {
	threads *forkline.Threads
	logger  *slog.Logger
	router  chi.Router

	turnsTotal   *prometheus.CounterVec
	turnDuration prometheus.Histogram
}

// New creates the server and mounts its routes.
func New(opts Options) *Server {
	s := &Server{
		threads: opts.Threads,
		logger:  opts.Logger,
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forkline_turns_total",
				Help: "Total number of turns by outcome",
			},
			[]string{"outcome"},
		),
		turnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "forkline_turn_duration_seconds",
				Help: "Duration of turns",
			},
		),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if opts.Registry != nil {
		opts.Registry.MustRegister(s.turnsTotal, s.turnDuration)
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/threads", func(r chi.Router) {
		r.Post("/", s.handleNewThread)
		r.Route("/{threadID}", func(r chi.Router) {
			r.Post("/turns", s.handleTurn)
			r.Get("/history", s.handleHistory)
			r.Post("/resume/{checkpointID}", s.handleResume)
			r.Post("/branch", s.handleBranch)
			r.Delete("/", s.handleDelete)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// TurnRequest is the body of turn, resume, and branch calls.
type TurnRequest struct {
	Message       string         `json:"message"`
	UserID        string         `json:"user_id,omitempty"`
	RequestedStep string         `json:"requested_step,omitempty"`
	Overrides     map[string]any `json:"overrides,omitempty"` // branch only
}

// TurnResponse reports the outcome of a turn.
type TurnResponse struct {
	ThreadID    string           `json:"thread_id"`
	Reply       string           `json:"reply,omitempty"`
	Checkpoints []string         `json:"checkpoints"`
	Events      []forkline.Event `json:"events,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNewThread(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTurnRequest(w, r)
	if !ok {
		return
	}
	s.runTurn(w, r, forkline.NewThreadID(), req)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTurnRequest(w, r)
	if !ok {
		return
	}
	s.runTurn(w, r, chi.URLParam(r, "threadID"), req)
}

func (s *Server) runTurn(w http.ResponseWriter, r *http.Request, threadID string, req TurnRequest) {
	sink := forkline.NewChannelSink(256)
	start := time.Now()
	result, err := s.threads.SubmitTurn(r.Context(), threadID, turnInput(threadID, req), sink)
	sink.Close()
	s.observeTurn(start, err)
	if err != nil {
		s.turnError(w, threadID, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse(result, sink))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := s.threads.History(r.Context(), threadID, limit)
	if err != nil {
		s.logger.Error("history failed", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": threadID,
		"history":   entries,
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	checkpointID := chi.URLParam(r, "checkpointID")
	req, ok := decodeTurnRequest(w, r)
	if !ok {
		return
	}
	sink := forkline.NewChannelSink(256)
	start := time.Now()
	result, err := s.threads.Resume(r.Context(), threadID, checkpointID, turnInput(threadID, req), sink)
	sink.Close()
	s.observeTurn(start, err)
	if err != nil {
		s.turnError(w, threadID, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse(result, sink))
}

// BranchRequest names the checkpoint to fork from.
type BranchRequest struct {
	CheckpointID  string         `json:"checkpoint_id"`
	Message       string         `json:"message"`
	UserID        string         `json:"user_id,omitempty"`
	RequestedStep string         `json:"requested_step,omitempty"`
	Overrides     map[string]any `json:"overrides,omitempty"`
}

func (s *Server) handleBranch(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	var req BranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CheckpointID == "" {
		writeError(w, http.StatusBadRequest, "checkpoint_id required")
		return
	}
	sink := forkline.NewChannelSink(256)
	start := time.Now()
	result, err := s.threads.Branch(r.Context(), threadID, req.CheckpointID,
		forkline.State(req.Overrides),
		turnInput(threadID, TurnRequest{
			Message:       req.Message,
			UserID:        req.UserID,
			RequestedStep: req.RequestedStep,
		}), sink)
	sink.Close()
	s.observeTurn(start, err)
	if err != nil {
		s.turnError(w, threadID, err)
		return
	}
	resp := turnResponse(result.Turn, sink)
	resp.ThreadID = result.NewThreadID
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if err := s.threads.Delete(r.Context(), threadID); err != nil {
		s.logger.Error("delete failed", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) observeTurn(start time.Time, err error) {
	s.turnDuration.Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.turnsTotal.WithLabelValues(outcome).Inc()
}

func (s *Server) turnError(w http.ResponseWriter, threadID string, err error) {
	s.logger.Error("turn failed", "thread_id", threadID, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeTurnRequest(w http.ResponseWriter, r *http.Request) (TurnRequest, bool) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return req, false
	}
	return req, true
}

func turnInput(threadID string, req TurnRequest) forkline.State {
	input := forkline.State{
		forkline.ChannelMessages:      []forkline.Message{forkline.UserMessage(req.Message)},
		forkline.ChannelSessionID:     threadID,
		forkline.ChannelSourceChannel: "api",
	}
	if req.UserID != "" {
		input[forkline.ChannelUserID] = req.UserID
	}
	if req.RequestedStep != "" {
		input[forkline.ChannelRequestedStep] = req.RequestedStep
	}
	return input
}

func turnResponse(result *forkline.TurnResult, sink *forkline.ChannelSink) TurnResponse {
	resp := TurnResponse{ThreadID: result.ThreadID}
	for _, checkpoint := range result.Checkpoints {
		resp.Checkpoints = append(resp.Checkpoints, checkpoint.ID)
	}
	if msg, ok := forkline.LastAssistantMessage(result.Snapshot.Messages(forkline.ChannelMessages)); ok {
		resp.Reply = msg.Content
	}
	for event := range sink.Events() {
		resp.Events = append(resp.Events, event)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

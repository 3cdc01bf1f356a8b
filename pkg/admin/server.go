package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/printshop/jobqueue/pkg/core"
	"github.com/printshop/jobqueue/pkg/registry"
	"github.com/printshop/jobqueue/pkg/storage"
)

// MaxListLimit caps the limit query parameter.
const MaxListLimit = 1000

// JobReader is the part of core.Store the API reads from.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*core.Job, error)
	ListIncomplete(ctx context.Context, limit int) ([]*core.Job, error)
	ListFailed(ctx context.Context, limit int) ([]*core.Job, error)
}

// StatsReader is implemented by stores that can count jobs per queue.
// When the JobReader also implements it, GET /stats is served.
type StatsReader interface {
	QueueStats(ctx context.Context) ([]storage.QueueStat, error)
}

type Server struct {
	jobs     JobReader
	registry *registry.Registry
	logger   *slog.Logger
}

// NewServer returns the admin routes as an http.Handler. reg may be nil.
func NewServer(jobs JobReader, reg *registry.Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{jobs: jobs, registry: reg, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/jobs", s.listJobs)
	r.Get("/jobs/{id}", s.getJob)
	r.Get("/queues", s.listQueues)
	if stats, ok := jobs.(StatsReader); ok {
		r.Get("/stats", s.queueStats(stats))
	}

	return r
}

type jobResponse struct {
	*core.Job
	State core.State `json:"state"`
}

type queueResponse struct {
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	Description string `json:"description,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxListLimit)
	}

	var (
		jobs []*core.Job
		err  error
	)
	switch state := r.URL.Query().Get("state"); state {
	case "", "incomplete":
		jobs, err = s.jobs.ListIncomplete(r.Context(), limit)
	case "failed":
		jobs, err = s.jobs.ListFailed(r.Context(), limit)
	default:
		writeError(w, http.StatusBadRequest, "state must be incomplete or failed")
		return
	}
	if err != nil {
		s.logger.Error("admin: list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobResponse{Job: job, State: job.State()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("admin: get job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Job: job, State: job.State()})
}

func (s *Server) listQueues(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.Entries()
	out := make([]queueResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, queueResponse{Name: e.QueueName, Priority: e.Priority, Description: e.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) queueStats(stats StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := stats.QueueStats(r.Context())
		if err != nil {
			s.logger.Error("admin: queue stats", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load stats")
			return
		}
		if rows == nil {
			rows = []storage.QueueStat{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

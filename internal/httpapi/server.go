// Package httpapi serves the health report over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"host-health-agent/internal/agent/version"
	"host-health-agent/internal/model"
)

const landingText = "Host health agent is running. System check complete."

type Analyzer interface {
	Analyze(ctx context.Context) (model.Report, error)
}

type HistoryReader interface {
	Recent() []model.Snapshot
}

type Options struct {
	PushInterval time.Duration
	WriteTimeout time.Duration
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	// Version backs /version when set.
	Version func() version.Info
}

type Server struct {
	logger   *slog.Logger
	analyzer Analyzer
	history  HistoryReader
	opts     Options
	router   chi.Router
}

func NewServer(logger *slog.Logger, analyzer Analyzer, history HistoryReader, opts Options) *Server {
	if opts.PushInterval <= 0 {
		opts.PushInterval = 2 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	s := &Server{
		logger:   logger.With("scope", "httpapi"),
		analyzer: analyzer,
		history:  history,
		opts:     opts,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/analyze", s.handleAnalyze)
	r.Get("/history", s.handleHistory)
	r.Get("/ws/analyze", s.handleAnalyzeStream)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}
	if s.opts.Version != nil {
		r.Get("/version", s.handleVersion)
	}
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(landingText))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	report, err := s.analyzer.Analyze(r.Context())
	if err != nil {
		s.logger.Error("analyze failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	recent := s.history.Recent()
	if recent == nil {
		recent = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, recent)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Version())
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"linklogger/internal/metrics"
	"linklogger/internal/monitor"
	"linklogger/internal/storage"
)

const (
	logTailLines    = 50
	statusTailLines = 5
	maxStatusBody   = 1 << 20

	readyMessage       = "linklogger is up and ready"
	checkDoneMessage   = "Check completed and saved to log_click.csv"
	cpaDoneMessage     = "CPA executed."
	noLogMessage       = "No log available yet."
	logErrorMessage    = "Log could not be read."
	statusReceivedText = "Status received and logged"
)

// Server wraps HTTP serving of the link logger API.
type Server struct {
	httpServer   *http.Server
	monitor      *monitor.Monitor
	metrics      *metrics.Collector
	logger       *slog.Logger
	pushInterval time.Duration
}

// New creates a configured HTTP server for the monitor.
func New(addr string, mon *monitor.Monitor, collector *metrics.Collector, pushInterval time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if pushInterval <= 0 {
		pushInterval = 5 * time.Second
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux},
		monitor:      mon,
		metrics:      collector,
		logger:       logger,
		pushInterval: pushInterval,
	}
	s.registerRoutes(mux)
	return s
}

// Handler exposes the routing table, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /check", s.handleCheck)
	mux.HandleFunc("GET /cpa", s.handleCPA)
	mux.HandleFunc("GET /log", s.handleLog)
	mux.HandleFunc("POST /status", s.handleStatusPost)
	mux.HandleFunc("GET /status", s.handleStatusGet)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /api/uptime", s.handleUptime)
	mux.HandleFunc("GET /ws/activity", s.handleActivityWS)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeText(w, readyMessage)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.monitor.RunOnce(r.Context())
	writeText(w, checkDoneMessage)
}

func (s *Server) handleCPA(w http.ResponseWriter, r *http.Request) {
	s.monitor.RunCPA(r.Context())
	writeText(w, cpaDoneMessage)
}

func (s *Server) handleLog(w http.ResponseWriter, _ *http.Request) {
	lines, err := s.monitor.LogTail(logTailLines)
	if err != nil {
		if errors.Is(err, storage.ErrNoLog) {
			writeText(w, noLogMessage)
			return
		}
		s.logger.Warn("read activity log", slog.String("error", err.Error()))
		writeText(w, logErrorMessage)
		return
	}
	writeHTML(w, joinLines(lines))
}

// statusRequest is the optional body of POST /status.
type statusRequest struct {
	Msg *string `json:"msg"`
}

func (s *Server) handleStatusPost(w http.ResponseWriter, r *http.Request) {
	msg := monitor.DefaultExternalMessage
	if req, ok := decodeStatusRequest(r.Body); ok && req.Msg != nil {
		msg = *req.Msg
	}
	s.monitor.ReportStatus(msg)
	writeText(w, statusReceivedText)
}

// decodeStatusRequest treats an absent or malformed body as an empty object.
func decodeStatusRequest(body io.Reader) (statusRequest, bool) {
	var req statusRequest
	if body == nil {
		return req, false
	}
	if err := json.NewDecoder(io.LimitReader(body, maxStatusBody)).Decode(&req); err != nil {
		return statusRequest{}, false
	}
	return req, true
}

func (s *Server) handleStatusGet(w http.ResponseWriter, _ *http.Request) {
	writeHTML(w, joinLines(s.monitor.RecentActivity(statusTailLines)))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	payload, err := storage.MarshalStats(s.monitor.Stats())
	if err != nil {
		s.logger.Error("encode stats", slog.String("error", err.Error()))
		payload = []byte("{}")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleUptime(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, metrics.ComputeLinkUptime(s.monitor.Stats()))
}

// joinLines renders log lines for a browser, one per row.
func joinLines(lines []string) string {
	escaped := make([]string, len(lines))
	for i, line := range lines {
		escaped[i] = html.EscapeString(line)
	}
	return strings.Join(escaped, "<br>")
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

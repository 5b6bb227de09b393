// Package debugapi serves the heartbeat debug endpoints and Prometheus
// metrics over HTTP.
package debugapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/archive"
	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"codeberg.org/mutker/heartbeatd/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultHistoryLimit = 20
	readHeaderTimeout   = 5 * time.Second
)

// Heartbeat is the session surface exposed for debugging.
type Heartbeat interface {
	Snapshot() []heartbeat.Value
	DebugTrigger() error
	DebugPrint()
	Booted() bool
	Cycles() uint64
}

// History reads archived heartbeats.
type History interface {
	Recent(ctx context.Context, n int) ([]archive.Record, error)
}

type Server struct {
	heartbeat Heartbeat
	history   History
	metrics   http.Handler
	logger    logger.Logger

	httpServer *http.Server
	listener   net.Listener
	done       chan error
}

func NewServer(hb Heartbeat, history History, metrics http.Handler, log logger.Logger) *Server {
	return &Server{
		heartbeat: hb,
		history:   history,
		metrics:   metrics,
		logger:    log,
	}
}

// Router builds the chi routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)
	r.Use(logMiddleware(s.logger))

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/debug/heartbeat", func(r chi.Router) {
		r.Get("/", s.SnapshotHandler)
		r.Post("/trigger", s.TriggerHandler)
		r.Post("/print", s.PrintHandler)
		r.Get("/history", s.HistoryHandler)
	})

	return r
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	errFactory := errors.New()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errFactory.Wrap(ErrListenFailed, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.done = make(chan error, 1)

	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Debug API listening")

	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	errFactory := errors.New()

	if s.httpServer == nil {
		return nil
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errFactory.Wrap(ErrShutdownFailed, err)
	}
	if err := <-s.done; err != nil {
		return errFactory.Wrap(ErrListenFailed, err)
	}

	return nil
}

type snapshotResponse struct {
	Booted  bool              `json:"booted"`
	Cycles  uint64            `json:"cycles"`
	Metrics []heartbeat.Value `json:"metrics"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	ReturnCode int    `json:"return_code"`
}

func (s *Server) SnapshotHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, snapshotResponse{
		Booted:  s.heartbeat.Booted(),
		Cycles:  s.heartbeat.Cycles(),
		Metrics: s.heartbeat.Snapshot(),
	})
}

func (s *Server) TriggerHandler(w http.ResponseWriter, _ *http.Request) {
	if err := s.heartbeat.DebugTrigger(); err != nil {
		status := http.StatusInternalServerError
		if errors.IsCode(err, heartbeat.ErrNotBooted) {
			status = http.StatusConflict
		}
		s.logger.Warn().Err(err).Msg("Debug trigger failed")
		s.writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Cycles uint64 `json:"cycles"`
	}{s.heartbeat.Cycles()})
}

func (s *Server) PrintHandler(w http.ResponseWriter, _ *http.Request) {
	s.heartbeat.DebugPrint()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	errFactory := errors.New()

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, errFactory.WithData(ErrInvalidLimit, raw))
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read heartbeat history")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []archive.Record{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error:      err.Error(),
		Code:       string(errors.CodeOf(err)),
		ReturnCode: heartbeat.ReturnCode(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}

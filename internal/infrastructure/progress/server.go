package progress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"
	"commerce-agent/internal/infrastructure/runstore"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

const (
	maxEventBytes = 8 << 20
	writeTimeout  = 5 * time.Second
)

type ServerConfig struct {
	Addr string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server exposes plan progress for visualization: event history, finished
// run records and a live websocket stream per plan.
type Server struct {
	hub    *Hub
	runs   output.RunStore
	cfg    ServerConfig
	logger output.LoggerPort
	srv    *http.Server
}

func NewServer(hub *Hub, runs output.RunStore, logger output.LoggerPort, cfg ServerConfig) *Server {
	s := &Server{
		hub:    hub,
		runs:   runs,
		cfg:    cfg,
		logger: logger.WithField("component", "progress-server"),
	}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(httplog.NewLogger("progress", httplog.Options{JSON: true})))
	r.Use(middleware.Recoverer)

	r.Get("/plans", s.listPlans)
	r.Get("/plans/runs", s.listRuns)
	r.Route("/plans/{planID}", func(r chi.Router) {
		r.Post("/events", s.postEvent)
		r.Get("/events", s.getEvents)
		r.Get("/result", s.getResult)
		r.Get("/stream", s.stream)
	})
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}
	return r
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Progress server listening", "addr", s.cfg.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")

	var event entity.ProgressEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event: "+err.Error())
		return
	}
	if event.PlanID == "" {
		event.PlanID = planID
	}
	if event.PlanID != planID {
		writeError(w, http.StatusBadRequest, "planId does not match path")
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.hub.Emit(r.Context(), event)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	events := s.hub.Events(chi.URLParam(r, "planID"))
	if events == nil {
		events = []entity.ProgressEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Plans())
}

// listRuns returns every journaled run record, newest first.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run journal disabled")
		return
	}

	records, err := s.runs.List(r.Context())
	if err != nil {
		s.logger.Error("List plan records failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list plan records")
		return
	}
	if records == nil {
		records = []entity.PlanRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run journal disabled")
		return
	}

	rec, err := s.runs.Get(r.Context(), planID)
	if errors.Is(err, runstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no result for plan "+planID)
		return
	}
	if err != nil {
		s.logger.Error("Read plan record failed", "planId", planID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not read plan result")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// stream replays the plan's events and then forwards new ones until the end
// event is sent or the client goes away.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket accept failed", "planId", planID, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	backlog, live, cancel := s.hub.Subscribe(planID)
	defer cancel()

	for _, event := range backlog {
		if err := s.send(ctx, conn, event); err != nil {
			return
		}
		if event.Phase == entity.PhaseEnd {
			conn.Close(websocket.StatusNormalClosure, "plan finished")
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-live:
			if err := s.send(ctx, conn, event); err != nil {
				return
			}
			if event.Phase == entity.PhaseEnd {
				conn.Close(websocket.StatusNormalClosure, "plan finished")
				return
			}
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, event entity.ProgressEvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, event); err != nil {
		s.logger.Debug("Websocket write failed", "planId", event.PlanID, "error", err)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

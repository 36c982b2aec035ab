package inspect

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

	"github.com/randalmurphal/rpgengine/pkg/engine"
	"github.com/randalmurphal/rpgengine/pkg/engine/event"
	"github.com/randalmurphal/rpgengine/pkg/engine/journal"
	"github.com/randalmurphal/rpgengine/pkg/engine/observability"
)

// Config configures the inspection handler.
type Config struct {
	// Engine is the engine to inspect. Required.
	Engine *engine.Engine

	// Journal enables GET /journal. Optional.
	Journal journal.Store

	// Gatherer enables GET /metrics. Optional.
	Gatherer prometheus.Gatherer

	// Logger receives one line per request.
	// Default: slog.Default()
	Logger *slog.Logger
}

// NewHandler returns the inspection router.
//
// Routes:
//
//	GET  /healthz           engine state
//	GET  /stats             engine, bus, and service statistics
//	GET  /events            bus history, ?kind= and ?limit= filter it
//	GET  /services          registered service keys and their kinds
//	POST /engine/{command}  start, pause, resume, or stop
//	GET  /journal           journal records, ?kind= ?after= ?limit=
//	GET  /metrics           Prometheus exposition
func NewHandler(cfg Config) http.Handler {
	if cfg.Engine == nil {
		panic("inspect: nil engine")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &server{
		eng:     cfg.Engine,
		journal: cfg.Journal,
		logger:  observability.EnrichLogger(cfg.Logger, "inspect"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Get("/stats", s.stats)
	r.Get("/events", s.events)
	r.Get("/services", s.services)
	r.Post("/engine/{command}", s.command)
	if cfg.Journal != nil {
		r.Get("/journal", s.journalRecords)
	}
	if cfg.Gatherer != nil {
		r.Get("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}
	return r
}

type server struct {
	eng     *engine.Engine
	journal journal.Store
	logger  *slog.Logger
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		s.logger.Debug("inspect request",
			slog.String("method", r.Method),
			slog.String("route", pattern),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		)
	})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": s.eng.State().String()})
}

type statsResponse struct {
	State        string            `json:"state"`
	UptimeMs     int64             `json:"uptime_ms"`
	Frames       int64             `json:"frames"`
	FPS          float64           `json:"fps"`
	LastFrameMs  float64           `json:"last_frame_ms"`
	SystemErrors int64             `json:"system_errors"`
	Tasks        int64             `json:"tasks"`
	Systems      []string          `json:"systems"`
	Bus          busStatsResponse  `json:"bus"`
	Services     map[string]string `json:"services"`
	LoopError    string            `json:"loop_error,omitempty"`
}

type busStatsResponse struct {
	EventsPublished int64 `json:"events_published"`
	EventsHandled   int64 `json:"events_handled"`
	Errors          int64 `json:"errors"`
	Handlers        int   `json:"handlers"`
	Middleware      int   `json:"middleware"`
	History         int   `json:"history"`
}

func (s *server) stats(w http.ResponseWriter, _ *http.Request) {
	st := s.eng.Stats()
	resp := statsResponse{
		State:        st.State.String(),
		UptimeMs:     st.Uptime.Milliseconds(),
		Frames:       st.Frames,
		FPS:          st.FPS,
		LastFrameMs:  float64(st.LastFrame.Microseconds()) / 1000,
		SystemErrors: st.SystemErrors,
		Tasks:        st.Tasks,
		Systems:      st.Systems,
		Bus: busStatsResponse{
			EventsPublished: st.Bus.EventsPublished,
			EventsHandled:   st.Bus.EventsHandled,
			Errors:          st.Bus.Errors,
			Handlers:        st.Bus.Handlers,
			Middleware:      st.Bus.Middleware,
			History:         st.Bus.History,
		},
		Services: serviceKinds(st),
	}
	if err := s.eng.Err(); err != nil {
		resp.LoopError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func serviceKinds(st engine.Stats) map[string]string {
	out := make(map[string]string, len(st.Services))
	for key, kind := range st.Services {
		out[key] = string(kind)
	}
	return out
}

type eventResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (s *server) events(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}
	history := s.eng.Bus().History(event.HistoryQuery{
		Kind:  event.Kind(r.URL.Query().Get("kind")),
		Limit: int(limit),
	})

	out := make([]eventResponse, 0, len(history))
	for _, evt := range history {
		resp := eventResponse{
			ID:        evt.ID(),
			Kind:      string(evt.Kind()),
			Source:    evt.Source(),
			Timestamp: evt.Timestamp(),
		}
		if data, err := json.Marshal(evt); err == nil {
			resp.Data = data
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *server) services(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"services":      serviceKinds(s.eng.Stats()),
		"constructed":   s.eng.Container().Constructed(),
		"constructions": s.eng.Container().Constructions(),
	})
}

func (s *server) command(w http.ResponseWriter, r *http.Request) {
	var err error
	switch cmd := chi.URLParam(r, "command"); cmd {
	case "start":
		err = s.eng.Start(r.Context())
	case "pause":
		err = s.eng.Pause(r.Context())
	case "resume":
		err = s.eng.Resume(r.Context())
	case "stop":
		err = s.eng.Stop(r.Context())
	default:
		writeError(w, http.StatusNotFound, "unknown command: "+cmd)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": s.eng.State().String()})
}

type recordResponse struct {
	Seq       int64           `json:"seq"`
	EventID   string          `json:"event_id"`
	Kind      string          `json:"kind"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (s *server) journalRecords(w http.ResponseWriter, r *http.Request) {
	after, ok := intParam(w, r, "after")
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}

	records, err := s.journal.List(r.Context(), journal.Query{
		Kind:     r.URL.Query().Get("kind"),
		AfterSeq: after,
		Limit:    int(limit),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		resp := recordResponse{
			Seq:       rec.Seq,
			EventID:   rec.EventID,
			Kind:      rec.Kind,
			Source:    rec.Source,
			Timestamp: rec.Timestamp,
		}
		if json.Valid(rec.Payload) {
			resp.Payload = rec.Payload
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

// intParam parses a non-negative integer query parameter. A missing
// parameter is zero. On a bad value it writes a 400 and returns false.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  status,
	})
}

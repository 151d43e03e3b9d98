package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/hugo-lorenzo-mato/testherd/internal/coord"
	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

// Server exposes a read-only HTTP view of the coordination directory:
// workers, locks, shard counts, and the shared run state. It never mutates
// anything; liveness GC stays with the workers themselves.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	config     Config
	logger     *slog.Logger

	registry    *coord.Registry
	locks       *coord.LockManager
	shards      *coord.ShardStore
	coordinator *coord.Coordinator
	staleness   time.Duration
}

// Config holds the server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	EnableCORS      bool
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8790,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// New creates a status server over the given coordination components.
func New(cfg Config, registry *coord.Registry, locks *coord.LockManager, shards *coord.ShardStore,
	coordinator *coord.Coordinator, staleness time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:      cfg,
		logger:      logger,
		registry:    registry,
		locks:       locks,
		shards:      shards,
		coordinator: coordinator,
		staleness:   staleness,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	if s.config.EnableCORS {
		c := cors.New(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{http.MethodGet},
		})
		r.Use(c.Handler)
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/workers", s.handleWorkers)
		r.Get("/locks", s.handleLocks)
		r.Get("/run", s.handleRun)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Handler returns the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

type workerView struct {
	ID               core.WorkerID     `json:"id"`
	PID              int               `json:"pid"`
	Status           core.WorkerStatus `json:"status"`
	LastHeartbeat    time.Time         `json:"last_heartbeat"`
	HeartbeatAge     string            `json:"heartbeat_age"`
	Alive            bool              `json:"alive"`
	ProcessRunning   *bool             `json:"process_running,omitempty"`
	TestsSeen        int               `json:"tests_seen"`
	ResultsProcessed int               `json:"results_processed"`
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	records, err := s.registry.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	now := time.Now()
	views := make([]workerView, 0, len(records))
	for _, rec := range records {
		v := workerView{
			ID:               rec.Identity.ID,
			PID:              rec.Identity.PID,
			Status:           rec.Status,
			LastHeartbeat:    rec.LastHeartbeat,
			HeartbeatAge:     rec.HeartbeatAge(now).Round(time.Millisecond).String(),
			Alive:            rec.IsAlive(now, s.staleness),
			TestsSeen:        rec.TestsSeen,
			ResultsProcessed: rec.ResultsProcessed,
		}
		// Advisory only: lease validity is decided by heartbeat age, never
		// by process liveness, which is unobservable across hosts.
		if running, err := process.PidExists(int32(rec.Identity.PID)); err == nil {
			v.ProcessRunning = &running
		}
		views = append(views, v)
	}
	s.writeJSON(w, map[string]interface{}{"workers": views})
}

func (s *Server) handleLocks(w http.ResponseWriter, r *http.Request) {
	records, err := s.locks.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	now := time.Now()
	type lockView struct {
		Resource   string        `json:"resource"`
		Holder     core.WorkerID `json:"holder"`
		AcquiredAt time.Time     `json:"acquired_at"`
		ExpiresAt  time.Time     `json:"expires_at"`
		Expired    bool          `json:"expired"`
	}
	views := make([]lockView, 0, len(records))
	for _, rec := range records {
		views = append(views, lockView{
			Resource:   rec.Resource,
			Holder:     rec.Holder.ID,
			AcquiredAt: rec.AcquiredAt,
			ExpiresAt:  rec.ExpiresAt,
			Expired:    rec.Expired(now),
		})
	}
	s.writeJSON(w, map[string]interface{}{"locks": views})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	state, err := s.coordinator.LoadRunState()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, state)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	records, err := s.registry.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	shardCount, err := s.shards.Count()
	if err != nil {
		s.writeError(w, err)
		return
	}
	now := time.Now()
	alive := 0
	for _, rec := range records {
		if rec.IsAlive(now, s.staleness) {
			alive++
		}
	}
	state, _ := s.coordinator.LoadRunState()
	resp := map[string]interface{}{
		"workers_known": len(records),
		"workers_alive": alive,
		"shards":        shardCount,
	}
	if state != nil {
		resp["run_id"] = state.RunID
		resp["project_id"] = state.ProjectID
		resp["cases"] = len(state.CaseIDs)
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if core.IsCategory(err, core.ErrCatNotFound) {
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

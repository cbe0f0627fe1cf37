package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/fbot-core/internal/audit"
	"github.com/nerrad567/fbot-core/internal/infrastructure/config"
	"github.com/nerrad567/fbot-core/internal/infrastructure/logging"
	"github.com/nerrad567/fbot-core/internal/telemetry"
	"github.com/nerrad567/fbot-core/internal/turret"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// TurretService is the subset of *turret.Turret the API drives.
type TurretService interface {
	Fire(ctx context.Context, count int, requestID string) (*turret.Session, error)
	Reload() int
	Status() turret.Status
}

// SessionReader is the read side of turret.Repository.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*turret.Session, error)
	ListSessions(ctx context.Context, limit int) ([]turret.Session, error)
}

// ConnectionChecker is implemented by *mqtt.Client.
type ConnectionChecker interface {
	IsConnected() bool
}

// TelemetryStats is implemented by *telemetry.Forwarder.
type TelemetryStats interface {
	Stats() telemetry.Stats
}

// DBStats is implemented by *sql.DB.
type DBStats interface {
	Stats() sql.DBStats
}

// AuditStore is implemented by *audit.SQLiteRepository.
type AuditStore interface {
	Create(ctx context.Context, e *audit.Entry) error
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Turret   TurretService

	// Optional collaborators. Leave nil when not configured.
	Sessions  SessionReader
	MQTT      ConnectionChecker
	Telemetry TelemetryStats
	DB        DBStats
	Audit     AuditStore

	// MaxBurst caps the count of a single fire request. Zero means no cap.
	MaxBurst int

	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	turret    TurretService
	sessions  SessionReader
	mqtt      ConnectionChecker
	telemetry TelemetryStats
	db        DBStats
	audit     AuditStore
	auditCh   chan *audit.Entry
	maxBurst  int
	version   string

	server      *http.Server
	hub         *Hub
	externalHub bool // true if hub was injected externally
	tickets     *ticketStore
	startTime   time.Time

	// fireCtx bounds background fire requests; cancelled by Close.
	fireCtx context.Context
	cancel  context.CancelFunc
	fires   sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, turret)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Turret == nil {
		return nil, fmt.Errorf("turret is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		turret:    deps.Turret,
		sessions:  deps.Sessions,
		mqtt:      deps.MQTT,
		telemetry: deps.Telemetry,
		db:        deps.DB,
		audit:     deps.Audit,
		maxBurst:  deps.MaxBurst,
		version:   deps.Version,
		tickets:   newTicketStore(),
		startTime: time.Now(),
		fireCtx:   context.Background(),
	}

	if deps.Audit != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}

	// Use externally-provided hub if available (the telemetry forwarder
	// needs it before the server starts).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the WebSocket hub, or nil before Start when none was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub, ticket cleanup and background fire
//     requests
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.fireCtx = srvCtx

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger, s.turret.Status)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	// Start periodic ticket cleanup to prevent memory leaks
	go s.cleanTicketsLoop(srvCtx)

	if s.auditCh != nil {
		go s.drainAuditLog(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It cancels background fire requests that are still waiting, waits up to
// 10 seconds for in-flight HTTP requests, then waits for running fire
// sequences to return.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup, fire waits)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.fires.Wait()
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

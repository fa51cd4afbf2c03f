package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/arentkievits/odemis/internal/hardware"
	"github.com/arentkievits/odemis/internal/infrastructure/config"
	"github.com/arentkievits/odemis/internal/infrastructure/logging"
	"github.com/arentkievits/odemis/internal/opticalpath"
	"github.com/arentkievits/odemis/internal/stream"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests on Close.
const gracefulShutdownTimeout = 10 * time.Second

// PathService is the optical path manager as seen by the API.
type PathService interface {
	Modes() opticalpath.Table
	IsGuessable(name string) bool
	CurrentMode() string
	MicroscopeRole() string
	SetPath(ctx context.Context, name string) (*opticalpath.Transition, error)
	GuessMode(s stream.Stream) (string, error)
}

// TransitionLister reads the transition history.
type TransitionLister interface {
	ListTransitions(ctx context.Context, limit int) ([]opticalpath.Transition, error)
}

// ComponentLister lists the hardware inventory.
type ComponentLister interface {
	Components() []hardware.Component
}

// HealthChecker is a dependency reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies of the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Path        PathService
	Transitions TransitionLister // optional
	Components  ComponentLister  // optional
	Hub         *Hub             // optional; created if nil
	Checks      map[string]HealthChecker
	Version     string
}

// Server is the HTTP API server.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	path        PathService
	transitions TransitionLister
	components  ComponentLister
	checks      map[string]HealthChecker
	limiter     *rate.Limiter
	version     string
	hub         *Hub
	server      *http.Server
	cancel      context.CancelFunc
}

// New creates a server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Path == nil {
		return nil, fmt.Errorf("path service is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		path:        deps.Path,
		transitions: deps.Transitions,
		components:  deps.Components,
		checks:      deps.Checks,
		version:     deps.Version,
		hub:         deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	if rl := deps.Config.RateLimit; rl.Enabled && rl.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), max(rl.Burst, 1))
	}
	return s, nil
}

// Hub returns the WebSocket hub, for components that broadcast events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start launches the listener in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr)
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

// Close stops the hub and shuts the listener down gracefully.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server was started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

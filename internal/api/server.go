package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kichnu/iotdash/internal/audit"
	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/infrastructure/config"
	"github.com/kichnu/iotdash/internal/infrastructure/logging"
	"github.com/kichnu/iotdash/internal/location"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Broker is the MQTT connection used to forward commands. Satisfied by
// the mqtt infrastructure client.
type Broker interface {
	device.Publisher
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Devices  config.DevicesConfig
	QoS      byte
	Logger   *logging.Logger
	Registry *device.Registry
	Tracker  *device.Tracker
	Rooms    location.Repository
	MQTT     Broker           // optional; without it commands fail and mqtt_connected is false
	Audit    audit.Repository // optional; without it nothing is recorded
	Version  string
}

// Server is the HTTP API server for the device dashboard.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	devices  config.DevicesConfig
	qos      byte
	logger   *logging.Logger
	registry *device.Registry
	tracker  *device.Tracker
	rooms    location.Repository
	mqtt     Broker
	audit    audit.Repository
	version  string
	server   *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, registry, tracker, rooms)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("status tracker is required")
	}
	if deps.Rooms == nil {
		return nil, fmt.Errorf("room repository is required")
	}

	return &Server{
		cfg:      deps.Config,
		devices:  deps.Devices,
		qos:      deps.QoS,
		logger:   deps.Logger,
		registry: deps.Registry,
		tracker:  deps.Tracker,
		rooms:    deps.Rooms,
		mqtt:     deps.MQTT,
		audit:    deps.Audit,
		version:  deps.Version,
	}, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port conflict is
// reported to the caller. Requests are served in a background goroutine
// until Close() is called.
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}

	s.logger.Info("API server starting", "address", ln.Addr().String(), "version", s.version)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
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

// mqttConnected reports whether commands can currently be forwarded.
func (s *Server) mqttConnected() bool {
	return s.mqtt != nil && s.mqtt.IsConnected()
}

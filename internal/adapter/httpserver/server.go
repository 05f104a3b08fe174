package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	"github.com/pscheid92/moodbridge/internal/domain"
	"github.com/pscheid92/moodbridge/internal/platform/config"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
)

type receiverRegistry interface {
	Register(conn *websocket.Conn) (domain.ReceiverHandle, error)
	Unregister(handle domain.ReceiverHandle)
	ReceiverCount() int
}

type bridgeState interface {
	State() domain.BridgeState
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	receivers receiverRegistry
	bridge    bridgeState
	upgrader  websocket.Upgrader

	promRegistry    *prometheus.Registry
	httpMetrics     *metrics.HTTPMetrics
	receiverMetrics *metrics.ReceiverMetrics

	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
	started      atomic.Bool
}

func NewServer(
	cfg *config.Config,
	receivers receiverRegistry,
	bridge bridgeState,
	promRegistry *prometheus.Registry,
	receiverMetrics *metrics.ReceiverMetrics,
	healthChecks []HealthCheck,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		config:    cfg,
		receivers: receivers,
		bridge:    bridge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newCheckOrigin(cfg.Origins(), cfg.IsDevelopment()),
		},
		promRegistry:    promRegistry,
		httpMetrics:     metrics.NewHTTPMetrics(promRegistry),
		receiverMetrics: receiverMetrics,
		healthChecks:    healthChecks,
		clock:           clock,
		startTime:       clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

// Listen binds the receiver endpoint. Failure is a config error: the bridge
// cannot run without it.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr())
	if err != nil {
		return apperrors.ConfigError("failed to bind receiver listener", err).WithField("addr", s.config.ListenAddr())
	}
	s.echo.Listener = ln
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.echo.Listener == nil {
		return nil
	}
	return s.echo.Listener.Addr()
}

// Start serves on the listener bound by Listen, binding first if needed.
// It blocks until Shutdown.
func (s *Server) Start() error {
	if s.echo.Listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	slog.Info("Starting server", "addr", s.Addr().String())
	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

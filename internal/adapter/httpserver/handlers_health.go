package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/moodbridge/internal/platform/version"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second
)

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleStartup passes once every check has succeeded a single time and
// stays passing afterwards. Later upstream loss is reported by readiness.
func (s *Server) handleStartup(c echo.Context) error {
	if !s.started.Load() {
		ctx, cancel := context.WithTimeout(c.Request().Context(), startupCheckTimeout)
		defer cancel()

		if name, err := s.firstFailingCheck(ctx); err != nil {
			return s.writeUnhealthy(c, name, err)
		}
		if s.started.CompareAndSwap(false, true) {
			slog.Info("Startup checks passed", "startup_duration", s.clock.Since(s.startTime))
		}
	}

	response := map[string]any{
		"status": "started",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write startup response: %w", err)
	}
	return nil
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness fails while the event source is down, so an operator sees
// upstream loss even though receivers stay connected.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessCheckTimeout)
	defer cancel()

	if name, err := s.firstFailingCheck(ctx); err != nil {
		return s.writeUnhealthy(c, name, err)
	}

	response := map[string]any{
		"status":    "ready",
		"bridge":    s.bridge.State().String(),
		"receivers": s.receivers.ReceiverCount(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) firstFailingCheck(ctx context.Context) (string, error) {
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			return hc.Name, err
		}
	}
	return "", nil
}

func (s *Server) writeUnhealthy(c echo.Context, name string, cause error) error {
	response := map[string]any{
		"status":       "unhealthy",
		"failed_check": name,
		"error":        cause.Error(),
	}
	if err := c.JSON(http.StatusServiceUnavailable, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}

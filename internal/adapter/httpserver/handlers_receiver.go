package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/moodbridge/internal/domain"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
)

const rejectWriteTimeout = time.Second

func (s *Server) registerReceiverRoutes() {
	limiter := newHandshakeLimiter(s.config.ReceiverConnectRate, s.config.ReceiverConnectBurst, s.receiverMetrics)
	s.echo.GET("/ws", s.handleReceiver, limiter)
}

// handleReceiver upgrades the request, registers the connection and then
// drains inbound frames until the receiver goes away. Inbound data is ignored;
// reading is what processes pongs and close frames.
func (s *Server) handleReceiver(c echo.Context) error {
	if limit := s.config.MaxReceivers; limit > 0 && s.receivers.ReceiverCount() >= limit {
		s.receiverMetrics.RejectedHandshakes.WithLabelValues("capacity").Inc()
		return apperrors.UnavailableError("receiver limit reached", domain.ErrRegistryFull).
			WithField("max_receivers", limit)
	}

	upgrader := s.upgrader
	status := http.StatusBadRequest
	upgrader.Error = func(_ http.ResponseWriter, _ *http.Request, code int, _ error) {
		status = code
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.receiverMetrics.RejectedHandshakes.WithLabelValues("upgrade").Inc()
		if c.Response().Committed {
			return nil
		}
		if status == http.StatusForbidden {
			return echo.NewHTTPError(http.StatusForbidden, "origin not allowed")
		}
		return apperrors.ValidationError("websocket handshake required").
			WithField("reason", err.Error())
	}

	handle, err := s.receivers.Register(conn)
	if err != nil {
		s.rejectReceiver(conn, err)
		return nil
	}
	defer s.receivers.Unregister(handle)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("Receiver read failed", "receiver_id", handle.String(), "error", err)
			}
			return nil
		}
	}
}

// rejectReceiver closes a connection the registry refused. The handshake is
// already done, so the refusal goes out as a close frame.
func (s *Server) rejectReceiver(conn *websocket.Conn, cause error) {
	reason, code, text := "stopped", websocket.CloseGoingAway, "bridge shutting down"
	if errors.Is(cause, domain.ErrRegistryFull) {
		reason, code, text = "capacity", websocket.CloseTryAgainLater, "receiver limit reached"
	}
	s.receiverMetrics.RejectedHandshakes.WithLabelValues(reason).Inc()
	slog.Warn("Rejecting receiver", "reason", reason, "error", cause)

	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, s.clock.Now().Add(rejectWriteTimeout))
	_ = conn.Close()
}

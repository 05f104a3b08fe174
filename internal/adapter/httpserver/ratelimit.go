package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
	"golang.org/x/time/rate"
)

const handshakeLimiterExpiry = 5 * time.Minute

// newHandshakeLimiter caps receiver handshakes per client IP. Denied
// handshakes count as rejected and surface as rate_limited errors.
// echo's limiter errors are HTTPErrors and must not be wrapped as causes.
func newHandshakeLimiter(ratePerSecond float64, burst int, m *metrics.ReceiverMetrics) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(ratePerSecond),
		Burst:     burst,
		ExpiresIn: handshakeLimiterExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperrors.InternalError("handshake limiter failed", nil).WithField("reason", err.Error())
		},
		DenyHandler: func(c echo.Context, remote string, _ error) error {
			m.RejectedHandshakes.WithLabelValues("rate_limited").Inc()
			return apperrors.RateLimitedError("too many receiver handshakes", nil).
				WithField("remote", remote).
				WithField("burst", burst)
		},
	})
}

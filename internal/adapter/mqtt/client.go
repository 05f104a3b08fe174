package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
	"github.com/pscheid92/moodbridge/internal/platform/retry"
)

const (
	defaultConnectTimeout = 5 * time.Second
	disconnectQuiesceMs   = 250
)

type Config struct {
	BrokerURL       string
	ClientID        string
	Topic           string
	QoS             byte
	ConnectAttempts int
	ConnectTimeout  time.Duration
	Clock           clockwork.Clock
}

func (c Config) clock() clockwork.Clock {
	if c.Clock == nil {
		return clockwork.NewRealClock()
	}
	return c.Clock
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return c.ConnectTimeout
}

func newClientOptions(cfg Config) *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectTimeout(cfg.connectTimeout())
}

// connect makes the initial connection with bounded retries. Failure is an
// upstream error; Paho's own reconnect loop only takes over once connected.
func connect(ctx context.Context, client paho.Client, cfg Config) error {
	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	policy := retry.Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Clock:          cfg.clock(),
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("MQTT broker not reachable, retrying",
				"broker", cfg.BrokerURL, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	err := retry.DoVoid(ctx, policy, retry.Always, func() error {
		return waitToken(ctx, cfg.clock(), client.Connect(), cfg.connectTimeout())
	})
	if err != nil {
		return apperrors.UpstreamError("mqtt broker unreachable", err).WithField("broker", cfg.BrokerURL)
	}
	return nil
}

func waitToken(ctx context.Context, clock clockwork.Clock, token paho.Token, timeout time.Duration) error {
	timer := clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.Chan():
		return fmt.Errorf("mqtt operation timed out after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

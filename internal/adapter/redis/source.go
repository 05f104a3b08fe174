package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	"github.com/pscheid92/moodbridge/internal/domain"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
	"github.com/pscheid92/moodbridge/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

type Source struct {
	rdb             *goredis.Client
	channel         string
	connectAttempts int
	metrics         *metrics.SourceMetrics

	mu      sync.Mutex
	sub     *goredis.PubSub
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewSource(rdb *goredis.Client, channel string, connectAttempts int, m *metrics.SourceMetrics) *Source {
	return &Source{rdb: rdb, channel: channel, connectAttempts: connectAttempts, metrics: m}
}

// Start subscribes to the channel and delivers payloads to handler until Close
// or ctx is cancelled. It returns an upstream error if Redis cannot be reached
// within the configured attempts.
func (s *Source) Start(ctx context.Context, handler domain.PayloadHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return apperrors.InternalError("redis source already started", nil)
	}

	policy := retry.Policy{
		MaxAttempts:    s.connectAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Redis not reachable, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	if err := retry.DoVoid(ctx, policy, retry.Always, func() error { return s.rdb.Ping(ctx).Err() }); err != nil {
		return apperrors.UpstreamError("redis unreachable", err).WithField("channel", s.channel)
	}

	sub := s.rdb.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return apperrors.UpstreamError("failed to subscribe", err).WithField("channel", s.channel)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.sub, s.cancel, s.started = sub, cancel, true
	s.metrics.Connected.Set(1)
	slog.Info("Subscribed to mood channel", "source", "redis", "channel", s.channel)

	s.wg.Add(1)
	go s.receive(subCtx, sub.Channel(), handler)
	return nil
}

func (s *Source) receive(ctx context.Context, msgCh <-chan *goredis.Message, handler domain.PayloadHandler) {
	defer s.wg.Done()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			s.metrics.MessagesReceived.Inc()
			handler(ctx, []byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}

// Check pings Redis. go-redis resubscribes on its own after a reconnect, so a
// successful ping means payloads flow again.
func (s *Source) Check(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		s.metrics.Connected.Set(0)
		return apperrors.UpstreamError("redis unreachable", err)
	}
	s.metrics.Connected.Set(1)
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	s.cancel()
	err := s.sub.Close()
	s.wg.Wait()
	s.metrics.Connected.Set(0)
	return err
}

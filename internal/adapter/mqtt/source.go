package mqtt

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	"github.com/pscheid92/moodbridge/internal/domain"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
)

type Source struct {
	cfg     Config
	client  paho.Client
	metrics *metrics.SourceMetrics

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	handler    domain.PayloadHandler
	subscribed atomic.Bool
	connected  atomic.Bool
}

func NewSource(cfg Config, m *metrics.SourceMetrics) *Source {
	s := &Source{cfg: cfg, metrics: m}

	opts := newClientOptions(cfg).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost)
	s.client = paho.NewClient(opts)
	return s
}

// Start connects to the broker and subscribes to the mood topic. Payloads are
// delivered to handler in arrival order until Close.
func (s *Source) Start(ctx context.Context, handler domain.PayloadHandler) error {
	s.mu.Lock()
	if s.handler != nil {
		s.mu.Unlock()
		return apperrors.InternalError("mqtt source already started", nil)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.handler = handler
	s.mu.Unlock()

	if err := connect(ctx, s.client, s.cfg); err != nil {
		return err
	}

	if err := s.subscribe(ctx); err != nil {
		s.client.Disconnect(disconnectQuiesceMs)
		return err
	}
	s.subscribed.Store(true)
	return nil
}

func (s *Source) subscribe(ctx context.Context) error {
	token := s.client.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage)
	if err := waitToken(ctx, s.cfg.clock(), token, s.cfg.connectTimeout()); err != nil {
		return apperrors.UpstreamError("failed to subscribe", err).WithField("topic", s.cfg.Topic)
	}
	slog.Info("Subscribed to mood topic", "source", "mqtt", "broker", s.cfg.BrokerURL, "topic", s.cfg.Topic)
	return nil
}

func (s *Source) onMessage(_ paho.Client, msg paho.Message) {
	s.metrics.MessagesReceived.Inc()
	s.handler(s.ctx, msg.Payload())
}

// onConnect runs on the initial connection and after every automatic
// reconnect. Clean sessions drop subscriptions, so they are renewed here.
func (s *Source) onConnect(paho.Client) {
	s.connected.Store(true)
	s.metrics.Connected.Set(1)
	slog.Info("Connected to MQTT broker", "broker", s.cfg.BrokerURL)

	if !s.subscribed.Load() {
		return
	}
	go func() {
		if err := s.subscribe(s.ctx); err != nil {
			slog.Error("Failed to resubscribe after reconnect", "topic", s.cfg.Topic, "error", err)
		}
	}()
}

func (s *Source) onConnectionLost(_ paho.Client, err error) {
	s.connected.Store(false)
	s.metrics.Connected.Set(0)
	s.metrics.ConnectionLosses.Inc()
	slog.Error("Lost connection to MQTT broker, events will resume after reconnect",
		"broker", s.cfg.BrokerURL, "error", err)
}

// Check reports an upstream error while the broker connection is down.
func (s *Source) Check(context.Context) error {
	if !s.connected.Load() || !s.client.IsConnectionOpen() {
		return apperrors.UpstreamError("mqtt broker connection down", nil).WithField("broker", s.cfg.BrokerURL)
	}
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.client.IsConnected() {
		s.client.Disconnect(disconnectQuiesceMs)
	}
	s.connected.Store(false)
	s.metrics.Connected.Set(0)
	return nil
}

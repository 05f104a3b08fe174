package httpserver

import (
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	"github.com/pscheid92/moodbridge/internal/domain"
	"github.com/pscheid92/moodbridge/internal/platform/config"
)

// --- Mock receiver registry ---

type mockReceivers struct {
	mu          sync.Mutex
	registerErr error
	registered  map[domain.ReceiverHandle]*websocket.Conn
	unregisters []domain.ReceiverHandle
}

func newMockReceivers() *mockReceivers {
	return &mockReceivers{registered: make(map[domain.ReceiverHandle]*websocket.Conn)}
}

func (m *mockReceivers) Register(conn *websocket.Conn) (domain.ReceiverHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return domain.ReceiverHandle{}, m.registerErr
	}
	handle := domain.NewReceiverHandle()
	m.registered[handle] = conn
	return handle, nil
}

func (m *mockReceivers) Unregister(handle domain.ReceiverHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.registered, handle)
	m.unregisters = append(m.unregisters, handle)
}

func (m *mockReceivers) ReceiverCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registered)
}

func (m *mockReceivers) unregisterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.unregisters)
}

// --- Mock bridge ---

type mockBridge struct {
	state domain.BridgeState
}

func (m *mockBridge) State() domain.BridgeState { return m.state }

// --- Test server ---

func testConfig() *config.Config {
	return &config.Config{
		ListenHost:           "127.0.0.1",
		Port:                 "0",
		ReceiverConnectRate:  100,
		ReceiverConnectBurst: 100,
		AllowedOrigins:       "*",
		MaxReceivers:         100,
	}
}

func newTestServer(t *testing.T, opts ...func(*Server)) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	srv := &Server{
		echo:            echo.New(),
		config:          testConfig(),
		receivers:       newMockReceivers(),
		bridge:          &mockBridge{state: domain.StateIdle},
		upgrader:        websocket.Upgrader{CheckOrigin: newCheckOrigin([]string{"*"}, false)},
		promRegistry:    reg,
		httpMetrics:     metrics.NewHTTPMetrics(reg),
		receiverMetrics: metrics.NewReceiverMetrics(reg),
		clock:           clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(srv)
	}
	srv.startTime = srv.clock.Now()

	srv.registerRoutes()
	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withReceivers(r receiverRegistry) func(*Server) {
	return func(s *Server) {
		s.receivers = r
	}
}

func withBridge(b bridgeState) func(*Server) {
	return func(s *Server) {
		s.bridge = b
	}
}

func withClock(clock clockwork.Clock) func(*Server) {
	return func(s *Server) {
		s.clock = clock
	}
}

func withConfig(cfg *config.Config) func(*Server) {
	return func(s *Server) {
		s.config = cfg
	}
}

package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	"github.com/pscheid92/moodbridge/internal/broadcast"
	"github.com/pscheid92/moodbridge/internal/domain"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, srv *Server) string {
	t.Helper()
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialReceiver(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHandleReceiver_RegistersAndUnregisters(t *testing.T) {
	receivers := newMockReceivers()
	srv := newTestServer(t, withReceivers(receivers))
	url := startTestServer(t, srv)

	conn := dialReceiver(t, url)

	require.Eventually(t, func() bool {
		return receivers.ReceiverCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return receivers.ReceiverCount() == 0 && receivers.unregisterCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandleReceiver_InboundMessagesIgnored(t *testing.T) {
	receivers := newMockReceivers()
	srv := newTestServer(t, withReceivers(receivers))
	url := startTestServer(t, srv)

	conn := dialReceiver(t, url)
	require.Eventually(t, func() bool {
		return receivers.ReceiverCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"bridge"}`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	// Still registered after sending.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, receivers.ReceiverCount())
	assert.Equal(t, 0, receivers.unregisterCount())
}

func TestHandleReceiver_RegistryFull(t *testing.T) {
	receivers := newMockReceivers()
	receivers.registerErr = domain.ErrRegistryFull
	srv := newTestServer(t, withReceivers(receivers))
	url := startTestServer(t, srv)

	conn := dialReceiver(t, url)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater))

	assert.InDelta(t, 1, testutil.ToFloat64(srv.receiverMetrics.RejectedHandshakes.WithLabelValues("capacity")), 0)
}

func TestHandleReceiver_RegistryStopped(t *testing.T) {
	receivers := newMockReceivers()
	receivers.registerErr = domain.ErrRegistryStopped
	srv := newTestServer(t, withReceivers(receivers))
	url := startTestServer(t, srv)

	conn := dialReceiver(t, url)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.InDelta(t, 1, testutil.ToFloat64(srv.receiverMetrics.RejectedHandshakes.WithLabelValues("stopped")), 0)
}

func TestHandleReceiver_PlainHTTPRejected(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
	assert.Equal(t, "websocket handshake required", resp.Error)
	assert.InDelta(t, 1, testutil.ToFloat64(srv.receiverMetrics.RejectedHandshakes.WithLabelValues("upgrade")), 0)
}

func TestHandleReceiver_DisallowedOriginForbidden(t *testing.T) {
	srv := newTestServer(t)
	srv.upgrader.CheckOrigin = newCheckOrigin([]string{"http://player.local"}, false)
	url := startTestServer(t, srv)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleReceiver_AtCapacityRejectedBeforeUpgrade(t *testing.T) {
	receivers := newMockReceivers()
	cfg := testConfig()
	cfg.MaxReceivers = 1
	srv := newTestServer(t, withReceivers(receivers), withConfig(cfg))
	url := startTestServer(t, srv)

	dialReceiver(t, url)
	require.Eventually(t, func() bool {
		return receivers.ReceiverCount() == 1
	}, time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body apperrors.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, apperrors.TypeUnavailable, body.Type)
	assert.InDelta(t, 1, body.Context["max_receivers"], 0)

	assert.Equal(t, 1, receivers.ReceiverCount())
	assert.InDelta(t, 1, testutil.ToFloat64(srv.receiverMetrics.RejectedHandshakes.WithLabelValues("capacity")), 0)
}

func TestHandleReceiver_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.ReceiverConnectRate = 0.01
	cfg.ReceiverConnectBurst = 1
	srv := newTestServer(t, withConfig(cfg))
	url := startTestServer(t, srv)

	dialReceiver(t, url)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.InDelta(t, 1, testutil.ToFloat64(srv.receiverMetrics.RejectedHandshakes.WithLabelValues("rate_limited")), 0)
}

func TestHandleReceiver_ReceivesBroadcast(t *testing.T) {
	reg := prometheus.NewRegistry()
	receiverMetrics := metrics.NewReceiverMetrics(reg)
	b := broadcast.NewBroadcaster(clockwork.NewRealClock(), receiverMetrics, broadcast.Config{})
	t.Cleanup(b.Stop)

	srv := newTestServer(t, withReceivers(b))
	url := startTestServer(t, srv)

	first := dialReceiver(t, url)
	second := dialReceiver(t, url)

	require.Eventually(t, func() bool {
		return b.ReceiverCount() == 2
	}, time.Second, 10*time.Millisecond)

	payload := []byte(`{"action":"play","url":"spotify:playlist:1","mood":"happy"}`)
	delivered, err := b.Broadcast(payload)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, msgType)
		assert.JSONEq(t, string(payload), string(msg))
	}

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool {
		return b.ReceiverCount() == 1
	}, time.Second, 10*time.Millisecond)
}

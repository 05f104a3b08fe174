package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	"github.com/pscheid92/moodbridge/internal/domain"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// clientWriter owns all writes to one receiver connection.
type clientWriter struct {
	handle      domain.ReceiverHandle
	connection  *websocket.Conn
	clock       clockwork.Clock
	metrics     *metrics.ReceiverMetrics
	sendChannel chan []byte
	doneChannel chan struct{}
	onFailure   func(domain.ReceiverHandle, error)
	stopOnce    sync.Once
	failOnce    sync.Once
	wg          sync.WaitGroup
}

func newClientWriter(
	handle domain.ReceiverHandle,
	connection *websocket.Conn,
	clock clockwork.Clock,
	queueSize int,
	m *metrics.ReceiverMetrics,
	onFailure func(domain.ReceiverHandle, error),
) *clientWriter {
	cw := &clientWriter{
		handle:      handle,
		connection:  connection,
		clock:       clock,
		metrics:     m,
		sendChannel: make(chan []byte, queueSize),
		doneChannel: make(chan struct{}),
		onFailure:   onFailure,
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			start := cw.clock.Now()
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.fail(err)
				return
			}
			cw.metrics.SendDuration.Observe(cw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.fail(err)
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// fail reports a broken connection to the registry as a delivery error
// without blocking the writer, since the registry waits for this goroutine
// when it unregisters.
func (cw *clientWriter) fail(cause error) {
	cw.failOnce.Do(func() {
		select {
		case <-cw.doneChannel:
			return
		default:
		}
		if cw.onFailure != nil {
			err := apperrors.DeliveryError("receiver write failed", cause).
				WithField("receiver_id", cw.handle.String())
			go cw.onFailure(cw.handle, err)
		}
	})
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// The close frame must not race a data write from run.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// configurePongHandler extends the read deadline on every pong. The read pump
// owned by the HTTP handler is what actually processes pongs.
func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}

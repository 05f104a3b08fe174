package broadcast

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	"github.com/pscheid92/moodbridge/internal/domain"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
)

const (
	commandTimeout    = 5 * time.Second
	stopTimeout       = 10 * time.Second
	commandBufferSize = 256

	DefaultQueueSize    = 16
	DefaultMaxReceivers = 1000
)

const (
	evictQueueFull  = "queue_full"
	evictWriteError = "write_error"
	evictClosed     = "closed"
)

type Config struct {
	MaxReceivers int
	QueueSize    int
}

type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	connection *websocket.Conn
	reply      chan registerReply
}

type registerReply struct {
	handle domain.ReceiverHandle
	err    error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	handle domain.ReceiverHandle
	reason string
	cause  error
}

type broadcastCmd struct {
	baseBroadcasterCmd
	payload []byte
	reply   chan int
}

type countCmd struct {
	baseBroadcasterCmd
	reply chan int
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster is the registry of live receivers.
type Broadcaster struct {
	cmdCh        chan broadcasterCmd
	clock        clockwork.Clock
	metrics      *metrics.ReceiverMetrics
	receivers    map[domain.ReceiverHandle]*clientWriter
	maxReceivers int
	queueSize    int
	done         chan struct{}
	stopOnce     sync.Once
	stopTimeout  time.Duration
}

func NewBroadcaster(clock clockwork.Clock, m *metrics.ReceiverMetrics, cfg Config) *Broadcaster {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.MaxReceivers < 1 {
		cfg.MaxReceivers = DefaultMaxReceivers
	}

	b := &Broadcaster{
		cmdCh:        make(chan broadcasterCmd, commandBufferSize),
		clock:        clock,
		metrics:      m,
		receivers:    make(map[domain.ReceiverHandle]*clientWriter),
		maxReceivers: cfg.MaxReceivers,
		queueSize:    cfg.QueueSize,
		done:         make(chan struct{}),
		stopTimeout:  stopTimeout,
	}
	go b.run()
	return b
}

// Register adds a connection to the live set and starts its writer.
// It fails only when the registry is stopped, unresponsive or at capacity;
// the caller keeps ownership of the connection in that case.
func (b *Broadcaster) Register(conn *websocket.Conn) (domain.ReceiverHandle, error) {
	reply := make(chan registerReply, 1)
	if err := b.send(registerCmd{connection: conn, reply: reply}); err != nil {
		return domain.ReceiverHandle{}, err
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case r := <-reply:
		return r.handle, r.err
	case <-b.done:
		return domain.ReceiverHandle{}, domain.ErrRegistryStopped
	case <-timer.Chan():
		return domain.ReceiverHandle{}, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a receiver and closes its connection.
// Unknown or already removed handles are ignored.
func (b *Broadcaster) Unregister(handle domain.ReceiverHandle) {
	_ = b.send(unregisterCmd{handle: handle, reason: evictClosed})
}

func (b *Broadcaster) unregisterAfterError(handle domain.ReceiverHandle, cause error) {
	_ = b.send(unregisterCmd{handle: handle, reason: evictWriteError, cause: cause})
}

// Broadcast queues payload to every receiver registered when the command is
// processed, and returns how many receivers it was queued to. Zero receivers
// is not an error.
func (b *Broadcaster) Broadcast(payload []byte) (int, error) {
	msg := make([]byte, len(payload))
	copy(msg, payload)

	reply := make(chan int, 1)
	if err := b.send(broadcastCmd{payload: msg, reply: reply}); err != nil {
		return 0, err
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-reply:
		return n, nil
	case <-b.done:
		return 0, domain.ErrRegistryStopped
	case <-timer.Chan():
		return 0, fmt.Errorf("broadcast command timed out after %v", commandTimeout)
	}
}

// ReceiverCount returns the number of registered receivers, or -1 if the
// registry did not answer in time.
func (b *Broadcaster) ReceiverCount() int {
	reply := make(chan int, 1)
	if err := b.send(countCmd{reply: reply}); err != nil {
		return 0
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-reply:
		return n
	case <-b.done:
		return 0
	case <-timer.Chan():
		slog.Warn("ReceiverCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes every receiver with a close frame and ends the registry goroutine.
// It blocks until shutdown completes or the stop timeout passes. Safe to call more than once.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		if err := b.send(stopCmd{}); err != nil {
			return
		}

		timeout := b.clock.NewTimer(b.stopTimeout)
		defer timeout.Stop()

		select {
		case <-b.done:
			slog.Info("Broadcaster stopped gracefully")
		case <-timeout.Chan():
			slog.Error("Broadcaster stop timeout exceeded, registry goroutine may have leaked",
				"timeout", b.stopTimeout)
		}
	})
}

func (b *Broadcaster) send(cmd broadcasterCmd) error {
	select {
	case <-b.done:
		return domain.ErrRegistryStopped
	default:
	}

	select {
	case b.cmdCh <- cmd:
		return nil
	case <-b.done:
		return domain.ErrRegistryStopped
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			b.metrics.RegistryPanics.Inc()
			b.closeAllReceivers("registry failure")
		}
	}()

	depthTicker := b.clock.NewTicker(time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(b.cmdCh)
			b.metrics.CommandQueueDepth.Set(float64(depth))
			if depth > commandBufferSize*4/5 {
				slog.Warn("Command channel near capacity", "depth", depth, "capacity", cap(b.cmdCh))
			}

		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				b.handleRegister(c)
			case unregisterCmd:
				b.handleUnregister(c.handle, c.reason, c.cause)
			case broadcastCmd:
				c.reply <- b.handleBroadcast(c.payload)
			case countCmd:
				c.reply <- len(b.receivers)
			case stopCmd:
				b.handleStop()
				return
			default:
				slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if len(b.receivers) >= b.maxReceivers {
		slog.Warn("Rejecting receiver: max receivers reached", "max_receivers", b.maxReceivers)
		c.reply <- registerReply{err: fmt.Errorf("%w: %d receivers", domain.ErrRegistryFull, b.maxReceivers)}
		return
	}

	handle := domain.NewReceiverHandle()
	b.receivers[handle] = newClientWriter(handle, c.connection, b.clock, b.queueSize, b.metrics, b.unregisterAfterError)
	b.metrics.ActiveReceivers.Set(float64(len(b.receivers)))

	slog.Info("Receiver connected", "receiver_id", handle.String(), "receivers", len(b.receivers))
	c.reply <- registerReply{handle: handle}
}

// handleUnregister removes a receiver. A non-nil cause is the delivery error
// that got the receiver evicted.
func (b *Broadcaster) handleUnregister(handle domain.ReceiverHandle, reason string, cause error) {
	cw, ok := b.receivers[handle]
	if !ok {
		return
	}

	if cause != nil {
		slog.Warn("Receiver delivery failed, evicting",
			"receiver_id", handle.String(),
			"reason", reason,
			"error_type", apperrors.AsStructuredError(cause).Type,
			"error", cause)
	}

	cw.stop()
	delete(b.receivers, handle)
	b.metrics.ActiveReceivers.Set(float64(len(b.receivers)))
	if reason != evictClosed {
		b.metrics.Evictions.WithLabelValues(reason).Inc()
	}

	slog.Info("Receiver disconnected", "receiver_id", handle.String(), "reason", reason, "receivers", len(b.receivers))
}

func (b *Broadcaster) handleBroadcast(payload []byte) int {
	if len(b.receivers) == 0 {
		slog.Warn("No receivers connected, command not delivered")
		b.metrics.Broadcasts.WithLabelValues("no_receivers").Inc()
		return 0
	}

	var slow []domain.ReceiverHandle
	queued := 0
	for handle, writer := range b.receivers {
		select {
		case writer.sendChannel <- payload:
			queued++
		default:
			slow = append(slow, handle)
		}
	}

	for _, handle := range slow {
		cause := apperrors.DeliveryError("receiver queue full", nil).
			WithField("receiver_id", handle.String()).
			WithField("queue_size", cap(b.receivers[handle].sendChannel))
		b.handleUnregister(handle, evictQueueFull, cause)
	}

	b.metrics.Broadcasts.WithLabelValues("delivered").Inc()
	b.metrics.MessagesQueued.Add(float64(queued))
	return queued
}

func (b *Broadcaster) handleStop() {
	total := len(b.receivers)
	slog.Info("Broadcaster shutting down", "receivers", total)

	b.closeAllReceivers("server shutting down")

	slog.Info("Broadcaster shutdown complete", "disconnected_receivers", total)
}

func (b *Broadcaster) closeAllReceivers(reason string) {
	for handle, cw := range b.receivers {
		cw.stopGraceful(reason)
		delete(b.receivers, handle)
	}
	b.metrics.ActiveReceivers.Set(0)
}

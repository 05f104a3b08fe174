// Package bridge is the single serial path from raw source payloads to
// receivers: decode, debounce, encode, broadcast.
//
// Sources hand payloads to Submit from any goroutine. One Run worker drains
// the bounded inbox in arrival order, so the debounce filter always sees a
// single writer.
package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/moodbridge/internal/adapter/metrics"
	"github.com/pscheid92/moodbridge/internal/debounce"
	"github.com/pscheid92/moodbridge/internal/domain"
	"github.com/pscheid92/moodbridge/internal/message"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
	"github.com/pscheid92/moodbridge/internal/platform/logging"
)

const DefaultInboxSize = 64

const resultMalformed = "malformed"

type inboundEvent struct {
	id      string
	payload []byte
}

type Bridge struct {
	decoder     *message.Decoder
	filter      *debounce.Filter
	broadcaster domain.Broadcaster
	clock       clockwork.Clock
	metrics     *metrics.BridgeMetrics
	inbox       chan inboundEvent
}

func New(decoder *message.Decoder, filter *debounce.Filter, broadcaster domain.Broadcaster, clock clockwork.Clock, m *metrics.BridgeMetrics, inboxSize int) *Bridge {
	if inboxSize < 1 {
		inboxSize = DefaultInboxSize
	}
	return &Bridge{
		decoder:     decoder,
		filter:      filter,
		broadcaster: broadcaster,
		clock:       clock,
		metrics:     m,
		inbox:       make(chan inboundEvent, inboxSize),
	}
}

// Submit queues a raw payload for processing. It blocks while the inbox is
// full and gives up when ctx is done.
func (b *Bridge) Submit(ctx context.Context, payload []byte) error {
	ev := inboundEvent{id: logging.NewEventID(), payload: append([]byte(nil), payload...)}

	select {
	case b.inbox <- ev:
		b.metrics.InboxDepth.Set(float64(len(b.inbox)))
		return nil
	case <-ctx.Done():
		b.metrics.EventsTotal.WithLabelValues("dropped").Inc()
		return fmt.Errorf("submit mood event: %w", ctx.Err())
	}
}

// Handler adapts Submit to the callback event sources deliver payloads to.
func (b *Bridge) Handler() domain.PayloadHandler {
	return func(ctx context.Context, payload []byte) {
		if err := b.Submit(ctx, payload); err != nil {
			slog.WarnContext(ctx, "Dropping mood event", "error", err)
		}
	}
}

// Run processes queued events one at a time until ctx is cancelled. Input
// errors are already logged as drops; anything else is logged here.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.inbox:
			b.metrics.InboxDepth.Set(float64(len(b.inbox)))
			evCtx := logging.WithEventID(ctx, ev.id)
			if _, err := b.Process(evCtx, ev.payload); err != nil && !apperrors.IsType(err, apperrors.TypeInput) {
				slog.ErrorContext(evCtx, "Failed to process mood event",
					"error_type", apperrors.AsStructuredError(err).Type, "error", err)
			}
		}
	}
}

// Process runs one payload through the pipeline synchronously. Malformed
// payloads are logged and returned as input errors without touching the
// debounce state. A broadcast error means the registry is gone.
func (b *Bridge) Process(ctx context.Context, payload []byte) (domain.Decision, error) {
	start := b.clock.Now()
	defer func() {
		b.metrics.ProcessingDuration.Observe(b.clock.Since(start).Seconds())
	}()

	ev, err := b.decoder.Decode(payload)
	if err != nil {
		b.metrics.EventsTotal.WithLabelValues(resultMalformed).Inc()
		slog.WarnContext(ctx, "Dropping malformed mood event", "error", err, "bytes", len(payload))
		return domain.Decision{}, err
	}

	decision, err := b.filter.Process(ev)
	if err != nil {
		b.metrics.EventsTotal.WithLabelValues(resultMalformed).Inc()
		slog.WarnContext(ctx, "Dropping mood event", "error", err)
		return domain.Decision{}, err
	}
	b.metrics.EventsTotal.WithLabelValues(string(decision.Reason)).Inc()

	switch decision.Reason {
	case domain.ReasonBootstrap:
		slog.InfoContext(ctx, "First mood detected, forwarding immediately", "mood", ev.Mood)
	case domain.ReasonStreak:
		slog.DebugContext(ctx, "Mood not yet stable", "mood", ev.Mood, "streak", decision.Streak)
	case domain.ReasonCooldown:
		slog.InfoContext(ctx, "Cooldown active, skipping mood", "mood", ev.Mood,
			"remaining", b.filter.CooldownRemaining())
	}

	if !decision.Forwarded() {
		return decision, nil
	}
	b.metrics.State.Set(1)

	cmd, err := message.Encode(decision.Event)
	if err != nil {
		return decision, apperrors.InternalError("encode mood command", err).WithField("mood", ev.Mood)
	}

	n, err := b.broadcaster.Broadcast(cmd)
	if err != nil {
		return decision, apperrors.UnavailableError("broadcast mood command", err).WithField("mood", ev.Mood)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Mood command sent", "mood", ev.Mood, "url", ev.Resource, "action", ev.Action, "receivers", n)
	}

	return decision, nil
}

// State reports Idle until the first mood is forwarded.
func (b *Bridge) State() domain.BridgeState {
	return b.filter.State()
}

package domain

import "context"

// PayloadHandler receives raw payloads from an event source, one at a time.
type PayloadHandler func(ctx context.Context, payload []byte)

// EventSource delivers raw mood payloads from a publish/subscribe channel.
//
// Start subscribes and returns once the subscription is live; payloads are then
// delivered to the handler until Close. Check reports whether the upstream
// connection is currently usable.
type EventSource interface {
	Start(ctx context.Context, handler PayloadHandler) error
	Check(ctx context.Context) error
	Close() error
}

// Publisher sends raw payloads to the topic an EventSource listens on.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

package redis

import (
	"context"

	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Publisher publishes raw mood payloads to a channel.
type Publisher struct {
	rdb     *goredis.Client
	channel string
}

func NewPublisher(rdb *goredis.Client, channel string) *Publisher {
	return &Publisher{rdb: rdb, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, payload []byte) error {
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return apperrors.UpstreamError("failed to publish mood event", err).WithField("channel", p.channel)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}

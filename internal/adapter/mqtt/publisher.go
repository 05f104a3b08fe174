package mqtt

import (
	"context"

	paho "github.com/eclipse/paho.mqtt.golang"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
)

// Publisher publishes raw mood payloads to the configured topic.
type Publisher struct {
	cfg    Config
	client paho.Client
}

// NewPublisher connects to the broker before returning.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	client := paho.NewClient(newClientOptions(cfg))
	if err := connect(ctx, client, cfg); err != nil {
		return nil, err
	}
	return &Publisher{cfg: cfg, client: client}, nil
}

func (p *Publisher) Publish(ctx context.Context, payload []byte) error {
	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, false, payload)
	if err := waitToken(ctx, p.cfg.clock(), token, p.cfg.connectTimeout()); err != nil {
		return apperrors.UpstreamError("failed to publish mood event", err).WithField("topic", p.cfg.Topic)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiesceMs)
	return nil
}

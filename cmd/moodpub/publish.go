package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/moodbridge/internal/adapter/mqtt"
	"github.com/pscheid92/moodbridge/internal/adapter/redis"
	"github.com/pscheid92/moodbridge/internal/domain"
	"github.com/pscheid92/moodbridge/internal/message"
	"github.com/pscheid92/moodbridge/internal/platform/config"
	"github.com/spf13/cobra"
)

type publishOptions struct {
	source   string
	broker   string
	redisURL string
	topic    string
	clientID string
	qos      int
	url      string
	action   string
	raw      bool
	repeat   int
	interval time.Duration
}

type publisherFactory func(ctx context.Context, opts publishOptions) (domain.Publisher, error)

func defaultPublisherFactory(ctx context.Context, opts publishOptions) (domain.Publisher, error) {
	switch opts.source {
	case config.SourceMQTT:
		pub, err := mqtt.NewPublisher(ctx, mqtt.Config{
			BrokerURL:       opts.broker,
			ClientID:        opts.clientID,
			Topic:           opts.topic,
			QoS:             byte(opts.qos),
			ConnectAttempts: 1,
		})
		if err != nil {
			return nil, err
		}
		return pub, nil
	case config.SourceRedis:
		client, err := redis.NewClient(opts.redisURL, nil)
		if err != nil {
			return nil, err
		}
		return redis.NewPublisher(client, opts.topic), nil
	default:
		return nil, fmt.Errorf("unknown source %q, want %q or %q", opts.source, config.SourceMQTT, config.SourceRedis)
	}
}

func newRootCmd(factory publisherFactory, clock clockwork.Clock) *cobra.Command {
	opts := publishOptions{}

	cmd := &cobra.Command{
		Use:   "moodpub <mood> [mood...]",
		Short: "Publish mood events to the moodbridge event source",
		Long: `Publishes one event per mood argument to MQTT or Redis. With --repeat the
whole sequence is sent several times, pausing --interval between rounds.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, clock, factory, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.source, "source", config.SourceMQTT, "event source to publish to (mqtt or redis)")
	f.StringVar(&opts.broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	f.StringVar(&opts.redisURL, "redis-url", "redis://localhost:6379", "Redis URL")
	f.StringVar(&opts.topic, "topic", "ai/mood", "MQTT topic or Redis channel")
	f.StringVar(&opts.clientID, "client-id", "moodpub", "MQTT client ID")
	f.IntVar(&opts.qos, "qos", 0, "MQTT QoS level")
	f.StringVar(&opts.url, "url", "", "resource to play for every mood")
	f.StringVar(&opts.action, "action", domain.ActionPlay, "player action")
	f.BoolVar(&opts.raw, "raw", false, "publish bare mood labels instead of JSON events")
	f.IntVar(&opts.repeat, "repeat", 1, "number of rounds to publish")
	f.DurationVar(&opts.interval, "interval", time.Second, "pause between rounds")

	return cmd
}

func runPublish(cmd *cobra.Command, clock clockwork.Clock, factory publisherFactory, opts publishOptions, moods []string) error {
	if opts.repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1")
	}
	if opts.qos < 0 || opts.qos > 2 {
		return fmt.Errorf("--qos must be 0, 1 or 2")
	}

	payloads := make([][]byte, 0, len(moods))
	for _, mood := range moods {
		payload, err := buildPayload(opts, mood)
		if err != nil {
			return err
		}
		payloads = append(payloads, payload)
	}

	ctx := cmd.Context()
	pub, err := factory(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}
	defer func() { _ = pub.Close() }()

	out := cmd.OutOrStdout()
	for round := 1; round <= opts.repeat; round++ {
		if round > 1 && opts.interval > 0 {
			select {
			case <-clock.After(opts.interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, payload := range payloads {
			if err := pub.Publish(ctx, payload); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			fmt.Fprintf(out, "Sent to %s: %s\n", opts.topic, payload)
		}
	}
	return nil
}

func buildPayload(opts publishOptions, mood string) ([]byte, error) {
	if opts.raw {
		return []byte(mood), nil
	}
	payload, err := message.EncodeEvent(domain.MoodEvent{Mood: mood, Resource: opts.url, Action: opts.action})
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", mood, err)
	}
	return payload, nil
}

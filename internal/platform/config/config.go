package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pscheid92/moodbridge/internal/message"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
	"go-simpler.org/env"
)

const (
	SourceMQTT  = "mqtt"
	SourceRedis = "redis"
)

type Config struct {
	AppEnv     string `env:"APP_ENV" default:"development"`
	ListenHost string `env:"LISTEN_HOST"`
	Port       string `env:"PORT" default:"8765"`
	LogLevel   string `env:"LOG_LEVEL" default:"info"`
	LogFormat  string `env:"LOG_FORMAT" default:"text"`

	EventSource string `env:"EVENT_SOURCE" default:"mqtt"`
	Topic       string `env:"MOOD_TOPIC" default:"ai/mood"`

	MQTTBroker   string `env:"MQTT_BROKER" default:"localhost"`
	MQTTPort     int    `env:"MQTT_PORT" default:"1883"`
	MQTTClientID string `env:"MQTT_CLIENT_ID" default:"music_cmd_sub"`
	MQTTQoS      int    `env:"MQTT_QOS" default:"0"`

	RedisURL string `env:"REDIS_URL"`

	SourceConnectAttempts int `env:"SOURCE_CONNECT_ATTEMPTS" default:"5"`

	DebounceStreak   int           `env:"DEBOUNCE_STREAK" default:"5"`
	DebounceCooldown time.Duration `env:"DEBOUNCE_COOLDOWN" default:"30s"`

	MaxReceivers         int     `env:"MAX_RECEIVERS" default:"1000"`
	ReceiverQueueSize    int     `env:"RECEIVER_QUEUE_SIZE" default:"16"`
	ReceiverConnectRate  float64 `env:"RECEIVER_CONNECT_RATE" default:"5"`
	ReceiverConnectBurst int     `env:"RECEIVER_CONNECT_BURST" default:"10"`

	// AllowedOrigins is a comma-separated origin allowlist for receiver pages, "*" allows any.
	AllowedOrigins string `env:"ALLOWED_ORIGINS" default:"*"`

	// MoodPlaylists maps bare mood labels to resources, e.g. "happy=spotify:playlist:1,sad=spotify:playlist:2".
	MoodPlaylists string `env:"MOOD_PLAYLISTS"`

	playlists map[string]string
}

// Load reads an optional .env file, then the environment, and validates the result.
// Every error is a config error: the bridge must not start with it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, apperrors.ConfigError("failed to load environment variables", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, apperrors.ConfigError(err.Error(), nil)
	}

	return &cfg, nil
}

// ListenAddr is the host:port receivers connect to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.ListenHost, c.Port)
}

// MQTTBrokerURL is the broker address in the form paho expects.
func (c *Config) MQTTBrokerURL() string {
	return "tcp://" + net.JoinHostPort(c.MQTTBroker, strconv.Itoa(c.MQTTPort))
}

// IsDevelopment reports whether the bridge runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Origins returns the parsed ALLOWED_ORIGINS list.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, strings.TrimSuffix(o, "/"))
		}
	}
	return origins
}

// Playlists returns the parsed MOOD_PLAYLISTS lookup.
func (c *Config) Playlists() map[string]string {
	return c.playlists
}

func validate(cfg *Config) error {
	if _, err := strconv.ParseUint(cfg.Port, 10, 16); err != nil {
		return fmt.Errorf("PORT must be a valid port number, got %q", cfg.Port)
	}

	switch cfg.EventSource {
	case SourceMQTT:
		if cfg.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required")
		}
		if cfg.MQTTPort < 1 || cfg.MQTTPort > 65535 {
			return fmt.Errorf("MQTT_PORT must be between 1 and 65535")
		}
		if cfg.MQTTQoS < 0 || cfg.MQTTQoS > 2 {
			return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
		}
	case SourceRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when EVENT_SOURCE is redis")
		}
	default:
		return fmt.Errorf("EVENT_SOURCE must be %q or %q, got %q", SourceMQTT, SourceRedis, cfg.EventSource)
	}

	if strings.TrimSpace(cfg.Topic) == "" {
		return fmt.Errorf("MOOD_TOPIC is required")
	}
	if cfg.SourceConnectAttempts < 1 {
		return fmt.Errorf("SOURCE_CONNECT_ATTEMPTS must be at least 1")
	}
	if cfg.DebounceStreak < 1 {
		return fmt.Errorf("DEBOUNCE_STREAK must be at least 1")
	}
	if cfg.DebounceCooldown < 0 {
		return fmt.Errorf("DEBOUNCE_COOLDOWN must not be negative")
	}
	if cfg.MaxReceivers < 1 {
		return fmt.Errorf("MAX_RECEIVERS must be at least 1")
	}
	if cfg.ReceiverQueueSize < 1 {
		return fmt.Errorf("RECEIVER_QUEUE_SIZE must be at least 1")
	}
	if cfg.ReceiverConnectRate <= 0 || cfg.ReceiverConnectBurst < 1 {
		return fmt.Errorf("RECEIVER_CONNECT_RATE and RECEIVER_CONNECT_BURST must be positive")
	}

	if len(cfg.Origins()) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS must not be empty, use \"*\" to allow any origin")
	}

	playlists, err := parsePlaylists(cfg.MoodPlaylists)
	if err != nil {
		return err
	}
	cfg.playlists = playlists

	return nil
}

func parsePlaylists(raw string) (map[string]string, error) {
	playlists := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return playlists, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		label, resource, ok := strings.Cut(pair, "=")
		mood := message.Normalize(label)
		resource = strings.TrimSpace(resource)
		if !ok || mood == "" || resource == "" {
			return nil, fmt.Errorf("MOOD_PLAYLISTS entry %q must have the form mood=resource", pair)
		}
		if _, dup := playlists[mood]; dup {
			return nil, fmt.Errorf("MOOD_PLAYLISTS maps mood %q more than once (entry %q)", mood, pair)
		}
		playlists[mood] = resource
	}
	return playlists, nil
}

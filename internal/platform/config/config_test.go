package config

import (
	"testing"
	"time"

	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8765", cfg.Port)
	assert.Equal(t, SourceMQTT, cfg.EventSource)
	assert.Equal(t, "ai/mood", cfg.Topic)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBrokerURL())
	assert.Equal(t, "music_cmd_sub", cfg.MQTTClientID)
	assert.Equal(t, 5, cfg.DebounceStreak)
	assert.Equal(t, 30*time.Second, cfg.DebounceCooldown)
	assert.Equal(t, 16, cfg.ReceiverQueueSize)
	assert.Equal(t, ":8765", cfg.ListenAddr())
	assert.Empty(t, cfg.Playlists())
	assert.Equal(t, []string{"*"}, cfg.Origins())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://player.example.com/, http://kiosk.local ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://player.example.com", "http://kiosk.local"}, cfg.Origins())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LISTEN_HOST", "127.0.0.1")
	t.Setenv("MOOD_TOPIC", "music/cmd")
	t.Setenv("MQTT_BROKER", "broker.local")
	t.Setenv("MQTT_PORT", "1884")
	t.Setenv("DEBOUNCE_STREAK", "3")
	t.Setenv("DEBOUNCE_COOLDOWN", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr())
	assert.Equal(t, "music/cmd", cfg.Topic)
	assert.Equal(t, "tcp://broker.local:1884", cfg.MQTTBrokerURL())
	assert.Equal(t, 3, cfg.DebounceStreak)
	assert.Equal(t, time.Minute, cfg.DebounceCooldown)
}

func TestLoad_RedisSource(t *testing.T) {
	t.Setenv("EVENT_SOURCE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceRedis, cfg.EventSource)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
}

func TestLoad_Playlists(t *testing.T) {
	t.Setenv("MOOD_PLAYLISTS", "Happy=spotify:playlist:1, sad = spotify:playlist:2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"happy": "spotify:playlist:1",
		"sad":   "spotify:playlist:2",
	}, cfg.Playlists())
}

func TestLoad_PlaylistKeysUseDecoderMoods(t *testing.T) {
	t.Setenv("MOOD_PLAYLISTS", "surprise=spotify:playlist:1, Neutral=spotify:playlist:2, fear=spotify:playlist:3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"happy":    "spotify:playlist:1",
		"relaxed":  "spotify:playlist:2",
		"stressed": "spotify:playlist:3",
	}, cfg.Playlists())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown source", map[string]string{"EVENT_SOURCE": "kafka"}, "EVENT_SOURCE must be"},
		{"redis without url", map[string]string{"EVENT_SOURCE": "redis"}, "REDIS_URL is required"},
		{"bad port", map[string]string{"PORT": "http"}, "PORT must be a valid port number"},
		{"port out of range", map[string]string{"PORT": "70000"}, "PORT must be a valid port number"},
		{"mqtt port out of range", map[string]string{"MQTT_PORT": "0"}, "MQTT_PORT must be between"},
		{"bad qos", map[string]string{"MQTT_QOS": "3"}, "MQTT_QOS must be 0, 1 or 2"},
		{"zero streak", map[string]string{"DEBOUNCE_STREAK": "0"}, "DEBOUNCE_STREAK must be at least 1"},
		{"negative cooldown", map[string]string{"DEBOUNCE_COOLDOWN": "-1s"}, "DEBOUNCE_COOLDOWN must not be negative"},
		{"zero queue", map[string]string{"RECEIVER_QUEUE_SIZE": "0"}, "RECEIVER_QUEUE_SIZE must be at least 1"},
		{"zero attempts", map[string]string{"SOURCE_CONNECT_ATTEMPTS": "0"}, "SOURCE_CONNECT_ATTEMPTS must be at least 1"},
		{"malformed playlists", map[string]string{"MOOD_PLAYLISTS": "happy"}, "must have the form mood=resource"},
		{"duplicate playlist mood", map[string]string{"MOOD_PLAYLISTS": "happy=a,HAPPY=b"}, `maps mood "happy" more than once`},
		{"classifier alias collides", map[string]string{"MOOD_PLAYLISTS": "happy=a,surprise=b"}, `maps mood "happy" more than once`},
		{"empty origins", map[string]string{"ALLOWED_ORIGINS": " , "}, "ALLOWED_ORIGINS must not be empty"},
		{"blank topic", map[string]string{"MOOD_TOPIC": "  "}, "MOOD_TOPIC is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, apperrors.IsType(err, apperrors.TypeConfig))
		})
	}
}

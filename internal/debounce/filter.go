// Package debounce decides which mood events are significant enough to forward.
//
// The first event ever seen is forwarded immediately. After that an event is
// forwarded only when its mood has been seen Streak times in a row and at
// least Cooldown has passed since the previous forward. A mood change resets
// the streak but not the cooldown.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/moodbridge/internal/domain"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
)

const (
	DefaultStreak   = 5
	DefaultCooldown = 30 * time.Second
)

type Config struct {
	Streak   int
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{Streak: DefaultStreak, Cooldown: DefaultCooldown}
}

// State is a copy of the filter's internal record.
type State struct {
	LastMood         string
	LastForwardedAt  time.Time
	ConsecutiveCount int
	HasForwardedAny  bool
}

// Filter is safe for concurrent use; each Process call is evaluated atomically.
type Filter struct {
	clock clockwork.Clock
	cfg   Config

	mu    sync.Mutex
	state State
}

func NewFilter(clock clockwork.Clock, cfg Config) *Filter {
	if cfg.Streak < 1 {
		cfg.Streak = DefaultStreak
	}
	return &Filter{clock: clock, cfg: cfg}
}

// Process applies one event to the filter state and returns the verdict.
// An event without a mood is rejected as an input error and leaves the state untouched.
func (f *Filter) Process(ev domain.MoodEvent) (domain.Decision, error) {
	if ev.Mood == "" {
		return domain.Decision{}, apperrors.InputError("mood event has no mood", nil)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Real clocks carry a monotonic reading, so Sub below ignores wall-clock jumps.
	now := f.clock.Now()
	s := &f.state

	if !s.HasForwardedAny {
		s.HasForwardedAny = true
		s.LastMood = ev.Mood
		s.LastForwardedAt = now
		s.ConsecutiveCount = 1
		return f.decide(domain.Forward, domain.ReasonBootstrap, ev), nil
	}

	if ev.Mood == s.LastMood {
		s.ConsecutiveCount++
	} else {
		s.ConsecutiveCount = 1
		s.LastMood = ev.Mood
	}

	if s.ConsecutiveCount < f.cfg.Streak {
		return f.decide(domain.Suppress, domain.ReasonStreak, ev), nil
	}

	if now.Sub(s.LastForwardedAt) < f.cfg.Cooldown {
		return f.decide(domain.Suppress, domain.ReasonCooldown, ev), nil
	}

	s.LastForwardedAt = now
	return f.decide(domain.Forward, domain.ReasonForwarded, ev), nil
}

func (f *Filter) decide(v domain.Verdict, r domain.Reason, ev domain.MoodEvent) domain.Decision {
	return domain.Decision{Verdict: v, Reason: r, Event: ev, Streak: f.state.ConsecutiveCount}
}

// State reports whether any mood has been forwarded yet.
func (f *Filter) State() domain.BridgeState {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.HasForwardedAny {
		return domain.StateActive
	}
	return domain.StateIdle
}

func (f *Filter) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// CooldownRemaining is how long until a corroborated mood may be forwarded again.
func (f *Filter) CooldownRemaining() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.state.HasForwardedAny {
		return 0
	}
	remaining := f.cfg.Cooldown - f.clock.Since(f.state.LastForwardedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

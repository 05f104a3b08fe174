package domain

type Verdict int

const (
	Suppress Verdict = iota
	Forward
)

func (v Verdict) String() string {
	if v == Forward {
		return "forward"
	}
	return "suppress"
}

// Reason explains a Decision. It is used as a metrics label and in operator logs.
type Reason string

const (
	ReasonBootstrap Reason = "bootstrap" // first event ever seen
	ReasonForwarded Reason = "forwarded" // streak and cooldown both satisfied
	ReasonStreak    Reason = "streak"    // not enough consecutive readings yet
	ReasonCooldown  Reason = "cooldown"  // too soon after the last forward
)

// Decision is the debounce filter's verdict for a single event.
type Decision struct {
	Verdict Verdict
	Reason  Reason
	Event   MoodEvent
	// Streak is the consecutive count for Event.Mood after this event was applied.
	Streak int
}

func (d Decision) Forwarded() bool {
	return d.Verdict == Forward
}

// BridgeState is Idle until the first event is forwarded, then Active forever.
type BridgeState int

const (
	StateIdle BridgeState = iota
	StateActive
)

func (s BridgeState) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

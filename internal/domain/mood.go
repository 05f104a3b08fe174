package domain

// ActionPlay is the action assumed when a publisher does not name one.
const ActionPlay = "play"

// MoodEvent is one reading from the event source. It is never mutated after decoding.
type MoodEvent struct {
	Mood     string
	Resource string
	Action   string
}

// Command is the message pushed to every receiver when a mood is forwarded.
type Command struct {
	Action string `json:"action"`
	URL    string `json:"url"`
	Mood   string `json:"mood"`
}

func (e MoodEvent) Command() Command {
	return Command{Action: e.Action, URL: e.Resource, Mood: e.Mood}
}

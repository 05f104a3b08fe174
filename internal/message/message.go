// Package message converts between wire payloads and domain values.
//
// Inbound payloads are either a JSON object or a bare mood label as published
// by the camera classifier. Outbound commands are JSON objects.
package message

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pscheid92/moodbridge/internal/domain"
	apperrors "github.com/pscheid92/moodbridge/internal/platform/errors"
)

const maxLabelBytes = 64

// classifierLabels maps raw emotion classifier output onto the moods receivers know about.
var classifierLabels = map[string]string{
	"surprise": "happy",
	"disgust":  "angry",
	"fear":     "stressed",
	"neutral":  "relaxed",
}

// inbound accepts both the current field names and the ones older publishers send.
type inbound struct {
	Mood     string `json:"mood"`
	Playlist string `json:"playlist"`
	Resource string `json:"resource"`
	URL      string `json:"url"`
	Action   string `json:"action"`
}

type Decoder struct {
	playlists map[string]string
}

// NewDecoder returns a decoder that fills in missing resources from playlists,
// keyed by normalized mood.
func NewDecoder(playlists map[string]string) *Decoder {
	if playlists == nil {
		playlists = map[string]string{}
	}
	return &Decoder{playlists: playlists}
}

// Decode parses one inbound payload. Any JSON value other than an object is
// rejected, so literals like null or 42 never reach the filter as moods.
// Every failure is an input error.
func (d *Decoder) Decode(payload []byte) (domain.MoodEvent, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return domain.MoodEvent{}, apperrors.InputError("empty payload", nil)
	}

	if trimmed[0] == '{' {
		return d.decodeJSON(trimmed)
	}
	if json.Valid(trimmed) {
		return domain.MoodEvent{}, apperrors.InputError("mood event must be a JSON object", nil).
			WithField("bytes", len(trimmed))
	}
	return d.decodeLabel(trimmed)
}

func (d *Decoder) decodeJSON(payload []byte) (domain.MoodEvent, error) {
	var in inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		return domain.MoodEvent{}, apperrors.InputError("malformed mood event", err)
	}

	mood := Normalize(firstNonEmpty(in.Mood, in.Playlist))
	if mood == "" {
		return domain.MoodEvent{}, apperrors.InputError("missing mood field", nil)
	}

	resource := strings.TrimSpace(firstNonEmpty(in.Resource, in.URL))
	if resource == "" {
		resource = d.playlists[mood]
	}

	action := strings.TrimSpace(in.Action)
	if action == "" {
		action = domain.ActionPlay
	}

	return domain.MoodEvent{Mood: mood, Resource: resource, Action: action}, nil
}

func (d *Decoder) decodeLabel(payload []byte) (domain.MoodEvent, error) {
	if len(payload) > maxLabelBytes || !utf8.Valid(payload) {
		return domain.MoodEvent{}, apperrors.InputError("unparseable mood payload", nil).
			WithField("bytes", len(payload))
	}

	if first, _ := utf8.DecodeRune(payload); !unicode.IsLetter(first) {
		return domain.MoodEvent{}, apperrors.InputError("mood label must start with a letter", nil).
			WithField("bytes", len(payload))
	}

	for _, r := range string(payload) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return domain.MoodEvent{}, apperrors.InputError("unparseable mood payload", nil).
				WithField("bytes", len(payload))
		}
	}

	mood := Normalize(string(payload))
	return domain.MoodEvent{Mood: mood, Resource: d.playlists[mood], Action: domain.ActionPlay}, nil
}

// Normalize trims and lower-cases a label and maps classifier output to a mood.
// Unknown labels pass through unchanged.
func Normalize(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if mood, ok := classifierLabels[label]; ok {
		return mood
	}
	return label
}

// Encode serializes the command receivers act on.
func Encode(ev domain.MoodEvent) ([]byte, error) {
	data, err := json.Marshal(ev.Command())
	if err != nil {
		return nil, apperrors.InternalError("failed to encode command", err)
	}
	return data, nil
}

// EncodeEvent serializes an event in the inbound wire format, for publishers.
func EncodeEvent(ev domain.MoodEvent) ([]byte, error) {
	data, err := json.Marshal(struct {
		Playlist string `json:"playlist"`
		URL      string `json:"url"`
		Action   string `json:"action"`
	}{ev.Mood, ev.Resource, ev.Action})
	if err != nil {
		return nil, apperrors.InternalError("failed to encode event", err)
	}
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package session

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// SessionRace is the session name the ranked view is computed over by default
const SessionRace = "Race"

// StorageLayout is the fixed-width UTC layout timestamps are persisted in.
// Lexical order of values in this layout equals chronological order.
const StorageLayout = "2006-01-02T15:04:05.000000000Z"

// acceptedLayouts are the timestamp layouts accepted on the wire, in order
var acceptedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// Record is one row of race-session telemetry
type Record struct {
	Location     string    `json:"location"`
	SessionName  string    `json:"session_name"`
	MeetingKey   *int64    `json:"meeting_key,omitempty"`
	SessionKey   *int64    `json:"session_key,omitempty"`
	DriverNumber int64     `json:"driver_number"`
	Position     int64     `json:"position"`
	DateTime     Timestamp `json:"datetime"`
}

// recordWire mirrors Record with integer fields kept as raw numbers
type recordWire struct {
	Location     string       `json:"location"`
	SessionName  string       `json:"session_name"`
	MeetingKey   *json.Number `json:"meeting_key"`
	SessionKey   *json.Number `json:"session_key"`
	DriverNumber json.Number  `json:"driver_number"`
	Position     json.Number  `json:"position"`
	DateTime     Timestamp    `json:"datetime"`
}

// UnmarshalJSON implements json.Unmarshaler. Integer fields also accept
// integral floats such as 1.0.
func (r *Record) UnmarshalJSON(data []byte) error {
	var wire recordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	driver, err := parseInteger("driver_number", wire.DriverNumber)
	if err != nil {
		return err
	}
	position, err := parseInteger("position", wire.Position)
	if err != nil {
		return err
	}
	meetingKey, err := parseOptionalInteger("meeting_key", wire.MeetingKey)
	if err != nil {
		return err
	}
	sessionKey, err := parseOptionalInteger("session_key", wire.SessionKey)
	if err != nil {
		return err
	}

	*r = Record{
		Location:     wire.Location,
		SessionName:  wire.SessionName,
		MeetingKey:   meetingKey,
		SessionKey:   sessionKey,
		DriverNumber: driver,
		Position:     position,
		DateTime:     wire.DateTime,
	}
	return nil
}

func parseInteger(field string, n json.Number) (int64, error) {
	if n == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s must be an integer, got %s", field, n)
	}
	return int64(f), nil
}

func parseOptionalInteger(field string, n *json.Number) (*int64, error) {
	if n == nil {
		return nil, nil
	}
	v, err := parseInteger(field, *n)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Timestamp is a point in time that accepts both zoned and zone-less
// ISO 8601 renderings. Zone-less values are read as UTC and date-only
// values as midnight UTC.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses s using the accepted wire layouts
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t.UTC()}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized datetime %q", s)
}

// StorageString renders the timestamp in StorageLayout
func (t Timestamp) StorageString() string {
	return t.UTC().Format(StorageLayout)
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("datetime must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ValidationError represents a payload validation failure at a JSON location
type ValidationError struct {
	Source  string
	Path    string
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.Source + ": " + e.Path + ": " + e.Message
	}
	return e.Source + ": " + e.Message
}

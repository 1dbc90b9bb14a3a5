// Package events decodes the line-oriented JSON feeds into domain events and
// renders flagged purchases back into the same format.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
)

var (
	// ErrNotObject is returned for lines that are not a JSON object.
	ErrNotObject = errors.New("line is not a JSON object")
	// ErrMissingEventType is returned for objects that are neither a config record nor an event.
	ErrMissingEventType = errors.New("event_type is not present")
	// ErrMissingField is returned when a field required by the event kind is absent.
	ErrMissingField = errors.New("required field missing")
	// ErrInvalidField is returned when a field cannot be converted to its type.
	ErrInvalidField = errors.New("invalid field value")
)

// timestampLayouts are tried in order when parsing the timestamp field.
// Values without a zone are read as UTC.
var timestampLayouts = []string{
	time.DateTime,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// scalar accepts either a JSON string or a bare JSON number.
type scalar struct {
	value string
	set   bool
}

func (s *scalar) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.value = strings.TrimSpace(str)
		s.set = true
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	s.value = num.String()
	s.set = true
	return nil
}

type rawRecord struct {
	EventType scalar `json:"event_type"`
	Timestamp scalar `json:"timestamp"`
	ID        scalar `json:"id"`
	Amount    scalar `json:"amount"`
	ID1       scalar `json:"id1"`
	ID2       scalar `json:"id2"`
	Degree    scalar `json:"D"`
	Window    scalar `json:"T"`
}

// Decode parses one feed line. Records with an unrecognised event_type decode
// successfully as domain.EventUnknown so the caller can report them. The
// returned Event.Raw aliases line.
func Decode(line []byte) (domain.Event, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.Event{}, ErrNotObject
	}

	var rec rawRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return domain.Event{}, fmt.Errorf("%w: %v", ErrNotObject, err)
		}
		return domain.Event{}, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	ev := domain.Event{Raw: trimmed}

	if rec.Degree.set {
		return decodeConfig(ev, rec)
	}
	if !rec.EventType.set {
		return domain.Event{}, ErrMissingEventType
	}

	ev.RawType = rec.EventType.value
	switch rec.EventType.value {
	case "purchase":
		return decodePurchase(ev, rec)
	case "befriend":
		ev.Kind = domain.EventBefriend
		return decodeFriendship(ev, rec)
	case "unfriend":
		ev.Kind = domain.EventUnfriend
		return decodeFriendship(ev, rec)
	default:
		ev.Kind = domain.EventUnknown
		return ev, nil
	}
}

func decodeConfig(ev domain.Event, rec rawRecord) (domain.Event, error) {
	degree, err := parseInt("D", rec.Degree)
	if err != nil {
		return domain.Event{}, err
	}
	window, err := parseInt("T", rec.Window)
	if err != nil {
		return domain.Event{}, err
	}
	ev.Kind = domain.EventConfig
	ev.Degree = degree
	ev.Window = window
	return ev, nil
}

func decodePurchase(ev domain.Event, rec rawRecord) (domain.Event, error) {
	id, err := parseUserID("id", rec.ID)
	if err != nil {
		return domain.Event{}, err
	}
	if !rec.Timestamp.set {
		return domain.Event{}, fmt.Errorf("%w: timestamp", ErrMissingField)
	}
	// An unreadable timestamp leaves Timestamp zero; only timestamp
	// ordering needs it, and the graph rejects it there.
	ts, _ := parseTimestamp(rec.Timestamp.value)
	if !rec.Amount.set {
		return domain.Event{}, fmt.Errorf("%w: amount", ErrMissingField)
	}
	amount, err := strconv.ParseFloat(rec.Amount.value, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.Event{}, fmt.Errorf("%w: amount %q", ErrInvalidField, rec.Amount.value)
	}

	ev.Kind = domain.EventPurchase
	ev.UserID = id
	ev.Timestamp = ts
	ev.Amount = amount
	return ev, nil
}

func decodeFriendship(ev domain.Event, rec rawRecord) (domain.Event, error) {
	a, err := parseUserID("id1", rec.ID1)
	if err != nil {
		return domain.Event{}, err
	}
	b, err := parseUserID("id2", rec.ID2)
	if err != nil {
		return domain.Event{}, err
	}
	ev.UserID = a
	ev.OtherID = b
	// friendship timestamps are informational only
	if rec.Timestamp.set {
		ev.Timestamp, _ = parseTimestamp(rec.Timestamp.value)
	}
	return ev, nil
}

func parseUserID(field string, s scalar) (domain.UserID, error) {
	if !s.set {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	id, err := domain.ParseUserID(s.value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidField, field, s.value)
	}
	return id, nil
}

func parseInt(field string, s scalar) (int, error) {
	if !s.set {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	v, err := strconv.Atoi(s.value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidField, field, s.value)
	}
	return v, nil
}

// parseTimestamp reads value with timestampLayouts, then as integer Unix
// seconds. ok is false when neither applies.
func parseTimestamp(value string) (ts time.Time, ok bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

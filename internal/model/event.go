package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Problem severities.
const (
	ProblemNone    = "none"
	ProblemWarning = "warning"
	ProblemAlarm   = "alarm"
)

// Claim event sentinels.
const (
	ClaimWorkType = "Занятие"
	ClaimResult   = "Устройство занято"
)

// TimestampLayout is the on-disk event timestamp format (UTC, milliseconds).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Event is an immutable record of a claim or a release.
type Event struct {
	ID        int64   `json:"id"`
	AssetID   AssetID `json:"assetId"`
	TS        string  `json:"ts"`
	Type      string  `json:"type"`
	Result    string  `json:"result"`
	UserLogin string  `json:"userLogin"`
	Problem   string  `json:"problem,omitempty"`
}

// UnmarshalJSON accepts the id as a number or a numeric string. Any other id
// reads as 0.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Event(aux.plain)
	e.ID = looseID(aux.ID)
	return nil
}

func looseID(raw json.RawMessage) int64 {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

// FormatTimestamp formats t the way events store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Time parses the event timestamp. The second value is false when the
// timestamp is missing or malformed.
func (e *Event) Time() (time.Time, bool) {
	if e.TS == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, e.TS)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsProblem reports whether p is an accepted severity.
func IsProblem(p string) bool {
	switch p {
	case ProblemNone, ProblemWarning, ProblemAlarm:
		return true
	}
	return false
}

// ProblemLabel returns the human-readable severity label used in release
// results.
func ProblemLabel(problem string) string {
	switch problem {
	case ProblemWarning:
		return "Проблема: предупреждение"
	case ProblemAlarm:
		return "Проблема: alarm"
	default:
		return "Проблем не обнаружено"
	}
}

// EventsFor returns the events recorded for the given asset id, in storage order.
func EventsFor(events []Event, assetID string) []Event {
	out := []Event{}
	for _, e := range events {
		if e.AssetID.String() == assetID {
			out = append(out, e)
		}
	}
	return out
}

// NextID returns max(existing ids) + 1, or 1 for an empty collection.
func NextID[T any](rows []T, id func(T) int64) int64 {
	var m int64
	for _, r := range rows {
		if v := id(r); v > m {
			m = v
		}
	}
	return m + 1
}

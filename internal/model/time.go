package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// FlexTime is the canonical timestamp reader. Response exports arrive with
// start/end times either as an epoch-seconds wrapper object or as a date
// string; both decode here. Unparseable input yields the zero time rather
// than an error.
type FlexTime struct {
	time.Time
}

// epochWrapper matches the serialized timestamp object form.
type epochWrapper struct {
	Seconds  int64 `json:"_seconds"`
	Nanos    int64 `json:"_nanoseconds"`
	AltSecs  int64 `json:"seconds"`
	AltNanos int64 `json:"nanoseconds"`
}

// dateLayouts are tried in order for string timestamps.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2 2006, 15:04",
}

// UnmarshalJSON decodes an epoch wrapper, a bare number, or a date string.
func (t *FlexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	switch b[0] {
	case '{':
		var w epochWrapper
		if err := json.Unmarshal(b, &w); err != nil {
			t.Time = time.Time{}
			return nil
		}
		secs, nanos := w.Seconds, w.Nanos
		if secs == 0 && w.AltSecs != 0 {
			secs, nanos = w.AltSecs, w.AltNanos
		}
		if secs == 0 {
			t.Time = time.Time{}
			return nil
		}
		t.Time = time.Unix(secs, nanos).UTC()
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			t.Time = time.Time{}
			return nil
		}
		t.Time = ParseWhen(s)
	default:
		secs, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			t.Time = time.Time{}
			return nil
		}
		t.Time = time.Unix(int64(secs), 0).UTC()
	}
	return nil
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// ParseWhen parses a date string against the known layouts, returning the
// zero time when nothing matches.
func ParseWhen(s string) time.Time {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// At wraps a time.Time; convenient in tests and fixtures.
func At(ts time.Time) FlexTime {
	return FlexTime{Time: ts}
}

package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order. The engine serialises naive UTC
// datetimes without a zone designator, which time.Time rejects.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp is a time.Time that accepts both zoned and naive (UTC) engine
// timestamps and always marshals as RFC 3339 in UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, normalised to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*t = Timestamp{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = Timestamp{Time: parsed.UTC()}
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", raw)
}

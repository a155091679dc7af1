package nutrition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RecordID keeps a server identifier in the form it arrived in: a JSON
// string or a JSON number.
type RecordID struct {
	raw     string
	numeric bool
}

func StringID(s string) RecordID { return RecordID{raw: s} }

func NumberID(n int64) RecordID { return RecordID{raw: strconv.FormatInt(n, 10), numeric: true} }

func (id RecordID) String() string { return id.raw }

func (id RecordID) IsZero() bool { return id.raw == "" && !id.numeric }

// MarshalJSON writes null for the zero id.
func (id RecordID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.raw), nil
	}
	return json.Marshal(id.raw)
}

func (id *RecordID) UnmarshalJSON(b []byte) error {
	raw, numeric, err := stringOrNumber(b)
	if err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	*id = RecordID{raw: raw, numeric: numeric}
	return nil
}

// Timestamp is an ISO8601 string or an epoch number, kept verbatim.
type Timestamp struct {
	raw     string
	numeric bool
}

// At formats t the way the reference backend emits timestamps.
func At(t time.Time) Timestamp {
	return Timestamp{raw: t.UTC().Format(time.RFC3339Nano)}
}

func (ts Timestamp) String() string { return ts.raw }

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Time parses the timestamp. Epoch values above 1e12 are taken as milliseconds.
func (ts Timestamp) Time() (time.Time, bool) {
	if ts.raw == "" {
		return time.Time{}, false
	}
	if ts.numeric {
		f, err := strconv.ParseFloat(ts.raw, 64)
		if err != nil {
			return time.Time{}, false
		}
		if f > 1e12 {
			return time.UnixMilli(int64(f)).UTC(), true
		}
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), true
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, ts.raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.numeric {
		return []byte(ts.raw), nil
	}
	return json.Marshal(ts.raw)
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	raw, numeric, err := stringOrNumber(b)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*ts = Timestamp{raw: raw, numeric: numeric}
	return nil
}

func stringOrNumber(b []byte) (string, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return "", false, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, err
		}
		return s, false, nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", false, err
	}
	return n.String(), true, nil
}

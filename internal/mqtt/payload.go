package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// phPayload is the JSON form of a pH message. Value may be a number or a
// string such as "unavailable".
type phPayload struct {
	Value     json.RawMessage `json:"value"`
	Timestamp string          `json:"timestamp"`
}

// ParsePayload extracts the raw state text and the reading time from a pH
// message. Plain payloads ("8.12", "unknown") carry no timestamp, so received
// is used. The value is returned unparsed; numeric validation happens in the
// session.
func ParsePayload(payload []byte, received time.Time) (string, time.Time, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return strings.TrimSpace(string(trimmed)), received, nil
	}

	var p phPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return "", received, fmt.Errorf("failed to decode pH payload: %w", err)
	}

	value, err := rawValue(p.Value)
	if err != nil {
		return "", received, err
	}

	ts := received
	if p.Timestamp != "" {
		ts, err = iso8601.ParseString(p.Timestamp)
		if err != nil {
			return "", received, fmt.Errorf("failed to parse pH timestamp %q: %w", p.Timestamp, err)
		}
	}
	return value, ts, nil
}

func rawValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("failed to decode pH value: %w", err)
		}
		return strings.TrimSpace(s), nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("failed to decode pH value: %w", err)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

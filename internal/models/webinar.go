package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// WebinarObject is payload.object of a Zoom webinar.started / webinar.ended event.
// ID is kept as received (Zoom sends a number, older apps a string) so it is forwarded verbatim.
type WebinarObject struct {
	ID        json.RawMessage `json:"id"`
	UUID      string          `json:"uuid,omitempty"`
	HostID    string          `json:"host_id,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Type      int             `json:"type,omitempty"`
	StartTime string          `json:"start_time,omitempty"`
	EndTime   string          `json:"end_time,omitempty"`
	Duration  int             `json:"duration,omitempty"`
	Timezone  string          `json:"timezone,omitempty"`
}

// SessionPayload is the payload envelope of a session lifecycle event.
type SessionPayload struct {
	AccountID string         `json:"account_id,omitempty"`
	Object    *WebinarObject `json:"object"`
}

// WebinarID returns the session id as a path-safe string, or "" when absent.
func (o WebinarObject) WebinarID() string {
	raw := bytes.TrimSpace(o.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}

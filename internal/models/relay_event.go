package models

import "encoding/json"

// Event types relayed downstream.
const (
	EventWebinarStarted = "webinar.started"
	EventWebinarEnded   = "webinar.ended"
)

// WebinarInfo is the session metadata copied from the inbound event.
type WebinarInfo struct {
	ID        json.RawMessage `json:"id"`
	UUID      string          `json:"uuid,omitempty"`
	Topic     string          `json:"topic"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time,omitempty"`
	Duration  int             `json:"duration,omitempty"`
	Timezone  string          `json:"timezone,omitempty"`
}

// AttendanceStats are derived from the fetched participant and registrant lists.
type AttendanceStats struct {
	TotalRegistrants      int `json:"total_registrants"`
	TotalParticipants     int `json:"total_participants"`
	NoShowsCount          int `json:"no_shows_count"`
	AttendanceRatePercent int `json:"attendance_rate_percent"`
}

// EndedReport is the enriched body of a webinar.ended delivery.
type EndedReport struct {
	WebinarInfo  WebinarInfo     `json:"webinar_info"`
	Statistics   AttendanceStats `json:"statistics"`
	Participants []Record        `json:"participants"`
	Registrants  []Record        `json:"registrants"`
	NoShows      []Record        `json:"no_shows"`
}

// EndedEvent is delivered to the downstream endpoint once per webinar.ended.
type EndedEvent struct {
	Event   string      `json:"event"`
	Payload EndedReport `json:"payload"`
}

// StartedEvent is the minimal webinar.started delivery.
type StartedEvent struct {
	Event   string `json:"event"`
	Payload struct {
		WebinarInfo WebinarInfo `json:"webinar_info"`
	} `json:"payload"`
}

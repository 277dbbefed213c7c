package enrichment

import (
	"math"

	"github.com/aura-webinar/relay/internal/models"
)

// NoShows returns the registrants whose email, compared case-insensitively, matches no participant.
// Registrant order is preserved.
func NoShows(registrants, participants []models.Record) []models.Record {
	attended := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		attended[p.EmailKey()] = struct{}{}
	}
	out := make([]models.Record, 0, len(registrants))
	for _, r := range registrants {
		if _, ok := attended[r.EmailKey()]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// AttendanceRate is participants/registrants as a rounded percentage, 0 without registrants.
func AttendanceRate(participants, registrants int) int {
	if registrants <= 0 {
		return 0
	}
	return int(math.Round(float64(participants) / float64(registrants) * 100))
}

// BuildEndedEvent assembles the enriched webinar.ended delivery.
func BuildEndedEvent(obj models.WebinarObject, participants, registrants []models.Record) models.EndedEvent {
	if participants == nil {
		participants = []models.Record{}
	}
	if registrants == nil {
		registrants = []models.Record{}
	}
	noShows := NoShows(registrants, participants)
	return models.EndedEvent{
		Event: models.EventWebinarEnded,
		Payload: models.EndedReport{
			WebinarInfo: webinarInfo(obj),
			Statistics: models.AttendanceStats{
				TotalRegistrants:      len(registrants),
				TotalParticipants:     len(participants),
				NoShowsCount:          len(noShows),
				AttendanceRatePercent: AttendanceRate(len(participants), len(registrants)),
			},
			Participants: participants,
			Registrants:  registrants,
			NoShows:      noShows,
		},
	}
}

// BuildStartedEvent assembles the minimal webinar.started delivery.
func BuildStartedEvent(obj models.WebinarObject) models.StartedEvent {
	var ev models.StartedEvent
	ev.Event = models.EventWebinarStarted
	ev.Payload.WebinarInfo = models.WebinarInfo{
		ID:        obj.ID,
		UUID:      obj.UUID,
		Topic:     obj.Topic,
		StartTime: obj.StartTime,
		Timezone:  obj.Timezone,
	}
	return ev
}

func webinarInfo(obj models.WebinarObject) models.WebinarInfo {
	return models.WebinarInfo{
		ID:        obj.ID,
		UUID:      obj.UUID,
		Topic:     obj.Topic,
		StartTime: obj.StartTime,
		EndTime:   obj.EndTime,
		Duration:  obj.Duration,
		Timezone:  obj.Timezone,
	}
}

package enrichment

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/relay/internal/models"
)

func records(t *testing.T, raws ...string) []models.Record {
	t.Helper()
	out := make([]models.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := models.NewRecord(json.RawMessage(raw))
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestNoShows_CaseInsensitive(t *testing.T) {
	registrants := records(t, `{"email":"a@x.com"}`, `{"email":"B@x.com"}`)
	participants := records(t, `{"email":"a@X.com"}`)

	got := NoShows(registrants, participants)
	require.Len(t, got, 1)
	assert.Equal(t, "B@x.com", got[0].Email)
	assert.JSONEq(t, `{"email":"B@x.com"}`, string(got[0].Raw))
}

func TestNoShows_SubsetOfRegistrantsDisjointFromParticipants(t *testing.T) {
	var regs, parts []string
	for i := 0; i < 50; i++ {
		regs = append(regs, fmt.Sprintf(`{"email":"USER%d@example.com"}`, i))
		if i%3 == 0 {
			parts = append(parts, fmt.Sprintf(`{"email":"user%d@EXAMPLE.com"}`, i))
		}
	}
	parts = append(parts, `{"email":"walk-in@example.com"}`)
	registrants := records(t, regs...)
	participants := records(t, parts...)

	got := NoShows(registrants, participants)
	assert.Len(t, got, 33)

	seen := map[string]bool{}
	for _, p := range participants {
		seen[p.EmailKey()] = true
	}
	regKeys := map[string]bool{}
	for _, r := range registrants {
		regKeys[r.EmailKey()] = true
	}
	for _, ns := range got {
		assert.True(t, regKeys[ns.EmailKey()], "no-show must be a registrant")
		assert.False(t, seen[ns.EmailKey()], "no-show must not have attended")
	}
}

func TestAttendanceRate(t *testing.T) {
	assert.Equal(t, 0, AttendanceRate(0, 0))
	assert.Equal(t, 0, AttendanceRate(5, 0))
	assert.Equal(t, 70, AttendanceRate(7, 10))
	assert.Equal(t, 67, AttendanceRate(2, 3))
	assert.Equal(t, 33, AttendanceRate(1, 3))
	assert.Equal(t, 120, AttendanceRate(12, 10))
}

func TestBuildEndedEvent_Shape(t *testing.T) {
	var obj models.WebinarObject
	require.NoError(t, json.Unmarshal([]byte(`{"id":812,"uuid":"u==","topic":"Launch","start_time":"2026-10-01T15:00:00Z","end_time":"2026-10-01T16:00:00Z","duration":60,"timezone":"UTC"}`), &obj))

	ev := BuildEndedEvent(obj, nil, nil)
	out, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"event": "webinar.ended",
		"payload": {
			"webinar_info": {"id":812,"uuid":"u==","topic":"Launch","start_time":"2026-10-01T15:00:00Z","end_time":"2026-10-01T16:00:00Z","duration":60,"timezone":"UTC"},
			"statistics": {"total_registrants":0,"total_participants":0,"no_shows_count":0,"attendance_rate_percent":0},
			"participants": [],
			"registrants": [],
			"no_shows": []
		}
	}`, string(out))
}

func TestBuildStartedEvent_Shape(t *testing.T) {
	var obj models.WebinarObject
	require.NoError(t, json.Unmarshal([]byte(`{"id":"812","topic":"Launch","start_time":"2026-10-01T15:00:00Z","timezone":"America/New_York","duration":60}`), &obj))

	out, err := json.Marshal(BuildStartedEvent(obj))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"webinar.started","payload":{"webinar_info":{"id":"812","topic":"Launch","start_time":"2026-10-01T15:00:00Z","timezone":"America/New_York"}}}`, string(out))
}

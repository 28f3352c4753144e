package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgalumni/alumni/core/event"
	"github.com/orgalumni/alumni/core/user"
	"github.com/orgalumni/alumni/testutil"
)

func newEvent(title string, start time.Time) event.NewEvent {
	return event.NewEvent{
		Title:       title,
		Description: "Drinks and talks",
		Location:    "Main hall",
		StartDate:   start,
		EndDate:     start.Add(2 * time.Hour),
	}
}

func createEvent(t *testing.T, srv Server, token string, ne event.NewEvent) event.EventView {
	t.Helper()
	rec := do(srv, http.MethodPost, "/v1/events", token, marchallObj(t, ne))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e event.EventView
	decode(t, rec, &e)
	return e
}

func Test_eventApi(t *testing.T) {
	srv, s := setup(t)
	host := testutil.CreateMember(t, s.UserRepo, "Host", "host@alumni.io")
	guest := testutil.CreateMember(t, s.UserRepo, "Guest", "guest@alumni.io")
	admin := testutil.CreateAdmin(t, s.UserRepo, "Admin", "admin@alumni.io")
	hostToken, guestToken, adminToken := getToken(t, srv, host), getToken(t, srv, guest), getToken(t, srv, admin)

	now := time.Now().UTC().Truncate(time.Second)
	past := createEvent(t, srv, hostToken, newEvent("Past meetup", now.Add(-48*time.Hour)))
	later := createEvent(t, srv, hostToken, newEvent("Later meetup", now.Add(72*time.Hour)))
	soon := createEvent(t, srv, hostToken, newEvent("Soon meetup", now.Add(24*time.Hour)))

	assert.True(t, soon.IsAttending)
	assert.Equal(t, 1, soon.AttendeeCount)
	assert.Equal(t, host.ID, soon.CreatedBy)

	badDates := newEvent("Backwards", now)
	badDates.EndDate = now.Add(-time.Hour)

	tests := []httpTest{
		{
			name: "end before start", method: http.MethodPost, path: "/v1/events", token: guestToken,
			body: marchallObj(t, badDates), wantCode: http.StatusBadRequest,
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/events", token: guestToken,
			body: marchallObj(t, event.NewEvent{Title: "Only a title"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown event", path: "/v1/events/0b6c3f0e-2b0e-4a2b-9a56-7d4a4f2f7d11", token: guestToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: event.ErrNotFound.Error()}),
		},
		{
			name: "not the creator", method: http.MethodPut, path: "/v1/events/" + soon.ID, token: guestToken,
			body: marchallObj(t, newEvent("Mine now", now)), wantCode: http.StatusForbidden,
		},
		{
			name: "not the creator delete", method: http.MethodDelete, path: "/v1/events/" + soon.ID, token: guestToken,
			wantCode: http.StatusForbidden,
		},
	}
	runHTTPTests(t, srv, tests)

	titles := func(events []event.EventView) []string {
		res := make([]string, 0, len(events))
		for _, e := range events {
			res = append(res, e.Title)
		}
		return res
	}

	t.Run("latest first", func(t *testing.T) {
		var events []event.EventView
		decode(t, do(srv, http.MethodGet, "/v1/events", guestToken), &events)
		assert.Equal(t, []string{"Later meetup", "Soon meetup", "Past meetup"}, titles(events))
	})

	t.Run("upcoming soonest first", func(t *testing.T) {
		var events []event.EventView
		decode(t, do(srv, http.MethodGet, "/v1/events?upcoming=true", guestToken), &events)
		assert.Equal(t, []string{"Soon meetup", "Later meetup"}, titles(events))
	})

	t.Run("attendance", func(t *testing.T) {
		path := "/v1/events/" + soon.ID + "/attend"
		var state event.AttendanceState

		decode(t, do(srv, http.MethodPost, path, guestToken), &state)
		assert.Equal(t, event.AttendanceState{Attending: true, AttendeeCount: 2}, state)

		var attendees []user.User
		decode(t, do(srv, http.MethodGet, "/v1/events/"+soon.ID+"/attendees", hostToken), &attendees)
		require.Len(t, attendees, 2)
		assert.Equal(t, host.ID, attendees[0].ID)
		assert.Equal(t, guest.ID, attendees[1].ID)

		var e event.EventView
		decode(t, do(srv, http.MethodGet, "/v1/events/"+soon.ID, guestToken), &e)
		assert.True(t, e.IsAttending)
		assert.Equal(t, 2, e.AttendeeCount)

		decode(t, do(srv, http.MethodPost, path, guestToken), &state)
		assert.Equal(t, event.AttendanceState{Attending: false, AttendeeCount: 1}, state)
	})

	t.Run("creator updates", func(t *testing.T) {
		ne := newEvent("Later meetup, moved", now.Add(96*time.Hour))
		ne.Location = "Rooftop"
		rec := do(srv, http.MethodPut, "/v1/events/"+later.ID, hostToken, marchallObj(t, ne))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var e event.EventView
		decode(t, rec, &e)
		assert.Equal(t, "Rooftop", e.Location)
		assert.True(t, e.StartDate.Equal(ne.StartDate))
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, do(srv, http.MethodDelete, "/v1/events/"+past.ID, adminToken).Code)
		assert.Equal(t, http.StatusNoContent, do(srv, http.MethodDelete, "/v1/events/"+soon.ID, hostToken).Code)
		assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/v1/events/"+soon.ID+"/attendees", hostToken).Code)

		var events []event.EventView
		decode(t, do(srv, http.MethodGet, "/v1/events", guestToken), &events)
		assert.Equal(t, []string{"Later meetup, moved"}, titles(events))
	})
}

package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chxlky/crm-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type fakeCalendar struct {
	mu      sync.Mutex
	events  map[string]*calendar.Event
	deleted []string
}

func (f *fakeCalendar) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /calendars/team/events", func(w http.ResponseWriter, r *http.Request) {
		var ev calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		f.mu.Lock()
		ev.Id = "g1"
		f.events[ev.Id] = &ev
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(ev)
	})
	mux.HandleFunc("GET /calendars/team/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ev, ok := f.events[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			notFound(w)
			return
		}
		_ = json.NewEncoder(w).Encode(ev)
	})
	mux.HandleFunc("PUT /calendars/team/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		var ev calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		f.mu.Lock()
		f.events[r.PathValue("id")] = &ev
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(ev)
	})
	mux.HandleFunc("DELETE /calendars/team/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.events[id]; !ok {
			notFound(w)
			return
		}
		delete(f.events, id)
		f.deleted = append(f.deleted, id)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
}

func newFakeCalendarClient(t *testing.T) (*CalendarClient, *fakeCalendar) {
	t.Helper()
	fake := &fakeCalendar{events: map[string]*calendar.Event{}}
	server := httptest.NewServer(fake.routes())
	t.Cleanup(server.Close)

	client, err := NewCalendarClientWithHTTP(context.Background(), server.Client(), "team",
		[]option.ClientOption{option.WithEndpoint(server.URL + "/")})
	require.NoError(t, err)
	return client, fake
}

func TestCalendarClient_Lifecycle(t *testing.T) {
	client, fake := newFakeCalendarClient(t)
	ctx := context.Background()

	cardID := "c1"
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	event := models.CalendarEvent{ID: 7, Title: "Task: Call", Start: start, End: start.Add(time.Hour), KanbanCardID: &cardID}

	id, err := client.InsertEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, "g1", id)
	assert.Equal(t, "Task: Call", fake.events["g1"].Summary)
	assert.Equal(t, "Kanban card: c1", fake.events["g1"].Description)
	assert.Equal(t, "2024-01-15T10:00:00Z", fake.events["g1"].Start.DateTime)

	event.GoogleEventID = id
	event.Title = "Task: Visit"
	require.NoError(t, client.UpdateEvent(ctx, event))
	assert.Equal(t, "Task: Visit", fake.events["g1"].Summary)

	require.NoError(t, client.DeleteEvent(ctx, id))
	assert.Equal(t, []string{"g1"}, fake.deleted)
}

func TestCalendarClient_DeleteMissingIsNotAnError(t *testing.T) {
	client, _ := newFakeCalendarClient(t)

	assert.NoError(t, client.DeleteEvent(context.Background(), "gone"))
}

func TestCalendarClient_UpdateRequiresGoogleID(t *testing.T) {
	client, _ := newFakeCalendarClient(t)

	err := client.UpdateEvent(context.Background(), models.CalendarEvent{ID: 3})
	assert.Error(t, err)
}

func TestNewCalendarClient_RequiresCalendarID(t *testing.T) {
	_, err := NewCalendarClient(context.Background(), map[string]any{}, "")
	assert.Error(t, err)
}

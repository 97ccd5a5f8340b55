package kanban

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chxlky/crm-backend/database"
	"github.com/chxlky/crm-backend/database/dbtest"
	"github.com/chxlky/crm-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCalendarMirror is a testify mock of CalendarMirror.
type MockCalendarMirror struct {
	mock.Mock
}

func (m *MockCalendarMirror) InsertEvent(ctx context.Context, event models.CalendarEvent) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

func (m *MockCalendarMirror) UpdateEvent(ctx context.Context, event models.CalendarEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockCalendarMirror) DeleteEvent(ctx context.Context, externalID string) error {
	return m.Called(ctx, externalID).Error(0)
}

func newEventFixture(t *testing.T) (*database.BoardStore, *models.KanbanCard) {
	t.Helper()
	store := database.NewBoardStore(dbtest.New(t))
	column := &models.KanbanColumn{Title: "Todo"}
	require.NoError(t, store.CreateColumn(context.Background(), column))

	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	card := &models.KanbanCard{ID: "c1", Task: "Call", DateTime: &start, ColumnID: column.ID}
	require.NoError(t, store.CreateCard(context.Background(), card))
	return store, card
}

func TestEventSync_LinkDerivesEvent(t *testing.T) {
	store, card := newEventFixture(t)
	mirror := new(MockCalendarMirror)
	mirror.On("InsertEvent", mock.Anything, mock.MatchedBy(func(e models.CalendarEvent) bool {
		return e.Title == "Task: Call"
	})).Return("g-1", nil)

	event, err := NewEventSync(store, mirror).Link(context.Background(), card)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, "Task: Call", event.Title)
	assert.True(t, event.Start.Equal(*card.DateTime))
	assert.True(t, event.End.Equal(card.DateTime.Add(time.Hour)))
	require.NotNil(t, event.KanbanCardID)
	assert.Equal(t, "c1", *event.KanbanCardID)

	stored, err := store.EventsForCard(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "g-1", stored[0].GoogleEventID)
	mirror.AssertExpectations(t)
}

func TestEventSync_LinkSkipsUnscheduledCard(t *testing.T) {
	store, card := newEventFixture(t)
	card.DateTime = nil

	event, err := NewEventSync(store, nil).Link(context.Background(), card)
	require.NoError(t, err)
	assert.Nil(t, event)

	stored, err := store.EventsForCard(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestEventSync_MirrorFailureDoesNotFailLink(t *testing.T) {
	store, card := newEventFixture(t)
	mirror := new(MockCalendarMirror)
	mirror.On("InsertEvent", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	event, err := NewEventSync(store, mirror).Link(context.Background(), card)
	require.NoError(t, err)
	assert.Empty(t, event.GoogleEventID)
}

func TestEventSync_ResyncKeepsTimesWithoutSchedule(t *testing.T) {
	store, card := newEventFixture(t)
	es := NewEventSync(store, nil)
	_, err := es.Link(context.Background(), card)
	require.NoError(t, err)

	card.Task = "Email"
	card.DateTime = nil
	require.NoError(t, es.Resync(context.Background(), card))

	stored, err := store.EventsForCard(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Task: Email", stored[0].Title)
	assert.True(t, stored[0].Start.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)))
}

func TestEventSync_ResyncAndUnlinkUpdateMirror(t *testing.T) {
	store, card := newEventFixture(t)
	mirror := new(MockCalendarMirror)
	mirror.On("InsertEvent", mock.Anything, mock.Anything).Return("g-1", nil)
	mirror.On("UpdateEvent", mock.Anything, mock.MatchedBy(func(e models.CalendarEvent) bool {
		return e.GoogleEventID == "g-1" && e.Title == "Task: Visit"
	})).Return(nil)
	mirror.On("DeleteEvent", mock.Anything, "g-1").Return(nil)

	es := NewEventSync(store, mirror)
	_, err := es.Link(context.Background(), card)
	require.NoError(t, err)

	card.Task = "Visit"
	require.NoError(t, es.Resync(context.Background(), card))
	require.NoError(t, es.Unlink(context.Background(), card.ID))

	stored, err := store.EventsForCard(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, stored)
	mirror.AssertExpectations(t)
}

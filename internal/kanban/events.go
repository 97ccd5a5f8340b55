package kanban

import (
	"context"
	"fmt"
	"time"

	"github.com/chxlky/crm-backend/internal/models"
	"go.uber.org/zap"
)

// EventDuration is the fixed length of an event derived from a card.
const EventDuration = time.Hour

// EventStore is the part of the board store that holds derived events.
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.CalendarEvent) error
	SaveEvent(ctx context.Context, event *models.CalendarEvent) error
	EventsForCard(ctx context.Context, cardID string) ([]models.CalendarEvent, error)
	DeleteEventsForCard(ctx context.Context, cardID string) ([]models.CalendarEvent, error)
}

// CalendarMirror copies derived events to an external calendar.
type CalendarMirror interface {
	InsertEvent(ctx context.Context, event models.CalendarEvent) (string, error)
	UpdateEvent(ctx context.Context, event models.CalendarEvent) error
	DeleteEvent(ctx context.Context, externalID string) error
}

func EventTitle(task string) string {
	return "Task: " + task
}

// EventSync keeps calendar events in step with the cards they were derived
// from. It runs after the card change has been committed.
type EventSync struct {
	store  EventStore
	mirror CalendarMirror
}

// NewEventSync returns an EventSync. mirror may be nil.
func NewEventSync(store EventStore, mirror CalendarMirror) *EventSync {
	return &EventSync{store: store, mirror: mirror}
}

// Link creates the event for a freshly created card. Cards without a task or
// a scheduled time get no event and Link returns nil.
func (e *EventSync) Link(ctx context.Context, card *models.KanbanCard) (*models.CalendarEvent, error) {
	if card.DateTime == nil || card.Task == "" {
		return nil, nil
	}

	cardID := card.ID
	event := &models.CalendarEvent{
		Title:        EventTitle(card.Task),
		Start:        *card.DateTime,
		End:          card.DateTime.Add(EventDuration),
		UserID:       card.UserID,
		KanbanCardID: &cardID,
	}
	if err := e.store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("link event to card %s: %w", card.ID, err)
	}

	if e.mirror != nil {
		externalID, err := e.mirror.InsertEvent(ctx, *event)
		if err != nil {
			zap.L().Warn("Failed to mirror calendar event", zap.Uint("eventID", event.ID), zap.Error(err))
		} else {
			event.GoogleEventID = externalID
			if err := e.store.SaveEvent(ctx, event); err != nil {
				return event, fmt.Errorf("record mirrored event %d: %w", event.ID, err)
			}
		}
	}
	return event, nil
}

// Resync rewrites the events linked to card from its current task and
// scheduled time. Start and end are left alone when the card has no time.
func (e *EventSync) Resync(ctx context.Context, card *models.KanbanCard) error {
	events, err := e.store.EventsForCard(ctx, card.ID)
	if err != nil {
		return err
	}

	for i := range events {
		event := &events[i]
		event.Title = EventTitle(card.Task)
		if card.DateTime != nil {
			event.Start = *card.DateTime
			event.End = card.DateTime.Add(EventDuration)
		}
		if err := e.store.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("resync event %d: %w", event.ID, err)
		}

		if e.mirror != nil && event.GoogleEventID != "" {
			if err := e.mirror.UpdateEvent(ctx, *event); err != nil {
				zap.L().Warn("Failed to update mirrored calendar event", zap.Uint("eventID", event.ID), zap.Error(err))
			}
		}
	}
	return nil
}

// Unlink deletes every event linked to the card.
func (e *EventSync) Unlink(ctx context.Context, cardID string) error {
	events, err := e.store.DeleteEventsForCard(ctx, cardID)
	if err != nil {
		return err
	}
	e.Forget(ctx, events)
	return nil
}

// Forget removes already deleted events from the mirror.
func (e *EventSync) Forget(ctx context.Context, events []models.CalendarEvent) {
	if e.mirror == nil {
		return
	}
	for _, event := range events {
		if event.GoogleEventID == "" {
			continue
		}
		if err := e.mirror.DeleteEvent(ctx, event.GoogleEventID); err != nil {
			zap.L().Warn("Failed to delete mirrored calendar event", zap.Uint("eventID", event.ID), zap.Error(err))
		}
	}
}

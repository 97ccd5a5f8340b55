package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chxlky/crm-backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarClient mirrors card-derived events into a Google Calendar.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
}

// NewCalendarClient authenticates with a service account. serviceAccount is
// the decoded service account key, as read from the config file.
func NewCalendarClient(ctx context.Context, serviceAccount any, calendarID string) (*CalendarClient, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("google calendar ID is not configured")
	}

	jsonBytes, err := json.Marshal(serviceAccount)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal service account settings to JSON: %w", err)
	}

	// create credentials from JSON data
	config, err := google.JWTConfigFromJSON(jsonBytes, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials from JSON: %w", err)
	}

	return NewCalendarClientWithHTTP(ctx, config.Client(ctx), calendarID, nil)
}

// NewCalendarClientWithHTTP builds a client on top of an already
// authenticated HTTP client. Extra options such as a custom endpoint are
// passed through to the Calendar service.
func NewCalendarClientWithHTTP(ctx context.Context, client *http.Client, calendarID string, opts []option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	return &CalendarClient{service: srv, calendarID: calendarID}, nil
}

func toGoogleEvent(event models.CalendarEvent) *calendar.Event {
	description := "CRM calendar event"
	if event.KanbanCardID != nil {
		description = fmt.Sprintf("Kanban card: %s", *event.KanbanCardID)
	}
	return &calendar.Event{
		Summary:     event.Title,
		Description: description,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
		},
	}
}

// InsertEvent creates the Google event and returns its ID.
func (c *CalendarClient) InsertEvent(ctx context.Context, event models.CalendarEvent) (string, error) {
	createdEvent, err := c.service.Events.Insert(c.calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create event in Google Calendar: %w", err)
	}

	return createdEvent.Id, nil
}

func (c *CalendarClient) UpdateEvent(ctx context.Context, event models.CalendarEvent) error {
	if event.GoogleEventID == "" {
		return fmt.Errorf("event %d has no Google Calendar ID", event.ID)
	}

	existing, err := c.service.Events.Get(c.calendarID, event.GoogleEventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to retrieve event from Google Calendar: %w", err)
	}

	updated := toGoogleEvent(event)
	existing.Summary = updated.Summary
	existing.Description = updated.Description
	existing.Start = updated.Start
	existing.End = updated.End

	if _, err := c.service.Events.Update(c.calendarID, existing.Id, existing).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to update event in Google Calendar: %w", err)
	}

	return nil
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		// It's possible the event was already deleted, so we can choose to ignore "Not Found" errors
		if gerr, ok := err.(*googleapi.Error); ok && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
			zap.L().Info("Event not found in Google Calendar. Already deleted.", zap.String("eventID", eventID))
			return nil
		}
		return fmt.Errorf("unable to delete event from Google Calendar: %w", err)
	}

	return nil
}

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/chxlky/crm-backend/internal/models"
	"gorm.io/gorm"
)

// BoardStore persists kanban columns, cards and the calendar events derived
// from cards.
type BoardStore struct {
	db *gorm.DB
}

func NewBoardStore(db *gorm.DB) *BoardStore {
	return &BoardStore{db: db}
}

func (s *BoardStore) CreateColumn(ctx context.Context, column *models.KanbanColumn) error {
	if err := s.db.WithContext(ctx).Omit("Tasks").Create(column).Error; err != nil {
		return fmt.Errorf("create column: %w", err)
	}
	if column.Tasks == nil {
		column.Tasks = []models.KanbanCard{}
	}
	return nil
}

// ListColumns returns every column with its cards eagerly loaded.
func (s *BoardStore) ListColumns(ctx context.Context) ([]models.KanbanColumn, error) {
	columns := []models.KanbanColumn{}
	err := s.db.WithContext(ctx).Preload("Tasks").Order("id").Find(&columns).Error
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	for i := range columns {
		if columns[i].Tasks == nil {
			columns[i].Tasks = []models.KanbanCard{}
		}
	}
	return columns, nil
}

func (s *BoardStore) GetColumn(ctx context.Context, id uint) (*models.KanbanColumn, error) {
	var column models.KanbanColumn
	if err := s.db.WithContext(ctx).Preload("Tasks").First(&column, id).Error; err != nil {
		return nil, notFound(err)
	}
	if column.Tasks == nil {
		column.Tasks = []models.KanbanCard{}
	}
	return &column, nil
}

func (s *BoardStore) SaveColumn(ctx context.Context, column *models.KanbanColumn) error {
	if err := s.db.WithContext(ctx).Omit("Tasks").Save(column).Error; err != nil {
		return fmt.Errorf("save column: %w", err)
	}
	return nil
}

// DeleteColumn removes a column together with its cards and the events linked
// to those cards. The cascade is done explicitly so it does not depend on the
// database enforcing foreign keys.
func (s *BoardStore) DeleteColumn(ctx context.Context, id uint) ([]models.CalendarEvent, error) {
	var removed []models.CalendarEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var column models.KanbanColumn
		if err := tx.First(&column, id).Error; err != nil {
			return notFound(err)
		}

		cardIDs := tx.Model(&models.KanbanCard{}).Select("id").Where("column_id = ?", id)
		if err := tx.Where("kanban_card_id IN (?)", cardIDs).Find(&removed).Error; err != nil {
			return err
		}
		if len(removed) > 0 {
			if err := tx.Delete(&removed).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("column_id = ?", id).Delete(&models.KanbanCard{}).Error; err != nil {
			return err
		}
		return tx.Delete(&column).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("delete column %d: %w", id, err)
	}
	return removed, nil
}

func (s *BoardStore) ColumnExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.KanbanColumn{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check column %d: %w", id, err)
	}
	return count > 0, nil
}

func (s *BoardStore) CreateCard(ctx context.Context, card *models.KanbanCard) error {
	if err := s.db.WithContext(ctx).Create(card).Error; err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	return nil
}

// ListCards returns all cards, or only the cards of columnID when it is set.
func (s *BoardStore) ListCards(ctx context.Context, columnID *uint) ([]models.KanbanCard, error) {
	cards := []models.KanbanCard{}
	q := s.db.WithContext(ctx)
	if columnID != nil {
		q = q.Where("column_id = ?", *columnID)
	}
	if err := q.Order("rowid").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

func (s *BoardStore) GetCard(ctx context.Context, id string) (*models.KanbanCard, error) {
	var card models.KanbanCard
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&card).Error; err != nil {
		return nil, notFound(err)
	}
	return &card, nil
}

func (s *BoardStore) SaveCard(ctx context.Context, card *models.KanbanCard) error {
	if err := s.db.WithContext(ctx).Save(card).Error; err != nil {
		return fmt.Errorf("save card: %w", err)
	}
	return nil
}

func (s *BoardStore) DeleteCard(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.KanbanCard{})
	if res.Error != nil {
		return fmt.Errorf("delete card %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BoardStore) CreateEvent(ctx context.Context, event *models.CalendarEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *BoardStore) SaveEvent(ctx context.Context, event *models.CalendarEvent) error {
	if err := s.db.WithContext(ctx).Save(event).Error; err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// EventsForCard returns the events linked to a card.
func (s *BoardStore) EventsForCard(ctx context.Context, cardID string) ([]models.CalendarEvent, error) {
	events := []models.CalendarEvent{}
	if err := s.db.WithContext(ctx).Where("kanban_card_id = ?", cardID).Order("id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("events for card %s: %w", cardID, err)
	}
	return events, nil
}

// DeleteEventsForCard removes the events linked to a card and returns them.
func (s *BoardStore) DeleteEventsForCard(ctx context.Context, cardID string) ([]models.CalendarEvent, error) {
	events, err := s.EventsForCard(ctx, cardID)
	if err != nil || len(events) == 0 {
		return events, err
	}
	if err := s.db.WithContext(ctx).Delete(&events).Error; err != nil {
		return nil, fmt.Errorf("delete events for card %s: %w", cardID, err)
	}
	return events, nil
}

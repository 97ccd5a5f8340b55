package models

import "time"

type KanbanColumn struct {
	ID       uint         `gorm:"primaryKey" json:"id"`
	Title    string       `gorm:"index" json:"title"`
	TagColor string       `json:"tag_color"`
	Tasks    []KanbanCard `gorm:"foreignKey:ColumnID;constraint:OnDelete:CASCADE" json:"tasks"`
}

// KanbanCard is a task on the board. Its ID is generated by the server at
// creation and never changes afterwards.
type KanbanCard struct {
	ID       string     `gorm:"primaryKey" json:"id"`
	Name     string     `gorm:"index" json:"name"`
	Company  string     `gorm:"index" json:"company"`
	Phone    string     `gorm:"index" json:"phone"`
	Comment  string     `json:"comment"`
	Task     string     `json:"task"`
	DateTime *time.Time `gorm:"column:datetime" json:"datetime"`
	ColumnID uint       `gorm:"index;not null" json:"column_id"`
	UserID   *uint      `json:"-"`
}

// CalendarEvent mirrors the scheduled task of a card. When KanbanCardID is
// set the event is derived and follows the card's lifecycle.
type CalendarEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"index" json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	UserID        *uint     `gorm:"index" json:"user_id,omitempty"`
	KanbanCardID  *string   `gorm:"index" json:"kanban_card_id,omitempty"`
	GoogleEventID string    `json:"-"` // Google Calendar Event ID
}

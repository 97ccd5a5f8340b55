package kanban

import (
	"context"
	"errors"

	"github.com/chxlky/crm-backend/database"
	"github.com/chxlky/crm-backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the board store the dispatcher mutates.
type Store interface {
	EventStore

	CreateColumn(ctx context.Context, column *models.KanbanColumn) error
	ListColumns(ctx context.Context) ([]models.KanbanColumn, error)
	GetColumn(ctx context.Context, id uint) (*models.KanbanColumn, error)
	SaveColumn(ctx context.Context, column *models.KanbanColumn) error
	DeleteColumn(ctx context.Context, id uint) ([]models.CalendarEvent, error)
	ColumnExists(ctx context.Context, id uint) (bool, error)

	CreateCard(ctx context.Context, card *models.KanbanCard) error
	ListCards(ctx context.Context, columnID *uint) ([]models.KanbanCard, error)
	GetCard(ctx context.Context, id string) (*models.KanbanCard, error)
	SaveCard(ctx context.Context, card *models.KanbanCard) error
	DeleteCard(ctx context.Context, id string) error
}

// Replier sends a message to the session that issued a command.
type Replier interface {
	Send(v any) error
}

// Owner is implemented by requesters that carry an authenticated user.
type Owner interface {
	UserID() *uint
}

// Broadcaster delivers a message to every connected session.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg any) error
}

// Dispatcher decodes board commands, runs them against the store and routes
// the result either back to the requester or to every session.
type Dispatcher struct {
	store        Store
	events       *EventSync
	hub          Broadcaster
	metrics      *Metrics
	linkOnCreate bool
	newID        func() string
}

type Option func(*Dispatcher)

// WithEventLinkOnCreate makes create_card also create the linked calendar
// event when the card has a task and a scheduled time.
func WithEventLinkOnCreate(enabled bool) Option {
	return func(d *Dispatcher) {
		d.linkOnCreate = enabled
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithEventSync replaces the default EventSync, which has no mirror.
func WithEventSync(events *EventSync) Option {
	return func(d *Dispatcher) {
		d.events = events
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		d.newID = fn
	}
}

func NewDispatcher(store Store, hub Broadcaster, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		events: NewEventSync(store, nil),
		hub:    hub,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// result is what a handler produced: a reply for the requester, a message
// for every session, or neither.
type result struct {
	reply     any
	broadcast any
}

// Handle processes one raw message from a session. Every failure is turned
// into an error reply to that session only.
func (d *Dispatcher) Handle(ctx context.Context, from Replier, raw []byte) {
	cmd, err := DecodeCommand(raw)
	if err != nil {
		d.metrics.command("invalid", "protocol_error")
		d.reply(from, ErrorMessage{Error: err.Error()})
		return
	}

	action := string(cmd.Action())
	res, err := d.execute(ctx, from, cmd)
	if err != nil {
		var protoErr *ProtocolError
		var notFound *NotFoundError
		switch {
		case errors.As(err, &protoErr):
			d.metrics.command(action, "protocol_error")
			d.reply(from, ErrorMessage{Error: protoErr.Error()})
		case errors.As(err, &notFound):
			d.metrics.command(action, "not_found")
			d.reply(from, ErrorMessage{Error: notFound.Error()})
		default:
			d.metrics.command(action, "store_error")
			zap.L().Error("Board command failed", zap.String("action", action), zap.Error(err))
			d.reply(from, ErrorMessage{Error: internalErrorMessage})
		}
		return
	}

	d.metrics.command(action, "ok")
	if res.reply != nil {
		d.reply(from, res.reply)
	}
	if res.broadcast != nil {
		if err := d.hub.Broadcast(ctx, res.broadcast); err != nil {
			zap.L().Error("Broadcast failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func (d *Dispatcher) reply(to Replier, msg any) {
	if err := to.Send(msg); err != nil {
		zap.L().Warn("Failed to reply to board session", zap.Error(err))
	}
}

func (d *Dispatcher) execute(ctx context.Context, from Replier, cmd Command) (result, error) {
	switch c := cmd.(type) {
	case *CreateColumn:
		return d.createColumn(ctx, c)
	case *GetColumns:
		return d.getColumns(ctx)
	case *UpdateColumn:
		return d.updateColumn(ctx, c)
	case *DeleteColumn:
		return d.deleteColumn(ctx, c)
	case *CreateCard:
		return d.createCard(ctx, from, c)
	case *GetCards:
		return d.getCards(ctx, c)
	case *UpdateCard:
		return d.updateCard(ctx, c)
	case *DeleteCard:
		return d.deleteCard(ctx, c)
	default:
		return result{}, &ProtocolError{Message: "Unknown action: " + string(cmd.Action())}
	}
}

func (d *Dispatcher) createColumn(ctx context.Context, c *CreateColumn) (result, error) {
	column := &models.KanbanColumn{
		Title:    c.Column.Title,
		TagColor: c.Column.TagColor,
	}
	if err := d.store.CreateColumn(ctx, column); err != nil {
		return result{}, err
	}
	return result{broadcast: ColumnMessage{Action: ActionCreateColumn, Column: column}}, nil
}

func (d *Dispatcher) getColumns(ctx context.Context) (result, error) {
	columns, err := d.store.ListColumns(ctx)
	if err != nil {
		return result{}, err
	}
	return result{reply: ColumnsMessage{Action: ActionGetColumns, Columns: columns}}, nil
}

func (d *Dispatcher) updateColumn(ctx context.Context, c *UpdateColumn) (result, error) {
	column, err := d.store.GetColumn(ctx, *c.ColumnID)
	if errors.Is(err, database.ErrNotFound) {
		return result{}, &NotFoundError{Entity: "Column"}
	}
	if err != nil {
		return result{}, err
	}

	c.Column.Apply(column)
	if err := d.store.SaveColumn(ctx, column); err != nil {
		return result{}, err
	}
	return result{broadcast: ColumnMessage{Action: ActionUpdateColumn, Column: column}}, nil
}

func (d *Dispatcher) deleteColumn(ctx context.Context, c *DeleteColumn) (result, error) {
	removed, err := d.store.DeleteColumn(ctx, *c.ColumnID)
	if errors.Is(err, database.ErrNotFound) {
		return result{}, &NotFoundError{Entity: "Column"}
	}
	if err != nil {
		return result{}, err
	}

	d.events.Forget(ctx, removed)
	return result{broadcast: ColumnDeletedMessage{Action: ActionDeleteColumn, ColumnID: *c.ColumnID}}, nil
}

func (d *Dispatcher) requireColumn(ctx context.Context, id uint) error {
	ok, err := d.store.ColumnExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{Entity: "Column"}
	}
	return nil
}

func (d *Dispatcher) createCard(ctx context.Context, from Replier, c *CreateCard) (result, error) {
	if err := d.requireColumn(ctx, *c.Card.ColumnID); err != nil {
		return result{}, err
	}

	card := &models.KanbanCard{
		ID:       d.newID(),
		Name:     c.Card.Name,
		Company:  c.Card.Company,
		Phone:    c.Card.Phone,
		Comment:  c.Card.Comment,
		Task:     c.Card.Task,
		ColumnID: *c.Card.ColumnID,
	}
	if c.Card.DateTime != nil {
		t := c.Card.DateTime.Time
		card.DateTime = &t
	}
	if owner, ok := from.(Owner); ok {
		card.UserID = owner.UserID()
	}
	if err := d.store.CreateCard(ctx, card); err != nil {
		return result{}, err
	}

	if d.linkOnCreate {
		if _, err := d.events.Link(ctx, card); err != nil {
			zap.L().Error("Failed to link calendar event", zap.String("cardID", card.ID), zap.Error(err))
		}
	}
	return result{broadcast: CardMessage{Action: ActionCreateCard, Card: card}}, nil
}

func (d *Dispatcher) getCards(ctx context.Context, c *GetCards) (result, error) {
	cards, err := d.store.ListCards(ctx, c.ColumnID)
	if err != nil {
		return result{}, err
	}
	return result{reply: CardsMessage{Action: ActionGetCards, Cards: cards}}, nil
}

func (d *Dispatcher) updateCard(ctx context.Context, c *UpdateCard) (result, error) {
	card, err := d.store.GetCard(ctx, *c.CardID)
	if errors.Is(err, database.ErrNotFound) {
		return result{}, &NotFoundError{Entity: "Card"}
	}
	if err != nil {
		return result{}, err
	}

	if c.Card.ColumnID.Set && c.Card.ColumnID.Value != card.ColumnID {
		if err := d.requireColumn(ctx, c.Card.ColumnID.Value); err != nil {
			return result{}, err
		}
	}

	c.Card.Apply(card)
	if err := d.store.SaveCard(ctx, card); err != nil {
		return result{}, err
	}

	if err := d.events.Resync(ctx, card); err != nil {
		zap.L().Error("Failed to resync calendar event", zap.String("cardID", card.ID), zap.Error(err))
	}
	return result{broadcast: CardMessage{Action: ActionUpdateCard, Card: card}}, nil
}

func (d *Dispatcher) deleteCard(ctx context.Context, c *DeleteCard) (result, error) {
	if err := d.events.Unlink(ctx, *c.CardID); err != nil {
		return result{}, err
	}

	err := d.store.DeleteCard(ctx, *c.CardID)
	if errors.Is(err, database.ErrNotFound) {
		return result{}, &NotFoundError{Entity: "Card"}
	}
	if err != nil {
		return result{}, err
	}
	return result{broadcast: CardDeletedMessage{Action: ActionDeleteCard, CardID: *c.CardID}}, nil
}

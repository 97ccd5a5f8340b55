package kanban

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/chxlky/crm-backend/internal/models"
	"github.com/go-playground/validator/v10"
)

// Action tags every inbound and outbound message on the board channel.
type Action string

const (
	ActionCreateColumn Action = "create_column"
	ActionGetColumns   Action = "get_columns"
	ActionUpdateColumn Action = "update_column"
	ActionDeleteColumn Action = "delete_column"
	ActionCreateCard   Action = "create_card"
	ActionGetCards     Action = "get_cards"
	ActionUpdateCard   Action = "update_card"
	ActionDeleteCard   Action = "delete_card"
)

// Command is one decoded inbound message. The set of implementations is
// closed: only the types in this file satisfy it.
type Command interface {
	Action() Action
	command()
}

type CreateColumn struct {
	Column *ColumnInput `json:"column" validate:"required"`
}

type ColumnInput struct {
	Title    string `json:"title" validate:"required"`
	TagColor string `json:"tag_color"`
}

type GetColumns struct{}

type UpdateColumn struct {
	ColumnID *uint        `json:"kanban_column_id" validate:"required"`
	Column   *ColumnPatch `json:"column" validate:"required"`
}

type DeleteColumn struct {
	ColumnID *uint `json:"kanban_column_id" validate:"required"`
}

type CreateCard struct {
	Card *CardInput `json:"kanban_card" validate:"required"`
}

type CardInput struct {
	Name     string     `json:"name"`
	Company  string     `json:"company"`
	Phone    string     `json:"phone"`
	Comment  string     `json:"comment"`
	Task     string     `json:"task"`
	DateTime *Timestamp `json:"datetime"`
	ColumnID *uint      `json:"column_id" validate:"required"`
}

type GetCards struct {
	ColumnID *uint `json:"kanban_column_id"`
}

type UpdateCard struct {
	CardID *string   `json:"kanban_card_id" validate:"required"`
	Card   *CardPatch `json:"kanban_card" validate:"required"`
}

type DeleteCard struct {
	CardID *string `json:"kanban_card_id" validate:"required"`
}

func (*CreateColumn) Action() Action { return ActionCreateColumn }
func (*GetColumns) Action() Action   { return ActionGetColumns }
func (*UpdateColumn) Action() Action { return ActionUpdateColumn }
func (*DeleteColumn) Action() Action { return ActionDeleteColumn }
func (*CreateCard) Action() Action   { return ActionCreateCard }
func (*GetCards) Action() Action     { return ActionGetCards }
func (*UpdateCard) Action() Action   { return ActionUpdateCard }
func (*DeleteCard) Action() Action   { return ActionDeleteCard }

func (*CreateColumn) command() {}
func (*GetColumns) command()   {}
func (*UpdateColumn) command() {}
func (*DeleteColumn) command() {}
func (*CreateCard) command()   {}
func (*GetCards) command()     {}
func (*UpdateCard) command()   {}
func (*DeleteCard) command()   {}

// Optional records whether a field was present in the payload. A present
// field is applied even when it holds the zero value; JSON null counts as
// absent.
type Optional[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

func (o Optional[T]) apply(dst *T) {
	if o.Set {
		*dst = o.Value
	}
}

type ColumnPatch struct {
	Title    Optional[string] `json:"title"`
	TagColor Optional[string] `json:"tag_color"`
}

func (p *ColumnPatch) Apply(column *models.KanbanColumn) {
	p.Title.apply(&column.Title)
	p.TagColor.apply(&column.TagColor)
}

type CardPatch struct {
	Name     Optional[string]    `json:"name"`
	Company  Optional[string]    `json:"company"`
	Phone    Optional[string]    `json:"phone"`
	Comment  Optional[string]    `json:"comment"`
	Task     Optional[string]    `json:"task"`
	DateTime Optional[Timestamp] `json:"datetime"`
	ColumnID Optional[uint]      `json:"column_id"`
}

// Apply copies the present fields onto card. The card ID is never touched.
func (p *CardPatch) Apply(card *models.KanbanCard) {
	p.Name.apply(&card.Name)
	p.Company.apply(&card.Company)
	p.Phone.apply(&card.Phone)
	p.Comment.apply(&card.Comment)
	p.Task.apply(&card.Task)
	p.ColumnID.apply(&card.ColumnID)
	if p.DateTime.Set {
		t := p.DateTime.Value.Time
		card.DateTime = &t
	}
}

// Timestamp is an ISO-8601 date-time as sent by the board client.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 string. A trailing "Z" is rewritten to
// "+00:00" first; values without an offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("datetime %q is not an ISO-8601 date-time", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("datetime must be an ISO-8601 string")
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Outbound messages.

type ColumnMessage struct {
	Action Action               `json:"action"`
	Column *models.KanbanColumn `json:"column"`
}

type ColumnsMessage struct {
	Action  Action                `json:"action"`
	Columns []models.KanbanColumn `json:"columns"`
}

type ColumnDeletedMessage struct {
	Action   Action `json:"action"`
	ColumnID uint   `json:"kanban_column_id"`
}

type CardMessage struct {
	Action Action             `json:"action"`
	Card   *models.KanbanCard `json:"kanban_card"`
}

type CardsMessage struct {
	Action Action              `json:"action"`
	Cards  []models.KanbanCard `json:"kanban_cards"`
}

type CardDeletedMessage struct {
	Action Action `json:"action"`
	CardID string `json:"kanban_card_id"`
}

type ErrorMessage struct {
	Error string `json:"error"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeCommand decodes and validates one inbound message. Failures are
// returned as *ProtocolError.
func DecodeCommand(raw []byte) (Command, error) {
	var envelope struct {
		Action *string `json:"action"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ProtocolError{Message: "Invalid message: expected a JSON object with an action"}
	}
	if envelope.Action == nil {
		return nil, &ProtocolError{Message: "Missing action"}
	}

	var cmd Command
	switch Action(*envelope.Action) {
	case ActionCreateColumn:
		cmd = &CreateColumn{}
	case ActionGetColumns:
		cmd = &GetColumns{}
	case ActionUpdateColumn:
		cmd = &UpdateColumn{}
	case ActionDeleteColumn:
		cmd = &DeleteColumn{}
	case ActionCreateCard:
		cmd = &CreateCard{}
	case ActionGetCards:
		cmd = &GetCards{}
	case ActionUpdateCard:
		cmd = &UpdateCard{}
	case ActionDeleteCard:
		cmd = &DeleteCard{}
	default:
		return nil, &ProtocolError{Message: fmt.Sprintf("Unknown action: %s", *envelope.Action)}
	}

	if err := json.Unmarshal(raw, cmd); err != nil {
		return nil, payloadError(err)
	}
	if err := validate.Struct(cmd); err != nil {
		return nil, payloadError(err)
	}
	return cmd, nil
}

func payloadError(err error) *ProtocolError {
	var typeErr *json.UnmarshalTypeError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &typeErr):
		return &ProtocolError{Message: fmt.Sprintf("Invalid payload: %s must be %s", typeErr.Field, typeErr.Type)}
	case errors.As(err, &validationErrs):
		fe := validationErrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		return &ProtocolError{Message: fmt.Sprintf("Invalid payload: %s is %s", field, fe.Tag())}
	default:
		return &ProtocolError{Message: "Invalid payload: " + err.Error()}
	}
}

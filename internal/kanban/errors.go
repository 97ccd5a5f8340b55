package kanban

import "fmt"

// ProtocolError reports an unrecognised action or a malformed payload.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// NotFoundError reports that the target of a command does not exist.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

const internalErrorMessage = "Internal server error"

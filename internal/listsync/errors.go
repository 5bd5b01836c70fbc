package listsync

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationFailed matches every failed remote call.
	ErrOperationFailed = errors.New("operation failed")
	// ErrNotFound is returned when no local item has the requested id.
	ErrNotFound = errors.New("item not found")
	// ErrEmptyName is returned for a blank item name.
	ErrEmptyName = errors.New("name must not be empty")
)

// Op names a synchronizer operation.
type Op string

const (
	OpLoad     Op = "load"
	OpCreate   Op = "create"
	OpDelete   Op = "delete"
	OpToggle   Op = "toggle"
	OpUpvote   Op = "upvote"
	OpDownvote Op = "downvote"
	OpRename   Op = "rename"
)

// OpError wraps the cause of a failed remote call.
type OpError struct {
	Op  Op
	ID  string
	Err error
}

func (e *OpError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.ID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool { return target == ErrOperationFailed }

// Message is the text shown to the user for a failed operation.
func (e *OpError) Message() string {
	switch e.Op {
	case OpLoad:
		return "Failed to fetch todos: " + e.Err.Error()
	case OpCreate:
		return "Todo creation failed"
	case OpDelete:
		return "Todo deletion failed"
	default:
		return "Todo update failed"
	}
}

package models

import (
	"encoding/json"
	"time"
)

// OperationType classifies a pending mutation.
type OperationType string

const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
	OpToggle OperationType = "toggle"
)

// Replay priorities: toggles first, creates/updates next, deletes last,
// so a parent is never deleted before dependent creates land.
const (
	PriorityToggle  = 0
	PriorityNeutral = 1
	PriorityDelete  = 2
)

// Priority returns the replay ordering class for the operation type.
func (t OperationType) Priority() int {
	switch t {
	case OpToggle:
		return PriorityToggle
	case OpDelete:
		return PriorityDelete
	default:
		return PriorityNeutral
	}
}

// DefaultMaxRetries bounds per-operation server-side error retries.
const DefaultMaxRetries = 3

// PendingOperation is one durable outbox record: a mutation accepted
// locally but not yet confirmed by the server.
type PendingOperation struct {
	CreatedAt      time.Time
	LastAttemptAt  *time.Time
	ServerEntityID *int64
	ParentServerID *int64
	Type           OperationType
	EntityType     EntityType
	LocalEntityID  string
	ParentLocalID  string
	Endpoint       string
	Method         string
	LastError      string
	Payload        json.RawMessage
	ID             int64
	Priority       int
	RetryCount     int
	MaxRetries     int
}

// CanRetry reports whether the operation may be attempted again after a
// per-operation server error.
func (op *PendingOperation) CanRetry() bool {
	return op.RetryCount < op.MaxRetries
}

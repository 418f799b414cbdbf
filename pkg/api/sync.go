package api

import "time"

// Operation types carried in a push batch.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpToggle = "toggle"
)

// Per-operation result statuses returned by the server.
const (
	StatusCreated  = "created"
	StatusUpdated  = "updated"
	StatusDeleted  = "deleted"
	StatusToggled  = "toggled"
	StatusConflict = "conflict"
	StatusError    = "error"
)

// PushOperation is one client mutation inside a push batch.
// ParentLocalID lets the server attach a sub-entity to a parent created in
// the same batch, before either side knows the parent's server id.
type PushOperation struct {
	CreatedAt      time.Time `json:"created_at"`
	ServerID       *int64    `json:"server_id,omitempty"`
	ParentServerID *int64    `json:"parent_server_id,omitempty"`
	Version        *int64    `json:"version,omitempty"`
	Data           *Value    `json:"data,omitempty"`
	LocalID        string    `json:"local_id"`
	OperationType  string    `json:"operation_type"`
	EntityType     string    `json:"entity_type"`
	ParentLocalID  string    `json:"parent_local_id,omitempty"`
}

// PushRequest carries all pending client mutations in one batch.
type PushRequest struct {
	DeviceID   string          `json:"device_id"`
	DeviceName string          `json:"device_name,omitempty"`
	Operations []PushOperation `json:"operations"`
}

// OperationResult is the server's verdict on one pushed operation,
// correlated to its PushOperation by LocalID.
// For Status=conflict the server may include its current record state in
// Data; when absent the client backfills the snapshot from the next pull.
type OperationResult struct {
	ServerUpdatedAt *time.Time `json:"server_updated_at,omitempty"`
	ServerID        *int64     `json:"server_id,omitempty"`
	Version         *int64     `json:"version,omitempty"`
	Data            *Value     `json:"data,omitempty"`
	LocalID         string     `json:"local_id"`
	Status          string     `json:"status"`
	Error           string     `json:"error,omitempty"`
}

// PushResponse is the server's answer to a push batch.
type PushResponse struct {
	ServerTime time.Time         `json:"server_time"`
	Results    []OperationResult `json:"results"`
	Success    bool              `json:"success"`
}

// PullRequest asks for server-side changes since the given watermark.
// Since is RFC3339; the empty string requests a full pull.
type PullRequest struct {
	DeviceID string   `json:"device_id"`
	Since    string   `json:"since"`
	Entities []string `json:"entities"`
}

// Record is one server-side entity state inside a pull delta.
type Record struct {
	UpdatedAt      time.Time `json:"updated_at"`
	ParentServerID *int64    `json:"parent_server_id,omitempty"`
	Fields         Value     `json:"fields"`
	ServerID       int64     `json:"server_id"`
	Version        int64     `json:"version"`
}

// PullData groups a pull delta by entity type.
type PullData struct {
	Updated map[string][]Record `json:"updated"`
	Deleted map[string][]int64  `json:"deleted"`
}

// PullResponse is the server's answer to a pull request.
type PullResponse struct {
	ServerTime time.Time `json:"server_time"`
	Data       PullData  `json:"data"`
	Success    bool      `json:"success"`
}

package inventory

import (
	"encoding/json"
	"time"
)

// State describes how a snapshot was served.
type State string

const (
	// StateHit means the stored row was fresh enough to serve directly.
	StateHit State = "hit"
	// StateMiss means a full refresh ran and the row was replaced.
	StateMiss State = "miss"
	// StateStale means the refresh failed and the prior row was served with
	// its error annotation.
	StateStale State = "stale"
)

// Entry is one host's cached inventory row. The four collections are stored
// as opaque serialized blobs and only ever replaced together: a partial
// refresh is never persisted.
type Entry struct {
	VMs      json.RawMessage `json:"vms"`
	Networks json.RawMessage `json:"networks"`
	Images   json.RawMessage `json:"images"`
	Pools    json.RawMessage `json:"pools"`

	UpdatedAt     time.Time  `json:"updated_at"`
	LastError     string     `json:"last_error,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
}

// Snapshot is the caller-facing view of a cache read.
type Snapshot struct {
	Entry
	State State `json:"cache"`
}

package presence

import "time"

// Presence is a user's live availability within a tenant.
//
// Version increments on every status transition and is the fencing token for
// call teardown: a release carrying a stale version is a no-op, so a user who
// manually went DND mid-call is not flipped back to available.
type Presence struct {
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	UserID      string `json:"user_id" db:"user_id"`
	ExtensionID string `json:"extension_id,omitempty" db:"extension_id"`

	Status        Status `json:"status" db:"status"`
	StatusMessage string `json:"status_message,omitempty" db:"status_message"`

	// LastActivity is refreshed by heartbeats; reads older than the staleness
	// window report the user offline without rewriting the row.
	LastActivity time.Time `json:"last_activity" db:"last_activity"`

	Version int64 `json:"version" db:"version"`
}

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusDND       Status = "dnd"
	StatusOffline   Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusDND, StatusOffline:
		return true
	}
	return false
}

// CanReceiveCall reports whether a user in this status may be rung. Busy
// users still take calls; only dnd and offline block the ring.
func (s Status) CanReceiveCall() bool {
	return s == StatusAvailable || s == StatusBusy
}

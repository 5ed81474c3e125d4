package internalcall

import "time"

// InternalCall is an extension-to-extension call bridged through a named
// conference. The row tracks both carrier legs and the presence versions the
// call observed when it marked the parties busy, so teardown can release
// presence without clobbering manual status changes.
type InternalCall struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	FromUserID      string `json:"from_user_id" db:"from_user_id"`
	ToUserID        string `json:"to_user_id" db:"to_user_id"`
	FromExtensionID string `json:"from_extension_id" db:"from_extension_id"`
	ToExtensionID   string `json:"to_extension_id" db:"to_extension_id"`

	ConferenceName string `json:"conference_name" db:"conference_name"`
	ConferenceSID  string `json:"conference_sid,omitempty" db:"conference_sid"`

	FromCallSID string `json:"from_call_sid,omitempty" db:"from_call_sid"`
	ToCallSID   string `json:"to_call_sid,omitempty" db:"to_call_sid"`

	Status Status `json:"status" db:"status"`

	FromPresenceVersion int64 `json:"from_presence_version" db:"from_presence_version"`
	ToPresenceVersion   int64 `json:"to_presence_version" db:"to_presence_version"`

	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusRinging   Status = "ringing"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the call can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

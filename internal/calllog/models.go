package calllog

import "time"

// CallLog is one row per call leg the engine observed: inbound IVR calls,
// extension dials, internal calls, and voicemail deposits.
type CallLog struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// CallSID is the carrier's leg identifier; empty for synthetic rows
	// (e.g., the zero-duration row written when a transcription lands).
	CallSID string `json:"call_sid,omitempty" db:"call_sid"`

	Direction Direction `json:"direction" db:"direction"`

	FromNumber string `json:"from_number" db:"from_number"`
	ToNumber   string `json:"to_number" db:"to_number"`

	// ExtensionID and UserID are set when the leg resolved to a directory
	// entry.
	ExtensionID string `json:"extension_id,omitempty" db:"extension_id"`
	UserID      string `json:"user_id,omitempty" db:"user_id"`

	Status Status `json:"status" db:"status"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionInternal Direction = "internal"
)

type Status string

const (
	StatusRinging   Status = "ringing"
	StatusAnswered  Status = "answered"
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
	StatusForwarded Status = "forwarded"
	StatusVoicemail Status = "voicemail"
	StatusFailed    Status = "failed"
)

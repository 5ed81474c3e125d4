package conference

import "time"

// Conference is a locally tracked multi-party bridge. SID is filled in once
// the carrier confirms the bridge exists; until then the row is pending.
type Conference struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	Name string `json:"name" db:"name"`
	SID  string `json:"sid,omitempty" db:"sid"`

	CreatedByUserID string `json:"created_by_user_id" db:"created_by_user_id"`

	// SourceCallSID is the live leg that was escalated into this bridge.
	SourceCallSID string `json:"source_call_sid" db:"source_call_sid"`

	Status Status `json:"status" db:"status"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	// StatusPending means the redirect was issued but the carrier has not
	// confirmed the bridge yet.
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Terminal reports whether the conference can no longer change state.
func (s Status) Terminal() bool { return s == StatusCompleted }

// Participant is one leg the engine placed into (or found inside) a bridge.
type Participant struct {
	ID           string `json:"id" db:"id"`
	ConferenceID string `json:"conference_id" db:"conference_id"`
	TenantID     string `json:"tenant_id" db:"tenant_id"`

	CallSID string `json:"call_sid" db:"call_sid"`
	Number  string `json:"number,omitempty" db:"number"`

	Role ParticipantRole `json:"role" db:"role"`

	Status ParticipantStatus `json:"status" db:"status"`

	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty" db:"left_at"`
}

type ParticipantRole string

const (
	// RoleHost is the leg the conference was started from.
	RoleHost        ParticipantRole = "host"
	RoleParticipant ParticipantRole = "participant"
)

type ParticipantStatus string

const (
	ParticipantConnected ParticipantStatus = "connected"
	ParticipantLeft      ParticipantStatus = "left"
)

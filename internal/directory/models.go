package directory

import "time"

// Directory models are tenant-scoped (tenant_id required everywhere).
// Extension numbers are short dialable digit strings, unique per tenant.

// Extension maps a dialable number to a user within a tenant.
type Extension struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// Number is the short digit string callers dial (e.g., "101").
	Number string `json:"number" db:"number"`

	UserID      string `json:"user_id" db:"user_id"`
	DisplayName string `json:"display_name" db:"display_name"`

	// ContactNumber is the E.164 number of the user's device; dialing the
	// extension rings this number.
	ContactNumber string `json:"contact_number" db:"contact_number"`

	// ForwardingNumber, when set, sends inbound calls for this extension
	// straight to an external E.164 number instead of ringing the user.
	ForwardingNumber string `json:"forwarding_number,omitempty" db:"forwarding_number"`

	// VoicemailEnabled controls whether unanswered calls fall through to
	// voicemail recording.
	VoicemailEnabled bool `json:"voicemail_enabled" db:"voicemail_enabled"`

	Status ExtensionStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ExtensionStatus string

const (
	ExtensionStatusActive   ExtensionStatus = "active"
	ExtensionStatusDisabled ExtensionStatus = "disabled"
)

// ForwardingRule redirects calls for an extension based on a trigger.
type ForwardingRule struct {
	ID          string `json:"id" db:"id"`
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	ExtensionID string `json:"extension_id" db:"extension_id"`

	Trigger ForwardingTrigger `json:"trigger" db:"trigger"`

	// Destination is the E.164 number calls are redirected to.
	Destination string `json:"destination" db:"destination"`

	// RingCount applies to TriggerAfterRings only: the rule fires once the
	// observed ring count reaches this value.
	RingCount int `json:"ring_count,omitempty" db:"ring_count"`

	Enabled bool `json:"enabled" db:"enabled"`

	// CreatedAt also orders competing rules: the earliest created rule fires.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ForwardingTrigger string

const (
	TriggerAlways     ForwardingTrigger = "always"
	TriggerNoAnswer   ForwardingTrigger = "no_answer"
	TriggerBusy       ForwardingTrigger = "busy"
	TriggerAfterRings ForwardingTrigger = "after_rings"
)

func (t ForwardingTrigger) Valid() bool {
	switch t {
	case TriggerAlways, TriggerNoAnswer, TriggerBusy, TriggerAfterRings:
		return true
	}
	return false
}

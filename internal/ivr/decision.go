package ivr

import "pbx-engine/internal/directory"

// Decision is the carrier-agnostic output of the IVR machine.
//
// It must contain *only* information required for the webhook adapter (the
// TwiML renderer) to execute the decision. No carrier-specific fields belong
// here.

type Decision struct {
	TenantID string `json:"tenant_id"`

	Action Action `json:"action"`

	// Extension is set for connect/voicemail decisions.
	Extension directory.Extension `json:"extension,omitempty"`

	// ForwardTo is the E.164 destination for forward decisions.
	ForwardTo string `json:"forward_to,omitempty"`

	// DialTimeoutSeconds is how long the dial may ring.
	DialTimeoutSeconds int `json:"dial_timeout_seconds,omitempty"`

	// ConferenceName is the bridge the caller is parked in for connect
	// decisions.
	ConferenceName string `json:"conference_name,omitempty"`

	// Reason is optional and intended for internal logs.
	Reason string `json:"reason,omitempty"`
}

type Action string

const (
	// ActionPrompt plays the menu and gathers digits.
	ActionPrompt Action = "prompt"
	// ActionInvalid tells the caller the digits matched nothing, then
	// re-prompts.
	ActionInvalid Action = "invalid"
	// ActionOperator dials the operator number.
	ActionOperator Action = "operator"
	// ActionConnect rings the extension owner through a conference bridge.
	ActionConnect Action = "connect"
	// ActionForward dials an external number.
	ActionForward Action = "forward"
	// ActionVoicemail records a message for the extension.
	ActionVoicemail Action = "voicemail"
	// ActionHangup ends the call politely.
	ActionHangup Action = "hangup"
)

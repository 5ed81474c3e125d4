package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Tenant isolation: TenantID is required.

type CallsSummaryRequest struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`

	// ExtensionID narrows the summary to one extension.
	ExtensionID string `json:"extension_id,omitempty"`
}

type CallsSummary struct {
	TenantID    string `json:"tenant_id"`
	ExtensionID string `json:"extension_id,omitempty"`

	TotalCalls     int `json:"total_calls"`
	InboundCalls   int `json:"inbound_calls"`
	OutboundCalls  int `json:"outbound_calls"`
	InternalCalls  int `json:"internal_calls"`
	CompletedCalls int `json:"completed_calls"`
	MissedCalls    int `json:"missed_calls"`
	ForwardedCalls int `json:"forwarded_calls"`
	VoicemailCalls int `json:"voicemail_calls"`
	FailedCalls    int `json:"failed_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

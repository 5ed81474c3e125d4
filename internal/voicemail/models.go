package voicemail

import "time"

// Voicemail is a recorded message left for an extension. Rows are written by
// the transcription callback once the carrier finished transcribing, so every
// voicemail arrives with its text (possibly empty when transcription failed).
type Voicemail struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	ExtensionID string `json:"extension_id" db:"extension_id"`
	UserID      string `json:"user_id,omitempty" db:"user_id"`

	FromNumber string `json:"from_number" db:"from_number"`
	ToNumber   string `json:"to_number" db:"to_number"`

	// RecordingURL points at the playable media (".mp3" suffixed).
	RecordingURL    string `json:"recording_url" db:"recording_url"`
	DurationSeconds int    `json:"duration_seconds" db:"duration_seconds"`

	TranscriptionText string `json:"transcription_text,omitempty" db:"transcription_text"`

	// CallSID ties the message back to the inbound leg for dedup.
	CallSID string `json:"call_sid" db:"call_sid"`

	Listened  bool      `json:"listened" db:"listened"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

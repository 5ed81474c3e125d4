package telephony

import (
	"net/http"
	"strings"
)

// Webhook form parsing. Twilio sends application/x-www-form-urlencoded.
//
// Keep it minimal and adapter-only: no routing decisions are made here, the
// parsed forms are handed to the IVR machine and the webhook reconciler.

// VoiceForm captures the subset of voice webhook fields the engine cares
// about. Digits is absent on the first hit of an IVR gather; DialCallStatus
// is only present on <Dial action> callbacks.
type VoiceForm struct {
	CallSid        string
	AccountSid     string
	From           string
	To             string
	Digits         string
	CallStatus     string
	DialCallSid    string
	DialCallStatus string
	Direction      string
	ForwardedFrom  string
}

func ParseVoiceForm(r *http.Request) (VoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceForm{}, err
	}
	return VoiceForm{
		CallSid:        r.PostFormValue("CallSid"),
		AccountSid:     r.PostFormValue("AccountSid"),
		From:           trimPhone(r.PostFormValue("From")),
		To:             trimPhone(r.PostFormValue("To")),
		Digits:         strings.TrimSpace(r.PostFormValue("Digits")),
		CallStatus:     r.PostFormValue("CallStatus"),
		DialCallSid:    r.PostFormValue("DialCallSid"),
		DialCallStatus: r.PostFormValue("DialCallStatus"),
		Direction:      r.PostFormValue("Direction"),
		ForwardedFrom:  trimPhone(r.PostFormValue("ForwardedFrom")),
	}, nil
}

// ConferenceStatusForm is the raw conference status callback payload.
// Event validation belongs to the webhook reconciliation layer.
type ConferenceStatusForm struct {
	ConferenceSid       string
	FriendlyName        string
	StatusCallbackEvent string
	CallSid             string
	Timestamp           string
}

func ParseConferenceStatusForm(r *http.Request) (ConferenceStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return ConferenceStatusForm{}, err
	}
	return ConferenceStatusForm{
		ConferenceSid:       r.PostFormValue("ConferenceSid"),
		FriendlyName:        r.PostFormValue("FriendlyName"),
		StatusCallbackEvent: r.PostFormValue("StatusCallbackEvent"),
		CallSid:             r.PostFormValue("CallSid"),
		Timestamp:           r.PostFormValue("Timestamp"),
	}, nil
}

// RecordingStatusForm is the recording lifecycle callback payload.
type RecordingStatusForm struct {
	CallSid           string
	RecordingSid      string
	RecordingStatus   string
	RecordingURL      string
	RecordingDuration string
	From              string
	To                string
}

func ParseRecordingStatusForm(r *http.Request) (RecordingStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingStatusForm{}, err
	}
	return RecordingStatusForm{
		CallSid:           r.PostFormValue("CallSid"),
		RecordingSid:      r.PostFormValue("RecordingSid"),
		RecordingStatus:   r.PostFormValue("RecordingStatus"),
		RecordingURL:      r.PostFormValue("RecordingUrl"),
		RecordingDuration: r.PostFormValue("RecordingDuration"),
		From:              trimPhone(r.PostFormValue("From")),
		To:                trimPhone(r.PostFormValue("To")),
	}, nil
}

// TranscriptionForm is the voicemail transcription callback payload.
type TranscriptionForm struct {
	CallSid             string
	TranscriptionStatus string
	TranscriptionText   string
	RecordingURL        string
	RecordingDuration   string
	From                string
	To                  string
}

func ParseTranscriptionForm(r *http.Request) (TranscriptionForm, error) {
	if err := r.ParseForm(); err != nil {
		return TranscriptionForm{}, err
	}
	return TranscriptionForm{
		CallSid:             r.PostFormValue("CallSid"),
		TranscriptionStatus: r.PostFormValue("TranscriptionStatus"),
		TranscriptionText:   r.PostFormValue("TranscriptionText"),
		RecordingURL:        r.PostFormValue("RecordingUrl"),
		RecordingDuration:   r.PostFormValue("RecordingDuration"),
		From:                trimPhone(r.PostFormValue("From")),
		To:                  trimPhone(r.PostFormValue("To")),
	}, nil
}

func trimPhone(s string) string {
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}

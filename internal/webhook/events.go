package webhook

import (
	"errors"
	"fmt"

	"pbx-engine/internal/telephony"
)

// ConferenceEvent is a validated carrier conference status callback.
type ConferenceEvent struct {
	ConferenceSID string
	FriendlyName  string
	Event         EventType
	CallSID       string
	// Timestamp is the carrier's delivery timestamp string; it participates
	// in the dedup key, so it is kept verbatim.
	Timestamp string
}

type EventType string

const (
	EventConferenceStart  EventType = "conference-start"
	EventConferenceEnd    EventType = "conference-end"
	EventParticipantJoin  EventType = "participant-join"
	EventParticipantLeave EventType = "participant-leave"
)

var ErrUnknownEvent = errors.New("unknown conference status event")

// ParseConferenceEvent validates the raw form into a typed event. Unknown
// event names are a validation error; the carrier does send others (mute,
// hold) when misconfigured, and the engine must refuse rather than guess.
func ParseConferenceEvent(form telephony.ConferenceStatusForm) (ConferenceEvent, error) {
	if form.ConferenceSid == "" {
		return ConferenceEvent{}, errors.New("webhook: ConferenceSid is required")
	}
	et := EventType(form.StatusCallbackEvent)
	switch et {
	case EventConferenceStart, EventConferenceEnd, EventParticipantJoin, EventParticipantLeave:
	default:
		return ConferenceEvent{}, fmt.Errorf("%w: %q", ErrUnknownEvent, form.StatusCallbackEvent)
	}
	return ConferenceEvent{
		ConferenceSID: form.ConferenceSid,
		FriendlyName:  form.FriendlyName,
		Event:         et,
		CallSID:       form.CallSid,
		Timestamp:     form.Timestamp,
	}, nil
}

// DedupKey identifies one delivery; redeliveries carry the same triple.
func (e ConferenceEvent) DedupKey() string {
	return "webhook:" + e.ConferenceSID + ":" + string(e.Event) + ":" + e.Timestamp
}

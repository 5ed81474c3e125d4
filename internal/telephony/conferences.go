package telephony

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

type ConferenceService struct {
	client *Client
}

// Conference is the carrier's view of a multi-party bridge.
type Conference struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
	AccountSID   string `json:"account_sid"`
	Region       string `json:"region"`
	URI          string `json:"uri"`
}

// ConferenceParticipant is one live leg inside a conference.
type ConferenceParticipant struct {
	CallSID                string `json:"call_sid"`
	ConferenceSID          string `json:"conference_sid"`
	Muted                  bool   `json:"muted"`
	Hold                   bool   `json:"hold"`
	StartConferenceOnEnter bool   `json:"start_conference_on_enter"`
	EndConferenceOnExit    bool   `json:"end_conference_on_exit"`
	Status                 string `json:"status"`
}

type conferencePage struct {
	Conferences []Conference `json:"conferences"`
}

type participantPage struct {
	Participants []ConferenceParticipant `json:"participants"`
}

// ListByFriendlyName returns conferences matching a friendly name and status
// (e.g. "in-progress"). Conference creation via TwiML is not atomic with the
// REST API, so callers poll this with bounded retries.
func (s *ConferenceService) ListByFriendlyName(ctx context.Context, friendlyName, status string) ([]Conference, error) {
	if friendlyName == "" {
		return nil, errors.New("telephony: friendly name is required")
	}
	v := url.Values{}
	v.Set("FriendlyName", friendlyName)
	if status != "" {
		v.Set("Status", status)
	}

	u := s.client.EndPoint("Conferences")
	u.RawQuery = v.Encode()
	req, err := s.client.NewRequest(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}

	page := new(conferencePage)
	if _, err := s.client.Do(req, page); err != nil {
		return nil, err
	}
	return page.Conferences, nil
}

// Get fetches a conference by SID.
func (s *ConferenceService) Get(ctx context.Context, sid string) (*Conference, error) {
	if sid == "" {
		return nil, errors.New("telephony: conference sid is required")
	}
	u := s.client.EndPoint("Conferences", sid)
	req, err := s.client.NewRequest(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}

	conf := new(Conference)
	if _, err := s.client.Do(req, conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// Complete terminates a conference, dropping all remaining legs.
func (s *ConferenceService) Complete(ctx context.Context, sid string) error {
	if sid == "" {
		return errors.New("telephony: conference sid is required")
	}
	v := url.Values{}
	v.Set("Status", "completed")

	u := s.client.EndPoint("Conferences", sid)
	req, err := s.client.NewRequest(ctx, "POST", u.String(), strings.NewReader(v.Encode()))
	if err != nil {
		return err
	}
	_, err = s.client.Do(req, nil)
	return err
}

// Participants lists the live legs of a conference.
func (s *ConferenceService) Participants(ctx context.Context, sid string) ([]ConferenceParticipant, error) {
	if sid == "" {
		return nil, errors.New("telephony: conference sid is required")
	}
	u := s.client.EndPoint("Conferences", sid, "Participants")
	req, err := s.client.NewRequest(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}

	page := new(participantPage)
	if _, err := s.client.Do(req, page); err != nil {
		return nil, err
	}
	return page.Participants, nil
}

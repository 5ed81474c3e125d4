package telephony

import "context"

// Carrier is the narrow capability surface the orchestration components
// depend on. The *Client satisfies it; tests substitute fakes.
//
// Rules:
// - No carrier SDK/REST calls outside this package.
// - All methods are blocking I/O and must be called with a bounded context.
type Carrier interface {
	// CreateCall places an outbound leg that executes the given TwiML when
	// answered.
	CreateCall(ctx context.Context, to, from, twiML string) (Call, error)
	// RedirectCall replaces the TwiML of a live call leg.
	RedirectCall(ctx context.Context, callSID, twiML string) (Call, error)
	// CompleteConference terminates a conference by SID.
	CompleteConference(ctx context.Context, conferenceSID string) error
	// FindActiveConference returns the in-progress conference with the given
	// friendly name, if any.
	FindActiveConference(ctx context.Context, friendlyName string) (Conference, bool, error)
	// LiveParticipants lists the current legs of a conference.
	LiveParticipants(ctx context.Context, conferenceSID string) ([]ConferenceParticipant, error)
}

func (c *Client) CreateCall(ctx context.Context, to, from, twiML string) (Call, error) {
	call, err := c.Calls.Create(ctx, CallParams{From: from, To: to, TwiML: twiML})
	if err != nil {
		return Call{}, err
	}
	return *call, nil
}

func (c *Client) RedirectCall(ctx context.Context, callSID, twiML string) (Call, error) {
	call, err := c.Calls.Modify(ctx, callSID, CallModificationParams{TwiML: twiML})
	if err != nil {
		return Call{}, err
	}
	return *call, nil
}

func (c *Client) CompleteConference(ctx context.Context, conferenceSID string) error {
	return c.Conferences.Complete(ctx, conferenceSID)
}

func (c *Client) FindActiveConference(ctx context.Context, friendlyName string) (Conference, bool, error) {
	list, err := c.Conferences.ListByFriendlyName(ctx, friendlyName, "in-progress")
	if err != nil {
		return Conference{}, false, err
	}
	if len(list) == 0 {
		return Conference{}, false, nil
	}
	return list[0], true, nil
}

func (c *Client) LiveParticipants(ctx context.Context, conferenceSID string) ([]ConferenceParticipant, error) {
	return c.Conferences.Participants(ctx, conferenceSID)
}

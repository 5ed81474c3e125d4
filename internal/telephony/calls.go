package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
)

type CallService struct {
	client *Client
}

// Call is the carrier's representation of a single call leg.
type Call struct {
	SID           string `json:"sid"`
	ParentCallSID string `json:"parent_call_sid"`
	AccountSID    string `json:"account_sid"`
	To            string `json:"to"`
	From          string `json:"from"`
	Status        string `json:"status"`
	Direction     string `json:"direction"`
	Duration      string `json:"duration"`
	AnsweredBy    string `json:"answered_by"`
	ForwardedFrom string `json:"forwarded_from"`
	CallerName    string `json:"caller_name"`
	URI           string `json:"uri"`
}

// CallParams creates an outbound call leg. Exactly one of URL or TwiML must
// be set to describe what happens when the callee answers.
type CallParams struct {
	From  string `url:"From"`
	To    string `url:"To"`
	URL   string `url:"Url,omitempty"`
	TwiML string `url:"Twiml,omitempty"`

	StatusCallback       string `url:"StatusCallback,omitempty"`
	StatusCallbackMethod string `url:"StatusCallbackMethod,omitempty"`
	Timeout              uint   `url:"Timeout,omitempty"`
}

func (p CallParams) Validate() error {
	if p.From == "" || p.To == "" {
		return errors.New("telephony: From and To are required")
	}
	if (p.URL == "") == (p.TwiML == "") {
		return errors.New("telephony: exactly one of Url or Twiml is required")
	}
	return nil
}

// CallModificationParams redirects or terminates an in-progress call leg.
type CallModificationParams struct {
	URL    string `url:"Url,omitempty"`
	Method string `url:"Method,omitempty"`
	TwiML  string `url:"Twiml,omitempty"`
	Status string `url:"Status,omitempty"`
}

func (p CallModificationParams) Validate() error {
	if p.URL == "" && p.TwiML == "" && p.Status == "" {
		return errors.New("telephony: url, twiml or status is required to modify a call")
	}
	if p.URL != "" {
		if _, err := url.Parse(p.URL); err != nil {
			return errors.New("telephony: invalid url")
		}
	}
	switch p.Status {
	case "", "canceled", "completed":
	default:
		return fmt.Errorf("telephony: invalid call status for modification: %s", p.Status)
	}
	return nil
}

// Create places a new outbound call.
func (c *CallService) Create(ctx context.Context, params CallParams) (*Call, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	v, err := query.Values(params)
	if err != nil {
		return nil, err
	}

	u := c.client.EndPoint("Calls")
	req, err := c.client.NewRequest(ctx, "POST", u.String(), strings.NewReader(v.Encode()))
	if err != nil {
		return nil, err
	}

	call := new(Call)
	if _, err := c.client.Do(req, call); err != nil {
		return nil, err
	}
	return call, nil
}

// Modify updates a live call leg (redirect to new TwiML, or hang up).
func (c *CallService) Modify(ctx context.Context, sid string, params CallModificationParams) (*Call, error) {
	if sid == "" {
		return nil, errors.New("telephony: call sid is required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	v, err := query.Values(params)
	if err != nil {
		return nil, err
	}

	u := c.client.EndPoint("Calls", sid)
	req, err := c.client.NewRequest(ctx, "POST", u.String(), strings.NewReader(v.Encode()))
	if err != nil {
		return nil, err
	}

	call := new(Call)
	if _, err := c.client.Do(req, call); err != nil {
		return nil, err
	}
	return call, nil
}

// Get fetches a call leg by SID.
func (c *CallService) Get(ctx context.Context, sid string) (*Call, error) {
	if sid == "" {
		return nil, errors.New("telephony: call sid is required")
	}
	u := c.client.EndPoint("Calls", sid)
	req, err := c.client.NewRequest(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}

	call := new(Call)
	if _, err := c.client.Do(req, call); err != nil {
		return nil, err
	}
	return call, nil
}

package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	apiBaseURL = "https://api.twilio.com/2010-04-01"
	userAgent  = "pbx-engine/1.0"

	// defaultRequestTimeout bounds carrier API calls independently of the
	// carrier's own ring timeouts.
	defaultRequestTimeout = 8 * time.Second
)

// Client is the Twilio REST API client. It is an explicit capability object:
// components receive it (or the narrower Carrier interface) via injection,
// never through package-level state.
type Client struct {
	AccountSID string
	authToken  string

	BaseURL   *url.URL
	UserAgent string

	httpClient *http.Client

	Calls       *CallService
	Conferences *ConferenceService
}

// NewClient returns a Twilio client for the given account. httpClient may be
// nil, in which case a client with a bounded timeout is used.
func NewClient(accountSID, authToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	base, _ := url.Parse(apiBaseURL)

	c := &Client{
		AccountSID: accountSID,
		authToken:  authToken,
		BaseURL:    base,
		UserAgent:  userAgent,
		httpClient: httpClient,
	}
	c.Calls = &CallService{client: c}
	c.Conferences = &ConferenceService{client: c}
	return c
}

// EndPoint builds an account-scoped resource URL, e.g.
// EndPoint("Calls", sid) -> {base}/Accounts/{AccountSID}/Calls/{sid}.json
func (c *Client) EndPoint(parts ...string) *url.URL {
	up := []string{"Accounts", c.AccountSID}
	up = append(up, parts...)
	u := *c.BaseURL
	u.Path = u.Path + "/" + strings.Join(up, "/") + ".json"
	return &u
}

// NewRequest creates an authenticated API request. Form bodies must already
// be URL-encoded by the caller.
func (c *Client) NewRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Request, error) {
	rel, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}
	u := c.BaseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.AccountSID+":"+c.authToken)))
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

// Do executes the request and decodes the JSON response into v when non-nil.
// Non-2xx responses are returned as *Exception.
func (c *Client) Do(req *http.Request, v any) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return resp, err
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return resp, err
		}
	}
	return resp, nil
}

// CheckResponse maps non-2xx responses to *Exception.
func CheckResponse(r *http.Response) error {
	if c := r.StatusCode; 200 <= c && c <= 299 {
		return nil
	}

	exception := &Exception{Status: r.StatusCode}
	data, err := io.ReadAll(r.Body)
	if err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, exception); err != nil {
			// Might be an XML exception for REST requests.
			exc := struct {
				RestException *Exception
			}{RestException: exception}
			if err := xml.Unmarshal(data, &exc); err != nil {
				return errors.New("telephony: unparseable carrier error response: " + string(data))
			}
		}
	}
	return exception
}

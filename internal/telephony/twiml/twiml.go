// Package twiml renders the carrier's XML instruction documents.
//
// Only the verbs the engine emits are modeled. Each verb validates its own
// attributes before marshaling so a bad document fails at build time in the
// handler rather than as a carrier 12100 error at call time.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// Markup is implemented by every verb and noun that can appear in a response.
type Markup interface {
	Validate() error
}

// Response is the root document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",omitempty"`
}

func New() *Response {
	return &Response{}
}

// Add appends verbs to the response in order.
func (r *Response) Add(verbs ...any) *Response {
	r.Verbs = append(r.Verbs, verbs...)
	return r
}

// Render validates every verb and marshals the document with the XML header.
func (r *Response) Render() (string, error) {
	for _, v := range r.Verbs {
		m, ok := v.(Markup)
		if !ok {
			return "", fmt.Errorf("twiml: %T does not implement Markup", v)
		}
		if err := m.Validate(); err != nil {
			return "", err
		}
	}
	b, err := xml.Marshal(r)
	if err != nil {
		return "", err
	}
	return xml.Header + string(b), nil
}

// Say speaks text to the caller.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Loop     int      `xml:"loop,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

func (s *Say) Validate() error {
	switch s.Voice {
	case "", "man", "woman", "alice":
	default:
		return fmt.Errorf("twiml: invalid Say voice %q", s.Voice)
	}
	return nil
}

// Play plays an audio file to the caller.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	Loop    int      `xml:"loop,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

func (p *Play) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("twiml: Play requires a url")
	}
	return nil
}

// Gather collects digits from the caller. Nested verbs play while gathering.
type Gather struct {
	XMLName   xml.Name `xml:"Gather"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	FinishKey string   `xml:"finishOnKey,attr,omitempty"`
	Verbs     []any    `xml:",omitempty"`
}

func (g *Gather) Validate() error {
	switch g.Method {
	case "", "GET", "POST":
	default:
		return fmt.Errorf("twiml: invalid Gather method %q", g.Method)
	}
	if g.NumDigits < 0 {
		return fmt.Errorf("twiml: Gather numDigits must be positive")
	}
	for _, v := range g.Verbs {
		switch v.(type) {
		case *Say, *Play:
		default:
			return fmt.Errorf("twiml: %T cannot be nested in Gather", v)
		}
		if err := v.(Markup).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Add nests verbs inside the gather.
func (g *Gather) Add(verbs ...any) *Gather {
	g.Verbs = append(g.Verbs, verbs...)
	return g
}

// Dial connects the current caller to another party. Exactly one target
// (Number, Conference, or chardata number) must be present.
type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	Action   string   `xml:"action,attr,omitempty"`
	Method   string   `xml:"method,attr,omitempty"`
	Timeout  int      `xml:"timeout,attr,omitempty"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Record   string   `xml:"record,attr,omitempty"`
	Number   string   `xml:",chardata"`
	Nouns    []any    `xml:",omitempty"`
}

func (d *Dial) Validate() error {
	if d.Number != "" && len(d.Nouns) > 0 {
		return fmt.Errorf("twiml: Dial cannot mix a bare number with nouns")
	}
	if d.Number == "" && len(d.Nouns) == 0 {
		return fmt.Errorf("twiml: Dial requires a target")
	}
	for _, n := range d.Nouns {
		switch n.(type) {
		case *Number, *Conference:
		default:
			return fmt.Errorf("twiml: %T cannot be nested in Dial", n)
		}
		if err := n.(Markup).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Add nests dial nouns.
func (d *Dial) Add(nouns ...any) *Dial {
	d.Nouns = append(d.Nouns, nouns...)
	return d
}

// Number is a dial target phone number.
type Number struct {
	XMLName xml.Name `xml:"Number"`
	Number  string   `xml:",chardata"`
}

func (n *Number) Validate() error {
	if n.Number == "" {
		return fmt.Errorf("twiml: Number requires a phone number")
	}
	return nil
}

// Conference joins the caller to a named conference room.
type Conference struct {
	XMLName                xml.Name `xml:"Conference"`
	StartConferenceOnEnter *bool    `xml:"startConferenceOnEnter,attr,omitempty"`
	EndConferenceOnExit    *bool    `xml:"endConferenceOnExit,attr,omitempty"`
	Beep                   string   `xml:"beep,attr,omitempty"`
	WaitURL                string   `xml:"waitUrl,attr,omitempty"`
	StatusCallback         string   `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent    string   `xml:"statusCallbackEvent,attr,omitempty"`
	Name                   string   `xml:",chardata"`
}

func (c *Conference) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("twiml: Conference requires a name")
	}
	switch c.Beep {
	case "", "true", "false", "onEnter", "onExit":
	default:
		return fmt.Errorf("twiml: invalid Conference beep %q", c.Beep)
	}
	return nil
}

// Record records the caller's audio.
type Record struct {
	XMLName            xml.Name `xml:"Record"`
	Action             string   `xml:"action,attr,omitempty"`
	Method             string   `xml:"method,attr,omitempty"`
	MaxLength          int      `xml:"maxLength,attr,omitempty"`
	Timeout            int      `xml:"timeout,attr,omitempty"`
	PlayBeep           *bool    `xml:"playBeep,attr,omitempty"`
	Transcribe         *bool    `xml:"transcribe,attr,omitempty"`
	TranscribeCallback string   `xml:"transcribeCallback,attr,omitempty"`
	RecordingCallback  string   `xml:"recordingStatusCallback,attr,omitempty"`
}

func (r *Record) Validate() error {
	if r.MaxLength < 0 {
		return fmt.Errorf("twiml: Record maxLength must be positive")
	}
	if r.TranscribeCallback != "" && (r.Transcribe == nil || !*r.Transcribe) {
		return fmt.Errorf("twiml: Record transcribeCallback requires transcribe")
	}
	return nil
}

// Redirect transfers control of the call to another TwiML URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

func (r *Redirect) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("twiml: Redirect requires a url")
	}
	switch r.Method {
	case "", "GET", "POST":
	default:
		return fmt.Errorf("twiml: invalid Redirect method %q", r.Method)
	}
	return nil
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

func (h *Hangup) Validate() error { return nil }

// Reject declines the call without answering (no charge).
type Reject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

func (r *Reject) Validate() error {
	switch r.Reason {
	case "", "rejected", "busy":
	default:
		return fmt.Errorf("twiml: invalid Reject reason %q", r.Reason)
	}
	return nil
}

// Bool is a helper for the tri-state boolean attributes.
func Bool(v bool) *bool { return &v }

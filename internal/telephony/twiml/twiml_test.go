package twiml

import (
	"strings"
	"testing"
)

func TestRenderGatherWithSay(t *testing.T) {
	resp := New().Add(
		(&Gather{Action: "/webhooks/twilio/ivr", Method: "POST", NumDigits: 3, Timeout: 10}).Add(
			&Say{Voice: "alice", Text: "Please enter an extension."},
		),
		&Say{Voice: "alice", Text: "We did not receive input."},
		&Redirect{Method: "POST", URL: "/webhooks/twilio/ivr"},
	)

	out, err := resp.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<Gather action="/webhooks/twilio/ivr" method="POST" numDigits="3" timeout="10">`,
		`<Say voice="alice">Please enter an extension.</Say>`,
		`<Redirect method="POST">/webhooks/twilio/ivr</Redirect>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered twiml missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDialConference(t *testing.T) {
	resp := New().Add(
		(&Dial{}).Add(&Conference{
			Name:                   "ext-101-1700000000000",
			StartConferenceOnEnter: Bool(true),
			EndConferenceOnExit:    Bool(false),
			Beep:                   "true",
			WaitURL:                "http://twimlets.com/holdmusic?Bucket=com.twilio.music.ambient",
		}),
	)

	out, err := resp.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		`startConferenceOnEnter="true"`,
		`endConferenceOnExit="false"`,
		`beep="true"`,
		`>ext-101-1700000000000</Conference>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered twiml missing %q:\n%s", want, out)
		}
	}
}

func TestRenderOmitsUnsetConferenceFlags(t *testing.T) {
	out, err := New().Add((&Dial{}).Add(&Conference{Name: "transfer-1"})).Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out, "startConferenceOnEnter") || strings.Contains(out, "endConferenceOnExit") {
		t.Errorf("unset flags should be omitted:\n%s", out)
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		resp *Response
	}{
		{"dial without target", New().Add(&Dial{})},
		{"dial mixing number and noun", New().Add(&Dial{Number: "+15551234567", Nouns: []any{&Number{Number: "+15557654321"}}})},
		{"gather nesting dial", New().Add((&Gather{}).Add(&Dial{Number: "+15551234567"}))},
		{"say with bogus voice", New().Add(&Say{Voice: "robot", Text: "hi"})},
		{"record transcribe callback without transcribe", New().Add(&Record{TranscribeCallback: "/cb"})},
		{"reject with bogus reason", New().Add(&Reject{Reason: "tired"})},
		{"empty conference name", New().Add((&Dial{}).Add(&Conference{}))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.resp.Render(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestRenderVoicemailRecord(t *testing.T) {
	resp := New().Add(
		&Say{Voice: "alice", Text: "Please leave a message after the tone."},
		&Record{
			MaxLength:          120,
			Transcribe:         Bool(true),
			TranscribeCallback: "/webhooks/twilio/transcription",
			RecordingCallback:  "/webhooks/twilio/recording-status",
		},
		&Hangup{},
	)
	out, err := resp.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		`maxLength="120"`,
		`transcribe="true"`,
		`<Hangup></Hangup>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered twiml missing %q:\n%s", want, out)
		}
	}
}

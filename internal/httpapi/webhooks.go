package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"pbx-engine/internal/calllog"
	"pbx-engine/internal/directory"
	"pbx-engine/internal/internalcall"
	"pbx-engine/internal/ivr"
	"pbx-engine/internal/telephony"
	"pbx-engine/internal/telephony/twiml"
	"pbx-engine/internal/voicemail"
	"pbx-engine/internal/webhook"
)

// WebhookConfig carries the numbers and URLs the TwiML adapter needs.
type WebhookConfig struct {
	// PublicBaseURL is the externally reachable prefix for callback URLs.
	PublicBaseURL string
	// OperatorNumber receives operator shortcuts and gather timeouts.
	OperatorNumber string
	// CallerID is the number engine-placed legs dial out from.
	CallerID string
	// WaitURL is the hold music for conference bridges.
	WaitURL string
}

// WebhookHandlers adapts carrier callbacks to the routing machine and the
// reconciler, and renders routing decisions as TwiML.
//
// Carrier callbacks are not JWT-authenticated; tenant identity rides on the
// ?tenant= query parameter configured on each Twilio number and action URL.
// TODO: validate X-Twilio-Signature against TWILIO_WEBHOOK_SECRET before
// trusting form payloads.
type WebhookHandlers struct {
	Machine    *ivr.Machine
	Calls      *internalcall.Service
	Voicemail  *voicemail.Service
	Logs       *calllog.Service
	Reconciler *webhook.Reconciler
	Cfg        WebhookConfig
	Log        *slog.Logger
}

const conferenceEvents = "start end join leave"

/* ===================== VOICE / IVR ===================== */

// Voice serves both the initial inbound hit and every gather round.
func (h *WebhookHandlers) Voice(c *gin.Context) {
	tenantID := c.Query("tenant")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant query parameter is required"})
		return
	}
	form, err := telephony.ParseVoiceForm(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form payload"})
		return
	}

	d, err := h.Machine.Route(c.Request.Context(), ivr.RouteInput{
		TenantID: tenantID,
		Digits:   form.Digits,
		From:     form.From,
		To:       form.To,
	})
	if err != nil {
		h.Log.Error("ivr routing failed", slog.String("call_sid", form.CallSid), slog.String("error", err.Error()))
		h.renderTwiML(c, h.errorTwiML())
		return
	}
	h.Log.Info("ivr decision",
		slog.String("tenant_id", tenantID),
		slog.String("call_sid", form.CallSid),
		slog.String("action", string(d.Action)),
		slog.String("reason", d.Reason))

	switch d.Action {
	case ivr.ActionConnect:
		h.connect(c, d, form)
	case ivr.ActionForward:
		h.appendLog(c, tenantID, form, d.Extension, calllog.StatusForwarded)
		h.renderTwiML(c, h.decisionTwiML(d))
	case ivr.ActionOperator:
		h.appendLog(c, tenantID, form, directory.Extension{}, calllog.StatusForwarded)
		h.renderTwiML(c, h.decisionTwiML(d))
	case ivr.ActionVoicemail:
		h.appendLog(c, tenantID, form, d.Extension, calllog.StatusMissed)
		h.renderTwiML(c, h.voicemailTwiML(d))
	default:
		h.renderTwiML(c, h.decisionTwiML(d))
	}
}

// connect parks the caller in a fresh bridge and dials the extension owner's
// device into it. The callee leg is placed before the caller TwiML is even
// returned; the bridge starts when the caller enters.
func (h *WebhookHandlers) connect(c *gin.Context, d ivr.Decision, form telephony.VoiceForm) {
	ctx := c.Request.Context()
	if _, err := h.Calls.StartInbound(ctx, d.TenantID, form.From, form.CallSid, d.ConferenceName, d.Extension); err != nil {
		h.Log.Error("inbound bridge setup failed",
			slog.String("call_sid", form.CallSid), slog.String("error", err.Error()))
		// Fall back to voicemail when the device leg could not be placed.
		if d.Extension.VoicemailEnabled {
			h.appendLog(c, d.TenantID, form, d.Extension, calllog.StatusMissed)
			h.renderTwiML(c, h.voicemailTwiML(d))
			return
		}
		h.renderTwiML(c, h.errorTwiML())
		return
	}

	doc, err := twiml.New().Add((&twiml.Dial{
		Action:  h.callbackURL("/webhooks/twilio/dial-result", url.Values{"tenant": {d.TenantID}, "extension_id": {d.Extension.ID}}),
		Method:  "POST",
		Timeout: d.DialTimeoutSeconds,
	}).Add(&twiml.Conference{
		Name:                   d.ConferenceName,
		StartConferenceOnEnter: twiml.Bool(true),
		EndConferenceOnExit:    twiml.Bool(true),
		Beep:                   "true",
		WaitURL:                h.Cfg.WaitURL,
		StatusCallback:         h.callbackURL("/webhooks/twilio/conference-status", url.Values{"tenant": {d.TenantID}}),
		StatusCallbackEvent:    conferenceEvents,
	})).Render()
	h.renderTwiML(c, mustDoc(doc, err, h.Log))
}

// DialResult handles the <Dial action> callback after ringing an extension or
// a forward target.
func (h *WebhookHandlers) DialResult(c *gin.Context) {
	tenantID := c.Query("tenant")
	extensionID := c.Query("extension_id")
	if tenantID == "" || extensionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant and extension_id query parameters are required"})
		return
	}
	form, err := telephony.ParseVoiceForm(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form payload"})
		return
	}

	d, err := h.Machine.RouteDialResult(c.Request.Context(), ivr.DialResultInput{
		TenantID:       tenantID,
		ExtensionID:    extensionID,
		DialCallStatus: form.DialCallStatus,
		RingsObserved:  ivr.ExtensionRingSeconds / 5,
	})
	if err != nil {
		h.Log.Error("dial result routing failed",
			slog.String("call_sid", form.CallSid), slog.String("error", err.Error()))
		h.renderTwiML(c, h.errorTwiML())
		return
	}

	switch d.Action {
	case ivr.ActionForward:
		h.finishLog(c, tenantID, form.CallSid, calllog.StatusForwarded)
		h.renderTwiML(c, h.decisionTwiML(d))
	case ivr.ActionVoicemail:
		h.finishLog(c, tenantID, form.CallSid, calllog.StatusMissed)
		h.renderTwiML(c, h.voicemailTwiML(d))
	case ivr.ActionHangup:
		if d.Reason != "call answered" {
			h.finishLog(c, tenantID, form.CallSid, calllog.StatusMissed)
		}
		h.renderTwiML(c, h.decisionTwiML(d))
	default:
		h.renderTwiML(c, h.decisionTwiML(d))
	}
}

// VoiceFallback answers when the primary voice URL errored at the carrier.
func (h *WebhookHandlers) VoiceFallback(c *gin.Context) {
	h.renderTwiML(c, h.errorTwiML())
}

/* ===================== STATUS CALLBACKS ===================== */

// ConferenceStatus feeds carrier conference lifecycle events to the
// reconciler. Unknown events are rejected and never journaled.
func (h *WebhookHandlers) ConferenceStatus(c *gin.Context) {
	form, err := telephony.ParseConferenceStatusForm(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form payload"})
		return
	}
	ev, err := webhook.ParseConferenceEvent(form)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw, _ := json.Marshal(c.Request.PostForm)
	if err := h.Reconciler.HandleConferenceEvent(c.Request.Context(), ev, string(raw)); err != nil {
		h.Log.Error("conference event handling failed",
			slog.String("conference_sid", ev.ConferenceSID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event handling failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordingStatus acknowledges recording lifecycle callbacks. The voicemail
// row is written from the transcription callback, which carries the text.
func (h *WebhookHandlers) RecordingStatus(c *gin.Context) {
	form, err := telephony.ParseRecordingStatusForm(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form payload"})
		return
	}
	h.Log.Info("recording status",
		slog.String("call_sid", form.CallSid),
		slog.String("recording_sid", form.RecordingSid),
		slog.String("status", form.RecordingStatus))
	c.Status(http.StatusNoContent)
}

// Transcription stores a completed voicemail deposit.
func (h *WebhookHandlers) Transcription(c *gin.Context) {
	tenantID := c.Query("tenant")
	extensionID := c.Query("extension_id")
	userID := c.Query("user_id")
	if tenantID == "" || extensionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant and extension_id query parameters are required"})
		return
	}
	form, err := telephony.ParseTranscriptionForm(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form payload"})
		return
	}
	if form.TranscriptionStatus != "completed" {
		c.Status(http.StatusNoContent)
		return
	}

	if _, err := h.Voicemail.SaveDeposit(c.Request.Context(), voicemail.Deposit{
		TenantID:          tenantID,
		ExtensionID:       extensionID,
		UserID:            userID,
		CallSID:           form.CallSid,
		FromNumber:        form.From,
		ToNumber:          form.To,
		RecordingURL:      form.RecordingURL,
		RecordingDuration: form.RecordingDuration,
		TranscriptionText: form.TranscriptionText,
	}); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordingDone closes the call after a voicemail was recorded.
func (h *WebhookHandlers) RecordingDone(c *gin.Context) {
	doc, err := twiml.New().Add(
		&twiml.Say{Voice: "alice", Text: "Thank you. Your message has been recorded. Goodbye."},
		&twiml.Hangup{},
	).Render()
	h.renderTwiML(c, mustDoc(doc, err, h.Log))
}

/* ===================== TWIML RENDERING ===================== */

func (h *WebhookHandlers) renderTwiML(c *gin.Context, doc string) {
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(doc))
}

// decisionTwiML renders the side-effect-free decisions.
func (h *WebhookHandlers) decisionTwiML(d ivr.Decision) string {
	r := twiml.New()
	switch d.Action {
	case ivr.ActionPrompt:
		voiceURL := h.callbackURL("/webhooks/twilio/ivr", url.Values{"tenant": {d.TenantID}})
		r.Add(
			(&twiml.Gather{
				Action:    voiceURL,
				Method:    "POST",
				NumDigits: ivr.GatherNumDigits,
				Timeout:   ivr.GatherTimeoutSeconds,
			}).Add(&twiml.Say{Voice: "alice",
				Text: "Welcome. Please dial a three digit extension, or press zero for the operator."}),
			(&twiml.Gather{
				Action:    voiceURL,
				Method:    "POST",
				NumDigits: ivr.GatherNumDigits,
				Timeout:   5,
			}).Add(&twiml.Say{Voice: "alice", Text: "Are you still there? Please dial an extension now."}),
			&twiml.Say{Voice: "alice", Text: "Connecting you to the operator."},
			(&twiml.Dial{CallerID: h.Cfg.CallerID}).Add(&twiml.Number{Number: h.Cfg.OperatorNumber}),
		)
	case ivr.ActionInvalid:
		r.Add(
			&twiml.Say{Voice: "alice", Text: "That extension was not recognized."},
			&twiml.Redirect{Method: "POST",
				URL: h.callbackURL("/webhooks/twilio/ivr", url.Values{"tenant": {d.TenantID}})},
		)
	case ivr.ActionOperator:
		r.Add(
			&twiml.Say{Voice: "alice", Text: "Connecting you to the operator."},
			(&twiml.Dial{CallerID: h.Cfg.CallerID}).Add(&twiml.Number{Number: h.Cfg.OperatorNumber}),
		)
	case ivr.ActionForward:
		r.Add((&twiml.Dial{
			CallerID: h.Cfg.CallerID,
			Timeout:  d.DialTimeoutSeconds,
		}).Add(&twiml.Number{Number: d.ForwardTo}))
	default:
		r.Add(
			&twiml.Say{Voice: "alice", Text: "Goodbye."},
			&twiml.Hangup{},
		)
	}
	doc, err := r.Render()
	return mustDoc(doc, err, h.Log)
}

func (h *WebhookHandlers) voicemailTwiML(d ivr.Decision) string {
	q := url.Values{
		"tenant":       {d.TenantID},
		"extension_id": {d.Extension.ID},
		"user_id":      {d.Extension.UserID},
	}
	doc, err := twiml.New().Add(
		&twiml.Say{Voice: "alice",
			Text: "The person you are trying to reach is unavailable. Please leave a message after the tone."},
		&twiml.Record{
			Action:             h.callbackURL("/webhooks/twilio/recording-done", url.Values{"tenant": {d.TenantID}}),
			Method:             "POST",
			MaxLength:          120,
			PlayBeep:           twiml.Bool(true),
			Transcribe:         twiml.Bool(true),
			TranscribeCallback: h.callbackURL("/webhooks/twilio/transcription", q),
			RecordingCallback:  h.callbackURL("/webhooks/twilio/recording-status", url.Values{"tenant": {d.TenantID}}),
		},
		&twiml.Hangup{},
	).Render()
	return mustDoc(doc, err, h.Log)
}

// errorTwiML is the polite dead end: apologize, try the operator, hang up.
func (h *WebhookHandlers) errorTwiML() string {
	doc, err := twiml.New().Add(
		&twiml.Say{Voice: "alice", Text: "We are unable to process your call right now. Connecting you to the operator."},
		(&twiml.Dial{CallerID: h.Cfg.CallerID}).Add(&twiml.Number{Number: h.Cfg.OperatorNumber}),
		&twiml.Hangup{},
	).Render()
	return mustDoc(doc, err, h.Log)
}

func (h *WebhookHandlers) callbackURL(path string, q url.Values) string {
	return h.Cfg.PublicBaseURL + path + "?" + q.Encode()
}

// mustDoc guards against programming errors in verb construction; the
// documents above are static shapes and validate by construction.
func mustDoc(doc string, err error, log *slog.Logger) string {
	if err != nil {
		log.Error("twiml render failed", slog.String("error", err.Error()))
		fallback, _ := twiml.New().Add(&twiml.Hangup{}).Render()
		return fallback
	}
	return doc
}

/* ===================== CALL LOG HELPERS ===================== */

func (h *WebhookHandlers) appendLog(c *gin.Context, tenantID string, form telephony.VoiceForm, ext directory.Extension, status calllog.Status) {
	_, err := h.Logs.Append(c.Request.Context(), calllog.CallLog{
		TenantID:    tenantID,
		CallSID:     form.CallSid,
		Direction:   calllog.DirectionInbound,
		FromNumber:  form.From,
		ToNumber:    form.To,
		ExtensionID: ext.ID,
		UserID:      ext.UserID,
		Status:      status,
	})
	if err != nil {
		h.Log.Warn("call log append failed",
			slog.String("call_sid", form.CallSid), slog.String("error", err.Error()))
	}
}

func (h *WebhookHandlers) finishLog(c *gin.Context, tenantID, callSID string, status calllog.Status) {
	if err := h.Logs.Finish(c.Request.Context(), tenantID, callSID, status, 0); err != nil {
		h.Log.Warn("call log finish failed",
			slog.String("call_sid", callSID), slog.String("error", err.Error()))
	}
}

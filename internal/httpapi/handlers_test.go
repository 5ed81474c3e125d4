package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"pbx-engine/internal/auth"
	"pbx-engine/internal/calllog"
	"pbx-engine/internal/conference"
	"pbx-engine/internal/directory"
	"pbx-engine/internal/internalcall"
	"pbx-engine/internal/ivr"
	"pbx-engine/internal/presence"
	"pbx-engine/internal/reporting"
	"pbx-engine/internal/telephony"
	"pbx-engine/internal/voicemail"
	"pbx-engine/internal/webhook"
)

const (
	testTenant   = "t-1"
	testUser     = "user-1"
	testOperator = "+12399661917"
	testCallerID = "+12394267058"
)

type fakeLeg struct {
	SID, To, From, TwiML string
}

type fakeCarrier struct {
	mu         sync.Mutex
	nextSID    int
	created    []fakeLeg
	redirected []fakeLeg
	completed  []string
	confirmAll bool
	failCreate bool
	parts      map[string][]telephony.ConferenceParticipant
}

func (f *fakeCarrier) CreateCall(ctx context.Context, to, from, twiML string) (telephony.Call, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return telephony.Call{}, &telephony.Exception{
			Status: 400, Code: telephony.ErrorCodeInvalidToPhoneNumber, Message: "invalid number",
		}
	}
	f.nextSID++
	leg := fakeLeg{SID: fmt.Sprintf("CA%04d", f.nextSID), To: to, From: from, TwiML: twiML}
	f.created = append(f.created, leg)
	return telephony.Call{SID: leg.SID, To: to, From: from}, nil
}

func (f *fakeCarrier) RedirectCall(ctx context.Context, callSID, twiML string) (telephony.Call, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirected = append(f.redirected, fakeLeg{SID: callSID, TwiML: twiML})
	return telephony.Call{SID: callSID}, nil
}

func (f *fakeCarrier) CompleteConference(ctx context.Context, conferenceSID string) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, conferenceSID)
	return nil
}

func (f *fakeCarrier) FindActiveConference(ctx context.Context, friendlyName string) (telephony.Conference, bool, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmAll {
		return telephony.Conference{SID: "CF-test", FriendlyName: friendlyName, Status: "in-progress"}, true, nil
	}
	return telephony.Conference{}, false, nil
}

func (f *fakeCarrier) LiveParticipants(ctx context.Context, conferenceSID string) ([]telephony.ConferenceParticipant, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parts[conferenceSID], nil
}

type fix struct {
	router  *gin.Engine
	carrier *fakeCarrier
	pres    *presence.Service
	calls   *internalcall.Service
	logRepo *calllog.MemoryRepo
	vmRepo  *voicemail.MemoryRepo
	journal *webhook.MemoryJournalRepo
}

// newFix wires the whole stack on in-memory repositories with two seeded
// extensions: 101 (user-1) and 102 (user-2, voicemail enabled).
func newFix(t *testing.T) *fix {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	dirRepo := &directory.MemoryRepo{Extensions: []directory.Extension{
		{ID: "ext-101", TenantID: testTenant, Number: "101", UserID: "user-1",
			ContactNumber: "+15550000101", Status: directory.ExtensionStatusActive},
		{ID: "ext-102", TenantID: testTenant, Number: "102", UserID: "user-2",
			ContactNumber: "+15550000102", VoicemailEnabled: true, Status: directory.ExtensionStatusActive},
	}}
	dirSvc := directory.NewService(dirRepo)
	presSvc := presence.NewService(presence.NewMemoryRepo())
	logRepo := &calllog.MemoryRepo{}
	logSvc := calllog.NewService(logRepo)
	vmRepo := &voicemail.MemoryRepo{}
	vmSvc := voicemail.NewService(vmRepo, logSvc)

	carrier := &fakeCarrier{parts: make(map[string][]telephony.ConferenceParticipant)}

	callSvc := internalcall.NewService(internalcall.NewMemoryRepo(), dirSvc, presSvc, logSvc,
		carrier, internalcall.NewMemoryLocker(), testCallerID, log)
	confSvc := conference.NewService(conference.NewMemoryRepo(), carrier, conference.Config{
		CallerID:          testCallerID,
		WaitURL:           "https://hold.example/music",
		TransferAllowList: []string{testOperator},
	}, log)

	journalRepo := webhook.NewMemoryJournalRepo()
	reconciler := webhook.NewReconciler(webhook.NewMemoryDeduper(),
		webhook.NewJournal(journalRepo), callSvc, confSvc, log)

	ctx := context.Background()
	for _, u := range []struct{ user, ext string }{{"user-1", "ext-101"}, {"user-2", "ext-102"}} {
		if _, err := presSvc.SetStatus(ctx, testTenant, u.user, u.ext, presence.StatusAvailable, ""); err != nil {
			t.Fatalf("seed presence: %v", err)
		}
	}

	api := &Handlers{
		Calls:       callSvc,
		Conferences: confSvc,
		Presence:    presSvc,
		Voicemail:   vmSvc,
		Reports:     reporting.NewService(logSvc),
	}
	hooks := &WebhookHandlers{
		Machine:    ivr.NewMachine(dirSvc, presSvc),
		Calls:      callSvc,
		Voicemail:  vmSvc,
		Logs:       logSvc,
		Reconciler: reconciler,
		Cfg: WebhookConfig{
			PublicBaseURL:  "https://pbx.example",
			OperatorNumber: testOperator,
			CallerID:       testCallerID,
			WaitURL:        "https://hold.example/music",
		},
		Log: log,
	}

	r := gin.New()
	// Stands in for the JWT middleware.
	identity := func(c *gin.Context) {
		c.Request = c.Request.WithContext(
			auth.WithIdentity(c.Request.Context(), testUser, testTenant, "agent"))
	}
	v1 := r.Group("/v1", identity)
	v1.POST("/internal-calls", api.StartInternalCall)
	v1.GET("/internal-calls", api.ListInternalCalls)
	v1.GET("/internal-calls/:id", api.GetInternalCall)
	v1.DELETE("/internal-calls/:id", api.EndInternalCall)
	v1.POST("/conference/start", api.StartConference)
	v1.POST("/conference/add-participant", api.AddConferenceParticipant)
	v1.GET("/conference/:id", api.GetConference)
	v1.POST("/calls/transfer", api.TransferCall)
	v1.GET("/presence", api.ListPresence)
	v1.GET("/presence/:user_id", api.GetPresence)
	v1.PUT("/presence/:user_id", api.SetPresence)
	v1.POST("/presence/heartbeat", api.Heartbeat)
	v1.GET("/voicemails", api.ListVoicemails)
	v1.POST("/voicemails/:id/listened", api.MarkVoicemailListened)
	v1.GET("/reports/calls-summary", api.CallsSummary)

	tw := r.Group("/webhooks/twilio")
	tw.POST("/inbound", hooks.Voice)
	tw.POST("/inbound/fallback", hooks.VoiceFallback)
	tw.POST("/ivr", hooks.Voice)
	tw.POST("/dial-result", hooks.DialResult)
	tw.POST("/conference-status", hooks.ConferenceStatus)
	tw.POST("/recording-status", hooks.RecordingStatus)
	tw.POST("/recording-done", hooks.RecordingDone)
	tw.POST("/transcription", hooks.Transcription)

	return &fix{
		router:  r,
		carrier: carrier,
		pres:    presSvc,
		calls:   callSvc,
		logRepo: logRepo,
		vmRepo:  vmRepo,
		journal: journalRepo,
	}
}

func (f *fix) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestStartAndEndInternalCall(t *testing.T) {
	f := newFix(t)

	w := f.doJSON(t, http.MethodPost, "/v1/internal-calls", gin.H{
		"from_extension_id": "ext-101", "to_extension_id": "ext-102", "tenant_id": testTenant,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("start: code = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		InternalCall   internalcall.InternalCall `json:"internal_call"`
		ConferenceName string                    `json:"conference_name"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	call := created.InternalCall
	if call.FromUserID != testUser || call.ToUserID != "user-2" {
		t.Errorf("call parties = %s -> %s", call.FromUserID, call.ToUserID)
	}
	if created.ConferenceName == "" || created.ConferenceName != call.ConferenceName {
		t.Errorf("conference_name = %q, call has %q", created.ConferenceName, call.ConferenceName)
	}
	if len(f.carrier.created) != 2 {
		t.Fatalf("carrier legs = %d, want 2", len(f.carrier.created))
	}

	p, _ := f.pres.Get(context.Background(), testTenant, "user-2")
	if p.Status != presence.StatusBusy {
		t.Errorf("callee presence = %s, want busy", p.Status)
	}

	w = f.doJSON(t, http.MethodDelete, "/v1/internal-calls/"+call.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end: code = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "duration_seconds") {
		t.Errorf("end body = %s, want duration_seconds", w.Body.String())
	}
	p, _ = f.pres.Get(context.Background(), testTenant, "user-2")
	if p.Status != presence.StatusAvailable {
		t.Errorf("callee presence after end = %s, want available", p.Status)
	}
}

func TestStartInternalCallUnavailableCallee(t *testing.T) {
	f := newFix(t)
	if _, err := f.pres.SetStatus(context.Background(), testTenant, "user-2", "", presence.StatusDND, ""); err != nil {
		t.Fatalf("set dnd: %v", err)
	}

	w := f.doJSON(t, http.MethodPost, "/v1/internal-calls", gin.H{
		"from_extension_id": "ext-101", "to_extension_id": "ext-102",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409, body = %s", w.Code, w.Body.String())
	}
	if len(f.carrier.created) != 0 {
		t.Errorf("carrier legs = %d, want 0", len(f.carrier.created))
	}
}

func TestStartInternalCallBusyCallee(t *testing.T) {
	f := newFix(t)
	if _, err := f.pres.SetStatus(context.Background(), testTenant, "user-2", "", presence.StatusBusy, ""); err != nil {
		t.Fatalf("set busy: %v", err)
	}

	w := f.doJSON(t, http.MethodPost, "/v1/internal-calls", gin.H{
		"from_extension_id": "ext-101", "to_extension_id": "ext-102",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201 for a busy callee, body = %s", w.Code, w.Body.String())
	}
}

func TestStartInternalCallForeignTenant(t *testing.T) {
	f := newFix(t)
	w := f.doJSON(t, http.MethodPost, "/v1/internal-calls", gin.H{
		"from_extension_id": "ext-101", "to_extension_id": "ext-102", "tenant_id": "t-other",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404, body = %s", w.Code, w.Body.String())
	}
}

func TestGetInternalCallNotFound(t *testing.T) {
	f := newFix(t)
	w := f.doJSON(t, http.MethodGet, "/v1/internal-calls/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", w.Code)
	}
}

func TestStartConferenceConfirmed(t *testing.T) {
	f := newFix(t)
	f.carrier.confirmAll = true

	w := f.doJSON(t, http.MethodPost, "/v1/conference/start", gin.H{"currentCallSid": "CA-live"})
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}
	var conf conference.Conference
	if err := json.Unmarshal(w.Body.Bytes(), &conf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if conf.Status != conference.StatusActive || conf.SID != "CF-test" {
		t.Errorf("conference = %+v, want active with SID", conf)
	}
	if len(f.carrier.redirected) != 1 || f.carrier.redirected[0].SID != "CA-live" {
		t.Fatalf("redirects = %+v", f.carrier.redirected)
	}
	if !strings.Contains(f.carrier.redirected[0].TwiML, `startConferenceOnEnter="true"`) {
		t.Errorf("host leg twiml = %s", f.carrier.redirected[0].TwiML)
	}
}

func TestTransferRejectsUnlistedTarget(t *testing.T) {
	f := newFix(t)

	w := f.doJSON(t, http.MethodPost, "/v1/calls/transfer", gin.H{
		"callSid": "CA-live", "transferTo": "+15551234567", "transferType": "cold",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d, want 422, body = %s", w.Code, w.Body.String())
	}
	if len(f.carrier.redirected) != 0 || len(f.carrier.created) != 0 {
		t.Errorf("carrier touched on rejected transfer")
	}
}

func TestTransferColdToOperator(t *testing.T) {
	f := newFix(t)

	w := f.doJSON(t, http.MethodPost, "/v1/calls/transfer", gin.H{
		"callSid": "CA-live", "transferTo": testOperator,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}
	var res struct {
		Transfer conference.TransferResult `json:"transfer"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Transfer.Mode != conference.TransferCold || res.Transfer.Target != testOperator {
		t.Errorf("result = %+v", res.Transfer)
	}
	if len(f.carrier.redirected) != 1 {
		t.Fatalf("redirects = %d, want 1", len(f.carrier.redirected))
	}
	if !strings.Contains(f.carrier.redirected[0].TwiML, testOperator) {
		t.Errorf("redirect twiml = %s", f.carrier.redirected[0].TwiML)
	}
}

func TestPresenceRoundTrip(t *testing.T) {
	f := newFix(t)

	w := f.doJSON(t, http.MethodPut, "/v1/presence/"+testUser, gin.H{"status": "dnd", "status_message": "lunch"})
	if w.Code != http.StatusOK {
		t.Fatalf("set: code = %d, body = %s", w.Code, w.Body.String())
	}

	w = f.doJSON(t, http.MethodGet, "/v1/presence/"+testUser, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: code = %d", w.Code)
	}
	var p presence.Presence
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Status != presence.StatusDND || p.StatusMessage != "lunch" {
		t.Errorf("presence = %+v", p)
	}
}

func TestSetPresenceRejectsInvalidStatus(t *testing.T) {
	f := newFix(t)
	w := f.doJSON(t, http.MethodPut, "/v1/presence/"+testUser, gin.H{"status": "gone-fishing"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400, body = %s", w.Code, w.Body.String())
	}
}

func TestHeartbeat(t *testing.T) {
	f := newFix(t)
	w := f.doJSON(t, http.MethodPost, "/v1/presence/heartbeat", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("code = %d, want 204, body = %s", w.Code, w.Body.String())
	}
}

func TestCallsSummaryValidatesRange(t *testing.T) {
	f := newFix(t)
	w := f.doJSON(t, http.MethodGet, "/v1/reports/calls-summary?from=not-a-time&to=2026-09-01T00:00:00Z", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", w.Code)
	}

	w = f.doJSON(t, http.MethodGet,
		"/v1/reports/calls-summary?from=2026-08-01T00:00:00Z&to=2026-09-01T00:00:00Z", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestMarkVoicemailListenedNotFound(t *testing.T) {
	f := newFix(t)
	w := f.doJSON(t, http.MethodPost, "/v1/voicemails/nope/listened", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", w.Code)
	}
}

package conference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"pbx-engine/internal/telephony"
)

type fakeCarrier struct {
	redirects []struct{ CallSID, TwiML string }
	created   []struct{ To, From, TwiML string }
	createErr error

	activeByName map[string]telephony.Conference
	participants map[string][]telephony.ConferenceParticipant
	findErr      error
}

func (f *fakeCarrier) CreateCall(ctx context.Context, to, from, twiML string) (telephony.Call, error) {
	if f.createErr != nil {
		return telephony.Call{}, f.createErr
	}
	f.created = append(f.created, struct{ To, From, TwiML string }{to, from, twiML})
	return telephony.Call{SID: "CA-new", To: to}, nil
}

func (f *fakeCarrier) RedirectCall(ctx context.Context, callSID, twiML string) (telephony.Call, error) {
	f.redirects = append(f.redirects, struct{ CallSID, TwiML string }{callSID, twiML})
	return telephony.Call{SID: callSID}, nil
}

func (f *fakeCarrier) CompleteConference(ctx context.Context, conferenceSID string) error {
	return nil
}

func (f *fakeCarrier) FindActiveConference(ctx context.Context, friendlyName string) (telephony.Conference, bool, error) {
	if f.findErr != nil {
		return telephony.Conference{}, false, f.findErr
	}
	c, ok := f.activeByName[friendlyName]
	return c, ok, nil
}

func (f *fakeCarrier) LiveParticipants(ctx context.Context, conferenceSID string) ([]telephony.ConferenceParticipant, error) {
	return f.participants[conferenceSID], nil
}

func newTestService(carrier *fakeCarrier) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo, carrier, Config{
		CallerID:          "+12394267058",
		WaitURL:           "http://twimlets.com/holdmusic?Bucket=com.twilio.music.ambient",
		TransferAllowList: []string{"+12399661917"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.sleep = func(time.Duration) {}
	return svc, repo
}

func TestStartConfirmsAndRecordsLegs(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{
			"CF1": {{CallSID: "CA-host"}, {CallSID: "CA-other"}},
		},
	}
	svc, _ := newTestService(carrier)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }
	name := "conf-t-1-" + strconv.FormatInt(now.UnixMilli(), 10)
	carrier.activeByName[name] = telephony.Conference{SID: "CF1", Status: "in-progress"}

	conf, err := svc.Start(context.Background(), "t-1", "u-1", "CA-host", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if conf.Status != StatusActive || conf.SID != "CF1" {
		t.Errorf("conf = %+v, want active with CF1", conf)
	}
	if len(carrier.redirects) != 1 || carrier.redirects[0].CallSID != "CA-host" {
		t.Fatalf("redirects = %+v", carrier.redirects)
	}
	doc := carrier.redirects[0].TwiML
	for _, want := range []string{`startConferenceOnEnter="true"`, `endConferenceOnExit="false"`, `beep="true"`, "holdmusic"} {
		if !strings.Contains(doc, want) {
			t.Errorf("redirect twiml missing %q:\n%s", want, doc)
		}
	}

	view, err := svc.Get(context.Background(), "t-1", conf.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Participants) != 2 {
		t.Fatalf("participants = %+v", view.Participants)
	}
	var host *Participant
	for i := range view.Participants {
		if view.Participants[i].CallSID == "CA-host" {
			host = &view.Participants[i]
		}
	}
	if host == nil || host.Role != RoleHost {
		t.Errorf("host leg not recorded: %+v", view.Participants)
	}
}

func TestStartUnconfirmedStaysPending(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{},
	}
	svc, _ := newTestService(carrier)

	conf, err := svc.Start(context.Background(), "t-1", "u-1", "CA-host", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if conf.Status != StatusPending || conf.SID != "" {
		t.Errorf("conf = %+v, want pending without SID", conf)
	}
}

func TestStartHonorsRequestedName(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{},
	}
	svc, _ := newTestService(carrier)

	conf, err := svc.Start(context.Background(), "t-1", "u-1", "CA-host", "sales-huddle")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if conf.Name != "sales-huddle" {
		t.Errorf("name = %q, want the requested one", conf.Name)
	}
	if !strings.Contains(carrier.redirects[0].TwiML, "sales-huddle") {
		t.Errorf("redirect twiml = %s", carrier.redirects[0].TwiML)
	}
}

func TestAddParticipantNormalizesAndDials(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{},
	}
	svc, repo := newTestService(carrier)
	conf := seedConference(t, repo, StatusActive, "CF1")

	p, err := svc.AddParticipant(context.Background(), "t-1", conf.ID, "(239) 555-0101")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.Number != "+12395550101" {
		t.Errorf("number = %q, want normalized E.164", p.Number)
	}
	if len(carrier.created) != 1 {
		t.Fatalf("created = %+v", carrier.created)
	}
	doc := carrier.created[0].TwiML
	if !strings.Contains(doc, `startConferenceOnEnter="false"`) || !strings.Contains(doc, `endConferenceOnExit="false"`) {
		t.Errorf("participant twiml: %s", doc)
	}
}

func TestAddParticipantCarrierFailureLeavesNoRow(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{},
		createErr:    &telephony.Exception{Status: 400, Code: telephony.ErrorCodeUnverifiedNumber, Message: "unverified"},
	}
	svc, repo := newTestService(carrier)
	conf := seedConference(t, repo, StatusActive, "CF1")

	_, err := svc.AddParticipant(context.Background(), "t-1", conf.ID, "2395550101")
	if !telephony.IsUnverifiedNumber(err) {
		t.Fatalf("err = %v, want unverified-number exception", err)
	}
	got, _ := repo.ListParticipants(context.Background(), "t-1", conf.ID)
	if len(got) != 0 {
		t.Errorf("participants = %+v, want none after carrier failure", got)
	}
}

func TestAddParticipantValidation(t *testing.T) {
	svc, repo := newTestService(&fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{},
	})
	conf := seedConference(t, repo, StatusCompleted, "CF1")

	if _, err := svc.AddParticipant(context.Background(), "t-1", conf.ID, "bogus"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad number: err = %v", err)
	}
	if _, err := svc.AddParticipant(context.Background(), "t-1", "c-ghost", "2395550101"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown conference: err = %v", err)
	}
	if _, err := svc.AddParticipant(context.Background(), "t-1", conf.ID, "2395550101"); !errors.Is(err, ErrConflict) {
		t.Errorf("completed conference: err = %v", err)
	}
}

func TestTransferRejectsNonAllowListed(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{},
	}
	svc, _ := newTestService(carrier)

	_, err := svc.Transfer(context.Background(), "t-1", "CA1", "+15550001111", TransferCold)
	if !errors.Is(err, ErrUnsupportedTarget) {
		t.Fatalf("err = %v, want ErrUnsupportedTarget", err)
	}
	if len(carrier.redirects) != 0 || len(carrier.created) != 0 {
		t.Error("a rejected target must never touch the carrier")
	}
}

func TestTransferCold(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{},
	}
	svc, _ := newTestService(carrier)

	res, err := svc.Transfer(context.Background(), "t-1", "CA1", "2399661917", TransferCold)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Target != "+12399661917" || res.ConferenceName != "" {
		t.Errorf("result = %+v", res)
	}
	if len(carrier.redirects) != 1 {
		t.Fatalf("redirects = %+v", carrier.redirects)
	}
	doc := carrier.redirects[0].TwiML
	if !strings.Contains(doc, "<Number>+12399661917</Number>") {
		t.Errorf("cold transfer twiml: %s", doc)
	}
}

func TestTransferWarm(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{},
	}
	svc, _ := newTestService(carrier)

	res, err := svc.Transfer(context.Background(), "t-1", "CA1", "+12399661917", TransferWarm)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !strings.HasPrefix(res.ConferenceName, "transfer-") {
		t.Errorf("conference name = %q", res.ConferenceName)
	}
	if res.TargetCallSID != "CA-new" {
		t.Errorf("target call sid = %q", res.TargetCallSID)
	}
	if len(carrier.redirects) != 1 || len(carrier.created) != 1 {
		t.Fatalf("redirects=%d created=%d", len(carrier.redirects), len(carrier.created))
	}
	if !strings.Contains(carrier.redirects[0].TwiML, `endConferenceOnExit="true"`) {
		t.Errorf("transferred leg twiml: %s", carrier.redirects[0].TwiML)
	}
	target := carrier.created[0].TwiML
	if !strings.Contains(target, `startConferenceOnEnter="false"`) || !strings.Contains(target, `endConferenceOnExit="true"`) {
		t.Errorf("target leg twiml: %s", target)
	}
}

func TestGetReconcilesEmptyActiveConference(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{"CF1": nil},
	}
	svc, repo := newTestService(carrier)
	conf := seedConference(t, repo, StatusActive, "CF1")
	repo.AddParticipant(context.Background(), Participant{
		ID: "p1", ConferenceID: conf.ID, TenantID: "t-1", CallSID: "CA1",
		Role: RoleHost, Status: ParticipantConnected, JoinedAt: time.Now(),
	})

	view, err := svc.Get(context.Background(), "t-1", conf.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Conference.Status != StatusCompleted || view.Conference.EndedAt == nil {
		t.Errorf("conference = %+v, want completed", view.Conference)
	}
	if view.Participants[0].Status != ParticipantLeft {
		t.Errorf("participant = %+v, want closed", view.Participants[0])
	}
}

func TestGetKeepsLiveConferenceIntact(t *testing.T) {
	carrier := &fakeCarrier{
		activeByName: map[string]telephony.Conference{},
		participants: map[string][]telephony.ConferenceParticipant{
			"CF1": {{CallSID: "CA1"}},
		},
	}
	svc, repo := newTestService(carrier)
	conf := seedConference(t, repo, StatusActive, "CF1")
	repo.AddParticipant(context.Background(), Participant{
		ID: "p1", ConferenceID: conf.ID, TenantID: "t-1", CallSID: "CA1",
		Role: RoleHost, Status: ParticipantConnected, JoinedAt: time.Now(),
	})
	repo.AddParticipant(context.Background(), Participant{
		ID: "p2", ConferenceID: conf.ID, TenantID: "t-1", CallSID: "CA2",
		Role: RoleParticipant, Status: ParticipantConnected, JoinedAt: time.Now(),
	})

	view, err := svc.Get(context.Background(), "t-1", conf.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Conference.Status != StatusActive {
		t.Errorf("status = %q, live conference must stay active", view.Conference.Status)
	}
	for _, p := range view.Participants {
		if p.Status != ParticipantConnected {
			t.Errorf("participant %s = %q, absent legs must not be forced out while the bridge lives", p.ID, p.Status)
		}
	}
}

func seedConference(t *testing.T, repo *MemoryRepo, status Status, sid string) Conference {
	t.Helper()
	conf := Conference{
		ID: "c1", TenantID: "t-1", Name: "conf-t-1-1", SID: sid,
		CreatedByUserID: "u-1", SourceCallSID: "CA-host",
		Status: status, StartedAt: time.Now(), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := repo.Insert(context.Background(), conf); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return conf
}

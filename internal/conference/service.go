package conference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pbx-engine/internal/telephony"
	"pbx-engine/internal/telephony/twiml"
)

var (
	ErrInvalidArgument   = errors.New("invalid conference request")
	ErrNotFound          = errors.New("conference not found")
	ErrConflict          = errors.New("conference already ended")
	ErrUnsupportedTarget = errors.New("transfer target is not allow-listed")
)

// Confirmation polling after the redirect. TwiML conference creation is not
// atomic with the REST API, so the SID shows up with a small lag.
const (
	confirmAttempts = 5
	confirmDelay    = 500 * time.Millisecond
)

// Repository abstracts conference persistence.
type Repository interface {
	Insert(ctx context.Context, c Conference) error
	Get(ctx context.Context, tenantID, id string) (Conference, bool, error)
	FindBySID(ctx context.Context, sid string) (Conference, bool, error)
	FindByName(ctx context.Context, name string) (Conference, bool, error)
	Update(ctx context.Context, c Conference) error

	AddParticipant(ctx context.Context, p Participant) error
	ListParticipants(ctx context.Context, tenantID, conferenceID string) ([]Participant, error)
	UpdateParticipant(ctx context.Context, p Participant) error
}

// Config carries the numbers and URLs conference TwiML is built from.
type Config struct {
	CallerID string
	// WaitURL is the hold music played to parked legs.
	WaitURL string
	// TransferAllowList are the only numbers Transfer may dial.
	TransferAllowList []string
}

// Service manages ad-hoc conferences and call transfers.
type Service struct {
	repo    Repository
	carrier telephony.Carrier
	cfg     Config
	log     *slog.Logger

	clock func() time.Time
	sleep func(time.Duration)
}

func NewService(repo Repository, carrier telephony.Carrier, cfg Config, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		carrier: carrier,
		cfg:     cfg,
		log:     log,
		clock:   time.Now,
		sleep:   time.Sleep,
	}
}

// Start escalates a live call leg into a named conference. The leg is
// redirected into the bridge, then the carrier is polled for the conference
// SID; if confirmation lags, the row stays pending until a webhook or read
// reconciles it. An empty name gets a generated one.
func (s *Service) Start(ctx context.Context, tenantID, userID, callSID, name string) (Conference, error) {
	if tenantID == "" || callSID == "" {
		return Conference{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	if name == "" {
		name = fmt.Sprintf("conf-%s-%d", tenantID, now.UnixMilli())
	}

	doc, err := twiml.New().Add((&twiml.Dial{}).Add(&twiml.Conference{
		Name:                   name,
		StartConferenceOnEnter: twiml.Bool(true),
		EndConferenceOnExit:    twiml.Bool(false),
		Beep:                   "true",
		WaitURL:                s.cfg.WaitURL,
	})).Render()
	if err != nil {
		return Conference{}, err
	}
	if _, err := s.carrier.RedirectCall(ctx, callSID, doc); err != nil {
		return Conference{}, err
	}

	conf := Conference{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Name:            name,
		CreatedByUserID: userID,
		SourceCallSID:   callSID,
		Status:          StatusPending,
		StartedAt:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	live, found := s.confirm(ctx, name)
	if found {
		conf.SID = live.SID
		conf.Status = StatusActive
	}
	if err := s.repo.Insert(ctx, conf); err != nil {
		return Conference{}, err
	}

	if found {
		s.recordLiveLegs(ctx, conf, callSID)
	} else {
		// At minimum the redirected leg is on its way in.
		s.insertParticipant(ctx, conf, callSID, "", RoleHost)
	}
	return conf, nil
}

func (s *Service) confirm(ctx context.Context, name string) (telephony.Conference, bool) {
	for attempt := 0; attempt < confirmAttempts; attempt++ {
		if attempt > 0 {
			s.sleep(confirmDelay)
		}
		live, ok, err := s.carrier.FindActiveConference(ctx, name)
		if err != nil {
			s.log.Warn("conference confirmation poll failed",
				slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		if ok {
			return live, true
		}
	}
	return telephony.Conference{}, false
}

func (s *Service) recordLiveLegs(ctx context.Context, conf Conference, hostCallSID string) {
	legs, err := s.carrier.LiveParticipants(ctx, conf.SID)
	if err != nil {
		s.log.Warn("participant listing failed",
			slog.String("conference_sid", conf.SID), slog.String("error", err.Error()))
		s.insertParticipant(ctx, conf, hostCallSID, "", RoleHost)
		return
	}
	seenHost := false
	for _, leg := range legs {
		role := RoleParticipant
		if leg.CallSID == hostCallSID {
			role = RoleHost
			seenHost = true
		}
		s.insertParticipant(ctx, conf, leg.CallSID, "", role)
	}
	if !seenHost {
		s.insertParticipant(ctx, conf, hostCallSID, "", RoleHost)
	}
}

func (s *Service) insertParticipant(ctx context.Context, conf Conference, callSID, number string, role ParticipantRole) {
	p := Participant{
		ID:           uuid.NewString(),
		ConferenceID: conf.ID,
		TenantID:     conf.TenantID,
		CallSID:      callSID,
		Number:       number,
		Role:         role,
		Status:       ParticipantConnected,
		JoinedAt:     s.clock().UTC(),
	}
	if err := s.repo.AddParticipant(ctx, p); err != nil {
		s.log.Warn("participant insert failed",
			slog.String("conference_id", conf.ID), slog.String("error", err.Error()))
	}
}

// AddParticipant dials an external number into an existing conference. The
// local row is written only after the carrier accepted the call; a carrier
// failure leaves no trace.
func (s *Service) AddParticipant(ctx context.Context, tenantID, conferenceID, rawNumber string) (Participant, error) {
	if tenantID == "" || conferenceID == "" {
		return Participant{}, ErrInvalidArgument
	}
	number, err := NormalizeE164(rawNumber)
	if err != nil {
		return Participant{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	conf, ok, err := s.repo.Get(ctx, tenantID, conferenceID)
	if err != nil {
		return Participant{}, err
	}
	if !ok {
		return Participant{}, ErrNotFound
	}
	if conf.Status.Terminal() {
		return Participant{}, ErrConflict
	}

	doc, err := twiml.New().Add((&twiml.Dial{}).Add(&twiml.Conference{
		Name:                   conf.Name,
		StartConferenceOnEnter: twiml.Bool(false),
		EndConferenceOnExit:    twiml.Bool(false),
	})).Render()
	if err != nil {
		return Participant{}, err
	}

	call, err := s.carrier.CreateCall(ctx, number, s.cfg.CallerID, doc)
	if err != nil {
		return Participant{}, err
	}

	p := Participant{
		ID:           uuid.NewString(),
		ConferenceID: conf.ID,
		TenantID:     tenantID,
		CallSID:      call.SID,
		Number:       number,
		Role:         RoleParticipant,
		Status:       ParticipantConnected,
		JoinedAt:     s.clock().UTC(),
	}
	if err := s.repo.AddParticipant(ctx, p); err != nil {
		return Participant{}, err
	}
	return p, nil
}

// TransferMode selects how a transfer detaches the original leg.
type TransferMode string

const (
	// TransferWarm bridges through a conference so the parties overlap.
	TransferWarm TransferMode = "warm"
	// TransferCold redirects the leg straight to the target.
	TransferCold TransferMode = "cold"
)

// TransferResult describes what the transfer did at the carrier.
type TransferResult struct {
	Mode           TransferMode `json:"mode"`
	Target         string       `json:"target"`
	ConferenceName string       `json:"conference_name,omitempty"`
	TargetCallSID  string       `json:"target_call_sid,omitempty"`
}

// Transfer hands a live leg to an allow-listed number. Targets outside the
// allow-list fail before any carrier traffic.
func (s *Service) Transfer(ctx context.Context, tenantID, callSID, rawTarget string, mode TransferMode) (TransferResult, error) {
	if tenantID == "" || callSID == "" {
		return TransferResult{}, ErrInvalidArgument
	}
	if mode != TransferWarm && mode != TransferCold {
		return TransferResult{}, ErrInvalidArgument
	}
	target, err := NormalizeE164(rawTarget)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if !s.allowed(target) {
		return TransferResult{}, ErrUnsupportedTarget
	}

	if mode == TransferCold {
		doc, err := twiml.New().Add((&twiml.Dial{CallerID: s.cfg.CallerID}).Add(
			&twiml.Number{Number: target},
		)).Render()
		if err != nil {
			return TransferResult{}, err
		}
		if _, err := s.carrier.RedirectCall(ctx, callSID, doc); err != nil {
			return TransferResult{}, err
		}
		return TransferResult{Mode: TransferCold, Target: target}, nil
	}

	name := fmt.Sprintf("transfer-%d", s.clock().UTC().UnixMilli())

	// The transferred leg owns the bridge so an abandoned transfer dies with
	// it; the target leg also tears it down when hanging up.
	legDoc, err := twiml.New().Add((&twiml.Dial{}).Add(&twiml.Conference{
		Name:                   name,
		StartConferenceOnEnter: twiml.Bool(true),
		EndConferenceOnExit:    twiml.Bool(true),
		WaitURL:                s.cfg.WaitURL,
	})).Render()
	if err != nil {
		return TransferResult{}, err
	}
	targetDoc, err := twiml.New().Add((&twiml.Dial{}).Add(&twiml.Conference{
		Name:                   name,
		StartConferenceOnEnter: twiml.Bool(false),
		EndConferenceOnExit:    twiml.Bool(true),
	})).Render()
	if err != nil {
		return TransferResult{}, err
	}

	if _, err := s.carrier.RedirectCall(ctx, callSID, legDoc); err != nil {
		return TransferResult{}, err
	}
	targetCall, err := s.carrier.CreateCall(ctx, target, s.cfg.CallerID, targetDoc)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		Mode:           TransferWarm,
		Target:         target,
		ConferenceName: name,
		TargetCallSID:  targetCall.SID,
	}, nil
}

func (s *Service) allowed(target string) bool {
	for _, n := range s.cfg.TransferAllowList {
		if n == target {
			return true
		}
	}
	return false
}

// View is a conference with its participants.
type View struct {
	Conference   Conference    `json:"conference"`
	Participants []Participant `json:"participants"`
}

// Get returns a conference and lazily reconciles it against the carrier: an
// active bridge the carrier no longer sees (or sees empty) is closed out. A
// single absent leg is never marked disconnected while the bridge lives.
func (s *Service) Get(ctx context.Context, tenantID, id string) (View, error) {
	if tenantID == "" || id == "" {
		return View{}, ErrInvalidArgument
	}
	conf, ok, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return View{}, err
	}
	if !ok {
		return View{}, ErrNotFound
	}

	if conf.Status == StatusActive && conf.SID != "" {
		conf, err = s.reconcile(ctx, conf)
		if err != nil {
			return View{}, err
		}
	}

	participants, err := s.repo.ListParticipants(ctx, tenantID, conf.ID)
	if err != nil {
		return View{}, err
	}
	return View{Conference: conf, Participants: participants}, nil
}

func (s *Service) reconcile(ctx context.Context, conf Conference) (Conference, error) {
	live, err := s.carrier.LiveParticipants(ctx, conf.SID)
	if err != nil {
		if !telephony.IsNotFound(err) {
			// Carrier hiccup: serve local state rather than guessing.
			s.log.Warn("reconcile skipped, carrier unavailable",
				slog.String("conference_sid", conf.SID), slog.String("error", err.Error()))
			return conf, nil
		}
		live = nil
	}
	if len(live) > 0 {
		return conf, nil
	}
	return s.complete(ctx, conf)
}

// Complete force-ends a conference locally (used by webhook reconciliation).
func (s *Service) Complete(ctx context.Context, conf Conference) (Conference, error) {
	if conf.Status.Terminal() {
		return conf, nil
	}
	return s.complete(ctx, conf)
}

// FindBySID looks up the local row owning a carrier conference.
func (s *Service) FindBySID(ctx context.Context, sid string) (Conference, bool, error) {
	if sid == "" {
		return Conference{}, false, nil
	}
	return s.repo.FindBySID(ctx, sid)
}

// MarkActive records carrier confirmation for a pending conference.
func (s *Service) MarkActive(ctx context.Context, conf Conference, sid string) error {
	if conf.Status.Terminal() || (conf.Status == StatusActive && conf.SID != "") {
		return nil
	}
	conf.SID = sid
	conf.Status = StatusActive
	conf.UpdatedAt = s.clock().UTC()
	return s.repo.Update(ctx, conf)
}

// FindByName looks up the local row by friendly name (webhooks can arrive
// before the SID was persisted).
func (s *Service) FindByName(ctx context.Context, name string) (Conference, bool, error) {
	if name == "" {
		return Conference{}, false, nil
	}
	return s.repo.FindByName(ctx, name)
}

func (s *Service) complete(ctx context.Context, conf Conference) (Conference, error) {
	now := s.clock().UTC()
	conf.Status = StatusCompleted
	conf.EndedAt = &now
	conf.UpdatedAt = now
	if err := s.repo.Update(ctx, conf); err != nil {
		return Conference{}, err
	}

	participants, err := s.repo.ListParticipants(ctx, conf.TenantID, conf.ID)
	if err != nil {
		return conf, err
	}
	for _, p := range participants {
		if p.Status != ParticipantConnected {
			continue
		}
		p.Status = ParticipantLeft
		p.LeftAt = &now
		if err := s.repo.UpdateParticipant(ctx, p); err != nil {
			s.log.Warn("participant close failed",
				slog.String("participant_id", p.ID), slog.String("error", err.Error()))
		}
	}
	return conf, nil
}

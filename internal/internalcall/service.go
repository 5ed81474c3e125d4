package internalcall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pbx-engine/internal/calllog"
	"pbx-engine/internal/directory"
	"pbx-engine/internal/presence"
	"pbx-engine/internal/telephony"
	"pbx-engine/internal/telephony/twiml"
)

var (
	ErrInvalidArgument = errors.New("invalid internal call request")
	ErrNotFound        = errors.New("internal call not found")
	ErrUnavailable     = errors.New("callee is unavailable")
	ErrConflict        = errors.New("party is already in call setup")
)

// lockTTL bounds how long a setup lock can outlive a crashed node.
const lockTTL = 30 * time.Second

// Repository abstracts internal call persistence.
type Repository interface {
	Insert(ctx context.Context, c InternalCall) error
	Get(ctx context.Context, tenantID, id string) (InternalCall, bool, error)
	FindByConferenceName(ctx context.Context, conferenceName string) (InternalCall, bool, error)
	FindByConferenceSID(ctx context.Context, conferenceSID string) (InternalCall, bool, error)
	Update(ctx context.Context, c InternalCall) error
	ListByTenant(ctx context.Context, tenantID string) ([]InternalCall, error)
	ListByStatusOlderThan(ctx context.Context, status Status, before time.Time) ([]InternalCall, error)
}

// Service orchestrates extension-to-extension calls.
//
// Call setup marks both parties busy and records the presence versions it
// observed; teardown releases presence only when those versions still hold.
type Service struct {
	repo    Repository
	dir     *directory.Service
	pres    *presence.Service
	logs    *calllog.Service
	carrier telephony.Carrier
	locker  Locker
	log     *slog.Logger

	callerID string
	clock    func() time.Time
}

func NewService(repo Repository, dir *directory.Service, pres *presence.Service, logs *calllog.Service, carrier telephony.Carrier, locker Locker, callerID string, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		dir:      dir,
		pres:     pres,
		logs:     logs,
		carrier:  carrier,
		locker:   locker,
		log:      log,
		callerID: callerID,
		clock:    time.Now,
	}
}

func lockKey(tenantID, userID string) string {
	return "calllock:" + tenantID + ":" + userID
}

// Start places an internal call between two extensions. Both parties'
// devices are dialed into a fresh conference bridge.
//
// A busy callee is still dialed; only dnd and offline refuse the call.
func (s *Service) Start(ctx context.Context, tenantID, fromExtensionID, toExtensionID string) (InternalCall, error) {
	if tenantID == "" || fromExtensionID == "" || toExtensionID == "" {
		return InternalCall{}, ErrInvalidArgument
	}
	if fromExtensionID == toExtensionID {
		return InternalCall{}, ErrInvalidArgument
	}

	fromExt, err := s.dir.ByID(ctx, tenantID, fromExtensionID)
	if err != nil {
		return InternalCall{}, mapDirectoryErr(err)
	}
	toExt, err := s.dir.ByID(ctx, tenantID, toExtensionID)
	if err != nil {
		return InternalCall{}, mapDirectoryErr(err)
	}
	if fromExt.Status != directory.ExtensionStatusActive || toExt.Status != directory.ExtensionStatusActive {
		return InternalCall{}, ErrNotFound
	}
	if fromExt.UserID == "" || toExt.UserID == "" || fromExt.UserID == toExt.UserID {
		return InternalCall{}, ErrInvalidArgument
	}
	if fromExt.ContactNumber == "" || toExt.ContactNumber == "" {
		return InternalCall{}, ErrInvalidArgument
	}
	fromUserID, toUserID := fromExt.UserID, toExt.UserID

	toPresence, err := s.pres.Get(ctx, tenantID, toUserID)
	if err != nil {
		return InternalCall{}, err
	}
	if !toPresence.Status.CanReceiveCall() {
		return InternalCall{}, fmt.Errorf("%w: %s", ErrUnavailable, toPresence.Status)
	}

	callID := uuid.NewString()

	// Lock both users in a stable order so two crossing calls cannot
	// deadlock; they serialize and the loser sees busy presence.
	users := []string{fromUserID, toUserID}
	if users[1] < users[0] {
		users[0], users[1] = users[1], users[0]
	}
	for i, userID := range users {
		ok, err := s.locker.Acquire(ctx, lockKey(tenantID, userID), callID, lockTTL)
		if err != nil {
			s.releaseLocks(ctx, tenantID, users[:i], callID)
			return InternalCall{}, err
		}
		if !ok {
			s.releaseLocks(ctx, tenantID, users[:i], callID)
			return InternalCall{}, ErrConflict
		}
	}
	defer s.releaseLocks(ctx, tenantID, users, callID)

	fromBusy, err := s.pres.MarkBusy(ctx, tenantID, fromUserID, "On call with ext "+toExt.Number)
	if err != nil {
		return InternalCall{}, err
	}
	toBusy, err := s.pres.MarkBusy(ctx, tenantID, toUserID, "On call with ext "+fromExt.Number)
	if err != nil {
		_, _ = s.pres.Release(ctx, tenantID, fromUserID, fromBusy.Version)
		return InternalCall{}, err
	}

	now := s.clock().UTC()
	confName := fmt.Sprintf("internal-%s-%d", tenantID, now.UnixMilli())

	fromLeg, toLeg, err := s.dialLegs(ctx, confName, fromExt.ContactNumber, toExt.ContactNumber)
	if err != nil {
		_, _ = s.pres.Release(ctx, tenantID, fromUserID, fromBusy.Version)
		_, _ = s.pres.Release(ctx, tenantID, toUserID, toBusy.Version)
		return InternalCall{}, err
	}

	call := InternalCall{
		ID:                  callID,
		TenantID:            tenantID,
		FromUserID:          fromUserID,
		ToUserID:            toUserID,
		FromExtensionID:     fromExt.ID,
		ToExtensionID:       toExt.ID,
		ConferenceName:      confName,
		FromCallSID:         fromLeg,
		ToCallSID:           toLeg,
		Status:              StatusRinging,
		FromPresenceVersion: fromBusy.Version,
		ToPresenceVersion:   toBusy.Version,
		StartedAt:           now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Insert(ctx, call); err != nil {
		return InternalCall{}, err
	}

	if _, err := s.logs.Append(ctx, calllog.CallLog{
		TenantID:    tenantID,
		CallSID:     fromLeg,
		Direction:   calllog.DirectionInternal,
		FromNumber:  fromExt.Number,
		ToNumber:    toExt.Number,
		ExtensionID: toExt.ID,
		UserID:      toUserID,
	}); err != nil {
		s.log.Warn("internal call started but call log append failed",
			slog.String("call_id", callID), slog.String("error", err.Error()))
	}
	return call, nil
}

func (s *Service) dialLegs(ctx context.Context, confName, fromNumber, toNumber string) (fromSID, toSID string, err error) {
	// The caller leg owns the bridge: the conference starts when they enter
	// and dies when they hang up. The callee leg just joins.
	callerTwiML, err := conferenceTwiML(confName, true, true)
	if err != nil {
		return "", "", err
	}
	calleeTwiML, err := conferenceTwiML(confName, true, false)
	if err != nil {
		return "", "", err
	}

	fromCall, err := s.carrier.CreateCall(ctx, fromNumber, s.callerID, callerTwiML)
	if err != nil {
		return "", "", err
	}
	toCall, err := s.carrier.CreateCall(ctx, toNumber, s.callerID, calleeTwiML)
	if err != nil {
		// Tear the first leg down instead of leaving it ringing a bridge
		// nobody else can join.
		if _, hangErr := s.carrier.RedirectCall(ctx, fromCall.SID, hangupTwiML()); hangErr != nil {
			s.log.Warn("failed to hang up orphaned caller leg",
				slog.String("call_sid", fromCall.SID), slog.String("error", hangErr.Error()))
		}
		return "", "", err
	}
	return fromCall.SID, toCall.SID, nil
}

// StartInbound bridges an external caller (already parked in confName by the
// IVR) to an extension owner by dialing their device into the same bridge.
// The caller leg is not marked busy; only rows with presence versions release
// presence at teardown, and an inbound caller has none.
func (s *Service) StartInbound(ctx context.Context, tenantID, callerNumber, callerCallSID, confName string, ext directory.Extension) (InternalCall, error) {
	if tenantID == "" || callerCallSID == "" || confName == "" || ext.ContactNumber == "" {
		return InternalCall{}, ErrInvalidArgument
	}

	calleeTwiML, err := conferenceTwiML(confName, false, true)
	if err != nil {
		return InternalCall{}, err
	}
	leg, err := s.carrier.CreateCall(ctx, ext.ContactNumber, s.callerID, calleeTwiML)
	if err != nil {
		return InternalCall{}, err
	}

	now := s.clock().UTC()
	call := InternalCall{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ToUserID:       ext.UserID,
		ToExtensionID:  ext.ID,
		ConferenceName: confName,
		FromCallSID:    callerCallSID,
		ToCallSID:      leg.SID,
		Status:         StatusRinging,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, call); err != nil {
		return InternalCall{}, err
	}

	if _, err := s.logs.Append(ctx, calllog.CallLog{
		TenantID:    tenantID,
		CallSID:     callerCallSID,
		Direction:   calllog.DirectionInbound,
		FromNumber:  callerNumber,
		ToNumber:    ext.Number,
		ExtensionID: ext.ID,
		UserID:      ext.UserID,
	}); err != nil {
		s.log.Warn("inbound call log append failed",
			slog.String("call_id", call.ID), slog.String("error", err.Error()))
	}
	return call, nil
}

// List returns a tenant's internal calls, newest first.
func (s *Service) List(ctx context.Context, tenantID string) ([]InternalCall, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListByTenant(ctx, tenantID)
}

// End tears an internal call down. It is idempotent: ending an already
// terminal call returns the row unchanged.
func (s *Service) End(ctx context.Context, tenantID, id string) (InternalCall, error) {
	if tenantID == "" || id == "" {
		return InternalCall{}, ErrInvalidArgument
	}
	call, ok, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return InternalCall{}, err
	}
	if !ok {
		return InternalCall{}, ErrNotFound
	}
	if call.Status.Terminal() {
		return call, nil
	}
	return s.finish(ctx, call, StatusCompleted)
}

// finish transitions a call to a terminal state, completes the carrier
// conference best-effort, and releases both parties' presence.
func (s *Service) finish(ctx context.Context, call InternalCall, status Status) (InternalCall, error) {
	if call.ConferenceSID != "" {
		if err := s.carrier.CompleteConference(ctx, call.ConferenceSID); err != nil && !telephony.IsNotFound(err) {
			s.log.Warn("conference completion failed",
				slog.String("conference_sid", call.ConferenceSID), slog.String("error", err.Error()))
		}
	}

	now := s.clock().UTC()
	call.Status = status
	call.EndedAt = &now
	call.DurationSeconds = int(now.Sub(call.StartedAt) / time.Second)
	call.UpdatedAt = now
	if err := s.repo.Update(ctx, call); err != nil {
		return InternalCall{}, err
	}

	if _, err := s.pres.Release(ctx, call.TenantID, call.FromUserID, call.FromPresenceVersion); err != nil {
		s.log.Warn("presence release failed", slog.String("user_id", call.FromUserID), slog.String("error", err.Error()))
	}
	if _, err := s.pres.Release(ctx, call.TenantID, call.ToUserID, call.ToPresenceVersion); err != nil {
		s.log.Warn("presence release failed", slog.String("user_id", call.ToUserID), slog.String("error", err.Error()))
	}

	if call.FromCallSID != "" {
		logStatus := calllog.StatusCompleted
		if status == StatusFailed {
			logStatus = calllog.StatusFailed
		}
		if err := s.logs.Finish(ctx, call.TenantID, call.FromCallSID, logStatus, call.DurationSeconds); err != nil {
			s.log.Warn("call log finish failed", slog.String("call_id", call.ID), slog.String("error", err.Error()))
		}
	}
	return call, nil
}

// Get returns a call row.
func (s *Service) Get(ctx context.Context, tenantID, id string) (InternalCall, error) {
	if tenantID == "" || id == "" {
		return InternalCall{}, ErrInvalidArgument
	}
	call, ok, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return InternalCall{}, err
	}
	if !ok {
		return InternalCall{}, ErrNotFound
	}
	return call, nil
}

// MarkActive records that the carrier confirmed the conference started.
// Terminal rows are left alone; a late start event cannot resurrect a call.
// Lookup falls back to the conference SID so a participant-join can promote
// a ringing call even when the start delivery was lost.
func (s *Service) MarkActive(ctx context.Context, conferenceName, conferenceSID string) error {
	call, ok, err := s.repo.FindByConferenceName(ctx, conferenceName)
	if err != nil {
		return err
	}
	if !ok && conferenceSID != "" {
		call, ok, err = s.repo.FindByConferenceSID(ctx, conferenceSID)
		if err != nil {
			return err
		}
	}
	if !ok {
		return nil
	}
	if call.Status.Terminal() || call.Status == StatusActive {
		return nil
	}
	now := s.clock().UTC()
	call.Status = StatusActive
	call.ConferenceSID = conferenceSID
	call.AnsweredAt = &now
	call.UpdatedAt = now
	return s.repo.Update(ctx, call)
}

// CompleteByConferenceSID finishes the call owning a conference, if any.
func (s *Service) CompleteByConferenceSID(ctx context.Context, conferenceSID string) error {
	call, ok, err := s.repo.FindByConferenceSID(ctx, conferenceSID)
	if err != nil || !ok {
		return err
	}
	if call.Status.Terminal() {
		return nil
	}
	_, err = s.finish(ctx, call, StatusCompleted)
	return err
}

func (s *Service) releaseLocks(ctx context.Context, tenantID string, users []string, owner string) {
	for _, userID := range users {
		if err := s.locker.Release(ctx, lockKey(tenantID, userID), owner); err != nil {
			s.log.Warn("lock release failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
	}
}

func conferenceTwiML(name string, start, endOnExit bool) (string, error) {
	return twiml.New().Add((&twiml.Dial{}).Add(&twiml.Conference{
		Name:                   name,
		StartConferenceOnEnter: twiml.Bool(start),
		EndConferenceOnExit:    twiml.Bool(endOnExit),
	})).Render()
}

func hangupTwiML() string {
	out, _ := twiml.New().Add(&twiml.Hangup{}).Render()
	return out
}

func mapDirectoryErr(err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, directory.ErrInvalidArgument) {
		return ErrInvalidArgument
	}
	return err
}

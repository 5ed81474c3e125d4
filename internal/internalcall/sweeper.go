package internalcall

import (
	"context"
	"log/slog"
	"time"

	"pbx-engine/internal/telephony"
)

// Sweeper reconciles rows that webhooks never closed: legs that rang forever
// because a status callback was lost, and "active" conferences whose end
// event went missing.
type Sweeper struct {
	svc     *Service
	carrier telephony.Carrier
	log     *slog.Logger

	interval       time.Duration
	ringingTimeout time.Duration
	activeLimit    time.Duration

	clock func() time.Time
}

func NewSweeper(svc *Service, carrier telephony.Carrier, log *slog.Logger, interval, ringingTimeout, activeLimit time.Duration) *Sweeper {
	return &Sweeper{
		svc:            svc,
		carrier:        carrier,
		log:            log,
		interval:       interval,
		ringingTimeout: ringingTimeout,
		activeLimit:    activeLimit,
		clock:          time.Now,
	}
}

// Run sweeps on the configured interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error("sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep performs one reconciliation pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.clock().UTC()

	stale, err := s.svc.repo.ListByStatusOlderThan(ctx, StatusRinging, now.Add(-s.ringingTimeout))
	if err != nil {
		return err
	}
	for _, call := range stale {
		s.log.Info("sweeping call stuck in ringing",
			slog.String("call_id", call.ID), slog.String("tenant_id", call.TenantID))
		if _, err := s.svc.finish(ctx, call, StatusFailed); err != nil {
			s.log.Error("failed to sweep ringing call",
				slog.String("call_id", call.ID), slog.String("error", err.Error()))
		}
	}

	longRunning, err := s.svc.repo.ListByStatusOlderThan(ctx, StatusActive, now.Add(-s.activeLimit))
	if err != nil {
		return err
	}
	for _, call := range longRunning {
		if s.reconcileActive(ctx, call) {
			continue
		}
	}
	return nil
}

// reconcileActive checks whether the carrier still sees live legs in a
// long-running conference; if not, the row is closed out.
func (s *Sweeper) reconcileActive(ctx context.Context, call InternalCall) bool {
	if call.ConferenceSID == "" {
		_, err := s.svc.finish(ctx, call, StatusCompleted)
		return err == nil
	}

	participants, err := s.carrier.LiveParticipants(ctx, call.ConferenceSID)
	if err != nil && !telephony.IsNotFound(err) {
		s.log.Error("participant lookup failed",
			slog.String("conference_sid", call.ConferenceSID), slog.String("error", err.Error()))
		return false
	}
	if len(participants) > 0 {
		// Genuinely still talking; leave it.
		return true
	}

	s.log.Info("sweeping conference with no live participants",
		slog.String("call_id", call.ID), slog.String("conference_sid", call.ConferenceSID))
	_, err = s.svc.finish(ctx, call, StatusCompleted)
	return err == nil
}

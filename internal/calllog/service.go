package calllog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidArgument = errors.New("invalid call log entry")

// Repository abstracts call log persistence. The log is append-mostly; the
// only update is the terminal status/duration of an existing row.
type Repository interface {
	Insert(ctx context.Context, row CallLog) error
	FindBySID(ctx context.Context, tenantID, callSID string) (CallLog, bool, error)
	UpdateOutcome(ctx context.Context, tenantID, id string, status Status, durationSeconds int, endedAt time.Time) error
	ListBetween(ctx context.Context, tenantID string, from, to time.Time) ([]CallLog, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Append writes a new log row, assigning ID and timestamps.
func (s *Service) Append(ctx context.Context, row CallLog) (CallLog, error) {
	if row.TenantID == "" {
		return CallLog{}, ErrInvalidArgument
	}
	switch row.Direction {
	case DirectionInbound, DirectionOutbound, DirectionInternal:
	default:
		return CallLog{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	row.ID = uuid.NewString()
	if row.StartedAt.IsZero() {
		row.StartedAt = now
	}
	row.CreatedAt = now
	if row.Status == "" {
		row.Status = StatusRinging
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return CallLog{}, err
	}
	return row, nil
}

// Finish marks the row for a carrier leg with its terminal outcome. Missing
// rows are ignored; webhooks can arrive for legs the engine never logged.
func (s *Service) Finish(ctx context.Context, tenantID, callSID string, status Status, durationSeconds int) error {
	if tenantID == "" || callSID == "" {
		return ErrInvalidArgument
	}
	row, ok, err := s.repo.FindBySID(ctx, tenantID, callSID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return s.repo.UpdateOutcome(ctx, tenantID, row.ID, status, durationSeconds, s.clock().UTC())
}

// ListBetween returns a tenant's rows in [from, to).
func (s *Service) ListBetween(ctx context.Context, tenantID string, from, to time.Time) ([]CallLog, error) {
	if tenantID == "" || !from.Before(to) {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListBetween(ctx, tenantID, from, to)
}

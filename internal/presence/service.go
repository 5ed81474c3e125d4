package presence

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidStatus   = errors.New("invalid presence status")
	ErrInvalidArgument = errors.New("invalid presence request")
	ErrNotFound        = errors.New("presence not found")
)

// defaultStaleness is how long a row may go without a heartbeat before reads
// report the user offline.
const defaultStaleness = 5 * time.Minute

// Repository abstracts presence persistence.
type Repository interface {
	Get(ctx context.Context, tenantID, userID string) (Presence, bool, error)
	Put(ctx context.Context, p Presence) error
	// PutIfVersion writes p only when the stored version equals
	// expectVersion; returns false without writing otherwise. A missing row
	// matches expectVersion 0.
	PutIfVersion(ctx context.Context, p Presence, expectVersion int64) (bool, error)
	// Touch refreshes last_activity without changing status or version.
	Touch(ctx context.Context, tenantID, userID string, at time.Time) error
	List(ctx context.Context, tenantID string) ([]Presence, error)
}

// Service is the presence store. Staleness is applied at read time only; the
// stored row is never rewritten by a read.
type Service struct {
	repo      Repository
	staleness time.Duration
	clock     func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, staleness: defaultStaleness, clock: time.Now}
}

// effective derives the externally visible presence. The stored row keeps its
// status so a late heartbeat restores it without a write race.
func (s *Service) effective(p Presence, now time.Time) Presence {
	if p.Status != StatusOffline && now.Sub(p.LastActivity) > s.staleness {
		p.Status = StatusOffline
	}
	return p
}

// Get returns a user's presence with staleness applied. Unknown users read
// as offline with version 0.
func (s *Service) Get(ctx context.Context, tenantID, userID string) (Presence, error) {
	if tenantID == "" || userID == "" {
		return Presence{}, ErrInvalidArgument
	}
	p, ok, err := s.repo.Get(ctx, tenantID, userID)
	if err != nil {
		return Presence{}, err
	}
	if !ok {
		return Presence{TenantID: tenantID, UserID: userID, Status: StatusOffline}, nil
	}
	return s.effective(p, s.clock().UTC()), nil
}

// List returns all presence rows for a tenant with staleness applied.
func (s *Service) List(ctx context.Context, tenantID string) ([]Presence, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	rows, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	out := make([]Presence, 0, len(rows))
	for _, p := range rows {
		out = append(out, s.effective(p, now))
	}
	return out, nil
}

// SetStatus records a user-initiated status change. It bumps the version so
// any in-flight call teardown for this user becomes a no-op.
func (s *Service) SetStatus(ctx context.Context, tenantID, userID, extensionID string, status Status, message string) (Presence, error) {
	if tenantID == "" || userID == "" {
		return Presence{}, ErrInvalidArgument
	}
	if !status.Valid() {
		return Presence{}, ErrInvalidStatus
	}

	cur, _, err := s.repo.Get(ctx, tenantID, userID)
	if err != nil {
		return Presence{}, err
	}
	next := Presence{
		TenantID:      tenantID,
		UserID:        userID,
		ExtensionID:   extensionID,
		Status:        status,
		StatusMessage: message,
		LastActivity:  s.clock().UTC(),
		Version:       cur.Version + 1,
	}
	if extensionID == "" {
		next.ExtensionID = cur.ExtensionID
	}
	if err := s.repo.Put(ctx, next); err != nil {
		return Presence{}, err
	}
	return next, nil
}

// Heartbeat refreshes last_activity for a known user. It never bumps the
// version, so heartbeats during a call do not defeat the call's release.
func (s *Service) Heartbeat(ctx context.Context, tenantID, userID string) error {
	if tenantID == "" || userID == "" {
		return ErrInvalidArgument
	}
	_, ok, err := s.repo.Get(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return s.repo.Touch(ctx, tenantID, userID, s.clock().UTC())
}

// MarkBusy transitions a user to busy for the duration of a call and returns
// the row including the version the call must present to release it. The
// message describes who they are on with (e.g. "On call with ext 102").
func (s *Service) MarkBusy(ctx context.Context, tenantID, userID, message string) (Presence, error) {
	if tenantID == "" || userID == "" {
		return Presence{}, ErrInvalidArgument
	}
	for attempt := 0; attempt < 3; attempt++ {
		cur, ok, err := s.repo.Get(ctx, tenantID, userID)
		if err != nil {
			return Presence{}, err
		}
		next := cur
		if !ok {
			next = Presence{TenantID: tenantID, UserID: userID}
		}
		next.Status = StatusBusy
		next.StatusMessage = message
		next.LastActivity = s.clock().UTC()
		next.Version = cur.Version + 1

		swapped, err := s.repo.PutIfVersion(ctx, next, cur.Version)
		if err != nil {
			return Presence{}, err
		}
		if swapped {
			return next, nil
		}
	}
	return Presence{}, errors.New("presence: mark busy lost the version race")
}

// Release transitions a user from busy back to available, but only if the
// version is still the one the call observed when it marked the user busy.
// Returns whether the release actually happened.
func (s *Service) Release(ctx context.Context, tenantID, userID string, expectVersion int64) (bool, error) {
	if tenantID == "" || userID == "" {
		return false, ErrInvalidArgument
	}
	cur, ok, err := s.repo.Get(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}
	if !ok || cur.Status != StatusBusy || cur.Version != expectVersion {
		return false, nil
	}
	next := cur
	next.Status = StatusAvailable
	next.StatusMessage = ""
	next.LastActivity = s.clock().UTC()
	next.Version = cur.Version + 1
	return s.repo.PutIfVersion(ctx, next, expectVersion)
}

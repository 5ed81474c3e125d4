package calllog

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests and early
// development.
type MemoryRepo struct {
	mu   sync.Mutex
	Rows []CallLog
}

func (r *MemoryRepo) Insert(ctx context.Context, row CallLog) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rows = append(r.Rows, row)
	return nil
}

func (r *MemoryRepo) FindBySID(ctx context.Context, tenantID, callSID string) (CallLog, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.Rows {
		if row.TenantID == tenantID && row.CallSID == callSID {
			return row, true, nil
		}
	}
	return CallLog{}, false, nil
}

func (r *MemoryRepo) UpdateOutcome(ctx context.Context, tenantID, id string, status Status, durationSeconds int, endedAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.Rows {
		if row.TenantID == tenantID && row.ID == id {
			r.Rows[i].Status = status
			r.Rows[i].DurationSeconds = durationSeconds
			r.Rows[i].EndedAt = &endedAt
			return nil
		}
	}
	return nil
}

func (r *MemoryRepo) ListBetween(ctx context.Context, tenantID string, from, to time.Time) ([]CallLog, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallLog
	for _, row := range r.Rows {
		if row.TenantID != tenantID {
			continue
		}
		if row.StartedAt.Before(from) || !row.StartedAt.Before(to) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

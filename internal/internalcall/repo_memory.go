package internalcall

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests and early
// development.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]InternalCall
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]InternalCall)}
}

func (r *MemoryRepo) Insert(ctx context.Context, c InternalCall) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, id string) (InternalCall, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || c.TenantID != tenantID {
		return InternalCall{}, false, nil
	}
	return c, true, nil
}

func (r *MemoryRepo) FindByConferenceName(ctx context.Context, conferenceName string) (InternalCall, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ConferenceName == conferenceName {
			return c, true, nil
		}
	}
	return InternalCall{}, false, nil
}

func (r *MemoryRepo) FindByConferenceSID(ctx context.Context, conferenceSID string) (InternalCall, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ConferenceSID == conferenceSID && conferenceSID != "" {
			return c, true, nil
		}
	}
	return InternalCall{}, false, nil
}

func (r *MemoryRepo) Update(ctx context.Context, c InternalCall) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[c.ID] = c
	return nil
}

func (r *MemoryRepo) ListByTenant(ctx context.Context, tenantID string) ([]InternalCall, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InternalCall
	for _, c := range r.rows {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r *MemoryRepo) ListByStatusOlderThan(ctx context.Context, status Status, before time.Time) ([]InternalCall, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InternalCall
	for _, c := range r.rows {
		if c.Status == status && c.StartedAt.Before(before) {
			out = append(out, c)
		}
	}
	return out, nil
}

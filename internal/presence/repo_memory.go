package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests and early
// development.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Presence
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Presence)}
}

func key(tenantID, userID string) string {
	return tenantID + "|" + userID
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, userID string) (Presence, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[key(tenantID, userID)]
	return p, ok, nil
}

func (r *MemoryRepo) Put(ctx context.Context, p Presence) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[key(p.TenantID, p.UserID)] = p
	return nil
}

func (r *MemoryRepo) PutIfVersion(ctx context.Context, p Presence, expectVersion int64) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[key(p.TenantID, p.UserID)]
	curVersion := int64(0)
	if ok {
		curVersion = cur.Version
	}
	if curVersion != expectVersion {
		return false, nil
	}
	r.rows[key(p.TenantID, p.UserID)] = p
	return true, nil
}

func (r *MemoryRepo) Touch(ctx context.Context, tenantID, userID string, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[key(tenantID, userID)]
	if !ok {
		return nil
	}
	p.LastActivity = at
	r.rows[key(tenantID, userID)] = p
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string) ([]Presence, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Presence
	for _, p := range r.rows {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

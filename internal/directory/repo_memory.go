package directory

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests and early
// development. It is tenant-scoped; replace with the Postgres implementation
// in production.
type MemoryRepo struct {
	mu         sync.RWMutex
	Extensions []Extension
	Rules      []ForwardingRule
}

func (r *MemoryRepo) FindByNumber(ctx context.Context, tenantID, number string) (Extension, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.Extensions {
		if e.TenantID == tenantID && e.Number == number {
			return e, true, nil
		}
	}
	return Extension{}, false, nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, tenantID, id string) (Extension, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.Extensions {
		if e.TenantID == tenantID && e.ID == id {
			return e, true, nil
		}
	}
	return Extension{}, false, nil
}

func (r *MemoryRepo) ListForwardingRules(ctx context.Context, tenantID, extensionID string) ([]ForwardingRule, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ForwardingRule
	for _, rule := range r.Rules {
		if rule.TenantID == tenantID && rule.ExtensionID == extensionID {
			out = append(out, rule)
		}
	}
	return out, nil
}

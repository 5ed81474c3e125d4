package voicemail

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests and early
// development.
type MemoryRepo struct {
	mu   sync.Mutex
	Rows []Voicemail
}

func (r *MemoryRepo) Insert(ctx context.Context, vm Voicemail) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rows = append(r.Rows, vm)
	return nil
}

func (r *MemoryRepo) FindByCallSID(ctx context.Context, tenantID, callSID string) (Voicemail, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vm := range r.Rows {
		if vm.TenantID == tenantID && vm.CallSID == callSID {
			return vm, true, nil
		}
	}
	return Voicemail{}, false, nil
}

func (r *MemoryRepo) ListByExtension(ctx context.Context, tenantID, extensionID string) ([]Voicemail, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Voicemail
	for _, vm := range r.Rows {
		if vm.TenantID == tenantID && vm.ExtensionID == extensionID {
			out = append(out, vm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) MarkListened(ctx context.Context, tenantID, id string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, vm := range r.Rows {
		if vm.TenantID == tenantID && vm.ID == id {
			r.Rows[i].Listened = true
			return true, nil
		}
	}
	return false, nil
}

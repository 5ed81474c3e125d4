package conference

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests and early
// development.
type MemoryRepo struct {
	mu           sync.Mutex
	conferences  map[string]Conference
	participants map[string][]Participant
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		conferences:  make(map[string]Conference),
		participants: make(map[string][]Participant),
	}
}

func (r *MemoryRepo) Insert(ctx context.Context, c Conference) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conferences[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, id string) (Conference, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conferences[id]
	if !ok || c.TenantID != tenantID {
		return Conference{}, false, nil
	}
	return c, true, nil
}

func (r *MemoryRepo) FindBySID(ctx context.Context, sid string) (Conference, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conferences {
		if c.SID == sid && sid != "" {
			return c, true, nil
		}
	}
	return Conference{}, false, nil
}

func (r *MemoryRepo) FindByName(ctx context.Context, name string) (Conference, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conferences {
		if c.Name == name {
			return c, true, nil
		}
	}
	return Conference{}, false, nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Conference) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conferences[c.ID] = c
	return nil
}

func (r *MemoryRepo) AddParticipant(ctx context.Context, p Participant) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[p.ConferenceID] = append(r.participants[p.ConferenceID], p)
	return nil
}

func (r *MemoryRepo) ListParticipants(ctx context.Context, tenantID, conferenceID string) ([]Participant, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Participant
	for _, p := range r.participants[conferenceID] {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepo) UpdateParticipant(ctx context.Context, p Participant) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.participants[p.ConferenceID]
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = p
			return nil
		}
	}
	return nil
}

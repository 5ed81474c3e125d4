package webhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"database/sql"

	"github.com/google/uuid"
)

// JournalEntry is an immutable, append-only record of an accepted webhook
// delivery.
//
// Invariants:
// - Entries are never updated or deleted.
// - Journaling is best-effort; reconciliation must not fail on journal errors.
type JournalEntry struct {
	ID string `json:"id" db:"id"`

	// TenantID is filled when the delivery resolved to a local row; carrier
	// callbacks themselves are not tenant-scoped.
	TenantID string `json:"tenant_id,omitempty" db:"tenant_id"`

	Source string `json:"source" db:"source"`
	Event  string `json:"event" db:"event"`

	ConferenceSID string `json:"conference_sid,omitempty" db:"conference_sid"`
	CallSID       string `json:"call_sid,omitempty" db:"call_sid"`

	// Payload is the raw form payload serialized as JSON.
	Payload string `json:"payload,omitempty" db:"payload"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// JournalRepository is append-only. No Update/Delete methods by design.
type JournalRepository interface {
	Append(ctx context.Context, e JournalEntry) error
}

var ErrInvalidEntry = errors.New("webhook: invalid journal entry")

// Journal records accepted webhook deliveries.
type Journal struct {
	repo  JournalRepository
	clock func() time.Time
}

func NewJournal(repo JournalRepository) *Journal {
	return &Journal{repo: repo, clock: time.Now}
}

func (j *Journal) Append(ctx context.Context, e JournalEntry) error {
	if e.Source == "" || e.Event == "" {
		return ErrInvalidEntry
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.clock().UTC()
	}
	return j.repo.Append(ctx, e)
}

// MemoryJournalRepo is a simple in-memory append-only repository useful for
// tests.
type MemoryJournalRepo struct {
	mu      sync.Mutex
	entries []JournalEntry
}

func NewMemoryJournalRepo() *MemoryJournalRepo { return &MemoryJournalRepo{} }

func (r *MemoryJournalRepo) Append(ctx context.Context, e JournalEntry) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryJournalRepo) Entries() []JournalEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JournalEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// PostgresJournalRepo persists journal entries (pgx stdlib driver). The table
// should carry an INSERT-only policy.
type PostgresJournalRepo struct {
	db *sql.DB
}

func NewPostgresJournalRepo(db *sql.DB) *PostgresJournalRepo {
	return &PostgresJournalRepo{db: db}
}

func (r *PostgresJournalRepo) Append(ctx context.Context, e JournalEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_journal
		    (id, tenant_id, source, event, conference_sid, call_sid, payload, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, nullStr(e.TenantID), e.Source, e.Event,
		nullStr(e.ConferenceSID), nullStr(e.CallSID), nullStr(e.Payload), e.CreatedAt)
	return err
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pbx-engine/internal/conference"
	"pbx-engine/internal/internalcall"
	"pbx-engine/pkg/utils"
)

// dedupTTL covers the carrier's redelivery window with margin.
const dedupTTL = 6 * time.Hour

// Deduper remembers which deliveries were already processed.
type Deduper interface {
	// Once returns true the first time key is seen within the TTL.
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDeduper shares the dedup window across engine instances.
type RedisDeduper struct {
	rdb *redis.Client
}

func NewRedisDeduper(rdb *redis.Client) *RedisDeduper {
	return &RedisDeduper{rdb: rdb}
}

func (d *RedisDeduper) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return utils.MarkOnce(ctx, d.rdb, key, ttl)
}

// MemoryDeduper is a single-process deduper for tests.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]bool)}
}

func (d *MemoryDeduper) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	_ = ctx
	_ = ttl
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

// Reconciler folds carrier conference callbacks into local state.
//
// Rules:
// - State handlers are idempotent and run on every delivery; the dedup key
//   only suppresses duplicate journal entries.
// - Terminal states are sticky: a late start event never reopens a call.
// - A failed application propagates so the carrier retries the delivery;
//   the dedup key is consumed only after the handlers succeeded.
// - Journaling is best-effort and never fails the delivery.
type Reconciler struct {
	dedup       Deduper
	journal     *Journal
	calls       *internalcall.Service
	conferences *conference.Service
	log         *slog.Logger
}

func NewReconciler(dedup Deduper, journal *Journal, calls *internalcall.Service, conferences *conference.Service, log *slog.Logger) *Reconciler {
	return &Reconciler{
		dedup:       dedup,
		journal:     journal,
		calls:       calls,
		conferences: conferences,
		log:         log,
	}
}

// HandleConferenceEvent applies one validated conference callback. rawPayload
// is journaled verbatim for postmortems.
func (r *Reconciler) HandleConferenceEvent(ctx context.Context, ev ConferenceEvent, rawPayload string) error {
	tenantID := ""
	var applyErr error
	switch ev.Event {
	case EventConferenceStart:
		tenantID, applyErr = r.applyStart(ctx, ev)
	case EventConferenceEnd:
		tenantID, applyErr = r.applyEnd(ctx, ev)
	case EventParticipantJoin:
		// A join proves the bridge is live: if the start delivery was lost,
		// this is where a ringing call gets promoted.
		tenantID, applyErr = r.applyStart(ctx, ev)
	case EventParticipantLeave:
		// Membership detail is reconciled lazily on read; the journal entry
		// is the record.
		tenantID = r.lookupTenant(ctx, ev)
	}
	if applyErr != nil {
		return applyErr
	}

	fresh, err := r.dedup.Once(ctx, ev.DedupKey(), dedupTTL)
	if err != nil {
		// A broken dedup store must not drop carrier truth; journal anyway.
		r.log.Warn("webhook dedup unavailable, journaling without it",
			slog.String("key", ev.DedupKey()), slog.String("error", err.Error()))
		fresh = true
	}
	if !fresh {
		return nil
	}

	if err := r.journal.Append(ctx, JournalEntry{
		TenantID:      tenantID,
		Source:        "twilio",
		Event:         string(ev.Event),
		ConferenceSID: ev.ConferenceSID,
		CallSID:       ev.CallSID,
		Payload:       rawPayload,
	}); err != nil {
		r.log.Warn("webhook journal append failed",
			slog.String("conference_sid", ev.ConferenceSID), slog.String("error", err.Error()))
	}
	return nil
}

func (r *Reconciler) applyStart(ctx context.Context, ev ConferenceEvent) (string, error) {
	if err := r.calls.MarkActive(ctx, ev.FriendlyName, ev.ConferenceSID); err != nil {
		return "", fmt.Errorf("internal call activation: %w", err)
	}

	conf, ok, err := r.conferences.FindByName(ctx, ev.FriendlyName)
	if err != nil {
		return "", fmt.Errorf("conference lookup: %w", err)
	}
	if !ok {
		return "", nil
	}
	if err := r.conferences.MarkActive(ctx, conf, ev.ConferenceSID); err != nil {
		return "", fmt.Errorf("conference activation: %w", err)
	}
	return conf.TenantID, nil
}

func (r *Reconciler) applyEnd(ctx context.Context, ev ConferenceEvent) (string, error) {
	if err := r.calls.CompleteByConferenceSID(ctx, ev.ConferenceSID); err != nil {
		return "", fmt.Errorf("internal call completion: %w", err)
	}

	conf, ok, err := r.conferences.FindBySID(ctx, ev.ConferenceSID)
	if err != nil {
		return "", fmt.Errorf("conference lookup: %w", err)
	}
	if !ok {
		return "", nil
	}
	if _, err := r.conferences.Complete(ctx, conf); err != nil {
		return "", fmt.Errorf("conference completion: %w", err)
	}
	return conf.TenantID, nil
}

func (r *Reconciler) lookupTenant(ctx context.Context, ev ConferenceEvent) string {
	if conf, ok, _ := r.conferences.FindBySID(ctx, ev.ConferenceSID); ok {
		return conf.TenantID
	}
	return ""
}

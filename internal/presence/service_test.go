package presence

import (
	"context"
	"testing"
	"time"
)

func newTestService(now time.Time) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return now }
	return svc, repo
}

func TestGetUnknownUserIsOffline(t *testing.T) {
	svc, _ := newTestService(time.Now())
	p, err := svc.Get(context.Background(), "t-1", "u-ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != StatusOffline || p.Version != 0 {
		t.Errorf("presence = %+v, want offline/v0", p)
	}
}

func TestStalenessAppliedAtReadOnly(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc, repo := newTestService(now)

	if _, err := svc.SetStatus(context.Background(), "t-1", "u-1", "e-1", StatusAvailable, ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	svc.clock = func() time.Time { return now.Add(6 * time.Minute) }
	p, err := svc.Get(context.Background(), "t-1", "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != StatusOffline {
		t.Errorf("stale presence read as %q, want offline", p.Status)
	}

	// Stored row must be untouched: a heartbeat revives it.
	stored, _, _ := repo.Get(context.Background(), "t-1", "u-1")
	if stored.Status != StatusAvailable {
		t.Errorf("stored status = %q, read must not rewrite rows", stored.Status)
	}
	if err := svc.Heartbeat(context.Background(), "t-1", "u-1"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	p, _ = svc.Get(context.Background(), "t-1", "u-1")
	if p.Status != StatusAvailable {
		t.Errorf("after heartbeat status = %q, want available", p.Status)
	}
}

func TestSetStatusBumpsVersion(t *testing.T) {
	svc, _ := newTestService(time.Now())
	p1, _ := svc.SetStatus(context.Background(), "t-1", "u-1", "e-1", StatusAvailable, "")
	p2, _ := svc.SetStatus(context.Background(), "t-1", "u-1", "", StatusDND, "in a meeting")
	if p2.Version != p1.Version+1 {
		t.Errorf("version %d -> %d, want increment", p1.Version, p2.Version)
	}
	if p2.ExtensionID != "e-1" {
		t.Errorf("extension id not carried forward: %q", p2.ExtensionID)
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(time.Now())
	if _, err := svc.SetStatus(context.Background(), "t-1", "u-1", "", Status("napping"), ""); err != ErrInvalidStatus {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestReleaseIsVersionFenced(t *testing.T) {
	svc, _ := newTestService(time.Now())
	svc.SetStatus(context.Background(), "t-1", "u-1", "e-1", StatusAvailable, "")

	busy, err := svc.MarkBusy(context.Background(), "t-1", "u-1", "On call with ext 102")
	if err != nil {
		t.Fatalf("mark busy: %v", err)
	}

	// User goes DND mid-call: the call's release must not undo it.
	svc.SetStatus(context.Background(), "t-1", "u-1", "", StatusDND, "")
	released, err := svc.Release(context.Background(), "t-1", "u-1", busy.Version)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released {
		t.Error("release with stale version must be a no-op")
	}
	p, _ := svc.Get(context.Background(), "t-1", "u-1")
	if p.Status != StatusDND {
		t.Errorf("status = %q, want dnd preserved", p.Status)
	}
}

func TestReleaseHappyPath(t *testing.T) {
	svc, _ := newTestService(time.Now())
	busy, _ := svc.MarkBusy(context.Background(), "t-1", "u-1", "On call with ext 102")
	if busy.StatusMessage != "On call with ext 102" {
		t.Errorf("busy message = %q, want the call description", busy.StatusMessage)
	}

	released, err := svc.Release(context.Background(), "t-1", "u-1", busy.Version)
	if err != nil || !released {
		t.Fatalf("release: released=%v err=%v", released, err)
	}
	p, _ := svc.Get(context.Background(), "t-1", "u-1")
	if p.Status != StatusAvailable {
		t.Errorf("status = %q, want available", p.Status)
	}
	if p.StatusMessage != "" {
		t.Errorf("message = %q, release must clear the call description", p.StatusMessage)
	}

	// Second release with the same version is idempotently ignored.
	released, _ = svc.Release(context.Background(), "t-1", "u-1", busy.Version)
	if released {
		t.Error("double release must be a no-op")
	}
}

func TestMarkBusyReplacesStatusMessage(t *testing.T) {
	svc, _ := newTestService(time.Now())
	svc.SetStatus(context.Background(), "t-1", "u-1", "e-1", StatusAvailable, "back at 3")

	busy, err := svc.MarkBusy(context.Background(), "t-1", "u-1", "On call with ext 102")
	if err != nil {
		t.Fatalf("mark busy: %v", err)
	}
	if busy.StatusMessage != "On call with ext 102" {
		t.Errorf("message = %q, must not carry the previous message", busy.StatusMessage)
	}
}

func TestHeartbeatDoesNotBumpVersion(t *testing.T) {
	svc, repo := newTestService(time.Now())
	busy, _ := svc.MarkBusy(context.Background(), "t-1", "u-1", "On call with ext 102")

	if err := svc.Heartbeat(context.Background(), "t-1", "u-1"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	stored, _, _ := repo.Get(context.Background(), "t-1", "u-1")
	if stored.Version != busy.Version {
		t.Errorf("heartbeat changed version %d -> %d", busy.Version, stored.Version)
	}

	released, _ := svc.Release(context.Background(), "t-1", "u-1", busy.Version)
	if !released {
		t.Error("release must still succeed after heartbeats")
	}
}

func TestHeartbeatUnknownUser(t *testing.T) {
	svc, _ := newTestService(time.Now())
	if err := svc.Heartbeat(context.Background(), "t-1", "u-ghost"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

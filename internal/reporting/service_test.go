package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"pbx-engine/internal/calllog"
)

func seededService(t *testing.T) *Service {
	t.Helper()
	repo := &calllog.MemoryRepo{}
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	rows := []calllog.CallLog{
		{ID: "1", TenantID: "t-1", Direction: calllog.DirectionInbound, Status: calllog.StatusCompleted, DurationSeconds: 60, ExtensionID: "e1", StartedAt: base.Add(time.Hour)},
		{ID: "2", TenantID: "t-1", Direction: calllog.DirectionInbound, Status: calllog.StatusVoicemail, ExtensionID: "e1", StartedAt: base.Add(2 * time.Hour)},
		{ID: "3", TenantID: "t-1", Direction: calllog.DirectionInternal, Status: calllog.StatusCompleted, DurationSeconds: 120, ExtensionID: "e2", StartedAt: base.Add(3 * time.Hour)},
		{ID: "4", TenantID: "t-1", Direction: calllog.DirectionInbound, Status: calllog.StatusForwarded, ExtensionID: "e1", StartedAt: base.Add(4 * time.Hour)},
		{ID: "5", TenantID: "t-2", Direction: calllog.DirectionInbound, Status: calllog.StatusCompleted, DurationSeconds: 999, StartedAt: base.Add(time.Hour)},
		{ID: "6", TenantID: "t-1", Direction: calllog.DirectionInbound, Status: calllog.StatusCompleted, DurationSeconds: 10, StartedAt: base.AddDate(0, 1, 0)},
	}
	for _, r := range rows {
		if err := repo.Insert(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return NewService(calllog.NewService(repo))
}

func august() TimeRange {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return TimeRange{From: from, To: from.AddDate(0, 1, 0)}
}

func TestCallsSummary(t *testing.T) {
	svc := seededService(t)

	got, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{TenantID: "t-1", Range: august()})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got.TotalCalls != 4 {
		t.Errorf("total = %d, want 4 (tenant-scoped, in-window)", got.TotalCalls)
	}
	if got.InboundCalls != 3 || got.InternalCalls != 1 {
		t.Errorf("directions = %+v", got)
	}
	if got.CompletedCalls != 2 || got.VoicemailCalls != 1 || got.ForwardedCalls != 1 {
		t.Errorf("statuses = %+v", got)
	}
	if got.TotalDurationSeconds != 180 || got.AverageDurationSeconds != 45 {
		t.Errorf("durations = %+v", got)
	}
}

func TestCallsSummaryByExtension(t *testing.T) {
	svc := seededService(t)

	got, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{
		TenantID: "t-1", Range: august(), ExtensionID: "e1",
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got.TotalCalls != 3 || got.InternalCalls != 0 {
		t.Errorf("summary = %+v, want only e1 rows", got)
	}
}

func TestCallsSummaryValidation(t *testing.T) {
	svc := seededService(t)

	if _, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: august()}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("missing tenant: err = %v", err)
	}
	r := august()
	r.From, r.To = r.To, r.From
	if _, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{TenantID: "t-1", Range: r}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("inverted range: err = %v", err)
	}
}

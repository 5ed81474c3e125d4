package directory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func repoWith(exts []Extension, rules []ForwardingRule) *MemoryRepo {
	return &MemoryRepo{Extensions: exts, Rules: rules}
}

func TestResolveTenantScoped(t *testing.T) {
	svc := NewService(repoWith([]Extension{
		{ID: "e1", TenantID: "t-1", Number: "101", UserID: "u1", Status: ExtensionStatusActive},
		{ID: "e2", TenantID: "t-2", Number: "101", UserID: "u2", Status: ExtensionStatusActive},
	}, nil))

	ext, err := svc.Resolve(context.Background(), "t-1", "101")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ext.ID != "e1" {
		t.Errorf("resolved %q, want e1", ext.ID)
	}

	if _, err := svc.Resolve(context.Background(), "t-3", "101"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign tenant: err = %v, want ErrNotFound", err)
	}
}

func TestResolveDisabledExtension(t *testing.T) {
	svc := NewService(repoWith([]Extension{
		{ID: "e1", TenantID: "t-1", Number: "101", Status: ExtensionStatusDisabled},
	}, nil))

	if _, err := svc.Resolve(context.Background(), "t-1", "101"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveValidation(t *testing.T) {
	svc := NewService(repoWith(nil, nil))
	if _, err := svc.Resolve(context.Background(), "", "101"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.Resolve(context.Background(), "t-1", "  "); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestEvaluateForwardingCreationOrder(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	rules := []ForwardingRule{
		{ID: "r2", Trigger: TriggerNoAnswer, Destination: "+15550000002", Enabled: true, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "r1", Trigger: TriggerNoAnswer, Destination: "+15550000001", Enabled: true, CreatedAt: base.Add(time.Hour)},
		{ID: "r0", Trigger: TriggerNoAnswer, Destination: "+15550000000", Enabled: false, CreatedAt: base},
	}

	rule, ok, err := EvaluateForwarding(rules, TriggerNoAnswer, 0)
	if err != nil || !ok {
		t.Fatalf("evaluate: ok=%v err=%v", ok, err)
	}
	if rule.ID != "r1" {
		t.Errorf("selected %q, want r1 (earliest enabled rule)", rule.ID)
	}

	// Same creation instant falls back to the rule ID.
	tied := []ForwardingRule{
		{ID: "rb", Trigger: TriggerBusy, Destination: "+15550000004", Enabled: true, CreatedAt: base},
		{ID: "ra", Trigger: TriggerBusy, Destination: "+15550000003", Enabled: true, CreatedAt: base},
	}
	rule, ok, _ = EvaluateForwarding(tied, TriggerBusy, 0)
	if !ok || rule.ID != "ra" {
		t.Errorf("tie-break selected %q, want ra", rule.ID)
	}
}

func TestEvaluateForwardingAfterRings(t *testing.T) {
	rules := []ForwardingRule{
		{ID: "r1", Trigger: TriggerAfterRings, RingCount: 4, Destination: "+15550000001", Enabled: true},
	}

	if _, ok, _ := EvaluateForwarding(rules, TriggerNoAnswer, 3); ok {
		t.Error("rule fired before ring count reached")
	}
	rule, ok, _ := EvaluateForwarding(rules, TriggerNoAnswer, 4)
	if !ok || rule.ID != "r1" {
		t.Errorf("rule should fire at observed >= ring_count, got ok=%v", ok)
	}
	if _, ok, _ := EvaluateForwarding(rules, TriggerNoAnswer, 9); !ok {
		t.Error("rule should still fire past ring count")
	}
}

func TestEvaluateForwardingTriggerMismatch(t *testing.T) {
	rules := []ForwardingRule{
		{ID: "r1", Trigger: TriggerBusy, Destination: "+15550000001", Enabled: true},
	}
	if _, ok, _ := EvaluateForwarding(rules, TriggerNoAnswer, 0); ok {
		t.Error("busy rule must not fire on no_answer")
	}
	if _, ok, _ := EvaluateForwarding(rules, TriggerBusy, 0); !ok {
		t.Error("busy rule should fire on busy")
	}
}

func TestForwardingForRejectsUnknownTrigger(t *testing.T) {
	svc := NewService(repoWith(nil, nil))
	_, _, err := svc.ForwardingFor(context.Background(), Extension{TenantID: "t-1", ID: "e1"}, ForwardingTrigger("whenever"), 0)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

package directory

import (
	"context"
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("extension not found")
	ErrInvalidArgument = errors.New("invalid directory request")
)

// Repository abstracts extension persistence.
type Repository interface {
	FindByNumber(ctx context.Context, tenantID, number string) (Extension, bool, error)
	FindByID(ctx context.Context, tenantID, id string) (Extension, bool, error)
	ListForwardingRules(ctx context.Context, tenantID, extensionID string) ([]ForwardingRule, error)
}

// Service resolves dialed digits to extensions and evaluates forwarding.
//
// Contract:
// - Lookups are tenant-scoped; a number existing in another tenant is not found.
// - Disabled extensions resolve as not found.
// - No carrier calls; pure lookups plus rule evaluation.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve maps dialed digits to an active extension.
func (s *Service) Resolve(ctx context.Context, tenantID, digits string) (Extension, error) {
	digits = strings.TrimSpace(digits)
	if tenantID == "" || digits == "" {
		return Extension{}, ErrInvalidArgument
	}

	ext, ok, err := s.repo.FindByNumber(ctx, tenantID, digits)
	if err != nil {
		return Extension{}, err
	}
	if !ok || ext.Status != ExtensionStatusActive {
		return Extension{}, ErrNotFound
	}
	return ext, nil
}

// ByID fetches an extension regardless of status.
func (s *Service) ByID(ctx context.Context, tenantID, id string) (Extension, error) {
	if tenantID == "" || id == "" {
		return Extension{}, ErrInvalidArgument
	}
	ext, ok, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return Extension{}, err
	}
	if !ok {
		return Extension{}, ErrNotFound
	}
	return ext, nil
}

// ForwardingFor returns the forwarding destination for an extension at a
// given trigger point, if any rule fires.
//
// Selection: enabled rules whose trigger matches; for after_rings the rule
// fires once ringsObserved reaches the configured ring count. Rules are
// evaluated in creation order; ties break on rule ID for determinism.
func (s *Service) ForwardingFor(ctx context.Context, ext Extension, trigger ForwardingTrigger, ringsObserved int) (ForwardingRule, bool, error) {
	if !trigger.Valid() {
		return ForwardingRule{}, false, ErrInvalidArgument
	}
	rules, err := s.repo.ListForwardingRules(ctx, ext.TenantID, ext.ID)
	if err != nil {
		return ForwardingRule{}, false, err
	}
	return EvaluateForwarding(rules, trigger, ringsObserved)
}

// EvaluateForwarding is the pure rule selection; exported for reuse by the
// IVR machine.
func EvaluateForwarding(rules []ForwardingRule, trigger ForwardingTrigger, ringsObserved int) (ForwardingRule, bool, error) {
	matched := make([]ForwardingRule, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled || r.Destination == "" {
			continue
		}
		switch r.Trigger {
		case trigger:
			if r.Trigger == TriggerAfterRings && ringsObserved < r.RingCount {
				continue
			}
		case TriggerAfterRings:
			// after_rings also covers the no_answer trigger point once
			// enough rings were observed.
			if trigger != TriggerNoAnswer || ringsObserved < r.RingCount {
				continue
			}
		default:
			continue
		}
		matched = append(matched, r)
	}
	if len(matched) == 0 {
		return ForwardingRule{}, false, nil
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched[0], true, nil
}

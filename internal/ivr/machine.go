package ivr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pbx-engine/internal/directory"
	"pbx-engine/internal/presence"
)

// Dial pacing. The inbound ring window is shorter than the forward window so
// an unanswered extension still has time to fall through to voicemail inside
// the carrier's overall timeout.
const (
	ExtensionRingSeconds = 20
	ForwardDialSeconds   = 25

	GatherNumDigits      = 3
	GatherTimeoutSeconds = 10
)

// operatorDigits are the menu shortcuts that reach a human.
var operatorDigits = map[string]bool{"0": true, "00": true, "000": true}

// DirectoryResolver is the slice of the directory the machine reads.
type DirectoryResolver interface {
	Resolve(ctx context.Context, tenantID, digits string) (directory.Extension, error)
	ByID(ctx context.Context, tenantID, id string) (directory.Extension, error)
	ForwardingFor(ctx context.Context, ext directory.Extension, trigger directory.ForwardingTrigger, ringsObserved int) (directory.ForwardingRule, bool, error)
}

// PresenceReader reads a user's effective presence.
type PresenceReader interface {
	Get(ctx context.Context, tenantID, userID string) (presence.Presence, error)
}

// Machine routes inbound IVR traffic.
//
// Return a routing decision only. No side effects: no DB writes, no carrier
// calls. The webhook handlers execute decisions and write the call log.
type Machine struct {
	directory DirectoryResolver
	presence  PresenceReader
	clock     func() time.Time
}

func NewMachine(dir DirectoryResolver, pres PresenceReader) *Machine {
	return &Machine{directory: dir, presence: pres, clock: time.Now}
}

// RouteInput is one gather round of an inbound call.
type RouteInput struct {
	TenantID string
	// Digits is empty on the first webhook hit (nothing gathered yet).
	Digits string
	From   string
	To     string
}

// Route maps gathered digits to a decision.
func (m *Machine) Route(ctx context.Context, in RouteInput) (Decision, error) {
	if in.TenantID == "" {
		return Decision{}, errors.New("ivr: tenant_id required")
	}
	digits := strings.TrimSpace(in.Digits)

	if digits == "" {
		return Decision{TenantID: in.TenantID, Action: ActionPrompt}, nil
	}
	if operatorDigits[digits] {
		return Decision{TenantID: in.TenantID, Action: ActionOperator, Reason: "operator shortcut"}, nil
	}

	ext, err := m.directory.Resolve(ctx, in.TenantID, digits)
	if errors.Is(err, directory.ErrNotFound) {
		return Decision{TenantID: in.TenantID, Action: ActionInvalid, Reason: "unknown extension " + digits}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	// Unconditional forwards short-circuit presence.
	if ext.ForwardingNumber != "" {
		return forwardDecision(in.TenantID, ext, ext.ForwardingNumber, "extension forwarding number"), nil
	}
	if rule, ok, err := m.directory.ForwardingFor(ctx, ext, directory.TriggerAlways, 0); err != nil {
		return Decision{}, err
	} else if ok {
		return forwardDecision(in.TenantID, ext, rule.Destination, "always rule"), nil
	}

	p, err := m.presence.Get(ctx, in.TenantID, ext.UserID)
	if err != nil {
		return Decision{}, err
	}
	if !p.Status.CanReceiveCall() {
		return m.unreachable(ctx, in.TenantID, ext, p.Status)
	}

	return Decision{
		TenantID:           in.TenantID,
		Action:             ActionConnect,
		Extension:          ext,
		DialTimeoutSeconds: ExtensionRingSeconds,
		ConferenceName:     m.conferenceName(ext),
	}, nil
}

// DialResultInput is the dial-action callback after ringing an extension.
type DialResultInput struct {
	TenantID    string
	ExtensionID string
	// DialCallStatus is the carrier's verdict: completed, no-answer, busy,
	// failed, canceled.
	DialCallStatus string
	RingsObserved  int
}

// RouteDialResult decides what happens after an extension dial finished.
func (m *Machine) RouteDialResult(ctx context.Context, in DialResultInput) (Decision, error) {
	if in.TenantID == "" || in.ExtensionID == "" {
		return Decision{}, errors.New("ivr: tenant_id and extension_id required")
	}

	ext, err := m.directory.ByID(ctx, in.TenantID, in.ExtensionID)
	if errors.Is(err, directory.ErrNotFound) {
		return Decision{TenantID: in.TenantID, Action: ActionHangup, Reason: "extension vanished"}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	switch in.DialCallStatus {
	case "completed":
		return Decision{TenantID: in.TenantID, Action: ActionHangup, Reason: "call answered"}, nil
	case "busy":
		return m.fallThrough(ctx, in.TenantID, ext, directory.TriggerBusy, in.RingsObserved)
	default:
		// no-answer, failed, canceled all take the no-answer path.
		return m.fallThrough(ctx, in.TenantID, ext, directory.TriggerNoAnswer, in.RingsObserved)
	}
}

func (m *Machine) fallThrough(ctx context.Context, tenantID string, ext directory.Extension, trigger directory.ForwardingTrigger, rings int) (Decision, error) {
	rule, ok, err := m.directory.ForwardingFor(ctx, ext, trigger, rings)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return forwardDecision(tenantID, ext, rule.Destination, string(trigger)+" rule"), nil
	}
	if ext.VoicemailEnabled {
		return Decision{TenantID: tenantID, Action: ActionVoicemail, Extension: ext, Reason: string(trigger)}, nil
	}
	return Decision{TenantID: tenantID, Action: ActionHangup, Extension: ext, Reason: string(trigger) + ", voicemail disabled"}, nil
}

func (m *Machine) unreachable(ctx context.Context, tenantID string, ext directory.Extension, status presence.Status) (Decision, error) {
	// Only offline and DND land here; busy users still get their device rung.
	reason := "presence " + string(status)
	rule, ok, err := m.directory.ForwardingFor(ctx, ext, directory.TriggerNoAnswer, 0)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return forwardDecision(tenantID, ext, rule.Destination, reason+", forwarded"), nil
	}
	if ext.VoicemailEnabled {
		return Decision{TenantID: tenantID, Action: ActionVoicemail, Extension: ext, Reason: reason}, nil
	}
	return Decision{TenantID: tenantID, Action: ActionHangup, Extension: ext, Reason: reason}, nil
}

func (m *Machine) conferenceName(ext directory.Extension) string {
	return fmt.Sprintf("ext-%s-%d", ext.Number, m.clock().UnixMilli())
}

func forwardDecision(tenantID string, ext directory.Extension, destination, reason string) Decision {
	return Decision{
		TenantID:           tenantID,
		Action:             ActionForward,
		Extension:          ext,
		ForwardTo:          destination,
		DialTimeoutSeconds: ForwardDialSeconds,
		Reason:             reason,
	}
}

package reporting

import (
	"context"
	"errors"

	"pbx-engine/internal/calllog"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service aggregates call log rows into summaries. It reads through the call
// log service so tenant filtering stays in one place.
type Service struct {
	logs *calllog.Service
}

func NewService(logs *calllog.Service) *Service { return &Service{logs: logs} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.TenantID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}

	rows, err := s.logs.ListBetween(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{TenantID: req.TenantID, ExtensionID: req.ExtensionID}
	for _, c := range rows {
		if req.ExtensionID != "" && c.ExtensionID != req.ExtensionID {
			continue
		}
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds

		switch c.Direction {
		case calllog.DirectionInbound:
			out.InboundCalls++
		case calllog.DirectionOutbound:
			out.OutboundCalls++
		case calllog.DirectionInternal:
			out.InternalCalls++
		}

		switch c.Status {
		case calllog.StatusCompleted, calllog.StatusAnswered:
			out.CompletedCalls++
		case calllog.StatusMissed:
			out.MissedCalls++
		case calllog.StatusForwarded:
			out.ForwardedCalls++
		case calllog.StatusVoicemail:
			out.VoicemailCalls++
		case calllog.StatusFailed:
			out.FailedCalls++
		case calllog.StatusRinging:
			// still in flight, not counted separately
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

package voicemail

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pbx-engine/internal/calllog"
)

var (
	ErrInvalidArgument = errors.New("invalid voicemail request")
	ErrNotFound        = errors.New("voicemail not found")
)

// Repository abstracts voicemail persistence.
type Repository interface {
	Insert(ctx context.Context, vm Voicemail) error
	FindByCallSID(ctx context.Context, tenantID, callSID string) (Voicemail, bool, error)
	ListByExtension(ctx context.Context, tenantID, extensionID string) ([]Voicemail, error)
	MarkListened(ctx context.Context, tenantID, id string) (bool, error)
}

// Service stores voicemail deposits and mirrors each one into the call log.
type Service struct {
	repo  Repository
	logs  *calllog.Service
	clock func() time.Time
}

func NewService(repo Repository, logs *calllog.Service) *Service {
	return &Service{repo: repo, logs: logs, clock: time.Now}
}

// Deposit describes a completed transcription callback.
type Deposit struct {
	TenantID    string
	ExtensionID string
	UserID      string
	CallSID     string

	FromNumber string
	ToNumber   string

	RecordingURL      string
	RecordingDuration string
	TranscriptionText string
}

// SaveDeposit records a voicemail. Re-delivered callbacks for the same call
// leg are idempotently ignored.
func (s *Service) SaveDeposit(ctx context.Context, d Deposit) (Voicemail, error) {
	if d.TenantID == "" || d.ExtensionID == "" || d.CallSID == "" || d.RecordingURL == "" {
		return Voicemail{}, ErrInvalidArgument
	}

	if existing, ok, err := s.repo.FindByCallSID(ctx, d.TenantID, d.CallSID); err != nil {
		return Voicemail{}, err
	} else if ok {
		return existing, nil
	}

	duration, _ := strconv.Atoi(d.RecordingDuration)
	vm := Voicemail{
		ID:                uuid.NewString(),
		TenantID:          d.TenantID,
		ExtensionID:       d.ExtensionID,
		UserID:            d.UserID,
		FromNumber:        d.FromNumber,
		ToNumber:          d.ToNumber,
		RecordingURL:      mediaURL(d.RecordingURL),
		DurationSeconds:   duration,
		TranscriptionText: d.TranscriptionText,
		CallSID:           d.CallSID,
		CreatedAt:         s.clock().UTC(),
	}
	if err := s.repo.Insert(ctx, vm); err != nil {
		return Voicemail{}, err
	}

	// The deposit row in the call log carries zero duration: talk time was
	// already logged on the leg itself, this row marks the outcome.
	_, err := s.logs.Append(ctx, calllog.CallLog{
		TenantID:    d.TenantID,
		Direction:   calllog.DirectionInbound,
		FromNumber:  d.FromNumber,
		ToNumber:    d.ToNumber,
		ExtensionID: d.ExtensionID,
		UserID:      d.UserID,
		Status:      calllog.StatusVoicemail,
	})
	if err != nil {
		return Voicemail{}, err
	}
	return vm, nil
}

// ListByExtension returns an extension's voicemails, newest first.
func (s *Service) ListByExtension(ctx context.Context, tenantID, extensionID string) ([]Voicemail, error) {
	if tenantID == "" || extensionID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListByExtension(ctx, tenantID, extensionID)
}

// MarkListened flags a voicemail as heard.
func (s *Service) MarkListened(ctx context.Context, tenantID, id string) error {
	if tenantID == "" || id == "" {
		return ErrInvalidArgument
	}
	ok, err := s.repo.MarkListened(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// mediaURL appends the playable suffix the carrier serves recordings under.
func mediaURL(recordingURL string) string {
	if strings.HasSuffix(recordingURL, ".mp3") || strings.HasSuffix(recordingURL, ".wav") {
		return recordingURL
	}
	return recordingURL + ".mp3"
}

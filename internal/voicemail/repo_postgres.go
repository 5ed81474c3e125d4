package voicemail

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists voicemails via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const voicemailColumns = `
	id, tenant_id, extension_id, COALESCE(user_id, ''), from_number, to_number,
	recording_url, duration_seconds, COALESCE(transcription_text, ''),
	call_sid, listened, created_at`

func (r *PostgresRepo) Insert(ctx context.Context, vm Voicemail) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO voicemails
		    (id, tenant_id, extension_id, user_id, from_number, to_number,
		     recording_url, duration_seconds, transcription_text, call_sid, listened, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		vm.ID, vm.TenantID, vm.ExtensionID, nullStr(vm.UserID),
		vm.FromNumber, vm.ToNumber,
		vm.RecordingURL, vm.DurationSeconds, nullStr(vm.TranscriptionText),
		vm.CallSID, vm.Listened, vm.CreatedAt)
	return err
}

func (r *PostgresRepo) FindByCallSID(ctx context.Context, tenantID, callSID string) (Voicemail, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+voicemailColumns+` FROM voicemails WHERE tenant_id = $1 AND call_sid = $2`,
		tenantID, callSID)
	var vm Voicemail
	err := row.Scan(
		&vm.ID, &vm.TenantID, &vm.ExtensionID, &vm.UserID, &vm.FromNumber, &vm.ToNumber,
		&vm.RecordingURL, &vm.DurationSeconds, &vm.TranscriptionText,
		&vm.CallSID, &vm.Listened, &vm.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Voicemail{}, false, nil
	}
	if err != nil {
		return Voicemail{}, false, err
	}
	return vm, true, nil
}

func (r *PostgresRepo) ListByExtension(ctx context.Context, tenantID, extensionID string) ([]Voicemail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+voicemailColumns+`
		   FROM voicemails
		  WHERE tenant_id = $1 AND extension_id = $2
		  ORDER BY created_at DESC`,
		tenantID, extensionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Voicemail
	for rows.Next() {
		var vm Voicemail
		if err := rows.Scan(
			&vm.ID, &vm.TenantID, &vm.ExtensionID, &vm.UserID, &vm.FromNumber, &vm.ToNumber,
			&vm.RecordingURL, &vm.DurationSeconds, &vm.TranscriptionText,
			&vm.CallSID, &vm.Listened, &vm.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, vm)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkListened(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE voicemails SET listened = TRUE WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

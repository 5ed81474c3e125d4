package internalcall

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists internal calls via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const callColumns = `
	id, tenant_id, from_user_id, to_user_id, from_extension_id, to_extension_id,
	conference_name, COALESCE(conference_sid, ''),
	COALESCE(from_call_sid, ''), COALESCE(to_call_sid, ''),
	status, from_presence_version, to_presence_version,
	started_at, answered_at, ended_at, duration_seconds, created_at, updated_at`

func (r *PostgresRepo) Insert(ctx context.Context, c InternalCall) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO internal_calls
		    (id, tenant_id, from_user_id, to_user_id, from_extension_id, to_extension_id,
		     conference_name, conference_sid, from_call_sid, to_call_sid,
		     status, from_presence_version, to_presence_version,
		     started_at, answered_at, ended_at, duration_seconds, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		c.ID, c.TenantID, c.FromUserID, c.ToUserID, c.FromExtensionID, c.ToExtensionID,
		c.ConferenceName, nullStr(c.ConferenceSID), nullStr(c.FromCallSID), nullStr(c.ToCallSID),
		c.Status, c.FromPresenceVersion, c.ToPresenceVersion,
		c.StartedAt, c.AnsweredAt, c.EndedAt, c.DurationSeconds, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, id string) (InternalCall, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM internal_calls WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return scanCall(row)
}

func (r *PostgresRepo) FindByConferenceName(ctx context.Context, conferenceName string) (InternalCall, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM internal_calls WHERE conference_name = $1`,
		conferenceName)
	return scanCall(row)
}

func (r *PostgresRepo) FindByConferenceSID(ctx context.Context, conferenceSID string) (InternalCall, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM internal_calls WHERE conference_sid = $1`,
		conferenceSID)
	return scanCall(row)
}

func (r *PostgresRepo) Update(ctx context.Context, c InternalCall) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE internal_calls
		    SET conference_sid = $3, status = $4, answered_at = $5, ended_at = $6,
		        duration_seconds = $7, updated_at = $8
		  WHERE tenant_id = $1 AND id = $2`,
		c.TenantID, c.ID,
		nullStr(c.ConferenceSID), c.Status, c.AnsweredAt, c.EndedAt,
		c.DurationSeconds, c.UpdatedAt)
	return err
}

func (r *PostgresRepo) ListByTenant(ctx context.Context, tenantID string) ([]InternalCall, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+callColumns+` FROM internal_calls WHERE tenant_id = $1 ORDER BY started_at DESC`,
		tenantID)
	if err != nil {
		return nil, err
	}
	return collectCalls(rows)
}

func (r *PostgresRepo) ListByStatusOlderThan(ctx context.Context, status Status, before time.Time) ([]InternalCall, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+callColumns+` FROM internal_calls WHERE status = $1 AND started_at < $2`,
		status, before)
	if err != nil {
		return nil, err
	}
	return collectCalls(rows)
}

func collectCalls(rows *sql.Rows) ([]InternalCall, error) {
	defer rows.Close()
	var out []InternalCall
	for rows.Next() {
		var c InternalCall
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.FromUserID, &c.ToUserID, &c.FromExtensionID, &c.ToExtensionID,
			&c.ConferenceName, &c.ConferenceSID, &c.FromCallSID, &c.ToCallSID,
			&c.Status, &c.FromPresenceVersion, &c.ToPresenceVersion,
			&c.StartedAt, &c.AnsweredAt, &c.EndedAt, &c.DurationSeconds, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCall(row *sql.Row) (InternalCall, bool, error) {
	var c InternalCall
	err := row.Scan(
		&c.ID, &c.TenantID, &c.FromUserID, &c.ToUserID, &c.FromExtensionID, &c.ToExtensionID,
		&c.ConferenceName, &c.ConferenceSID, &c.FromCallSID, &c.ToCallSID,
		&c.Status, &c.FromPresenceVersion, &c.ToPresenceVersion,
		&c.StartedAt, &c.AnsweredAt, &c.EndedAt, &c.DurationSeconds, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return InternalCall{}, false, nil
	}
	if err != nil {
		return InternalCall{}, false, err
	}
	return c, true, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

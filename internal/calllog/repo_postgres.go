package calllog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists call logs via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, row CallLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO call_logs
		    (id, tenant_id, call_sid, direction, from_number, to_number,
		     extension_id, user_id, status, duration_seconds, started_at, ended_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		row.ID, row.TenantID, nullStr(row.CallSID), row.Direction,
		row.FromNumber, row.ToNumber,
		nullStr(row.ExtensionID), nullStr(row.UserID),
		row.Status, row.DurationSeconds, row.StartedAt, row.EndedAt, row.CreatedAt)
	return err
}

func (r *PostgresRepo) FindBySID(ctx context.Context, tenantID, callSID string) (CallLog, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, COALESCE(call_sid, ''), direction, from_number, to_number,
		        COALESCE(extension_id, ''), COALESCE(user_id, ''), status,
		        duration_seconds, started_at, ended_at, created_at
		   FROM call_logs
		  WHERE tenant_id = $1 AND call_sid = $2
		  ORDER BY started_at DESC
		  LIMIT 1`,
		tenantID, callSID)
	return scanCallLog(row)
}

func (r *PostgresRepo) UpdateOutcome(ctx context.Context, tenantID, id string, status Status, durationSeconds int, endedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE call_logs
		    SET status = $3, duration_seconds = $4, ended_at = $5
		  WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, status, durationSeconds, endedAt)
	return err
}

func (r *PostgresRepo) ListBetween(ctx context.Context, tenantID string, from, to time.Time) ([]CallLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, COALESCE(call_sid, ''), direction, from_number, to_number,
		        COALESCE(extension_id, ''), COALESCE(user_id, ''), status,
		        duration_seconds, started_at, ended_at, created_at
		   FROM call_logs
		  WHERE tenant_id = $1 AND started_at >= $2 AND started_at < $3
		  ORDER BY started_at`,
		tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallLog
	for rows.Next() {
		var c CallLog
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.CallSID, &c.Direction, &c.FromNumber, &c.ToNumber,
			&c.ExtensionID, &c.UserID, &c.Status,
			&c.DurationSeconds, &c.StartedAt, &c.EndedAt, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCallLog(row *sql.Row) (CallLog, bool, error) {
	var c CallLog
	err := row.Scan(
		&c.ID, &c.TenantID, &c.CallSID, &c.Direction, &c.FromNumber, &c.ToNumber,
		&c.ExtensionID, &c.UserID, &c.Status,
		&c.DurationSeconds, &c.StartedAt, &c.EndedAt, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CallLog{}, false, nil
	}
	if err != nil {
		return CallLog{}, false, err
	}
	return c, true, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package conference

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists conferences via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const conferenceColumns = `
	id, tenant_id, name, COALESCE(sid, ''), created_by_user_id,
	source_call_sid, status, started_at, ended_at, created_at, updated_at`

func (r *PostgresRepo) Insert(ctx context.Context, c Conference) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conferences
		    (id, tenant_id, name, sid, created_by_user_id, source_call_sid,
		     status, started_at, ended_at, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		c.ID, c.TenantID, c.Name, nullStr(c.SID), c.CreatedByUserID, c.SourceCallSID,
		c.Status, c.StartedAt, c.EndedAt, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, id string) (Conference, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+conferenceColumns+` FROM conferences WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return scanConference(row)
}

func (r *PostgresRepo) FindBySID(ctx context.Context, sid string) (Conference, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+conferenceColumns+` FROM conferences WHERE sid = $1`, sid)
	return scanConference(row)
}

func (r *PostgresRepo) FindByName(ctx context.Context, name string) (Conference, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+conferenceColumns+` FROM conferences WHERE name = $1`, name)
	return scanConference(row)
}

func (r *PostgresRepo) Update(ctx context.Context, c Conference) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conferences
		    SET sid = $3, status = $4, ended_at = $5, updated_at = $6
		  WHERE tenant_id = $1 AND id = $2`,
		c.TenantID, c.ID, nullStr(c.SID), c.Status, c.EndedAt, c.UpdatedAt)
	return err
}

func (r *PostgresRepo) AddParticipant(ctx context.Context, p Participant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conference_participants
		    (id, conference_id, tenant_id, call_sid, number, role, status, joined_at, left_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.ConferenceID, p.TenantID, p.CallSID, nullStr(p.Number),
		p.Role, p.Status, p.JoinedAt, p.LeftAt)
	return err
}

func (r *PostgresRepo) ListParticipants(ctx context.Context, tenantID, conferenceID string) ([]Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conference_id, tenant_id, call_sid, COALESCE(number, ''),
		        role, status, joined_at, left_at
		   FROM conference_participants
		  WHERE tenant_id = $1 AND conference_id = $2
		  ORDER BY joined_at`,
		tenantID, conferenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(
			&p.ID, &p.ConferenceID, &p.TenantID, &p.CallSID, &p.Number,
			&p.Role, &p.Status, &p.JoinedAt, &p.LeftAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateParticipant(ctx context.Context, p Participant) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conference_participants
		    SET status = $2, left_at = $3
		  WHERE id = $1`,
		p.ID, p.Status, p.LeftAt)
	return err
}

func scanConference(row *sql.Row) (Conference, bool, error) {
	var c Conference
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.SID, &c.CreatedByUserID,
		&c.SourceCallSID, &c.Status, &c.StartedAt, &c.EndedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Conference{}, false, nil
	}
	if err != nil {
		return Conference{}, false, err
	}
	return c, true, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
